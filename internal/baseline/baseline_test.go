package baseline

import (
	"testing"

	"quicksilver/internal/profiler"
)

func alwaysPass(profiler.TypeGuard) bool { return true }
func alwaysFail(profiler.TypeGuard) bool { return false }

func TestCompileAddEmitsGuardsThenAddThenReturn(t *testing.T) {
	block := profiler.CompiledBlock{
		Ops:    []profiler.SpecializedOp{{Kind: profiler.OpIntAdd}},
		Guards: []profiler.TypeGuard{{StackIndex: 0, ExpectedType: profiler.TypeInt32}},
	}
	prog := NewCompiler().Compile(block, 0)

	if len(prog.Instructions) != 3 {
		t.Fatalf("expected 3 instructions (guard, add, return), got %d", len(prog.Instructions))
	}
	if prog.Instructions[0].Op != IRGuard {
		t.Errorf("expected first instruction to be IRGuard")
	}
	if prog.Instructions[1].Op != IRAdd {
		t.Errorf("expected second instruction to be IRAdd")
	}
	if prog.Instructions[2].Op != IRReturn {
		t.Errorf("expected final instruction to be IRReturn")
	}
}

func TestCompileNonNumericOpDeoptimizesDefensively(t *testing.T) {
	block := profiler.CompiledBlock{
		Ops: []profiler.SpecializedOp{{Kind: profiler.OpStringConcat}},
	}
	prog := NewCompiler().Compile(block, 0)
	if len(prog.Instructions) != 2 {
		t.Fatalf("expected 2 instructions (deoptimize, return), got %d", len(prog.Instructions))
	}
	if prog.Instructions[0].Op != IRDeoptimize {
		t.Errorf("expected a non-numeric specialized op to compile to IRDeoptimize")
	}
}

func TestRunAddHappyPath(t *testing.T) {
	prog := &Program{Instructions: []Instr{{Op: IRAdd}, {Op: IRReturn}}}
	result := Run(prog, []float64{2, 3}, nil, alwaysPass)
	if result.Deoptimize {
		t.Fatalf("unexpected deopt: %s", result.Reason)
	}
	if result.Value != 5 {
		t.Errorf("expected 5, got %v", result.Value)
	}
}

func TestRunGuardFailureDeoptimizes(t *testing.T) {
	prog := &Program{
		Instructions: []Instr{{Op: IRGuard, GuardIdx: 0}, {Op: IRReturn}},
		Guards:       []profiler.TypeGuard{{StackIndex: 0, ExpectedType: profiler.TypeInt32}},
	}
	result := Run(prog, []float64{1}, nil, alwaysFail)
	if !result.Deoptimize {
		t.Fatal("expected deopt on guard failure")
	}
}

func TestRunStackUnderflowDeoptimizes(t *testing.T) {
	prog := &Program{Instructions: []Instr{{Op: IRAdd}, {Op: IRReturn}}}
	result := Run(prog, []float64{1}, nil, alwaysPass)
	if !result.Deoptimize {
		t.Fatal("expected deopt on stack underflow")
	}
}

func TestRunIncrementDecrement(t *testing.T) {
	prog := &Program{Instructions: []Instr{{Op: IRIncrement}, {Op: IRReturn}}}
	result := Run(prog, []float64{41}, nil, alwaysPass)
	if result.Deoptimize || result.Value != 42 {
		t.Errorf("expected 42, got %+v", result)
	}

	prog = &Program{Instructions: []Instr{{Op: IRDecrement}, {Op: IRReturn}}}
	result = Run(prog, []float64{42}, nil, alwaysPass)
	if result.Deoptimize || result.Value != 41 {
		t.Errorf("expected 41, got %+v", result)
	}
}

func TestRunLocalsLoadStore(t *testing.T) {
	prog := &Program{
		Instructions: []Instr{
			{Op: IRLoadConst, Const: 7},
			{Op: IRStoreLocal, LocalIdx: 0},
			{Op: IRLoadLocal, LocalIdx: 0},
			{Op: IRReturn},
		},
	}
	locals := make([]float64, 1)
	result := Run(prog, nil, locals, alwaysPass)
	if result.Deoptimize || result.Value != 7 {
		t.Errorf("expected 7, got %+v", result)
	}
}

func TestRunDeoptimizeInstructionDeoptimizes(t *testing.T) {
	prog := &Program{Instructions: []Instr{{Op: IRDeoptimize}}}
	result := Run(prog, nil, nil, alwaysPass)
	if !result.Deoptimize {
		t.Fatal("expected IRDeoptimize to always deoptimize")
	}
	if result.Reason == "" {
		t.Errorf("expected a non-empty deopt reason")
	}
}

func TestRunFallOffEndDeoptimizes(t *testing.T) {
	// A program with no terminator: Run reaches the end of Instructions
	// without an IRReturn and reports a deopt.
	prog := &Program{Instructions: []Instr{{Op: IRLoadConst, Const: 1}}}
	result := Run(prog, nil, nil, alwaysPass)
	if !result.Deoptimize {
		t.Fatal("expected deopt when the program falls off the end without returning")
	}
}

func TestRunUnknownOpcodeDeoptimizes(t *testing.T) {
	prog := &Program{Instructions: []Instr{{Op: IROp(250)}}}
	result := Run(prog, nil, nil, alwaysPass)
	if !result.Deoptimize {
		t.Fatal("expected deopt for an unrecognized IR opcode")
	}
}

func TestRunDivByZeroDeoptimizes(t *testing.T) {
	prog := &Program{Instructions: []Instr{{Op: IRDiv}, {Op: IRReturn}}}
	result := Run(prog, []float64{10, 0}, nil, alwaysPass)
	if !result.Deoptimize {
		t.Fatal("expected divide by zero to deoptimize")
	}
}

func TestRunDivHappyPath(t *testing.T) {
	prog := &Program{Instructions: []Instr{{Op: IRDiv}, {Op: IRReturn}}}
	result := Run(prog, []float64{10, 2}, nil, alwaysPass)
	if result.Deoptimize || result.Value != 5 {
		t.Errorf("expected 5, got %+v", result)
	}
}

// TestScenarioS6IRExecution matches spec.md's S6 end-to-end example: a
// compiled function LoadLocal 0; LoadLocal 1; IMul; LoadInt 1; IAdd; Return
// run against args [5.0, 8.0] returns 41.0; the IDiv variant run against
// args [10.0, 0.0] deoptimizes on the divide by zero.
func TestScenarioS6IRExecution(t *testing.T) {
	prog := &Program{
		Instructions: []Instr{
			{Op: IRLoadLocal, LocalIdx: 0},
			{Op: IRLoadLocal, LocalIdx: 1},
			{Op: IRMul},
			{Op: IRLoadConst, Const: 1},
			{Op: IRAdd},
			{Op: IRReturn},
		},
	}
	locals := []float64{5, 8}
	result := Run(prog, nil, locals, alwaysPass)
	if result.Deoptimize {
		t.Fatalf("unexpected deopt: %s", result.Reason)
	}
	if result.Value != 41 {
		t.Errorf("expected 41, got %v", result.Value)
	}

	divProg := &Program{
		Instructions: []Instr{
			{Op: IRLoadLocal, LocalIdx: 0},
			{Op: IRLoadLocal, LocalIdx: 1},
			{Op: IRDiv},
			{Op: IRReturn},
		},
	}
	divLocals := []float64{10, 0}
	divResult := Run(divProg, nil, divLocals, alwaysPass)
	if !divResult.Deoptimize {
		t.Fatal("expected divide by zero against args [10.0, 0.0] to deoptimize")
	}
}

func TestRunLtAndEq(t *testing.T) {
	prog := &Program{Instructions: []Instr{{Op: IRLt}, {Op: IRReturn}}}
	result := Run(prog, []float64{1, 2}, nil, alwaysPass)
	if result.Value != 1 {
		t.Errorf("expected 1 (true) for 1 < 2, got %v", result.Value)
	}

	prog = &Program{Instructions: []Instr{{Op: IREq}, {Op: IRReturn}}}
	result = Run(prog, []float64{3, 3}, nil, alwaysPass)
	if result.Value != 1 {
		t.Errorf("expected 1 (true) for 3 == 3, got %v", result.Value)
	}
}
