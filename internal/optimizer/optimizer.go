// Package optimizer implements the multi-pass bytecode optimizer: a
// fixed-point driver over constant folding, peephole rewrites, dead-code
// elimination, and jump threading.
package optimizer

import (
	"math"

	"quicksilver/internal/chunk"
	"quicksilver/internal/value"
)

const maxIterations = 10

// Config toggles individual passes, mirroring the teacher's functional
// config-struct pattern (e.g. CacheConfig, ProjectManifest).
type Config struct {
	ConstantFolding       bool
	Peephole              bool
	DeadCodeElimination   bool
	JumpThreading         bool
}

// DefaultConfig enables every pass.
func DefaultConfig() Config {
	return Config{
		ConstantFolding:     true,
		Peephole:            true,
		DeadCodeElimination: true,
		JumpThreading:       true,
	}
}

// Optimizer runs the configured passes to a fixed point.
type Optimizer struct {
	config Config
}

// New returns an optimizer with every pass enabled.
func New() *Optimizer {
	return &Optimizer{config: DefaultConfig()}
}

// WithConfig returns an optimizer running only the passes config enables.
func WithConfig(config Config) *Optimizer {
	return &Optimizer{config: config}
}

// Optimize runs the configured passes against c in place until no pass
// changes anything or maxIterations is reached. The optimizer never
// shrinks c.Code — eliminated instructions are overwritten with Nop so
// offsets and jump targets stay valid; Nop holes inherit the line/column
// of the instruction they replaced.
func (o *Optimizer) Optimize(c *chunk.Chunk) {
	changed := true
	iterations := 0
	for changed && iterations < maxIterations {
		changed = false
		iterations++

		if o.config.ConstantFolding {
			changed = o.constantFolding(c) || changed
		}
		if o.config.Peephole {
			changed = o.peephole(c) || changed
		}
		if o.config.DeadCodeElimination {
			changed = o.deadCodeElimination(c) || changed
		}
		if o.config.JumpThreading {
			changed = o.jumpThreading(c) || changed
		}
	}
}

// Optimize is a package-level convenience wrapper with the default config.
func Optimize(c *chunk.Chunk) {
	New().Optimize(c)
}

func fillNop(c *chunk.Chunk, from, to int) {
	if from >= len(c.Code) {
		return
	}
	line := c.Lines[from]
	column := c.Columns[from]
	for j := from; j < to && j < len(c.Code); j++ {
		c.Code[j] = byte(chunk.Nop)
		c.Lines[j] = line
		c.Columns[j] = column
	}
}

// constantFolding evaluates `Constant c1; Constant c2; <binop>` sequences
// where both constants are Numbers, for every binop spec.md names.
func (o *Optimizer) constantFolding(c *chunk.Chunk) bool {
	changed := false
	i := 0
	for i+6 < len(c.Code) {
		op1, ok1 := chunk.FromByte(c.Code[i])
		op2, ok2 := chunk.FromByte(c.Code[i+3])
		if !ok1 || !ok2 || op1 != chunk.Constant || op2 != chunk.Constant {
			i++
			continue
		}

		idx1 := c.ReadUint16(i + 1)
		idx2 := c.ReadUint16(i + 4)
		v1, ok1 := c.GetConstant(idx1)
		v2, ok2 := c.GetConstant(idx2)
		if !ok1 || !ok2 || !v1.IsNumber() || !v2.IsNumber() {
			i++
			continue
		}

		binOp, ok := chunk.FromByte(c.Code[i+6])
		if !ok {
			i++
			continue
		}

		folded, ok := foldNumbers(binOp, v1.Number, v2.Number)
		if !ok {
			i++
			continue
		}

		newIdx := c.AddConstant(folded)
		line := c.Lines[i]
		column := c.Columns[i]
		c.Code[i] = byte(chunk.Constant)
		c.Code[i+1] = byte(newIdx)
		c.Code[i+2] = byte(newIdx >> 8)
		for j := i + 3; j <= i+6 && j < len(c.Code); j++ {
			c.Code[j] = byte(chunk.Nop)
			c.Lines[j] = line
			c.Columns[j] = column
		}
		changed = true
		i++
	}
	return changed
}

const epsilon = 1e-9

func foldNumbers(op chunk.Opcode, n1, n2 float64) (value.Value, bool) {
	switch op {
	case chunk.Add:
		return value.Num(n1 + n2), true
	case chunk.Sub:
		return value.Num(n1 - n2), true
	case chunk.Mul:
		return value.Num(n1 * n2), true
	case chunk.Div:
		if n2 == 0 {
			return value.Value{}, false
		}
		return value.Num(n1 / n2), true
	case chunk.Mod:
		if n2 == 0 {
			return value.Value{}, false
		}
		return value.Num(math.Mod(n1, n2)), true
	case chunk.Pow:
		return value.Num(math.Pow(n1, n2)), true
	case chunk.Lt:
		return value.Bool(n1 < n2), true
	case chunk.Le:
		return value.Bool(n1 <= n2), true
	case chunk.Gt:
		return value.Bool(n1 > n2), true
	case chunk.Ge:
		return value.Bool(n1 >= n2), true
	case chunk.Eq, chunk.StrictEq:
		return value.Bool(math.Abs(n1-n2) < epsilon), true
	case chunk.Ne, chunk.StrictNe:
		return value.Bool(math.Abs(n1-n2) >= epsilon), true
	default:
		return value.Value{}, false
	}
}

// peephole applies a single linear scan of idempotent rewrites; the
// fixed-point driver in Optimize handles compositions across passes.
func (o *Optimizer) peephole(c *chunk.Chunk) bool {
	changed := false
	i := 0
	for i < len(c.Code) {
		op, ok := chunk.FromByte(c.Code[i])
		if !ok {
			i++
			continue
		}

		// Constant c; Pop -> Nop x4
		if op == chunk.Constant && i+3 < len(c.Code) {
			if next, ok := chunk.FromByte(c.Code[i+3]); ok && next == chunk.Pop {
				fillNop(c, i, i+4)
				changed = true
				i += 4
				continue
			}
		}

		// Not; Not -> Nop; Nop
		if op == chunk.Not && i+1 < len(c.Code) {
			if next, ok := chunk.FromByte(c.Code[i+1]); ok && next == chunk.Not {
				fillNop(c, i, i+2)
				changed = true
				i += 2
				continue
			}
		}

		// Neg; Neg -> Nop; Nop
		if op == chunk.Neg && i+1 < len(c.Code) {
			if next, ok := chunk.FromByte(c.Code[i+1]); ok && next == chunk.Neg {
				fillNop(c, i, i+2)
				changed = true
				i += 2
				continue
			}
		}

		// Dup; Pop -> Nop; Nop
		if op == chunk.Dup && i+1 < len(c.Code) {
			if next, ok := chunk.FromByte(c.Code[i+1]); ok && next == chunk.Pop {
				fillNop(c, i, i+2)
				changed = true
				i += 2
				continue
			}
		}

		// Jump 0 -> Nop x3
		if op == chunk.Jump && i+2 < len(c.Code) {
			if c.ReadInt16(i+1) == 0 {
				fillNop(c, i, i+3)
				changed = true
				i += 3
				continue
			}
		}

		i++
	}
	return changed
}

// deadCodeElimination overwrites the instruction immediately following a
// terminal opcode (Return/ReturnUndefined/Throw/Jump) with Nop, unless
// that instruction is itself the target of some jump in the chunk.
func (o *Optimizer) deadCodeElimination(c *chunk.Chunk) bool {
	changed := false
	i := 0
	for i < len(c.Code) {
		op, ok := chunk.FromByte(c.Code[i])
		if !ok {
			i++
			continue
		}
		if !chunk.IsTerminal(op) {
			i++
			continue
		}

		nextPos := i + chunk.InstructionSize(op)
		if nextPos >= len(c.Code) {
			i++
			continue
		}

		nextOp, ok := chunk.FromByte(c.Code[nextPos])
		if !ok || nextOp == chunk.Nop {
			i++
			continue
		}

		if !isJumpTarget(c, nextPos) {
			size := chunk.InstructionSize(nextOp)
			fillNop(c, nextPos, nextPos+size)
			changed = true
		}
		i++
	}
	return changed
}

// isJumpTarget scans the whole chunk for any jump (conditional,
// unconditional, or EnterTry's catch offset) that lands exactly on pos.
func isJumpTarget(c *chunk.Chunk, pos int) bool {
	i := 0
	for i < len(c.Code) {
		op, ok := chunk.FromByte(c.Code[i])
		if !ok {
			i++
			continue
		}
		if chunk.IsJumpFamily(op) && i+2 < len(c.Code) {
			if c.JumpTarget(i+1) == pos {
				return true
			}
		}
		i += chunk.InstructionSize(op)
	}
	return false
}

// jumpThreading rewrites `Jump X` that lands on another `Jump Y` to jump
// directly to Y's target, provided the resulting offset fits in i16.
// Repeated fixed-point passes compose chains of threaded jumps.
func (o *Optimizer) jumpThreading(c *chunk.Chunk) bool {
	changed := false
	i := 0
	for i+2 < len(c.Code) {
		op, ok := chunk.FromByte(c.Code[i])
		if !ok || op != chunk.Jump {
			i++
			continue
		}

		target := c.JumpTarget(i + 1)
		if target < 0 || target+2 >= len(c.Code) {
			i++
			continue
		}

		targetOp, ok := chunk.FromByte(c.Code[target])
		if !ok || targetOp != chunk.Jump {
			i++
			continue
		}

		finalTarget := c.JumpTarget(target + 1)
		newOffset := finalTarget - (i + 3)
		if newOffset < math.MinInt16 || newOffset > math.MaxInt16 {
			i++
			continue
		}

		c.Code[i+1] = byte(int16(newOffset))
		c.Code[i+2] = byte(uint16(int16(newOffset)) >> 8)
		changed = true
		i++
	}
	return changed
}
