// Package chunk implements the bytecode format: the opcode table, the
// Chunk instruction container with its constant pool and debug tables, and
// disassembly. It is the unit of compilation everything else in this
// module — the optimizer, the profiler, the cache, and the snapshot codec
// — reads and, in the optimizer's case, rewrites in place.
package chunk

import (
	"fmt"
	"strings"

	"quicksilver/internal/value"
)

// Chunk is a unit of compiled code: an instruction stream, a deduplicated
// constant pool, parallel debug tables, and frame/function metadata.
//
// Invariants: len(Lines) == len(Columns) == len(Code); constant pool
// indices are u16; jump offsets are signed i16 relative to the byte
// following the jump operand.
type Chunk struct {
	Code      []byte
	Constants []value.Value
	Lines     []uint32
	Columns   []uint32

	Locals []string

	RegisterCount uint8
	ParamCount    uint8

	HasRestParam bool
	IsGenerator  bool
	IsAsync      bool
	IsStrict     bool

	SourceFile string
	HasSourceFile bool
}

// IsChunk satisfies value.FunctionChunk, letting a Chunk be carried inside
// a Function value without value importing chunk.
func (c *Chunk) IsChunk() {}

// New returns an empty chunk ready for appending.
func New() *Chunk {
	return &Chunk{}
}

// WriteByte appends a raw byte with its source location.
func (c *Chunk) WriteByte(b byte, line, column uint32) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	c.Columns = append(c.Columns, column)
}

// WriteOp appends an opcode with its source location.
func (c *Chunk) WriteOp(op Opcode, line, column uint32) {
	c.WriteByte(byte(op), line, column)
}

// WriteUint16 appends a little-endian u16 operand, one byte at a time so
// each byte gets its own (shared) line/column debug entry.
func (c *Chunk) WriteUint16(v uint16, line, column uint32) {
	c.WriteByte(byte(v), line, column)
	c.WriteByte(byte(v>>8), line, column)
}

// WriteInt16 appends a little-endian signed i16 jump offset.
func (c *Chunk) WriteInt16(v int16, line, column uint32) {
	c.WriteUint16(uint16(v), line, column)
}

// AddConstant interns a value into the constant pool by linear scan under
// strict equality, returning the existing index on a match or appending
// and returning the new index otherwise. This is the only way constants
// enter the pool, so the dedup invariant holds by construction.
func (c *Chunk) AddConstant(v value.Value) uint16 {
	for i, existing := range c.Constants {
		if existing.StrictEquals(v) {
			return uint16(i)
		}
	}
	c.Constants = append(c.Constants, v)
	return uint16(len(c.Constants) - 1)
}

// GetConstant fetches a constant by index, reporting whether the index was
// in range.
func (c *Chunk) GetConstant(idx uint16) (value.Value, bool) {
	if int(idx) >= len(c.Constants) {
		return value.Value{}, false
	}
	return c.Constants[int(idx)], true
}

// ReadUint16 reads a little-endian u16 at offset.
func (c *Chunk) ReadUint16(offset int) uint16 {
	return uint16(c.Code[offset]) | uint16(c.Code[offset+1])<<8
}

// ReadInt16 reads a little-endian signed i16 at offset.
func (c *Chunk) ReadInt16(offset int) int16 {
	return int16(c.ReadUint16(offset))
}

// JumpTarget computes the absolute target of a jump instruction whose
// 2-byte offset operand starts at operandOffset: offset_of_operand + 2 +
// sign_extend(i16).
func (c *Chunk) JumpTarget(operandOffset int) int {
	offset := c.ReadInt16(operandOffset)
	return operandOffset + 2 + int(offset)
}

// Disassemble renders the whole chunk as human-readable text under the
// given display name.
func (c *Chunk) Disassemble(name string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s ==\n", name)
	offset := 0
	for offset < len(c.Code) {
		line, next := c.DisassembleInstruction(offset)
		sb.WriteString(line)
		sb.WriteByte('\n')
		offset = next
	}
	return sb.String()
}

// DisassembleInstruction renders the instruction at offset and returns the
// offset of the next instruction. Two successive instructions sharing a
// line number show "|" in place of the repeated line number.
func (c *Chunk) DisassembleInstruction(offset int) (string, int) {
	line := uint32(0)
	if offset < len(c.Lines) {
		line = c.Lines[offset]
	}

	lineStr := fmt.Sprintf("%4d", line)
	if offset > 0 && offset-1 < len(c.Lines) && c.Lines[offset-1] == line {
		lineStr = "   |"
	}

	op, known := FromByte(c.Code[offset])
	if !known {
		return fmt.Sprintf("%04d %s UNKNOWN(%d)", offset, lineStr, c.Code[offset]), offset + 1
	}

	operands, size := c.formatOperands(op, offset+1)
	text := fmt.Sprintf("%04d %s %-18s %s", offset, lineStr, op.String(), operands)
	return text, offset + 1 + size
}

func (c *Chunk) formatOperands(op Opcode, operandOffset int) (string, int) {
	size := InstructionSize(op) - 1
	if size == 0 {
		return "", 0
	}
	if operandOffset+size > len(c.Code) {
		return "???", 0
	}

	switch {
	case op == Constant || op == GetGlobal || op == SetGlobal || op == DefineGlobal ||
		op == GetProperty || op == SetProperty || op == DefineProperty ||
		op == GetPrivateField || op == SetPrivateField || op == DefinePrivateField ||
		op == CreateFunction || op == CreateClosure || op == CreateClass ||
		op == LoadModule || op == ExportValue || op == SuperGet:
		idx := c.ReadUint16(operandOffset)
		if cst, ok := c.GetConstant(idx); ok {
			return fmt.Sprintf("%d (%s)", idx, cst.String()), 2
		}
		return fmt.Sprintf("%d", idx), 2

	case IsJumpFamily(op):
		target := c.JumpTarget(operandOffset)
		offset := c.ReadInt16(operandOffset)
		return fmt.Sprintf("%d -> %d", offset, target), 2

	case op == GetLocal || op == SetLocal:
		idx := c.Code[operandOffset]
		if int(idx) < len(c.Locals) {
			return fmt.Sprintf("%d (%s)", idx, c.Locals[idx]), 1
		}
		return fmt.Sprintf("%d", idx), 1

	case op == GetUpvalue || op == SetUpvalue || op == CloseUpvalue:
		return fmt.Sprintf("%d", c.ReadUint16(operandOffset)), 2

	case op == CallMethod:
		nameIdx := c.ReadUint16(operandOffset)
		argc := c.Code[operandOffset+2]
		if cst, ok := c.GetConstant(nameIdx); ok {
			return fmt.Sprintf("%d (%s) args=%d", nameIdx, cst.String(), argc), 3
		}
		return fmt.Sprintf("%d args=%d", nameIdx, argc), 3

	case op == Perform:
		effectIdx := c.ReadUint16(operandOffset)
		opIdx := c.ReadUint16(operandOffset + 2)
		argc := c.Code[operandOffset+4]
		return fmt.Sprintf("effect=%d op=%d args=%d", effectIdx, opIdx, argc), 5

	case op == Call || op == TailCall || op == NewOp || op == CreateArray || op == CreateObject || op == SuperCall:
		return fmt.Sprintf("%d", c.Code[operandOffset]), 1

	case op == LoadReg || op == StoreReg:
		return fmt.Sprintf("r%d", c.Code[operandOffset]), 1

	default:
		return fmt.Sprintf("%d", c.Code[operandOffset]), size
	}
}
