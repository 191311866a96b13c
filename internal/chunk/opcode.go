package chunk

// Opcode is a single bytecode instruction kind. The set is fixed at
// compile time and every member has a known instruction size via
// InstructionSize, so a reader can never be desynchronized by a corrupt
// byte — it just treats the unknown byte as a 1-byte instruction.
type Opcode byte

const (
	// Stack operations.
	Nop Opcode = 0x00
	Pop Opcode = 0x01
	Dup Opcode = 0x02
	Swap Opcode = 0x03

	// Constants.
	Constant  Opcode = 0x10
	Undefined Opcode = 0x11
	Null      Opcode = 0x12
	True      Opcode = 0x13
	False     Opcode = 0x14

	// Variables: locals, globals, upvalues.
	GetLocal     Opcode = 0x20
	SetLocal     Opcode = 0x21
	GetGlobal    Opcode = 0x22
	SetGlobal    Opcode = 0x23
	DefineGlobal Opcode = 0x24
	GetUpvalue   Opcode = 0x25
	SetUpvalue   Opcode = 0x26
	CloseUpvalue Opcode = 0x27

	// Registers.
	LoadReg  Opcode = 0x28
	StoreReg Opcode = 0x29

	// Properties: by-name and by-element, public and private.
	GetProperty        Opcode = 0x30
	SetProperty         Opcode = 0x31
	DefineProperty      Opcode = 0x32
	GetElement          Opcode = 0x33
	SetElement          Opcode = 0x34
	GetPrivateField     Opcode = 0x35
	SetPrivateField     Opcode = 0x36
	DefinePrivateField  Opcode = 0x37

	// Arithmetic.
	Add       Opcode = 0x40
	Sub       Opcode = 0x41
	Mul       Opcode = 0x42
	Div       Opcode = 0x43
	Mod       Opcode = 0x44
	Pow       Opcode = 0x45
	Neg       Opcode = 0x46
	Increment Opcode = 0x47
	Decrement Opcode = 0x48

	// Bitwise.
	BitwiseNot Opcode = 0x50
	BitwiseAnd Opcode = 0x51
	BitwiseOr  Opcode = 0x52
	BitwiseXor Opcode = 0x53
	Shl        Opcode = 0x54
	Shr        Opcode = 0x55
	UShr       Opcode = 0x56

	// Comparison.
	Eq       Opcode = 0x60
	Ne       Opcode = 0x61
	StrictEq Opcode = 0x62
	StrictNe Opcode = 0x63
	Lt       Opcode = 0x64
	Le       Opcode = 0x65
	Gt       Opcode = 0x66
	Ge       Opcode = 0x67

	// Logical.
	Not Opcode = 0x70

	// typeof/in/instanceof/void/delete.
	Typeof     Opcode = 0x80
	Void       Opcode = 0x81
	Delete     Opcode = 0x82
	In         Opcode = 0x83
	Instanceof Opcode = 0x84

	// Control flow: unconditional and four conditional jumps.
	Jump          Opcode = 0x90
	JumpIfFalse   Opcode = 0x91
	JumpIfTrue    Opcode = 0x92
	JumpIfNull    Opcode = 0x93
	JumpIfNotNull Opcode = 0x94

	// Calls.
	Call             Opcode = 0xA0
	Return           Opcode = 0xA1
	ReturnUndefined  Opcode = 0xA2
	NewOp            Opcode = 0xA3
	CreateFunction   Opcode = 0xA4
	CreateClosure    Opcode = 0xA5
	CallMethod       Opcode = 0xA6
	TailCall         Opcode = 0xA7

	// Object/array/class creation.
	CreateArray   Opcode = 0xB0
	CreateObject  Opcode = 0xB1
	CreateClass   Opcode = 0xB2
	This          Opcode = 0xB3
	Super         Opcode = 0xB4
	NewTarget     Opcode = 0xB5
	SetSuperClass Opcode = 0xB6
	SuperCall     Opcode = 0xB7
	SuperGet      Opcode = 0xB8

	// Iterator protocol.
	GetIterator   Opcode = 0xC0
	IteratorNext  Opcode = 0xC1
	IteratorDone  Opcode = 0xC2
	IteratorValue Opcode = 0xC3

	// Exceptions.
	EnterTry Opcode = 0xD0
	LeaveTry Opcode = 0xD1
	Throw    Opcode = 0xD2

	// with.
	EnterWith Opcode = 0xE0
	LeaveWith Opcode = 0xE1

	// Algebraic effects.
	Perform Opcode = 0xE8

	// Spread/rest.
	Spread    Opcode = 0xF0
	RestParam Opcode = 0xF1

	// Generator/async.
	Yield Opcode = 0xF8
	Await Opcode = 0xF9

	// Modules.
	LoadModule    Opcode = 0xFA
	ExportValue   Opcode = 0xFB
	ExportAll     Opcode = 0xFC
	DynamicImport Opcode = 0xFD
)

// FromByte converts a raw byte to an Opcode, reporting whether it names a
// known instruction. Unknown bytes are never an error at this layer —
// callers treat them as a 1-byte UNKNOWN instruction.
func FromByte(b byte) (Opcode, bool) {
	op := Opcode(b)
	_, ok := instructionSizes[op]
	return op, ok
}

// instructionSizes maps every known opcode to its total instruction size in
// bytes, including the opcode byte itself.
var instructionSizes = map[Opcode]int{
	Nop: 1, Pop: 1, Dup: 1, Swap: 1,
	Undefined: 1, Null: 1, True: 1, False: 1,
	Add: 1, Sub: 1, Mul: 1, Div: 1, Mod: 1, Pow: 1, Neg: 1, Increment: 1, Decrement: 1,
	BitwiseNot: 1, BitwiseAnd: 1, BitwiseOr: 1, BitwiseXor: 1, Shl: 1, Shr: 1, UShr: 1,
	Eq: 1, Ne: 1, StrictEq: 1, StrictNe: 1, Lt: 1, Le: 1, Gt: 1, Ge: 1,
	Not: 1,
	Typeof: 1, Void: 1, Delete: 1, In: 1, Instanceof: 1,
	Return: 1, ReturnUndefined: 1,
	This: 1, Super: 1, NewTarget: 1, SetSuperClass: 1,
	GetElement: 1, SetElement: 1,
	GetIterator: 1, IteratorNext: 1, IteratorDone: 1, IteratorValue: 1,
	LeaveTry: 1, Throw: 1, LeaveWith: 1,
	Spread: 1, RestParam: 1,
	Yield: 1, Await: 1,
	ExportAll: 1, DynamicImport: 1,

	// 1-byte operand (2 bytes total).
	GetLocal: 2, SetLocal: 2, LoadReg: 2, StoreReg: 2,
	Call: 2, TailCall: 2, NewOp: 2, CreateArray: 2, CreateObject: 2, SuperCall: 2,

	// 2-byte operand (3 bytes total).
	Constant: 3,
	GetGlobal: 3, SetGlobal: 3, DefineGlobal: 3,
	GetUpvalue: 3, SetUpvalue: 3, CloseUpvalue: 3,
	GetProperty: 3, SetProperty: 3, DefineProperty: 3,
	GetPrivateField: 3, SetPrivateField: 3, DefinePrivateField: 3,
	Jump: 3, JumpIfFalse: 3, JumpIfTrue: 3, JumpIfNull: 3, JumpIfNotNull: 3,
	CreateFunction: 3, CreateClosure: 3, CreateClass: 3,
	EnterTry: 3, EnterWith: 3,
	LoadModule: 3, ExportValue: 3, SuperGet: 3,

	// u16 + u8 operand (4 bytes total).
	CallMethod: 4,

	// effect_index u16 + op_index u16 + arg_count u8 (6 bytes total).
	Perform: 6,
}

// InstructionSize returns the total size in bytes of op, including the
// opcode byte. Bytes that name no known opcode report 1, so a reader
// steps over them as 1-byte instructions; FromByte tells the two apart.
func InstructionSize(op Opcode) int {
	if n, ok := instructionSizes[op]; ok {
		return n
	}
	return 1
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

var opcodeNames = map[Opcode]string{
	Nop: "Nop", Pop: "Pop", Dup: "Dup", Swap: "Swap",
	Constant: "Constant", Undefined: "Undefined", Null: "Null", True: "True", False: "False",
	GetLocal: "GetLocal", SetLocal: "SetLocal", GetGlobal: "GetGlobal", SetGlobal: "SetGlobal",
	DefineGlobal: "DefineGlobal", GetUpvalue: "GetUpvalue", SetUpvalue: "SetUpvalue", CloseUpvalue: "CloseUpvalue",
	LoadReg: "LoadReg", StoreReg: "StoreReg",
	GetProperty: "GetProperty", SetProperty: "SetProperty", DefineProperty: "DefineProperty",
	GetElement: "GetElement", SetElement: "SetElement",
	GetPrivateField: "GetPrivateField", SetPrivateField: "SetPrivateField", DefinePrivateField: "DefinePrivateField",
	Add: "Add", Sub: "Sub", Mul: "Mul", Div: "Div", Mod: "Mod", Pow: "Pow", Neg: "Neg",
	Increment: "Increment", Decrement: "Decrement",
	BitwiseNot: "BitwiseNot", BitwiseAnd: "BitwiseAnd", BitwiseOr: "BitwiseOr", BitwiseXor: "BitwiseXor",
	Shl: "Shl", Shr: "Shr", UShr: "UShr",
	Eq: "Eq", Ne: "Ne", StrictEq: "StrictEq", StrictNe: "StrictNe",
	Lt: "Lt", Le: "Le", Gt: "Gt", Ge: "Ge",
	Not: "Not",
	Typeof: "Typeof", Void: "Void", Delete: "Delete", In: "In", Instanceof: "Instanceof",
	Jump: "Jump", JumpIfFalse: "JumpIfFalse", JumpIfTrue: "JumpIfTrue",
	JumpIfNull: "JumpIfNull", JumpIfNotNull: "JumpIfNotNull",
	Call: "Call", Return: "Return", ReturnUndefined: "ReturnUndefined", NewOp: "New",
	CreateFunction: "CreateFunction", CreateClosure: "CreateClosure", CallMethod: "CallMethod", TailCall: "TailCall",
	CreateArray: "CreateArray", CreateObject: "CreateObject", CreateClass: "CreateClass",
	This: "This", Super: "Super", NewTarget: "NewTarget", SetSuperClass: "SetSuperClass",
	SuperCall: "SuperCall", SuperGet: "SuperGet",
	GetIterator: "GetIterator", IteratorNext: "IteratorNext", IteratorDone: "IteratorDone", IteratorValue: "IteratorValue",
	EnterTry: "EnterTry", LeaveTry: "LeaveTry", Throw: "Throw",
	EnterWith: "EnterWith", LeaveWith: "LeaveWith",
	Perform: "Perform",
	Spread: "Spread", RestParam: "RestParam",
	Yield: "Yield", Await: "Await",
	LoadModule: "LoadModule", ExportValue: "ExportValue", ExportAll: "ExportAll", DynamicImport: "DynamicImport",
}

// IsConditionalJump reports whether op is one of the four conditional jump
// instructions (Jump itself is unconditional and excluded).
func IsConditionalJump(op Opcode) bool {
	switch op {
	case JumpIfFalse, JumpIfTrue, JumpIfNull, JumpIfNotNull:
		return true
	default:
		return false
	}
}

// IsJumpFamily reports whether op carries a signed 2-byte relative jump
// offset as its operand (the unconditional jump, any conditional jump, or
// EnterTry's catch-offset).
func IsJumpFamily(op Opcode) bool {
	if op == Jump || op == EnterTry || IsConditionalJump(op) {
		return true
	}
	return false
}

// IsTerminal reports whether op unconditionally ends straight-line control
// flow, per the dead-code-elimination pass.
func IsTerminal(op Opcode) bool {
	switch op {
	case Return, ReturnUndefined, Throw, Jump:
		return true
	default:
		return false
	}
}
