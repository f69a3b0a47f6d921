package wasm

// Opcode is a single WebAssembly instruction byte.
type Opcode = byte

// The full WebAssembly 1.0 (MVP) opcode set. Names follow the spec's
// instruction mnemonics.
const (
	OpUnreachable Opcode = 0x00
	OpNop         Opcode = 0x01
	OpBlock       Opcode = 0x02
	OpLoop        Opcode = 0x03
	OpIf          Opcode = 0x04
	OpElse        Opcode = 0x05
	OpEnd         Opcode = 0x0b
	OpBr          Opcode = 0x0c
	OpBrIf        Opcode = 0x0d
	OpBrTable     Opcode = 0x0e
	OpReturn      Opcode = 0x0f
	OpCall        Opcode = 0x10
	OpCallIndirect Opcode = 0x11

	OpDrop   Opcode = 0x1a
	OpSelect Opcode = 0x1b

	OpLocalGet  Opcode = 0x20
	OpLocalSet  Opcode = 0x21
	OpLocalTee  Opcode = 0x22
	OpGlobalGet Opcode = 0x23
	OpGlobalSet Opcode = 0x24

	OpI32Load    Opcode = 0x28
	OpI64Load    Opcode = 0x29
	OpF32Load    Opcode = 0x2a
	OpF64Load    Opcode = 0x2b
	OpI32Load8S  Opcode = 0x2c
	OpI32Load8U  Opcode = 0x2d
	OpI32Load16S Opcode = 0x2e
	OpI32Load16U Opcode = 0x2f
	OpI64Load8S  Opcode = 0x30
	OpI64Load8U  Opcode = 0x31
	OpI64Load16S Opcode = 0x32
	OpI64Load16U Opcode = 0x33
	OpI64Load32S Opcode = 0x34
	OpI64Load32U Opcode = 0x35
	OpI32Store   Opcode = 0x36
	OpI64Store   Opcode = 0x37
	OpF32Store   Opcode = 0x38
	OpF64Store   Opcode = 0x39
	OpI32Store8  Opcode = 0x3a
	OpI32Store16 Opcode = 0x3b
	OpI64Store8  Opcode = 0x3c
	OpI64Store16 Opcode = 0x3d
	OpI64Store32 Opcode = 0x3e
	OpMemorySize Opcode = 0x3f
	OpMemoryGrow Opcode = 0x40

	OpI32Const Opcode = 0x41
	OpI64Const Opcode = 0x42
	OpF32Const Opcode = 0x43
	OpF64Const Opcode = 0x44

	OpI32Eqz Opcode = 0x45
	OpI32Eq  Opcode = 0x46
	OpI32Ne  Opcode = 0x47
	OpI32LtS Opcode = 0x48
	OpI32LtU Opcode = 0x49
	OpI32GtS Opcode = 0x4a
	OpI32GtU Opcode = 0x4b
	OpI32LeS Opcode = 0x4c
	OpI32LeU Opcode = 0x4d
	OpI32GeS Opcode = 0x4e
	OpI32GeU Opcode = 0x4f

	OpI64Eqz Opcode = 0x50
	OpI64Eq  Opcode = 0x51
	OpI64Ne  Opcode = 0x52
	OpI64LtS Opcode = 0x53
	OpI64LtU Opcode = 0x54
	OpI64GtS Opcode = 0x55
	OpI64GtU Opcode = 0x56
	OpI64LeS Opcode = 0x57
	OpI64LeU Opcode = 0x58
	OpI64GeS Opcode = 0x59
	OpI64GeU Opcode = 0x5a

	OpF32Eq Opcode = 0x5b
	OpF32Ne Opcode = 0x5c
	OpF32Lt Opcode = 0x5d
	OpF32Gt Opcode = 0x5e
	OpF32Le Opcode = 0x5f
	OpF32Ge Opcode = 0x60

	OpF64Eq Opcode = 0x61
	OpF64Ne Opcode = 0x62
	OpF64Lt Opcode = 0x63
	OpF64Gt Opcode = 0x64
	OpF64Le Opcode = 0x65
	OpF64Ge Opcode = 0x66

	OpI32Clz    Opcode = 0x67
	OpI32Ctz    Opcode = 0x68
	OpI32Popcnt Opcode = 0x69
	OpI32Add    Opcode = 0x6a
	OpI32Sub    Opcode = 0x6b
	OpI32Mul    Opcode = 0x6c
	OpI32DivS   Opcode = 0x6d
	OpI32DivU   Opcode = 0x6e
	OpI32RemS   Opcode = 0x6f
	OpI32RemU   Opcode = 0x70
	OpI32And    Opcode = 0x71
	OpI32Or     Opcode = 0x72
	OpI32Xor    Opcode = 0x73
	OpI32Shl    Opcode = 0x74
	OpI32ShrS   Opcode = 0x75
	OpI32ShrU   Opcode = 0x76
	OpI32Rotl   Opcode = 0x77
	OpI32Rotr   Opcode = 0x78

	OpI64Clz    Opcode = 0x79
	OpI64Ctz    Opcode = 0x7a
	OpI64Popcnt Opcode = 0x7b
	OpI64Add    Opcode = 0x7c
	OpI64Sub    Opcode = 0x7d
	OpI64Mul    Opcode = 0x7e
	OpI64DivS   Opcode = 0x7f
	OpI64DivU   Opcode = 0x80
	OpI64RemS   Opcode = 0x81
	OpI64RemU   Opcode = 0x82
	OpI64And    Opcode = 0x83
	OpI64Or     Opcode = 0x84
	OpI64Xor    Opcode = 0x85
	OpI64Shl    Opcode = 0x86
	OpI64ShrS   Opcode = 0x87
	OpI64ShrU   Opcode = 0x88
	OpI64Rotl   Opcode = 0x89
	OpI64Rotr   Opcode = 0x8a

	OpF32Abs      Opcode = 0x8b
	OpF32Neg      Opcode = 0x8c
	OpF32Ceil     Opcode = 0x8d
	OpF32Floor    Opcode = 0x8e
	OpF32Trunc    Opcode = 0x8f
	OpF32Nearest  Opcode = 0x90
	OpF32Sqrt     Opcode = 0x91
	OpF32Add      Opcode = 0x92
	OpF32Sub      Opcode = 0x93
	OpF32Mul      Opcode = 0x94
	OpF32Div      Opcode = 0x95
	OpF32Min      Opcode = 0x96
	OpF32Max      Opcode = 0x97
	OpF32Copysign Opcode = 0x98

	OpF64Abs      Opcode = 0x99
	OpF64Neg      Opcode = 0x9a
	OpF64Ceil     Opcode = 0x9b
	OpF64Floor    Opcode = 0x9c
	OpF64Trunc    Opcode = 0x9d
	OpF64Nearest  Opcode = 0x9e
	OpF64Sqrt     Opcode = 0x9f
	OpF64Add      Opcode = 0xa0
	OpF64Sub      Opcode = 0xa1
	OpF64Mul      Opcode = 0xa2
	OpF64Div      Opcode = 0xa3
	OpF64Min      Opcode = 0xa4
	OpF64Max      Opcode = 0xa5
	OpF64Copysign Opcode = 0xa6

	OpI32WrapI64      Opcode = 0xa7
	OpI32TruncF32S    Opcode = 0xa8
	OpI32TruncF32U    Opcode = 0xa9
	OpI32TruncF64S    Opcode = 0xaa
	OpI32TruncF64U    Opcode = 0xab
	OpI64ExtendI32S   Opcode = 0xac
	OpI64ExtendI32U   Opcode = 0xad
	OpI64TruncF32S    Opcode = 0xae
	OpI64TruncF32U    Opcode = 0xaf
	OpI64TruncF64S    Opcode = 0xb0
	OpI64TruncF64U    Opcode = 0xb1
	OpF32ConvertI32S  Opcode = 0xb2
	OpF32ConvertI32U  Opcode = 0xb3
	OpF32ConvertI64S  Opcode = 0xb4
	OpF32ConvertI64U  Opcode = 0xb5
	OpF32DemoteF64    Opcode = 0xb6
	OpF64ConvertI32S  Opcode = 0xb7
	OpF64ConvertI32U  Opcode = 0xb8
	OpF64ConvertI64S  Opcode = 0xb9
	OpF64ConvertI64U  Opcode = 0xba
	OpF64PromoteF32   Opcode = 0xbb
	OpI32ReinterpretF32 Opcode = 0xbc
	OpI64ReinterpretF64 Opcode = 0xbd
	OpF32ReinterpretI32 Opcode = 0xbe
	OpF64ReinterpretI64 Opcode = 0xbf
)

// instrMeta is the per-opcode static metadata used by the validator: the
// abstract stack inputs, the result type (if any), and the net stack height
// change. Entries whose effect depends on runtime context (control
// instructions other than nop and unreachable, call, call_indirect, select,
// drop, locals, globals) carry the zero value here; the parser computes
// their effect explicitly.
type instrMeta struct {
	known   bool
	inputs  []ValueType
	result  *ValueType
	heightChange int
}

func i32p() *ValueType { v := ValueType(ValueTypeI32); return &v }
func i64p() *ValueType { v := ValueType(ValueTypeI64); return &v }
func f32p() *ValueType { v := ValueType(ValueTypeF32); return &v }
func f64p() *ValueType { v := ValueType(ValueTypeF64); return &v }

var i32in1 = []ValueType{ValueTypeI32}
var i32in2 = []ValueType{ValueTypeI32, ValueTypeI32}
var i64in1 = []ValueType{ValueTypeI64}
var i64in2 = []ValueType{ValueTypeI64, ValueTypeI64}
var f32in1 = []ValueType{ValueTypeF32}
var f32in2 = []ValueType{ValueTypeF32, ValueTypeF32}
var f64in1 = []ValueType{ValueTypeF64}
var f64in2 = []ValueType{ValueTypeF64, ValueTypeF64}

// instrMetaTable is indexed by opcode byte. Opcodes that the parser's switch
// in code_parse.go does not handle explicitly fall through to this table,
// and one whose entry is not known is rejected there as an invalid opcode.
var instrMetaTable = buildInstrMetaTable()

func buildInstrMetaTable() [256]instrMeta {
	var t [256]instrMeta
	reg := func(op Opcode, in []ValueType, out *ValueType) {
		change := 0
		if out != nil {
			change++
		}
		change -= len(in)
		t[op] = instrMeta{known: true, inputs: in, result: out, heightChange: change}
	}

	reg(OpI32Eqz, i32in1, i32p())
	for _, op := range []Opcode{OpI32Eq, OpI32Ne, OpI32LtS, OpI32LtU, OpI32GtS, OpI32GtU, OpI32LeS, OpI32LeU, OpI32GeS, OpI32GeU} {
		reg(op, i32in2, i32p())
	}
	reg(OpI64Eqz, i64in1, i32p())
	for _, op := range []Opcode{OpI64Eq, OpI64Ne, OpI64LtS, OpI64LtU, OpI64GtS, OpI64GtU, OpI64LeS, OpI64LeU, OpI64GeS, OpI64GeU} {
		reg(op, i64in2, i32p())
	}
	for _, op := range []Opcode{OpF32Eq, OpF32Ne, OpF32Lt, OpF32Gt, OpF32Le, OpF32Ge} {
		reg(op, f32in2, i32p())
	}
	for _, op := range []Opcode{OpF64Eq, OpF64Ne, OpF64Lt, OpF64Gt, OpF64Le, OpF64Ge} {
		reg(op, f64in2, i32p())
	}

	for _, op := range []Opcode{OpI32Clz, OpI32Ctz, OpI32Popcnt} {
		reg(op, i32in1, i32p())
	}
	for _, op := range []Opcode{OpI32Add, OpI32Sub, OpI32Mul, OpI32DivS, OpI32DivU, OpI32RemS, OpI32RemU,
		OpI32And, OpI32Or, OpI32Xor, OpI32Shl, OpI32ShrS, OpI32ShrU, OpI32Rotl, OpI32Rotr} {
		reg(op, i32in2, i32p())
	}
	for _, op := range []Opcode{OpI64Clz, OpI64Ctz, OpI64Popcnt} {
		reg(op, i64in1, i64p())
	}
	for _, op := range []Opcode{OpI64Add, OpI64Sub, OpI64Mul, OpI64DivS, OpI64DivU, OpI64RemS, OpI64RemU,
		OpI64And, OpI64Or, OpI64Xor, OpI64Shl, OpI64ShrS, OpI64ShrU, OpI64Rotl, OpI64Rotr} {
		reg(op, i64in2, i64p())
	}

	for _, op := range []Opcode{OpF32Abs, OpF32Neg, OpF32Ceil, OpF32Floor, OpF32Trunc, OpF32Nearest, OpF32Sqrt} {
		reg(op, f32in1, f32p())
	}
	for _, op := range []Opcode{OpF32Add, OpF32Sub, OpF32Mul, OpF32Div, OpF32Min, OpF32Max, OpF32Copysign} {
		reg(op, f32in2, f32p())
	}
	for _, op := range []Opcode{OpF64Abs, OpF64Neg, OpF64Ceil, OpF64Floor, OpF64Trunc, OpF64Nearest, OpF64Sqrt} {
		reg(op, f64in1, f64p())
	}
	for _, op := range []Opcode{OpF64Add, OpF64Sub, OpF64Mul, OpF64Div, OpF64Min, OpF64Max, OpF64Copysign} {
		reg(op, f64in2, f64p())
	}

	reg(OpI32WrapI64, i64in1, i32p())
	reg(OpI32TruncF32S, f32in1, i32p())
	reg(OpI32TruncF32U, f32in1, i32p())
	reg(OpI32TruncF64S, f64in1, i32p())
	reg(OpI32TruncF64U, f64in1, i32p())
	reg(OpI64ExtendI32S, i32in1, i64p())
	reg(OpI64ExtendI32U, i32in1, i64p())
	reg(OpI64TruncF32S, f32in1, i64p())
	reg(OpI64TruncF32U, f32in1, i64p())
	reg(OpI64TruncF64S, f64in1, i64p())
	reg(OpI64TruncF64U, f64in1, i64p())
	reg(OpF32ConvertI32S, i32in1, f32p())
	reg(OpF32ConvertI32U, i32in1, f32p())
	reg(OpF32ConvertI64S, i64in1, f32p())
	reg(OpF32ConvertI64U, i64in1, f32p())
	reg(OpF32DemoteF64, f64in1, f32p())
	reg(OpF64ConvertI32S, i32in1, f64p())
	reg(OpF64ConvertI32U, i32in1, f64p())
	reg(OpF64ConvertI64S, i64in1, f64p())
	reg(OpF64ConvertI64U, i64in1, f64p())
	reg(OpF64PromoteF32, f32in1, f64p())
	reg(OpI32ReinterpretF32, f32in1, i32p())
	reg(OpI64ReinterpretF64, f64in1, i64p())
	reg(OpF32ReinterpretI32, i32in1, f32p())
	reg(OpF64ReinterpretI64, i64in1, f64p())

	reg(OpNop, nil, nil)
	reg(OpUnreachable, nil, nil)

	return t
}

// isFloatOpcode reports whether op is one of the floating-point
// instructions (arithmetic, comparison, or conversion) that the execution
// loop evaluates using internal/moremath-backed float64/float32 Go
// arithmetic rather than refusing at run time. Nothing in this module calls
// it; the parser validates every one of these exactly like any other
// opcode.
func isFloatOpcode(op Opcode) bool {
	switch op {
	case OpF32Load, OpF64Load, OpF32Store, OpF64Store, OpF32Const, OpF64Const,
		OpF32Eq, OpF32Ne, OpF32Lt, OpF32Gt, OpF32Le, OpF32Ge,
		OpF64Eq, OpF64Ne, OpF64Lt, OpF64Gt, OpF64Le, OpF64Ge,
		OpF32Abs, OpF32Neg, OpF32Ceil, OpF32Floor, OpF32Trunc, OpF32Nearest, OpF32Sqrt,
		OpF32Add, OpF32Sub, OpF32Mul, OpF32Div, OpF32Min, OpF32Max, OpF32Copysign,
		OpF64Abs, OpF64Neg, OpF64Ceil, OpF64Floor, OpF64Trunc, OpF64Nearest, OpF64Sqrt,
		OpF64Add, OpF64Sub, OpF64Mul, OpF64Div, OpF64Min, OpF64Max, OpF64Copysign,
		OpI32TruncF32S, OpI32TruncF32U, OpI32TruncF64S, OpI32TruncF64U,
		OpI64TruncF32S, OpI64TruncF32U, OpI64TruncF64S, OpI64TruncF64U,
		OpF32ConvertI32S, OpF32ConvertI32U, OpF32ConvertI64S, OpF32ConvertI64U, OpF32DemoteF64,
		OpF64ConvertI32S, OpF64ConvertI32U, OpF64ConvertI64S, OpF64ConvertI64U, OpF64PromoteF32,
		OpI32ReinterpretF32, OpI64ReinterpretF64, OpF32ReinterpretI32, OpF64ReinterpretI64:
		return true
	default:
		return false
	}
}
