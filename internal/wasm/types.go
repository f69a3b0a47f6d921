// Package wasm holds the parsed, validated representation of a WebAssembly
// 1.0 module together with the binary decoder, the per-function expression
// validator/rewriter, and the module-level cross-section validator. Nothing
// in this package executes code; see internal/engine/interpreter for
// instantiation and execution.
package wasm

import (
	"fmt"

	"github.com/wasmic/wasmic/api"
)

// ValueType is re-exported from api so callers constructing a Module by
// hand don't need to import two packages for one byte type.
type ValueType = api.ValueType

const (
	ValueTypeI32 = api.ValueTypeI32
	ValueTypeI64 = api.ValueTypeI64
	ValueTypeF32 = api.ValueTypeF32
	ValueTypeF64 = api.ValueTypeF64
)

// FuncRefElemType is the element type byte for the single table kind this
// module supports (funcref). It is not a ValueType: a Wasm 1.0 operand
// never carries this type, only a table slot does.
const FuncRefElemType = 0x70

// FuncType is an ordered sequence of parameter ValueTypes and a result type
// of which Wasm 1.0 allows at most one value.
//
// See https://webassembly.github.io/spec/core/binary/types.html#function-types
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

// EqualsSignature reports whether ft and other accept and return exactly
// the same value types in the same order. Used by call_indirect and import
// matching, both of which require structural rather than nominal equality.
func (ft *FuncType) EqualsSignature(other *FuncType) bool {
	if len(ft.Params) != len(other.Params) || len(ft.Results) != len(other.Results) {
		return false
	}
	for i, p := range ft.Params {
		if p != other.Params[i] {
			return false
		}
	}
	for i, r := range ft.Results {
		if r != other.Results[i] {
			return false
		}
	}
	return true
}

// String renders ft in a short "(i32,i32)->i32" form for error messages.
func (ft *FuncType) String() string {
	s := "("
	for i, p := range ft.Params {
		if i > 0 {
			s += ","
		}
		s += api.ValueTypeName(p)
	}
	s += ")->("
	for i, r := range ft.Results {
		if i > 0 {
			s += ","
		}
		s += api.ValueTypeName(r)
	}
	return s + ")"
}

// ResultType returns the single result type of ft, or 0 with ok=false if ft
// has no result (Wasm 1.0 permits at most one).
func (ft *FuncType) ResultType() (t ValueType, ok bool) {
	if len(ft.Results) == 0 {
		return 0, false
	}
	return ft.Results[0], true
}

// Limits describes the min/optional-max pair shared by tables and
// memories.
//
// See https://webassembly.github.io/spec/core/binary/types.html#limits
type Limits struct {
	Min uint32
	Max *uint32 // nil means unbounded
}

// ValidAgainst reports whether imported limits (provided, the limits the
// import actually provides) satisfy declared limits (the module's expectation):
// the provided minimum must be at least as large, and if the module
// declares a max, the provided limits must declare one too and it must not
// exceed the declared bound.
func (declared Limits) ValidAgainst(provided Limits) bool {
	if provided.Min < declared.Min {
		return false
	}
	if declared.Max != nil {
		if provided.Max == nil || *provided.Max > *declared.Max {
			return false
		}
	}
	return true
}

// GlobalType describes the value type and mutability of a global variable.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// ConstExprOpcode identifies which of the two legal shapes a
// ConstantExpression takes.
type ConstExprOpcode byte

const (
	ConstExprI32Const ConstExprOpcode = iota
	ConstExprI64Const
	ConstExprF32Const
	ConstExprF64Const
	ConstExprGlobalGet
)

// ConstantExpression is a restricted expression usable only to initialize
// globals, data-segment offsets, and element-segment offsets: one of the
// four typed const instructions, or a global.get of an imported immutable
// global.
type ConstantExpression struct {
	Opcode ConstExprOpcode
	// Value holds the bit pattern for *Const opcodes (sign-extended to
	// 64 bits for i32.const, interpreted per Opcode), or the global index
	// for ConstExprGlobalGet.
	Value uint64
}

// TypeIdx, FuncIdx, TableIdx, MemoryIdx, and GlobalIdx are all encoded as
// u32 indices in the binary format; named aliases make call sites read
// like the spec.
type (
	TypeIdx   = uint32
	FuncIdx   = uint32
	TableIdx  = uint32
	MemoryIdx = uint32
	GlobalIdx = uint32
)

// ImportKind discriminates the four kinds an Import can name.
type ImportKind = api.ExternType

const (
	ImportKindFunc   = api.ExternTypeFunc
	ImportKindTable  = api.ExternTypeTable
	ImportKindMemory = api.ExternTypeMemory
	ImportKindGlobal = api.ExternTypeGlobal
)

// Import is a single entry of the import section.
type Import struct {
	Module string
	Name   string
	Kind   ImportKind

	// Exactly one of the following is populated, matching Kind.
	FuncTypeIdx TypeIdx
	TableLimits Limits
	MemLimits   Limits
	GlobalType  GlobalType
}

// Export is a single entry of the export section.
type Export struct {
	Name  string
	Kind  ImportKind
	Index uint32
}

// Table is the single table Wasm 1.0 allows; always funcref-typed.
type Table struct {
	Limits Limits
}

// Memory is the single linear memory Wasm 1.0 allows.
type Memory struct {
	Limits Limits
}

// Global is a locally-defined (non-imported) global.
type Global struct {
	Type GlobalType
	Init ConstantExpression
}

// Element is one entry of the element section: a constant offset expression
// into table 0, plus the function indices to install starting at that
// offset.
type Element struct {
	Offset ConstantExpression
	Init   []FuncIdx
}

// Data is one entry of the data section: a constant offset expression into
// memory 0, plus the bytes to copy starting at that offset.
type Data struct {
	Offset ConstantExpression
	Init   []byte
}

// MalformedError reports a byte-level decoding failure: truncated input,
// wrong magic/version, bad LEB128, non-UTF-8 name, invalid opcode byte,
// out-of-order sections, or a section-size mismatch.
type MalformedError struct {
	Msg string
}

func (e *MalformedError) Error() string { return "malformed: " + e.Msg }

func malformed(format string, args ...interface{}) *MalformedError {
	return &MalformedError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidError reports a structural/type validation failure: type
// mismatches, stack under/overflow, an out-of-range index, a duplicate
// export, a mutable global used in a constant expression, and so on.
type InvalidError struct {
	Msg string
}

func (e *InvalidError) Error() string { return "invalid: " + e.Msg }

func invalid(format string, args ...interface{}) *InvalidError {
	return &InvalidError{Msg: fmt.Sprintf(format, args...)}
}
