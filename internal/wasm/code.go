package wasm

import "encoding/binary"

// BranchTarget is a precomputed jump record for a br/br_if/br_table/if/else
// resolution: the code and immediates offsets to resume at, how many
// operand-stack slots to drop when taking the branch, and the arity (0 or
// 1) of the value carried across it. Computing these once at validation
// time means the interpreter's hot loop never re-walks the control-frame
// stack to resolve a branch.
type BranchTarget struct {
	TargetCodeOffset uint32
	TargetImmOffset  uint32
	StackDrop        uint32
	Arity            uint8
}

// Code is the pre-processed, flattened form of a function body. Instead of
// a tree of nested block/loop/if structures, Instructions is a flat stream
// of opcodes with all immediates stripped out into the parallel Immediates
// byte stream (little-endian, fixed width per operand); Branches holds the
// resolved BranchTargets in encounter order: one for each if, else, br,
// br_if and return, and one per label plus the default for br_table. This
// shape lets the interpreter dispatch by walking two slices with no
// recursion and no control-frame bookkeeping of its own.
type Code struct {
	Instructions []Opcode
	Immediates   []byte
	Branches     []BranchTarget

	LocalTypes     []ValueType // non-parameter locals, in declaration order
	MaxStackHeight int
}

// immediateWriter accumulates the Immediates byte stream during parsing.
type immediateWriter struct {
	buf []byte
}

func (w *immediateWriter) writeU32(v uint32) uint32 {
	off := uint32(len(w.buf))
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return off
}

func (w *immediateWriter) writeU64(v uint64) uint32 {
	off := uint32(len(w.buf))
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return off
}

func (w *immediateWriter) writeByte(v byte) uint32 {
	off := uint32(len(w.buf))
	w.buf = append(w.buf, v)
	return off
}

// LoadU32 reads a little-endian uint32 immediate at off.
func LoadU32(imm []byte, off uint32) uint32 {
	return binary.LittleEndian.Uint32(imm[off:])
}

// LoadU64 reads a little-endian uint64 immediate at off.
func LoadU64(imm []byte, off uint32) uint64 {
	return binary.LittleEndian.Uint64(imm[off:])
}
