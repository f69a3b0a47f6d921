package interpreter

import (
	"math"
	"math/bits"

	"github.com/wasmic/wasmic/api"
	"github.com/wasmic/wasmic/internal/moremath"
	"github.com/wasmic/wasmic/internal/wasm"
)

func (ce *callEngine) pushU64(v uint64) { ce.stack = append(ce.stack, v) }

func (ce *callEngine) popU64() uint64 {
	v := ce.stack[len(ce.stack)-1]
	ce.stack = ce.stack[:len(ce.stack)-1]
	return v
}

func (ce *callEngine) popI32() int32   { return int32(uint32(ce.popU64())) }
func (ce *callEngine) popU32() uint32  { return uint32(ce.popU64()) }
func (ce *callEngine) popI64() int64   { return int64(ce.popU64()) }
func (ce *callEngine) popF32() float32 { return api.DecodeF32(ce.popU64()) }
func (ce *callEngine) popF64() float64 { return api.DecodeF64(ce.popU64()) }

func (ce *callEngine) pushI32(v int32)   { ce.pushU64(api.EncodeI32(v)) }
func (ce *callEngine) pushU32(v uint32)  { ce.pushU64(uint64(v)) }
func (ce *callEngine) pushI64(v int64)   { ce.pushU64(api.EncodeI64(v)) }
func (ce *callEngine) pushBool(b bool) {
	if b {
		ce.pushI32(1)
	} else {
		ce.pushI32(0)
	}
}
func (ce *callEngine) pushF32(v float32) { ce.pushU64(api.EncodeF32(v)) }
func (ce *callEngine) pushF64(v float64) { ce.pushU64(api.EncodeF64(v)) }

// run executes frame's instruction stream until it falls off the end (the
// implicit return) or a branch jumps the pc past it, which, since the
// function's own implicit frame's fixups are patched to point exactly
// there, amounts to the same thing.
func (ce *callEngine) run(frame *callFrame) {
	insts := frame.code.Instructions
	for frame.pc < uint32(len(insts)) {
		if ce.ticks != nil {
			if *ce.ticks <= 0 {
				trap(TrapMeteringExhausted)
			}
			*ce.ticks--
		}
		op := frame.nextOp()
		ce.execOne(frame, op)
	}
}

func (ce *callEngine) execOne(frame *callFrame, op wasm.Opcode) {
	inst := frame.fn.Owner
	switch op {
	case wasm.OpUnreachable:
		trap(TrapUnreachable)

	case wasm.OpIf:
		bt := frame.branchTarget()
		if ce.popI32() == 0 {
			ce.takeBranch(frame, bt)
		}
	case wasm.OpElse:
		bt := frame.branchTarget()
		ce.takeBranch(frame, bt)
	case wasm.OpBr:
		bt := frame.branchTarget()
		ce.takeBranch(frame, bt)
	case wasm.OpBrIf:
		bt := frame.branchTarget()
		if ce.popI32() != 0 {
			ce.takeBranch(frame, bt)
		}
	case wasm.OpBrTable:
		count := frame.immU32()
		idx := ce.popU32()
		var chosen wasm.BranchTarget
		if idx < count {
			for i := uint32(0); i < count; i++ {
				bt := frame.branchTarget()
				if i == idx {
					chosen = bt
				}
			}
			chosen2 := frame.branchTarget() // default, consumed unconditionally to keep immPC in sync
			_ = chosen2
		} else {
			for i := uint32(0); i < count; i++ {
				frame.branchTarget()
			}
			chosen = frame.branchTarget()
		}
		ce.takeBranch(frame, chosen)
	case wasm.OpReturn:
		bt := frame.branchTarget()
		ce.takeBranch(frame, bt)

	case wasm.OpCall:
		idx := frame.immU32()
		ce.invoke(inst.funcs[idx], frame.depth+1)
	case wasm.OpCallIndirect:
		typeIdx := frame.immU32()
		tblIdx := ce.popI32()
		if tblIdx < 0 || int(tblIdx) >= len(inst.table) {
			trap(TrapInvalidTableAccess)
		}
		elem := inst.table[tblIdx]
		if elem.fn == nil {
			trap(TrapUninitializedElement)
		}
		want := inst.module.Types[typeIdx]
		if !elem.fn.Type.EqualsSignature(&want) {
			trap(TrapIndirectCallTypeMismatch)
		}
		ce.invoke(elem.fn, frame.depth+1)

	case wasm.OpDrop:
		ce.popU64()
	case wasm.OpSelect:
		c := ce.popI32()
		v2 := ce.popU64()
		v1 := ce.popU64()
		if c != 0 {
			ce.pushU64(v1)
		} else {
			ce.pushU64(v2)
		}

	case wasm.OpLocalGet:
		idx := frame.immU32()
		ce.pushU64(ce.stack[frame.base+int(idx)])
	case wasm.OpLocalSet:
		idx := frame.immU32()
		ce.stack[frame.base+int(idx)] = ce.popU64()
	case wasm.OpLocalTee:
		idx := frame.immU32()
		ce.stack[frame.base+int(idx)] = ce.stack[len(ce.stack)-1]
	case wasm.OpGlobalGet:
		idx := frame.immU32()
		ce.pushU64(inst.globals[idx].Value)
	case wasm.OpGlobalSet:
		idx := frame.immU32()
		inst.globals[idx].Value = ce.popU64()

	case wasm.OpI32Load:
		ce.execLoad(frame, inst, 4, false, func(b []byte) uint64 { return uint64(leUint32(b)) })
	case wasm.OpI64Load:
		ce.execLoad(frame, inst, 8, false, func(b []byte) uint64 { return leUint64(b) })
	case wasm.OpF32Load:
		ce.execLoad(frame, inst, 4, false, func(b []byte) uint64 { return uint64(leUint32(b)) })
	case wasm.OpF64Load:
		ce.execLoad(frame, inst, 8, false, func(b []byte) uint64 { return leUint64(b) })
	case wasm.OpI32Load8S:
		ce.execLoad(frame, inst, 1, false, func(b []byte) uint64 { return uint64(uint32(int32(int8(b[0])))) })
	case wasm.OpI32Load8U:
		ce.execLoad(frame, inst, 1, false, func(b []byte) uint64 { return uint64(b[0]) })
	case wasm.OpI32Load16S:
		ce.execLoad(frame, inst, 2, false, func(b []byte) uint64 { return uint64(uint32(int32(int16(leUint16(b))))) })
	case wasm.OpI32Load16U:
		ce.execLoad(frame, inst, 2, false, func(b []byte) uint64 { return uint64(leUint16(b)) })
	case wasm.OpI64Load8S:
		ce.execLoad(frame, inst, 1, false, func(b []byte) uint64 { return uint64(int64(int8(b[0]))) })
	case wasm.OpI64Load8U:
		ce.execLoad(frame, inst, 1, false, func(b []byte) uint64 { return uint64(b[0]) })
	case wasm.OpI64Load16S:
		ce.execLoad(frame, inst, 2, false, func(b []byte) uint64 { return uint64(int64(int16(leUint16(b)))) })
	case wasm.OpI64Load16U:
		ce.execLoad(frame, inst, 2, false, func(b []byte) uint64 { return uint64(leUint16(b)) })
	case wasm.OpI64Load32S:
		ce.execLoad(frame, inst, 4, false, func(b []byte) uint64 { return uint64(int64(int32(leUint32(b)))) })
	case wasm.OpI64Load32U:
		ce.execLoad(frame, inst, 4, false, func(b []byte) uint64 { return uint64(leUint32(b)) })

	case wasm.OpI32Store:
		ce.execStore(frame, inst, 4, func(v uint64, b []byte) { putUint32(b, uint32(v)) })
	case wasm.OpI64Store:
		ce.execStore(frame, inst, 8, func(v uint64, b []byte) { putUint64(b, v) })
	case wasm.OpF32Store:
		ce.execStore(frame, inst, 4, func(v uint64, b []byte) { putUint32(b, uint32(v)) })
	case wasm.OpF64Store:
		ce.execStore(frame, inst, 8, func(v uint64, b []byte) { putUint64(b, v) })
	case wasm.OpI32Store8, wasm.OpI64Store8:
		ce.execStore(frame, inst, 1, func(v uint64, b []byte) { b[0] = byte(v) })
	case wasm.OpI32Store16, wasm.OpI64Store16:
		ce.execStore(frame, inst, 2, func(v uint64, b []byte) { putUint16(b, uint16(v)) })
	case wasm.OpI64Store32:
		ce.execStore(frame, inst, 4, func(v uint64, b []byte) { putUint32(b, uint32(v)) })

	case wasm.OpMemorySize:
		ce.pushI32(int32(len(inst.memory) / pageSize))
	case wasm.OpMemoryGrow:
		delta := ce.popU32()
		ce.pushI32(inst.growMemory(delta))

	case wasm.OpI32Const:
		ce.pushU32(frame.immU32())
	case wasm.OpI64Const:
		ce.pushU64(frame.immU64())
	case wasm.OpF32Const:
		ce.pushU64(uint64(leUint32(frame.immBytes(4))))
	case wasm.OpF64Const:
		ce.pushU64(leUint64(frame.immBytes(8)))

	default:
		ce.execNumeric(op)
	}
}

func (ce *callEngine) execLoad(frame *callFrame, inst *Instance, width uint32, _ bool, decode func([]byte) uint64) {
	offset := frame.immU32()
	addr := ce.popU32()
	ea := uint64(addr) + uint64(offset)
	if ea+uint64(width) > uint64(len(inst.memory)) {
		trap(TrapOutOfBoundsMemoryAccess)
	}
	ce.pushU64(decode(inst.memory[ea : ea+uint64(width)]))
}

func (ce *callEngine) execStore(frame *callFrame, inst *Instance, width uint32, encode func(uint64, []byte)) {
	offset := frame.immU32()
	v := ce.popU64()
	addr := ce.popU32()
	ea := uint64(addr) + uint64(offset)
	if ea+uint64(width) > uint64(len(inst.memory)) {
		trap(TrapOutOfBoundsMemoryAccess)
	}
	encode(v, inst.memory[ea:ea+uint64(width)])
}

// growMemory grows inst's memory by delta pages, returning the previous
// size in pages, or -1 if the growth would exceed the declared maximum or
// the implementation limit.
func (inst *Instance) growMemory(delta uint32) int32 {
	prevPages := int32(len(inst.memory) / pageSize)
	newPages := uint64(prevPages) + uint64(delta)
	if newPages > uint64(inst.memoryLimit) {
		return -1
	}
	if inst.memoryMax != nil && newPages > uint64(*inst.memoryMax) {
		return -1
	}
	grown := make([]byte, newPages*pageSize)
	copy(grown, inst.memory)
	inst.memory = grown
	return prevPages
}

func leUint16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
func putUint16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

// execNumeric dispatches every opcode with no control-flow, memory, local,
// or global effect: the pure stack-in/stack-out arithmetic, comparison,
// and conversion instructions.
func (ce *callEngine) execNumeric(op wasm.Opcode) {
	switch op {
	case wasm.OpI32Eqz:
		ce.pushBool(ce.popI32() == 0)
	case wasm.OpI32Eq:
		b, a := ce.popI32(), ce.popI32()
		ce.pushBool(a == b)
	case wasm.OpI32Ne:
		b, a := ce.popI32(), ce.popI32()
		ce.pushBool(a != b)
	case wasm.OpI32LtS:
		b, a := ce.popI32(), ce.popI32()
		ce.pushBool(a < b)
	case wasm.OpI32LtU:
		b, a := ce.popU32(), ce.popU32()
		ce.pushBool(a < b)
	case wasm.OpI32GtS:
		b, a := ce.popI32(), ce.popI32()
		ce.pushBool(a > b)
	case wasm.OpI32GtU:
		b, a := ce.popU32(), ce.popU32()
		ce.pushBool(a > b)
	case wasm.OpI32LeS:
		b, a := ce.popI32(), ce.popI32()
		ce.pushBool(a <= b)
	case wasm.OpI32LeU:
		b, a := ce.popU32(), ce.popU32()
		ce.pushBool(a <= b)
	case wasm.OpI32GeS:
		b, a := ce.popI32(), ce.popI32()
		ce.pushBool(a >= b)
	case wasm.OpI32GeU:
		b, a := ce.popU32(), ce.popU32()
		ce.pushBool(a >= b)

	case wasm.OpI64Eqz:
		ce.pushBool(ce.popI64() == 0)
	case wasm.OpI64Eq:
		b, a := ce.popI64(), ce.popI64()
		ce.pushBool(a == b)
	case wasm.OpI64Ne:
		b, a := ce.popI64(), ce.popI64()
		ce.pushBool(a != b)
	case wasm.OpI64LtS:
		b, a := ce.popI64(), ce.popI64()
		ce.pushBool(a < b)
	case wasm.OpI64LtU:
		b, a := ce.popU64(), ce.popU64()
		ce.pushBool(a < b)
	case wasm.OpI64GtS:
		b, a := ce.popI64(), ce.popI64()
		ce.pushBool(a > b)
	case wasm.OpI64GtU:
		b, a := ce.popU64(), ce.popU64()
		ce.pushBool(a > b)
	case wasm.OpI64LeS:
		b, a := ce.popI64(), ce.popI64()
		ce.pushBool(a <= b)
	case wasm.OpI64LeU:
		b, a := ce.popU64(), ce.popU64()
		ce.pushBool(a <= b)
	case wasm.OpI64GeS:
		b, a := ce.popI64(), ce.popI64()
		ce.pushBool(a >= b)
	case wasm.OpI64GeU:
		b, a := ce.popU64(), ce.popU64()
		ce.pushBool(a >= b)

	case wasm.OpF32Eq:
		b, a := ce.popF32(), ce.popF32()
		ce.pushBool(a == b)
	case wasm.OpF32Ne:
		b, a := ce.popF32(), ce.popF32()
		ce.pushBool(a != b)
	case wasm.OpF32Lt:
		b, a := ce.popF32(), ce.popF32()
		ce.pushBool(a < b)
	case wasm.OpF32Gt:
		b, a := ce.popF32(), ce.popF32()
		ce.pushBool(a > b)
	case wasm.OpF32Le:
		b, a := ce.popF32(), ce.popF32()
		ce.pushBool(a <= b)
	case wasm.OpF32Ge:
		b, a := ce.popF32(), ce.popF32()
		ce.pushBool(a >= b)

	case wasm.OpF64Eq:
		b, a := ce.popF64(), ce.popF64()
		ce.pushBool(a == b)
	case wasm.OpF64Ne:
		b, a := ce.popF64(), ce.popF64()
		ce.pushBool(a != b)
	case wasm.OpF64Lt:
		b, a := ce.popF64(), ce.popF64()
		ce.pushBool(a < b)
	case wasm.OpF64Gt:
		b, a := ce.popF64(), ce.popF64()
		ce.pushBool(a > b)
	case wasm.OpF64Le:
		b, a := ce.popF64(), ce.popF64()
		ce.pushBool(a <= b)
	case wasm.OpF64Ge:
		b, a := ce.popF64(), ce.popF64()
		ce.pushBool(a >= b)

	case wasm.OpI32Clz:
		ce.pushI32(int32(bits.LeadingZeros32(ce.popU32())))
	case wasm.OpI32Ctz:
		ce.pushI32(int32(bits.TrailingZeros32(ce.popU32())))
	case wasm.OpI32Popcnt:
		ce.pushI32(int32(bits.OnesCount32(ce.popU32())))
	case wasm.OpI32Add:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a + b)
	case wasm.OpI32Sub:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a - b)
	case wasm.OpI32Mul:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a * b)
	case wasm.OpI32DivS:
		b, a := ce.popI32(), ce.popI32()
		if b == 0 {
			trap(TrapIntegerDivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			trap(TrapIntegerOverflow)
		}
		ce.pushI32(a / b)
	case wasm.OpI32DivU:
		b, a := ce.popU32(), ce.popU32()
		if b == 0 {
			trap(TrapIntegerDivideByZero)
		}
		ce.pushU32(a / b)
	case wasm.OpI32RemS:
		b, a := ce.popI32(), ce.popI32()
		if b == 0 {
			trap(TrapIntegerDivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			ce.pushI32(0)
		} else {
			ce.pushI32(a % b)
		}
	case wasm.OpI32RemU:
		b, a := ce.popU32(), ce.popU32()
		if b == 0 {
			trap(TrapIntegerDivideByZero)
		}
		ce.pushU32(a % b)
	case wasm.OpI32And:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a & b)
	case wasm.OpI32Or:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a | b)
	case wasm.OpI32Xor:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a ^ b)
	case wasm.OpI32Shl:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a << (b & 31))
	case wasm.OpI32ShrS:
		b, a := ce.popU32(), ce.popI32()
		ce.pushI32(a >> (b & 31))
	case wasm.OpI32ShrU:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a >> (b & 31))
	case wasm.OpI32Rotl:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(bits.RotateLeft32(a, int(b)))
	case wasm.OpI32Rotr:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(bits.RotateLeft32(a, -int(b)))

	case wasm.OpI64Clz:
		ce.pushI64(int64(bits.LeadingZeros64(ce.popU64())))
	case wasm.OpI64Ctz:
		ce.pushI64(int64(bits.TrailingZeros64(ce.popU64())))
	case wasm.OpI64Popcnt:
		ce.pushI64(int64(bits.OnesCount64(ce.popU64())))
	case wasm.OpI64Add:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a + b)
	case wasm.OpI64Sub:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a - b)
	case wasm.OpI64Mul:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a * b)
	case wasm.OpI64DivS:
		b, a := ce.popI64(), ce.popI64()
		if b == 0 {
			trap(TrapIntegerDivideByZero)
		}
		if a == math.MinInt64 && b == -1 {
			trap(TrapIntegerOverflow)
		}
		ce.pushI64(a / b)
	case wasm.OpI64DivU:
		b, a := ce.popU64(), ce.popU64()
		if b == 0 {
			trap(TrapIntegerDivideByZero)
		}
		ce.pushU64(a / b)
	case wasm.OpI64RemS:
		b, a := ce.popI64(), ce.popI64()
		if b == 0 {
			trap(TrapIntegerDivideByZero)
		}
		if a == math.MinInt64 && b == -1 {
			ce.pushI64(0)
		} else {
			ce.pushI64(a % b)
		}
	case wasm.OpI64RemU:
		b, a := ce.popU64(), ce.popU64()
		if b == 0 {
			trap(TrapIntegerDivideByZero)
		}
		ce.pushU64(a % b)
	case wasm.OpI64And:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a & b)
	case wasm.OpI64Or:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a | b)
	case wasm.OpI64Xor:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a ^ b)
	case wasm.OpI64Shl:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a << (b & 63))
	case wasm.OpI64ShrS:
		b, a := ce.popU64(), ce.popI64()
		ce.pushI64(a >> (b & 63))
	case wasm.OpI64ShrU:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a >> (b & 63))
	case wasm.OpI64Rotl:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(bits.RotateLeft64(a, int(b)))
	case wasm.OpI64Rotr:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(bits.RotateLeft64(a, -int(b)))

	case wasm.OpF32Abs:
		ce.pushF32(float32(math.Abs(float64(ce.popF32()))))
	case wasm.OpF32Neg:
		ce.pushF32(-ce.popF32())
	case wasm.OpF32Ceil:
		ce.pushF32(float32(math.Ceil(float64(ce.popF32()))))
	case wasm.OpF32Floor:
		ce.pushF32(float32(math.Floor(float64(ce.popF32()))))
	case wasm.OpF32Trunc:
		ce.pushF32(float32(math.Trunc(float64(ce.popF32()))))
	case wasm.OpF32Nearest:
		ce.pushF32(moremath.WasmCompatNearestF32(ce.popF32()))
	case wasm.OpF32Sqrt:
		ce.pushF32(float32(math.Sqrt(float64(ce.popF32()))))
	case wasm.OpF32Add:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(a + b)
	case wasm.OpF32Sub:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(a - b)
	case wasm.OpF32Mul:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(a * b)
	case wasm.OpF32Div:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(a / b)
	case wasm.OpF32Min:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(moremath.WasmCompatMin32(a, b))
	case wasm.OpF32Max:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(moremath.WasmCompatMax32(a, b))
	case wasm.OpF32Copysign:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(float32(math.Copysign(float64(a), float64(b))))

	case wasm.OpF64Abs:
		ce.pushF64(math.Abs(ce.popF64()))
	case wasm.OpF64Neg:
		ce.pushF64(-ce.popF64())
	case wasm.OpF64Ceil:
		ce.pushF64(math.Ceil(ce.popF64()))
	case wasm.OpF64Floor:
		ce.pushF64(math.Floor(ce.popF64()))
	case wasm.OpF64Trunc:
		ce.pushF64(math.Trunc(ce.popF64()))
	case wasm.OpF64Nearest:
		ce.pushF64(moremath.WasmCompatNearestF64(ce.popF64()))
	case wasm.OpF64Sqrt:
		ce.pushF64(math.Sqrt(ce.popF64()))
	case wasm.OpF64Add:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(a + b)
	case wasm.OpF64Sub:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(a - b)
	case wasm.OpF64Mul:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(a * b)
	case wasm.OpF64Div:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(a / b)
	case wasm.OpF64Min:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(moremath.WasmCompatMin(a, b))
	case wasm.OpF64Max:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(moremath.WasmCompatMax(a, b))
	case wasm.OpF64Copysign:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(math.Copysign(a, b))

	case wasm.OpI32WrapI64:
		ce.pushU32(uint32(ce.popU64()))
	case wasm.OpI32TruncF32S:
		ce.pushI32(int32(truncF32(ce.popF32(), wasm.TruncF32ToI32)))
	case wasm.OpI32TruncF32U:
		ce.pushU32(uint32(truncF32(ce.popF32(), wasm.TruncF32ToU32)))
	case wasm.OpI32TruncF64S:
		ce.pushI32(int32(truncF64(ce.popF64(), wasm.TruncF64ToI32)))
	case wasm.OpI32TruncF64U:
		ce.pushU32(uint32(truncF64(ce.popF64(), wasm.TruncF64ToU32)))
	case wasm.OpI64ExtendI32S:
		ce.pushI64(int64(ce.popI32()))
	case wasm.OpI64ExtendI32U:
		ce.pushI64(int64(ce.popU32()))
	case wasm.OpI64TruncF32S:
		ce.pushI64(int64(truncF32(ce.popF32(), wasm.TruncF32ToI64)))
	case wasm.OpI64TruncF32U:
		ce.pushU64(uint64(truncF32(ce.popF32(), wasm.TruncF32ToU64)))
	case wasm.OpI64TruncF64S:
		ce.pushI64(int64(truncF64(ce.popF64(), wasm.TruncF64ToI64)))
	case wasm.OpI64TruncF64U:
		ce.pushU64(uint64(truncF64(ce.popF64(), wasm.TruncF64ToU64)))
	case wasm.OpF32ConvertI32S:
		ce.pushF32(float32(ce.popI32()))
	case wasm.OpF32ConvertI32U:
		ce.pushF32(float32(ce.popU32()))
	case wasm.OpF32ConvertI64S:
		ce.pushF32(float32(ce.popI64()))
	case wasm.OpF32ConvertI64U:
		ce.pushF32(float32(ce.popU64()))
	case wasm.OpF32DemoteF64:
		ce.pushF32(float32(ce.popF64()))
	case wasm.OpF64ConvertI32S:
		ce.pushF64(float64(ce.popI32()))
	case wasm.OpF64ConvertI32U:
		ce.pushF64(float64(ce.popU32()))
	case wasm.OpF64ConvertI64S:
		ce.pushF64(float64(ce.popI64()))
	case wasm.OpF64ConvertI64U:
		ce.pushF64(float64(ce.popU64()))
	case wasm.OpF64PromoteF32:
		ce.pushF64(float64(ce.popF32()))
	case wasm.OpI32ReinterpretF32:
		ce.pushU32(uint32(ce.popU64()))
	case wasm.OpI64ReinterpretF64:
		ce.pushU64(ce.popU64())
	case wasm.OpF32ReinterpretI32:
		ce.pushU64(uint64(ce.popU32()))
	case wasm.OpF64ReinterpretI64:
		ce.pushU64(ce.popU64())

	case wasm.OpNop:
		// no-op

	default:
		panic(&Trap{Code: TrapUnreachable}) // unreachable given validation
	}
}

// truncF32/truncF64 implement iN.trunc_fM_{s,u}: any NaN, or any value
// outside the (exclusive) defined boundary for the destination type,
// traps rather than producing the C-style undefined result a plain
// float->int conversion would.
func truncF32(v float32, b wasm.TruncBoundaryF32) float64 {
	if math.IsNaN(float64(v)) {
		trap(TrapInvalidConversionToInteger)
	}
	if v <= b.Lower || v >= b.Upper {
		trap(TrapIntegerOverflow)
	}
	return math.Trunc(float64(v))
}

func truncF64(v float64, b wasm.TruncBoundaryF64) float64 {
	if math.IsNaN(v) {
		trap(TrapInvalidConversionToInteger)
	}
	if v <= b.Lower || v >= b.Upper {
		trap(TrapIntegerOverflow)
	}
	return math.Trunc(v)
}
