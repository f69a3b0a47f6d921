package interpreter

import "github.com/wasmic/wasmic/internal/wasm"

// DefaultCallStackCeiling bounds recursion depth the same way the teacher
// project bounds it: a fixed ceiling checked on every call, independent of
// the Go goroutine stack's own (much larger, OS-dependent) limit.
// RuntimeConfig.WithCallStackLimit may lower it per Instance.
const DefaultCallStackCeiling = 2048

// callFrame is one active invocation of a module-defined function: its pc
// into Code.Instructions, immPC into Code.Immediates, base, the index into
// callEngine.stack where this invocation's params+locals begin, and depth,
// its position in the call tree (used to seed the next nested call's depth
// check, including calls that cross into a host function and back).
type callFrame struct {
	fn    *function
	code  *wasm.Code
	base  int
	pc    uint32
	immPC uint32
	depth int
}

func (f *callFrame) nextOp() wasm.Opcode {
	op := f.code.Instructions[f.pc]
	f.pc++
	return op
}

func (f *callFrame) immU32() uint32 {
	v := wasm.LoadU32(f.code.Immediates, f.immPC)
	f.immPC += 4
	return v
}

func (f *callFrame) immU64() uint64 {
	v := wasm.LoadU64(f.code.Immediates, f.immPC)
	f.immPC += 8
	return v
}

func (f *callFrame) immBytes(n uint32) []byte {
	b := f.code.Immediates[f.immPC : f.immPC+n]
	f.immPC += n
	return b
}

func (f *callFrame) branchTarget() wasm.BranchTarget {
	idx := f.immU32()
	return f.code.Branches[idx]
}

// callEngine holds the single growable operand stack shared by every
// invocation in one call tree, plus the stack of active callFrames. A
// fresh callEngine is created per call into the interpreter from the host
// (Instance.callFunc); nested wasm-to-wasm calls reuse it via invoke.
// ticks, if non-nil, is the instruction-metering budget shared across the
// whole call tree, including calls that cross into a host function and
// back (see Caller); it is decremented once per opcode dispatch in run.
type callEngine struct {
	stack  []uint64
	frames []*callFrame
	limit  int
	ticks  *int64
}

func (ce *callEngine) reserve(n int) {
	if cap(ce.stack) >= n {
		return
	}
	grown := make([]uint64, len(ce.stack), n)
	copy(grown, ce.stack)
	ce.stack = grown
}

// callFunc is the entry point from outside the interpreter: it runs f at
// call-tree depth 0 with params already encoded per api.Encode*, recovering
// any trap raised during execution into a returned error. Metering is
// disabled.
func (inst *Instance) callFunc(f *function, params []uint64) (results []uint64, err error) {
	return inst.callFuncAt(f, params, 0, nil)
}

// callFuncAt is callFunc generalized to an explicit starting depth and
// metering budget, so a host function that calls back into the guest (via
// Caller.CallExported) continues the same call tree instead of resetting
// depth to 0 or getting a fresh tick budget. A fresh callEngine is still
// created per external entry: its operand stack is private to this call
// tree, but depth and ticks are threaded through explicitly so the
// call-stack and metering checks see the caller's true position.
func (inst *Instance) callFuncAt(f *function, params []uint64, depth int, ticks *int64) (results []uint64, err error) {
	limit := inst.callStackLimit
	if limit <= 0 || limit > DefaultCallStackCeiling {
		limit = DefaultCallStackCeiling
	}
	ce := &callEngine{limit: limit, ticks: ticks}
	ce.stack = append(ce.stack, params...)
	defer func() {
		// recover must be called directly by the deferred function.
		if r := recover(); r != nil {
			t, ok := r.(*Trap)
			if !ok {
				panic(r)
			}
			err = t
		}
	}()
	ce.invoke(f, depth)
	out := make([]uint64, len(f.Type.Results))
	copy(out, ce.stack[len(ce.stack)-len(out):])
	return out, nil
}

// invoke executes f at the given call-tree depth, assuming its arguments
// already occupy the top len(f.Type.Params) slots of ce.stack, leaving its
// results in their place on return. The depth check applies uniformly to
// host and wasm-defined functions: a host function that calls back into the
// guest is obligated to pass depth+1 along (see Caller.CallExported), so a
// host/guest recursive chain trips the call-stack limit exactly as a
// pure-wasm one would, rather than overflowing the real Go stack.
func (ce *callEngine) invoke(f *function, depth int) {
	if depth >= ce.limit {
		trap(TrapCallStackOverflow)
	}
	if f.Host != nil {
		n := len(f.Type.Params)
		args := make([]uint64, n)
		copy(args, ce.stack[len(ce.stack)-n:])
		ce.stack = ce.stack[:len(ce.stack)-n]
		caller := &Caller{inst: f.Owner, depth: depth + 1, ticks: ce.ticks}
		ce.stack = append(ce.stack, f.Host(caller, args)...)
		return
	}

	base := len(ce.stack) - len(f.Type.Params)
	numLocals := len(f.Code.LocalTypes)
	ce.reserve(base + numLocals + f.Code.MaxStackHeight)
	for i := 0; i < numLocals; i++ {
		ce.stack = append(ce.stack, 0)
	}

	frame := &callFrame{fn: f, code: f.Code, base: base, depth: depth}
	ce.frames = append(ce.frames, frame)
	ce.run(frame)
	ce.frames = ce.frames[:len(ce.frames)-1]

	numResults := len(f.Type.Results)
	results := make([]uint64, numResults)
	copy(results, ce.stack[len(ce.stack)-numResults:])
	ce.stack = ce.stack[:base]
	ce.stack = append(ce.stack, results...)
}

// takeBranch applies a resolved BranchTarget: the top bt.Arity values are
// kept, bt.StackDrop values below them are discarded, and frame.pc/immPC
// jump to the target.
func (ce *callEngine) takeBranch(frame *callFrame, bt wasm.BranchTarget) {
	arity := int(bt.Arity)
	newTop := len(ce.stack) - arity - int(bt.StackDrop)
	if arity > 0 {
		copy(ce.stack[newTop:], ce.stack[len(ce.stack)-arity:])
	}
	ce.stack = ce.stack[:newTop+arity]
	frame.pc = bt.TargetCodeOffset
	frame.immPC = bt.TargetImmOffset
}
