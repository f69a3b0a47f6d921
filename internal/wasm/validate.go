package wasm

// valUnknown is the polymorphic-stack sentinel used while validating code
// that follows an unconditional branch, unreachable, or return: such code
// is never executed, so pops and pushes in that region accept and produce
// "whatever type makes the rest of validation succeed."
const valUnknown ValueType = 0xff

// FuncValidationContext carries everything about the enclosing module that
// the per-function validator/rewriter needs to resolve call targets,
// globals, and the presence of the single table/memory. It is built once
// per module by DecodeModule (binary.go) and reused for every function
// body.
type FuncValidationContext struct {
	Types       []FuncType
	FuncTypes   []FuncType
	GlobalTypes []GlobalType
	HasTable    bool
	HasMemory   bool
}

// ctrlFrame is one entry of the control-frame stack: one per active
// function body (the implicit outermost frame), block, loop, or if/else.
type ctrlFrame struct {
	isLoop bool
	isIf   bool

	blockType FuncType
	height    int // typeStack length at frame entry

	unreachable bool

	// loopCodeOffset/loopImmOffset are valid only when isLoop: the position
	// right after the loop's own (emission-free) header, i.e. where a
	// branch back to this frame's label should resume.
	loopCodeOffset uint32
	loopImmOffset  uint32

	// branchFixups collects indices into Code.Branches whose target is
	// "the position right after this frame's matching end" - backpatched
	// when the frame closes.
	branchFixups []int

	// ifFalseJumpBranch is the index into Code.Branches for the branch
	// target an `if` emits for its condition-false path; -1 when the frame
	// isn't an if. It is patched at the `else` if there is one (hasElse
	// then records that), otherwise at the `end`. Valid only while isIf.
	ifFalseJumpBranch int
	hasElse           bool
}

func (f *ctrlFrame) labelTypes() []ValueType {
	if f.isLoop {
		return f.blockType.Params
	}
	return f.blockType.Results
}

// funcParser holds all mutable state threaded through one function body's
// validation/rewrite pass.
type funcParser struct {
	ctx    *FuncValidationContext
	locals []ValueType // params followed by declared locals, the local index space

	typeStack []ValueType
	frames    []*ctrlFrame

	code *Code
	imm  immediateWriter

	stackHeight    int
	maxStackHeight int
}

// ValidateFunctionBody parses, validates, and rewrites one function body
// into a Code ready for execution. locals holds the already-decoded
// non-parameter local types and body the instruction sequence that follows
// the locals declarations, through its final end.
func ValidateFunctionBody(ctx *FuncValidationContext, ftype *FuncType, locals []ValueType, body []byte) (*Code, error) {
	p := &funcParser{
		ctx:    ctx,
		locals: append(append([]ValueType{}, ftype.Params...), locals...),
		code:   &Code{LocalTypes: locals},
	}
	p.frames = append(p.frames, &ctrlFrame{
		blockType:         FuncType{Results: ftype.Results},
		height:            0,
		ifFalseJumpBranch: -1,
	})

	r := newReader(body)
	if err := p.parseInstructions(r); err != nil {
		return nil, err
	}
	if len(p.frames) != 0 {
		return nil, malformed("function body missing final end")
	}
	if !r.eof() {
		return nil, malformed("trailing bytes after function body end")
	}
	p.code.Immediates = p.imm.buf
	p.code.MaxStackHeight = p.maxStackHeight
	return p.code, nil
}

func (p *funcParser) curFrame() *ctrlFrame { return p.frames[len(p.frames)-1] }

func (p *funcParser) push(t ValueType) {
	p.typeStack = append(p.typeStack, t)
	p.stackHeight++
	if p.stackHeight > p.maxStackHeight {
		p.maxStackHeight = p.stackHeight
	}
}

func (p *funcParser) pop(expected ValueType) (ValueType, error) {
	f := p.curFrame()
	if len(p.typeStack) == f.height {
		if f.unreachable {
			return valUnknown, nil
		}
		return 0, invalid("stack underflow")
	}
	actual := p.typeStack[len(p.typeStack)-1]
	p.typeStack = p.typeStack[:len(p.typeStack)-1]
	p.stackHeight--
	if expected != valUnknown && actual != valUnknown && actual != expected {
		return 0, invalid("type mismatch: expected %s, got %s", typeName(expected), typeName(actual))
	}
	if actual == valUnknown {
		return expected, nil
	}
	return actual, nil
}

func (p *funcParser) popAny() (ValueType, error) { return p.pop(valUnknown) }

func typeName(t ValueType) string {
	if t == valUnknown {
		return "any"
	}
	switch t {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return valueTypeNameImpl(t)
	}
	return "unknown"
}

// setUnreachable marks the current frame as polymorphic-stack unreachable
// code, per the structured-control validation algorithm: everything from
// here to the frame's matching else/end can push or pop anything.
func (p *funcParser) setUnreachable() {
	f := p.curFrame()
	f.unreachable = true
	p.typeStack = p.typeStack[:f.height]
	p.stackHeight = f.height
}

// emit appends op to the flattened instruction stream.
func (p *funcParser) emit(op Opcode) { p.code.Instructions = append(p.code.Instructions, op) }

func (p *funcParser) curPos() (uint32, uint32) {
	return uint32(len(p.code.Instructions)), uint32(len(p.imm.buf))
}

// newBranch appends a placeholder BranchTarget and returns its index.
func (p *funcParser) newBranch() int {
	p.code.Branches = append(p.code.Branches, BranchTarget{})
	return len(p.code.Branches) - 1
}

func (p *funcParser) patchBranch(idx int, codeOff, immOff uint32, drop uint32, arity uint8) {
	p.code.Branches[idx] = BranchTarget{
		TargetCodeOffset: codeOff,
		TargetImmOffset:  immOff,
		StackDrop:        drop,
		Arity:            arity,
	}
}

// resolveBranchDepth validates a branch depth against the current frame
// stack and returns the target frame.
func (p *funcParser) resolveBranchDepth(depth uint32) (*ctrlFrame, error) {
	if int(depth) >= len(p.frames) {
		return nil, invalid("invalid branch depth %d", depth)
	}
	return p.frames[len(p.frames)-1-int(depth)], nil
}

// emitBranchToFrame validates and records one branch to target, writing a
// u32 branch-table index into the immediates stream. If target is a loop,
// the branch resolves immediately to the loop header; otherwise it is
// queued on target.branchFixups for backpatching at that frame's end.
func (p *funcParser) emitBranchToFrame(target *ctrlFrame) error {
	types := target.labelTypes()
	heightBeforeCheck := len(p.typeStack)
	// Validate (and consume) that the label's arity is present with
	// matching types, deepest-first.
	saved := append([]ValueType{}, p.typeStack...)
	for i := len(types) - 1; i >= 0; i-- {
		if _, err := p.pop(types[i]); err != nil {
			return err
		}
	}
	drop := uint32(0)
	if !p.curFrame().unreachable {
		drop = uint32(heightBeforeCheck-len(types)) - uint32(target.height)
	}
	idx := p.newBranch()
	p.imm.writeU32(uint32(idx))
	if target.isLoop {
		p.patchBranch(idx, target.loopCodeOffset, target.loopImmOffset, drop, uint8(len(types)))
	} else {
		target.branchFixups = append(target.branchFixups, idx)
		p.code.Branches[idx].StackDrop = drop
		p.code.Branches[idx].Arity = uint8(len(types))
	}
	// Restore the stack for fall-through callers (br_if); plain br/br_table
	// callers will immediately mark the frame unreachable, which discards
	// this anyway.
	p.typeStack = saved
	p.stackHeight = len(saved)
	return nil
}

func (p *funcParser) patchFrameFixups(f *ctrlFrame) {
	codeOff, immOff := p.curPos()
	for _, idx := range f.branchFixups {
		bt := p.code.Branches[idx]
		bt.TargetCodeOffset = codeOff
		bt.TargetImmOffset = immOff
		p.code.Branches[idx] = bt
	}
}

func equalTypes(a, b []ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func memArgAlignLimit(op Opcode) uint32 {
	switch op {
	case OpI32Load, OpI32Store, OpF32Load, OpF32Store, OpI64Load32S, OpI64Load32U, OpI64Store32:
		return 2
	case OpI64Load, OpI64Store, OpF64Load, OpF64Store:
		return 3
	case OpI32Load16S, OpI32Load16U, OpI32Store16, OpI64Load16S, OpI64Load16U, OpI64Store16:
		return 1
	default: // 8-bit loads/stores
		return 0
	}
}

func (p *funcParser) readMemArg(r *reader, op Opcode) (align uint32, offset uint32, err error) {
	if !p.ctx.HasMemory {
		return 0, 0, invalid("memory instruction without a memory")
	}
	align, err = r.readU32()
	if err != nil {
		return
	}
	if align > memArgAlignLimit(op) {
		err = invalid("alignment must not be larger than natural")
		return
	}
	offset, err = r.readU32()
	return
}

func (p *funcParser) parseBlockType(r *reader) (FuncType, error) {
	b, err := r.readByte()
	if err != nil {
		return FuncType{}, err
	}
	switch b {
	case 0x40:
		return FuncType{}, nil
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return FuncType{Results: []ValueType{b}}, nil
	default:
		return FuncType{}, malformed("invalid block type %#x", b)
	}
}

func valueTypeNameImpl(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	}
	return "unknown"
}
