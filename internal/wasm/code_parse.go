package wasm

// parseInstructions walks the instruction stream of one function body,
// validating and rewriting it into p.code. It returns once the function's
// implicit outermost frame has been closed by its matching end.
func (p *funcParser) parseInstructions(r *reader) error {
	for {
		opByte, err := r.readByte()
		if err != nil {
			return err
		}
		done, err := p.parseOneInstruction(r, opByte)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (p *funcParser) parseOneInstruction(r *reader, op Opcode) (done bool, err error) {
	switch op {
	case OpBlock:
		bt, err := p.parseBlockType(r)
		if err != nil {
			return false, err
		}
		p.frames = append(p.frames, &ctrlFrame{
			blockType: bt, height: len(p.typeStack), ifFalseJumpBranch: -1,
		})

	case OpLoop:
		bt, err := p.parseBlockType(r)
		if err != nil {
			return false, err
		}
		codeOff, immOff := p.curPos()
		p.frames = append(p.frames, &ctrlFrame{
			isLoop: true, blockType: bt, height: len(p.typeStack),
			loopCodeOffset: codeOff, loopImmOffset: immOff, ifFalseJumpBranch: -1,
		})

	case OpIf:
		bt, err := p.parseBlockType(r)
		if err != nil {
			return false, err
		}
		if _, err := p.pop(ValueTypeI32); err != nil {
			return false, err
		}
		frame := &ctrlFrame{isIf: true, blockType: bt, height: len(p.typeStack)}
		p.emit(OpIf)
		idx := p.newBranch()
		p.imm.writeU32(uint32(idx))
		frame.ifFalseJumpBranch = idx
		p.frames = append(p.frames, frame)

	case OpElse:
		f := p.curFrame()
		if !f.isIf || f.hasElse {
			return false, malformed("unexpected else")
		}
		if err := p.closeBlockStack(f); err != nil {
			return false, err
		}
		f.hasElse = true
		f.unreachable = false

		p.emit(OpElse)
		elseIdx := p.newBranch()
		p.imm.writeU32(uint32(elseIdx))
		p.code.Branches[elseIdx].Arity = uint8(len(f.blockType.Results))
		f.branchFixups = append(f.branchFixups, elseIdx)

		codeOff, immOff := p.curPos()
		p.patchBranch(f.ifFalseJumpBranch, codeOff, immOff, 0, 0)

		p.typeStack = p.typeStack[:f.height]
		p.stackHeight = f.height
		for _, t := range f.blockType.Params {
			p.push(t)
		}

	case OpEnd:
		f := p.curFrame()
		if err := p.closeBlockStack(f); err != nil {
			return false, err
		}
		if f.isIf && !f.hasElse {
			if !equalTypes(f.blockType.Params, f.blockType.Results) {
				return false, invalid("if without else must not change the operand stack shape")
			}
			codeOff, immOff := p.curPos()
			p.patchBranch(f.ifFalseJumpBranch, codeOff, immOff, 0, 0)
		}
		p.patchFrameFixups(f)
		p.frames = p.frames[:len(p.frames)-1]
		for _, t := range f.blockType.Results {
			p.push(t)
		}
		if len(p.frames) == 0 {
			return true, nil
		}

	case OpUnreachable:
		p.emit(OpUnreachable)
		p.setUnreachable()

	case OpReturn:
		target := p.frames[0]
		p.emit(OpReturn)
		if err := p.emitBranchToFrame(target); err != nil {
			return false, err
		}
		p.setUnreachable()

	case OpBr:
		depth, err := r.readU32()
		if err != nil {
			return false, err
		}
		target, err := p.resolveBranchDepth(depth)
		if err != nil {
			return false, err
		}
		p.emit(OpBr)
		if err := p.emitBranchToFrame(target); err != nil {
			return false, err
		}
		p.setUnreachable()

	case OpBrIf:
		depth, err := r.readU32()
		if err != nil {
			return false, err
		}
		if _, err := p.pop(ValueTypeI32); err != nil {
			return false, err
		}
		target, err := p.resolveBranchDepth(depth)
		if err != nil {
			return false, err
		}
		p.emit(OpBrIf)
		if err := p.emitBranchToFrame(target); err != nil {
			return false, err
		}

	case OpBrTable:
		count, err := r.readU32()
		if err != nil {
			return false, err
		}
		labels := make([]uint32, count)
		for i := range labels {
			if labels[i], err = r.readU32(); err != nil {
				return false, err
			}
		}
		defaultDepth, err := r.readU32()
		if err != nil {
			return false, err
		}
		if _, err := p.pop(ValueTypeI32); err != nil {
			return false, err
		}
		p.emit(OpBrTable)
		p.imm.writeU32(count)
		for _, depth := range labels {
			target, err := p.resolveBranchDepth(depth)
			if err != nil {
				return false, err
			}
			if err := p.emitBranchToFrame(target); err != nil {
				return false, err
			}
		}
		defTarget, err := p.resolveBranchDepth(defaultDepth)
		if err != nil {
			return false, err
		}
		if err := p.emitBranchToFrame(defTarget); err != nil {
			return false, err
		}
		p.setUnreachable()

	case OpCall:
		idx, err := r.readU32()
		if err != nil {
			return false, err
		}
		if int(idx) >= len(p.ctx.FuncTypes) {
			return false, invalid("invalid function index %d", idx)
		}
		ft := p.ctx.FuncTypes[idx]
		for i := len(ft.Params) - 1; i >= 0; i-- {
			if _, err := p.pop(ft.Params[i]); err != nil {
				return false, err
			}
		}
		p.emit(OpCall)
		p.imm.writeU32(idx)
		for _, t := range ft.Results {
			p.push(t)
		}

	case OpCallIndirect:
		typeIdx, err := r.readU32()
		if err != nil {
			return false, err
		}
		reserved, err := r.readByte()
		if err != nil {
			return false, err
		}
		if reserved != 0 {
			return false, malformed("invalid call_indirect reserved byte")
		}
		if !p.ctx.HasTable {
			return false, invalid("call_indirect requires a table")
		}
		if int(typeIdx) >= len(p.ctx.Types) {
			return false, invalid("invalid type index %d", typeIdx)
		}
		ft := p.ctx.Types[typeIdx]
		if _, err := p.pop(ValueTypeI32); err != nil {
			return false, err
		}
		for i := len(ft.Params) - 1; i >= 0; i-- {
			if _, err := p.pop(ft.Params[i]); err != nil {
				return false, err
			}
		}
		p.emit(OpCallIndirect)
		p.imm.writeU32(typeIdx)
		for _, t := range ft.Results {
			p.push(t)
		}

	case OpDrop:
		if _, err := p.popAny(); err != nil {
			return false, err
		}
		p.emit(OpDrop)

	case OpSelect:
		if _, err := p.pop(ValueTypeI32); err != nil {
			return false, err
		}
		t2, err := p.popAny()
		if err != nil {
			return false, err
		}
		t1, err := p.popAny()
		if err != nil {
			return false, err
		}
		if t1 != valUnknown && t2 != valUnknown && t1 != t2 {
			return false, invalid("select operands must share a type")
		}
		result := t1
		if result == valUnknown {
			result = t2
		}
		p.push(result)
		p.emit(OpSelect)

	case OpLocalGet:
		idx, err := r.readU32()
		if err != nil {
			return false, err
		}
		if int(idx) >= len(p.locals) {
			return false, invalid("invalid local index %d", idx)
		}
		p.emit(OpLocalGet)
		p.imm.writeU32(idx)
		p.push(p.locals[idx])

	case OpLocalSet:
		idx, err := r.readU32()
		if err != nil {
			return false, err
		}
		if int(idx) >= len(p.locals) {
			return false, invalid("invalid local index %d", idx)
		}
		if _, err := p.pop(p.locals[idx]); err != nil {
			return false, err
		}
		p.emit(OpLocalSet)
		p.imm.writeU32(idx)

	case OpLocalTee:
		idx, err := r.readU32()
		if err != nil {
			return false, err
		}
		if int(idx) >= len(p.locals) {
			return false, invalid("invalid local index %d", idx)
		}
		if _, err := p.pop(p.locals[idx]); err != nil {
			return false, err
		}
		p.push(p.locals[idx])
		p.emit(OpLocalTee)
		p.imm.writeU32(idx)

	case OpGlobalGet:
		idx, err := r.readU32()
		if err != nil {
			return false, err
		}
		if int(idx) >= len(p.ctx.GlobalTypes) {
			return false, invalid("invalid global index %d", idx)
		}
		gt := p.ctx.GlobalTypes[idx]
		p.emit(OpGlobalGet)
		p.imm.writeU32(idx)
		p.push(gt.ValType)

	case OpGlobalSet:
		idx, err := r.readU32()
		if err != nil {
			return false, err
		}
		if int(idx) >= len(p.ctx.GlobalTypes) {
			return false, invalid("invalid global index %d", idx)
		}
		gt := p.ctx.GlobalTypes[idx]
		if !gt.Mutable {
			return false, invalid("global.set to an immutable global")
		}
		if _, err := p.pop(gt.ValType); err != nil {
			return false, err
		}
		p.emit(OpGlobalSet)
		p.imm.writeU32(idx)

	case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
		OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
		OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U:
		align, offset, err := p.readMemArg(r, op)
		if err != nil {
			return false, err
		}
		if _, err := p.pop(ValueTypeI32); err != nil {
			return false, err
		}
		var result ValueType = ValueTypeI32
		switch op {
		case OpI64Load, OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U:
			result = ValueTypeI64
		case OpF32Load:
			result = ValueTypeF32
		case OpF64Load:
			result = ValueTypeF64
		}
		_ = align // validated above, not retained: alignment is a hint, discarded at execution time
		p.emit(op)
		p.imm.writeU32(offset)
		p.push(result)

	case OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		align, offset, err := p.readMemArg(r, op)
		if err != nil {
			return false, err
		}
		var valType ValueType = ValueTypeI32
		switch op {
		case OpI64Store, OpI64Store8, OpI64Store16, OpI64Store32:
			valType = ValueTypeI64
		case OpF32Store:
			valType = ValueTypeF32
		case OpF64Store:
			valType = ValueTypeF64
		}
		if _, err := p.pop(valType); err != nil {
			return false, err
		}
		if _, err := p.pop(ValueTypeI32); err != nil {
			return false, err
		}
		_ = align // validated above, not retained: alignment is a hint, discarded at execution time
		p.emit(op)
		p.imm.writeU32(offset)

	case OpMemorySize:
		reserved, err := r.readByte()
		if err != nil {
			return false, err
		}
		if reserved != 0 {
			return false, malformed("invalid memory.size reserved byte")
		}
		if !p.ctx.HasMemory {
			return false, invalid("memory.size requires a memory")
		}
		p.emit(OpMemorySize)
		p.push(ValueTypeI32)

	case OpMemoryGrow:
		reserved, err := r.readByte()
		if err != nil {
			return false, err
		}
		if reserved != 0 {
			return false, malformed("invalid memory.grow reserved byte")
		}
		if !p.ctx.HasMemory {
			return false, invalid("memory.grow requires a memory")
		}
		if _, err := p.pop(ValueTypeI32); err != nil {
			return false, err
		}
		p.emit(OpMemoryGrow)
		p.push(ValueTypeI32)

	case OpI32Const:
		v, err := r.readI32()
		if err != nil {
			return false, err
		}
		p.emit(OpI32Const)
		p.imm.writeU32(uint32(v))
		p.push(ValueTypeI32)

	case OpI64Const:
		v, err := r.readI64()
		if err != nil {
			return false, err
		}
		p.emit(OpI64Const)
		p.imm.writeU64(uint64(v))
		p.push(ValueTypeI64)

	case OpF32Const:
		b, err := r.readBytes(4)
		if err != nil {
			return false, err
		}
		p.emit(OpF32Const)
		p.imm.buf = append(p.imm.buf, b...)
		p.push(ValueTypeF32)

	case OpF64Const:
		b, err := r.readBytes(8)
		if err != nil {
			return false, err
		}
		p.emit(OpF64Const)
		p.imm.buf = append(p.imm.buf, b...)
		p.push(ValueTypeF64)

	default:
		meta := instrMetaTable[op]
		if !meta.known {
			return false, malformed("invalid opcode %#x", op)
		}
		for i := len(meta.inputs) - 1; i >= 0; i-- {
			if _, err := p.pop(meta.inputs[i]); err != nil {
				return false, err
			}
		}
		if meta.result != nil {
			p.push(*meta.result)
		}
		p.emit(op)
	}
	return false, nil
}

// closeBlockStack validates (or, under an unreachable frame, resets) the
// operand stack against f's declared result types, as required at both
// `else` and `end`.
func (p *funcParser) closeBlockStack(f *ctrlFrame) error {
	results := f.blockType.Results
	if f.unreachable {
		p.typeStack = p.typeStack[:f.height]
		p.stackHeight = f.height
		return nil
	}
	if len(p.typeStack)-f.height != len(results) {
		return invalid("operand stack height mismatch at block boundary")
	}
	for i := len(results) - 1; i >= 0; i-- {
		if _, err := p.pop(results[i]); err != nil {
			return err
		}
	}
	return nil
}
