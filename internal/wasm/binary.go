package wasm

var magic = [4]byte{0x00, 0x61, 0x73, 0x6d}

const binaryVersion = uint32(1)

type sectionID byte

const (
	sectionCustom sectionID = iota
	sectionType
	sectionImport
	sectionFunction
	sectionTable
	sectionMemory
	sectionGlobal
	sectionExport
	sectionStart
	sectionElement
	sectionCode
	sectionData
)

// DecodeModule parses and fully validates a WebAssembly 1.0 binary,
// producing a Module with every function body already pre-processed into
// executable Code. Errors are either *MalformedError (byte-level decoding
// problems) or *InvalidError (type/structural problems discovered only
// once enough of the module is known to cross-check).
func DecodeModule(b []byte) (*Module, error) {
	r := newReader(b)
	if err := decodeHeader(r); err != nil {
		return nil, err
	}

	m := &Module{StartFunc: -1}
	var funcBodies [][]byte
	lastSection := sectionCustom

	for !r.eof() {
		idByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		id := sectionID(idByte)
		size, err := r.readU32()
		if err != nil {
			return nil, err
		}
		payload, err := r.readBytes(size)
		if err != nil {
			return nil, err
		}
		if id == sectionCustom {
			continue // contents are opaque to this module; id ordering is unconstrained.
		}
		if id <= lastSection {
			return nil, malformed("section out of order")
		}
		lastSection = id

		sr := newReader(payload)
		switch id {
		case sectionType:
			err = decodeTypeSection(sr, m)
		case sectionImport:
			err = decodeImportSection(sr, m)
		case sectionFunction:
			err = decodeFunctionSection(sr, m)
		case sectionTable:
			err = decodeTableSection(sr, m)
		case sectionMemory:
			err = decodeMemorySection(sr, m)
		case sectionGlobal:
			err = decodeGlobalSection(sr, m)
		case sectionExport:
			err = decodeExportSection(sr, m)
		case sectionStart:
			err = decodeStartSection(sr, m)
		case sectionElement:
			err = decodeElementSection(sr, m)
		case sectionCode:
			funcBodies, err = decodeCodeSection(sr, m)
		case sectionData:
			err = decodeDataSection(sr, m)
		default:
			return nil, malformed("invalid section id %d", id)
		}
		if err != nil {
			return nil, err
		}
		if !sr.eof() {
			return nil, malformed("section %d has trailing bytes", id)
		}
	}

	if len(funcBodies) != len(m.FuncTypeIndices) {
		return nil, malformed("function and code section counts disagree")
	}

	if err := validateModule(m); err != nil {
		return nil, err
	}

	ctx := &FuncValidationContext{
		Types:       m.Types,
		FuncTypes:   m.AllFuncTypes(),
		GlobalTypes: m.AllGlobalTypes(),
		HasTable:    m.HasTable(),
		HasMemory:   m.HasMemory(),
	}
	m.Codes = make([]*Code, len(funcBodies))
	for i, body := range funcBodies {
		ft := m.Types[m.FuncTypeIndices[i]]
		locals, insts, err := decodeLocalsAndBody(body)
		if err != nil {
			return nil, err
		}
		code, err := ValidateFunctionBody(ctx, &ft, locals, insts)
		if err != nil {
			return nil, err
		}
		m.Codes[i] = code
	}

	return m, nil
}

func decodeHeader(r *reader) error {
	var got [4]byte
	for i := range got {
		b, err := r.readByte()
		if err != nil {
			return err
		}
		got[i] = b
	}
	if got != magic {
		return malformed("invalid magic number")
	}
	vb, err := r.readBytes(4)
	if err != nil {
		return err
	}
	if v := LoadU32(vb, 0); v != binaryVersion {
		return malformed("invalid version %d", v)
	}
	return nil
}

func decodeValueType(r *reader) (ValueType, error) {
	b, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		return b, nil
	default:
		return 0, malformed("invalid value type %#x", b)
	}
}

func decodeLimits(r *reader) (Limits, error) {
	flag, err := r.readByte()
	if err != nil {
		return Limits{}, err
	}
	min, err := r.readU32()
	if err != nil {
		return Limits{}, err
	}
	l := Limits{Min: min}
	switch flag {
	case 0x00:
	case 0x01:
		max, err := r.readU32()
		if err != nil {
			return Limits{}, err
		}
		l.Max = &max
	default:
		return Limits{}, malformed("invalid limits flag %#x", flag)
	}
	return l, nil
}

func decodeConstExpr(r *reader) (ConstantExpression, error) {
	op, err := r.readByte()
	if err != nil {
		return ConstantExpression{}, err
	}
	var ce ConstantExpression
	switch op {
	case OpI32Const:
		v, err := r.readI32()
		if err != nil {
			return ConstantExpression{}, err
		}
		ce = ConstantExpression{Opcode: ConstExprI32Const, Value: uint64(uint32(v))}
	case OpI64Const:
		v, err := r.readI64()
		if err != nil {
			return ConstantExpression{}, err
		}
		ce = ConstantExpression{Opcode: ConstExprI64Const, Value: uint64(v)}
	case OpF32Const:
		b, err := r.readBytes(4)
		if err != nil {
			return ConstantExpression{}, err
		}
		ce = ConstantExpression{Opcode: ConstExprF32Const, Value: uint64(leUint32(b))}
	case OpF64Const:
		b, err := r.readBytes(8)
		if err != nil {
			return ConstantExpression{}, err
		}
		ce = ConstantExpression{Opcode: ConstExprF64Const, Value: leUint64(b)}
	case OpGlobalGet:
		idx, err := r.readU32()
		if err != nil {
			return ConstantExpression{}, err
		}
		ce = ConstantExpression{Opcode: ConstExprGlobalGet, Value: uint64(idx)}
	default:
		return ConstantExpression{}, malformed("invalid constant expression opcode %#x", op)
	}
	end, err := r.readByte()
	if err != nil {
		return ConstantExpression{}, err
	}
	if end != OpEnd {
		return ConstantExpression{}, malformed("constant expression missing end")
	}
	return ce, nil
}

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

func decodeTypeSection(r *reader, m *Module) error {
	count, err := r.readU32()
	if err != nil {
		return err
	}
	m.Types = make([]FuncType, count)
	for i := range m.Types {
		tag, err := r.readByte()
		if err != nil {
			return err
		}
		if tag != 0x60 {
			return malformed("invalid function type tag %#x", tag)
		}
		paramCount, err := r.readU32()
		if err != nil {
			return err
		}
		params := make([]ValueType, paramCount)
		for j := range params {
			if params[j], err = decodeValueType(r); err != nil {
				return err
			}
		}
		resultCount, err := r.readU32()
		if err != nil {
			return err
		}
		if resultCount > 1 {
			return malformed("function type with more than one result")
		}
		results := make([]ValueType, resultCount)
		for j := range results {
			if results[j], err = decodeValueType(r); err != nil {
				return err
			}
		}
		m.Types[i] = FuncType{Params: params, Results: results}
	}
	return nil
}

func decodeImportSection(r *reader, m *Module) error {
	count, err := r.readU32()
	if err != nil {
		return err
	}
	m.Imports = make([]Import, count)
	for i := range m.Imports {
		mod, err := r.readName()
		if err != nil {
			return err
		}
		name, err := r.readName()
		if err != nil {
			return err
		}
		kindByte, err := r.readByte()
		if err != nil {
			return err
		}
		imp := Import{Module: mod, Name: name, Kind: ImportKind(kindByte)}
		switch imp.Kind {
		case ImportKindFunc:
			if imp.FuncTypeIdx, err = r.readU32(); err != nil {
				return err
			}
			m.NumImportedFuncs++
		case ImportKindTable:
			tag, err := r.readByte()
			if err != nil {
				return err
			}
			if tag != FuncRefElemType {
				return malformed("invalid table element type %#x", tag)
			}
			if imp.TableLimits, err = decodeLimits(r); err != nil {
				return err
			}
			m.NumImportedTables++
		case ImportKindMemory:
			if imp.MemLimits, err = decodeLimits(r); err != nil {
				return err
			}
			m.NumImportedMemories++
		case ImportKindGlobal:
			vt, err := decodeValueType(r)
			if err != nil {
				return err
			}
			mutByte, err := r.readByte()
			if err != nil {
				return err
			}
			if mutByte > 1 {
				return malformed("invalid global mutability %#x", mutByte)
			}
			imp.GlobalType = GlobalType{ValType: vt, Mutable: mutByte == 1}
			m.NumImportedGlobals++
		default:
			return malformed("invalid import kind %#x", kindByte)
		}
		m.Imports[i] = imp
	}
	return nil
}

func decodeFunctionSection(r *reader, m *Module) error {
	count, err := r.readU32()
	if err != nil {
		return err
	}
	m.FuncTypeIndices = make([]TypeIdx, count)
	for i := range m.FuncTypeIndices {
		if m.FuncTypeIndices[i], err = r.readU32(); err != nil {
			return err
		}
	}
	return nil
}

func decodeTableSection(r *reader, m *Module) error {
	count, err := r.readU32()
	if err != nil {
		return err
	}
	m.Tables = make([]Table, count)
	for i := range m.Tables {
		tag, err := r.readByte()
		if err != nil {
			return err
		}
		if tag != FuncRefElemType {
			return malformed("invalid table element type %#x", tag)
		}
		limits, err := decodeLimits(r)
		if err != nil {
			return err
		}
		m.Tables[i] = Table{Limits: limits}
	}
	return nil
}

func decodeMemorySection(r *reader, m *Module) error {
	count, err := r.readU32()
	if err != nil {
		return err
	}
	m.Memories = make([]Memory, count)
	for i := range m.Memories {
		limits, err := decodeLimits(r)
		if err != nil {
			return err
		}
		m.Memories[i] = Memory{Limits: limits}
	}
	return nil
}

func decodeGlobalSection(r *reader, m *Module) error {
	count, err := r.readU32()
	if err != nil {
		return err
	}
	m.Globals = make([]Global, count)
	for i := range m.Globals {
		vt, err := decodeValueType(r)
		if err != nil {
			return err
		}
		mutByte, err := r.readByte()
		if err != nil {
			return err
		}
		if mutByte > 1 {
			return malformed("invalid global mutability %#x", mutByte)
		}
		init, err := decodeConstExpr(r)
		if err != nil {
			return err
		}
		m.Globals[i] = Global{Type: GlobalType{ValType: vt, Mutable: mutByte == 1}, Init: init}
	}
	return nil
}

func decodeExportSection(r *reader, m *Module) error {
	count, err := r.readU32()
	if err != nil {
		return err
	}
	m.Exports = make([]Export, count)
	for i := range m.Exports {
		name, err := r.readName()
		if err != nil {
			return err
		}
		kindByte, err := r.readByte()
		if err != nil {
			return err
		}
		idx, err := r.readU32()
		if err != nil {
			return err
		}
		m.Exports[i] = Export{Name: name, Kind: ImportKind(kindByte), Index: idx}
	}
	return nil
}

func decodeStartSection(r *reader, m *Module) error {
	idx, err := r.readU32()
	if err != nil {
		return err
	}
	m.StartFunc = int64(idx)
	return nil
}

func decodeElementSection(r *reader, m *Module) error {
	count, err := r.readU32()
	if err != nil {
		return err
	}
	m.Elements = make([]Element, count)
	for i := range m.Elements {
		tableIdx, err := r.readU32()
		if err != nil {
			return err
		}
		if tableIdx != 0 {
			return malformed("invalid table index %d in element segment", tableIdx)
		}
		offset, err := decodeConstExpr(r)
		if err != nil {
			return err
		}
		n, err := r.readU32()
		if err != nil {
			return err
		}
		init := make([]FuncIdx, n)
		for j := range init {
			if init[j], err = r.readU32(); err != nil {
				return err
			}
		}
		m.Elements[i] = Element{Offset: offset, Init: init}
	}
	return nil
}

func decodeDataSection(r *reader, m *Module) error {
	count, err := r.readU32()
	if err != nil {
		return err
	}
	m.Data = make([]Data, count)
	for i := range m.Data {
		memIdx, err := r.readU32()
		if err != nil {
			return err
		}
		if memIdx != 0 {
			return malformed("invalid memory index %d in data segment", memIdx)
		}
		offset, err := decodeConstExpr(r)
		if err != nil {
			return err
		}
		n, err := r.readU32()
		if err != nil {
			return err
		}
		init, err := r.readBytes(n)
		if err != nil {
			return err
		}
		m.Data[i] = Data{Offset: offset, Init: append([]byte{}, init...)}
	}
	return nil
}

// decodeCodeSection reads only the outer (size-prefixed) shape of each code
// entry; the inner locals+body bytes are deferred to decodeLocalsAndBody
// and ValidateFunctionBody once the whole module's index spaces are known.
func decodeCodeSection(r *reader, m *Module) ([][]byte, error) {
	count, err := r.readU32()
	if err != nil {
		return nil, err
	}
	bodies := make([][]byte, count)
	for i := range bodies {
		size, err := r.readU32()
		if err != nil {
			return nil, err
		}
		body, err := r.readBytes(size)
		if err != nil {
			return nil, err
		}
		bodies[i] = body
	}
	return bodies, nil
}

// decodeLocalsAndBody splits one code entry into its declared local types
// (expanded from the run-length-encoded local groups) and the raw
// instruction bytes that follow.
func decodeLocalsAndBody(entry []byte) (locals []ValueType, body []byte, err error) {
	r := newReader(entry)
	groupCount, err := r.readU32()
	if err != nil {
		return nil, nil, err
	}
	var total uint64
	type group struct {
		n  uint32
		vt ValueType
	}
	groups := make([]group, groupCount)
	for i := range groups {
		n, err := r.readU32()
		if err != nil {
			return nil, nil, err
		}
		vt, err := decodeValueType(r)
		if err != nil {
			return nil, nil, err
		}
		groups[i] = group{n: n, vt: vt}
		total += uint64(n)
	}
	if total > 1<<20 {
		return nil, nil, malformed("too many locals")
	}
	locals = make([]ValueType, 0, total)
	for _, g := range groups {
		for i := uint32(0); i < g.n; i++ {
			locals = append(locals, g.vt)
		}
	}
	return locals, r.remaining(), nil
}
