package wasm

// MaxMemoryPages is the hard cap on declared memory size: 4096 pages of
// 64 KiB each, 256 MiB total. A module declaring a larger minimum or
// maximum is rejected at validation time, before any instance is ever
// allocated against it.
const MaxMemoryPages = 4096

// validateModule cross-checks everything that can only be known once every
// section has been decoded: index bounds into the type/function/table/
// memory/global spaces, the single-table/single-memory limit, constant
// expression legality, export uniqueness, and the start function's
// signature. It runs before any function body is parsed, since function
// bodies themselves need the fully resolved function/global index spaces.
func validateModule(m *Module) error {
	for _, ft := range m.FuncTypeIndices {
		if int(ft) >= len(m.Types) {
			return invalid("invalid type index %d in function section", ft)
		}
	}
	for _, imp := range m.Imports {
		if imp.Kind == ImportKindFunc && int(imp.FuncTypeIdx) >= len(m.Types) {
			return invalid("invalid type index %d in import", imp.FuncTypeIdx)
		}
	}

	if m.NumImportedTables+len(m.Tables) > 1 {
		return invalid("at most one table is allowed")
	}
	if m.NumImportedMemories+len(m.Memories) > 1 {
		return invalid("at most one memory is allowed")
	}
	for _, mem := range m.Memories {
		if err := validateMemoryLimits(mem.Limits); err != nil {
			return err
		}
	}
	for _, imp := range m.Imports {
		if imp.Kind == ImportKindMemory {
			if err := validateMemoryLimits(imp.MemLimits); err != nil {
				return err
			}
		}
	}

	importedGlobalTypes := make([]GlobalType, 0, m.NumImportedGlobals)
	for _, imp := range m.Imports {
		if imp.Kind == ImportKindGlobal {
			importedGlobalTypes = append(importedGlobalTypes, imp.GlobalType)
		}
	}
	for i, g := range m.Globals {
		if err := validateConstExprType(g.Init, g.Type.ValType, importedGlobalTypes); err != nil {
			return invalid("global %d: %s", i, err)
		}
	}

	if len(m.Elements) > 0 && !m.HasTable() {
		return invalid("element segment without a table")
	}
	numFuncs := m.NumFuncs()
	for i, el := range m.Elements {
		if err := validateConstExprType(el.Offset, ValueTypeI32, importedGlobalTypes); err != nil {
			return invalid("element %d: %s", i, err)
		}
		for _, fi := range el.Init {
			if int(fi) >= numFuncs {
				return invalid("element %d: invalid function index %d", i, fi)
			}
		}
	}

	if len(m.Data) > 0 && !m.HasMemory() {
		return invalid("data segment without a memory")
	}
	for i, d := range m.Data {
		if err := validateConstExprType(d.Offset, ValueTypeI32, importedGlobalTypes); err != nil {
			return invalid("data %d: %s", i, err)
		}
	}

	if m.StartFunc >= 0 {
		if int(m.StartFunc) >= numFuncs {
			return invalid("invalid start function index %d", m.StartFunc)
		}
		ft := m.FuncTypeOf(FuncIdx(m.StartFunc))
		if len(ft.Params) != 0 || len(ft.Results) != 0 {
			return invalid("start function must take no parameters and return no results")
		}
	}

	seenExportNames := make(map[string]struct{}, len(m.Exports))
	for _, e := range m.Exports {
		if _, dup := seenExportNames[e.Name]; dup {
			return invalid("duplicate export name %q", e.Name)
		}
		seenExportNames[e.Name] = struct{}{}
		switch e.Kind {
		case ImportKindFunc:
			if int(e.Index) >= numFuncs {
				return invalid("export %q: invalid function index %d", e.Name, e.Index)
			}
		case ImportKindTable:
			if int(e.Index) >= m.NumImportedTables+len(m.Tables) {
				return invalid("export %q: invalid table index %d", e.Name, e.Index)
			}
		case ImportKindMemory:
			if int(e.Index) >= m.NumImportedMemories+len(m.Memories) {
				return invalid("export %q: invalid memory index %d", e.Name, e.Index)
			}
		case ImportKindGlobal:
			if int(e.Index) >= m.NumImportedGlobals+len(m.Globals) {
				return invalid("export %q: invalid global index %d", e.Name, e.Index)
			}
		default:
			return invalid("export %q: invalid kind", e.Name)
		}
	}

	return nil
}

// validateMemoryLimits rejects a declared or imported memory whose minimum
// or maximum exceeds MaxMemoryPages.
func validateMemoryLimits(l Limits) error {
	if l.Min > MaxMemoryPages {
		return invalid("memory minimum %d pages exceeds the %d page limit", l.Min, MaxMemoryPages)
	}
	if l.Max != nil && *l.Max > MaxMemoryPages {
		return invalid("memory maximum %d pages exceeds the %d page limit", *l.Max, MaxMemoryPages)
	}
	return nil
}

// validateConstExprType checks that a constant expression is legal (only
// the four *.const opcodes or a global.get of an imported immutable
// global) and yields wantType.
func validateConstExprType(ce ConstantExpression, wantType ValueType, importedGlobals []GlobalType) error {
	var actual ValueType
	switch ce.Opcode {
	case ConstExprI32Const:
		actual = ValueTypeI32
	case ConstExprI64Const:
		actual = ValueTypeI64
	case ConstExprF32Const:
		actual = ValueTypeF32
	case ConstExprF64Const:
		actual = ValueTypeF64
	case ConstExprGlobalGet:
		idx := int(ce.Value)
		if idx >= len(importedGlobals) {
			return invalid("global.get in constant expression must reference an imported global")
		}
		gt := importedGlobals[idx]
		if gt.Mutable {
			return invalid("global.get in constant expression must reference an immutable global")
		}
		actual = gt.ValType
	default:
		return invalid("invalid constant expression")
	}
	if actual != wantType {
		return invalid("constant expression type mismatch: expected %s, got %s", typeName(wantType), typeName(actual))
	}
	return nil
}
