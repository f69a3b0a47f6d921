package wasm

// Module is the fully parsed and validated representation of one
// WebAssembly 1.0 binary: every section's contents plus, for each defined
// function, its pre-processed Code. It holds no runtime state (no memory
// contents beyond the data segments as declared, no table contents beyond
// element segments) — that lives in internal/engine/interpreter.Instance.
type Module struct {
	Types   []FuncType
	Imports []Import

	// FuncTypeIndices holds, for each function DEFINED in this module (not
	// imported), the index into Types describing its signature. Parallel
	// to Codes.
	FuncTypeIndices []TypeIdx
	Codes           []*Code

	Tables  []Table
	Memories []Memory
	Globals []Global

	Exports []Export

	// StartFunc is the function index to invoke at instantiation, or -1 if
	// the module has no start section.
	StartFunc int64

	Elements []Element
	Data     []Data

	// NumImportedFuncs/NumImportedGlobals/NumImportedTables/NumImportedMemories
	// record the length of the import-section prefix of the corresponding
	// combined index space (imports are always indexed before
	// module-defined entries).
	NumImportedFuncs    int
	NumImportedGlobals  int
	NumImportedTables   int
	NumImportedMemories int
}

// NumFuncs returns the size of the combined (imports + defined) function
// index space.
func (m *Module) NumFuncs() int { return m.NumImportedFuncs + len(m.FuncTypeIndices) }

// FuncTypeOf returns the FuncType of the funcIdx'th function in the
// combined function index space.
func (m *Module) FuncTypeOf(funcIdx FuncIdx) FuncType {
	if int(funcIdx) < m.NumImportedFuncs {
		return m.Types[m.Imports[m.importIndexOfFunc(int(funcIdx))].FuncTypeIdx]
	}
	return m.Types[m.FuncTypeIndices[int(funcIdx)-m.NumImportedFuncs]]
}

// importIndexOfFunc maps a position within the function-import subsequence
// back to its entry in Imports.
func (m *Module) importIndexOfFunc(funcImportPos int) int {
	seen := 0
	for i, imp := range m.Imports {
		if imp.Kind == ImportKindFunc {
			if seen == funcImportPos {
				return i
			}
			seen++
		}
	}
	return -1
}

// GlobalTypeOf returns the GlobalType of the idx'th global in the
// combined global index space.
func (m *Module) GlobalTypeOf(idx GlobalIdx) GlobalType {
	if int(idx) < m.NumImportedGlobals {
		count := 0
		for _, imp := range m.Imports {
			if imp.Kind == ImportKindGlobal {
				if count == int(idx) {
					return imp.GlobalType
				}
				count++
			}
		}
	}
	return m.Globals[int(idx)-m.NumImportedGlobals].Type
}

// HasTable reports whether the combined (imports + defined) table index
// space is non-empty. Wasm 1.0 permits at most one table total.
func (m *Module) HasTable() bool { return m.NumImportedTables+len(m.Tables) > 0 }

// HasMemory reports whether the combined memory index space is non-empty.
// Wasm 1.0 permits at most one memory total.
func (m *Module) HasMemory() bool { return m.NumImportedMemories+len(m.Memories) > 0 }

// AllFuncTypes returns, for every function in the combined index space in
// order, its FuncType — the shape FuncValidationContext.FuncTypes expects.
func (m *Module) AllFuncTypes() []FuncType {
	out := make([]FuncType, 0, m.NumFuncs())
	for _, imp := range m.Imports {
		if imp.Kind == ImportKindFunc {
			out = append(out, m.Types[imp.FuncTypeIdx])
		}
	}
	for _, ti := range m.FuncTypeIndices {
		out = append(out, m.Types[ti])
	}
	return out
}

// AllGlobalTypes returns, for every global in the combined index space in
// order, its GlobalType.
func (m *Module) AllGlobalTypes() []GlobalType {
	out := make([]GlobalType, 0, m.NumImportedGlobals+len(m.Globals))
	for _, imp := range m.Imports {
		if imp.Kind == ImportKindGlobal {
			out = append(out, imp.GlobalType)
		}
	}
	for _, g := range m.Globals {
		out = append(out, g.Type)
	}
	return out
}

// ExportedFunc looks up a function export by name.
func (m *Module) ExportedFunc(name string) (FuncIdx, bool) {
	for _, e := range m.Exports {
		if e.Kind == ImportKindFunc && e.Name == name {
			return e.Index, true
		}
	}
	return 0, false
}
