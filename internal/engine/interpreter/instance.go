package interpreter

import (
	"fmt"

	"github.com/wasmic/wasmic/internal/wasm"
)

const (
	pageSize   = 65536
	maxPages   = 4096 // 256 MiB hard cap, default maximum memory size
	maxTableSz = 1 << 32
)

// HostFunction is a function implemented in Go and installed as an import.
// params/results are encoded per api.Encode*/Decode*. caller gives the
// function access to the importing instance's memory and exports, and
// carries the call-tree depth the host function is running at, so a host
// function that calls back into the guest can continue the same depth
// count via Caller.CallExported.
type HostFunction struct {
	Type wasm.FuncType
	Func func(caller *Caller, params []uint64) []uint64
}

// Caller is passed to a HostFunction, giving it access to the instance that
// imported it, the depth that call is running at, and its metering budget
// (nil if metering is disabled).
type Caller struct {
	inst  *Instance
	depth int
	ticks *int64
}

// Memory returns the calling instance's linear memory, or nil if it
// declares none.
func (c *Caller) Memory() []byte { return c.inst.memory }

// CallExported invokes an export of the calling instance, continuing the
// same call-tree depth and metering budget this host function is running
// at rather than restarting them. This is what a host function must use to
// call back into the guest, so the call-stack limit and instruction
// metering are enforced across the host/guest boundary exactly as within a
// pure-wasm call chain.
func (c *Caller) CallExported(name string, params []uint64) (results []uint64, err error) {
	f, ok := c.inst.exportedFuncs[name]
	if !ok {
		return nil, instErr("no exported function named %q", name)
	}
	return c.inst.callFuncAt(f, params, c.depth, c.ticks)
}

// function is either a module-defined function (Code != nil, on Owner) or
// an imported host function (Host != nil, Owner is the importing instance).
type function struct {
	Type  wasm.FuncType
	Code  *wasm.Code
	Owner *Instance
	Host  func(caller *Caller, params []uint64) []uint64
}

// global is one mutable-or-not storage cell, holding its uint64 bit
// pattern regardless of value type (decoded via api.Decode* on read).
type global struct {
	Type  wasm.GlobalType
	Value uint64
}

// TableElem is one funcref table slot: nil until initialized by an element
// segment (or left uninitialized, trapping on call_indirect).
type TableElem struct {
	fn *function
}

// Instance is an instantiated module: resolved imports plus its own
// defined functions, table, memory, and globals, ready to Call an exported
// function. Escaping a *function value (e.g. into an imported table slot
// of a different instance, per the foreign-table edge case) keeps this
// Instance alive via the Owner field's ordinary Go reference, standing in
// for the reference counting a non-GC'd host would need.
type Instance struct {
	module *wasm.Module

	funcs   []*function // combined import+defined function index space
	globals []*global
	table   []TableElem
	tableMax *uint32
	memory   []byte
	memoryMax *uint32

	exportedFuncs map[string]*function

	callStackLimit  int  // 0 means DefaultCallStackCeiling
	memoryLimit     uint32 // pages; effective cap, always <= maxPages
	meteringEnabled bool
}

// ImportProvider resolves one (module, name) import to its concrete value.
// Instantiate calls it once per import entry, grouped by kind: every global
// import first, then the table and memory imports, then the function
// imports, each group in section order.
type ImportProvider interface {
	ResolveFunc(module, name string, sig wasm.FuncType) (*HostFunction, error)
	ResolveGlobal(module, name string, t wasm.GlobalType) (uint64, error)
	ResolveTable(module, name string, limits wasm.Limits) ([]TableElem, *uint32, error)
	ResolveMemory(module, name string, limits wasm.Limits) ([]byte, *uint32, error)
}

// InstantiationError reports a failure in the instantiation procedure
// itself (import resolution, limits mismatch, out-of-bounds segment)
// rather than in the module's own static validity.
type InstantiationError struct{ Msg string }

func (e *InstantiationError) Error() string { return "instantiation: " + e.Msg }

func instErr(format string, args ...interface{}) *InstantiationError {
	return &InstantiationError{Msg: fmt.Sprintf(format, args...)}
}

// InstantiateOptions customizes the limits an Instance enforces, sourced
// from the RuntimeConfig used to build it. The zero value matches the
// implementation's own defaults: MemoryLimitPages of 0 means maxPages,
// CallStackLimit of 0 means DefaultCallStackCeiling, and metering disabled.
// Like the teacher's WithMemoryMaxPages, a limit can only lower the
// implementation's own cap, never raise it.
type InstantiateOptions struct {
	MemoryLimitPages uint32
	CallStackLimit   int
	MeteringEnabled  bool
}

// Instantiate runs the instantiation procedure: resolve imports, allocate
// the table/memory/globals, verify every data/element segment is in
// bounds before mutating anything, commit segments in section order, wire
// table funcrefs, and finally invoke the start function if one is
// declared.
func Instantiate(m *wasm.Module, imports ImportProvider, opts InstantiateOptions) (*Instance, error) {
	memLimit := uint32(maxPages)
	if opts.MemoryLimitPages != 0 && opts.MemoryLimitPages < memLimit {
		memLimit = opts.MemoryLimitPages
	}
	inst := &Instance{
		module:          m,
		exportedFuncs:   map[string]*function{},
		callStackLimit:  opts.CallStackLimit,
		memoryLimit:     memLimit,
		meteringEnabled: opts.MeteringEnabled,
	}

	if err := resolveImportedGlobals(m, imports, inst); err != nil {
		return nil, err
	}
	for _, g := range m.Globals {
		v, err := evalConstExpr(inst, g.Init)
		if err != nil {
			return nil, err
		}
		inst.globals = append(inst.globals, &global{Type: g.Type, Value: v})
	}

	if err := resolveImportedTableAndMemory(m, imports, inst); err != nil {
		return nil, err
	}
	for _, t := range m.Tables {
		sz := t.Limits.Min
		if uint64(sz) > maxTableSz {
			return nil, instErr("table minimum exceeds implementation limit")
		}
		inst.table = make([]TableElem, sz)
		inst.tableMax = t.Limits.Max
	}
	for _, mem := range m.Memories {
		if mem.Limits.Min > inst.memoryLimit {
			return nil, instErr("memory minimum exceeds implementation limit")
		}
		inst.memory = make([]byte, uint64(mem.Limits.Min)*pageSize)
		inst.memoryMax = mem.Limits.Max
	}

	if err := resolveImportedFunctions(m, imports, inst); err != nil {
		return nil, err
	}
	for i, code := range m.Codes {
		ft := m.Types[m.FuncTypeIndices[i]]
		inst.funcs = append(inst.funcs, &function{Type: ft, Code: code, Owner: inst})
	}

	// Bounds-check every segment before committing any of them: a
	// later segment failing must not leave an earlier one partially
	// applied to live, observable state.
	type resolvedElem struct {
		offset int
		fns    []wasm.FuncIdx
	}
	var elems []resolvedElem
	for _, el := range m.Elements {
		offVal, err := evalConstExpr(inst, el.Offset)
		if err != nil {
			return nil, err
		}
		off := int(int32(offVal))
		if off < 0 || off+len(el.Init) > len(inst.table) {
			return nil, instErr("element segment out of bounds")
		}
		elems = append(elems, resolvedElem{offset: off, fns: el.Init})
	}
	type resolvedData struct {
		offset int
		bytes  []byte
	}
	var datas []resolvedData
	for _, d := range m.Data {
		offVal, err := evalConstExpr(inst, d.Offset)
		if err != nil {
			return nil, err
		}
		off := int(int32(offVal))
		if off < 0 || off+len(d.Init) > len(inst.memory) {
			return nil, instErr("data segment out of bounds")
		}
		datas = append(datas, resolvedData{offset: off, bytes: d.Init})
	}

	for _, e := range elems {
		for i, fi := range e.fns {
			inst.table[e.offset+i] = TableElem{fn: inst.funcs[fi]}
		}
	}
	for _, d := range datas {
		copy(inst.memory[d.offset:], d.bytes)
	}

	for _, exp := range m.Exports {
		if exp.Kind == wasm.ImportKindFunc {
			inst.exportedFuncs[exp.Name] = inst.funcs[exp.Index]
		}
	}

	if m.StartFunc >= 0 {
		if _, err := inst.callFunc(inst.funcs[m.StartFunc], nil); err != nil {
			return nil, err
		}
	}

	return inst, nil
}

func resolveImportedGlobals(m *wasm.Module, imports ImportProvider, inst *Instance) error {
	for _, imp := range m.Imports {
		if imp.Kind != wasm.ImportKindGlobal {
			continue
		}
		v, err := imports.ResolveGlobal(imp.Module, imp.Name, imp.GlobalType)
		if err != nil {
			return instErr("resolving global import %s.%s: %s", imp.Module, imp.Name, err)
		}
		inst.globals = append(inst.globals, &global{Type: imp.GlobalType, Value: v})
	}
	return nil
}

func resolveImportedTableAndMemory(m *wasm.Module, imports ImportProvider, inst *Instance) error {
	for _, imp := range m.Imports {
		switch imp.Kind {
		case wasm.ImportKindTable:
			tbl, max, err := imports.ResolveTable(imp.Module, imp.Name, imp.TableLimits)
			if err != nil {
				return instErr("resolving table import %s.%s: %s", imp.Module, imp.Name, err)
			}
			if !imp.TableLimits.ValidAgainst(wasm.Limits{Min: uint32(len(tbl)), Max: max}) {
				return instErr("table import %s.%s: limits mismatch", imp.Module, imp.Name)
			}
			inst.table = tbl
			inst.tableMax = max
		case wasm.ImportKindMemory:
			mem, max, err := imports.ResolveMemory(imp.Module, imp.Name, imp.MemLimits)
			if err != nil {
				return instErr("resolving memory import %s.%s: %s", imp.Module, imp.Name, err)
			}
			if !imp.MemLimits.ValidAgainst(wasm.Limits{Min: uint32(len(mem) / pageSize), Max: max}) {
				return instErr("memory import %s.%s: limits mismatch", imp.Module, imp.Name)
			}
			inst.memory = mem
			inst.memoryMax = max
		}
	}
	return nil
}

func resolveImportedFunctions(m *wasm.Module, imports ImportProvider, inst *Instance) error {
	for _, imp := range m.Imports {
		if imp.Kind != wasm.ImportKindFunc {
			continue
		}
		sig := m.Types[imp.FuncTypeIdx]
		hf, err := imports.ResolveFunc(imp.Module, imp.Name, sig)
		if err != nil {
			return instErr("resolving function import %s.%s: %s", imp.Module, imp.Name, err)
		}
		if !hf.Type.EqualsSignature(&sig) {
			return instErr("function import %s.%s: signature mismatch", imp.Module, imp.Name)
		}
		inst.funcs = append(inst.funcs, &function{Type: sig, Host: hf.Func, Owner: inst})
	}
	return nil
}

// ImportedFunctionSpec names one candidate host function available to
// satisfy a module's function imports, for use with ResolveImportedFunctions.
type ImportedFunctionSpec struct {
	Module string
	Name   string
	Func   *HostFunction
}

// ResolveImportedFunctions matches candidates against m's function imports
// by (module, name) in import declaration order, the same matching
// find_exported_function uses by name alone. It's a convenience for
// embedders that already have a flat list of host functions instead of an
// ImportProvider: the result is ready to drive an ImportProvider whose
// ResolveFunc looks up by position. An import with no matching candidate,
// or a candidate whose signature doesn't match the import's declared type,
// is reported by name.
func ResolveImportedFunctions(m *wasm.Module, candidates []ImportedFunctionSpec) ([]*HostFunction, error) {
	var out []*HostFunction
	for _, imp := range m.Imports {
		if imp.Kind != wasm.ImportKindFunc {
			continue
		}
		sig := m.Types[imp.FuncTypeIdx]
		var match *HostFunction
		for _, c := range candidates {
			if c.Module == imp.Module && c.Name == imp.Name {
				match = c.Func
				break
			}
		}
		if match == nil {
			return nil, instErr("no candidate for function import %s.%s", imp.Module, imp.Name)
		}
		if !match.Type.EqualsSignature(&sig) {
			return nil, instErr("function import %s.%s: signature mismatch", imp.Module, imp.Name)
		}
		out = append(out, match)
	}
	return out, nil
}

// evalConstExpr evaluates a ConstantExpression against inst's already
// resolved imported globals (the only kind a constant expression may
// reference).
func evalConstExpr(inst *Instance, ce wasm.ConstantExpression) (uint64, error) {
	switch ce.Opcode {
	case wasm.ConstExprI32Const, wasm.ConstExprI64Const, wasm.ConstExprF32Const, wasm.ConstExprF64Const:
		return ce.Value, nil
	case wasm.ConstExprGlobalGet:
		idx := int(ce.Value)
		if idx >= len(inst.globals) {
			return 0, instErr("invalid global index in constant expression")
		}
		return inst.globals[idx].Value, nil
	default:
		return 0, instErr("invalid constant expression")
	}
}

// ExportedFunction looks up a function export by name.
func (inst *Instance) ExportedFunction(name string) (*HostFunction, bool) {
	f, ok := inst.exportedFuncs[name]
	if !ok {
		return nil, false
	}
	return &HostFunction{Type: f.Type, Func: func(_ *Caller, params []uint64) []uint64 {
		results, err := inst.callFunc(f, params)
		if err != nil {
			panic(err)
		}
		return results
	}}, true
}

// CallExported invokes the named exported function with already-encoded
// uint64 parameters and returns its already-encoded uint64 results, or a
// *Trap via err if execution trapped.
func (inst *Instance) CallExported(name string, params []uint64) (results []uint64, err error) {
	f, ok := inst.exportedFuncs[name]
	if !ok {
		return nil, instErr("no exported function named %q", name)
	}
	return inst.callFunc(f, params)
}

// CallExportedMetered invokes the named exported function bounded by an
// instruction-metering budget: each opcode dispatch, in this call and any
// nested call it makes (including calls that cross into a host function
// and back via Caller), consumes one tick, and reaching zero before a
// dispatch traps with TrapMeteringExhausted. It reports ticksRemaining
// regardless of whether execution trapped, so a caller can resume with a
// fresh budget in a coroutine-style retry loop. Returns an
// *InstantiationError if this Instance wasn't built with metering enabled.
func (inst *Instance) CallExportedMetered(name string, ticks int64, params []uint64) (results []uint64, ticksRemaining int64, err error) {
	if !inst.meteringEnabled {
		return nil, ticks, instErr("metering is not enabled for this instance")
	}
	f, ok := inst.exportedFuncs[name]
	if !ok {
		return nil, ticks, instErr("no exported function named %q", name)
	}
	remaining := ticks
	results, err = inst.callFuncAt(f, params, 0, &remaining)
	return results, remaining, err
}

// ExportedGlobal reads the current value of a global export.
func (inst *Instance) ExportedGlobal(name string) (wasm.GlobalType, uint64, bool) {
	for _, e := range inst.module.Exports {
		if e.Kind == wasm.ImportKindGlobal && e.Name == name {
			g := inst.globals[e.Index]
			return g.Type, g.Value, true
		}
	}
	return wasm.GlobalType{}, 0, false
}

// Memory returns the instance's linear memory (nil if it has none), for
// host functions that need direct access regardless of whether or how it
// was exported.
func (inst *Instance) Memory() []byte { return inst.memory }

// ExportedMemory looks up the memory export by name, mirroring
// ExportedFunction/ExportedGlobal rather than assuming the instance has
// exactly one memory under an unchecked name.
func (inst *Instance) ExportedMemory(name string) ([]byte, bool) {
	for _, e := range inst.module.Exports {
		if e.Kind == wasm.ImportKindMemory && e.Name == name {
			return inst.memory, true
		}
	}
	return nil, false
}

// ExportedTable looks up the table export by name, returning its element
// slots and declared maximum size.
func (inst *Instance) ExportedTable(name string) ([]TableElem, *uint32, bool) {
	for _, e := range inst.module.Exports {
		if e.Kind == wasm.ImportKindTable && e.Name == name {
			return inst.table, inst.tableMax, true
		}
	}
	return nil, nil, false
}
