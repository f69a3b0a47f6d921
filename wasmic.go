// Package wasmic is a WebAssembly 1.0 (MVP) interpreter: it decodes and
// validates a binary module, instantiates it against a set of host
// imports, and calls its exported functions.
package wasmic

import (
	"github.com/wasmic/wasmic/internal/engine/interpreter"
	"github.com/wasmic/wasmic/internal/wasm"
)

// RuntimeConfig controls how modules are instantiated: the memory and
// call-stack ceilings enforced, and whether instruction metering is
// available. The zero value is ready to use and
// matches the implementation's own defaults. Each With* method returns a
// new, independent *RuntimeConfig rather than mutating the receiver, the
// same immutable-builder style as the teacher's own config.go.
type RuntimeConfig struct {
	memoryLimitPages uint32
	callStackLimit   int
	meteringEnabled  bool
}

// NewRuntimeConfig returns the default configuration.
func NewRuntimeConfig() *RuntimeConfig { return &RuntimeConfig{} }

func (c *RuntimeConfig) clone() *RuntimeConfig {
	ret := *c
	return &ret
}

// WithWasmCore1 is a no-op kept for API symmetry with a hypothetical
// WithWasmCore2: this module only ever implements the WebAssembly 1.0 (MVP)
// core specification, so there is no second version to select between.
func (c *RuntimeConfig) WithWasmCore1() *RuntimeConfig { return c.clone() }

// WithMemoryLimitPages reduces the maximum number of pages any instance's
// memory may declare or grow to, from the implementation's own default
// (internal/wasm.MaxMemoryPages, 4096 pages / 256 MiB). A value of 0 or
// greater than the default leaves the default in place; this can only
// lower the cap, never raise it.
func (c *RuntimeConfig) WithMemoryLimitPages(pages uint32) *RuntimeConfig {
	ret := c.clone()
	ret.memoryLimitPages = pages
	return ret
}

// WithCallStackLimit reduces the call-depth ceiling from the
// implementation's own default (interpreter.DefaultCallStackCeiling, 2048),
// enforced uniformly across wasm-to-wasm calls and calls that cross into a
// host function and back. A value of 0 or greater than the default leaves
// the default in place.
func (c *RuntimeConfig) WithCallStackLimit(limit int) *RuntimeConfig {
	ret := c.clone()
	ret.callStackLimit = limit
	return ret
}

// WithInstructionMetering enables Instance.CallExportedMetered on instances
// built with this config. Metering is off by default: the execution loop
// pays no per-instruction overhead unless a caller opts in.
func (c *RuntimeConfig) WithInstructionMetering(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.meteringEnabled = enabled
	return ret
}

// Runtime decodes, validates, and instantiates WebAssembly modules.
type Runtime struct {
	config *RuntimeConfig
}

// NewRuntime returns a Runtime using the default configuration.
func NewRuntime() *Runtime { return NewRuntimeWithConfig(NewRuntimeConfig()) }

// NewRuntimeWithConfig returns a Runtime using cfg.
func NewRuntimeWithConfig(cfg *RuntimeConfig) *Runtime { return &Runtime{config: cfg} }

// CompiledModule is a decoded and statically validated module, ready to be
// instantiated any number of times.
type CompiledModule struct {
	module *wasm.Module
}

// CompileModule decodes and validates a binary-encoded module, reporting a
// *wasm.MalformedError or *wasm.InvalidError for a binary that fails
// either check.
func (r *Runtime) CompileModule(binary []byte) (*CompiledModule, error) {
	m, err := wasm.DecodeModule(binary)
	if err != nil {
		return nil, err
	}
	return &CompiledModule{module: m}, nil
}

// ExportedFunc looks up a function export by name, returning its index
// into the module's function index space without needing an Instance. Use
// this to validate a module exports what a host expects before paying the
// cost of resolving imports and instantiating it.
func (c *CompiledModule) ExportedFunc(name string) (wasm.FuncIdx, bool) {
	return c.module.ExportedFunc(name)
}

// ResolveImportedFunctions matches candidate host functions against c's
// function imports by (module, name), in import declaration order. It's a
// convenience for embedders that already have a flat list of host
// functions instead of writing a custom ImportProvider.
func (c *CompiledModule) ResolveImportedFunctions(candidates []interpreter.ImportedFunctionSpec) ([]*HostFunction, error) {
	return interpreter.ResolveImportedFunctions(c.module, candidates)
}

// ImportedFunctionSpec names one candidate host function available to
// satisfy a module's function imports, for use with ResolveImportedFunctions.
type ImportedFunctionSpec = interpreter.ImportedFunctionSpec

// ImportProvider resolves the imports a CompiledModule declares. It is the
// public alias of the interpreter's own resolution interface, so host
// embedders never import internal/engine/interpreter directly.
type ImportProvider = interpreter.ImportProvider

// HostFunction is a function implemented in Go and installed as an import.
// Params and results are encoded per EncodeI32/EncodeI64/EncodeF32/EncodeF64
// and their Decode counterparts in the api subpackage.
type HostFunction = interpreter.HostFunction

// TableElem is one funcref table slot, as resolved by an imported table.
type TableElem = interpreter.TableElem

// Instance is an instantiated module, ready to call its exports.
type Instance struct {
	inst *interpreter.Instance
}

// Instantiate runs the instantiation procedure against imports: resolving
// every import, allocating table/memory/globals, validating and committing
// element/data segments, and running the start function if declared.
func (r *Runtime) Instantiate(compiled *CompiledModule, imports ImportProvider) (*Instance, error) {
	opts := interpreter.InstantiateOptions{
		MemoryLimitPages: r.config.memoryLimitPages,
		CallStackLimit:   r.config.callStackLimit,
		MeteringEnabled:  r.config.meteringEnabled,
	}
	inst, err := interpreter.Instantiate(compiled.module, imports, opts)
	if err != nil {
		return nil, err
	}
	return &Instance{inst: inst}, nil
}

// ExportedFunction looks up an exported function by name, returning a
// HostFunction-shaped value callable with already-encoded uint64 operands.
func (i *Instance) ExportedFunction(name string) (*HostFunction, bool) {
	return i.inst.ExportedFunction(name)
}

// CallExported invokes the named exported function with already-encoded
// uint64 parameters, returning its already-encoded uint64 results. A
// trapping execution returns a non-nil error that unwraps to *Trap.
func (i *Instance) CallExported(name string, params []uint64) ([]uint64, error) {
	return i.inst.CallExported(name, params)
}

// CallExportedMetered is CallExported bounded by an instruction-metering
// budget: it requires the Runtime that instantiated i to have been built
// with RuntimeConfig.WithInstructionMetering(true), and returns the ticks
// left unspent (0 if execution trapped on exhaustion).
func (i *Instance) CallExportedMetered(name string, ticks int64, params []uint64) ([]uint64, int64, error) {
	return i.inst.CallExportedMetered(name, ticks, params)
}

// ExportedGlobal reads the current value of an exported global.
func (i *Instance) ExportedGlobal(name string) (wasm.GlobalType, uint64, bool) {
	return i.inst.ExportedGlobal(name)
}

// ExportedTable looks up a table export by name, returning its element
// slots and declared maximum size.
func (i *Instance) ExportedTable(name string) ([]TableElem, *uint32, bool) {
	return i.inst.ExportedTable(name)
}

// ExportedMemory looks up the memory export by name.
func (i *Instance) ExportedMemory(name string) ([]byte, bool) {
	return i.inst.ExportedMemory(name)
}

// Memory returns the instance's linear memory, or nil if it declares none,
// regardless of whether or under what name it was exported.
func (i *Instance) Memory() []byte { return i.inst.Memory() }

// Trap is the error returned by CallExported when execution traps rather
// than completing normally.
type Trap = interpreter.Trap

// TrapCode identifies why a Trap occurred.
type TrapCode = interpreter.TrapCode
