package interpreter_test

import (
	"testing"

	"github.com/wasmic/wasmic/api"
	"github.com/wasmic/wasmic/internal/engine/interpreter"
	"github.com/wasmic/wasmic/internal/testing/require"
	"github.com/wasmic/wasmic/internal/testing/wasmtest"
	"github.com/wasmic/wasmic/internal/wasm"
)

// noImports is an ImportProvider that resolves nothing, for modules that
// declare no imports.
type noImports struct{}

func (noImports) ResolveFunc(module, name string, sig wasm.FuncType) (*interpreter.HostFunction, error) {
	return nil, instErr(module, name)
}
func (noImports) ResolveGlobal(module, name string, t wasm.GlobalType) (uint64, error) {
	return 0, instErr(module, name)
}
func (noImports) ResolveTable(module, name string, limits wasm.Limits) ([]interpreter.TableElem, *uint32, error) {
	return nil, nil, instErr(module, name)
}
func (noImports) ResolveMemory(module, name string, limits wasm.Limits) ([]byte, *uint32, error) {
	return nil, nil, instErr(module, name)
}

func instErr(module, name string) error {
	return &interpreter.InstantiationError{Msg: "no import " + module + "." + name}
}

// addModule builds add(i32, i32) -> i32 { local.get 0; local.get 1; i32.add }
// exported as "add".
func addModule() []byte {
	b := wasmtest.New()
	ft := wasmtest.FuncType([]byte{0x7f, 0x7f}, []byte{0x7f})
	b.Section(1, wasmtest.Vec(1, ft))
	b.Section(3, wasmtest.Vec(1, wasmtest.ULEB128(0)))
	exportEntry := append(wasmtest.Name("add"), 0x00)
	exportEntry = append(exportEntry, wasmtest.ULEB128(0)...)
	b.Section(7, wasmtest.Vec(1, exportEntry))
	body := []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}
	entry := append(wasmtest.ULEB128(0), body...)
	entryWithSize := append(wasmtest.ULEB128(uint64(len(entry))), entry...)
	b.Section(10, wasmtest.Vec(1, entryWithSize))
	return b.Bytes()
}

func TestCallExported_add(t *testing.T) {
	m, err := wasm.DecodeModule(addModule())
	require.NoError(t, err)
	inst, err := interpreter.Instantiate(m, noImports{}, interpreter.InstantiateOptions{})
	require.NoError(t, err)

	results, err := inst.CallExported("add", []uint64{api.EncodeI32(2), api.EncodeI32(3)})
	require.NoError(t, err)
	require.Equal(t, 1, len(results))
	require.Equal(t, int32(5), int32(uint32(results[0])))
}

// divModule builds divS(i32, i32) -> i32 { local.get 0; local.get 1; i32.div_s }
// exported as "divS", to exercise the integer-divide-by-zero trap.
func divModule() []byte {
	b := wasmtest.New()
	ft := wasmtest.FuncType([]byte{0x7f, 0x7f}, []byte{0x7f})
	b.Section(1, wasmtest.Vec(1, ft))
	b.Section(3, wasmtest.Vec(1, wasmtest.ULEB128(0)))
	exportEntry := append(wasmtest.Name("divS"), 0x00)
	exportEntry = append(exportEntry, wasmtest.ULEB128(0)...)
	b.Section(7, wasmtest.Vec(1, exportEntry))
	body := []byte{0x20, 0x00, 0x20, 0x01, 0x6d, 0x0b} // i32.div_s
	entry := append(wasmtest.ULEB128(0), body...)
	entryWithSize := append(wasmtest.ULEB128(uint64(len(entry))), entry...)
	b.Section(10, wasmtest.Vec(1, entryWithSize))
	return b.Bytes()
}

func TestCallExported_divByZeroTraps(t *testing.T) {
	m, err := wasm.DecodeModule(divModule())
	require.NoError(t, err)
	inst, err := interpreter.Instantiate(m, noImports{}, interpreter.InstantiateOptions{})
	require.NoError(t, err)

	_, err = inst.CallExported("divS", []uint64{api.EncodeI32(7), api.EncodeI32(0)})
	require.Error(t, err)
	trap, ok := err.(*interpreter.Trap)
	require.True(t, ok)
	require.Equal(t, interpreter.TrapIntegerDivideByZero, trap.Code)
}

// blockBranchModule builds a function using block/br to exercise the
// flattened control-flow encoding: it returns 42 via an early branch out
// of a block, skipping a second, unreachable constant push.
//
//	block (result i32)
//	  i32.const 42
//	  br 0
//	  i32.const 0
//	end
func blockBranchModule() []byte {
	b := wasmtest.New()
	ft := wasmtest.FuncType(nil, []byte{0x7f})
	b.Section(1, wasmtest.Vec(1, ft))
	b.Section(3, wasmtest.Vec(1, wasmtest.ULEB128(0)))
	exportEntry := append(wasmtest.Name("run"), 0x00)
	exportEntry = append(exportEntry, wasmtest.ULEB128(0)...)
	b.Section(7, wasmtest.Vec(1, exportEntry))
	body := []byte{
		0x02, 0x7f, // block (result i32)
		0x41, 42, // i32.const 42
		0x0c, 0x00, // br 0
		0x41, 0x00, // i32.const 0 (unreachable)
		0x0b, // end (of block)
		0x0b, // end (of function)
	}
	entry := append(wasmtest.ULEB128(0), body...)
	entryWithSize := append(wasmtest.ULEB128(uint64(len(entry))), entry...)
	b.Section(10, wasmtest.Vec(1, entryWithSize))
	return b.Bytes()
}

func TestCallExported_blockBranch(t *testing.T) {
	m, err := wasm.DecodeModule(blockBranchModule())
	require.NoError(t, err)
	inst, err := interpreter.Instantiate(m, noImports{}, interpreter.InstantiateOptions{})
	require.NoError(t, err)

	results, err := inst.CallExported("run", nil)
	require.NoError(t, err)
	require.Equal(t, int32(42), int32(uint32(results[0])))
}

// hostCallsGuestModule builds a module importing "env"."host_f" (type
// () -> i32), defining $leaf (type () -> i32) { i32.const 1 }, and
// exporting both the import and $leaf by name, so a test can invoke the
// host import directly via CallExported and have it call back into $leaf.
func hostCallsGuestModule() []byte {
	b := wasmtest.New()
	ft := wasmtest.FuncType(nil, []byte{0x7f})
	b.Section(1, wasmtest.Vec(1, ft))

	importEntry := append(wasmtest.Name("env"), wasmtest.Name("host_f")...)
	importEntry = append(importEntry, 0x00) // kind: func
	importEntry = append(importEntry, wasmtest.ULEB128(0)...)
	b.Section(2, wasmtest.Vec(1, importEntry))

	b.Section(3, wasmtest.Vec(1, wasmtest.ULEB128(0)))

	hostFExport := append(wasmtest.Name("host_f"), 0x00)
	hostFExport = append(hostFExport, wasmtest.ULEB128(0)...) // funcidx 0: the import
	leafExport := append(wasmtest.Name("leaf"), 0x00)
	leafExport = append(leafExport, wasmtest.ULEB128(1)...) // funcidx 1: $leaf
	b.Section(7, wasmtest.Vec(2, append(hostFExport, leafExport...)))

	body := []byte{0x41, 1, 0x0b} // i32.const 1; end
	entry := append(wasmtest.ULEB128(0), body...)
	entryWithSize := append(wasmtest.ULEB128(uint64(len(entry))), entry...)
	b.Section(10, wasmtest.Vec(1, entryWithSize))
	return b.Bytes()
}

// hostCallsGuestProvider resolves "env"."host_f" to a host function that
// calls back into the instance's own "leaf" export, continuing whatever
// call-tree depth it was itself invoked at rather than starting a fresh one.
type hostCallsGuestProvider struct{}

func (p hostCallsGuestProvider) ResolveFunc(module, name string, sig wasm.FuncType) (*interpreter.HostFunction, error) {
	if module != "env" || name != "host_f" {
		return nil, instErr(module, name)
	}
	return &interpreter.HostFunction{
		Type: sig,
		Func: func(caller *interpreter.Caller, params []uint64) []uint64 {
			results, err := caller.CallExported("leaf", nil)
			if err != nil {
				panic(err)
			}
			return results
		},
	}, nil
}
func (hostCallsGuestProvider) ResolveGlobal(module, name string, t wasm.GlobalType) (uint64, error) {
	return 0, instErr(module, name)
}
func (hostCallsGuestProvider) ResolveTable(module, name string, limits wasm.Limits) ([]interpreter.TableElem, *uint32, error) {
	return nil, nil, instErr(module, name)
}
func (hostCallsGuestProvider) ResolveMemory(module, name string, limits wasm.Limits) ([]byte, *uint32, error) {
	return nil, nil, instErr(module, name)
}

// TestCallExported_hostCallingGuestSharesCallDepth proves a host function
// that calls back into its importing instance continues the same call-tree
// depth it was invoked at, rather than resetting to 0: with a call-stack
// limit of 2, the nested call into "leaf" (at depth 1) succeeds; with a
// limit of 1, that same nested call is the one that trips the ceiling.
func TestCallExported_hostCallingGuestSharesCallDepth(t *testing.T) {
	m, err := wasm.DecodeModule(hostCallsGuestModule())
	require.NoError(t, err)

	inst, err := interpreter.Instantiate(m, hostCallsGuestProvider{}, interpreter.InstantiateOptions{CallStackLimit: 2})
	require.NoError(t, err)
	results, err := inst.CallExported("host_f", nil)
	require.NoError(t, err)
	require.Equal(t, int32(1), int32(uint32(results[0])))

	trapping, err := interpreter.Instantiate(m, hostCallsGuestProvider{}, interpreter.InstantiateOptions{CallStackLimit: 1})
	require.NoError(t, err)
	_, err = trapping.CallExported("host_f", nil)
	require.Error(t, err)
	trap, ok := err.(*interpreter.Trap)
	require.True(t, ok)
	require.Equal(t, interpreter.TrapCallStackOverflow, trap.Code)
}
