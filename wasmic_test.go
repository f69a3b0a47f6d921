package wasmic_test

import (
	"testing"

	"github.com/wasmic/wasmic"
	"github.com/wasmic/wasmic/internal/testing/require"
	"github.com/wasmic/wasmic/internal/testing/wasmtest"
	"github.com/wasmic/wasmic/internal/wasm"
)

// testProvider satisfies wasmic.ImportProvider for a module with no
// imports at all; every method traps the test if actually called.
type testProvider struct{}

func (testProvider) ResolveFunc(module, name string, sig wasm.FuncType) (*wasmic.HostFunction, error) {
	return nil, &notFound{module, name}
}
func (testProvider) ResolveGlobal(module, name string, t wasm.GlobalType) (uint64, error) {
	return 0, &notFound{module, name}
}
func (testProvider) ResolveTable(module, name string, limits wasm.Limits) ([]wasmic.TableElem, *uint32, error) {
	return nil, nil, &notFound{module, name}
}
func (testProvider) ResolveMemory(module, name string, limits wasm.Limits) ([]byte, *uint32, error) {
	return nil, nil, &notFound{module, name}
}

type notFound struct{ module, name string }

func (e *notFound) Error() string { return "no import " + e.module + "." + e.name }

// constModule builds answer() -> i32 { i32.const 42 } exported as "answer".
func constModule() []byte {
	b := wasmtest.New()
	ft := wasmtest.FuncType(nil, []byte{0x7f})
	b.Section(1, wasmtest.Vec(1, ft))
	b.Section(3, wasmtest.Vec(1, wasmtest.ULEB128(0)))
	exportEntry := append(wasmtest.Name("answer"), 0x00)
	exportEntry = append(exportEntry, wasmtest.ULEB128(0)...)
	b.Section(7, wasmtest.Vec(1, exportEntry))
	body := []byte{0x41, 42, 0x0b}
	entry := append(wasmtest.ULEB128(0), body...)
	entryWithSize := append(wasmtest.ULEB128(uint64(len(entry))), entry...)
	b.Section(10, wasmtest.Vec(1, entryWithSize))
	return b.Bytes()
}

func TestRuntime_compileInstantiateCall(t *testing.T) {
	rt := wasmic.NewRuntime()
	compiled, err := rt.CompileModule(constModule())
	require.NoError(t, err)

	inst, err := rt.Instantiate(compiled, testProvider{})
	require.NoError(t, err)

	results, err := inst.CallExported("answer", nil)
	require.NoError(t, err)
	require.Equal(t, int32(42), int32(uint32(results[0])))
}
