package wasm_test

import (
	"errors"
	"testing"

	"github.com/wasmic/wasmic/internal/testing/require"
	"github.com/wasmic/wasmic/internal/testing/wasmtest"
	"github.com/wasmic/wasmic/internal/wasm"
)

// addModule builds a module exporting a single function
// add(i32, i32) -> i32 { local.get 0; local.get 1; i32.add }.
func addModule() []byte {
	b := wasmtest.New()
	ft := wasmtest.FuncType([]byte{0x7f, 0x7f}, []byte{0x7f})
	b.Section(1, wasmtest.Vec(1, ft))
	b.Section(3, wasmtest.Vec(1, wasmtest.ULEB128(0)))
	exportName := wasmtest.Name("add")
	exportEntry := append(append([]byte{}, exportName...), 0x00)
	exportEntry = append(exportEntry, wasmtest.ULEB128(0)...)
	b.Section(7, wasmtest.Vec(1, exportEntry))

	body := []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b} // local.get 0; local.get 1; i32.add; end
	entry := append(wasmtest.ULEB128(0), body...)       // 0 local groups
	entryWithSize := append(wasmtest.ULEB128(uint64(len(entry))), entry...)
	b.Section(10, wasmtest.Vec(1, entryWithSize))
	return b.Bytes()
}

func TestDecodeModule_simpleFunction(t *testing.T) {
	m, err := wasm.DecodeModule(addModule())
	require.NoError(t, err)
	require.Equal(t, 1, len(m.Types))
	require.Equal(t, 1, len(m.Codes))
	idx, ok := m.ExportedFunc("add")
	require.True(t, ok)
	require.Equal(t, wasm.FuncIdx(0), idx)
}

func TestDecodeModule_badMagic(t *testing.T) {
	bad := append([]byte{}, addModule()...)
	bad[0] = 0xff
	_, err := wasm.DecodeModule(bad)
	require.Error(t, err)
	var malformedErr *wasm.MalformedError
	require.True(t, errors.As(err, &malformedErr))
}

func TestDecodeModule_sectionsOutOfOrder(t *testing.T) {
	b := wasmtest.New()
	// Function section (id 3) before type section (id 1) is out of order.
	b.Section(3, wasmtest.Vec(0, nil))
	b.Section(1, wasmtest.Vec(0, nil))
	_, err := wasm.DecodeModule(b.Bytes())
	require.Error(t, err)
}

func TestDecodeModule_invalidOpcode(t *testing.T) {
	b := wasmtest.New()
	ft := wasmtest.FuncType(nil, nil)
	b.Section(1, wasmtest.Vec(1, ft))
	b.Section(3, wasmtest.Vec(1, wasmtest.ULEB128(0)))
	body := []byte{0xff, 0x0b} // 0xff is not a valid opcode
	entry := append(wasmtest.ULEB128(0), body...)
	entryWithSize := append(wasmtest.ULEB128(uint64(len(entry))), entry...)
	b.Section(10, wasmtest.Vec(1, entryWithSize))
	_, err := wasm.DecodeModule(b.Bytes())
	require.Error(t, err)
	var malformedErr *wasm.MalformedError
	require.True(t, errors.As(err, &malformedErr))
}
