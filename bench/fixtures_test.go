package bench

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v14"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-bench/engine"
)

const (
	watNoop = `(module
  (import "bench" "start" (func $start))
  (import "bench" "end" (func $end))
  (func (export "_start") call $start call $end))`

	// opens input.txt relative to the preopened directory
	watReadsInput = `(module
  (import "wasi_snapshot_preview1" "path_open"
    (func $path_open (param i32 i32 i32 i32 i32 i64 i64 i32 i32) (result i32)))
  (memory (export "memory") 1)
  (data (i32.const 0) "input.txt")
  (func (export "_start")
    (if (i32.ne
          (call $path_open (i32.const 3) (i32.const 0) (i32.const 0) (i32.const 9)
            (i32.const 0) (i64.const 2) (i64.const 2) (i32.const 0) (i32.const 32))
          (i32.const 0))
      (then unreachable))))`

	watTrap = `(module (func (export "_start") unreachable))`

	watNoEntry = `(module (func (export "main")))`

	watMissingImport = `(module
  (import "env" "abort" (func))
  (func (export "_start")))`
)

func wat(t testing.TB, src string) []byte {
	t.Helper()
	bin, err := wasmtime.Wat2Wasm(src)
	require.NoError(t, err)
	return bin
}

// corpus lays out root/<name>/benchmark.wasm for each entry.
func corpus(t testing.TB, modules map[string][]byte) *Corpus {
	t.Helper()
	root := t.TempDir()
	for name, bin := range modules {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ModuleFile), bin, 0o644))
	}
	return &Corpus{Root: root}
}

func newRunner(t testing.TB, iterations int) *Runner {
	t.Helper()
	e, err := engine.New(engine.FuelConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return &Runner{Engine: e, Iterations: iterations}
}
