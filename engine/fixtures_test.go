package engine

import (
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v14"
	"github.com/stretchr/testify/require"
)

const (
	watNoop = `(module
  (import "bench" "start" (func $start))
  (import "bench" "end" (func $end))
  (func (export "_start") call $start call $end))`

	watLoop = `(module
  (func (export "_start") (loop $l (br $l))))`

	watUnreachable = `(module
  (import "bench" "start" (func $start))
  (func (export "_start") call $start unreachable))`

	watNoEntry = `(module (func (export "main")))`

	watEntryWithParam = `(module (func (export "_start") (param i32)))`

	watEntryIsMemory = `(module (memory (export "_start") 1))`

	watMissingImport = `(module
  (import "env" "abort" (func))
  (func (export "_start")))`

	watStubTypeMismatch = `(module
  (import "bench" "start" (func (param i32)))
  (func (export "_start")))`

	watGrow = `(module
  (memory (export "memory") 1 10)
  (func (export "_start") (drop (memory.grow (i32.const 1)))))`

	watGrowChecked = `(module
  (memory (export "memory") 1 10)
  (func (export "_start")
    (if (i32.eq (memory.grow (i32.const 1)) (i32.const -1)) (then unreachable))))`

	watExit = `(module
  (import "wasi_snapshot_preview1" "proc_exit" (func $exit (param i32)))
  (memory (export "memory") 1)
  (global $code (export "code") i32 (i32.const %d))
  (func (export "_start") (call $exit (global.get $code))))`

	// Reads input.txt from the preopened directory (fd 3) and folds it
	// into the exported checksum global: sum = sum*31 + byte.
	watChecksum = `(module
  (import "wasi_snapshot_preview1" "path_open"
    (func $path_open (param i32 i32 i32 i32 i32 i64 i64 i32 i32) (result i32)))
  (import "wasi_snapshot_preview1" "fd_read"
    (func $fd_read (param i32 i32 i32 i32) (result i32)))
  (import "bench" "start" (func $start))
  (import "bench" "end" (func $end))
  (memory (export "memory") 1)
  (global $sum (export "checksum") (mut i32) (i32.const 0))
  (data (i32.const 0) "input.txt")
  (func (export "_start")
    (local $fd i32) (local $n i32) (local $i i32)
    call $start
    (if (i32.ne
          (call $path_open (i32.const 3) (i32.const 0) (i32.const 0) (i32.const 9)
            (i32.const 0) (i64.const 2) (i64.const 2) (i32.const 0) (i32.const 32))
          (i32.const 0))
      (then unreachable))
    (local.set $fd (i32.load (i32.const 32)))
    (i32.store (i32.const 16) (i32.const 64))
    (i32.store (i32.const 20) (i32.const 256))
    (if (i32.ne
          (call $fd_read (local.get $fd) (i32.const 16) (i32.const 1) (i32.const 40))
          (i32.const 0))
      (then unreachable))
    (local.set $n (i32.load (i32.const 40)))
    (block $done
      (loop $next
        (br_if $done (i32.ge_u (local.get $i) (local.get $n)))
        (global.set $sum
          (i32.add
            (i32.mul (global.get $sum) (i32.const 31))
            (i32.load8_u (i32.add (i32.const 64) (local.get $i)))))
        (local.set $i (i32.add (local.get $i) (i32.const 1)))
        (br $next)))
    call $end))`
)

func wat(t testing.TB, src string) []byte {
	t.Helper()
	bin, err := wasmtime.Wat2Wasm(src)
	require.NoError(t, err)
	return bin
}

func newEngine(t testing.TB, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// load compiles src and round-trips it through an artifact.
func load(t testing.TB, e *Engine, src string) *Module {
	t.Helper()
	artifact, err := e.Compile(wat(t, src))
	require.NoError(t, err)
	m, err := e.Deserialize(artifact)
	require.NoError(t, err)
	return m
}

func openSession(t testing.TB, e *Engine, cfg *SessionConfig) *Session {
	t.Helper()
	s, err := e.NewSession(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
