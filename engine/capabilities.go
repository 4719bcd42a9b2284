package engine

import (
	"path/filepath"
	"sync"

	"github.com/bytecodealliance/wasmtime-go/v14"

	"github.com/wippyai/wasm-bench/errors"
)

// Namespaces and names of the host functions every session provides.
const (
	BenchModule = "bench"
	BenchStart  = "start"
	BenchEnd    = "end"
	WASIModule  = "wasi_snapshot_preview1"
	// wasi_unstable is accepted as well; the engine's WASI linker defines both.
	wasiUnstable = "wasi_unstable"
)

// Mark is one recorded call to a bench stub.
type Mark string

// Capabilities is the set of host resources a session's guest can reach:
// one preopened directory plus the bench stubs.
type Capabilities struct {
	wasi     *wasmtime.WasiConfig
	dir      string
	guestDir string
	marks    []Mark
	mu       sync.Mutex
	record   bool
}

func newCapabilities(cfg *SessionConfig) (*Capabilities, error) {
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, errors.IO(errors.PhaseSession, "resolve preopen dir", err)
	}

	wasi := wasmtime.NewWasiConfig()
	if err := wasi.PreopenDir(dir, cfg.GuestDir); err != nil {
		return nil, errors.IO(errors.PhaseSession, "preopen "+dir, err)
	}
	if len(cfg.Args) > 0 {
		wasi.SetArgv(cfg.Args)
	}
	if cfg.InheritStdio {
		wasi.InheritStdout()
		wasi.InheritStderr()
	}

	return &Capabilities{
		wasi:     wasi,
		dir:      dir,
		guestDir: cfg.GuestDir,
		record:   cfg.RecordMarks,
	}, nil
}

// Dir returns the host directory preopened for the guest.
func (c *Capabilities) Dir() string {
	return c.dir
}

func (c *Capabilities) mark(m Mark) {
	if !c.record {
		return
	}
	c.mu.Lock()
	c.marks = append(c.marks, m)
	c.mu.Unlock()
}

// Marks returns the bench stub calls recorded so far.
func (c *Capabilities) Marks() []Mark {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Mark, len(c.marks))
	copy(out, c.marks)
	return out
}

// Provides reports whether every session linker defines module#name.
func Provides(module, name string) bool {
	switch module {
	case BenchModule:
		return name == BenchStart || name == BenchEnd
	case WASIModule, wasiUnstable:
		return true
	}
	return false
}

// link builds a linker with WASI and the bench stubs bound to this context.
func (c *Capabilities) link(engine *wasmtime.Engine) (*wasmtime.Linker, error) {
	linker := wasmtime.NewLinker(engine)
	if err := linker.DefineWasi(); err != nil {
		return nil, errors.Link(err)
	}
	if err := linker.FuncWrap(BenchModule, BenchStart, func() { c.mark(BenchStart) }); err != nil {
		return nil, errors.Link(err)
	}
	if err := linker.FuncWrap(BenchModule, BenchEnd, func() { c.mark(BenchEnd) }); err != nil {
		return nil, errors.Link(err)
	}
	return linker, nil
}
