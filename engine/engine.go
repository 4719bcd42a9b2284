package engine

import (
	"bytes"
	"fmt"

	"github.com/bytecodealliance/wasmtime-go/v14"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bench/errors"
)

var wasmMagic = []byte{0x00, 'a', 's', 'm'}

// Engine is a configured compilation and execution backend.
// It is immutable after New and safe for concurrent use; the epoch counter
// is the only state that changes, and only through atomic increments.
type Engine struct {
	inner       *wasmtime.Engine
	ticker      *epochTicker
	cfg         Config
	fingerprint Fingerprint
}

// New builds an engine. It fails with a config error when cfg is
// contradictory or targets a triple the host cannot execute.
// Engines with different configurations can coexist in one process.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	wcfg, err := cfg.wasmtime()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		inner:       wasmtime.NewEngineWithConfig(wcfg),
		cfg:         cfg,
		fingerprint: fingerprintOf(cfg),
	}
	if cfg.Epoch {
		e.ticker = newEpochTicker(cfg.EpochTick, e.inner.IncrementEpoch)
	}

	Logger().Debug("engine created",
		zap.String("target", cfg.Target),
		zap.Bool("fuel", cfg.Fuel),
		zap.Bool("epoch", cfg.Epoch),
		zap.String("opt_level", string(cfg.OptLevel)),
		zap.Stringer("fingerprint", e.fingerprint))

	return e, nil
}

// Config returns the effective configuration, defaults applied.
func (e *Engine) Config() Config {
	return e.cfg
}

// Fingerprint identifies artifacts this engine can deserialize.
func (e *Engine) Fingerprint() Fingerprint {
	return e.fingerprint
}

// IncrementEpoch advances the engine epoch by one tick.
func (e *Engine) IncrementEpoch() {
	e.inner.IncrementEpoch()
}

// EpochTicks returns how many times the background ticker advanced the epoch.
func (e *Engine) EpochTicks() uint64 {
	if e.ticker == nil {
		return 0
	}
	return e.ticker.Ticks()
}

// Close stops the epoch ticker. Compiled code is released by the garbage collector.
// On an epoch engine, sessions can no longer be opened or run afterwards.
func (e *Engine) Close() error {
	if e.ticker != nil {
		e.ticker.close()
	}
	return nil
}

func errEngineClosed() *errors.Error {
	return errors.New(errors.PhaseExecute, errors.KindInvalidConfig).Detail("engine closed").Build()
}

// Module is an executable module. It is immutable and may be shared by any
// number of sessions created from the same engine.
type Module struct {
	inner  *wasmtime.Module
	engine *Engine
}

// Compile performs ahead-of-time code generation and returns a serialized
// artifact. Malformed or unsupported bytecode returns a compile error.
func (e *Engine) Compile(bytecode []byte) (artifact []byte, err error) {
	m, err := e.compile(bytecode)
	if err != nil {
		return nil, err
	}
	payload, err := m.Serialize()
	if err != nil {
		return nil, errors.Compile("serialize module", err)
	}
	return sealArtifact(e.fingerprint, payload), nil
}

// CompileModule compiles bytecode in memory without serializing it.
func (e *Engine) CompileModule(bytecode []byte) (*Module, error) {
	m, err := e.compile(bytecode)
	if err != nil {
		return nil, err
	}
	return &Module{inner: m, engine: e}, nil
}

func (e *Engine) compile(bytecode []byte) (m *wasmtime.Module, err error) {
	if len(bytecode) < 8 {
		return nil, errors.Compile(fmt.Sprintf("module too short: %d bytes", len(bytecode)), nil)
	}
	if !bytes.Equal(bytecode[:4], wasmMagic) {
		return nil, errors.Compile("missing wasm magic header", nil)
	}

	defer func() {
		if r := recover(); r != nil {
			Logger().Error("compile panicked", zap.Any("panic", r))
			m, err = nil, errors.Compile(fmt.Sprintf("engine panic: %v", r), nil)
		}
	}()

	m, err = wasmtime.NewModule(e.inner, bytecode)
	if err != nil {
		return nil, errors.Compile("compile module", err)
	}
	return m, nil
}

// Deserialize reconstructs a module from an artifact produced by Compile.
//
// This is an unchecked trust boundary. Only the artifact envelope is checked:
// its fingerprint must match this engine unless Config.TrustArtifacts is set.
// The native payload is handed to the engine as is; passing bytes that did
// not come from Compile on a compatible engine is a precondition violation
// with undefined results.
func (e *Engine) Deserialize(artifact []byte) (*Module, error) {
	payload, err := openArtifact(artifact, e.fingerprint, e.cfg.TrustArtifacts)
	if err != nil {
		return nil, err
	}
	m, err := wasmtime.NewModuleDeserialize(e.inner, payload)
	if err != nil {
		return nil, errors.Incompatible("deserialize module", err)
	}
	return &Module{inner: m, engine: e}, nil
}

// NewSession creates an execution session bound to this engine.
// A nil cfg uses DefaultSessionConfig.
func (e *Engine) NewSession(cfg *SessionConfig) (*Session, error) {
	return newSession(e, cfg)
}
