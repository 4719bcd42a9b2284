package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytecodealliance/wasmtime-go/v14"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bench/errors"
)

// State is the lifecycle position of a session.
type State int

const (
	StateCreated State = iota
	StateInstantiated
	StateFuelArmed
	StateEpochArmed
	StateRunning
	StateCompleted
	StateTrapped
	StateFuelExhausted
	StateEpochExpired
)

var stateNames = [...]string{
	"created", "instantiated", "fuel_armed", "epoch_armed", "running",
	"completed", "trapped", "fuel_exhausted", "epoch_expired",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether s is an outcome of an entry point call.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// SessionConfig holds configuration for one execution session.
type SessionConfig struct {
	// Limits caps instances, memories, tables and growth. Nil means unlimited.
	Limits *ResourceLimits

	// Dir is the host directory preopened for the guest. Defaults to ".".
	Dir string

	// GuestDir is the guest path Dir is mapped to. Defaults to ".".
	GuestDir string

	// Args is the guest argv.
	Args []string

	// FuelBudget overrides the engine's fuel budget for this session.
	FuelBudget uint64

	// EpochDeadline overrides the engine's epoch deadline for this session.
	EpochDeadline uint64

	// InheritStdio forwards guest stdout and stderr to the host process.
	InheritStdio bool

	// RecordMarks records bench.start / bench.end calls, see Session.Marks.
	RecordMarks bool
}

// DefaultSessionConfig preopens the current working directory and attaches no limits.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{Dir: ".", GuestDir: "."}
}

// Session is one store: a capability context, optional resource limits, and
// the fuel counter and epoch deadline of its calls. Create one per iteration
// so no instance state leaks between runs. Not safe for concurrent use.
type Session struct {
	engine    *Engine
	store     *wasmtime.Store
	linker    *wasmtime.Linker
	caps      *Capabilities
	limits    *ResourceLimits
	cfg       SessionConfig
	fuelAdded uint64
	instances int64
	state     State
}

// Instance is a module instantiated in a session.
type Instance struct {
	inner   *wasmtime.Instance
	session *Session
}

func newSession(e *Engine, cfg *SessionConfig) (*Session, error) {
	if e.ticker != nil && e.ticker.isClosed() {
		return nil, errEngineClosed()
	}
	if cfg == nil {
		cfg = DefaultSessionConfig()
	}
	c := *cfg
	if c.Dir == "" {
		c.Dir = "."
	}
	if c.GuestDir == "" {
		c.GuestDir = "."
	}
	if c.FuelBudget > 0 && !e.cfg.Fuel {
		return nil, errors.Config("session fuel budget on an engine without fuel accounting")
	}
	if c.FuelBudget > DefaultFuelBudget {
		return nil, errors.Config("fuel budget %d exceeds %d", c.FuelBudget, DefaultFuelBudget)
	}
	if c.EpochDeadline > 0 && !e.cfg.Epoch {
		return nil, errors.Config("session epoch deadline on an engine without epoch interruption")
	}
	if c.FuelBudget == 0 {
		c.FuelBudget = e.cfg.FuelBudget
	}
	if c.EpochDeadline == 0 {
		c.EpochDeadline = e.cfg.EpochDeadline
	}
	if c.Limits != nil {
		if err := c.Limits.validate(); err != nil {
			return nil, err
		}
	}

	caps, err := newCapabilities(&c)
	if err != nil {
		return nil, err
	}
	linker, err := caps.link(e.inner)
	if err != nil {
		return nil, err
	}

	store := wasmtime.NewStore(e.inner)
	store.SetWasi(caps.wasi)
	if c.Limits != nil {
		c.Limits.apply(store)
	}

	return &Session{
		engine: e,
		store:  store,
		linker: linker,
		caps:   caps,
		limits: c.Limits,
		cfg:    c,
		state:  StateCreated,
	}, nil
}

// State returns the lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Capabilities returns the session's capability context.
func (s *Session) Capabilities() *Capabilities {
	return s.caps
}

// Marks returns the bench stub calls recorded when RecordMarks is set.
func (s *Session) Marks() []Mark {
	return s.caps.Marks()
}

// Instantiate links m against the session's capabilities and instantiates it.
// Unresolved imports fail with a missing-import link error, a type-mismatched
// import with a link error, and exceeding the session limits with a
// resource-limit error.
func (s *Session) Instantiate(m *Module) (*Instance, error) {
	if m.engine != s.engine {
		return nil, errors.Link(fmt.Errorf("module belongs to a different engine"))
	}
	if missing := s.unresolved(m); len(missing) > 0 {
		return nil, errors.MissingImports(missing)
	}
	if s.limits != nil && !s.limits.admits(s.instances) {
		return nil, errors.New(errors.PhaseLink, errors.KindResourceLimit).
			Value(s.instances + 1).
			Detail("instance limit %d reached", s.limits.MaxInstances).
			Build()
	}

	inst, err := s.linker.Instantiate(s.store, m.inner)
	if err != nil {
		return nil, classifyInstantiate(err)
	}
	s.instances++
	if s.state == StateCreated {
		s.state = StateInstantiated
	}
	return &Instance{inner: inst, session: s}, nil
}

func (s *Session) unresolved(m *Module) []string {
	var missing []string
	for _, imp := range m.inner.Imports() {
		name := ""
		if n := imp.Name(); n != nil {
			name = *n
		}
		if !Provides(imp.Module(), name) {
			missing = append(missing, imp.Module()+"#"+name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Run calls the instance's entry point, which must have type () -> ().
// With fuel enabled the store is topped up to the fuel budget first; with
// epochs enabled a deadline is armed and the engine ticker runs until the
// call returns. Traps come back as errors.KindTrapped with a Reason.
func (s *Session) Run(inst *Instance) error {
	name := s.engine.cfg.EntryPoint
	fn, err := inst.entryPoint(name)
	if err != nil {
		return err
	}

	if s.engine.cfg.Fuel {
		if err := s.fund(); err != nil {
			return err
		}
		s.state = StateFuelArmed
	}

	if s.engine.cfg.Epoch {
		release, ok := s.engine.ticker.acquire()
		if !ok {
			return errEngineClosed()
		}
		defer release()
		s.store.SetEpochDeadline(s.cfg.EpochDeadline)
		s.state = StateEpochArmed
	}

	s.state = StateRunning
	_, callErr := fn.Call(s.store)
	err = classifyCall(callErr)
	s.state = outcome(err)

	if err != nil {
		Logger().Info("interrupted",
			zap.String("entry_point", name),
			zap.Stringer("state", s.state),
			zap.Error(err))
	}
	return err
}

// Exec instantiates m and runs its entry point.
func (s *Session) Exec(m *Module) error {
	inst, err := s.Instantiate(m)
	if err != nil {
		return err
	}
	return s.Run(inst)
}

// fund tops the store up so the next call starts with exactly the budget.
func (s *Session) fund() error {
	consumed, _ := s.store.FuelConsumed()
	remaining := s.fuelAdded - consumed
	if remaining >= s.cfg.FuelBudget {
		return nil
	}
	topUp := s.cfg.FuelBudget - remaining
	if err := s.store.AddFuel(topUp); err != nil {
		return errors.New(errors.PhaseExecute, errors.KindInvalidConfig).
			Value(topUp).
			Detail("add fuel").
			Cause(err).
			Build()
	}
	s.fuelAdded += topUp
	return nil
}

// FuelConsumed returns the fuel used by calls in this session so far.
func (s *Session) FuelConsumed() (uint64, bool) {
	if !s.engine.cfg.Fuel {
		return 0, false
	}
	return s.store.FuelConsumed()
}

// Close drops the session's store. The session must not be used afterwards.
func (s *Session) Close() error {
	s.store = nil
	s.linker = nil
	return nil
}

func outcome(err error) State {
	if err == nil {
		return StateCompleted
	}
	reason, _ := errors.TrapReasonOf(err)
	switch reason {
	case errors.ReasonFuelExhausted:
		return StateFuelExhausted
	case errors.ReasonEpochExpired:
		return StateEpochExpired
	}
	return StateTrapped
}

func (i *Instance) entryPoint(name string) (*wasmtime.Func, error) {
	ext := i.inner.GetExport(i.session.store, name)
	if ext == nil {
		return nil, errors.EntryPointNotFound(name)
	}
	fn := ext.Func()
	if fn == nil {
		return nil, errors.SignatureMismatch(name, "non-function export")
	}
	ty := fn.Type(i.session.store)
	if len(ty.Params()) != 0 || len(ty.Results()) != 0 {
		return nil, errors.SignatureMismatch(name, funcTypeString(ty))
	}
	return fn, nil
}

// Global reads an exported i32 or i64 global.
func (i *Instance) Global(name string) (int64, bool) {
	ext := i.inner.GetExport(i.session.store, name)
	if ext == nil || ext.Global() == nil {
		return 0, false
	}
	v := ext.Global().Get(i.session.store)
	switch v.Kind() {
	case wasmtime.KindI32:
		return int64(v.I32()), true
	case wasmtime.KindI64:
		return v.I64(), true
	}
	return 0, false
}

// MemoryPages returns the size in 64KiB pages of an exported memory.
func (i *Instance) MemoryPages(name string) (uint64, bool) {
	ext := i.inner.GetExport(i.session.store, name)
	if ext == nil || ext.Memory() == nil {
		return 0, false
	}
	return ext.Memory().Size(i.session.store), true
}

func funcTypeString(ty *wasmtime.FuncType) string {
	kinds := func(vs []*wasmtime.ValType) string {
		names := make([]string, len(vs))
		for i, v := range vs {
			names[i] = v.Kind().String()
		}
		return strings.Join(names, ", ")
	}
	return "(" + kinds(ty.Params()) + ") -> (" + kinds(ty.Results()) + ")"
}
