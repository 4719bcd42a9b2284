package engine

import (
	"math"
	"time"

	"github.com/bytecodealliance/wasmtime-go/v14"

	"github.com/wippyai/wasm-bench/errors"
)

const (
	// DefaultEntryPoint is the export invoked by Session.Run.
	DefaultEntryPoint = "_start"

	// DefaultFuelBudget is effectively unbounded for benchmark purposes while
	// staying inside the engine's signed fuel counter.
	DefaultFuelBudget uint64 = math.MaxInt64

	// DefaultEpochDeadline is the number of epoch ticks a call may run for.
	DefaultEpochDeadline uint64 = 5

	// DefaultEpochTick is the period of the epoch ticker.
	DefaultEpochTick = time.Millisecond
)

// OptLevel selects the code generator's optimization level.
type OptLevel string

const (
	OptNone         OptLevel = "none"
	OptSpeed        OptLevel = "speed"
	OptSpeedAndSize OptLevel = "speed_and_size"
)

func (o OptLevel) wasmtime() (wasmtime.OptLevel, bool) {
	switch o {
	case OptNone:
		return wasmtime.OptLevelNone, true
	case OptSpeed, "":
		return wasmtime.OptLevelSpeed, true
	case OptSpeedAndSize:
		return wasmtime.OptLevelSpeedAndSize, true
	}
	return 0, false
}

// Config holds configuration for engine creation.
// An Engine copies its Config; changing it afterwards has no effect.
type Config struct {
	// Target is the target triple code is generated for.
	// Empty means the host triple. Only triples the host can execute are accepted.
	Target string

	// EntryPoint is the export Session.Run calls. Defaults to "_start".
	EntryPoint string

	// OptLevel is the code generator optimization level. Defaults to speed.
	OptLevel OptLevel

	// MaxWasmStack caps guest stack usage in bytes. 0 keeps the engine default.
	MaxWasmStack int

	// FuelBudget is the fuel each Run starts with when Fuel is enabled.
	// 0 means DefaultFuelBudget. Setting it without Fuel is a config error.
	FuelBudget uint64

	// EpochDeadline is the number of ticks each Run may take when Epoch is
	// enabled. 0 means DefaultEpochDeadline. Setting it without Epoch is a config error.
	EpochDeadline uint64

	// EpochTick is the ticker period. 0 means DefaultEpochTick.
	EpochTick time.Duration

	// Fuel compiles step accounting into generated code.
	Fuel bool

	// Epoch compiles epoch deadline checks into generated code.
	Epoch bool

	// DebugInfo emits native debug info for generated code.
	DebugInfo bool

	// Cache loads the engine's default on-disk compilation cache.
	Cache bool

	// TrustArtifacts skips the artifact fingerprint check in Deserialize.
	// The payload is never re-validated either way.
	TrustArtifacts bool
}

// DefaultConfig returns the configuration used by the benchmark driver:
// host target, optimizing codegen, no fuel, no epochs.
func DefaultConfig() Config {
	return Config{
		EntryPoint: DefaultEntryPoint,
		OptLevel:   OptSpeed,
	}
}

// FuelConfig returns DefaultConfig with fuel accounting enabled.
func FuelConfig() Config {
	cfg := DefaultConfig()
	cfg.Fuel = true
	return cfg
}

// EpochConfig returns DefaultConfig with epoch interruption enabled.
func EpochConfig() Config {
	cfg := DefaultConfig()
	cfg.Epoch = true
	return cfg
}

// Validate reports contradictory or unsupported settings.
func (c Config) Validate() error {
	if _, ok := c.OptLevel.wasmtime(); !ok {
		return errors.Config("unknown opt level %q", c.OptLevel)
	}
	if c.MaxWasmStack < 0 {
		return errors.Config("max wasm stack must not be negative, got %d", c.MaxWasmStack)
	}
	if c.FuelBudget > 0 && !c.Fuel {
		return errors.Config("fuel budget set without fuel accounting")
	}
	if c.FuelBudget > DefaultFuelBudget {
		return errors.Config("fuel budget %d exceeds %d", c.FuelBudget, DefaultFuelBudget)
	}
	if c.EpochDeadline > 0 && !c.Epoch {
		return errors.Config("epoch deadline set without epoch interruption")
	}
	if c.EpochTick != 0 && !c.Epoch {
		return errors.Config("epoch tick set without epoch interruption")
	}
	if c.EpochTick < 0 {
		return errors.Config("epoch tick must be positive, got %s", c.EpochTick)
	}
	if c.Target != "" {
		if err := checkTarget(c.Target); err != nil {
			return err
		}
	}
	return nil
}

// withDefaults fills zero values. Validate must have passed.
func (c Config) withDefaults() Config {
	if c.Target == "" {
		c.Target = HostTriple()
	}
	if c.EntryPoint == "" {
		c.EntryPoint = DefaultEntryPoint
	}
	if c.OptLevel == "" {
		c.OptLevel = OptSpeed
	}
	if c.Fuel && c.FuelBudget == 0 {
		c.FuelBudget = DefaultFuelBudget
	}
	if c.Epoch {
		if c.EpochDeadline == 0 {
			c.EpochDeadline = DefaultEpochDeadline
		}
		if c.EpochTick == 0 {
			c.EpochTick = DefaultEpochTick
		}
	}
	return c
}

func (c Config) wasmtime() (*wasmtime.Config, error) {
	cfg := wasmtime.NewConfig()
	opt, _ := c.OptLevel.wasmtime()
	cfg.SetStrategy(wasmtime.StrategyCranelift)
	cfg.SetCraneliftOptLevel(opt)
	cfg.SetConsumeFuel(c.Fuel)
	cfg.SetEpochInterruption(c.Epoch)
	cfg.SetDebugInfo(c.DebugInfo)
	if c.MaxWasmStack > 0 {
		cfg.SetMaxWasmStack(c.MaxWasmStack)
	}
	if c.Cache {
		if err := cfg.CacheConfigLoadDefault(); err != nil {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
				Detail("load compilation cache").
				Cause(err).
				Build()
		}
	}
	return cfg, nil
}
