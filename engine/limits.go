package engine

import (
	"github.com/bytecodealliance/wasmtime-go/v14"

	"github.com/wippyai/wasm-bench/errors"
)

// GrowPolicy decides whether memory and table growth requests are approved.
type GrowPolicy int

const (
	// GrowAlways approves every growth request up to the module's own maximum.
	GrowAlways GrowPolicy = iota
	// GrowBounded denies growth past MaxMemoryBytes / MaxTableElements.
	GrowBounded
)

// ResourceLimits caps what a single session may create.
// A zero count means zero allowed; use Unlimited for no cap.
type ResourceLimits struct {
	MaxInstances     int64
	MaxMemories      int64
	MaxTables        int64
	MaxMemoryBytes   int64
	MaxTableElements int64
	Grow             GrowPolicy
}

// Unlimited marks a count as uncapped.
const Unlimited int64 = -1

// DefaultLimits returns the limits the benchmark driver attaches when asked
// to bound sessions: 100000 instances, memories and tables, growth always approved.
func DefaultLimits() *ResourceLimits {
	return &ResourceLimits{
		MaxInstances:     100000,
		MaxMemories:      100000,
		MaxTables:        100000,
		MaxMemoryBytes:   Unlimited,
		MaxTableElements: Unlimited,
		Grow:             GrowAlways,
	}
}

func (l *ResourceLimits) validate() error {
	if l.Grow != GrowAlways && l.Grow != GrowBounded {
		return errors.Config("unknown grow policy %d", l.Grow)
	}
	for _, v := range []int64{l.MaxInstances, l.MaxMemories, l.MaxTables, l.MaxMemoryBytes, l.MaxTableElements} {
		if v < Unlimited {
			return errors.Config("resource limit %d out of range", v)
		}
	}
	return nil
}

// apply installs the limits on store. Negative values leave a dimension unbounded.
func (l *ResourceLimits) apply(store *wasmtime.Store) {
	memoryBytes, tableElements := Unlimited, Unlimited
	if l.Grow == GrowBounded {
		memoryBytes, tableElements = l.MaxMemoryBytes, l.MaxTableElements
	}
	store.Limiter(memoryBytes, tableElements, l.MaxInstances, l.MaxTables, l.MaxMemories)
}

// admits reports whether one more instance fits under MaxInstances.
func (l *ResourceLimits) admits(instances int64) bool {
	return l.MaxInstances < 0 || instances < l.MaxInstances
}
