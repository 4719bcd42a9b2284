package engine

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-bench/errors"
)

func TestSession_ExecNoop(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	m := load(t, e, watNoop)
	s := openSession(t, e, &SessionConfig{RecordMarks: true})

	require.Equal(t, StateCreated, s.State())
	require.NoError(t, s.Exec(m))
	require.Equal(t, StateCompleted, s.State())
	require.Equal(t, []Mark{BenchStart, BenchEnd}, s.Marks())
}

func TestSession_MarksOffByDefault(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	s := openSession(t, e, nil)
	require.NoError(t, s.Exec(load(t, e, watNoop)))
	require.Empty(t, s.Marks())
}

// Running a deserialized artifact must be indistinguishable from running an
// in-memory compilation of the same bytes.
func TestSession_ArtifactTransparency(t *testing.T) {
	for _, cfg := range []Config{DefaultConfig(), FuelConfig(), EpochConfig()} {
		e := newEngine(t, cfg)
		for name, src := range map[string]string{"noop": watNoop, "unreachable": watUnreachable} {
			t.Run(fmt.Sprintf("fuel=%t/epoch=%t/%s", cfg.Fuel, cfg.Epoch, name), func(t *testing.T) {
				direct, err := e.CompileModule(wat(t, src))
				require.NoError(t, err)
				replayed := load(t, e, src)

				a := openSession(t, e, &SessionConfig{RecordMarks: true})
				b := openSession(t, e, &SessionConfig{RecordMarks: true})
				errA := a.Exec(direct)
				errB := b.Exec(replayed)

				require.Equal(t, a.Marks(), b.Marks())
				require.Equal(t, a.State(), b.State())
				require.Equal(t, errA == nil, errB == nil)
				ra, _ := errors.TrapReasonOf(errA)
				rb, _ := errors.TrapReasonOf(errB)
				require.Equal(t, ra, rb)
			})
		}
	}
}

func TestSession_EntryPointErrors(t *testing.T) {
	e := newEngine(t, DefaultConfig())

	tests := []struct {
		want error
		name string
		src  string
	}{
		{errors.ErrEntryPointNotFound, "missing", watNoEntry},
		{errors.ErrSignatureMismatch, "params", watEntryWithParam},
		{errors.ErrSignatureMismatch, "not a function", watEntryIsMemory},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := openSession(t, e, nil)
			inst, err := s.Instantiate(load(t, e, tc.src))
			require.NoError(t, err)

			err = s.Run(inst)
			require.ErrorIs(t, err, tc.want)
			require.True(t, errors.SkipsBenchmark(err))
			require.Equal(t, StateInstantiated, s.State())
		})
	}
}

func TestSession_CustomEntryPoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EntryPoint = "main"
	e := newEngine(t, cfg)
	require.NoError(t, openSession(t, e, nil).Exec(load(t, e, watNoEntry)))
}

func TestSession_MissingImport(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	s := openSession(t, e, nil)

	_, err := s.Instantiate(load(t, e, watMissingImport))
	require.ErrorIs(t, err, errors.ErrMissingImport)

	var mi *errors.MissingImportsError
	require.True(t, stderrors.As(err, &mi))
	require.Equal(t, []errors.MissingImport{{Module: "env", Name: "abort"}}, mi.Imports)
}

func TestSession_StubTypeMismatch(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	s := openSession(t, e, nil)

	_, err := s.Instantiate(load(t, e, watStubTypeMismatch))
	require.ErrorIs(t, err, errors.ErrLink)
}

func TestSession_ForeignModule(t *testing.T) {
	a := newEngine(t, DefaultConfig())
	b := newEngine(t, DefaultConfig())

	_, err := openSession(t, b, nil).Instantiate(load(t, a, watNoop))
	require.ErrorIs(t, err, errors.ErrLink)
}

func TestSession_FuelExhausted(t *testing.T) {
	e := newEngine(t, FuelConfig())
	m := load(t, e, watLoop)
	s := openSession(t, e, &SessionConfig{FuelBudget: 100_000})

	start := time.Now()
	err := s.Exec(m)
	require.ErrorIs(t, err, errors.ErrFuelExhausted)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, StateFuelExhausted, s.State())
	require.True(t, errors.Recoverable(err))
	require.False(t, errors.SkipsBenchmark(err))

	require.Positive(t, mustConsumed(t, s))
}

func TestSession_FuelTopUp(t *testing.T) {
	e := newEngine(t, FuelConfig())
	m := load(t, e, watNoop)
	s := openSession(t, e, &SessionConfig{FuelBudget: 1_000})

	inst, err := s.Instantiate(m)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Run(inst))
	}
	require.LessOrEqual(t, s.fuelAdded-mustConsumed(t, s), uint64(1_000))

	require.NoError(t, s.fund())
	require.Equal(t, uint64(1_000), s.fuelAdded-mustConsumed(t, s))
}

func mustConsumed(t *testing.T, s *Session) uint64 {
	t.Helper()
	c, ok := s.FuelConsumed()
	require.True(t, ok)
	return c
}

func TestSession_FuelDisabled(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	s := openSession(t, e, nil)
	_, ok := s.FuelConsumed()
	require.False(t, ok)
}

func TestSession_EpochExpired(t *testing.T) {
	cfg := EpochConfig()
	cfg.EpochDeadline = 5
	cfg.EpochTick = time.Millisecond
	e := newEngine(t, cfg)
	m := load(t, e, watLoop)
	s := openSession(t, e, nil)

	start := time.Now()
	err := s.Exec(m)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, errors.ErrEpochExpired)
	require.Equal(t, StateEpochExpired, s.State())
	require.GreaterOrEqual(t, e.EpochTicks(), uint64(5))
	// nominally 5ms; the bound leaves room for scheduler jitter on busy machines
	require.Less(t, elapsed, 2*time.Second)
}

func TestSession_EpochIterations(t *testing.T) {
	e := newEngine(t, EpochConfig())
	loop := load(t, e, watLoop)
	noop := load(t, e, watNoop)

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, openSession(t, e, nil).Exec(loop), errors.ErrEpochExpired)
		require.NoError(t, openSession(t, e, nil).Exec(noop))
	}

	e.ticker.mu.Lock()
	defer e.ticker.mu.Unlock()
	require.Zero(t, e.ticker.leases)
}

func TestSession_EpochDeadlineOverride(t *testing.T) {
	e := newEngine(t, EpochConfig())
	s := openSession(t, e, &SessionConfig{EpochDeadline: 20})

	before := e.EpochTicks()
	require.ErrorIs(t, s.Exec(load(t, e, watLoop)), errors.ErrEpochExpired)
	require.GreaterOrEqual(t, e.EpochTicks()-before, uint64(20))
}

func TestSession_EpochAfterClose(t *testing.T) {
	e := newEngine(t, EpochConfig())
	m := load(t, e, watLoop)
	s := openSession(t, e, nil)
	require.NoError(t, e.Close())

	closed := &errors.Error{Phase: errors.PhaseExecute, Kind: errors.KindInvalidConfig}

	done := make(chan error, 1)
	go func() { done <- s.Exec(m) }()
	select {
	case err := <-done:
		require.ErrorIs(t, err, closed)
		require.Contains(t, err.Error(), "engine closed")
	case <-time.After(2 * time.Second):
		t.Fatal("Exec on a closed epoch engine did not return")
	}

	_, err := e.NewSession(nil)
	require.ErrorIs(t, err, closed)
}

func TestSession_FuelBeforeEpoch(t *testing.T) {
	e := newEngine(t, Config{Fuel: true, Epoch: true, EpochDeadline: 10_000})
	s := openSession(t, e, &SessionConfig{FuelBudget: 10_000})
	require.ErrorIs(t, s.Exec(load(t, e, watLoop)), errors.ErrFuelExhausted)
}

func TestSession_GuestTrap(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	s := openSession(t, e, &SessionConfig{RecordMarks: true})

	err := s.Exec(load(t, e, watUnreachable))
	require.ErrorIs(t, err, errors.ErrGuestTrap)
	require.Equal(t, StateTrapped, s.State())
	require.Equal(t, []Mark{BenchStart}, s.Marks())
}

func TestSession_Exit(t *testing.T) {
	e := newEngine(t, DefaultConfig())

	require.NoError(t, openSession(t, e, nil).Exec(load(t, e, fmt.Sprintf(watExit, 0))))

	err := openSession(t, e, nil).Exec(load(t, e, fmt.Sprintf(watExit, 3)))
	reason, ok := errors.TrapReasonOf(err)
	require.True(t, ok)
	require.Equal(t, errors.ReasonExit, reason)

	var werr *errors.Error
	require.True(t, stderrors.As(err, &werr))
	require.Equal(t, int32(3), werr.Value)
}

func TestSession_Isolation(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	m := load(t, e, watGrow)

	a := openSession(t, e, nil)
	b := openSession(t, e, nil)
	instA, err := a.Instantiate(m)
	require.NoError(t, err)
	instB, err := b.Instantiate(m)
	require.NoError(t, err)

	require.NoError(t, a.Run(instA))

	pagesA, ok := instA.MemoryPages("memory")
	require.True(t, ok)
	pagesB, ok := instB.MemoryPages("memory")
	require.True(t, ok)
	require.Equal(t, uint64(2), pagesA)
	require.Equal(t, uint64(1), pagesB)
}

func TestSession_InstanceLimit(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	m := load(t, e, watNoop)
	s := openSession(t, e, &SessionConfig{Limits: &ResourceLimits{
		MaxInstances:     1,
		MaxMemories:      Unlimited,
		MaxTables:        Unlimited,
		MaxMemoryBytes:   Unlimited,
		MaxTableElements: Unlimited,
	}})

	_, err := s.Instantiate(m)
	require.NoError(t, err)
	_, err = s.Instantiate(m)
	require.ErrorIs(t, err, errors.ErrResourceLimit)
	require.False(t, errors.SkipsBenchmark(err))

	// a fresh session starts from zero
	other := openSession(t, e, &SessionConfig{Limits: &ResourceLimits{MaxInstances: 1, MaxMemories: 1, MaxTables: 1}})
	_, err = other.Instantiate(m)
	require.NoError(t, err)
}

func TestSession_MemoryLimit(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	s := openSession(t, e, &SessionConfig{Limits: &ResourceLimits{
		MaxInstances:     Unlimited,
		MaxMemories:      0,
		MaxTables:        Unlimited,
		MaxMemoryBytes:   Unlimited,
		MaxTableElements: Unlimited,
	}})

	_, err := s.Instantiate(load(t, e, watGrow))
	require.ErrorIs(t, err, errors.ErrResourceLimit)
}

func TestSession_GrowPolicy(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	m := load(t, e, watGrowChecked)

	bounded := DefaultLimits()
	bounded.Grow = GrowBounded
	bounded.MaxMemoryBytes = 64 * 1024
	require.ErrorIs(t, openSession(t, e, &SessionConfig{Limits: bounded}).Exec(m), errors.ErrGuestTrap)

	always := DefaultLimits()
	always.MaxMemoryBytes = 64 * 1024 // ignored under GrowAlways
	require.NoError(t, openSession(t, e, &SessionConfig{Limits: always}).Exec(m))

	require.NoError(t, openSession(t, e, nil).Exec(m))
}

func TestSession_Checksum(t *testing.T) {
	dir := t.TempDir()
	input := []byte("pulldown-cmark benchmark input\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "input.txt"), input, 0o644))

	var want int32
	for _, c := range input {
		want = want*31 + int32(c)
	}

	e := newEngine(t, DefaultConfig())
	bin := wat(t, watChecksum)

	var sums []int64
	for i := 0; i < 2; i++ {
		artifact, err := e.Compile(bin)
		require.NoError(t, err)
		m, err := e.Deserialize(artifact)
		require.NoError(t, err)

		s := openSession(t, e, &SessionConfig{Dir: dir, RecordMarks: true})
		inst, err := s.Instantiate(m)
		require.NoError(t, err)
		require.NoError(t, s.Run(inst))
		require.Equal(t, []Mark{BenchStart, BenchEnd}, s.Marks())

		sum, ok := inst.Global("checksum")
		require.True(t, ok)
		sums = append(sums, sum)
	}

	require.Equal(t, sums[0], sums[1])
	require.Equal(t, int64(want), sums[0])
}

func TestSession_ChecksumMissingFile(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	s := openSession(t, e, &SessionConfig{Dir: t.TempDir()})
	require.ErrorIs(t, s.Exec(load(t, e, watChecksum)), errors.ErrGuestTrap)
}

func TestSession_ConfigErrors(t *testing.T) {
	plain := newEngine(t, DefaultConfig())
	fueled := newEngine(t, FuelConfig())

	_, err := plain.NewSession(&SessionConfig{FuelBudget: 10})
	require.ErrorIs(t, err, errors.ErrConfig)

	_, err = plain.NewSession(&SessionConfig{EpochDeadline: 10})
	require.ErrorIs(t, err, errors.ErrConfig)

	_, err = fueled.NewSession(&SessionConfig{FuelBudget: DefaultFuelBudget + 1})
	require.ErrorIs(t, err, errors.ErrConfig)

	_, err = plain.NewSession(&SessionConfig{Limits: &ResourceLimits{MaxInstances: -2}})
	require.ErrorIs(t, err, errors.ErrConfig)

	_, err = plain.NewSession(&SessionConfig{Dir: filepath.Join(t.TempDir(), "missing")})
	var werr *errors.Error
	require.True(t, stderrors.As(err, &werr))
	require.Equal(t, errors.KindIO, werr.Kind)
}

func TestState_String(t *testing.T) {
	require.Equal(t, "epoch_expired", StateEpochExpired.String())
	require.Equal(t, "state(42)", State(42).String())
	require.True(t, StateCompleted.Terminal())
	require.False(t, StateRunning.Terminal())
}
