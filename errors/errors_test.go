package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseExecute,
				Kind:   KindTrapped,
				Reason: ReasonFuelExhausted,
				Detail: "call _start",
				Cause:  errors.New("all fuel consumed"),
			},
			contains: []string{"[execute]", "trapped", "(fuel_exhausted)", "call _start", "caused by", "all fuel consumed"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseCompile,
				Kind:  KindInvalidBytecode,
			},
			contains: []string{"[compile]", "invalid_bytecode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				require.Contains(t, msg, s)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Compile("compile module", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, cause, err.Unwrap())
}

func TestError_Is(t *testing.T) {
	err := Trapped(ReasonEpochExpired, errors.New("interrupt"))
	wrapped := fmt.Errorf("iteration 3: %w", err)

	require.ErrorIs(t, wrapped, ErrTrapped)
	require.ErrorIs(t, wrapped, ErrEpochExpired)
	require.NotErrorIs(t, wrapped, ErrFuelExhausted)
	require.NotErrorIs(t, wrapped, ErrCompile)
}

func TestBuilder(t *testing.T) {
	err := New(PhaseLink, KindResourceLimit).
		Value(3).
		Detail("instance limit %d reached", 2).
		Cause(errors.New("boom")).
		Build()

	require.Equal(t, PhaseLink, err.Phase)
	require.Equal(t, KindResourceLimit, err.Kind)
	require.Equal(t, 3, err.Value)
	require.Equal(t, "instance limit 2 reached", err.Detail)
	require.ErrorIs(t, err, ErrResourceLimit)
}

func TestTrapReasonOf(t *testing.T) {
	reason, ok := TrapReasonOf(fmt.Errorf("wrap: %w", Trapped(ReasonGuestTrap, nil)))
	require.True(t, ok)
	require.Equal(t, ReasonGuestTrap, reason)

	_, ok = TrapReasonOf(EntryPointNotFound("_start"))
	require.False(t, ok)

	_, ok = TrapReasonOf(errors.New("plain"))
	require.False(t, ok)
}

func TestRecoverable(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{nil, "nil", true},
		{Config("bad"), "config", false},
		{UnsupportedTarget("riscv64gc-unknown-linux-gnu", "x86_64-unknown-linux-gnu"), "target", false},
		{Fatal("restore cwd", errors.New("gone")), "fatal", false},
		{IO(PhaseHarness, "read", errors.New("eof")), "harness io", true},
		{Compile("bad magic", nil), "compile", true},
		{Trapped(ReasonFuelExhausted, nil), "trap", true},
		{errors.New("foreign"), "foreign", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Recoverable(tt.err))
		})
	}
}

func TestSkipsBenchmark(t *testing.T) {
	require.True(t, SkipsBenchmark(EntryPointNotFound("_start")))
	require.True(t, SkipsBenchmark(SignatureMismatch("_start", "(i32) -> ()")))
	require.True(t, SkipsBenchmark(MissingImports([]string{"env#abort"})))
	require.True(t, SkipsBenchmark(Incompatible("fingerprint", nil)))
	require.False(t, SkipsBenchmark(Trapped(ReasonEpochExpired, nil)))
	require.False(t, SkipsBenchmark(ResourceLimit("instances", nil)))
}

func TestMissingImportsError(t *testing.T) {
	err := MissingImports([]string{"env#abort", "env#seed", "wasi_unstable#fd_write"})

	require.ErrorIs(t, err, ErrMissingImport)

	var mi *MissingImportsError
	require.True(t, errors.As(err, &mi))
	require.Len(t, mi.Imports, 3)
	require.Equal(t, MissingImport{Module: "env", Name: "abort"}, mi.Imports[0])

	msg := mi.Error()
	require.True(t, strings.HasPrefix(msg, "missing 3 host function(s):"))
	require.Less(t, strings.Index(msg, "env:"), strings.Index(msg, "wasi_unstable:"))
	require.Contains(t, msg, "    - fd_write")
}

func TestMissingImportsError_Empty(t *testing.T) {
	require.Equal(t, "[link] missing_import: no imports specified", (&MissingImportsError{}).Error())
}
