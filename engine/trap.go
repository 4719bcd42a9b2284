package engine

import (
	stderrors "errors"
	"strings"

	"github.com/bytecodealliance/wasmtime-go/v14"

	"github.com/wippyai/wasm-bench/errors"
)

// classifyCall maps an error returned by a guest call onto the trap taxonomy.
// A WASI exit with status 0 is a normal completion and yields nil.
func classifyCall(err error) error {
	if err == nil {
		return nil
	}

	var trap *wasmtime.Trap
	if stderrors.As(err, &trap) {
		if code := trap.Code(); code != nil {
			switch *code {
			case wasmtime.OutOfFuel:
				return errors.Trapped(errors.ReasonFuelExhausted, err)
			case wasmtime.Interrupt:
				return errors.Trapped(errors.ReasonEpochExpired, err)
			}
		}
		return errors.Trapped(reasonFromMessage(trap.Message()), err)
	}

	var werr *wasmtime.Error
	if stderrors.As(err, &werr) {
		if status, ok := werr.ExitStatus(); ok {
			if status == 0 {
				return nil
			}
			return errors.New(errors.PhaseExecute, errors.KindTrapped).
				Reason(errors.ReasonExit).
				Value(status).
				Detail("guest exited with status %d", status).
				Cause(err).
				Build()
		}
	}

	return errors.Trapped(reasonFromMessage(err.Error()), err)
}

// reasonFromMessage is the fallback when the engine reports a trap without a code.
func reasonFromMessage(msg string) errors.Reason {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "all fuel consumed"), strings.Contains(msg, "out of fuel"):
		return errors.ReasonFuelExhausted
	case strings.Contains(msg, "epoch deadline"), strings.Contains(msg, "interrupt"):
		return errors.ReasonEpochExpired
	}
	return errors.ReasonGuestTrap
}

// classifyInstantiate maps an instantiation failure onto link or limit errors.
func classifyInstantiate(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "resource limit exceeded"),
		strings.Contains(msg, "count too high"),
		strings.Contains(msg, "exceeds memory limits"),
		strings.Contains(msg, "exceeds table limits"):
		return errors.ResourceLimit("instantiate module", err)
	case strings.Contains(msg, "unknown import"):
		return errors.New(errors.PhaseLink, errors.KindMissingImport).
			Detail("instantiate module").
			Cause(err).
			Build()
	}
	var trap *wasmtime.Trap
	if stderrors.As(err, &trap) {
		// start function trapped during instantiation
		return errors.Trapped(reasonFromMessage(trap.Message()), err)
	}
	return errors.Link(err)
}
