// Package errors provides structured error types for the benchmark engine layer.
//
// Errors are categorized by Phase (where the error occurred), Kind (error
// category) and, for traps, Reason (fuel exhaustion, epoch expiry, guest trap
// or non-zero exit).
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLink, errors.KindResourceLimit).
//		Value(3).
//		Detail("instance limit %d reached", 2).
//		Build()
//
// Or use convenience constructors and sentinels:
//
//	err := errors.Trapped(errors.ReasonEpochExpired, cause)
//	if stderrors.Is(err, errors.ErrEpochExpired) { ... }
//
// Recoverable and SkipsBenchmark encode the propagation policy: only
// configuration and fatal harness errors abort a run, and a trapped
// iteration is dropped without retry.
package errors
