// Package engine is the embedded-engine control layer of the benchmark driver.
//
// It wraps wasmtime to configure resource accounting, compile modules to
// serialized artifacts, reconstruct modules from those artifacts, and run
// entry points under fuel or epoch preemption.
//
// # Architecture
//
//	Engine   - Configured backend, built once and shared by every iteration
//	Module   - Executable module, from Deserialize or CompileModule
//	Session  - One store per iteration: capabilities, limits, fuel, deadline
//	Instance - A module instantiated in a session
//
// # Benchmark Flow
//
//  1. New(cfg) builds the engine (fuel and epoch flags are fixed here)
//  2. Compile(bytes) produces an artifact; this is the timed compile region
//  3. Deserialize(artifact) once per benchmark
//  4. For each iteration: NewSession, then Instantiate + Run (timed), then Close
//
// # Preemption
//
// Fuel: the store is topped up to Config.FuelBudget before every Run.
// Exhaustion returns errors.ErrFuelExhausted instead of crashing.
//
// Epochs: Run arms a deadline Config.EpochDeadline ticks ahead and leases the
// engine's ticker, a single goroutine that advances the epoch every
// Config.EpochTick and parks when no call holds a lease. Expiry returns
// errors.ErrEpochExpired. Precision is bounded by the tick period.
//
// # Artifacts
//
// Artifacts carry a small envelope with a fingerprint of the engine version,
// target triple and codegen flags. Deserialize checks the fingerprint and
// nothing else: the native payload is trusted. Only deserialize artifacts
// produced by Compile on an engine with the same configuration.
//
// # Host Imports
//
// Every session links WASI preview1 with one preopened directory and the
// no-op stubs bench.start and bench.end. Any other import fails
// instantiation with errors.ErrMissingImport.
//
// # Thread Safety
//
// Engine and Module are safe for concurrent use.
// Session and Instance are NOT thread-safe and belong to a single goroutine.
package engine
