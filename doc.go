// Package wasmbench is an embedding layer around a native-code WebAssembly
// engine, built to compile, run and benchmark WASI modules under fuel and
// epoch preemption.
//
// # Architecture Overview
//
//	wasmbench/
//	├── engine/          Engine config, compile/deserialize, sessions, preemption
//	├── inspect/         Static import/export inspection of modules
//	├── bench/           Benchmark corpus, runner and timing statistics
//	├── errors/          Structured error types with phase, kind and trap reason
//	└── cmd/wasm-bench/  CLI: compile, run, inspect, bench, list
//
// # Quick Start
//
// Compile a module once and run it in a fresh session:
//
//	e, err := engine.New(engine.FuelConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Close()
//
//	artifact, err := e.Compile(bytecode)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m, err := e.Deserialize(artifact)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sess, err := e.NewSession(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
//	if err := sess.Exec(m); errors.Is(err, errors.ErrFuelExhausted) {
//	    // budget spent
//	}
//
// # Preemption
//
// Fuel bounds the number of executed steps and is deterministic. Epochs bound
// wall-clock time: a per-engine ticker advances the epoch every EpochTick
// while a run is in progress, and a run traps once EpochDeadline ticks pass.
// Both can be enabled together; whichever limit is hit first wins.
//
// # Artifacts
//
// Compiled artifacts carry a header with a fingerprint of the engine
// configuration that produced them. Deserialize refuses artifacts from a
// different configuration unless TrustArtifacts is set. Artifacts contain
// native code and must only come from a trusted source.
//
// # Thread Safety
//
// Engine and Module are safe for concurrent use. Session is NOT thread-safe
// and should be used by a single goroutine.
package wasmbench
