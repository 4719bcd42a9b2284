// Package inspect reads the static shape of a WebAssembly module: its
// imports and exports with their signatures.
//
// Decoding uses the wazero interpreter configuration, so inspecting a
// module never generates native code. The benchmark harness uses it as a
// preflight, skipping a benchmark whose entry point is absent or has the
// wrong type, or whose imports the session linker cannot satisfy, before
// paying for a full compilation.
//
//	m, err := inspect.Inspect(ctx, bytecode)
//	if err != nil {
//	    return err
//	}
//	if _, err := m.EntryPoint("_start"); err != nil {
//	    return err
//	}
//	missing := m.Unresolved(engine.Provides)
//
// A module that uses proposals wazero does not decode fails here even if
// the compiling engine accepts it; callers treat that as "no preflight"
// rather than as a broken module.
package inspect
