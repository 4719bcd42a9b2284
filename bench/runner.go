package bench

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bench/engine"
	"github.com/wippyai/wasm-bench/errors"
	"github.com/wippyai/wasm-bench/inspect"
)

// Op is a benchmarked operation.
type Op string

const (
	OpCompile Op = "compile"
	OpExecute Op = "execute"
)

// Ops is every operation in run order.
var Ops = []Op{OpCompile, OpExecute}

// ID formats a benchmark identifier as "op:name".
func ID(op Op, name string) string {
	return string(op) + ":" + name
}

// Result holds the timings of one operation on one benchmark.
type Result struct {
	Name         string
	Op           Op
	InputSize    int
	ArtifactSize int
	Samples      []time.Duration
	Failures     int
	// Skipped is set when the benchmark could not be measured at all.
	Skipped error
}

// ID returns "op:name".
func (r *Result) ID() string {
	return ID(r.Op, r.Name)
}

// Summary summarizes the samples.
func (r *Result) Summary() Summary {
	return Summarize(r.Samples)
}

// Progress reports a finished iteration.
type Progress struct {
	Benchmark string
	Op        Op
	Iteration int
	Total     int
	Warmup    bool
	Err       error
}

// Runner measures compilation and execution of corpus benchmarks on one
// engine. Sessions, file reads and deserialization happen outside the timed
// region; only Engine.Compile or Session.Exec is measured.
type Runner struct {
	Engine     *engine.Engine
	Iterations int
	Warmup     int
	// Session is the template for per-iteration sessions. Its Dir is
	// replaced by the benchmark directory.
	Session    *engine.SessionConfig
	OnProgress func(Progress)
}

const DefaultIterations = 10

func (r *Runner) iterations() int {
	if r.Iterations <= 0 {
		return DefaultIterations
	}
	return r.Iterations
}

func (r *Runner) progress(p Progress) {
	if r.OnProgress != nil {
		r.OnProgress(p)
	}
}

// Run measures each op on each benchmark. Benchmarks that cannot be measured
// are logged and returned with Skipped set; an error that is not recoverable
// stops the run and is returned with the results gathered so far.
func (r *Runner) Run(ctx context.Context, benches []Benchmark, ops []Op) ([]*Result, error) {
	var results []*Result
	for _, b := range benches {
		for _, op := range ops {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			var (
				res *Result
				err error
			)
			switch op {
			case OpCompile:
				res, err = r.Compile(ctx, b)
			case OpExecute:
				res, err = r.Execute(ctx, b)
			default:
				return results, errors.Config("unknown op %q", op)
			}
			if err != nil {
				if !errors.Recoverable(err) || !errors.SkipsBenchmark(err) {
					return results, err
				}
				Logger().Warn("skipping benchmark",
					zap.String("id", ID(op, b.Name)),
					zap.Error(err))
				res = &Result{Name: b.Name, Op: op, Skipped: err}
			}
			results = append(results, res)
		}
	}
	return results, nil
}

// Compile times Engine.Compile on the benchmark's module.
func (r *Runner) Compile(ctx context.Context, b Benchmark) (*Result, error) {
	bytecode, err := b.Read()
	if err != nil {
		return nil, err
	}

	// Reference compilation: a module that does not compile skips the benchmark.
	artifact, err := r.Engine.Compile(bytecode)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Name:         b.Name,
		Op:           OpCompile,
		InputSize:    len(bytecode),
		ArtifactSize: len(artifact),
	}
	err = r.iterate(ctx, res, func() (time.Duration, error) {
		start := time.Now()
		_, err := r.Engine.Compile(bytecode)
		return time.Since(start), err
	})
	return res, err
}

// Execute times instantiating and running the benchmark's entry point, each
// iteration in a fresh session with the benchmark directory preopened and
// set as the working directory.
func (r *Runner) Execute(ctx context.Context, b Benchmark) (*Result, error) {
	bytecode, err := b.Read()
	if err != nil {
		return nil, err
	}
	if err := r.preflight(ctx, bytecode); err != nil {
		return nil, err
	}

	artifact, err := r.Engine.Compile(bytecode)
	if err != nil {
		return nil, err
	}
	module, err := r.Engine.Deserialize(artifact)
	if err != nil {
		return nil, err
	}

	cfg := engine.DefaultSessionConfig()
	if r.Session != nil {
		c := *r.Session
		cfg = &c
	}
	cfg.Dir = b.Dir

	res := &Result{
		Name:         b.Name,
		Op:           OpExecute,
		InputSize:    len(bytecode),
		ArtifactSize: len(artifact),
	}
	err = InDir(b.Dir, func() error {
		return r.iterate(ctx, res, func() (time.Duration, error) {
			sess, err := r.Engine.NewSession(cfg)
			if err != nil {
				return 0, err
			}
			defer sess.Close()

			start := time.Now()
			err = sess.Exec(module)
			return time.Since(start), err
		})
	})
	return res, err
}

// preflight rejects modules whose entry point or imports cannot work before
// compiling them. Modules the inspector cannot decode go straight to the
// engine, which may support more proposals.
func (r *Runner) preflight(ctx context.Context, bytecode []byte) error {
	m, err := inspect.Inspect(ctx, bytecode)
	if err != nil {
		Logger().Debug("preflight skipped", zap.Error(err))
		return nil
	}
	if _, err := m.EntryPoint(r.Engine.Config().EntryPoint); err != nil {
		return err
	}
	if missing := m.Unresolved(engine.Provides); len(missing) > 0 {
		return errors.MissingImports(missing)
	}
	return nil
}

// iterate runs warmup then measured iterations. A failed iteration is logged,
// counted and excluded from the samples; it is never retried. Errors that
// are not recoverable end the loop.
func (r *Runner) iterate(ctx context.Context, res *Result, measure func() (time.Duration, error)) error {
	total := r.iterations()
	for i := 0; i < r.Warmup+total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		warmup := i < r.Warmup
		d, err := measure()
		if err != nil {
			// a module that cannot run once cannot run at all
			if !errors.Recoverable(err) || errors.SkipsBenchmark(err) {
				return err
			}
			Logger().Warn("iteration failed",
				zap.String("id", res.ID()),
				zap.Int("iteration", i),
				zap.Bool("warmup", warmup),
				zap.Error(err))
			if !warmup {
				res.Failures++
			}
		} else if !warmup {
			res.Samples = append(res.Samples, d)
		}

		p := Progress{Benchmark: res.Name, Op: res.Op, Total: total, Warmup: warmup, Err: err}
		if !warmup {
			p.Iteration = i - r.Warmup + 1
		}
		r.progress(p)
	}

	Logger().Debug("measured",
		zap.String("id", res.ID()),
		zap.Int("samples", len(res.Samples)),
		zap.Int("failures", res.Failures))
	return nil
}
