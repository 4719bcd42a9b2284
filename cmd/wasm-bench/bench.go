package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bench/bench"
	"github.com/wippyai/wasm-bench/engine"
)

var (
	benchIterations int
	benchWarmup     int
	benchOps        []string
	benchPlain      bool
	benchMetrics    string
)

func init() {
	f := benchCmd.Flags()
	f.IntVar(&benchIterations, "iterations", bench.DefaultIterations, "measured iterations per benchmark")
	f.IntVar(&benchWarmup, "warmup", 1, "unmeasured iterations before measuring")
	f.StringSliceVar(&benchOps, "ops", []string{string(bench.OpCompile), string(bench.OpExecute)}, "operations to measure")
	f.BoolVar(&benchPlain, "plain", false, "no progress view even on a terminal")
	f.StringVar(&benchMetrics, "metrics-out", "", "write results to this file in Prometheus text format")
	rootCmd.AddCommand(benchCmd)
}

var benchCmd = &cobra.Command{
	Use:   "bench [benchmark...]",
	Short: "Measure compile and execute times over the corpus",
	Long: `bench compiles and executes each named benchmark (or the default suite)
from the corpus root. Every execute iteration runs in a fresh session with the
benchmark directory preopened and set as the working directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ops, err := parseOps(benchOps)
		if err != nil {
			return err
		}

		corpus := bench.NewCorpus(corpusRoot)
		benches, missing := corpus.Select(args)
		for _, err := range missing {
			bench.Logger().Warn("skipping benchmark", zap.Error(err))
		}
		if len(benches) == 0 {
			return fmt.Errorf("no benchmarks found under %s", corpus.Root)
		}

		e, err := opts.newEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		runner := &bench.Runner{
			Engine:     e,
			Iterations: benchIterations,
			Warmup:     benchWarmup,
			Session:    &engine.SessionConfig{},
		}

		var results []*bench.Result
		if !benchPlain && term.IsTerminal(int(os.Stdout.Fd())) {
			results, err = runWithProgress(cmd.Context(), runner, benches, ops)
		} else {
			results, err = runner.Run(cmd.Context(), benches, ops)
		}
		printResults(cmd.OutOrStdout(), results)
		if benchMetrics != "" {
			metrics := bench.NewMetrics()
			for _, r := range results {
				metrics.Observe(r)
			}
			if werr := metrics.WriteFile(benchMetrics); werr != nil && err == nil {
				err = werr
			}
		}
		if err != nil {
			bench.Logger().Error("benchmark run aborted", zap.Error(err))
		}
		return err
	},
}

func parseOps(names []string) ([]bench.Op, error) {
	var ops []bench.Op
	for _, name := range names {
		switch op := bench.Op(strings.TrimSpace(name)); op {
		case bench.OpCompile, bench.OpExecute:
			ops = append(ops, op)
		default:
			return nil, fmt.Errorf("unknown op %q", name)
		}
	}
	return ops, nil
}

func printResults(w io.Writer, results []*bench.Result) {
	if len(results) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BENCHMARK\tINPUT\tARTIFACT\tN\tFAIL\tMEDIAN\tMEAN\tSTDDEV\tMIN\tMAX")
	for _, r := range results {
		if r.Skipped != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t0\t-\tskipped: %v\n", r.ID(), r.Skipped)
			continue
		}
		s := r.Summary()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID(),
			humanize.IBytes(uint64(r.InputSize)),
			humanize.IBytes(uint64(r.ArtifactSize)),
			s.N, r.Failures,
			round(s.Median), round(s.Mean), round(s.StdDev), round(s.Min), round(s.Max))
	}
	_ = tw.Flush()
}

func round(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(time.Microsecond)
	}
	return d
}

// runWithProgress runs the benchmarks on a goroutine and renders progress
// until they finish. Quitting the view cancels the run.
func runWithProgress(ctx context.Context, runner *bench.Runner, benches []bench.Benchmark, ops []bench.Op) ([]*bench.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(len(benches)*len(ops)), tea.WithOutput(os.Stderr))
	runner.OnProgress = func(pr bench.Progress) { p.Send(progressMsg(pr)) }

	done := make(chan doneMsg, 1)
	go func() {
		results, err := runner.Run(ctx, benches, ops)
		msg := doneMsg{results: results, err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		bench.Logger().Warn("progress view failed", zap.Error(err))
	}
	cancel()
	d := <-done
	return d.results, d.err
}
