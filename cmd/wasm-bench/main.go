package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-bench/bench"
	"github.com/wippyai/wasm-bench/engine"
)

type options struct {
	fuel          bool
	fuelBudget    uint64
	epoch         bool
	epochDeadline uint64
	epochTick     time.Duration
	target        string
	optLevel      string
	entryPoint    string
	cache         bool
	debugInfo     bool
	trust         bool
	logLevel      string
	envFile       string
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "wasm-bench",
	Short: "Compile, run and benchmark WebAssembly modules on an embedded engine",
	Long: `wasm-bench drives an embedded WebAssembly engine: it compiles modules to
native artifacts, runs them under fuel or epoch preemption, and measures
compile and execute times over a benchmark corpus.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(opts.logLevel)
		if err != nil {
			return err
		}
		engine.SetLogger(logger)
		bench.SetLogger(logger.Named("bench"))
		if err := loadEnv(opts.envFile); err != nil {
			logger.Warn("env file not loaded", zap.String("path", opts.envFile), zap.Error(err))
		}
		return nil
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.BoolVar(&opts.fuel, "fuel", false, "enable fuel accounting")
	f.Uint64Var(&opts.fuelBudget, "fuel-budget", 0, "fuel per run (default: engine maximum)")
	f.BoolVar(&opts.epoch, "epoch", false, "enable epoch interruption")
	f.Uint64Var(&opts.epochDeadline, "epoch-deadline", 0, "ticks per run (default 5)")
	f.DurationVar(&opts.epochTick, "epoch-tick", 0, "epoch ticker period (default 1ms)")
	f.StringVar(&opts.target, "target", "", "target triple, must match the host (default: host)")
	f.StringVar(&opts.optLevel, "opt-level", string(engine.OptSpeed), "none, speed or speed_and_size")
	f.StringVar(&opts.entryPoint, "entry", engine.DefaultEntryPoint, "entry point export")
	f.BoolVar(&opts.cache, "cache", false, "use the engine's on-disk compilation cache")
	f.BoolVar(&opts.debugInfo, "debug-info", false, "emit native debug info")
	f.BoolVar(&opts.trust, "trust-artifacts", false, "skip the artifact fingerprint check")
	f.StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")
	f.StringVar(&opts.envFile, "env-file", ".env", "dotenv file read before running (missing is fine)")
}

func (o *options) engineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Target = o.target
	cfg.EntryPoint = o.entryPoint
	cfg.OptLevel = engine.OptLevel(o.optLevel)
	cfg.Fuel = o.fuel
	cfg.FuelBudget = o.fuelBudget
	cfg.Epoch = o.epoch
	cfg.EpochDeadline = o.epochDeadline
	cfg.EpochTick = o.epochTick
	cfg.Cache = o.cache
	cfg.DebugInfo = o.debugInfo
	cfg.TrustArtifacts = o.trust
	return cfg
}

func (o *options) newEngine() (*engine.Engine, error) {
	return engine.New(o.engineConfig())
}

// loadEnv reads KEY=VALUE pairs (such as WASM_BENCH_ROOT) from path without
// overriding variables already set.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
