package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-bench/engine"
)

var (
	runDir   string
	runQuiet bool
)

func init() {
	runCmd.Flags().StringVar(&runDir, "dir", ".", "host directory preopened as the guest's working directory")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "discard guest stdout and stderr")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <module.wasm|artifact.cwasm> [-- guest args...]",
	Short: "Run a module or a precompiled artifact once",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		e, err := opts.newEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		var m *engine.Module
		if _, herr := engine.ReadHeader(data); herr == nil {
			m, err = e.Deserialize(data)
		} else {
			m, err = e.CompileModule(data)
		}
		if err != nil {
			return err
		}

		sess, err := e.NewSession(&engine.SessionConfig{
			Dir:          runDir,
			Args:         append([]string{path}, args[1:]...),
			InheritStdio: !runQuiet,
			RecordMarks:  true,
		})
		if err != nil {
			return err
		}
		defer sess.Close()

		start := time.Now()
		runErr := sess.Exec(m)
		elapsed := time.Since(start)

		out := cmd.ErrOrStderr()
		fmt.Fprintf(out, "%s %s in %s\n",
			titleStyle.Render(sess.State().String()), path, elapsed.Round(time.Microsecond))
		if fuel, ok := sess.FuelConsumed(); ok {
			fmt.Fprintf(out, "fuel consumed: %d\n", fuel)
		}
		if marks := sess.Marks(); len(marks) > 0 {
			fmt.Fprintf(out, "bench marks: %v\n", marks)
		}
		return runErr
	},
}
