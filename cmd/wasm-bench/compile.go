package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var compileOut string

func init() {
	compileCmd.Flags().StringVarP(&compileOut, "output", "o", "", "artifact path (default: <module>.cwasm)")
	rootCmd.AddCommand(compileCmd)
}

var compileCmd = &cobra.Command{
	Use:   "compile <module.wasm>",
	Short: "Compile a module to a native artifact for this engine configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		bytecode, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read module: %w", err)
		}

		e, err := opts.newEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		start := time.Now()
		artifact, err := e.Compile(bytecode)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		out := compileOut
		if out == "" {
			out = strings.TrimSuffix(path, ".wasm") + ".cwasm"
		}
		if err := os.WriteFile(out, artifact, 0o644); err != nil {
			return fmt.Errorf("write artifact: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (%s) in %s, fingerprint %s\n",
			path,
			humanize.IBytes(uint64(len(bytecode))),
			humanize.IBytes(uint64(len(artifact))),
			out,
			elapsed.Round(time.Microsecond),
			e.Fingerprint())
		return nil
	},
}
