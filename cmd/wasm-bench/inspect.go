package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-bench/engine"
	"github.com/wippyai/wasm-bench/inspect"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <module.wasm|artifact.cwasm>",
	Short: "Show a module's imports and exports, or an artifact's header",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		w := cmd.OutOrStdout()

		if h, herr := engine.ReadHeader(data); herr == nil {
			return printArtifact(w, args[0], h, len(data))
		}

		m, err := inspect.Inspect(cmd.Context(), data)
		if err != nil {
			return err
		}
		printModule(w, args[0], m)
		return nil
	},
}

func printArtifact(w io.Writer, path string, h engine.Header, size int) error {
	fmt.Fprintf(w, "%s %s\n\n", titleStyle.Render("artifact"), path)
	fmt.Fprintf(w, "  size:        %s\n", humanize.IBytes(uint64(size)))
	fmt.Fprintf(w, "  version:     %d\n", h.Version)
	fmt.Fprintf(w, "  fingerprint: %s\n", h.Fingerprint)

	e, err := opts.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()
	if h.Fingerprint == e.Fingerprint() {
		fmt.Fprintln(w, resultStyle.Render("  matches the current engine configuration"))
	} else {
		fmt.Fprintln(w, errorStyle.Render("  built for a different engine configuration"))
	}
	return nil
}

func printModule(w io.Writer, path string, m *inspect.Module) {
	fmt.Fprintf(w, "%s %s (%s)\n\n", titleStyle.Render("module"), path, humanize.IBytes(uint64(m.Size)))

	fmt.Fprintf(w, "Imports (%d):\n", len(m.Imports))
	for _, imp := range m.Imports {
		fmt.Fprintf(w, "  %s#%s %s\n", imp.Module, funcStyle.Render(imp.Name), typeStyle.Render(imp.Signature()))
	}

	fmt.Fprintf(w, "\nExports (%d):\n", len(m.Exports))
	for _, exp := range m.Exports {
		fmt.Fprintf(w, "  %s %s\n", funcStyle.Render(exp.Name), typeStyle.Render(exp.Signature()))
	}

	fmt.Fprintln(w)
	if _, err := m.EntryPoint(opts.entryPoint); err != nil {
		fmt.Fprintln(w, errorStyle.Render(err.Error()))
	} else {
		fmt.Fprintln(w, resultStyle.Render("entry point "+opts.entryPoint+" () -> ()"))
	}
	if missing := m.Unresolved(engine.Provides); len(missing) > 0 {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("unresolved imports: %v", missing)))
	}
}
