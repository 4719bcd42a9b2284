package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-bench/bench"
)

var corpusRoot string

func init() {
	rootCmd.PersistentFlags().StringVar(&corpusRoot, "root", "",
		"benchmark corpus root (default $"+bench.RootEnv+" or "+bench.DefaultRoot+")")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the benchmarks in the corpus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		corpus := bench.NewCorpus(corpusRoot)
		found, err := corpus.Discover()
		if err != nil {
			return err
		}

		inSuite := make(map[string]bool, len(bench.DefaultSuite))
		for _, name := range bench.DefaultSuite {
			inSuite[name] = true
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSIZE\tDEFAULT")
		for _, b := range found {
			size := "?"
			if info, err := os.Stat(b.Path); err == nil {
				size = humanize.IBytes(uint64(info.Size()))
			}
			mark := ""
			if inSuite[b.Name] {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Name, size, mark)
		}
		return tw.Flush()
	},
}
