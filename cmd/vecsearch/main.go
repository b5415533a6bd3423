// Command vecsearch indexes a text file or a play and answers semantic
// search queries against it.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hupe1980/vecsearch"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vecsearch",
	Short: "Semantic search over text files",
	Long: `vecsearch embeds every line of a text file, or every sentence of a play
in Project Gutenberg layout, and returns the entries closest to a query.

Embeddings come from an offline hashing provider by default or from an
OpenAI-compatible endpoint. Search runs either exactly (brute force) or
approximately (HNSW).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "vecsearch.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newConfigCmd())
}

func newLogger() *vecsearch.Logger {
	if verbose {
		return vecsearch.NewTextLogger(slog.LevelDebug)
	}
	return vecsearch.NewTextLogger(slog.LevelWarn)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
