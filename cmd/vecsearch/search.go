package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/dialogue"
	"github.com/spf13/cobra"
)

type searchFlags struct {
	play      bool
	act       string
	queries   []string
	k         int
	backend   string
	batchSize int
}

func newSearchCmd() *cobra.Command {
	var f searchFlags

	cmd := &cobra.Command{
		Use:   "search FILE",
		Short: "Index FILE and run queries against it",
		Long: `Index FILE and run queries against it.

Without --query, queries are read from stdin, one per line.`,
		Example: `  vecsearch search notes.txt -q "deadline" -k 3
  vecsearch search hamlet.txt --play --act "ACT III" -q "should i be?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("backend") {
				cfg.Store.Backend = f.backend
			}
			if cmd.Flags().Changed("batch-size") {
				cfg.Batch.Size = f.batchSize
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			var queries io.Reader
			if len(f.queries) == 0 {
				queries = cmd.InOrStdin()
			}

			return runSearch(cmd.Context(), cfg, f, file, queries, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&f.play, "play", false, "parse FILE as a play in Gutenberg layout")
	cmd.Flags().StringVar(&f.act, "act", "", "only index this act (with --play)")
	cmd.Flags().StringArrayVarP(&f.queries, "query", "q", nil, "query to run (repeatable)")
	cmd.Flags().IntVarP(&f.k, "k", "k", 10, "number of results, -1 for all")
	cmd.Flags().StringVar(&f.backend, "backend", "", "exact or approx (overrides config)")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "texts per provider call (overrides config)")

	return cmd
}

// searcher answers a query with printable lines.
type searcher func(ctx context.Context, query string, k int) ([]string, error)

func runSearch(ctx context.Context, cfg Config, f searchFlags, src io.Reader, queries io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	p, err := cfg.NewProvider()
	if err != nil {
		return err
	}

	metrics := &vecsearch.BasicMetricsCollector{}
	store, err := cfg.NewStore(p, newLogger(), metrics)
	if err != nil {
		return err
	}
	defer store.Close()

	var search searcher
	if f.play {
		search, err = indexPlay(ctx, cfg, f, store, src, out)
	} else {
		search, err = indexLines(ctx, cfg, store, src, out)
	}
	if err != nil {
		return err
	}

	run := func(q string) error {
		start := time.Now()
		lines, err := search(ctx, q, f.k)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "search time: %.4f secs\n", time.Since(start).Seconds())
		for i, l := range lines {
			fmt.Fprintf(out, "  %d: %s\n", i+1, l)
		}
		return nil
	}

	if queries == nil {
		for _, q := range f.queries {
			if err := run(q); err != nil {
				return err
			}
		}
	} else {
		sc := bufio.NewScanner(queries)
		for sc.Scan() {
			q := strings.TrimSpace(sc.Text())
			if q == "" {
				continue
			}
			if err := run(q); err != nil {
				return err
			}
		}
		if err := sc.Err(); err != nil {
			return err
		}
	}

	stats := metrics.GetStats()
	fmt.Fprintf(out, "%d searches, avg %.4f secs\n", stats.SearchCount, time.Duration(stats.SearchAvgNanos).Seconds())

	return nil
}

func indexLines(ctx context.Context, cfg Config, store vecsearch.KeySearcher, src io.Reader, out io.Writer) (searcher, error) {
	var (
		keys  []int
		lines []string
	)

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		keys = append(keys, n)
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	if _, err := store.AddBatch(ctx, keys, lines, cfg.Batch.Size); err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "embedded %d lines in %.4f secs\n", store.Count(), time.Since(start).Seconds())

	// Keys are line numbers.
	byKey := make(map[int]string, len(keys))
	for i, key := range keys {
		byKey[key] = lines[i]
	}

	return func(ctx context.Context, query string, k int) ([]string, error) {
		results, err := store.SearchKeyText(ctx, query, k)
		if err != nil {
			return nil, err
		}
		printable := make([]string, len(results))
		for i, r := range results {
			printable[i] = fmt.Sprintf("[line %d, %.4f] %s", r.Key, r.Distance, byKey[r.Key])
		}
		return printable, nil
	}, nil
}

func indexPlay(ctx context.Context, cfg Config, f searchFlags, store vecsearch.KeySearcher, src io.Reader, out io.Writer) (searcher, error) {
	play, err := dialogue.Parse(src)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "%d lines, %d words\n", play.NumLines, play.NumWords)

	ix := dialogue.NewIndex(store)

	var total time.Duration
	for _, act := range play.Acts {
		if f.act != "" && act.Name != f.act {
			continue
		}

		name := act.Name
		start := time.Now()
		if err := ix.AddPlay(ctx, play, cfg.Batch.Size, func(a string) bool { return a == name }); err != nil {
			return nil, err
		}
		elapsed := time.Since(start)
		total += elapsed

		fmt.Fprintf(out, "act %s embedded %d sentences in %.4f secs\n", name, len(ix.Sentences("", name)), elapsed.Seconds())
	}
	fmt.Fprintf(out, "embedded %d phrases, %d sentences in %.4f secs\n", ix.NumPhrases(), ix.NumSentences(), total.Seconds())

	return func(ctx context.Context, query string, k int) ([]string, error) {
		hits, err := ix.Search(ctx, query, k)
		if err != nil {
			return nil, err
		}
		printable := make([]string, len(hits))
		for i, h := range hits {
			printable[i] = fmt.Sprintf("[%s, %s, %.4f] %s", h.Line.Actor, h.Line.Act, h.Distance, h.Sentence)
		}
		return printable, nil
	}, nil
}
