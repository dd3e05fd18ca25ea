package main

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"legalrag/internal/domain"
	"legalrag/internal/summarizer"
	"legalrag/internal/tui"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		chunksPath string
		query      string
		topK       int
		alpha      float64
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the indexed judgments interactively or with --query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if chunksPath == "" {
				chunksPath = a.cfg.Corpus.OutputFile
			}
			if cmd.Flags().Changed("alpha") {
				a.cfg.Search.Alpha = alpha
			}
			if topK > 0 {
				a.cfg.Search.TopK = topK
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			chunks, err := loadChunkFile(chunksPath)
			if err != nil {
				return err
			}
			inMemory := a.cfg.VectorStore.Type == "memory"
			// A remote index was fitted at index time; reuse its keyword statistics.
			sparse, err := buildSparse(a.cfg, a.log, !inMemory)
			if err != nil {
				return err
			}
			svc, err := buildService(a.cfg, a.log, sparse)
			if err != nil {
				return err
			}
			if err := svc.Prepare(chunks); err != nil {
				return err
			}
			if inMemory {
				if _, err := svc.Ingest(ctx, chunks); err != nil {
					return err
				}
			}

			if query != "" {
				results, err := svc.Query(ctx, query, a.cfg.Search.TopK)
				if err != nil {
					return err
				}
				printResults(cmd.OutOrStdout(), results)
				return nil
			}

			digest := summarizer.Format(summarizer.NewFrequencySummarizer().Summarize(chunks, 3))
			m := tui.New(ctx, svc, digest, a.cfg.Search.TopK)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
	cmd.Flags().StringVarP(&chunksPath, "chunks", "c", "", "Chunk file backing the index (default corpus.output_file)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Run one query, print the results and exit")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of results (overrides search.top_k)")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "Dense weight in [0,1] (overrides search.alpha)")
	return cmd
}

func printResults(w io.Writer, results []domain.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. score=%.3f  %s  %s\n   %s\n",
			i+1, r.Score, r.Chunk.Metadata.Source, r.Chunk.Metadata.ParaID, r.Chunk.Content)
	}
}
