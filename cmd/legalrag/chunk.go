package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"legalrag/internal/chunker"
	"legalrag/internal/corpus"
)

func newChunkCmd(a *app) *cobra.Command {
	var (
		source, out, format string
		workers             int
	)
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Segment every .txt judgment under the source directory into chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if source != "" {
				a.cfg.Corpus.SourceDir = source
			}
			if out != "" {
				a.cfg.Corpus.OutputFile = out
			}
			if format != "" {
				a.cfg.Corpus.Format = format
			}
			if workers > 0 {
				a.cfg.Corpus.Workers = workers
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return runChunk(cmd, a)
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "Directory of .txt judgments (overrides corpus.source_dir)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (overrides corpus.output_file)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: jsonl or json (overrides corpus.format)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Documents segmented in parallel (overrides corpus.workers)")
	return cmd
}

func runChunk(cmd *cobra.Command, a *app) (err error) {
	c := a.cfg.Corpus
	seg, err := chunker.NewSegmenter(chunker.Config{MaxChars: a.cfg.ChunkBudget()})
	if err != nil {
		return err
	}
	f, err := os.Create(c.OutputFile)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() { err = errors.Join(err, f.Close()) }()
	sink, err := corpus.NewSink(c.Format, f)
	if err != nil {
		return err
	}

	a.log.Info("chunking corpus", "source", c.SourceDir, "format", c.Format, "max_chars", seg.MaxChars(), "workers", c.Workers)
	walker := corpus.NewWalker(c.SourceDir, seg, a.log, c.Workers)
	stats, walkErr := walker.Walk(cmd.Context(), sink)
	// Flush whatever was produced, even after a failed walk.
	if err := errors.Join(walkErr, sink.Close()); err != nil {
		return err
	}
	a.log.Info("chunking complete",
		"documents", stats.Documents,
		"skipped", stats.Skipped,
		"chunks", stats.Chunks,
		"output", c.OutputFile,
	)
	return nil
}
