package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	var chunksPath string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Print vector index statistics and compare them with the chunk file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := buildStore(a.cfg)
			if err != nil {
				return err
			}
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("read index stats: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "store:     %s\n", a.cfg.VectorStore.Type)
			fmt.Fprintf(out, "points:    %d\n", stats.Points)
			fmt.Fprintf(out, "dimension: %d\n", stats.Dimension)

			if chunksPath == "" {
				chunksPath = a.cfg.Corpus.OutputFile
			}
			chunks, err := loadChunkFile(chunksPath)
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "chunks:    %d\n", len(chunks))
			if stats.Points != len(chunks) {
				a.log.Warn("index and chunk file disagree", "points", stats.Points, "chunks", len(chunks))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&chunksPath, "chunks", "c", "", "Chunk file to compare against (default corpus.output_file)")
	return cmd
}
