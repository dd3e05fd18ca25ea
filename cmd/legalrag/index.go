package main

import (
	"github.com/spf13/cobra"
)

func newIndexCmd(a *app) *cobra.Command {
	var (
		chunksPath string
		drop       bool
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed the chunk file into the configured vector store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if chunksPath == "" {
				chunksPath = a.cfg.Corpus.OutputFile
			}
			ctx := cmd.Context()
			chunks, err := loadChunkFile(chunksPath)
			if err != nil {
				return err
			}
			sparse, err := buildSparse(a.cfg, a.log, false)
			if err != nil {
				return err
			}
			svc, err := buildService(a.cfg, a.log, sparse)
			if err != nil {
				return err
			}
			if a.cfg.VectorStore.Type == "memory" {
				a.log.Warn("memory store does not outlive this process; use search to query it")
			}
			if drop {
				if err := svc.Clear(ctx); err != nil {
					return err
				}
			}
			if err := svc.Prepare(chunks); err != nil {
				return err
			}
			a.log.Info("indexing", "chunks", len(chunks), "batch_size", a.cfg.VectorStore.BatchSize)
			stored, err := svc.Ingest(ctx, chunks)
			if err != nil {
				return err
			}
			if err := sparse.Save(a.cfg.Sparse.ParamsFile); err != nil {
				return err
			}
			a.log.Info("indexing complete", "stored", stored, "skipped", len(chunks)-stored, "bm25_params", a.cfg.Sparse.ParamsFile)
			return nil
		},
	}
	cmd.Flags().StringVarP(&chunksPath, "chunks", "c", "", "Chunk file to index (default corpus.output_file)")
	cmd.Flags().BoolVar(&drop, "clear", false, "Drop the existing index before ingesting")
	return cmd
}
