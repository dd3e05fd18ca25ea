package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"legalrag/internal/chunker"
	"legalrag/internal/domain"
	"legalrag/internal/logger"
)

// ErrInvalidEncoding is returned for documents that are not valid UTF-8.
var ErrInvalidEncoding = errors.New("corpus: document is not valid UTF-8")

// Stats summarizes one walk.
type Stats struct {
	Documents int
	Skipped   int
	Chunks    int
}

// Walker enumerates .txt documents under a root directory and feeds them to
// a segmenter, writing chunks to a sink in walk order.
type Walker struct {
	root      string
	segmenter *chunker.Segmenter
	log       logger.Logger
	workers   int
}

// NewWalker builds a walker. workers > 1 segments documents concurrently while
// keeping output order; each in-flight document is then buffered whole.
func NewWalker(root string, segmenter *chunker.Segmenter, log logger.Logger, workers int) *Walker {
	if workers < 1 {
		workers = 1
	}
	return &Walker{root: root, segmenter: segmenter, log: log, workers: workers}
}

// Files lists the documents under the root in lexical order.
func (w *Walker) Files() ([]string, error) {
	info, err := os.Stat(w.root)
	if err != nil {
		return nil, fmt.Errorf("corpus: source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus: %s is not a directory", w.root)
	}
	var paths []string
	err = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("skipping unreadable path", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".txt") {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// ReadDocument loads one file as a document identified by its base name.
func ReadDocument(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	if !utf8.Valid(data) {
		return domain.Document{}, ErrInvalidEncoding
	}
	return domain.Document{ID: filepath.Base(path), Path: path, Content: string(data)}, nil
}

// Walk segments every document and writes its chunks to sink. Unreadable
// documents are logged and skipped; sink errors abort the walk.
func (w *Walker) Walk(ctx context.Context, sink domain.ChunkSink) (Stats, error) {
	paths, err := w.Files()
	if err != nil {
		return Stats{}, err
	}
	if w.workers > 1 {
		return w.walkParallel(ctx, paths, sink)
	}
	var stats Stats
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		doc, err := ReadDocument(path)
		if err != nil {
			w.log.Warn("skipping document", "path", path, "err", err)
			stats.Skipped++
			continue
		}
		w.log.Info("processing", "file", doc.ID)
		stats.Documents++
		for chunk := range w.segmenter.Segment(doc) {
			if err := sink.Write(chunk); err != nil {
				return stats, fmt.Errorf("corpus: write chunk from %s: %w", doc.ID, err)
			}
			stats.Chunks++
		}
	}
	return stats, nil
}

type docResult struct {
	path   string
	doc    string
	chunks []domain.Chunk
	err    error
}

func (w *Walker) walkParallel(ctx context.Context, paths []string, sink domain.ChunkSink) (Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]chan docResult, len(paths))
	for i := range results {
		results[i] = make(chan docResult, 1)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, path := range paths {
			if gctx.Err() != nil {
				return
			}
			g.Go(func() error {
				doc, err := ReadDocument(path)
				if err != nil {
					results[i] <- docResult{path: path, err: err}
					return nil
				}
				results[i] <- docResult{path: path, doc: doc.ID, chunks: w.segmenter.SegmentAll(doc)}
				return nil
			})
		}
	}()
	defer func() {
		cancel()
		<-launched
		_ = g.Wait()
	}()

	var stats Stats
	for i := range paths {
		var r docResult
		select {
		case r = <-results[i]:
		case <-ctx.Done():
			return stats, ctx.Err()
		}
		if r.err != nil {
			w.log.Warn("skipping document", "path", r.path, "err", r.err)
			stats.Skipped++
			continue
		}
		w.log.Info("processing", "file", r.doc)
		stats.Documents++
		for _, chunk := range r.chunks {
			if err := sink.Write(chunk); err != nil {
				return stats, fmt.Errorf("corpus: write chunk from %s: %w", r.doc, err)
			}
			stats.Chunks++
		}
	}
	return stats, nil
}
