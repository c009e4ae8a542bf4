// Package ingest loads source documents and pushes them through the
// chunk → embed → upsert pipeline.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"faqrag/internal/chunker"
	"faqrag/internal/domain"
)

// Ingestor indexes plain text and markdown documents into one collection.
type Ingestor struct {
	chunker    *chunker.Chunker
	embedder   domain.Embedder
	store      domain.VectorStore
	collection string
	logger     *slog.Logger
}

// Stats summarizes a completed ingestion run.
type Stats struct {
	Sources int
	Chunks  int
}

func New(c *chunker.Chunker, embedder domain.Embedder, store domain.VectorStore, collection string, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		chunker:    c,
		embedder:   embedder,
		store:      store,
		collection: collection,
		logger:     logger,
	}
}

// IngestPaths reads the given files (glob patterns allowed), chunks them,
// embeds every chunk and upserts the whole batch. Any failure (an unreadable
// file, a failed embedding, a store error) fails the entire batch so the
// index never ends up with silent gaps; because chunk IDs are content
// hashes, re-running after a failure is safe.
func (ing *Ingestor) IngestPaths(ctx context.Context, paths []string) (Stats, error) {
	var chunks []domain.Chunk
	sources := 0
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return Stats{}, fmt.Errorf("bad glob pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if !isSupported(m) {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return Stats{}, fmt.Errorf("reading %s: %w", m, err)
			}
			sources++
			chunks = append(chunks, ing.chunker.Split(string(data), m)...)
		}
	}
	if sources == 0 {
		return Stats{}, fmt.Errorf("no .txt or .md documents found in %v", paths)
	}
	if len(chunks) == 0 {
		return Stats{Sources: sources}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := ing.embedder.Embed(ctx, texts)
	if err != nil {
		return Stats{}, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return Stats{}, fmt.Errorf("%w: got %d vectors for %d chunks",
			domain.ErrEmbeddingUnavailable, len(vectors), len(chunks))
	}

	if err := ing.store.EnsureCollection(ctx, ing.collection, len(vectors[0])); err != nil {
		return Stats{}, err
	}
	records := make([]domain.Record, len(chunks))
	for i, c := range chunks {
		records[i] = domain.Record{
			Chunk:      c,
			Vector:     vectors[i],
			Collection: ing.collection,
		}
	}
	if err := ing.store.Upsert(ctx, records); err != nil {
		return Stats{}, fmt.Errorf("upserting %d records: %w", len(records), err)
	}

	ing.logger.Info("ingested documents",
		"sources", sources, "chunks", len(chunks),
		"collection", ing.collection, "store", ing.store.Name())
	return Stats{Sources: sources, Chunks: len(chunks)}, nil
}

func isSupported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		return true
	}
	return false
}
