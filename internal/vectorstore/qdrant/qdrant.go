// Package qdrant implements the remote vector store against the Qdrant
// REST API. It assumes cosine distance and treats an already existing
// collection as success, so startup is idempotent.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"faqrag/internal/domain"
)

// Store is a minimal REST client to Qdrant. Auth failures, rate limits and
// transport errors all surface as domain.ErrStoreUnavailable so the caller
// can distinguish "backend gone" from data errors.
type Store struct {
	url    string
	apiKey string
	client *http.Client
}

// Config contains connection details for a Qdrant deployment.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Name identifies this backend in logs.
func (s *Store) Name() string { return "qdrant" }

// ListCollections returns the collection names known to the backend. The
// store selector uses this as its reachability probe.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Result.Collections))
	for _, c := range resp.Result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

// EnsureCollection creates the collection if absent. An existing collection
// with a different vector size fails with ErrDimensionMismatch; recreating
// with the same size is a no-op.
func (s *Store) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d for collection %q", dimension, name)
	}
	existing, err := s.collectionDimension(ctx, name)
	if err != nil {
		return err
	}
	if existing > 0 {
		if existing != dimension {
			return fmt.Errorf("%w: collection %q has dimension %d, requested %d",
				domain.ErrDimensionMismatch, name, existing, dimension)
		}
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	err = s.do(ctx, http.MethodPut, "/collections/"+name, body, nil)
	// A concurrent create may win the race; that still counts as created.
	if err != nil && !errors.Is(err, errConflict) {
		return err
	}
	return nil
}

// collectionDimension returns the configured vector size, or 0 if the
// collection does not exist.
func (s *Store) collectionDimension(ctx context.Context, name string) (int, error) {
	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, "/collections/"+name, nil, &resp)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Config.Params.Vectors.Size, nil
}

// Upsert writes records with wait=true so a query issued after the call
// returns observes them (read-after-write per collection).
func (s *Store) Upsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	byCollection := make(map[string][]domain.Record)
	for _, r := range records {
		if r.Collection == "" {
			return fmt.Errorf("record %s is missing a collection", r.ID)
		}
		byCollection[r.Collection] = append(byCollection[r.Collection], r)
	}
	for name, batch := range byCollection {
		points := make([]map[string]any, len(batch))
		for i, r := range batch {
			points[i] = map[string]any{
				"id":     pointID(r.ID),
				"vector": r.Vector,
				"payload": map[string]any{
					"chunk_id":     r.ID,
					"text":         r.Text,
					"source":       r.Source,
					"start_offset": r.StartOffset,
				},
			}
		}
		body := map[string]any{"points": points}
		if err := s.do(ctx, http.MethodPut, "/collections/"+name+"/points?wait=true", body, nil); err != nil {
			return err
		}
	}
	return nil
}

// Query returns the k nearest records by cosine similarity. Qdrant already
// orders by descending score; equal scores are re-sorted by ascending chunk
// ID for determinism. Vectors are not fetched back.
func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int) ([]domain.ScoredRecord, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.ScoredRecord, 0, len(resp.Result))
	for _, r := range resp.Result {
		rec := domain.Record{Collection: collection}
		if v, ok := r.Payload["chunk_id"].(string); ok {
			rec.ID = v
		}
		if v, ok := r.Payload["text"].(string); ok {
			rec.Text = v
		}
		if v, ok := r.Payload["source"].(string); ok {
			rec.Source = v
		}
		if v, ok := r.Payload["start_offset"].(float64); ok {
			rec.StartOffset = int(v)
		}
		results = append(results, domain.ScoredRecord{Record: rec, Score: r.Score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

// pointID derives a stable UUID from the chunk ID, since Qdrant only accepts
// UUIDs or integers as point IDs. Same chunk, same point: upserts replace.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

var (
	errNotFound = errors.New("not found")
	errConflict = errors.New("already exists")
)

func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: qdrant %s %s", errNotFound, method, path)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: qdrant %s %s", errConflict, method, path)
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return fmt.Errorf("%w: qdrant %s %s: %s", domain.ErrStoreUnavailable, method, path, resp.Status)
	case resp.StatusCode >= 300:
		return fmt.Errorf("qdrant %s %s failed: %s", method, path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding qdrant response: %w", err)
		}
	}
	return nil
}
