// Package embedding provides clients that turn text into fixed-length
// vectors for similarity search.
package embedding

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"faqrag/internal/domain"
)

// OpenAIEmbedder embeds text through an OpenAI-compatible embeddings API.
// The vector dimension is discovered on the first successful call and every
// later result is checked against it. Safe for concurrent use: one embedder
// instance is shared between ingestion and retrieval.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	batchSize int
	timeout   time.Duration

	mu        sync.Mutex
	dimension int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	BatchSize int
	Timeout   time.Duration
}

// NewOpenAIEmbedder reads the API key from the configured environment
// variable and applies defaults for the remaining fields.
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		timeout:   cfg.Timeout,
	}, nil
}

// Embed returns one vector per input text, in input order. The backend is
// called in batches of the configured size; a response with the wrong count
// or an inconsistent dimension fails the whole call.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
			domain.ErrEmbeddingUnavailable, len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range",
				domain.ErrEmbeddingUnavailable, item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	dim := 0
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: no embedding for input %d",
				domain.ErrEmbeddingUnavailable, i)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("%w: inconsistent dimension %d, expected %d",
				domain.ErrEmbeddingUnavailable, len(v), dim)
		}
	}
	e.mu.Lock()
	if e.dimension == 0 {
		e.dimension = dim
	}
	known := e.dimension
	e.mu.Unlock()
	if dim != known {
		return nil, fmt.Errorf("%w: inconsistent dimension %d, expected %d",
			domain.ErrEmbeddingUnavailable, dim, known)
	}
	return vectors, nil
}

// Dimension returns the vector length established by the first call, or 0 if
// nothing has been embedded yet.
func (e *OpenAIEmbedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}
