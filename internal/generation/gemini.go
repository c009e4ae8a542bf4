package generation

import (
	"context"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"

	"faqrag/internal/domain"
)

// GeminiGenerator answers through the Gemini API. History turns map to
// alternating user/model contents; the grounded prompt rides as the system
// instruction.
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiGenerator(ctx context.Context, cfg Config) (*GeminiGenerator, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// Complete replays the conversation and asks for the next model turn.
func (g *GeminiGenerator) Complete(ctx context.Context, systemPrompt string, history []domain.Turn, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := make([]*genai.Content, 0, 2*len(history)+1)
	for _, turn := range history {
		contents = append(contents,
			genai.NewContentFromText(turn.Question, genai.RoleUser),
			genai.NewContentFromText(turn.Answer, genai.RoleModel),
		)
	}
	contents = append(contents, genai.NewContentFromText(question, genai.RoleUser))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty gemini response", domain.ErrGenerationFailed)
	}
	return text, nil
}
