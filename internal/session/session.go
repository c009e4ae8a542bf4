// Package session holds ordered conversation state and drives one grounded
// question/answer exchange at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"faqrag/internal/domain"
)

// Retriever is the session-facing subset of the retrieval engine.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.Chunk, error)
}

// Session owns its turn history and a non-owning reference to the shared
// retrieval engine and generation backend. A session allows one in-flight
// Ask at a time; a second concurrent Ask fails with ErrSessionBusy instead
// of queueing, so history ordering is never ambiguous.
type Session struct {
	id        string
	retriever Retriever
	generator domain.Generator
	topK      int

	mu      sync.Mutex
	busy    bool
	history []domain.Turn
}

func New(retriever Retriever, generator domain.Generator, topK int) *Session {
	return &Session{
		id:        uuid.NewString(),
		retriever: retriever,
		generator: generator,
		topK:      topK,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Ask retrieves context for the question, asks the generation backend for a
// grounded answer and appends the completed turn. On any failure nothing is
// appended: the history after a failed Ask is identical to the history
// before it, and the session stays usable.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return "", domain.ErrSessionBusy
	}
	s.busy = true
	history := append([]domain.Turn(nil), s.history...)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	retrieved, err := s.retriever.Retrieve(ctx, question, s.topK)
	if err != nil {
		return "", err
	}

	answer, err := s.generator.Complete(ctx, groundedPrompt(retrieved), history, question)
	if err != nil {
		if errors.Is(err, domain.ErrGenerationFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	ids := make([]string, len(retrieved))
	for i, c := range retrieved {
		ids[i] = c.ID
	}
	s.mu.Lock()
	s.history = append(s.history, domain.Turn{
		Question:     question,
		Answer:       answer,
		RetrievedIDs: ids,
	})
	s.mu.Unlock()
	return answer, nil
}

// History returns a copy of the completed turns, oldest first.
func (s *Session) History() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Turn(nil), s.history...)
}

// groundedPrompt frames the retrieved passages as the system prompt the
// generator must answer from.
func groundedPrompt(retrieved []domain.Chunk) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant answering questions about the company. ")
	sb.WriteString("Answer using only the context below and the conversation so far. ")
	sb.WriteString("If the context does not contain the answer, say so.\n\nContext:\n")
	if len(retrieved) == 0 {
		sb.WriteString("(no relevant passages found)\n")
	}
	for _, c := range retrieved {
		fmt.Fprintf(&sb, "[%s @%d]\n%s\n\n", c.Source, c.StartOffset, c.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}
