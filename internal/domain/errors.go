package domain

import "errors"

// Failure taxonomy reported to callers. None of these are retried or
// swallowed inside the engine; callers decide whether to retry the whole
// operation.
var (
	// ErrEmbeddingUnavailable means the embedding backend was unreachable or
	// returned a malformed result (wrong count, inconsistent dimension).
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrStoreUnavailable means the vector store was unreachable, rejected
	// credentials, or rate-limited the caller.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrDimensionMismatch means a vector's length disagrees with the
	// collection's established dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrSessionBusy means Ask was called while another Ask was in flight on
	// the same session.
	ErrSessionBusy = errors.New("session busy: a question is already in flight")

	// ErrGenerationFailed means the generation backend errored or timed out.
	// The turn is discarded; the same question may be retried.
	ErrGenerationFailed = errors.New("generation backend failed")
)
