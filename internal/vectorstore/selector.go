// Package vectorstore wires the concrete store backends together and
// decides, once per process, which one a run is bound to.
package vectorstore

import (
	"context"
	"log/slog"
	"time"

	"faqrag/internal/domain"
	"faqrag/internal/vectorstore/local"
	"faqrag/internal/vectorstore/qdrant"
)

// SelectorConfig is the explicit input to the selection decision.
// RemoteURL and RemoteAPIKey come from configuration/environment; absence of
// either is the normal offline case, not an error.
type SelectorConfig struct {
	PersistPath  string
	RemoteURL    string
	RemoteAPIKey string
	ProbeTimeout time.Duration
	Timeout      time.Duration
}

// Select returns the remote store when credentials are configured and the
// backend answers a lightweight probe (listing collections), otherwise the
// local on-disk store. The decision is made once at startup and never
// re-evaluated: a backend failing mid-session surfaces as
// ErrStoreUnavailable instead of a silent swap, so the index a session is
// bound to stays stable.
func Select(ctx context.Context, cfg SelectorConfig, logger *slog.Logger) (domain.VectorStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RemoteURL == "" || cfg.RemoteAPIKey == "" {
		logger.Info("no remote vector store credentials, using local store",
			"path", cfg.PersistPath)
		return local.New(cfg.PersistPath)
	}

	remote, err := qdrant.New(qdrant.Config{
		URL:     cfg.RemoteURL,
		APIKey:  cfg.RemoteAPIKey,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		logger.Warn("remote vector store misconfigured, falling back to local store",
			"error", err)
		return local.New(cfg.PersistPath)
	}

	probeTimeout := cfg.ProbeTimeout
	if probeTimeout == 0 {
		probeTimeout = 5 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := remote.ListCollections(probeCtx); err != nil {
		logger.Warn("remote vector store unreachable, falling back to local store",
			"url", cfg.RemoteURL, "error", err)
		return local.New(cfg.PersistPath)
	}

	logger.Info("using remote vector store", "url", cfg.RemoteURL)
	return remote, nil
}
