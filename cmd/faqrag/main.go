package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"faqrag/internal/chunker"
	"faqrag/internal/config"
	"faqrag/internal/domain"
	"faqrag/internal/embedding"
	"faqrag/internal/generation"
	"faqrag/internal/ingest"
	"faqrag/internal/retrieval"
	"faqrag/internal/session"
	"faqrag/internal/tui"
	"faqrag/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath string
		query   string
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/faqrag/config.yaml if not provided)")
	flag.StringVar(&query, "query", "", "One-off question; answers and exits instead of starting the chat UI")
	flag.Parse()
	sources := flag.Args()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fatal(logger, "failed to load config", err)
	}

	ctx := context.Background()

	emb, err := embedding.NewOpenAIEmbedder(embedding.Config{
		BaseURL:   cfg.Embedder.BaseURL,
		APIKeyEnv: cfg.Embedder.APIKeyEnv,
		Model:     cfg.Embedder.Model,
		BatchSize: cfg.Embedder.BatchSize,
		Timeout:   time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
	})
	if err != nil {
		fatal(logger, "embedder init failed", err)
	}

	gen, err := buildGenerator(ctx, cfg.Generator)
	if err != nil {
		fatal(logger, "generator init failed", err)
	}

	selectorCfg := vectorstore.SelectorConfig{PersistPath: cfg.Store.PersistPath}
	if q := cfg.Store.Qdrant; q != nil {
		selectorCfg.RemoteURL = q.URL
		selectorCfg.RemoteAPIKey = os.Getenv(q.APIKeyEnv)
		selectorCfg.Timeout = time.Duration(q.TimeoutSecs) * time.Second
	}
	store, err := vectorstore.Select(ctx, selectorCfg, logger)
	if err != nil {
		fatal(logger, "vector store init failed", err)
	}

	banner := "Ask me anything about the company (type 'exit' to quit)."
	if len(sources) > 0 {
		ck, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
		if err != nil {
			fatal(logger, "invalid chunker config", err)
		}
		ing := ingest.New(ck, emb, store, cfg.Store.Collection, logger)
		stats, err := ing.IngestPaths(ctx, sources)
		if err != nil {
			fatal(logger, "ingest failed", err)
		}
		banner = fmt.Sprintf("Indexed %d chunks from %d document(s) into %q on the %s store.",
			stats.Chunks, stats.Sources, cfg.Store.Collection, store.Name())
	}

	engine := retrieval.NewEngine(emb, store, cfg.Store.Collection, cfg.Store.TopK)
	sess := session.New(engine, gen, cfg.Store.TopK)

	if query != "" {
		answer, err := sess.Ask(ctx, query)
		if err != nil {
			fatal(logger, "query failed", err)
		}
		fmt.Println(answer)
		return
	}

	m := tui.New(sess, banner)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		fatal(logger, "chat UI failed", err)
	}
}

func buildGenerator(ctx context.Context, cfg config.GeneratorConfig) (domain.Generator, error) {
	genCfg := generation.Config{
		APIKeyEnv: cfg.APIKeyEnv,
		Model:     cfg.Model,
		Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
	}
	switch cfg.Provider {
	case "openai", "":
		return generation.NewOpenAIGenerator(genCfg)
	case "gemini":
		return generation.NewGeminiGenerator(ctx, genCfg)
	default:
		return nil, fmt.Errorf("unknown generator provider: %s", cfg.Provider)
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
