package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/clearpath/internal/chunker"
	"github.com/dgallion1/clearpath/internal/config"
	"github.com/dgallion1/clearpath/internal/conversation"
	"github.com/dgallion1/clearpath/internal/embed"
	"github.com/dgallion1/clearpath/internal/evaluator"
	"github.com/dgallion1/clearpath/internal/llm"
	"github.com/dgallion1/clearpath/internal/parser"
	"github.com/dgallion1/clearpath/internal/pipeline"
	"github.com/dgallion1/clearpath/internal/rag"
	"github.com/dgallion1/clearpath/internal/retriever"
	"github.com/dgallion1/clearpath/internal/router"
)

// app holds the wired components shared by every command.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	engine  *rag.Engine
	builder *pipeline.Builder
	stats   *llm.Stats
	closers []func()
}

func newApp(cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	var patterns router.PatternFile
	if cfg.PatternsFile != "" {
		pf, err := router.LoadPatternFile(cfg.PatternsFile)
		if err != nil {
			return nil, err
		}
		patterns = pf
		log.Info("loaded pattern overrides", "file", cfg.PatternsFile)
	}

	emb, err := embed.New(embed.Config{
		Provider:  cfg.EmbeddingProvider,
		Model:     cfg.EmbeddingModel,
		BaseURL:   cfg.EmbeddingBaseURL,
		APIKey:    cfg.EmbeddingAPIKey,
		Dims:      cfg.EmbeddingDim,
		BatchSize: cfg.EmbeddingBatchSize,
		CacheSize: cfg.EmbeddingCacheSize,
		RateLimit: cfg.EmbeddingRateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	rt, err := router.New(router.Config{
		ComplexityThreshold: cfg.ComplexityThreshold,
		MultiDocThreshold:   cfg.MultiDocThreshold,
		SimpleModel:         cfg.SimpleModel,
		ComplexModel:        cfg.ComplexModel,
	}, patterns.Router)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	ev, err := evaluator.New(emb, patterns.Refusal, cfg.GroundingThreshold, log.With("component", "evaluator"))
	if err != nil {
		return nil, fmt.Errorf("evaluator: %w", err)
	}

	client, err := llm.New(llm.Config{Provider: cfg.LLMProvider, APIKey: cfg.LLMAPIKey, BaseURL: cfg.LLMBaseURL})
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	if c, ok := client.(interface{ Close() }); ok {
		a.closers = append(a.closers, c.Close)
	}
	if cfg.LLMAPIKey == "" {
		log.Warn("LLM API key is not set; queries will be rejected", "provider", cfg.LLMProvider)
	}
	a.stats = llm.NewStats(cfg.StatsWindow)

	var conv conversation.Store
	if cfg.ConversationDB != "" {
		db, err := conversation.OpenSQLite(cfg.ConversationDB, cfg.MaxHistoryMessages)
		if err != nil {
			return nil, err
		}
		conv = db
		log.Info("conversation store opened", "path", cfg.ConversationDB)
	} else {
		conv = conversation.NewMemoryStore(cfg.MaxHistoryMessages)
	}
	a.closers = append(a.closers, func() {
		if err := conv.Close(); err != nil {
			log.Warn("close conversation store", "error", err)
		}
	})

	a.engine = rag.New(rag.Deps{
		Retriever:     retriever.New(emb, log.With("component", "retriever")),
		Router:        rt,
		Evaluator:     ev,
		LLM:           llm.NewInstrumented(client, a.stats, log.With("component", "llm")),
		Conversations: conv,
		TopK:          cfg.TopK,
		Log:           log.With("component", "rag"),
	})

	a.builder = &pipeline.Builder{
		DocsDir:   cfg.DocsDir,
		IndexDir:  cfg.IndexDir,
		Parse:     parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
		Workers:   cfg.IndexWorkers,
		Chunking:  chunker.Config{MaxSize: cfg.MaxChunkSize, Overlap: cfg.OverlapSentences},
		Embedder:  emb,
		Kind:      cfg.IndexKind,
		BatchSize: cfg.EmbeddingBatchSize,
		Log:       log.With("component", "index"),
	}
	return a, nil
}

// loadIndex loads or builds the index and publishes it to the engine. A
// corpus that yields nothing leaves the engine without an index.
func (a *app) loadIndex(ctx context.Context, force bool) error {
	stored, built, err := a.builder.LoadOrBuild(ctx, force)
	if errors.Is(err, pipeline.ErrEmptyCorpus) {
		a.log.Warn("no content extracted from documents; answering without context", "dir", a.cfg.DocsDir)
		return nil
	}
	if err != nil {
		return err
	}
	a.log.Info("index ready", "chunks", len(stored.Chunks), "built", built)
	a.engine.Publish(stored)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
