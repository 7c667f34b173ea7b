package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel slog.Level

	// Paths
	DocsDir        string
	IndexDir       string
	ConversationDB string // empty keeps conversations in memory
	PatternsFile   string

	// Auth for admin routes; empty disables them.
	AdminAPIKey string

	CORSOrigins    []string
	MaxUploadBytes int64

	// LLM
	LLMProvider  string
	LLMAPIKey    string
	LLMBaseURL   string
	SimpleModel  string
	ComplexModel string
	StatsWindow  time.Duration

	// Embedding
	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingBaseURL   string
	EmbeddingAPIKey    string
	EmbeddingDim       int
	EmbeddingBatchSize int
	EmbeddingCacheSize int
	EmbeddingRateLimit float64

	// Index
	IndexKind    string
	IndexWorkers int

	// Chunking
	MaxChunkSize     int
	OverlapSentences int

	// Retrieval, routing and evaluation
	TopK                int
	ComplexityThreshold int
	MultiDocThreshold   int
	GroundingThreshold  float64

	MaxHistoryMessages int

	// Rebuild jobs
	MaxQueueSize int
	JobTTL       time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

var defaultModels = map[string][2]string{
	"groq":      {"llama-3.1-8b-instant", "llama-3.3-70b-versatile"},
	"openai":    {"gpt-4o-mini", "gpt-4o"},
	"anthropic": {"claude-haiku-4-5", "claude-sonnet-4-5-20250929"},
}

// Load reads configuration from the environment, after importing a .env
// file from the working directory when one exists.
func Load() Config {
	_ = godotenv.Load()

	provider := strings.ToLower(envOr("LLM_PROVIDER", "groq"))
	models := defaultModels[provider]

	cfg := Config{
		Port:     envOr("PORT", "8000"),
		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),

		DocsDir:        envOr("DOCS_DIR", "clearpath_docs"),
		IndexDir:       envOr("INDEX_DIR", "data"),
		ConversationDB: os.Getenv("CONVERSATION_DB"),
		PatternsFile:   os.Getenv("PATTERNS_FILE"),

		AdminAPIKey: os.Getenv("ADMIN_API_KEY"),

		CORSOrigins:    envList("CORS_ORIGINS", []string{"*"}),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		LLMProvider:  provider,
		LLMAPIKey:    envOr("LLM_API_KEY", os.Getenv(providerKeyVar(provider))),
		LLMBaseURL:   os.Getenv("LLM_BASE_URL"),
		SimpleModel:  envOr("SIMPLE_MODEL", models[0]),
		ComplexModel: envOr("COMPLEX_MODEL", models[1]),
		StatsWindow:  envDuration("LLM_STATS_WINDOW", 15*time.Minute),

		EmbeddingProvider:  strings.ToLower(envOr("EMBEDDING_PROVIDER", "hash")),
		EmbeddingModel:     envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingBaseURL:   os.Getenv("EMBEDDING_BASE_URL"),
		EmbeddingAPIKey:    envOr("EMBEDDING_API_KEY", os.Getenv("OPENAI_API_KEY")),
		EmbeddingDim:       envInt("EMBEDDING_DIM", 384),
		EmbeddingBatchSize: envInt("EMBEDDING_BATCH_SIZE", 32),
		EmbeddingCacheSize: envInt("EMBEDDING_CACHE_SIZE", 1024),
		EmbeddingRateLimit: envFloat("EMBEDDING_RATE_LIMIT", 0),

		IndexKind:    strings.ToLower(envOr("INDEX_KIND", "flat")),
		IndexWorkers: envInt("INDEX_WORKERS", 4),

		MaxChunkSize:     envInt("MAX_CHUNK_SIZE", 512),
		OverlapSentences: envInt("OVERLAP_SENTENCES", 3),

		TopK:                envInt("TOP_K", 5),
		ComplexityThreshold: envInt("COMPLEXITY_THRESHOLD", 3),
		MultiDocThreshold:   envInt("MULTI_DOC_THRESHOLD", 3),
		GroundingThreshold:  envFloat("GROUNDING_THRESHOLD", 0.35),

		MaxHistoryMessages: envInt("MAX_HISTORY_MESSAGES", 10),

		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 4),
		JobTTL:       envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = 384
	}
	if cfg.EmbeddingBatchSize <= 0 {
		cfg.EmbeddingBatchSize = 32
	}
	if cfg.EmbeddingCacheSize < 0 {
		cfg.EmbeddingCacheSize = 0
	}
	if cfg.EmbeddingRateLimit < 0 {
		cfg.EmbeddingRateLimit = 0
	}
	if cfg.IndexWorkers <= 0 {
		cfg.IndexWorkers = 4
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = 512
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.ComplexityThreshold <= 0 {
		cfg.ComplexityThreshold = 3
	}
	if cfg.MultiDocThreshold <= 0 {
		cfg.MultiDocThreshold = 3
	}
	if cfg.MaxHistoryMessages <= 0 {
		cfg.MaxHistoryMessages = 10
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 4
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 15 * time.Minute
	}

	return cfg
}

// Validate rejects settings the service cannot run with. A missing LLM key
// is deliberately not one of them: it surfaces per request instead.
func (c Config) Validate() error {
	var errs []error
	if _, ok := defaultModels[c.LLMProvider]; !ok {
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q is not one of groq, openai, anthropic", c.LLMProvider))
	}
	switch c.EmbeddingProvider {
	case "hash":
	case "openai":
		if c.EmbeddingAPIKey == "" {
			errs = append(errs, errors.New("EMBEDDING_API_KEY is required when EMBEDDING_PROVIDER=openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("EMBEDDING_PROVIDER %q is not one of hash, openai", c.EmbeddingProvider))
	}
	if c.IndexKind != "flat" && c.IndexKind != "hnsw" {
		errs = append(errs, fmt.Errorf("INDEX_KIND %q is not one of flat, hnsw", c.IndexKind))
	}
	if c.OverlapSentences < 0 {
		errs = append(errs, fmt.Errorf("OVERLAP_SENTENCES must be >= 0, got %d", c.OverlapSentences))
	}
	if c.GroundingThreshold < -1 || c.GroundingThreshold > 1 {
		errs = append(errs, fmt.Errorf("GROUNDING_THRESHOLD must be within [-1, 1], got %g", c.GroundingThreshold))
	}
	return errors.Join(errs...)
}

func providerKeyVar(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping empty items.
func envList(key string, fallback []string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envLevel(key string, fallback slog.Level) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(os.Getenv(key))); err != nil {
		return fallback
	}
	return l
}
