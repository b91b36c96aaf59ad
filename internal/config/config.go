package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Docstore connection
	DocstoreURL    string
	DocstoreAPIKey string

	// Auth
	RedraftAPIKey string

	// Editing backends, tried in ModelOrder. Recognized names:
	// "anthropic", "openai", "relay".
	ModelOrder      []string
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIModel     string
	RelayURL        string
	RelayModel      string
	RelayAPIKey     string

	// Worker pool
	WorkerCount         int
	MaxQueueSize        int
	MaxConcurrentChunks int

	// Upload limits
	MaxUploadBytes int64

	// Chunking knobs. Everything else (temperature ladder, refinement
	// deltas, variation cap) is a fixed constant of the design.
	TargetWords            int
	Tolerance              int
	LargeDocThresholdWords int

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		DocstoreURL:    envOr("DOCSTORE_URL", "http://localhost:8080"),
		DocstoreAPIKey: os.Getenv("DOCSTORE_API_KEY"),

		RedraftAPIKey: os.Getenv("REDRAFT_API_KEY"),

		ModelOrder:      splitList(envOr("MODEL_ORDER", "anthropic,openai")),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     envOr("OPENAI_MODEL", "gpt-4o-mini"),
		RelayURL:        os.Getenv("RELAY_URL"),
		RelayModel:      envOr("RELAY_MODEL", "default"),
		RelayAPIKey:     os.Getenv("RELAY_API_KEY"),

		WorkerCount:         envInt("WORKER_COUNT", 4),
		MaxQueueSize:        envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentChunks: envInt("MAX_CONCURRENT_CHUNKS", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 10485760), // 10MB

		TargetWords:            envInt("TARGET_WORDS", 500),
		Tolerance:              envInt("TOLERANCE_WORDS", 100),
		LargeDocThresholdWords: envInt("LARGE_DOC_THRESHOLD_WORDS", 1000),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentChunks <= 0 {
		cfg.MaxConcurrentChunks = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10485760
	}
	if cfg.TargetWords <= 0 {
		cfg.TargetWords = 500
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 100
	}
	if cfg.LargeDocThresholdWords <= 0 {
		cfg.LargeDocThresholdWords = 1000
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if len(cfg.ModelOrder) == 0 {
		cfg.ModelOrder = []string{"anthropic", "openai"}
	}

	return cfg
}

func (c Config) Validate() error {
	if c.RedraftAPIKey == "" {
		return fmt.Errorf("REDRAFT_API_KEY is required")
	}
	if c.DocstoreAPIKey == "" {
		return fmt.Errorf("DOCSTORE_API_KEY is required")
	}
	for _, name := range c.ModelOrder {
		switch name {
		case "anthropic":
			if c.AnthropicAPIKey == "" {
				return fmt.Errorf("MODEL_ORDER includes anthropic but ANTHROPIC_API_KEY is unset")
			}
		case "openai":
			if c.OpenAIAPIKey == "" {
				return fmt.Errorf("MODEL_ORDER includes openai but OPENAI_API_KEY is unset")
			}
		case "relay":
			if c.RelayURL == "" {
				return fmt.Errorf("MODEL_ORDER includes relay but RELAY_URL is unset")
			}
		default:
			return fmt.Errorf("unknown backend %q in MODEL_ORDER", name)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
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
