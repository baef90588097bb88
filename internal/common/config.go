package common

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Catalog  CatalogConfig
	Ingest   IngestConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration.
// DSN selects the driver: postgres:// or postgresql:// go through pgx, anything else is a sqlite DSN.
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string
	MetricsAddr string
}

// OCRConfig holds text extraction and OCR configuration
type OCRConfig struct {
	Enabled       bool
	TextExtractor string // "pdflib" | "pdftotext"
	Pdftotext     string
	Pdftoppm      string
	Tesseract     string
	Lang          string
	TessdataDir   string
	DPI           int
	MaxPages      int
}

// LLMConfig holds semantic classification configuration
type LLMConfig struct {
	Provider        string // "openai" | "langchain-openai" | "anthropic" | "ollama" | "" (disabled)
	Model           string
	APIKey          string
	BaseURL         string
	AnthropicAPIKey string
	OllamaHost      string
	Temperature     float32
	Timeout         time.Duration
}

// PipelineConfig holds worker pool and retry configuration
type PipelineConfig struct {
	Workers           int
	QueueSize         int
	SubmitRPS         float64
	SubmitBurst       int
	MaxAttempts       int
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	JobTimeout        time.Duration
	CapabilityTimeout time.Duration
	StaleAfter        time.Duration
}

// CatalogConfig points at the regulatory catalog file
type CatalogConfig struct {
	RegulatoryPath string
}

// IngestConfig holds the optional inbox watcher configuration
type IngestConfig struct {
	InboxDir string
	Debounce time.Duration
}

// LogConfig holds logger configuration
type LogConfig struct {
	File  string
	Level slog.Level
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "file:labcheck.db?_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:    getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		},
		OCR: OCRConfig{
			Enabled:       getEnvAsBool("OCR_ENABLED", true),
			TextExtractor: getEnv("TEXT_EXTRACTOR", "pdflib"),
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			Lang:          getEnv("OCR_LANG", "ita+eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 0),
		},
		LLM: LLMConfig{
			Provider:        getEnv("LLM_PROVIDER", "openai"),
			Model:           getEnv("LLM_MODEL", "gpt-4o-mini"),
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			BaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
			Temperature:     getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:         getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
		},
		Pipeline: PipelineConfig{
			Workers:           getEnvAsInt("WORKERS", 4),
			QueueSize:         getEnvAsInt("QUEUE_SIZE", 256),
			SubmitRPS:         getEnvAsFloat64("SUBMIT_RPS", 5),
			SubmitBurst:       getEnvAsInt("SUBMIT_BURST", 10),
			MaxAttempts:       getEnvAsInt("JOB_MAX_ATTEMPTS", 3),
			BackoffInitial:    getEnvAsDuration("JOB_BACKOFF_INITIAL", 2*time.Second),
			BackoffMax:        getEnvAsDuration("JOB_BACKOFF_MAX", 30*time.Second),
			JobTimeout:        getEnvAsDuration("JOB_TIMEOUT", 5*time.Minute),
			CapabilityTimeout: getEnvAsDuration("CAPABILITY_TIMEOUT", 60*time.Second),
			StaleAfter:        getEnvAsDuration("JOB_STALE_AFTER", 15*time.Minute),
		},
		Catalog: CatalogConfig{
			RegulatoryPath: getEnv("REGULATORY_CATALOG", "./catalog/regulatory.yaml"),
		},
		Ingest: IngestConfig{
			InboxDir: getEnv("INBOX_DIR", ""),
			Debounce: getEnvAsDuration("INBOX_DEBOUNCE", 500*time.Millisecond),
		},
		Log: LogConfig{
			File:  getEnv("LOG_FILE", ""),
			Level: parseLogLevel(getEnv("LOG_LEVEL", "info")),
		},
	}
}

// IsPostgres reports whether the DSN should be opened through pgx.
func (c DatabaseConfig) IsPostgres() bool {
	return strings.HasPrefix(c.DSN, "postgres://") || strings.HasPrefix(c.DSN, "postgresql://")
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "openai", "langchain-openai":
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required for provider "+c.LLM.Provider, ErrInvalidInput)
		}
	case "anthropic":
		if c.LLM.AnthropicAPIKey == "" {
			return NewAppError("CONFIG_ERROR", "ANTHROPIC_API_KEY is required for provider anthropic", ErrInvalidInput)
		}
	case "ollama", "", "none":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported LLM_PROVIDER %q", c.LLM.Provider), ErrInvalidInput)
	}
	switch c.OCR.TextExtractor {
	case "pdflib", "pdftotext":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported TEXT_EXTRACTOR %q", c.OCR.TextExtractor), ErrInvalidInput)
	}
	if c.Pipeline.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKERS must be positive", ErrInvalidInput)
	}
	if c.Pipeline.MaxAttempts <= 0 {
		return NewAppError("CONFIG_ERROR", "JOB_MAX_ATTEMPTS must be positive", ErrInvalidInput)
	}
	if c.Pipeline.SubmitRPS <= 0 {
		return NewAppError("CONFIG_ERROR", "SUBMIT_RPS must be positive", ErrInvalidInput)
	}
	return nil
}
