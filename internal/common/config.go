package common

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Session  SessionConfig
	Catalog  CatalogConfig
	Crawl    CrawlConfig
	Redact   RedactConfig
	LogLevel slog.Level
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	OpsGRPCAddr    string
	MaxUploadBytes int64
	GinMode        string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract   string
	Pdftoppm    string
	Pdftotext   string
	TessdataDir string
	Lang        string
	DPI         int
	MaxPages    int
	Workers     int
	Handwriting bool

	// Non-local-means denoising of printed pages; 0 keeps the normalizer default.
	DenoiseH        float64
	DenoiseTemplate int
	DenoiseSearch   int
}

// LLMConfig holds completion-service configuration
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// SessionConfig holds session store configuration
type SessionConfig struct {
	Backend    string // "memory" | "redis"
	TTL        time.Duration
	MaxEntries int
	RedisURL   string
	KeyPrefix  string
}

// CatalogConfig holds drug catalog store configuration
type CatalogConfig struct {
	Backend         string // "mongo" | "postgres" | "sqlite"
	MongoURI        string
	MongoDB         string
	MongoCollection string

	DSN              string
	SQLitePath       string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// CrawlConfig holds crawler configuration
type CrawlConfig struct {
	SitemapURL   string
	Concurrency  int
	Delay        time.Duration
	Retries      int
	FetchTimeout time.Duration
	UserAgent    string
}

// RedactConfig holds redaction policy configuration
type RedactConfig struct {
	AddressPolicy string // "strict" | "broad" | "off"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
			OpsGRPCAddr:    getEnv("OPS_GRPC_ADDR", ":9090"),
			MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 25<<20),
			GinMode:        getEnv("GIN_MODE", "release"),
		},
		OCR: OCRConfig{
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Pdftotext:   getEnv("PDFTOTEXT_BIN", "pdftotext"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			Lang:        getEnv("OCR_LANG", "eng"),
			DPI:         getEnvAsInt("OCR_DPI", 300),
			MaxPages:    getEnvAsInt("OCR_MAX_PAGES", 0),
			Workers:     getEnvAsInt("OCR_WORKERS", runtime.NumCPU()),
			Handwriting: getEnvAsBool("OCR_HANDWRITING", false),

			DenoiseH:        getEnvAsFloat("OCR_DENOISE_H", 0),
			DenoiseTemplate: getEnvAsInt("OCR_DENOISE_TEMPLATE", 0),
			DenoiseSearch:   getEnvAsInt("OCR_DENOISE_SEARCH", 0),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("GROQ_API_KEY", ""),
			BaseURL: getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:   getEnv("GROQ_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct"),
			Timeout: getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Session: SessionConfig{
			Backend:    strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
			TTL:        getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			MaxEntries: getEnvAsInt("SESSION_MAX_ENTRIES", 10000),
			RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),
			KeyPrefix:  getEnv("SESSION_KEY_PREFIX", "medilink:session:"),
		},
		Catalog: CatalogConfig{
			Backend:          strings.ToLower(getEnv("CATALOG_BACKEND", "mongo")),
			MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017/"),
			MongoDB:          getEnv("MONGO_DB", "MediLink"),
			MongoCollection:  getEnv("MONGO_COLLECTION", "Drugs"),
			DSN:              getEnv("DB_URL", ""),
			SQLitePath:       getEnv("SQLITE_PATH", "file:medilink.db?_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Crawl: CrawlConfig{
			SitemapURL:   getEnv("CRAWL_SITEMAP", "https://www.1mg.com/sitemap.xml"),
			Concurrency:  getEnvAsInt("CRAWL_CONCURRENCY", 32),
			Delay:        getEnvAsDuration("CRAWL_DELAY", 250*time.Millisecond),
			Retries:      getEnvAsInt("CRAWL_RETRIES", 3),
			FetchTimeout: getEnvAsDuration("CRAWL_FETCH_TIMEOUT", 20*time.Second),
			UserAgent:    getEnv("CRAWL_USER_AGENT", "MediLink Drug Information Spider"),
		},
		Redact: RedactConfig{
			AddressPolicy: strings.ToLower(getEnv("REDACT_ADDRESS_POLICY", "strict")),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "GROQ_API_KEY is required", ErrInvalidInput)
	}
	if c.OCR.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_DPI must be positive", ErrInvalidInput)
	}
	if c.OCR.DenoiseH < 0 || c.OCR.DenoiseTemplate < 0 || c.OCR.DenoiseSearch < 0 {
		return NewAppError("CONFIG_ERROR", "OCR_DENOISE_* settings must not be negative", ErrInvalidInput)
	}
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return NewAppError("CONFIG_ERROR", "SESSION_BACKEND must be memory or redis", ErrInvalidInput)
	}
	switch c.Catalog.Backend {
	case "mongo", "sqlite":
	case "postgres":
		if c.Catalog.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required for the postgres catalog", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "CATALOG_BACKEND must be mongo, postgres or sqlite", ErrInvalidInput)
	}
	switch c.Redact.AddressPolicy {
	case "strict", "broad", "off":
	default:
		return NewAppError("CONFIG_ERROR", "REDACT_ADDRESS_POLICY must be strict, broad or off", ErrInvalidInput)
	}
	return ValidateAndReturnError(NewValidator().
		Field("GROQ_BASE_URL", c.LLM.BaseURL, AbsoluteURL).
		Field("CRAWL_SITEMAP", c.Crawl.SitemapURL, AbsoluteURL))
}

// NewLogger builds the JSON slog logger used by the binaries.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: c.LogLevel,
	}))
}
