// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Report backends.
const (
	ReportBackendGenAI = "genai"
	ReportBackendGRPC  = "grpc"
	ReportBackendNone  = "none"
)

// Config holds all application configuration.
type Config struct {
	Port                  string
	FrontendURL           string
	DBPath                string
	LogLevel              slog.Level
	VetoPhrasesPath       string
	VetoWatch             bool
	ArchiveSeedPath       string
	SubstrateManifestPath string
	RegistryRefreshCron   string
	EventQueueSize        int
	Report                ReportConfig
}

// ReportConfig selects and configures the report generation backend.
type ReportConfig struct {
	Backend      string
	GeminiAPIKey string
	GeminiModel  string
	GrpcAddr     string
	Timeout      time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	apiKey := getEnv("GEMINI_API_KEY", "")
	defaultBackend := ReportBackendNone
	if apiKey != "" {
		defaultBackend = ReportBackendGenAI
	}

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		FrontendURL:           getEnv("FRONTEND_URL", ""),
		DBPath:                getEnv("DB_PATH", "./data/kontrol.db"),
		LogLevel:              level,
		VetoPhrasesPath:       getEnv("VETO_PHRASES_PATH", ""),
		VetoWatch:             getEnvBool("VETO_WATCH", true),
		ArchiveSeedPath:       getEnv("ARCHIVE_SEED_PATH", ""),
		SubstrateManifestPath: getEnv("SUBSTRATE_MANIFEST_PATH", "./GOV-SUBSTRATES.json"),
		RegistryRefreshCron:   getEnv("REGISTRY_REFRESH_CRON", ""),
		EventQueueSize:        getEnvInt("EVENT_QUEUE_SIZE", 100),
		Report: ReportConfig{
			Backend:      strings.ToLower(strings.TrimSpace(getEnv("REPORT_BACKEND", defaultBackend))),
			GeminiAPIKey: apiKey,
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			GrpcAddr:     getEnv("REPORT_GRPC_ADDR", ""),
			Timeout:      getEnvDuration("REPORT_TIMEOUT", 60*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.EventQueueSize <= 0 {
		return fmt.Errorf("EVENT_QUEUE_SIZE must be > 0")
	}
	if c.Report.Timeout <= 0 {
		return fmt.Errorf("REPORT_TIMEOUT must be > 0")
	}
	switch c.Report.Backend {
	case ReportBackendNone:
	case ReportBackendGenAI:
		if c.Report.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for REPORT_BACKEND=genai")
		}
	case ReportBackendGRPC:
		if c.Report.GrpcAddr == "" {
			return fmt.Errorf("REPORT_GRPC_ADDR is required for REPORT_BACKEND=grpc")
		}
	default:
		return fmt.Errorf("unknown REPORT_BACKEND %q", c.Report.Backend)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the configured frontend.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
