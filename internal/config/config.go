package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderRemote = "remote"
)

type Config struct {
	Server     ServerConfig
	Oracle     OracleConfig
	Pipeline   PipelineConfig
	Resilience ResilienceConfig
	Audit      AuditConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type OracleConfig struct {
	Provider      string
	APIKey        string
	Model         string
	RemoteURL     string
	RemoteAPIKey  string
	Timeout       time.Duration
	MaxAttempts   int
	RetryDelay    time.Duration
	RatePerMinute int
	Temperature   float32
}

// PipelineConfig holds the tunable policy constants of the
// extract -> prequalify -> prepare chain.
type PipelineConfig struct {
	MinTextLength           int
	MaxTextLength           int
	MaxRequestBytes         int64
	MaxUploadBytes          int64
	ScannedTextThreshold    int
	GeneralThreshold        int
	LineOfBusinessThreshold int
	LexiconPath             string
}

type ResilienceConfig struct {
	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

type AuditConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type LogConfig struct {
	Level string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("config.dotenv.missing", "hint", "no .env file found, using environment and defaults")
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("ENV", "development"),
		},
		Oracle: OracleConfig{
			Provider:      strings.ToLower(getEnv("ORACLE_PROVIDER", ProviderGemini)),
			APIKey:        getEnv("GEMINI_API_KEY", ""),
			Model:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			RemoteURL:     getEnv("ORACLE_REMOTE_URL", ""),
			RemoteAPIKey:  getEnv("ORACLE_REMOTE_API_KEY", ""),
			Timeout:       getEnvAsDuration("ORACLE_TIMEOUT", "60s"),
			MaxAttempts:   getEnvAsInt("ORACLE_MAX_ATTEMPTS", 2),
			RetryDelay:    getEnvAsDuration("ORACLE_RETRY_DELAY", "500ms"),
			RatePerMinute: getEnvAsInt("ORACLE_RATE_PER_MINUTE", 30),
			Temperature:   getEnvAsFloat32("ORACLE_TEMPERATURE", 0.2),
		},
		Pipeline: PipelineConfig{
			MinTextLength:           getEnvAsInt("MIN_TEXT_LENGTH", 100),
			MaxTextLength:           getEnvAsInt("MAX_TEXT_LENGTH", 500000),
			MaxRequestBytes:         getEnvAsInt64("MAX_REQUEST_BYTES", 25*1024*1024),
			MaxUploadBytes:          getEnvAsInt64("MAX_UPLOAD_BYTES", 20*1024*1024),
			ScannedTextThreshold:    getEnvAsInt("SCANNED_TEXT_THRESHOLD", 100),
			GeneralThreshold:        getEnvAsInt("GENERAL_KEYWORD_THRESHOLD", 3),
			LineOfBusinessThreshold: getEnvAsInt("LINE_OF_BUSINESS_KEYWORD_THRESHOLD", 2),
			LexiconPath:             getEnv("LEXICON_PATH", ""),
		},
		Resilience: ResilienceConfig{
			BreakerEnabled:          getEnvAsBool("ORACLE_BREAKER_ENABLED", true),
			BreakerMinRequests:      uint32(getEnvAsInt("ORACLE_BREAKER_MIN_REQUESTS", 10)),
			BreakerFailureRatio:     getEnvAsFloat64("ORACLE_BREAKER_FAILURE_RATIO", 0.5),
			BreakerOpenTimeout:      getEnvAsDuration("ORACLE_BREAKER_OPEN_TIMEOUT", "30s"),
			BreakerHalfOpenMaxCalls: uint32(getEnvAsInt("ORACLE_BREAKER_HALF_OPEN_MAX_CALLS", 2)),
		},
		Audit: AuditConfig{
			Enabled:  getEnvAsBool("AUDIT_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "policy_analyzer"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Validate returns fatal errors for settings the process cannot run with, and
// warnings for conditions that only degrade individual requests.
func (c *Config) Validate() (warnings []string, err error) {
	switch c.Oracle.Provider {
	case ProviderGemini:
		if c.Oracle.APIKey == "" {
			warnings = append(warnings, "GEMINI_API_KEY is not set; analysis requests will fail with a configuration error")
		}
	case ProviderRemote:
		if c.Oracle.RemoteURL == "" {
			warnings = append(warnings, "ORACLE_REMOTE_URL is not set; analysis requests will fail with a configuration error")
		} else if c.Oracle.RemoteAPIKey == "" {
			warnings = append(warnings, "ORACLE_REMOTE_API_KEY is not set; the remote oracle will be called without credentials")
		}
	default:
		return warnings, fmt.Errorf("unknown ORACLE_PROVIDER %q", c.Oracle.Provider)
	}

	if c.Pipeline.MinTextLength <= 0 || c.Pipeline.MaxTextLength < c.Pipeline.MinTextLength {
		return warnings, fmt.Errorf("invalid text length bounds: min=%d max=%d", c.Pipeline.MinTextLength, c.Pipeline.MaxTextLength)
	}
	if c.Pipeline.MaxUploadBytes > c.Pipeline.MaxRequestBytes {
		warnings = append(warnings, "MAX_UPLOAD_BYTES exceeds MAX_REQUEST_BYTES; large uploads will be rejected as payload too large")
	}
	if c.Oracle.MaxAttempts < 1 {
		warnings = append(warnings, "ORACLE_MAX_ATTEMPTS below 1, using a single attempt")
		c.Oracle.MaxAttempts = 1
	}

	return warnings, nil
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Audit.Host,
		c.Audit.Port,
		c.Audit.User,
		c.Audit.Password,
		c.Audit.DBName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 32); err == nil {
		return float32(value)
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
