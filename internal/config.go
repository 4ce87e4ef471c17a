package internal

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// DatabaseUrl enables the invocation audit log. Optional.
	DatabaseUrl string

	// AuditRetention bounds the age of audit entries. Zero keeps them forever.
	AuditRetention time.Duration

	// Console (session-authenticated)
	HACURL      string // Scheme and host, e.g. https://localhost:9002
	HACPath     string // Console prefix, default /hac
	HACUsername string
	HACPassword string

	// Read API (basic auth). Credentials default to the console ones.
	OCCURL      string
	OCCUsername string
	OCCPassword string
	OCCBaseSite string

	// RequestTimeout bounds each round trip to the backend.
	RequestTimeout time.Duration

	// InsecureSkipVerify accepts the self-signed certificates local
	// backends ship with. Refused in production.
	InsecureSkipVerify bool

	// APITokenHash is a bcrypt hash. Every route except /health requires
	// the matching bearer token. Required in production.
	APITokenHash string

	// Rate limiting of the command surface
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Storage Configuration
	StorageProvider string // "local", "r2" or "none"

	// Local Storage (development)
	LocalStoragePath string // Base directory for exported artifacts
	LocalStorageURL  string // Base URL the files are served under

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL
	R2Endpoint        string // Optional S3-compatible endpoint override

	// Tool catalog
	ToolsFile    string   // YAML file of saved queries. Optional.
	ToolsEnabled []string // Glob patterns of tools to publish. Empty means all.

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

// IsProduction reports whether the bridge runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnvInt("PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "debug"),
		DatabaseUrl: getEnv("DATABASE_URL", ""),

		AuditRetention: getEnvDuration("AUDIT_RETENTION", 30*24*time.Hour),

		HACURL:      getEnv("HAC_URL", ""),
		HACPath:     getEnv("HAC_PATH", "/hac"),
		HACUsername: getEnv("HAC_USERNAME", "admin"),
		HACPassword: getEnv("HAC_PASSWORD", ""),

		OCCURL:      getEnv("OCC_URL", ""),
		OCCUsername: getEnv("OCC_USERNAME", ""),
		OCCPassword: getEnv("OCC_PASSWORD", ""),
		OCCBaseSite: getEnv("OCC_BASE_SITE", "electronics"),

		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		InsecureSkipVerify: getEnvBool("HAC_INSECURE_SKIP_VERIFY", false),

		APITokenHash: getEnv("API_TOKEN_HASH", ""),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),
		R2Endpoint:        getEnv("R2_ENDPOINT", ""),

		ToolsFile:    getEnv("TOOLS_FILE", ""),
		ToolsEnabled: getEnvList("TOOLS_ENABLED"),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	// Required
	if c.HACURL == "" {
		return fmt.Errorf("HAC_URL is required")
	}
	if u, err := url.Parse(c.HACURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("HAC_URL must be an absolute URL, got: %s", c.HACURL)
	}
	if c.HACPassword == "" {
		return fmt.Errorf("HAC_PASSWORD is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.AuditRetention < 0 {
		return fmt.Errorf("AUDIT_RETENTION must not be negative")
	}
	if c.RateLimitRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
	}

	if c.IsProduction() {
		if c.APITokenHash == "" {
			return fmt.Errorf("API_TOKEN_HASH is required in production")
		}
		if c.InsecureSkipVerify {
			return fmt.Errorf("HAC_INSECURE_SKIP_VERIFY is not allowed in production")
		}
	}

	// Validate storage configuration
	switch c.StorageProvider {
	case "r2":
		if c.R2AccountID == "" && c.R2Endpoint == "" {
			return fmt.Errorf("R2_ACCOUNT_ID or R2_ENDPOINT is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	case "local", "none":
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be 'local', 'r2' or 'none', got: %s", c.StorageProvider)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
