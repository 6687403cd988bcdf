// Package config provides centralized configuration management for the notes backend.
// It loads configuration from CLI flag values and environment variables, validates
// required fields, and provides defaults matching the original Firebase deployment.
//
// A .env file in the working directory is loaded first when present; variables that
// are already set in the process environment win over the file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kuitang/notes-backend/internal/auth"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreBolt   = "bolt"
	StoreS3     = "s3"
)

const (
	defaultPort      = "8000"
	defaultStorePath = "./data/notes.db"
	defaultS3Region  = "auto"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr      string
	CORSOrigins     []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Identity verification
	CredentialsPath string // GOOGLE_APPLICATION_CREDENTIALS
	ProjectID       string // PROJECT_ID, or project_id from the credentials file
	TokenIssuer     string // TOKEN_ISSUER
	TokenAudience   string // TOKEN_AUDIENCE
	TokenJWKSURL    string // TOKEN_JWKS_URL; empty means OIDC discovery on TokenIssuer
	RevocationFile  string // REVOCATION_FILE (YAML subject -> cutoff)

	// Document store
	StoreBackend   string
	StorePath      string // sqlite / bolt file
	StoreMasterKey string // 64 hex characters; enables SQLCipher encryption

	// S3 storage (same variable names as `fly storage create`)
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSBucketName      string // BUCKET_NAME
	AWSUsePathStyle    bool   // S3_USE_PATH_STYLE
}

// Flags are the CLI overrides collected by cmd/server.
type Flags struct {
	Addr  string
	Store string
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// LoadDotEnv loads path (usually ".env") into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// LoadConfig loads configuration from environment variables and CLI flag values.
func LoadConfig(flags Flags) (*Config, error) {
	cfg := &Config{}

	// Server settings
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":"+getEnvOrDefault("PORT", defaultPort))
	if flags.Addr != "" {
		cfg.ListenAddr = flags.Addr
	}
	cfg.CORSOrigins = parseList(getEnvOrDefault("CORS_ORIGINS", "*"))
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	cfg.ReadTimeout = parseDurationOrDefault("HTTP_READ_TIMEOUT", 15*time.Second)
	cfg.WriteTimeout = parseDurationOrDefault("HTTP_WRITE_TIMEOUT", 30*time.Second)
	cfg.ShutdownTimeout = parseDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second)

	// Identity verification
	cfg.CredentialsPath = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	cfg.ProjectID = strings.TrimSpace(os.Getenv("PROJECT_ID"))
	if cfg.ProjectID == "" && cfg.CredentialsPath != "" {
		// Validate reports a missing project id; the read error itself adds nothing.
		cfg.ProjectID, _ = ProjectIDFromCredentials(cfg.CredentialsPath)
	}
	cfg.TokenIssuer = strings.TrimSpace(os.Getenv("TOKEN_ISSUER"))
	if cfg.TokenIssuer == "" && cfg.ProjectID != "" {
		cfg.TokenIssuer = auth.FirebaseIssuerPrefix + cfg.ProjectID
	}
	cfg.TokenAudience = getEnvOrDefault("TOKEN_AUDIENCE", cfg.ProjectID)
	cfg.TokenJWKSURL = strings.TrimSpace(os.Getenv("TOKEN_JWKS_URL"))
	if cfg.TokenJWKSURL == "" && strings.HasPrefix(cfg.TokenIssuer, auth.FirebaseIssuerPrefix) {
		cfg.TokenJWKSURL = auth.FirebaseJWKSURL
	}
	cfg.RevocationFile = strings.TrimSpace(os.Getenv("REVOCATION_FILE"))

	// Document store
	cfg.StoreBackend = strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreSQLite))
	if flags.Store != "" {
		cfg.StoreBackend = strings.ToLower(flags.Store)
	}
	cfg.StorePath = getEnvOrDefault("STORE_PATH", defaultStorePath)
	cfg.StoreMasterKey = strings.TrimSpace(os.Getenv("STORE_MASTER_KEY"))

	// S3 storage
	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultS3Region)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.AWSBucketName = strings.TrimSpace(os.Getenv("BUCKET_NAME"))
	cfg.AWSUsePathStyle = parseBoolOrDefault("S3_USE_PATH_STYLE", false)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.ListenAddr == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}

	if c.TokenIssuer == "" {
		errs = append(errs, "TOKEN_ISSUER is required (or set PROJECT_ID / GOOGLE_APPLICATION_CREDENTIALS)")
	}
	if c.TokenAudience == "" {
		errs = append(errs, "TOKEN_AUDIENCE is required (or set PROJECT_ID / GOOGLE_APPLICATION_CREDENTIALS)")
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StoreSQLite, StoreBolt:
		if c.StorePath == "" {
			errs = append(errs, "STORE_PATH is required for the "+c.StoreBackend+" store")
		}
	case StoreS3:
		if c.AWSBucketName == "" {
			errs = append(errs, "BUCKET_NAME is required for the s3 store")
		}
		if (c.AWSAccessKeyID == "") != (c.AWSSecretAccessKey == "") {
			errs = append(errs, "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_BACKEND %q is not one of memory, sqlite, bolt, s3", c.StoreBackend))
	}

	if c.StoreMasterKey != "" && len(c.StoreMasterKey) != 64 {
		errs = append(errs, "STORE_MASTER_KEY must be 64 hex characters (32 bytes)")
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// ProjectIDFromCredentials reads project_id from a service-account JSON file.
func ProjectIDFromCredentials(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read credentials file: %w", err)
	}
	var creds struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return "", fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return strings.TrimSpace(creds.ProjectID), nil
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "notes backend starting...")
	fmt.Fprintf(os.Stderr, "  Issuer:  %s (aud %s)\n", c.TokenIssuer, c.TokenAudience)
	if c.TokenJWKSURL != "" {
		fmt.Fprintf(os.Stderr, "  Keys:    %s\n", c.TokenJWKSURL)
	} else {
		fmt.Fprintln(os.Stderr, "  Keys:    OIDC discovery")
	}
	switch c.StoreBackend {
	case StoreS3:
		fmt.Fprintf(os.Stderr, "  Store:   s3 (bucket %s)\n", c.AWSBucketName)
	case StoreMemory:
		fmt.Fprintln(os.Stderr, "  Store:   memory (data is lost on exit)")
	default:
		encrypted := ""
		if c.StoreMasterKey != "" {
			encrypted = ", encrypted"
		}
		fmt.Fprintf(os.Stderr, "  Store:   %s (%s%s)\n", c.StoreBackend, c.StorePath, encrypted)
	}
	fmt.Fprintf(os.Stderr, "  CORS:    %s\n", strings.Join(c.CORSOrigins, ", "))
	fmt.Fprintf(os.Stderr, "  Listen:  %s\n", c.ListenAddr)
	fmt.Fprintln(os.Stderr, "")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
