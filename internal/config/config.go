// Package config loads application configuration from command-line flags, environment variables, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Token formats.
const (
	TokenFormatPASETO = "paseto"
	TokenFormatJWT    = "jwt"
)

// Store drivers.
const (
	StoreDriverBadger = "badger"
	StoreDriverSQLite = "sqlite"
)

// Media backends.
const (
	MediaBackendLocal = "local"
	MediaBackendS3    = "s3"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Data      DataConfig
	Server    ServerConfig
	Auth      AuthConfig
	Store     StoreConfig
	Media     MediaConfig
	Search    SearchConfig
	Feed      FeedConfig
	Admin     AdminConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds the on-disk location for the database, search index, keys, and local media.
type DataConfig struct {
	BasePath string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	PublicURL      string // Base URL used for links in the RSS feed
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// AuthConfig holds token configuration.
type AuthConfig struct {
	TokenFormat   string
	TokenDuration time.Duration // 720h (30 days) by default
	// TokenKey is the PASETO v4 symmetric key, set from auth.LoadOrGenerateKey at startup.
	TokenKey  []byte
	JWTSecret string
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string
}

// MediaConfig configures the media host.
type MediaConfig struct {
	Backend         string
	MaxUploadBytes  int64
	DeleteQueueSize int
	Local           LocalMediaConfig
	S3              S3Config
}

// LocalMediaConfig configures filesystem-backed media.
type LocalMediaConfig struct {
	Dir     string // defaults to {data}/media
	BaseURL string // defaults to {public}/media
}

// S3Config configures an S3 or MinIO bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string // defaults to {endpoint}
}

// SearchConfig toggles the full-text index.
type SearchConfig struct {
	Enabled bool
}

// FeedConfig configures the RSS feed.
type FeedConfig struct {
	Title             string
	Description       string
	Items             int
	DescriptionLength int
}

// AdminConfig describes the bootstrap administrator created on first start.
// PasswordHash is a bcrypt hash used instead of Password when set.
type AdminConfig struct {
	Email        string
	Password     string
	PasswordHash string
	Name         string
}

// RateLimitConfig limits authentication attempts per client IP.
type RateLimitConfig struct {
	AuthPerMinute int
	AuthBurst     int
}

// LoadConfig loads configuration from os.Args with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load is LoadConfig with explicit arguments.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("quill", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for database, search index and local media")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	publicURL := fs.String("public-url", "", "Public base URL (default: http://localhost:{port})")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 60s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	allowedOrigins := fs.String("allowed-origins", "", "Comma-separated CORS origins (default: *)")

	tokenFormat := fs.String("token-format", "", "Token format: paseto or jwt (default: paseto)")
	tokenDuration := fs.String("token-duration", "", "Token lifetime (default: 720h)")

	storeDriver := fs.String("store", "", "Store driver: badger or sqlite (default: badger)")

	mediaBackend := fs.String("media", "", "Media backend: local or s3 (default: local)")
	s3Endpoint := fs.String("s3-endpoint", "", "S3/MinIO endpoint URL")
	s3Bucket := fs.String("s3-bucket", "", "S3 bucket for uploaded media")

	searchEnabled := fs.String("search", "", "Enable the full-text search index (default: true)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			PublicURL:      getConfigValue(*publicURL, "PUBLIC_URL", ""),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "ALLOWED_ORIGINS", "*")),
		},
		Auth: AuthConfig{
			TokenFormat: strings.ToLower(getConfigValue(*tokenFormat, "TOKEN_FORMAT", TokenFormatPASETO)),
			JWTSecret:   getConfigValue("", "JWT_SECRET", ""),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getConfigValue(*storeDriver, "STORE_DRIVER", StoreDriverBadger)),
		},
		Media: MediaConfig{
			Backend:         strings.ToLower(getConfigValue(*mediaBackend, "MEDIA_BACKEND", MediaBackendLocal)),
			MaxUploadBytes:  int64(getIntConfigValue("", "MEDIA_MAX_UPLOAD_MB", 10)) << 20,
			DeleteQueueSize: getIntConfigValue("", "MEDIA_DELETE_QUEUE", 64),
			Local: LocalMediaConfig{
				Dir:     getConfigValue("", "MEDIA_DIR", ""),
				BaseURL: getConfigValue("", "MEDIA_BASE_URL", ""),
			},
			S3: S3Config{
				Endpoint:  getConfigValue(*s3Endpoint, "S3_ENDPOINT", ""),
				Region:    getConfigValue("", "S3_REGION", "us-east-1"),
				Bucket:    getConfigValue(*s3Bucket, "S3_BUCKET", ""),
				AccessKey: getConfigValue("", "S3_ACCESS_KEY", ""),
				SecretKey: getConfigValue("", "S3_SECRET_KEY", ""),
				PublicURL: getConfigValue("", "S3_PUBLIC_URL", ""),
			},
		},
		Search: SearchConfig{
			Enabled: getBoolConfigValue(*searchEnabled, "SEARCH_ENABLED", true),
		},
		Feed: FeedConfig{
			Title:             getConfigValue("", "FEED_TITLE", "Quill"),
			Description:       getConfigValue("", "FEED_DESCRIPTION", "Latest articles"),
			Items:             getIntConfigValue("", "FEED_ITEMS", 20),
			DescriptionLength: getIntConfigValue("", "FEED_DESCRIPTION_LENGTH", 200),
		},
		Admin: AdminConfig{
			Email:        getConfigValue("", "ADMIN_EMAIL", ""),
			Password:     getConfigValue("", "ADMIN_PASSWORD", ""),
			PasswordHash: getConfigValue("", "ADMIN_PASSWORD_HASH", ""),
			Name:         getConfigValue("", "ADMIN_NAME", "Administrator"),
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute: getIntConfigValue("", "AUTH_RATE_PER_MINUTE", 20),
			AuthBurst:     getIntConfigValue("", "AUTH_RATE_BURST", 10),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Auth.TokenDuration, *tokenDuration, "TOKEN_DURATION", "720h"},
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "60s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	switch c.Auth.TokenFormat {
	case TokenFormatPASETO:
	case TokenFormatJWT:
		if len(c.Auth.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 bytes when TOKEN_FORMAT=jwt")
		}
	default:
		return fmt.Errorf("invalid token format: %q (must be paseto or jwt)", c.Auth.TokenFormat)
	}

	if c.Auth.TokenDuration <= 0 {
		return errors.New("token duration must be positive")
	}

	if c.Store.Driver != StoreDriverBadger && c.Store.Driver != StoreDriverSQLite {
		return fmt.Errorf("invalid store driver: %q (must be badger or sqlite)", c.Store.Driver)
	}

	switch c.Media.Backend {
	case MediaBackendLocal:
	case MediaBackendS3:
		if c.Media.S3.Bucket == "" {
			return errors.New("S3_BUCKET is required when MEDIA_BACKEND=s3")
		}
	default:
		return fmt.Errorf("invalid media backend: %q (must be local or s3)", c.Media.Backend)
	}

	if c.Feed.Items < 1 {
		return errors.New("FEED_ITEMS must be at least 1")
	}

	hasSecret := c.Admin.Password != "" || c.Admin.PasswordHash != ""
	if (c.Admin.Email == "") == hasSecret {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD (or ADMIN_PASSWORD_HASH) must be set together")
	}
	if c.Admin.Password != "" && c.Admin.PasswordHash != "" {
		return errors.New("set only one of ADMIN_PASSWORD and ADMIN_PASSWORD_HASH")
	}

	return nil
}

// expandPaths resolves the data directory and the defaults derived from it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	base, err := expandPath(c.Data.BasePath, filepath.Join(homeDir, "Quill", "data"))
	if err != nil {
		return err
	}
	c.Data.BasePath = base

	mediaDir, err := expandPath(c.Media.Local.Dir, filepath.Join(base, "media"))
	if err != nil {
		return err
	}
	c.Media.Local.Dir = mediaDir

	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://localhost:" + c.Server.Port
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")

	if c.Media.Local.BaseURL == "" {
		c.Media.Local.BaseURL = c.Server.PublicURL + "/media"
	}
	if c.Media.S3.PublicURL == "" {
		c.Media.S3.PublicURL = c.Media.S3.Endpoint
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envKey != "" {
		if envValue := os.Getenv(envKey); envValue != "" {
			return envValue
		}
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads KEY=value lines from a .env file. Existing env vars win.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- path comes from the operator
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
