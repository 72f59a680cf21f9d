// Package config loads the server and CLI settings.
//
// Sources, lowest precedence first:
//
//  1. built-in defaults
//  2. a YAML file named by PORTFOLIO_CONFIG (optional)
//  3. a .env file in the working directory (optional, never overrides a
//     variable already set in the process environment)
//  4. environment variables
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
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. YAML keys mirror the
// environment variable names in lower case.
type Config struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`

	JWTSecret      string        `yaml:"jwt_secret"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	// CredentialKey seals stored GitHub tokens. Falls back to JWTSecret.
	CredentialKey string `yaml:"credential_key"`

	GitHubClientID     string `yaml:"github_client_id"`
	GitHubClientSecret string `yaml:"github_client_secret"`
	GitHubCallbackURL  string `yaml:"github_callback_url"`

	FrontendURL  string   `yaml:"frontend_url"`
	CORSOrigins  []string `yaml:"cors_origins"`
	SecureCookie bool     `yaml:"secure_cookie"`

	// StateStore is "memory" or "sqlite".
	StateStore string `yaml:"state_store"`

	SyncConcurrency   int           `yaml:"sync_concurrency"`
	GitHubCallTimeout time.Duration `yaml:"github_call_timeout"`
	// GitHubMaxRetries counts retries after the first failed call.
	GitHubMaxRetries  int           `yaml:"github_max_retries"`
	GitHubRPS         float64       `yaml:"github_rps"`
	GitHubBaseURL     string        `yaml:"github_base_url"`

	LogLevel slog.Level `yaml:"-"`
}

const (
	StateStoreMemory = "memory"
	StateStoreSQLite = "sqlite"
)

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port:              8000,
		DBPath:            "data/portfolio.db",
		AccessTokenTTL:    7 * 24 * time.Hour,
		FrontendURL:       "http://localhost:3000",
		StateStore:        StateStoreSQLite,
		SyncConcurrency:   4,
		GitHubCallTimeout: 10 * time.Second,
		GitHubMaxRetries:  2,
		GitHubRPS:         10,
		LogLevel:          slog.LevelInfo,
	}
}

// Load reads every source and validates the result. Missing optional files
// are not errors.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("PORTFOLIO_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.finish()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	var file struct {
		Config   `yaml:",inline"`
		LogLevel string `yaml:"log_level"`
	}
	file.Config = *c
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	*c = file.Config
	if file.LogLevel != "" {
		if err := c.LogLevel.UnmarshalText([]byte(file.LogLevel)); err != nil {
			return fmt.Errorf("config: log_level: %w", err)
		}
	}
	return nil
}

// applyEnv overrides fields from the environment. lookup is os.LookupEnv in
// production and a map in tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a duration", key, v))
				return
			}
			*dst = d
		}
	}

	num("PORT", &c.Port)
	str("DB_PATH", &c.DBPath)
	str("JWT_SECRET", &c.JWTSecret)
	dur("ACCESS_TOKEN_TTL", &c.AccessTokenTTL)
	str("CREDENTIAL_KEY", &c.CredentialKey)
	str("GITHUB_CLIENT_ID", &c.GitHubClientID)
	str("GITHUB_CLIENT_SECRET", &c.GitHubClientSecret)
	str("GITHUB_CALLBACK_URL", &c.GitHubCallbackURL)
	str("FRONTEND_URL", &c.FrontendURL)
	str("STATE_STORE", &c.StateStore)
	num("SYNC_CONCURRENCY", &c.SyncConcurrency)
	dur("GITHUB_CALL_TIMEOUT", &c.GitHubCallTimeout)
	num("GITHUB_MAX_RETRIES", &c.GitHubMaxRetries)
	str("GITHUB_BASE_URL", &c.GitHubBaseURL)

	if v, ok := lookup("GITHUB_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("GITHUB_RPS: %q is not a number", v))
		} else {
			c.GitHubRPS = f
		}
	}
	if v, ok := lookup("SECURE_COOKIE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SECURE_COOKIE: %q is not a boolean", v))
		} else {
			c.SecureCookie = b
		}
	}
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// finish fills values derived from other fields.
func (c *Config) finish() {
	c.StateStore = strings.ToLower(strings.TrimSpace(c.StateStore))
	c.FrontendURL = strings.TrimRight(c.FrontendURL, "/")
	if c.GitHubCallbackURL == "" {
		c.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Port)
	}
	if len(c.CORSOrigins) == 0 && c.FrontendURL != "" {
		c.CORSOrigins = []string{c.FrontendURL}
	}
}

// UsesFallbackCredentialKey reports whether stored tokens are sealed with the
// JWT secret because no CREDENTIAL_KEY was configured.
func (c Config) UsesFallbackCredentialKey() bool {
	return c.CredentialKey == ""
}

// SealingKey returns the key for the credential vault.
func (c Config) SealingKey() string {
	if c.CredentialKey != "" {
		return c.CredentialKey
	}
	return c.JWTSecret
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH must not be empty"))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.StateStore != StateStoreMemory && c.StateStore != StateStoreSQLite {
		errs = append(errs, fmt.Errorf("STATE_STORE must be %q or %q, got %q", StateStoreMemory, StateStoreSQLite, c.StateStore))
	}
	if c.SyncConcurrency < 1 {
		errs = append(errs, errors.New("SYNC_CONCURRENCY must be at least 1"))
	}
	if c.GitHubMaxRetries < 0 {
		errs = append(errs, errors.New("GITHUB_MAX_RETRIES must not be negative"))
	}
	if c.GitHubCallTimeout <= 0 {
		errs = append(errs, errors.New("GITHUB_CALL_TIMEOUT must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// OAuthConfigured reports whether the GitHub login routes can work.
func (c Config) OAuthConfigured() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.TrimRight(part, "/"))
		}
	}
	return out
}
