package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile           = ".env"
	defaultPort              = "8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultLogLevel          = "info"
	defaultCartBackend       = CartBackendMemory
	defaultCurrency          = "USD"
	defaultMaxLength         = 20
	defaultCustomizableTitle = "Customizable Hat"
	defaultPublishTimeout    = 5 * time.Second
	defaultSessionIdleTTL    = 30 * time.Minute
	defaultIdempotencyHeader = "Idempotency-Key"
	defaultIdempotencyTTL    = 10 * time.Minute
	defaultCleanupInterval   = 5 * time.Minute
	defaultCleanupBatchSize  = 100
	defaultBuildVersion      = "dev"
	defaultBuildCommit       = "unknown"
)

// Cart storage backends.
const (
	CartBackendMemory    = "memory"
	CartBackendFirestore = "firestore"
)

// Config captures runtime configuration organised by concern.
type Config struct {
	Server        ServerConfig
	Logging       LoggingConfig
	Carts         CartConfig
	Firestore     FirestoreConfig
	PubSub        PubSubConfig
	Catalog       CatalogConfig
	Customization CustomizationConfig
	Sessions      SessionConfig
	Idempotency   IdempotencyConfig
	Build         BuildConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig selects the zap level.
type LoggingConfig struct {
	Level string
}

// CartConfig selects cart persistence.
type CartConfig struct {
	Backend         string
	DefaultCurrency string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig enables line item events when Topic is set.
type PubSubConfig struct {
	ProjectID      string
	CartTopic      string
	EmulatorHost   string
	PublishTimeout time.Duration
}

// Enabled reports whether events should be published.
func (c PubSubConfig) Enabled() bool {
	return strings.TrimSpace(c.CartTopic) != ""
}

// CatalogConfig points at an optional YAML catalog overriding the embedded one.
type CatalogConfig struct {
	File string
}

// CustomizationConfig tunes text customization rules.
type CustomizationConfig struct {
	MaxLength    int
	ProductTitle string
}

// SessionConfig bounds product session lifetime.
type SessionConfig struct {
	IdleTTL time.Duration
}

// IdempotencyConfig controls add-to-cart submission deduplication.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// BuildConfig describes the running binary.
type BuildConfig struct {
	Version   string
	CommitSHA string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises the loader.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the dotenv path. An empty path disables dotenv loading.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap supplies explicit values that take precedence over everything else.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load resolves configuration from the dotenv file, the process environment
// and explicit overrides, in increasing order of precedence.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnvValues[key]
		return value, ok
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "API_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel)),
		},
		Carts: CartConfig{
			Backend:         strings.ToLower(stringWithDefault(lookup, "API_CART_BACKEND", defaultCartBackend)),
			DefaultCurrency: strings.ToUpper(stringWithDefault(lookup, "API_DEFAULT_CURRENCY", defaultCurrency)),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:      stringWithDefault(lookup, "API_PUBSUB_PROJECT_ID", ""),
			CartTopic:      stringWithDefault(lookup, "API_PUBSUB_CART_TOPIC", ""),
			EmulatorHost:   stringWithDefault(lookup, "API_PUBSUB_EMULATOR_HOST", ""),
			PublishTimeout: durationWithDefault(lookup, "API_PUBSUB_PUBLISH_TIMEOUT", defaultPublishTimeout),
		},
		Catalog: CatalogConfig{
			File: stringWithDefault(lookup, "API_CATALOG_FILE", ""),
		},
		Customization: CustomizationConfig{
			MaxLength:    intWithDefault(lookup, "API_CUSTOMIZATION_MAX_LENGTH", defaultMaxLength),
			ProductTitle: stringWithDefault(lookup, "API_CUSTOMIZATION_PRODUCT_TITLE", defaultCustomizableTitle),
		},
		Sessions: SessionConfig{
			IdleTTL: durationWithDefault(lookup, "API_SESSION_IDLE_TTL", defaultSessionIdleTTL),
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultCleanupInterval),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH_SIZE", defaultCleanupBatchSize),
		},
		Build: BuildConfig{
			Version:   stringWithDefault(lookup, "API_BUILD_VERSION", defaultBuildVersion),
			CommitSHA: stringWithDefault(lookup, "API_BUILD_COMMIT_SHA", defaultBuildCommit),
		},
	}

	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		invalid = append(invalid, "Server.ShutdownTimeout")
	}
	switch cfg.Carts.Backend {
	case CartBackendMemory:
	case CartBackendFirestore:
		if cfg.Firestore.ProjectID == "" {
			invalid = append(invalid, "Firestore.ProjectID")
		}
	default:
		invalid = append(invalid, "Carts.Backend")
	}
	if len(cfg.Carts.DefaultCurrency) != 3 {
		invalid = append(invalid, "Carts.DefaultCurrency")
	}
	if cfg.PubSub.Enabled() && cfg.PubSub.ProjectID == "" {
		invalid = append(invalid, "PubSub.ProjectID")
	}
	if cfg.Customization.MaxLength <= 0 {
		invalid = append(invalid, "Customization.MaxLength")
	}
	if cfg.Sessions.IdleTTL < 0 {
		invalid = append(invalid, "Sessions.IdleTTL")
	}
	if cfg.Idempotency.TTL <= 0 {
		invalid = append(invalid, "Idempotency.TTL")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}
