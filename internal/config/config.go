package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/shopsearch/internal/retry"
)

// Catalog drivers.
const (
	CatalogStore    = "store"
	CatalogPostgres = "postgres"
)

// Session backends.
const (
	SessionRedis  = "redis"
	SessionMemory = "memory"
)

// Ambiguous-intent fallbacks.
const (
	FallbackProduct = "product"
	FallbackNone    = "none"
)

// Config holds the shopsearch API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retry     RetryConfig     `yaml:"retry"`
	Vector    VectorConfig    `yaml:"vector"`
	Session   SessionConfig   `yaml:"session"`
	Router    RouterConfig    `yaml:"router"`
	Answer    AnswerConfig    `yaml:"answer"`
	Search    SearchConfig    `yaml:"search"`
	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// CORSConfig lists browser origins allowed to call the API. Empty disables CORS headers.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxAgeSec      int      `yaml:"max_age_sec"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the Redis-compatible store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds key layout settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
	// Indexes overrides vector index names per collection (products, reviews, policies).
	Indexes map[string]string `yaml:"indexes"`
}

// CatalogConfig selects where direct product matches are read from.
type CatalogConfig struct {
	Driver       string `yaml:"driver"` // store (default) | postgres
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	TimeoutSec       int    `yaml:"timeout_sec"`
	CacheTTLSec      int    `yaml:"cache_ttl_sec"` // 0 = keep forever
	CacheDisabled    bool   `yaml:"cache_disabled"`
}

// LLMConfig holds the chat completion settings shared by the composer, classifier and rewriter.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// RetryConfig is the backoff policy shared by the embedding client and the vector retriever.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier"`
}

// VectorConfig holds vector retriever settings.
type VectorConfig struct {
	TimeoutSec int `yaml:"timeout_sec"`
}

// SessionConfig holds session memory settings.
type SessionConfig struct {
	Backend          string `yaml:"backend"` // redis (default) | memory
	MaxTurns         int    `yaml:"max_turns"`
	TTLSec           int    `yaml:"ttl_sec"`
	SweepIntervalSec int    `yaml:"sweep_interval_sec"`
}

// RouterConfig holds intent routing settings.
type RouterConfig struct {
	LLMClassifier     bool   `yaml:"llm_classifier"`
	AmbiguousFallback string `yaml:"ambiguous_fallback"` // product (default) | none
	TimeoutSec        int    `yaml:"timeout_sec"`
}

// AnswerConfig holds prompt and generation limits.
type AnswerConfig struct {
	SnippetChars   int `yaml:"snippet_chars"`
	MaxEvidence    int `yaml:"max_evidence"`
	HistoryTurns   int `yaml:"history_turns"`
	MaxPromptChars int `yaml:"max_prompt_chars"`
	TimeoutSec     int `yaml:"timeout_sec"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	RewriteFollowups  bool `yaml:"rewrite_followups"`
	RewriteTimeoutSec int  `yaml:"rewrite_timeout_sec"`
	Overfetch         int  `yaml:"overfetch"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded into the environment first.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	setDefault(&c.HTTP.ReadTimeoutSec, 10)
	setDefault(&c.HTTP.WriteTimeoutSec, 60)
	setDefault(&c.HTTP.ShutdownSec, 10)
	setDefault(&c.Database.ReadinessTimeout, 10)

	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "shop:"
	}
	if c.Catalog.Driver == "" {
		c.Catalog.Driver = CatalogStore
	}
	setDefault(&c.Catalog.MaxOpenConns, 5)

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	setDefault(&c.Embedding.TimeoutSec, 5)

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	setDefault(&c.LLM.MaxTokens, 512)

	setDefault(&c.Retry.MaxAttempts, 3)
	setDefault(&c.Retry.InitialBackoffMs, 100)
	setDefault(&c.Retry.MaxBackoffMs, 2000)
	if c.Retry.Multiplier <= 0 {
		c.Retry.Multiplier = 2
	}

	setDefault(&c.Vector.TimeoutSec, 5)

	if c.Session.Backend == "" {
		c.Session.Backend = SessionRedis
	}
	setDefault(&c.Session.MaxTurns, 20)
	setDefault(&c.Session.TTLSec, 24*60*60)
	setDefault(&c.Session.SweepIntervalSec, 60)

	if c.Router.AmbiguousFallback == "" {
		c.Router.AmbiguousFallback = FallbackProduct
	}
	setDefault(&c.Router.TimeoutSec, 10)

	setDefault(&c.Answer.SnippetChars, 600)
	setDefault(&c.Answer.MaxEvidence, 8)
	setDefault(&c.Answer.HistoryTurns, 6)
	setDefault(&c.Answer.MaxPromptChars, 12000)
	setDefault(&c.Answer.TimeoutSec, 20)

	setDefault(&c.Search.RewriteTimeoutSec, 10)
	setDefault(&c.Search.Overfetch, 3)
	setDefault(&c.CORS.MaxAgeSec, 300)
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Catalog.Driver {
	case CatalogStore:
	case CatalogPostgres:
		if c.Catalog.DSN == "" {
			return fmt.Errorf("catalog.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("catalog.driver must be %q or %q, got %q", CatalogStore, CatalogPostgres, c.Catalog.Driver)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	switch c.Session.Backend {
	case SessionRedis, SessionMemory:
	default:
		return fmt.Errorf("session.backend must be %q or %q, got %q", SessionRedis, SessionMemory, c.Session.Backend)
	}
	switch c.Router.AmbiguousFallback {
	case FallbackProduct, FallbackNone:
	default:
		return fmt.Errorf("router.ambiguous_fallback must be %q or %q, got %q",
			FallbackProduct, FallbackNone, c.Router.AmbiguousFallback)
	}
	for name := range c.Storage.Indexes {
		switch name {
		case "products", "reviews", "policies":
		default:
			return fmt.Errorf("storage.indexes: unknown collection %q", name)
		}
	}
	if c.Retry.MaxBackoffMs < c.Retry.InitialBackoffMs {
		return fmt.Errorf("retry.max_backoff_ms must not be below retry.initial_backoff_ms")
	}
	return nil
}

// Policy converts the retry settings into a retry.Policy with the given per-attempt timeout.
// Zero settings keep retry.DefaultPolicy values.
func (r RetryConfig) Policy(attemptTimeout time.Duration) retry.Policy {
	p := retry.DefaultPolicy()
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(r.InitialBackoffMs) * time.Millisecond
	}
	if r.MaxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(r.MaxBackoffMs) * time.Millisecond
	}
	if r.Multiplier > 0 {
		p.Multiplier = r.Multiplier
	}
	return p.WithAttemptTimeout(attemptTimeout)
}

// Seconds converts a *_sec setting into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
