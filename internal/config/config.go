package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const insecureJWTSecret = "supersecretkey"

type Config struct {
	Env            string        `yaml:"env" toml:"env"`
	Addr           string        `yaml:"addr" toml:"addr"`
	JWTSecret      string        `yaml:"jwt_secret" toml:"jwt_secret"`
	APITimeout     time.Duration `yaml:"timeout" toml:"timeout"`
	StreamTimeout  time.Duration `yaml:"stream_timeout" toml:"stream_timeout"`
	TokenDuration  time.Duration `yaml:"token_duration" toml:"token_duration"`
	CORSOrigins    []string      `yaml:"cors_origins" toml:"cors_origins"`
	MigrateOnStart bool          `yaml:"migrate_on_start" toml:"migrate_on_start"`

	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Log       LogConfig       `yaml:"log" toml:"log"`
	Cache     CacheConfig     `yaml:"cache" toml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	AI        AIConfig        `yaml:"ai" toml:"ai"`
	Ollama    OllamaConfig    `yaml:"ollama" toml:"ollama"`
	Voice     VoiceConfig     `yaml:"voice" toml:"voice"`
	Webhook   WebhookConfig   `yaml:"webhook" toml:"webhook"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

type CacheConfig struct {
	MaxEntries int64         `yaml:"max_entries" toml:"max_entries"`
	TTL        time.Duration `yaml:"ttl" toml:"ttl"`
}

type RateLimitConfig struct {
	Backend           string        `yaml:"backend" toml:"backend"`
	InterviewCapacity int           `yaml:"interview_capacity" toml:"interview_capacity"`
	InterviewRefill   int           `yaml:"interview_refill" toml:"interview_refill"`
	InterviewInterval time.Duration `yaml:"interview_interval" toml:"interview_interval"`
	GeneralLimit      int           `yaml:"general_limit" toml:"general_limit"`
	GeneralWindow     time.Duration `yaml:"general_window" toml:"general_window"`
}

type AIConfig struct {
	Provider string        `yaml:"provider" toml:"provider"`
	Model    string        `yaml:"model" toml:"model"`
	Timeout  time.Duration `yaml:"timeout" toml:"timeout"`
	OpenAI   OpenAIConfig  `yaml:"openai" toml:"openai"`
}

type OpenAIConfig struct {
	BaseURL string `yaml:"base_url" toml:"base_url"`
	APIKey  string `yaml:"api_key" toml:"api_key"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url" toml:"base_url"`
	Timeout                 time.Duration `yaml:"timeout" toml:"timeout"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold" toml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset" toml:"circuit_reset"`
}

type VoiceConfig struct {
	BaseURL   string `yaml:"base_url" toml:"base_url"`
	APIKey    string `yaml:"api_key" toml:"api_key"`
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	ConfigID  string `yaml:"config_id" toml:"config_id"`
}

type WebhookConfig struct {
	Secret string `yaml:"secret" toml:"secret"`
}

// LoadConfig builds a Config from PREP_* environment defaults (a .env file in
// the working directory is loaded first) and then overlays the file at path,
// decoded as TOML for .toml files and YAML otherwise.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Env:            getEnv("PREP_ENV", "production"),
		Addr:           getEnv("PREP_ADDR", ":8080"),
		JWTSecret:      getEnv("PREP_JWT_SECRET", insecureJWTSecret),
		APITimeout:     getDuration("PREP_TIMEOUT", 15*time.Second),
		StreamTimeout:  getDuration("PREP_STREAM_TIMEOUT", 2*time.Minute),
		TokenDuration:  getDuration("PREP_TOKEN_DURATION", time.Hour),
		MigrateOnStart: getBool("PREP_MIGRATE_ON_START", false),
		Database: DatabaseConfig{
			Driver: getEnv("PREP_DB_DRIVER", "sqlite"),
			DSN:    getEnv("PREP_DB_DSN", "prep.db"),
		},
		Log: LogConfig{
			Level:  getEnv("PREP_LOG_LEVEL", "info"),
			Format: getEnv("PREP_LOG_FORMAT", "json"),
		},
		Cache: CacheConfig{
			MaxEntries: int64(getInt("PREP_CACHE_MAX_ENTRIES", 10000)),
			TTL:        getDuration("PREP_CACHE_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Backend:           getEnv("PREP_RATE_LIMIT_BACKEND", "database"),
			InterviewCapacity: 12,
			InterviewRefill:   4,
			InterviewInterval: 24 * time.Hour,
			GeneralLimit:      100,
			GeneralWindow:     time.Minute,
		},
		AI: AIConfig{
			Provider: getEnv("PREP_AI_PROVIDER", "ollama"),
			Model:    getEnv("PREP_AI_MODEL", ""),
			OpenAI: OpenAIConfig{
				BaseURL: getEnv("PREP_OPENAI_BASE_URL", ""),
				APIKey:  getEnv("PREP_OPENAI_API_KEY", ""),
			},
		},
		Ollama: OllamaConfig{
			BaseURL: getEnv("PREP_OLLAMA_BASE_URL", ""),
		},
		Voice: VoiceConfig{
			BaseURL:   getEnv("PREP_VOICE_BASE_URL", "https://api.hume.ai"),
			APIKey:    getEnv("PREP_VOICE_API_KEY", ""),
			SecretKey: getEnv("PREP_VOICE_SECRET_KEY", ""),
			ConfigID:  getEnv("PREP_VOICE_CONFIG_ID", ""),
		},
		Webhook: WebhookConfig{
			Secret: getEnv("PREP_WEBHOOK_SECRET", ""),
		},
	}
	if origins := getEnv("PREP_CORS_ORIGINS", ""); origins != "" {
		cfg.CORSOrigins = strings.Split(origins, ",")
	}

	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("decode toml config: %w", err)
		}
		return nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return fmt.Errorf("decode yaml config: %w", err)
		}
		return nil
	}
}

// Validate rejects unusable settings and fills provider defaults.
func (c *Config) Validate() error {
	if c.Env == "" {
		c.Env = getEnv("PREP_ENV", "production")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if c.JWTSecret == insecureJWTSecret && c.Env != "development" {
		return errors.New("jwt_secret uses the insecure default; set PREP_JWT_SECRET or PREP_ENV=development")
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.StreamTimeout <= 0 {
		c.StreamTimeout = 2 * time.Minute
	}
	if c.TokenDuration <= 0 {
		c.TokenDuration = time.Hour
	}

	switch c.Database.Driver {
	case "", "sqlite":
		c.Database.Driver = "sqlite"
	case "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}

	switch c.Log.Format {
	case "", "json":
		c.Log.Format = "json"
	case "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	switch c.RateLimit.Backend {
	case "", "database":
		c.RateLimit.Backend = "database"
	case "memory":
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.InterviewCapacity <= 0 || c.RateLimit.InterviewRefill <= 0 || c.RateLimit.InterviewInterval <= 0 {
		return errors.New("rate_limit interview policy must be positive")
	}
	if c.RateLimit.GeneralLimit <= 0 || c.RateLimit.GeneralWindow <= 0 {
		return errors.New("rate_limit general policy must be positive")
	}

	if c.AI.Model == "" {
		return errors.New("ai.model is required")
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = c.StreamTimeout
	}
	switch c.AI.Provider {
	case "", "ollama":
		c.AI.Provider = "ollama"
		if c.Ollama.BaseURL == "" {
			c.Ollama.BaseURL = "http://localhost:11434"
		}
		if c.Ollama.Timeout <= 0 {
			c.Ollama.Timeout = c.AI.Timeout
		}
		if c.Ollama.CircuitFailureThreshold <= 0 {
			c.Ollama.CircuitFailureThreshold = 5
		}
		if c.Ollama.CircuitReset <= 0 {
			c.Ollama.CircuitReset = 30 * time.Second
		}
	case "openai":
		if c.AI.OpenAI.APIKey == "" {
			return errors.New("ai.openai.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}

func getInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func getBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}
