package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure shared by the API process and
// both workers. Each process loads the whole file but only reads the
// sections it needs.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Queue         QueueConfig         `yaml:"queue"`
	LLM           LLMConfig           `yaml:"llm"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Crawler       CrawlerConfig       `yaml:"crawler"`
	API           APIConfig           `yaml:"api"`
	Sources       []SourceConfig      `yaml:"sources"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// DatabaseConfig configures the relational Store.
type DatabaseConfig struct {
	// DSN is a database/sql data source name for the MySQL-wire driver
	// (github.com/go-sql-driver/mysql). Overridden by $DATABASE_URL.
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig configures the client used for the reference-cache advisory
// lock.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// QueueConfig controls the ingestion/transcription poll loops.
type QueueConfig struct {
	IngestionPollInterval     time.Duration `yaml:"ingestion_poll_interval"`
	TranscriptionPollInterval time.Duration `yaml:"transcription_poll_interval"`
}

// LLMConfig configures the Suggester/Analyzer adapters.
type LLMConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Provider    string        `yaml:"provider"` // "openai", "anthropic"
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// TranscriptionConfig configures the Transcriber adapter.
type TranscriptionConfig struct {
	OpenAIAPIKey   string        `yaml:"openai_api_key"`
	AssemblyAPIKey string        `yaml:"assembly_api_key"`
	Timeout        time.Duration `yaml:"timeout"`
}

// CrawlerConfig configures the reference-document Crawler.
type CrawlerConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`
}

// APIConfig configures the HTTP control plane.
type APIConfig struct {
	Port                  int           `yaml:"port"`
	RateLimit             int           `yaml:"rate_limit"`
	AnalyzeTimeout        time.Duration `yaml:"analyze_timeout"`
	DefaultRequestTimeout time.Duration `yaml:"default_request_timeout"`
}

// SourceConfig describes a feed source in the YAML file; the feed URL
// itself is resolved from the environment variable named in FeedURLEnv,
// never stored in the YAML file. Loading the config does not create or
// update Source rows in the store.
type SourceConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	FeedURLEnv string `yaml:"feed_url_env"`
	IsActive   bool   `yaml:"is_active"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig loads configuration from a YAML file, applies defaults, layers
// environment-variable overrides on top, and validates the result.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnv(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}

	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379"
	}

	if cfg.Queue.IngestionPollInterval == 0 {
		cfg.Queue.IngestionPollInterval = 5 * time.Second
	}
	if cfg.Queue.TranscriptionPollInterval == 0 {
		cfg.Queue.TranscriptionPollInterval = 5 * time.Second
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 512
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}

	if cfg.Transcription.Timeout == 0 {
		cfg.Transcription.Timeout = 2 * time.Minute
	}

	if cfg.Crawler.Timeout == 0 {
		cfg.Crawler.Timeout = 20 * time.Second
	}
	if cfg.Crawler.MaxResponseBytes == 0 {
		cfg.Crawler.MaxResponseBytes = 10 << 20 // 10 MiB
	}

	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.RateLimit == 0 {
		cfg.API.RateLimit = 1000
	}
	if cfg.API.AnalyzeTimeout == 0 {
		cfg.API.AnalyzeTimeout = 120 * time.Second
	}
	if cfg.API.DefaultRequestTimeout == 0 {
		cfg.API.DefaultRequestTimeout = 15 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func overrideWithEnv(cfg *Config) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Transcription.OpenAIAPIKey = key
		if cfg.LLM.Provider == "openai" {
			cfg.LLM.APIKey = key
			cfg.LLM.Enabled = true
		}
	}
	if key := os.Getenv("ASSEMBLY_API_KEY"); key != "" {
		cfg.Transcription.AssemblyAPIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.LLM.Provider == "anthropic" {
		cfg.LLM.APIKey = key
		cfg.LLM.Enabled = true
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database DSN must not be empty (set DATABASE_URL or database.dsn)")
	}
	if cfg.LLM.Enabled && cfg.LLM.APIKey == "" {
		return fmt.Errorf("llm.enabled is true but no API key is configured")
	}
	if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port must be between 1 and 65535")
	}
	return nil
}

// ResolveFeedURL looks up the feed URL environment variable for a source
// config entry. Returns an empty string (no error) when FeedURLEnv is unset,
// since manual sources never poll a feed.
func ResolveFeedURL(src SourceConfig) (string, error) {
	if src.FeedURLEnv == "" {
		return "", nil
	}
	v := os.Getenv(src.FeedURLEnv)
	if v == "" {
		return "", fmt.Errorf("source %q: environment variable %s is not set", src.Name, src.FeedURLEnv)
	}
	return v, nil
}
