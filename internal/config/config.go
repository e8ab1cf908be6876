package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderYahoo     = "yahoo"
	ProviderFinnhub   = "finnhub"
)

// Config holds all configuration for the service and its companion commands.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	CORS     CORSConfig     `mapstructure:"cors"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Fund     FundConfig     `mapstructure:"fund"`
	History  HistoryConfig  `mapstructure:"history"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Market   MarketConfig   `mapstructure:"market"`
}

type AppConfig struct {
	Port            string        `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
}

type CORSConfig struct {
	AllowedOrigins string `mapstructure:"allowed_origins"`
}

type MongoDBConfig struct {
	URI               string `mapstructure:"uri"`
	FundDatabase      string `mapstructure:"fund_database"`
	FundCollection    string `mapstructure:"fund_collection"`
	HistoryDatabase   string `mapstructure:"history_database"`
	HistoryCollection string `mapstructure:"history_collection"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type FundConfig struct {
	Backend string `mapstructure:"backend"`
}

type HistoryConfig struct {
	Backend string `mapstructure:"backend"`
	Window  int    `mapstructure:"window"`
}

type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`
}

type MarketConfig struct {
	Provider      string `mapstructure:"provider"`
	FinnhubAPIKey string `mapstructure:"finnhub_api_key"`
}

var errMissingMongoURI = errors.New("MONGODB_URI not found in environment variables")

var keys = []string{
	"app.port", "app.log_level", "app.upstream_timeout",
	"cors.allowed_origins",
	"mongodb.uri", "mongodb.fund_database", "mongodb.fund_collection",
	"mongodb.history_database", "mongodb.history_collection",
	"postgres.url",
	"redis.url",
	"fund.backend",
	"history.backend", "history.window",
	"llm.provider", "llm.api_key", "llm.base_url", "llm.model",
	"market.provider", "market.finnhub_api_key",
}

// Load reads configuration from a .env file, environment variables and defaults.
// Environment variables map dotted keys to upper-case underscores, e.g.
// mongodb.uri is read from MONGODB_URI.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for commands that only use part of the
// configuration and validate that part themselves.
func Read() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on environment")
	}

	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("app.port", ":8000")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.upstream_timeout", 15*time.Second)

	v.SetDefault("cors.allowed_origins", "http://localhost:5173")

	v.SetDefault("mongodb.fund_database", "mutual-fund-data")
	v.SetDefault("mongodb.fund_collection", "mutual-fund-data")
	v.SetDefault("mongodb.history_database", "session-history")
	v.SetDefault("mongodb.history_collection", "messages")

	v.SetDefault("fund.backend", BackendMongo)
	v.SetDefault("history.backend", BackendMongo)
	v.SetDefault("history.window", 5)

	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")

	v.SetDefault("market.provider", ProviderYahoo)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	// Deployments of the original service only set GROQ_API_KEY.
	if err := v.BindEnv("llm.api_key", "LLM_API_KEY", "GROQ_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env for llm.api_key: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if cfg.History.Window < 1 {
		cfg.History.Window = 5
	}

	return &cfg, nil
}

// Validate checks that every selected backend and provider has its settings.
func (c *Config) Validate() error {
	if err := c.ValidateFunds(); err != nil {
		return err
	}
	if err := c.ValidateHistory(); err != nil {
		return err
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Market.Provider {
	case ProviderYahoo:
	case ProviderFinnhub:
		if c.Market.FinnhubAPIKey == "" {
			return fmt.Errorf("MARKET_FINNHUB_API_KEY is required when market provider is finnhub")
		}
	default:
		return fmt.Errorf("unknown market provider %q", c.Market.Provider)
	}

	return nil
}

func (c *Config) ValidateFunds() error {
	switch c.Fund.Backend {
	case BackendMongo:
		if c.MongoDB.URI == "" {
			return errMissingMongoURI
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("POSTGRES_URL is required when fund backend is postgres")
		}
	default:
		return fmt.Errorf("unknown fund backend %q", c.Fund.Backend)
	}
	return nil
}

func (c *Config) ValidateHistory() error {
	switch c.History.Backend {
	case BackendMongo:
		if c.MongoDB.URI == "" {
			return errMissingMongoURI
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required when history backend is redis")
		}
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}

	if c.History.Window < 1 {
		c.History.Window = 5
	}
	return nil
}

func (c *Config) UsesMongo() bool {
	return c.Fund.Backend == BackendMongo || c.History.Backend == BackendMongo
}

// AllowedOrigins splits the comma separated CORS origin list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORS.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// SlogLevel maps app.log_level to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
