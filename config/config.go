package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Research  ResearchConfig  `mapstructure:"research"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string   `mapstructure:"address"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// LLMConfig contains the LLM provider configuration used for both
// summarization and chat completion plus embeddings.
type LLMConfig struct {
	Provider            string        `mapstructure:"provider"` // openai or gemini
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	CompletionModel     string        `mapstructure:"completion_model"`
	EmbeddingModel      string        `mapstructure:"embedding_model"`
	EmbeddingDimensions int           `mapstructure:"embedding_dimensions"`
	Temperature         float64       `mapstructure:"temperature"`
	MaxTokens           int           `mapstructure:"max_tokens"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.Provider) == "" {
		return fmt.Errorf("llm.provider required")
	}
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key required")
	}
	if l.EmbeddingDimensions <= 0 {
		return fmt.Errorf("llm.embedding_dimensions must be > 0")
	}
	return nil
}

// StorageConfig groups the durable stores
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings. Redis is optional: it
// backs the chat session store and the scheduler lock when present.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether redis is configured at all.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

// SourcesConfig configures the four source connectors
type SourcesConfig struct {
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	News      NewsConfig      `mapstructure:"news"`
	Forum     ForumConfig     `mapstructure:"forum"`
	CodeHost  CodeHostConfig  `mapstructure:"code_host"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
}

// WebSearchConfig selects the web search backend
type WebSearchConfig struct {
	Provider string `mapstructure:"provider"` // serper or brave
	APIKey   string `mapstructure:"api_key"`
}

// NewsConfig contains the news API settings
type NewsConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ForumConfig contains the forum (reddit) search settings
type ForumConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	UserAgent string `mapstructure:"user_agent"`
}

// CodeHostConfig contains the code host (github) settings
type CodeHostConfig struct {
	Token string `mapstructure:"token"`
}

// FetchConfig controls optional full-article fetching of search hits
type FetchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Fetcher  string        `mapstructure:"fetcher"` // readability or chromedp
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
	TopN     int           `mapstructure:"top_n"` // deep-fetch at most N results per connector
}

// ResearchConfig tunes the research pipeline
type ResearchConfig struct {
	PerSourceLimit    int           `mapstructure:"per_source_limit"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
	MaxContentChars   int           `mapstructure:"max_content_chars"`
	MinContentChars   int           `mapstructure:"min_content_chars"`
	EmbedConcurrency  int           `mapstructure:"embed_concurrency"`
	SummarySampleSize int           `mapstructure:"summary_sample_size"`
	SummaryMaxTokens  int           `mapstructure:"summary_max_tokens"`
}

func (r ResearchConfig) Validate() error {
	if r.PerSourceLimit <= 0 {
		return fmt.Errorf("research.per_source_limit must be > 0")
	}
	if r.MaxContentChars <= r.MinContentChars {
		return fmt.Errorf("research.max_content_chars must exceed min_content_chars")
	}
	return nil
}

// ChatConfig tunes the RAG chat engine
type ChatConfig struct {
	TopK            int           `mapstructure:"top_k"`
	MaxHistoryTurns int           `mapstructure:"max_history_turns"`
	AnswerMaxTokens int           `mapstructure:"answer_max_tokens"`
	SessionStore    string        `mapstructure:"session_store"` // inmemory or redis
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
}

// SchedulerConfig controls periodic company refresh
type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// LoadConfig loads config from file with env overrides (INSIGHTFLOW_*).
// A missing config file is fine; defaults plus environment apply.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.address", ":8001")
	viper.SetDefault("server.allow_origins", []string{"*"})
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.completion_model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.embedding_dimensions", 1536)
	viper.SetDefault("llm.temperature", 0.4)
	viper.SetDefault("llm.max_tokens", 2048)
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("sources.web_search.provider", "serper")
	viper.SetDefault("sources.news.endpoint", "https://newsapi.org/v2/everything")
	viper.SetDefault("sources.forum.endpoint", "https://www.reddit.com")
	viper.SetDefault("sources.forum.user_agent", "insightflow/1.0")
	viper.SetDefault("sources.fetch.enabled", false)
	viper.SetDefault("sources.fetch.fetcher", "readability")
	viper.SetDefault("sources.fetch.timeout", 15*time.Second)
	viper.SetDefault("sources.fetch.max_chars", 20000)
	viper.SetDefault("sources.fetch.top_n", 3)
	viper.SetDefault("research.per_source_limit", 10)
	viper.SetDefault("research.fetch_timeout", 20*time.Second)
	viper.SetDefault("research.max_content_chars", 4000)
	viper.SetDefault("research.min_content_chars", 40)
	viper.SetDefault("research.embed_concurrency", 4)
	viper.SetDefault("research.summary_sample_size", 5)
	viper.SetDefault("research.summary_max_tokens", 1024)
	viper.SetDefault("chat.top_k", 5)
	viper.SetDefault("chat.max_history_turns", 12)
	viper.SetDefault("chat.answer_max_tokens", 1024)
	viper.SetDefault("chat.session_store", "inmemory")
	viper.SetDefault("chat.session_ttl", 48*time.Hour)
	viper.SetDefault("scheduler.enabled", false)
	viper.SetDefault("scheduler.interval", time.Hour)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("INSIGHTFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Research.Validate(); err != nil {
		panic(err)
	}
	return &config
}
