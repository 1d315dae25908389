package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	defaultRunHour  = 8
	configPathEnv   = "INTEL_DIGEST_CONFIG"
	databaseDSNEnv  = "DATABASE_DSN"
	llmAPIKeyEnv    = "LLM_API_KEY"
	llmModelEnv     = "LLM_MODEL"
	llmEndpointEnv  = "LLM_ENDPOINT"
	telegramToken   = "TELEGRAM_BOT_TOKEN"
	telegramChatID  = "TELEGRAM_CHAT_ID"
	logLevelEnv     = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Index         IndexConfig        `yaml:"index"`
	Dedup         DedupConfig        `yaml:"dedup"`
	LLM           LLMConfig          `yaml:"llm"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Logging       LoggingConfig      `yaml:"logging"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Personas      []PersonaConfig    `yaml:"personas"`
	Pipelines     []PipelineConfig   `yaml:"pipelines"`
}

// DatabaseConfig points at the dedup store: a SQLite file path or a postgres:// URL.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// IndexConfig describes the similarity index and the embedder feeding it.
type IndexConfig struct {
	Path       string `yaml:"path"`
	Dimensions int    `yaml:"dimensions"`
	// Embedder is "hash" (default) or "http".
	Embedder          string `yaml:"embedder"`
	EmbeddingEndpoint string `yaml:"embeddingEndpoint"`
	EmbeddingModel    string `yaml:"embeddingModel"`
	EmbeddingAPIKey   string `yaml:"embeddingApiKey"`
}

// DedupConfig tunes duplicate suppression and retention.
type DedupConfig struct {
	WindowHours         int     `yaml:"windowHours"`
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	RetentionDays       int     `yaml:"retentionDays"`
	// Scope is "global" or "persona".
	Scope string `yaml:"scope"`
}

// Window returns the retention window as a duration.
func (d DedupConfig) Window() time.Duration {
	return time.Duration(d.WindowHours) * time.Hour
}

// LLMConfig defines how to contact the text-generation API.
type LLMConfig struct {
	Endpoint       string   `yaml:"endpoint"`
	Model          string   `yaml:"model"`
	APIKey         string   `yaml:"apiKey"`
	SystemPrompt   string   `yaml:"systemPrompt"`
	TimeoutSeconds int      `yaml:"timeoutSeconds"`
	MaxAttempts    int      `yaml:"retryAttempts"`
	Temperature    *float64 `yaml:"temperature"`
}

// FetchConfig bounds source fan-out.
type FetchConfig struct {
	Concurrency           int    `yaml:"concurrency"`
	RequestTimeoutSeconds int    `yaml:"requestTimeoutSeconds"`
	UserAgent             string `yaml:"userAgent"`
}

// RequestTimeout returns the per-request timeout for source HTTP calls.
func (f FetchConfig) RequestTimeout() time.Duration {
	return time.Duration(f.RequestTimeoutSeconds) * time.Second
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SchedulerConfig defines when the daily run fires.
type SchedulerConfig struct {
	Hour     *int           `yaml:"hour"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// RunHour returns the configured hour of day, 8 when unset.
func (s SchedulerConfig) RunHour() int {
	if s.Hour == nil {
		return defaultRunHour
	}
	return *s.Hour
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	File     FileConfig     `yaml:"file"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// FileConfig controls the on-disk digest output.
type FileConfig struct {
	OutputDir string `yaml:"outputDir"`
	Disabled  bool   `yaml:"disabled"`
}

// Load reads .env, then YAML configuration (if present), then applies environment
// overrides. path falls back to $INTEL_DIGEST_CONFIG when empty.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(telegramToken); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatID); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(llmEndpointEnv); v != "" {
		c.LLM.Endpoint = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Index.Path != "" {
		base.Index.Path = override.Index.Path
	}
	if override.Index.Dimensions > 0 {
		base.Index.Dimensions = override.Index.Dimensions
	}
	if override.Index.Embedder != "" {
		base.Index.Embedder = override.Index.Embedder
	}
	if override.Index.EmbeddingEndpoint != "" {
		base.Index.EmbeddingEndpoint = override.Index.EmbeddingEndpoint
	}
	if override.Index.EmbeddingModel != "" {
		base.Index.EmbeddingModel = override.Index.EmbeddingModel
	}
	if override.Index.EmbeddingAPIKey != "" {
		base.Index.EmbeddingAPIKey = override.Index.EmbeddingAPIKey
	}

	if override.Dedup.WindowHours > 0 {
		base.Dedup.WindowHours = override.Dedup.WindowHours
	}
	if override.Dedup.SimilarityThreshold > 0 {
		base.Dedup.SimilarityThreshold = override.Dedup.SimilarityThreshold
	}
	if override.Dedup.RetentionDays > 0 {
		base.Dedup.RetentionDays = override.Dedup.RetentionDays
	}
	if override.Dedup.Scope != "" {
		base.Dedup.Scope = override.Dedup.Scope
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.SystemPrompt != "" {
		base.LLM.SystemPrompt = override.LLM.SystemPrompt
	}
	if override.LLM.TimeoutSeconds > 0 {
		base.LLM.TimeoutSeconds = override.LLM.TimeoutSeconds
	}
	if override.LLM.MaxAttempts > 0 {
		base.LLM.MaxAttempts = override.LLM.MaxAttempts
	}
	if override.LLM.Temperature != nil {
		base.LLM.Temperature = override.LLM.Temperature
	}

	if override.Fetch.Concurrency > 0 {
		base.Fetch.Concurrency = override.Fetch.Concurrency
	}
	if override.Fetch.RequestTimeoutSeconds > 0 {
		base.Fetch.RequestTimeoutSeconds = override.Fetch.RequestTimeoutSeconds
	}
	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Scheduler.Hour != nil {
		base.Scheduler.Hour = override.Scheduler.Hour
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.File.OutputDir != "" {
		base.Notifications.File.OutputDir = override.Notifications.File.OutputDir
	}
	if override.Notifications.File.Disabled {
		base.Notifications.File.Disabled = true
	}

	if len(override.Personas) > 0 {
		base.Personas = override.Personas
	}

	if len(override.Pipelines) > 0 {
		base.Pipelines = override.Pipelines
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	temperature := 0.1
	return Config{
		Database: DatabaseConfig{DSN: "data/digest.db"},
		Index: IndexConfig{
			Path:       "data/digest.hnsw",
			Dimensions: 384,
			Embedder:   "hash",
		},
		Dedup: DedupConfig{
			WindowHours:         48,
			SimilarityThreshold: 0.85,
			RetentionDays:       30,
			Scope:               "global",
		},
		LLM: LLMConfig{
			Endpoint:       "http://localhost:11434/v1",
			Model:          "llama3.1",
			TimeoutSeconds: 120,
			MaxAttempts:    3,
			Temperature:    &temperature,
		},
		Fetch: FetchConfig{
			Concurrency:           4,
			RequestTimeoutSeconds: 30,
			UserAgent:             "IntelDigest/1.0",
		},
		Logging:   LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{Timezone: defaultTimezone, location: tz},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
			File:     FileConfig{OutputDir: "digests"},
		},
		Pipelines: defaultPipelines(),
	}
}

func defaultPipelines() []PipelineConfig {
	minGenAI, minIdeas := 5.0, 3.0
	return []PipelineConfig{
		{
			Name:                 "genai_news",
			Persona:              "GENAI_NEWS",
			FetchHours:           24,
			Keywords:             []string{"llm", "transformer", "inference", "quantization", "agents", "ollama", "faiss", "gpu"},
			MinEngagement:        &minGenAI,
			TopK:                 10,
			WhyItMattersField:    FieldList{Names: []string{"why_it_matters"}},
			WhyItMattersFallback: "Relevant update in the GenAI ecosystem.",
			DefaultAudience:      "developer",
			Sources: []SourceConfig{
				{Type: "reddit", Subreddit: "MachineLearning"},
				{Type: "reddit", Subreddit: "LocalLLaMA"},
				{Type: "rss", Name: "genai_rss", Feeds: []string{
					"https://www.lesswrong.com/feed.xml",
					"https://www.semianalysis.com/feed",
				}},
			},
		},
		{
			Name:                 "product_ideas",
			Persona:              "PRODUCT_IDEAS",
			FetchHours:           24,
			Keywords:             []string{"launched", "built", "mvp", "experiment", "users", "revenue", "problem", "pain"},
			MinEngagement:        &minIdeas,
			TopK:                 10,
			WhyItMattersField:    FieldList{Names: []string{"problem_statement", "solution_summary"}, List: true},
			WhyItMattersFallback: "Potential product opportunity or unmet need.",
			DefaultAudience:      "founder",
			Sources: []SourceConfig{
				{Type: "producthunt"},
				{Type: "reddit", Subreddit: "SideProject"},
			},
		},
	}
}
