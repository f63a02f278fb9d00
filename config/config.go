package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/knowbot/ai"
	"github.com/poiesic/knowbot/chunker"
	"github.com/poiesic/knowbot/crawler"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvAPIKey         = "KNOWBOT_API_KEY"
	EnvEmbeddingHost  = "KNOWBOT_EMBEDDING_HOST"
	EnvChatHost       = "KNOWBOT_CHAT_HOST"
	EnvEmbeddingModel = "KNOWBOT_EMBEDDING_MODEL"
	EnvChatModel      = "KNOWBOT_CHAT_MODEL"
	EnvDB             = "KNOWBOT_DB"
)

// StorageConfig locates the database.
type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// AIConfig configures the OpenAI-compatible model endpoints.
type AIConfig struct {
	EmbeddingHost  string        `yaml:"embedding_host"`
	ChatHost       string        `yaml:"chat_host"`
	EmbeddingModel string        `yaml:"embedding_model"`
	ChatModel      string        `yaml:"chat_model"`
	APIKey         string        `yaml:"api_key,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// CrawlerConfig configures website crawling.
type CrawlerConfig struct {
	UserAgent       string        `yaml:"user_agent"`
	PageTimeout     time.Duration `yaml:"page_timeout"`
	RobotsTimeout   time.Duration `yaml:"robots_timeout"`
	RequestInterval time.Duration `yaml:"request_interval"`
	MaxPages        int           `yaml:"max_pages"`
	MinContentChars int           `yaml:"min_content_chars"`
}

// ChunkerConfig configures text chunking.
type ChunkerConfig struct {
	TargetTokens int `yaml:"target_tokens"`
	MaxChars     int `yaml:"max_chars"`
	OverlapChars int `yaml:"overlap_chars"`
}

// EmbeddingConfig configures the embedding client and its cache.
type EmbeddingConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	CacheEntries  int64         `yaml:"cache_entries"`
	MaxInputRunes int           `yaml:"max_input_runes"`
}

// AnswerConfig configures answer synthesis.
type AnswerConfig struct {
	TopK            int           `yaml:"top_k"`
	ResponseTTL     time.Duration `yaml:"response_ttl"`
	ResponseEntries int64         `yaml:"response_entries"`
}

// TrainingConfig configures batch training.
type TrainingConfig struct {
	Workers int `yaml:"workers"`
}

// App is the root application configuration.
type App struct {
	Storage   StorageConfig   `yaml:"storage"`
	AI        AIConfig        `yaml:"ai"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Answer    AnswerConfig    `yaml:"answer"`
	Training  TrainingConfig  `yaml:"training"`
}

// Default returns the built-in configuration.
func Default() *App {
	aiDefaults := ai.DefaultConfig()
	crawlerDefaults := crawler.DefaultConfig()
	chunkerDefaults := chunker.DefaultConfig()
	return &App{
		Storage: StorageConfig{Path: "knowbot.db"},
		AI: AIConfig{
			EmbeddingHost:  aiDefaults.EmbeddingHost,
			ChatHost:       aiDefaults.ChatHost,
			EmbeddingModel: aiDefaults.EmbeddingModel,
			ChatModel:      aiDefaults.ChatModel,
			RequestTimeout: aiDefaults.RequestTimeout,
		},
		Crawler: CrawlerConfig{
			UserAgent:       crawlerDefaults.UserAgent,
			PageTimeout:     crawlerDefaults.PageTimeout,
			RobotsTimeout:   crawlerDefaults.RobotsTimeout,
			RequestInterval: crawlerDefaults.RequestInterval,
			MaxPages:        crawlerDefaults.DefaultMaxPages,
			MinContentChars: crawlerDefaults.MinContentChars,
		},
		Chunker: ChunkerConfig{
			TargetTokens: chunkerDefaults.TargetTokens,
			MaxChars:     chunkerDefaults.MaxChars,
			OverlapChars: chunkerDefaults.OverlapChars,
		},
		Embedding: EmbeddingConfig{
			Timeout:       20 * time.Second,
			CacheTTL:      time.Hour,
			CacheEntries:  50_000,
			MaxInputRunes: 8000,
		},
		Answer: AnswerConfig{
			TopK:            5,
			ResponseTTL:     5 * time.Minute,
			ResponseEntries: 10_000,
		},
		Training: TrainingConfig{Workers: 2},
	}
}

// Load builds the configuration from path, the .env file in the working
// directory and the environment. An empty path or a missing file leaves the
// defaults in place; a malformed file is an error.
func Load(path string) (*App, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	// .env never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating directories as needed. The API key is
// never written.
func Save(path string, cfg *App) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out := *cfg
	out.AI.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (a *App) applyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&a.AI.APIKey, EnvAPIKey)
	set(&a.AI.EmbeddingHost, EnvEmbeddingHost)
	set(&a.AI.ChatHost, EnvChatHost)
	set(&a.AI.EmbeddingModel, EnvEmbeddingModel)
	set(&a.AI.ChatModel, EnvChatModel)
	set(&a.Storage.Path, EnvDB)
}

// Validate checks every section and the component configs derived from them.
func (a *App) Validate() error {
	if !a.Storage.InMemory && strings.TrimSpace(a.Storage.Path) == "" {
		return errors.New("config: storage.path is required")
	}
	if err := a.AIConfig().Validate(); err != nil {
		return err
	}
	if err := a.CrawlerConfig().Validate(); err != nil {
		return err
	}
	if err := a.ChunkerConfig().Validate(); err != nil {
		return err
	}
	if a.Embedding.Timeout <= 0 || a.Embedding.CacheTTL <= 0 || a.Embedding.CacheEntries <= 0 {
		return errors.New("config: embedding timeout, cache_ttl and cache_entries must be positive")
	}
	if a.Answer.TopK < 1 || a.Answer.ResponseTTL <= 0 || a.Answer.ResponseEntries <= 0 {
		return errors.New("config: answer top_k, response_ttl and response_entries must be positive")
	}
	if a.Training.Workers < 1 {
		return errors.New("config: training.workers must be at least 1")
	}
	return nil
}

// AIConfig returns the model endpoint settings as an ai.Config.
func (a *App) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(a.AI.EmbeddingHost),
		ai.WithChatHost(a.AI.ChatHost),
		ai.WithEmbeddingModel(a.AI.EmbeddingModel),
		ai.WithChatModel(a.AI.ChatModel),
		ai.WithAPIKey(a.AI.APIKey),
		ai.WithRequestTimeout(a.AI.RequestTimeout),
	)
}

// CrawlerConfig returns the crawl settings as a crawler.Config.
func (a *App) CrawlerConfig() *crawler.Config {
	return crawler.NewConfig(
		crawler.WithUserAgent(a.Crawler.UserAgent),
		crawler.WithPageTimeout(a.Crawler.PageTimeout),
		crawler.WithRobotsTimeout(a.Crawler.RobotsTimeout),
		crawler.WithRequestInterval(a.Crawler.RequestInterval),
		crawler.WithDefaultMaxPages(a.Crawler.MaxPages),
		crawler.WithMinContentChars(a.Crawler.MinContentChars),
	)
}

// ChunkerConfig returns the chunking settings as a chunker.Config.
func (a *App) ChunkerConfig() *chunker.Config {
	return chunker.NewConfig(
		chunker.WithTargetTokens(a.Chunker.TargetTokens),
		chunker.WithMaxChars(a.Chunker.MaxChars),
		chunker.WithOverlapChars(a.Chunker.OverlapChars),
	)
}
