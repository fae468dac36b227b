package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AppName names the per-user config directory.
const AppName = "medrag"

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// EmbedderConfig selects and configures the vectorizer.
type EmbedderConfig struct {
	Type        string `yaml:"type"`
	MaxFeatures int    `yaml:"max_features"`
}

// RetrievalConfig configures ranking.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// LLMConfig holds configuration for the OpenAI-compatible chat endpoint.
// The API key itself is read from the environment variable named by APIKeyEnv.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// WebSearchConfig configures the DuckDuckGo client.
type WebSearchConfig struct {
	BaseURL     string `yaml:"base_url"`
	MaxResults  int    `yaml:"max_results"`
	Region      string `yaml:"region"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// AssistantConfig holds the initial chat settings.
type AssistantConfig struct {
	Mode   string `yaml:"mode"`
	UseRAG bool   `yaml:"use_rag"`
	UseWeb bool   `yaml:"use_web"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	OutputPath string `yaml:"output_path"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	LLM        LLMConfig        `yaml:"llm"`
	WebSearch  WebSearchConfig  `yaml:"web_search"`
	Assistant  AssistantConfig  `yaml:"assistant"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/medrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/medrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Chunker.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize))
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.ChunkSize {
		errs = append(errs, fmt.Errorf("chunker.overlap must be in [0, chunk_size), got %d", c.Chunker.Overlap))
	}
	if c.Embedder.Type != "tfidf" {
		errs = append(errs, fmt.Errorf("embedder.type %q is not supported", c.Embedder.Type))
	}
	if c.Embedder.MaxFeatures <= 0 {
		errs = append(errs, fmt.Errorf("embedder.max_features must be positive, got %d", c.Embedder.MaxFeatures))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		errs = append(errs, fmt.Errorf("llm.temperature must be in [0, 1], got %v", c.LLM.Temperature))
	}
	if c.Summarizer.MaxSentences < 0 {
		errs = append(errs, fmt.Errorf("summarizer.max_sentences must not be negative, got %d", c.Summarizer.MaxSentences))
	}
	if c.Assistant.Mode != "concise" && c.Assistant.Mode != "detailed" {
		errs = append(errs, fmt.Errorf("assistant.mode must be concise or detailed, got %q", c.Assistant.Mode))
	}
	return errors.Join(errs...)
}

// UserDir returns ~/.config/medrag.
func UserDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName), nil
}

func defaultUserConfigPath() (string, error) {
	dir, err := UserDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		Chunker:    ChunkerConfig{ChunkSize: 1200, Overlap: 200},
		Embedder:   EmbedderConfig{Type: "tfidf", MaxFeatures: 8192},
		Retrieval:  RetrievalConfig{TopK: 5},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 3},
		LLM: LLMConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			APIKeyEnv:   "GROQ_API_KEY",
			Model:       "llama-3.1-8b-instant",
			Temperature: 0.2,
			TimeoutSecs: 30,
		},
		WebSearch: WebSearchConfig{
			BaseURL:     "https://html.duckduckgo.com/html/",
			MaxResults:  3,
			Region:      "wt-wt",
			TimeoutSecs: 10,
		},
		Assistant: AssistantConfig{Mode: "concise", UseRAG: true, UseWeb: true},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = def.Summarizer.Type
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = def.LLM.BaseURL
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = def.LLM.APIKeyEnv
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.LLM.TimeoutSecs <= 0 {
		cfg.LLM.TimeoutSecs = def.LLM.TimeoutSecs
	}
	if cfg.WebSearch.BaseURL == "" {
		cfg.WebSearch.BaseURL = def.WebSearch.BaseURL
	}
	if cfg.WebSearch.MaxResults <= 0 {
		cfg.WebSearch.MaxResults = def.WebSearch.MaxResults
	}
	if cfg.WebSearch.TimeoutSecs <= 0 {
		cfg.WebSearch.TimeoutSecs = def.WebSearch.TimeoutSecs
	}
	if cfg.Assistant.Mode == "" {
		cfg.Assistant.Mode = def.Assistant.Mode
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}
