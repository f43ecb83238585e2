package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	LLM    LLMConfig    `yaml:"llm"`
	Data   DataConfig   `yaml:"data"`
	HTTP   HTTPConfig   `yaml:"http,omitempty"`
	Prompt PromptConfig `yaml:"prompt"`
	Search SearchConfig `yaml:"search,omitempty"`
	Budget BudgetConfig `yaml:"budget,omitempty"`
	Usage  UsageConfig  `yaml:"usage,omitempty"`
}

// LLMConfig holds chat and embedding gateway configuration
type LLMConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url,omitempty"`
	ChatModel      string  `yaml:"chat_model,omitempty"`
	EmbeddingModel string  `yaml:"embedding_model,omitempty"`
	TimeoutSecs    int     `yaml:"timeout_secs,omitempty"`
	ChatTemp       float64 `yaml:"chat_temperature,omitempty"`
	ClassifierTemp float64 `yaml:"classifier_temperature,omitempty"`
}

// DataConfig holds on-disk data locations
type DataConfig struct {
	// Dir is the root data directory. Index artifacts, uploaded files
	// and logs live under it. Defaults to ~/.mealqa/data.
	Dir string `yaml:"dir,omitempty"`
}

// HTTPConfig holds the API server configuration
type HTTPConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// PromptConfig holds the instruction texts used by the pipeline
type PromptConfig struct {
	Base               string `yaml:"base"`
	FollowUp           string `yaml:"follow_up,omitempty"`
	IntentClassifier   string `yaml:"intent_classifier,omitempty"`
	CategoryClassifier string `yaml:"category_classifier,omitempty"`
}

// SearchConfig holds retrieval parameters
type SearchConfig struct {
	TopK                int     `yaml:"top_k,omitempty"`
	SimilarityThreshold float64 `yaml:"similarity_threshold,omitempty"`
	FollowUpThreshold   float64 `yaml:"follow_up_threshold,omitempty"`
	FollowUpMaxChunks   int     `yaml:"follow_up_max_chunks,omitempty"`
}

// BudgetConfig holds token budgets for prompt assembly
type BudgetConfig struct {
	TokenLimit         int `yaml:"token_limit,omitempty"`
	HistoryTokenBudget int `yaml:"history_token_budget,omitempty"`
}

// UsageConfig controls which short-circuit answers count toward the
// caller's usage limit. Greetings and out-of-scope redirects never count.
type UsageConfig struct {
	FollowUpCounts     *bool `yaml:"follow_up_counts,omitempty"`
	BestCategoryCounts *bool `yaml:"best_category_counts,omitempty"`
}

// CountsForFollowUp reports whether a follow-up answer consumes a usage
// limit unit. An unset toggle means the default, true.
func (u UsageConfig) CountsForFollowUp() bool {
	return u.FollowUpCounts == nil || *u.FollowUpCounts
}

// CountsForBestCategory reports whether the best-category short circuit
// consumes a usage limit unit. An unset toggle means the default, false.
func (u UsageConfig) CountsForBestCategory() bool {
	return u.BestCategoryCounts != nil && *u.BestCategoryCounts
}

// Load loads configuration from the default config file
// Default location: ~/.mealqa/config/mealqa.yaml
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFromFile(path)
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".mealqa", "config", "mealqa.yaml"), nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			defaultPath, _ := DefaultPath()
			return nil, &ConfigNotFoundError{
				RequestedPath: path,
				DefaultPath:   defaultPath,
			}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ConfigNotFoundError is returned when config file is not found
type ConfigNotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s\n\nDefault location: %s\n\nYou can:\n"+
		"  1. Run 'mealqa init' to create a config file\n"+
		"  2. Create the config file at the default location\n"+
		"  3. Specify a custom path with -config flag",
		e.RequestedPath, e.DefaultPath)
}

// IsConfigNotFound checks if error is config not found
func IsConfigNotFound(err error) bool {
	_, ok := err.(*ConfigNotFoundError)
	return ok
}

// expandPath expands ~ and $HOME to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ApplyDefaults sets default values for missing configuration
func (c *Config) ApplyDefaults() {
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.ChatModel == "" {
		c.LLM.ChatModel = "gpt-4o-mini"
	}
	if c.LLM.EmbeddingModel == "" {
		c.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if c.LLM.TimeoutSecs == 0 {
		c.LLM.TimeoutSecs = 60
	}
	if c.LLM.ChatTemp == 0 {
		c.LLM.ChatTemp = 0.7
	}
	// Classifier calls want near-deterministic single-label output.
	if c.LLM.ClassifierTemp == 0 {
		c.LLM.ClassifierTemp = 0.0
	}

	if c.Data.Dir == "" {
		c.Data.Dir = "~/.mealqa/data"
	}
	c.Data.Dir = expandPath(c.Data.Dir)

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}

	if c.Prompt.FollowUp == "" {
		c.Prompt.FollowUp = defaultFollowUpPrompt
	}
	if c.Prompt.IntentClassifier == "" {
		c.Prompt.IntentClassifier = defaultIntentPrompt
	}
	if c.Prompt.CategoryClassifier == "" {
		c.Prompt.CategoryClassifier = defaultCategoryPrompt
	}

	if c.Search.TopK == 0 {
		c.Search.TopK = 5
	}
	if c.Search.SimilarityThreshold == 0 {
		c.Search.SimilarityThreshold = 0.3
	}
	if c.Search.FollowUpThreshold == 0 {
		c.Search.FollowUpThreshold = 0.5
	}
	if c.Search.FollowUpMaxChunks == 0 {
		c.Search.FollowUpMaxChunks = 3
	}

	if c.Budget.TokenLimit == 0 {
		c.Budget.TokenLimit = 6000
	}
	if c.Budget.HistoryTokenBudget == 0 {
		c.Budget.HistoryTokenBudget = 600
	}

	if c.Usage.FollowUpCounts == nil {
		c.Usage.FollowUpCounts = boolPtr(true)
	}
	if c.Usage.BestCategoryCounts == nil {
		c.Usage.BestCategoryCounts = boolPtr(false)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if c.Prompt.Base == "" {
		return fmt.Errorf("prompt.base is required")
	}
	if c.Search.TopK < 0 {
		return fmt.Errorf("search.top_k must be positive, got: %d", c.Search.TopK)
	}
	if c.Search.SimilarityThreshold < -1 || c.Search.SimilarityThreshold > 1 {
		return fmt.Errorf("search.similarity_threshold must be in [-1, 1], got: %v", c.Search.SimilarityThreshold)
	}
	if c.Budget.TokenLimit < 0 {
		return fmt.Errorf("budget.token_limit must be positive, got: %d", c.Budget.TokenLimit)
	}
	return nil
}

// SaveToFile saves the configuration to a specific file
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func boolPtr(v bool) *bool { return &v }

const defaultIntentPrompt = `You classify a user message for a meal optimization assistant.
Reply with exactly one character and nothing else:
0 = a specific meal or beverage the user wants optimized
1 = a greeting or small talk
2 = off-topic, not about food or drink
3 = a follow-up question about the assistant's previous answer`

const defaultCategoryPrompt = `You rate how blood-sugar friendly the described meal is.
Reply with exactly one character and nothing else:
A = very problematic, needs major changes
B = problematic, needs changes
C = mostly fine, minor tweaks possible
D = already excellent, nothing to improve`

const defaultFollowUpPrompt = `The user is asking a follow-up question about your previous answer.
Answer using the conversation so far and the reference material below.
Stay within the scope of meal and beverage optimization for stable blood sugar.`

const defaultConfigTemplate = `# mealqa Configuration
#
# Copy and edit this file for your environment.
# Default location: $HOME/.mealqa/config/mealqa.yaml

llm:
  api_key: your-api-key
  base_url: https://api.openai.com/v1
  chat_model: gpt-4o-mini
  embedding_model: text-embedding-3-small
  chat_temperature: 0.7

data:
  dir: ~/.mealqa/data

http:
  addr: ":8080"

prompt:
  base: |
    You are a nutrition assistant that optimizes meals for stable blood
    sugar. Use only the reference sections below when giving advice.

search:
  top_k: 5
  similarity_threshold: 0.3
  follow_up_threshold: 0.5
  follow_up_max_chunks: 3

budget:
  token_limit: 6000
  history_token_budget: 600

usage:
  follow_up_counts: true
  best_category_counts: false
`

// WriteDefaultTemplate creates a default configuration file if it does not exist.
// It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}
