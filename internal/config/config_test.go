package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mealqa.yaml")

	data := `llm:
  api_key: test-key
  chat_model: gpt-4o
prompt:
  base: "You are a nutrition assistant."
search:
  top_k: 7
  similarity_threshold: 0.4
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.LLM.ChatModel != "gpt-4o" {
		t.Errorf("ChatModel = %q, want %q", cfg.LLM.ChatModel, "gpt-4o")
	}
	if cfg.Search.TopK != 7 {
		t.Errorf("TopK = %d, want 7", cfg.Search.TopK)
	}
	// Defaults fill in everything the file omits.
	if cfg.LLM.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("EmbeddingModel = %q, want default", cfg.LLM.EmbeddingModel)
	}
	if cfg.Budget.HistoryTokenBudget != 600 {
		t.Errorf("HistoryTokenBudget = %d, want 600", cfg.Budget.HistoryTokenBudget)
	}
	if cfg.Usage.FollowUpCounts == nil || !*cfg.Usage.FollowUpCounts {
		t.Error("FollowUpCounts default should be true")
	}
	if cfg.Usage.BestCategoryCounts == nil || *cfg.Usage.BestCategoryCounts {
		t.Error("BestCategoryCounts default should be false")
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !IsConfigNotFound(err) {
		t.Errorf("expected ConfigNotFoundError, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }, true},
		{"missing base prompt", func(c *Config) { c.Prompt.Base = "" }, true},
		{"threshold out of range", func(c *Config) { c.Search.SimilarityThreshold = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestManagerUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mealqa.yaml")
	mgr := NewManager(testConfig(), path)

	if err := mgr.Update(func(c *Config) { c.Search.TopK = 9 }); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := mgr.Snapshot().Search.TopK; got != 9 {
		t.Errorf("TopK after update = %d, want 9", got)
	}

	// Updates are written through to disk.
	reloaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("reload after update: %v", err)
	}
	if reloaded.Search.TopK != 9 {
		t.Errorf("persisted TopK = %d, want 9", reloaded.Search.TopK)
	}
}

func TestManagerUpdateRejectsInvalid(t *testing.T) {
	mgr := NewManager(testConfig(), "")

	err := mgr.Update(func(c *Config) { c.LLM.APIKey = "" })
	if err == nil {
		t.Fatal("expected invalid update to be rejected")
	}
	if mgr.Snapshot().LLM.APIKey == "" {
		t.Error("rejected update must not be applied")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	mgr := NewManager(testConfig(), "")
	snap := mgr.Snapshot()

	if err := mgr.Update(func(c *Config) { c.Search.TopK = 42 }); err != nil {
		t.Fatal(err)
	}
	if snap.Search.TopK == 42 {
		t.Error("snapshot must not observe later updates")
	}
}

func TestUsageTogglesNilSafe(t *testing.T) {
	// Zero-value toggles fall back to the defaults instead of panicking.
	var usage UsageConfig
	if !usage.CountsForFollowUp() {
		t.Error("unset FollowUpCounts should default to true")
	}
	if usage.CountsForBestCategory() {
		t.Error("unset BestCategoryCounts should default to false")
	}

	off, on := false, true
	usage = UsageConfig{FollowUpCounts: &off, BestCategoryCounts: &on}
	if usage.CountsForFollowUp() {
		t.Error("explicit false FollowUpCounts ignored")
	}
	if !usage.CountsForBestCategory() {
		t.Error("explicit true BestCategoryCounts ignored")
	}
}

func testConfig() *Config {
	cfg := &Config{}
	cfg.LLM.APIKey = "test-key"
	cfg.Prompt.Base = "base prompt"
	cfg.ApplyDefaults()
	return cfg
}
