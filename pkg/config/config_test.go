package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNormalizeAppliesDefaults(t *testing.T) {
	cfg := Normalize(Config{
		Model:           "  gpt-4o-mini ",
		CompletionCount: -1,
		MaxToolRounds:   0,
	})
	if cfg.Model != "gpt-4o-mini" {
		t.Fatalf("expected trimmed model, got %q", cfg.Model)
	}
	if cfg.CompletionCount != 1 || cfg.MaxToolRounds != 1 {
		t.Fatalf("unexpected defaults: count=%d rounds=%d", cfg.CompletionCount, cfg.MaxToolRounds)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("expected 1s poll interval, got %s", cfg.PollInterval)
	}
	if cfg.ConnectTimeout <= 0 {
		t.Fatal("expected a bounded connect timeout")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr bool
	}{
		{
			name: "yaml",
			file: "assistant.yaml",
			content: "model: gpt-4o\nmax_tokens: 256\nmax_tool_rounds: 2\npoll_interval: 250ms\n" +
				"library_fixture: ./library.yaml\n",
		},
		{
			name: "toml",
			file: "assistant.toml",
			content: "model = \"gpt-4o\"\nmax_tokens = 256\nmax_tool_rounds = 2\npoll_interval = \"250ms\"\n" +
				"library_fixture = \"./library.yaml\"\n",
		},
		{
			name:    "unsupported extension",
			file:    "assistant.ini",
			content: "model=gpt-4o\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}

			cfg, err := LoadFile(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFile returned error: %v", err)
			}
			if cfg.Model != "gpt-4o" || cfg.MaxTokens != 256 || cfg.MaxToolRounds != 2 {
				t.Fatalf("unexpected config: %+v", cfg)
			}
			if cfg.PollInterval != 250*time.Millisecond {
				t.Fatalf("expected 250ms poll interval, got %s", cfg.PollInterval)
			}
			if cfg.LibraryFixture != "./library.yaml" {
				t.Fatalf("unexpected fixture: %q", cfg.LibraryFixture)
			}
			if cfg.Temperature != 1.0 {
				t.Fatalf("expected default temperature to survive, got %v", cfg.Temperature)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyEnvOverlaysNonEmptyValues(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY": " sk-test ",
		"OPENAI_MODEL":   "gpt-4o-mini",
	}
	cfg := DefaultConfig()
	cfg.BaseURL = "http://localhost:8080/v1"

	cfg = applyEnv(cfg, func(key string) string { return env[key] })
	if cfg.APIKey != "sk-test" {
		t.Fatalf("expected api key from env, got %q", cfg.APIKey)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Fatalf("expected model from env, got %q", cfg.Model)
	}
	if cfg.BaseURL != "http://localhost:8080/v1" {
		t.Fatalf("expected base url to be kept, got %q", cfg.BaseURL)
	}
}
