package ai

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.EmbeddingHost != "http://localhost:11434/v1" {
		t.Errorf("EmbeddingHost = %q", cfg.EmbeddingHost)
	}
	if cfg.ChatHost != cfg.EmbeddingHost {
		t.Errorf("ChatHost = %q, want same as embedding host", cfg.ChatHost)
	}
	if cfg.EmbeddingDim != 768 {
		t.Errorf("EmbeddingDim = %d", cfg.EmbeddingDim)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig(
		WithHost("http://ai.internal:9100"),
		WithEmbeddingModel("text-embedding-3-small"),
		WithChatModel("gpt-4o-mini"),
		WithToken("sk-test"),
		WithEmbeddingDim(1536),
	)

	if cfg.EmbeddingHost != "http://ai.internal:9100" {
		t.Errorf("EmbeddingHost = %q", cfg.EmbeddingHost)
	}
	if cfg.ChatModel != "gpt-4o-mini" || cfg.Token != "sk-test" || cfg.EmbeddingDim != 1536 {
		t.Errorf("options not applied: %+v", cfg)
	}
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"http://localhost:11434", "http://localhost:11434/v1"},
		{"http://localhost:11434/", "http://localhost:11434/v1"},
		{"http://localhost:11434/v1", "http://localhost:11434/v1"},
	}
	for _, tt := range tests {
		cfg := NewConfig(WithHost(tt.host))
		cfg.Normalize()
		if cfg.EmbeddingHost != tt.want || cfg.ChatHost != tt.want {
			t.Errorf("Normalize(%q) = %q / %q, want %q", tt.host, cfg.EmbeddingHost, cfg.ChatHost, tt.want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty embedding host", func(c *Config) { c.EmbeddingHost = "" }},
		{"empty chat host", func(c *Config) { c.ChatHost = "" }},
		{"empty embedding model", func(c *Config) { c.EmbeddingModel = "" }},
		{"empty chat model", func(c *Config) { c.ChatModel = "" }},
		{"empty token", func(c *Config) { c.Token = "" }},
		{"zero dim", func(c *Config) { c.EmbeddingDim = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestConfig_Validate_EmptyToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token = ""
	if err := cfg.Validate(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Validate() = %v, want ErrMissingCredentials", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{fmt.Errorf("API returned unexpected status code: 401"), ErrMissingCredentials},
		{fmt.Errorf("invalid api key provided"), ErrMissingCredentials},
		{fmt.Errorf("API returned unexpected status code: 429 insufficient quota"), ErrQuotaExceeded},
		{fmt.Errorf("rate limit reached for requests"), ErrQuotaExceeded},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); !errors.Is(got, tt.want) {
			t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}

	generic := fmt.Errorf("connection refused")
	if got := ClassifyError(generic); got != generic {
		t.Errorf("generic errors must pass through unchanged, got %v", got)
	}
	if ClassifyError(nil) != nil {
		t.Error("ClassifyError(nil) must be nil")
	}
}
