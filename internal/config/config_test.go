package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
crawler:
  interval_hours: 6
  concurrency: 5
  max_articles: 15
  max_age_hours: 12
  user_agent: real-agent
analyzer:
  base_url: http://llm.internal/v1
  model: test-model
  max_concurrent: 4
elastic:
  addresses: ["http://es:9200"]
  index: news-test
digest:
  lookback_hours: 24
  timezone: UTC
retention:
  news_days: 30
  log_days: 7
  cleanup_hour: 4
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Crawler.IntervalHours != 6 || cfg.Crawler.Concurrency != 5 {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.Analyzer.Model != "test-model" || cfg.Analyzer.MaxConcurrent != 4 {
		t.Fatalf("expected analyzer overrides to apply: %+v", cfg.Analyzer)
	}
	if cfg.Elastic.Index != "news-test" {
		t.Fatalf("expected elastic index override, got %q", cfg.Elastic.Index)
	}
	if cfg.Digest.Timezone != "UTC" {
		t.Fatalf("expected digest timezone override, got %q", cfg.Digest.Timezone)
	}
	if got := cfg.CrawlInterval(); got != 6*time.Hour {
		t.Fatalf("expected crawl interval 6h, got %v", got)
	}
	if cfg.Crawler.MaxRetries != 3 {
		t.Fatalf("expected default max_retries 3, got %d", cfg.Crawler.MaxRetries)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawler.IntervalHours != 3 {
		t.Fatalf("expected default interval 3h, got %d", cfg.Crawler.IntervalHours)
	}
	if cfg.Retention.NewsDays != 730 || cfg.Retention.LogDays != 365 {
		t.Fatalf("expected retention defaults, got %+v", cfg.Retention)
	}
	if cfg.Digest.Timezone != "Asia/Seoul" || cfg.Digest.LookbackHours != 48 {
		t.Fatalf("expected digest defaults, got %+v", cfg.Digest)
	}
	if cfg.Analyzer.MaxTokens != 800 {
		t.Fatalf("expected analyzer max_tokens default 800, got %d", cfg.Analyzer.MaxTokens)
	}
	if cfg.Crawler.ContentMaxChars != 2000 {
		t.Fatalf("expected content_max_chars default 2000, got %d", cfg.Crawler.ContentMaxChars)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Crawler: CrawlerConfig{
			IntervalHours: 3,
			Concurrency:   2,
			MaxArticles:   10,
		},
		Analyzer:  AnalyzerConfig{MaxConcurrent: 1},
		Elastic:   ElasticConfig{Addresses: []string{"http://localhost:9200"}, Index: "news"},
		Digest:    DigestConfig{LookbackHours: 48, Timezone: "UTC"},
		Retention: RetentionConfig{NewsDays: 730, LogDays: 365, CleanupHour: 2},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid interval",
			cfg: func() Config {
				c := base
				c.Crawler.IntervalHours = 0
				return c
			}(),
			want: "crawler.interval_hours",
		},
		{
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Crawler.Concurrency = 0
				return c
			}(),
			want: "crawler.concurrency",
		},
		{
			name: "missing elastic index",
			cfg: func() Config {
				c := base
				c.Elastic.Index = ""
				return c
			}(),
			want: "elastic.index",
		},
		{
			name: "bad timezone",
			cfg: func() Config {
				c := base
				c.Digest.Timezone = "Not/AZone"
				return c
			}(),
			want: "digest.timezone",
		},
		{
			name: "cleanup hour out of range",
			cfg: func() Config {
				c := base
				c.Retention.CleanupHour = 24
				return c
			}(),
			want: "retention.cleanup_hour",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
