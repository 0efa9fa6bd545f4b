// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer"`
	Elastic   ElasticConfig   `mapstructure:"elastic"`
	Database  DatabaseConfig  `mapstructure:"database"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Digest    DigestConfig    `mapstructure:"digest"`
	Retention RetentionConfig `mapstructure:"retention"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs the fetch pipeline.
type CrawlerConfig struct {
	IntervalHours     int     `mapstructure:"interval_hours"`
	Concurrency       int     `mapstructure:"concurrency"`
	MaxArticles       int     `mapstructure:"max_articles"`
	MaxAgeHours       int     `mapstructure:"max_age_hours"`
	UserAgent         string  `mapstructure:"user_agent"`
	NavTimeoutSec     int     `mapstructure:"nav_timeout_seconds"`
	MaxParallelPages  int     `mapstructure:"max_parallel_pages"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	MaxRetries        int     `mapstructure:"max_retries"`
	RetryDelaySec     int     `mapstructure:"retry_delay_seconds"`
	ContentMaxChars   int     `mapstructure:"content_max_chars"`
}

// AnalyzerConfig configures the LLM chat-completions client.
type AnalyzerConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxConcurrent  int    `mapstructure:"max_concurrent"`
}

// ElasticConfig controls access to the search index.
type ElasticConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// DatabaseConfig controls access to the relational database.
type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_minutes"`
}

// SMTPConfig holds digest email delivery settings.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

// DigestConfig governs the hourly digest job.
type DigestConfig struct {
	LookbackHours int    `mapstructure:"lookback_hours"`
	Timezone      string `mapstructure:"timezone"`
}

// RetentionConfig governs the daily cleanup job.
type RetentionConfig struct {
	NewsDays    int `mapstructure:"news_days"`
	LogDays     int `mapstructure:"log_days"`
	CleanupHour int `mapstructure:"cleanup_hour"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STOCKNEWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.interval_hours", 3)
	v.SetDefault("crawler.concurrency", 3)
	v.SetDefault("crawler.max_articles", 10)
	v.SetDefault("crawler.max_age_hours", 24)
	v.SetDefault("crawler.user_agent", "stocknews-bot/0.1")
	v.SetDefault("crawler.nav_timeout_seconds", 30)
	v.SetDefault("crawler.max_parallel_pages", 2)
	v.SetDefault("crawler.requests_per_second", 1.0)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.retry_delay_seconds", 5)
	v.SetDefault("crawler.content_max_chars", 2000)
	v.SetDefault("analyzer.base_url", "https://api.openai.com/v1")
	v.SetDefault("analyzer.model", "gpt-4o-mini")
	v.SetDefault("analyzer.max_tokens", 800)
	v.SetDefault("analyzer.timeout_seconds", 60)
	v.SetDefault("analyzer.max_concurrent", 2)
	v.SetDefault("elastic.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elastic.index", "stock-news")
	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from_name", "Stock News Digest")
	v.SetDefault("digest.lookback_hours", 48)
	v.SetDefault("digest.timezone", "Asia/Seoul")
	v.SetDefault("retention.news_days", 730)
	v.SetDefault("retention.log_days", 365)
	v.SetDefault("retention.cleanup_hour", 2)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.IntervalHours <= 0 {
		return fmt.Errorf("crawler.interval_hours must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxArticles <= 0 {
		return fmt.Errorf("crawler.max_articles must be > 0")
	}
	if c.Analyzer.MaxConcurrent <= 0 {
		return fmt.Errorf("analyzer.max_concurrent must be > 0")
	}
	if len(c.Elastic.Addresses) == 0 {
		return fmt.Errorf("elastic.addresses must not be empty")
	}
	if c.Elastic.Index == "" {
		return fmt.Errorf("elastic.index must be set")
	}
	if c.Digest.LookbackHours <= 0 {
		return fmt.Errorf("digest.lookback_hours must be > 0")
	}
	if _, err := time.LoadLocation(c.Digest.Timezone); err != nil {
		return fmt.Errorf("digest.timezone invalid: %w", err)
	}
	if c.Retention.NewsDays <= 0 || c.Retention.LogDays <= 0 {
		return fmt.Errorf("retention.news_days and retention.log_days must be > 0")
	}
	if c.Retention.CleanupHour < 0 || c.Retention.CleanupHour > 23 {
		return fmt.Errorf("retention.cleanup_hour must be in [0,23]")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// CrawlInterval returns the crawl cadence as a duration.
func (c Config) CrawlInterval() time.Duration {
	return time.Duration(c.Crawler.IntervalHours) * time.Hour
}

// NavTimeout returns the per-page navigation budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Crawler.NavTimeoutSec) * time.Second
}

// RetryDelay returns the base delay between fetch attempts.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Crawler.RetryDelaySec) * time.Second
}

// AnalyzerTimeout returns the per-request LLM budget.
func (c Config) AnalyzerTimeout() time.Duration {
	return time.Duration(c.Analyzer.TimeoutSeconds) * time.Second
}

// DigestLocation resolves the reference timezone. Validate has already
// checked the name, so errors here only occur for zero-value configs.
func (c Config) DigestLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Digest.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load digest timezone: %w", err)
	}
	return loc, nil
}
