// Package openai analyzes articles through an OpenAI-compatible
// chat-completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/stocknews/internal/news"
)

// Config controls the chat-completions client.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	MaxTokens     int
	Timeout       time.Duration
	MaxConcurrent int
}

// Client implements news.Analyzer. In-flight model calls are bounded by a
// semaphore independent of the crawl worker pool; the model quota is the
// scarcest resource in the pipeline.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sem        chan struct{}
	logger     *zap.Logger
}

var _ news.Analyzer = (*Client)(nil)

// New builds a Client from configuration.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 800
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sem:        make(chan struct{}, cfg.MaxConcurrent),
		logger:     logger,
	}
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze summarizes and scores an article. The returned Analysis is always
// complete: when the model is unreachable or its output fails validation the
// heuristic fallback is used and the Fallback flag is set.
func (c *Client) Analyze(ctx context.Context, article news.RawArticle) (news.Analysis, error) {
	if c.cfg.APIKey == "" {
		c.logger.Debug("analyzer has no api key, using fallback",
			zap.String("ticker", article.Ticker))
		return Fallback(article.Title, article.Content), nil
	}

	if err := c.acquire(ctx); err != nil {
		return news.Analysis{}, err
	}
	defer func() { <-c.sem }()

	content, err := c.complete(ctx, buildPrompt(article))
	if err != nil {
		c.logger.Warn("model call failed, using fallback",
			zap.String("ticker", article.Ticker),
			zap.String("url", article.URL),
			zap.Error(err),
		)
		return Fallback(article.Title, article.Content), nil
	}

	analysis, err := parseModelOutput(content)
	if err != nil {
		c.logger.Warn("model output rejected, using fallback",
			zap.String("ticker", article.Ticker),
			zap.Error(err),
		)
		return Fallback(article.Title, article.Content), nil
	}
	return analysis, nil
}

func (c *Client) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	default:
	}
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("analyzer slot wait: %w", ctx.Err())
	}
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxCompletionTokens: c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat completion %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
