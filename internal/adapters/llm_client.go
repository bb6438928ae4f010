package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LLMProvider identifies the LLM backend.
type LLMProvider string

const (
	LLMProviderOpenAI    LLMProvider = "openai"
	LLMProviderAnthropic LLMProvider = "anthropic"
)

// LLMClientConfig holds provider-specific settings for llmClient.
type LLMClientConfig struct {
	Provider    LLMProvider
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func defaultLLMClientConfig() LLMClientConfig {
	return LLMClientConfig{
		Provider:    LLMProviderOpenAI,
		Model:       "gpt-4o-mini",
		MaxTokens:   512,
		Temperature: 0.2,
		Timeout:     30 * time.Second,
	}
}

// llmClient is a lightweight, provider-agnostic LLM HTTP client shared by
// the Suggester and Analyzer adapters.
type llmClient struct {
	cfg    LLMClientConfig
	http   *http.Client
	logger zerolog.Logger
}

// newLLMClient creates a new LLM client from the given config.
func newLLMClient(cfg LLMClientConfig, logger zerolog.Logger) *llmClient {
	d := defaultLLMClientConfig()
	if cfg.Model == "" {
		cfg.Model = d.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = d.MaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = d.Temperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.Provider == "" {
		cfg.Provider = d.Provider
	}
	return &llmClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "llm-client").Logger(),
	}
}

// Enabled returns true if the client is configured with a usable provider.
func (c *llmClient) Enabled() bool {
	switch c.cfg.Provider {
	case LLMProviderOpenAI, LLMProviderAnthropic:
		return c.cfg.APIKey != ""
	default:
		return false
	}
}

// Complete sends a prompt to the configured LLM and returns the response
// text. A 5xx response is wrapped in TransientError and a 429 in
// RateLimitedError, so the retry wrapper attempts them again; other 4xx
// client errors are returned unwrapped and are not retried.
func (c *llmClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	switch c.cfg.Provider {
	case LLMProviderOpenAI:
		return c.completeOpenAI(ctx, systemPrompt, userPrompt)
	case LLMProviderAnthropic:
		return c.completeAnthropic(ctx, systemPrompt, userPrompt)
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", c.cfg.Provider)
	}
}

func classifyHTTPStatus(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &RateLimitedError{Err: fmt.Errorf("status %d: %s", status, body)}
	case status >= 500:
		return &TransientError{Err: fmt.Errorf("status %d: %s", status, body)}
	case status >= 400:
		return fmt.Errorf("status %d: %s", status, body)
	default:
		return nil
	}
}

func (c *llmClient) completeOpenAI(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	baseURL := c.cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	url := strings.TrimRight(baseURL, "/") + "/v1/chat/completions"

	body := map[string]interface{}{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransientError{Err: fmt.Errorf("openai request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPStatus(resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal openai response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (c *llmClient) completeAnthropic(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	baseURL := c.cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	url := strings.TrimRight(baseURL, "/") + "/v1/messages"

	body := map[string]interface{}{
		"model":      c.cfg.Model,
		"max_tokens": c.cfg.MaxTokens,
		"system":     systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": userPrompt},
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransientError{Err: fmt.Errorf("anthropic request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPStatus(resp.StatusCode, string(respBody))
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal anthropic response: %w", err)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic returned no content")
	}
	return strings.TrimSpace(result.Content[0].Text), nil
}
