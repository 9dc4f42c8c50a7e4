// Package ollama is a minimal HTTP client for a local Ollama server,
// covering the endpoints the CLI needs: generate, chat, tags, show and
// version.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/xandai-project/xandai/src/summarizer"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultTimeout = 120 * time.Second
)

var _ summarizer.Generator = (*Client)(nil)

// Client is the Ollama API client.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Ollama API client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ollama_client")

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// Generate runs a single non-streamed completion and returns the response
// text. Satisfies the generation interface the summarizer consumes.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	logger := c.logger.With("method", "Generate", "model", model)
	logger.Debug("sending generate request", "prompt_len", len(prompt))

	resp, err := c.doGenerate(ctx, &GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}
	if resp.Response == "" {
		return "", ErrEmptyResponse
	}

	logger.Debug("generate complete",
		"prompt_tokens", resp.PromptEvalCount,
		"completion_tokens", resp.EvalCount)
	return resp.Response, nil
}

// GenerateWithSystem is Generate with a separate system prompt.
func (c *Client) GenerateWithSystem(ctx context.Context, model, system, prompt string) (string, error) {
	resp, err := c.doGenerate(ctx, &GenerateRequest{
		Model:  model,
		Prompt: prompt,
		System: system,
		Stream: false,
	})
	if err != nil {
		return "", err
	}
	if resp.Response == "" {
		return "", ErrEmptyResponse
	}
	return resp.Response, nil
}

func (c *Client) doGenerate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	var result GenerateResponse
	if err := c.post(ctx, "/api/generate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Chat runs a single non-streamed chat completion over the given turns.
func (c *Client) Chat(ctx context.Context, model string, messages []ChatMessage) (*ChatResponse, error) {
	logger := c.logger.With("method", "Chat", "model", model)
	logger.Debug("sending chat request", "messages", len(messages))

	var result ChatResponse
	err := c.post(ctx, "/api/chat", &ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	}, &result)
	if err != nil {
		logger.Error("chat request failed", "error", err)
		return nil, err
	}

	logger.Debug("chat complete",
		"prompt_tokens", result.PromptEvalCount,
		"completion_tokens", result.EvalCount)
	return &result, nil
}

// ChatStream runs a streamed chat completion, invoking fn for every chunk
// as it arrives. The final chunk has Done set.
func (c *Client) ChatStream(ctx context.Context, model string, messages []ChatMessage, fn func(ChatResponse) error) error {
	body, err := json.Marshal(&ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/chat", body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.handleError(resp)
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var chunk ChatResponse
		if err := dec.Decode(&chunk); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to decode stream chunk: %w", err)
		}
		if err := fn(chunk); err != nil {
			return err
		}
		if chunk.Done {
			return nil
		}
	}
}

// ListModels returns the locally installed models.
func (c *Client) ListModels(ctx context.Context) ([]ModelEntry, error) {
	var result tagsResponse
	if err := c.get(ctx, "/api/tags", &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// HasModel reports whether the named model is installed.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m.Name == name || m.Model == name {
			return true, nil
		}
	}
	return false, nil
}

// ShowModel returns server-side metadata for a model.
func (c *Client) ShowModel(ctx context.Context, name string) (*ShowResponse, error) {
	var result ShowResponse
	err := c.post(ctx, "/api/show", &ShowRequest{Model: name}, &result)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
		}
		return nil, err
	}
	return &result, nil
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var result versionResponse
	if err := c.get(ctx, "/api/version", &result); err != nil {
		return "", err
	}
	return result.Version, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return c.doWithRetry(httpReq, body, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	httpReq, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.doWithRetry(httpReq, nil, out)
}

// newRequest creates a new HTTP request with the appropriate headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	url := c.config.BaseURL + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// doWithRetry performs an HTTP request with retry on transport failure and
// server errors. Client errors return immediately.
func (c *Client) doWithRetry(req *http.Request, body []byte, out any) error {
	var lastErr error

	logger := c.logger.With("method", "doWithRetry", "url", req.URL.String())

	for i := 0; i < c.config.RetryCount; i++ {
		reqCopy := req.Clone(req.Context())
		if body != nil {
			reqCopy.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.httpClient.Do(reqCopy)
		if err != nil {
			lastErr = err
			logger.Debug("request attempt failed", "attempt", i+1, "error", err)
			time.Sleep(c.config.RetryDelay * time.Duration(i+1))
			continue
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			defer resp.Body.Close()
			return c.handleError(resp)
		}

		if resp.StatusCode < 400 {
			defer resp.Body.Close()
			if out == nil {
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		logger.Debug("server error, retrying", "attempt", i+1, "status_code", resp.StatusCode)
		time.Sleep(c.config.RetryDelay * time.Duration(i+1))
	}

	logger.Error("request failed after all retries", "retry_count", c.config.RetryCount, "error", lastErr)
	return fmt.Errorf("%w: request failed after %d retries: %v", ErrServerUnavailable, c.config.RetryCount, lastErr)
}

// handleError processes error responses from the API.
func (c *Client) handleError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
