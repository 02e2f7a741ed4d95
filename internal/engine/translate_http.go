package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// TranslationClientConfig configures the HTTP translation engine client.
type TranslationClientConfig struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// TranslationClient is an HTTP TranslationEngine posting JSON requests with
// the same retry policy as the speech client.
type TranslationClient struct {
	config     TranslationClientConfig
	httpClient *http.Client
	stats      clientStats
}

type translationRequest struct {
	RequestID      string `json:"request_id"`
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language"`
}

type translationResponse struct {
	Text string `json:"text"`
}

// NewTranslationClient creates a translation engine client for the endpoint.
func NewTranslationClient(config TranslationClientConfig) (*TranslationClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	return &TranslationClient{
		config:     config,
		httpClient: newHTTPClient(config.Timeout),
	}, nil
}

// Translate converts text from sourceLanguage into targetLanguage.
func (c *TranslationClient) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	if targetLanguage == "" {
		return "", &EngineError{
			Provider: "translate-http",
			Op:       "translate",
			Err:      fmt.Errorf("target language cannot be empty"),
		}
	}

	startTime := time.Now()
	c.stats.recordAttempt()

	payload, err := json.Marshal(translationRequest{
		RequestID:      uuid.New().String(),
		Text:           text,
		SourceLanguage: sourceLanguage,
		TargetLanguage: targetLanguage,
	})
	if err != nil {
		return "", &EngineError{Provider: "translate-http", Op: "translate", Err: err}
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.stats.recordRetry()
			select {
			case <-time.After(backoffDelay(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		translated, err := c.doRequest(ctx, payload)
		if err == nil {
			c.stats.recordSuccess(time.Since(startTime))
			return translated, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	c.stats.recordFailure()
	return "", &EngineError{
		Provider: "translate-http",
		Op:       "translate",
		Err:      fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr),
	}
}

func (c *TranslationClient) doRequest(ctx context.Context, payload []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "EchoNote-Recorder/1.0")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed translationResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return parsed.Text, nil
}

// Stats returns current client statistics.
func (c *TranslationClient) Stats() ClientStats {
	return c.stats.snapshot()
}
