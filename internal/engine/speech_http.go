package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/johnnyzhao5619/echonote-recorder/internal/audio"
)

// SpeechClientConfig configures the HTTP speech engine client.
type SpeechClientConfig struct {
	Endpoint      string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// SpeechClient is an HTTP SpeechEngine. It uploads WAV-encoded segments as
// multipart form data, retries transient failures with exponential backoff,
// and bounds in-flight requests with a semaphore.
type SpeechClient struct {
	config     SpeechClientConfig
	httpClient *http.Client
	semaphore  chan struct{}
	stats      clientStats
}

type speechResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// NewSpeechClient creates a speech engine client for the given endpoint.
func NewSpeechClient(config SpeechClientConfig) (*SpeechClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	return &SpeechClient{
		config:     config,
		httpClient: newHTTPClient(config.Timeout),
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// TranscribeStream uploads one speech segment and returns its transcript.
func (c *SpeechClient) TranscribeStream(ctx context.Context, samples []int16, language string, sampleRate int) (string, error) {
	wav, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		return "", &EngineError{Provider: "speech-http", Op: "transcribe_stream", Err: err}
	}
	return c.transcribe(ctx, wav, language, "transcribe_stream")
}

// TranscribeFile uploads an already saved WAV recording for transcription.
func (c *SpeechClient) TranscribeFile(ctx context.Context, path string, language string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &EngineError{Provider: "speech-http", Op: "transcribe_file", Err: err}
	}
	return c.transcribe(ctx, data, language, "transcribe_file")
}

func (c *SpeechClient) transcribe(ctx context.Context, wav []byte, language, op string) (string, error) {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	startTime := time.Now()
	c.stats.recordAttempt()
	requestID := uuid.New().String()

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

		text, err := c.doRequest(ctx, wav, language, requestID)
		if err == nil {
			c.stats.recordSuccess(time.Since(startTime))
			return text, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	c.stats.recordFailure()
	return "", &EngineError{
		Provider: "speech-http",
		Op:       op,
		Err:      fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr),
	}
}

func (c *SpeechClient) doRequest(ctx context.Context, wav []byte, language, requestID string) (string, error) {
	body, contentType, err := c.buildMultipartBody(wav, language, requestID)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
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

	var parsed speechResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return parsed.Text, nil
}

func (c *SpeechClient) buildMultipartBody(wav []byte, language, requestID string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", requestID+".wav")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(wav); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"request_id":        requestID,
		"request_timestamp": time.Now().Format(time.RFC3339),
		"response_format":   "json",
	}
	if language != "" {
		fields["language"] = language
	}
	if c.config.Model != "" {
		fields["model"] = c.config.Model
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// Stats returns current client statistics.
func (c *SpeechClient) Stats() ClientStats {
	return c.stats.snapshot()
}

// Close waits for all in-flight requests to complete.
func (c *SpeechClient) Close() error {
	for i := 0; i < cap(c.semaphore); i++ {
		c.semaphore <- struct{}{}
	}
	return nil
}
