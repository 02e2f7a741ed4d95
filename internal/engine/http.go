package engine

import (
	"context"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ClientStats is a snapshot of HTTP client counters.
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// clientStats accumulates request counters shared by both HTTP clients.
type clientStats struct {
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

func (s *clientStats) recordSuccess(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successRequests++
	// Simple moving average
	if s.avgResponseTime == 0 {
		s.avgResponseTime = elapsed
	} else {
		s.avgResponseTime = (s.avgResponseTime + elapsed) / 2
	}
}

func (s *clientStats) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedRequests++
}

func (s *clientStats) recordAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
}

func (s *clientStats) recordRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRetries++
}

func (s *clientStats) snapshot() ClientStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	successRate := float64(0)
	if s.totalRequests > 0 {
		successRate = float64(s.successRequests) / float64(s.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   s.totalRequests,
		SuccessRequests: s.successRequests,
		FailedRequests:  s.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    s.totalRetries,
		AvgResponseTime: s.avgResponseTime,
	}
}

// newHTTPClient builds the transport both engine clients use.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// backoffDelay returns the exponential backoff for the given attempt (1-based),
// capped at 30 seconds.
func backoffDelay(attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}

// isRetryableError reports whether a request failure is worth retrying:
// timeouts, connection failures, rate limiting and 5xx server errors.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if err == context.DeadlineExceeded {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "HTTP error 5") {
		return true
	}
	if strings.Contains(errStr, "HTTP error 429") {
		return true
	}
	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "refused") {
		return true
	}

	return false
}
