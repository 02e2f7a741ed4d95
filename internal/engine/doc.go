// Package engine defines the speech-to-text and translation capability
// interfaces consumed by the pipeline, their result types, and HTTP client
// implementations with retry, rate limiting and request statistics.
package engine
