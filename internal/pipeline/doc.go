// Package pipeline contains the stream coordinator that carries speech
// segments through bounded transcription and translation queues. A single
// consumer per queue preserves submission order; per-segment engine failures
// produce flagged placeholders instead of stopping the stream.
package pipeline
