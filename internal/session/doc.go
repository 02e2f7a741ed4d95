// Package session orchestrates one recording at a time: it opens the capture
// device, feeds the ring buffer and streaming WAV writer, pumps VAD windows
// into the segment dispatcher, forwards segments to the pipeline, and
// finalizes artifacts on stop.
package session
