// Package segmenter turns per-window VAD spans into discrete speech
// segments. The Dispatcher carries all cross-window state: speech onset,
// accumulated silence, and the absolute offset of the last processed sample,
// so overlapping analysis windows are never double-counted.
package segmenter
