// Package vad provides energy-based Voice Activity Detection over windows of
// PCM samples. The detector is a pure function of its input window; all
// cross-window continuity lives in the segmenter.
package vad
