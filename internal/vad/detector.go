package vad

import (
	"fmt"
	"math"
	"time"
)

// Span is a run of consecutive same-class frames inside one analyzed window.
// Start and End are sample offsets relative to the window; End is exclusive.
type Span struct {
	Start  int  `json:"start"`
	End    int  `json:"end"`
	Speech bool `json:"speech"`
}

// Result is the classification of a single analysis frame.
type Result struct {
	Probability float32 `json:"probability"` // Normalized energy (0.0 - 1.0)
	HasVoice    bool    `json:"has_voice"`
}

// Detector classifies audio frames as speech or silence by RMS energy.
// It holds no mutable state: two calls with the same samples always produce
// the same spans.
type Detector struct {
	threshold     float32
	sampleRate    int
	frameDuration time.Duration
	frameSize     int // samples per analysis frame
}

// maxEnergy is the RMS value mapped to probability 1.0 for 16-bit PCM.
const maxEnergy = 10000.0

// NewDetector creates a detector with the given sensitivity threshold
// (0..1), analysis frame duration and sample rate.
func NewDetector(threshold float32, frameDuration time.Duration, sampleRate int) (*Detector, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}
	if frameDuration <= 0 {
		return nil, fmt.Errorf("frame duration must be positive, got %v", frameDuration)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	frameSize := int(frameDuration * time.Duration(sampleRate) / time.Second)
	if frameSize < 1 {
		return nil, fmt.Errorf("frame duration %v too small for sample rate %d", frameDuration, sampleRate)
	}

	return &Detector{
		threshold:     threshold,
		sampleRate:    sampleRate,
		frameDuration: frameDuration,
		frameSize:     frameSize,
	}, nil
}

// Threshold returns the configured sensitivity threshold.
func (d *Detector) Threshold() float32 {
	return d.threshold
}

// FrameSize returns the analysis frame size in samples.
func (d *Detector) FrameSize() int {
	return d.frameSize
}

// Classify computes the voice probability of a single frame of samples.
func (d *Detector) Classify(samples []int16) Result {
	probability := normalizedRMS(samples)
	return Result{
		Probability: probability,
		HasVoice:    probability >= d.threshold,
	}
}

// Spans splits the window into analysis frames, classifies each, and merges
// consecutive same-class frames into speech/silence spans covering the whole
// window. A trailing partial frame is classified on its own. The result may
// be empty only for an empty window.
func (d *Detector) Spans(samples []int16) []Span {
	if len(samples) == 0 {
		return nil
	}

	spans := make([]Span, 0, 4)
	for start := 0; start < len(samples); start += d.frameSize {
		end := start + d.frameSize
		if end > len(samples) {
			end = len(samples)
		}

		speech := d.Classify(samples[start:end]).HasVoice

		if n := len(spans); n > 0 && spans[n-1].Speech == speech {
			spans[n-1].End = end
		} else {
			spans = append(spans, Span{Start: start, End: end, Speech: speech})
		}
	}

	return spans
}

// normalizedRMS maps the RMS energy of the samples onto 0..1.
func normalizedRMS(samples []int16) float32 {
	if len(samples) == 0 {
		return 0
	}

	var energy float64
	for _, s := range samples {
		energy += float64(s) * float64(s)
	}
	energy = math.Sqrt(energy / float64(len(samples)))

	normalized := energy / maxEnergy
	if normalized > 1.0 {
		normalized = 1.0
	}

	return float32(normalized)
}
