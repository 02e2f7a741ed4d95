package segmenter

import (
	"fmt"
	"sync"
	"time"

	"github.com/johnnyzhao5619/echonote-recorder/internal/audio"
	"github.com/johnnyzhao5619/echonote-recorder/internal/vad"
)

// State represents the dispatcher lifecycle.
type State int

const (
	// StateIdle means no audio has been observed yet.
	StateIdle State = iota
	// StateListening means audio is flowing but no speech onset is active.
	StateListening
	// StateAccumulating means a speech span is open and awaiting a
	// qualifying silence run (or a forced split).
	StateAccumulating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateAccumulating:
		return "accumulating"
	default:
		return "unknown"
	}
}

// SampleSource provides owned copies of retained audio by absolute sample
// offsets. *audio.RingBuffer satisfies it.
type SampleSource interface {
	CopyRange(start, end int64) ([]int16, error)
}

// Config holds segmentation parameters.
type Config struct {
	// SilenceDuration is the continuous silence required to close a
	// segment. Default 2s.
	SilenceDuration time.Duration
	// MinSpeechDuration is the noise floor: closed spans shorter than this
	// are discarded. Zero disables the floor.
	MinSpeechDuration time.Duration
	// MaxSegmentDuration forces a split when an open span grows past it.
	// Zero disables forced splits.
	MaxSegmentDuration time.Duration
	// Lookback is the amount of audio prepended before the speech onset in
	// emitted samples. Default 750ms.
	Lookback time.Duration
	// SampleRate of the observed audio.
	SampleRate int
}

// DefaultConfig returns the standard segmentation parameters.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SilenceDuration:    2 * time.Second,
		MinSpeechDuration:  300 * time.Millisecond,
		MaxSegmentDuration: 30 * time.Second,
		Lookback:           750 * time.Millisecond,
		SampleRate:         sampleRate,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.SilenceDuration <= 0 {
		return fmt.Errorf("silence duration must be positive, got %v", c.SilenceDuration)
	}
	if c.MinSpeechDuration < 0 {
		return fmt.Errorf("min speech duration must not be negative, got %v", c.MinSpeechDuration)
	}
	if c.MaxSegmentDuration < 0 {
		return fmt.Errorf("max segment duration must not be negative, got %v", c.MaxSegmentDuration)
	}
	if c.MaxSegmentDuration > 0 && c.MaxSegmentDuration <= c.MinSpeechDuration {
		return fmt.Errorf("max segment duration %v must exceed min speech duration %v",
			c.MaxSegmentDuration, c.MinSpeechDuration)
	}
	if c.Lookback < 0 {
		return fmt.Errorf("lookback must not be negative, got %v", c.Lookback)
	}
	return nil
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	State           string `json:"state"`
	SegmentsEmitted int64  `json:"segments_emitted"`
	NoiseDiscarded  int64  `json:"noise_discarded"`
	ForcedSplits    int64  `json:"forced_splits"`
}

// Dispatcher is the segment state machine. It consumes absolute-offset VAD
// spans and emits SpeechSegments with lookback-padded samples and unpadded
// offsets. Not safe for concurrent use; the session drives it from a single
// goroutine.
type Dispatcher struct {
	cfg    Config
	source SampleSource

	silenceSamples  int64
	minSamples      int64
	maxSamples      int64
	lookbackSamples int64

	mu          sync.Mutex
	state       State
	nextOffset  int64 // absolute offset of the first unprocessed sample
	speechStart int64 // absolute onset of the open span, valid while Accumulating
	speechEnd   int64 // absolute end of the latest speech run in the open span

	emitted int64
	noise   int64
	splits  int64
}

// NewDispatcher creates a dispatcher reading lookback audio from source.
func NewDispatcher(cfg Config, source SampleSource) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid segmenter config: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("sample source must not be nil")
	}

	return &Dispatcher{
		cfg:             cfg,
		source:          source,
		silenceSamples:  audio.DurationToSamples(cfg.SilenceDuration, cfg.SampleRate),
		minSamples:      audio.DurationToSamples(cfg.MinSpeechDuration, cfg.SampleRate),
		maxSamples:      audio.DurationToSamples(cfg.MaxSegmentDuration, cfg.SampleRate),
		lookbackSamples: audio.DurationToSamples(cfg.Lookback, cfg.SampleRate),
		state:           StateIdle,
	}, nil
}

// State returns the current machine state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		State:           d.state.String(),
		SegmentsEmitted: d.emitted,
		NoiseDiscarded:  d.noise,
		ForcedSplits:    d.splits,
	}
}

// Observe feeds one analysis window into the state machine. windowStart is
// the absolute offset of samples[0]; spans are window-relative VAD spans.
// Samples already processed by a previous overlapping window are skipped.
// Returns the segments closed by this window, usually none or one.
func (d *Dispatcher) Observe(windowStart int64, samples []int16, spans []vad.Span) ([]*audio.SpeechSegment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(samples) == 0 {
		return nil, nil
	}
	if d.state == StateIdle {
		d.state = StateListening
	}

	var segments []*audio.SpeechSegment

	for _, span := range spans {
		start := windowStart + int64(span.Start)
		end := windowStart + int64(span.End)

		// Skip the part of the span already seen via window overlap.
		if end <= d.nextOffset {
			continue
		}
		if start < d.nextOffset {
			start = d.nextOffset
		}

		if span.Speech {
			if d.state != StateAccumulating {
				d.state = StateAccumulating
				d.speechStart = start
			}
			d.speechEnd = end

			if d.maxSamples > 0 && d.speechEnd-d.speechStart >= d.maxSamples {
				seg, err := d.closeSpan(d.speechStart, d.speechStart+d.maxSamples)
				if err != nil {
					return segments, err
				}
				d.splits++
				segments = append(segments, seg)
				// Remaining speech opens the next span immediately.
				d.speechStart = seg.EndSample
				if d.speechStart >= d.speechEnd {
					d.speechEnd = d.speechStart
				}
			}
		} else if d.state == StateAccumulating {
			if end-d.speechEnd >= d.silenceSamples {
				seg, err := d.finalizeOpenSpan()
				if err != nil {
					return segments, err
				}
				if seg != nil {
					segments = append(segments, seg)
				}
			}
		}
	}

	if tail := windowStart + int64(len(samples)); tail > d.nextOffset {
		d.nextOffset = tail
	}

	return segments, nil
}

// Flush closes any open span regardless of the noise floor, so a short
// utterance cut off by stop is still dispatched. Returns nil when nothing
// is pending.
func (d *Dispatcher) Flush() (*audio.SpeechSegment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateAccumulating || d.speechEnd <= d.speechStart {
		d.state = StateListening
		d.speechStart = 0
		d.speechEnd = 0
		return nil, nil
	}

	seg, err := d.closeSpan(d.speechStart, d.speechEnd)
	if err != nil {
		return nil, err
	}
	d.state = StateListening
	d.speechStart = 0
	d.speechEnd = 0
	return seg, nil
}

// finalizeOpenSpan closes the open span after a qualifying silence run,
// applying the noise floor. Caller holds the lock.
func (d *Dispatcher) finalizeOpenSpan() (*audio.SpeechSegment, error) {
	start, end := d.speechStart, d.speechEnd
	d.state = StateListening
	d.speechStart = 0
	d.speechEnd = 0

	if end-start < d.minSamples {
		d.noise++
		return nil, nil
	}
	return d.closeSpan(start, end)
}

// closeSpan copies the padded samples and builds the segment. Caller holds
// the lock.
func (d *Dispatcher) closeSpan(start, end int64) (*audio.SpeechSegment, error) {
	paddedStart := start - d.lookbackSamples
	if paddedStart < 0 {
		paddedStart = 0
	}

	// CopyRange clamps paddedStart to the oldest retained sample, so a
	// long-lived session never fails here just because the lookback fell
	// off the ring.
	copied, err := d.source.CopyRange(paddedStart, end)
	if err != nil {
		return nil, fmt.Errorf("failed to copy segment samples [%d, %d): %w", paddedStart, end, err)
	}

	d.emitted++
	return &audio.SpeechSegment{
		StartOffset: audio.SamplesToDuration(start, d.cfg.SampleRate),
		EndOffset:   audio.SamplesToDuration(end, d.cfg.SampleRate),
		StartSample: start,
		EndSample:   end,
		Samples:     copied,
		SampleRate:  d.cfg.SampleRate,
	}, nil
}
