package audio

import (
	"fmt"
	"sync"
	"time"
)

// Frame is a timestamped chunk of mono PCM-16 samples delivered by a capture
// device. Frames are ephemeral: the producer copies them into the ring buffer
// and discards them.
type Frame struct {
	Samples    []int16
	Timestamp  time.Time
	SampleRate int
}

// Duration returns the wall-clock length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// SpeechSegment is a span of audio the VAD identified as continuous speech.
// Samples may include a trailing lookback from before the speech onset so
// words straddling a segment boundary are not clipped; StartOffset/EndOffset
// always describe the unpadded speech span, so downstream consumers can trust
// timestamps instead of deduplicating text. Invariant: EndOffset > StartOffset.
type SpeechSegment struct {
	StartOffset time.Duration
	EndOffset   time.Duration
	StartSample int64
	EndSample   int64
	Samples     []int16
	SampleRate  int
}

// Duration returns the unpadded speech duration of the segment.
func (s *SpeechSegment) Duration() time.Duration {
	return s.EndOffset - s.StartOffset
}

// InvalidWindowError reports a window request where the overlap is not
// strictly smaller than the duration. Such a request identifies a buggy
// caller: a silent empty result would be indistinguishable from "no speech
// yet" and could mask the bug.
type InvalidWindowError struct {
	Duration time.Duration
	Overlap  time.Duration
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("invalid window request: overlap %v must be strictly less than duration %v", e.Overlap, e.Duration)
}

// Window is an owned copy of a contiguous sample range from the ring buffer.
// Start is the absolute offset (in samples since the session began) of the
// first sample in Samples.
type Window struct {
	Start      int64
	Samples    []int16
	SampleRate int
}

// End returns the absolute offset one past the last sample in the window.
func (w *Window) End() int64 {
	return w.Start + int64(len(w.Samples))
}

// RingBuffer is a fixed-duration circular store of mono PCM-16 samples.
// Total retained duration never exceeds the configured capacity; the oldest
// samples are evicted first (overwrite-on-full). Append never blocks beyond a
// short critical section, and every read returns an owned copy so VAD
// processing never races with concurrent writes. Lifetime is bound to one
// recording session.
type RingBuffer struct {
	sampleRate int
	buf        []int16
	head       int   // index of the next write position
	length     int   // number of valid samples currently retained
	total      int64 // samples appended since creation (monotonic)
	evicted    int64 // samples overwritten since creation

	mu sync.Mutex
}

// NewRingBuffer creates a ring buffer retaining at most capacity of audio at
// the given sample rate.
func NewRingBuffer(capacity time.Duration, sampleRate int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring capacity must be positive, got %v", capacity)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	capSamples := int(capacity * time.Duration(sampleRate) / time.Second)
	if capSamples < 1 {
		return nil, fmt.Errorf("ring capacity %v too small for sample rate %d", capacity, sampleRate)
	}

	return &RingBuffer{
		sampleRate: sampleRate,
		buf:        make([]int16, capSamples),
	}, nil
}

// SampleRate returns the configured sample rate.
func (r *RingBuffer) SampleRate() int {
	return r.sampleRate
}

// Append copies samples into the ring, evicting the oldest data when full.
// Safe under concurrent Append and read calls.
func (r *RingBuffer) Append(samples []int16) {
	if len(samples) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// If the input alone exceeds capacity only its newest tail survives.
	in := samples
	if len(in) > len(r.buf) {
		skipped := len(in) - len(r.buf)
		in = in[skipped:]
		r.evicted += int64(skipped)
	}

	for _, s := range in {
		if r.length == len(r.buf) {
			r.evicted++
		} else {
			r.length++
		}
		r.buf[r.head] = s
		r.head = (r.head + 1) % len(r.buf)
	}
	r.total += int64(len(samples))
}

// Total returns the absolute number of samples appended since creation,
// including samples that have since been evicted.
func (r *RingBuffer) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Len returns the number of samples currently retained.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.length
}

// Oldest returns the absolute offset of the oldest retained sample.
func (r *RingBuffer) Oldest() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.oldestLocked()
}

func (r *RingBuffer) oldestLocked() int64 {
	return r.total - int64(r.length)
}

// Duration returns the wall-clock length of the retained audio.
func (r *RingBuffer) Duration() time.Duration {
	return time.Duration(r.Len()) * time.Second / time.Duration(r.sampleRate)
}

// Window returns an owned copy of the most recent duration of audio. The
// overlap parameter exists for sliding-window consumers that re-read the tail
// of the previous window; it must be strictly smaller than duration or the
// call fails with *InvalidWindowError. When less than duration is retained,
// whatever is available is returned.
func (r *RingBuffer) Window(duration, overlap time.Duration) (*Window, error) {
	if duration <= 0 {
		return nil, &InvalidWindowError{Duration: duration, Overlap: overlap}
	}
	if overlap >= duration {
		return nil, &InvalidWindowError{Duration: duration, Overlap: overlap}
	}

	want := int(duration * time.Duration(r.sampleRate) / time.Second)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := want
	if n > r.length {
		n = r.length
	}

	out := make([]int16, n)
	r.copyTailLocked(out)

	return &Window{
		Start:      r.total - int64(n),
		Samples:    out,
		SampleRate: r.sampleRate,
	}, nil
}

// CopyRange returns an owned copy of samples in the absolute range
// [start, end). A start before the oldest retained sample is clamped; a range
// entirely evicted or beyond the written end is an error.
func (r *RingBuffer) CopyRange(start, end int64) ([]int16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if start >= end {
		return nil, fmt.Errorf("invalid range: start=%d end=%d", start, end)
	}
	if end > r.total {
		return nil, fmt.Errorf("range end %d beyond written total %d", end, r.total)
	}

	oldest := r.oldestLocked()
	if start < oldest {
		start = oldest
	}
	if start >= end {
		return nil, fmt.Errorf("range [%d, %d) fully evicted (oldest retained %d)", start, end, oldest)
	}

	n := int(end - start)
	out := make([]int16, n)

	// Position of `start` inside the arena, counted from the oldest sample.
	base := (r.head - r.length + len(r.buf)) % len(r.buf)
	offset := int(start - oldest)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(base+offset+i)%len(r.buf)]
	}

	return out, nil
}

// Clear resets the buffer to empty. Used when a session is discarded after a
// failed start.
func (r *RingBuffer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.head = 0
	r.length = 0
	r.total = 0
	r.evicted = 0
}

// Stats returns a snapshot of buffer counters for monitoring.
func (r *RingBuffer) Stats() RingStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RingStats{
		SampleRate:      r.sampleRate,
		CapacitySamples: len(r.buf),
		Retained:        r.length,
		TotalAppended:   r.total,
		Evicted:         r.evicted,
	}
}

// RingStats is a point-in-time snapshot of ring buffer counters.
type RingStats struct {
	SampleRate      int   `json:"sample_rate"`
	CapacitySamples int   `json:"capacity_samples"`
	Retained        int   `json:"retained_samples"`
	TotalAppended   int64 `json:"total_appended"`
	Evicted         int64 `json:"evicted_samples"`
}

// copyTailLocked copies the newest len(dst) samples into dst. Caller holds mu.
func (r *RingBuffer) copyTailLocked(dst []int16) {
	n := len(dst)
	start := (r.head - n + len(r.buf)) % len(r.buf)
	for i := 0; i < n; i++ {
		dst[i] = r.buf[(start+i)%len(r.buf)]
	}
}

// SamplesToDuration converts a sample count to wall-clock time at rate.
func SamplesToDuration(samples int64, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(rate)
}

// DurationToSamples converts a wall-clock time to a sample count at rate.
func DurationToSamples(d time.Duration, rate int) int64 {
	return int64(d * time.Duration(rate) / time.Second)
}
