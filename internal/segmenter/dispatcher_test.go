package segmenter

import (
	"testing"
	"time"

	"github.com/johnnyzhao5619/echonote-recorder/internal/audio"
	"github.com/johnnyzhao5619/echonote-recorder/internal/vad"
)

const testRate = 16000

// buildRing appends the given sample pattern to a ring large enough to
// retain everything, so CopyRange sees the full session.
func buildRing(t *testing.T, samples []int16) *audio.RingBuffer {
	t.Helper()
	ring, err := audio.NewRingBuffer(time.Minute, testRate)
	if err != nil {
		t.Fatalf("NewRingBuffer failed: %v", err)
	}
	ring.Append(samples)
	return ring
}

// pattern appends speech (constant amplitude) and silence runs, returning
// the assembled PCM.
func pattern(runs ...struct {
	d      time.Duration
	speech bool
}) []int16 {
	var out []int16
	for _, r := range runs {
		n := int(audio.DurationToSamples(r.d, testRate))
		chunk := make([]int16, n)
		if r.speech {
			for i := range chunk {
				chunk[i] = 8000
			}
		}
		out = append(out, chunk...)
	}
	return out
}

func run(d time.Duration, speech bool) struct {
	d      time.Duration
	speech bool
} {
	return struct {
		d      time.Duration
		speech bool
	}{d, speech}
}

// observeAll feeds the whole sample stream through the dispatcher in
// window-sized slices, classifying each window with the detector, and
// collects every emitted segment.
func observeAll(t *testing.T, d *Dispatcher, samples []int16, windowSize int) []*audio.SpeechSegment {
	t.Helper()
	detector, err := vad.NewDetector(0.3, 30*time.Millisecond, testRate)
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}

	var all []*audio.SpeechSegment
	for start := 0; start < len(samples); start += windowSize {
		end := start + windowSize
		if end > len(samples) {
			end = len(samples)
		}
		window := samples[start:end]
		segs, err := d.Observe(int64(start), window, detector.Spans(window))
		if err != nil {
			t.Fatalf("Observe failed at offset %d: %v", start, err)
		}
		all = append(all, segs...)
	}
	return all
}

func TestDispatcherConfigValidation(t *testing.T) {
	cfg := DefaultConfig(testRate)
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config invalid: %v", err)
	}

	bad := cfg
	bad.SampleRate = 0
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for zero sample rate")
	}

	bad = cfg
	bad.SilenceDuration = 0
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for zero silence duration")
	}

	bad = cfg
	bad.MaxSegmentDuration = cfg.MinSpeechDuration
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for max <= min duration")
	}
}

func TestTwoSegmentScenario(t *testing.T) {
	// 3s speech, 2.5s silence, 2s speech, then enough silence to close the
	// second segment. The 2.5s silence exceeds the 2s threshold, so exactly
	// two segments must come out.
	samples := pattern(
		run(3*time.Second, true),
		run(2500*time.Millisecond, false),
		run(2*time.Second, true),
		run(2500*time.Millisecond, false),
	)
	ring := buildRing(t, samples)

	cfg := DefaultConfig(testRate)
	d, err := NewDispatcher(cfg, ring)
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}

	// 100ms windows, matching the live pump cadence.
	segs := observeAll(t, d, samples, int(audio.DurationToSamples(100*time.Millisecond, testRate)))
	if len(segs) != 2 {
		t.Fatalf("Expected exactly 2 segments, got %d", len(segs))
	}

	first, second := segs[0], segs[1]

	if first.StartOffset != 0 {
		t.Errorf("First segment starts at %v, want 0", first.StartOffset)
	}
	if got := first.EndOffset; got < 2900*time.Millisecond || got > 3100*time.Millisecond {
		t.Errorf("First segment ends at %v, want ~3s", got)
	}

	if got := second.StartOffset; got < 5400*time.Millisecond || got > 5600*time.Millisecond {
		t.Errorf("Second segment starts at %v, want ~5.5s", got)
	}
	if got := second.EndOffset; got < 7400*time.Millisecond || got > 7600*time.Millisecond {
		t.Errorf("Second segment ends at %v, want ~7.5s", got)
	}

	// Non-decreasing start offsets.
	if second.StartOffset < first.StartOffset {
		t.Error("Segments out of order")
	}
}

func TestLookbackPadding(t *testing.T) {
	samples := pattern(
		run(2*time.Second, false),
		run(time.Second, true),
		run(2500*time.Millisecond, false),
	)
	ring := buildRing(t, samples)

	cfg := DefaultConfig(testRate)
	d, _ := NewDispatcher(cfg, ring)

	segs := observeAll(t, d, samples, 1600)
	if len(segs) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segs))
	}

	seg := segs[0]
	unpadded := audio.DurationToSamples(seg.EndOffset-seg.StartOffset, testRate)
	lookback := audio.DurationToSamples(cfg.Lookback, testRate)

	// Samples include the lookback before the onset; offsets do not.
	if int64(len(seg.Samples)) != unpadded+lookback {
		t.Errorf("Expected %d padded samples, got %d", unpadded+lookback, len(seg.Samples))
	}
	if seg.StartOffset < 1900*time.Millisecond || seg.StartOffset > 2100*time.Millisecond {
		t.Errorf("Unpadded start %v, want ~2s", seg.StartOffset)
	}

	// The padding itself is silence from before the onset.
	if seg.Samples[0] != 0 {
		t.Errorf("Expected silent lookback, got sample %d", seg.Samples[0])
	}
}

func TestLookbackClampedAtSessionStart(t *testing.T) {
	// Speech starting at offset 0 has no audio before it to look back into.
	samples := pattern(
		run(time.Second, true),
		run(2500*time.Millisecond, false),
	)
	ring := buildRing(t, samples)

	d, _ := NewDispatcher(DefaultConfig(testRate), ring)
	segs := observeAll(t, d, samples, 1600)
	if len(segs) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segs))
	}
	if segs[0].StartSample != 0 {
		t.Errorf("Expected onset at sample 0, got %d", segs[0].StartSample)
	}
}

func TestNoiseBurstDiscarded(t *testing.T) {
	cfg := DefaultConfig(testRate)
	cfg.MinSpeechDuration = 500 * time.Millisecond

	samples := pattern(
		run(time.Second, false),
		run(100*time.Millisecond, true), // below the noise floor
		run(2500*time.Millisecond, false),
	)
	ring := buildRing(t, samples)

	d, _ := NewDispatcher(cfg, ring)
	segs := observeAll(t, d, samples, 1600)
	if len(segs) != 0 {
		t.Fatalf("Expected noise burst to be discarded, got %d segments", len(segs))
	}

	stats := d.Stats()
	if stats.NoiseDiscarded != 1 {
		t.Errorf("Expected 1 discarded burst, got %d", stats.NoiseDiscarded)
	}
	if stats.SegmentsEmitted != 0 {
		t.Errorf("Expected 0 emitted, got %d", stats.SegmentsEmitted)
	}
}

func TestFlushEmitsPendingSpeech(t *testing.T) {
	cfg := DefaultConfig(testRate)
	cfg.MinSpeechDuration = 500 * time.Millisecond

	// Speech still open (no qualifying silence) when the session stops.
	// Even though it is below the noise floor, Flush must emit it.
	samples := pattern(
		run(time.Second, false),
		run(200*time.Millisecond, true),
	)
	ring := buildRing(t, samples)

	d, _ := NewDispatcher(cfg, ring)
	segs := observeAll(t, d, samples, 1600)
	if len(segs) != 0 {
		t.Fatalf("Expected no segments before flush, got %d", len(segs))
	}

	seg, err := d.Flush()
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if seg == nil {
		t.Fatal("Expected flush to emit the pending span")
	}
	if got := seg.EndOffset - seg.StartOffset; got < 150*time.Millisecond || got > 250*time.Millisecond {
		t.Errorf("Flushed span duration %v, want ~200ms", got)
	}

	// A second flush has nothing pending.
	seg, err = d.Flush()
	if err != nil {
		t.Fatalf("Second Flush failed: %v", err)
	}
	if seg != nil {
		t.Errorf("Expected nil from empty flush, got %+v", seg)
	}
}

func TestForcedSplitOnMaxDuration(t *testing.T) {
	cfg := DefaultConfig(testRate)
	cfg.MaxSegmentDuration = 2 * time.Second

	// 5s of continuous speech must be split into 2s pieces.
	samples := pattern(
		run(5*time.Second, true),
		run(2500*time.Millisecond, false),
	)
	ring := buildRing(t, samples)

	d, _ := NewDispatcher(cfg, ring)
	segs := observeAll(t, d, samples, 1600)
	if len(segs) != 3 {
		t.Fatalf("Expected 3 segments (2s + 2s + 1s), got %d", len(segs))
	}

	if got := segs[0].EndOffset - segs[0].StartOffset; got != 2*time.Second {
		t.Errorf("First split is %v, want 2s", got)
	}
	if segs[1].StartSample != segs[0].EndSample {
		t.Errorf("Split boundary gap: %d vs %d", segs[0].EndSample, segs[1].StartSample)
	}
	if d.Stats().ForcedSplits != 2 {
		t.Errorf("Expected 2 forced splits, got %d", d.Stats().ForcedSplits)
	}
}

func TestOverlappingWindowsNotDoubleCounted(t *testing.T) {
	samples := pattern(
		run(time.Second, true),
		run(2500*time.Millisecond, false),
	)
	ring := buildRing(t, samples)

	d, _ := NewDispatcher(DefaultConfig(testRate), ring)
	detector, _ := vad.NewDetector(0.3, 30*time.Millisecond, testRate)

	// Feed 1s windows advancing by 0.5s so every window re-reads half of
	// the previous one.
	step := int(audio.DurationToSamples(500*time.Millisecond, testRate))
	size := 2 * step

	var segs []*audio.SpeechSegment
	for start := 0; start < len(samples); start += step {
		end := start + size
		if end > len(samples) {
			end = len(samples)
		}
		window := samples[start:end]
		out, err := d.Observe(int64(start), window, detector.Spans(window))
		if err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
		segs = append(segs, out...)
		if end == len(samples) {
			break
		}
	}

	if len(segs) != 1 {
		t.Fatalf("Expected exactly 1 segment despite overlap, got %d", len(segs))
	}
	if got := segs[0].EndOffset - segs[0].StartOffset; got < 900*time.Millisecond || got > 1100*time.Millisecond {
		t.Errorf("Segment duration %v, want ~1s", got)
	}
}

func TestStateTransitions(t *testing.T) {
	samples := pattern(run(time.Second, true))
	ring := buildRing(t, samples)
	d, _ := NewDispatcher(DefaultConfig(testRate), ring)

	if d.State() != StateIdle {
		t.Errorf("Expected initial state idle, got %v", d.State())
	}

	detector, _ := vad.NewDetector(0.3, 30*time.Millisecond, testRate)
	if _, err := d.Observe(0, samples, detector.Spans(samples)); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if d.State() != StateAccumulating {
		t.Errorf("Expected accumulating after speech, got %v", d.State())
	}

	if _, err := d.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if d.State() != StateListening {
		t.Errorf("Expected listening after flush, got %v", d.State())
	}
}
