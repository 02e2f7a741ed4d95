package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/johnnyzhao5619/echonote-recorder/internal/audio"
	"github.com/johnnyzhao5619/echonote-recorder/internal/engine"
)

type fakeSpeech struct {
	fn func(ctx context.Context, samples []int16, language string, sampleRate int) (string, error)
}

func (f fakeSpeech) TranscribeStream(ctx context.Context, samples []int16, language string, sampleRate int) (string, error) {
	return f.fn(ctx, samples, language, sampleRate)
}

func (f fakeSpeech) TranscribeFile(ctx context.Context, path string, language string) (string, error) {
	return "", errors.New("not implemented")
}

type fakeTranslator struct {
	fn func(ctx context.Context, text, src, dst string) (string, error)
}

func (f fakeTranslator) Translate(ctx context.Context, text, src, dst string) (string, error) {
	return f.fn(ctx, text, src, dst)
}

// seg builds a speech segment whose text identity is encoded in its offsets.
func seg(start, end time.Duration) *audio.SpeechSegment {
	return &audio.SpeechSegment{
		StartOffset: start,
		EndOffset:   end,
		Samples:     make([]int16, 160),
		SampleRate:  16000,
	}
}

// echoSpeech transcribes each segment to a text derived from its length so
// tests can check content and order.
func echoSpeech() fakeSpeech {
	return fakeSpeech{fn: func(_ context.Context, samples []int16, _ string, _ int) (string, error) {
		return fmt.Sprintf("len=%d", len(samples)), nil
	}}
}

func shutdownCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestTranscriptOrdering(t *testing.T) {
	var counter int64
	speech := fakeSpeech{fn: func(context.Context, []int16, string, int) (string, error) {
		n := atomic.AddInt64(&counter, 1)
		return fmt.Sprintf("segment-%d", n), nil
	}}

	c, err := NewCoordinator(Config{}, speech, nil, nil)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}

	stream := c.SubscribeTranscript()

	for i := 0; i < 10; i++ {
		s := seg(time.Duration(i)*time.Second, time.Duration(i+1)*time.Second)
		if err := c.Submit(s); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}

	report := c.Shutdown(shutdownCtx(t))
	if report.TranscribedSegments != 10 {
		t.Fatalf("Expected 10 transcribed segments, got %d", report.TranscribedSegments)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("Unexpected warnings: %v", report.Warnings)
	}

	// Subscriber stream delivers everything in order, then closes.
	i := 0
	for got := range stream {
		want := fmt.Sprintf("segment-%d", i+1)
		if got.Text != want {
			t.Errorf("Stream item %d: got %q, want %q", i, got.Text, want)
		}
		if got.Start != time.Duration(i)*time.Second {
			t.Errorf("Stream item %d start %v, want %v", i, got.Start, time.Duration(i)*time.Second)
		}
		i++
	}
	if i != 10 {
		t.Errorf("Expected 10 streamed segments, got %d", i)
	}

	// Stored transcript has non-decreasing starts.
	transcript := c.Transcript()
	for j := 1; j < len(transcript); j++ {
		if transcript[j].Start < transcript[j-1].Start {
			t.Errorf("Transcript out of order at %d", j)
		}
	}
}

func TestSubmitSaturation(t *testing.T) {
	release := make(chan struct{})
	speech := fakeSpeech{fn: func(ctx context.Context, _ []int16, _ string, _ int) (string, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return "ok", nil
	}}

	c, err := NewCoordinator(Config{TranscriptionQueueSize: 2}, speech, nil, nil)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}

	// First submit is picked up by the consumer and blocks; the next two
	// fill the queue. Give the consumer a moment to take the first one.
	if err := c.Submit(seg(0, time.Second)); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := c.Submit(seg(0, time.Second)); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}

	err = c.Submit(seg(0, time.Second))
	if err == nil {
		t.Fatal("Expected saturation error")
	}
	var saturated *QueueSaturatedError
	if !errors.As(err, &saturated) {
		t.Fatalf("Expected *QueueSaturatedError, got %T: %v", err, err)
	}
	if saturated.Capacity != 2 {
		t.Errorf("Error reports capacity %d, want 2", saturated.Capacity)
	}

	close(release)
	c.Shutdown(shutdownCtx(t))
}

func TestSubmitAfterShutdown(t *testing.T) {
	c, err := NewCoordinator(Config{}, echoSpeech(), nil, nil)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}
	c.Shutdown(shutdownCtx(t))

	if err := c.Submit(seg(0, time.Second)); !errors.Is(err, ErrInputClosed) {
		t.Errorf("Expected ErrInputClosed, got %v", err)
	}
}

func TestTranscriptionFailureIsolated(t *testing.T) {
	var counter int64
	speech := fakeSpeech{fn: func(context.Context, []int16, string, int) (string, error) {
		n := atomic.AddInt64(&counter, 1)
		if n == 2 {
			return "", &engine.EngineError{Provider: "fake", Op: "transcribe", Err: errors.New("boom")}
		}
		return fmt.Sprintf("segment-%d", n), nil
	}}

	c, err := NewCoordinator(Config{}, speech, nil, nil)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := c.Submit(seg(time.Duration(i)*time.Second, time.Duration(i+1)*time.Second)); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	report := c.Shutdown(shutdownCtx(t))
	if report.TranscribedSegments != 3 {
		t.Fatalf("Expected 3 segments including placeholder, got %d", report.TranscribedSegments)
	}
	if report.FailedTranscriptions != 1 {
		t.Errorf("Expected 1 failed transcription, got %d", report.FailedTranscriptions)
	}

	transcript := c.Transcript()
	if transcript[0].Failed || transcript[2].Failed {
		t.Error("Unexpected failure flags on healthy segments")
	}
	if !transcript[1].Failed {
		t.Error("Expected segment 2 to carry the failure placeholder")
	}
	if transcript[1].Text != "" {
		t.Errorf("Placeholder carries text %q", transcript[1].Text)
	}
	// Placeholder keeps its audio offsets so ordering still holds.
	if transcript[1].Start != time.Second {
		t.Errorf("Placeholder start %v, want 1s", transcript[1].Start)
	}
}

func TestTranslationFailureOnSecondSegment(t *testing.T) {
	var txCounter int64
	speech := fakeSpeech{fn: func(context.Context, []int16, string, int) (string, error) {
		return fmt.Sprintf("segment-%d", atomic.AddInt64(&txCounter, 1)), nil
	}}

	translator := fakeTranslator{fn: func(_ context.Context, text, _, _ string) (string, error) {
		if text == "segment-2" {
			return "", &engine.EngineError{Provider: "fake", Op: "translate", Err: errors.New("boom")}
		}
		return "translated " + text, nil
	}}

	c, err := NewCoordinator(Config{
		EnableTranslation: true,
		TargetLanguage:    "uk",
	}, speech, translator, nil)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := c.Submit(seg(time.Duration(i)*time.Second, time.Duration(i+1)*time.Second)); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	report := c.Shutdown(shutdownCtx(t))

	// Transcription is unaffected by the translation failure.
	if report.TranscribedSegments != 3 || report.FailedTranscriptions != 0 {
		t.Errorf("Transcription disturbed: %+v", report)
	}
	if report.TranslatedSegments != 3 {
		t.Fatalf("Expected 3 translation results, got %d", report.TranslatedSegments)
	}
	if report.FailedTranslations != 1 {
		t.Errorf("Expected 1 failed translation, got %d", report.FailedTranslations)
	}

	translation := c.Translation()
	if translation[0].Failed || translation[2].Failed {
		t.Error("Unexpected failure flags on healthy translations")
	}
	if !translation[1].Failed {
		t.Error("Expected translation 2 to be flagged")
	}
	if translation[0].Text != "translated segment-1" {
		t.Errorf("Unexpected translation text %q", translation[0].Text)
	}
	// Ordering preserved across the failure.
	for j := 1; j < len(translation); j++ {
		if translation[j].Start < translation[j-1].Start {
			t.Errorf("Translation out of order at %d", j)
		}
	}
}

func TestFailedTranscriptionNotForwardedToTranslation(t *testing.T) {
	speech := fakeSpeech{fn: func(context.Context, []int16, string, int) (string, error) {
		return "", errors.New("always fails")
	}}
	var translations int64
	translator := fakeTranslator{fn: func(_ context.Context, text, _, _ string) (string, error) {
		atomic.AddInt64(&translations, 1)
		return text, nil
	}}

	c, err := NewCoordinator(Config{EnableTranslation: true, TargetLanguage: "uk"}, speech, translator, nil)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}

	if err := c.Submit(seg(0, time.Second)); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	report := c.Shutdown(shutdownCtx(t))

	if report.FailedTranscriptions != 1 {
		t.Errorf("Expected 1 failed transcription, got %d", report.FailedTranscriptions)
	}
	if got := atomic.LoadInt64(&translations); got != 0 {
		t.Errorf("Failed transcript reached the translator %d times", got)
	}
}

func TestShutdownTimeoutReportsWarning(t *testing.T) {
	speech := fakeSpeech{fn: func(ctx context.Context, _ []int16, _ string, _ int) (string, error) {
		<-ctx.Done() // hang until force-cancelled
		return "", ctx.Err()
	}}

	c, err := NewCoordinator(Config{}, speech, nil, nil)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}

	if err := c.Submit(seg(0, time.Second)); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	report := c.Shutdown(ctx)
	if len(report.Warnings) == 0 {
		t.Error("Expected a drain timeout warning")
	}
	// The hung segment surfaces as a failed placeholder, not a lost one.
	if report.TranscribedSegments != 1 || report.FailedTranscriptions != 1 {
		t.Errorf("Expected 1 failed placeholder, got %+v", report)
	}
}

func TestStalledSubscriberDoesNotBlockShutdown(t *testing.T) {
	c, err := NewCoordinator(Config{SubscriberBuffer: 1}, echoSpeech(), nil, nil)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}

	// Subscribed but never read: after the first delivery fills the buffer,
	// the consumer blocks publishing the second.
	_ = c.SubscribeTranscript()

	for i := 0; i < 3; i++ {
		if err := c.Submit(seg(time.Duration(i)*time.Second, time.Duration(i+1)*time.Second)); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	report := c.Shutdown(ctx)
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("Shutdown took %v despite a 500ms drain budget", elapsed)
	}

	if len(report.Warnings) == 0 {
		t.Error("Expected a drain timeout warning")
	}
	// The transcript itself is complete; only deliveries were dropped.
	if report.TranscribedSegments != 3 {
		t.Errorf("Expected 3 transcribed segments, got %d", report.TranscribedSegments)
	}
}

func TestSubmitConcurrentWithShutdown(t *testing.T) {
	for i := 0; i < 200; i++ {
		c, err := NewCoordinator(Config{TranscriptionQueueSize: 4}, echoSpeech(), nil, nil)
		if err != nil {
			t.Fatalf("NewCoordinator failed: %v", err)
		}

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					err := c.Submit(seg(0, time.Second))
					if err == nil || errors.Is(err, ErrInputClosed) {
						continue
					}
					var saturated *QueueSaturatedError
					if !errors.As(err, &saturated) {
						t.Errorf("Unexpected submit error: %v", err)
					}
				}
			}()
		}

		c.Shutdown(shutdownCtx(t))
		wg.Wait()
	}
}

func TestSubscriberChannelsClosedAfterDelivery(t *testing.T) {
	c, err := NewCoordinator(Config{EnableTranslation: true, TargetLanguage: "uk"},
		echoSpeech(),
		fakeTranslator{fn: func(_ context.Context, text, _, _ string) (string, error) {
			return "t:" + text, nil
		}}, nil)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}

	txStream := c.SubscribeTranscript()
	trStream := c.SubscribeTranslation()

	for i := 0; i < 5; i++ {
		if err := c.Submit(seg(time.Duration(i)*time.Second, time.Duration(i+1)*time.Second)); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	c.Shutdown(shutdownCtx(t))

	var txCount, trCount int
	for range txStream {
		txCount++
	}
	for range trStream {
		trCount++
	}
	if txCount != 5 {
		t.Errorf("Transcript stream delivered %d of 5 before close", txCount)
	}
	if trCount != 5 {
		t.Errorf("Translation stream delivered %d of 5 before close", trCount)
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := Config{EnableTranslation: true}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for translation without target language")
	}

	cfg = Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.TranscriptionQueueSize != 32 || cfg.TranslationQueueSize != 32 {
		t.Errorf("Defaults not applied: %+v", cfg)
	}

	if _, err := NewCoordinator(Config{}, nil, nil, nil); err == nil {
		t.Error("Expected error for nil speech engine")
	}
	if _, err := NewCoordinator(Config{EnableTranslation: true, TargetLanguage: "uk"}, echoSpeech(), nil, nil); err == nil {
		t.Error("Expected error for nil translator with translation enabled")
	}
}
