package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/johnnyzhao5619/echonote-recorder/internal/audio"
	"github.com/johnnyzhao5619/echonote-recorder/internal/engine"
)

// ErrInputClosed is returned by Submit once shutdown has begun.
var ErrInputClosed = errors.New("pipeline input closed")

// QueueSaturatedError reports a Submit rejected because the transcription
// queue is full. The caller decides whether to drop or slow down; the
// pipeline itself never blocks the producer.
type QueueSaturatedError struct {
	Queue    string
	Capacity int
}

func (e *QueueSaturatedError) Error() string {
	return fmt.Sprintf("%s queue saturated (capacity %d)", e.Queue, e.Capacity)
}

// Config holds coordinator parameters.
type Config struct {
	// TranscriptionQueueSize bounds segments awaiting transcription.
	TranscriptionQueueSize int
	// TranslationQueueSize bounds transcripts awaiting translation.
	TranslationQueueSize int
	// SubscriberBuffer is the per-subscriber channel capacity.
	SubscriberBuffer int

	// Language is the source language hint passed to the speech engine.
	Language string
	// EnableTranslation starts the translation consumer.
	EnableTranslation bool
	// TargetLanguage for translation; required when translation is enabled.
	TargetLanguage string
}

// Validate checks the configuration for consistency and applies defaults.
func (c *Config) Validate() error {
	if c.TranscriptionQueueSize <= 0 {
		c.TranscriptionQueueSize = 32
	}
	if c.TranslationQueueSize <= 0 {
		c.TranslationQueueSize = 32
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = 64
	}
	if c.EnableTranslation && c.TargetLanguage == "" {
		return fmt.Errorf("target language required when translation is enabled")
	}
	return nil
}

// Report summarizes a completed shutdown. Timeouts during draining are
// reported as warnings, never raised as errors.
type Report struct {
	TranscribedSegments  int      `json:"transcribed_segments"`
	FailedTranscriptions int      `json:"failed_transcriptions"`
	TranslatedSegments   int      `json:"translated_segments"`
	FailedTranslations   int      `json:"failed_translations"`
	Warnings             []string `json:"warnings,omitempty"`
}

// Stats is a point-in-time snapshot of coordinator state for monitoring.
type Stats struct {
	TranscriptionQueueDepth int  `json:"transcription_queue_depth"`
	TranslationQueueDepth   int  `json:"translation_queue_depth"`
	TranscribedSegments     int  `json:"transcribed_segments"`
	FailedTranscriptions    int  `json:"failed_transcriptions"`
	TranslatedSegments      int  `json:"translated_segments"`
	FailedTranslations      int  `json:"failed_translations"`
	InputClosed             bool `json:"input_closed"`
}

// Coordinator moves speech segments through transcription and, optionally,
// translation. Segments flow strictly in submission order on both streams.
type Coordinator struct {
	cfg        Config
	speech     engine.SpeechEngine
	translator engine.TranslationEngine
	logger     *slog.Logger

	transcriptionQueue chan *audio.SpeechSegment
	translationQueue   chan *engine.TranscriptSegment // nil element is the shutdown sentinel
	translationAck     chan struct{}

	transcriptionDone chan struct{}
	translationDone   chan struct{}

	consumerCtx    context.Context
	consumerCancel context.CancelFunc

	mu              sync.Mutex
	inputClosed     bool
	transcript      []engine.TranscriptSegment
	translation     []engine.TranslationSegment
	failedTx        int
	failedTr        int
	transcriptSubs  []chan engine.TranscriptSegment
	translationSubs []chan engine.TranslationSegment
}

// NewCoordinator creates and starts a coordinator. The translation consumer
// is launched only when translation is enabled.
func NewCoordinator(cfg Config, speech engine.SpeechEngine, translator engine.TranslationEngine, logger *slog.Logger) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if speech == nil {
		return nil, fmt.Errorf("speech engine must not be nil")
	}
	if cfg.EnableTranslation && translator == nil {
		return nil, fmt.Errorf("translation engine must not be nil when translation is enabled")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		cfg:                cfg,
		speech:             speech,
		translator:         translator,
		logger:             logger.With("component", "pipeline"),
		transcriptionQueue: make(chan *audio.SpeechSegment, cfg.TranscriptionQueueSize),
		translationQueue:   make(chan *engine.TranscriptSegment, cfg.TranslationQueueSize),
		translationAck:     make(chan struct{}, 1),
		transcriptionDone:  make(chan struct{}),
		translationDone:    make(chan struct{}),
		consumerCtx:        ctx,
		consumerCancel:     cancel,
	}

	go c.transcriptionConsumer()
	if cfg.EnableTranslation {
		go c.translationConsumer()
	} else {
		close(c.translationDone)
	}

	return c, nil
}

// Submit enqueues a speech segment for transcription. It never blocks: a
// full queue yields *QueueSaturatedError so the caller can apply its own
// drop policy.
func (c *Coordinator) Submit(seg *audio.SpeechSegment) error {
	if seg == nil {
		return fmt.Errorf("segment must not be nil")
	}

	// The send happens under the same mutex Shutdown holds while closing
	// the queue, so Submit can never race onto a closed channel.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inputClosed {
		return ErrInputClosed
	}

	select {
	case c.transcriptionQueue <- seg:
		return nil
	default:
		return &QueueSaturatedError{Queue: "transcription", Capacity: c.cfg.TranscriptionQueueSize}
	}
}

// SubscribeTranscript returns a stream of transcript segments in order. The
// channel is closed after the consumer stops; deliveries still blocked when
// the shutdown drain budget expires are dropped.
func (c *Coordinator) SubscribeTranscript() <-chan engine.TranscriptSegment {
	ch := make(chan engine.TranscriptSegment, c.cfg.SubscriberBuffer)
	c.mu.Lock()
	c.transcriptSubs = append(c.transcriptSubs, ch)
	c.mu.Unlock()
	return ch
}

// SubscribeTranslation returns a stream of translation segments in order.
func (c *Coordinator) SubscribeTranslation() <-chan engine.TranslationSegment {
	ch := make(chan engine.TranslationSegment, c.cfg.SubscriberBuffer)
	c.mu.Lock()
	c.translationSubs = append(c.translationSubs, ch)
	c.mu.Unlock()
	return ch
}

// Transcript returns a copy of all transcript segments produced so far.
func (c *Coordinator) Transcript() []engine.TranscriptSegment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]engine.TranscriptSegment, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Translation returns a copy of all translation segments produced so far.
func (c *Coordinator) Translation() []engine.TranslationSegment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]engine.TranslationSegment, len(c.translation))
	copy(out, c.translation)
	return out
}

// Stats returns a snapshot of queue depths and counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		TranscriptionQueueDepth: len(c.transcriptionQueue),
		TranslationQueueDepth:   len(c.translationQueue),
		TranscribedSegments:     len(c.transcript),
		FailedTranscriptions:    c.failedTx,
		TranslatedSegments:      len(c.translation),
		FailedTranslations:      c.failedTr,
		InputClosed:             c.inputClosed,
	}
}

// Shutdown closes the input side, drains both queues within the context
// deadline, and returns a report. Drain timeouts force-cancel in-flight
// engine calls and surface as warnings, never as errors.
func (c *Coordinator) Shutdown(ctx context.Context) Report {
	c.mu.Lock()
	alreadyClosed := c.inputClosed
	c.inputClosed = true
	if !alreadyClosed {
		close(c.transcriptionQueue)
	}
	c.mu.Unlock()

	var warnings []string

	// Wait for the transcription consumer to drain the queue.
	select {
	case <-c.transcriptionDone:
	case <-ctx.Done():
		warnings = append(warnings, "transcription drain timed out; in-flight work cancelled")
		c.consumerCancel()
		<-c.transcriptionDone
	}

	if c.cfg.EnableTranslation {
		warnings = append(warnings, c.drainTranslation(ctx)...)
	}

	c.consumerCancel()
	c.closeSubscribers()

	c.mu.Lock()
	defer c.mu.Unlock()

	report := Report{
		TranscribedSegments:  len(c.transcript),
		FailedTranscriptions: c.failedTx,
		TranslatedSegments:   len(c.translation),
		FailedTranslations:   c.failedTr,
		Warnings:             warnings,
	}

	c.logger.Info("pipeline shutdown complete",
		"transcribed", report.TranscribedSegments,
		"failed_transcriptions", report.FailedTranscriptions,
		"translated", report.TranslatedSegments,
		"failed_translations", report.FailedTranslations,
		"warnings", len(warnings))

	return report
}

// drainTranslation sends the nil sentinel and awaits the consumer ack.
func (c *Coordinator) drainTranslation(ctx context.Context) []string {
	select {
	case c.translationQueue <- nil:
	case <-ctx.Done():
		c.consumerCancel()
		c.clearTranslationQueue()
		return []string{"translation queue full at shutdown; pending translations dropped"}
	}

	select {
	case <-c.translationAck:
		return nil
	case <-ctx.Done():
		c.consumerCancel()
		c.clearTranslationQueue()
		return []string{"translation drain timed out; pending translations dropped"}
	}
}

// clearTranslationQueue discards queued work after a forced cancellation so
// the consumer can reach the sentinel.
func (c *Coordinator) clearTranslationQueue() {
	for {
		select {
		case item := <-c.translationQueue:
			if item == nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Coordinator) transcriptionConsumer() {
	defer close(c.transcriptionDone)

	for seg := range c.transcriptionQueue {
		result := engine.TranscriptSegment{
			Start: seg.StartOffset,
			End:   seg.EndOffset,
		}

		text, err := c.speech.TranscribeStream(c.consumerCtx, seg.Samples, c.cfg.Language, seg.SampleRate)
		if err != nil {
			// Per-segment isolation: flag and keep going.
			result.Failed = true
			c.mu.Lock()
			c.failedTx++
			c.mu.Unlock()
			c.logger.Warn("transcription failed, emitting placeholder",
				"segment_start", seg.StartOffset,
				"segment_end", seg.EndOffset,
				"error", err)
		} else {
			result.Text = text
		}

		c.mu.Lock()
		c.transcript = append(c.transcript, result)
		subs := make([]chan engine.TranscriptSegment, len(c.transcriptSubs))
		copy(subs, c.transcriptSubs)
		c.mu.Unlock()

		for _, sub := range subs {
			select {
			case sub <- result:
			case <-c.consumerCtx.Done():
				// A stalled subscriber must not outlive the drain budget.
				c.logger.Warn("transcript delivery dropped, subscriber not draining",
					"segment_start", result.Start)
			}
		}

		// Only successful transcripts are worth translating.
		if c.cfg.EnableTranslation && !result.Failed {
			forwarded := result
			select {
			case c.translationQueue <- &forwarded:
			case <-c.consumerCtx.Done():
				return
			}
		}
	}
}

func (c *Coordinator) translationConsumer() {
	defer close(c.translationDone)

	for {
		var item *engine.TranscriptSegment
		select {
		case item = <-c.translationQueue:
		case <-c.consumerCtx.Done():
			return
		}
		if item == nil {
			// Shutdown sentinel: everything before it has been handled.
			c.translationAck <- struct{}{}
			return
		}

		result := engine.TranslationSegment{Start: item.Start}

		text, err := c.translator.Translate(c.consumerCtx, item.Text, c.cfg.Language, c.cfg.TargetLanguage)
		if err != nil {
			result.Failed = true
			c.mu.Lock()
			c.failedTr++
			c.mu.Unlock()
			c.logger.Warn("translation failed, emitting placeholder",
				"segment_start", item.Start,
				"error", err)
		} else {
			result.Text = text
		}

		c.mu.Lock()
		c.translation = append(c.translation, result)
		subs := make([]chan engine.TranslationSegment, len(c.translationSubs))
		copy(subs, c.translationSubs)
		c.mu.Unlock()

		for _, sub := range subs {
			select {
			case sub <- result:
			case <-c.consumerCtx.Done():
				c.logger.Warn("translation delivery dropped, subscriber not draining",
					"segment_start", result.Start)
			}
		}
	}
}

// closeSubscribers closes every subscriber channel after the consumers have
// stopped, guaranteeing full delivery before close.
func (c *Coordinator) closeSubscribers() {
	<-c.transcriptionDone
	<-c.translationDone

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.transcriptSubs {
		close(sub)
	}
	c.transcriptSubs = nil
	for _, sub := range c.translationSubs {
		close(sub)
	}
	c.translationSubs = nil
}
