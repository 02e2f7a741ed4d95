package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/johnnyzhao5619/echonote-recorder/internal/audio"
	"github.com/johnnyzhao5619/echonote-recorder/internal/calendar"
	"github.com/johnnyzhao5619/echonote-recorder/internal/capture"
	"github.com/johnnyzhao5619/echonote-recorder/internal/config"
	"github.com/johnnyzhao5619/echonote-recorder/internal/engine"
	"github.com/johnnyzhao5619/echonote-recorder/internal/metrics"
	"github.com/johnnyzhao5619/echonote-recorder/internal/pipeline"
	"github.com/johnnyzhao5619/echonote-recorder/internal/segmenter"
	"github.com/johnnyzhao5619/echonote-recorder/internal/store"
	"github.com/johnnyzhao5619/echonote-recorder/internal/vad"
)

// Status is the recorder lifecycle state.
type Status int

const (
	StatusIdle Status = iota
	StatusStarting
	StatusRecording
	StatusStopping
	StatusStopped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStarting:
		return "starting"
	case StatusRecording:
		return "recording"
	case StatusStopping:
		return "stopping"
	case StatusStopped:
		return "stopped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures one recording session.
type Options struct {
	Language            string
	EnableTranslation   bool
	TargetLanguage      string
	RecordingFormat     string // "wav" or "mp3"
	SampleRate          int
	SaveRecording       bool
	SaveTranscript      bool
	CreateCalendarEvent bool
}

// Marker is a user annotation pinned to an audio offset.
type Marker struct {
	Offset    time.Duration `json:"offset"`
	Timestamp time.Time     `json:"timestamp"`
	Label     string        `json:"label"`
}

// Result is the final payload of a stopped session. Artifact paths are set
// only when the artifact was actually produced.
type Result struct {
	SessionID       string                      `json:"session_id"`
	StartTime       time.Time                   `json:"start_time"`
	EndTime         time.Time                   `json:"end_time"`
	Duration        time.Duration               `json:"duration"`
	RecordingPath   string                      `json:"recording_path,omitempty"`
	TranscriptPath  string                      `json:"transcript_path,omitempty"`
	TranslationPath string                      `json:"translation_path,omitempty"`
	MarkersPath     string                      `json:"markers_path,omitempty"`
	EventID         string                      `json:"event_id,omitempty"`
	Markers         []Marker                    `json:"markers,omitempty"`
	Transcript      []engine.TranscriptSegment  `json:"transcript,omitempty"`
	Translation     []engine.TranslationSegment `json:"translation,omitempty"`
	Warnings        []string                    `json:"warnings,omitempty"`
}

// Stats is a monitoring snapshot of the recorder.
type Stats struct {
	Status     string           `json:"status"`
	SessionID  string           `json:"session_id,omitempty"`
	StartTime  *time.Time       `json:"start_time,omitempty"`
	Ring       *audio.RingStats `json:"ring,omitempty"`
	Segmenter  *segmenter.Stats `json:"segmenter,omitempty"`
	Pipeline   *pipeline.Stats  `json:"pipeline,omitempty"`
	Markers    int              `json:"markers"`
}

// Recorder runs at most one recording session at a time and is reusable
// after Stop.
type Recorder struct {
	cfg     *config.Config
	device  capture.Device
	speech  engine.SpeechEngine
	trans   engine.TranslationEngine
	store   *store.FileStore
	cal     calendar.Collaborator
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	status      Status
	sessionID   string
	startTime   time.Time
	opts        Options
	ring        *audio.RingBuffer
	detector    *vad.Detector
	dispatcher  *segmenter.Dispatcher
	coordinator *pipeline.Coordinator
	source      capture.FrameSource
	wavWriter   *audio.WAVWriter
	tempFile    *os.File
	tempPath    string
	markers     []Marker
	warnings    []string
	deviceErr   error

	producerDone chan struct{}
	pumpStop     chan struct{}
	pumpDone     chan struct{}
}

// NewRecorder wires a recorder from its collaborators. The calendar
// collaborator and metrics may be nil.
func NewRecorder(cfg *config.Config, device capture.Device, speech engine.SpeechEngine, trans engine.TranslationEngine, fileStore *store.FileStore, cal calendar.Collaborator, logger *slog.Logger, m *metrics.Metrics) (*Recorder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if device == nil {
		return nil, fmt.Errorf("capture device must not be nil")
	}
	if speech == nil {
		return nil, fmt.Errorf("speech engine must not be nil")
	}
	if fileStore == nil {
		return nil, fmt.Errorf("file store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		cfg:     cfg,
		device:  device,
		speech:  speech,
		trans:   trans,
		store:   fileStore,
		cal:     cal,
		logger:  logger.With("component", "session"),
		metrics: m,
		status:  StatusIdle,
	}, nil
}

// Status returns the current lifecycle state.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// SessionID returns the active session ID, empty when idle.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Stats returns a monitoring snapshot.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	ring := r.ring
	dispatcher := r.dispatcher
	coordinator := r.coordinator
	stats := Stats{
		Status:    r.status.String(),
		SessionID: r.sessionID,
		Markers:   len(r.markers),
	}
	if !r.startTime.IsZero() {
		start := r.startTime
		stats.StartTime = &start
	}
	r.mu.Unlock()

	if ring != nil {
		s := ring.Stats()
		stats.Ring = &s
	}
	if dispatcher != nil {
		s := dispatcher.Stats()
		stats.Segmenter = &s
	}
	if coordinator != nil {
		s := coordinator.Stats()
		stats.Pipeline = &s
	}
	return stats
}

// Start validates the options, builds the capture chain and begins
// recording. Any mid-start failure rolls everything back to Idle with no
// goroutines or partial state left behind.
func (r *Recorder) Start(ctx context.Context, deviceID string, opts Options) error {
	r.mu.Lock()
	if r.status != StatusIdle {
		status := r.status
		r.mu.Unlock()
		return fmt.Errorf("cannot start: session is %s", status)
	}
	r.status = StatusStarting
	r.mu.Unlock()

	if err := r.start(ctx, deviceID, opts); err != nil {
		r.rollback()
		if r.metrics != nil {
			r.metrics.RecordSessionFailed()
		}
		return err
	}
	return nil
}

func (r *Recorder) start(ctx context.Context, deviceID string, opts Options) error {
	if opts.SampleRate <= 0 {
		opts.SampleRate = r.cfg.Audio.SampleRate
	}
	if opts.RecordingFormat == "" {
		opts.RecordingFormat = r.cfg.Output.RecordingFormat
	}
	if opts.RecordingFormat != "wav" && opts.RecordingFormat != "mp3" {
		return fmt.Errorf("recording format must be wav or mp3, got %q", opts.RecordingFormat)
	}
	if opts.EnableTranslation && opts.TargetLanguage == "" {
		return fmt.Errorf("target language required when translation is enabled")
	}
	if opts.EnableTranslation && r.trans == nil {
		return fmt.Errorf("no translation engine configured")
	}

	ring, err := audio.NewRingBuffer(r.cfg.Audio.GetRingCapacity(), opts.SampleRate)
	if err != nil {
		return fmt.Errorf("failed to create ring buffer: %w", err)
	}

	detector, err := vad.NewDetector(r.cfg.VAD.Threshold, r.cfg.VAD.GetFrameDuration(), opts.SampleRate)
	if err != nil {
		return fmt.Errorf("failed to create VAD detector: %w", err)
	}

	dispatcher, err := segmenter.NewDispatcher(segmenter.Config{
		SilenceDuration:    r.cfg.Segmenter.GetSilenceDuration(),
		MinSpeechDuration:  r.cfg.Segmenter.GetMinSpeechDuration(),
		MaxSegmentDuration: r.cfg.Segmenter.GetMaxSegmentDuration(),
		Lookback:           r.cfg.Segmenter.GetLookback(),
		SampleRate:         opts.SampleRate,
	}, ring)
	if err != nil {
		return fmt.Errorf("failed to create segmenter: %w", err)
	}

	coordinator, err := pipeline.NewCoordinator(pipeline.Config{
		TranscriptionQueueSize: r.cfg.Pipeline.TranscriptionQueueSize,
		TranslationQueueSize:   r.cfg.Pipeline.TranslationQueueSize,
		SubscriberBuffer:       r.cfg.Pipeline.SubscriberBuffer,
		Language:               opts.Language,
		EnableTranslation:      opts.EnableTranslation,
		TargetLanguage:         opts.TargetLanguage,
	}, r.speech, r.trans, r.logger)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	r.mu.Lock()
	r.ring = ring
	r.detector = detector
	r.dispatcher = dispatcher
	r.coordinator = coordinator
	r.opts = opts
	r.mu.Unlock()

	if opts.SaveRecording {
		tempFile, err := os.CreateTemp("", "echonote-rec-*.wav")
		if err != nil {
			return fmt.Errorf("failed to create temp recording file: %w", err)
		}
		wavWriter, err := audio.NewWAVWriter(tempFile, opts.SampleRate)
		if err != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
			return fmt.Errorf("failed to initialize WAV writer: %w", err)
		}
		r.mu.Lock()
		r.tempFile = tempFile
		r.tempPath = tempFile.Name()
		r.wavWriter = wavWriter
		r.mu.Unlock()
	}

	source, err := r.device.Open(deviceID, opts.SampleRate)
	if err != nil {
		return fmt.Errorf("failed to open capture device: %w", err)
	}

	r.mu.Lock()
	r.source = source
	r.sessionID = uuid.New().String()
	r.startTime = time.Now()
	r.markers = nil
	r.warnings = nil
	r.deviceErr = nil
	r.producerDone = make(chan struct{})
	r.pumpStop = make(chan struct{})
	r.pumpDone = make(chan struct{})
	r.status = StatusRecording
	sessionID := r.sessionID
	r.mu.Unlock()

	go r.producer()
	go r.pump()

	if r.metrics != nil {
		r.metrics.RecordSessionStarted()
	}
	r.logger.Info("recording started",
		"session_id", sessionID,
		"device", deviceID,
		"sample_rate", opts.SampleRate,
		"translation", opts.EnableTranslation)
	return nil
}

// rollback tears down partial start state and returns the recorder to Idle.
// Safe to call with any subset of components initialized.
func (r *Recorder) rollback() {
	r.mu.Lock()
	source := r.source
	coordinator := r.coordinator
	tempFile := r.tempFile
	tempPath := r.tempPath
	ring := r.ring
	r.source = nil
	r.coordinator = nil
	r.dispatcher = nil
	r.detector = nil
	r.ring = nil
	r.wavWriter = nil
	r.tempFile = nil
	r.tempPath = ""
	r.sessionID = ""
	r.startTime = time.Time{}
	r.status = StatusIdle
	r.mu.Unlock()

	if source != nil {
		source.Close()
	}
	if coordinator != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		coordinator.Shutdown(ctx)
		cancel()
	}
	if tempFile != nil {
		tempFile.Close()
		os.Remove(tempPath)
	}
	if ring != nil {
		ring.Clear()
	}
}

// producer drains capture frames into the ring buffer and, when recording
// to disk, the streaming WAV writer. It never blocks on downstream
// processing.
func (r *Recorder) producer() {
	defer close(r.producerDone)

	var writeFailed bool
	for frame := range r.source.Frames() {
		r.ring.Append(frame.Samples)

		if r.wavWriter != nil && !writeFailed {
			if err := r.wavWriter.WriteSamples(frame.Samples); err != nil {
				writeFailed = true
				r.addWarning(fmt.Sprintf("recording write failed, audio file will be incomplete: %v", err))
				r.logger.Error("failed to write recording", "error", err)
			}
		}
		if r.metrics != nil {
			r.metrics.RecordFrame(len(frame.Samples))
		}
	}

	if err := r.source.Err(); err != nil {
		r.mu.Lock()
		r.deviceErr = err
		if r.status == StatusRecording {
			r.status = StatusFailed
		}
		r.mu.Unlock()
		r.addWarning(fmt.Sprintf("capture device lost: %v", err))
		if r.metrics != nil {
			r.metrics.RecordDeviceFailure()
			r.metrics.RecordSessionFailed()
		}
		r.logger.Error("capture device failed", "error", err)
	}
}

// pump periodically feeds fresh buffer windows through the VAD and
// dispatcher, submitting emitted segments to the pipeline.
func (r *Recorder) pump() {
	defer close(r.pumpDone)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.pumpStop:
			return
		case <-ticker.C:
			r.processWindow(r.cfg.Audio.GetWindowDuration(), r.cfg.Audio.GetWindowOverlap())
			if r.metrics != nil {
				s := r.coordinator.Stats()
				r.metrics.SetQueueDepths(s.TranscriptionQueueDepth, s.TranslationQueueDepth)
			}
		}
	}
}

// processWindow runs one VAD pass over the most recent audio.
func (r *Recorder) processWindow(duration, overlap time.Duration) {
	window, err := r.ring.Window(duration, overlap)
	if err != nil || len(window.Samples) == 0 {
		return
	}

	spans := r.detector.Spans(window.Samples)
	if r.metrics != nil {
		hasVoice := false
		for _, s := range spans {
			if s.Speech {
				hasVoice = true
				break
			}
		}
		r.metrics.RecordVADWindow(hasVoice)
	}

	segments, err := r.dispatcher.Observe(window.Start, window.Samples, spans)
	if err != nil {
		r.logger.Error("segment dispatch failed", "error", err)
		return
	}
	for _, seg := range segments {
		r.submitSegment(seg)
	}
}

func (r *Recorder) submitSegment(seg *audio.SpeechSegment) {
	if r.metrics != nil {
		r.metrics.RecordSegmentEmitted(seg.Duration().Seconds())
	}

	err := r.coordinator.Submit(seg)
	if err == nil {
		return
	}

	var saturated *pipeline.QueueSaturatedError
	if errors.As(err, &saturated) {
		// Drop policy: losing one segment beats stalling capture.
		r.addWarning(fmt.Sprintf("segment at %v dropped: %v", seg.StartOffset, err))
		if r.metrics != nil {
			r.metrics.RecordSegmentDropped()
		}
		r.logger.Warn("segment dropped, transcription queue saturated",
			"segment_start", seg.StartOffset)
		return
	}
	if !errors.Is(err, pipeline.ErrInputClosed) {
		r.logger.Error("segment submit failed", "error", err)
	}
}

// AddMarker pins a labeled marker at the current audio offset. Valid only
// while recording.
func (r *Recorder) AddMarker(label string) (Marker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusRecording {
		return Marker{}, fmt.Errorf("cannot add marker: session is %s", r.status)
	}

	marker := Marker{
		Offset:    audio.SamplesToDuration(r.ring.Total(), r.opts.SampleRate),
		Timestamp: time.Now(),
		Label:     label,
	}
	r.markers = append(r.markers, marker)
	return marker, nil
}

// TranscriptStream returns a live stream of transcript segments. Must be
// called after Start.
func (r *Recorder) TranscriptStream() (<-chan engine.TranscriptSegment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.coordinator == nil {
		return nil, fmt.Errorf("no active session")
	}
	return r.coordinator.SubscribeTranscript(), nil
}

// TranslationStream returns a live stream of translation segments.
func (r *Recorder) TranslationStream() (<-chan engine.TranslationSegment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.coordinator == nil {
		return nil, fmt.Errorf("no active session")
	}
	return r.coordinator.SubscribeTranslation(), nil
}

// Stop ends the session: flush pending speech, drain the pipeline within
// the configured budget, finalize artifacts, and reset to Idle. Stopping a
// Failed session still finalizes whatever was captured.
func (r *Recorder) Stop(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	if r.status != StatusRecording && r.status != StatusFailed {
		status := r.status
		r.mu.Unlock()
		return nil, fmt.Errorf("cannot stop: session is %s", status)
	}
	r.status = StatusStopping
	sessionID := r.sessionID
	r.mu.Unlock()

	r.logger.Info("stopping recording", "session_id", sessionID)

	// Stop the input side and wait for the producer to finish writing.
	r.source.Close()
	<-r.producerDone
	close(r.pumpStop)
	<-r.pumpDone

	// Final drain: everything retained in the ring that the ticker has not
	// seen yet, then flush the open span so short tails are never lost.
	r.processWindow(r.cfg.Audio.GetRingCapacity(), 0)
	if seg, err := r.dispatcher.Flush(); err != nil {
		r.addWarning(fmt.Sprintf("failed to flush pending speech: %v", err))
	} else if seg != nil {
		r.submitSegment(seg)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, r.cfg.Pipeline.GetShutdownTimeout())
	report := r.coordinator.Shutdown(shutdownCtx)
	cancel()

	for _, w := range report.Warnings {
		r.addWarning(w)
		if r.metrics != nil {
			r.metrics.RecordShutdownTimeout()
		}
	}
	if r.metrics != nil {
		for _, seg := range r.coordinator.Transcript() {
			r.metrics.RecordTranscription(seg.Failed)
		}
		for _, seg := range r.coordinator.Translation() {
			r.metrics.RecordTranslation(seg.Failed)
		}
		r.metrics.RecordEvictions(r.ring.Stats().Evicted)
		r.metrics.RecordNoiseDiscarded(r.dispatcher.Stats().NoiseDiscarded)
		r.metrics.SetQueueDepths(0, 0)
	}

	// Pipeline drained: the session is stopped while artifacts are written.
	r.mu.Lock()
	r.status = StatusStopped
	r.mu.Unlock()

	result := r.finalize(ctx)

	if r.metrics != nil {
		r.metrics.RecordSessionStopped(result.Duration.Seconds())
	}
	r.logger.Info("recording stopped",
		"session_id", result.SessionID,
		"duration", result.Duration,
		"transcribed", len(result.Transcript),
		"warnings", len(result.Warnings))

	r.reset()
	return result, nil
}

// finalize produces the session artifacts and result payload.
func (r *Recorder) finalize(ctx context.Context) *Result {
	r.mu.Lock()
	endTime := time.Now()
	result := &Result{
		SessionID: r.sessionID,
		StartTime: r.startTime,
		EndTime:   endTime,
		Duration:  audio.SamplesToDuration(r.ring.Total(), r.opts.SampleRate),
		Markers:   append([]Marker(nil), r.markers...),
	}
	opts := r.opts
	r.mu.Unlock()

	result.Transcript = r.coordinator.Transcript()
	result.Translation = r.coordinator.Translation()

	baseName := fmt.Sprintf("%s_%s", r.cfg.Output.Prefix, result.StartTime.Format("20060102_150405"))

	if opts.SaveRecording && r.wavWriter != nil {
		r.saveRecording(ctx, result, baseName, opts.RecordingFormat)
	}

	if opts.SaveTranscript && len(result.Transcript) > 0 {
		text := formatTranscript(result.Transcript)
		if path, err := r.store.SaveText(text, baseName+"_transcript.txt"); err != nil {
			r.addWarning(fmt.Sprintf("failed to save transcript: %v", err))
		} else {
			result.TranscriptPath = path
		}

		if opts.EnableTranslation && len(result.Translation) > 0 {
			text := formatTranslation(result.Translation)
			if path, err := r.store.SaveText(text, baseName+"_translation.txt"); err != nil {
				r.addWarning(fmt.Sprintf("failed to save translation: %v", err))
			} else {
				result.TranslationPath = path
			}
		}
	}

	if len(result.Markers) > 0 {
		data, err := json.MarshalIndent(result.Markers, "", "  ")
		if err == nil {
			if path, saveErr := r.store.Save(data, baseName+"_markers.json"); saveErr != nil {
				r.addWarning(fmt.Sprintf("failed to save markers: %v", saveErr))
			} else {
				result.MarkersPath = path
			}
		}
	}

	if opts.CreateCalendarEvent {
		r.createCalendarEvent(ctx, result)
	}

	r.mu.Lock()
	result.Warnings = append([]string(nil), r.warnings...)
	r.mu.Unlock()
	return result
}

// saveRecording finalizes the streamed WAV and moves it into the store,
// converting to MP3 first when requested and ffmpeg is available.
func (r *Recorder) saveRecording(ctx context.Context, result *Result, baseName, format string) {
	if err := r.wavWriter.Finalize(); err != nil {
		r.addWarning(fmt.Sprintf("failed to finalize recording: %v", err))
		r.tempFile.Close()
		os.Remove(r.tempPath)
		return
	}
	if err := r.tempFile.Close(); err != nil {
		r.addWarning(fmt.Sprintf("failed to close recording file: %v", err))
		os.Remove(r.tempPath)
		return
	}

	if format == "mp3" {
		mp3Path, err := convertToMP3(ctx, r.tempPath)
		if err == nil {
			os.Remove(r.tempPath)
			if path, adoptErr := r.store.Adopt(mp3Path, baseName+".mp3"); adoptErr != nil {
				r.addWarning(fmt.Sprintf("failed to store MP3 recording: %v", adoptErr))
				os.Remove(mp3Path)
			} else {
				result.RecordingPath = path
			}
			return
		}
		// MP3 unavailability is a degradation, not a failure: keep WAV.
		r.addWarning(fmt.Sprintf("mp3 export unavailable, saved WAV instead: %v", err))
	}

	if path, err := r.store.Adopt(r.tempPath, baseName+".wav"); err != nil {
		r.addWarning(fmt.Sprintf("failed to store recording: %v", err))
		os.Remove(r.tempPath)
	} else {
		result.RecordingPath = path
	}
}

func (r *Recorder) createCalendarEvent(ctx context.Context, result *Result) {
	if r.cal == nil {
		r.addWarning("calendar event requested but no calendar collaborator configured")
		return
	}

	var attachments []string
	for _, p := range []string{result.RecordingPath, result.TranscriptPath, result.TranslationPath} {
		if p != "" {
			attachments = append(attachments, p)
		}
	}

	eventID, err := r.cal.CreateEvent(ctx, calendar.Event{
		Title:       fmt.Sprintf("Recording %s", result.StartTime.Format("2006-01-02 15:04")),
		Description: fmt.Sprintf("Recorded session %s (%v)", result.SessionID, result.Duration.Round(time.Second)),
		Start:       result.StartTime,
		End:         result.EndTime,
	}, attachments)
	if err != nil {
		// Calendar failures never fail the stop.
		r.addWarning(fmt.Sprintf("failed to create calendar event: %v", err))
		return
	}
	result.EventID = eventID
}

// reset returns the recorder to Idle so it can record again.
func (r *Recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring = nil
	r.detector = nil
	r.dispatcher = nil
	r.coordinator = nil
	r.source = nil
	r.wavWriter = nil
	r.tempFile = nil
	r.tempPath = ""
	r.sessionID = ""
	r.startTime = time.Time{}
	r.markers = nil
	r.warnings = nil
	r.deviceErr = nil
	r.opts = Options{}
	r.status = StatusIdle
}

func (r *Recorder) addWarning(w string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
}

// convertToMP3 shells out to ffmpeg. Returns the converted path.
func convertToMP3(ctx context.Context, wavPath string) (string, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return "", fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	mp3Path := strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + ".mp3"
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", wavPath,
		"-codec:a", "libmp3lame",
		"-qscale:a", "2",
		mp3Path)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(mp3Path)
		return "", fmt.Errorf("ffmpeg failed: %w: %s", err, string(out))
	}
	return mp3Path, nil
}

// formatTranscript renders transcript segments as timestamped lines.
func formatTranscript(segments []engine.TranscriptSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		text := seg.Text
		if seg.Failed {
			text = "[transcription failed]"
		}
		fmt.Fprintf(&b, "[%s - %s] %s\n", formatOffset(seg.Start), formatOffset(seg.End), text)
	}
	return b.String()
}

// formatTranslation renders translation segments as timestamped lines.
func formatTranslation(segments []engine.TranslationSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		text := seg.Text
		if seg.Failed {
			text = "[translation failed]"
		}
		fmt.Fprintf(&b, "[%s] %s\n", formatOffset(seg.Start), text)
	}
	return b.String()
}

func formatOffset(d time.Duration) string {
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	ms := (d % time.Second) / time.Millisecond
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
	}
	return fmt.Sprintf("%02d:%02d.%03d", m, s, ms)
}
