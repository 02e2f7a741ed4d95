package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Segmenter     SegmenterConfig     `yaml:"segmenter"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Translation   TranslationConfig   `yaml:"translation"`
	Output        OutputConfig        `yaml:"output"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AudioConfig contains capture and buffering settings.
type AudioConfig struct {
	SampleRate          int `yaml:"sample_rate"`
	RingCapacitySeconds int `yaml:"ring_capacity_seconds"`
	WindowDurationMs    int `yaml:"window_duration_ms"`
	WindowOverlapMs     int `yaml:"window_overlap_ms"`
}

// VADConfig contains voice activity detection settings.
type VADConfig struct {
	Threshold       float32 `yaml:"threshold"`
	FrameDurationMs int     `yaml:"frame_duration_ms"`
}

// SegmenterConfig contains segment dispatch settings.
type SegmenterConfig struct {
	SilenceDurationMs    int `yaml:"silence_duration_ms"`
	MinSpeechDurationMs  int `yaml:"min_speech_duration_ms"`
	MaxSegmentDurationMs int `yaml:"max_segment_duration_ms"`
	LookbackMs           int `yaml:"lookback_ms"`
}

// PipelineConfig contains queue and shutdown settings.
type PipelineConfig struct {
	TranscriptionQueueSize int `yaml:"transcription_queue_size"`
	TranslationQueueSize   int `yaml:"translation_queue_size"`
	SubscriberBuffer       int `yaml:"subscriber_buffer"`
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

// TranscriptionConfig contains speech engine client settings.
type TranscriptionConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Language       string `yaml:"language"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	MaxConcurrent  int    `yaml:"max_concurrent"`
}

// TranslationConfig contains translation engine client settings.
type TranslationConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	TargetLanguage string `yaml:"target_language"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// OutputConfig contains artifact persistence settings.
type OutputConfig struct {
	Directory           string `yaml:"directory"`
	Prefix              string `yaml:"prefix"`
	RecordingFormat     string `yaml:"recording_format"`
	SaveRecording       bool   `yaml:"save_recording"`
	SaveTranscript      bool   `yaml:"save_transcript"`
	CreateCalendarEvent bool   `yaml:"create_calendar_event"`
}

// HTTPConfig contains monitoring server settings.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:          16000,
			RingCapacitySeconds: 60,
			WindowDurationMs:    1000,
			WindowOverlapMs:     0,
		},
		VAD: VADConfig{
			Threshold:       0.3,
			FrameDurationMs: 30,
		},
		Segmenter: SegmenterConfig{
			SilenceDurationMs:    2000,
			MinSpeechDurationMs:  300,
			MaxSegmentDurationMs: 30000,
			LookbackMs:           750,
		},
		Pipeline: PipelineConfig{
			TranscriptionQueueSize: 32,
			TranslationQueueSize:   32,
			SubscriberBuffer:       64,
			ShutdownTimeoutSeconds: 5,
		},
		Transcription: TranscriptionConfig{
			Endpoint:       "http://localhost:8090/transcribe",
			Language:       "en",
			TimeoutSeconds: 30,
			MaxRetries:     3,
			MaxConcurrent:  4,
		},
		Translation: TranslationConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:8090/translate",
			TargetLanguage: "en",
			TimeoutSeconds: 15,
			MaxRetries:     3,
		},
		Output: OutputConfig{
			Directory:       "./recordings",
			Prefix:          "rec",
			RecordingFormat: "wav",
			SaveRecording:   true,
			SaveTranscript:  true,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}
	if err := c.Segmenter.Validate(); err != nil {
		return fmt.Errorf("segmenter config: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}
	if err := c.Translation.Validate(); err != nil {
		return fmt.Errorf("translation config: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks audio configuration.
func (c *AudioConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.RingCapacitySeconds <= 0 {
		return fmt.Errorf("ring_capacity_seconds must be positive, got %d", c.RingCapacitySeconds)
	}
	if c.WindowDurationMs <= 0 {
		return fmt.Errorf("window_duration_ms must be positive, got %d", c.WindowDurationMs)
	}
	if c.WindowOverlapMs < 0 {
		return fmt.Errorf("window_overlap_ms must not be negative, got %d", c.WindowOverlapMs)
	}
	if c.WindowOverlapMs >= c.WindowDurationMs {
		return fmt.Errorf("window_overlap_ms %d must be strictly less than window_duration_ms %d",
			c.WindowOverlapMs, c.WindowDurationMs)
	}
	return nil
}

// Validate checks VAD configuration.
func (c *VADConfig) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", c.Threshold)
	}
	if c.FrameDurationMs <= 0 {
		return fmt.Errorf("frame_duration_ms must be positive, got %d", c.FrameDurationMs)
	}
	return nil
}

// Validate checks segmenter configuration.
func (c *SegmenterConfig) Validate() error {
	if c.SilenceDurationMs <= 0 {
		return fmt.Errorf("silence_duration_ms must be positive, got %d", c.SilenceDurationMs)
	}
	if c.MinSpeechDurationMs < 0 {
		return fmt.Errorf("min_speech_duration_ms must not be negative, got %d", c.MinSpeechDurationMs)
	}
	if c.MaxSegmentDurationMs < 0 {
		return fmt.Errorf("max_segment_duration_ms must not be negative, got %d", c.MaxSegmentDurationMs)
	}
	if c.LookbackMs < 0 {
		return fmt.Errorf("lookback_ms must not be negative, got %d", c.LookbackMs)
	}
	return nil
}

// Validate checks pipeline configuration.
func (c *PipelineConfig) Validate() error {
	if c.TranscriptionQueueSize <= 0 {
		return fmt.Errorf("transcription_queue_size must be positive, got %d", c.TranscriptionQueueSize)
	}
	if c.TranslationQueueSize <= 0 {
		return fmt.Errorf("translation_queue_size must be positive, got %d", c.TranslationQueueSize)
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("shutdown_timeout_seconds must be positive, got %d", c.ShutdownTimeoutSeconds)
	}
	return nil
}

// Validate checks transcription configuration.
func (c *TranscriptionConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	return nil
}

// Validate checks translation configuration.
func (c *TranslationConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty when translation is enabled")
	}
	if c.TargetLanguage == "" {
		return fmt.Errorf("target_language cannot be empty when translation is enabled")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}
	return nil
}

// Validate checks output configuration.
func (c *OutputConfig) Validate() error {
	if c.Directory == "" {
		return fmt.Errorf("directory cannot be empty")
	}
	if c.Prefix == "" {
		return fmt.Errorf("prefix cannot be empty")
	}
	if c.RecordingFormat != "wav" && c.RecordingFormat != "mp3" {
		return fmt.Errorf("recording_format must be wav or mp3, got %q", c.RecordingFormat)
	}
	return nil
}

// Validate checks HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Validate checks logging configuration.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error; got %q", c.Level)
	}
	switch c.Format {
	case "json", "text":
	default:
		return fmt.Errorf("format must be json or text, got %q", c.Format)
	}
	return nil
}

// Duration getters.

// GetRingCapacity returns the ring buffer capacity as a duration.
func (c *AudioConfig) GetRingCapacity() time.Duration {
	return time.Duration(c.RingCapacitySeconds) * time.Second
}

// GetWindowDuration returns the analysis window size as a duration.
func (c *AudioConfig) GetWindowDuration() time.Duration {
	return time.Duration(c.WindowDurationMs) * time.Millisecond
}

// GetWindowOverlap returns the analysis window overlap as a duration.
func (c *AudioConfig) GetWindowOverlap() time.Duration {
	return time.Duration(c.WindowOverlapMs) * time.Millisecond
}

// GetFrameDuration returns the VAD frame size as a duration.
func (c *VADConfig) GetFrameDuration() time.Duration {
	return time.Duration(c.FrameDurationMs) * time.Millisecond
}

// GetSilenceDuration returns the segment-closing silence as a duration.
func (c *SegmenterConfig) GetSilenceDuration() time.Duration {
	return time.Duration(c.SilenceDurationMs) * time.Millisecond
}

// GetMinSpeechDuration returns the noise floor as a duration.
func (c *SegmenterConfig) GetMinSpeechDuration() time.Duration {
	return time.Duration(c.MinSpeechDurationMs) * time.Millisecond
}

// GetMaxSegmentDuration returns the forced-split bound as a duration.
func (c *SegmenterConfig) GetMaxSegmentDuration() time.Duration {
	return time.Duration(c.MaxSegmentDurationMs) * time.Millisecond
}

// GetLookback returns the onset lookback as a duration.
func (c *SegmenterConfig) GetLookback() time.Duration {
	return time.Duration(c.LookbackMs) * time.Millisecond
}

// GetShutdownTimeout returns the drain budget as a duration.
func (c *PipelineConfig) GetShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// GetTimeout returns the request timeout as a duration.
func (c *TranscriptionConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetTimeout returns the request timeout as a duration.
func (c *TranslationConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Address returns the monitoring server listen address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
