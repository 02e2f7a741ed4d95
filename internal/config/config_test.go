package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
audio:
  sample_rate: 44100
segmenter:
  silence_duration_ms: 1500
translation:
  enabled: true
  endpoint: http://localhost:9000/translate
  target_language: uk
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Segmenter.GetSilenceDuration() != 1500*time.Millisecond {
		t.Errorf("Expected silence 1.5s, got %v", cfg.Segmenter.GetSilenceDuration())
	}
	if !cfg.Translation.Enabled || cfg.Translation.TargetLanguage != "uk" {
		t.Errorf("Translation section not applied: %+v", cfg.Translation)
	}

	// Untouched sections keep defaults.
	if cfg.Audio.RingCapacitySeconds != 60 {
		t.Errorf("Expected default ring capacity 60, got %d", cfg.Audio.RingCapacitySeconds)
	}
	if cfg.Pipeline.GetShutdownTimeout() != 5*time.Second {
		t.Errorf("Expected default shutdown timeout 5s, got %v", cfg.Pipeline.GetShutdownTimeout())
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"negative sample rate", "audio:\n  sample_rate: -1\n"},
		{"overlap not below duration", "audio:\n  window_duration_ms: 1000\n  window_overlap_ms: 1000\n"},
		{"bad vad threshold", "vad:\n  threshold: 1.5\n"},
		{"zero silence", "segmenter:\n  silence_duration_ms: 0\n"},
		{"translation without target", "translation:\n  enabled: true\n  target_language: \"\"\n"},
		{"bad recording format", "output:\n  recording_format: flac\n"},
		{"bad log level", "logging:\n  level: verbose\n"},
		{"bad port", "http:\n  enabled: true\n  port: 99999\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := Load(path); err == nil {
				t.Errorf("Expected %s to be rejected", tc.name)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "audio: [not a map")
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestHTTPAddress(t *testing.T) {
	cfg := Default()
	if got := cfg.HTTP.Address(); got != "0.0.0.0:8080" {
		t.Errorf("Expected 0.0.0.0:8080, got %s", got)
	}
}
