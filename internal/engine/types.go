package engine

import (
	"context"
	"fmt"
	"time"
)

// TranscriptSegment is the transcription result for one speech segment.
// Start/End carry the segment's unpadded audio offsets so the final
// transcript can be ordered and concatenated by timestamp. Failed marks a
// placeholder emitted when the engine could not transcribe the segment.
type TranscriptSegment struct {
	Start  time.Duration `json:"start"`
	End    time.Duration `json:"end"`
	Text   string        `json:"text"`
	Failed bool          `json:"failed,omitempty"`
}

// TranslationSegment is the translation result for one transcript segment.
type TranslationSegment struct {
	Start  time.Duration `json:"start"`
	Text   string        `json:"text"`
	Failed bool          `json:"failed,omitempty"`
}

// SpeechEngine converts audio into text. TranscribeStream is the live path
// fed by the pipeline; TranscribeFile is the post-hoc path for an already
// saved recording.
type SpeechEngine interface {
	TranscribeStream(ctx context.Context, samples []int16, language string, sampleRate int) (string, error)
	TranscribeFile(ctx context.Context, path string, language string) (string, error)
}

// TranslationEngine converts text between languages.
type TranslationEngine interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error)
}

// EngineError wraps a failure from an external capability provider.
type EngineError struct {
	Provider string
	Op       string
	Err      error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
