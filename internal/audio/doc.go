// Package audio provides the time-bounded ring buffer, PCM frame and speech
// segment types, and WAV encoding used by the recording pipeline. All buffer
// reads hand out owned copies, never live aliases into the storage arena.
package audio
