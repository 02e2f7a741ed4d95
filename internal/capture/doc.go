// Package capture defines the audio capture device abstraction consumed by
// the recording session, with a WAV-file playback device and a scripted
// in-memory device. Real microphone backends plug in behind the same
// Device/FrameSource interfaces.
package capture
