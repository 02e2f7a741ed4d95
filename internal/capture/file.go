package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/johnnyzhao5619/echonote-recorder/internal/audio"
)

// FileDevice plays a mono PCM-16 WAV file back as a capture device. With
// Realtime set, frames are paced at wall-clock speed; otherwise they are
// delivered as fast as the consumer drains them.
type FileDevice struct {
	Path     string
	Realtime bool
	// FrameDuration is the size of emitted frames. Default 100ms.
	FrameDuration time.Duration
}

// ListDevices reports the single file-backed device.
func (d *FileDevice) ListDevices() ([]DeviceInfo, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, &DeviceError{DeviceID: d.Path, Err: err}
	}
	_, rate, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, &DeviceError{DeviceID: d.Path, Err: err}
	}

	return []DeviceInfo{{
		ID:          d.Path,
		Name:        filepath.Base(d.Path),
		SampleRates: []int{rate},
	}}, nil
}

// Open starts playback of the file. The requested sample rate must match the
// file's native rate.
func (d *FileDevice) Open(deviceID string, sampleRate int) (FrameSource, error) {
	if deviceID != d.Path {
		return nil, &DeviceError{DeviceID: deviceID, Err: fmt.Errorf("unknown device, this backend serves %q", d.Path)}
	}

	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, &DeviceError{DeviceID: deviceID, Err: err}
	}
	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, &DeviceError{DeviceID: deviceID, Err: fmt.Errorf("failed to decode WAV: %w", err)}
	}
	if rate != sampleRate {
		return nil, &DeviceError{
			DeviceID: deviceID,
			Err:      fmt.Errorf("sample rate mismatch: file is %d Hz, requested %d Hz", rate, sampleRate),
		}
	}

	frameDuration := d.FrameDuration
	if frameDuration <= 0 {
		frameDuration = 100 * time.Millisecond
	}
	frameSize := int(audio.DurationToSamples(frameDuration, rate))
	if frameSize < 1 {
		frameSize = 1
	}

	src := &fileSource{
		frames: make(chan audio.Frame),
		stop:   make(chan struct{}),
	}

	go func() {
		defer close(src.frames)
		for start := 0; start < len(samples); start += frameSize {
			end := start + frameSize
			if end > len(samples) {
				end = len(samples)
			}

			frame := audio.Frame{
				Samples:    samples[start:end],
				Timestamp:  time.Now(),
				SampleRate: rate,
			}

			if d.Realtime {
				select {
				case <-time.After(frame.Duration()):
				case <-src.stop:
					return
				}
			}

			select {
			case src.frames <- frame:
			case <-src.stop:
				return
			}
		}
	}()

	return src, nil
}

type fileSource struct {
	frames chan audio.Frame
	stop   chan struct{}
	once   sync.Once
}

func (s *fileSource) Frames() <-chan audio.Frame {
	return s.frames
}

// Err is always nil for file playback: a fully played file is a normal end
// of stream, not a device failure.
func (s *fileSource) Err() error {
	return nil
}

func (s *fileSource) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
