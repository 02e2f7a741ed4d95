package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/johnnyzhao5619/echonote-recorder/internal/audio"
)

// MemoryDevice serves scripted PCM from memory. Tests use it to drive exact
// sample patterns through a session and to simulate device loss mid-stream.
type MemoryDevice struct {
	ID         string
	SampleRate int
	Samples    []int16
	// FrameSize in samples per emitted frame. Default 1600.
	FrameSize int
	// FailAfterFrames, when positive, aborts the stream with a DeviceError
	// after that many frames, simulating an unplugged device.
	FailAfterFrames int
}

// ListDevices reports the single scripted device.
func (d *MemoryDevice) ListDevices() ([]DeviceInfo, error) {
	return []DeviceInfo{{
		ID:          d.ID,
		Name:        "memory:" + d.ID,
		SampleRates: []int{d.SampleRate},
	}}, nil
}

// Open starts delivering the scripted samples.
func (d *MemoryDevice) Open(deviceID string, sampleRate int) (FrameSource, error) {
	if deviceID != d.ID {
		return nil, &DeviceError{DeviceID: deviceID, Err: fmt.Errorf("unknown device, this backend serves %q", d.ID)}
	}
	if sampleRate != d.SampleRate {
		return nil, &DeviceError{
			DeviceID: deviceID,
			Err:      fmt.Errorf("sample rate mismatch: device is %d Hz, requested %d Hz", d.SampleRate, sampleRate),
		}
	}

	frameSize := d.FrameSize
	if frameSize <= 0 {
		frameSize = 1600
	}

	src := &memorySource{
		frames: make(chan audio.Frame),
		stop:   make(chan struct{}),
	}

	go func() {
		defer close(src.frames)
		emitted := 0
		for start := 0; start < len(d.Samples); start += frameSize {
			if d.FailAfterFrames > 0 && emitted >= d.FailAfterFrames {
				src.setErr(&DeviceError{DeviceID: d.ID, Err: fmt.Errorf("device disconnected")})
				return
			}

			end := start + frameSize
			if end > len(d.Samples) {
				end = len(d.Samples)
			}

			select {
			case src.frames <- audio.Frame{
				Samples:    d.Samples[start:end],
				Timestamp:  time.Now(),
				SampleRate: d.SampleRate,
			}:
				emitted++
			case <-src.stop:
				return
			}
		}
	}()

	return src, nil
}

type memorySource struct {
	frames chan audio.Frame
	stop   chan struct{}
	once   sync.Once

	mu  sync.Mutex
	err error
}

func (s *memorySource) Frames() <-chan audio.Frame {
	return s.frames
}

func (s *memorySource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *memorySource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *memorySource) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
