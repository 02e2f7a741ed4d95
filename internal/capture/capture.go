package capture

import (
	"fmt"

	"github.com/johnnyzhao5619/echonote-recorder/internal/audio"
)

// DeviceInfo describes a selectable capture device.
type DeviceInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SampleRates []int  `json:"sample_rates"`
}

// Device enumerates and opens capture sources.
type Device interface {
	ListDevices() ([]DeviceInfo, error)
	Open(deviceID string, sampleRate int) (FrameSource, error)
}

// FrameSource is an open capture stream. Frames is closed when the stream
// ends; Err reports the cause when the end was a device failure.
type FrameSource interface {
	Frames() <-chan audio.Frame
	Err() error
	Close() error
}

// DeviceError wraps a capture device failure.
type DeviceError struct {
	DeviceID string
	Err      error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture device %q: %v", e.DeviceID, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
