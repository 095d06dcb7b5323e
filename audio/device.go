package audio

import (
	"context"
	"errors"
	"math"
	"sync"
)

// Capture acquisition errors. These mirror the failure modes a host exposes
// when claiming a physical input device.
var (
	// ErrDeviceUnavailable indicates no input device exists.
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
	// ErrPermissionDenied indicates the user or host refused device access.
	ErrPermissionDenied = errors.New("audio input permission denied")
	// ErrDeviceBusy indicates the device is claimed by another consumer.
	ErrDeviceBusy = errors.New("audio input device busy")
	// ErrUnsupportedConstraints indicates the requested channel or rate
	// constraints cannot be honored by the device.
	ErrUnsupportedConstraints = errors.New("unsupported capture constraints")
	// ErrClosingInProgress is returned when initialization is attempted
	// while a teardown is still running.
	ErrClosingInProgress = errors.New("pipeline teardown in progress")
	// ErrNotInitialized is returned when capture is started before a
	// successful initialization.
	ErrNotInitialized = errors.New("pipeline not initialized")
)

// CaptureConstraints describe the stream requested from an input device.
type CaptureConstraints struct {
	// SampleRate is the native rate the device should deliver, in Hz.
	SampleRate int
	// Channels is the requested channel count. The pipeline is mono.
	Channels int
}

// InputDevice abstracts a physical audio input. Implementations hold an
// exclusive claim between Acquire and Release; a second Acquire without an
// intervening Release fails with ErrDeviceBusy.
type InputDevice interface {
	// Acquire claims the device with the given constraints.
	Acquire(ctx context.Context, constraints CaptureConstraints) error

	// Read fills buf with normalized float32 samples at the acquired rate
	// and returns the number of samples written. It never blocks longer
	// than one capture interval.
	Read(buf []float32) (int, error)

	// Release frees the device claim. Safe to call when not acquired.
	Release() error
}

// Output abstracts an audio sink. Play renders one PCM16 buffer and returns
// when rendering finishes or stop is closed, whichever comes first.
type Output interface {
	Play(pcm []byte, stop <-chan struct{}) error
}

// SimDevice is a deterministic InputDevice for tests and headless use.
// It synthesizes a sine tone at a configurable frequency and amplitude.
type SimDevice struct {
	// Frequency of the generated tone in Hz. Zero produces silence.
	Frequency float64
	// Amplitude of the generated tone, in [0, 1].
	Amplitude float64
	// FailWith, when set, is returned by Acquire to simulate a device error.
	FailWith error

	mu       sync.Mutex
	acquired bool
	rate     int
	phase    float64
}

// Acquire claims the simulated device.
func (d *SimDevice) Acquire(_ context.Context, constraints CaptureConstraints) error {
	if d.FailWith != nil {
		return d.FailWith
	}
	if constraints.SampleRate <= 0 || constraints.Channels != 1 {
		return ErrUnsupportedConstraints
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.acquired {
		return ErrDeviceBusy
	}
	d.acquired = true
	d.rate = constraints.SampleRate
	return nil
}

// Read synthesizes the next block of samples.
func (d *SimDevice) Read(buf []float32) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.acquired {
		return 0, ErrNotInitialized
	}

	if d.Frequency == 0 || d.Amplitude == 0 {
		for i := range buf {
			buf[i] = 0
		}
		return len(buf), nil
	}

	step := 2 * math.Pi * d.Frequency / float64(d.rate)
	for i := range buf {
		buf[i] = float32(d.Amplitude * math.Sin(d.phase))
		d.phase += step
	}
	return len(buf), nil
}

// Release frees the simulated device.
func (d *SimDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquired = false
	d.phase = 0
	return nil
}

// SimOutput is an Output that renders buffers in real time against a wall
// clock, or instantly when Instant is set. Used by tests and headless runs.
type SimOutput struct {
	// SampleRate of inbound PCM16 buffers, in Hz.
	SampleRate int
	// Instant skips real-time pacing so tests run fast.
	Instant bool

	mu     sync.Mutex
	played [][]byte
}

// Play renders one buffer.
func (o *SimOutput) Play(pcm []byte, stop <-chan struct{}) error {
	if !o.Instant {
		d := pcmDuration(len(pcm), o.SampleRate)
		timer := newPlayTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-stop:
			o.record(pcm)
			return nil
		}
	}
	o.record(pcm)
	return nil
}

// Played returns the buffers rendered so far.
func (o *SimOutput) Played() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([][]byte, len(o.played))
	copy(out, o.played)
	return out
}

func (o *SimOutput) record(pcm []byte) {
	o.mu.Lock()
	o.played = append(o.played, pcm)
	o.mu.Unlock()
}
