package audio

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/voicebridge-ai/voicebridge/logger"
)

// Default pipeline configuration values.
const (
	DefaultSourceRate = SampleRate48kHz
	DefaultTargetRate = SampleRate24kHz
	DefaultFrameSize  = 2400 // samples per frame at the target rate (100ms at 24kHz)
)

// Frame is a fixed-size block of little-endian PCM16 samples at the target
// rate. Ownership transfers to the receiver; it is never mutated after
// production.
type Frame struct {
	Data []byte
}

// Samples returns the number of PCM16 samples in the frame.
func (f Frame) Samples() int {
	return len(f.Data) / bytesPerSample
}

// PipelineConfig configures a capture Pipeline.
type PipelineConfig struct {
	// SourceRate is the device capture rate in Hz. Defaults to DefaultSourceRate.
	SourceRate int
	// TargetRate is the emitted frame rate in Hz. Defaults to DefaultTargetRate.
	TargetRate int
	// FrameSize is the number of target-rate samples per emitted frame.
	// Defaults to DefaultFrameSize.
	FrameSize int
	// Device is the input device. Defaults to a silent SimDevice.
	Device InputDevice
	// Output is the playback sink. Defaults to a real-time SimOutput at TargetRate.
	Output Output
}

func (c *PipelineConfig) defaults() {
	if c.SourceRate == 0 {
		c.SourceRate = DefaultSourceRate
	}
	if c.TargetRate == 0 {
		c.TargetRate = DefaultTargetRate
	}
	if c.FrameSize == 0 {
		c.FrameSize = DefaultFrameSize
	}
	if c.Device == nil {
		c.Device = &SimDevice{}
	}
	if c.Output == nil {
		c.Output = &SimOutput{SampleRate: c.TargetRate}
	}
}

// Pipeline owns one input device and one playback queue. At most one capture
// stream runs at a time; playback is strictly sequential and independent of
// capture. All audio timing runs on a dedicated ticker goroutine, separate
// from the network layer.
type Pipeline struct {
	cfg PipelineConfig

	initGroup singleflight.Group
	player    *Player

	mu           sync.Mutex
	initialized  bool
	initInFlight int
	closing      bool
	capturing    bool
	stopCapture  chan struct{}
	captureDone  chan struct{}
}

// NewPipeline creates a Pipeline. Call Initialize before StartCapture.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:    cfg,
		player: NewPlayer(cfg.Output),
	}
}

// Initialize acquires the input device. Concurrent calls share one in-flight
// acquisition instead of racing for the device; a call during teardown fails
// with ErrClosingInProgress. Idempotent once successful.
func (p *Pipeline) Initialize(ctx context.Context) error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return ErrClosingInProgress
	}
	if p.initialized {
		p.mu.Unlock()
		return nil
	}
	p.initInFlight++
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.initInFlight--
		p.mu.Unlock()
	}()

	_, err, _ := p.initGroup.Do("initialize", func() (interface{}, error) {
		constraints := CaptureConstraints{
			SampleRate: p.cfg.SourceRate,
			Channels:   1,
		}
		if err := p.cfg.Device.Acquire(ctx, constraints); err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.initialized = true
		p.mu.Unlock()

		logger.Debug("capture pipeline initialized",
			"source_rate", p.cfg.SourceRate,
			"target_rate", p.cfg.TargetRate,
			"frame_size", p.cfg.FrameSize)
		return nil, nil
	})
	return err
}

// StartCapture begins producing frames to sink at the fixed interval implied
// by FrameSize and TargetRate. Requires a successful Initialize. A second
// call while capturing is a no-op.
func (p *Pipeline) StartCapture(sink chan<- Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return ErrNotInitialized
	}
	if p.capturing {
		return nil
	}

	resampler, err := NewResampler(p.cfg.SourceRate, p.cfg.TargetRate)
	if err != nil {
		return err
	}

	p.capturing = true
	p.stopCapture = make(chan struct{})
	p.captureDone = make(chan struct{})

	go p.captureLoop(sink, resampler, p.stopCapture, p.captureDone)
	return nil
}

// captureLoop runs on its own goroutine and owns all capture timing.
func (p *Pipeline) captureLoop(sink chan<- Frame, resampler *Resampler, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := time.Duration(p.cfg.FrameSize) * time.Second / time.Duration(p.cfg.TargetRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// One tick's worth of source samples.
	blockSize := p.cfg.FrameSize * p.cfg.SourceRate / p.cfg.TargetRate
	block := make([]float32, blockSize)

	var pending []float32

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		n, err := p.cfg.Device.Read(block)
		if err != nil {
			logger.Warn("capture device read failed", "error", err)
			return
		}
		if n == 0 {
			continue
		}

		pending = append(pending, resampler.Process(block[:n])...)

		for len(pending) >= p.cfg.FrameSize {
			frame := Frame{Data: FloatToPCM16(pending[:p.cfg.FrameSize])}
			pending = pending[p.cfg.FrameSize:]

			select {
			case sink <- frame:
			case <-stop:
				return
			}
		}
	}
}

// StopCapture severs the capture sink. Idempotent; does not release the
// device.
func (p *Pipeline) StopCapture() {
	p.mu.Lock()
	if !p.capturing {
		p.mu.Unlock()
		return
	}
	p.capturing = false
	stop := p.stopCapture
	done := p.captureDone
	p.mu.Unlock()

	close(stop)
	<-done
}

// Play enqueues a decoded PCM16 buffer for sequential playback and returns a
// channel closed when the buffer finishes or is discarded.
func (p *Pipeline) Play(pcm []byte) <-chan struct{} {
	p.mu.Lock()
	player := p.player
	p.mu.Unlock()
	return player.Play(pcm)
}

// StopPlayback immediately terminates the in-flight buffer and discards the
// queue. Used on interruption so barge-in audio does not bleed the previous
// turn's tail.
func (p *Pipeline) StopPlayback() {
	p.mu.Lock()
	player := p.player
	p.mu.Unlock()
	player.Stop()
}

// Close tears down the pipeline: stops capture and playback, releases the
// device, and resets state so a later Initialize can succeed. When force is
// false, Close refuses to tear down while an initialization is in flight.
// Idempotent.
func (p *Pipeline) Close(force bool) error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return nil
	}
	if !force && p.initInFlight > 0 {
		p.mu.Unlock()
		return ErrClosingInProgress
	}
	p.closing = true
	p.mu.Unlock()

	p.StopCapture()

	p.mu.Lock()
	player := p.player
	p.mu.Unlock()
	player.Close()

	err := p.cfg.Device.Release()

	p.mu.Lock()
	p.initialized = false
	p.closing = false
	p.player = NewPlayer(p.cfg.Output)
	p.mu.Unlock()

	return err
}
