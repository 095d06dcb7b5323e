package audio

import (
	"sync"
	"time"
)

// playbackQueueSize bounds the number of buffers awaiting playback.
const playbackQueueSize = 64

// playItem pairs a buffer with its completion signal.
type playItem struct {
	pcm  []byte
	done chan struct{}
}

// Player renders PCM16 buffers strictly sequentially through an Output.
// A new buffer begins only after the prior one finishes or is cleared.
// Scheduling is queue-driven, so completion of one buffer never grows the
// call stack scheduling the next.
type Player struct {
	output Output

	mu      sync.Mutex
	queue   chan playItem
	stop    chan struct{}
	closed  bool
	loopEnd chan struct{}
}

// NewPlayer creates a Player and starts its single consumer goroutine.
func NewPlayer(output Output) *Player {
	p := &Player{
		output:  output,
		queue:   make(chan playItem, playbackQueueSize),
		stop:    make(chan struct{}),
		loopEnd: make(chan struct{}),
	}
	go p.loop()
	return p
}

// Play enqueues one buffer and returns a channel closed when playback of
// that buffer completes or it is discarded by Stop/Close. A full queue
// discards the buffer immediately.
func (p *Player) Play(pcm []byte) <-chan struct{} {
	item := playItem{pcm: pcm, done: make(chan struct{})}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		close(item.done)
		return item.done
	}

	select {
	case p.queue <- item:
	default:
		// Queue full; drop rather than block the network reader.
		close(item.done)
	}
	return item.done
}

// Stop immediately terminates the in-flight buffer, if any, and discards
// every queued buffer. All completion channels are closed.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	// Interrupt the in-flight buffer.
	close(p.stop)
	p.stop = make(chan struct{})
	p.mu.Unlock()

	p.drain()
}

// Close stops playback and shuts down the consumer goroutine. Idempotent.
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stop)
	p.mu.Unlock()

	p.drain()
	close(p.queue)
	<-p.loopEnd
}

// drain discards all queued buffers, signaling their completion channels.
func (p *Player) drain() {
	for {
		select {
		case item, ok := <-p.queue:
			if !ok {
				return
			}
			close(item.done)
		default:
			return
		}
	}
}

// loop is the single playback consumer. At most one runs per Player.
func (p *Player) loop() {
	defer close(p.loopEnd)

	for item := range p.queue {
		p.mu.Lock()
		stop := p.stop
		closed := p.closed
		p.mu.Unlock()

		if closed {
			close(item.done)
			continue
		}

		_ = p.output.Play(item.pcm, stop)
		close(item.done)
	}
}

// pcmDuration returns the wall-clock duration of a PCM16 byte buffer.
func pcmDuration(byteLen, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := byteLen / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// newPlayTimer wraps time.NewTimer so SimOutput can pace real-time playback.
func newPlayTimer(d time.Duration) *time.Timer {
	return time.NewTimer(d)
}
