package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// Default VAD parameter values.
const (
	DefaultVADConfidence = 0.5
	DefaultVADStartSecs  = 0.2
	DefaultVADStopSecs   = 0.8
	DefaultVADMinVolume  = 0.01

	vadEventBufferSize = 16
	vadSmoothingAlpha  = 0.3
	vadMaxExpectedRMS  = 0.5
)

// VADState represents the current voice activity state.
type VADState int

const (
	// VADQuiet indicates no voice activity detected.
	VADQuiet VADState = iota
	// VADStarting indicates voice is starting (within the start threshold).
	VADStarting
	// VADSpeaking indicates active speech.
	VADSpeaking
	// VADStopping indicates voice is stopping (within the stop threshold).
	VADStopping
)

// String returns a human-readable representation of the VAD state.
func (s VADState) String() string {
	switch s {
	case VADQuiet:
		return "quiet"
	case VADStarting:
		return "starting"
	case VADSpeaking:
		return "speaking"
	case VADStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// VADEvent records a state transition.
type VADEvent struct {
	State     VADState
	PrevState VADState
	Timestamp time.Time
}

// VADParams configures voice activity detection.
type VADParams struct {
	// Confidence threshold for voice detection, 0.0-1.0.
	Confidence float64
	// StartSecs is seconds of speech required before VADSpeaking.
	// Prevents false starts from brief noise.
	StartSecs float64
	// StopSecs is seconds of silence required before VADQuiet.
	// Allows natural pauses without ending the turn.
	StopSecs float64
	// MinVolume is the minimum RMS treated as non-silence.
	MinVolume float64
}

// DefaultVADParams returns sensible defaults for local turn detection.
func DefaultVADParams() VADParams {
	return VADParams{
		Confidence: DefaultVADConfidence,
		StartSecs:  DefaultVADStartSecs,
		StopSecs:   DefaultVADStopSecs,
		MinVolume:  DefaultVADMinVolume,
	}
}

// SimpleVAD detects voice activity from RMS volume of PCM16 frames. It is
// used when the engine runs local turn detection instead of relying on the
// upstream service's voice activity signals.
type SimpleVAD struct {
	params VADParams

	mu          sync.RWMutex
	state       VADState
	stateStart  time.Time
	smoothedRMS float64
	events      chan VADEvent
}

// NewSimpleVAD creates a SimpleVAD with the given parameters.
func NewSimpleVAD(params VADParams) *SimpleVAD {
	return &SimpleVAD{
		params:     params,
		state:      VADQuiet,
		stateStart: time.Now(),
		events:     make(chan VADEvent, vadEventBufferSize),
	}
}

// Analyze processes one PCM16 frame and returns the voice probability.
func (v *SimpleVAD) Analyze(pcm []byte) float64 {
	if len(pcm) < bytesPerSample {
		return 0
	}

	rms := pcmRMS(pcm)

	v.mu.Lock()
	v.smoothedRMS = vadSmoothingAlpha*rms + (1-vadSmoothingAlpha)*v.smoothedRMS
	smoothed := v.smoothedRMS
	v.mu.Unlock()

	probability := v.probability(smoothed)
	v.updateState(probability)
	return probability
}

// State returns the current VAD state.
func (v *SimpleVAD) State() VADState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Events returns a channel receiving state transitions. The channel is
// buffered and drops events when not consumed.
func (v *SimpleVAD) Events() <-chan VADEvent {
	return v.events
}

// Reset clears accumulated state for a new conversation.
func (v *SimpleVAD) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state = VADQuiet
	v.stateStart = time.Now()
	v.smoothedRMS = 0

	for len(v.events) > 0 {
		<-v.events
	}
}

func (v *SimpleVAD) probability(rms float64) float64 {
	if rms <= v.params.MinVolume {
		return 0
	}
	p := (rms - v.params.MinVolume) / (vadMaxExpectedRMS - v.params.MinVolume)
	return math.Min(math.Max(p, 0), 1)
}

func (v *SimpleVAD) updateState(probability float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()
	inState := now.Sub(v.stateStart).Seconds()
	next := v.nextState(v.state, probability >= v.params.Confidence, inState)
	if next == v.state {
		return
	}

	event := VADEvent{State: next, PrevState: v.state, Timestamp: now}
	v.state = next
	v.stateStart = now

	select {
	case v.events <- event:
	default:
	}
}

func (v *SimpleVAD) nextState(current VADState, voiced bool, inStateSecs float64) VADState {
	switch current {
	case VADQuiet:
		if voiced {
			return VADStarting
		}
	case VADStarting:
		if !voiced {
			return VADQuiet
		}
		if inStateSecs >= v.params.StartSecs {
			return VADSpeaking
		}
	case VADSpeaking:
		if !voiced {
			return VADStopping
		}
	case VADStopping:
		if voiced {
			return VADSpeaking
		}
		if inStateSecs >= v.params.StopSecs {
			return VADQuiet
		}
	}
	return current
}

// pcmRMS computes the root mean square of a PCM16 buffer, normalized to [0, 1].
func pcmRMS(pcm []byte) float64 {
	numSamples := len(pcm) / bytesPerSample
	if numSamples == 0 {
		return 0
	}

	var sumSquares float64
	for i := 0; i < numSamples; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:])) //nolint:gosec // PCM16 unpacking
		normalized := float64(sample) / pcmNegativeScale
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(numSamples))
}
