package audio

import (
	"encoding/binary"
	"fmt"
)

// Standard sample rates used by the engine.
const (
	SampleRate48kHz = 48000 // Common capture hardware rate
	SampleRate24kHz = 24000 // Upstream realtime audio rate
	SampleRate16kHz = 16000 // Common ASR input rate
)

const bytesPerSample = 2

// Quantization scale factors. Positive and negative ranges are scaled
// asymmetrically so that -1.0 maps exactly to -32768 and 1.0 to 32767
// without overflow.
const (
	pcmPositiveScale = 32767.0
	pcmNegativeScale = 32768.0
)

// Resampler converts a stream of float32 samples from a source rate to a
// target rate using linear interpolation. The fractional read position is
// carried across Process calls, so splitting the same input into arbitrary
// blocks produces identical output to processing it contiguously.
//
// A Resampler is not safe for concurrent use; the capture tick goroutine is
// its only caller.
type Resampler struct {
	ratio float64 // sourceRate / targetRate

	phase  float64 // next output position relative to the start of the next block
	last   float32 // final sample of the previous block, for boundary interpolation
	primed bool
}

// NewResampler creates a Resampler for the given rate pair.
func NewResampler(sourceRate, targetRate int) (*Resampler, error) {
	if sourceRate <= 0 || targetRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: source=%d, target=%d", sourceRate, targetRate)
	}
	return &Resampler{ratio: float64(sourceRate) / float64(targetRate)}, nil
}

// Process resamples one block of source samples. The returned slice is owned
// by the caller. Phase is carried, so boundaries between successive blocks do
// not produce discontinuities.
func (r *Resampler) Process(input []float32) []float32 {
	if len(input) == 0 {
		return nil
	}

	if r.ratio == 1 {
		out := make([]float32, len(input))
		copy(out, input)
		return out
	}

	// pos is the read position relative to input[0]. It may start in [-1, 0)
	// when the next output falls between the previous block's final sample
	// and input[0].
	pos := r.phase
	if !r.primed && pos < 0 {
		pos = 0
	}

	out := make([]float32, 0, int(float64(len(input))/r.ratio)+2)
	limit := float64(len(input) - 1)

	for pos <= limit {
		out = append(out, r.interpolate(input, pos))
		pos += r.ratio
	}

	r.phase = pos - float64(len(input))
	r.last = input[len(input)-1]
	r.primed = true

	return out
}

// interpolate reads the sample at a fractional position, using the carried
// final sample of the previous block for positions in [-1, 0).
func (r *Resampler) interpolate(input []float32, pos float64) float32 {
	if pos < 0 {
		frac := float32(pos + 1)
		return r.last + frac*(input[0]-r.last)
	}

	idx := int(pos)
	frac := float32(pos - float64(idx))
	if frac == 0 || idx >= len(input)-1 {
		return input[idx]
	}
	return input[idx] + frac*(input[idx+1]-input[idx])
}

// Reset clears the carried phase and boundary sample for a new stream.
func (r *Resampler) Reset() {
	r.phase = 0
	r.last = 0
	r.primed = false
}

// FloatToPCM16 quantizes normalized float32 samples to little-endian 16-bit
// PCM. Samples are clamped to [-1, 1] before scaling.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}

		var v int16
		if s < 0 {
			v = int16(float64(s) * pcmNegativeScale)
		} else {
			v = int16(float64(s) * pcmPositiveScale)
		}
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(v)) //nolint:gosec // PCM16 byte packing
	}
	return out
}

// PCM16ToFloat decodes little-endian 16-bit PCM into normalized float32
// samples, mirroring the asymmetric scaling of FloatToPCM16.
func PCM16ToFloat(data []byte) ([]float32, error) {
	if len(data)%bytesPerSample != 0 {
		return nil, fmt.Errorf("pcm data length %d is not a multiple of %d", len(data), bytesPerSample)
	}

	out := make([]float32, len(data)/bytesPerSample)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(data[i*bytesPerSample:])) //nolint:gosec // PCM16 byte unpacking
		if v < 0 {
			out[i] = float32(float64(v) / pcmNegativeScale)
		} else {
			out[i] = float32(float64(v) / pcmPositiveScale)
		}
	}
	return out, nil
}
