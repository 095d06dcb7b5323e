package audio

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"
)

func sineWave(n int, freq, rate float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.8 * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	return out
}

func TestResampler_SameRate(t *testing.T) {
	r, err := NewResampler(24000, 24000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := sineWave(100, 440, 24000)
	output := r.Process(input)

	if len(output) != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), len(output))
	}
	for i := range input {
		if output[i] != input[i] {
			t.Fatalf("sample %d changed: %v != %v", i, output[i], input[i])
		}
	}
}

func TestResampler_DownsampleLength(t *testing.T) {
	r, err := NewResampler(48000, 24000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := r.Process(sineWave(4800, 440, 48000))

	// 2:1 downsampling halves the sample count, within one boundary sample.
	if len(output) < 2399 || len(output) > 2401 {
		t.Errorf("expected ~2400 output samples, got %d", len(output))
	}
}

func TestResampler_UpsampleLength(t *testing.T) {
	r, err := NewResampler(16000, 24000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := r.Process(sineWave(1600, 440, 16000))

	if len(output) < 2399 || len(output) > 2401 {
		t.Errorf("expected ~2400 output samples, got %d", len(output))
	}
}

func TestResampler_InvalidRates(t *testing.T) {
	if _, err := NewResampler(0, 24000); err == nil {
		t.Error("expected error for zero source rate")
	}
	if _, err := NewResampler(48000, -1); err == nil {
		t.Error("expected error for negative target rate")
	}
}

// Chunked resampling must be numerically equivalent to resampling the same
// input as one contiguous block; the carried phase makes block boundaries
// invisible.
func TestResampler_ChunkInvariance(t *testing.T) {
	rates := []struct{ source, target int }{
		{48000, 24000},
		{44100, 24000},
		{24000, 16000},
		{16000, 24000},
	}

	input := sineWave(9600, 523.25, 48000)
	rng := rand.New(rand.NewSource(7))

	for _, rate := range rates {
		whole, err := NewResampler(rate.source, rate.target)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expected := whole.Process(input)

		chunked, err := NewResampler(rate.source, rate.target)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got []float32
		remaining := input
		for len(remaining) > 0 {
			n := 1 + rng.Intn(777)
			if n > len(remaining) {
				n = len(remaining)
			}
			got = append(got, chunked.Process(remaining[:n])...)
			remaining = remaining[n:]
		}

		if len(got) != len(expected) {
			t.Fatalf("%d->%d: chunked output length %d != contiguous %d",
				rate.source, rate.target, len(got), len(expected))
		}
		for i := range expected {
			if math.Abs(float64(got[i]-expected[i])) > 1e-5 {
				t.Fatalf("%d->%d: sample %d diverged: %v != %v",
					rate.source, rate.target, i, got[i], expected[i])
			}
		}
	}
}

func TestResampler_EmptyInput(t *testing.T) {
	r, _ := NewResampler(48000, 24000)
	if out := r.Process(nil); out != nil {
		t.Errorf("expected nil output for empty input, got %d samples", len(out))
	}
}

func TestFloatToPCM16_Endpoints(t *testing.T) {
	out := FloatToPCM16([]float32{-1, 1, 0})

	if v := int16(binary.LittleEndian.Uint16(out[0:])); v != -32768 {
		t.Errorf("expected -1.0 -> -32768, got %d", v)
	}
	if v := int16(binary.LittleEndian.Uint16(out[2:])); v != 32767 {
		t.Errorf("expected 1.0 -> 32767, got %d", v)
	}
	if v := int16(binary.LittleEndian.Uint16(out[4:])); v != 0 {
		t.Errorf("expected 0.0 -> 0, got %d", v)
	}
}

func TestFloatToPCM16_Clamps(t *testing.T) {
	out := FloatToPCM16([]float32{-2.5, 3.1})

	if v := int16(binary.LittleEndian.Uint16(out[0:])); v != -32768 {
		t.Errorf("expected clamp to -32768, got %d", v)
	}
	if v := int16(binary.LittleEndian.Uint16(out[2:])); v != 32767 {
		t.Errorf("expected clamp to 32767, got %d", v)
	}
}

// Every 16-bit sample must survive decode->encode within one LSB; the
// endpoints are exact because of the asymmetric scale split.
func TestPCM16RoundTrip(t *testing.T) {
	input := make([]byte, 65536*2)
	for i := 0; i < 65536; i++ {
		binary.LittleEndian.PutUint16(input[i*2:], uint16(i))
	}

	floats, err := PCM16ToFloat(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := FloatToPCM16(floats)

	for i := 0; i < 65536; i++ {
		orig := int16(binary.LittleEndian.Uint16(input[i*2:]))
		got := int16(binary.LittleEndian.Uint16(output[i*2:]))

		diff := int(orig) - int(got)
		if diff < -1 || diff > 1 {
			t.Fatalf("sample %d: round trip %d -> %d exceeds 1 LSB", i, orig, got)
		}
		if (orig == math.MinInt16 || orig == math.MaxInt16) && got != orig {
			t.Fatalf("endpoint %d did not round trip exactly, got %d", orig, got)
		}
	}
}

func TestPCM16ToFloat_OddLength(t *testing.T) {
	if _, err := PCM16ToFloat([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for odd-length input")
	}
}
