// Package audio implements the resampling capture pipeline for the voice
// session engine.
//
// The pipeline acquires a raw microphone stream, converts it to the target
// frame rate with a phase-carrying linear-interpolation resampler, and emits
// fixed-size PCM16 frames on a private channel at a fixed interval. Playback
// of inbound audio runs independently through a sequential queue so capture
// is never blocked by output.
//
// Core pieces:
//   - Resampler: streaming rate conversion that is invariant to how the
//     input is chunked
//   - Pipeline: device acquisition, capture tick loop, frame emission
//   - Player: FIFO playback queue with immediate, destructive Stop
//   - SimpleVAD: RMS-based voice activity detection for local turn detection
package audio
