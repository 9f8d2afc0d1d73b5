package audio

import (
	"encoding/binary"
	"time"
)

// Capture format constants. The whole pipeline runs on 16-bit signed
// little-endian PCM, mono, at 16 kHz — the format shared by the wake scorer,
// the VAD, and the transcription boundary.
const (
	// SampleRate is the capture sample rate in Hz.
	SampleRate = 16000

	// Channels is the capture channel count. Always mono.
	Channels = 1

	// BytesPerSample is the size of one 16-bit PCM sample.
	BytesPerSample = 2

	// FrameDuration is the length of one capture frame.
	FrameDuration = 30 * time.Millisecond

	// FrameSamples is the number of samples in one capture frame.
	FrameSamples = SampleRate * 30 / 1000

	// FrameBytes is the byte length of one capture frame.
	FrameBytes = FrameSamples * BytesPerSample
)

// Frame is a single fixed-duration slice of captured audio. Frames are
// immutable once produced; ownership transfers from the capture device to
// the consumer on each read.
type Frame struct {
	// Data is raw 16-bit signed little-endian PCM.
	Data []byte

	// SampleRate in Hz.
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Samples decodes the frame's PCM bytes into int16 samples. A trailing odd
// byte is ignored.
func (f Frame) Samples() []int16 {
	n := len(f.Data) / 2
	out := make([]int16, n)
	for i := range n {
		out[i] = int16(binary.LittleEndian.Uint16(f.Data[i*2 : i*2+2]))
	}
	return out
}
