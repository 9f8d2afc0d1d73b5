package audio_test

import (
	"bytes"
	"testing"

	"github.com/oakmund/hearth/pkg/audio"
)

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	wav := audio.EncodeWAV(pcm, audio.SampleRate, 1)

	got, rate, channels, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("pcm = %v, want %v", got, pcm)
	}
	if rate != audio.SampleRate {
		t.Errorf("rate = %d, want %d", rate, audio.SampleRate)
	}
	if channels != 1 {
		t.Errorf("channels = %d, want 1", channels)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	t.Parallel()
	if _, _, _, err := audio.DecodeWAV([]byte("not a wav file, just text padding....")); err == nil {
		t.Fatal("DecodeWAV accepted a non-WAV buffer")
	}
	if _, _, _, err := audio.DecodeWAV(nil); err == nil {
		t.Fatal("DecodeWAV accepted an empty buffer")
	}
}

func TestFrameSamples(t *testing.T) {
	t.Parallel()
	// Two samples: 0x0102 and -1.
	f := audio.Frame{Data: []byte{0x02, 0x01, 0xFF, 0xFF}}
	s := f.Samples()
	if len(s) != 2 {
		t.Fatalf("got %d samples, want 2", len(s))
	}
	if s[0] != 0x0102 || s[1] != -1 {
		t.Errorf("samples = %v, want [258 -1]", s)
	}
}
