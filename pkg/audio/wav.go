package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// wavHeaderSize is the size of a canonical 44-byte RIFF/WAVE header with a
// single fmt chunk followed by the data chunk.
const wavHeaderSize = 44

// EncodeWAV wraps raw 16-bit signed LE PCM in a WAV container suitable for
// the transcription boundary.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * BytesPerSample
	blockAlign := channels * BytesPerSample

	buf := make([]byte, wavHeaderSize+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[wavHeaderSize:], pcm)
	return buf
}

// DecodeWAV extracts the PCM payload and sample rate from a 16-bit PCM WAV
// buffer. Only the canonical mono/stereo PCM layout is supported; compressed
// or float formats return an error.
func DecodeWAV(wav []byte) (pcm []byte, sampleRate, channels int, err error) {
	if len(wav) < wavHeaderSize {
		return nil, 0, 0, errors.New("audio: wav buffer too short")
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, 0, errors.New("audio: not a RIFF/WAVE buffer")
	}
	if format := binary.LittleEndian.Uint16(wav[20:22]); format != 1 {
		return nil, 0, 0, fmt.Errorf("audio: unsupported wav format %d (want PCM)", format)
	}
	if bits := binary.LittleEndian.Uint16(wav[34:36]); bits != 16 {
		return nil, 0, 0, fmt.Errorf("audio: unsupported bit depth %d (want 16)", bits)
	}

	channels = int(binary.LittleEndian.Uint16(wav[22:24]))
	sampleRate = int(binary.LittleEndian.Uint32(wav[24:28]))

	// Walk chunks from offset 36 to find the data chunk; some writers insert
	// LIST or fact chunks before it.
	off := 36
	for off+8 <= len(wav) {
		id := string(wav[off : off+4])
		size := int(binary.LittleEndian.Uint32(wav[off+4 : off+8]))
		if id == "data" {
			end := off + 8 + size
			if end > len(wav) {
				end = len(wav)
			}
			return wav[off+8 : end], sampleRate, channels, nil
		}
		off += 8 + size
		if size%2 == 1 {
			off++ // chunks are word-aligned
		}
	}
	return nil, 0, 0, errors.New("audio: wav data chunk not found")
}
