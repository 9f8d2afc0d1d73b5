package audio

import "encoding/binary"

// Resample converts 16-bit mono PCM from one sample rate to another using
// linear interpolation. Good enough for speech; not a polyphase filter.
func Resample(pcm []byte, fromRate, toRate int) []byte {
	if fromRate == toRate || len(pcm) < 2 || fromRate <= 0 || toRate <= 0 {
		return pcm
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}

	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen == 0 {
		return nil
	}

	out := make([]byte, outLen*2)
	for i := range outLen {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		var s int16
		if srcIdx >= len(samples)-1 {
			s = samples[len(samples)-1]
		} else {
			s1 := float64(samples[srcIdx])
			s2 := float64(samples[srcIdx+1])
			s = int16(s1 + frac*(s2-s1))
		}
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}
