package media

import "encoding/binary"

// wavHeaderSize is the canonical RIFF header length written by ffmpeg for PCM.
const wavHeaderSize = 44

// AverageAmplitude splits a 16-bit mono PCM WAV into chunks and returns the
// mean absolute sample value of each chunk.
func AverageAmplitude(wav []byte, chunks int) []int {
	if chunks <= 0 || len(wav) <= wavHeaderSize {
		return []int{}
	}

	pcm := wav[wavHeaderSize:]
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		v := int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		if v < 0 {
			v = -v
		}
		samples[i] = v
	}

	out := make([]int, chunks)
	size := len(samples) / chunks
	if size == 0 {
		return out
	}
	for i := 0; i < chunks; i++ {
		sum := 0
		for _, v := range samples[i*size : (i+1)*size] {
			sum += v
		}
		out[i] = sum / size
	}
	return out
}
