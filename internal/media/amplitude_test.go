package media

import (
	"encoding/binary"
	"testing"
)

func pcmWAV(samples ...int16) []byte {
	out := make([]byte, wavHeaderSize+len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[wavHeaderSize+i*2:], uint16(s))
	}
	return out
}

// TestAverageAmplitudeChunks checks absolute averaging per chunk.
func TestAverageAmplitudeChunks(t *testing.T) {
	wav := pcmWAV(10, -10, 20, -20, 100, 300)

	got := AverageAmplitude(wav, 3)
	want := []int{10, 20, 200}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d = %d, want %d", i, got[i], want[i])
		}
	}
}

// TestAverageAmplitudeEdgeCases checks empty input and tiny files.
func TestAverageAmplitudeEdgeCases(t *testing.T) {
	if got := AverageAmplitude(nil, 4); len(got) != 0 {
		t.Fatalf("nil input = %v, want empty", got)
	}
	if got := AverageAmplitude(pcmWAV(5), 0); len(got) != 0 {
		t.Fatalf("zero chunks = %v, want empty", got)
	}
	got := AverageAmplitude(pcmWAV(5), 4)
	if len(got) != 4 || got[0] != 0 {
		t.Fatalf("fewer samples than chunks = %v, want four zeros", got)
	}
}
