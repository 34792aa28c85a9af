package audio

import (
	"encoding/binary"
	"math"
)

// Pipeline capture format: 16 kHz mono signed-16 little-endian.
const (
	CaptureSampleRate = 16000
	// Piper output format.
	SynthesisSampleRate = 22050
)

// DecodePCM converts signed-16 little-endian bytes to float32 samples
// normalized to [-1, 1].
func DecodePCM(data []byte) []float32 {
	n := len(data) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// RMS computes the root-mean-square energy of raw int16 samples. Used by the
// energy fallback detector, which thresholds on raw sample magnitude.
func RMS(data []byte) float64 {
	n := len(data) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(data[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
