package audio

import (
	"encoding/binary"
)

// EncodeWAV wraps raw signed-16 mono PCM bytes in a RIFF/WAVE container.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	dataLen := len(pcm)
	totalLen := 44 + dataLen

	buf := make([]byte, totalLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(totalLen-8))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[44:], pcm)

	return buf
}

// SilenceWAV produces a valid WAV of the given duration filled with silence.
func SilenceWAV(durationMS, sampleRate int) []byte {
	numSamples := sampleRate * durationMS / 1000
	return EncodeWAV(make([]byte, numSamples*2), sampleRate)
}

// WAVDurationMS returns the playback duration of mono signed-16 PCM bytes.
func WAVDurationMS(pcmLen, sampleRate int) int {
	samples := pcmLen / 2
	return samples * 1000 / sampleRate
}
