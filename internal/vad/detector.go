package vad

import (
	"context"

	"github.com/hearthlabs/hearth/pkg/Logger"
	"github.com/hearthlabs/hearth/pkg/audio"
)

// Detection is the per-chunk verdict of a voice activity detector.
type Detection struct {
	Speech      bool
	Probability float64
}

// Detector analyzes one PCM chunk for voice activity.
type Detector interface {
	Detect(ctx context.Context, pcm []byte) (Detection, error)
	Close() error
}

// Energy fallback thresholds: raw int16 RMS above this counts as speech, and
// probability is normalized against the ceiling.
const (
	energySpeechRMS  = 800.0
	energyProbeScale = 5000.0
)

// EnergyDetector is the RMS fallback used when the neural model is
// unavailable.
type EnergyDetector struct {
	logger *Logger.Logger
}

func NewEnergyDetector(logger *Logger.Logger) *EnergyDetector {
	return &EnergyDetector{logger: logger}
}

func (d *EnergyDetector) Detect(_ context.Context, pcm []byte) (Detection, error) {
	rms := audio.RMS(pcm)
	prob := rms / energyProbeScale
	if prob > 1.0 {
		prob = 1.0
	}
	return Detection{Speech: rms > energySpeechRMS, Probability: prob}, nil
}

func (d *EnergyDetector) Close() error { return nil }
