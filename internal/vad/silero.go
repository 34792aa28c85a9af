package vad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/hearthlabs/hearth/pkg/Logger"
	"github.com/hearthlabs/hearth/pkg/audio"
)

// sileroResponse is the verdict returned by the Silero VAD service.
type sileroResponse struct {
	HasVoice         bool    `json:"has_voice"`
	Confidence       float64 `json:"confidence"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
}

// SileroDetector calls a Silero VAD HTTP service for neural speech
// probability, degrading to energy detection when the service misbehaves.
type SileroDetector struct {
	serviceURL string
	threshold  float64
	httpClient *http.Client
	energy     *EnergyDetector
	logger     *Logger.Logger
}

func NewSileroDetector(serviceURL string, threshold float64, logger *Logger.Logger) *SileroDetector {
	return &SileroDetector{
		serviceURL: serviceURL,
		threshold:  threshold,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		energy:     NewEnergyDetector(logger),
		logger:     logger,
	}
}

// Available probes the service so the worker can decide at startup whether to
// run neural detection at all. Failure is non-fatal.
func (d *SileroDetector) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.serviceURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (d *SileroDetector) Detect(ctx context.Context, pcm []byte) (Detection, error) {
	det, err := d.callService(ctx, pcm)
	if err != nil {
		d.logger.Debugw("silero_call_failed_using_energy", "error", err)
		return d.energy.Detect(ctx, pcm)
	}
	return det, nil
}

func (d *SileroDetector) callService(ctx context.Context, pcm []byte) (Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "chunk.wav")
	if err != nil {
		return Detection{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio.EncodeWAV(pcm, audio.CaptureSampleRate)); err != nil {
		return Detection{}, fmt.Errorf("failed to write audio data: %w", err)
	}
	writer.WriteField("threshold", fmt.Sprintf("%.3f", d.threshold))
	writer.WriteField("sampling_rate", strconv.Itoa(audio.CaptureSampleRate))
	if err := writer.Close(); err != nil {
		return Detection{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.serviceURL+"/vad", body)
	if err != nil {
		return Detection{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Detection{}, fmt.Errorf("failed to call VAD service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return Detection{}, fmt.Errorf("vad service status %d: %s", resp.StatusCode, string(b))
	}

	var sr sileroResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return Detection{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return Detection{
		Speech:      sr.Confidence >= d.threshold,
		Probability: sr.Confidence,
	}, nil
}

func (d *SileroDetector) Close() error { return nil }
