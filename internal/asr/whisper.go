package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/hearthlabs/hearth/pkg/Logger"
	"github.com/hearthlabs/hearth/pkg/audio"
)

// TranscriptionSegment is one recognized sub-segment of an utterance.
type TranscriptionSegment struct {
	ID         int     `json:"id"`
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	AvgLogprob float64 `json:"avg_logprob"`
}

// TranscriptionResponse is the recognizer's JSON output.
type TranscriptionResponse struct {
	Text     string                 `json:"text"`
	Language string                 `json:"language"`
	Segments []TranscriptionSegment `json:"segments,omitempty"`
}

// Confidence derives a [0,1] score as the mean of exp(avg_logprob) across
// segments; no segments means no confidence.
func (r TranscriptionResponse) Confidence() float64 {
	if len(r.Segments) == 0 {
		return 0
	}
	var sum float64
	for _, seg := range r.Segments {
		sum += math.Exp(seg.AvgLogprob)
	}
	return sum / float64(len(r.Segments))
}

// WhisperClient talks to a faster-whisper webservice over multipart HTTP.
type WhisperClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *Logger.Logger
}

func NewWhisperClient(baseURL string, logger *Logger.Logger) *WhisperClient {
	return &WhisperClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Transcribe sends 16 kHz mono signed-16 PCM for recognition and returns the
// parsed response. The recognizer runs its own VAD filter to strip residual
// silence around the utterance.
func (w *WhisperClient) Transcribe(ctx context.Context, pcm []byte) (*TranscriptionResponse, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("no audio provided")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio_file", "utterance.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio.EncodeWAV(pcm, audio.CaptureSampleRate)); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	params := url.Values{}
	params.Set("task", "transcribe")
	params.Set("language", "en")
	params.Set("beam_size", "5")
	params.Set("vad_filter", "true")
	params.Set("min_silence_duration_ms", "500")
	params.Set("speech_pad_ms", "200")
	params.Set("output", "json")

	requestURL := fmt.Sprintf("%s/asr?%s", w.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper service returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	var tr TranscriptionResponse
	if err := json.Unmarshal(responseBody, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse whisper response: %w", err)
	}
	if tr.Language == "" {
		tr.Language = "en"
	}
	return &tr, nil
}
