package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hearthlabs/hearth/pkg/Logger"
	"github.com/hearthlabs/hearth/pkg/audio"
)

// PiperClient talks to a Piper TTS HTTP service that streams raw sample
// chunks for a given text.
type PiperClient struct {
	baseURL    string
	voice      string
	httpClient *http.Client
	logger     *Logger.Logger
}

func NewPiperClient(baseURL, voice string, logger *Logger.Logger) *PiperClient {
	return &PiperClient{
		baseURL:    baseURL,
		voice:      voice,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type piperRequest struct {
	Text  string         `json:"text"`
	Voice string         `json:"voice,omitempty"`
	Audio map[string]any `json:"audio,omitempty"`
}

// Synthesize returns the concatenated raw PCM samples for the text at
// Piper's native 22.05 kHz mono signed-16 format.
func (p *PiperClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}

	body, _ := json.Marshal(piperRequest{
		Text:  text,
		Voice: p.voice,
		Audio: map[string]any{
			"format":   "pcm_s16le",
			"rate":     audio.SynthesisSampleRate,
			"channels": 1,
		},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/tts", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tts http %d: %s", resp.StatusCode, string(b))
	}

	// The service streams sample chunks; reading the body to completion
	// concatenates them.
	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	return pcm, nil
}

// Available probes the voice service at startup. Failure is non-fatal: the
// worker degrades to silence synthesis.
func (p *PiperClient) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
