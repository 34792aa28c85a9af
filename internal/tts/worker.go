package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hearthlabs/hearth/internal/bus"
	"github.com/hearthlabs/hearth/internal/messages"
	"github.com/hearthlabs/hearth/internal/metrics"
	"github.com/hearthlabs/hearth/pkg/Logger"
	"github.com/hearthlabs/hearth/pkg/audio"
)

// Publisher is the slice of the stream bus the worker writes through.
type Publisher interface {
	Publish(ctx context.Context, stream string, record any) (string, error)
}

// Synthesizer produces raw PCM samples for a sentence.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Silence fallback length: ~50 ms per character of text.
const silenceMSPerChar = 50

// Worker consumes sentence synthesis requests in consumer-group order and
// publishes WAV results for the gateway.
type Worker struct {
	pub         Publisher
	synthesizer Synthesizer
	logger      *Logger.Logger
}

func NewWorker(pub Publisher, synthesizer Synthesizer, logger *Logger.Logger) *Worker {
	return &Worker{pub: pub, synthesizer: synthesizer, logger: logger}
}

// Run blocks consuming the TTS request stream until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, client *bus.Client) error {
	return client.Consume(ctx, bus.StreamTTSRequests, bus.GroupTTS, "tts-main", w.HandleRequest)
}

// HandleRequest synthesizes one sentence. A synthesizer failure degrades to
// silence of proportional length so the downstream contract holds.
func (w *Worker) HandleRequest(ctx context.Context, messageID string, data []byte) error {
	var req messages.TTSRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("bad tts request %s: %w", messageID, err)
	}
	if strings.TrimSpace(req.Text) == "" {
		w.logger.Warnw("empty_tts_request", "request_id", req.RequestID)
		return nil
	}

	w.logger.Infow("synthesizing_speech", "request_id", req.RequestID, "text_length", len(req.Text))

	start := time.Now()
	wav, durationMS := w.synthesize(ctx, req.Text)
	latencyMS := int(time.Since(start).Milliseconds())
	metrics.TTSLatency.Observe(time.Since(start).Seconds())

	w.logger.Infow("speech_synthesized",
		"request_id", req.RequestID,
		"audio_duration_ms", durationMS,
		"latency_ms", latencyMS,
	)

	result := messages.TTSResult{
		RequestID:  req.RequestID,
		DeviceID:   req.DeviceID,
		SessionID:  req.SessionID,
		Audio:      wav,
		DurationMS: durationMS,
		LatencyMS:  latencyMS,
		Text:       req.Text,
		UIHints:    messages.UIHints{ShowText: true, Mood: "neutral"},
	}

	if _, err := w.pub.Publish(ctx, bus.StreamAudioOutbound, result); err != nil {
		metrics.BusErrors.WithLabelValues("tts").Inc()
		return fmt.Errorf("failed to publish tts result: %w", err)
	}
	return nil
}

// synthesize returns the encoded WAV and its playback duration, degrading to
// silence on synthesizer failure.
func (w *Worker) synthesize(ctx context.Context, text string) ([]byte, int) {
	pcm, err := w.synthesizer.Synthesize(ctx, text)
	if err != nil || len(pcm) == 0 {
		if err != nil {
			w.logger.Warnw("synthesis_failed_using_silence", "error", err)
		}
		durationMS := silenceMSPerChar * len(text)
		return audio.SilenceWAV(durationMS, audio.SynthesisSampleRate), durationMS
	}

	durationMS := audio.WAVDurationMS(len(pcm), audio.SynthesisSampleRate)
	return audio.EncodeWAV(pcm, audio.SynthesisSampleRate), durationMS
}
