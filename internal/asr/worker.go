package asr

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
)

// Publisher is the slice of the stream bus the worker writes through.
type Publisher interface {
	Publish(ctx context.Context, stream string, record any) (string, error)
}

// Recognizer turns an utterance's PCM into text.
type Recognizer interface {
	Transcribe(ctx context.Context, pcm []byte) (*TranscriptionResponse, error)
}

// Worker consumes segmented utterances and publishes transcripts.
type Worker struct {
	pub        Publisher
	recognizer Recognizer
	logger     *Logger.Logger
}

func NewWorker(pub Publisher, recognizer Recognizer, logger *Logger.Logger) *Worker {
	return &Worker{pub: pub, recognizer: recognizer, logger: logger}
}

// Run blocks consuming the segments stream until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, client *bus.Client) error {
	return client.Consume(ctx, bus.StreamAudioSegments, bus.GroupASR, "asr-main", w.HandleUtterance)
}

// HandleUtterance transcribes one utterance. Engine failures are logged and
// skipped; empty transcriptions are dropped silently.
func (w *Worker) HandleUtterance(ctx context.Context, messageID string, data []byte) error {
	var utt messages.Utterance
	if err := json.Unmarshal(data, &utt); err != nil {
		return fmt.Errorf("bad utterance %s: %w", messageID, err)
	}
	if len(utt.Audio) == 0 {
		w.logger.Warnw("empty_audio_segment", "device_id", utt.DeviceID)
		return nil
	}

	start := time.Now()
	result, err := w.recognizer.Transcribe(ctx, utt.Audio)
	if err != nil {
		w.logger.Errorw("asr_processing_error", "message_id", messageID, "error", err)
		return nil
	}

	processingMS := int(time.Since(start).Milliseconds())
	confidence := result.Confidence()
	text := strings.TrimSpace(result.Text)

	metrics.ASRLatency.Observe(time.Since(start).Seconds())
	metrics.ASRConfidence.Observe(confidence)

	w.logger.Infow("transcription_complete",
		"device_id", utt.DeviceID,
		"text", preview(text),
		"confidence", confidence,
		"processing_ms", processingMS,
	)

	if text == "" {
		w.logger.Debugw("empty_transcription", "device_id", utt.DeviceID)
		return nil
	}

	transcript := messages.Transcript{
		DeviceID:     utt.DeviceID,
		SessionID:    utt.SessionID,
		Text:         text,
		Confidence:   confidence,
		Language:     result.Language,
		ProcessingMS: processingMS,
	}

	if _, err := w.pub.Publish(ctx, bus.StreamTranscripts, transcript); err != nil {
		metrics.BusErrors.WithLabelValues("asr").Inc()
		return fmt.Errorf("failed to publish transcript: %w", err)
	}
	return nil
}

func preview(s string) string {
	if len(s) > 50 {
		return s[:50] + "..."
	}
	return s
}
