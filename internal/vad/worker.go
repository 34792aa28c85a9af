package vad

import (
	"context"
	"encoding/json"
	"fmt"
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

// Worker consumes raw audio chunks and forwards detected utterances to the
// recognition stage. Whole-utterance chunks (client-side VAD) pass through on
// a single detection; streamed chunks run the boundary state machine.
type Worker struct {
	pub      Publisher
	detector Detector
	logger   *Logger.Logger

	// Lazily created per-session segmenters; this worker is the only owner
	// of VAD session state.
	sessions map[string]*Segmenter
}

func NewWorker(pub Publisher, detector Detector, logger *Logger.Logger) *Worker {
	return &Worker{
		pub:      pub,
		detector: detector,
		logger:   logger,
		sessions: make(map[string]*Segmenter),
	}
}

// Run blocks consuming the inbound audio stream until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, client *bus.Client) error {
	return client.Consume(ctx, bus.StreamAudioInbound, bus.GroupVAD, "vad-main", w.HandleChunk)
}

// HandleChunk processes one AudioChunk record from the bus.
func (w *Worker) HandleChunk(ctx context.Context, messageID string, data []byte) error {
	var chunk messages.AudioChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return fmt.Errorf("bad audio chunk %s: %w", messageID, err)
	}
	if len(chunk.Audio) == 0 {
		w.logger.Warnw("empty_audio_chunk", "device_id", chunk.DeviceID)
		return nil
	}

	start := time.Now()
	det, err := w.detector.Detect(ctx, chunk.Audio)
	if err != nil {
		// A failed detection degrades the chunk to silence.
		w.logger.Errorw("vad_detection_error", "session_id", chunk.SessionID, "error", err)
		det = Detection{}
	}
	metrics.VADLatency.Observe(time.Since(start).Seconds())

	w.logger.Debugw("vad_result",
		"session_id", chunk.SessionID,
		"has_speech", det.Speech,
		"probability", det.Probability,
		"is_streaming", chunk.IsStreaming,
	)

	if !chunk.IsStreaming {
		return w.passthrough(ctx, chunk, det)
	}
	return w.stream(ctx, chunk, det)
}

// passthrough treats the whole chunk as one utterance when the client did its
// own boundary detection.
func (w *Worker) passthrough(ctx context.Context, chunk messages.AudioChunk, det Detection) error {
	if !det.Speech {
		w.logger.Debugw("chunk_dropped_no_speech", "session_id", chunk.SessionID)
		return nil
	}
	return w.emit(ctx, chunk.DeviceID, chunk.SessionID, chunk.Audio, det.Probability)
}

// stream feeds the chunk through the per-session boundary state machine.
func (w *Worker) stream(ctx context.Context, chunk messages.AudioChunk, det Detection) error {
	seg, ok := w.sessions[chunk.SessionID]
	if !ok {
		seg = NewSegmenter(chunk.SessionID, w.logger)
		w.sessions[chunk.SessionID] = seg
	}

	pcm, emitted := seg.Push(ctx, chunk.Audio, det.Speech)
	if !emitted {
		return nil
	}
	return w.emit(ctx, chunk.DeviceID, chunk.SessionID, pcm, det.Probability)
}

func (w *Worker) emit(ctx context.Context, deviceID, sessionID string, pcm []byte, probability float64) error {
	utt := messages.Utterance{
		DeviceID:          deviceID,
		SessionID:         sessionID,
		Audio:             pcm,
		DurationMS:        messages.PCMDurationMS(pcm),
		SpeechProbability: probability,
		EmittedAt:         time.Now().UTC(),
	}

	if _, err := w.pub.Publish(ctx, bus.StreamAudioSegments, utt); err != nil {
		metrics.BusErrors.WithLabelValues("vad").Inc()
		return fmt.Errorf("failed to publish utterance: %w", err)
	}

	metrics.UtterancesEmitted.Inc()
	w.logger.Infow("utterance_emitted",
		"session_id", sessionID,
		"duration_ms", utt.DurationMS,
	)
	return nil
}
