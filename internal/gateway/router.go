package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hearthlabs/hearth/internal/bus"
	"github.com/hearthlabs/hearth/internal/messages"
	"github.com/hearthlabs/hearth/internal/metrics"
	"github.com/hearthlabs/hearth/pkg/Logger"
)

// Publisher is the slice of the stream bus the router writes through.
type Publisher interface {
	Publish(ctx context.Context, stream string, record any) (string, error)
}

// deviceResponse is the JSON message pushed back to the companion device.
type deviceResponse struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	Text      string           `json:"text"`
	UIHints   messages.UIHints `json:"ui_hints"`
	Timestamp string           `json:"timestamp"`
	Audio     string           `json:"audio,omitempty"`
}

// AudioRouter moves audio between the device socket and the stream bus, and
// accounts pipeline latency for whole-utterance requests.
type AudioRouter struct {
	pub      Publisher
	sessions *ConnectionManager
	logger   *Logger.Logger

	mu sync.Mutex
	// session_id -> receipt time, recorded only for the non-streaming path;
	// streamed utterances start at VAD emission instead.
	pending   map[string]time.Time
	sequences map[string]int64
}

func NewAudioRouter(pub Publisher, sessions *ConnectionManager, logger *Logger.Logger) *AudioRouter {
	return &AudioRouter{
		pub:       pub,
		sessions:  sessions,
		logger:    logger,
		pending:   make(map[string]time.Time),
		sequences: make(map[string]int64),
	}
}

// RouteAudio publishes one inbound frame as an AudioChunk.
func (r *AudioRouter) RouteAudio(ctx context.Context, deviceID, sessionID string, pcm []byte, isStreaming bool) (string, error) {
	chunk := messages.AudioChunk{
		DeviceID:    deviceID,
		SessionID:   sessionID,
		Sequence:    r.nextSequence(sessionID),
		CapturedAt:  time.Now().UTC(),
		Audio:       pcm,
		DurationMS:  messages.PCMDurationMS(pcm),
		IsStreaming: isStreaming,
	}

	if !isStreaming {
		r.mu.Lock()
		r.pending[sessionID] = time.Now()
		r.mu.Unlock()
	}

	id, err := r.pub.Publish(ctx, bus.StreamAudioInbound, chunk)
	if err != nil {
		metrics.BusErrors.WithLabelValues("gateway").Inc()
		return "", fmt.Errorf("failed to route audio: %w", err)
	}

	metrics.AudioChunksReceived.WithLabelValues(deviceID).Inc()
	r.logger.Debugw("audio_routed",
		"device_id", deviceID,
		"duration_ms", chunk.DurationMS,
		"is_streaming", isStreaming,
	)
	return id, nil
}

// Run blocks consuming the outbound audio stream until ctx is cancelled.
func (r *AudioRouter) Run(ctx context.Context, client *bus.Client) error {
	r.logger.Info("response_listener_started")
	return client.Consume(ctx, bus.StreamAudioOutbound, bus.GroupGateway, "gateway-main", r.HandleOutbound)
}

// HandleOutbound forwards one synthesized result to the device and records
// pipeline latency when the session has a pending whole-utterance request.
func (r *AudioRouter) HandleOutbound(ctx context.Context, messageID string, data []byte) error {
	var result messages.TTSResult
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("bad tts result %s: %w", messageID, err)
	}

	r.recordLatency(result.SessionID)

	response := deviceResponse{
		Type:      "response",
		SessionID: result.SessionID,
		Text:      result.Text,
		UIHints:   result.UIHints,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Audio:     base64.StdEncoding.EncodeToString(result.Audio),
	}

	if !r.sessions.SendResponse(response) {
		r.logger.Warnw("response_send_failed", "reason", "device_not_connected")
		return nil
	}

	r.logger.Debugw("response_sent",
		"text_length", len(result.Text),
		"has_audio", len(result.Audio) > 0,
	)
	return nil
}

func (r *AudioRouter) recordLatency(sessionID string) {
	r.mu.Lock()
	start, ok := r.pending[sessionID]
	if ok {
		delete(r.pending, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	elapsed := time.Since(start)
	metrics.PipelineLatency.Observe(elapsed.Seconds())
	r.logger.Infow("pipeline_complete",
		"session_id", sessionID,
		"latency_ms", elapsed.Milliseconds(),
	)
}

// HasPending reports whether a session has an unanswered whole-utterance
// request.
func (r *AudioRouter) HasPending(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[sessionID]
	return ok
}

func (r *AudioRouter) nextSequence(sessionID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequences[sessionID]++
	return r.sequences[sessionID]
}
