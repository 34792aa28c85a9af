package llm

import (
	"context"
	"encoding/json"
	"errors"
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

const (
	defaultMaxTokens   = 150
	defaultTemperature = 0.7
	// Served when generation produces nothing at all.
	emptyResponseText = "I'm here for you."
)

// Worker consumes LLM requests, streams sentences to TTS as they complete,
// and publishes the full response for the orchestrator's history write.
type Worker struct {
	pub      Publisher
	backend  Backend
	model    string
	fallback FallbackPool
	logger   *Logger.Logger
}

func NewWorker(pub Publisher, backend Backend, model string, logger *Logger.Logger) *Worker {
	return &Worker{pub: pub, backend: backend, model: model, logger: logger}
}

// Run blocks consuming the request stream until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, client *bus.Client) error {
	return client.Consume(ctx, bus.StreamLLMRequests, bus.GroupLLM, "llm-main", w.HandleRequest)
}

// HandleRequest runs one generation with sentence-level fan-out to TTS.
func (w *Worker) HandleRequest(ctx context.Context, messageID string, data []byte) error {
	var req messages.LLMRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("bad llm request %s: %w", messageID, err)
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if req.Temperature <= 0 {
		req.Temperature = defaultTemperature
	}

	w.logger.Infow("processing_llm_request",
		"request_id", req.RequestID,
		"message_preview", sentencePreview(req.UserMessage),
	)

	start := time.Now()
	msgs := buildMessages(req)

	text, tokens, sentences, isFallback := w.generate(ctx, req, msgs)
	latencyMS := int(time.Since(start).Milliseconds())

	respModel := w.model
	if isFallback {
		respModel = FallbackModel
		metrics.LLMFallbacks.WithLabelValues("backend_failed").Inc()
	}

	metrics.LLMLatency.WithLabelValues(respModel, w.backend.Name()).Observe(time.Since(start).Seconds())
	if tokens > 0 {
		metrics.LLMTokensUsed.WithLabelValues(respModel).Add(float64(tokens))
	}

	w.logger.Infow("llm_complete",
		"request_id", req.RequestID,
		"latency_ms", latencyMS,
		"sentences", sentences,
		"is_fallback", isFallback,
	)

	resp := messages.LLMResponse{
		RequestID:  req.RequestID,
		DeviceID:   req.DeviceID,
		SessionID:  req.SessionID,
		Text:       text,
		Intent:     messages.IntentUnknown,
		Model:      respModel,
		LatencyMS:  latencyMS,
		TokensUsed: tokens,
		IsFallback: isFallback,
	}

	if _, err := w.pub.Publish(ctx, bus.StreamLLMResponses, resp); err != nil {
		metrics.BusErrors.WithLabelValues("llm").Inc()
		return fmt.Errorf("failed to publish llm response: %w", err)
	}
	return nil
}

// generate runs the streaming path, degrading to batch and then to the
// static fallback pool. Returns the full text, token count, sentence count
// and whether the fallback was used.
func (w *Worker) generate(ctx context.Context, req messages.LLMRequest, msgs []Message) (string, int, int, bool) {
	var parts []string
	tokens := 0
	idx := 0

	err := w.backend.GenerateStreaming(ctx, msgs, req.MaxTokens, req.Temperature, func(chunk SentenceChunk) {
		if chunk.IsFinal {
			tokens = chunk.TokensUsed
		}
		if chunk.Sentence == "" {
			return
		}
		parts = append(parts, chunk.Sentence)
		w.dispatchSentence(ctx, req, chunk.Sentence, idx)
		idx++
	})

	if errors.Is(err, ErrStreamingUnsupported) {
		return w.generateBatch(ctx, req, msgs)
	}
	if err != nil {
		w.logger.Errorw("llm_generation_failed", "request_id", req.RequestID, "error", err)
		return w.serveFallback(ctx, req)
	}

	text := emptyResponseText
	if len(parts) > 0 {
		text = strings.Join(parts, " ")
	}
	return text, tokens, len(parts), false
}

func (w *Worker) generateBatch(ctx context.Context, req messages.LLMRequest, msgs []Message) (string, int, int, bool) {
	result, err := w.backend.GenerateBatch(ctx, msgs, req.MaxTokens, req.Temperature)
	if err != nil {
		w.logger.Errorw("llm_generation_failed", "request_id", req.RequestID, "error", err)
		return w.serveFallback(ctx, req)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		text = emptyResponseText
	}
	w.dispatchWhole(ctx, req, text)
	return text, result.TokensUsed, 1, false
}

// serveFallback rotates through the canned phrases so the device still hears
// a reply when the model is down.
func (w *Worker) serveFallback(ctx context.Context, req messages.LLMRequest) (string, int, int, bool) {
	phrase := w.fallback.Next()
	w.logger.Warnw("using_static_fallback", "request_id", req.RequestID)
	w.dispatchWhole(ctx, req, phrase)
	return phrase, 0, 1, true
}

// dispatchSentence publishes one sentence for synthesis the moment it
// completes, so TTS starts before the model finishes generating.
func (w *Worker) dispatchSentence(ctx context.Context, req messages.LLMRequest, sentence string, idx int) {
	tts := messages.TTSRequest{
		RequestID: fmt.Sprintf("%s-%d", req.RequestID, idx),
		DeviceID:  req.DeviceID,
		SessionID: req.SessionID,
		Text:      sentence,
	}
	if _, err := w.pub.Publish(ctx, bus.StreamTTSRequests, tts); err != nil {
		metrics.BusErrors.WithLabelValues("llm").Inc()
		w.logger.Errorw("sentence_dispatch_failed", "request_id", tts.RequestID, "error", err)
		return
	}
	w.logger.Infow("sentence_to_tts", "idx", idx, "text", sentencePreview(sentence))
}

// dispatchWhole publishes a single synthesis request for unstreamed text
// (batch results and fallback phrases) under the parent request id.
func (w *Worker) dispatchWhole(ctx context.Context, req messages.LLMRequest, text string) {
	tts := messages.TTSRequest{
		RequestID: req.RequestID,
		DeviceID:  req.DeviceID,
		SessionID: req.SessionID,
		Text:      text,
	}
	if _, err := w.pub.Publish(ctx, bus.StreamTTSRequests, tts); err != nil {
		metrics.BusErrors.WithLabelValues("llm").Inc()
		w.logger.Errorw("tts_dispatch_failed", "request_id", tts.RequestID, "error", err)
	}
}

// buildMessages assembles the chat prompt: system turn, history oldest to
// newest, then the user message.
func buildMessages(req messages.LLMRequest) []Message {
	msgs := make([]Message, 0, len(req.ConversationHistory)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, req.ConversationHistory...)
	msgs = append(msgs, Message{Role: "user", Content: req.UserMessage})
	return msgs
}
