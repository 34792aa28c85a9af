package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hearthlabs/hearth/internal/bus"
	"github.com/hearthlabs/hearth/internal/messages"
	"github.com/hearthlabs/hearth/internal/metrics"
	"github.com/hearthlabs/hearth/internal/orchestrator/prompts"
	"github.com/hearthlabs/hearth/internal/orchestrator/rules"
	"github.com/hearthlabs/hearth/internal/orchestrator/store"
	"github.com/hearthlabs/hearth/pkg/Logger"
)

// Publisher is the slice of the stream bus the worker writes through.
type Publisher interface {
	Publish(ctx context.Context, stream string, record any) (string, error)
}

const (
	historyWindow = 10

	reactiveMaxTokens    = 60
	reactiveTemperature  = 0.7
	proactiveMaxTokens   = 100
	proactiveTemperature = 0.8

	proactiveInterval = time.Minute

	// The base station serves a single companion device.
	defaultDeviceID = "companion-001"
)

// Worker is the pipeline's brain: it enriches transcripts into LLM requests,
// persists both sides of the conversation, and drives proactive check-ins.
type Worker struct {
	pub              Publisher
	store            *store.Store
	prompts          *prompts.Builder
	rules            *rules.Engine
	proactiveEnabled bool
	logger           *Logger.Logger
}

func NewWorker(pub Publisher, st *store.Store, engine *rules.Engine, proactiveEnabled bool, logger *Logger.Logger) *Worker {
	return &Worker{
		pub:              pub,
		store:            st,
		prompts:          prompts.NewBuilder(),
		rules:            engine,
		proactiveEnabled: proactiveEnabled,
		logger:           logger,
	}
}

// Run starts the transcript consumer, the response consumer, and the
// proactive loop, blocking until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, client *bus.Client) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.Consume(ctx, bus.StreamTranscripts, bus.GroupOrchestrator, "orchestrator-main", w.HandleTranscript)
	})
	g.Go(func() error {
		return client.Consume(ctx, bus.StreamLLMResponses, bus.GroupOrchestratorResponses, "orchestrator-resp", w.HandleLLMResponse)
	})
	g.Go(func() error {
		return w.runProactiveLoop(ctx)
	})

	return g.Wait()
}

// HandleTranscript turns one transcript into an enriched LLM request and
// persists the user turn.
func (w *Worker) HandleTranscript(ctx context.Context, messageID string, data []byte) error {
	var transcript messages.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return fmt.Errorf("bad transcript %s: %w", messageID, err)
	}
	text := strings.TrimSpace(transcript.Text)
	if text == "" {
		return nil
	}

	w.logger.Infow("processing_transcript", "text", preview(text))

	profile, err := w.store.GetUserProfile(transcript.DeviceID)
	if err != nil {
		return err
	}
	history, err := w.store.History(transcript.SessionID, historyWindow)
	if err != nil {
		return err
	}
	plan, err := w.store.GetCarePlan(profile.UserID)
	if err != nil {
		return err
	}

	if err := w.store.UpdateDeviceActivity(transcript.DeviceID, profile.UserID); err != nil {
		w.logger.Errorw("device_activity_update_failed", "device_id", transcript.DeviceID, "error", err)
	}

	request := messages.LLMRequest{
		RequestID:           uuid.NewString(),
		DeviceID:            transcript.DeviceID,
		SessionID:           transcript.SessionID,
		UserID:              profile.UserID,
		UserMessage:         text,
		ConversationHistory: history,
		UserProfile:         profile,
		CarePlan:            plan,
		SystemPrompt:        w.prompts.BuildSystemPrompt(profile, plan),
		MaxTokens:           reactiveMaxTokens,
		Temperature:         reactiveTemperature,
	}

	// The user turn is persisted before dispatch so the next request's
	// history window includes it.
	if err := w.store.AddTurn(transcript.SessionID, profile.UserID, "user", text); err != nil {
		return err
	}

	if _, err := w.pub.Publish(ctx, bus.StreamLLMRequests, request); err != nil {
		metrics.BusErrors.WithLabelValues("orchestrator").Inc()
		return fmt.Errorf("failed to publish llm request: %w", err)
	}

	w.logger.Debugw("llm_request_sent", "request_id", request.RequestID)
	return nil
}

// HandleLLMResponse persists the assistant turn. Sentence-level TTS dispatch
// already happened inside the LLM worker, so no forwarding occurs here.
func (w *Worker) HandleLLMResponse(ctx context.Context, messageID string, data []byte) error {
	var resp messages.LLMResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("bad llm response %s: %w", messageID, err)
	}

	w.logger.Infow("llm_response_received", "text", preview(resp.Text), "is_fallback", resp.IsFallback)

	profile, err := w.store.GetUserProfile(resp.DeviceID)
	if err != nil {
		return err
	}
	if err := w.store.AddTurn(resp.SessionID, profile.UserID, "assistant", resp.Text); err != nil {
		return err
	}
	return nil
}

// runProactiveLoop evaluates the rule set once a minute and dispatches an
// independent request per triggered rule.
func (w *Worker) runProactiveLoop(ctx context.Context) error {
	if !w.proactiveEnabled {
		w.logger.Info("proactive_rules_disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	w.logger.Info("proactive_rules_engine_started")
	ticker := time.NewTicker(proactiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			triggered := w.rules.Evaluate(defaultDeviceID, now, w.store)
			for _, rule := range triggered {
				if err := w.executeProactiveRule(ctx, defaultDeviceID, rule); err != nil {
					w.logger.Errorw("proactive_rule_error", "rule_name", rule.Name, "error", err)
				}
			}
		}
	}
}

func (w *Worker) executeProactiveRule(ctx context.Context, deviceID string, rule rules.Rule) error {
	w.logger.Infow("executing_proactive_rule", "rule_name", rule.Name)

	profile, err := w.store.GetUserProfile(deviceID)
	if err != nil {
		return err
	}

	sessionID := fmt.Sprintf("%s-proactive-%d", deviceID, time.Now().Unix())
	request := messages.LLMRequest{
		RequestID:    uuid.NewString(),
		DeviceID:     deviceID,
		SessionID:    sessionID,
		UserID:       profile.UserID,
		UserMessage:  fmt.Sprintf("[PROACTIVE:%s] %s", rule.Name, rule.Prompt),
		UserProfile:  profile,
		SystemPrompt: w.prompts.BuildProactivePrompt(profile, rule),
		MaxTokens:    proactiveMaxTokens,
		Temperature:  proactiveTemperature,
	}

	if _, err := w.pub.Publish(ctx, bus.StreamLLMRequests, request); err != nil {
		metrics.BusErrors.WithLabelValues("orchestrator").Inc()
		return fmt.Errorf("failed to publish proactive request: %w", err)
	}
	return nil
}

func preview(s string) string {
	if len(s) > 50 {
		return s[:50]
	}
	return s
}
