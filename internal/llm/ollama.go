package llm

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/hearthlabs/hearth/pkg/Logger"
)

// OllamaBackend runs local inference through the Ollama chat API.
type OllamaBackend struct {
	client *api.Client
	model  string
	logger *Logger.Logger
}

func NewOllamaBackend(baseURL, model string, logger *Logger.Logger) (*OllamaBackend, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url: %w", err)
	}

	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		},
	}

	return &OllamaBackend{
		client: api.NewClient(parsed, httpClient),
		model:  model,
		logger: logger,
	}, nil
}

func (b *OllamaBackend) Name() string { return "ollama" }

func (b *OllamaBackend) chatRequest(msgs []Message, maxTokens int, temperature float64) *api.ChatRequest {
	converted := make([]api.Message, 0, len(msgs))
	for _, m := range msgs {
		converted = append(converted, api.Message{Role: m.Role, Content: m.Content})
	}
	stream := true
	return &api.ChatRequest{
		Model:    b.model,
		Messages: converted,
		Stream:   &stream,
		Options: map[string]any{
			"num_predict": maxTokens,
			"temperature": temperature,
		},
	}
}

// GenerateBatch streams internally but returns only the assembled text.
func (b *OllamaBackend) GenerateBatch(ctx context.Context, msgs []Message, maxTokens int, temperature float64) (*BatchResult, error) {
	var parts []string
	tokens := 0
	start := time.Now()
	firstToken := time.Time{}

	handler := func(resp api.ChatResponse) error {
		if firstToken.IsZero() && resp.Message.Content != "" {
			firstToken = time.Now()
			b.logger.Infow("llm_first_token", "ttft_ms", firstToken.Sub(start).Milliseconds())
		}
		if resp.Message.Content != "" {
			parts = append(parts, resp.Message.Content)
		}
		if resp.Done {
			tokens = resp.EvalCount
		}
		return nil
	}

	if err := b.client.Chat(ctx, b.chatRequest(msgs, maxTokens, temperature), handler); err != nil {
		return nil, fmt.Errorf("ollama chat failed: %w", err)
	}

	return &BatchResult{
		Text:       strings.Join(parts, ""),
		Model:      b.model,
		TokensUsed: tokens,
	}, nil
}

// GenerateStreaming splits the token stream at sentence boundaries and emits
// each completed sentence immediately, then flushes the remainder as the
// single final chunk.
func (b *OllamaBackend) GenerateStreaming(ctx context.Context, msgs []Message, maxTokens int, temperature float64, emit func(SentenceChunk)) error {
	splitter := &SentenceSplitter{}
	tokens := 0
	start := time.Now()
	firstToken := time.Time{}

	handler := func(resp api.ChatResponse) error {
		if firstToken.IsZero() && resp.Message.Content != "" {
			firstToken = time.Now()
			b.logger.Infow("llm_first_token", "ttft_ms", firstToken.Sub(start).Milliseconds())
		}
		for _, sentence := range splitter.Push(resp.Message.Content) {
			b.logger.Infow("llm_sentence_complete", "sentence", sentencePreview(sentence))
			emit(SentenceChunk{Sentence: sentence})
		}
		if resp.Done {
			tokens = resp.EvalCount
		}
		return nil
	}

	if err := b.client.Chat(ctx, b.chatRequest(msgs, maxTokens, temperature), handler); err != nil {
		return fmt.Errorf("ollama chat failed: %w", err)
	}

	emit(SentenceChunk{Sentence: splitter.Flush(), IsFinal: true, TokensUsed: tokens})
	return nil
}

// HealthCheck verifies the model is present, pulling it when missing.
func (b *OllamaBackend) HealthCheck(ctx context.Context) bool {
	list, err := b.client.List(ctx)
	if err != nil {
		b.logger.Warnw("ollama_health_check_failed", "error", err)
		return false
	}
	for _, m := range list.Models {
		if m.Name == b.model || strings.Contains(m.Name, b.model) {
			return true
		}
	}

	b.logger.Infow("pulling_ollama_model", "model", b.model)
	err = b.client.Pull(ctx, &api.PullRequest{Model: b.model}, func(api.ProgressResponse) error { return nil })
	if err != nil {
		b.logger.Warnw("ollama_model_pull_failed", "model", b.model, "error", err)
		return false
	}
	return true
}

func (b *OllamaBackend) Close() error { return nil }

func sentencePreview(s string) string {
	if len(s) > 50 {
		return s[:50]
	}
	return s
}
