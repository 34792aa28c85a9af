package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hearthlabs/hearth/pkg/Logger"
)

// OpenAIBackend talks to an OpenAI-compatible chat completion endpoint.
// Selected with llm_backend=openai; a custom base URL points it at any
// compatible provider.
type OpenAIBackend struct {
	client openai.Client
	model  string
	logger *Logger.Logger
}

func NewOpenAIBackend(apiKey, baseURL, model string, logger *Logger.Logger) *OpenAIBackend {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIBackend{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger,
	}
}

func (b *OpenAIBackend) Name() string { return "openai" }

func convertMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			converted = append(converted, openai.SystemMessage(m.Content))
		case "assistant":
			converted = append(converted, openai.AssistantMessage(m.Content))
		default:
			converted = append(converted, openai.UserMessage(m.Content))
		}
	}
	return converted
}

func (b *OpenAIBackend) GenerateBatch(ctx context.Context, msgs []Message, maxTokens int, temperature float64) (*BatchResult, error) {
	completion, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(b.model),
		Messages:    convertMessages(msgs),
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	return &BatchResult{
		Text:       completion.Choices[0].Message.Content,
		Model:      b.model,
		TokensUsed: int(completion.Usage.CompletionTokens),
	}, nil
}

func (b *OpenAIBackend) GenerateStreaming(ctx context.Context, msgs []Message, maxTokens int, temperature float64, emit func(SentenceChunk)) error {
	stream := b.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(b.model),
		Messages:    convertMessages(msgs),
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	})

	splitter := &SentenceSplitter{}
	tokens := 0
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.CompletionTokens > 0 {
			tokens = int(chunk.Usage.CompletionTokens)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		for _, sentence := range splitter.Push(chunk.Choices[0].Delta.Content) {
			b.logger.Infow("llm_sentence_complete", "sentence", sentencePreview(sentence))
			emit(SentenceChunk{Sentence: sentence})
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai stream failed: %w", err)
	}

	emit(SentenceChunk{Sentence: splitter.Flush(), IsFinal: true, TokensUsed: tokens})
	return nil
}

func (b *OpenAIBackend) HealthCheck(ctx context.Context) bool {
	_, err := b.client.Models.List(ctx)
	if err != nil {
		b.logger.Warnw("openai_health_check_failed", "error", err)
		return false
	}
	return true
}

func (b *OpenAIBackend) Close() error { return nil }

var _ Backend = (*OpenAIBackend)(nil)
var _ Backend = (*OllamaBackend)(nil)
