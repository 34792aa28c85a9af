package llm

import (
	"context"
	"errors"

	"github.com/hearthlabs/hearth/internal/messages"
)

// ErrStreamingUnsupported signals that a backend only implements batch
// generation; the worker falls back to GenerateBatch.
var ErrStreamingUnsupported = errors.New("backend does not support streaming")

// Message is one chat turn as fed to a backend.
type Message = messages.ChatMessage

// BatchResult is the outcome of a single blocking generation.
type BatchResult struct {
	Text       string
	Model      string
	TokensUsed int
}

// SentenceChunk is one unit of a streamed generation: a completed sentence,
// or the terminal marker. Exactly one chunk per request has IsFinal set.
type SentenceChunk struct {
	Sentence   string
	IsFinal    bool
	TokensUsed int
}

// Backend is the capability set a language model implementation exposes.
// Implementations are selected by configuration; adding a provider means
// adding an implementation without touching the worker.
type Backend interface {
	Name() string
	GenerateBatch(ctx context.Context, msgs []Message, maxTokens int, temperature float64) (*BatchResult, error)
	// GenerateStreaming invokes emit for each sentence as the model streams
	// tokens, ending with exactly one IsFinal chunk. Returns
	// ErrStreamingUnsupported when the backend is batch-only.
	GenerateStreaming(ctx context.Context, msgs []Message, maxTokens int, temperature float64, emit func(SentenceChunk)) error
	HealthCheck(ctx context.Context) bool
	Close() error
}
