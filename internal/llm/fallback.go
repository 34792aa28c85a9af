package llm

import "sync"

// FallbackModel marks responses served from the static pool.
const FallbackModel = "static_fallback"

// Short reassurance phrases served in rotation when the backend fails. The
// device hears one of these instead of silence.
var fallbackResponses = []string{
	"I'm here with you.",
	"I'm listening.",
	"Tell me more about that.",
	"I understand.",
	"That sounds important.",
}

// FallbackPool hands out canned phrases round-robin.
type FallbackPool struct {
	mu  sync.Mutex
	idx int
}

func (p *FallbackPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	phrase := fallbackResponses[p.idx]
	p.idx = (p.idx + 1) % len(fallbackResponses)
	return phrase
}
