package llm

import (
	"regexp"
	"strings"
)

// A sentence boundary is sentence-ending punctuation immediately followed by
// whitespace. Abbreviations ("Dr. Smith") and decimals ("3.14") are treated
// as boundaries too; known limitation.
var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

// SentenceSplitter accumulates streamed token deltas and yields completed
// sentences at boundaries, keeping any trailing fragment buffered.
type SentenceSplitter struct {
	buf string
}

// Push appends a delta and returns every sentence completed by it, trimmed.
func (s *SentenceSplitter) Push(delta string) []string {
	s.buf += delta

	var sentences []string
	last := 0
	for _, m := range sentenceBoundary.FindAllStringIndex(s.buf, -1) {
		sentence := strings.TrimSpace(s.buf[last:m[1]])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		last = m[1]
	}
	s.buf = s.buf[last:]
	return sentences
}

// Flush returns the trimmed remainder and resets the buffer. Called once at
// stream end; an empty return still requires a terminal chunk upstream.
func (s *SentenceSplitter) Flush() string {
	remainder := strings.TrimSpace(s.buf)
	s.buf = ""
	return remainder
}

// Pending reports the unflushed buffer, for observability.
func (s *SentenceSplitter) Pending() string {
	return s.buf
}
