package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitterBasicBoundaries(t *testing.T) {
	s := &SentenceSplitter{}

	sentences := s.Push("Hi. How are you? I'm fine")
	assert.Equal(t, []string{"Hi.", "How are you?"}, sentences)
	assert.Equal(t, "I'm fine", s.Pending())

	// Punctuation plus whitespace completes the third sentence.
	sentences = s.Push(". ")
	assert.Equal(t, []string{"I'm fine."}, sentences)
	assert.Empty(t, s.Pending())
}

func TestSplitterTokenByToken(t *testing.T) {
	s := &SentenceSplitter{}

	var sentences []string
	for _, delta := range []string{"Hel", "lo the", "re. How", " are you", "? I", "'m good"} {
		sentences = append(sentences, s.Push(delta)...)
	}

	assert.Equal(t, []string{"Hello there.", "How are you?"}, sentences)
	assert.Equal(t, "I'm good", s.Flush())
}

func TestSplitterNoBoundaryWithoutWhitespace(t *testing.T) {
	s := &SentenceSplitter{}
	// Terminal punctuation with no following whitespace stays buffered.
	assert.Empty(t, s.Push("Wait."))
	assert.Equal(t, "Wait.", s.Pending())
}

func TestSplitterExclamationAndNewline(t *testing.T) {
	s := &SentenceSplitter{}
	sentences := s.Push("Wonderful!\nLet's go! now")
	assert.Equal(t, []string{"Wonderful!", "Let's go!"}, sentences)
	assert.Equal(t, "now", s.Pending())
}

func TestSplitterKnownAbbreviationLimitation(t *testing.T) {
	s := &SentenceSplitter{}
	// "Dr. Smith" splits prematurely; accepted behavior.
	sentences := s.Push("Dr. Smith is here")
	assert.Equal(t, []string{"Dr."}, sentences)
	assert.Equal(t, "Smith is here", s.Pending())
}

func TestSplitterFlushResets(t *testing.T) {
	s := &SentenceSplitter{}
	s.Push("leftover")
	assert.Equal(t, "leftover", s.Flush())
	assert.Empty(t, s.Flush())
}

func TestFallbackPoolRotates(t *testing.T) {
	p := &FallbackPool{}

	seen := make([]string, 0, len(fallbackResponses)+1)
	for i := 0; i <= len(fallbackResponses); i++ {
		seen = append(seen, p.Next())
	}

	// Every phrase appears once, then the rotation wraps.
	assert.Equal(t, fallbackResponses, seen[:len(fallbackResponses)])
	assert.Equal(t, fallbackResponses[0], seen[len(fallbackResponses)])
}
