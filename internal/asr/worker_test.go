package asr

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthlabs/hearth/internal/bus"
	"github.com/hearthlabs/hearth/internal/messages"
	"github.com/hearthlabs/hearth/pkg/Logger"
)

type fakePublisher struct {
	published []struct {
		Stream string
		Record any
	}
}

func (f *fakePublisher) Publish(_ context.Context, stream string, record any) (string, error) {
	f.published = append(f.published, struct {
		Stream string
		Record any
	}{stream, record})
	return "1-0", nil
}

type stubRecognizer struct {
	resp *TranscriptionResponse
	err  error
}

func (r *stubRecognizer) Transcribe(context.Context, []byte) (*TranscriptionResponse, error) {
	return r.resp, r.err
}

func encodeUtterance(t *testing.T, utt messages.Utterance) []byte {
	t.Helper()
	data, err := json.Marshal(utt)
	require.NoError(t, err)
	return data
}

func TestTranscriptPublished(t *testing.T) {
	pub := &fakePublisher{}
	rec := &stubRecognizer{resp: &TranscriptionResponse{
		Text:     " hello there ",
		Language: "en",
		Segments: []TranscriptionSegment{{Text: "hello there", AvgLogprob: -0.2}},
	}}
	w := NewWorker(pub, rec, Logger.New(true, "test"))

	data := encodeUtterance(t, messages.Utterance{
		DeviceID:  "companion-001",
		SessionID: "s-1",
		Audio:     make([]byte, 32000),
	})
	require.NoError(t, w.HandleUtterance(context.Background(), "1-0", data))

	require.Len(t, pub.published, 1)
	assert.Equal(t, bus.StreamTranscripts, pub.published[0].Stream)

	transcript := pub.published[0].Record.(messages.Transcript)
	assert.Equal(t, "hello there", transcript.Text)
	assert.Equal(t, "en", transcript.Language)
	assert.InDelta(t, math.Exp(-0.2), transcript.Confidence, 1e-9)
}

func TestConfidenceIsMeanOfSegmentProbs(t *testing.T) {
	resp := TranscriptionResponse{Segments: []TranscriptionSegment{
		{AvgLogprob: -0.1},
		{AvgLogprob: -0.5},
		{AvgLogprob: -1.0},
	}}
	expected := (math.Exp(-0.1) + math.Exp(-0.5) + math.Exp(-1.0)) / 3
	assert.InDelta(t, expected, resp.Confidence(), 1e-9)
}

func TestNoSegmentsMeansZeroConfidence(t *testing.T) {
	assert.Zero(t, TranscriptionResponse{}.Confidence())
}

func TestEmptyTranscriptionDroppedSilently(t *testing.T) {
	pub := &fakePublisher{}
	rec := &stubRecognizer{resp: &TranscriptionResponse{Text: "   "}}
	w := NewWorker(pub, rec, Logger.New(true, "test"))

	data := encodeUtterance(t, messages.Utterance{Audio: make([]byte, 3200)})
	require.NoError(t, w.HandleUtterance(context.Background(), "1-0", data))
	assert.Empty(t, pub.published)
}

func TestEngineErrorSkipsMessage(t *testing.T) {
	pub := &fakePublisher{}
	rec := &stubRecognizer{err: errors.New("engine crashed")}
	w := NewWorker(pub, rec, Logger.New(true, "test"))

	data := encodeUtterance(t, messages.Utterance{Audio: make([]byte, 3200)})
	// The error is swallowed so the consumer moves on and acks.
	require.NoError(t, w.HandleUtterance(context.Background(), "1-0", data))
	assert.Empty(t, pub.published)
}

func TestEmptyAudioDropped(t *testing.T) {
	pub := &fakePublisher{}
	w := NewWorker(pub, &stubRecognizer{}, Logger.New(true, "test"))

	data := encodeUtterance(t, messages.Utterance{})
	require.NoError(t, w.HandleUtterance(context.Background(), "1-0", data))
	assert.Empty(t, pub.published)
}
