package vad

import (
	"context"
	"encoding/json"
	"errors"
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

type stubDetector struct {
	detection Detection
	err       error
}

func (d *stubDetector) Detect(context.Context, []byte) (Detection, error) {
	return d.detection, d.err
}

func (d *stubDetector) Close() error { return nil }

func encodeChunk(t *testing.T, chunk messages.AudioChunk) []byte {
	t.Helper()
	data, err := json.Marshal(chunk)
	require.NoError(t, err)
	return data
}

func TestPassthroughForwardsSpeech(t *testing.T) {
	pub := &fakePublisher{}
	w := NewWorker(pub, &stubDetector{detection: Detection{Speech: true, Probability: 0.9}}, Logger.New(true, "test"))

	pcm := make([]byte, 64000) // 2 s whole-utterance frame
	data := encodeChunk(t, messages.AudioChunk{
		DeviceID:  "companion-001",
		SessionID: "s-1",
		Audio:     pcm,
	})

	require.NoError(t, w.HandleChunk(context.Background(), "1-0", data))
	require.Len(t, pub.published, 1)
	assert.Equal(t, bus.StreamAudioSegments, pub.published[0].Stream)

	utt := pub.published[0].Record.(messages.Utterance)
	assert.Equal(t, "s-1", utt.SessionID)
	assert.Equal(t, 2000, utt.DurationMS)
	assert.Len(t, []byte(utt.Audio), len(pcm))
}

func TestPassthroughDropsSilence(t *testing.T) {
	pub := &fakePublisher{}
	w := NewWorker(pub, &stubDetector{detection: Detection{Speech: false, Probability: 0.1}}, Logger.New(true, "test"))

	data := encodeChunk(t, messages.AudioChunk{SessionID: "s-1", Audio: make([]byte, 3200)})
	require.NoError(t, w.HandleChunk(context.Background(), "1-0", data))
	assert.Empty(t, pub.published)
}

func TestStreamingEmitsAfterBoundary(t *testing.T) {
	pub := &fakePublisher{}
	det := &stubDetector{detection: Detection{Speech: true, Probability: 0.8}}
	w := NewWorker(pub, det, Logger.New(true, "test"))

	ctx := context.Background()
	push := func(speech bool) {
		det.detection = Detection{Speech: speech, Probability: 0.8}
		data := encodeChunk(t, messages.AudioChunk{
			DeviceID:    "companion-001",
			SessionID:   "s-2",
			Audio:       make([]byte, 3200),
			IsStreaming: true,
		})
		require.NoError(t, w.HandleChunk(ctx, "1-0", data))
	}

	// 300 ms of speech then a full second of silence.
	for i := 0; i < 3; i++ {
		push(true)
	}
	for i := 0; i < SilenceEndChunks; i++ {
		push(false)
	}

	require.Len(t, pub.published, 1)
	utt := pub.published[0].Record.(messages.Utterance)
	assert.Equal(t, (3+SilenceEndChunks)*100, utt.DurationMS)
}

func TestStreamingTooShortProducesNothing(t *testing.T) {
	pub := &fakePublisher{}
	det := &stubDetector{}
	w := NewWorker(pub, det, Logger.New(true, "test"))

	ctx := context.Background()
	push := func(speech bool) {
		det.detection = Detection{Speech: speech, Probability: 0.6}
		data := encodeChunk(t, messages.AudioChunk{
			SessionID:   "s-3",
			Audio:       make([]byte, 3200),
			IsStreaming: true,
		})
		require.NoError(t, w.HandleChunk(ctx, "1-0", data))
	}

	// 200 ms of speech then a second of silence: below the minimum.
	push(true)
	push(true)
	for i := 0; i < SilenceEndChunks+2; i++ {
		push(false)
	}

	assert.Empty(t, pub.published)
}

func TestDetectorErrorDegradesToSilence(t *testing.T) {
	pub := &fakePublisher{}
	w := NewWorker(pub, &stubDetector{err: errors.New("model exploded")}, Logger.New(true, "test"))

	data := encodeChunk(t, messages.AudioChunk{
		SessionID:   "s-4",
		Audio:       make([]byte, 3200),
		IsStreaming: true,
	})
	require.NoError(t, w.HandleChunk(context.Background(), "1-0", data))
	assert.Empty(t, pub.published)
}

func TestMalformedChunkReturnsError(t *testing.T) {
	w := NewWorker(&fakePublisher{}, &stubDetector{}, Logger.New(true, "test"))
	assert.Error(t, w.HandleChunk(context.Background(), "1-0", []byte("{not json")))
}
