package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase64BytesRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x00},
		{0xff, 0x00, 0x7f, 0x80},
		make([]byte, 3200), // one 100 ms chunk of silence
	}

	for _, payload := range payloads {
		chunk := AudioChunk{Audio: payload}
		encoded, err := json.Marshal(chunk)
		require.NoError(t, err)

		var decoded AudioChunk
		require.NoError(t, json.Unmarshal(encoded, &decoded))
		assert.Equal(t, []byte(chunk.Audio), []byte(decoded.Audio))
	}
}

func TestBase64BytesMarshalsAsString(t *testing.T) {
	encoded, err := json.Marshal(Base64Bytes([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, `"AQID"`, string(encoded))
}

func TestBase64BytesRejectsInvalidPayload(t *testing.T) {
	var b Base64Bytes
	assert.Error(t, json.Unmarshal([]byte(`"not base64!!!"`), &b))
	assert.Error(t, json.Unmarshal([]byte(`42`), &b))
}

func TestPCMDurationMS(t *testing.T) {
	// 16 kHz mono s16: 32 bytes per millisecond.
	assert.Equal(t, 0, PCMDurationMS(nil))
	assert.Equal(t, 100, PCMDurationMS(make([]byte, 3200)))
	assert.Equal(t, 1000, PCMDurationMS(make([]byte, 32000)))
	assert.Equal(t, 2000, PCMDurationMS(make([]byte, 64000)))
}

func TestLLMRequestWireFormat(t *testing.T) {
	req := LLMRequest{
		RequestID:   "req-1",
		UserMessage: "hello",
		ConversationHistory: []ChatMessage{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello there"},
		},
		MaxTokens:   60,
		Temperature: 0.7,
	}

	encoded, err := json.Marshal(req)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(encoded, &raw))
	assert.Equal(t, "req-1", raw["request_id"])
	assert.Equal(t, float64(60), raw["max_tokens"])
	assert.Contains(t, raw, "conversation_history")
	assert.Contains(t, raw, "system_prompt")
}
