package messages

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Base64Bytes carries binary audio across the stream bus. It marshals to a
// standard base64 string so payloads survive the JSON envelope.
type Base64Bytes []byte

func (b Base64Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(b))
}

func (b *Base64Bytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("base64 payload must be a string: %w", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid base64 payload: %w", err)
	}
	*b = decoded
	return nil
}

// bytesPerMS for 16 kHz mono signed-16 PCM: 16000 samples/s * 2 bytes / 1000.
const bytesPerMS = 32

// PCMDurationMS estimates chunk duration from its byte length.
func PCMDurationMS(pcm []byte) int {
	return len(pcm) / bytesPerMS
}

// AudioChunk is one inbound frame from the device, produced by the Gateway
// and consumed once by VAD.
type AudioChunk struct {
	DeviceID    string      `json:"device_id"`
	SessionID   string      `json:"session_id"`
	Sequence    int64       `json:"sequence"`
	CapturedAt  time.Time   `json:"captured_at"`
	Audio       Base64Bytes `json:"audio_data"`
	DurationMS  int         `json:"duration_ms"`
	IsStreaming bool        `json:"is_streaming"`
}

// Utterance is a contiguous span of speech emitted by VAD and consumed once
// by ASR.
type Utterance struct {
	DeviceID          string      `json:"device_id"`
	SessionID         string      `json:"session_id"`
	Audio             Base64Bytes `json:"audio_data"`
	DurationMS        int         `json:"duration_ms"`
	SpeechProbability float64     `json:"speech_probability"`
	EmittedAt         time.Time   `json:"emitted_at"`
}

// Transcript is the ASR output for one utterance.
type Transcript struct {
	DeviceID     string  `json:"device_id"`
	SessionID    string  `json:"session_id"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
	Language     string  `json:"language"`
	ProcessingMS int     `json:"processing_ms"`
}

// ChatMessage is one turn of conversation history fed to the LLM, oldest
// first, never containing system turns.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserProfile mirrors the stored profile record as carried on the bus.
type UserProfile struct {
	UserID        string            `json:"user_id"`
	DeviceID      string            `json:"device_id"`
	Name          string            `json:"name"`
	PreferredName string            `json:"preferred_name,omitempty"`
	Timezone      string            `json:"timezone,omitempty"`
	LifeDetails   map[string]any    `json:"life_details,omitempty"`
	Preferences   map[string]string `json:"preferences,omitempty"`
}

// CarePlan mirrors the stored care plan record as carried on the bus.
type CarePlan struct {
	UserID      string           `json:"user_id"`
	Medications []map[string]any `json:"medications"`
	Routines    []map[string]any `json:"routines"`
	Contacts    []map[string]any `json:"contacts"`
	Notes       string           `json:"notes,omitempty"`
}

// LLMRequest is built by the Orchestrator per transcript (or proactive rule)
// and consumed once by the LLM worker.
type LLMRequest struct {
	RequestID           string        `json:"request_id"`
	DeviceID            string        `json:"device_id"`
	SessionID           string        `json:"session_id"`
	UserID              string        `json:"user_id"`
	UserMessage         string        `json:"user_message"`
	ConversationHistory []ChatMessage `json:"conversation_history"`
	UserProfile         *UserProfile  `json:"user_profile,omitempty"`
	CarePlan            *CarePlan     `json:"care_plan_context,omitempty"`
	SystemPrompt        string        `json:"system_prompt"`
	MaxTokens           int           `json:"max_tokens"`
	Temperature         float64       `json:"temperature"`
}

// Intent classification of an LLM response. Extraction is out of scope for
// the core, so every response carries IntentUnknown.
type Intent string

const IntentUnknown Intent = "unknown"

// LLMResponse is published once per request after streaming concludes, for
// the Orchestrator's history write.
type LLMResponse struct {
	RequestID  string `json:"request_id"`
	DeviceID   string `json:"device_id"`
	SessionID  string `json:"session_id"`
	Text       string `json:"text"`
	Intent     Intent `json:"detected_intent"`
	Model      string `json:"model"`
	LatencyMS  int    `json:"latency_ms"`
	TokensUsed int    `json:"tokens_used"`
	IsFallback bool   `json:"is_fallback"`
}

// TTSRequest is one sentence of synthesis work. For streamed responses the
// request id is "<parent>-<sentence index>".
type TTSRequest struct {
	RequestID string `json:"request_id"`
	DeviceID  string `json:"device_id"`
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// UIHints accompany every synthesized response to the device.
type UIHints struct {
	ShowText bool   `json:"show_text"`
	Mood     string `json:"mood"`
}

// TTSResult carries synthesized audio to the Gateway response listener.
type TTSResult struct {
	RequestID  string      `json:"request_id"`
	DeviceID   string      `json:"device_id"`
	SessionID  string      `json:"session_id"`
	Audio      Base64Bytes `json:"audio_data"`
	DurationMS int         `json:"duration_ms"`
	LatencyMS  int         `json:"latency_ms"`
	Text       string      `json:"text"`
	UIHints    UIHints     `json:"ui_hints"`
}
