package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
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

// dialTestConn returns a server-side websocket connection and the paired
// client.
func dialTestConn(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	connCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		connCh <- conn
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-connCh:
	case <-time.After(time.Second):
		t.Fatal("no server connection")
	}
	return server, client
}

func TestConnectMintsFreshSessionID(t *testing.T) {
	m := NewConnectionManager(Logger.New(true, "test"))

	conn1, _ := dialTestConn(t)
	s1 := m.Connect("companion-001", conn1)
	m.Disconnect(s1)

	conn2, _ := dialTestConn(t)
	s2 := m.Connect("companion-001", conn2)

	assert.NotEqual(t, s1.SessionID, s2.SessionID, "reconnect yields a new session id")
	assert.True(t, strings.HasPrefix(s2.SessionID, "companion-001-"))
}

func TestConnectReplacesExistingSession(t *testing.T) {
	m := NewConnectionManager(Logger.New(true, "test"))

	conn1, client1 := dialTestConn(t)
	s1 := m.Connect("companion-001", conn1)

	conn2, _ := dialTestConn(t)
	s2 := m.Connect("companion-001", conn2)

	// The old socket was closed by the replacement.
	client1.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := client1.ReadMessage()
	assert.Error(t, err, "replaced connection is closed")

	// The stale session's deferred disconnect must not tear down the new
	// session.
	m.Disconnect(s1)
	assert.True(t, m.IsConnected())

	id, ok := m.SessionID()
	require.True(t, ok)
	assert.Equal(t, s2.SessionID, id)
}

func TestSendResponseWithoutDevice(t *testing.T) {
	m := NewConnectionManager(Logger.New(true, "test"))
	assert.False(t, m.SendResponse(map[string]string{"type": "response"}))
}

func TestSendResponseDeliversJSON(t *testing.T) {
	m := NewConnectionManager(Logger.New(true, "test"))
	conn, client := dialTestConn(t)
	m.Connect("companion-001", conn)

	ok := m.SendResponse(deviceResponse{Type: "response", Text: "hello", SessionID: "s-1"})
	require.True(t, ok)

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "response", msg["type"])
	assert.Equal(t, "hello", msg["text"])
}

func TestRouteAudioRecordsPendingOnlyForWholeUtterances(t *testing.T) {
	pub := &fakePublisher{}
	m := NewConnectionManager(Logger.New(true, "test"))
	r := NewAudioRouter(pub, m, Logger.New(true, "test"))
	ctx := context.Background()

	_, err := r.RouteAudio(ctx, "companion-001", "s-1", make([]byte, 64000), false)
	require.NoError(t, err)
	assert.True(t, r.HasPending("s-1"), "whole-utterance path records latency start")

	_, err = r.RouteAudio(ctx, "companion-001", "s-2", make([]byte, 3200), true)
	require.NoError(t, err)
	assert.False(t, r.HasPending("s-2"), "streaming path skips latency accounting")

	require.Len(t, pub.published, 2)
	chunk := pub.published[0].Record.(messages.AudioChunk)
	assert.Equal(t, bus.StreamAudioInbound, pub.published[0].Stream)
	assert.Equal(t, 2000, chunk.DurationMS)
	assert.False(t, chunk.IsStreaming)
	assert.Equal(t, int64(1), chunk.Sequence)

	streaming := pub.published[1].Record.(messages.AudioChunk)
	assert.True(t, streaming.IsStreaming)
}

func TestOutboundClearsPendingAndSends(t *testing.T) {
	pub := &fakePublisher{}
	m := NewConnectionManager(Logger.New(true, "test"))
	r := NewAudioRouter(pub, m, Logger.New(true, "test"))
	ctx := context.Background()

	conn, client := dialTestConn(t)
	session := m.Connect("companion-001", conn)

	_, err := r.RouteAudio(ctx, "companion-001", session.SessionID, make([]byte, 64000), false)
	require.NoError(t, err)
	require.True(t, r.HasPending(session.SessionID))

	result := messages.TTSResult{
		RequestID: "r-1",
		DeviceID:  "companion-001",
		SessionID: session.SessionID,
		Audio:     []byte("RIFFfake"),
		Text:      "Hi there.",
		UIHints:   messages.UIHints{ShowText: true, Mood: "neutral"},
	}
	data, err := json.Marshal(result)
	require.NoError(t, err)
	require.NoError(t, r.HandleOutbound(ctx, "1-0", data))

	assert.False(t, r.HasPending(session.SessionID), "latency entry removed on response")

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := client.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "response", msg["type"])
	assert.Equal(t, "Hi there.", msg["text"])
	assert.Equal(t, session.SessionID, msg["session_id"])
	assert.NotEmpty(t, msg["timestamp"])

	decoded, err := base64.StdEncoding.DecodeString(msg["audio"].(string))
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFfake"), decoded)
}

func TestOutboundWithoutDeviceDrops(t *testing.T) {
	pub := &fakePublisher{}
	m := NewConnectionManager(Logger.New(true, "test"))
	r := NewAudioRouter(pub, m, Logger.New(true, "test"))

	result := messages.TTSResult{RequestID: "r-1", SessionID: "gone", Text: "late"}
	data, err := json.Marshal(result)
	require.NoError(t, err)

	// Dropped without error; the message is still acked upstream.
	require.NoError(t, r.HandleOutbound(context.Background(), "1-0", data))
}

func TestSequencesIncreasePerSession(t *testing.T) {
	pub := &fakePublisher{}
	r := NewAudioRouter(pub, NewConnectionManager(Logger.New(true, "test")), Logger.New(true, "test"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.RouteAudio(ctx, "d", "s-1", make([]byte, 3200), true)
		require.NoError(t, err)
	}

	last := pub.published[2].Record.(messages.AudioChunk)
	assert.Equal(t, int64(3), last.Sequence)
}
