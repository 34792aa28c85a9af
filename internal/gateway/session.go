package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthlabs/hearth/internal/metrics"
	"github.com/hearthlabs/hearth/pkg/Logger"
)

// DeviceSession is the active companion connection. A fresh session id is
// minted per connect, so conversation context resets across reconnects.
type DeviceSession struct {
	DeviceID     string
	SessionID    string
	Conn         *websocket.Conn
	ConnectedAt  time.Time
	LastActivity time.Time
	MessageCount int
}

// ConnectionManager holds the single active device session. A new accept
// while another session exists replaces it.
type ConnectionManager struct {
	mu      sync.Mutex
	session *DeviceSession
	logger  *Logger.Logger
}

func NewConnectionManager(logger *Logger.Logger) *ConnectionManager {
	return &ConnectionManager{logger: logger}
}

// Connect registers a new device connection, closing and replacing any
// existing session.
func (m *ConnectionManager) Connect(deviceID string, conn *websocket.Conn) *DeviceSession {
	session := &DeviceSession{
		DeviceID:     deviceID,
		SessionID:    fmt.Sprintf("%s-%d", deviceID, time.Now().UnixNano()),
		Conn:         conn,
		ConnectedAt:  time.Now(),
		LastActivity: time.Now(),
	}

	m.mu.Lock()
	if m.session != nil {
		_ = m.session.Conn.Close()
		m.logger.Warn("replaced_existing_connection")
	}
	m.session = session
	m.mu.Unlock()

	metrics.ActiveSessions.Set(1)
	m.logger.Infow("connection_established",
		"device_id", deviceID,
		"session_id", session.SessionID,
	)
	return session
}

// Disconnect removes the connection if this session is still the active one.
// A replaced session's deferred disconnect must not tear down its successor,
// so the session pointer is compared rather than the device id.
func (m *ConnectionManager) Disconnect(session *DeviceSession) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == session {
		m.session = nil
		metrics.ActiveSessions.Set(0)
		m.logger.Infow("connection_removed", "device_id", session.DeviceID)
	}
}

// DisconnectAll closes the active connection during shutdown.
func (m *ConnectionManager) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		_ = m.session.Conn.Close()
		m.session = nil
		metrics.ActiveSessions.Set(0)
	}
	m.logger.Info("connection_closed")
}

// IsConnected reports whether a device is currently attached.
func (m *ConnectionManager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// SessionID returns the current session id, if connected.
func (m *ConnectionManager) SessionID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return "", false
	}
	return m.session.SessionID, true
}

// SendResponse writes a JSON message to the device. Returns false when no
// device is connected or the write fails.
func (m *ConnectionManager) SendResponse(message any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		m.logger.Warn("no_device_connected")
		return false
	}

	if err := m.session.Conn.WriteJSON(message); err != nil {
		m.logger.Errorw("send_failed", "error", err)
		return false
	}

	m.session.LastActivity = time.Now()
	m.session.MessageCount++
	return true
}
