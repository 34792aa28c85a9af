package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hearthlabs/hearth/internal/bus"
	"github.com/hearthlabs/hearth/pkg/Logger"
)

// Single companion device in the alpha deployment.
const DefaultDeviceID = "companion-001"

// Socket frames are capped at 10 MiB; pings stay disabled so the connection
// survives long TTS playback.
const maxFrameBytes = 10 << 20

// inboundFrame is the text-frame envelope for the streaming audio path.
type inboundFrame struct {
	Type        string `json:"type"`
	Audio       string `json:"audio"`
	IsStreaming bool   `json:"is_streaming"`
}

// Server terminates the device socket and exposes the gateway's HTTP
// surface.
type Server struct {
	busClient *bus.Client
	sessions  *ConnectionManager
	router    *AudioRouter
	upgrader  websocket.Upgrader
	logger    *Logger.Logger
}

func NewServer(busClient *bus.Client, sessions *ConnectionManager, router *AudioRouter, logger *Logger.Logger) *Server {
	return &Server{
		busClient: busClient,
		sessions:  sessions,
		router:    router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// RegisterRoutes wires the HTTP surface onto a gin engine.
func (s *Server) RegisterRoutes(router gin.IRouter) {
	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", s.handleWebSocket)
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "hearth-gateway",
		"status":  "running",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	redisUp := s.busClient.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if !redisUp {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":           map[bool]string{true: "healthy", false: "degraded"}[redisUp],
		"service":          "gateway",
		"redis":            redisUp,
		"device_connected": s.sessions.IsConnected(),
	})
}

// handleWebSocket runs the device connection loop. Binary frames carry raw
// PCM for the whole-utterance path; text frames carry base64 chunks for the
// server-side VAD path.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Errorw("websocket_upgrade_failed", "error", err)
		return
	}

	deviceID := c.Query("device_id")
	if deviceID == "" {
		deviceID = DefaultDeviceID
	}

	session := s.sessions.Connect(deviceID, conn)
	defer s.sessions.Disconnect(session)
	defer conn.Close()

	conn.SetReadLimit(maxFrameBytes)
	ctx := context.Background()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Errorw("websocket_read_error", "error", err)
			} else {
				s.logger.Infow("websocket_closed", "session_id", session.SessionID)
			}
			return
		}

		session.LastActivity = time.Now()
		switch messageType {
		case websocket.BinaryMessage:
			if _, err := s.router.RouteAudio(ctx, deviceID, session.SessionID, data, false); err != nil {
				s.logger.Errorw("audio_route_failed", "error", err)
			}
		case websocket.TextMessage:
			s.handleTextFrame(ctx, deviceID, session.SessionID, data)
		}
	}
}

func (s *Server) handleTextFrame(ctx context.Context, deviceID, sessionID string, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.logger.Errorw("invalid_text_frame", "error", err)
		return
	}
	if frame.Type != "audio_stream" {
		s.logger.Warnw("unknown_message_type", "type", frame.Type)
		return
	}

	pcm, err := base64.StdEncoding.DecodeString(frame.Audio)
	if err != nil {
		s.logger.Errorw("invalid_audio_payload", "error", err)
		return
	}

	if _, err := s.router.RouteAudio(ctx, deviceID, sessionID, pcm, frame.IsStreaming); err != nil {
		s.logger.Errorw("audio_route_failed", "error", err)
	}
}
