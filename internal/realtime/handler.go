package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultHandshakeTimeout = 5 * time.Second

var (
	errMissingRegistry = errors.New("realtime: registry dependency required")
	errMissingTokens   = errors.New("realtime: token validator dependency required")
)

// TokenValidator verifies the bearer credential presented at connection-open
// time. It is the same validator the REST layer uses, so both surfaces share
// one signing secret and trust root.
type TokenValidator interface {
	ValidateAccessToken(token string) (string, error)
}

// HandlerConfig describes the dependencies of the websocket endpoint.
type HandlerConfig struct {
	Registry         *Registry
	Tokens           TokenValidator
	Logger           *zap.Logger
	SendBuffer       int
	HandshakeTimeout time.Duration
}

// Handler upgrades incoming connections, runs the authentication handshake,
// and keeps each accepted connection registered for its lifetime.
type Handler struct {
	registry   *Registry
	tokens     TokenValidator
	logger     *zap.Logger
	sendBuffer int
	upgrader   websocket.Upgrader
}

// NewHandler constructs the websocket endpoint handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Registry == nil {
		return nil, errMissingRegistry
	}
	if cfg.Tokens == nil {
		return nil, errMissingTokens
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	handshakeTimeout := cfg.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	return &Handler{
		registry:   cfg.Registry,
		tokens:     cfg.Tokens,
		logger:     logger,
		sendBuffer: cfg.SendBuffer,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}, nil
}

// HandleConnection serves GET /ws?token=… . The credential travels as a
// query parameter because browser websocket clients cannot attach custom
// headers to the upgrade request. A failed handshake closes the socket with
// a policy-violation close code and performs no registration; the client
// must refresh its credential and dial again.
func (h *Handler) HandleConnection(c *gin.Context) {
	socket, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	userID, err := h.tokens.ValidateAccessToken(c.Query("token"))
	if err != nil {
		h.logger.Warn("websocket handshake rejected", zap.Error(err))
		rejectSocket(socket, "invalid token")
		return
	}

	conn := h.registry.NewConn(userID, socket, h.sendBuffer)
	h.registry.Register(conn)
	go conn.writeLoop()

	if frame, err := json.Marshal(Envelope{Type: EnvelopeReady}); err == nil {
		if err := conn.Enqueue(frame); err != nil {
			h.logger.Warn("failed to queue ready frame",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}

	h.logger.Info("websocket connected", zap.String("user_id", userID))

	// Inbound frames carry no protocol meaning; the read loop only exists to
	// observe the close.
	for {
		if _, _, err := socket.ReadMessage(); err != nil {
			break
		}
	}

	h.registry.Unregister(conn)
	conn.Close()
	h.logger.Info("websocket disconnected", zap.String("user_id", userID))
}

func rejectSocket(socket *websocket.Conn, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = socket.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		deadline,
	)
	_ = socket.Close()
}
