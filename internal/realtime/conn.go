package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second

	// heartbeatInterval keeps idle connections alive through proxies that
	// reap silent streams.
	heartbeatInterval = 30 * time.Second
)

var heartbeatFrame = []byte(`{"type":"` + EnvelopeHeartbeat + `"}`)

var (
	// ErrConnClosed indicates a send was attempted after the connection closed.
	ErrConnClosed = errors.New("realtime: connection closed")
	// ErrSendBufferFull indicates the outbound buffer is full; the frame is dropped.
	ErrSendBufferFull = errors.New("realtime: send buffer full")
)

// Conn wraps one live websocket with its outbound queue. The user identity
// is set once at handshake and never changes. All writes to the underlying
// socket happen on the single writer goroutine, so fan-out callers only ever
// touch the buffered channel and can never block on a slow peer.
type Conn struct {
	id     uint64
	userID string
	socket *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(id uint64, userID string, socket *websocket.Conn, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 16
	}
	return &Conn{
		id:     id,
		userID: userID,
		socket: socket,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// UserID returns the identity the connection authenticated as.
func (c *Conn) UserID() string {
	return c.userID
}

// Enqueue hands a serialized frame to the writer goroutine without blocking.
func (c *Conn) Enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// writeLoop drains the outbound queue onto the socket. A write failure
// closes the connection; the read loop then observes the closed socket and
// unregisters it.
func (c *Conn) writeLoop() {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				c.Close()
				return
			}
		case <-heartbeat.C:
			if err := c.write(heartbeatFrame); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) write(frame []byte) error {
	_ = c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.socket.WriteMessage(websocket.TextMessage, frame)
}

// Close tears down the connection. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.socket.Close()
	})
}
