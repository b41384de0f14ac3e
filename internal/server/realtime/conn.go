package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	errConnClosed = errors.New("connection closed")
	errQueueFull  = errors.New("send queue full")
)

// wsConn is a Conn over a gorilla websocket. Outbound frames go through a
// bounded queue drained by writeLoop, so Send never blocks the caller.
type wsConn struct {
	id           string
	ws           *websocket.Conn
	queue        chan string
	done         chan struct{}
	writeTimeout time.Duration
	closeOnce    sync.Once
}

func newWSConn(ws *websocket.Conn, queueSize int, writeTimeout time.Duration) *wsConn {
	if queueSize < 1 {
		queueSize = 1
	}
	return &wsConn{
		id:           uuid.NewString(),
		ws:           ws,
		queue:        make(chan string, queueSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(text string) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.queue <- text:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errQueueFull
	}
}

// Close sends a close frame and closes the socket. Later calls do nothing.
func (c *wsConn) Close(code int, reason string) error {
	err := errConnClosed
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.writeTimeout)
		// the peer may already be gone
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		err = c.ws.Close()
	})
	return err
}

// writeLoop writes queued frames in order until the connection closes or a
// write fails.
func (c *wsConn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case text := <-c.queue:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				c.Close(websocket.CloseInternalServerErr, "")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				c.Close(websocket.CloseInternalServerErr, "")
				return
			}
		}
	}
}
