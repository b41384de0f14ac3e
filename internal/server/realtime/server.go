package realtime

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jimzhouzzy/klotski-server/internal/logging"
	"github.com/jimzhouzzy/klotski-server/internal/server/config"
)

// maxFrameSize bounds inbound frames.
const maxFrameSize = 64 << 10

// ShutdownReason is sent with close code 1000 when the server stops.
const ShutdownReason = "Server shutting down"

// Server accepts websocket connections and feeds their frames to an Engine.
type Server struct {
	addr         string
	engine       *Engine
	logger       logging.Logger
	upgrader     websocket.Upgrader
	queueSize    int
	writeTimeout time.Duration
	httpServer   *http.Server

	mu       sync.Mutex
	closing  bool
	handlers sync.WaitGroup
}

func NewServer(cfg *config.Config, engine *Engine, logger logging.Logger) *Server {
	s := &Server{
		addr:         cfg.WSAddr,
		engine:       engine,
		logger:       logger.With("module", "realtime"),
		queueSize:    cfg.SendQueueSize,
		writeTimeout: cfg.WriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// game clients are desktop apps, not browsers
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until Shutdown. It returns nil after a clean stop.
func (s *Server) ListenAndServe() error {
	s.logger.Info(context.Background(), "realtime server listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes every open one with code 1000
// and waits for their handlers to return or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	err := s.httpServer.Shutdown(ctx)
	s.engine.CloseAll(ctx, websocket.CloseNormalClosure, ShutdownReason)

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info(ctx, "realtime server stopped")
	return err
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.enter() {
		http.Error(w, ShutdownReason, http.StatusServiceUnavailable)
		return
	}
	defer s.handlers.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug(r.Context(), "websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	// the request context is cancelled on hijack
	ctx := context.WithoutCancel(r.Context())

	c := newWSConn(ws, s.queueSize, s.writeTimeout)
	go c.writeLoop()

	s.engine.Connect(ctx, c)
	defer func() {
		s.engine.Disconnect(ctx, c)
		c.Close(websocket.CloseNormalClosure, "")
	}()

	// Shutdown may have run CloseAll before this connection registered.
	if s.isClosing() {
		c.Close(websocket.CloseNormalClosure, ShutdownReason)
		return
	}

	s.readLoop(ctx, c)
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	c.ws.SetReadLimit(maxFrameSize)
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug(ctx, "websocket read failed", "conn", c.ID(), "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		s.engine.HandleMessage(ctx, c, string(data))
	}
}

func (s *Server) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.handlers.Add(1)
	return true
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}
