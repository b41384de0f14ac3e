// Package rest serves the HTTP API of the game server: signup, login and
// the save upload/list endpoints, plus Prometheus metrics.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jimzhouzzy/klotski-server/internal/logging"
	"github.com/jimzhouzzy/klotski-server/internal/server/metrics"
	"github.com/jimzhouzzy/klotski-server/internal/server/saves"
	"github.com/jimzhouzzy/klotski-server/internal/server/users"
)

// UserService is what the API needs from users.Service.
type UserService interface {
	Signup(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (*users.Session, error)
	LoginWithToken(ctx context.Context, token string) (string, error)
}

// SaveStore is what the API needs from saves.Store.
type SaveStore interface {
	Upload(ctx context.Context, save *saves.GameSave) error
	List(ctx context.Context, username string) ([]saves.GameSave, error)
	Autosave(ctx context.Context, username string) (saves.GameSave, error)
}

type Server struct {
	address     string
	users       UserService
	saves       SaveStore
	logger      logging.Logger
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	maxSaveSize int64
	httpServer  *http.Server
}

// Options carries the optional parts of a Server.
type Options struct {
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	MaxSaveSize int
}

func NewServer(address string, us UserService, ss SaveStore, l logging.Logger, o Options) *Server {
	s := &Server{
		address:     address,
		users:       us,
		saves:       ss,
		logger:      l.With("module", "rest_server"),
		metrics:     o.Metrics,
		gatherer:    o.Gatherer,
		maxSaveSize: int64(o.MaxSaveSize),
	}
	s.httpServer = &http.Server{
		Addr:              address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the chi router. Paths and responses match what existing
// game clients expect.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	r.Post("/login", s.handleLogin)
	r.Post("/signup", s.handleSignup)
	r.Route("/gameSave", func(r chi.Router) {
		r.Post("/uploadSave", s.handleUploadSave)
		r.Get("/getSaves", s.handleGetSaves)
	})

	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.httpServer.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
