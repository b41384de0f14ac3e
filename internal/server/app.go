// Package server wires the game server together: credential store, session
// service, save store, the HTTP API and the realtime websocket server. It
// also handles graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/jimzhouzzy/klotski-server/internal/logging"
	"github.com/jimzhouzzy/klotski-server/internal/server/config"
	"github.com/jimzhouzzy/klotski-server/internal/server/metrics"
	"github.com/jimzhouzzy/klotski-server/internal/server/realtime"
	"github.com/jimzhouzzy/klotski-server/internal/server/rest"
	"github.com/jimzhouzzy/klotski-server/internal/server/saves"
	"github.com/jimzhouzzy/klotski-server/internal/server/users"
	"github.com/jimzhouzzy/klotski-server/internal/workerpool"
)

// shutdownTimeout bounds how long Run waits for connections to close.
const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	pool     *workerpool.Pool
	users    *users.Service
	saves    *saves.Store
	engine   *realtime.Engine
	realtime *realtime.Server
	rest     *rest.Server
}

func NewApp(c *config.Config) (*App, error) {
	return newApp(c, logging.NewJSON(os.Stdout, c.LogLevel))
}

func newApp(c *config.Config, logger logging.Logger) (*App, error) {
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("metrics init error: %w", err)
	}

	pool := workerpool.New(c.DiskWorkers)

	repo, err := users.NewFileRepository(c.CredentialsFile, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("credential store init error: %w", err)
	}
	us := users.NewService(repo, c, logger)

	var archiver saves.Archiver
	if c.S3Bucket != "" {
		a, err := saves.NewS3Archiver(ctx, saves.S3Options{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("s3 mirror init error: %w", err)
		}
		archiver = a
	}

	var validator saves.Validator = saves.NopValidator{}
	if c.SaveValidation == config.SaveValidationStrict {
		validator = saves.StrictValidator{MaxSize: c.MaxSaveSize}
	}

	store, err := saves.NewStore(saves.Options{
		Root:      c.SaveRoot,
		MaxManual: c.MaxManualSaves,
		Validator: validator,
		Archiver:  archiver,
		Metrics:   m,
	}, pool, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("save store init error: %w", err)
	}
	if err := store.Rebuild(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("save index rebuild error: %w", err)
	}

	engine := realtime.NewEngine(us, c.RealtimeLoginPolicy, logger, m)

	logger.Info(ctx, "app initialized",
		"users", repo.Len(),
		"login_policy", c.RealtimeLoginPolicy,
		"save_validation", c.SaveValidation,
		"s3_mirror", archiver != nil,
	)

	return &App{
		config:   c,
		logger:   logger,
		pool:     pool,
		users:    us,
		saves:    store,
		engine:   engine,
		realtime: realtime.NewServer(c, engine, logger),
		rest: rest.NewServer(c.HTTPAddr, us, store, logger, rest.Options{
			Metrics:     m,
			Gatherer:    reg,
			MaxSaveSize: c.MaxSaveSize,
		}),
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "signal received", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run starts both servers and blocks until ctx is cancelled, a signal
// arrives or one of the servers fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.rest.Run(gctx)
	})

	g.Go(func() error {
		return app.realtime.ListenAndServe()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.realtime.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	app.pool.Close()

	if err != nil {
		app.logger.Error(ctx, "app stopped with error", "error", err)
		return err
	}
	app.logger.Info(ctx, "app stopped")
	return nil
}
