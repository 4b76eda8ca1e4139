package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"walkypainty/internal/api"
	"walkypainty/internal/canvas"
	"walkypainty/internal/canvas/memory"
	"walkypainty/internal/canvas/tomlstore"
	"walkypainty/internal/config"
	"walkypainty/internal/hub"
	"walkypainty/internal/logging"
	"walkypainty/internal/metrics"
	"walkypainty/internal/middleware"
	"walkypainty/internal/presence"
	"walkypainty/internal/transport"
)

const ipCleanupInterval = 10 * time.Minute

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the drawing server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file (toml or yaml); defaults to ./walkypainty.*")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides server.addr")
	return cmd
}

// server is the assembled process: HTTP handler plus the loops it needs running
type server struct {
	handler   http.Handler
	hub       *hub.Hub
	ipLimiter *middleware.IPRateLimit
}

func newServer(cfg *config.Config, logger *zap.Logger) (*server, error) {
	m := metrics.New()

	repo, err := openRepository(cfg.Store)
	if err != nil {
		return nil, err
	}

	registry := presence.NewRegistry(presence.Limits{
		MaxRooms:    cfg.Rooms.MaxRooms,
		MaxRoomSize: cfg.Rooms.MaxRoomSize,
	})
	h := hub.New(hub.Config{
		DefaultRoom:    cfg.Rooms.Default,
		CursorInterval: cfg.Limits.CursorInterval,
	}, registry, logger, m)

	ipLimiter := middleware.NewIPRateLimit(cfg.Limits.IPConnectionsPerMinute, cfg.Limits.IPBurst)
	ws := transport.NewHandler(h, ipLimiter, transport.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SendBuffer:     cfg.Rooms.SendBuffer,
		Limits: middleware.NewMessageLimits(
			cfg.Limits.MaxMessageSize,
			cfg.Limits.MessagesPerSecond,
			cfg.Limits.Burst,
		),
		Metrics: m,
	}, logger)

	handler := api.NewRouter(api.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticDir:      cfg.Server.StaticDir,
	}, api.Deps{
		Canvases:  canvas.NewService(repo, logger, m),
		Presence:  h,
		WebSocket: ws,
		Metrics:   m,
		Logger:    logger,
	})

	return &server{handler: handler, hub: h, ipLimiter: ipLimiter}, nil
}

// start runs the hub and limiter housekeeping until ctx ends.
func (s *server) start(ctx context.Context) {
	go s.hub.Run(ctx)
	go s.ipLimiter.RunCleanup(ctx, ipCleanupInterval)
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	srv, err := newServer(cfg, logger)
	if err != nil {
		return err
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	srv.start(hubCtx)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started",
			zap.String("addr", cfg.Server.Addr),
			zap.String("store", cfg.Store.Driver),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// hijacked websockets are not tracked by Shutdown; stopping the hub closes them
	stopHub()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openRepository(cfg config.StoreConfig) (canvas.Repository, error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil
	case "toml":
		store, err := tomlstore.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open canvas store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
