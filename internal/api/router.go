package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"walkypainty/internal/canvas"
	"walkypainty/internal/metrics"
	"walkypainty/internal/middleware"
)

// Config for the HTTP surface
type Config struct {
	AllowedOrigins []string
	// StaticDir is served at / when it exists
	StaticDir string
}

// Deps: collaborators the router wires together
type Deps struct {
	Canvases  *canvas.Service
	Presence  PresenceSource
	WebSocket http.Handler
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// NewRouter builds the complete HTTP handler.
func NewRouter(cfg Config, deps Deps) http.Handler {
	logger := deps.Logger.Named("http")
	h := &handlers{
		canvases: deps.Canvases,
		presence: deps.Presence,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(logger, deps.Metrics))
	// no configured origins means same-origin only, matching the socket upgrade check
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.Guest)

	r.Get("/health", h.health)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
	if deps.WebSocket != nil {
		r.Handle("/ws", deps.WebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.welcome)
		r.Get("/presence", h.presenceStats)

		r.Route("/canvas", func(r chi.Router) {
			r.Get("/", h.listCanvases)
			r.Post("/", h.createCanvas)
			r.Get("/{id}", h.getCanvas)
			r.Put("/{id}", h.updateCanvas)
			r.Delete("/{id}", h.deleteCanvas)
		})

		r.Route("/strokes", func(r chi.Router) {
			r.Post("/", h.saveStroke)
			r.Get("/{canvasId}", h.listStrokes)
		})
	})

	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
		} else {
			logger.Warn("static directory not found", zap.String("dir", cfg.StaticDir))
		}
	}

	return r
}
