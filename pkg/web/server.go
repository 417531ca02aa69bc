// Package web serves the camera control API and live luma/preview feeds.
package web

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-lumacam/pkg/capture"
	"github.com/teslashibe/go-lumacam/pkg/hub"
	"github.com/teslashibe/go-lumacam/pkg/pipeline"
	"github.com/teslashibe/go-lumacam/pkg/preview"
)

// LumaReading is the message streamed on /ws/luma.
type LumaReading struct {
	Luma float64   `json:"luma"`
	Time time.Time `json:"time"`
}

// Server is the HTTP control surface.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	pipeline *pipeline.Pipeline
	store    *capture.Store
	preview  *preview.Manager

	lumaHub    *hub.Hub
	previewHub *hub.Hub
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables GET /api/captures.
func WithStore(s *capture.Store) Option {
	return func(srv *Server) { srv.store = s }
}

// WithPreviewHub uses h for preview frames. The WebRTC manager should be
// built on the same hub. The server runs it.
func WithPreviewHub(h *hub.Hub) Option {
	return func(srv *Server) { srv.previewHub = h }
}

// WithPreview enables POST /api/preview/offer.
func WithPreview(m *preview.Manager) Option {
	return func(srv *Server) { srv.preview = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(srv *Server) { srv.logger = l }
}

// NewServer creates the server and hooks the pipeline's luma readings
// and preview frames into the websocket hubs.
func NewServer(addr string, p *pipeline.Pipeline, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		logger:   slog.Default(),
		pipeline: p,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	s.lumaHub = hub.New("luma", s.logger)
	if s.previewHub == nil {
		s.previewHub = hub.New("preview", s.logger)
	}

	p.Tracker().OnReading = func(v float64) {
		s.lumaHub.BroadcastJSON(LumaReading{Luma: v, Time: time.Now()})
	}
	p.OnPreview = s.previewHub.BroadcastBinary

	app := fiber.New(fiber.Config{
		AppName:               "lumacam",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/camera/config", s.handleGetConfig)
	api.Put("/camera/config", s.handleUpdateConfig)
	api.Get("/camera/presets", s.handleListPresets)
	api.Post("/camera/lens/toggle", s.handleToggleLens)
	api.Post("/camera/flash/cycle", s.handleCycleFlash)
	api.Post("/capture", s.handleCapture)
	api.Get("/captures", s.handleListCaptures)
	api.Post("/preview/offer", s.handlePreviewOffer)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/luma", websocket.New(s.handleLumaWS))
	app.Get("/ws/preview", websocket.New(s.handlePreviewWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// StartHubs runs the websocket hubs until ctx is done.
func (s *Server) StartHubs(ctx context.Context) {
	go s.lumaHub.Run(ctx)
	go s.previewHub.Run(ctx)
}

// Run starts the hubs and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.StartHubs(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.addr)
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
