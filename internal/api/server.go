// Package api exposes the care data and notification feed over HTTP
// and WebSocket.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/carepulse/carepulse/internal/alerts"
	"github.com/carepulse/carepulse/internal/appointment"
	"github.com/carepulse/carepulse/internal/circle"
	"github.com/carepulse/carepulse/internal/clock"
	"github.com/carepulse/carepulse/internal/config"
	"github.com/carepulse/carepulse/internal/medicine"
	"github.com/carepulse/carepulse/internal/notify"
	"github.com/carepulse/carepulse/internal/prescription"
	"github.com/carepulse/carepulse/internal/store"
)

// Deps carries the collaborators the server exposes
type Deps struct {
	Store         *store.Store
	Circles       *circle.Store
	Medicines     *medicine.Store
	Appointments  *appointment.Store
	Feed          *notify.Feed
	Engine        *alerts.Engine
	Prescriptions *prescription.Service
	Clock         clock.Clock
	Hub           *Hub
}

// Server handles HTTP API and WebSocket
type Server struct {
	app           *fiber.App
	config        *config.Config
	store         *store.Store
	circles       *circle.Store
	medicines     *medicine.Store
	appointments  *appointment.Store
	feed          *notify.Feed
	engine        *alerts.Engine
	prescriptions *prescription.Service
	clk           clock.Clock
	hub           *Hub
	logger        *zap.Logger
}

// New creates a new API server
func New(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    20 * 1024 * 1024, // prescription photos
	})

	clk := deps.Clock
	if clk == nil {
		clk = clock.System{}
	}
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(logger)
	}

	s := &Server{
		app:           app,
		config:        cfg,
		store:         deps.Store,
		circles:       deps.Circles,
		medicines:     deps.Medicines,
		appointments:  deps.Appointments,
		feed:          deps.Feed,
		engine:        deps.Engine,
		prescriptions: deps.Prescriptions,
		clk:           clk,
		hub:           hub,
		logger:        logger,
	}

	s.setupRoutes()
	return s
}

// Hub returns the WebSocket alert hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start starts the server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
