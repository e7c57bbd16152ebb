package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
)

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Security.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	s.app.Use(s.requestMetrics())

	s.app.Get("/api/health", s.handleHealth)
	s.app.Get("/metrics", s.handleMetrics)
	s.app.Get("/api/metrics", s.handleMetricsJSON)

	api := s.app.Group("/api")

	api.Get("/greeting", s.handleGreeting)

	api.Post("/auth/register", s.handleRegister)
	api.Post("/auth/login", s.handleLogin)

	protected := api.Use(s.authMiddleware())

	protected.Get("/me", s.handleMe)

	protected.Get("/medicines", s.handleListMedicines)
	protected.Post("/medicines", s.handleCreateMedicine)
	protected.Get("/medicines/:id", s.handleGetMedicine)
	protected.Put("/medicines/:id", s.handleUpdateMedicine)
	protected.Delete("/medicines/:id", s.handleDeleteMedicine)
	protected.Post("/medicines/:id/take", s.handleTakeMedicine)
	protected.Post("/medicines/:id/refill", s.handleRefillMedicine)

	protected.Get("/appointments", s.handleListAppointments)
	protected.Post("/appointments", s.handleCreateAppointment)
	protected.Get("/appointments/:id", s.handleGetAppointment)
	protected.Put("/appointments/:id", s.handleUpdateAppointment)
	protected.Delete("/appointments/:id", s.handleDeleteAppointment)

	protected.Get("/notifications", s.handleNotifications)
	protected.Get("/notifications/count", s.handleNotificationCount)
	protected.Post("/alerts/tick", s.handleAlertTick)

	protected.Post("/prescriptions/scan", s.handleScanPrescription)
	protected.Get("/prescriptions", s.handleScanHistory)

	protected.Get("/circles", s.handleListCircles)
	protected.Post("/circles", s.handleCreateCircle)
	protected.Get("/circles/:id/members", s.handleListMembers)
	protected.Post("/circles/:id/members", s.handleAddCaregiver)
	protected.Delete("/circles/:id/members/:userId", s.handleRemoveMember)

	s.app.Get("/ws/alerts", websocket.New(s.hub.handle))

	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name": "CarePulse",
			"api":  "/api",
		})
	})
}
