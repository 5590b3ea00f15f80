package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/recallhq/memobot-backend/internal/services"
)

// HealthHandler reports process and dependency health
type HealthHandler struct {
	db     *gorm.DB // nil when running on the in-memory store
	twilio *services.TwilioService
	mem0   *services.Mem0Service
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *gorm.DB, twilio *services.TwilioService, mem0 *services.Mem0Service) *HealthHandler {
	return &HealthHandler{db: db, twilio: twilio, mem0: mem0}
}

// GetHealth pings the database and reports gateway configuration state.
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	status := "healthy"
	statusCode := fiber.StatusOK

	dbHealthy := true
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil || sqlDB.Ping() != nil {
			dbHealthy = false
			status = "unhealthy"
			statusCode = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status": status,
		"services": fiber.Map{
			"database": dbHealthy,
			"twilio":   h.twilio.IsConfigured(),
			"mem0":     h.mem0.IsConfigured(),
		},
	})
}
