package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/recallhq/memobot-backend/internal/config"
	"github.com/recallhq/memobot-backend/internal/handlers"
	"github.com/recallhq/memobot-backend/internal/middleware"
)

// Handlers bundles the route handlers wired in main.
type Handlers struct {
	Webhook      *handlers.WebhookHandler
	Memories     *handlers.MemoryHandler
	Interactions *handlers.InteractionHandler
	Analytics    *handlers.AnalyticsHandler
	Health       *handlers.HealthHandler
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, settings *config.Settings, h Handlers) {

	// Root handlers to satisfy Twilio validation or misconfigured callbacks
	app.Get("/", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
		return c.SendString(handlers.TwiML("OK"))
	})
	app.Post("/", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
		return c.SendString(handlers.TwiML("OK"))
	})

	app.Get("/health", h.Health.GetHealth)

	// ========== WEBHOOK ROUTES ==========
	// GET/HEAD are unauthenticated validation pings. POST carries the
	// signature; environment-aware validation skips the check for local
	// ngrok tunnels and enforces it in production.
	app.Get("/webhook", h.Webhook.HandleWebhook)
	if settings.IsDevelopment() {
		app.Post("/webhook", h.Webhook.HandleWebhook)
	} else {
		app.Post("/webhook", middleware.ValidateTwilioSignature(settings.TwilioAuthToken), h.Webhook.HandleWebhook)
	}

	// ========== MEMORY API ==========
	app.Post("/memories", h.Memories.CreateMemory)
	app.Get("/memories", h.Memories.SearchMemories)
	app.Get("/memories/list", h.Memories.ListMemories)

	// ========== INTERACTION API ==========
	app.Get("/interactions/recent", h.Interactions.RecentInteractions)

	// ========== ANALYTICS API ==========
	app.Get("/analytics/summary", h.Analytics.GetSummary)
}
