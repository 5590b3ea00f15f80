package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/recallhq/memobot-backend/internal/storage"
)

// InteractionHandler exposes the interaction-history API
type InteractionHandler struct {
	store storage.Store
}

// NewInteractionHandler creates a new interaction handler
func NewInteractionHandler(store storage.Store) *InteractionHandler {
	return &InteractionHandler{store: store}
}

// RecentInteractions returns a user's most recent interactions, newest first.
func (h *InteractionHandler) RecentInteractions(c *fiber.Ctx) error {
	userID := c.QueryInt("user_id")
	if userID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	limit := c.QueryInt("limit", 10)
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	interactions, err := h.store.RecentInteractions(uint(userID), limit)
	if err != nil {
		return err
	}
	return c.JSON(interactions)
}
