package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/recallhq/memobot-backend/internal/storage"
)

// AnalyticsHandler exposes aggregate counts over users, interactions, and
// memories
type AnalyticsHandler struct {
	store storage.Store
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(store storage.Store) *AnalyticsHandler {
	return &AnalyticsHandler{store: store}
}

// AnalyticsSummary is the aggregate response payload
type AnalyticsSummary struct {
	TotalUsers        int64            `json:"total_users"`
	TotalInteractions int64            `json:"total_interactions"`
	TotalMemories     int64            `json:"total_memories"`
	MemoriesByType    map[string]int64 `json:"memories_by_type"`
	LastIngestTime    *time.Time       `json:"last_ingest_time"`
}

// GetSummary returns totals, memory counts by type, and the last ingest time.
func (h *AnalyticsHandler) GetSummary(c *fiber.Ctx) error {
	totalUsers, err := h.store.CountUsers()
	if err != nil {
		return err
	}
	totalInteractions, err := h.store.CountInteractions()
	if err != nil {
		return err
	}
	totalMemories, err := h.store.CountMemories()
	if err != nil {
		return err
	}
	byType, err := h.store.MemoryCountsByType()
	if err != nil {
		return err
	}
	lastIngest, err := h.store.LastMemoryAt()
	if err != nil {
		return err
	}

	return c.JSON(AnalyticsSummary{
		TotalUsers:        totalUsers,
		TotalInteractions: totalInteractions,
		TotalMemories:     totalMemories,
		MemoriesByType:    byType,
		LastIngestTime:    lastIngest,
	})
}
