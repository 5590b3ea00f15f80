package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/recallhq/memobot-backend/internal/models"
	"github.com/recallhq/memobot-backend/internal/services"
	"github.com/recallhq/memobot-backend/internal/storage"
)

// MemoryHandler exposes the stored-memory read/write API
type MemoryHandler struct {
	store storage.Store
	mem0  *services.Mem0Service
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(store storage.Store, mem0 *services.Mem0Service) *MemoryHandler {
	return &MemoryHandler{store: store, mem0: mem0}
}

// MemoryCreatePayload is the direct-API create request body
type MemoryCreatePayload struct {
	MemoryType string   `json:"memory_type"`
	Text       string   `json:"text"`
	MediaURL   string   `json:"media_url"`
	Labels     []string `json:"labels"`
}

// SearchResponseItem pairs a resolved local memory with its remote score
type SearchResponseItem struct {
	Memory *models.Memory `json:"memory"`
	Score  float64        `json:"score"`
}

// CreateMemory stores a memory for an existing user, mirroring it to the
// remote memory service first. A missing user is a client error, not a retry.
func (h *MemoryHandler) CreateMemory(c *fiber.Ctx) error {
	userID := c.QueryInt("user_id")
	if userID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	var payload MemoryCreatePayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payload"})
	}

	switch payload.MemoryType {
	case models.MemoryTypeText, models.MemoryTypeImage, models.MemoryTypeAudio:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "memory_type must be text, image, or audio"})
	}

	user, err := h.store.GetUser(uint(userID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		return err
	}

	var remoteID *string
	if id, outcome := h.mem0.CreateMemory(c.UserContext(), user.WhatsappUserID, payload.MemoryType, payload.Text, "", payload.Labels); outcome == services.OutcomeOK && id != "" {
		remoteID = &id
	}

	labelsJSON := ""
	if len(payload.Labels) > 0 {
		if raw, err := json.Marshal(payload.Labels); err == nil {
			labelsJSON = string(raw)
		}
	}

	memory := &models.Memory{
		UserID:     user.ID,
		RemoteID:   remoteID,
		MemoryType: payload.MemoryType,
		Text:       payload.Text,
		LabelsJSON: labelsJSON,
	}
	if err := h.store.CreateMemory(memory); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(memory)
}

// SearchMemories resolves remote semantic-search hits to local records,
// keeping the remote scores. Hits with no local counterpart are skipped.
func (h *MemoryHandler) SearchMemories(c *fiber.Ctx) error {
	userID := c.QueryInt("user_id")
	query := c.Query("query")
	if userID <= 0 || query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and query are required"})
	}

	user, err := h.store.GetUser(uint(userID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON([]SearchResponseItem{})
		}
		return err
	}

	hits, outcome := h.mem0.Search(c.UserContext(), user.WhatsappUserID, query)
	if outcome != services.OutcomeOK || len(hits) == 0 {
		return c.JSON([]SearchResponseItem{})
	}

	remoteIDs := make([]string, 0, len(hits))
	scores := make(map[string]float64, len(hits))
	for _, hit := range hits {
		if hit.ID == "" {
			continue
		}
		remoteIDs = append(remoteIDs, hit.ID)
		scores[hit.ID] = hit.Score
	}

	memories, err := h.store.MemoriesByRemoteIDs(user.ID, remoteIDs, len(remoteIDs))
	if err != nil {
		return err
	}

	response := make([]SearchResponseItem, 0, len(memories))
	for _, m := range memories {
		item := SearchResponseItem{Memory: m}
		if m.RemoteID != nil {
			item.Score = scores[*m.RemoteID]
		}
		response = append(response, item)
	}
	return c.JSON(response)
}

// ListMemories returns a user's memories, newest first.
func (h *MemoryHandler) ListMemories(c *fiber.Ctx) error {
	userID := c.QueryInt("user_id")
	if userID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	memories, err := h.store.ListMemories(uint(userID), nil, 0)
	if err != nil {
		return err
	}
	return c.JSON(memories)
}
