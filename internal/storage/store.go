package storage

import (
	"errors"
	"time"

	"github.com/recallhq/memobot-backend/internal/models"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("not found")

// TimeRange is an inclusive [Start, End] filter on created_at, in UTC.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Store defines the interface for storage operations
type Store interface {
	// User operations
	FindOrCreateUser(whatsappUserID, phoneNumber, timezone string) (*models.User, error)
	GetUser(id uint) (*models.User, error)

	// Interaction operations
	GetInteractionBySid(sid string) (*models.Interaction, error)
	CreateInteraction(interaction *models.Interaction) error
	RecentInteractions(userID uint, limit int) ([]*models.Interaction, error)

	// Media operations
	GetMediaAssetByHash(sha256Hash string) (*models.MediaAsset, error)
	CreateMediaAsset(asset *models.MediaAsset) error
	RecentImageAssets(userID uint, limit int) ([]*models.MediaAsset, error)

	// Memory operations
	CreateMemory(memory *models.Memory) error
	ListMemories(userID uint, rng *TimeRange, limit int) ([]*models.Memory, error)
	MemoriesByRemoteIDs(userID uint, remoteIDs []string, limit int) ([]*models.Memory, error)
	SearchMemoriesLocal(userID uint, query string, limit int) ([]*models.Memory, error)

	// Analytics operations
	CountUsers() (int64, error)
	CountInteractions() (int64, error)
	CountMemories() (int64, error)
	MemoryCountsByType() (map[string]int64, error)
	LastMemoryAt() (*time.Time, error)

	// Transaction runs fn against a transactional view of the store. Writes
	// made through the view are committed only when fn returns nil and rolled
	// back otherwise. One webhook invocation = one transaction.
	Transaction(fn func(tx Store) error) error
}
