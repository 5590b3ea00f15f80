package storage

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/recallhq/memobot-backend/internal/models"
)

// DatabaseStore implements Store on top of GORM
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a database-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// User operations

func (d *DatabaseStore) FindOrCreateUser(whatsappUserID, phoneNumber, timezone string) (*models.User, error) {
	whatsappUserID = strings.TrimPrefix(whatsappUserID, "whatsapp:")

	var user models.User
	err := d.db.Where("whatsapp_user_id = ?", whatsappUserID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = models.User{
		WhatsappUserID: whatsappUserID,
		PhoneNumber:    phoneNumber,
		Timezone:       timezone,
	}
	if createErr := d.db.Create(&user).Error; createErr != nil {
		// Unique-index race: a concurrent first message inserted the user
		// between our lookup and create. Retry as a lookup.
		if selErr := d.db.Where("whatsapp_user_id = ?", whatsappUserID).First(&user).Error; selErr == nil {
			return &user, nil
		}
		return nil, createErr
	}
	return &user, nil
}

func (d *DatabaseStore) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := d.db.First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// Interaction operations

func (d *DatabaseStore) GetInteractionBySid(sid string) (*models.Interaction, error) {
	var interaction models.Interaction
	if err := d.db.Where("twilio_message_sid = ?", sid).First(&interaction).Error; err != nil {
		return nil, notFound(err)
	}
	return &interaction, nil
}

func (d *DatabaseStore) CreateInteraction(interaction *models.Interaction) error {
	return d.db.Create(interaction).Error
}

func (d *DatabaseStore) RecentInteractions(userID uint, limit int) ([]*models.Interaction, error) {
	var interactions []*models.Interaction
	err := d.db.Where("user_id = ?", userID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&interactions).Error
	return interactions, err
}

// Media operations

func (d *DatabaseStore) GetMediaAssetByHash(sha256Hash string) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	if err := d.db.Where("sha256_hash = ?", sha256Hash).First(&asset).Error; err != nil {
		return nil, notFound(err)
	}
	return &asset, nil
}

func (d *DatabaseStore) CreateMediaAsset(asset *models.MediaAsset) error {
	return d.db.Create(asset).Error
}

func (d *DatabaseStore) RecentImageAssets(userID uint, limit int) ([]*models.MediaAsset, error) {
	var assets []*models.MediaAsset
	err := d.db.
		Joins("JOIN interactions ON interactions.id = media_assets.interaction_id").
		Where("interactions.user_id = ?", userID).
		Where("media_assets.content_type LIKE ?", "%image%").
		Where("media_assets.local_path <> ''").
		Order("media_assets.id DESC").
		Limit(limit).
		Find(&assets).Error
	return assets, err
}

// Memory operations

func (d *DatabaseStore) CreateMemory(memory *models.Memory) error {
	return d.db.Create(memory).Error
}

func (d *DatabaseStore) ListMemories(userID uint, rng *TimeRange, limit int) ([]*models.Memory, error) {
	q := d.db.Where("user_id = ?", userID)
	if rng != nil {
		q = q.Where("created_at >= ? AND created_at <= ?", rng.Start, rng.End)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var memories []*models.Memory
	err := q.Order("created_at DESC").Find(&memories).Error
	return memories, err
}

func (d *DatabaseStore) MemoriesByRemoteIDs(userID uint, remoteIDs []string, limit int) ([]*models.Memory, error) {
	if len(remoteIDs) == 0 {
		return nil, nil
	}

	var memories []*models.Memory
	err := d.db.Where("user_id = ? AND remote_id IN ?", userID, remoteIDs).
		Order("created_at DESC").
		Limit(limit).
		Find(&memories).Error
	return memories, err
}

func (d *DatabaseStore) SearchMemoriesLocal(userID uint, query string, limit int) ([]*models.Memory, error) {
	like := "%" + strings.ToLower(query) + "%"

	var memories []*models.Memory
	err := d.db.Where("user_id = ?", userID).
		Where("LOWER(text) LIKE ? OR LOWER(title) LIKE ?", like, like).
		Order("created_at DESC").
		Limit(limit).
		Find(&memories).Error
	return memories, err
}

// Analytics operations

func (d *DatabaseStore) CountUsers() (int64, error) {
	var count int64
	err := d.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

func (d *DatabaseStore) CountInteractions() (int64, error) {
	var count int64
	err := d.db.Model(&models.Interaction{}).Count(&count).Error
	return count, err
}

func (d *DatabaseStore) CountMemories() (int64, error) {
	var count int64
	err := d.db.Model(&models.Memory{}).Count(&count).Error
	return count, err
}

func (d *DatabaseStore) MemoryCountsByType() (map[string]int64, error) {
	type row struct {
		MemoryType string
		Count      int64
	}
	var rows []row
	err := d.db.Model(&models.Memory{}).
		Select("memory_type, COUNT(id) AS count").
		Group("memory_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.MemoryType] = r.Count
	}
	return counts, nil
}

func (d *DatabaseStore) LastMemoryAt() (*time.Time, error) {
	var memory models.Memory
	err := d.db.Order("created_at DESC").First(&memory).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &memory.CreatedAt, nil
}

// Transaction runs fn inside a database transaction.
func (d *DatabaseStore) Transaction(fn func(tx Store) error) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewDatabaseStore(tx))
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
