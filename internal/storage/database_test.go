package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/recallhq/memobot-backend/internal/models"
)

func newSQLiteStore(t *testing.T) *DatabaseStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Interaction{},
		&models.MediaAsset{},
		&models.Memory{},
	))
	return NewDatabaseStore(db)
}

func TestDatabaseLastMemoryAt(t *testing.T) {
	store := newSQLiteStore(t)

	last, err := store.LastMemoryAt()
	require.NoError(t, err)
	assert.Nil(t, last, "empty table yields no timestamp")

	user, err := store.FindOrCreateUser("15551230001", "whatsapp:+15551230001", "UTC")
	require.NoError(t, err)

	older := &models.Memory{UserID: user.ID, MemoryType: models.MemoryTypeText, Text: "older"}
	require.NoError(t, store.CreateMemory(older))
	newer := &models.Memory{UserID: user.ID, MemoryType: models.MemoryTypeText, Text: "newer"}
	newer.CreatedAt = time.Now().Add(time.Hour)
	require.NoError(t, store.CreateMemory(newer))

	last, err = store.LastMemoryAt()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.WithinDuration(t, newer.CreatedAt, *last, time.Second)
}

func TestDatabaseAnalyticsCounts(t *testing.T) {
	store := newSQLiteStore(t)

	user, err := store.FindOrCreateUser("15551230001", "whatsapp:+15551230001", "UTC")
	require.NoError(t, err)
	require.NoError(t, store.CreateMemory(&models.Memory{UserID: user.ID, MemoryType: models.MemoryTypeText, Text: "a"}))
	require.NoError(t, store.CreateMemory(&models.Memory{UserID: user.ID, MemoryType: models.MemoryTypeText, Text: "b"}))
	require.NoError(t, store.CreateMemory(&models.Memory{UserID: user.ID, MemoryType: models.MemoryTypeImage, Text: ""}))

	users, err := store.CountUsers()
	require.NoError(t, err)
	assert.EqualValues(t, 1, users)

	memories, err := store.CountMemories()
	require.NoError(t, err)
	assert.EqualValues(t, 3, memories)

	byType, err := store.MemoryCountsByType()
	require.NoError(t, err)
	assert.EqualValues(t, 2, byType[models.MemoryTypeText])
	assert.EqualValues(t, 1, byType[models.MemoryTypeImage])
}
