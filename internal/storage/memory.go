package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/recallhq/memobot-backend/internal/models"
)

// MemoryStore holds all data in memory, for tests and local experiments.
// A single mutex guards the whole store so Transaction can snapshot and
// restore it atomically.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	users        map[uint]models.User
	interactions map[uint]models.Interaction
	assets       map[uint]models.MediaAsset
	memories     map[uint]models.Memory

	// Counters for ID generation
	userSeq        uint
	interactionSeq uint
	assetSeq       uint
	memorySeq      uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: &memData{
			users:        make(map[uint]models.User),
			interactions: make(map[uint]models.Interaction),
			assets:       make(map[uint]models.MediaAsset),
			memories:     make(map[uint]models.Memory),
		},
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		users:          make(map[uint]models.User, len(d.users)),
		interactions:   make(map[uint]models.Interaction, len(d.interactions)),
		assets:         make(map[uint]models.MediaAsset, len(d.assets)),
		memories:       make(map[uint]models.Memory, len(d.memories)),
		userSeq:        d.userSeq,
		interactionSeq: d.interactionSeq,
		assetSeq:       d.assetSeq,
		memorySeq:      d.memorySeq,
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.interactions {
		c.interactions[k] = v
	}
	for k, v := range d.assets {
		c.assets[k] = v
	}
	for k, v := range d.memories {
		c.memories[k] = v
	}
	return c
}

// Transaction snapshots the store, runs fn against an unlocked view, and
// restores the snapshot if fn fails.
func (m *MemoryStore) Transaction(fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	if err := fn(memoryTx{m}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

// User operations

func (m *MemoryStore) FindOrCreateUser(whatsappUserID, phoneNumber, timezone string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findOrCreateUser(whatsappUserID, phoneNumber, timezone)
}

func (m *MemoryStore) findOrCreateUser(whatsappUserID, phoneNumber, timezone string) (*models.User, error) {
	whatsappUserID = strings.TrimPrefix(whatsappUserID, "whatsapp:")

	for _, u := range m.data.users {
		if u.WhatsappUserID == whatsappUserID {
			user := u
			return &user, nil
		}
	}

	if timezone == "" {
		timezone = "UTC"
	}
	m.data.userSeq++
	user := models.User{
		WhatsappUserID: whatsappUserID,
		PhoneNumber:    phoneNumber,
		Timezone:       timezone,
	}
	user.ID = m.data.userSeq
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt

	m.data.users[user.ID] = user
	return &user, nil
}

func (m *MemoryStore) GetUser(id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getUser(id)
}

func (m *MemoryStore) getUser(id uint) (*models.User, error) {
	u, exists := m.data.users[id]
	if !exists {
		return nil, ErrNotFound
	}
	user := u
	return &user, nil
}

// Interaction operations

func (m *MemoryStore) GetInteractionBySid(sid string) (*models.Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getInteractionBySid(sid)
}

func (m *MemoryStore) getInteractionBySid(sid string) (*models.Interaction, error) {
	for _, in := range m.data.interactions {
		if in.TwilioMessageSid != nil && *in.TwilioMessageSid == sid {
			interaction := in
			return &interaction, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateInteraction(interaction *models.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createInteraction(interaction)
}

func (m *MemoryStore) createInteraction(interaction *models.Interaction) error {
	m.data.interactionSeq++
	interaction.ID = m.data.interactionSeq
	interaction.CreatedAt = time.Now().UTC()
	interaction.UpdatedAt = interaction.CreatedAt
	if interaction.OccurredAt.IsZero() {
		interaction.OccurredAt = interaction.CreatedAt
	}
	if interaction.MessageDirection == "" {
		interaction.MessageDirection = models.DirectionInbound
	}

	m.data.interactions[interaction.ID] = *interaction
	return nil
}

func (m *MemoryStore) RecentInteractions(userID uint, limit int) ([]*models.Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recentInteractions(userID, limit)
}

func (m *MemoryStore) recentInteractions(userID uint, limit int) ([]*models.Interaction, error) {
	var interactions []*models.Interaction
	for _, in := range m.data.interactions {
		if in.UserID == userID {
			interaction := in
			interactions = append(interactions, &interaction)
		}
	}
	sort.Slice(interactions, func(i, j int) bool {
		if !interactions[i].OccurredAt.Equal(interactions[j].OccurredAt) {
			return interactions[i].OccurredAt.After(interactions[j].OccurredAt)
		}
		return interactions[i].ID > interactions[j].ID
	})
	return capSlice(interactions, limit), nil
}

// Media operations

func (m *MemoryStore) GetMediaAssetByHash(sha256Hash string) (*models.MediaAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getMediaAssetByHash(sha256Hash)
}

func (m *MemoryStore) getMediaAssetByHash(sha256Hash string) (*models.MediaAsset, error) {
	for _, a := range m.data.assets {
		if a.Sha256Hash == sha256Hash {
			asset := a
			return &asset, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateMediaAsset(asset *models.MediaAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createMediaAsset(asset)
}

func (m *MemoryStore) createMediaAsset(asset *models.MediaAsset) error {
	m.data.assetSeq++
	asset.ID = m.data.assetSeq
	asset.CreatedAt = time.Now().UTC()
	asset.UpdatedAt = asset.CreatedAt

	m.data.assets[asset.ID] = *asset
	return nil
}

func (m *MemoryStore) RecentImageAssets(userID uint, limit int) ([]*models.MediaAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recentImageAssets(userID, limit)
}

func (m *MemoryStore) recentImageAssets(userID uint, limit int) ([]*models.MediaAsset, error) {
	var assets []*models.MediaAsset
	for _, a := range m.data.assets {
		if !strings.Contains(a.ContentType, "image") || a.LocalPath == "" {
			continue
		}
		in, ok := m.data.interactions[a.InteractionID]
		if !ok || in.UserID != userID {
			continue
		}
		asset := a
		assets = append(assets, &asset)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].ID > assets[j].ID })
	return capSlice(assets, limit), nil
}

// Memory operations

func (m *MemoryStore) CreateMemory(memory *models.Memory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createMemory(memory)
}

func (m *MemoryStore) createMemory(memory *models.Memory) error {
	m.data.memorySeq++
	memory.ID = m.data.memorySeq
	memory.CreatedAt = time.Now().UTC()
	memory.UpdatedAt = memory.CreatedAt

	m.data.memories[memory.ID] = *memory
	return nil
}

func (m *MemoryStore) ListMemories(userID uint, rng *TimeRange, limit int) ([]*models.Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listMemories(userID, rng, limit)
}

func (m *MemoryStore) listMemories(userID uint, rng *TimeRange, limit int) ([]*models.Memory, error) {
	var memories []*models.Memory
	for _, mem := range m.data.memories {
		if mem.UserID != userID {
			continue
		}
		if rng != nil && (mem.CreatedAt.Before(rng.Start) || mem.CreatedAt.After(rng.End)) {
			continue
		}
		memory := mem
		memories = append(memories, &memory)
	}
	sortMemoriesNewestFirst(memories)
	return capSlice(memories, limit), nil
}

func (m *MemoryStore) MemoriesByRemoteIDs(userID uint, remoteIDs []string, limit int) ([]*models.Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memoriesByRemoteIDs(userID, remoteIDs, limit)
}

func (m *MemoryStore) memoriesByRemoteIDs(userID uint, remoteIDs []string, limit int) ([]*models.Memory, error) {
	wanted := make(map[string]bool, len(remoteIDs))
	for _, id := range remoteIDs {
		wanted[id] = true
	}

	var memories []*models.Memory
	for _, mem := range m.data.memories {
		if mem.UserID != userID || mem.RemoteID == nil || !wanted[*mem.RemoteID] {
			continue
		}
		memory := mem
		memories = append(memories, &memory)
	}
	sortMemoriesNewestFirst(memories)
	return capSlice(memories, limit), nil
}

func (m *MemoryStore) SearchMemoriesLocal(userID uint, query string, limit int) ([]*models.Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchMemoriesLocal(userID, query, limit)
}

func (m *MemoryStore) searchMemoriesLocal(userID uint, query string, limit int) ([]*models.Memory, error) {
	needle := strings.ToLower(query)

	var memories []*models.Memory
	for _, mem := range m.data.memories {
		if mem.UserID != userID {
			continue
		}
		if !strings.Contains(strings.ToLower(mem.Text), needle) &&
			!strings.Contains(strings.ToLower(mem.Title), needle) {
			continue
		}
		memory := mem
		memories = append(memories, &memory)
	}
	sortMemoriesNewestFirst(memories)
	return capSlice(memories, limit), nil
}

// Analytics operations

func (m *MemoryStore) CountUsers() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data.users)), nil
}

func (m *MemoryStore) CountInteractions() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data.interactions)), nil
}

func (m *MemoryStore) CountMemories() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data.memories)), nil
}

func (m *MemoryStore) MemoryCountsByType() (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int64)
	for _, mem := range m.data.memories {
		counts[mem.MemoryType]++
	}
	return counts, nil
}

func (m *MemoryStore) LastMemoryAt() (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var last *time.Time
	for _, mem := range m.data.memories {
		if last == nil || mem.CreatedAt.After(*last) {
			t := mem.CreatedAt
			last = &t
		}
	}
	return last, nil
}

func sortMemoriesNewestFirst(memories []*models.Memory) {
	sort.Slice(memories, func(i, j int) bool {
		if !memories[i].CreatedAt.Equal(memories[j].CreatedAt) {
			return memories[i].CreatedAt.After(memories[j].CreatedAt)
		}
		return memories[i].ID > memories[j].ID
	})
}

func capSlice[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

// memoryTx is the in-transaction view handed to Transaction callbacks. The
// outer Transaction already holds the lock, so calls go straight to the
// unlocked methods.
type memoryTx struct {
	s *MemoryStore
}

func (t memoryTx) FindOrCreateUser(whatsappUserID, phoneNumber, timezone string) (*models.User, error) {
	return t.s.findOrCreateUser(whatsappUserID, phoneNumber, timezone)
}

func (t memoryTx) GetUser(id uint) (*models.User, error) {
	return t.s.getUser(id)
}

func (t memoryTx) GetInteractionBySid(sid string) (*models.Interaction, error) {
	return t.s.getInteractionBySid(sid)
}

func (t memoryTx) CreateInteraction(interaction *models.Interaction) error {
	return t.s.createInteraction(interaction)
}

func (t memoryTx) RecentInteractions(userID uint, limit int) ([]*models.Interaction, error) {
	return t.s.recentInteractions(userID, limit)
}

func (t memoryTx) GetMediaAssetByHash(sha256Hash string) (*models.MediaAsset, error) {
	return t.s.getMediaAssetByHash(sha256Hash)
}

func (t memoryTx) CreateMediaAsset(asset *models.MediaAsset) error {
	return t.s.createMediaAsset(asset)
}

func (t memoryTx) RecentImageAssets(userID uint, limit int) ([]*models.MediaAsset, error) {
	return t.s.recentImageAssets(userID, limit)
}

func (t memoryTx) CreateMemory(memory *models.Memory) error {
	return t.s.createMemory(memory)
}

func (t memoryTx) ListMemories(userID uint, rng *TimeRange, limit int) ([]*models.Memory, error) {
	return t.s.listMemories(userID, rng, limit)
}

func (t memoryTx) MemoriesByRemoteIDs(userID uint, remoteIDs []string, limit int) ([]*models.Memory, error) {
	return t.s.memoriesByRemoteIDs(userID, remoteIDs, limit)
}

func (t memoryTx) SearchMemoriesLocal(userID uint, query string, limit int) ([]*models.Memory, error) {
	return t.s.searchMemoriesLocal(userID, query, limit)
}

func (t memoryTx) CountUsers() (int64, error) {
	return int64(len(t.s.data.users)), nil
}

func (t memoryTx) CountInteractions() (int64, error) {
	return int64(len(t.s.data.interactions)), nil
}

func (t memoryTx) CountMemories() (int64, error) {
	return int64(len(t.s.data.memories)), nil
}

func (t memoryTx) MemoryCountsByType() (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, mem := range t.s.data.memories {
		counts[mem.MemoryType]++
	}
	return counts, nil
}

func (t memoryTx) LastMemoryAt() (*time.Time, error) {
	var last *time.Time
	for _, mem := range t.s.data.memories {
		if last == nil || mem.CreatedAt.After(*last) {
			created := mem.CreatedAt
			last = &created
		}
	}
	return last, nil
}

// Transaction on an in-transaction view runs fn directly; the outer
// transaction owns commit and rollback.
func (t memoryTx) Transaction(fn func(tx Store) error) error {
	return fn(t)
}
