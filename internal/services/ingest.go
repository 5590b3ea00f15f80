package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/recallhq/memobot-backend/internal/models"
	"github.com/recallhq/memobot-backend/internal/storage"
	"github.com/recallhq/memobot-backend/internal/utils"
)

// Reply texts produced by the pipeline
const (
	ReplyDuplicate    = "Duplicate ignored."
	ReplyAlreadySaved = "This media is already saved ✅"
	ReplySaved        = "Memory saved ✅"
	ReplyError        = "There was an error processing your message ❌"
)

const (
	listLimit            = 10
	searchLimit          = 5
	perceptualCandidates = 100
	snippetLimit         = 120
)

// InboundMessage carries the provider webhook fields for one inbound event.
type InboundMessage struct {
	From             string
	WaID             string
	Body             string
	NumMedia         int
	MediaURL         string
	MediaContentType string
	MessageSid       string
}

// IngestService orchestrates the inbound-message pipeline: idempotency check,
// interaction logging, command dispatch, media dedup, transcription, remote
// memory creation, and local persistence, all inside one transaction.
type IngestService struct {
	store           storage.Store
	media           *MediaService
	transcriber     *TranscriptionService
	mem0            *Mem0Service
	defaultTimezone string
}

// NewIngestService creates the pipeline with its collaborators.
func NewIngestService(store storage.Store, media *MediaService, transcriber *TranscriptionService, mem0 *Mem0Service, defaultTimezone string) *IngestService {
	return &IngestService{
		store:           store,
		media:           media,
		transcriber:     transcriber,
		mem0:            mem0,
		defaultTimezone: defaultTimezone,
	}
}

// Process runs one inbound event to completion and returns the reply text.
// Any unexpected failure rolls back every write from this invocation and
// yields a generic failure reply; the event then relies on the provider's own
// redelivery for a retry.
func (s *IngestService) Process(ctx context.Context, msg InboundMessage) string {
	reply := ReplyError
	err := s.store.Transaction(func(tx storage.Store) error {
		r, err := s.process(ctx, tx, msg)
		if err != nil {
			return err
		}
		reply = r
		return nil
	})
	if err != nil {
		log.Printf("❌ Webhook pipeline error: %v", err)
		return ReplyError
	}
	return reply
}

func (s *IngestService) process(ctx context.Context, tx storage.Store, msg InboundMessage) (string, error) {
	// 1. Identify user (find-or-create by external id)
	waID := msg.WaID
	if waID == "" {
		waID = strings.TrimPrefix(msg.From, "whatsapp:")
	}
	user, err := tx.FindOrCreateUser(waID, msg.From, s.defaultTimezone)
	if err != nil {
		return "", fmt.Errorf("find or create user: %w", err)
	}

	// 2. Idempotency: avoid processing the same MessageSid twice
	if msg.MessageSid != "" {
		if _, err := tx.GetInteractionBySid(msg.MessageSid); err == nil {
			return ReplyDuplicate, nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
	}

	body := strings.TrimSpace(msg.Body)
	hasMedia := msg.NumMedia > 0

	// 3. Record the interaction regardless of command/media
	messageType := models.MessageTypeText
	if hasMedia {
		messageType = models.MessageTypeMedia
	}
	var sid *string
	if msg.MessageSid != "" {
		v := msg.MessageSid
		sid = &v
	}
	interaction := &models.Interaction{
		UserID:           user.ID,
		TwilioMessageSid: sid,
		MessageDirection: models.DirectionInbound,
		MessageType:      messageType,
		BodyText:         msg.Body,
		NumMedia:         msg.NumMedia,
	}
	if err := tx.CreateInteraction(interaction); err != nil {
		return "", fmt.Errorf("create interaction: %w", err)
	}

	// 4. Intent dispatch: commands and implicit queries reply immediately
	switch cmd := ParseIntent(body, hasMedia); cmd.Intent {
	case IntentList:
		return s.handleList(tx, user, cmd.Arg)
	case IntentSearch:
		return s.handleSearch(ctx, tx, user, cmd.Arg)
	}

	// Default: ingest as memory (text or media)
	memoryType := models.MemoryTypeText
	memoryText := body
	mediaPath := ""

	if hasMedia && msg.MediaURL != "" {
		content, contentType, ok := s.media.Fetch(ctx, msg.MediaURL)
		// Fetch failure proceeds as text-only ingestion with the body.
		if ok {
			sha256Hex := utils.ExactHash(content)

			// 5a. Exact dedup: identical bytes already stored
			if _, err := tx.GetMediaAssetByHash(sha256Hex); err == nil {
				return ReplyAlreadySaved, nil
			} else if !errors.Is(err, storage.ErrNotFound) {
				return "", err
			}

			// 5b. Perceptual dedup for images (handles recompression/resizing)
			if strings.Contains(contentType, "image") {
				duplicate, err := s.isPerceptualDuplicate(tx, user.ID, content)
				if err != nil {
					return "", err
				}
				if duplicate {
					return ReplyAlreadySaved, nil
				}
			}

			// 5c. Persist as new media
			mediaPath, err = s.media.Persist(content, sha256Hex, contentType)
			if err != nil {
				return "", fmt.Errorf("persist media: %w", err)
			}
			asset := &models.MediaAsset{
				InteractionID: interaction.ID,
				MediaURL:      msg.MediaURL,
				LocalPath:     mediaPath,
				ContentType:   contentType,
				Sha256Hash:    sha256Hex,
			}
			if err := tx.CreateMediaAsset(asset); err != nil {
				return "", fmt.Errorf("create media asset: %w", err)
			}

			// 6. Classify, transcribe audio
			memoryType = s.media.Classify(contentType)
			if memoryType == models.MemoryTypeAudio {
				if transcript, ok := s.transcriber.Transcribe(ctx, mediaPath); ok && transcript != "" {
					memoryText = transcript
				}
			}
		}
	}

	// 7. Remote memory creation; failure degrades to a local-only memory
	var remoteID *string
	if id, outcome := s.mem0.CreateMemory(ctx, user.WhatsappUserID, memoryType, memoryText, mediaPath, nil); outcome == OutcomeOK && id != "" {
		remoteID = &id
	}

	// 8. Local persistence
	interactionID := interaction.ID
	memory := &models.Memory{
		UserID:        user.ID,
		InteractionID: &interactionID,
		RemoteID:      remoteID,
		MemoryType:    memoryType,
		Text:          memoryText,
	}
	if err := tx.CreateMemory(memory); err != nil {
		return "", fmt.Errorf("create memory: %w", err)
	}

	// 9. Commit happens in Process; confirm to the sender
	return ReplySaved, nil
}

// isPerceptualDuplicate compares the payload's aHash against the user's most
// recent image assets, decoding each candidate from disk.
func (s *IngestService) isPerceptualDuplicate(tx storage.Store, userID uint, content []byte) (bool, error) {
	newHash, ok := utils.ImageAHash(content)
	if !ok {
		return false, nil
	}

	candidates, err := tx.RecentImageAssets(userID, perceptualCandidates)
	if err != nil {
		return false, err
	}
	for _, cand := range candidates {
		candHash, ok := utils.ImageAHashFile(cand.LocalPath)
		if !ok {
			continue
		}
		if utils.HammingDistance(newHash, candHash) <= utils.PerceptualDuplicateThreshold {
			return true, nil
		}
	}
	return false, nil
}

func (s *IngestService) handleList(tx storage.Store, user *models.User, arg string) (string, error) {
	var rng *storage.TimeRange
	if arg != "" {
		tz := user.Timezone
		if tz == "" {
			tz = "UTC"
		}
		if start, end, ok := utils.ParseNaturalTimeRange(arg, tz, time.Now()); ok {
			rng = &storage.TimeRange{Start: start, End: end}
		}
	}

	memories, err := tx.ListMemories(user.ID, rng, listLimit)
	if err != nil {
		return "", err
	}

	if len(memories) == 0 {
		return "No memories found.", nil
	}
	return "Here are your memories:\n" + formatMemoryLines(memories), nil
}

func (s *IngestService) handleSearch(ctx context.Context, tx storage.Store, user *models.User, query string) (string, error) {
	results, err := SearchUserMemories(ctx, tx, s.mem0, user, query, searchLimit)
	if err != nil {
		return "", err
	}

	if len(results) == 0 {
		return "No matching memories found.", nil
	}
	return "Top matches:\n" + formatMemoryLines(results), nil
}

// SearchUserMemories prefers the remote semantic search, resolving each hit
// by remote id to a local memory of the same user, and falls back to a local
// case-insensitive substring match over text and title.
func SearchUserMemories(ctx context.Context, store storage.Store, mem0 *Mem0Service, user *models.User, query string, limit int) ([]*models.Memory, error) {
	var results []*models.Memory

	if hits, outcome := mem0.Search(ctx, user.WhatsappUserID, query); outcome == OutcomeOK && len(hits) > 0 {
		remoteIDs := make([]string, 0, len(hits))
		for _, hit := range hits {
			if hit.ID != "" {
				remoteIDs = append(remoteIDs, hit.ID)
			}
		}
		if len(remoteIDs) > 0 {
			var err error
			results, err = store.MemoriesByRemoteIDs(user.ID, remoteIDs, limit)
			if err != nil {
				return nil, err
			}
		}
	}

	if len(results) == 0 {
		var err error
		results, err = store.SearchMemoriesLocal(user.ID, query, limit)
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func formatMemoryLines(memories []*models.Memory) string {
	lines := make([]string, 0, len(memories))
	for _, m := range memories {
		snippet := strings.TrimSpace(m.Text)
		// Truncate on runes so a multi-byte character at the boundary is not
		// split into invalid UTF-8.
		if runes := []rune(snippet); len(runes) > snippetLimit {
			snippet = string(runes[:snippetLimit-3]) + "..."
		}
		lines = append(lines, fmt.Sprintf("- [%s] (%s) %s",
			m.CreatedAt.Format("2006-01-02T15:04:05"), m.MemoryType, snippet))
	}
	return strings.Join(lines, "\n")
}
