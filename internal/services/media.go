package services

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/recallhq/memobot-backend/internal/models"
)

// MediaService downloads, persists, and classifies inbound media payloads.
// Files are stored content-addressed at <storage_dir>/media/<sha256><ext>.
type MediaService struct {
	accountSID string
	authToken  string
	storageDir string
	client     *http.Client
}

// NewMediaService creates a media service. Twilio credentials are needed for
// authenticated media downloads; without them every Fetch soft-fails.
func NewMediaService(accountSID, authToken, storageDir string) *MediaService {
	return &MediaService{
		accountSID: accountSID,
		authToken:  authToken,
		storageDir: storageDir,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch retrieves a media payload from the provider's media endpoint. Any
// failure (missing credentials, network error, non-200) is a soft failure:
// the pipeline falls back to text-only ingestion.
func (m *MediaService) Fetch(ctx context.Context, mediaURL string) ([]byte, string, bool) {
	if m.accountSID == "" || m.authToken == "" {
		return nil, "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", false
	}
	req.SetBasicAuth(m.accountSID, m.authToken)

	resp, err := m.client.Do(req)
	if err != nil {
		log.Printf("⚠️  Media download failed: %v", err)
		return nil, "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("⚠️  Media download returned status %d", resp.StatusCode)
		return nil, "", false
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", false
	}
	return content, resp.Header.Get("Content-Type"), true
}

// Persist writes the payload to <storage_dir>/media/<hash><ext> if a file at
// that path does not already exist, and returns the path. Re-persisting
// identical content is a no-op, so concurrent writers racing on the same hash
// cannot corrupt state.
func (m *MediaService) Persist(content []byte, sha256Hex, contentType string) (string, error) {
	mediaDir := filepath.Join(m.storageDir, "media")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(mediaDir, sha256Hex+ExtensionForContentType(contentType))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Classify maps a content type to a memory type.
func (m *MediaService) Classify(contentType string) string {
	switch {
	case strings.Contains(contentType, "image"):
		return models.MemoryTypeImage
	case strings.Contains(contentType, "audio") || strings.Contains(contentType, "ogg"):
		return models.MemoryTypeAudio
	default:
		return models.MemoryTypeText
	}
}

// ExtensionForContentType maps a content type to a file extension, empty when
// unrecognized.
func ExtensionForContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "jpeg"):
		return ".jpg"
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "ogg"):
		return ".ogg"
	case strings.Contains(contentType, "mp3"):
		return ".mp3"
	case strings.Contains(contentType, "mp4"), strings.Contains(contentType, "mpeg4"):
		return ".mp4"
	default:
		return ""
	}
}
