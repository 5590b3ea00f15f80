package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/memobot-backend/internal/models"
	"github.com/recallhq/memobot-backend/internal/storage"
)

func newTestIngest(t *testing.T, store storage.Store) *IngestService {
	t.Helper()
	return NewIngestService(
		store,
		NewMediaService("AC123", "secret", t.TempDir()),
		NewTranscriptionService("", ""),
		NewMem0Service("", ""),
		"UTC",
	)
}

func textMessage(sid, body string) InboundMessage {
	return InboundMessage{
		From:       "whatsapp:+15551230001",
		WaID:       "15551230001",
		Body:       body,
		MessageSid: sid,
	}
}

// gridPNG encodes an 8x8 grayscale PNG whose pixels map 1:1 onto the
// perceptual-hash grid.
func gridPNG(t *testing.T, pixels [64]uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	copy(img.Pix, pixels[:])

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func halfBrightPixels(flips ...int) [64]uint8 {
	var px [64]uint8
	for i := range px {
		if i%8 >= 4 {
			px[i] = 255
		}
	}
	for _, i := range flips {
		px[i] = 255 - px[i]
	}
	return px
}

// mediaServer serves named payloads with fixed content types.
func mediaServer(t *testing.T, files map[string]struct {
	content     []byte
	contentType string
}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", f.contentType)
		_, _ = w.Write(f.content)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestEndToEndTextIngestion(t *testing.T) {
	store := storage.NewMemoryStore()
	ingest := newTestIngest(t, store)

	reply := ingest.Process(context.Background(), textMessage("SM1", "Remember I parked on level 3"))
	assert.Equal(t, ReplySaved, reply)

	users, _ := store.CountUsers()
	interactions, _ := store.CountInteractions()
	memories, _ := store.CountMemories()
	assert.EqualValues(t, 1, users)
	assert.EqualValues(t, 1, interactions)
	assert.EqualValues(t, 1, memories)

	in, err := store.GetInteractionBySid("SM1")
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeText, in.MessageType)
	assert.Equal(t, models.DirectionInbound, in.MessageDirection)

	stored, err := store.ListMemories(in.UserID, nil, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, models.MemoryTypeText, stored[0].MemoryType)
	assert.Equal(t, "Remember I parked on level 3", stored[0].Text)
	assert.Nil(t, stored[0].RemoteID, "unconfigured gateway leaves no remote id")
	require.NotNil(t, stored[0].InteractionID)
	assert.Equal(t, in.ID, *stored[0].InteractionID)
}

func TestIdempotencyByMessageSid(t *testing.T) {
	store := storage.NewMemoryStore()
	ingest := newTestIngest(t, store)

	first := ingest.Process(context.Background(), textMessage("SM1", "note to self"))
	second := ingest.Process(context.Background(), textMessage("SM1", "note to self"))

	assert.Equal(t, ReplySaved, first)
	assert.Equal(t, ReplyDuplicate, second)

	interactions, _ := store.CountInteractions()
	memories, _ := store.CountMemories()
	assert.EqualValues(t, 1, interactions)
	assert.EqualValues(t, 1, memories)
}

func TestExactMediaDedup(t *testing.T) {
	img := gridPNG(t, halfBrightPixels())
	server := mediaServer(t, map[string]struct {
		content     []byte
		contentType string
	}{
		"/first.png":  {img, "image/png"},
		"/second.png": {img, "image/png"}, // identical bytes, different URL
	})

	store := storage.NewMemoryStore()
	ingest := newTestIngest(t, store)

	msg := textMessage("SM1", "")
	msg.NumMedia = 1
	msg.MediaURL = server.URL + "/first.png"
	msg.MediaContentType = "image/png"
	assert.Equal(t, ReplySaved, ingest.Process(context.Background(), msg))

	dup := textMessage("SM2", "")
	dup.NumMedia = 1
	dup.MediaURL = server.URL + "/second.png"
	dup.MediaContentType = "image/png"
	assert.Equal(t, ReplyAlreadySaved, ingest.Process(context.Background(), dup))

	// The duplicate attempt keeps its interaction log but creates no new
	// asset or memory.
	interactions, _ := store.CountInteractions()
	memories, _ := store.CountMemories()
	assert.EqualValues(t, 2, interactions)
	assert.EqualValues(t, 1, memories)
}

func TestPerceptualMediaDedup(t *testing.T) {
	base := gridPNG(t, halfBrightPixels())
	near := gridPNG(t, halfBrightPixels(0, 9))         // 2 bits off: duplicate
	far := gridPNG(t, invert(halfBrightPixels()))      // 64 bits off: distinct
	server := mediaServer(t, map[string]struct {
		content     []byte
		contentType string
	}{
		"/base.png": {base, "image/png"},
		"/near.png": {near, "image/png"},
		"/far.png":  {far, "image/png"},
	})

	store := storage.NewMemoryStore()
	ingest := newTestIngest(t, store)

	send := func(sid, path string) string {
		msg := textMessage(sid, "")
		msg.NumMedia = 1
		msg.MediaURL = server.URL + path
		msg.MediaContentType = "image/png"
		return ingest.Process(context.Background(), msg)
	}

	assert.Equal(t, ReplySaved, send("SM1", "/base.png"))
	assert.Equal(t, ReplyAlreadySaved, send("SM2", "/near.png"))
	assert.Equal(t, ReplySaved, send("SM3", "/far.png"))

	memories, _ := store.CountMemories()
	assert.EqualValues(t, 2, memories)
}

func invert(px [64]uint8) [64]uint8 {
	for i := range px {
		px[i] = 255 - px[i]
	}
	return px
}

func TestAudioIngestionWithoutTranscription(t *testing.T) {
	server := mediaServer(t, map[string]struct {
		content     []byte
		contentType string
	}{
		"/note.ogg": {[]byte("ogg audio payload"), "audio/ogg"},
	})

	store := storage.NewMemoryStore()
	ingest := newTestIngest(t, store)

	msg := textMessage("SM1", "")
	msg.NumMedia = 1
	msg.MediaURL = server.URL + "/note.ogg"
	msg.MediaContentType = "audio/ogg"
	assert.Equal(t, ReplySaved, ingest.Process(context.Background(), msg))

	in, err := store.GetInteractionBySid("SM1")
	require.NoError(t, err)
	stored, err := store.ListMemories(in.UserID, nil, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, models.MemoryTypeAudio, stored[0].MemoryType)
	assert.Empty(t, stored[0].Text, "disabled transcription keeps the empty body")
}

func TestFetchFailureFallsBackToText(t *testing.T) {
	store := storage.NewMemoryStore()
	ingest := newTestIngest(t, store)

	msg := textMessage("SM1", "caption text")
	msg.NumMedia = 1
	msg.MediaURL = "http://127.0.0.1:1/gone.jpg"
	msg.MediaContentType = "image/jpeg"
	assert.Equal(t, ReplySaved, ingest.Process(context.Background(), msg))

	in, err := store.GetInteractionBySid("SM1")
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeMedia, in.MessageType)

	stored, err := store.ListMemories(in.UserID, nil, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, models.MemoryTypeText, stored[0].MemoryType)
	assert.Equal(t, "caption text", stored[0].Text)
}

// failingStore forces the local Memory insert to fail, simulating an
// unexpected downstream error past the gateways.
type failingStore struct {
	storage.Store
}

func (f failingStore) Transaction(fn func(tx storage.Store) error) error {
	return f.Store.Transaction(func(tx storage.Store) error {
		return fn(failingStore{tx})
	})
}

func (f failingStore) CreateMemory(m *models.Memory) error {
	return errors.New("disk on fire")
}

func TestRollbackLeavesNoRows(t *testing.T) {
	inner := storage.NewMemoryStore()
	ingest := newTestIngest(t, failingStore{inner})

	reply := ingest.Process(context.Background(), textMessage("SM1", "doomed"))
	assert.Equal(t, ReplyError, reply)

	users, _ := inner.CountUsers()
	interactions, _ := inner.CountInteractions()
	memories, _ := inner.CountMemories()
	assert.EqualValues(t, 0, users)
	assert.EqualValues(t, 0, interactions)
	assert.EqualValues(t, 0, memories)

	// A redelivery after the rollback is reprocessed from scratch.
	ok := newTestIngest(t, inner)
	assert.Equal(t, ReplySaved, ok.Process(context.Background(), textMessage("SM1", "doomed")))
}

func TestListCommand(t *testing.T) {
	store := storage.NewMemoryStore()
	ingest := newTestIngest(t, store)

	require.Equal(t, ReplySaved, ingest.Process(context.Background(), textMessage("SM1", "hello world")))

	reply := ingest.Process(context.Background(), textMessage("SM2", "/list"))
	assert.True(t, strings.HasPrefix(reply, "Here are your memories:"), reply)
	assert.Contains(t, reply, "hello world")

	// A range covering now includes the memory; the command itself stores
	// nothing.
	reply = ingest.Process(context.Background(), textMessage("SM3", "/list last week"))
	assert.Contains(t, reply, "hello world")

	// An unparseable range falls back to the unfiltered listing.
	reply = ingest.Process(context.Background(), textMessage("SM4", "/list blargh nonsense"))
	assert.Contains(t, reply, "hello world")

	memories, _ := store.CountMemories()
	assert.EqualValues(t, 1, memories)
}

func TestListCommandEmpty(t *testing.T) {
	store := storage.NewMemoryStore()
	ingest := newTestIngest(t, store)

	reply := ingest.Process(context.Background(), textMessage("SM1", "/list"))
	assert.Equal(t, "No memories found.", reply)
}

func TestSearchCommandLocalFallback(t *testing.T) {
	store := storage.NewMemoryStore()
	ingest := newTestIngest(t, store)

	require.Equal(t, ReplySaved, ingest.Process(context.Background(), textMessage("SM1", "hello world")))

	reply := ingest.Process(context.Background(), textMessage("SM2", "/search HELLO"))
	assert.True(t, strings.HasPrefix(reply, "Top matches:"), reply)
	assert.Contains(t, reply, "hello world")

	reply = ingest.Process(context.Background(), textMessage("SM3", "/search unrelated"))
	assert.Equal(t, "No matching memories found.", reply)
}

func TestImplicitQuestionRoutesToSearch(t *testing.T) {
	store := storage.NewMemoryStore()
	ingest := newTestIngest(t, store)

	require.Equal(t, ReplySaved, ingest.Process(context.Background(), textMessage("SM1", "hello world")))

	// The whole question is the query; it shares no substring with the stored
	// text, so the local fallback finds nothing. The point is the routing:
	// a search reply instead of a save.
	reply := ingest.Process(context.Background(), textMessage("SM2", "where did I say hello?"))
	assert.Equal(t, "No matching memories found.", reply)

	// Questions are answered, not stored.
	memories, _ := store.CountMemories()
	assert.EqualValues(t, 1, memories)
	interactions, _ := store.CountInteractions()
	assert.EqualValues(t, 2, interactions, "the question is still logged")
}

func TestFormatMemoryLinesTruncatesOnRunes(t *testing.T) {
	long := strings.Repeat("é", 200)
	memories := []*models.Memory{{MemoryType: models.MemoryTypeText, Text: long}}

	line := formatMemoryLines(memories)
	require.True(t, utf8.ValidString(line), "truncation must not split a rune")
	assert.True(t, strings.HasSuffix(line, "..."))
	assert.Contains(t, line, strings.Repeat("é", 117)+"...")
	assert.NotContains(t, line, strings.Repeat("é", 118))

	short := []*models.Memory{{MemoryType: models.MemoryTypeText, Text: "kept whole"}}
	assert.Contains(t, formatMemoryLines(short), "kept whole")
}

func TestSearchPrefersRemoteResults(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/memories/":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "mem-42"})
		case "/v1/memories/search/":
			_ = json.NewEncoder(w).Encode([]SearchHit{{ID: "mem-42", Score: 0.99}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer remote.Close()

	store := storage.NewMemoryStore()
	ingest := NewIngestService(
		store,
		NewMediaService("AC123", "secret", t.TempDir()),
		NewTranscriptionService("", ""),
		NewMem0Service("test-key", remote.URL),
		"UTC",
	)

	require.Equal(t, ReplySaved, ingest.Process(context.Background(), textMessage("SM1", "hello world")))

	// The query shares no substring with the stored text; only the remote id
	// resolution can find it.
	reply := ingest.Process(context.Background(), textMessage("SM2", "/search parking"))
	assert.True(t, strings.HasPrefix(reply, "Top matches:"), reply)
	assert.Contains(t, reply, "hello world")
}
