package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMem0UnconfiguredShortCircuits(t *testing.T) {
	s := NewMem0Service("", "http://unused.invalid")

	id, outcome := s.CreateMemory(context.Background(), "wa-1", "text", "hello", "", nil)
	assert.Empty(t, id)
	assert.Equal(t, OutcomeUnavailable, outcome)

	hits, outcome := s.Search(context.Background(), "wa-1", "hello")
	assert.Nil(t, hits)
	assert.Equal(t, OutcomeUnavailable, outcome)
}

func TestMem0CreateMemory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/memories/", r.URL.Path)
		require.Equal(t, "Token test-key", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "wa-1", payload["user_id"])
		assert.Equal(t, "text", payload["type"])
		assert.Equal(t, "hello", payload["text"])
		// Empty optionals are omitted
		assert.NotContains(t, payload, "labels")
		assert.NotContains(t, payload, "media_path")

		_ = json.NewEncoder(w).Encode(map[string]string{"id": "mem-42"})
	}))
	defer server.Close()

	s := NewMem0Service("test-key", server.URL)
	id, outcome := s.CreateMemory(context.Background(), "wa-1", "text", "hello", "", nil)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, "mem-42", id)
}

func TestMem0CreateMemorySkipsMissingMediaPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.NotContains(t, payload, "media_path")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "mem-1"})
	}))
	defer server.Close()

	s := NewMem0Service("test-key", server.URL)
	_, outcome := s.CreateMemory(context.Background(), "wa-1", "image", "", "/nonexistent/file.jpg", nil)
	assert.Equal(t, OutcomeOK, outcome)
}

func TestMem0RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "mem-7"})
	}))
	defer server.Close()

	s := NewMem0Service("test-key", server.URL)
	id, outcome := s.CreateMemory(context.Background(), "wa-1", "text", "hi", "", nil)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, "mem-7", id)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMem0PermanentFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	s := NewMem0Service("test-key", server.URL)
	id, outcome := s.CreateMemory(context.Background(), "wa-1", "text", "hi", "", nil)
	assert.Empty(t, id)
	assert.Equal(t, OutcomePermanentFailure, outcome)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMem0Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/memories/search/", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]SearchHit{
			{ID: "mem-1", Score: 0.91},
			{ID: "mem-2", Score: 0.44},
		})
	}))
	defer server.Close()

	s := NewMem0Service("test-key", server.URL)
	hits, outcome := s.Search(context.Background(), "wa-1", "parking")
	require.Equal(t, OutcomeOK, outcome)
	require.Len(t, hits, 2)
	assert.Equal(t, "mem-1", hits[0].ID)
	assert.InDelta(t, 0.91, hits[0].Score, 1e-9)
}
