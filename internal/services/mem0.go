package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Outcome classifies a gateway call result instead of overloading nil/empty
// sentinels.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeUnavailable: no credentials were supplied at startup; the call
	// short-circuited without network I/O.
	OutcomeUnavailable
	// OutcomeTransientFailure: retries were exhausted.
	OutcomeTransientFailure
	// OutcomePermanentFailure: the service rejected the request (4xx); not
	// retried.
	OutcomePermanentFailure
)

const mem0MaxRetries = 2 // 3 attempts total

// SearchHit is one remote semantic-search result.
type SearchHit struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Memory string  `json:"memory,omitempty"`
}

// Mem0Service wraps the remote long-term-memory service's create and search
// calls with bounded exponential-backoff retry.
type Mem0Service struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewMem0Service creates the gateway. Without an API key it is "unconfigured"
// and every call returns OutcomeUnavailable immediately.
func NewMem0Service(apiKey, baseURL string) *Mem0Service {
	return &Mem0Service{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured reports whether an API key was supplied at construction.
func (s *Mem0Service) IsConfigured() bool {
	return s.apiKey != ""
}

// CreateMemory stores a memory remotely and returns its remote id. Optional
// fields are included only when non-empty; the media path is attached only if
// the file still exists on disk at call time. Exhausted retries degrade to
// ("", OutcomeTransientFailure) — never an error to the pipeline.
func (s *Mem0Service) CreateMemory(ctx context.Context, externalUserID, memoryType, text, mediaPath string, labels []string) (string, Outcome) {
	if !s.IsConfigured() {
		return "", OutcomeUnavailable
	}

	payload := map[string]any{
		"user_id": externalUserID,
		"type":    memoryType,
	}
	if text != "" {
		payload["text"] = text
	}
	if len(labels) > 0 {
		payload["labels"] = labels
	}
	if mediaPath != "" {
		if _, err := os.Stat(mediaPath); err == nil {
			payload["media_path"] = mediaPath
		}
	}

	var result struct {
		ID string `json:"id"`
	}
	outcome := s.call(ctx, "/v1/memories/", payload, &result)
	if outcome != OutcomeOK {
		return "", outcome
	}
	return result.ID, OutcomeOK
}

// Search runs a remote semantic search scoped to the external user id.
// Persistent failure returns (nil, outcome), never an error.
func (s *Mem0Service) Search(ctx context.Context, externalUserID, query string) ([]SearchHit, Outcome) {
	if !s.IsConfigured() {
		return nil, OutcomeUnavailable
	}

	payload := map[string]any{
		"user_id": externalUserID,
		"query":   query,
	}

	var hits []SearchHit
	outcome := s.call(ctx, "/v1/memories/search/", payload, &hits)
	if outcome != OutcomeOK {
		return nil, outcome
	}
	return hits, OutcomeOK
}

// call POSTs the payload with up to 3 attempts and exponential backoff
// (1s base, 10s cap). A 4xx response is permanent and not retried.
func (s *Mem0Service) call(ctx context.Context, path string, payload any, out any) Outcome {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutcomePermanentFailure
	}

	permanent := false
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
		if err != nil {
			permanent = true
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Token "+s.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			permanent = true
			return backoff.Permanent(fmt.Errorf("memory service rejected request: status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("memory service returned status %d", resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, out)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 10 * time.Second

	if err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(bo, mem0MaxRetries), ctx)); err != nil {
		log.Printf("⚠️  Memory service call %s failed: %v", path, err)
		if permanent {
			return OutcomePermanentFailure
		}
		return OutcomeTransientFailure
	}
	return OutcomeOK
}
