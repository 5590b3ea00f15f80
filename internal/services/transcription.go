package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// TranscriptionService wraps an OpenAI-compatible speech-to-text endpoint.
// Running without an API key is a valid operating mode: transcription is
// silently disabled and every call returns ("", false).
type TranscriptionService struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewTranscriptionService creates a transcription gateway.
func NewTranscriptionService(apiKey, baseURL string) *TranscriptionService {
	return &TranscriptionService{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   "whisper-1",
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured reports whether an API key was supplied at construction.
func (t *TranscriptionService) IsConfigured() bool {
	return t.apiKey != ""
}

// Transcribe sends the audio file for transcription and returns the text.
// Any failure yields ("", false); errors never reach the pipeline.
func (t *TranscriptionService) Transcribe(ctx context.Context, path string) (string, bool) {
	if !t.IsConfigured() {
		return "", false
	}

	file, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", false
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", false
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return "", false
	}
	if err := writer.Close(); err != nil {
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return "", false
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		log.Printf("⚠️  Transcription request failed: %v", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("⚠️  Transcription returned status %d", resp.StatusCode)
		return "", false
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", false
	}
	return result.Text, true
}
