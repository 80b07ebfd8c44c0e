package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// WhisperTranscriber posts utterances to a whisper.cpp server's /inference
// endpoint, for plants without internet access.
type WhisperTranscriber struct {
	serverURL  string
	language   string
	model      string
	httpClient *http.Client
}

// NewWhisperTranscriber returns a transcriber for the server at serverURL.
func NewWhisperTranscriber(serverURL, language, model string, timeout time.Duration) (*WhisperTranscriber, error) {
	if serverURL == "" {
		return nil, errors.New("whisper transcriber: server URL must not be empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WhisperTranscriber{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   language,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (t *WhisperTranscriber) Name() string { return "whisper.cpp" }

// Transcribe sends wav as multipart/form-data and returns the text field of
// the JSON reply.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	if t.language != "" {
		if err := mw.WriteField("language", t.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if t.model != "" {
		if err := mw.WriteField("model", t.model); err != nil {
			return "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("whisper: write response_format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return result.Text, nil
}
