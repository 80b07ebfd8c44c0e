package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "whisper-1"

// OpenAITranscriber sends utterances to the OpenAI audio transcription API,
// or any server exposing the same endpoint.
type OpenAITranscriber struct {
	client   oai.Client
	model    string
	language string
}

// OpenAIConfig configures an OpenAITranscriber.
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
}

// NewOpenAITranscriber validates cfg and builds the client.
func NewOpenAITranscriber(cfg OpenAIConfig) (*OpenAITranscriber, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai transcriber: api key must not be empty")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}

	return &OpenAITranscriber{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.Model,
		language: cfg.Language,
	}, nil
}

func (t *OpenAITranscriber) Name() string { return "openai:" + t.model }

// Transcribe uploads wav and returns the recognised text.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: oai.AudioModel(t.model),
	}
	if t.language != "" {
		params.Language = oai.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return resp.Text, nil
}
