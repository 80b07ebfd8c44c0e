package voice

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhisperTranscriber(t *testing.T) {
	wav := EncodeWAV(tone(1000), 16000, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inference", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "en", r.FormValue("language"))
		assert.Equal(t, "json", r.FormValue("response_format"))

		f, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		got, _ := io.ReadAll(f)
		assert.Equal(t, wav, got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" two point five bar 2.5\n"}`))
	}))
	defer srv.Close()

	tr, err := NewWhisperTranscriber(srv.URL+"/", "en", "", time.Second)
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), wav)
	require.NoError(t, err)
	assert.Equal(t, " two point five bar 2.5\n", text)
}

func TestWhisperTranscriberServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr, err := NewWhisperTranscriber(srv.URL, "", "", time.Second)
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), EncodeWAV(nil, 16000, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestWhisperThroughCapturerIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	srv.Close() // nothing listening

	tr, err := NewWhisperTranscriber(srv.URL, "", "", time.Second)
	require.NoError(t, err)

	_, err = NewCapturer(nil, tr, testConfig()).TranscribeWAV(context.Background(), EncodeWAV(tone(1), 16000, 1))
	assert.Equal(t, KindServiceUnreachable, KindOf(err))
}

func TestNewTranscriberValidation(t *testing.T) {
	_, err := NewWhisperTranscriber("", "", "", 0)
	assert.Error(t, err)

	_, err = NewOpenAITranscriber(OpenAIConfig{})
	assert.Error(t, err)

	tr, err := NewOpenAITranscriber(OpenAIConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai:whisper-1", tr.Name())
}
