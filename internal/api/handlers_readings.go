// handlers_readings.go - Value capture and log handlers
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bina-refinery/logbook/internal/models"
	"github.com/bina-refinery/logbook/internal/reading"
	"github.com/bina-refinery/logbook/internal/storage"
	"github.com/bina-refinery/logbook/internal/voice"
)

// ExportFilename is the attachment name of the CSV export.
const ExportFilename = "readings.csv"

// ReadingHandlerImpl implements the ReadingHandler interface
type ReadingHandlerImpl struct {
	store    storage.Store
	sessions SessionManager
	recorder Recorder
	capturer Capturer
}

// NewReadingHandler creates a new reading handler. capturer may be nil when
// voice input is disabled.
func NewReadingHandler(store storage.Store, sessions SessionManager, recorder Recorder, capturer Capturer) ReadingHandler {
	return &ReadingHandlerImpl{
		store:    store,
		sessions: sessions,
		recorder: recorder,
		capturer: capturer,
	}
}

// HandleCaptureVoice records from the server's microphone and logs the
// spoken value against the session's selection
func (h *ReadingHandlerImpl) HandleCaptureVoice(c echo.Context) error {
	if h.capturer == nil {
		return voiceDisabledError()
	}
	return h.runCapture(c, func(ctx context.Context, location, parameter string) (*reading.Outcome, string, error) {
		res, err := h.capturer.Capture(ctx)
		if err != nil {
			return nil, "", err
		}
		out, err := h.recorder.RecordTranscript(ctx, location, parameter, res.Transcript)
		return out, res.Transcript, err
	})
}

// HandleUploadAudio transcribes a WAV recorded by the browser and logs the
// spoken value. The audio is taken from the "audio" form file or, for
// non-multipart requests, the raw body.
func (h *ReadingHandlerImpl) HandleUploadAudio(c echo.Context) error {
	if h.capturer == nil {
		return voiceDisabledError()
	}
	wav, err := readAudio(c)
	if err != nil {
		return err
	}
	if err := voice.CheckWAV(wav); err != nil {
		return NewBadRequestError("audio must be a PCM WAV file", err)
	}
	return h.runCapture(c, func(ctx context.Context, location, parameter string) (*reading.Outcome, string, error) {
		res, err := h.capturer.TranscribeWAV(ctx, wav)
		if err != nil {
			return nil, "", err
		}
		out, err := h.recorder.RecordTranscript(ctx, location, parameter, res.Transcript)
		return out, res.Transcript, err
	})
}

// HandleSubmitTranscript logs the value spoken in a transcript produced by
// the browser's own speech recognition
func (h *ReadingHandlerImpl) HandleSubmitTranscript(c echo.Context) error {
	var req transcriptRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" {
		return FromDomainError(&voice.Error{Kind: voice.KindNoSpeech, Err: errors.New("empty transcript")})
	}
	return h.runCapture(c, func(ctx context.Context, location, parameter string) (*reading.Outcome, string, error) {
		out, err := h.recorder.RecordTranscript(ctx, location, parameter, transcript)
		return out, transcript, err
	})
}

// HandleSubmitManual logs a typed value, optionally in another unit of the
// parameter's unit type
func (h *ReadingHandlerImpl) HandleSubmitManual(c echo.Context) error {
	var req manualRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	return h.runCapture(c, func(ctx context.Context, location, parameter string) (*reading.Outcome, string, error) {
		out, err := h.recorder.RecordValue(ctx, reading.Entry{
			Location:  location,
			Parameter: parameter,
			Value:     *req.Value,
			Unit:      req.Unit,
		})
		return out, "", err
	})
}

type captureFunc func(ctx context.Context, location, parameter string) (*reading.Outcome, string, error)

// runCapture holds the session in its capture step while fn runs, so a
// second capture on the same session is refused until this one finishes.
func (h *ReadingHandlerImpl) runCapture(c echo.Context, fn captureFunc) error {
	sess, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}
	location, parameter, err := sess.BeginCapture()
	if err != nil {
		return FromDomainError(err)
	}

	out, transcript, err := fn(c.Request().Context(), location, parameter)
	sess.FinishCapture(transcript)
	if err != nil {
		return FromDomainError(err)
	}

	status := out.Reading.Status
	return c.JSON(http.StatusCreated, captureResponse{
		Message:    out.Message,
		Reading:    out.Reading,
		Transcript: out.Transcript,
		Alert:      status != "" && status != models.StatusNormal,
		Session:    sess.View(),
	})
}

// HandleListReadings returns the log in stored order
func (h *ReadingHandlerImpl) HandleListReadings(c echo.Context) error {
	resp, err := h.list(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleListReadingsMsgpack returns the log in MessagePack format.
func (h *ReadingHandlerImpl) HandleListReadingsMsgpack(c echo.Context) error {
	resp, err := h.list(c)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(resp)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

func (h *ReadingHandlerImpl) list(c echo.Context) (*readingsResponse, error) {
	readings, err := h.store.ReadAll(c.Request().Context())
	if err != nil {
		return nil, FromDomainError(err)
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 {
		pageSize = len(readings)
	}

	total := len(readings)
	// Bounds are checked before multiplying so huge page numbers cannot wrap.
	start := total
	if pageSize > 0 && page-1 <= total/pageSize {
		start = min((page-1)*pageSize, total)
	}
	end := total
	if pageSize < total-start {
		end = start + pageSize
	}

	window := readings[start:end]
	if window == nil {
		window = []models.Reading{}
	}

	return &readingsResponse{
		Columns:  h.store.Schema().Columns(),
		Readings: window,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// HandleExportCSV downloads the log as readings.csv
func (h *ReadingHandlerImpl) HandleExportCSV(c echo.Context) error {
	data, err := h.store.ExportCSV(c.Request().Context())
	if errors.Is(err, storage.ErrStoreEmpty) {
		return c.JSON(http.StatusOK, warningResponse{Code: "STORE_EMPTY", Warning: "No readings to export."})
	}
	if err != nil {
		return FromDomainError(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+ExportFilename+`"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", data)
}

// HandleRemoveLast deletes the most recent log entry
func (h *ReadingHandlerImpl) HandleRemoveLast(c echo.Context) error {
	removed, err := h.store.RemoveLast(c.Request().Context())
	if errors.Is(err, storage.ErrStoreEmpty) {
		return c.JSON(http.StatusOK, warningResponse{Code: "STORE_EMPTY", Warning: "No entries to remove or file not found."})
	}
	if err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Successfully removed the last log entry.",
		"removed": removed,
	})
}

func voiceDisabledError() *APIError {
	return NewServiceUnavailableError("voice input is disabled on this server")
}

func readAudio(c echo.Context) ([]byte, error) {
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("audio")
		if err != nil {
			return nil, NewValidationError("audio")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, NewBadRequestError("failed to open uploaded audio", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, NewBadRequestError("failed to read uploaded audio", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, NewBadRequestError("failed to read request body", err)
	}
	if len(data) == 0 {
		return nil, NewValidationError("audio")
	}
	return data, nil
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

type manualRequest struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}

func (r *manualRequest) validate() error {
	if r.Value == nil {
		return NewValidationError("value")
	}
	return nil
}

type captureResponse struct {
	Message    string             `json:"message"`
	Reading    models.Reading     `json:"reading"`
	Transcript string             `json:"transcript,omitempty"`
	Alert      bool               `json:"alert"`
	Session    models.SessionView `json:"session"`
}

type readingsResponse struct {
	Columns  []string         `json:"columns" msgpack:"columns"`
	Readings []models.Reading `json:"readings" msgpack:"readings"`
	Total    int              `json:"total" msgpack:"total"`
	Page     int              `json:"page" msgpack:"page"`
	PageSize int              `json:"pageSize" msgpack:"pageSize"`
}

type warningResponse struct {
	Code    string `json:"code"`
	Warning string `json:"warning"`
}
