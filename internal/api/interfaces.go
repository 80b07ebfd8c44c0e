// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/bina-refinery/logbook/internal/reading"
	"github.com/bina-refinery/logbook/internal/session"
	"github.com/bina-refinery/logbook/internal/voice"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// CatalogHandler serves the location/parameter/unit catalog
type CatalogHandler interface {
	HandleGetCatalog(c echo.Context) error
}

// SessionHandler handles operator session and navigation operations
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleSelectLocation(c echo.Context) error
	HandleSelectParameter(c echo.Context) error
	HandleNext(c echo.Context) error
	HandleBack(c echo.Context) error
}

// ReadingHandler handles value capture and log operations
type ReadingHandler interface {
	HandleCaptureVoice(c echo.Context) error
	HandleUploadAudio(c echo.Context) error
	HandleSubmitTranscript(c echo.Context) error
	HandleSubmitManual(c echo.Context) error
	HandleListReadings(c echo.Context) error
	HandleListReadingsMsgpack(c echo.Context) error
	HandleExportCSV(c echo.Context) error
	HandleRemoveLast(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	Create() (*session.Context, error)
	Get(id string) (*session.Context, bool)
	Delete(id string) bool
}

// Recorder is the reading pipeline
type Recorder interface {
	GateOnRange() bool
	RecordTranscript(ctx context.Context, location, parameter, transcript string) (*reading.Outcome, error)
	RecordValue(ctx context.Context, e reading.Entry) (*reading.Outcome, error)
}

// Capturer is the voice adapter. A nil Capturer disables voice input.
type Capturer interface {
	HasMicrophone() bool
	Capture(ctx context.Context) (*voice.Result, error)
	TranscribeWAV(ctx context.Context, wav []byte) (*voice.Result, error)
}
