// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/bina-refinery/logbook/internal/catalog"
	"github.com/bina-refinery/logbook/internal/storage"
)

// Capture routes that wait on the microphone or the transcription service
// and so run longer than ordinary requests.
const (
	VoiceCapturePath = "/api/sessions/:id/readings/voice"
	AudioUploadPath  = "/api/sessions/:id/readings/audio"
)

// IsLongRunning reports whether the matched route is a voice capture route.
func IsLongRunning(c echo.Context) bool {
	return c.Path() == VoiceCapturePath || c.Path() == AudioUploadPath
}

// Dependencies holds all handler dependencies
type Dependencies struct {
	Catalog  *catalog.Catalog
	Store    storage.Store
	Sessions SessionManager
	Recorder Recorder
	// Capturer is nil when voice input is disabled.
	Capturer Capturer
	Version  string
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Catalog CatalogHandler
	Session SessionHandler
	Reading ReadingHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.Catalog.Variant(), deps.Capturer),
		Catalog: NewCatalogHandler(deps.Catalog, deps.Recorder.GateOnRange()),
		Session: NewSessionHandler(deps.Sessions),
		Reading: NewReadingHandler(deps.Store, deps.Sessions, deps.Recorder, deps.Capturer),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Catalog
	e.GET("/api/catalog", handlers.Catalog.HandleGetCatalog)

	// Session routes
	sessionGroup := e.Group("/api/sessions")
	sessionGroup.POST("", handlers.Session.HandleCreateSession)
	sessionGroup.GET("/:id", handlers.Session.HandleGetSession)
	sessionGroup.DELETE("/:id", handlers.Session.HandleDeleteSession)
	sessionGroup.PUT("/:id/location", handlers.Session.HandleSelectLocation)
	sessionGroup.PUT("/:id/parameter", handlers.Session.HandleSelectParameter)
	sessionGroup.POST("/:id/next", handlers.Session.HandleNext)
	sessionGroup.POST("/:id/back", handlers.Session.HandleBack)

	// Capture routes
	e.POST(VoiceCapturePath, handlers.Reading.HandleCaptureVoice)
	e.POST(AudioUploadPath, handlers.Reading.HandleUploadAudio)
	sessionGroup.POST("/:id/readings/transcript", handlers.Reading.HandleSubmitTranscript)
	sessionGroup.POST("/:id/readings/manual", handlers.Reading.HandleSubmitManual)

	// Log routes
	readingGroup := e.Group("/api/readings")
	readingGroup.GET("", handlers.Reading.HandleListReadings)
	readingGroup.GET("/msgpack", handlers.Reading.HandleListReadingsMsgpack)
	readingGroup.GET("/export", handlers.Reading.HandleExportCSV)
	readingGroup.DELETE("/last", handlers.Reading.HandleRemoveLast)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler
}
