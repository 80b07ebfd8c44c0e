// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bina-refinery/logbook/internal/models"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	variant  models.Variant
	capturer Capturer
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, variant models.Variant, capturer Capturer) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		variant:  variant,
		capturer: capturer,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"version":    h.version,
		"variant":    h.variant,
		"voice":      h.capturer != nil,
		"microphone": h.capturer != nil && h.capturer.HasMicrophone(),
	})
}
