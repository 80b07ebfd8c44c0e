package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterStaticRoutes(t *testing.T) {
	e := echo.New()
	e.GET("/api/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	require.NoError(t, RegisterStaticRoutes(e))

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "root serves form", path: "/", wantStatus: http.StatusOK, wantBody: "Bina Refinery Operations Logbook"},
		{name: "index file", path: "/index.html", wantStatus: http.StatusOK, wantBody: "<html"},
		{name: "unknown page falls back to form", path: "/logbook/today", wantStatus: http.StatusOK, wantBody: "Bina Refinery Operations Logbook"},
		{name: "api routes win", path: "/api/health", wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "unknown api path is not the form", path: "/api/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}
