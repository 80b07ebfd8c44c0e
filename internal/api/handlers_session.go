// handlers_session.go - Operator session and navigation handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bina-refinery/logbook/internal/session"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessions SessionManager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions SessionManager) SessionHandler {
	return &SessionHandlerImpl{sessions: sessions}
}

// HandleCreateSession opens a session with the default selection
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	ctx, err := h.sessions.Create()
	if err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusCreated, ctx.View())
}

// HandleGetSession returns the session state
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	ctx, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ctx.View())
}

// HandleDeleteSession ends a session
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if !h.sessions.Delete(id) {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSelectLocation switches the session's location
func (h *SessionHandlerImpl) HandleSelectLocation(c echo.Context) error {
	var req selectLocationRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Location == "" {
		return NewValidationError("location")
	}
	return h.apply(c, func(ctx *session.Context) error {
		return ctx.SelectLocation(req.Location)
	})
}

// HandleSelectParameter switches the session's parameter
func (h *SessionHandlerImpl) HandleSelectParameter(c echo.Context) error {
	var req selectParameterRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Parameter == "" {
		return NewValidationError("parameter")
	}
	return h.apply(c, func(ctx *session.Context) error {
		return ctx.SelectParameter(req.Parameter)
	})
}

// HandleNext advances the wizard
func (h *SessionHandlerImpl) HandleNext(c echo.Context) error {
	return h.apply(c, (*session.Context).Next)
}

// HandleBack returns the wizard to location selection
func (h *SessionHandlerImpl) HandleBack(c echo.Context) error {
	return h.apply(c, (*session.Context).Back)
}

func (h *SessionHandlerImpl) apply(c echo.Context, fn func(*session.Context) error) error {
	ctx, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, ctx.View())
}

func lookupSession(sessions SessionManager, c echo.Context) (*session.Context, error) {
	id := c.Param("id")
	ctx, ok := sessions.Get(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	return ctx, nil
}

type selectLocationRequest struct {
	Location string `json:"location"`
}

type selectParameterRequest struct {
	Parameter string `json:"parameter"`
}
