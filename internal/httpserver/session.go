package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ddanilin/storefront/internal/deferred"
	"github.com/ddanilin/storefront/internal/logging"
	"github.com/ddanilin/storefront/internal/session"
)

type SessionHTTP struct {
	Machine *session.Machine
	Queue   *deferred.Queue
}

type sessionView struct {
	Status   session.Status `json:"status"`
	User     any            `json:"user,omitempty"`
	Avatar   string         `json:"avatar,omitempty"`
	ReturnTo string         `json:"return_to,omitempty"`
}

func (h *SessionHTTP) view() sessionView {
	v := sessionView{
		Status: h.Machine.Status(),
		Avatar: h.Machine.CachedAvatar(),
	}
	if p := h.Machine.Profile(); p != nil {
		v.User = p
	}
	return v
}

func (h *SessionHTTP) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, h.view())
}

func (h *SessionHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	// Replay consumes the recorded return path, so grab it first.
	returnTo := h.Queue.ReturnTo()

	if err := h.Machine.Login(ctx, req.Email, req.Password); err != nil {
		return writeError(c, err)
	}

	v := h.view()
	v.ReturnTo = returnTo
	return c.JSON(http.StatusOK, v)
}

func (h *SessionHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.register")

	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	returnTo := h.Queue.ReturnTo()

	if err := h.Machine.Register(ctx, req.Name, req.Email, req.Password); err != nil {
		return writeError(c, err)
	}

	v := h.view()
	v.ReturnTo = returnTo
	return c.JSON(http.StatusCreated, v)
}

func (h *SessionHTTP) Logout(c echo.Context) error {
	if err := h.Machine.Logout(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, h.view())
}
