package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ddanilin/storefront/internal/adminapi"
	"github.com/ddanilin/storefront/internal/events"
	"github.com/ddanilin/storefront/internal/logging"
	"github.com/ddanilin/storefront/internal/stats"
)

type AdminHTTP struct {
	API      *adminapi.Client
	Hub      *events.Hub
	Producer *events.Producer
	Stats    *stats.Poller
	Refresh  func(ctx context.Context) error
}

// announce refreshes the local catalog and tells every open catalog
// view (local and remote) that products changed.
func (h *AdminHTTP) announce(ctx context.Context, kind, productID string) {
	l := logging.FromContext(ctx)

	if err := h.Refresh(ctx); err != nil {
		l.Warn("catalog_refresh_failed", "error", err)
	}

	sig := events.NewSignal(kind, productID)
	h.Hub.Broadcast(sig)

	if err := h.Producer.PublishSignal(ctx, sig); err != nil {
		l.Warn("signal_publish_failed", "error", err)
	}
}

func (h *AdminHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.create_product")

	var req adminapi.ProductInput
	if err := c.Bind(&req); err != nil {
		l.Warn("create_product_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	item, err := h.API.CreateProduct(ctx, req)
	if err != nil {
		l.Error("create_product_error", "error", err)
		return writeError(c, err)
	}

	h.announce(ctx, events.ProductCreated, item.ID)
	return c.JSON(http.StatusCreated, item)
}

func (h *AdminHTTP) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_product")

	var req adminapi.ProductInput
	if err := c.Bind(&req); err != nil {
		l.Warn("update_product_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	item, err := h.API.UpdateProduct(ctx, c.Param("id"), req)
	if err != nil {
		l.Error("update_product_error", "error", err)
		return writeError(c, err)
	}

	h.announce(ctx, events.ProductUpdated, item.ID)
	return c.JSON(http.StatusOK, item)
}

func (h *AdminHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete_product")

	id := c.Param("id")
	if err := h.API.DeleteProduct(ctx, id); err != nil {
		l.Error("delete_product_error", "error", err)
		return writeError(c, err)
	}

	h.announce(ctx, events.ProductDeleted, id)
	return c.NoContent(http.StatusNoContent)
}

func listParams(c echo.Context) adminapi.ListParams {
	var p adminapi.ListParams
	echo.QueryParamsBinder(c).Int("page", &p.Page).Int("size", &p.Size).String("q", &p.Search)
	return p
}

func (h *AdminHTTP) GetUsers(c echo.Context) error {
	users, err := h.API.GetUsers(c.Request().Context(), listParams(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AdminHTTP) CreateUser(c echo.Context) error {
	var req adminapi.UserInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	user, err := h.API.CreateUser(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *AdminHTTP) UpdateUserStatus(c echo.Context) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	user, err := h.API.UpdateUserStatus(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AdminHTTP) DeleteUser(c echo.Context) error {
	if err := h.API.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHTTP) GetTransactions(c echo.Context) error {
	txs, err := h.API.GetTransactions(c.Request().Context(), listParams(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, txs)
}

// GetStats falls back to the poller's last known good snapshot on
// transport failure so the dashboard does not blank out.
func (h *AdminHTTP) GetStats(c echo.Context) error {
	ctx := c.Request().Context()

	current, err := h.API.GetStats(ctx)
	if err != nil {
		if errors.Is(err, adminapi.ErrTransport) {
			if last := h.Stats.Last(); last != nil {
				return c.JSON(http.StatusOK, echo.Map{"stats": last, "stale": true})
			}
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"stats": current, "stale": false})
}
