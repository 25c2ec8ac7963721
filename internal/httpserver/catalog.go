package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ddanilin/storefront/internal/catalog"
	"github.com/ddanilin/storefront/internal/logging"
	"github.com/ddanilin/storefront/internal/models"
)

type CatalogHTTP struct {
	Engine *catalog.Engine
	// Refresh re-fetches the base catalog from the admin API.
	Refresh func(ctx context.Context) error
}

type catalogView struct {
	Items   []models.CatalogItem `json:"items"`
	Matches int                  `json:"matches"`
	HasMore bool                 `json:"has_more"`
	Filters models.FilterState   `json:"filters"`
}

func (h *CatalogHTTP) view() catalogView {
	return catalogView{
		Items:   h.Engine.Page(),
		Matches: h.Engine.Matches(),
		HasMore: h.Engine.HasMore(),
		Filters: h.Engine.Filters(),
	}
}

// Query renders the catalog page. Query params are the deep-link
// channel; the sidebar facet state set via SetFilters wins per
// dimension when both are present.
func (h *CatalogHTTP) Query(c echo.Context) error {
	h.Engine.SetQueryParams(catalog.QueryParams{
		Category: c.QueryParam("category"),
		Brand:    c.QueryParam("brand"),
		Gender:   c.QueryParam("gender"),
		Product:  c.QueryParam("product"),
		Search:   c.QueryParam("q"),
	})
	return c.JSON(http.StatusOK, h.view())
}

func (h *CatalogHTTP) SetFilters(c echo.Context) error {
	var req models.FilterState
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Engine.SetFilters(req); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, h.view())
}

func (h *CatalogHTTP) ClearFilters(c echo.Context) error {
	if err := h.Engine.ClearFilters(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, h.view())
}

func (h *CatalogHTTP) LoadMore(c echo.Context) error {
	h.Engine.LoadMore()
	return c.JSON(http.StatusOK, h.view())
}

func (h *CatalogHTTP) Search(c echo.Context) error {
	var req struct {
		Term string `json:"term"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Engine.SetSearch(req.Term); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, h.view())
}

func (h *CatalogHTTP) RecentSearches(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"terms": h.Engine.RecentSearches()})
}

func (h *CatalogHTTP) Featured(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"items": h.Engine.Featured()})
}

func (h *CatalogHTTP) BestSellers(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"items": h.Engine.BestSellers()})
}

// ReFetch pulls a fresh catalog from the admin API; views call this
// when they receive a refresh signal.
func (h *CatalogHTTP) ReFetch(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.Refresh(ctx); err != nil {
		logging.FromContext(ctx).Warn("catalog_refetch_failed", "handler", "catalog.refetch", "error", err)
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, h.view())
}
