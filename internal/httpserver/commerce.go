package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ddanilin/storefront/internal/collections"
	"github.com/ddanilin/storefront/internal/deferred"
	"github.com/ddanilin/storefront/internal/logging"
	"github.com/ddanilin/storefront/internal/models"
	"github.com/ddanilin/storefront/internal/session"
)

type CommerceHTTP struct {
	Machine  *session.Machine
	Queue    *deferred.Queue
	Cart     *collections.Collection
	Wishlist *collections.Collection
}

type cartView struct {
	Items      []models.LineEntry `json:"items"`
	TotalItems uint               `json:"total_items"`
	TotalPrice float64            `json:"total_price"`
}

func (h *CommerceHTTP) cartView() cartView {
	return cartView{
		Items:      h.Cart.Items(),
		TotalItems: h.Cart.TotalItems(),
		TotalPrice: h.Cart.TotalPrice(),
	}
}

type addRequest struct {
	Product  models.ProductSnapshot `json:"product"`
	Size     string                 `json:"size"`
	Color    string                 `json:"color"`
	Quantity uint                   `json:"quantity"`
	ReturnTo string                 `json:"return_to"`
}

func (h *CommerceHTTP) GetCart(c echo.Context) error {
	return c.JSON(http.StatusOK, h.cartView())
}

// AddToCart gates the action, not the collection: an anonymous add is
// captured as a deferred intent and answered with 401 so the view can
// route to login.
func (h *CommerceHTTP) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	var req addRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_to_cart_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Product.ID == "" {
		l.Warn("add_to_cart_error", "status", 400)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "product required"})
	}

	if h.Machine.Status() != session.StatusAuthenticated {
		if err := h.Queue.CaptureCartIntent(req.Product, req.Size, req.Color, req.Quantity, req.ReturnTo); err != nil {
			l.Error("capture_cart_intent_error", "status", 500, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
		l.Info("cart_intent_captured", "product", req.Product.ID)
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"queued":   true,
			"redirect": "/login",
		})
	}

	entry := models.LineEntry{
		ProductID: req.Product.ID,
		Name:      req.Product.Name,
		Brand:     req.Product.Brand,
		Price:     req.Product.Price,
		Image:     req.Product.Image,
		Size:      req.Size,
		Color:     req.Color,
		Quantity:  req.Quantity,
	}
	qty, err := h.Cart.Add(entry)
	if err != nil {
		l.Error("add_to_cart_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	l.Info("added_to_cart", "line", collections.Describe(entry), "quantity", qty)
	return c.JSON(http.StatusOK, echo.Map{
		"quantity": qty,
		"cart":     h.cartView(),
	})
}

type keyRequest struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

func (k keyRequest) key() collections.Key {
	return collections.Key{ProductID: k.ProductID, Size: k.Size, Color: k.Color}
}

func (h *CommerceHTTP) RemoveFromCart(c echo.Context) error {
	var req keyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Cart.Remove(req.key()); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, h.cartView())
}

func (h *CommerceHTTP) SetCartQuantity(c echo.Context) error {
	var req keyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Cart.SetQuantity(req.key(), req.Quantity); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, h.cartView())
}

func (h *CommerceHTTP) GetWishlist(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"items": h.Wishlist.Items()})
}

func (h *CommerceHTTP) AddToWishlist(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wishlist.add")

	var req addRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_to_wishlist_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Product.ID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "product required"})
	}

	if h.Machine.Status() != session.StatusAuthenticated {
		if err := h.Queue.CaptureWishlistIntent(req.Product, req.ReturnTo); err != nil {
			l.Error("capture_wishlist_intent_error", "status", 500, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
		l.Info("wishlist_intent_captured", "product", req.Product.ID)
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"queued":   true,
			"redirect": "/login",
		})
	}

	entry := models.LineEntry{
		ProductID: req.Product.ID,
		Name:      req.Product.Name,
		Brand:     req.Product.Brand,
		Price:     req.Product.Price,
		Image:     req.Product.Image,
	}
	if _, err := h.Wishlist.Add(entry); err != nil {
		l.Error("add_to_wishlist_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": h.Wishlist.Items()})
}

func (h *CommerceHTTP) RemoveFromWishlist(c echo.Context) error {
	var req keyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Wishlist.Remove(collections.Key{ProductID: req.ProductID}); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": h.Wishlist.Items()})
}
