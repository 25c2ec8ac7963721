package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ddanilin/storefront/internal/app"
	"github.com/ddanilin/storefront/internal/models"
	"github.com/ddanilin/storefront/internal/session"
)

type Deps struct {
	Session  *SessionHTTP
	Commerce *CommerceHTTP
	Catalog  *CatalogHTTP
	Admin    *AdminHTTP
	WS       *RefreshWS
	Machine  *session.Machine
}

func NewDeps(a *app.App) *Deps {
	return &Deps{
		Session:  &SessionHTTP{Machine: a.Session, Queue: a.Queue},
		Commerce: &CommerceHTTP{Machine: a.Session, Queue: a.Queue, Cart: a.Cart, Wishlist: a.Wishlist},
		Catalog:  &CatalogHTTP{Engine: a.Catalog, Refresh: a.RefreshCatalog},
		Admin:    &AdminHTTP{API: a.AdminAPI, Hub: a.Hub, Producer: a.Producer, Stats: a.Stats, Refresh: a.RefreshCatalog},
		WS:       &RefreshWS{Hub: a.Hub},
		Machine:  a.Session,
	}
}

func (d *Deps) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p := d.Machine.Profile()
		if d.Machine.Status() != session.StatusAuthenticated || p == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		if p.Role != models.RoleAdmin && p.Role != models.RoleSuperAdmin {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "you don't have enough rights"})
		}
		return next(c)
	}
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	v1 := e.Group("/api/v1")

	v1.GET("/session", d.Session.GetSession)
	v1.POST("/login", d.Session.Login)
	v1.POST("/register", d.Session.Register)
	v1.POST("/logout", d.Session.Logout)

	cart := v1.Group("/cart")
	cart.GET("", d.Commerce.GetCart)
	cart.POST("", d.Commerce.AddToCart)
	cart.DELETE("", d.Commerce.RemoveFromCart)
	cart.PATCH("", d.Commerce.SetCartQuantity)

	wishlist := v1.Group("/wishlist")
	wishlist.GET("", d.Commerce.GetWishlist)
	wishlist.POST("", d.Commerce.AddToWishlist)
	wishlist.DELETE("", d.Commerce.RemoveFromWishlist)

	cat := v1.Group("/catalog")
	cat.GET("", d.Catalog.Query)
	cat.PUT("/filters", d.Catalog.SetFilters)
	cat.DELETE("/filters", d.Catalog.ClearFilters)
	cat.POST("/more", d.Catalog.LoadMore)
	cat.POST("/search", d.Catalog.Search)
	cat.GET("/recent-searches", d.Catalog.RecentSearches)
	cat.GET("/featured", d.Catalog.Featured)
	cat.GET("/best-sellers", d.Catalog.BestSellers)
	cat.POST("/refresh", d.Catalog.ReFetch)

	admin := v1.Group("/admin", d.requireAdmin)
	admin.POST("/products", d.Admin.CreateProduct)
	admin.PATCH("/products/:id", d.Admin.UpdateProduct)
	admin.DELETE("/products/:id", d.Admin.DeleteProduct)
	admin.GET("/users", d.Admin.GetUsers)
	admin.POST("/users", d.Admin.CreateUser)
	admin.PATCH("/users/:id/status", d.Admin.UpdateUserStatus)
	admin.DELETE("/users/:id", d.Admin.DeleteUser)
	admin.GET("/transactions", d.Admin.GetTransactions)
	admin.GET("/stats", d.Admin.GetStats)

	e.GET("/ws/catalog", d.WS.Stream)
}
