package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddanilin/storefront/internal/adminapi"
	"github.com/ddanilin/storefront/internal/authclient"
	"github.com/ddanilin/storefront/internal/catalog"
	"github.com/ddanilin/storefront/internal/collections"
	"github.com/ddanilin/storefront/internal/deferred"
	"github.com/ddanilin/storefront/internal/events"
	"github.com/ddanilin/storefront/internal/models"
	"github.com/ddanilin/storefront/internal/session"
	"github.com/ddanilin/storefront/internal/stats"
	"github.com/ddanilin/storefront/internal/store"
)

type testEnv struct {
	e        *echo.Echo
	st       *store.Store
	machine  *session.Machine
	cart     *collections.Collection
	wishlist *collections.Collection
	engine   *catalog.Engine
	hub      *events.Hub

	mu       sync.Mutex
	products []models.CatalogItem
	userRole string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{userRole: models.RoleUser}

	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		role := env.userRole
		env.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"token":   "tok-1",
			"user": map[string]string{
				"id": "u1", "name": "Dana", "email": "dana@example.com",
				"role": role, "avatar": "https://cdn/x.png",
			},
		})
	}))
	t.Cleanup(authSrv.Close)

	adminSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		defer env.mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/products":
			json.NewEncoder(w).Encode(env.products)
		case r.Method == http.MethodPost && r.URL.Path == "/products":
			var in adminapi.ProductInput
			json.NewDecoder(r.Body).Decode(&in)
			item := models.CatalogItem{
				ID:       "p-new",
				Name:     in.Name,
				Brand:    in.Brand,
				Category: in.Category,
				Price:    in.Price,
			}
			env.products = append(env.products, item)
			json.NewEncoder(w).Encode(item)
		case r.Method == http.MethodGet && r.URL.Path == "/stats":
			json.NewEncoder(w).Encode(models.AdminStats{TotalProducts: int64(len(env.products))})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"message": "not found"})
		}
	}))
	t.Cleanup(adminSrv.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	auth := authclient.NewClient(authSrv.URL)
	machine := session.NewMachine(auth, st)
	admin := adminapi.NewClient(adminSrv.URL, machine.Token)

	cart, err := collections.NewCart(st)
	require.NoError(t, err)
	wishlist, err := collections.NewWishlist(st)
	require.NoError(t, err)
	engine, err := catalog.NewEngine(st)
	require.NoError(t, err)

	queue := deferred.NewQueue(st, cart, wishlist)
	machine.OnAuthenticated(queue.Replay)

	hub := events.NewHub()
	refresh := func(ctx context.Context) error {
		items, err := admin.GetProducts(ctx)
		if err != nil {
			return err
		}
		engine.SetCatalog(items)
		return nil
	}

	deps := &Deps{
		Session:  &SessionHTTP{Machine: machine, Queue: queue},
		Commerce: &CommerceHTTP{Machine: machine, Queue: queue, Cart: cart, Wishlist: wishlist},
		Catalog:  &CatalogHTTP{Engine: engine, Refresh: refresh},
		Admin:    &AdminHTTP{API: admin, Hub: hub, Producer: nil, Stats: stats.NewPoller(admin, time.Hour), Refresh: refresh},
		WS:       &RefreshWS{Hub: hub},
		Machine:  machine,
	}

	e := echo.New()
	Register(e, deps)

	env.e = e
	env.st = st
	env.machine = machine
	env.cart = cart
	env.wishlist = wishlist
	env.engine = engine
	env.hub = hub
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func addCartBody(productID string) map[string]any {
	return map[string]any{
		"product": map[string]any{
			"id": productID, "name": "Air Max", "brand": "Nike", "price": 100,
		},
		"size": "M", "color": "Black", "quantity": 1,
		"return_to": "/product/" + productID,
	}
}

func TestAnonymousAddToCart_CapturedThenReplayedOnLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart", addCartBody("P1"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp struct {
		Queued   bool   `json:"queued"`
		Redirect string `json:"redirect"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Queued)
	assert.Equal(t, "/login", resp.Redirect)
	assert.Equal(t, 0, env.cart.Len())

	rec = env.do(t, http.MethodPost, "/api/v1/login", map[string]string{
		"email": "dana@example.com", "password": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var loginResp struct {
		Status   string `json:"status"`
		ReturnTo string `json:"return_to"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	assert.Equal(t, "authenticated", loginResp.Status)
	assert.Equal(t, "/product/P1", loginResp.ReturnTo)

	require.Equal(t, 1, env.cart.Len())
	got := env.cart.Items()[0]
	assert.Equal(t, "P1", got.ProductID)
	assert.Equal(t, "M", got.Size)
	assert.Equal(t, "Black", got.Color)
	assert.Equal(t, uint(1), got.Quantity)
}

func TestAuthenticatedAddToCart_MergesDirectly(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/login", map[string]string{
		"email": "dana@example.com", "password": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/cart", addCartBody("P1"))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/cart", addCartBody("P1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Quantity uint `json:"quantity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint(2), resp.Quantity)
	assert.Equal(t, 1, env.cart.Len())
}

func TestCatalogQuery_SidebarWinsOverLink(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.engine.SetCatalog([]models.CatalogItem{
		{ID: "1", Name: "Air Max", Brand: "Nike", Category: "Footwear"},
		{ID: "2", Name: "Samba", Brand: "Adidas", Category: "Footwear"},
	})

	rec := env.do(t, http.MethodPut, "/api/v1/catalog/filters", models.FilterState{Brand: []string{"Nike"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/catalog?brand=adidas", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []models.CatalogItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Nike", resp.Items[0].Brand)
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/admin/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/login", map[string]string{
		"email": "dana@example.com", "password": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/stats", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminCreateProduct_BroadcastsRefreshAndUpdatesCatalog(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.userRole = models.RoleAdmin

	rec := env.do(t, http.MethodPost, "/api/v1/login", map[string]string{
		"email": "admin@example.com", "password": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	signals, cancel := env.hub.Subscribe()
	defer cancel()

	rec = env.do(t, http.MethodPost, "/api/v1/admin/products", adminapi.ProductInput{
		Name: "Air Max", Brand: "Nike", Category: "Footwear", Price: 100,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	select {
	case sig := <-signals:
		assert.Equal(t, events.ProductCreated, sig.Type)
		assert.Equal(t, "p-new", sig.ProductID)
	case <-time.After(time.Second):
		t.Fatal("no refresh signal broadcast")
	}

	require.Len(t, env.engine.Catalog(), 1)
	assert.Equal(t, "Air Max", env.engine.Catalog()[0].Name)
}

func TestWishlist_AnonymousCaptureAndIdempotentAdd(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	body := map[string]any{
		"product":   map[string]any{"id": "P2", "name": "Samba", "brand": "Adidas", "price": 90},
		"return_to": "/product/P2",
	}
	rec := env.do(t, http.MethodPost, "/api/v1/wishlist", body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/login", map[string]string{
		"email": "dana@example.com", "password": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, env.wishlist.Len())

	// A second add of the same product is a no-op.
	rec = env.do(t, http.MethodPost, "/api/v1/wishlist", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.wishlist.Len())
}

func TestCartEndpoints_ConcurrentWritersAndReaders(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/login", map[string]string{
		"email": "dana@example.com", "password": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := json.Marshal(addCartBody("P1"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", bytes.NewReader(body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			env.e.ServeHTTP(httptest.NewRecorder(), req)
		}()
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
			env.e.ServeHTTP(httptest.NewRecorder(), req)
		}()
	}
	wg.Wait()

	// All 16 adds merged into the one identity key, quantity clamped.
	rec = env.do(t, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Items      []models.LineEntry `json:"items"`
		TotalItems uint               `json:"total_items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Items, 1)
	assert.Equal(t, uint(10), view.Items[0].Quantity)
	assert.Equal(t, uint(10), view.TotalItems)
}

func TestSessionView_ExposesCachedAvatarWhileAnonymous(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	require.NoError(t, env.st.Put(store.KeyAvatar, []byte("https://cdn/x.png")))

	rec := env.do(t, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string `json:"status"`
		Avatar string `json:"avatar"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "anonymous", resp.Status)
	assert.Equal(t, "https://cdn/x.png", resp.Avatar)
}

func TestCartLifecycle_RemoveAndSetQuantity(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/login", map[string]string{
		"email": "dana@example.com", "password": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/cart", addCartBody("P1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/v1/cart", map[string]any{
		"product_id": "P1", "size": "M", "color": "Black", "quantity": 7,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint(7), env.cart.Items()[0].Quantity)

	rec = env.do(t, http.MethodDelete, "/api/v1/cart", map[string]any{
		"product_id": "P1", "size": "M", "color": "Black",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.cart.Len())
}
