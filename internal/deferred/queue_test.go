package deferred

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddanilin/storefront/internal/authclient"
	"github.com/ddanilin/storefront/internal/collections"
	"github.com/ddanilin/storefront/internal/models"
	"github.com/ddanilin/storefront/internal/session"
	"github.com/ddanilin/storefront/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newQueue(t *testing.T) (*Queue, *collections.Collection, *collections.Collection, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	cart, err := collections.NewCart(st)
	require.NoError(t, err)
	wishlist, err := collections.NewWishlist(st)
	require.NoError(t, err)
	return NewQueue(st, cart, wishlist), cart, wishlist, st
}

func snapshot(id string) models.ProductSnapshot {
	return models.ProductSnapshot{ID: id, Name: "Item " + id, Brand: "Nike", Price: 40}
}

func TestQueue_ReplayMergesCartIntentOnce(t *testing.T) {
	t.Parallel()

	q, cart, _, _ := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.CaptureCartIntent(snapshot("p1"), "M", "Black", 1, "/product/p1"))

	q.Replay(ctx)

	require.Equal(t, 1, cart.Len())
	got := cart.Items()[0]
	assert.Equal(t, "p1", got.ProductID)
	assert.Equal(t, "M", got.Size)
	assert.Equal(t, "Black", got.Color)
	assert.Equal(t, uint(1), got.Quantity)

	// A duplicate authenticated event finds the slot empty.
	q.Replay(ctx)
	assert.Equal(t, 1, cart.Len())
	assert.Equal(t, uint(1), cart.Items()[0].Quantity)
}

func TestQueue_SameKindOverwrites(t *testing.T) {
	t.Parallel()

	q, cart, _, _ := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.CaptureCartIntent(snapshot("p1"), "M", "Black", 1, ""))
	require.NoError(t, q.CaptureCartIntent(snapshot("p2"), "L", "Red", 2, ""))

	q.Replay(ctx)

	require.Equal(t, 1, cart.Len())
	assert.Equal(t, "p2", cart.Items()[0].ProductID)
	assert.Equal(t, uint(2), cart.Items()[0].Quantity)
}

func TestQueue_BothKindsSurviveToReplay(t *testing.T) {
	t.Parallel()

	q, cart, wishlist, _ := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.CaptureCartIntent(snapshot("p1"), "M", "Black", 1, ""))
	require.NoError(t, q.CaptureWishlistIntent(snapshot("p2"), ""))

	q.Replay(ctx)

	assert.Equal(t, 1, cart.Len())
	assert.Equal(t, 1, wishlist.Len())
	assert.Equal(t, "p2", wishlist.Items()[0].ProductID)
}

func TestQueue_MalformedIntentDiscardedSilently(t *testing.T) {
	t.Parallel()

	q, cart, _, st := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.CaptureCartIntent(models.ProductSnapshot{}, "M", "Black", 1, ""))

	q.Replay(ctx)

	assert.Equal(t, 0, cart.Len())
	_, ok, err := st.Get(store.KeyDeferredCart)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueue_UnreadableSlotDiscarded(t *testing.T) {
	t.Parallel()

	q, cart, _, st := newQueue(t)
	ctx := context.Background()

	require.NoError(t, st.Put(store.KeyDeferredCart, []byte("{not json")))

	q.Replay(ctx)

	assert.Equal(t, 0, cart.Len())
	_, ok, err := st.Get(store.KeyDeferredCart)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueue_ReturnTo(t *testing.T) {
	t.Parallel()

	q, _, _, _ := newQueue(t)
	assert.Empty(t, q.ReturnTo())

	require.NoError(t, q.CaptureCartIntent(snapshot("p1"), "M", "Black", 1, "/catalog?brand=nike"))
	assert.Equal(t, "/catalog?brand=nike", q.ReturnTo())

	q.Replay(context.Background())
	assert.Empty(t, q.ReturnTo())
}

func TestQueue_IntentSurvivesRestart(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	cart, err := collections.NewCart(st)
	require.NoError(t, err)
	wishlist, err := collections.NewWishlist(st)
	require.NoError(t, err)

	q := NewQueue(st, cart, wishlist)
	require.NoError(t, q.CaptureCartIntent(snapshot("p1"), "M", "Black", 1, ""))

	// New queue over the same store, as after a reload.
	q2 := NewQueue(st, cart, wishlist)
	q2.Replay(context.Background())
	assert.Equal(t, 1, cart.Len())
}

type stubAuth struct {
	result *authclient.AuthResult
}

func (s *stubAuth) Login(context.Context, string, string) (*authclient.AuthResult, error) {
	return s.result, nil
}

func (s *stubAuth) Register(context.Context, string, string, string) (*authclient.AuthResult, error) {
	return s.result, nil
}

func (s *stubAuth) WhoAmI(context.Context, string) (*authclient.AuthResult, error) {
	return s.result, nil
}

// Anonymous visitor adds (P1, M, Black, 1) to the cart, is routed to
// login, logs in, and the cart holds exactly that one line.
func TestQueue_AnonymousAddThenLoginFlow(t *testing.T) {
	t.Parallel()

	q, cart, _, st := newQueue(t)

	machine := session.NewMachine(&stubAuth{result: &authclient.AuthResult{
		Token: "tok-1",
		User:  models.UserProfile{ID: "u1", Email: "dana@example.com", Role: models.RoleUser},
	}}, st)
	machine.OnAuthenticated(q.Replay)

	require.NoError(t, q.CaptureCartIntent(snapshot("P1"), "M", "Black", 1, "/product/P1"))
	require.Equal(t, 0, cart.Len())

	require.NoError(t, machine.Login(context.Background(), "dana@example.com", "secret"))

	require.Equal(t, 1, cart.Len())
	got := cart.Items()[0]
	assert.Equal(t, "P1", got.ProductID)
	assert.Equal(t, "M", got.Size)
	assert.Equal(t, "Black", got.Color)
	assert.Equal(t, uint(1), got.Quantity)
	assert.Equal(t, uint(1), cart.TotalItems())
}
