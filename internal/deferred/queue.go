package deferred

import (
	"context"

	"github.com/ddanilin/storefront/internal/collections"
	"github.com/ddanilin/storefront/internal/logging"
	"github.com/ddanilin/storefront/internal/models"
	"github.com/ddanilin/storefront/internal/store"
)

// Queue holds at most one cart intent and one wishlist intent captured
// while the visitor was anonymous. A new intent of the same kind
// overwrites the previous one. Intents live in the durable store, so
// an abandoned authentication leaves them behind until the store is
// cleared or the slot is overwritten.
type Queue struct {
	st       *store.Store
	cart     *collections.Collection
	wishlist *collections.Collection
}

func NewQueue(st *store.Store, cart, wishlist *collections.Collection) *Queue {
	return &Queue{st: st, cart: cart, wishlist: wishlist}
}

func (q *Queue) CaptureCartIntent(snapshot models.ProductSnapshot, size, color string, quantity uint, returnTo string) error {
	intent := models.DeferredIntent{
		Kind:     models.IntentCart,
		Product:  snapshot,
		Size:     size,
		Color:    color,
		Quantity: quantity,
	}
	if err := q.st.PutJSON(store.KeyDeferredCart, intent); err != nil {
		return err
	}
	return q.recordReturnTo(returnTo)
}

func (q *Queue) CaptureWishlistIntent(snapshot models.ProductSnapshot, returnTo string) error {
	intent := models.DeferredIntent{
		Kind:    models.IntentWishlist,
		Product: snapshot,
	}
	if err := q.st.PutJSON(store.KeyDeferredWishlist, intent); err != nil {
		return err
	}
	return q.recordReturnTo(returnTo)
}

func (q *Queue) recordReturnTo(returnTo string) error {
	if returnTo == "" {
		return nil
	}
	return q.st.Put(store.KeyReturnTo, []byte(returnTo))
}

// ReturnTo is where the visitor was when the gated action was
// captured; empty when nothing was recorded.
func (q *Queue) ReturnTo() string {
	raw, ok, err := q.st.Get(store.KeyReturnTo)
	if err != nil || !ok {
		return ""
	}
	return string(raw)
}

// Replay merges both queued intents, if present, into their
// collections. Replay is at-most-once: the slots are deleted before
// the merge, so a duplicate authenticated event finds them empty. A
// malformed intent is logged and discarded, never retried — by the
// time it is detected the visitor has already finished logging in, and
// re-raising would only confuse them.
func (q *Queue) Replay(ctx context.Context) {
	l := logging.FromContext(ctx).With("svc", "deferred.replay")

	if intent, ok := q.take(ctx, store.KeyDeferredCart); ok {
		if intent.Product.ID == "" {
			l.Warn("cart_intent_discarded", "reason", "malformed snapshot")
		} else {
			entry := models.LineEntry{
				ProductID: intent.Product.ID,
				Name:      intent.Product.Name,
				Brand:     intent.Product.Brand,
				Price:     intent.Product.Price,
				Image:     intent.Product.Image,
				Size:      intent.Size,
				Color:     intent.Color,
				Quantity:  intent.Quantity,
			}
			if qty, err := q.cart.Add(entry); err != nil {
				l.Warn("cart_intent_discarded", "reason", "merge failed", "error", err)
			} else {
				l.Info("cart_intent_replayed", "product", intent.Product.ID, "quantity", qty)
			}
		}
	}

	if intent, ok := q.take(ctx, store.KeyDeferredWishlist); ok {
		if intent.Product.ID == "" {
			l.Warn("wishlist_intent_discarded", "reason", "malformed snapshot")
		} else {
			entry := models.LineEntry{
				ProductID: intent.Product.ID,
				Name:      intent.Product.Name,
				Brand:     intent.Product.Brand,
				Price:     intent.Product.Price,
				Image:     intent.Product.Image,
			}
			if _, err := q.wishlist.Add(entry); err != nil {
				l.Warn("wishlist_intent_discarded", "reason", "merge failed", "error", err)
			} else {
				l.Info("wishlist_intent_replayed", "product", intent.Product.ID)
			}
		}
	}

	_ = q.st.Delete(store.KeyReturnTo)
}

// take reads and deletes a slot in one step; the delete happens even
// when the payload turns out to be malformed.
func (q *Queue) take(ctx context.Context, key string) (models.DeferredIntent, bool) {
	var intent models.DeferredIntent
	ok, err := q.st.GetJSON(key, &intent)
	if err != nil {
		logging.FromContext(ctx).Warn("intent_read_failed", "key", key, "error", err)
		_ = q.st.Delete(key)
		return models.DeferredIntent{}, false
	}
	if !ok {
		return models.DeferredIntent{}, false
	}
	_ = q.st.Delete(key)
	return intent, true
}
