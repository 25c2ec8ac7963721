package collections

import (
	"strings"
	"sync"

	"github.com/ddanilin/storefront/internal/models"
	"github.com/ddanilin/storefront/internal/store"
)

const (
	MinQuantity = 1
	MaxQuantity = 10
)

// Key is the identity of one line in a collection. The cart keys on
// (product, size, color); the wishlist keys on product alone.
type Key struct {
	ProductID string
	Size      string
	Color     string
}

// Collection is safe for concurrent use: handlers on different
// goroutines share one cart and one wishlist.
type Collection struct {
	kind     string
	storeKey string
	st       *store.Store

	mu      sync.RWMutex
	entries []models.LineEntry
}

func NewCart(st *store.Store) (*Collection, error) {
	return load(models.IntentCart, store.KeyCart, st)
}

func NewWishlist(st *store.Store) (*Collection, error) {
	return load(models.IntentWishlist, store.KeyWishlist, st)
}

func load(kind, storeKey string, st *store.Store) (*Collection, error) {
	c := &Collection{kind: kind, storeKey: storeKey, st: st}
	if st != nil {
		if _, err := st.GetJSON(storeKey, &c.entries); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collection) keyOf(e models.LineEntry) Key {
	if c.kind == models.IntentWishlist {
		return Key{ProductID: e.ProductID}
	}
	size := e.Size
	if size == "" {
		size = models.NoSize
	}
	return Key{ProductID: e.ProductID, Size: size, Color: e.Color}
}

func (c *Collection) normalize(k Key) Key {
	if c.kind == models.IntentWishlist {
		return Key{ProductID: k.ProductID}
	}
	if k.Size == "" {
		k.Size = models.NoSize
	}
	return k
}

// indexOf requires at least a read lock.
func (c *Collection) indexOf(k Key) int {
	for i, e := range c.entries {
		if c.keyOf(e) == k {
			return i
		}
	}
	return -1
}

// copyEntries requires at least a read lock.
func (c *Collection) copyEntries() []models.LineEntry {
	out := make([]models.LineEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// commit persists next and only then swaps it in, so a failed persist
// leaves the collection exactly as it was. Requires the write lock.
func (c *Collection) commit(next []models.LineEntry) error {
	if c.st != nil {
		if err := c.st.PutJSON(c.storeKey, next); err != nil {
			return err
		}
	}
	c.entries = next
	return nil
}

func clamp(n int) uint {
	if n < MinQuantity {
		return MinQuantity
	}
	if n > MaxQuantity {
		return MaxQuantity
	}
	return uint(n)
}

// Add merges by identity key: an existing cart line gains quantity
// (clamped), an existing wishlist line is left alone. Returns the
// resulting quantity of the line.
func (c *Collection) Add(entry models.LineEntry) (uint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.Quantity == 0 {
		entry.Quantity = MinQuantity
	}
	key := c.keyOf(entry)
	entry.Size = key.Size
	if c.kind == models.IntentWishlist {
		entry.Quantity = 0
	}

	if i := c.indexOf(key); i >= 0 {
		if c.kind == models.IntentWishlist {
			return 1, nil
		}
		next := c.copyEntries()
		next[i].Quantity = clamp(int(next[i].Quantity) + int(entry.Quantity))
		if err := c.commit(next); err != nil {
			return 0, err
		}
		return next[i].Quantity, nil
	}

	if c.kind == models.IntentCart {
		entry.Quantity = clamp(int(entry.Quantity))
	}
	if err := c.commit(append(c.copyEntries(), entry)); err != nil {
		return 0, err
	}
	if c.kind == models.IntentWishlist {
		return 1, nil
	}
	return entry.Quantity, nil
}

// Remove deletes the line if present; an absent key is a no-op.
func (c *Collection) Remove(k Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove(c.normalize(k))
}

// remove requires the write lock.
func (c *Collection) remove(k Key) error {
	i := c.indexOf(k)
	if i < 0 {
		return nil
	}
	next := make([]models.LineEntry, 0, len(c.entries)-1)
	next = append(next, c.entries[:i]...)
	next = append(next, c.entries[i+1:]...)
	return c.commit(next)
}

// SetQuantity clamps n to [1, 10]; n below 1 acts as Remove.
func (c *Collection) SetQuantity(k Key, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k = c.normalize(k)
	if n < MinQuantity {
		return c.remove(k)
	}
	i := c.indexOf(k)
	if i < 0 {
		return nil
	}
	next := c.copyEntries()
	next[i].Quantity = clamp(n)
	return c.commit(next)
}

func (c *Collection) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commit(nil)
}

func (c *Collection) Items() []models.LineEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyEntries()
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Collection) Contains(k Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexOf(c.normalize(k)) >= 0
}

// TotalItems and TotalPrice walk the collection every time so partial
// updates can never leave a stale cached total behind.
func (c *Collection) TotalItems() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total uint
	for _, e := range c.entries {
		total += e.Quantity
	}
	return total
}

func (c *Collection) TotalPrice() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total float64
	for _, e := range c.entries {
		total += e.Price * float64(e.Quantity)
	}
	return total
}

// Describe reports "Name (Size, Color)" for cart lines; handy for the
// view layer's "now N in cart" toast.
func Describe(e models.LineEntry) string {
	if e.Size == "" || e.Size == models.NoSize {
		return e.Name
	}
	return e.Name + " (" + strings.Join([]string{e.Size, e.Color}, ", ") + ")"
}
