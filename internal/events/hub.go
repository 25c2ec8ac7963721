package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	ProductCreated = "product_created"
	ProductUpdated = "product_updated"
	ProductDeleted = "product_deleted"
)

// Signal tells open catalog views to re-fetch after an admin write, so
// stale filtered results are never shown after an edit.
type Signal struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ProductID string    `json:"product_id,omitempty"`
	At        time.Time `json:"at"`
}

func NewSignal(kind, productID string) Signal {
	return Signal{
		ID:        uuid.NewString(),
		Type:      kind,
		ProductID: productID,
		At:        time.Now().UTC(),
	}
}

// Hub fans a signal out to every subscribed view. A subscriber that
// cannot keep up is skipped rather than blocked on.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan Signal
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Signal)}
}

func (h *Hub) Subscribe() (<-chan Signal, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Signal, 8)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (h *Hub) Broadcast(sig Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- sig:
		default:
		}
	}
}
