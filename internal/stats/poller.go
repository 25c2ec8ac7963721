package stats

import (
	"context"
	"sync"
	"time"

	"github.com/ddanilin/storefront/internal/logging"
	"github.com/ddanilin/storefront/internal/models"
)

type API interface {
	GetStats(ctx context.Context) (*models.AdminStats, error)
}

// Poller refreshes admin dashboard stats on a fixed interval. A failed
// fetch keeps the last known good snapshot so the dashboard never
// blanks; cancelling the context stops the loop and no state is
// touched after that.
type Poller struct {
	api      API
	interval time.Duration

	mu   sync.RWMutex
	last *models.AdminStats
}

func NewPoller(api API, interval time.Duration) *Poller {
	return &Poller{api: api, interval: interval}
}

func (p *Poller) Last() *models.AdminStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return nil
	}
	snapshot := *p.last
	return &snapshot
}

// Run blocks until ctx is cancelled. The first fetch happens
// immediately.
func (p *Poller) Run(ctx context.Context) {
	p.fetch(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetch(ctx)
		}
	}
}

func (p *Poller) fetch(ctx context.Context) {
	stats, err := p.api.GetStats(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("stats_fetch_failed", "svc", "stats.poller", "error", err)
		return
	}
	p.mu.Lock()
	p.last = stats
	p.mu.Unlock()
}
