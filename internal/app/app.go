package app

import (
	"context"
	"log/slog"

	"github.com/ddanilin/storefront/internal/adminapi"
	"github.com/ddanilin/storefront/internal/authclient"
	"github.com/ddanilin/storefront/internal/catalog"
	"github.com/ddanilin/storefront/internal/collections"
	"github.com/ddanilin/storefront/internal/config"
	"github.com/ddanilin/storefront/internal/deferred"
	"github.com/ddanilin/storefront/internal/events"
	"github.com/ddanilin/storefront/internal/logging"
	"github.com/ddanilin/storefront/internal/session"
	"github.com/ddanilin/storefront/internal/stats"
	"github.com/ddanilin/storefront/internal/store"
)

// App is the explicit application context: everything the engine owns
// is constructed here and torn down here, nothing lives at module
// level.
type App struct {
	Cfg *config.Config
	Log *slog.Logger

	Store    *store.Store
	Session  *session.Machine
	Queue    *deferred.Queue
	Cart     *collections.Collection
	Wishlist *collections.Collection
	Catalog  *catalog.Engine
	AdminAPI *adminapi.Client
	Hub      *events.Hub
	Producer *events.Producer
	Stats    *stats.Poller

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}

	auth := authclient.NewClient(cfg.AuthURL)
	sess := session.NewMachine(auth, st)
	admin := adminapi.NewClient(cfg.AdminAPIURL, sess.Token)

	cart, err := collections.NewCart(st)
	if err != nil {
		return nil, err
	}
	wishlist, err := collections.NewWishlist(st)
	if err != nil {
		return nil, err
	}

	engine, err := catalog.NewEngine(st)
	if err != nil {
		return nil, err
	}

	queue := deferred.NewQueue(st, cart, wishlist)
	// The session machine only emits the event; the queue subscribes
	// here, so the two stay independently testable.
	sess.OnAuthenticated(queue.Replay)

	var producer *events.Producer
	if cfg.KafkaAddress != "" {
		producer = events.NewProducer([]string{cfg.KafkaAddress})
	}

	return &App{
		Cfg:      cfg,
		Log:      log,
		Store:    st,
		Session:  sess,
		Queue:    queue,
		Cart:     cart,
		Wishlist: wishlist,
		Catalog:  engine,
		AdminAPI: admin,
		Hub:      events.NewHub(),
		Producer: producer,
		Stats:    stats.NewPoller(admin, cfg.StatsInterval),
	}, nil
}

// Init rehydrates durable state and starts the stats poller. A failed
// session restore or catalog fetch leaves the engine usable; both are
// logged and retried by normal use.
func (a *App) Init(ctx context.Context) {
	ctx = logging.IntoContext(ctx, a.Log)

	if err := a.Session.RestoreSession(ctx); err != nil {
		a.Log.Warn("session_restore_failed", "error", err)
	}

	if err := a.RefreshCatalog(ctx); err != nil {
		a.Log.Warn("catalog_fetch_failed", "error", err)
	}

	pollCtx, cancel := context.WithCancel(logging.IntoContext(context.Background(), a.Log))
	a.pollCancel = cancel
	a.pollDone = make(chan struct{})
	go func() {
		defer close(a.pollDone)
		a.Stats.Run(pollCtx)
	}()
}

func (a *App) RefreshCatalog(ctx context.Context) error {
	items, err := a.AdminAPI.GetProducts(ctx)
	if err != nil {
		return err
	}
	a.Catalog.SetCatalog(items)
	return nil
}

// Teardown stops the poller, flushes the producer and closes the
// store.
func (a *App) Teardown(ctx context.Context) {
	if a.pollCancel != nil {
		a.pollCancel()
		select {
		case <-a.pollDone:
		case <-ctx.Done():
		}
	}
	if err := a.Producer.Close(); err != nil {
		a.Log.Warn("producer_close_failed", "error", err)
	}
	if err := a.Store.Close(); err != nil {
		a.Log.Warn("store_close_failed", "error", err)
	}
}
