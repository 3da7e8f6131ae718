// Package app wires the store, node client, watcher, review workflow and
// catalog from a workspace config.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"adline/internal/catalog"
	"adline/internal/chain"
	"adline/internal/config"
	"adline/internal/db"
	"adline/internal/domain"
	"adline/internal/events"
	"adline/internal/metrics"
	"adline/internal/migrate"
	"adline/internal/pgstore"
	"adline/internal/repo"
	"adline/internal/review"
	"adline/internal/rotation"
	"adline/internal/watcher"
)

// Store is the ad persistence both drivers provide.
type Store interface {
	catalog.Store
	Insert(ctx context.Context, ad domain.Ad) (domain.Ad, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	LatestEvents(ctx context.Context, limit int, cursor int64, evtType, entityKind, entityID string) ([]domain.Event, error)
	EventsAfter(ctx context.Context, limit int, afterID int64) ([]domain.Event, error)
	LatestEventID(ctx context.Context) (int64, error)
}

// Node is everything read from or sent to the chain node.
type Node interface {
	review.ContentStore
	review.Contracts
	watcher.Source
	catalog.Oracle
	catalog.Spend
	rotation.Chain
}

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    Store
	Keys     repo.Repo
	Node     Node
	Watcher  *watcher.Watcher
	Review   *review.Workflow
	Feed     *review.Feed
	Catalog  *catalog.Controller
	Rotation *rotation.Selector
	Metrics  *metrics.Metrics

	closers []func() error
}

type Options struct {
	Workspace string
	Logger    *zap.Logger
	Now       func() time.Time
}

// Open opens the workspace database, the configured ad store and the node client.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	keys := sqliteRepo(conn, cfg.Account.Address, opts.Now)
	closers := []func() error{conn.Close}

	var store Store = keys
	if cfg.Store.Driver == "postgres" {
		pg, err := pgstore.Connect(ctx, cfg.Store.DSN, cfg.Account.Address, opts.Logger.Named("pgstore"))
		if err != nil {
			conn.Close()
			return nil, err
		}
		store = pg
		closers = append(closers, pg.Close)
	}

	m := metrics.New()
	node := chain.New(chain.Config{
		URL:           cfg.Node.URL,
		APIKey:        cfg.Node.APIKey,
		Timeout:       cfg.Node.Timeout,
		FeeMultiplier: cfg.Review.Multiplier(),
	}, opts.Logger.Named("chain"))
	node.OnCall = m.ObserveRPC

	a := Build(cfg, store, keys, node, m, opts)
	a.closers = append(closers, a.closers...)
	return a, nil
}

// Build assembles the components around an already opened store and node.
func Build(cfg *config.Config, store Store, keys repo.Repo, node Node, m *metrics.Metrics, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	w := watcher.New(node, watcher.Config{Interval: cfg.Review.PollInterval, MaxPolls: cfg.Review.MaxPolls}, logger.Named("watcher"))
	w.OnPoll = m.ObservePoll
	w.OnOutcome = m.ObserveOutcome

	feed := review.NewFeed()
	cat := catalog.New(catalog.Deps{Store: store, Oracle: node, Spend: node}, catalog.Options{
		Logger:   logger.Named("catalog"),
		Account:  cfg.Account.Address,
		OnChange: m.ObserveCatalog,
	})
	wf := review.New(review.Deps{
		Content:   node,
		Contracts: node,
		Watcher:   w,
		Store:     store,
	}, review.ParamsFromConfig(cfg), review.Options{
		Logger:    logger.Named("review"),
		Sink:      cat,
		Report:    m.ObserveFailure,
		Observers: []func(review.Transition){m.ObserveTransition, feed.Publish},
		Now:       opts.Now,
	})
	cat.Bind(wf)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Keys:     keys,
		Node:     node,
		Watcher:  w,
		Review:   wf,
		Feed:     feed,
		Catalog:  cat,
		Rotation: rotation.New(node, rotation.Options{Limit: cfg.Rotation.Limit, Logger: logger.Named("rotation")}),
		Metrics:  m,
	}
	a.closers = append(a.closers, func() error {
		wf.Close()
		return nil
	})
	return a
}

func sqliteRepo(conn *sql.DB, account string, now func() time.Time) repo.Repo {
	r := repo.New(conn, account)
	if now != nil {
		r.Now = now
		r.Events = events.Writer{Now: now}
	}
	return r
}

// Close stops the review workflow and closes stores in reverse open order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
