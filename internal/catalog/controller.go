// Package catalog loads the ad collection, keeps the filtered view and hands
// selected ads to the review workflow.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"adline/internal/domain"
	"adline/internal/review"
)

type Mode string

const (
	ModeLoading    Mode = "loading"
	ModeLoadFailed Mode = "load_failed"
	ModeIdle       Mode = "idle"
	ModeReviewing  Mode = "reviewing"
	ModePublishing Mode = "publishing"
	ModeRemoving   Mode = "removing"
)

type Store interface {
	ListAll(ctx context.Context) ([]domain.Ad, error)
	GetByID(ctx context.Context, id string) (domain.Ad, error)
	Update(ctx context.Context, id string, patch domain.AdPatch) (domain.Ad, error)
	Delete(ctx context.Context, id string) error
}

type Oracle interface {
	QueryVotingState(ctx context.Context, contract string) (domain.VotingState, error)
}

type Spend interface {
	TotalSpent(ctx context.Context, account string) (decimal.Decimal, error)
}

// Reviewer is the review workflow as seen by the catalog.
type Reviewer interface {
	Select(ad domain.Ad) error
	Cancel() error
	Busy(adID string) bool
}

type Deps struct {
	Store  Store
	Oracle Oracle
	Spend  Spend
}

type Options struct {
	Logger  *zap.Logger
	Account string
	// OracleConcurrency bounds parallel vote oracle queries during load.
	OracleConcurrency int
	Report            func(op string, err error)
	OnChange          func(View)
}

// View is a read-only copy of the catalog state.
type View struct {
	Mode         Mode            `json:"mode"`
	Filter       string          `json:"filter"`
	Ads          []domain.Ad     `json:"ads"`
	Total        int             `json:"total"`
	Selected     *domain.Ad      `json:"selected,omitempty"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
	Account      string          `json:"account"`
	LoadError    string          `json:"load_error,omitempty"`
	OracleFailed int             `json:"oracle_failed,omitempty"`
	StatusCounts map[string]int  `json:"status_counts"`
}

// Controller is the single writer of the ad collection.
type Controller struct {
	deps   Deps
	opts   Options
	logger *zap.Logger

	mu           sync.Mutex
	mode         Mode
	ctx          Context
	loadErr      error
	oracleFailed int
	loadGen      uint64
	review       Reviewer
}

func New(deps Deps, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.OracleConcurrency <= 0 {
		opts.OracleConcurrency = 8
	}
	return &Controller{
		deps:   deps,
		opts:   opts,
		logger: opts.Logger,
		mode:   ModeLoading,
		ctx:    newContext(nil, DefaultFilter, decimal.Zero, opts.Account),
	}
}

// Bind attaches the review workflow. Completion and cancellation of a review
// return the catalog to idle.
func (c *Controller) Bind(wf *review.Workflow) {
	c.mu.Lock()
	c.review = wf
	c.mu.Unlock()
	wf.Observe(c.onReviewTransition)
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	v := View{
		Mode:         c.mode,
		Filter:       c.ctx.filter,
		Ads:          c.ctx.filtered(),
		Total:        len(c.ctx.entries),
		TotalSpent:   c.ctx.totalSpent,
		Account:      c.ctx.account,
		OracleFailed: c.oracleFailed,
		StatusCounts: map[string]int{},
	}
	if c.ctx.selected != nil {
		sel := *c.ctx.selected
		v.Selected = &sel
	}
	if c.loadErr != nil {
		v.LoadError = c.loadErr.Error()
	}
	for _, e := range c.ctx.entries {
		v.StatusCounts[string(e.ad.Status)]++
	}
	return v
}

// All returns the full collection regardless of the filter.
func (c *Controller) All() []domain.Ad {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx.all()
}

// Item returns the child machine of an ad.
func (c *Controller) Item(id string) (*Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.ctx.find(id)
	return e.item, ok
}

func (c *Controller) changed(v View) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(v)
	}
}

func (c *Controller) report(op string, err error) error {
	c.logger.Error("catalog operation failed", zap.String("op", op), zap.Error(err))
	if c.opts.Report != nil {
		c.opts.Report(op, err)
	}
	return err
}

// Load replaces the collection with the stored ads. Ads with a voting contract
// take their status from the oracle; an oracle failure keeps the stored status
// of that ad only. Previous items are discarded. When loads overlap only the
// latest one is applied, and never over a selection made in the meantime.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	switch c.mode {
	case ModeLoading, ModeLoadFailed, ModeIdle:
	default:
		mode := c.mode
		c.mu.Unlock()
		return fmt.Errorf("%w: load in %s", domain.ErrInvalidTransition, mode)
	}
	c.mode = ModeLoading
	c.loadGen++
	gen := c.loadGen
	filter, account := c.ctx.filter, c.ctx.account
	c.mu.Unlock()

	ads, failed, spent, err := c.fetch(ctx, account)
	c.mu.Lock()
	if gen != c.loadGen || c.mode != ModeLoading {
		mode := c.mode
		c.mu.Unlock()
		c.logger.Debug("discarding superseded catalog load", zap.Uint64("generation", gen), zap.String("mode", string(mode)))
		return nil
	}
	if err != nil {
		c.mode = ModeLoadFailed
		c.loadErr = err
		v := c.viewLocked()
		c.mu.Unlock()
		c.changed(v)
		return c.report("load", err)
	}
	c.loadErr = nil
	c.oracleFailed = failed
	c.ctx = newContext(ads, filter, spent, account)
	c.mode = ModeIdle
	v := c.viewLocked()
	c.mu.Unlock()
	c.changed(v)
	c.logger.Info("catalog loaded", zap.Int("ads", len(ads)), zap.Int("oracle_failed", failed))
	return nil
}

func (c *Controller) fetch(ctx context.Context, account string) ([]domain.Ad, int, decimal.Decimal, error) {
	ads, err := c.deps.Store.ListAll(ctx)
	if err != nil {
		return nil, 0, decimal.Zero, fmt.Errorf("%w: list ads: %v", domain.ErrPersistence, err)
	}
	var (
		spent  decimal.Decimal
		failMu sync.Mutex
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.OracleConcurrency)
	g.Go(func() error {
		total, err := c.deps.Spend.TotalSpent(gctx, account)
		if err != nil {
			return fmt.Errorf("total spent: %w", err)
		}
		spent = total
		return nil
	})
	for i := range ads {
		ad := ads[i]
		if ad.VotingAddress == "" {
			continue
		}
		g.Go(func() error {
			state, err := c.deps.Oracle.QueryVotingState(gctx, ad.VotingAddress)
			if err != nil {
				c.logger.Warn("vote oracle query failed, keeping stored status",
					zap.String("ad_id", ad.ID), zap.String("voting_address", ad.VotingAddress), zap.Error(err))
				failMu.Lock()
				failed++
				failMu.Unlock()
				return nil
			}
			ads[i].Status = state.AdStatus(ad.ContentID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, decimal.Zero, err
	}
	return ads, failed, spent, nil
}

// Filter re-derives the visible ads from the full collection.
func (c *Controller) Filter(value string) (View, error) {
	status, err := domain.ParseStatus(value)
	if err != nil {
		return View{}, err
	}
	c.mu.Lock()
	if c.mode != ModeIdle {
		mode := c.mode
		c.mu.Unlock()
		return View{}, fmt.Errorf("%w: filter in %s", domain.ErrInvalidTransition, mode)
	}
	c.ctx = c.ctx.withFilter(string(status))
	v := c.viewLocked()
	c.mu.Unlock()
	c.changed(v)
	return v, nil
}

// Remove deletes the ad from the store and then from both views. On failure
// nothing changes.
func (c *Controller) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.mode != ModeIdle {
		mode := c.mode
		c.mu.Unlock()
		return c.report("remove", fmt.Errorf("%w: remove in %s", domain.ErrInvalidTransition, mode))
	}
	if c.review != nil && c.review.Busy(id) {
		c.mu.Unlock()
		return c.report("remove", fmt.Errorf("%w: ad %s", domain.ErrInFlight, id))
	}
	c.mode = ModeRemoving
	c.mu.Unlock()

	if err := c.deps.Store.Delete(ctx, id); err != nil {
		c.mu.Lock()
		c.mode = ModeIdle
		c.mu.Unlock()
		if !errors.Is(err, domain.ErrNotFound) {
			err = fmt.Errorf("%w: delete ad %s: %v", domain.ErrPersistence, id, err)
		}
		return c.report("remove", err)
	}
	c.mu.Lock()
	c.ctx = c.ctx.without(id)
	c.mode = ModeIdle
	v := c.viewLocked()
	c.mu.Unlock()
	c.changed(v)
	return nil
}

// SelectForReview looks the ad up in the full collection and starts a review session.
func (c *Controller) SelectForReview(id string) (domain.Ad, error) {
	c.mu.Lock()
	if c.mode != ModeIdle {
		mode := c.mode
		c.mu.Unlock()
		return domain.Ad{}, fmt.Errorf("%w: review in %s", domain.ErrInvalidTransition, mode)
	}
	if c.review == nil {
		c.mu.Unlock()
		return domain.Ad{}, errors.New("review workflow not bound")
	}
	e, ok := c.ctx.find(id)
	if !ok {
		c.mu.Unlock()
		return domain.Ad{}, fmt.Errorf("ad %s: %w", id, domain.ErrNotFound)
	}
	c.ctx = c.ctx.withSelected(&e.ad)
	c.mode = ModeReviewing
	wf := c.review
	c.mu.Unlock()

	if err := wf.Select(e.ad); err != nil {
		c.mu.Lock()
		c.ctx = c.ctx.withSelected(nil)
		c.mode = ModeIdle
		c.mu.Unlock()
		return domain.Ad{}, err
	}
	c.changed(c.View())
	return e.ad, nil
}

// SelectForPublish marks the ad as being published.
func (c *Controller) SelectForPublish(id string) (domain.Ad, error) {
	c.mu.Lock()
	if c.mode != ModeIdle {
		mode := c.mode
		c.mu.Unlock()
		return domain.Ad{}, fmt.Errorf("%w: publish in %s", domain.ErrInvalidTransition, mode)
	}
	e, ok := c.ctx.find(id)
	if !ok {
		c.mu.Unlock()
		return domain.Ad{}, fmt.Errorf("ad %s: %w", id, domain.ErrNotFound)
	}
	e.item.mark(ItemPublishing)
	c.ctx = c.ctx.withSelected(&e.ad)
	c.mode = ModePublishing
	v := c.viewLocked()
	c.mu.Unlock()
	c.changed(v)
	return e.ad, nil
}

// Cancel leaves publishing, or cancels the review session.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	switch c.mode {
	case ModePublishing:
		if c.ctx.selected != nil {
			if e, ok := c.ctx.find(c.ctx.selected.ID); ok {
				e.item.mark(ItemIdle)
			}
		}
		c.mode = ModeIdle
		v := c.viewLocked()
		c.mu.Unlock()
		c.changed(v)
		return nil
	case ModeReviewing:
		wf := c.review
		c.mu.Unlock()
		return wf.Cancel()
	default:
		mode := c.mode
		c.mu.Unlock()
		return fmt.Errorf("%w: cancel in %s", domain.ErrInvalidTransition, mode)
	}
}

// ChangeItem merges fields into an item's ad without touching the store.
func (c *Controller) ChangeItem(id string, patch domain.AdPatch) (domain.Ad, error) {
	item, ok := c.Item(id)
	if !ok {
		return domain.Ad{}, fmt.Errorf("ad %s: %w", id, domain.ErrNotFound)
	}
	return item.Change(patch)
}

// ApplyAd receives ad changes from the review workflow.
func (c *Controller) ApplyAd(ad domain.Ad) {
	c.mu.Lock()
	c.ctx = c.ctx.withAd(ad)
	v := c.viewLocked()
	c.mu.Unlock()
	c.changed(v)
}

func (c *Controller) onReviewTransition(t review.Transition) {
	if t.To != review.Idle {
		return
	}
	c.mu.Lock()
	if c.mode != ModeReviewing {
		c.mu.Unlock()
		return
	}
	c.mode = ModeIdle
	v := c.viewLocked()
	c.mu.Unlock()
	c.changed(v)
}
