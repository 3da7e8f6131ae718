// Package editor holds the ad editing session and the form validity machine.
package editor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"adline/internal/domain"
)

type State string

const (
	Init       State = "init"
	Editing    State = "editing"
	Submitting State = "submitting"
	Success    State = "success"
	Failure    State = "failure"
	Closing    State = "closing"
	Closed     State = "closed"
)

// Loader returns the ad being edited; a draft is returned for a new ad.
type Loader func(ctx context.Context) (domain.Ad, error)

// Saver persists the edited ad and returns the stored record.
type Saver func(ctx context.Context, ad domain.Ad) (domain.Ad, error)

// Closer runs on close and reports whether a draft was saved.
type Closer func(ctx context.Context, ad domain.Ad) (bool, error)

type Hooks struct {
	Load Loader
	Save Saver
	// Close defaults to discarding the edit.
	Close Closer
	// OnSuccess runs once the ad is stored.
	OnSuccess func(domain.Ad)
	// OnBeforeClose runs after the close collaborator with its draft result.
	OnBeforeClose func(didSaveDraft bool)
}

// EditWorkflow is a single ad editing session:
// init -> editing -> submitting -> success | failure (retry -> submitting).
type EditWorkflow struct {
	hooks  Hooks
	logger *zap.Logger

	mu           sync.Mutex
	state        State
	ad           domain.Ad
	err          error
	didSaveDraft bool
}

func NewEdit(hooks Hooks, logger *zap.Logger) *EditWorkflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EditWorkflow{hooks: hooks, logger: logger, state: Init}
}

func (e *EditWorkflow) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *EditWorkflow) Ad() domain.Ad {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ad
}

// Err is the last load or submit failure.
func (e *EditWorkflow) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *EditWorkflow) DidSaveDraft() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.didSaveDraft
}

// Start loads the ad. A load failure keeps the session in init.
func (e *EditWorkflow) Start(ctx context.Context) error {
	if err := e.expect(Init, "start"); err != nil {
		return err
	}
	ad, err := e.hooks.Load(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.err = err
		e.logger.Warn("edit init failed", zap.Error(err))
		return err
	}
	e.ad = ad
	e.setLocked(Editing)
	return nil
}

// Update merges fields while editing.
func (e *EditWorkflow) Update(p domain.AdPatch) (domain.Ad, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return e.ad, fmt.Errorf("%w: update in %s", domain.ErrInvalidTransition, e.state)
	}
	e.ad = e.ad.Apply(p)
	return e.ad, nil
}

// Submit persists the ad: editing -> submitting -> success | failure.
func (e *EditWorkflow) Submit(ctx context.Context) error {
	if err := e.expect(Editing, "submit"); err != nil {
		return err
	}
	return e.submit(ctx)
}

// Retry re-enters submitting after a failure.
func (e *EditWorkflow) Retry(ctx context.Context) error {
	if err := e.expect(Failure, "retry"); err != nil {
		return err
	}
	return e.submit(ctx)
}

func (e *EditWorkflow) submit(ctx context.Context) error {
	e.mu.Lock()
	e.setLocked(Submitting)
	ad := e.ad
	e.mu.Unlock()

	stored, err := e.hooks.Save(ctx, ad)

	e.mu.Lock()
	if err != nil {
		e.err = err
		e.setLocked(Failure)
		e.mu.Unlock()
		e.logger.Warn("edit submit failed", zap.String("ad_id", ad.ID), zap.Error(err))
		return err
	}
	e.ad = stored
	e.err = nil
	e.setLocked(Success)
	e.mu.Unlock()
	if e.hooks.OnSuccess != nil {
		e.hooks.OnSuccess(stored)
	}
	return nil
}

// Close runs the close collaborator and signals the caller to dismiss.
func (e *EditWorkflow) Close(ctx context.Context) error {
	if err := e.expect(Editing, "close"); err != nil {
		return err
	}
	e.mu.Lock()
	e.setLocked(Closing)
	ad := e.ad
	e.mu.Unlock()

	saved := false
	if e.hooks.Close != nil {
		var err error
		saved, err = e.hooks.Close(ctx, ad)
		if err != nil {
			e.mu.Lock()
			e.err = err
			e.setLocked(Editing)
			e.mu.Unlock()
			return err
		}
	}
	e.mu.Lock()
	e.didSaveDraft = saved
	e.setLocked(Closed)
	e.mu.Unlock()
	if e.hooks.OnBeforeClose != nil {
		e.hooks.OnBeforeClose(saved)
	}
	return nil
}

func (e *EditWorkflow) expect(s State, op string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != s {
		return fmt.Errorf("%w: %s in %s", domain.ErrInvalidTransition, op, e.state)
	}
	return nil
}

func (e *EditWorkflow) setLocked(s State) {
	e.logger.Debug("edit transition", zap.String("ad_id", e.ad.ID), zap.String("from", string(e.state)), zap.String("to", string(s)))
	e.state = s
}
