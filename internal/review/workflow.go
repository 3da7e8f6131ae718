// Package review drives one ad at a time through content publication, voting
// contract deployment, vote start and the two mining waits in between.
package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"adline/internal/config"
	"adline/internal/domain"
)

type State string

const (
	Idle                 State = "idle"
	Previewing           State = "previewing"
	Submitting           State = "submitting"
	AwaitingDeployMining State = "awaiting_deploy_mining"
	StartingVote         State = "starting_vote"
	AwaitingStartMining  State = "awaiting_start_mining"
	MiningFailed         State = "mining_failed"
	StartVoteFailed      State = "start_vote_failed"
)

// InFlight reports whether the state has async work running.
func (s State) InFlight() bool {
	switch s {
	case Submitting, AwaitingDeployMining, StartingVote, AwaitingStartMining:
		return true
	}
	return false
}

type Transition struct {
	AdID string    `json:"ad_id"`
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Failure is what the workflow reports when a step fails.
type Failure struct {
	AdID  string
	State State
	Err   error
}

type Snapshot struct {
	State State     `json:"state"`
	Ad    domain.Ad `json:"ad"`
	// Stalled is set when the start transaction resolved to nothing.
	Stalled bool   `json:"stalled,omitempty"`
	LastErr string `json:"last_error,omitempty"`
	// Deployed is a contract deployed for the ad whose store write failed.
	Deployed *domain.ReviewSubmission `json:"deployed,omitempty"`
}

type Params struct {
	Account     string
	DeployStake decimal.Decimal
	StartAmount decimal.Decimal
	Voting      config.VotingConfig
}

// ParamsFromConfig reads workflow amounts from the review and voting sections.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Account:     cfg.Account.Address,
		DeployStake: cfg.Review.DeployStakeAmount(),
		StartAmount: cfg.Review.StartAmount(),
		Voting:      cfg.Voting,
	}
}

type Deps struct {
	Content   ContentStore
	Contracts Contracts
	Watcher   TxWatcher
	Store     Store
}

type Options struct {
	Logger *zap.Logger
	Sink   AdSink
	// Report is the single side effect for step failures.
	Report    func(Failure)
	Observers []func(Transition)
	Now       func() time.Time
}

// Workflow is one review session holder. Async steps run on a goroutine per
// session; a result is applied only while its session is current.
type Workflow struct {
	deps   Deps
	params Params
	opts   Options
	logger *zap.Logger

	// notifyMu orders transitions with their notifications. It is always taken
	// before mu; observers must not call mutating methods.
	notifyMu sync.Mutex
	mu       sync.Mutex
	state    State
	ad       domain.Ad
	session  uint64
	stalled  bool
	lastErr  error
	deployed *domain.ReviewSubmission
	cancel   context.CancelFunc
	base     context.Context
	stop     context.CancelFunc
	running  sync.WaitGroup
}

func New(deps Deps, params Params, opts Options) *Workflow {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	base, stop := context.WithCancel(context.Background())
	return &Workflow{
		deps:   deps,
		params: params,
		opts:   opts,
		logger: opts.Logger,
		state:  Idle,
		base:   base,
		stop:   stop,
	}
}

// Observe registers a transition observer. It must be called before the workflow is used.
func (w *Workflow) Observe(fn func(Transition)) {
	w.opts.Observers = append(w.opts.Observers, fn)
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := Snapshot{State: w.state, Ad: w.ad, Stalled: w.stalled}
	if w.deployed != nil {
		d := *w.deployed
		snap.Deployed = &d
	}
	if w.lastErr != nil {
		snap.LastErr = w.lastErr.Error()
	}
	return snap
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Busy reports whether the workflow holds the ad in any state but Idle.
func (w *Workflow) Busy(adID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state != Idle && w.ad.ID == adID
}

// Select starts a session for the ad: Idle -> Previewing.
func (w *Workflow) Select(ad domain.Ad) error {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()
	w.mu.Lock()
	if w.state != Idle {
		st := w.state
		w.mu.Unlock()
		return fmt.Errorf("%w: select in %s", domain.ErrInvalidTransition, st)
	}
	w.session++
	w.ad = ad
	w.stalled = false
	w.lastErr = nil
	w.deployed = nil
	t := w.setStateLocked(Previewing)
	w.mu.Unlock()
	w.notify(t)
	return nil
}

// Submit runs the submission and the steps after it: Previewing -> Submitting.
func (w *Workflow) Submit() error {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()
	w.mu.Lock()
	if w.state != Previewing {
		st := w.state
		w.mu.Unlock()
		return fmt.Errorf("%w: submit in %s", domain.ErrInvalidTransition, st)
	}
	if err := w.ad.CanSubmitForReview(); err != nil {
		w.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(w.base)
	w.cancel = cancel
	session := w.session
	ad := w.ad
	deployed := w.deployed
	t := w.setStateLocked(Submitting)
	w.running.Add(1)
	w.mu.Unlock()
	w.notify(t)
	go func() {
		defer w.running.Done()
		w.run(ctx, session, ad, deployed)
	}()
	return nil
}

// Cancel ends the session without side effects. Once a submission runs it is only
// accepted after the run stopped in a failure state.
func (w *Workflow) Cancel() error {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()
	w.mu.Lock()
	switch {
	case w.state == Previewing, w.state == MiningFailed, w.state == StartVoteFailed:
	case w.state == AwaitingStartMining && w.stalled:
	default:
		st := w.state
		w.mu.Unlock()
		return fmt.Errorf("%w: cancel in %s", domain.ErrInvalidTransition, st)
	}
	t := w.resetLocked()
	w.mu.Unlock()
	w.notify(t)
	return nil
}

// Abort abandons the session in any state. Results of in-flight steps are discarded.
func (w *Workflow) Abort() {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()
	w.mu.Lock()
	if w.state == Idle {
		w.mu.Unlock()
		return
	}
	t := w.resetLocked()
	w.mu.Unlock()
	w.notify(t)
}

// Close aborts the session and waits for its goroutine to stop.
func (w *Workflow) Close() {
	w.Abort()
	w.stop()
	w.running.Wait()
}

func (w *Workflow) resetLocked() Transition {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.session++
	w.stalled = false
	w.deployed = nil
	t := w.setStateLocked(Idle)
	w.ad = domain.Ad{}
	return t
}

func (w *Workflow) setStateLocked(to State) Transition {
	t := Transition{AdID: w.ad.ID, From: w.state, To: to, At: w.opts.Now().UTC()}
	w.state = to
	return t
}

func (w *Workflow) notify(t Transition) {
	w.logger.Debug("review transition", zap.String("ad_id", t.AdID), zap.String("from", string(t.From)), zap.String("to", string(t.To)))
	for _, fn := range w.opts.Observers {
		fn(t)
	}
}

// advance moves from -> to for the given session and applies the ad change, if
// any, to both the workflow and the sink. It returns false for stale sessions.
// The sink and reporter run before the new state is visible.
func (w *Workflow) advance(session uint64, from, to State, ad *domain.Ad, stepErr error) bool {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()
	w.mu.Lock()
	current := w.session == session && w.state == from
	adID := w.ad.ID
	w.mu.Unlock()
	if !current {
		return false
	}
	if ad != nil && w.opts.Sink != nil {
		w.opts.Sink.ApplyAd(*ad)
	}
	if stepErr != nil {
		w.report(Failure{AdID: adID, State: from, Err: stepErr})
	}
	w.mu.Lock()
	if ad != nil {
		w.ad = *ad
	}
	if stepErr != nil {
		w.lastErr = stepErr
	}
	t := w.setStateLocked(to)
	if to == Idle && w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.mu.Unlock()
	w.notify(t)
	return true
}

// keepDeployed remembers a deployed contract so a resubmit of the session
// retries only the store write.
func (w *Workflow) keepDeployed(session uint64, sub domain.ReviewSubmission) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == session {
		w.deployed = &sub
	}
}

// stall records an advisory failure without leaving the current state.
func (w *Workflow) stall(session uint64, at State, err error) bool {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()
	w.mu.Lock()
	current := w.session == session && w.state == at
	adID := w.ad.ID
	w.mu.Unlock()
	if !current {
		return false
	}
	w.report(Failure{AdID: adID, State: at, Err: err})
	w.mu.Lock()
	w.stalled = true
	w.lastErr = err
	w.mu.Unlock()
	return true
}

func (w *Workflow) report(f Failure) {
	w.logger.Error("review step failed", zap.String("ad_id", f.AdID), zap.String("state", string(f.State)), zap.Error(f.Err))
	if w.opts.Report != nil {
		w.opts.Report(f)
	}
}

// await returns the single outcome of a watch, or false when the watch ended
// without one because the session was cancelled.
func await(ch <-chan domain.TxEvent) (domain.TxEvent, bool) {
	ev, ok := <-ch
	return ev, ok
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled)
}
