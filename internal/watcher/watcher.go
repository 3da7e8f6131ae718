// Package watcher polls the node for a transaction until it reaches a terminal outcome.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"adline/internal/domain"
)

// Source is the node surface a watcher polls.
type Source interface {
	TransactionByHash(ctx context.Context, hash string) (*domain.Transaction, error)
	Receipt(ctx context.Context, hash string) (*domain.Receipt, error)
}

type Config struct {
	Interval time.Duration
	// MaxPolls bounds the number of lookups; zero polls until a terminal outcome.
	MaxPolls int
}

type Watcher struct {
	source   Source
	interval time.Duration
	maxPolls int
	logger   *zap.Logger

	OnPoll    func(hash string)
	OnOutcome func(kind domain.TxEventKind)
}

func New(source Source, cfg Config, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Watcher{source: source, interval: interval, maxPolls: cfg.MaxPolls, logger: logger}
}

// Watch starts polling hash and returns a channel that yields exactly one terminal
// event and is then closed. Cancelling ctx stops the loop and closes the channel
// without an event.
func (w *Watcher) Watch(ctx context.Context, hash string) <-chan domain.TxEvent {
	out := make(chan domain.TxEvent, 1)
	go func() {
		defer close(out)
		if ev, ok := w.run(ctx, hash); ok {
			if w.OnOutcome != nil {
				w.OnOutcome(ev.Kind)
			}
			w.logger.Debug("transaction settled", zap.String("hash", hash), zap.Stringer("outcome", ev.Kind))
			out <- ev
		}
	}()
	return out
}

func (w *Watcher) run(ctx context.Context, hash string) (domain.TxEvent, bool) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	polls := 0
	for {
		if ctx.Err() != nil {
			return domain.TxEvent{}, false
		}
		polls++
		if w.OnPoll != nil {
			w.OnPoll(hash)
		}
		ev, done := w.poll(ctx, hash)
		if ctx.Err() != nil {
			return domain.TxEvent{}, false
		}
		if done {
			return ev, true
		}
		if w.maxPolls > 0 && polls >= w.maxPolls {
			return domain.TxEvent{
				Kind: domain.TxMiningFailed,
				Hash: hash,
				Err:  fmt.Errorf("%w: %s not mined after %d polls", domain.ErrMiningFailed, hash, polls),
			}, true
		}
		select {
		case <-ctx.Done():
			return domain.TxEvent{}, false
		case <-ticker.C:
		}
	}
}

// poll performs one lookup. Transport failures count as not mined yet.
func (w *Watcher) poll(ctx context.Context, hash string) (domain.TxEvent, bool) {
	tx, err := w.source.TransactionByHash(ctx, hash)
	if err != nil {
		w.logTransient(hash, err)
		return domain.TxEvent{}, false
	}
	if tx == nil {
		return domain.TxEvent{
			Kind: domain.TxNull,
			Hash: hash,
			Err:  fmt.Errorf("%w: %s", domain.ErrNullTransaction, hash),
		}, true
	}
	if !tx.Mined() {
		return domain.TxEvent{}, false
	}
	receipt, err := w.source.Receipt(ctx, hash)
	if err != nil {
		w.logTransient(hash, err)
		return domain.TxEvent{}, false
	}
	if receipt != nil && !receipt.Success {
		msg := receipt.Error
		if msg == "" {
			msg = "execution failed"
		}
		return domain.TxEvent{
			Kind:        domain.TxMiningFailed,
			Hash:        hash,
			Transaction: tx,
			Receipt:     receipt,
			Err:         fmt.Errorf("%w: %s: %s", domain.ErrMiningFailed, hash, msg),
		}, true
	}
	return domain.TxEvent{Kind: domain.TxMined, Hash: hash, Transaction: tx, Receipt: receipt}, true
}

func (w *Watcher) logTransient(hash string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	w.logger.Warn("transaction lookup failed, retrying", zap.String("hash", hash), zap.Error(err))
}
