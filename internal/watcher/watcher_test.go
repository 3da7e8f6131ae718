package watcher

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"adline/internal/domain"
)

type step struct {
	tx  *domain.Transaction
	err error
}

type fakeSource struct {
	mu      sync.Mutex
	steps   []step
	receipt *domain.Receipt
	lookups int
}

func (f *fakeSource) TransactionByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if len(f.steps) == 0 {
		return &domain.Transaction{Hash: hash, BlockHash: domain.MempoolBlockHash}, nil
	}
	s := f.steps[0]
	if len(f.steps) > 1 {
		f.steps = f.steps[1:]
	}
	return s.tx, s.err
}

func (f *fakeSource) Receipt(ctx context.Context, hash string) (*domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipt, nil
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

func pending(hash string) *domain.Transaction {
	return &domain.Transaction{Hash: hash, BlockHash: domain.MempoolBlockHash}
}

func mined(hash string) *domain.Transaction {
	return &domain.Transaction{Hash: hash, BlockHash: "0xb10c"}
}

func collect(t *testing.T, ch <-chan domain.TxEvent) []domain.TxEvent {
	t.Helper()
	var evs []domain.TxEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return evs
			}
			evs = append(evs, ev)
		case <-timeout:
			t.Fatalf("watch did not finish")
		}
	}
}

func TestMinedAfterPending(t *testing.T) {
	src := &fakeSource{steps: []step{
		{tx: pending("0xA")},
		{err: fmt.Errorf("%w: connection refused", domain.ErrTransport)},
		{tx: mined("0xA")},
	}, receipt: &domain.Receipt{TxHash: "0xA", Success: true}}
	w := New(src, Config{Interval: time.Millisecond}, nil)
	evs := collect(t, w.Watch(context.Background(), "0xA"))
	require.Len(t, evs, 1)
	require.Equal(t, domain.TxMined, evs[0].Kind)
	require.Equal(t, "0xA", evs[0].Hash)
	require.Equal(t, 3, src.count())
}

func TestNullIsTerminalWithoutRetry(t *testing.T) {
	src := &fakeSource{steps: []step{{tx: nil}}}
	w := New(src, Config{Interval: time.Millisecond}, nil)
	evs := collect(t, w.Watch(context.Background(), "0xA"))
	require.Len(t, evs, 1)
	require.Equal(t, domain.TxNull, evs[0].Kind)
	require.ErrorIs(t, evs[0].Err, domain.ErrNullTransaction)
	require.Equal(t, 1, src.count())
}

func TestFailedReceiptIsMiningFailed(t *testing.T) {
	src := &fakeSource{steps: []step{{tx: mined("0xA")}}, receipt: &domain.Receipt{Success: false, Error: "out of gas"}}
	w := New(src, Config{Interval: time.Millisecond}, nil)
	evs := collect(t, w.Watch(context.Background(), "0xA"))
	require.Len(t, evs, 1)
	require.Equal(t, domain.TxMiningFailed, evs[0].Kind)
	require.ErrorContains(t, evs[0].Err, "out of gas")
}

func TestMaxPollsGivesUp(t *testing.T) {
	src := &fakeSource{}
	w := New(src, Config{Interval: time.Millisecond, MaxPolls: 3}, nil)
	evs := collect(t, w.Watch(context.Background(), "0xA"))
	require.Len(t, evs, 1)
	require.Equal(t, domain.TxMiningFailed, evs[0].Kind)
	require.Equal(t, 3, src.count())
}

func TestCancelStopsWithoutEvent(t *testing.T) {
	src := &fakeSource{}
	w := New(src, Config{Interval: time.Millisecond}, nil)
	var outcomes int
	w.OnOutcome = func(domain.TxEventKind) { outcomes++ }
	ctx, cancel := context.WithCancel(context.Background())
	ch := w.Watch(ctx, "0xA")
	require.Eventually(t, func() bool { return src.count() >= 2 }, time.Second, time.Millisecond)
	cancel()
	evs := collect(t, ch)
	require.Empty(t, evs)
	polled := src.count()
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, polled, src.count())
	require.Zero(t, outcomes)
}
