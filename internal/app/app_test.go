package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"adline/internal/config"
	"adline/internal/db"
	"adline/internal/domain"
	"adline/internal/editor"
	"adline/internal/migrate"
	"adline/internal/review"
)

type idleNode struct{}

func (idleNode) Put(ctx context.Context, data []byte) (string, error) { return "bafy", nil }
func (idleNode) EstimateDeploy(ctx context.Context, req domain.DeployRequest) (domain.DeployEstimate, error) {
	return domain.DeployEstimate{ContractAddress: "0xC1"}, nil
}
func (idleNode) Deploy(ctx context.Context, req domain.DeployRequest, est domain.DeployEstimate) (string, error) {
	return "0xA", nil
}
func (idleNode) EstimateCall(ctx context.Context, req domain.CallRequest) (domain.CallEstimate, error) {
	return domain.CallEstimate{}, nil
}
func (idleNode) InvokeCall(ctx context.Context, req domain.CallRequest, est domain.CallEstimate) (string, error) {
	return "0xB", nil
}
func (idleNode) TransactionByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	return &domain.Transaction{Hash: hash, BlockHash: domain.MempoolBlockHash}, nil
}
func (idleNode) Receipt(ctx context.Context, hash string) (*domain.Receipt, error) { return nil, nil }
func (idleNode) QueryVotingState(ctx context.Context, contract string) (domain.VotingState, error) {
	return domain.VotingState{Phase: domain.VotingOpen}, nil
}
func (idleNode) TotalSpent(ctx context.Context, account string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (idleNode) BurntCoins(ctx context.Context) ([]domain.BurntCoin, error)      { return nil, nil }
func (idleNode) ProfileCID(ctx context.Context, address string) (string, error) { return "", nil }
func (idleNode) Get(ctx context.Context, cid string) ([]byte, error)            { return nil, nil }

func newTestApp(t *testing.T) *App {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	cfg := config.Default("0xabc")
	r := sqliteRepo(conn, "0xabc", func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) })
	a := Build(cfg, r, r, idleNode{}, nil, Options{})
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewEditCreatesAndUpdates(t *testing.T) {
	require := require.New(t)
	a := newTestApp(t)
	ctx := context.Background()

	e := a.NewEdit("")
	require.NoError(e.Start(ctx))
	title, url := "Coffee", "https://coffee.example"
	_, err := e.Update(domain.AdPatch{Title: &title, URL: &url})
	require.NoError(err)
	require.NoError(e.Submit(ctx))
	require.Equal(editor.Success, e.State())

	created := e.Ad()
	stored, err := a.Store.GetByID(ctx, created.ID)
	require.NoError(err)
	require.Equal("0xabc", stored.Author)
	require.Len(a.Catalog.All(), 1, "a new ad reloads the catalog")

	e = a.NewEdit(created.ID)
	require.NoError(e.Start(ctx))
	title = "Tea"
	_, err = e.Update(domain.AdPatch{Title: &title})
	require.NoError(err)
	require.NoError(e.Submit(ctx))
	require.Equal("Tea", a.Catalog.All()[0].Title)
}

func TestNewEditCloseSavesDraft(t *testing.T) {
	require := require.New(t)
	a := newTestApp(t)
	ctx := context.Background()

	e := a.NewEdit("")
	require.NoError(e.Start(ctx))
	require.NoError(e.Close(ctx))
	require.False(e.DidSaveDraft(), "untitled drafts are dropped")

	e = a.NewEdit("")
	require.NoError(e.Start(ctx))
	title := "Half done"
	_, err := e.Update(domain.AdPatch{Title: &title})
	require.NoError(err)
	require.NoError(e.Close(ctx))
	require.True(e.DidSaveDraft())
	ads, err := a.Store.ListAll(ctx)
	require.NoError(err)
	require.Len(ads, 1)
	require.Equal(domain.StatusDraft, ads[0].Status)
}

func TestBuildWiresReviewIntoCatalog(t *testing.T) {
	require := require.New(t)
	a := newTestApp(t)
	ctx := context.Background()
	_, err := a.Store.Insert(ctx, domain.Ad{ID: "1", Title: "Coffee"})
	require.NoError(err)
	require.NoError(a.Catalog.Load(ctx))

	transitions, stop := a.Feed.Subscribe(4)
	defer stop()
	_, err = a.Catalog.SelectForReview("1")
	require.NoError(err)
	require.Equal(review.Previewing, (<-transitions).To)
	require.NoError(a.Catalog.Cancel())
	require.Equal(review.Idle, (<-transitions).To)
	require.Eventually(func() bool { return a.Catalog.View().Mode == "idle" }, time.Second, time.Millisecond)
}
