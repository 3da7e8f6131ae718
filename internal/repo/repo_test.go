package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"adline/internal/db"
	"adline/internal/domain"
	"adline/internal/events"
	"adline/internal/migrate"
	"adline/internal/repo"
)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	now := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return repo.Repo{DB: conn, Actor: "0xabc", Events: events.Writer{Now: now}, Now: now}
}

func TestInsertAndGet(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	ad, err := r.Insert(ctx, domain.Ad{Title: "Coffee", URL: "https://coffee.example", Age: 18, Stake: decimal.NewFromInt(250)})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if ad.ID == "" || ad.Status != domain.StatusDraft {
		t.Fatalf("unexpected defaults: %+v", ad)
	}
	got, err := r.GetByID(ctx, ad.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Coffee" || !got.Stake.Equal(decimal.NewFromInt(250)) || got.CreatedAt != "2024-01-01T00:00:00Z" {
		t.Fatalf("unexpected ad: %+v", got)
	}
	if _, err := r.GetByID(ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := r.Insert(ctx, domain.Ad{Title: " "}); err == nil {
		t.Fatalf("expected title error")
	}
}

func TestUpdateAppliesOnlyPatchedFields(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	ad, err := r.Insert(ctx, domain.Ad{ID: "1", Title: "Coffee", URL: "https://coffee.example", Author: "0xabc"})
	if err != nil {
		t.Fatal(err)
	}
	sub := domain.ReviewSubmission{ContentID: "bafy1", VotingAddress: "0xC1", DeployVotingTxHash: "0xA"}
	updated, err := r.Update(ctx, ad.ID, sub.Patch())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.StatusReviewing || updated.VotingAddress != "0xC1" || updated.DeployVotingTxHash != "0xA" {
		t.Fatalf("submission not stored: %+v", updated)
	}
	if updated.Title != "Coffee" || updated.URL != "https://coffee.example" || updated.Author != "0xabc" {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
	evts, err := r.LatestEvents(ctx, 10, 0, events.AdReviewSubmitted, "ad", ad.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evts) != 1 || evts[0].ActorID != "0xabc" {
		t.Fatalf("expected one review event, got %+v", evts)
	}
	title := "Tea"
	if _, err := r.Update(ctx, "missing", domain.AdPatch{Title: &title}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVotingAddressIsUnique(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	for _, id := range []string{"1", "2"} {
		if _, err := r.Insert(ctx, domain.Ad{ID: id, Title: "ad " + id}); err != nil {
			t.Fatal(err)
		}
	}
	sub := domain.ReviewSubmission{ContentID: "c", VotingAddress: "0xC1", DeployVotingTxHash: "0xA"}
	if _, err := r.Update(ctx, "1", sub.Patch()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Update(ctx, "2", sub.Patch()); err == nil {
		t.Fatalf("expected unique violation for shared voting contract")
	}
}

func TestDeleteAndList(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	for _, id := range []string{"41", "42"} {
		if _, err := r.Insert(ctx, domain.Ad{ID: id, Title: "ad " + id}); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Delete(ctx, "42"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.Delete(ctx, "42"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	ads, err := r.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ads) != 1 || ads[0].ID != "41" {
		t.Fatalf("unexpected list: %+v", ads)
	}
	counts, err := r.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[string(domain.StatusDraft)] != 1 {
		t.Fatalf("counts %v", counts)
	}
	evts, err := r.LatestEvents(ctx, 1, 0, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 1 || evts[0].Type != events.AdDeleted {
		t.Fatalf("expected latest event ad.deleted, got %+v", evts)
	}
}

func TestAPIKeys(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	key, plain, err := r.CreateAPIKey(ctx, "0xabc", "ci")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	got, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(plain))
	if err != nil || got.ID != key.ID || got.Account != "0xabc" {
		t.Fatalf("lookup key: %+v %v", got, err)
	}
	if err := r.DeleteAPIKey(ctx, key.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(plain)); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected deleted key, got %v", err)
	}
}

func TestEventsAfterCursor(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	if id, err := r.LatestEventID(ctx); err != nil || id != 0 {
		t.Fatalf("empty journal: %d %v", id, err)
	}
	for _, id := range []string{"1", "2", "3"} {
		if _, err := r.Insert(ctx, domain.Ad{ID: id, Title: "ad " + id}); err != nil {
			t.Fatal(err)
		}
	}
	latest, err := r.LatestEventID(ctx)
	if err != nil || latest != 3 {
		t.Fatalf("latest id %d %v", latest, err)
	}
	evts, err := r.EventsAfter(ctx, 10, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 2 || evts[0].EntityID != "2" || evts[1].EntityID != "3" {
		t.Fatalf("unexpected events after 1: %+v", evts)
	}
}
