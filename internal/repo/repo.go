package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"adline/internal/domain"
	"adline/internal/events"
)

// Repo is the SQLite ad store.
type Repo struct {
	DB     *sql.DB
	Events events.Writer
	Actor  string
	Now    func() time.Time
}

var ErrNotFound = domain.ErrNotFound

func New(db *sql.DB, actor string) Repo {
	return Repo{DB: db, Actor: actor, Events: events.Writer{}, Now: time.Now}
}

func (r Repo) timestamp() string {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	return now().UTC().Format(time.RFC3339)
}

const adColumns = `id,title,url,cover,author,location,language,age,os,stake,status,
COALESCE(content_id,''),COALESCE(voting_address,''),COALESCE(deploy_tx_hash,''),COALESCE(start_tx_hash,''),created_at,updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAd(row scanner) (domain.Ad, error) {
	var (
		a      domain.Ad
		stake  string
		status string
	)
	err := row.Scan(&a.ID, &a.Title, &a.URL, &a.Cover, &a.Author, &a.Location, &a.Language, &a.Age, &a.OS, &stake, &status,
		&a.ContentID, &a.VotingAddress, &a.DeployVotingTxHash, &a.StartVotingTxHash, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.Status = domain.AdStatus(status)
	if stake != "" {
		if a.Stake, err = decimal.NewFromString(stake); err != nil {
			return a, fmt.Errorf("ad %s: invalid stake %q: %w", a.ID, stake, err)
		}
	}
	return a, nil
}

// ListAll returns every stored ad, newest first.
func (r Repo) ListAll(ctx context.Context) ([]domain.Ad, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+adColumns+` FROM ads ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Ad
	for rows.Next() {
		a, err := scanAd(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) GetByID(ctx context.Context, id string) (domain.Ad, error) {
	return scanAd(r.DB.QueryRowContext(ctx, `SELECT `+adColumns+` FROM ads WHERE id=?`, id))
}

// Insert stores a new ad. Missing id, status and timestamps are filled in.
func (r Repo) Insert(ctx context.Context, a domain.Ad) (domain.Ad, error) {
	if strings.TrimSpace(a.Title) == "" {
		return a, fmt.Errorf("title is required")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = domain.StatusDraft
	}
	now := r.timestamp()
	if a.CreatedAt == "" {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO ads(id,title,url,cover,author,location,language,age,os,stake,status,content_id,voting_address,deploy_tx_hash,start_tx_hash,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Title, a.URL, a.Cover, a.Author, a.Location, a.Language, a.Age, a.OS, a.Stake.String(), string(a.Status),
		nullable(a.ContentID), nullable(a.VotingAddress), nullable(a.DeployVotingTxHash), nullable(a.StartVotingTxHash), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return a, fmt.Errorf("insert ad: %w", err)
	}
	if err := r.Events.Append(ctx, tx, events.AdCreated, "ad", a.ID, r.Actor, events.EventPayload{"title": a.Title, "status": a.Status}); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	return a, nil
}

// Update applies the non-nil fields of the patch and returns the stored record.
func (r Repo) Update(ctx context.Context, id string, patch domain.AdPatch) (domain.Ad, error) {
	var (
		fields []string
		args   []any
	)
	set := func(col string, v any) {
		fields = append(fields, col+"=?")
		args = append(args, v)
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.URL != nil {
		set("url", *patch.URL)
	}
	if patch.Cover != nil {
		set("cover", *patch.Cover)
	}
	if patch.Author != nil {
		set("author", *patch.Author)
	}
	if patch.Location != nil {
		set("location", *patch.Location)
	}
	if patch.Language != nil {
		set("language", *patch.Language)
	}
	if patch.Age != nil {
		set("age", *patch.Age)
	}
	if patch.OS != nil {
		set("os", *patch.OS)
	}
	if patch.Stake != nil {
		set("stake", patch.Stake.String())
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.ContentID != nil {
		set("content_id", nullable(*patch.ContentID))
	}
	if patch.VotingAddress != nil {
		set("voting_address", nullable(*patch.VotingAddress))
	}
	if patch.DeployVotingTxHash != nil {
		set("deploy_tx_hash", nullable(*patch.DeployVotingTxHash))
	}
	if patch.StartVotingTxHash != nil {
		set("start_tx_hash", nullable(*patch.StartVotingTxHash))
	}
	if len(fields) == 0 {
		return r.GetByID(ctx, id)
	}
	set("updated_at", r.timestamp())
	args = append(args, id)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Ad{}, err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE ads SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return domain.Ad{}, fmt.Errorf("update ad: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.Ad{}, ErrNotFound
	}
	evtType, payload := updateEvent(patch)
	if err := r.Events.Append(ctx, tx, evtType, "ad", id, r.Actor, payload); err != nil {
		return domain.Ad{}, err
	}
	updated, err := scanAd(tx.QueryRowContext(ctx, `SELECT `+adColumns+` FROM ads WHERE id=?`, id))
	if err != nil {
		return domain.Ad{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Ad{}, err
	}
	return updated, nil
}

func updateEvent(patch domain.AdPatch) (string, events.EventPayload) {
	if patch.Status != nil && *patch.Status == domain.StatusReviewing {
		payload := events.EventPayload{"status": *patch.Status}
		if patch.VotingAddress != nil {
			payload["voting_address"] = *patch.VotingAddress
		}
		if patch.DeployVotingTxHash != nil {
			payload["deploy_tx_hash"] = *patch.DeployVotingTxHash
		}
		if patch.ContentID != nil {
			payload["content_id"] = *patch.ContentID
		}
		return events.AdReviewSubmitted, payload
	}
	payload := events.EventPayload{}
	if patch.Status != nil {
		payload["status"] = *patch.Status
	}
	if patch.Title != nil {
		payload["title"] = *patch.Title
	}
	return events.AdSaved, payload
}

func (r Repo) Delete(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM ads WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := r.Events.Append(ctx, tx, events.AdDeleted, "ad", id, r.Actor, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// CountByStatus returns stored ad counts keyed by persisted status.
func (r Repo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM ads GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// LatestEvents lists journal entries newest first; cursor is an exclusive upper id bound.
func (r Repo) LatestEvents(ctx context.Context, limit int, cursor int64, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	if limit <= 0 {
		limit = 20
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// EventsAfter lists journal entries with id greater than afterID, oldest first.
func (r Repo) EventsAfter(ctx context.Context, limit int, afterID int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the newest journal id, or 0 for an empty journal.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}
