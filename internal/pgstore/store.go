// Package pgstore is the Postgres ad store, used when store.driver is postgres.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"adline/internal/domain"
	"adline/internal/events"
)

type Store struct {
	db     *gorm.DB
	actor  string
	now    func() time.Time
	logger *zap.Logger
}

// Connect opens a gorm Postgres handle and migrates the ad tables.
func Connect(ctx context.Context, dsn, actor string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := New(db, actor, logger)
	if err := s.AutoMigrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func New(db *gorm.DB, actor string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, actor: actor, now: time.Now, logger: logger}
}

func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&adModel{}, &eventModel{}); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) ListAll(ctx context.Context) ([]domain.Ad, error) {
	var rows []adModel
	if err := s.db.WithContext(ctx).Order("created_at DESC, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Ad, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain())
	}
	return items, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.Ad, error) {
	var row adModel
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Ad{}, domain.ErrNotFound
		}
		return domain.Ad{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) Insert(ctx context.Context, ad domain.Ad) (domain.Ad, error) {
	if strings.TrimSpace(ad.Title) == "" {
		return ad, errors.New("title is required")
	}
	if ad.ID == "" {
		ad.ID = uuid.NewString()
	}
	if ad.Status == "" {
		ad.Status = domain.StatusDraft
	}
	now := s.now().UTC()
	row := adModelFromDomain(ad)
	row.CreatedAt, row.UpdatedAt = now, now
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("ad %s already exists", ad.ID)
			}
			return err
		}
		return s.appendEvent(tx, events.AdCreated, ad.ID, events.EventPayload{"title": ad.Title, "status": ad.Status})
	})
	if err != nil {
		return domain.Ad{}, err
	}
	return row.toDomain(), nil
}

// Update applies the non-nil patch fields inside one transaction together with its journal row.
func (s *Store) Update(ctx context.Context, id string, patch domain.AdPatch) (domain.Ad, error) {
	updates := patchColumns(patch)
	if len(updates) == 0 {
		return s.GetByID(ctx, id)
	}
	updates["updated_at"] = s.now().UTC()
	var out adModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&adModel{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			if isUniqueViolation(result.Error) {
				return fmt.Errorf("%w: voting contract is bound to another ad", domain.ErrVotingAssigned)
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		evtType := events.AdSaved
		if patch.Status != nil && *patch.Status == domain.StatusReviewing {
			evtType = events.AdReviewSubmitted
		}
		if err := s.appendEvent(tx, evtType, id, events.EventPayload{"fields": keys(updates)}); err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&out).Error
	})
	if err != nil {
		return domain.Ad{}, err
	}
	return out.toDomain(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&adModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return s.appendEvent(tx, events.AdDeleted, id, nil)
	})
}

// CountByStatus returns stored ad counts keyed by persisted status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string
		N      int
	}
	if err := s.db.WithContext(ctx).Model(&adModel{}).Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// LatestEvents lists journal entries newest first; cursor is an exclusive upper id bound.
func (s *Store) LatestEvents(ctx context.Context, limit int, cursor int64, evtType, entityKind, entityID string) ([]domain.Event, error) {
	q := s.db.WithContext(ctx).Model(&eventModel{})
	if evtType != "" {
		q = q.Where("type = ?", evtType)
	}
	if entityKind != "" {
		q = q.Where("entity_kind = ?", entityKind)
	}
	if entityID != "" {
		q = q.Where("entity_id = ?", entityID)
	}
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	if limit <= 0 {
		limit = 20
	}
	var rows []eventModel
	if err := q.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return eventsFromModels(rows), nil
}

// EventsAfter lists journal entries with id greater than afterID, oldest first.
func (s *Store) EventsAfter(ctx context.Context, limit int, afterID int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []eventModel
	if err := s.db.WithContext(ctx).Where("id > ?", afterID).Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return eventsFromModels(rows), nil
}

func (s *Store) LatestEventID(ctx context.Context) (int64, error) {
	var id *int64
	if err := s.db.WithContext(ctx).Model(&eventModel{}).Select("MAX(id)").Scan(&id).Error; err != nil {
		return 0, err
	}
	if id == nil {
		return 0, nil
	}
	return *id, nil
}

func eventsFromModels(rows []eventModel) []domain.Event {
	out := make([]domain.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Event{
			ID:         r.ID,
			TS:         r.TS.UTC().Format(time.RFC3339),
			Type:       r.Type,
			EntityKind: r.EntityKind,
			EntityID:   r.EntityID,
			ActorID:    r.ActorID,
			Payload:    r.Payload,
		})
	}
	return out
}

func (s *Store) appendEvent(tx *gorm.DB, evtType, entityID string, payload events.EventPayload) error {
	if payload == nil {
		payload = events.EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	actor := s.actor
	if actor == "" {
		actor = "local-user"
	}
	row := eventModel{TS: s.now().UTC(), Type: evtType, EntityKind: "ad", EntityID: entityID, ActorID: actor, Payload: string(data)}
	if err := tx.Create(&row).Error; err != nil {
		return err
	}
	s.logger.Debug("journal event", zap.String("type", evtType), zap.String("ad_id", entityID))
	return nil
}

func patchColumns(p domain.AdPatch) map[string]any {
	updates := map[string]any{}
	if p.Title != nil {
		updates["title"] = *p.Title
	}
	if p.URL != nil {
		updates["url"] = *p.URL
	}
	if p.Cover != nil {
		updates["cover"] = *p.Cover
	}
	if p.Author != nil {
		updates["author"] = *p.Author
	}
	if p.Location != nil {
		updates["location"] = *p.Location
	}
	if p.Language != nil {
		updates["language"] = *p.Language
	}
	if p.Age != nil {
		updates["age"] = *p.Age
	}
	if p.OS != nil {
		updates["os"] = *p.OS
	}
	if p.Stake != nil {
		updates["stake"] = p.Stake.String()
	}
	if p.Status != nil {
		updates["status"] = string(*p.Status)
	}
	if p.ContentID != nil {
		updates["content_id"] = nullable(*p.ContentID)
	}
	if p.VotingAddress != nil {
		updates["voting_address"] = nullable(*p.VotingAddress)
	}
	if p.DeployVotingTxHash != nil {
		updates["deploy_tx_hash"] = nullable(*p.DeployVotingTxHash)
	}
	if p.StartVotingTxHash != nil {
		updates["start_tx_hash"] = nullable(*p.StartVotingTxHash)
	}
	return updates
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		if k != "updated_at" {
			out = append(out, k)
		}
	}
	return out
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type adModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	Title         string    `gorm:"column:title;not null"`
	URL           string    `gorm:"column:url"`
	Cover         []byte    `gorm:"column:cover"`
	Author        string    `gorm:"column:author"`
	Location      string    `gorm:"column:location"`
	Language      string    `gorm:"column:language"`
	Age           int       `gorm:"column:age"`
	OS            string    `gorm:"column:os"`
	Stake         string    `gorm:"column:stake;default:0"`
	Status        string    `gorm:"column:status;index"`
	ContentID     *string   `gorm:"column:content_id"`
	VotingAddress *string   `gorm:"column:voting_address;uniqueIndex"`
	DeployTxHash  *string   `gorm:"column:deploy_tx_hash"`
	StartTxHash   *string   `gorm:"column:start_tx_hash"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (adModel) TableName() string { return "ads" }

func adModelFromDomain(a domain.Ad) adModel {
	return adModel{
		ID:            a.ID,
		Title:         a.Title,
		URL:           a.URL,
		Cover:         a.Cover,
		Author:        a.Author,
		Location:      a.Location,
		Language:      a.Language,
		Age:           a.Age,
		OS:            a.OS,
		Stake:         a.Stake.String(),
		Status:        string(a.Status),
		ContentID:     nullable(a.ContentID),
		VotingAddress: nullable(a.VotingAddress),
		DeployTxHash:  nullable(a.DeployVotingTxHash),
		StartTxHash:   nullable(a.StartVotingTxHash),
	}
}

func (m adModel) toDomain() domain.Ad {
	stake, err := decimal.NewFromString(m.Stake)
	if err != nil {
		stake = decimal.Zero
	}
	return domain.Ad{
		ID:                 m.ID,
		Title:              m.Title,
		URL:                m.URL,
		Cover:              m.Cover,
		Author:             m.Author,
		Location:           m.Location,
		Language:           m.Language,
		Age:                m.Age,
		OS:                 m.OS,
		Stake:              stake,
		Status:             domain.AdStatus(m.Status),
		ContentID:          deref(m.ContentID),
		VotingAddress:      deref(m.VotingAddress),
		DeployVotingTxHash: deref(m.DeployTxHash),
		StartVotingTxHash:  deref(m.StartTxHash),
		CreatedAt:          m.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          m.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

type eventModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TS         time.Time `gorm:"column:ts"`
	Type       string    `gorm:"column:type"`
	EntityKind string    `gorm:"column:entity_kind"`
	EntityID   string    `gorm:"column:entity_id;index"`
	ActorID    string    `gorm:"column:actor_id"`
	Payload    string    `gorm:"column:payload_json"`
}

func (eventModel) TableName() string { return "events" }
