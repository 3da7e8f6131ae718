package server

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"adline/internal/domain"
	"adline/internal/review"
	"adline/internal/rotation"
)

// Request payloads

type CreateAdRequest struct {
	Title    string           `json:"title"`
	URL      string           `json:"url"`
	Cover    []byte           `json:"cover,omitempty"`
	Location string           `json:"location,omitempty"`
	Language string           `json:"language,omitempty"`
	Age      int              `json:"age,omitempty" minimum:"0"`
	OS       string           `json:"os,omitempty"`
	Stake    *decimal.Decimal `json:"stake,omitempty"`
}

type UpdateAdRequest struct {
	Title    *string          `json:"title,omitempty"`
	URL      *string          `json:"url,omitempty"`
	Cover    *[]byte          `json:"cover,omitempty"`
	Location *string          `json:"location,omitempty"`
	Language *string          `json:"language,omitempty"`
	Age      *int             `json:"age,omitempty" minimum:"0"`
	OS       *string          `json:"os,omitempty"`
	Stake    *decimal.Decimal `json:"stake,omitempty"`
}

type FilterRequest struct {
	Status string `json:"status" example:"Reviewing"`
}

type SelectReviewRequest struct {
	AdID string `json:"ad_id"`
}

type DevLoginRequest struct {
	Account  string           `json:"account"`
	Age      int              `json:"age,omitempty"`
	Stake    *decimal.Decimal `json:"stake,omitempty"`
	Language string           `json:"language,omitempty"`
	OS       string           `json:"os,omitempty"`
}

// Response payloads

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	Account  string          `json:"account"`
	Source   string          `json:"source"`
	Owner    bool            `json:"owner"`
	Age      int             `json:"age,omitempty"`
	Stake    decimal.Decimal `json:"stake"`
	Language string          `json:"language,omitempty"`
	OS       string          `json:"os,omitempty"`
}

type ReviewResponse struct {
	State     review.State `json:"state"`
	Ad        *domain.Ad   `json:"ad,omitempty"`
	Stalled   bool         `json:"stalled,omitempty"`
	LastError string       `json:"last_error,omitempty"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type RotationResponse struct {
	Items []rotation.Slot `json:"items"`
}

type TransitionMessage struct {
	AdID string       `json:"ad_id"`
	From review.State `json:"from"`
	To   review.State `json:"to"`
	At   string       `json:"at" format:"date-time"`
}

// Conversion helpers

func reviewResponse(s review.Snapshot) ReviewResponse {
	res := ReviewResponse{State: s.State, Stalled: s.Stalled, LastError: s.LastErr}
	if s.State != review.Idle {
		ad := s.Ad
		res.Ad = &ad
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func transitionMessage(t review.Transition) TransitionMessage {
	return TransitionMessage{AdID: t.AdID, From: t.From, To: t.To, At: t.At.UTC().Format(time.RFC3339)}
}

func (r UpdateAdRequest) patch() domain.AdPatch {
	return domain.AdPatch{
		Title:    r.Title,
		URL:      r.URL,
		Cover:    r.Cover,
		Location: r.Location,
		Language: r.Language,
		Age:      r.Age,
		OS:       r.OS,
		Stake:    r.Stake,
	}
}

func (r CreateAdRequest) patch() domain.AdPatch {
	p := domain.AdPatch{
		Title:    &r.Title,
		URL:      &r.URL,
		Location: &r.Location,
		Language: &r.Language,
		Age:      &r.Age,
		OS:       &r.OS,
		Stake:    r.Stake,
	}
	if r.Cover != nil {
		p.Cover = &r.Cover
	}
	return p
}

func decodeJSONMap(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
