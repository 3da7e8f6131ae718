package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type AdStatus string

const (
	StatusDraft            AdStatus = "Draft"
	StatusReviewing        AdStatus = "Reviewing"
	StatusShowing          AdStatus = "Showing"
	StatusNotShowing       AdStatus = "NotShowing"
	StatusPartiallyShowing AdStatus = "PartiallyShowing"
	StatusActive           AdStatus = "Active"

	// Review-phase statuses derived from a live voting contract.
	StatusVotingPending  AdStatus = "VotingPending"
	StatusVotingOpen     AdStatus = "VotingOpen"
	StatusVotingVoted    AdStatus = "VotingVoted"
	StatusVotingCounting AdStatus = "VotingCounting"
)

var knownStatuses = []AdStatus{
	StatusDraft,
	StatusReviewing,
	StatusShowing,
	StatusNotShowing,
	StatusPartiallyShowing,
	StatusActive,
	StatusVotingPending,
	StatusVotingOpen,
	StatusVotingVoted,
	StatusVotingCounting,
}

// Statuses returns every status an ad can carry.
func Statuses() []AdStatus {
	return append([]AdStatus(nil), knownStatuses...)
}

// ParseStatus resolves a status case-insensitively.
func ParseStatus(s string) (AdStatus, error) {
	for _, st := range knownStatuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid ad status %q", s)
}

// IsReviewing reports whether the status belongs to the review phase, either the
// locally assigned Reviewing status or one of the live voting statuses.
func (s AdStatus) IsReviewing() bool {
	switch AdStatus(canonical(string(s))) {
	case StatusReviewing, StatusVotingPending, StatusVotingOpen, StatusVotingVoted, StatusVotingCounting:
		return true
	}
	return false
}

func canonical(s string) string {
	if st, err := ParseStatus(s); err == nil {
		return string(st)
	}
	return s
}

type Ad struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	URL                string          `json:"url"`
	Cover              []byte          `json:"cover,omitempty"`
	Author             string          `json:"author"`
	Location           string          `json:"location,omitempty"`
	Language           string          `json:"language,omitempty"`
	Age                int             `json:"age"`
	OS                 string          `json:"os,omitempty"`
	Stake              decimal.Decimal `json:"stake"`
	Status             AdStatus        `json:"status"`
	ContentID          string          `json:"content_id,omitempty"`
	VotingAddress      string          `json:"voting_address,omitempty"`
	DeployVotingTxHash string          `json:"deploy_voting_tx_hash,omitempty"`
	StartVotingTxHash  string          `json:"start_voting_tx_hash,omitempty"`
	CreatedAt          string          `json:"created_at" format:"date-time"`
	UpdatedAt          string          `json:"updated_at" format:"date-time"`
}

// AdPatch carries a partial update; nil fields are left untouched.
type AdPatch struct {
	Title              *string          `json:"title,omitempty"`
	URL                *string          `json:"url,omitempty"`
	Cover              *[]byte          `json:"cover,omitempty"`
	Author             *string          `json:"author,omitempty"`
	Location           *string          `json:"location,omitempty"`
	Language           *string          `json:"language,omitempty"`
	Age                *int             `json:"age,omitempty"`
	OS                 *string          `json:"os,omitempty"`
	Stake              *decimal.Decimal `json:"stake,omitempty"`
	Status             *AdStatus        `json:"status,omitempty"`
	ContentID          *string          `json:"content_id,omitempty"`
	VotingAddress      *string          `json:"voting_address,omitempty"`
	DeployVotingTxHash *string          `json:"deploy_voting_tx_hash,omitempty"`
	StartVotingTxHash  *string          `json:"start_voting_tx_hash,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p AdPatch) Empty() bool {
	return p == AdPatch{}
}

// Apply merges the patch into a copy of the ad.
func (a Ad) Apply(p AdPatch) Ad {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.URL != nil {
		a.URL = *p.URL
	}
	if p.Cover != nil {
		a.Cover = append([]byte(nil), (*p.Cover)...)
	}
	if p.Author != nil {
		a.Author = *p.Author
	}
	if p.Location != nil {
		a.Location = *p.Location
	}
	if p.Language != nil {
		a.Language = *p.Language
	}
	if p.Age != nil {
		a.Age = *p.Age
	}
	if p.OS != nil {
		a.OS = *p.OS
	}
	if p.Stake != nil {
		a.Stake = *p.Stake
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.ContentID != nil {
		a.ContentID = *p.ContentID
	}
	if p.VotingAddress != nil {
		a.VotingAddress = *p.VotingAddress
	}
	if p.DeployVotingTxHash != nil {
		a.DeployVotingTxHash = *p.DeployVotingTxHash
	}
	if p.StartVotingTxHash != nil {
		a.StartVotingTxHash = *p.StartVotingTxHash
	}
	return a
}

// ReviewSubmission is the outcome of publishing an ad and deploying its voting contract.
type ReviewSubmission struct {
	ContentID          string `json:"content_id"`
	VotingAddress      string `json:"voting_address"`
	DeployVotingTxHash string `json:"deploy_voting_tx_hash"`
}

// Patch returns the persisted part of a submission: the ad moves to Reviewing.
func (s ReviewSubmission) Patch() AdPatch {
	status := StatusReviewing
	return AdPatch{
		Status:             &status,
		ContentID:          &s.ContentID,
		VotingAddress:      &s.VotingAddress,
		DeployVotingTxHash: &s.DeployVotingTxHash,
	}
}

// WithReviewSubmission records a voting contract on the ad. The contract address and
// deploy hash are assigned together and never overwritten.
func (a Ad) WithReviewSubmission(s ReviewSubmission) (Ad, error) {
	if err := a.CanSubmitForReview(); err != nil {
		return a, err
	}
	if s.VotingAddress == "" || s.DeployVotingTxHash == "" {
		return a, fmt.Errorf("voting address and deploy tx hash are required")
	}
	return a.Apply(s.Patch()), nil
}

// CanSubmitForReview fails when the ad already owns a voting contract.
func (a Ad) CanSubmitForReview() error {
	if a.VotingAddress != "" || a.DeployVotingTxHash != "" {
		return fmt.Errorf("%w: ad %s already has voting contract %s", ErrVotingAssigned, a.ID, a.VotingAddress)
	}
	return nil
}

// WithStartVoting records the start-voting transaction, which requires a voting contract.
func (a Ad) WithStartVoting(txHash string) (Ad, error) {
	if a.VotingAddress == "" {
		return a, fmt.Errorf("ad %s has no voting contract", a.ID)
	}
	if txHash == "" {
		return a, fmt.Errorf("start voting tx hash is required")
	}
	a.StartVotingTxHash = txHash
	return a, nil
}
