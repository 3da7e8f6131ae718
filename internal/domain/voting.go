package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type VotingPhase string

const (
	VotingPending    VotingPhase = "pending"
	VotingOpen       VotingPhase = "open"
	VotingVoted      VotingPhase = "voted"
	VotingCounting   VotingPhase = "counting"
	VotingArchived   VotingPhase = "archived"
	VotingTerminated VotingPhase = "terminated"
)

type VotingResult string

const (
	ResultUnknown  VotingResult = ""
	ResultApproved VotingResult = "approved"
	ResultRejected VotingResult = "rejected"
)

// VotingState is what the vote oracle reports for a voting contract.
type VotingState struct {
	Contract  string       `json:"contract"`
	Phase     VotingPhase  `json:"phase"`
	Result    VotingResult `json:"result,omitempty"`
	ContentID string       `json:"content_id,omitempty"`
}

// AdStatus derives the effective ad status from the voting state. contentID is the
// cid the ad was published under; an approval of different content only partially
// covers the ad.
func (v VotingState) AdStatus(contentID string) AdStatus {
	switch v.Phase {
	case VotingPending:
		return StatusVotingPending
	case VotingOpen:
		return StatusVotingOpen
	case VotingVoted:
		return StatusVotingVoted
	case VotingCounting:
		return StatusVotingCounting
	}
	switch v.Result {
	case ResultApproved:
		if contentID != "" && v.ContentID != "" && !strings.EqualFold(contentID, v.ContentID) {
			return StatusPartiallyShowing
		}
		return StatusShowing
	case ResultRejected:
		return StatusNotShowing
	}
	if v.Phase == VotingArchived || v.Phase == VotingTerminated {
		return StatusNotShowing
	}
	return StatusReviewing
}

// Approved reports whether the voting approved exactly the given content.
func (v VotingState) Approved(contentID string) bool {
	return v.Result == ResultApproved && strings.EqualFold(v.ContentID, contentID)
}

// Identity is the acting account as seen by targeting and the review workflow.
type Identity struct {
	Address  string          `json:"address"`
	Age      int             `json:"age"`
	Stake    decimal.Decimal `json:"stake"`
	Language string          `json:"language,omitempty"`
	OS       string          `json:"os,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIKey grants HTTP access on behalf of an account.
type APIKey struct {
	ID        string `json:"id"`
	Account   string `json:"account"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
