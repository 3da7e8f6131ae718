package pgstore

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"adline/internal/domain"
)

func TestPatchColumnsOnlyCarriesSetFields(t *testing.T) {
	require := require.New(t)
	title := "Tea"
	stake := decimal.NewFromInt(12)
	empty := ""
	cols := patchColumns(domain.AdPatch{Title: &title, Stake: &stake, ContentID: &empty})
	require.Len(cols, 3)
	require.Equal("Tea", cols["title"])
	require.Equal("12", cols["stake"])
	require.Nil(cols["content_id"])
	require.Empty(patchColumns(domain.AdPatch{}))
}

func TestModelRoundTripKeepsReviewFields(t *testing.T) {
	require := require.New(t)
	ad := domain.Ad{
		ID:                 "1",
		Title:              "Coffee",
		Stake:              decimal.RequireFromString("8000.5"),
		Status:             domain.StatusReviewing,
		VotingAddress:      "0xC1",
		DeployVotingTxHash: "0xA",
	}
	got := adModelFromDomain(ad).toDomain()
	require.Equal("0xC1", got.VotingAddress)
	require.Equal("0xA", got.DeployVotingTxHash)
	require.Empty(got.StartVotingTxHash)
	require.True(got.Stake.Equal(ad.Stake))
	require.Equal(domain.StatusReviewing, got.Status)
}
