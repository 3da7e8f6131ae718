package adcontent

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"adline/internal/domain"
)

func TestContentEncodingKeepsCover(t *testing.T) {
	require := require.New(t)
	in := Content{ID: "1", Title: "Coffee", URL: "https://coffee.example", Cover: []byte{0xff, 0x00, 0x01}, Author: "0xabc"}
	out, err := UnmarshalContent(in.Marshal())
	require.NoError(err)
	require.Equal(in, out)
}

func TestProfileCarriesTargeting(t *testing.T) {
	require := require.New(t)
	p := Profile{Ads: []ProfileAd{
		{ContentID: "bafy1", VotingAddress: "0xC1", Target: Key{Language: "en", Age: 21, Stake: decimal.NewFromInt(100), OS: "linux"}},
		{ContentID: "bafy2", VotingAddress: "0xC2"},
	}}
	got, err := UnmarshalProfile(p.Marshal())
	require.NoError(err)
	require.Len(got.Ads, 2)
	require.Equal("0xC1", got.Ads[0].VotingAddress)
	require.Equal(21, got.Ads[0].Target.Age)
	require.True(got.Ads[0].Target.Stake.Equal(decimal.NewFromInt(100)))
	require.Equal("bafy2", got.Ads[1].ContentID)
}

func TestKeyMatchesIdentity(t *testing.T) {
	key := Key{Language: "EN", Age: 18, Stake: decimal.NewFromInt(50), OS: "Linux"}
	id := domain.Identity{Language: "en", Age: 30, Stake: decimal.NewFromInt(50), OS: "linux"}
	require.True(t, key.Matches(id))
	id.Age = 17
	require.False(t, key.Matches(id))
	id.Age = 30
	id.Stake = decimal.NewFromInt(49)
	require.False(t, key.Matches(id))
}

func TestTruncatedInputFails(t *testing.T) {
	b := Content{Title: "Coffee"}.Marshal()
	_, err := UnmarshalContent(b[:len(b)-2])
	require.Error(t, err)
}
