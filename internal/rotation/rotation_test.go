package rotation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"adline/internal/adcontent"
	"adline/internal/domain"
)

type fakeChain struct {
	mu       sync.Mutex
	coins    []domain.BurntCoin
	profiles map[string]adcontent.Profile
	votings  map[string]domain.VotingState
	fetched  []string
}

func (f *fakeChain) BurntCoins(context.Context) ([]domain.BurntCoin, error) {
	return f.coins, nil
}

func (f *fakeChain) ProfileCID(_ context.Context, address string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, address)
	if _, ok := f.profiles[address]; !ok {
		return "", errors.New("no such identity")
	}
	return "profile-" + address, nil
}

func (f *fakeChain) Get(_ context.Context, cid string) ([]byte, error) {
	for addr, p := range f.profiles {
		if cid == "profile-"+addr {
			return p.Marshal(), nil
		}
	}
	return nil, fmt.Errorf("content %s not found", cid)
}

func (f *fakeChain) QueryVotingState(_ context.Context, contract string) (domain.VotingState, error) {
	st, ok := f.votings[contract]
	if !ok {
		return domain.VotingState{}, errors.New("unknown contract")
	}
	return st, nil
}

func burn(address string, key adcontent.Key) domain.BurntCoin {
	return domain.BurntCoin{Address: address, Amount: decimal.NewFromInt(10), Key: hexutil.Encode(key.Marshal())}
}

var viewer = domain.Identity{Address: "0xviewer", Age: 30, Stake: decimal.NewFromInt(1000), Language: "en", OS: "linux"}

func TestSelectKeepsApprovedMatchingAds(t *testing.T) {
	require := require.New(t)
	key := adcontent.Key{Language: "EN", Age: 18, Stake: decimal.NewFromInt(100), OS: "Linux"}
	fc := &fakeChain{
		coins: []domain.BurntCoin{
			burn("0xa", key),
			burn("0xb", adcontent.Key{Language: "de", OS: "linux"}),
			burn("0xc", adcontent.Key{Language: "en", Age: 40, OS: "linux"}),
		},
		profiles: map[string]adcontent.Profile{
			"0xa": {Ads: []adcontent.ProfileAd{
				{ContentID: "cid1", Target: key, VotingAddress: "0xV1"},
				{ContentID: "cid2", Target: key, VotingAddress: "0xV2"},
				{ContentID: "cid3", Target: key, VotingAddress: "0xV3"},
			}},
		},
		votings: map[string]domain.VotingState{
			"0xV1": {Phase: domain.VotingArchived, Result: domain.ResultApproved, ContentID: "cid1"},
			"0xV2": {Phase: domain.VotingArchived, Result: domain.ResultApproved, ContentID: "other"},
			"0xV3": {Phase: domain.VotingOpen},
		},
	}
	slots, err := New(fc, Options{}).Select(context.Background(), viewer)
	require.NoError(err)
	require.Len(slots, 1)
	require.Equal("cid1", slots[0].ContentID)
	require.Equal("0xa", slots[0].Burner)
	require.Equal([]string{"0xa"}, fc.fetched)
}

func TestSelectHonoursLimit(t *testing.T) {
	require := require.New(t)
	key := adcontent.Key{Language: "en", OS: "linux"}
	fc := &fakeChain{profiles: map[string]adcontent.Profile{}, votings: map[string]domain.VotingState{}}
	for i := 0; i < 8; i++ {
		fc.coins = append(fc.coins, burn(fmt.Sprintf("0x%d", i), key))
	}
	fc.coins = append(fc.coins, domain.BurntCoin{Address: "0xbad", Key: "zz"})
	slots, err := New(fc, Options{}).Select(context.Background(), viewer)
	require.NoError(err)
	require.Empty(slots)
	require.Len(fc.fetched, DefaultLimit)
}
