// Package rotation picks the approved ads shown to an identity, based on the
// coins burnt under targeting keys.
package rotation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"adline/internal/adcontent"
	"adline/internal/chain"
	"adline/internal/domain"
)

const DefaultLimit = 5

// Chain is the node surface rotation reads from.
type Chain interface {
	BurntCoins(ctx context.Context) ([]domain.BurntCoin, error)
	ProfileCID(ctx context.Context, address string) (string, error)
	Get(ctx context.Context, cid string) ([]byte, error)
	QueryVotingState(ctx context.Context, contract string) (domain.VotingState, error)
}

type Options struct {
	Limit       int
	Concurrency int
	Logger      *zap.Logger
}

// Slot is an ad eligible for display.
type Slot struct {
	Burner        string             `json:"burner"`
	ContentID     string             `json:"content_id"`
	VotingAddress string             `json:"voting_address"`
	Target        adcontent.Key      `json:"-"`
	Amount        string             `json:"amount"`
	Voting        domain.VotingState `json:"voting"`
}

type Selector struct {
	chain  Chain
	opts   Options
	logger *zap.Logger
}

func New(c Chain, opts Options) *Selector {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{chain: c, opts: opts, logger: logger}
}

// Select returns the approved ads of the first matching burners, in burn order.
// Burners whose profile cannot be read are skipped.
func (s *Selector) Select(ctx context.Context, id domain.Identity) ([]Slot, error) {
	coins, err := s.chain.BurntCoins(ctx)
	if err != nil {
		return nil, fmt.Errorf("burnt coins: %w", err)
	}
	burns := s.matching(coins, id)

	perBurn := make([][]Slot, len(burns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, coin := range burns {
		g.Go(func() error {
			ads, err := s.profileAds(gctx, coin.Address)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn("rotation profile skipped", zap.String("address", coin.Address), zap.Error(err))
				return nil
			}
			for _, ad := range ads {
				state, err := s.chain.QueryVotingState(gctx, ad.VotingAddress)
				if err != nil {
					s.logger.Debug("rotation voting skipped", zap.String("contract", ad.VotingAddress), zap.Error(err))
					continue
				}
				if !state.Approved(ad.ContentID) {
					continue
				}
				perBurn[i] = append(perBurn[i], Slot{
					Burner:        coin.Address,
					ContentID:     ad.ContentID,
					VotingAddress: ad.VotingAddress,
					Target:        ad.Target,
					Amount:        coin.Amount.String(),
					Voting:        state,
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []Slot
	for _, slots := range perBurn {
		out = append(out, slots...)
	}
	return out, nil
}

func (s *Selector) matching(coins []domain.BurntCoin, id domain.Identity) []domain.BurntCoin {
	var out []domain.BurntCoin
	for _, coin := range coins {
		raw, err := chain.DecodeHex(coin.Key)
		if err != nil {
			continue
		}
		key, err := adcontent.UnmarshalKey(raw)
		if err != nil || !key.Matches(id) {
			continue
		}
		out = append(out, coin)
		if len(out) == s.opts.Limit {
			break
		}
	}
	return out
}

func (s *Selector) profileAds(ctx context.Context, address string) ([]adcontent.ProfileAd, error) {
	cid, err := s.chain.ProfileCID(ctx, address)
	if err != nil {
		return nil, err
	}
	if cid == "" {
		return nil, nil
	}
	raw, err := s.chain.Get(ctx, cid)
	if err != nil {
		return nil, err
	}
	profile, err := adcontent.UnmarshalProfile(raw)
	if err != nil {
		return nil, err
	}
	return profile.Ads, nil
}
