package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"adline/internal/adcontent"
	"adline/internal/domain"
)

// Voting contract state byte as stored under the "state" key.
var contractPhases = map[int]domain.VotingPhase{
	0: domain.VotingPending,
	1: domain.VotingOpen,
	2: domain.VotingVoted,
	3: domain.VotingCounting,
	4: domain.VotingArchived,
	5: domain.VotingTerminated,
}

func (c *Client) readData(ctx context.Context, contract, key, format string, out any) (bool, error) {
	return c.call(ctx, "contract_readData", out, contract, key, format)
}

// QueryVotingState reads phase, result and the voted fact from a voting contract.
func (c *Client) QueryVotingState(ctx context.Context, contract string) (domain.VotingState, error) {
	state := domain.VotingState{Contract: contract}
	var phase int
	found, err := c.readData(ctx, contract, "state", "byte", &phase)
	if err != nil {
		return state, err
	}
	if !found {
		return state, fmt.Errorf("voting %s: state not found", contract)
	}
	p, ok := contractPhases[phase]
	if !ok {
		return state, fmt.Errorf("voting %s: unknown state %d", contract, phase)
	}
	state.Phase = p

	var factHex string
	if _, err := c.readData(ctx, contract, "fact", "hex", &factHex); err != nil && !IsRPCError(err) {
		return state, err
	}
	if factHex != "" {
		raw, err := DecodeHex(factHex)
		if err != nil {
			return state, fmt.Errorf("voting %s: %w", contract, err)
		}
		fact, err := adcontent.DecodeVotingFact(raw)
		if err != nil {
			return state, fmt.Errorf("voting %s: %w", contract, err)
		}
		state.ContentID = fact.ContentID
	}

	// result is written once counting finishes; before that the node reports no data.
	var result *int
	if _, err := c.readData(ctx, contract, "result", "byte", &result); err != nil && !IsRPCError(err) {
		return state, err
	}
	if result != nil {
		switch *result {
		case 1:
			state.Result = domain.ResultApproved
		case 0:
			state.Result = domain.ResultRejected
		}
	}
	return state, nil
}

func (c *Client) BurntCoins(ctx context.Context) ([]domain.BurntCoin, error) {
	var coins []domain.BurntCoin
	if _, err := c.call(ctx, "bcn_burntCoins", &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// TotalSpent sums the coins burnt by the account.
func (c *Client) TotalSpent(ctx context.Context, account string) (decimal.Decimal, error) {
	coins, err := c.BurntCoins(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, coin := range coins {
		if strings.EqualFold(coin.Address, account) {
			total = total.Add(coin.Amount)
		}
	}
	return total, nil
}

// ProfileCID returns the cid of the address's published profile, or "" when it has none.
func (c *Client) ProfileCID(ctx context.Context, address string) (string, error) {
	var res struct {
		Info string `json:"info"`
	}
	if _, err := c.call(ctx, "dna_profile", &res, address); err != nil {
		return "", err
	}
	return res.Info, nil
}
