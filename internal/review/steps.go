package review

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"adline/internal/adcontent"
	"adline/internal/config"
	"adline/internal/domain"
)

const startVotingMethod = "startVoting"

// run executes one session after Submit. Each step resumes the machine exactly
// once; a stale session stops the run.
func (w *Workflow) run(ctx context.Context, session uint64, ad domain.Ad, deployed *domain.ReviewSubmission) {
	submitted, sub, err := w.submit(ctx, ad, deployed)
	if err != nil {
		if sub != nil {
			w.keepDeployed(session, *sub)
		}
		if isCancel(err) {
			return
		}
		w.advance(session, Submitting, Previewing, nil, err)
		return
	}
	if !w.advance(session, Submitting, AwaitingDeployMining, &submitted, nil) {
		return
	}

	ev, ok := await(w.deps.Watcher.Watch(ctx, submitted.DeployVotingTxHash))
	if !ok {
		return
	}
	if ev.Kind != domain.TxMined {
		w.advance(session, AwaitingDeployMining, MiningFailed, nil, txErr(ev))
		return
	}
	if !w.advance(session, AwaitingDeployMining, StartingVote, nil, nil) {
		return
	}

	started, err := w.startVote(ctx, submitted)
	if err != nil {
		if isCancel(err) {
			return
		}
		w.advance(session, StartingVote, StartVoteFailed, nil, err)
		return
	}
	if !w.advance(session, StartingVote, AwaitingStartMining, &started, nil) {
		return
	}

	ev, ok = await(w.deps.Watcher.Watch(ctx, started.StartVotingTxHash))
	if !ok {
		return
	}
	switch ev.Kind {
	case domain.TxMined:
		w.advance(session, AwaitingStartMining, Idle, nil, nil)
	case domain.TxNull:
		w.stall(session, AwaitingStartMining, txErr(ev))
	default:
		w.advance(session, AwaitingStartMining, MiningFailed, nil, txErr(ev))
	}
}

// submit publishes the content, deploys the voting contract and persists the
// Reviewing status. Nothing is written unless the deploy succeeded. A submission
// already deployed in this session is only written again, never redeployed.
// The returned submission is set whenever a contract exists for the ad.
func (w *Workflow) submit(ctx context.Context, ad domain.Ad, deployed *domain.ReviewSubmission) (domain.Ad, *domain.ReviewSubmission, error) {
	if err := ad.CanSubmitForReview(); err != nil {
		return ad, deployed, err
	}
	sub := deployed
	if sub == nil {
		fresh, err := w.deploy(ctx, ad)
		if err != nil {
			return ad, nil, err
		}
		sub = &fresh
	}
	if _, err := ad.WithReviewSubmission(*sub); err != nil {
		return ad, sub, err
	}
	stored, err := w.deps.Store.Update(ctx, ad.ID, sub.Patch())
	if err != nil {
		return ad, sub, fmt.Errorf("%w: store review of ad %s (deploy tx %s): %v", domain.ErrPersistence, ad.ID, sub.DeployVotingTxHash, err)
	}
	return stored, sub, nil
}

func (w *Workflow) deploy(ctx context.Context, ad domain.Ad) (domain.ReviewSubmission, error) {
	cid, err := w.deps.Content.Put(ctx, adcontent.FromAd(ad).Marshal())
	if err != nil {
		return domain.ReviewSubmission{}, fmt.Errorf("publish content: %w", err)
	}
	req := domain.DeployRequest{
		Payload: DeployPayload(w.params.Voting, ad.Title, cid),
		From:    w.params.Account,
		Stake:   w.params.DeployStake,
	}
	est, err := w.deps.Contracts.EstimateDeploy(ctx, req)
	if err != nil {
		return domain.ReviewSubmission{}, fmt.Errorf("estimate deploy: %w", err)
	}
	hash, err := w.deps.Contracts.Deploy(ctx, req, est)
	if err != nil {
		return domain.ReviewSubmission{}, fmt.Errorf("deploy voting: %w", err)
	}
	return domain.ReviewSubmission{ContentID: cid, VotingAddress: est.ContractAddress, DeployVotingTxHash: hash}, nil
}

// startVote estimates the startVoting call and invokes it only after a
// successful estimate.
func (w *Workflow) startVote(ctx context.Context, ad domain.Ad) (domain.Ad, error) {
	req := domain.CallRequest{
		Contract: ad.VotingAddress,
		Method:   startVotingMethod,
		From:     w.params.Account,
		Amount:   w.params.StartAmount,
	}
	est, err := w.deps.Contracts.EstimateCall(ctx, req)
	if err != nil {
		return ad, fmt.Errorf("estimate %s: %w", startVotingMethod, err)
	}
	hash, err := w.deps.Contracts.InvokeCall(ctx, req, est)
	if err != nil {
		return ad, fmt.Errorf("call %s: %w", startVotingMethod, err)
	}
	return ad.WithStartVoting(hash)
}

// DeployPayload builds the voting contract arguments for an ad review.
func DeployPayload(v config.VotingConfig, title, cid string) domain.DeployPayload {
	fact := adcontent.VotingFact{Title: title, ContentID: cid}.Marshal()
	u := func(n int) string { return strconv.Itoa(n) }
	return domain.DeployPayload{
		CodeHash: v.CodeHash,
		Args: []domain.ContractArg{
			{Index: 0, Format: "hex", Value: hexutil.Encode(fact)},
			{Index: 1, Format: "uint64", Value: u(v.StartDelay)},
			{Index: 2, Format: "uint64", Value: u(v.VotingDuration)},
			{Index: 3, Format: "uint64", Value: u(v.PublicVotingDuration)},
			{Index: 4, Format: "byte", Value: u(v.WinnerThreshold)},
			{Index: 5, Format: "byte", Value: u(v.Quorum)},
			{Index: 6, Format: "uint64", Value: u(v.CommitteeSize)},
			{Index: 7, Format: "dna", Value: v.MinPayment().String()},
			{Index: 8, Format: "byte", Value: u(v.OwnerFee)},
		},
	}
}

func txErr(ev domain.TxEvent) error {
	if ev.Err != nil {
		return ev.Err
	}
	switch ev.Kind {
	case domain.TxNull:
		return fmt.Errorf("%w: %s", domain.ErrNullTransaction, ev.Hash)
	default:
		return fmt.Errorf("%w: %s", domain.ErrMiningFailed, ev.Hash)
	}
}
