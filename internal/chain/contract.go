package chain

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"adline/internal/domain"
)

type deployArgs struct {
	From     string               `json:"from"`
	CodeHash string               `json:"codeHash"`
	Amount   decimal.Decimal      `json:"amount"`
	Args     []domain.ContractArg `json:"args"`
	MaxFee   *decimal.Decimal     `json:"maxFee,omitempty"`
}

type callArgs struct {
	From     string               `json:"from"`
	Contract string               `json:"contract"`
	Method   string               `json:"method"`
	Amount   decimal.Decimal      `json:"amount"`
	Args     []domain.ContractArg `json:"args"`
	MaxFee   *decimal.Decimal     `json:"maxFee,omitempty"`
}

type estimateResult struct {
	Contract string          `json:"contract"`
	GasCost  decimal.Decimal `json:"gasCost"`
	TxFee    decimal.Decimal `json:"txFee"`
	Error    string          `json:"error"`
}

func (c *Client) EstimateDeploy(ctx context.Context, req domain.DeployRequest) (domain.DeployEstimate, error) {
	var res estimateResult
	args := deployArgs{From: req.From, CodeHash: req.Payload.CodeHash, Amount: req.Stake, Args: nonNil(req.Payload.Args)}
	if err := c.estimate(ctx, "contract_estimateDeploy", &res, args); err != nil {
		return domain.DeployEstimate{}, err
	}
	if res.Contract == "" {
		return domain.DeployEstimate{}, fmt.Errorf("%w: contract_estimateDeploy returned no contract address", domain.ErrEstimation)
	}
	return domain.DeployEstimate{ContractAddress: res.Contract, GasCost: res.GasCost, TxFee: res.TxFee}, nil
}

// Deploy sends the deploy transaction with a fee cap derived from the estimate.
func (c *Client) Deploy(ctx context.Context, req domain.DeployRequest, est domain.DeployEstimate) (string, error) {
	maxFee := c.MaxFee(est.GasCost, est.TxFee)
	args := deployArgs{From: req.From, CodeHash: req.Payload.CodeHash, Amount: req.Stake, Args: nonNil(req.Payload.Args), MaxFee: &maxFee}
	return c.sendTx(ctx, "contract_deploy", args)
}

func (c *Client) EstimateCall(ctx context.Context, req domain.CallRequest) (domain.CallEstimate, error) {
	var res estimateResult
	args := callArgs{From: req.From, Contract: req.Contract, Method: req.Method, Amount: req.Amount, Args: nonNil(req.Args)}
	if err := c.estimate(ctx, "contract_estimateCall", &res, args); err != nil {
		return domain.CallEstimate{}, err
	}
	return domain.CallEstimate{GasCost: res.GasCost, TxFee: res.TxFee}, nil
}

func (c *Client) InvokeCall(ctx context.Context, req domain.CallRequest, est domain.CallEstimate) (string, error) {
	maxFee := c.MaxFee(est.GasCost, est.TxFee)
	args := callArgs{From: req.From, Contract: req.Contract, Method: req.Method, Amount: req.Amount, Args: nonNil(req.Args), MaxFee: &maxFee}
	return c.sendTx(ctx, "contract_call", args)
}

// estimate maps node-side failures, including an error field in the result,
// to ErrEstimation. Transport failures keep ErrTransport.
func (c *Client) estimate(ctx context.Context, method string, res *estimateResult, args any) error {
	found, err := c.call(ctx, method, res, args)
	if err != nil {
		if IsRPCError(err) {
			return fmt.Errorf("%w: %v", domain.ErrEstimation, err)
		}
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s returned no result", domain.ErrEstimation, method)
	}
	if res.Error != "" {
		return fmt.Errorf("%w: %s: %s", domain.ErrEstimation, method, res.Error)
	}
	return nil
}

func (c *Client) sendTx(ctx context.Context, method string, args any) (string, error) {
	var hash string
	found, err := c.call(ctx, method, &hash, args)
	if err != nil {
		return "", err
	}
	if !found || hash == "" {
		return "", fmt.Errorf("%s returned no transaction hash", method)
	}
	return hash, nil
}

func nonNil(args []domain.ContractArg) []domain.ContractArg {
	if args == nil {
		return []domain.ContractArg{}
	}
	return args
}
