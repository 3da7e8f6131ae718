package chain

import (
	"context"

	"adline/internal/domain"
)

// TransactionByHash returns nil without error when the node knows no such transaction.
func (c *Client) TransactionByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	var tx domain.Transaction
	found, err := c.call(ctx, "bcn_transaction", &tx, hash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if tx.Hash == "" {
		tx.Hash = hash
	}
	return &tx, nil
}

// Receipt returns nil without error while the node has no receipt yet.
func (c *Client) Receipt(ctx context.Context, hash string) (*domain.Receipt, error) {
	var rc domain.Receipt
	found, err := c.call(ctx, "bcn_txReceipt", &rc, hash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &rc, nil
}
