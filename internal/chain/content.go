package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Put stores a blob in the node's content-addressed store and returns its cid.
func (c *Client) Put(ctx context.Context, data []byte) (string, error) {
	var cid string
	found, err := c.call(ctx, "ipfs_add", &cid, hexutil.Encode(data), false)
	if err != nil {
		return "", err
	}
	if !found || cid == "" {
		return "", fmt.Errorf("ipfs_add returned empty cid")
	}
	return cid, nil
}

// Get fetches a blob by cid.
func (c *Client) Get(ctx context.Context, cid string) ([]byte, error) {
	if strings.TrimSpace(cid) == "" {
		return nil, fmt.Errorf("ipfs_get missing cid")
	}
	var raw string
	found, err := c.call(ctx, "ipfs_get", &raw, cid)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("content %s not found", cid)
	}
	return DecodeHex(raw)
}

// DecodeHex decodes node hex, with or without the 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return b, nil
}
