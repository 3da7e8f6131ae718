// Package chain talks JSON-RPC to the node: content storage, contract deploy and
// call, transaction lookup, the vote oracle and burnt-coin aggregates.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"adline/internal/domain"
)

type Config struct {
	URL           string
	APIKey        string
	Timeout       time.Duration
	FeeMultiplier decimal.Decimal
}

type Client struct {
	url        string
	apiKey     string
	http       *http.Client
	multiplier decimal.Decimal
	logger     *zap.Logger
	nextID     atomic.Int64

	// OnCall observes every RPC round trip.
	OnCall func(method string, elapsed time.Duration, err error)
}

func New(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	multiplier := cfg.FeeMultiplier
	if multiplier.IsZero() {
		multiplier = decimal.NewFromInt(1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		http:       &http.Client{Timeout: timeout},
		multiplier: multiplier,
		logger:     logger,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	Key     string `json:"key,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error answered by the node itself.
type RPCError struct {
	Method  string `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

// call performs one JSON-RPC round trip. A null result leaves out untouched and
// reports found=false.
func (c *Client) call(ctx context.Context, method string, out any, params ...any) (found bool, err error) {
	start := time.Now()
	defer func() {
		if c.OnCall != nil {
			c.OnCall(method, time.Since(start), err)
		}
	}()
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params, Key: c.apiKey})
	if err != nil {
		return false, fmt.Errorf("%s: encode request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", domain.ErrTransport, method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", domain.ErrTransport, method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return false, fmt.Errorf("%w: %s: %s", domain.ErrTransport, method, msg)
	}
	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, fmt.Errorf("%w: %s: decode response: %v", domain.ErrTransport, method, err)
	}
	if decoded.Error != nil {
		decoded.Error.Method = method
		return false, decoded.Error
	}
	if len(decoded.Result) == 0 || string(decoded.Result) == "null" {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return false, fmt.Errorf("%s: decode result: %w", method, err)
	}
	c.logger.Debug("rpc call", zap.String("method", method), zap.Duration("elapsed", time.Since(start)))
	return true, nil
}

// IsRPCError reports whether err was answered by the node rather than lost in transport.
func IsRPCError(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}

// MaxFee scales the estimated cost into the fee cap sent with a transaction.
func (c *Client) MaxFee(gasCost, txFee decimal.Decimal) decimal.Decimal {
	return gasCost.Add(txFee).Mul(c.multiplier)
}
