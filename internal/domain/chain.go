package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MempoolBlockHash is reported as block hash for transactions not yet included in a block.
const MempoolBlockHash = "0x0000000000000000000000000000000000000000000000000000000000000000"

type Transaction struct {
	Hash      string          `json:"hash"`
	Type      string          `json:"type"`
	From      string          `json:"from"`
	To        string          `json:"to,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	BlockHash string          `json:"blockHash"`
	Timestamp int64           `json:"timestamp"`
}

// Mined reports whether the transaction has been included in a block.
func (t Transaction) Mined() bool {
	return t.BlockHash != "" && !strings.EqualFold(t.BlockHash, MempoolBlockHash)
}

type Receipt struct {
	TxHash   string          `json:"txHash"`
	Contract string          `json:"contract,omitempty"`
	Method   string          `json:"method,omitempty"`
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	GasUsed  uint64          `json:"gasUsed"`
	GasCost  decimal.Decimal `json:"gasCost"`
	TxFee    decimal.Decimal `json:"txFee"`
}

type TxEventKind int

const (
	TxMined TxEventKind = iota + 1
	TxMiningFailed
	TxNull
)

func (k TxEventKind) String() string {
	switch k {
	case TxMined:
		return "mined"
	case TxMiningFailed:
		return "mining_failed"
	case TxNull:
		return "null"
	}
	return "unknown"
}

// TxEvent is the single terminal outcome of watching a transaction.
type TxEvent struct {
	Kind        TxEventKind
	Hash        string
	Transaction *Transaction
	Receipt     *Receipt
	Err         error
}

// ContractArg is a positional argument passed to a contract deploy or call.
type ContractArg struct {
	Index  int    `json:"index"`
	Format string `json:"format"`
	Value  string `json:"value"`
}

type DeployPayload struct {
	CodeHash string        `json:"codeHash"`
	Args     []ContractArg `json:"args"`
}

type DeployRequest struct {
	Payload DeployPayload
	From    string
	Stake   decimal.Decimal
}

type DeployEstimate struct {
	ContractAddress string          `json:"contract"`
	GasCost         decimal.Decimal `json:"gasCost"`
	TxFee           decimal.Decimal `json:"txFee"`
}

type CallRequest struct {
	Contract string
	Method   string
	From     string
	Amount   decimal.Decimal
	Args     []ContractArg
}

type CallEstimate struct {
	GasCost decimal.Decimal `json:"gasCost"`
	TxFee   decimal.Decimal `json:"txFee"`
}

// BurntCoin is an amount burnt by an address under an ad targeting key.
type BurntCoin struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
	Key     string          `json:"key"`
}
