// Package wallet wraps the external wallet provider behind a narrow capability
// and reports every token movement as a pending/settled/failed result.
package wallet

import (
	"context"
	"errors"
	"math/big"
)

var (
	// ErrNotInstalled is returned when no wallet provider is available.
	ErrNotInstalled = errors.New("wallet provider is not installed")
	// ErrUserRejected is returned when the user declines the connection request.
	ErrUserRejected = errors.New("wallet connection rejected by user")
	// ErrTxRejected is returned when the user declines a transaction.
	ErrTxRejected = errors.New("transaction rejected")
	// ErrTxFailed is returned when a submitted transaction does not settle.
	ErrTxFailed = errors.New("transaction failed")
)

// Bridge is the wallet provider capability. Implementations may be slow or fail;
// callers must not depend on their completion to update local game state.
type Bridge interface {
	// Connect requests account access and returns the account address.
	Connect(ctx context.Context) (string, error)
	// SendNativeValue transfers wei from the account to another address.
	SendNativeValue(ctx context.Context, from, to string, wei *big.Int) (string, error)
	// WithdrawTokens asks the reward contract to pay out up to wei and returns the settled amount.
	WithdrawTokens(ctx context.Context, account string, wei *big.Int) (*big.Int, error)
	// SendTokens asks the reward contract to move wei from the account to another address.
	SendTokens(ctx context.Context, from, to string, wei *big.Int) (string, error)
}

// Status is the tri-state of a wallet operation.
type Status int

const (
	Pending Status = iota
	Settled
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Settled:
		return "settled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Kind names the wallet operation.
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindSend     Kind = "send"
	KindWithdraw Kind = "withdraw"
)

// Result describes one wallet operation. AmountXP is the requested amount while
// pending and the settled amount once settled.
type Result struct {
	Kind     Kind   `json:"kind"`
	Status   Status `json:"status"`
	AmountXP int64  `json:"amount"`
	To       string `json:"to,omitempty"`
	TxHash   string `json:"txHash,omitempty"`
	Message  string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

// Notify receives intermediate results, in practice the pending state.
type Notify func(Result)

func failed(r Result, err error) Result {
	r.Status = Failed
	r.Err = err
	r.Message = err.Error()
	return r
}
