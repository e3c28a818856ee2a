package wallet

import (
	"context"
	"fmt"
	"log/slog"

	"learnearn/internal/domain"
)

// Session drives token movements through a Bridge and converts raw provider
// errors into Results.
type Session struct {
	bridge   Bridge
	contract string
	logger   *slog.Logger
}

// NewSession returns a Session that deposits native value into contract.
func NewSession(bridge Bridge, contract string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{bridge: bridge, contract: contract, logger: logger}
}

// Connect requests account access and returns the checksummed address.
func (s *Session) Connect(ctx context.Context) (string, error) {
	raw, err := s.bridge.Connect(ctx)
	if err != nil {
		return "", fmt.Errorf("connect wallet: %w", err)
	}
	addr, err := NormalizeAddress(raw)
	if err != nil {
		return "", fmt.Errorf("connect wallet: %w: %q", err, raw)
	}
	return addr, nil
}

// Deposit sends the native value of xp from the account to the reward contract.
func (s *Session) Deposit(ctx context.Context, from string, xp int64, notify Notify) Result {
	r := Result{Kind: KindDeposit, Status: Pending, AmountXP: xp, To: s.contract}
	if xp <= 0 {
		return failed(r, domain.ErrInvalidAmount)
	}
	emit(notify, r)

	wei := XPToWei(xp)
	hash, err := s.bridge.SendNativeValue(ctx, from, s.contract, wei)
	if err != nil {
		s.logger.Warn("deposit failed", "from", from, "xp", xp, "value", EncodeWei(wei), "error", err)
		return failed(r, err)
	}
	r.Status = Settled
	r.TxHash = hash
	s.logger.Info("deposit settled", "from", from, "xp", xp, "tx", hash)
	return r
}

// Send moves xp from the account to another address through the reward contract.
func (s *Session) Send(ctx context.Context, from, to string, xp int64, notify Notify) Result {
	r := Result{Kind: KindSend, Status: Pending, AmountXP: xp, To: to}
	if xp <= 0 {
		return failed(r, domain.ErrInvalidAmount)
	}
	recipient, err := NormalizeAddress(to)
	if err != nil {
		return failed(r, err)
	}
	r.To = recipient
	emit(notify, r)

	hash, err := s.bridge.SendTokens(ctx, from, recipient, XPToWei(xp))
	if err != nil {
		s.logger.Warn("send failed", "from", from, "to", recipient, "xp", xp, "error", err)
		return failed(r, err)
	}
	r.Status = Settled
	r.TxHash = hash
	s.logger.Info("send settled", "from", from, "to", recipient, "xp", xp, "tx", hash)
	return r
}

// Withdraw asks the contract to pay out up to xp; the settled amount may be lower.
func (s *Session) Withdraw(ctx context.Context, account string, xp int64, notify Notify) Result {
	r := Result{Kind: KindWithdraw, Status: Pending, AmountXP: xp, To: account}
	if xp <= 0 {
		return failed(r, domain.ErrNothingToWithdraw)
	}
	emit(notify, r)

	settled, err := s.bridge.WithdrawTokens(ctx, account, XPToWei(xp))
	if err != nil {
		s.logger.Warn("withdraw failed", "account", account, "xp", xp, "error", err)
		return failed(r, err)
	}
	amount := WeiToXP(settled)
	if amount <= 0 {
		return failed(r, domain.ErrNothingToWithdraw)
	}
	r.Status = Settled
	r.AmountXP = amount
	s.logger.Info("withdraw settled", "account", account, "xp", amount, "celo", FormatCELO(amount))
	return r
}

func emit(notify Notify, r Result) {
	if notify != nil {
		notify(r)
	}
}
