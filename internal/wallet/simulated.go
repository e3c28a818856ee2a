package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"learnearn/internal/clock"
	"learnearn/internal/random"
)

// Simulated is a Bridge that settles every operation after a fixed latency,
// standing in for a browser wallet when none is available.
type Simulated struct {
	sched   clock.Scheduler
	rnd     random.Source
	latency time.Duration

	mu        sync.Mutex
	installed bool
	rejectAll bool
	failures  map[Kind]error
	held      map[string]*big.Int
}

// NewSimulated returns an installed simulated wallet.
func NewSimulated(sched clock.Scheduler, rnd random.Source, latency time.Duration) *Simulated {
	return &Simulated{
		sched:     sched,
		rnd:       rnd,
		latency:   latency,
		installed: true,
		failures:  make(map[Kind]error),
		held:      make(map[string]*big.Int),
	}
}

// SetInstalled toggles whether Connect finds a provider.
func (s *Simulated) SetInstalled(installed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installed = installed
}

// RejectConnect makes Connect fail with ErrUserRejected.
func (s *Simulated) RejectConnect(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAll = reject
}

// FailNext makes the next operation of kind fail with err.
func (s *Simulated) FailNext(kind Kind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[kind] = err
}

// Held returns the wei the simulated contract holds for account.
func (s *Simulated) Held(account string) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.held[account]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (s *Simulated) Connect(ctx context.Context) (string, error) {
	s.mu.Lock()
	installed, reject := s.installed, s.rejectAll
	s.mu.Unlock()
	if !installed {
		return "", ErrNotInstalled
	}
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	if reject {
		return "", ErrUserRejected
	}
	return common.BytesToAddress(s.randomBytes(common.AddressLength)).Hex(), nil
}

func (s *Simulated) SendNativeValue(ctx context.Context, from, _ string, wei *big.Int) (string, error) {
	if err := s.settle(ctx, KindDeposit); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.heldLocked(from).Add(s.heldLocked(from), wei)
	s.mu.Unlock()
	return s.txHash(), nil
}

func (s *Simulated) WithdrawTokens(ctx context.Context, account string, wei *big.Int) (*big.Int, error) {
	if err := s.settle(ctx, KindWithdraw); err != nil {
		return nil, err
	}
	s.mu.Lock()
	held := s.heldLocked(account)
	held.Sub(held, wei)
	if held.Sign() < 0 {
		held.SetInt64(0)
	}
	s.mu.Unlock()
	return new(big.Int).Set(wei), nil
}

func (s *Simulated) SendTokens(ctx context.Context, from, to string, wei *big.Int) (string, error) {
	if err := s.settle(ctx, KindSend); err != nil {
		return "", err
	}
	s.mu.Lock()
	held := s.heldLocked(from)
	held.Sub(held, wei)
	if held.Sign() < 0 {
		held.SetInt64(0)
	}
	s.heldLocked(to).Add(s.heldLocked(to), wei)
	s.mu.Unlock()
	return s.txHash(), nil
}

func (s *Simulated) settle(ctx context.Context, kind Kind) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[kind]; ok {
		delete(s.failures, kind)
		return err
	}
	return nil
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return nil
	}
	done := make(chan struct{})
	timer := s.sched.AfterFunc(s.latency, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		timer.Stop()
		return fmt.Errorf("%w: %v", ErrTxFailed, ctx.Err())
	}
}

func (s *Simulated) heldLocked(account string) *big.Int {
	v, ok := s.held[account]
	if !ok {
		v = new(big.Int)
		s.held[account] = v
	}
	return v
}

func (s *Simulated) txHash() string {
	return common.BytesToHash(s.randomBytes(common.HashLength)).Hex()
}

func (s *Simulated) randomBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(s.rnd.Intn(256))
	}
	return b
}
