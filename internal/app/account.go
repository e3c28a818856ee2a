package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"learnearn/internal/domain"
	"learnearn/internal/ranking"
	"learnearn/internal/wallet"
)

const rankingWriteTimeout = 5 * time.Second

// AccountSummary is what the wallet page shows for one player.
type AccountSummary struct {
	Address     string                      `json:"address"`
	Avatar      string                      `json:"avatar"`
	Balance     int64                       `json:"balance"`
	BalanceCELO string                      `json:"balanceCelo"`
	BattlesWon  int                         `json:"battlesWon"`
	BattlesLost int                         `json:"battlesLost"`
	Challenges  []domain.CompletedChallenge `json:"challenges"`
	Ledger      []domain.LedgerEntry        `json:"ledger"`
}

// Account owns the point balance and transaction ledger of one wallet address.
// Every balance or challenge change is pushed to the ranking store.
type Account struct {
	address string
	wallet  *wallet.Session
	pub     *publisher
	logger  *slog.Logger
	now     func() time.Time

	// ops serializes wallet operations so a balance check stays valid until settlement.
	ops sync.Mutex

	mu          sync.Mutex
	avatar      string
	balance     int64
	ledger      []domain.LedgerEntry
	challenges  []domain.CompletedChallenge
	battlesWon  int
	battlesLost int
	lastStamp   time.Time
}

// NewAccount returns an empty account.
func NewAccount(address, avatar string, ws *wallet.Session, store ranking.Store, logger *slog.Logger, now func() time.Time) *Account {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Account{
		address: address,
		avatar:  avatar,
		wallet:  ws,
		pub:     newPublisher(store, logger.With("address", address)),
		logger:  logger.With("address", address),
		now:     now,
	}
}

// Address returns the wallet address the account belongs to.
func (a *Account) Address() string {
	return a.address
}

// SetAvatar changes the avatar and republishes the ranking entry.
func (a *Account) SetAvatar(avatar string) {
	defer a.Flush()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.avatar = avatar
	a.publishLocked()
}

// Avatar returns the current avatar reference.
func (a *Account) Avatar() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.avatar
}

// Publish pushes the current summary to the ranking store.
func (a *Account) Publish() {
	defer a.Flush()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.publishLocked()
}

// Balance returns the current point balance.
func (a *Account) Balance() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// IsIdle reports whether the account has no history worth keeping.
func (a *Account) IsIdle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance == 0 && len(a.ledger) == 0
}

// RecordQuizAnswer applies one answered quiz question.
func (a *Account) RecordQuizAnswer(category string, outcome domain.AnswerOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stamp := a.stampLocked()
	verdict := "(incorrect)"
	if outcome.Correct {
		verdict = "(correct)"
	}
	a.challenges = append(a.challenges, domain.CompletedChallenge{
		ID:           uuid.NewString(),
		Category:     category,
		Correct:      outcome.Correct,
		TokensEarned: outcome.TokensEarned,
		Timestamp:    stamp,
	})
	a.appendLocked(domain.LedgerQuiz, int64(outcome.TokensEarned), stamp, fmt.Sprintf("Completed %s challenge %s", category, verdict))
	a.publishLocked()
}

// RecordBattle applies a claimed battle result. A draw counts as a loss.
func (a *Account) RecordBattle(result domain.BattleResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	note := "AI Battle loss"
	if result.Won() {
		a.battlesWon++
		note = "AI Battle win"
	} else {
		a.battlesLost++
	}
	a.appendLocked(domain.LedgerBattle, int64(result.TokensEarned), a.stampLocked(), note)
	a.publishLocked()
}

// Deposit moves xp from the wallet into the game balance.
func (a *Account) Deposit(ctx context.Context, xp int64, notify wallet.Notify) wallet.Result {
	a.ops.Lock()
	defer a.ops.Unlock()
	defer a.Flush()

	res := a.wallet.Deposit(ctx, a.address, xp, notify)
	if res.Status != wallet.Settled {
		return res
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.appendLocked(domain.LedgerDeposit, res.AmountXP, a.stampLocked(), "Deposited from wallet")
	a.publishLocked()
	return res
}

// Send transfers xp to another address. It fails without contacting the wallet
// when xp exceeds the balance.
func (a *Account) Send(ctx context.Context, to string, xp int64, notify wallet.Notify) wallet.Result {
	a.ops.Lock()
	defer a.ops.Unlock()
	defer a.Flush()

	if balance := a.Balance(); xp > balance {
		return wallet.Result{
			Kind:     wallet.KindSend,
			Status:   wallet.Failed,
			AmountXP: xp,
			To:       to,
			Err:      domain.ErrInsufficientBalance,
			Message:  domain.ErrInsufficientBalance.Error(),
		}
	}

	res := a.wallet.Send(ctx, a.address, to, xp, notify)
	if res.Status != wallet.Settled {
		return res
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.appendLocked(domain.LedgerSend, -res.AmountXP, a.stampLocked(), "Sent to "+res.To)
	a.publishLocked()
	return res
}

// Withdraw pays out the whole balance. The balance never drops below zero.
func (a *Account) Withdraw(ctx context.Context, notify wallet.Notify) wallet.Result {
	a.ops.Lock()
	defer a.ops.Unlock()
	defer a.Flush()

	res := a.wallet.Withdraw(ctx, a.address, a.Balance(), notify)
	if res.Status != wallet.Settled {
		return res
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	amount := res.AmountXP
	if amount > a.balance {
		amount = a.balance
	}
	a.appendLocked(domain.LedgerWithdraw, -amount, a.stampLocked(), "Withdrawn to wallet")
	a.publishLocked()
	return res
}

// Summary returns a copy of the account state with the ledger newest first.
func (a *Account) Summary() AccountSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	ledger := make([]domain.LedgerEntry, len(a.ledger))
	copy(ledger, a.ledger)
	challenges := make([]domain.CompletedChallenge, len(a.challenges))
	copy(challenges, a.challenges)

	return AccountSummary{
		Address:     a.address,
		Avatar:      a.avatar,
		Balance:     a.balance,
		BalanceCELO: wallet.FormatCELO(a.balance),
		BattlesWon:  a.battlesWon,
		BattlesLost: a.battlesLost,
		Challenges:  challenges,
		Ledger:      ledger,
	}
}

// appendLocked prepends an entry so the ledger stays newest first.
func (a *Account) appendLocked(kind domain.LedgerKind, amount int64, stamp time.Time, note string) {
	entry := domain.LedgerEntry{
		ID:        uuid.NewString(),
		Kind:      kind,
		Amount:    amount,
		Timestamp: stamp,
		Note:      note,
	}
	a.ledger = append([]domain.LedgerEntry{entry}, a.ledger...)
	a.balance += amount
	if a.balance < 0 {
		a.balance = 0
	}
}

// stampLocked returns a timestamp that never goes backwards.
func (a *Account) stampLocked() time.Time {
	now := a.now()
	if now.Before(a.lastStamp) {
		now = a.lastStamp
	}
	a.lastStamp = now
	return now
}

// publishLocked queues the current summary for the ranking store. The write
// itself happens on the publisher goroutine, outside every game lock.
func (a *Account) publishLocked() {
	if a.pub == nil {
		return
	}
	points := a.balance
	if points < 0 {
		points = 0
	}
	a.pub.enqueue(domain.RankingEntry{
		AccountKey:          a.address,
		AvatarRef:           a.avatar,
		ChallengesCompleted: len(a.challenges),
		PointsEarned:        int(points),
	})
}

// Flush waits until every queued ranking update has been written.
func (a *Account) Flush() {
	if a.pub != nil {
		a.pub.flush()
	}
}

// publisher upserts ranking snapshots one at a time. While a write is in
// flight only the newest snapshot is kept.
type publisher struct {
	store  ranking.Store
	logger *slog.Logger

	mu      sync.Mutex
	idle    *sync.Cond
	next    *domain.RankingEntry
	running bool
}

func newPublisher(store ranking.Store, logger *slog.Logger) *publisher {
	if store == nil {
		return nil
	}
	p := &publisher{store: store, logger: logger}
	p.idle = sync.NewCond(&p.mu)
	return p
}

func (p *publisher) enqueue(entry domain.RankingEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = &entry
	if !p.running {
		p.running = true
		go p.run()
	}
}

func (p *publisher) run() {
	for {
		p.mu.Lock()
		entry := p.next
		if entry == nil {
			p.running = false
			p.idle.Broadcast()
			p.mu.Unlock()
			return
		}
		p.next = nil
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), rankingWriteTimeout)
		if err := p.store.Upsert(ctx, *entry); err != nil {
			p.logger.Warn("ranking update failed", "error", err)
		}
		cancel()
	}
}

func (p *publisher) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.running {
		p.idle.Wait()
	}
}
