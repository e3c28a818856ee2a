package app

import "sync"

// Player is a connected account with at most one active game session.
type Player struct {
	account *Account

	mu     sync.Mutex
	quiz   *QuizSession
	battle *BattleSession
}

// NewPlayer is exported for infrastructure layers that create players on demand.
func NewPlayer(account *Account) *Player {
	return &Player{account: account}
}

// Address returns the player's wallet address.
func (p *Player) Address() string {
	return p.account.Address()
}

// Account returns the player's account.
func (p *Player) Account() *Account {
	return p.account
}

// Quiz returns the active quiz, if any.
func (p *Player) Quiz() (*QuizSession, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quiz, p.quiz != nil
}

// Battle returns the active battle, if any.
func (p *Player) Battle() (*BattleSession, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.battle, p.battle != nil
}

// IsIdle reports whether the player has no active session and no account history.
func (p *Player) IsIdle() bool {
	p.mu.Lock()
	active := p.quiz != nil || p.battle != nil
	p.mu.Unlock()
	return !active && p.account.IsIdle()
}

// leaveLocked cancels whichever session is active.
func (p *Player) leaveLocked() {
	if p.quiz != nil {
		p.quiz.Cancel()
		p.quiz = nil
	}
	if p.battle != nil {
		p.battle.Cancel()
		p.battle = nil
	}
}
