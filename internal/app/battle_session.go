package app

import (
	"sync"
	"time"

	"learnearn/internal/clock"
	"learnearn/internal/domain"
	"learnearn/internal/random"
	"learnearn/internal/scoring"
)

// BattleConfig holds the battle length, timings and simulated opponent behaviour.
type BattleConfig struct {
	Questions        int
	QuestionSeconds  int
	RevealDelay      time.Duration
	OpponentAccuracy float64
	OpponentMinDelay time.Duration
	OpponentMaxDelay time.Duration
}

// DefaultBattleConfig returns the production battle settings.
func DefaultBattleConfig() BattleConfig {
	return BattleConfig{
		Questions:        20,
		QuestionSeconds:  5,
		RevealDelay:      1500 * time.Millisecond,
		OpponentAccuracy: 0.75,
		OpponentMinDelay: time.Second,
		OpponentMaxDelay: 3 * time.Second,
	}
}

func (c BattleConfig) withDefaults() BattleConfig {
	d := DefaultBattleConfig()
	if c.Questions <= 0 {
		c.Questions = d.Questions
	}
	if c.QuestionSeconds <= 0 {
		c.QuestionSeconds = d.QuestionSeconds
	}
	if c.RevealDelay <= 0 {
		c.RevealDelay = d.RevealDelay
	}
	if c.OpponentAccuracy <= 0 || c.OpponentAccuracy > 1 {
		c.OpponentAccuracy = d.OpponentAccuracy
	}
	if c.OpponentMinDelay <= 0 {
		c.OpponentMinDelay = d.OpponentMinDelay
	}
	if c.OpponentMaxDelay < c.OpponentMinDelay {
		c.OpponentMaxDelay = c.OpponentMinDelay
	}
	return c
}

// BattleState is the lifecycle state of a BattleSession.
type BattleState string

const (
	BattleStart     BattleState = "start"
	BattlePlaying   BattleState = "playing"
	BattleResult    BattleState = "result"
	BattleCancelled BattleState = "cancelled"
)

// BattleSnapshot is a point-in-time copy of a battle.
type BattleSnapshot struct {
	State          BattleState          `json:"state"`
	Question       *domain.QuestionView `json:"question,omitempty"`
	TimeRemaining  int                  `json:"timeRemaining"`
	Score          domain.BattleScore   `json:"score"`
	UserLocked     *int                 `json:"userLocked,omitempty"`
	OpponentLocked *int                 `json:"opponentLocked,omitempty"`
	Result         *domain.BattleResult `json:"result,omitempty"`
	Claimed        bool                 `json:"claimed"`
}

// BattleSession runs a fixed-length battle against a simulated opponent that
// answers after a random delay with a fixed accuracy.
type BattleSession struct {
	cfg      BattleConfig
	pool     []domain.Question
	sched    clock.Scheduler
	rnd      random.Source
	listener domain.SessionListener

	mu             sync.Mutex
	state          BattleState
	questions      []domain.Question
	index          int
	timeRemaining  int
	score          domain.BattleScore
	userLocked     *int
	opponentLocked *int
	result         *domain.BattleResult
	claimed        bool

	gen           uint64
	tickTimer     clock.Timer
	opponentTimer clock.Timer
	advanceTimer  clock.Timer
}

// NewBattleSession prepares a battle over pool. Call Start to begin.
func NewBattleSession(pool []domain.Question, cfg BattleConfig, sched clock.Scheduler, rnd random.Source, listener domain.SessionListener) *BattleSession {
	return &BattleSession{
		cfg:      cfg.withDefaults(),
		pool:     pool,
		sched:    sched,
		rnd:      rnd,
		listener: listener,
		state:    BattleStart,
	}
}

// Start draws the battle questions and shows the first one.
func (b *BattleSession) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BattleStart {
		return domain.ErrSessionStarted
	}
	distinct := distinctByPrompt(b.pool)
	if len(distinct) < b.cfg.Questions {
		return domain.ErrNotEnoughQuestions
	}
	b.questions = random.Shuffle(b.rnd, distinct)[:b.cfg.Questions]
	b.index = 0
	b.score = domain.BattleScore{}
	b.state = BattlePlaying
	b.beginQuestionLocked()
	return nil
}

// Answer locks the user's option for the current question. It reports false
// when the user already answered, the battle is not in play or option is out of range.
func (b *BattleSession) Answer(option int) (domain.AnswerOutcome, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BattlePlaying || b.userLocked != nil || option < 0 || option >= domain.OptionsPerQuestion {
		return domain.AnswerOutcome{}, false
	}

	q := b.questions[b.index]
	correct := q.IsCorrect(option)
	outcome := domain.AnswerOutcome{
		Option:        option,
		CorrectOption: q.Correct,
		Correct:       correct,
		TokensEarned:  scoring.ScoreBattleAnswer(correct, b.timeRemaining),
		TimeRemaining: b.timeRemaining,
	}
	b.score.User += outcome.TokensEarned
	b.userLocked = &option
	stopTimer(&b.tickTimer)
	stopTimer(&b.opponentTimer)

	score := b.score
	b.emitLocked(domain.SessionEvent{
		Type:          domain.EventAnswered,
		Answer:        &outcome,
		Score:         &score,
		TimeRemaining: b.timeRemaining,
	})

	gen := b.gen
	b.advanceTimer = b.sched.AfterFunc(b.cfg.RevealDelay, func() { b.advance(gen) })
	return outcome, true
}

// Claim collects the reward of a finished battle. Only the first call succeeds.
func (b *BattleSession) Claim() (domain.BattleResult, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BattleResult || b.claimed {
		return domain.BattleResult{}, false
	}
	b.claimed = true
	res := *b.result
	b.emitLocked(domain.SessionEvent{Type: domain.EventBattleClaimed, Result: &res, Score: &res.Score})
	return res, true
}

// Cancel stops every pending timer. No events are emitted afterwards and an
// unclaimed result is forfeited.
func (b *BattleSession) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BattleCancelled {
		return
	}
	b.state = BattleCancelled
	b.gen++
	b.stopTimersLocked()
}

// Snapshot returns the current state.
func (b *BattleSession) Snapshot() BattleSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := BattleSnapshot{
		State:          b.state,
		TimeRemaining:  b.timeRemaining,
		Score:          b.score,
		UserLocked:     copyInt(b.userLocked),
		OpponentLocked: copyInt(b.opponentLocked),
		Claimed:        b.claimed,
	}
	if b.state == BattlePlaying {
		view := b.viewLocked()
		snap.Question = &view
	}
	if b.result != nil {
		res := *b.result
		snap.Result = &res
	}
	return snap
}

func (b *BattleSession) beginQuestionLocked() {
	b.gen++
	b.timeRemaining = b.cfg.QuestionSeconds
	b.userLocked = nil
	b.opponentLocked = nil

	view := b.viewLocked()
	score := b.score
	b.emitLocked(domain.SessionEvent{
		Type:          domain.EventQuestion,
		Question:      &view,
		Score:         &score,
		TimeRemaining: b.timeRemaining,
	})

	gen := b.gen
	b.scheduleTickLocked()
	delay := random.Between(b.rnd, b.cfg.OpponentMinDelay, b.cfg.OpponentMaxDelay)
	b.opponentTimer = b.sched.AfterFunc(delay, func() { b.opponentAnswer(gen) })
}

func (b *BattleSession) scheduleTickLocked() {
	gen := b.gen
	b.tickTimer = b.sched.AfterFunc(time.Second, func() { b.tick(gen) })
}

func (b *BattleSession) tick(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen || b.state != BattlePlaying || b.userLocked != nil {
		return
	}
	b.timeRemaining--
	if b.timeRemaining > 0 {
		b.emitLocked(domain.SessionEvent{Type: domain.EventTick, TimeRemaining: b.timeRemaining})
		b.scheduleTickLocked()
		return
	}

	score := b.score
	b.emitLocked(domain.SessionEvent{Type: domain.EventTimedOut, Score: &score})
	b.stopTimersLocked()
	b.advanceLocked()
}

func (b *BattleSession) opponentAnswer(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen || b.state != BattlePlaying || b.userLocked != nil || b.opponentLocked != nil {
		return
	}
	b.opponentTimer = nil

	q := b.questions[b.index]
	choice := q.Correct
	if b.rnd.Float64() >= b.cfg.OpponentAccuracy {
		choice = b.rnd.Intn(domain.OptionsPerQuestion)
	}
	correct := q.IsCorrect(choice)
	outcome := domain.AnswerOutcome{
		Option:        choice,
		CorrectOption: q.Correct,
		Correct:       correct,
		TokensEarned:  scoring.ScoreBattleAnswer(correct, b.timeRemaining),
		TimeRemaining: b.timeRemaining,
	}
	b.score.Opponent += outcome.TokensEarned
	b.opponentLocked = &choice

	score := b.score
	b.emitLocked(domain.SessionEvent{
		Type:          domain.EventOpponentAnswered,
		Answer:        &outcome,
		Score:         &score,
		TimeRemaining: b.timeRemaining,
	})
}

func (b *BattleSession) advance(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen || b.state != BattlePlaying {
		return
	}
	b.advanceTimer = nil
	b.advanceLocked()
}

func (b *BattleSession) advanceLocked() {
	if b.index+1 < len(b.questions) {
		b.index++
		b.beginQuestionLocked()
		return
	}

	b.gen++
	b.state = BattleResult
	res := scoring.ResolveBattleOutcome(b.score.User, b.score.Opponent)
	b.result = &res
	out := res
	b.emitLocked(domain.SessionEvent{Type: domain.EventBattleResult, Result: &out, Score: &out.Score})
}

func (b *BattleSession) viewLocked() domain.QuestionView {
	q := b.questions[b.index]
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return domain.QuestionView{
		Index:   b.index,
		Total:   len(b.questions),
		Prompt:  q.Prompt,
		Options: options,
	}
}

func (b *BattleSession) stopTimersLocked() {
	stopTimer(&b.tickTimer)
	stopTimer(&b.opponentTimer)
	stopTimer(&b.advanceTimer)
}

func (b *BattleSession) emitLocked(ev domain.SessionEvent) {
	if b.listener == nil {
		return
	}
	ev.Kind = domain.SessionBattle
	b.listener(ev)
}

// distinctByPrompt keeps the first question for each prompt, in pool order.
func distinctByPrompt(pool []domain.Question) []domain.Question {
	seen := make(map[string]struct{}, len(pool))
	out := make([]domain.Question, 0, len(pool))
	for _, q := range pool {
		if _, ok := seen[q.Prompt]; ok {
			continue
		}
		seen[q.Prompt] = struct{}{}
		out = append(out, q)
	}
	return out
}

func stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
