package app

import (
	"sync"
	"time"

	"learnearn/internal/clock"
	"learnearn/internal/domain"
	"learnearn/internal/random"
	"learnearn/internal/scoring"
)

// QuizConfig holds the quiz timings.
type QuizConfig struct {
	QuestionSeconds int
	RevealDelay     time.Duration
	TimeoutDelay    time.Duration
}

// DefaultQuizConfig returns the production quiz timings.
func DefaultQuizConfig() QuizConfig {
	return QuizConfig{
		QuestionSeconds: 30,
		RevealDelay:     1500 * time.Millisecond,
		TimeoutDelay:    2 * time.Second,
	}
}

func (c QuizConfig) withDefaults() QuizConfig {
	d := DefaultQuizConfig()
	if c.QuestionSeconds <= 0 {
		c.QuestionSeconds = d.QuestionSeconds
	}
	if c.RevealDelay <= 0 {
		c.RevealDelay = d.RevealDelay
	}
	if c.TimeoutDelay <= 0 {
		c.TimeoutDelay = d.TimeoutDelay
	}
	return c
}

// QuizState is the lifecycle state of a QuizSession.
type QuizState string

const (
	QuizIdle           QuizState = "idle"
	QuizAwaitingAnswer QuizState = "awaitingAnswer"
	QuizLocked         QuizState = "locked"
	QuizTimedOut       QuizState = "timedOut"
	QuizEnded          QuizState = "ended"
	QuizCancelled      QuizState = "cancelled"
)

// QuizSnapshot is a point-in-time copy of a quiz session.
type QuizSnapshot struct {
	State         QuizState            `json:"state"`
	Category      string               `json:"category"`
	Question      *domain.QuestionView `json:"question,omitempty"`
	TimeRemaining int                  `json:"timeRemaining"`
	Locked        *int                 `json:"locked,omitempty"`
	Score         int                  `json:"score"`
	Answered      int                  `json:"answered"`
}

// QuizSession runs a timed, cyclic quiz over one category. Each question is
// answered at most once; after the last question the order is reshuffled and
// play continues until the countdown runs out or the session is cancelled.
type QuizSession struct {
	cfg      QuizConfig
	category domain.Category
	sched    clock.Scheduler
	rnd      random.Source
	listener domain.SessionListener

	mu            sync.Mutex
	state         QuizState
	questions     []domain.Question
	index         int
	timeRemaining int
	locked        *int
	score         int
	answered      int
	// gen identifies the current question; timers from older questions are ignored.
	gen   uint64
	timer clock.Timer
}

// NewQuizSession prepares an idle session. Call Start to show the first question.
func NewQuizSession(category domain.Category, cfg QuizConfig, sched clock.Scheduler, rnd random.Source, listener domain.SessionListener) *QuizSession {
	return &QuizSession{
		cfg:      cfg.withDefaults(),
		category: category,
		sched:    sched,
		rnd:      rnd,
		listener: listener,
		state:    QuizIdle,
	}
}

// Category returns the key of the category being played.
func (s *QuizSession) Category() string {
	return s.category.Key
}

// Start shuffles the category and shows the first question.
func (s *QuizSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != QuizIdle {
		return domain.ErrSessionStarted
	}
	if len(s.category.Questions) == 0 {
		return domain.ErrEmptyCategory
	}
	s.questions = random.Shuffle(s.rnd, s.category.Questions)
	s.index = 0
	s.beginQuestionLocked()
	return nil
}

// Answer locks the option for the current question. It reports false and
// changes nothing when no question is awaiting an answer or option is out of range.
func (s *QuizSession) Answer(option int) (domain.AnswerOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != QuizAwaitingAnswer || option < 0 || option >= domain.OptionsPerQuestion {
		return domain.AnswerOutcome{}, false
	}

	q := s.questions[s.index]
	correct := q.IsCorrect(option)
	outcome := domain.AnswerOutcome{
		Option:        option,
		CorrectOption: q.Correct,
		Correct:       correct,
		TokensEarned:  scoring.ScoreQuizAnswer(correct),
		TimeRemaining: s.timeRemaining,
	}
	s.score += outcome.TokensEarned
	s.answered++
	s.locked = &option
	s.state = QuizLocked
	s.stopTimerLocked()

	s.emitLocked(domain.SessionEvent{
		Type:          domain.EventAnswered,
		Answer:        &outcome,
		TimeRemaining: s.timeRemaining,
		Total:         s.score,
	})

	gen := s.gen
	s.timer = s.sched.AfterFunc(s.cfg.RevealDelay, func() { s.advance(gen) })
	return outcome, true
}

// Cancel stops every pending timer. No events are emitted afterwards.
func (s *QuizSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == QuizCancelled || s.state == QuizEnded {
		return
	}
	s.state = QuizCancelled
	s.gen++
	s.stopTimerLocked()
}

// Snapshot returns the current state.
func (s *QuizSession) Snapshot() QuizSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := QuizSnapshot{
		State:         s.state,
		Category:      s.category.Key,
		TimeRemaining: s.timeRemaining,
		Score:         s.score,
		Answered:      s.answered,
	}
	if s.locked != nil {
		v := *s.locked
		snap.Locked = &v
	}
	if s.state == QuizAwaitingAnswer || s.state == QuizLocked || s.state == QuizTimedOut {
		view := s.viewLocked()
		snap.Question = &view
	}
	return snap
}

func (s *QuizSession) beginQuestionLocked() {
	s.gen++
	s.state = QuizAwaitingAnswer
	s.timeRemaining = s.cfg.QuestionSeconds
	s.locked = nil

	view := s.viewLocked()
	s.emitLocked(domain.SessionEvent{
		Type:          domain.EventQuestion,
		Question:      &view,
		TimeRemaining: s.timeRemaining,
		Total:         s.score,
	})
	s.scheduleTickLocked()
}

func (s *QuizSession) scheduleTickLocked() {
	gen := s.gen
	s.timer = s.sched.AfterFunc(time.Second, func() { s.tick(gen) })
}

func (s *QuizSession) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.state != QuizAwaitingAnswer {
		return
	}
	s.timeRemaining--
	if s.timeRemaining > 0 {
		s.emitLocked(domain.SessionEvent{Type: domain.EventTick, TimeRemaining: s.timeRemaining, Total: s.score})
		s.scheduleTickLocked()
		return
	}

	s.state = QuizTimedOut
	s.emitLocked(domain.SessionEvent{Type: domain.EventTimedOut, Total: s.score})
	s.timer = s.sched.AfterFunc(s.cfg.TimeoutDelay, func() { s.end(gen) })
}

func (s *QuizSession) end(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.state != QuizTimedOut {
		return
	}
	s.state = QuizEnded
	s.timer = nil
	s.emitLocked(domain.SessionEvent{Type: domain.EventEnded, Total: s.score})
}

func (s *QuizSession) advance(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.state != QuizLocked {
		return
	}
	s.index = (s.index + 1) % len(s.questions)
	if s.index == 0 {
		s.questions = random.Shuffle(s.rnd, s.category.Questions)
	}
	s.beginQuestionLocked()
}

func (s *QuizSession) viewLocked() domain.QuestionView {
	q := s.questions[s.index]
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return domain.QuestionView{
		Index:   s.index,
		Total:   len(s.questions),
		Prompt:  q.Prompt,
		Options: options,
	}
}

func (s *QuizSession) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *QuizSession) emitLocked(ev domain.SessionEvent) {
	if s.listener == nil {
		return
	}
	ev.Kind = domain.SessionQuiz
	ev.Category = s.category.Key
	s.listener(ev)
}
