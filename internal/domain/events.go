package domain

// SessionKind distinguishes quiz sessions from battles.
type SessionKind string

const (
	SessionQuiz   SessionKind = "quiz"
	SessionBattle SessionKind = "battle"
)

// EventType tags a SessionEvent.
type EventType string

const (
	EventQuestion         EventType = "question"
	EventTick             EventType = "tick"
	EventAnswered         EventType = "answered"
	EventTimedOut         EventType = "timedOut"
	EventEnded            EventType = "ended"
	EventOpponentAnswered EventType = "opponentAnswered"
	EventBattleResult     EventType = "battleResult"
	EventBattleClaimed    EventType = "battleClaimed"
)

// BattleOutcome is the final result of a battle for the user.
type BattleOutcome string

const (
	OutcomeWin  BattleOutcome = "WIN"
	OutcomeLoss BattleOutcome = "LOSS"
	OutcomeDraw BattleOutcome = "DRAW"
)

// AnswerOutcome describes a locked answer.
type AnswerOutcome struct {
	Option        int  `json:"option"`
	CorrectOption int  `json:"correctOption"`
	Correct       bool `json:"correct"`
	TokensEarned  int  `json:"tokensEarned"`
	TimeRemaining int  `json:"timeRemaining"`
}

// BattleScore is the running score of a battle.
type BattleScore struct {
	User     int `json:"user"`
	Opponent int `json:"opponent"`
}

// BattleResult is the resolved outcome of a finished battle.
type BattleResult struct {
	Outcome      BattleOutcome `json:"outcome"`
	TokensEarned int           `json:"tokensEarned"`
	Score        BattleScore   `json:"score"`
}

// Won reports whether the user won outright.
func (r BattleResult) Won() bool {
	return r.Outcome == OutcomeWin
}

// SessionEvent is emitted by quiz and battle sessions. Only the fields relevant to Type are set.
type SessionEvent struct {
	Type          EventType      `json:"type"`
	Kind          SessionKind    `json:"kind"`
	Category      string         `json:"category,omitempty"`
	Question      *QuestionView  `json:"question,omitempty"`
	TimeRemaining int            `json:"timeRemaining"`
	Answer        *AnswerOutcome `json:"answer,omitempty"`
	Score         *BattleScore   `json:"score,omitempty"`
	Result        *BattleResult  `json:"result,omitempty"`
	// Total is the cumulative quiz score.
	Total int `json:"total,omitempty"`
}

// SessionListener receives session events. It is called while the session is locked
// and must not call back into the session.
type SessionListener func(SessionEvent)
