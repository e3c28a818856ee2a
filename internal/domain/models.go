package domain

import (
	"fmt"
	"time"
)

// OptionsPerQuestion is the fixed number of answer options for every question.
const OptionsPerQuestion = 4

// Question models an MCQ question with exactly one correct option.
type Question struct {
	Prompt  string   `json:"prompt" yaml:"prompt"`
	Options []string `json:"options" yaml:"options"`
	Correct int      `json:"correct" yaml:"correct"`
}

// Validate checks the option count and the correct index.
func (q Question) Validate() error {
	if q.Prompt == "" {
		return fmt.Errorf("%w: empty prompt", ErrInvalidQuestion)
	}
	if len(q.Options) != OptionsPerQuestion {
		return fmt.Errorf("%w: %q has %d options", ErrInvalidQuestion, q.Prompt, len(q.Options))
	}
	if q.Correct < 0 || q.Correct >= OptionsPerQuestion {
		return fmt.Errorf("%w: %q correct index %d", ErrInvalidQuestion, q.Prompt, q.Correct)
	}
	return nil
}

// IsCorrect reports whether option is the correct answer.
func (q Question) IsCorrect(option int) bool {
	return option == q.Correct
}

// Category is an ordered question table selected by key (a language or the battle pool).
type Category struct {
	Key       string     `json:"key" yaml:"key"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// QuestionView is what a player sees; the correct index is withheld until the question is locked.
type QuestionView struct {
	Index   int      `json:"index"`
	Total   int      `json:"total"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// RankingEntry is one account's summary in the ranking store.
// JSON names match the stored leaderboard record format.
type RankingEntry struct {
	AccountKey          string `json:"address"`
	AvatarRef           string `json:"avatar"`
	ChallengesCompleted int    `json:"challengesCompleted"`
	PointsEarned        int    `json:"tokensEarned"`
}

// RankedEntry is a ranking entry with its 1-based position.
type RankedEntry struct {
	Rank int `json:"rank"`
	RankingEntry
	IsUser bool `json:"isUser"`
}

// LedgerKind enumerates point-affecting actions.
type LedgerKind string

const (
	LedgerQuiz     LedgerKind = "quiz"
	LedgerBattle   LedgerKind = "battle"
	LedgerWithdraw LedgerKind = "withdraw"
	LedgerSend     LedgerKind = "send"
	LedgerDeposit  LedgerKind = "deposit"
)

// LedgerEntry is an immutable transaction record. Amount is the signed effect on the balance.
type LedgerEntry struct {
	ID        string     `json:"id"`
	Kind      LedgerKind `json:"kind"`
	Amount    int64      `json:"amount"`
	Timestamp time.Time  `json:"timestamp"`
	Note      string     `json:"note"`
}

// CompletedChallenge records one answered quiz question.
type CompletedChallenge struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	Correct      bool      `json:"correct"`
	TokensEarned int       `json:"tokensEarned"`
	Timestamp    time.Time `json:"timestamp"`
}

// Avatar is a selectable player picture.
type Avatar struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Image string `json:"image" yaml:"image"`
}

// Fact is a short cultural note shown in the learning hub.
type Fact struct {
	Title string `json:"title" yaml:"title"`
	Text  string `json:"text" yaml:"text"`
}
