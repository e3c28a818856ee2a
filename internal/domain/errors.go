package domain

import "errors"

var (
	// ErrCategoryNotFound indicates the question table for a key could not be loaded.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrInvalidQuestion is returned when question content fails validation.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrEmptyCategory is returned when a session is started on a category without questions.
	ErrEmptyCategory = errors.New("category has no questions")
	// ErrNotEnoughQuestions is returned when the battle pool is smaller than the battle length.
	ErrNotEnoughQuestions = errors.New("not enough distinct questions for battle")
	// ErrSessionNotFound is returned when a player has no active session of the requested kind.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrSessionStarted is returned when Start is called twice on a session.
	ErrSessionStarted = errors.New("game session already started")
	// ErrPlayerNotFound is returned when a player acts before connecting.
	ErrPlayerNotFound = errors.New("player not connected")
	// ErrInvalidRankingEntry is returned for ranking writes with an empty key or negative counters.
	ErrInvalidRankingEntry = errors.New("invalid ranking entry")
	// ErrInvalidAmount is returned for non-positive wallet amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInsufficientBalance is returned when a send exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNothingToWithdraw is returned when withdrawing a zero balance.
	ErrNothingToWithdraw = errors.New("no balance available to withdraw")
	// ErrInvalidAddress is returned for malformed wallet addresses.
	ErrInvalidAddress = errors.New("invalid wallet address")
	// ErrAvatarRequired is returned when connecting without an avatar.
	ErrAvatarRequired = errors.New("avatar is required")
)
