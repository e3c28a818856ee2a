// Package scoring computes rewards for quiz and battle answers.
// Every function is pure; randomness and timing live in the session state machines.
package scoring

import "learnearn/internal/domain"

const (
	// QuizReward is the fixed reward for a correct quiz answer.
	QuizReward = 10
	// BattleBaseReward is added to the seconds remaining for a correct battle answer.
	BattleBaseReward = 10
	// BattleWinReward is paid for winning a battle.
	BattleWinReward = 50
	// BattleConsolationReward is paid for a lost or drawn battle.
	BattleConsolationReward = 10
)

// ScoreQuizAnswer returns the reward for a quiz answer. Elapsed time does not matter.
func ScoreQuizAnswer(correct bool) int {
	if !correct {
		return 0
	}
	return QuizReward
}

// ScoreBattleAnswer rewards faster correct answers more.
func ScoreBattleAnswer(correct bool, secondsRemaining int) int {
	if !correct {
		return 0
	}
	return BattleBaseReward + secondsRemaining
}

// ResolveBattleOutcome compares the final scores. A draw pays like a loss.
func ResolveBattleOutcome(userScore, opponentScore int) domain.BattleResult {
	result := domain.BattleResult{
		Score: domain.BattleScore{User: userScore, Opponent: opponentScore},
	}
	switch {
	case userScore > opponentScore:
		result.Outcome = domain.OutcomeWin
		result.TokensEarned = BattleWinReward
	case userScore < opponentScore:
		result.Outcome = domain.OutcomeLoss
		result.TokensEarned = BattleConsolationReward
	default:
		result.Outcome = domain.OutcomeDraw
		result.TokensEarned = BattleConsolationReward
	}
	return result
}
