package app_test

import (
	"testing"
	"time"

	"learnearn/internal/app"
	"learnearn/internal/clock"
	"learnearn/internal/domain"
)

func newBattle(t *testing.T, floats ...float64) (*app.BattleSession, *recorder, *clock.Manual) {
	t.Helper()
	clk := newClock()
	rec := &recorder{}
	b := app.NewBattleSession(makeQuestions(20), app.DefaultBattleConfig(), clk, newScripted(floats...), rec.listen)
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return b, rec, clk
}

func TestBattleUserLockStopsOpponent(t *testing.T) {
	// Opponent delay 1s + 0.99*2s = 2.98s, after the user has locked.
	b, rec, clk := newBattle(t, 0.99)

	clk.Advance(2 * time.Second)
	if snap := b.Snapshot(); snap.TimeRemaining != 3 {
		t.Fatalf("expected 3s remaining, got %d", snap.TimeRemaining)
	}

	outcome, ok := b.Answer(0) // q0 correct option is 0
	if !ok || !outcome.Correct || outcome.TokensEarned != 13 {
		t.Fatalf("expected 13 points for a correct answer at 3s, got %+v ok=%v", outcome, ok)
	}
	if _, ok := b.Answer(0); ok {
		t.Fatalf("second lock on the same question must be ignored")
	}

	clk.Advance(time.Second)
	if len(rec.ofType(domain.EventOpponentAnswered)) != 0 {
		t.Fatalf("opponent answered after user lock")
	}
	clk.Advance(500 * time.Millisecond)

	snap := b.Snapshot()
	if snap.Question == nil || snap.Question.Index != 1 || snap.TimeRemaining != 5 {
		t.Fatalf("expected second question with full countdown, got %+v", snap)
	}
	if snap.Score.User != 13 || snap.Score.Opponent != 0 {
		t.Fatalf("unexpected score %+v", snap.Score)
	}
}

func TestBattleOpponentAnswersFirst(t *testing.T) {
	// Delay 1s + 0.5*2s = 2s; accuracy roll 0.5 < 0.75 picks the correct option.
	b, rec, clk := newBattle(t, 0.5)

	clk.Advance(2 * time.Second)
	opp := rec.ofType(domain.EventOpponentAnswered)
	if len(opp) != 1 {
		t.Fatalf("expected one opponent answer, got %d", len(opp))
	}
	// The opponent timer was registered before the 2s tick, so it sees 4s remaining.
	if !opp[0].Answer.Correct || opp[0].Answer.TokensEarned != 14 {
		t.Fatalf("unexpected opponent answer %+v", opp[0].Answer)
	}

	outcome, ok := b.Answer(2)
	if !ok || outcome.Correct || outcome.TokensEarned != 0 {
		t.Fatalf("expected wrong answer to be accepted with 0 points, got %+v ok=%v", outcome, ok)
	}
	if snap := b.Snapshot(); snap.Score.Opponent != 14 || snap.Score.User != 0 {
		t.Fatalf("unexpected score %+v", snap.Score)
	}
}

func TestBattleOpponentMissesWithLowAccuracyRoll(t *testing.T) {
	// Delay roll 0.9 (2.8s), accuracy roll 0.9 misses and Intn(4) picks option 3.
	_, rec, clk := newBattle(t, 0.9)

	clk.Advance(3 * time.Second)
	opp := rec.ofType(domain.EventOpponentAnswered)
	if len(opp) != 1 {
		t.Fatalf("expected one opponent answer, got %d", len(opp))
	}
	if opp[0].Answer.Option != 3 || opp[0].Answer.Correct || opp[0].Answer.TokensEarned != 0 {
		t.Fatalf("unexpected opponent answer %+v", opp[0].Answer)
	}
}

func TestBattleTimeoutAdvancesImmediately(t *testing.T) {
	b, rec, clk := newBattle(t, 0.5)

	clk.Advance(5 * time.Second)
	if len(rec.ofType(domain.EventTimedOut)) != 1 {
		t.Fatalf("expected a timeout event")
	}
	snap := b.Snapshot()
	if snap.Question == nil || snap.Question.Index != 1 || snap.TimeRemaining != 5 {
		t.Fatalf("expected immediate advance, got %+v", snap)
	}
	if _, ok := b.Answer(1); !ok {
		t.Fatalf("expected answer on the new question to be accepted")
	}
}

func TestBattleRunsToLossWhenUserIdles(t *testing.T) {
	b, rec, clk := newBattle(t, 0.5)

	clk.Advance(100 * time.Second)

	results := rec.ofType(domain.EventBattleResult)
	if len(results) != 1 {
		t.Fatalf("expected one result event, got %d", len(results))
	}
	res := results[0].Result
	if res.Outcome != domain.OutcomeLoss || res.TokensEarned != 10 || res.Score.Opponent != 20*14 || res.Score.User != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(rec.ofType(domain.EventQuestion)) != 20 {
		t.Fatalf("expected 20 questions, got %d", len(rec.ofType(domain.EventQuestion)))
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected no pending timers after result, got %d", clk.Pending())
	}
	if b.Snapshot().State != app.BattleResult {
		t.Fatalf("expected result state")
	}
}

func TestBattleWinAndClaimOnce(t *testing.T) {
	b, rec, clk := newBattle(t, 0.5)

	if _, ok := b.Claim(); ok {
		t.Fatalf("claim before the result must be ignored")
	}

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		snap := b.Snapshot()
		if snap.Question == nil {
			t.Fatalf("expected question %d, got %+v", i, snap)
		}
		seen[snap.Question.Prompt] = true
		if _, ok := b.Answer(snap.Question.Index % 4); !ok {
			t.Fatalf("answer %d rejected", i)
		}
		clk.Advance(1500 * time.Millisecond)
	}
	if len(seen) != 20 {
		t.Fatalf("expected 20 distinct prompts, got %d", len(seen))
	}

	snap := b.Snapshot()
	if snap.Result == nil || snap.Result.Outcome != domain.OutcomeWin || snap.Result.TokensEarned != 50 {
		t.Fatalf("expected a win, got %+v", snap.Result)
	}
	if snap.Score.User != 20*15 || snap.Score.Opponent != 0 {
		t.Fatalf("unexpected score %+v", snap.Score)
	}

	res, ok := b.Claim()
	if !ok || !res.Won() {
		t.Fatalf("expected first claim to succeed, got %+v ok=%v", res, ok)
	}
	if _, ok := b.Claim(); ok {
		t.Fatalf("second claim must be ignored")
	}
	if got := len(rec.ofType(domain.EventBattleClaimed)); got != 1 {
		t.Fatalf("expected exactly one claimed event, got %d", got)
	}
}

func TestBattleCancelSilencesTimers(t *testing.T) {
	b, rec, clk := newBattle(t, 0.5)

	clk.Advance(1500 * time.Millisecond)
	b.Cancel()
	before := rec.count()

	clk.Advance(time.Minute)
	if rec.count() != before {
		t.Fatalf("expected no events after cancel")
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected cancel to stop timers, %d pending", clk.Pending())
	}
	if _, ok := b.Answer(0); ok {
		t.Fatalf("answer after cancel must be ignored")
	}
}

func TestBattleNeedsEnoughDistinctQuestions(t *testing.T) {
	pool := makeQuestions(20)
	pool[19].Prompt = pool[0].Prompt

	b := app.NewBattleSession(pool, app.BattleConfig{}, newClock(), newScripted(), nil)
	if err := b.Start(); err != domain.ErrNotEnoughQuestions {
		t.Fatalf("expected ErrNotEnoughQuestions, got %v", err)
	}

	b = app.NewBattleSession(append(makeQuestions(20), makeQuestions(5)...), app.BattleConfig{}, newClock(), newScripted(), nil)
	if err := b.Start(); err != nil {
		t.Fatalf("duplicates beyond 20 distinct prompts should be fine: %v", err)
	}
}
