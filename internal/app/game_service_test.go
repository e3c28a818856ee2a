package app_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"learnearn/internal/app"
	"learnearn/internal/clock"
	"learnearn/internal/content"
	"learnearn/internal/domain"
	"learnearn/internal/infra/memory"
	"learnearn/internal/random"
	"learnearn/internal/ranking"
	"learnearn/internal/wallet"
)

type fixture struct {
	service *app.GameService
	players *memory.PlayerStore
	clk     *clock.Manual
	sim     *wallet.Simulated
}

func newTestService() *fixture {
	table := content.Builtin()
	return newTestServiceWith(table, table.Languages())
}

func newTestServiceWith(loader memory.CategoryLoader, languages []string) *fixture {
	clk := newClock()
	rnd := newScripted(0.5)
	sim := wallet.NewSimulated(clk, random.NewSequence(0.7), 0)
	players := memory.NewPlayerStore()
	service := app.NewGameService(
		players,
		memory.NewCategoryRepository(loader, time.Minute),
		ranking.NewRecordStore(memory.NewRecordStorage(), "", nil),
		wallet.NewSession(sim, "0x1234567890123456789012345678901234567890", nil),
		app.Options{Scheduler: clk, Random: rnd, Languages: languages},
	)
	return &fixture{service: service, players: players, clk: clk, sim: sim}
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	f := newTestService()

	if _, err := f.service.Connect(ctx, "", alice); !errors.Is(err, domain.ErrAvatarRequired) {
		t.Fatalf("expected ErrAvatarRequired, got %v", err)
	}
	if _, err := f.service.Connect(ctx, "a.png", "not-an-address"); !errors.Is(err, domain.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}

	p, err := f.service.Connect(ctx, "a.png", "")
	if err != nil {
		t.Fatalf("connect via wallet: %v", err)
	}
	if _, err := wallet.NormalizeAddress(p.Address()); err != nil {
		t.Fatalf("wallet supplied invalid address %q", p.Address())
	}

	f.sim.SetInstalled(false)
	if _, err := f.service.Connect(ctx, "a.png", ""); !errors.Is(err, wallet.ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}

	first, _ := f.service.Connect(ctx, "a.png", alice)
	again, _ := f.service.Connect(ctx, "b.png", alice)
	if first != again {
		t.Fatalf("reconnecting must keep the player")
	}
	board := f.service.Leaderboard(ctx, alice)
	found := false
	for _, e := range board {
		if e.AccountKey == alice {
			found = true
			if !e.IsUser || e.AvatarRef != "b.png" {
				t.Fatalf("unexpected leaderboard entry %+v", e)
			}
		}
	}
	if !found {
		t.Fatalf("connected player missing from leaderboard %+v", board)
	}
}

func TestQuizThroughServiceCreditsAccount(t *testing.T) {
	ctx := context.Background()
	f := newTestService()
	if _, err := f.service.Connect(ctx, "a.png", alice); err != nil {
		t.Fatalf("connect: %v", err)
	}

	rec := &recorder{}
	snap, err := f.service.StartQuiz(ctx, alice, "Klingon", rec.listen)
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if snap.Category != content.DefaultCategory {
		t.Fatalf("expected fallback to %s, got %s", content.DefaultCategory, snap.Category)
	}

	english, err := content.Builtin().LoadCategory(ctx, "English")
	if err != nil {
		t.Fatalf("load english: %v", err)
	}
	var correct int
	for _, q := range english.Questions {
		if q.Prompt == snap.Question.Prompt {
			correct = q.Correct
		}
	}

	outcome, accepted, err := f.service.AnswerQuiz(alice, correct)
	if err != nil || !accepted || !outcome.Correct {
		t.Fatalf("answer: outcome=%+v accepted=%v err=%v", outcome, accepted, err)
	}
	if _, accepted, _ := f.service.AnswerQuiz(alice, correct); accepted {
		t.Fatalf("second answer must be ignored")
	}

	sum, err := f.service.Account(alice)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if sum.Balance != 10 || len(sum.Ledger) != 1 || sum.Ledger[0].Note != "Completed English challenge (correct)" {
		t.Fatalf("unexpected account %+v", sum)
	}
	if len(rec.ofType(domain.EventAnswered)) != 1 {
		t.Fatalf("listener must receive the answered event")
	}
}

func TestStartingBattleCancelsQuiz(t *testing.T) {
	ctx := context.Background()
	f := newTestService()
	p, _ := f.service.Connect(ctx, "a.png", alice)

	if _, err := f.service.StartQuiz(ctx, alice, "Afrikaans", nil); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	quiz, _ := p.Quiz()

	if _, err := f.service.StartBattle(ctx, alice, nil); err != nil {
		t.Fatalf("start battle: %v", err)
	}
	if quiz.Snapshot().State != app.QuizCancelled {
		t.Fatalf("expected previous quiz cancelled")
	}
	if _, ok := p.Quiz(); ok {
		t.Fatalf("expected quiz slot cleared")
	}
	if _, _, err := f.service.AnswerQuiz(alice, 0); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestBattleClaimCreditsAccountOnce(t *testing.T) {
	ctx := context.Background()
	f := newTestService()
	if _, err := f.service.Connect(ctx, "a.png", alice); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := f.service.StartBattle(ctx, alice, nil); err != nil {
		t.Fatalf("start battle: %v", err)
	}
	if _, claimed, _ := f.service.ClaimBattle(alice); claimed {
		t.Fatalf("claim during play must be ignored")
	}

	// Idle through every question; the opponent wins.
	f.clk.Advance(2 * time.Minute)

	res, claimed, err := f.service.ClaimBattle(alice)
	if err != nil || !claimed {
		t.Fatalf("claim: res=%+v claimed=%v err=%v", res, claimed, err)
	}
	if res.Outcome != domain.OutcomeLoss || res.TokensEarned != 10 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, claimed, _ := f.service.ClaimBattle(alice); claimed {
		t.Fatalf("second claim must be ignored")
	}

	sum, _ := f.service.Account(alice)
	if sum.Balance != 10 || sum.BattlesLost != 1 || len(sum.Ledger) != 1 {
		t.Fatalf("unexpected account %+v", sum)
	}
}

func TestUnknownPlayer(t *testing.T) {
	f := newTestService()
	if _, err := f.service.StartQuiz(context.Background(), bob, "English", nil); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
	if _, err := f.service.Deposit(context.Background(), bob, 5, nil); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestDisconnectForgetsIdlePlayers(t *testing.T) {
	ctx := context.Background()
	f := newTestService()

	f.service.Connect(ctx, "a.png", alice)
	f.service.Connect(ctx, "b.png", bob)
	if _, err := f.service.Deposit(ctx, bob, 5, nil); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.service.StartQuiz(ctx, alice, "English", nil); err != nil {
		t.Fatalf("start quiz: %v", err)
	}

	f.service.Disconnect(alice)
	f.service.Disconnect(bob)

	if _, err := f.service.Player(alice); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected idle player to be forgotten, got %v", err)
	}
	if _, err := f.service.Player(bob); err != nil {
		t.Fatalf("expected player with history to be kept: %v", err)
	}
	if f.players.Len() != 1 {
		t.Fatalf("expected one tracked player, got %d", f.players.Len())
	}
	if f.clk.Pending() != 0 {
		t.Fatalf("disconnect must cancel session timers, %d pending", f.clk.Pending())
	}
}

func TestCategoriesListsLanguages(t *testing.T) {
	f := newTestService()
	cats := f.service.Categories()
	if len(cats) != 9 || cats[len(cats)-1] != "English" {
		t.Fatalf("unexpected categories %v", cats)
	}
}

// unseededLoader behaves like an empty question_sets table.
type unseededLoader struct{}

func (unseededLoader) LoadCategory(_ context.Context, key string) (domain.Category, error) {
	return domain.Category{}, fmt.Errorf("%w: %s", domain.ErrCategoryNotFound, key)
}

func TestEmptyPrimaryLoaderFallsBackToBuiltin(t *testing.T) {
	ctx := context.Background()
	table := content.Builtin()
	f := newTestServiceWith(
		content.Fallback{Primary: unseededLoader{}, Secondary: table},
		content.MergeLanguages(nil, table.Languages()),
	)

	if got := f.service.Categories(); len(got) != 9 || got[0] != "isiZulu" {
		t.Fatalf("unexpected categories %v", got)
	}
	if _, err := f.service.Connect(ctx, "a.png", alice); err != nil {
		t.Fatalf("connect: %v", err)
	}
	for _, lang := range f.service.Categories() {
		snap, err := f.service.StartQuiz(ctx, alice, lang, nil)
		if err != nil {
			t.Fatalf("start quiz %s: %v", lang, err)
		}
		if snap.Category != lang {
			t.Fatalf("expected category %s, got %s", lang, snap.Category)
		}
	}
	if _, err := f.service.StartBattle(ctx, alice, nil); err != nil {
		t.Fatalf("start battle: %v", err)
	}
}

func TestEmptyLoaderWithoutFallbackFails(t *testing.T) {
	ctx := context.Background()
	f := newTestServiceWith(unseededLoader{}, nil)
	if _, err := f.service.Connect(ctx, "a.png", alice); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := f.service.StartQuiz(ctx, alice, "isiZulu", nil); !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestAddressLookupIgnoresCase(t *testing.T) {
	ctx := context.Background()
	f := newTestService()

	const lower = "0xabcdef0123456789abcdef0123456789abcdef01"
	p, err := f.service.Connect(ctx, "a.png", lower)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !strings.EqualFold(p.Address(), lower) {
		t.Fatalf("unexpected stored address %s", p.Address())
	}

	upper := "0x" + strings.ToUpper(lower[2:])
	for _, addr := range []string{lower, upper, p.Address()} {
		if _, err := f.service.Account(addr); err != nil {
			t.Fatalf("account %s: %v", addr, err)
		}
		board := f.service.Leaderboard(ctx, addr)
		if len(board) != 1 || !board[0].IsUser {
			t.Fatalf("expected own entry flagged for %s, got %+v", addr, board)
		}
	}

	if _, err := f.service.StartQuiz(ctx, upper, "English", nil); err != nil {
		t.Fatalf("start quiz with upper-case address: %v", err)
	}
	f.service.Disconnect(lower)
	if _, err := f.service.Account(p.Address()); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected idle player forgotten, got %v", err)
	}
}
