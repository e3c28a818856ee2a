package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"learnearn/internal/clock"
	"learnearn/internal/content"
	"learnearn/internal/domain"
	"learnearn/internal/random"
	"learnearn/internal/ranking"
	"learnearn/internal/wallet"
)

// PlayerRepository abstracts how connected players are tracked (in-memory, Redis, etc).
type PlayerRepository interface {
	GetOrCreate(address string, create func() *Player) *Player
	Get(address string) (*Player, bool)
	DeleteIfIdle(address string)
}

// CategoryRepository loads question tables (from cache/backing store).
type CategoryRepository interface {
	GetCategory(ctx context.Context, key string) (domain.Category, error)
}

// Options tunes a GameService. Zero values fall back to production defaults.
type Options struct {
	Quiz      QuizConfig
	Battle    BattleConfig
	Scheduler clock.Scheduler
	Random    random.Source
	Logger    *slog.Logger
	Now       func() time.Time
	// Languages lists the playable quiz categories in display order.
	Languages []string
}

// GameService contains the game use cases: connecting, quizzes, battles,
// wallet operations and the leaderboard.
type GameService struct {
	players    PlayerRepository
	categories CategoryRepository
	rankings   ranking.Store
	wallet     *wallet.Session

	quizCfg   QuizConfig
	battleCfg BattleConfig
	sched     clock.Scheduler
	rnd       random.Source
	logger    *slog.Logger
	now       func() time.Time
	languages []string
}

func NewGameService(players PlayerRepository, categories CategoryRepository, rankings ranking.Store, ws *wallet.Session, opts Options) *GameService {
	if opts.Scheduler == nil {
		opts.Scheduler = clock.Real{}
	}
	if opts.Random == nil {
		opts.Random = random.New(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = opts.Scheduler.Now
	}
	return &GameService{
		players:    players,
		categories: categories,
		rankings:   rankings,
		wallet:     ws,
		quizCfg:    opts.Quiz.withDefaults(),
		battleCfg:  opts.Battle.withDefaults(),
		sched:      opts.Scheduler,
		rnd:        opts.Random,
		logger:     opts.Logger,
		now:        opts.Now,
		languages:  opts.Languages,
	}
}

// Categories lists the playable quiz categories.
func (s *GameService) Categories() []string {
	out := make([]string, len(s.languages))
	copy(out, s.languages)
	return out
}

// Connect registers a player. Without an address the wallet is asked for one.
// Reconnecting keeps the account and refreshes the avatar.
func (s *GameService) Connect(ctx context.Context, avatar, address string) (*Player, error) {
	if avatar == "" {
		return nil, domain.ErrAvatarRequired
	}

	var err error
	if address == "" {
		address, err = s.wallet.Connect(ctx)
	} else {
		address, err = wallet.NormalizeAddress(address)
	}
	if err != nil {
		return nil, err
	}

	created := false
	player := s.players.GetOrCreate(address, func() *Player {
		created = true
		return NewPlayer(NewAccount(address, avatar, s.wallet, s.rankings, s.logger, s.now))
	})
	if created {
		player.Account().Publish()
	} else {
		player.Account().SetAvatar(avatar)
	}
	s.logger.Info("player connected", "address", address, "avatar", avatar, "new", created)
	return player, nil
}

// Player returns a connected player. The address may be given in any case.
func (s *GameService) Player(address string) (*Player, error) {
	player, ok := s.players.Get(wallet.CanonicalAddress(address))
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return player, nil
}

// StartQuiz starts a quiz in category, replacing any active session. Unknown
// categories fall back to the default language.
func (s *GameService) StartQuiz(ctx context.Context, address, category string, listener domain.SessionListener) (QuizSnapshot, error) {
	player, err := s.Player(address)
	if err != nil {
		return QuizSnapshot{}, err
	}

	cat, err := s.categories.GetCategory(ctx, category)
	if errors.Is(err, domain.ErrCategoryNotFound) && category != content.DefaultCategory {
		s.logger.Warn("unknown category, using default", "category", category, "default", content.DefaultCategory)
		cat, err = s.categories.GetCategory(ctx, content.DefaultCategory)
	}
	if err != nil {
		return QuizSnapshot{}, err
	}

	account := player.Account()
	key := cat.Key
	session := NewQuizSession(cat, s.quizCfg, s.sched, s.rnd, func(ev domain.SessionEvent) {
		if ev.Type == domain.EventAnswered && ev.Answer != nil {
			account.RecordQuizAnswer(key, *ev.Answer)
		}
		if listener != nil {
			listener(ev)
		}
	})

	player.mu.Lock()
	defer player.mu.Unlock()
	player.leaveLocked()
	if err := session.Start(); err != nil {
		return QuizSnapshot{}, err
	}
	player.quiz = session
	s.logger.Info("quiz started", "address", address, "category", key)
	return session.Snapshot(), nil
}

// AnswerQuiz submits an option for the active quiz question. accepted is false
// when the answer was ignored.
func (s *GameService) AnswerQuiz(address string, option int) (domain.AnswerOutcome, bool, error) {
	player, err := s.Player(address)
	if err != nil {
		return domain.AnswerOutcome{}, false, err
	}
	quiz, ok := player.Quiz()
	if !ok {
		return domain.AnswerOutcome{}, false, domain.ErrSessionNotFound
	}
	outcome, accepted := quiz.Answer(option)
	return outcome, accepted, nil
}

// StartBattle starts a battle, replacing any active session.
func (s *GameService) StartBattle(ctx context.Context, address string, listener domain.SessionListener) (BattleSnapshot, error) {
	player, err := s.Player(address)
	if err != nil {
		return BattleSnapshot{}, err
	}

	pool, err := s.categories.GetCategory(ctx, content.BattleKey)
	if err != nil {
		return BattleSnapshot{}, err
	}

	account := player.Account()
	session := NewBattleSession(pool.Questions, s.battleCfg, s.sched, s.rnd, func(ev domain.SessionEvent) {
		if ev.Type == domain.EventBattleClaimed && ev.Result != nil {
			account.RecordBattle(*ev.Result)
		}
		if listener != nil {
			listener(ev)
		}
	})

	player.mu.Lock()
	defer player.mu.Unlock()
	player.leaveLocked()
	if err := session.Start(); err != nil {
		return BattleSnapshot{}, err
	}
	player.battle = session
	s.logger.Info("battle started", "address", address)
	return session.Snapshot(), nil
}

// AnswerBattle submits the user's option for the current battle question.
func (s *GameService) AnswerBattle(address string, option int) (domain.AnswerOutcome, bool, error) {
	player, err := s.Player(address)
	if err != nil {
		return domain.AnswerOutcome{}, false, err
	}
	battle, ok := player.Battle()
	if !ok {
		return domain.AnswerOutcome{}, false, domain.ErrSessionNotFound
	}
	outcome, accepted := battle.Answer(option)
	return outcome, accepted, nil
}

// ClaimBattle collects the reward of a finished battle. claimed is false when
// the battle is still running or was already claimed.
func (s *GameService) ClaimBattle(address string) (domain.BattleResult, bool, error) {
	player, err := s.Player(address)
	if err != nil {
		return domain.BattleResult{}, false, err
	}
	battle, ok := player.Battle()
	if !ok {
		return domain.BattleResult{}, false, domain.ErrSessionNotFound
	}
	result, claimed := battle.Claim()
	if claimed {
		s.logger.Info("battle claimed", "address", address, "outcome", result.Outcome, "tokens", result.TokensEarned)
	}
	return result, claimed, nil
}

// Leave cancels the player's active session.
func (s *GameService) Leave(address string) {
	player, ok := s.players.Get(wallet.CanonicalAddress(address))
	if !ok {
		return
	}
	player.mu.Lock()
	player.leaveLocked()
	player.mu.Unlock()
}

// Disconnect cancels the active session and forgets players without history.
func (s *GameService) Disconnect(address string) {
	s.Leave(address)
	s.players.DeleteIfIdle(wallet.CanonicalAddress(address))
}

// Deposit moves xp from the wallet into the player's balance.
func (s *GameService) Deposit(ctx context.Context, address string, xp int64, notify wallet.Notify) (wallet.Result, error) {
	player, err := s.Player(address)
	if err != nil {
		return wallet.Result{}, err
	}
	return player.Account().Deposit(ctx, xp, notify), nil
}

// Send transfers xp from the player's balance to another address.
func (s *GameService) Send(ctx context.Context, address, to string, xp int64, notify wallet.Notify) (wallet.Result, error) {
	player, err := s.Player(address)
	if err != nil {
		return wallet.Result{}, err
	}
	return player.Account().Send(ctx, to, xp, notify), nil
}

// Withdraw pays out the player's whole balance.
func (s *GameService) Withdraw(ctx context.Context, address string, notify wallet.Notify) (wallet.Result, error) {
	player, err := s.Player(address)
	if err != nil {
		return wallet.Result{}, err
	}
	return player.Account().Withdraw(ctx, notify), nil
}

// Account returns the player's account summary.
func (s *GameService) Account(address string) (AccountSummary, error) {
	player, err := s.Player(address)
	if err != nil {
		return AccountSummary{}, err
	}
	return player.Account().Summary(), nil
}

// Leaderboard returns the ranked leaderboard with the player's entry flagged.
// The player's own pending ranking updates are written first.
func (s *GameService) Leaderboard(ctx context.Context, address string) []domain.RankedEntry {
	address = wallet.CanonicalAddress(address)
	if player, ok := s.players.Get(address); ok {
		player.Account().Flush()
	}
	return ranking.Rank(s.rankings.ReadRanked(ctx), address)
}
