package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	"learnearn/internal/app"
	"learnearn/internal/clock"
	"learnearn/internal/config"
	"learnearn/internal/content"
	"learnearn/internal/infra/file"
	"learnearn/internal/infra/memory"
	pgstore "learnearn/internal/infra/postgres"
	redisstore "learnearn/internal/infra/redis"
	"learnearn/internal/random"
	"learnearn/internal/ranking"
	transport "learnearn/internal/transport/http"
	"learnearn/internal/wallet"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	var handler slog.Handler
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// deps holds the optional infrastructure clients selected by config.
type deps struct {
	redis *redis.Client
	pool  *pgxpool.Pool
	db    *bun.DB
}

func openDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (*deps, error) {
	d := &deps{}
	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		logger.Info("redis configured", "addr", cfg.Redis.Addr)
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		d.pool = pool
		d.db = openBun(cfg.Postgres.URL)
		logger.Info("postgres configured")
	}
	return d, nil
}

func (d *deps) Close() {
	if d.redis != nil {
		d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}

func (d *deps) recordStorage(cfg config.Config) (ranking.RecordStorage, error) {
	switch cfg.Storage.Driver {
	case config.StorageFile:
		return file.NewRecordStorage(cfg.Storage.Dir)
	case config.StorageRedis:
		return redisstore.NewRecordStorage(d.redis), nil
	case config.StoragePostgres:
		return pgstore.NewRecordStorage(d.db), nil
	default:
		return memory.NewRecordStorage(), nil
	}
}

// categories returns the question source and the languages it can serve.
// Postgres tables take precedence; keys missing from Postgres are served from
// the built-in content so an unseeded database still plays.
func (d *deps) categories(ctx context.Context, table *content.Table) (memory.CategoryLoader, []string, error) {
	if d.pool == nil {
		return table, table.Languages(), nil
	}
	pg := pgstore.NewCategoryLoader(d.pool)
	keys, err := pg.Keys(ctx)
	if err != nil {
		return nil, nil, err
	}
	return content.Fallback{Primary: pg, Secondary: table}, content.MergeLanguages(keys, table.Languages()), nil
}

func (d *deps) categoryRepository(cfg config.Config, loader memory.CategoryLoader, logger *slog.Logger) app.CategoryRepository {
	ttl := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if d.redis != nil {
		return redisstore.NewCategoryRepository(d.redis, loader, ttl, logger)
	}
	return memory.NewCategoryRepository(loader, ttl)
}

func (d *deps) playerStore(cfg config.Config) app.PlayerRepository {
	if d.redis != nil {
		return redisstore.NewPlayerStore(d.redis, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	}
	return memory.NewPlayerStore()
}

func (d *deps) checks() map[string]transport.Checker {
	checks := map[string]transport.Checker{}
	if d.redis != nil {
		checks["redis"] = transport.CheckFunc(func(ctx context.Context) error {
			return d.redis.Ping(ctx).Err()
		})
	}
	if d.pool != nil {
		checks["postgres"] = transport.CheckFunc(func(ctx context.Context) error {
			conn, err := d.pool.Acquire(ctx)
			if err != nil {
				return err
			}
			defer conn.Release()
			return conn.Conn().Ping(ctx)
		})
	}
	return checks
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, false); err != nil {
			return err
		}
	}

	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	storage, err := d.recordStorage(cfg)
	if err != nil {
		return err
	}
	rankings := ranking.NewRecordStore(storage, cfg.Storage.Key, logger)

	table := content.Builtin()
	loader, languages, err := d.categories(ctx, table)
	if err != nil {
		return err
	}
	logger.Info("categories available", "languages", languages)

	seed := cfg.Game.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := random.New(seed)

	sched := clock.Real{}
	bridge := wallet.NewSimulated(sched, rnd, config.TTLDuration(cfg.Wallet.Latency, 2*time.Second))
	service := app.NewGameService(
		d.playerStore(cfg),
		d.categoryRepository(cfg, loader, logger),
		rankings,
		wallet.NewSession(bridge, cfg.Wallet.Contract, logger),
		app.Options{
			Quiz:      cfg.QuizSettings(),
			Battle:    cfg.BattleSettings(),
			Scheduler: sched,
			Random:    rnd,
			Logger:    logger,
			Languages: languages,
		},
	)

	router := transport.NewRouter(service, transport.RouterOptions{
		Logger:  logger,
		Checks:  d.checks(),
		Refresh: config.TTLDuration(cfg.Leaderboard.Refresh, 3*time.Second),
		Avatars: table.Avatars(),
		Facts:   table,
	})

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	srv := transport.NewServer(net.JoinHostPort("", finalPort), router, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
