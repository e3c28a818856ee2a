package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"learnearn/internal/app"
)

// Storage drivers for the ranking record.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// EnvPrefix prefixes every environment override, e.g. LEARNEARN_REDIS_ADDR.
const EnvPrefix = "LEARNEARN_"

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"PORT"`
	} `yaml:"server" envPrefix:"SERVER_"`
	Log struct {
		Level  string `yaml:"level" env:"LEVEL"`
		Format string `yaml:"format" env:"FORMAT"`
	} `yaml:"log" envPrefix:"LOG_"`
	Redis struct {
		Addr     string `yaml:"addr" env:"ADDR"`
		Password string `yaml:"password" env:"PASSWORD"`
		DB       int    `yaml:"db" env:"DB"`
		TTL      string `yaml:"ttl" env:"TTL"`
	} `yaml:"redis" envPrefix:"REDIS_"`
	Postgres struct {
		URL string `yaml:"url" env:"URL"`
	} `yaml:"postgres" envPrefix:"POSTGRES_"`
	Quiz struct {
		TTL string `yaml:"ttl" env:"TTL"`
	} `yaml:"quiz" envPrefix:"QUIZ_"`
	Storage struct {
		Driver string `yaml:"driver" env:"DRIVER"`
		Dir    string `yaml:"dir" env:"DIR"`
		Key    string `yaml:"key" env:"KEY"`
	} `yaml:"storage" envPrefix:"STORAGE_"`
	Game struct {
		QuizSeconds      int     `yaml:"quizSeconds" env:"QUIZ_SECONDS"`
		BattleSeconds    int     `yaml:"battleSeconds" env:"BATTLE_SECONDS"`
		BattleQuestions  int     `yaml:"battleQuestions" env:"BATTLE_QUESTIONS"`
		RevealDelay      string  `yaml:"revealDelay" env:"REVEAL_DELAY"`
		TimeoutDelay     string  `yaml:"timeoutDelay" env:"TIMEOUT_DELAY"`
		OpponentAccuracy float64 `yaml:"opponentAccuracy" env:"OPPONENT_ACCURACY"`
		OpponentMinDelay string  `yaml:"opponentMinDelay" env:"OPPONENT_MIN_DELAY"`
		OpponentMaxDelay string  `yaml:"opponentMaxDelay" env:"OPPONENT_MAX_DELAY"`
		Seed             int64   `yaml:"seed" env:"SEED"`
	} `yaml:"game" envPrefix:"GAME_"`
	Wallet struct {
		Latency  string `yaml:"latency" env:"LATENCY"`
		Contract string `yaml:"contract" env:"CONTRACT"`
	} `yaml:"wallet" envPrefix:"WALLET_"`
	Leaderboard struct {
		Refresh string `yaml:"refresh" env:"REFRESH"`
	} `yaml:"leaderboard" envPrefix:"LEADERBOARD_"`
}

// Default returns the built-in configuration: in-memory storage and the
// production game timings.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Redis.TTL = "10m"
	cfg.Quiz.TTL = "10m"
	cfg.Storage.Driver = StorageMemory
	cfg.Storage.Dir = "data"
	cfg.Game.QuizSeconds = 30
	cfg.Game.BattleSeconds = 5
	cfg.Game.BattleQuestions = 20
	cfg.Game.RevealDelay = "1.5s"
	cfg.Game.TimeoutDelay = "2s"
	cfg.Game.OpponentAccuracy = 0.75
	cfg.Game.OpponentMinDelay = "1s"
	cfg.Game.OpponentMaxDelay = "3s"
	cfg.Wallet.Latency = "2s"
	cfg.Wallet.Contract = "0x1234567890123456789012345678901234567890"
	cfg.Leaderboard.Refresh = "3s"
	return cfg
}

// Load reads YAML config from path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that the selected storage driver has what it needs.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageFile:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir is required for the file driver")
		}
	case StorageRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis driver")
		}
	case StoragePostgres:
		if c.Postgres.URL == "" {
			return errors.New("postgres.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	// zero would be read as unset by the battle defaults
	if c.Game.OpponentAccuracy <= 0 || c.Game.OpponentAccuracy > 1 {
		return fmt.Errorf("game.opponentAccuracy %v outside (0,1]", c.Game.OpponentAccuracy)
	}
	return nil
}

// LogLevel parses log.level, defaulting to info.
func (c Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// QuizSettings converts the game section into quiz timings.
func (c Config) QuizSettings() app.QuizConfig {
	return app.QuizConfig{
		QuestionSeconds: c.Game.QuizSeconds,
		RevealDelay:     TTLDuration(c.Game.RevealDelay, 1500*time.Millisecond),
		TimeoutDelay:    TTLDuration(c.Game.TimeoutDelay, 2*time.Second),
	}
}

// BattleSettings converts the game section into battle settings.
func (c Config) BattleSettings() app.BattleConfig {
	return app.BattleConfig{
		Questions:        c.Game.BattleQuestions,
		QuestionSeconds:  c.Game.BattleSeconds,
		RevealDelay:      TTLDuration(c.Game.RevealDelay, 1500*time.Millisecond),
		OpponentAccuracy: c.Game.OpponentAccuracy,
		OpponentMinDelay: TTLDuration(c.Game.OpponentMinDelay, time.Second),
		OpponentMaxDelay: TTLDuration(c.Game.OpponentMaxDelay, 3*time.Second),
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
