package main

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"

	"github.com/coder/quartz"
	"github.com/iamasit07/colorguess/backend/internal/config"
	"github.com/iamasit07/colorguess/backend/internal/logging"
	"github.com/iamasit07/colorguess/backend/internal/repository/postgres"
	"github.com/iamasit07/colorguess/backend/internal/repository/redis"
	"github.com/iamasit07/colorguess/backend/internal/service/game"
	"github.com/iamasit07/colorguess/backend/internal/service/round"
	"github.com/iamasit07/colorguess/backend/internal/service/score"
	"github.com/iamasit07/colorguess/backend/internal/service/turn"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	db     *sql.DB
	redis  *goredis.Client

	colors  *postgres.ColorRepo
	players *postgres.PlayerRepo
	games   *postgres.GameRepo
}

// loadApp reads configuration and opens PostgreSQL. Redis is only opened by
// commands that touch game state, see withGame.
func loadApp(ctx context.Context) (*app, error) {
	// A missing .env is fine, the environment may already be set.
	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load("../.env")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetimeMin)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		colors:  postgres.NewColorRepo(db),
		players: postgres.NewPlayerRepo(db),
		games:   postgres.NewGameRepo(db),
	}, nil
}

// coordinator connects Redis and wires the game services. seed 0 means a
// time-seeded target generator.
func (a *app) coordinator(ctx context.Context, seed int64) (*game.Coordinator, error) {
	client, err := redis.Connect(ctx, a.cfg.RedisURL, a.cfg.RedisPassword, a.cfg.RedisDB, a.logger)
	if err != nil {
		return nil, err
	}
	a.redis = client
	cache := redis.NewCache(client, quartz.NewReal())

	var rng *rand.Rand
	if seed != 0 {
		a.logger.Info().Int64("seed", seed).Msg("Using deterministic seed")
		rng = rand.New(rand.NewSource(seed))
	}

	rounds := round.NewService(cache, a.colors, a.cfg.ColorChoicesNumber, a.cfg.GameStateTTL, rng, a.logger)
	turns := turn.NewTracker(cache, a.cfg.GameStateTTL, a.logger)
	scores := score.NewBoard(cache, a.cfg.GameStateTTL)

	rules := game.Rules{
		ColorChoices: a.cfg.ColorChoicesNumber,
		MaxRounds:    a.cfg.ChoicesCardNumber,
		TurnPolicy:   a.cfg.TurnPolicy,
		StateTTL:     a.cfg.GameStateTTL,
		LockTTL:      a.cfg.LockTTL,
		LockWait:     a.cfg.LockWait,
	}
	return game.NewCoordinator(a.games, a.colors, cache, rounds, turns, scores, rules, a.logger), nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close database")
	}
}
