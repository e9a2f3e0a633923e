package cleanup

import (
	"context"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
)

type GameLister interface {
	ActiveGameIDs(ctx context.Context, startedBefore time.Time) ([]int64, error)
}

type Abandoner interface {
	Abandon(ctx context.Context, gameID int64) (bool, error)
}

// Worker closes games whose shared state expired while they were still being
// played, so they stop showing up as active.
type Worker struct {
	games     GameLister
	abandoner Abandoner
	minAge    time.Duration
	logger    zerolog.Logger
	clock     quartz.Clock
}

// NewWorker builds a worker that only looks at games older than minAge.
func NewWorker(games GameLister, abandoner Abandoner, minAge time.Duration, clock quartz.Clock, logger zerolog.Logger) *Worker {
	return &Worker{
		games:     games,
		abandoner: abandoner,
		minAge:    minAge,
		logger:    logger.With().Str("component", "cleanup").Logger(),
		clock:     clock,
	}
}

// Start runs a pass immediately and then every interval until ctx is done.
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	w.logger.Info().Dur("interval", interval).Msg("Background worker started")
	w.runCleanup(ctx)

	ticker := w.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runCleanup(ctx)
		}
	}
}

func (w *Worker) runCleanup(ctx context.Context) {
	closed, err := w.RunOnce(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("Cleanup pass failed")
		return
	}
	if closed > 0 {
		w.logger.Info().Int("closed", closed).Msg("Closed abandoned games")
	}
}

// RunOnce makes a single pass and returns how many games it closed. A game
// that fails to close is logged and skipped.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	ids, err := w.games.ActiveGameIDs(ctx, w.clock.Now().Add(-w.minAge))
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return closed, err
		}
		ok, err := w.abandoner.Abandon(ctx, id)
		if err != nil {
			w.logger.Warn().Err(err).Int64("game_id", id).Msg("Failed to close game")
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}
