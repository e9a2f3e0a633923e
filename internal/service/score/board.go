package score

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/iamasit07/colorguess/backend/internal/domain"
)

const keyPrefix = "G"

type StateStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

// Board accumulates cumulative per-player scores. Scores only ever grow.
type Board struct {
	store StateStore
	ttl   time.Duration
}

func NewBoard(store StateStore, ttl time.Duration) *Board {
	return &Board{store: store, ttl: ttl}
}

func scoreKey(gameID, playerID int64) string {
	return fmt.Sprintf("%s:%d:%d", keyPrefix, gameID, playerID)
}

// AddScore adds delta to the player's total and returns the new total.
func (b *Board) AddScore(ctx context.Context, gameID, playerID int64, delta int) (int, error) {
	if delta < 0 {
		return 0, fmt.Errorf("%w: %d", domain.ErrInvalidDelta, delta)
	}
	total, err := b.store.IncrBy(ctx, scoreKey(gameID, playerID), int64(delta), b.ttl)
	if err != nil {
		return 0, fmt.Errorf("failed to add score: %w", err)
	}
	return int(total), nil
}

// StageScores queues one round's deltas on w. Every delta is checked before
// anything is queued, so a bad one leaves w untouched.
func (b *Board) StageScores(w domain.StateWriter, gameID int64, deltas map[int64]int) error {
	for playerID, delta := range deltas {
		if delta < 0 {
			return fmt.Errorf("%w: %d for player %d", domain.ErrInvalidDelta, delta, playerID)
		}
	}
	for playerID, delta := range deltas {
		w.IncrBy(scoreKey(gameID, playerID), int64(delta), b.ttl)
	}
	return nil
}

func (b *Board) TotalScore(ctx context.Context, gameID, playerID int64) (int, error) {
	raw, found, err := b.store.Get(ctx, scoreKey(gameID, playerID))
	if err != nil {
		return 0, fmt.Errorf("failed to read score: %w", err)
	}
	if !found {
		return 0, nil
	}
	total, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt score for player %d: %w", playerID, err)
	}
	return total, nil
}

func (b *Board) Totals(ctx context.Context, gameID int64, players []int64) (map[int64]int, error) {
	totals := make(map[int64]int, len(players))
	for _, id := range players {
		total, err := b.TotalScore(ctx, gameID, id)
		if err != nil {
			return nil, err
		}
		totals[id] = total
	}
	return totals, nil
}
