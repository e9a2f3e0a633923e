package turn

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/iamasit07/colorguess/backend/internal/domain"
	"github.com/rs/zerolog"
)

const (
	keyPrefix      = "G"
	maxCASAttempts = 5
)

type StateStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, keys ...string) error
	CompareAndSet(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, error)
}

// Tracker keeps whose turn it is in each game. Player orderings are passed
// per call; the tracker holds no per-game state of its own.
type Tracker struct {
	store  StateStore
	ttl    time.Duration
	logger zerolog.Logger
}

func NewTracker(store StateStore, ttl time.Duration, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "turn").Logger(),
	}
}

func turnKey(gameID int64) string {
	return fmt.Sprintf("%s:%d", keyPrefix, gameID)
}

// stored reads the raw turn state. The holder is nil when nothing usable is
// stored; raw is what the CAS must match.
func (t *Tracker) stored(ctx context.Context, gameID int64) (holder *int64, raw string, err error) {
	raw, found, err := t.store.Get(ctx, turnKey(gameID))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read turn state: %w", err)
	}
	if !found {
		return nil, "", nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		t.logger.Warn().Int64("game_id", gameID).Str("value", raw).Msg("unreadable turn state, using first player")
		return nil, raw, nil
	}
	return &id, raw, nil
}

// Current returns the player holding the turn. With nothing stored, or a
// holder that is not in players, the first player holds it.
func (t *Tracker) Current(ctx context.Context, gameID int64, players []int64) (int64, error) {
	if len(players) == 0 {
		return 0, domain.ErrNoPlayers
	}
	holder, _, err := t.stored(ctx, gameID)
	if err != nil {
		return 0, err
	}
	return t.resolve(gameID, holder, players), nil
}

// resolve maps the stored holder onto players. Current and Advance share it,
// so whoever Current reports is the player Advance moves away from.
func (t *Tracker) resolve(gameID int64, holder *int64, players []int64) int64 {
	if holder == nil {
		return players[0]
	}
	if !contains(players, *holder) {
		t.logger.Warn().Int64("game_id", gameID).Int64("holder", *holder).Msg("turn holder not in game, using first player")
		return players[0]
	}
	return *holder
}

// Advance hands the turn to the next player in order and returns them. The
// move starts from the holder Current reports, so a stale holder first
// resolves to the first player and the turn then passes to the second.
func (t *Tracker) Advance(ctx context.Context, gameID int64, players []int64) (int64, error) {
	if len(players) == 0 {
		return 0, domain.ErrNoPlayers
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		holder, raw, err := t.stored(ctx, gameID)
		if err != nil {
			return 0, err
		}
		next := domain.NextPlayer(players, t.resolve(gameID, holder, players))

		ok, err := t.store.CompareAndSet(ctx, turnKey(gameID), raw, strconv.FormatInt(next, 10), t.ttl)
		if err != nil {
			return 0, fmt.Errorf("failed to store turn: %w", err)
		}
		if ok {
			return next, nil
		}
		t.logger.Debug().Int64("game_id", gameID).Int("attempt", attempt+1).Msg("turn changed underneath, retrying")
	}
	return 0, fmt.Errorf("%w: turn of game %d", domain.ErrConcurrentUpdate, gameID)
}

// StageAdvance is Advance with the write queued on w instead of applied. The
// caller must hold the game's lock until w is applied.
func (t *Tracker) StageAdvance(ctx context.Context, w domain.StateWriter, gameID int64, players []int64) (int64, error) {
	current, err := t.Current(ctx, gameID, players)
	if err != nil {
		return 0, err
	}
	next := domain.NextPlayer(players, current)
	w.Set(turnKey(gameID), strconv.FormatInt(next, 10), t.ttl)
	return next, nil
}

// StageReset queues Reset on w.
func (t *Tracker) StageReset(w domain.StateWriter, gameID int64) {
	w.Del(turnKey(gameID))
}

// Reset clears the stored turn so the first player holds it again.
func (t *Tracker) Reset(ctx context.Context, gameID int64) error {
	if err := t.store.Del(ctx, turnKey(gameID)); err != nil {
		return fmt.Errorf("failed to reset turn: %w", err)
	}
	return nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
