package round

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/iamasit07/colorguess/backend/internal/domain"
	"github.com/rs/zerolog"
)

const keyPrefix = "R"

type StateStore interface {
	ReplaceList(ctx context.Context, key string, values []string, ttl time.Duration) error
	ListRange(ctx context.Context, key string) ([]string, error)
}

type ColorCatalog interface {
	ListColors(ctx context.Context) ([]domain.Color, error)
}

// Service picks and serves the hidden target of each round.
type Service struct {
	store   StateStore
	catalog ColorCatalog
	choices int
	ttl     time.Duration
	logger  zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService builds the round service. choices is COLOR_CHOICES_NUMBER. A nil
// rng gets a time-seeded source.
func NewService(store StateStore, catalog ColorCatalog, choices int, ttl time.Duration, rng *rand.Rand, logger zerolog.Logger) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		store:   store,
		catalog: catalog,
		choices: choices,
		ttl:     ttl,
		logger:  logger.With().Str("component", "round").Logger(),
		rng:     rng,
	}
}

func targetKey(gameID int64) string {
	return fmt.Sprintf("%s:%d", keyPrefix, gameID)
}

// GenerateRound overwrites the game's target with a fresh sample of distinct
// colors. Calling it mid-round discards that round.
func (s *Service) GenerateRound(ctx context.Context, gameID int64) error {
	values, err := s.newTarget(ctx)
	if err != nil {
		return err
	}
	if err := s.store.ReplaceList(ctx, targetKey(gameID), values, s.ttl); err != nil {
		return fmt.Errorf("failed to store round target: %w", err)
	}

	s.logger.Debug().Int64("game_id", gameID).Msg("round target generated")
	return nil
}

// StageRound draws a new target like GenerateRound but only queues the write
// on w. Nothing is queued when the catalog is too small.
func (s *Service) StageRound(ctx context.Context, w domain.StateWriter, gameID int64) error {
	values, err := s.newTarget(ctx)
	if err != nil {
		return err
	}
	w.ReplaceList(targetKey(gameID), values, s.ttl)
	return nil
}

func (s *Service) newTarget(ctx context.Context) ([]string, error) {
	colors, err := s.catalog.ListColors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load color catalog: %w", err)
	}
	if len(colors) < s.choices {
		return nil, fmt.Errorf("%w: have %d colors, need %d", domain.ErrInsufficientCatalog, len(colors), s.choices)
	}

	target := s.sample(colors)
	values := make([]string, len(target))
	for i, id := range target {
		values[i] = strconv.FormatInt(id, 10)
	}
	return values, nil
}

// sample draws s.choices distinct ids without replacement (partial
// Fisher-Yates).
func (s *Service) sample(colors []domain.Color) []int64 {
	ids := make([]int64, len(colors))
	for i, c := range colors {
		ids[i] = c.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < s.choices; i++ {
		j := i + s.rng.Intn(len(ids)-i)
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids[:s.choices]
}

func (s *Service) CurrentTarget(ctx context.Context, gameID int64) ([]int64, error) {
	values, err := s.store.ListRange(ctx, targetKey(gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to read round target: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: game %d", domain.ErrNoActiveRound, gameID)
	}

	target := make([]int64, len(values))
	for i, v := range values {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: stored id %q", domain.ErrUnknownColor, v)
		}
		target[i] = id
	}
	return target, nil
}

// CurrentTargetNames resolves the target to color names, in target order.
func (s *Service) CurrentTargetNames(ctx context.Context, gameID int64) ([]string, error) {
	target, err := s.CurrentTarget(ctx, gameID)
	if err != nil {
		return nil, err
	}

	colors, err := s.catalog.ListColors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load color catalog: %w", err)
	}
	byID := make(map[int64]string, len(colors))
	for _, c := range colors {
		byID[c.ID] = c.Name
	}

	names := make([]string, len(target))
	for i, id := range target {
		name, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %d", domain.ErrUnknownColor, id)
		}
		names[i] = name
	}
	return names, nil
}
