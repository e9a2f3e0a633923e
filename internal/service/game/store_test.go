package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iamasit07/colorguess/backend/internal/domain"
)

// memEntities is an in-memory EntityStore and ColorCatalog.
type memEntities struct {
	mu      sync.Mutex
	colors  []domain.Color
	games   map[int64]*domain.Game
	cards   []domain.Card
	choices map[int64][]domain.Choice // card id -> choices
	nextID  int64
}

func newMemEntities(colors []domain.Color) *memEntities {
	return &memEntities{
		colors:  colors,
		games:   make(map[int64]*domain.Game),
		choices: make(map[int64][]domain.Choice),
		nextID:  1000,
	}
}

func (m *memEntities) addGame(id int64, players ...domain.Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := append([]domain.Player(nil), players...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	m.games[id] = &domain.Game{ID: id, Players: sorted, Status: domain.StatusPending, CreatedAt: time.Now()}
}

func (m *memEntities) ListColors(context.Context) ([]domain.Color, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Color(nil), m.colors...), nil
}

func (m *memEntities) GetGame(_ context.Context, gameID int64) (*domain.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrGameNotFound, gameID)
	}
	cp := *g
	cp.Players = append([]domain.Player(nil), g.Players...)
	return &cp, nil
}

func (m *memEntities) DealCards(_ context.Context, gameID int64, playerIDs []int64) ([]domain.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var dealt []domain.Card
	for _, pid := range playerIDs {
		m.nextID++
		card := domain.Card{ID: m.nextID, GameID: gameID, PlayerID: pid}
		m.cards = append(m.cards, card)
		dealt = append(dealt, card)
	}
	m.games[gameID].Status = domain.StatusActive
	return dealt, nil
}

func (m *memEntities) CurrentCard(_ context.Context, gameID, playerID int64) (*domain.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.cards) - 1; i >= 0; i-- {
		if m.cards[i].GameID == gameID && m.cards[i].PlayerID == playerID {
			card := m.cards[i]
			return &card, nil
		}
	}
	return nil, nil
}

func (m *memEntities) AppendChoice(_ context.Context, cardID int64, colorIDs []int64) (*domain.Choice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	choice := domain.Choice{ID: m.nextID, CardID: cardID, Colors: append([]int64(nil), colorIDs...), CreatedAt: time.Now()}
	m.choices[cardID] = append(m.choices[cardID], choice)
	return &choice, nil
}

func (m *memEntities) LatestChoice(_ context.Context, cardID int64) (*domain.Choice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.choices[cardID]
	if len(list) == 0 {
		return nil, nil
	}
	choice := list[len(list)-1]
	return &choice, nil
}

func (m *memEntities) FinishGame(_ context.Context, gameID int64, winnerID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.games[gameID]
	g.Status = domain.StatusFinished
	g.WinnerID = winnerID
	now := time.Now()
	g.FinishedAt = &now
	return nil
}

func (m *memEntities) cardCount(gameID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.cards {
		if c.GameID == gameID {
			n++
		}
	}
	return n
}

func (m *memEntities) choiceCount(gameID, playerID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.cards {
		if c.GameID == gameID && c.PlayerID == playerID {
			n += len(m.choices[c.ID])
		}
	}
	return n
}

var errInjected = errors.New("injected failure")

// flakyEntities fails the first DealCards or FinishGame calls.
type flakyEntities struct {
	*memEntities
	dealFailures   int
	finishFailures int
}

func (f *flakyEntities) DealCards(ctx context.Context, gameID int64, playerIDs []int64) ([]domain.Card, error) {
	if f.dealFailures > 0 {
		f.dealFailures--
		return nil, errInjected
	}
	return f.memEntities.DealCards(ctx, gameID, playerIDs)
}

func (f *flakyEntities) FinishGame(ctx context.Context, gameID int64, winnerID *int64) error {
	if f.finishFailures > 0 {
		f.finishFailures--
		return errInjected
	}
	return f.memEntities.FinishGame(ctx, gameID, winnerID)
}

// flakyRounds fails the first StageRound calls.
type flakyRounds struct {
	RoundService
	failures int
}

func (f *flakyRounds) StageRound(ctx context.Context, w domain.StateWriter, gameID int64) error {
	if f.failures > 0 {
		f.failures--
		return errInjected
	}
	return f.RoundService.StageRound(ctx, w, gameID)
}

// flakyState fails the first Atomic calls after fn has queued its writes.
type flakyState struct {
	StateStore
	failures int
}

func (f *flakyState) Atomic(ctx context.Context, fn func(w domain.StateWriter) error) error {
	if f.failures > 0 {
		f.failures--
		return f.StateStore.Atomic(ctx, func(w domain.StateWriter) error {
			if err := fn(w); err != nil {
				return err
			}
			return errInjected
		})
	}
	return f.StateStore.Atomic(ctx, fn)
}
