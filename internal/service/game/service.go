package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/iamasit07/colorguess/backend/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	keyPrefix         = "G"
	maxParallelLoads  = 8
	releaseLockBudget = 2 * time.Second
)

type EntityStore interface {
	GetGame(ctx context.Context, gameID int64) (*domain.Game, error)
	DealCards(ctx context.Context, gameID int64, playerIDs []int64) ([]domain.Card, error)
	CurrentCard(ctx context.Context, gameID, playerID int64) (*domain.Card, error)
	AppendChoice(ctx context.Context, cardID int64, colorIDs []int64) (*domain.Choice, error)
	LatestChoice(ctx context.Context, cardID int64) (*domain.Choice, error)
	FinishGame(ctx context.Context, gameID int64, winnerID *int64) error
}

type ColorCatalog interface {
	ListColors(ctx context.Context) ([]domain.Color, error)
}

// StateStore is the shared game state. Every write the coordinator makes goes
// through Atomic so that a failed call leaves the state as it was.
type StateStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Atomic(ctx context.Context, fn func(w domain.StateWriter) error) error
	Lock(ctx context.Context, key string, ttl, wait time.Duration) (func(context.Context) error, error)
}

type RoundService interface {
	StageRound(ctx context.Context, w domain.StateWriter, gameID int64) error
	CurrentTarget(ctx context.Context, gameID int64) ([]int64, error)
	CurrentTargetNames(ctx context.Context, gameID int64) ([]string, error)
}

type TurnTracker interface {
	Current(ctx context.Context, gameID int64, players []int64) (int64, error)
	StageAdvance(ctx context.Context, w domain.StateWriter, gameID int64, players []int64) (int64, error)
	StageReset(w domain.StateWriter, gameID int64)
}

type ScoreBoard interface {
	StageScores(w domain.StateWriter, gameID int64, deltas map[int64]int) error
	Totals(ctx context.Context, gameID int64, players []int64) (map[int64]int, error)
}

// Rules are fixed per deployment.
type Rules struct {
	ColorChoices int // COLOR_CHOICES_NUMBER
	MaxRounds    int // CHOICES_CARD_NUMBER
	TurnPolicy   domain.TurnPolicy
	StateTTL     time.Duration
	LockTTL      time.Duration
	LockWait     time.Duration
}

// Coordinator drives games round by round. It keeps no game state in
// memory, so any number of processes can serve the same game.
type Coordinator struct {
	entities EntityStore
	catalog  ColorCatalog
	state    StateStore
	rounds   RoundService
	turns    TurnTracker
	scores   ScoreBoard
	rules    Rules
	logger   zerolog.Logger
}

func NewCoordinator(entities EntityStore, catalog ColorCatalog, state StateStore, rounds RoundService, turns TurnTracker, scores ScoreBoard, rules Rules, logger zerolog.Logger) *Coordinator {
	if rules.TurnPolicy == "" {
		rules.TurnPolicy = domain.TurnPolicyContinue
	}
	return &Coordinator{
		entities: entities,
		catalog:  catalog,
		state:    state,
		rounds:   rounds,
		turns:    turns,
		scores:   scores,
		rules:    rules,
		logger:   logger.With().Str("component", "game").Logger(),
	}
}

func roundKey(gameID int64) string       { return fmt.Sprintf("%s:%d:round", keyPrefix, gameID) }
func submissionsKey(gameID int64) string { return fmt.Sprintf("%s:%d:submissions", keyPrefix, gameID) }
func statusKey(gameID int64) string      { return fmt.Sprintf("%s:%d:status", keyPrefix, gameID) }
func winnerKey(gameID int64) string      { return fmt.Sprintf("%s:%d:winner", keyPrefix, gameID) }
func lockKey(gameID int64) string        { return fmt.Sprintf("%s:%d:lock", keyPrefix, gameID) }

// SubmitResult is what a successful submission reports back to the driver.
type SubmitResult struct {
	Choice        domain.Choice
	NextTurn      int64
	Submitted     int
	RoundComplete bool
}

// GameView is a read-only snapshot for drivers.
type GameView struct {
	GameID      int64
	Status      domain.GameStatus
	Round       int
	MaxRounds   int
	CurrentTurn int64
	Submitted   int
	Players     []domain.Player
	Totals      map[int64]int
	WinnerID    *int64
}

// withLock runs fn while holding the game's lock.
func (c *Coordinator) withLock(ctx context.Context, gameID int64, fn func() error) error {
	release, err := c.state.Lock(ctx, lockKey(gameID), c.rules.LockTTL, c.rules.LockWait)
	if err != nil {
		return err
	}
	defer func() {
		// release even when ctx is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseLockBudget)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			c.logger.Error().Err(err).Int64("game_id", gameID).Msg("failed to release game lock")
		}
	}()
	return fn()
}

// StartGame opens round 1 and deals a fresh card to every player. The shared
// state is written in one step and the cards are dealt last: until they are,
// the game stays pending and StartGame can simply be called again.
func (c *Coordinator) StartGame(ctx context.Context, gameID int64) error {
	return c.withLock(ctx, gameID, func() error {
		game, err := c.entities.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if len(game.Players) == 0 {
			return fmt.Errorf("%w: game %d", domain.ErrNoPlayers, gameID)
		}
		if game.Status != domain.StatusPending {
			return fmt.Errorf("%w: game %d is %s", domain.ErrGameAlreadyStarted, gameID, game.Status)
		}

		err = c.state.Atomic(ctx, func(w domain.StateWriter) error {
			if err := c.rounds.StageRound(ctx, w, gameID); err != nil {
				return err
			}
			c.turns.StageReset(w, gameID)
			w.Del(submissionsKey(gameID), winnerKey(gameID))
			w.Set(roundKey(gameID), "1", c.rules.StateTTL)
			w.Set(statusKey(gameID), string(domain.StatusActive), c.rules.StateTTL)
			return nil
		})
		if err != nil {
			return err
		}

		if _, err := c.entities.DealCards(ctx, gameID, game.PlayerIDs()); err != nil {
			return err
		}

		c.logger.Info().Int64("game_id", gameID).Int("players", len(game.Players)).Msg("game started")
		return nil
	})
}

// SubmitChoice records the player's guess for the current round and passes
// the turn on. A rejected submission changes nothing, the driver may retry.
func (c *Coordinator) SubmitChoice(ctx context.Context, gameID, playerID int64, colors []int64) (*SubmitResult, error) {
	var result *SubmitResult
	err := c.withLock(ctx, gameID, func() error {
		game, err := c.activeGame(ctx, gameID)
		if err != nil {
			return err
		}
		players := game.PlayerIDs()

		if _, err := c.rounds.CurrentTarget(ctx, gameID); err != nil {
			return err
		}

		current, err := c.turns.Current(ctx, gameID, players)
		if err != nil {
			return err
		}
		if current != playerID {
			return fmt.Errorf("%w: player %d holds the turn", domain.ErrNotYourTurn, current)
		}

		submitted, err := c.readInt(ctx, submissionsKey(gameID))
		if err != nil {
			return err
		}
		if submitted >= len(players) {
			return fmt.Errorf("%w: settle round before submitting", domain.ErrRoundComplete)
		}

		catalog, err := c.catalogByID(ctx)
		if err != nil {
			return err
		}
		if err := domain.ValidateSelection(colors, c.rules.ColorChoices, catalog); err != nil {
			return fmt.Errorf("%w: want %d known color ids, got %v", err, c.rules.ColorChoices, colors)
		}

		card, err := c.entities.CurrentCard(ctx, gameID, playerID)
		if err != nil {
			return err
		}
		if card == nil {
			return fmt.Errorf("%w: player %d has no card", domain.ErrNoActiveRound, playerID)
		}

		// If the state write below fails the player keeps the turn, and the
		// choice appended on retry supersedes this one.
		choice, err := c.entities.AppendChoice(ctx, card.ID, colors)
		if err != nil {
			return err
		}

		var next int64
		err = c.state.Atomic(ctx, func(w domain.StateWriter) error {
			var err error
			if next, err = c.turns.StageAdvance(ctx, w, gameID, players); err != nil {
				return err
			}
			w.IncrBy(submissionsKey(gameID), 1, c.rules.StateTTL)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to record submission: %w", err)
		}

		result = &SubmitResult{
			Choice:        *choice,
			NextTurn:      next,
			Submitted:     submitted + 1,
			RoundComplete: submitted+1 >= len(players),
		}
		c.logger.Debug().
			Int64("game_id", gameID).
			Int64("player_id", playerID).
			Int64("next_turn", next).
			Int("submitted", result.Submitted).
			Msg("choice submitted")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// IsRoundComplete reports whether every player has submitted this round.
func (c *Coordinator) IsRoundComplete(ctx context.Context, gameID int64) (bool, error) {
	game, err := c.entities.GetGame(ctx, gameID)
	if err != nil {
		return false, err
	}
	submitted, err := c.readInt(ctx, submissionsKey(gameID))
	if err != nil {
		return false, err
	}
	return len(game.Players) > 0 && submitted >= len(game.Players), nil
}

// SettleRound scores every player's latest choice against the target, then
// either ends the game or opens the next round. The scores and the move to
// the next round are written together, so a failed settlement can be retried
// without counting the round twice.
func (c *Coordinator) SettleRound(ctx context.Context, gameID int64) (*domain.RoundResult, error) {
	var result *domain.RoundResult
	err := c.withLock(ctx, gameID, func() error {
		game, err := c.activeGame(ctx, gameID)
		if err != nil {
			return err
		}
		players := game.PlayerIDs()

		submitted, err := c.readInt(ctx, submissionsKey(gameID))
		if err != nil {
			return err
		}
		if submitted < len(players) {
			return fmt.Errorf("%w: %d of %d submitted", domain.ErrRoundIncomplete, submitted, len(players))
		}

		target, err := c.rounds.CurrentTarget(ctx, gameID)
		if err != nil {
			return err
		}
		names, err := c.rounds.CurrentTargetNames(ctx, gameID)
		if err != nil {
			return err
		}
		round, err := c.readInt(ctx, roundKey(gameID))
		if err != nil {
			return err
		}
		if round == 0 {
			round = 1
		}

		choices, err := c.latestChoices(ctx, gameID, players)
		if err != nil {
			return err
		}
		totals, err := c.scores.Totals(ctx, gameID, players)
		if err != nil {
			return err
		}

		result = &domain.RoundResult{
			GameID:      gameID,
			Round:       round,
			Target:      target,
			TargetNames: names,
			Players:     make([]domain.PlayerRoundResult, 0, len(players)),
		}
		deltas := make(map[int64]int, len(players))
		for i, playerID := range players {
			roundScore := domain.ScoreChoice(choices[i].Colors, target)
			deltas[playerID] = roundScore
			result.Players = append(result.Players, domain.PlayerRoundResult{
				PlayerID:   playerID,
				Choice:     choices[i].Colors,
				RoundScore: roundScore,
				Total:      totals[playerID] + roundScore,
			})
		}

		switch winner, ok := domain.FindWinner(result.Players, c.rules.ColorChoices); {
		case ok:
			result.Outcome = domain.Outcome{Kind: domain.OutcomeWin, WinnerID: winner}
		case round >= c.rules.MaxRounds:
			result.Outcome = domain.Outcome{Kind: domain.OutcomeNoWinner}
		default:
			result.Outcome = domain.Outcome{Kind: domain.OutcomeContinue}
		}

		err = c.state.Atomic(ctx, func(w domain.StateWriter) error {
			return c.stageSettlement(ctx, w, gameID, players, round, result.Outcome, deltas)
		})
		if err != nil {
			return err
		}

		if result.Outcome.IsTerminal() {
			return c.finish(ctx, gameID, result.Outcome, round)
		}
		c.logger.Info().Int64("game_id", gameID).Int("round", round+1).Msg("next round")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// latestChoices loads each player's last choice, in player order.
func (c *Coordinator) latestChoices(ctx context.Context, gameID int64, players []int64) ([]domain.Choice, error) {
	choices := make([]domain.Choice, len(players))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, playerID := range players {
		g.Go(func() error {
			card, err := c.entities.CurrentCard(gctx, gameID, playerID)
			if err != nil {
				return err
			}
			if card == nil {
				return fmt.Errorf("player %d has no card in game %d", playerID, gameID)
			}
			choice, err := c.entities.LatestChoice(gctx, card.ID)
			if err != nil {
				return err
			}
			if choice == nil {
				return fmt.Errorf("%w: player %d has no choice", domain.ErrRoundIncomplete, playerID)
			}
			choices[i] = *choice
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return choices, nil
}

// stageSettlement queues the round's scores and what follows them: either the
// end of the game or a new target, a cleared submission count and the turn
// policy for the next round.
func (c *Coordinator) stageSettlement(ctx context.Context, w domain.StateWriter, gameID int64, players []int64, round int, outcome domain.Outcome, deltas map[int64]int) error {
	if err := c.scores.StageScores(w, gameID, deltas); err != nil {
		return err
	}

	switch outcome.Kind {
	case domain.OutcomeWin:
		w.Set(winnerKey(gameID), strconv.FormatInt(outcome.WinnerID, 10), c.rules.StateTTL)
		w.Set(statusKey(gameID), string(domain.StatusFinished), c.rules.StateTTL)
		return nil
	case domain.OutcomeNoWinner:
		w.Set(statusKey(gameID), string(domain.StatusFinished), c.rules.StateTTL)
		return nil
	}

	if err := c.rounds.StageRound(ctx, w, gameID); err != nil {
		return err
	}
	w.Del(submissionsKey(gameID))
	w.Set(roundKey(gameID), strconv.Itoa(round+1), c.rules.StateTTL)

	switch c.rules.TurnPolicy {
	case domain.TurnPolicyReset:
		c.turns.StageReset(w, gameID)
	case domain.TurnPolicyRotate:
		if _, err := c.turns.StageAdvance(ctx, w, gameID, players); err != nil {
			return err
		}
	}
	return nil
}

// finish persists a terminal outcome. The shared state already says the game
// is over; if this write fails, the next call on the game repeats it.
func (c *Coordinator) finish(ctx context.Context, gameID int64, outcome domain.Outcome, round int) error {
	var winnerID *int64
	if outcome.Kind == domain.OutcomeWin {
		id := outcome.WinnerID
		winnerID = &id
	}
	if err := c.entities.FinishGame(ctx, gameID, winnerID); err != nil {
		return err
	}

	event := c.logger.Info().Int64("game_id", gameID).Int("round", round)
	if winnerID != nil {
		event.Int64("winner_id", *winnerID).Msg("game won")
	} else {
		event.Msg("game over without winner")
	}
	return nil
}

// recoverFinish persists an outcome that reached the shared state but not the
// entity store.
func (c *Coordinator) recoverFinish(ctx context.Context, gameID int64) error {
	winnerID, err := c.storedWinner(ctx, gameID)
	if err != nil {
		return err
	}
	if err := c.entities.FinishGame(ctx, gameID, winnerID); err != nil {
		return err
	}
	c.logger.Warn().Int64("game_id", gameID).Msg("recovered unsaved game outcome")
	return nil
}

func (c *Coordinator) storedWinner(ctx context.Context, gameID int64) (*int64, error) {
	raw, found, err := c.state.Get(ctx, winnerKey(gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to read winner: %w", err)
	}
	if !found {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt winner %q for game %d: %w", raw, gameID, err)
	}
	return &id, nil
}

// Abandon closes a game that the entity store still lists as active while
// the shared state does not. A game whose state expired is closed with no
// winner; one whose end was never saved gets its stored outcome. It reports
// whether the game was closed.
func (c *Coordinator) Abandon(ctx context.Context, gameID int64) (bool, error) {
	closed := false
	err := c.withLock(ctx, gameID, func() error {
		game, err := c.entities.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if game.Status != domain.StatusActive {
			return nil
		}

		status, found, err := c.state.Get(ctx, statusKey(gameID))
		if err != nil {
			return fmt.Errorf("failed to read game status: %w", err)
		}
		if status == string(domain.StatusFinished) {
			if err := c.recoverFinish(ctx, gameID); err != nil {
				return err
			}
			closed = true
			return nil
		}
		if found {
			return nil
		}
		if _, found, err := c.state.Get(ctx, roundKey(gameID)); err != nil {
			return fmt.Errorf("failed to read round: %w", err)
		} else if found {
			return nil
		}

		if err := c.entities.FinishGame(ctx, gameID, nil); err != nil {
			return err
		}
		closed = true
		c.logger.Info().Int64("game_id", gameID).Msg("abandoned game closed")
		return nil
	})
	return closed, err
}

// Status reports the game without taking the lock.
func (c *Coordinator) Status(ctx context.Context, gameID int64) (*GameView, error) {
	game, err := c.entities.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	players := game.PlayerIDs()

	view := &GameView{
		GameID:    gameID,
		Status:    game.Status,
		MaxRounds: c.rules.MaxRounds,
		Players:   game.Players,
		WinnerID:  game.WinnerID,
	}

	// The shared state is ahead of the entity store only while a game is on.
	if game.Status == domain.StatusActive {
		if status, found, err := c.state.Get(ctx, statusKey(gameID)); err != nil {
			return nil, fmt.Errorf("failed to read game status: %w", err)
		} else if found {
			view.Status = domain.GameStatus(status)
		}
	}
	if view.Status == domain.StatusFinished && view.WinnerID == nil {
		if view.WinnerID, err = c.storedWinner(ctx, gameID); err != nil {
			return nil, err
		}
	}
	if view.Round, err = c.readInt(ctx, roundKey(gameID)); err != nil {
		return nil, err
	}
	if view.Submitted, err = c.readInt(ctx, submissionsKey(gameID)); err != nil {
		return nil, err
	}
	if view.Totals, err = c.scores.Totals(ctx, gameID, players); err != nil {
		return nil, err
	}
	if view.Status == domain.StatusActive {
		if view.CurrentTurn, err = c.turns.Current(ctx, gameID, players); err != nil {
			return nil, err
		}
	}
	return view, nil
}

// activeGame loads the game and fails unless it is being played. An outcome
// the entity store missed is saved on the way.
func (c *Coordinator) activeGame(ctx context.Context, gameID int64) (*domain.Game, error) {
	game, err := c.entities.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	switch game.Status {
	case domain.StatusFinished:
		return nil, fmt.Errorf("%w: game %d", domain.ErrGameOver, gameID)
	case domain.StatusPending:
		return nil, fmt.Errorf("%w: game %d not started", domain.ErrNoActiveRound, gameID)
	}

	status, found, err := c.state.Get(ctx, statusKey(gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to read game status: %w", err)
	}
	switch {
	case status == string(domain.StatusFinished):
		if err := c.recoverFinish(ctx, gameID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: game %d", domain.ErrGameOver, gameID)
	case !found:
		return nil, fmt.Errorf("%w: game %d has no round state", domain.ErrNoActiveRound, gameID)
	}
	return game, nil
}

func (c *Coordinator) catalogByID(ctx context.Context) (map[int64]string, error) {
	colors, err := c.catalog.ListColors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load color catalog: %w", err)
	}
	byID := make(map[int64]string, len(colors))
	for _, col := range colors {
		byID[col.ID] = col.Name
	}
	return byID, nil
}

// readInt reads an integer key, 0 when absent.
func (c *Coordinator) readInt(ctx context.Context, key string) (int, error) {
	raw, found, err := c.state.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !found {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt value %q at %s: %w", raw, key, err)
	}
	return n, nil
}

// IsRetryable reports whether err rejects a single call while leaving the
// game playable, so a driver should prompt again rather than stop.
func IsRetryable(err error) bool {
	for _, target := range []error{
		domain.ErrNotYourTurn,
		domain.ErrInvalidChoice,
		domain.ErrGameBusy,
		domain.ErrRoundComplete,
		domain.ErrRoundIncomplete,
		domain.ErrConcurrentUpdate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
