package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iamasit07/colorguess/backend/internal/domain"
	"github.com/lib/pq"
)

type GameRepo struct {
	DB *sql.DB
}

func NewGameRepo(db *sql.DB) *GameRepo {
	return &GameRepo{DB: db}
}

// CreateGame creates a pending game with a fixed player set.
func (r *GameRepo) CreateGame(ctx context.Context, playerIDs []int64) (int64, error) {
	if len(playerIDs) == 0 {
		return 0, domain.ErrNoPlayers
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var gameID int64
	err = tx.QueryRowContext(ctx, `INSERT INTO games (status) VALUES ($1) RETURNING id;`, domain.StatusPending).Scan(&gameID)
	if err != nil {
		return 0, fmt.Errorf("failed to create game: %w", err)
	}

	for _, playerID := range playerIDs {
		_, err := tx.ExecContext(ctx, `INSERT INTO game_players (game_id, player_id) VALUES ($1, $2);`, gameID, playerID)
		if err != nil {
			return 0, fmt.Errorf("failed to add player %d to game: %w", playerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return gameID, nil
}

// GetGame loads a game with its players in ascending id order, which is the
// turn order.
func (r *GameRepo) GetGame(ctx context.Context, gameID int64) (*domain.Game, error) {
	query := `
	SELECT id, status, winner_id, created_at, finished_at
	FROM games
	WHERE id = $1;
	`

	var game domain.Game
	var winnerID sql.NullInt64
	var finishedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, gameID).Scan(&game.ID, &game.Status, &winnerID, &game.CreatedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrGameNotFound, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game by ID: %w", err)
	}
	if winnerID.Valid {
		id := winnerID.Int64
		game.WinnerID = &id
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		game.FinishedAt = &t
	}

	rows, err := r.DB.QueryContext(ctx, `
	SELECT p.id, p.name
	FROM players p
	JOIN game_players gp ON gp.player_id = p.id
	WHERE gp.game_id = $1
	ORDER BY p.id;
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query game players: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		game.Players = append(game.Players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game players: %w", err)
	}

	return &game, nil
}

// DealCards gives every player a fresh card and marks the game active.
func (r *GameRepo) DealCards(ctx context.Context, gameID int64, playerIDs []int64) ([]domain.Card, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cards := make([]domain.Card, 0, len(playerIDs))
	for _, playerID := range playerIDs {
		card := domain.Card{GameID: gameID, PlayerID: playerID}
		err := tx.QueryRowContext(ctx, `INSERT INTO cards (game_id, player_id) VALUES ($1, $2) RETURNING id;`, gameID, playerID).Scan(&card.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create card for player %d: %w", playerID, err)
		}
		cards = append(cards, card)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE games SET status = $2 WHERE id = $1;`, gameID, domain.StatusActive); err != nil {
		return nil, fmt.Errorf("failed to activate game: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return cards, nil
}

// CurrentCard returns the player's most recent card in the game, or nil.
func (r *GameRepo) CurrentCard(ctx context.Context, gameID, playerID int64) (*domain.Card, error) {
	query := `
	SELECT id, game_id, player_id
	FROM cards
	WHERE game_id = $1 AND player_id = $2
	ORDER BY id DESC
	LIMIT 1;
	`

	var card domain.Card
	err := r.DB.QueryRowContext(ctx, query, gameID, playerID).Scan(&card.ID, &card.GameID, &card.PlayerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current card: %w", err)
	}
	return &card, nil
}

// AppendChoice records a new choice on the card.
func (r *GameRepo) AppendChoice(ctx context.Context, cardID int64, colorIDs []int64) (*domain.Choice, error) {
	query := `
	INSERT INTO choices (card_id, color_ids)
	VALUES ($1, $2)
	RETURNING id, created_at;
	`

	choice := &domain.Choice{CardID: cardID, Colors: append([]int64(nil), colorIDs...)}
	if err := r.DB.QueryRowContext(ctx, query, cardID, pq.Array(colorIDs)).Scan(&choice.ID, &choice.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to append choice: %w", err)
	}
	return choice, nil
}

// LatestChoice returns the last choice on the card, or nil when it has none.
func (r *GameRepo) LatestChoice(ctx context.Context, cardID int64) (*domain.Choice, error) {
	query := `
	SELECT id, card_id, color_ids, created_at
	FROM choices
	WHERE card_id = $1
	ORDER BY id DESC
	LIMIT 1;
	`

	var choice domain.Choice
	err := r.DB.QueryRowContext(ctx, query, cardID).Scan(&choice.ID, &choice.CardID, pq.Array(&choice.Colors), &choice.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest choice: %w", err)
	}
	return &choice, nil
}

// FinishGame stores the terminal outcome. winnerID is nil when nobody won.
func (r *GameRepo) FinishGame(ctx context.Context, gameID int64, winnerID *int64) error {
	query := `
	UPDATE games
	SET status = $2, winner_id = $3, finished_at = NOW()
	WHERE id = $1;
	`

	if _, err := r.DB.ExecContext(ctx, query, gameID, domain.StatusFinished, winnerID); err != nil {
		return fmt.Errorf("failed to finish game: %w", err)
	}
	return nil
}

// ActiveGameIDs lists games started before the cutoff that have not finished.
func (r *GameRepo) ActiveGameIDs(ctx context.Context, startedBefore time.Time) ([]int64, error) {
	query := `
	SELECT id
	FROM games
	WHERE status = $1 AND created_at < $2
	ORDER BY id;
	`

	rows, err := r.DB.QueryContext(ctx, query, domain.StatusActive, startedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to query active games: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
