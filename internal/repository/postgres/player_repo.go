package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iamasit07/colorguess/backend/internal/domain"
)

type PlayerRepo struct {
	DB *sql.DB
}

func NewPlayerRepo(db *sql.DB) *PlayerRepo {
	return &PlayerRepo{DB: db}
}

func (r *PlayerRepo) CreatePlayer(ctx context.Context, name string) (*domain.Player, error) {
	query := `INSERT INTO players (name) VALUES ($1) RETURNING id;`

	p := &domain.Player{Name: name}
	if err := r.DB.QueryRowContext(ctx, query, name).Scan(&p.ID); err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	return p, nil
}
