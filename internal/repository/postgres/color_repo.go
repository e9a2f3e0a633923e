package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iamasit07/colorguess/backend/internal/domain"
)

type ColorRepo struct {
	DB *sql.DB
}

func NewColorRepo(db *sql.DB) *ColorRepo {
	return &ColorRepo{DB: db}
}

// ListColors returns the whole catalog ordered by id.
func (r *ColorRepo) ListColors(ctx context.Context) ([]domain.Color, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name FROM colors ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query colors: %w", err)
	}
	defer rows.Close()

	var colors []domain.Color
	for rows.Next() {
		var c domain.Color
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan color row: %w", err)
		}
		colors = append(colors, c)
	}
	return colors, rows.Err()
}

// SeedColors inserts the named colors, skipping names already present.
// Returns how many rows were added.
func (r *ColorRepo) SeedColors(ctx context.Context, names []string) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	added := 0
	for _, name := range names {
		res, err := tx.ExecContext(ctx, `INSERT INTO colors (name) VALUES ($1) ON CONFLICT (name) DO NOTHING;`, name)
		if err != nil {
			return 0, fmt.Errorf("failed to insert color %q: %w", name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return added, nil
}
