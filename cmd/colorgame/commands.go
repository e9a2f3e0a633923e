package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/coder/quartz"
	"github.com/iamasit07/colorguess/backend/internal/console"
	"github.com/iamasit07/colorguess/backend/internal/domain"
	"github.com/iamasit07/colorguess/backend/internal/repository/postgres"
	"github.com/iamasit07/colorguess/backend/internal/service/cleanup"
)

var defaultPalette = []string{"Red", "Blue", "Green", "Yellow", "Orange", "Purple", "Black", "White"}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Faint(true)
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// MigrateCmd applies the schema.
type MigrateCmd struct{}

func (c *MigrateCmd) Run() error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info().Msg("Running database migrations...")
	if err := postgres.RunMigrations(ctx, a.db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	a.logger.Info().Msg("Database migration completed successfully")
	return nil
}

// SeedColorsCmd fills the catalog. Existing names are kept.
type SeedColorsCmd struct {
	Names []string `kong:"arg,optional,help='Color names (defaults to the built-in palette)'"`
}

func (c *SeedColorsCmd) Run() error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	names := c.Names
	if len(names) == 0 {
		names = defaultPalette
	}
	added, err := a.colors.SeedColors(ctx, names)
	if err != nil {
		return err
	}

	a.logger.Info().Int("added", added).Int("requested", len(names)).Msg("Seeded colors")
	if total, err := a.colors.ListColors(ctx); err == nil && len(total) < a.cfg.ColorChoicesNumber {
		a.logger.Warn().Int("colors", len(total)).Int("required", a.cfg.ColorChoicesNumber).Msg("Catalog is too small to start a game")
	}
	return nil
}

// NewGameCmd registers the players and creates a pending game.
type NewGameCmd struct {
	Players []string `kong:"name='player',short='p',required,help='Player name, repeat once per seat (seat order is registration order)'"`
}

func (c *NewGameCmd) Run() error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(c.Players) != a.cfg.PlayersNumber {
		return fmt.Errorf("need exactly %d players (PLAYERS_NUMBER), got %d", a.cfg.PlayersNumber, len(c.Players))
	}

	ids := make([]int64, 0, len(c.Players))
	for _, name := range c.Players {
		p, err := a.players.CreatePlayer(ctx, name)
		if err != nil {
			return err
		}
		ids = append(ids, p.ID)
	}

	gameID, err := a.games.CreateGame(ctx, ids)
	if err != nil {
		return err
	}
	a.logger.Info().Int64("game_id", gameID).Ints64("players", ids).Msg("Created game")
	fmt.Println(gameID)
	return nil
}

// PlayCmd starts the game when it is still pending and plays it on stdin.
type PlayCmd struct {
	Game int64 `kong:"required,help='Game ID'"`
	Seed int64 `kong:"help='Deterministic seed for round targets (0 = random)'"`
}

func (c *PlayCmd) Run() error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	coord, err := a.coordinator(ctx, c.Seed)
	if err != nil {
		return err
	}

	view, err := coord.Status(ctx, c.Game)
	if err != nil {
		return err
	}
	if view.Status == domain.StatusPending {
		if err := coord.StartGame(ctx, c.Game); err != nil {
			return err
		}
		a.logger.Info().Int64("game_id", c.Game).Msg("Game started")
	}

	outcome, err := console.New(coord, a.colors, a.cfg.ColorChoicesNumber, os.Stdin, os.Stdout, a.logger).Play(ctx, c.Game)
	if err != nil {
		return err
	}
	a.logger.Info().Int64("game_id", c.Game).Str("outcome", string(outcome.Kind)).Int64("winner_id", outcome.WinnerID).Msg("Game over")
	return nil
}

// StatusCmd prints a snapshot of a game.
type StatusCmd struct {
	Game int64 `kong:"required,help='Game ID'"`
}

func (c *StatusCmd) Run() error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	coord, err := a.coordinator(ctx, 0)
	if err != nil {
		return err
	}
	view, err := coord.Status(ctx, c.Game)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Game %d", view.GameID)))
	fmt.Printf("%s %s\n", labelStyle.Render("status:"), view.Status)
	if view.Status == domain.StatusActive {
		fmt.Printf("%s %d/%d\n", labelStyle.Render("round:"), view.Round, view.MaxRounds)
		fmt.Printf("%s %d/%d\n", labelStyle.Render("submitted:"), view.Submitted, len(view.Players))
	}

	players := append([]domain.Player(nil), view.Players...)
	sort.SliceStable(players, func(i, j int) bool { return view.Totals[players[i].ID] > view.Totals[players[j].ID] })
	for _, p := range players {
		marker := "  "
		if view.Status == domain.StatusActive && p.ID == view.CurrentTurn {
			marker = "> "
		}
		if view.WinnerID != nil && p.ID == *view.WinnerID {
			marker = "* "
		}
		fmt.Printf("%s%-16s %d\n", marker, p.Name, view.Totals[p.ID])
	}
	return nil
}

// ReapCmd closes abandoned games once, or periodically with --interval.
type ReapCmd struct {
	MinAge   time.Duration `kong:"default='24h',help='Only consider games created at least this long ago'"`
	Interval time.Duration `kong:"default='0s',help='Repeat every interval until interrupted (0 = run once)'"`
}

func (c *ReapCmd) Run() error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	coord, err := a.coordinator(ctx, 0)
	if err != nil {
		return err
	}
	worker := cleanup.NewWorker(a.games, coord, c.MinAge, quartz.NewReal(), a.logger)

	if c.Interval > 0 {
		worker.Start(ctx, c.Interval)
		return nil
	}
	closed, err := worker.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("closed %d abandoned games\n", closed)
	return nil
}
