package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iamasit07/colorguess/backend/internal/domain"
	"github.com/iamasit07/colorguess/backend/internal/service/game"
	"github.com/rs/zerolog"
)

// Game is the part of the coordinator the console drives.
type Game interface {
	SubmitChoice(ctx context.Context, gameID, playerID int64, colors []int64) (*game.SubmitResult, error)
	IsRoundComplete(ctx context.Context, gameID int64) (bool, error)
	SettleRound(ctx context.Context, gameID int64) (*domain.RoundResult, error)
	Status(ctx context.Context, gameID int64) (*game.GameView, error)
}

type ColorCatalog interface {
	ListColors(ctx context.Context) ([]domain.Color, error)
}

// settleAttempts bounds back-to-back settle failures before Play gives up.
const settleAttempts = 3

// Console plays a game on a terminal: it prompts the turn holder, submits the
// typed colors and reports each settled round.
type Console struct {
	game    Game
	catalog ColorCatalog
	choices int
	in      *bufio.Scanner
	out     io.Writer
	logger  zerolog.Logger

	heading lipgloss.Style
	winner  lipgloss.Style
	warning lipgloss.Style
}

func New(g Game, catalog ColorCatalog, choices int, in io.Reader, out io.Writer, logger zerolog.Logger) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		game:    g,
		catalog: catalog,
		choices: choices,
		in:      bufio.NewScanner(in),
		out:     out,
		logger:  logger.With().Str("component", "console").Logger(),
		heading: r.NewStyle().Bold(true),
		winner:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		warning: r.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

// Play runs until the game ends or input runs out.
func (c *Console) Play(ctx context.Context, gameID int64) (domain.Outcome, error) {
	colors, err := c.catalog.ListColors(ctx)
	if err != nil {
		return domain.Outcome{}, err
	}

	names := make(map[int64]string, len(colors))
	for _, col := range colors {
		names[col.ID] = col.Name
	}

	failedSettles := 0
	for {
		if err := ctx.Err(); err != nil {
			return domain.Outcome{}, err
		}

		view, err := c.game.Status(ctx, gameID)
		if err != nil {
			return domain.Outcome{}, err
		}
		if view.Status == domain.StatusFinished {
			fmt.Fprintln(c.out, "This game is already over.")
			return finishedOutcome(view), nil
		}

		complete, err := c.game.IsRoundComplete(ctx, gameID)
		if err != nil {
			return domain.Outcome{}, err
		}
		if complete {
			result, err := c.game.SettleRound(ctx, gameID)
			if err != nil {
				failedSettles++
				if game.IsRetryable(err) && failedSettles < settleAttempts {
					c.logger.Warn().Err(err).Int64("game_id", gameID).Msg("settle failed, retrying")
					continue
				}
				return domain.Outcome{}, fmt.Errorf("failed to settle round: %w", err)
			}
			failedSettles = 0
			c.report(view, result, names)
			if result.Outcome.IsTerminal() {
				return result.Outcome, nil
			}
			continue
		}

		c.prompt(view, colors)
		if !c.in.Scan() {
			if err := c.in.Err(); err != nil {
				return domain.Outcome{}, err
			}
			return domain.Outcome{}, io.ErrUnexpectedEOF
		}

		selection, err := parseSelection(c.in.Text())
		if err != nil {
			fmt.Fprintln(c.out, c.warning.Render(err.Error()))
			continue
		}

		if _, err := c.game.SubmitChoice(ctx, gameID, view.CurrentTurn, selection); err != nil {
			if game.IsRetryable(err) {
				fmt.Fprintln(c.out, c.warning.Render(err.Error()))
				continue
			}
			return domain.Outcome{}, err
		}
	}
}

func (c *Console) prompt(view *game.GameView, colors []domain.Color) {
	fmt.Fprintln(c.out, c.heading.Render(fmt.Sprintf("Round %d/%d - %s's turn", view.Round, view.MaxRounds, playerName(view.Players, view.CurrentTurn))))

	parts := make([]string, len(colors))
	for i, col := range colors {
		parts[i] = fmt.Sprintf("%d:%s", col.ID, col.Name)
	}
	fmt.Fprintln(c.out, strings.Join(parts, "  "))

	example := make([]string, c.choices)
	for i := range example {
		example[i] = strconv.Itoa(i + 1)
	}
	fmt.Fprintf(c.out, "Choose %d of the above colors like this: %s\n> ", c.choices, strings.Join(example, " "))
}

func (c *Console) report(view *game.GameView, result *domain.RoundResult, names map[int64]string) {
	fmt.Fprintln(c.out, c.heading.Render(fmt.Sprintf("Round %d results", result.Round)))

	for _, pr := range result.Players {
		fmt.Fprintf(c.out, "%s chose: %s\n", playerName(view.Players, pr.PlayerID), colorNames(pr.Choice, names))
	}
	fmt.Fprintf(c.out, "The actual ones: %s\n", strings.Join(result.TargetNames, "-"))
	for _, pr := range result.Players {
		fmt.Fprintf(c.out, "%s score: %d (+%d)\n", playerName(view.Players, pr.PlayerID), pr.Total, pr.RoundScore)
	}

	switch result.Outcome.Kind {
	case domain.OutcomeWin:
		fmt.Fprintln(c.out, c.winner.Render(fmt.Sprintf("%s wins!", playerName(view.Players, result.Outcome.WinnerID))))
	case domain.OutcomeNoWinner:
		fmt.Fprintln(c.out, c.heading.Render("Nobody won!"))
	}
}

func parseSelection(line string) ([]int64, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("enter color ids separated by spaces")
	}
	ids := make([]int64, len(fields))
	for i, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a color id", f)
		}
		ids[i] = id
	}
	return ids, nil
}

func finishedOutcome(view *game.GameView) domain.Outcome {
	if view.WinnerID != nil {
		return domain.Outcome{Kind: domain.OutcomeWin, WinnerID: *view.WinnerID}
	}
	return domain.Outcome{Kind: domain.OutcomeNoWinner}
}

// colorNames joins the names of ids with "-", falling back to the id.
func colorNames(ids []int64, names map[int64]string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		if name, ok := names[id]; ok {
			parts[i] = name
		} else {
			parts[i] = strconv.FormatInt(id, 10)
		}
	}
	return strings.Join(parts, "-")
}

func playerName(players []domain.Player, id int64) string {
	for _, p := range players {
		if p.ID == id {
			return p.Name
		}
	}
	return fmt.Sprintf("player %d", id)
}
