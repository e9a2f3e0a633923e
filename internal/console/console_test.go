package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/iamasit07/colorguess/backend/internal/domain"
	"github.com/iamasit07/colorguess/backend/internal/service/game"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGame plays two-player rounds against a fixed target.
type fakeGame struct {
	players   []domain.Player
	target    []int64
	maxRounds int

	round    int
	turn     int
	picks    map[int64][]int64
	totals   map[int64]int
	status   domain.GameStatus
	winnerID *int64

	settleErrs []error
	settles    int
}

func newFakeGame(target []int64, maxRounds int) *fakeGame {
	return &fakeGame{
		players:   []domain.Player{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}},
		target:    target,
		maxRounds: maxRounds,
		round:     1,
		picks:     map[int64][]int64{},
		totals:    map[int64]int{},
		status:    domain.StatusActive,
	}
}

func (f *fakeGame) SubmitChoice(_ context.Context, _, playerID int64, colors []int64) (*game.SubmitResult, error) {
	if f.players[f.turn].ID != playerID {
		return nil, domain.ErrNotYourTurn
	}
	if len(colors) != len(f.target) {
		return nil, domain.ErrInvalidChoice
	}
	for _, id := range colors {
		if id < 1 || id > 4 {
			return nil, domain.ErrInvalidChoice
		}
	}
	f.picks[playerID] = colors
	f.turn = (f.turn + 1) % len(f.players)
	return &game.SubmitResult{NextTurn: f.players[f.turn].ID, Submitted: len(f.picks), RoundComplete: len(f.picks) == len(f.players)}, nil
}

func (f *fakeGame) IsRoundComplete(context.Context, int64) (bool, error) {
	return len(f.picks) == len(f.players), nil
}

func (f *fakeGame) SettleRound(_ context.Context, gameID int64) (*domain.RoundResult, error) {
	f.settles++
	if len(f.settleErrs) > 0 {
		err := f.settleErrs[0]
		f.settleErrs = f.settleErrs[1:]
		return nil, err
	}
	result := &domain.RoundResult{GameID: gameID, Round: f.round, Target: f.target, TargetNames: []string{"Red", "Blue"}}
	for _, p := range f.players {
		score := domain.ScoreChoice(f.picks[p.ID], f.target)
		f.totals[p.ID] += score
		result.Players = append(result.Players, domain.PlayerRoundResult{PlayerID: p.ID, Choice: f.picks[p.ID], RoundScore: score, Total: f.totals[p.ID]})
	}
	f.picks = map[int64][]int64{}

	if winner, ok := domain.FindWinner(result.Players, len(f.target)); ok {
		f.status = domain.StatusFinished
		f.winnerID = &winner
		result.Outcome = domain.Outcome{Kind: domain.OutcomeWin, WinnerID: winner}
		return result, nil
	}
	if f.round >= f.maxRounds {
		f.status = domain.StatusFinished
		result.Outcome = domain.Outcome{Kind: domain.OutcomeNoWinner}
		return result, nil
	}
	f.round++
	result.Outcome = domain.Outcome{Kind: domain.OutcomeContinue}
	return result, nil
}

func (f *fakeGame) Status(_ context.Context, gameID int64) (*game.GameView, error) {
	return &game.GameView{
		GameID:      gameID,
		Status:      f.status,
		Round:       f.round,
		MaxRounds:   f.maxRounds,
		CurrentTurn: f.players[f.turn].ID,
		Submitted:   len(f.picks),
		Players:     f.players,
		Totals:      f.totals,
		WinnerID:    f.winnerID,
	}, nil
}

type staticCatalog []domain.Color

func (c staticCatalog) ListColors(context.Context) ([]domain.Color, error) { return c, nil }

var palette = staticCatalog{{ID: 1, Name: "Red"}, {ID: 2, Name: "Blue"}, {ID: 3, Name: "Green"}, {ID: 4, Name: "Yellow"}}

func play(t *testing.T, g *fakeGame, input string) (domain.Outcome, string, error) {
	t.Helper()
	var out bytes.Buffer
	c := New(g, palette, len(g.target), strings.NewReader(input), &out, zerolog.Nop())
	outcome, err := c.Play(context.Background(), 7)
	return outcome, out.String(), err
}

func TestPlay_Winner(t *testing.T) {
	g := newFakeGame([]int64{1, 2}, 5)

	outcome, out, err := play(t, g, "1 3\n1 2\n")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeWin, outcome.Kind)
	assert.Equal(t, int64(2), outcome.WinnerID)

	assert.Contains(t, out, "Alice's turn")
	assert.Contains(t, out, "Bob's turn")
	assert.Contains(t, out, "1:Red  2:Blue  3:Green  4:Yellow")
	assert.Contains(t, out, "Choose 2 of the above colors like this: 1 2")
	assert.Contains(t, out, "Alice chose: Red-Green")
	assert.Contains(t, out, "Bob chose: Red-Blue")
	assert.Contains(t, out, "The actual ones: Red-Blue")
	assert.Contains(t, out, "Alice score: 1 (+1)")
	assert.Contains(t, out, "Bob score: 2 (+2)")
	assert.Contains(t, out, "Bob wins!")
}

func TestPlay_NobodyWins(t *testing.T) {
	g := newFakeGame([]int64{1, 2}, 1)

	outcome, out, err := play(t, g, "2 1\n3 4\n")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoWinner, outcome.Kind)
	assert.Contains(t, out, "Nobody won!")
}

func TestPlay_BadInputKeepsTurn(t *testing.T) {
	g := newFakeGame([]int64{1, 2}, 5)

	// Garbage, a short pick and an unknown color are all re-prompted to Alice.
	outcome, out, err := play(t, g, "red blue\n1\n1 9\n\n1 2\n2 1\n")
	require.NoError(t, err)
	assert.Equal(t, int64(1), outcome.WinnerID)
	assert.Contains(t, out, `"red" is not a color id`)
	assert.Contains(t, out, domain.ErrInvalidChoice.Error())
	assert.Equal(t, 5, strings.Count(out, "Alice's turn"))
}

func TestPlay_MultipleRounds(t *testing.T) {
	g := newFakeGame([]int64{1, 2}, 3)

	outcome, out, err := play(t, g, "3 4\n3 4\n1 4\n3 2\n1 2\n3 3\n")
	require.NoError(t, err)
	assert.Equal(t, int64(1), outcome.WinnerID)
	assert.Contains(t, out, "Round 2/3")
	assert.Contains(t, out, "Round 3 results")
	assert.Contains(t, out, "Alice score: 3 (+2)")
}

func TestPlay_InputExhausted(t *testing.T) {
	g := newFakeGame([]int64{1, 2}, 5)

	_, _, err := play(t, g, "1 2\n")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestPlay_AlreadyFinished(t *testing.T) {
	g := newFakeGame([]int64{1, 2}, 5)
	g.status = domain.StatusFinished
	winner := int64(2)
	g.winnerID = &winner

	outcome, out, err := play(t, g, "")
	require.NoError(t, err)
	assert.Equal(t, domain.Outcome{Kind: domain.OutcomeWin, WinnerID: 2}, outcome)
	assert.Contains(t, out, "already over")
}

func TestPlay_SettleRetriedAfterBusy(t *testing.T) {
	g := newFakeGame([]int64{1, 2}, 5)
	g.settleErrs = []error{domain.ErrGameBusy}

	outcome, _, err := play(t, g, "1 3\n1 2\n")
	require.NoError(t, err)
	assert.Equal(t, int64(2), outcome.WinnerID)
	assert.Equal(t, 2, g.settles)
}

func TestPlay_SettleKeepsFailing(t *testing.T) {
	g := newFakeGame([]int64{1, 2}, 5)
	g.settleErrs = []error{domain.ErrRoundIncomplete, domain.ErrRoundIncomplete, domain.ErrRoundIncomplete, domain.ErrRoundIncomplete}

	_, _, err := play(t, g, "1 3\n1 2\n")
	assert.ErrorIs(t, err, domain.ErrRoundIncomplete)
	assert.Equal(t, settleAttempts, g.settles)
}

func TestColorNames(t *testing.T) {
	names := map[int64]string{1: "Red", 2: "Blue"}
	assert.Equal(t, "Blue-Red", colorNames([]int64{2, 1}, names))
	assert.Equal(t, "Red-9", colorNames([]int64{1, 9}, names))
	assert.Equal(t, "", colorNames(nil, names))
}

func TestParseSelection(t *testing.T) {
	ids, err := parseSelection("  3 1   2 ")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)

	_, err = parseSelection("")
	assert.Error(t, err)

	_, err = parseSelection("1 x")
	assert.Error(t, err)
}
