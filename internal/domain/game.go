package domain

import "time"

type Game struct {
	ID         int64      `json:"id"`
	Players    []Player   `json:"players"`
	Status     GameStatus `json:"status"`
	WinnerID   *int64     `json:"winner_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// PlayerIDs returns the fixed turn ordering of the game.
func (g *Game) PlayerIDs() []int64 {
	ids := make([]int64, len(g.Players))
	for i, p := range g.Players {
		ids[i] = p.ID
	}
	return ids
}

func (g *Game) PlayerName(id int64) string {
	for _, p := range g.Players {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

func (g *Game) IsFinished() bool {
	return g.Status == StatusFinished
}

type OutcomeKind string

const (
	OutcomeContinue OutcomeKind = "continue"
	OutcomeWin      OutcomeKind = "win"
	OutcomeNoWinner OutcomeKind = "no_winner"
)

type Outcome struct {
	Kind     OutcomeKind `json:"kind"`
	WinnerID int64       `json:"winner_id,omitempty"`
}

func (o Outcome) IsTerminal() bool {
	return o.Kind == OutcomeWin || o.Kind == OutcomeNoWinner
}

type PlayerRoundResult struct {
	PlayerID   int64   `json:"player_id"`
	Choice     []int64 `json:"choice"`
	RoundScore int     `json:"round_score"`
	Total      int     `json:"total"`
}

type RoundResult struct {
	GameID      int64               `json:"game_id"`
	Round       int                 `json:"round"`
	Target      []int64             `json:"target"`
	TargetNames []string            `json:"target_names"`
	Players     []PlayerRoundResult `json:"players"`
	Outcome     Outcome             `json:"outcome"`
}
