package domain

import "time"

type Color struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Player struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// to represent the game status
type GameStatus string

const (
	StatusPending  GameStatus = "pending"
	StatusActive   GameStatus = "active"
	StatusFinished GameStatus = "finished"
)

// Choice is a single round's submission by a player. Colors keeps the
// submission order since scoring is positional.
type Choice struct {
	ID        int64     `json:"id"`
	CardID    int64     `json:"card_id"`
	Colors    []int64   `json:"colors"`
	CreatedAt time.Time `json:"created_at"`
}

type Card struct {
	ID       int64    `json:"id"`
	GameID   int64    `json:"game_id"`
	PlayerID int64    `json:"player_id"`
	Choices  []Choice `json:"choices,omitempty"`
}

// TurnPolicy decides who opens the next round.
type TurnPolicy string

const (
	// TurnPolicyContinue keeps the round-robin cycle running across rounds.
	TurnPolicyContinue TurnPolicy = "continue"
	// TurnPolicyReset hands the first turn of every round to the first player.
	TurnPolicyReset TurnPolicy = "reset"
	// TurnPolicyRotate advances the turn once more at every round boundary, so
	// the opening seat moves one player along each round.
	TurnPolicyRotate TurnPolicy = "rotate"
)

func (p TurnPolicy) Valid() bool {
	switch p {
	case TurnPolicyContinue, TurnPolicyReset, TurnPolicyRotate:
		return true
	}
	return false
}
