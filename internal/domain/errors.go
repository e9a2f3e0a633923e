package domain

// basic error that can occur
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrNotYourTurn         Error = "not your turn"
	ErrInvalidChoice       Error = "invalid choice"
	ErrNoActiveRound       Error = "no active round"
	ErrInsufficientCatalog Error = "color catalog too small"
	ErrUnknownColor        Error = "unknown color"
	ErrInvalidDelta        Error = "score delta must not be negative"

	ErrRoundComplete      Error = "round already complete"
	ErrRoundIncomplete    Error = "round not complete"
	ErrGameOver           Error = "game is over"
	ErrGameAlreadyStarted Error = "game already started"
	ErrNoPlayers          Error = "game has no players"
	ErrGameNotFound       Error = "game not found"
	ErrGameBusy           Error = "game is busy"
	ErrConcurrentUpdate   Error = "concurrent update"
)
