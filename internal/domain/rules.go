package domain

// ScoreChoice counts the slots where the guess holds the same color as the
// target. A color present in the wrong slot scores nothing.
func ScoreChoice(guess, target []int64) int {
	score := 0
	for i := 0; i < len(guess) && i < len(target); i++ {
		if guess[i] == target[i] {
			score++
		}
	}
	return score
}

// FindWinner returns the first result, in the order given, whose round score
// equals required. Results must already be in the game's fixed player order.
func FindWinner(results []PlayerRoundResult, required int) (int64, bool) {
	for _, r := range results {
		if r.RoundScore == required {
			return r.PlayerID, true
		}
	}
	return 0, false
}

// ValidateSelection checks the selection length and that every id is in the
// catalog. Duplicate colors are allowed, the target never repeats a color so
// a duplicate simply cannot score twice.
func ValidateSelection(selection []int64, required int, catalog map[int64]string) error {
	if len(selection) != required {
		return ErrInvalidChoice
	}
	for _, id := range selection {
		if _, ok := catalog[id]; !ok {
			return ErrInvalidChoice
		}
	}
	return nil
}

// NextPlayer returns the player after current in order, wrapping to the
// first. A current holder missing from order is treated as the last seat.
func NextPlayer(order []int64, current int64) int64 {
	if len(order) == 0 {
		return 0
	}
	for i, id := range order {
		if id == current {
			return order[(i+1)%len(order)]
		}
	}
	return order[0]
}
