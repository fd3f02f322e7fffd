package schedule

import "github.com/abrezinsky/slotboard/internal/models"

// Tier is the roster section a position falls into.
type Tier string

const (
	TierMain    Tier = "main"
	TierWaiting Tier = "waiting"
)

// TierOf returns the tier of the player at index. Placement is purely
// positional: the first mainLimit entries are main, the rest wait.
func TierOf(index, mainLimit int) Tier {
	if index < mainLimit {
		return TierMain
	}
	return TierWaiting
}

// SplitRoster splits players into the main roster and the waiting list
// without reordering. Both results are non-nil.
func SplitRoster(players []models.Player, mainLimit int) (main, waiting []models.Player) {
	if mainLimit < 0 {
		mainLimit = 0
	}
	if mainLimit > len(players) {
		mainLimit = len(players)
	}
	main = append([]models.Player{}, players[:mainLimit]...)
	waiting = append([]models.Player{}, players[mainLimit:]...)
	return main, waiting
}
