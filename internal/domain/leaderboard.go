package domain

// Leaderboard board names
const (
	BoardWins = "wins"
	BoardXP   = "xp"
)

// LeaderboardEntry represents a single entry in an arena leaderboard
type LeaderboardEntry struct {
	Rank     int64  `json:"rank"`
	PlayerID string `json:"player_id"`
	Score    int64  `json:"score"`
	Username string `json:"username,omitempty"`
}

// ValidBoard reports whether board names a known arena leaderboard
func ValidBoard(board string) bool {
	return board == BoardWins || board == BoardXP
}
