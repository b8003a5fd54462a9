package domain

import "time"

// CombatSnapshot is the frozen set of combat stats a player brings into a
// match. Both clients simulate from the snapshots embedded in the match
// record, so later profile changes never affect an in-flight match.
type CombatSnapshot struct {
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
	MaxHealth int `json:"maxHealth"`
	Speed     int `json:"speed"`
	Level     int `json:"level"`
}

// Player represents a player's persistent record
type Player struct {
	ID             string         `json:"id"`
	Username       string         `json:"username"`
	CombatSnapshot CombatSnapshot `json:"combatSnapshot"`
	PvPWins        int64          `json:"pvpWins"`
	PvPLosses      int64          `json:"pvpLosses"`
	TotalXP        int64          `json:"totalXp"`
	LastPvPMatch   *time.Time     `json:"lastPvpMatch,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// RegisterPlayerRequest is the payload for registering a new player
type RegisterPlayerRequest struct {
	ID             string         `json:"id"`
	Username       string         `json:"username"`
	CombatSnapshot CombatSnapshot `json:"combatSnapshot"`
}

// ExerciseSubmission represents a completed exercise reported for XP
type ExerciseSubmission struct {
	PlayerID string `json:"player_id"`
	Exercise string `json:"exercise"`
	Reps     int    `json:"reps"`
	XP       int64  `json:"xp"`
}

// BatchExerciseSubmission represents multiple exercise submissions
type BatchExerciseSubmission struct {
	Submissions []ExerciseSubmission `json:"submissions"`
}

// DefaultExerciseXP is awarded when a submission carries no XP value.
const DefaultExerciseXP = 10
