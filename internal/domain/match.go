package domain

import "time"

// MatchStatus represents the lifecycle state of a match
type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusCompleted MatchStatus = "completed"
	// MatchStatusExpired is derived from ExpiresAt at read time; it is never
	// written to storage.
	MatchStatusExpired MatchStatus = "expired"
)

// CombatAction is a single action in a combat transcript
type CombatAction struct {
	SourceID string `json:"sourceId"`
	Ability  string `json:"ability,omitempty"`
	Damage   int    `json:"damage,omitempty"`
}

// CombatantState is the claimed final state of one combatant
type CombatantState struct {
	IsAlive         bool `json:"isAlive"`
	RemainingHealth int  `json:"remainingHealth"`
	RemainingMana   int  `json:"remainingMana"`
}

// CombatResult is the client-submitted transcript of a locally simulated
// combat. PlayerWon is from the initiator's (player1) perspective.
type CombatResult struct {
	TurnCount        int            `json:"turnCount"`
	ActionHistory    []CombatAction `json:"actionHistory"`
	FinalPlayerState CombatantState `json:"finalPlayerState"`
	FinalEnemyState  CombatantState `json:"finalEnemyState"`
	PlayerWon        bool           `json:"playerWon"`
	XPGained         int64          `json:"xpGained"`
}

// Match represents one PvP encounter. Immutable after creation except for the
// single pending→completed transition and the one-time attachment of the
// result fields.
type Match struct {
	ID              string         `json:"id"`
	Player1ID       string         `json:"player1Id"`
	Player2ID       string         `json:"player2Id"`
	Player1Snapshot CombatSnapshot `json:"player1Snapshot"`
	Player2Snapshot CombatSnapshot `json:"player2Snapshot"`
	Seed            int64          `json:"seed"`
	Status          MatchStatus    `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
	ExpiresAt       time.Time      `json:"expiresAt"`
	Result          *CombatResult  `json:"result,omitempty"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
	SubmittedBy     string         `json:"submittedBy,omitempty"`
}

// HasParticipant reports whether playerID is one of the two combatants
func (m *Match) HasParticipant(playerID string) bool {
	return m.Player1ID == playerID || m.Player2ID == playerID
}

// ExpiredAt reports whether the match deadline has passed at the given time
func (m *Match) ExpiredAt(now time.Time) bool {
	return now.After(m.ExpiresAt)
}

// EffectiveStatus returns the match status with expiry derived lazily: a
// pending match past its deadline reads as expired without a storage write.
func (m *Match) EffectiveStatus(now time.Time) MatchStatus {
	if m.Status == MatchStatusPending && m.ExpiredAt(now) {
		return MatchStatusExpired
	}
	return m.Status
}

// Winner returns the winner and loser ids for a completed result
func (m *Match) Winner(result *CombatResult) (winnerID, loserID string) {
	if result.PlayerWon {
		return m.Player1ID, m.Player2ID
	}
	return m.Player2ID, m.Player1ID
}

// CreateMatchRequest is the payload for creating a match
type CreateMatchRequest struct {
	OpponentID string `json:"opponentId"`
}

// CreateMatchResponse returns the new match id and the simulation seed so the
// initiator can start its local simulation without a second round trip
type CreateMatchResponse struct {
	MatchID string `json:"matchId"`
	Seed    int64  `json:"seed"`
}

// SubmitResultRequest is the payload for submitting a match result
type SubmitResultRequest struct {
	Result *CombatResult `json:"result"`
}
