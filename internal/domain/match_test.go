package domain

import (
	"testing"
	"time"
)

func TestMatchEffectiveStatus(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	match := &Match{
		Status:    MatchStatusPending,
		CreatedAt: created,
		ExpiresAt: created.Add(24 * time.Hour),
	}

	if got := match.EffectiveStatus(created.Add(time.Hour)); got != MatchStatusPending {
		t.Fatalf("fresh match should read pending, got %s", got)
	}
	if got := match.EffectiveStatus(created.Add(25 * time.Hour)); got != MatchStatusExpired {
		t.Fatalf("stale pending match should read expired, got %s", got)
	}

	// Expiry never shadows a real completion
	match.Status = MatchStatusCompleted
	if got := match.EffectiveStatus(created.Add(25 * time.Hour)); got != MatchStatusCompleted {
		t.Fatalf("completed match should stay completed, got %s", got)
	}
}

func TestMatchHasParticipant(t *testing.T) {
	match := &Match{Player1ID: "p1", Player2ID: "p2"}
	if !match.HasParticipant("p1") || !match.HasParticipant("p2") {
		t.Fatal("both players are participants")
	}
	if match.HasParticipant("p3") {
		t.Fatal("p3 is not a participant")
	}
}

func TestMatchWinner(t *testing.T) {
	match := &Match{Player1ID: "p1", Player2ID: "p2"}

	winner, loser := match.Winner(&CombatResult{PlayerWon: true})
	if winner != "p1" || loser != "p2" {
		t.Fatalf("initiator win: got winner=%s loser=%s", winner, loser)
	}

	winner, loser = match.Winner(&CombatResult{PlayerWon: false})
	if winner != "p2" || loser != "p1" {
		t.Fatalf("initiator loss: got winner=%s loser=%s", winner, loser)
	}
}
