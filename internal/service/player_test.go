package service

import (
	"context"
	"testing"
	"time"

	"github.com/pvp-arena/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPlayer(t *testing.T) {
	svc, store, scores := newTestService(t)
	ctx := context.Background()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return created }

	player, err := svc.RegisterPlayer(ctx, domain.RegisterPlayerRequest{
		ID:             "p1",
		Username:       "alice",
		CombatSnapshot: domain.CombatSnapshot{Attack: 12, MaxHealth: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, created, player.CreatedAt)

	stored, err := store.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Username)
	assert.Equal(t, 12, stored.CombatSnapshot.Attack)

	// Username is cached for leaderboard enrichment
	username, err := scores.GetPlayerUsername(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	_, err = svc.RegisterPlayer(ctx, domain.RegisterPlayerRequest{ID: "p1", Username: "alice"})
	assert.ErrorIs(t, err, domain.ErrPlayerExists)

	_, err = svc.RegisterPlayer(ctx, domain.RegisterPlayerRequest{ID: "p2"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestSubmitExercise(t *testing.T) {
	svc, store, scores := newTestService(t)
	seedPlayers(t, store, "p1")
	ctx := context.Background()

	xp, total, err := svc.SubmitExercise(ctx, domain.ExerciseSubmission{
		PlayerID: "p1",
		Exercise: "Push-ups",
		Reps:     20,
		XP:       40,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), xp)
	assert.Equal(t, int64(40), total)

	// XP defaults when the submission carries none
	xp, total, err = svc.SubmitExercise(ctx, domain.ExerciseSubmission{PlayerID: "p1", Reps: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(domain.DefaultExerciseXP), xp)
	assert.Equal(t, int64(50), total)

	assert.Equal(t, int64(50), scores.Score(domain.BoardXP, "p1"))

	require.Len(t, store.ExerciseLogs, 2)
	assert.Equal(t, "Unknown", store.ExerciseLogs[1].Exercise)

	_, _, err = svc.SubmitExercise(ctx, domain.ExerciseSubmission{PlayerID: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, _, err = svc.SubmitExercise(ctx, domain.ExerciseSubmission{PlayerID: "p1", XP: -5})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, _, err = svc.SubmitExercise(ctx, domain.ExerciseSubmission{PlayerID: "ghost", XP: 10})
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
}

func TestSubmitExerciseBatch(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedPlayers(t, store, "p1", "p2")
	ctx := context.Background()

	err := svc.SubmitExerciseBatch(ctx, domain.BatchExerciseSubmission{
		Submissions: []domain.ExerciseSubmission{
			{PlayerID: "p1", Exercise: "Squats", XP: 15},
			{PlayerID: "ghost", Exercise: "Squats", XP: 15},
			{PlayerID: "p2", Exercise: "Plank", XP: 5},
		},
	})
	require.NoError(t, err)

	p1, err := store.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), p1.TotalXP)

	p2, err := store.GetPlayer(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(5), p2.TotalXP)

	// The unknown player's entry is skipped, the rest still apply
	assert.Len(t, store.ExerciseLogs, 2)
}
