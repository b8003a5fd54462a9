package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pvp-arena/internal/combat"
	"github.com/pvp-arena/internal/config"
	"github.com/pvp-arena/internal/domain"
	"github.com/pvp-arena/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*ArenaService, *testutil.MemStore, *testutil.MemScoreboard) {
	t.Helper()
	store := testutil.NewMemStore()
	scores := testutil.NewMemScoreboard()
	svc := NewArenaService(
		store,
		scores,
		&config.MatchConfig{TTL: 24 * time.Hour, MinTurns: 1, MaxTurns: 30},
		&config.LeaderboardConfig{DefaultLimit: 10, MaxLimit: 100},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return svc, store, scores
}

func seedPlayers(t *testing.T, store *testutil.MemStore, ids ...string) {
	t.Helper()
	for i, id := range ids {
		err := store.CreatePlayer(context.Background(), &domain.Player{
			ID:       id,
			Username: id,
			CombatSnapshot: domain.CombatSnapshot{
				Attack:    10 + i,
				Defense:   5 + i,
				MaxHealth: 100,
				Speed:     7,
				Level:     3,
			},
		})
		require.NoError(t, err)
	}
}

func winningResult(xp int64) *domain.CombatResult {
	return &domain.CombatResult{
		TurnCount: 5,
		ActionHistory: []domain.CombatAction{
			{SourceID: "p1", Ability: "strike", Damage: 12},
			{SourceID: "p2", Ability: "strike", Damage: 8},
			{SourceID: "p1", Ability: "fireball", Damage: 30},
		},
		FinalPlayerState: domain.CombatantState{IsAlive: true, RemainingHealth: 42, RemainingMana: 10},
		FinalEnemyState:  domain.CombatantState{IsAlive: false},
		PlayerWon:        true,
		XPGained:         xp,
	}
}

func TestCreateMatch(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedPlayers(t, store, "p1", "p2")

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return created }

	resp, err := svc.CreateMatch(context.Background(), "p1", "p2")
	require.NoError(t, err)
	require.NotEmpty(t, resp.MatchID)
	assert.Equal(t, combat.DeriveSeed(created.UnixMilli(), "p1", "p2"), resp.Seed)

	match, err := store.GetMatch(context.Background(), resp.MatchID)
	require.NoError(t, err)
	assert.Equal(t, "p1", match.Player1ID)
	assert.Equal(t, "p2", match.Player2ID)
	assert.Equal(t, domain.MatchStatusPending, match.Status)
	assert.Equal(t, created, match.CreatedAt)
	assert.Equal(t, created.Add(24*time.Hour), match.ExpiresAt)
	// Snapshots are frozen copies of the player records at creation time
	assert.Equal(t, 10, match.Player1Snapshot.Attack)
	assert.Equal(t, 11, match.Player2Snapshot.Attack)
}

func TestCreateMatchRejections(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedPlayers(t, store, "p1", "p2")
	ctx := context.Background()

	_, err := svc.CreateMatch(ctx, "", "p2")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = svc.CreateMatch(ctx, "p1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.CreateMatch(ctx, "p1", "p1")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.CreateMatch(ctx, "p1", "ghost")
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
}

func TestSubmitResultSettlesOnce(t *testing.T) {
	svc, store, scores := newTestService(t)
	seedPlayers(t, store, "p1", "p2")
	ctx := context.Background()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return created }
	resp, err := svc.CreateMatch(ctx, "p1", "p2")
	require.NoError(t, err)

	submitted := created.Add(2 * time.Hour)
	svc.now = func() time.Time { return submitted }
	require.NoError(t, svc.SubmitResult(ctx, resp.MatchID, "p1", winningResult(50)))

	match, err := store.GetMatch(ctx, resp.MatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusCompleted, match.Status)
	assert.Equal(t, "p1", match.SubmittedBy)
	require.NotNil(t, match.Result)
	require.NotNil(t, match.CompletedAt)
	assert.Equal(t, submitted, *match.CompletedAt)

	winner, err := store.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), winner.PvPWins)
	assert.Equal(t, int64(0), winner.PvPLosses)
	assert.Equal(t, int64(50), winner.TotalXP)
	require.NotNil(t, winner.LastPvPMatch)
	// Settlement is stamped with the same time as the completion write
	assert.Equal(t, *match.CompletedAt, *winner.LastPvPMatch)

	loser, err := store.GetPlayer(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), loser.PvPWins)
	assert.Equal(t, int64(1), loser.PvPLosses)
	assert.Equal(t, int64(0), loser.TotalXP)

	assert.Equal(t, int64(1), scores.Score(domain.BoardWins, "p1"))
	assert.Equal(t, int64(50), scores.Score(domain.BoardXP, "p1"))

	// The match is settled; the losing side's late submission is rejected and
	// no stats move a second time.
	err = svc.SubmitResult(ctx, resp.MatchID, "p2", winningResult(50))
	assert.ErrorIs(t, err, domain.ErrMatchNotPending)

	winner, err = store.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), winner.PvPWins)
	assert.Equal(t, int64(50), winner.TotalXP)
}

func TestSubmitResultPlayerLoss(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedPlayers(t, store, "p1", "p2")
	ctx := context.Background()

	resp, err := svc.CreateMatch(ctx, "p1", "p2")
	require.NoError(t, err)

	result := winningResult(30)
	result.PlayerWon = false
	result.FinalPlayerState = domain.CombatantState{IsAlive: false}
	result.FinalEnemyState = domain.CombatantState{IsAlive: true, RemainingHealth: 5}

	require.NoError(t, svc.SubmitResult(ctx, resp.MatchID, "p2", result))

	p2, err := store.GetPlayer(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p2.PvPWins)
	assert.Equal(t, int64(30), p2.TotalXP)

	p1, err := store.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p1.PvPLosses)
	assert.Equal(t, int64(0), p1.TotalXP)
}

func TestSubmitResultRejections(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedPlayers(t, store, "p1", "p2", "p3")
	ctx := context.Background()

	resp, err := svc.CreateMatch(ctx, "p1", "p2")
	require.NoError(t, err)

	err = svc.SubmitResult(ctx, resp.MatchID, "", winningResult(10))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	err = svc.SubmitResult(ctx, resp.MatchID, "p1", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	err = svc.SubmitResult(ctx, "no-such-match", "p1", winningResult(10))
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)

	err = svc.SubmitResult(ctx, resp.MatchID, "p3", winningResult(10))
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	bad := winningResult(10)
	bad.TurnCount = 31
	err = svc.SubmitResult(ctx, resp.MatchID, "p1", bad)
	assert.ErrorIs(t, err, domain.ErrInvalidResult)

	// None of the rejections touched the record
	match, err := store.GetMatch(ctx, resp.MatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusPending, match.Status)
}

func TestSubmitResultExpired(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedPlayers(t, store, "p1", "p2")
	ctx := context.Background()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return created }
	resp, err := svc.CreateMatch(ctx, "p1", "p2")
	require.NoError(t, err)

	// One second past the deadline the match is permanently un-settleable
	svc.now = func() time.Time { return created.Add(24*time.Hour + time.Second) }
	err = svc.SubmitResult(ctx, resp.MatchID, "p1", winningResult(50))
	assert.ErrorIs(t, err, domain.ErrMatchExpired)

	// Expiry is derived at read time, the stored status stays pending
	match, err := store.GetMatch(ctx, resp.MatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusPending, match.Status)

	// Participants see the derived status through the service
	seen, err := svc.GetMatch(ctx, "p1", resp.MatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusExpired, seen.Status)

	p1, err := store.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p1.PvPWins)
}

func TestSubmitResultConcurrent(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedPlayers(t, store, "p1", "p2")
	ctx := context.Background()

	resp, err := svc.CreateMatch(ctx, "p1", "p2")
	require.NoError(t, err)

	const submitters = 8
	errs := make([]error, submitters)
	var wg sync.WaitGroup
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			submitter := "p1"
			if i%2 == 1 {
				submitter = "p2"
			}
			errs[i] = svc.SubmitResult(ctx, resp.MatchID, submitter, winningResult(50))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrMatchNotPending)
	}
	assert.Equal(t, 1, successes)

	winner, err := store.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), winner.PvPWins)
	assert.Equal(t, int64(50), winner.TotalXP)

	loser, err := store.GetPlayer(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), loser.PvPLosses)
}

func TestSubmitResultSettlementFailure(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedPlayers(t, store, "p1", "p2")
	ctx := context.Background()

	resp, err := svc.CreateMatch(ctx, "p1", "p2")
	require.NoError(t, err)

	// Losing the loser's record between completion and settlement: the
	// completed transition is never rolled back.
	store.RemovePlayer("p2")
	err = svc.SubmitResult(ctx, resp.MatchID, "p1", winningResult(50))
	assert.ErrorIs(t, err, domain.ErrInternalError)

	match, err := store.GetMatch(ctx, resp.MatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusCompleted, match.Status)
}

func TestGetMatchParticipantOnly(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedPlayers(t, store, "p1", "p2", "p3")
	ctx := context.Background()

	resp, err := svc.CreateMatch(ctx, "p1", "p2")
	require.NoError(t, err)

	_, err = svc.GetMatch(ctx, "p3", resp.MatchID)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	match, err := svc.GetMatch(ctx, "p2", resp.MatchID)
	require.NoError(t, err)
	assert.Equal(t, resp.MatchID, match.ID)
}

func TestListPlayerMatches(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedPlayers(t, store, "p1", "p2", "p3")
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		tick := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return tick }
		opponent := "p2"
		if i == 2 {
			opponent = "p3"
		}
		_, err := svc.CreateMatch(ctx, "p1", opponent)
		require.NoError(t, err)
	}

	matches, err := svc.ListPlayerMatches(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	// Newest first
	assert.Equal(t, "p3", matches[0].Player2ID)

	matches, err = svc.ListPlayerMatches(ctx, "p2", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestLeaderboard(t *testing.T) {
	svc, _, scores := newTestService(t)
	ctx := context.Background()

	for i, id := range []string{"p1", "p2", "p3"} {
		_, err := scores.IncrementScore(ctx, domain.BoardWins, id, int64(10-i))
		require.NoError(t, err)
	}
	require.NoError(t, scores.SetPlayerInfo(ctx, "p1", "alice"))

	entries, err := svc.Leaderboard(ctx, domain.BoardWins, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "p1", entries[0].PlayerID)
	assert.Equal(t, "alice", entries[0].Username)
	assert.Equal(t, int64(1), entries[0].Rank)

	_, err = svc.Leaderboard(ctx, "bogus", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestPlayerRank(t *testing.T) {
	svc, _, scores := newTestService(t)
	ctx := context.Background()

	for i, id := range []string{"p1", "p2", "p3"} {
		_, err := scores.IncrementScore(ctx, domain.BoardWins, id, int64(10-i))
		require.NoError(t, err)
	}
	require.NoError(t, scores.SetPlayerInfo(ctx, "p2", "bob"))

	entry, err := svc.PlayerRank(ctx, domain.BoardWins, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.Rank)
	assert.Equal(t, int64(9), entry.Score)
	assert.Equal(t, "bob", entry.Username)

	// No score on the board reads as not found
	_, err = svc.PlayerRank(ctx, domain.BoardWins, "ghost")
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)

	_, err = svc.PlayerRank(ctx, "bogus", "p1")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
