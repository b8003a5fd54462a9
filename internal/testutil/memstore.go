// Package testutil provides in-memory fakes of the storage and scoreboard
// layers for service and handler tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pvp-arena/internal/domain"
)

// MemStore is an in-memory Store with the same conditional-write semantics
// as the PostgreSQL repository: CompleteMatch only succeeds while the match
// is still pending, under a single lock.
type MemStore struct {
	mu           sync.Mutex
	players      map[string]*domain.Player
	matches      map[string]*domain.Match
	ExerciseLogs []domain.ExerciseSubmission
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{
		players: make(map[string]*domain.Player),
		matches: make(map[string]*domain.Match),
	}
}

// CreatePlayer registers a player record
func (s *MemStore) CreatePlayer(ctx context.Context, player *domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[player.ID]; ok {
		return domain.ErrPlayerExists
	}
	cp := *player
	s.players[player.ID] = &cp
	return nil
}

// GetPlayer returns a copy of a player record
func (s *MemStore) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	cp := *player
	return &cp, nil
}

// CreateMatch persists a match record
func (s *MemStore) CreateMatch(ctx context.Context, match *domain.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *match
	s.matches[match.ID] = &cp
	return nil
}

// GetMatch returns a copy of a match record
func (s *MemStore) GetMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	match, ok := s.matches[matchID]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	cp := *match
	return &cp, nil
}

// ListPlayerMatches returns a player's matches, newest first
func (s *MemStore) ListPlayerMatches(ctx context.Context, playerID string, limit int) ([]*domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []*domain.Match
	for _, match := range s.matches {
		if match.Player1ID == playerID || match.Player2ID == playerID {
			cp := *match
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// CompleteMatch performs the pending→completed transition atomically
func (s *MemStore) CompleteMatch(ctx context.Context, matchID, submitterID string, result *domain.CombatResult, completedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	match, ok := s.matches[matchID]
	if !ok || match.Status != domain.MatchStatusPending {
		return false, nil
	}
	match.Status = domain.MatchStatusCompleted
	match.Result = result
	match.CompletedAt = &completedAt
	match.SubmittedBy = submitterID
	return true, nil
}

// ApplyMatchOutcome applies the settled outcome to both player records
func (s *MemStore) ApplyMatchOutcome(ctx context.Context, winnerID, loserID string, xpGained int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	winner, ok := s.players[winnerID]
	if !ok {
		return fmt.Errorf("updating winner stats: %w", domain.ErrPlayerNotFound)
	}
	loser, ok := s.players[loserID]
	if !ok {
		return fmt.Errorf("updating loser stats: %w", domain.ErrPlayerNotFound)
	}
	winner.PvPWins++
	winner.TotalXP += xpGained
	winner.LastPvPMatch = &now
	loser.PvPLosses++
	loser.LastPvPMatch = &now
	return nil
}

// AddExerciseXP awards exercise XP and records the log entry
func (s *MemStore) AddExerciseXP(ctx context.Context, sub domain.ExerciseSubmission, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[sub.PlayerID]
	if !ok {
		return 0, domain.ErrPlayerNotFound
	}
	player.TotalXP += sub.XP
	s.ExerciseLogs = append(s.ExerciseLogs, sub)
	return player.TotalXP, nil
}

// RemovePlayer drops a player record (for settlement-failure tests)
func (s *MemStore) RemovePlayer(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, playerID)
}

// MemScoreboard is an in-memory Scoreboard
type MemScoreboard struct {
	mu        sync.Mutex
	boards    map[string]map[string]int64
	usernames map[string]string
}

// NewMemScoreboard creates an empty in-memory scoreboard
func NewMemScoreboard() *MemScoreboard {
	return &MemScoreboard{
		boards:    make(map[string]map[string]int64),
		usernames: make(map[string]string),
	}
}

// IncrementScore increments a player's score on a board
func (s *MemScoreboard) IncrementScore(ctx context.Context, board, playerID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boards[board]; !ok {
		s.boards[board] = make(map[string]int64)
	}
	s.boards[board][playerID] += delta
	return s.boards[board][playerID], nil
}

// GetTopN returns the top N players of a board
func (s *MemScoreboard) GetTopN(ctx context.Context, board string, n int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []domain.LeaderboardEntry
	for playerID, score := range s.boards[board] {
		entries = append(entries, domain.LeaderboardEntry{PlayerID: playerID, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Rank = int64(i + 1)
	}
	return entries, nil
}

// GetPlayerRank returns a player's rank and score on a board
func (s *MemScoreboard) GetPlayerRank(ctx context.Context, board, playerID string) (*domain.LeaderboardEntry, error) {
	entries, err := s.GetTopN(ctx, board, 1<<30)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.PlayerID == playerID {
			return &entry, nil
		}
	}
	return nil, domain.ErrPlayerNotFound
}

// SetPlayerInfo caches a player's username
func (s *MemScoreboard) SetPlayerInfo(ctx context.Context, playerID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usernames[playerID] = username
	return nil
}

// GetPlayerUsername returns a cached username, empty when missing
func (s *MemScoreboard) GetPlayerUsername(ctx context.Context, playerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usernames[playerID], nil
}

// Score returns a player's raw score on a board
func (s *MemScoreboard) Score(board, playerID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boards[board][playerID]
}
