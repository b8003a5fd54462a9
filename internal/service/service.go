package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/pvp-arena/internal/combat"
	"github.com/pvp-arena/internal/config"
	"github.com/pvp-arena/internal/domain"
)

// Store is the persistent player/match store backing the arena
type Store interface {
	CreatePlayer(ctx context.Context, player *domain.Player) error
	GetPlayer(ctx context.Context, playerID string) (*domain.Player, error)
	CreateMatch(ctx context.Context, match *domain.Match) error
	GetMatch(ctx context.Context, matchID string) (*domain.Match, error)
	ListPlayerMatches(ctx context.Context, playerID string, limit int) ([]*domain.Match, error)
	CompleteMatch(ctx context.Context, matchID, submitterID string, result *domain.CombatResult, completedAt time.Time) (bool, error)
	ApplyMatchOutcome(ctx context.Context, winnerID, loserID string, xpGained int64, now time.Time) error
	AddExerciseXP(ctx context.Context, sub domain.ExerciseSubmission, now time.Time) (int64, error)
}

// Scoreboard is the realtime arena leaderboard layer
type Scoreboard interface {
	IncrementScore(ctx context.Context, board, playerID string, delta int64) (int64, error)
	GetTopN(ctx context.Context, board string, n int) ([]domain.LeaderboardEntry, error)
	GetPlayerRank(ctx context.Context, board, playerID string) (*domain.LeaderboardEntry, error)
	SetPlayerInfo(ctx context.Context, playerID, username string) error
	GetPlayerUsername(ctx context.Context, playerID string) (string, error)
}

// Notifier pushes match events to connected players
type Notifier interface {
	NotifyMatchCreated(match *domain.Match)
	NotifyMatchCompleted(match *domain.Match, result *domain.CombatResult)
}

// ArenaService provides business logic for PvP matches, settlement and
// exercise XP
type ArenaService struct {
	store     Store
	scores    Scoreboard
	notifier  Notifier
	validator *combat.Validator
	match     *config.MatchConfig
	boards    *config.LeaderboardConfig
	logger    *slog.Logger

	// now is swappable in tests
	now func() time.Time
}

// NewArenaService creates a new arena service
func NewArenaService(
	store Store,
	scores Scoreboard,
	matchCfg *config.MatchConfig,
	boardCfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *ArenaService {
	return &ArenaService{
		store:     store,
		scores:    scores,
		validator: combat.NewValidator(matchCfg.MinTurns, matchCfg.MaxTurns),
		match:     matchCfg,
		boards:    boardCfg,
		logger:    logger,
		now:       time.Now,
	}
}

// SetNotifier wires the websocket hub for match push notifications
func (s *ArenaService) SetNotifier(n Notifier) {
	s.notifier = n
}

// Leaderboard returns the top N players of an arena board
func (s *ArenaService) Leaderboard(ctx context.Context, board string, limit int) ([]domain.LeaderboardEntry, error) {
	if !domain.ValidBoard(board) {
		return nil, domain.ErrInvalidRequest
	}
	if s.scores == nil {
		return nil, domain.ErrInternalError
	}
	if limit <= 0 {
		limit = s.boards.DefaultLimit
	}
	if limit > s.boards.MaxLimit {
		limit = s.boards.MaxLimit
	}

	entries, err := s.scores.GetTopN(ctx, board, limit)
	if err != nil {
		return nil, err
	}

	// Enrich with cached usernames, best effort
	for i := range entries {
		username, err := s.scores.GetPlayerUsername(ctx, entries[i].PlayerID)
		if err != nil {
			s.logger.Warn("failed to load player info", "player_id", entries[i].PlayerID, "error", err)
			continue
		}
		entries[i].Username = username
	}
	return entries, nil
}

// PlayerRank returns a player's rank and score on an arena board. A player
// with no score on the board reads as not found.
func (s *ArenaService) PlayerRank(ctx context.Context, board, playerID string) (*domain.LeaderboardEntry, error) {
	if !domain.ValidBoard(board) {
		return nil, domain.ErrInvalidRequest
	}
	if s.scores == nil {
		return nil, domain.ErrInternalError
	}

	entry, err := s.scores.GetPlayerRank(ctx, board, playerID)
	if err != nil {
		return nil, err
	}

	username, err := s.scores.GetPlayerUsername(ctx, playerID)
	if err != nil {
		s.logger.Warn("failed to load player info", "player_id", playerID, "error", err)
	} else {
		entry.Username = username
	}
	return entry, nil
}
