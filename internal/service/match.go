package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pvp-arena/internal/combat"
	"github.com/pvp-arena/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ListMatchesDefaultLimit bounds match history queries
const (
	ListMatchesDefaultLimit = 20
	ListMatchesMaxLimit     = 100
)

// CreateMatch creates a pending match between the caller and an opponent.
// Both players' combat snapshots are frozen into the record and the
// simulation seed is derived once, from the creation timestamp, so the
// returned seed lets the initiator start simulating immediately.
func (s *ArenaService) CreateMatch(ctx context.Context, initiatorID, opponentID string) (*domain.CreateMatchResponse, error) {
	if initiatorID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if opponentID == "" {
		return nil, fmt.Errorf("%w: missing opponent id", domain.ErrInvalidRequest)
	}
	if opponentID == initiatorID {
		return nil, fmt.Errorf("%w: cannot challenge yourself", domain.ErrInvalidRequest)
	}

	// Fetch both snapshots in parallel
	var initiator, opponent *domain.Player
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		initiator, err = s.store.GetPlayer(gctx, initiatorID)
		return err
	})
	g.Go(func() error {
		var err error
		opponent, err = s.store.GetPlayer(gctx, opponentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now()
	match := &domain.Match{
		ID:              uuid.New().String(),
		Player1ID:       initiator.ID,
		Player2ID:       opponent.ID,
		Player1Snapshot: initiator.CombatSnapshot,
		Player2Snapshot: opponent.CombatSnapshot,
		Seed:            combat.DeriveSeed(now.UnixMilli(), initiator.ID, opponent.ID),
		Status:          domain.MatchStatusPending,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.match.TTL),
	}

	if err := s.store.CreateMatch(ctx, match); err != nil {
		return nil, fmt.Errorf("creating match: %w", err)
	}

	s.logger.Info("match created",
		"match_id", match.ID,
		"player1_id", match.Player1ID,
		"player2_id", match.Player2ID,
		"expires_at", match.ExpiresAt,
	)

	if s.notifier != nil {
		s.notifier.NotifyMatchCreated(match)
	}

	return &domain.CreateMatchResponse{
		MatchID: match.ID,
		Seed:    match.Seed,
	}, nil
}

// SubmitResult validates a submitted combat transcript against the match
// record and, when accepted, completes the match and settles both players'
// stats. All checks happen before any write; the pending→completed
// transition itself is a conditional write in the store, so of any number of
// racing submissions exactly one wins and the rest see ErrMatchNotPending.
func (s *ArenaService) SubmitResult(ctx context.Context, matchID, submitterID string, result *domain.CombatResult) error {
	if submitterID == "" {
		return domain.ErrUnauthenticated
	}
	if matchID == "" || result == nil {
		return fmt.Errorf("%w: missing match id or result", domain.ErrInvalidRequest)
	}

	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}

	if !match.HasParticipant(submitterID) {
		return domain.ErrNotParticipant
	}
	if match.Status != domain.MatchStatusPending {
		return domain.ErrMatchNotPending
	}
	// Expiry is a lazy check against the stored deadline; the record stays
	// pending, it just becomes permanently un-settleable.
	now := s.now()
	if match.ExpiredAt(now) {
		return domain.ErrMatchExpired
	}

	if err := s.validator.Validate(result); err != nil {
		return err
	}

	won, err := s.store.CompleteMatch(ctx, matchID, submitterID, result, now)
	if err != nil {
		return fmt.Errorf("completing match: %w", err)
	}
	if !won {
		// A concurrent submission completed the match between our read and
		// the conditional write.
		return domain.ErrMatchNotPending
	}

	s.logger.Info("match completed",
		"match_id", matchID,
		"submitted_by", submitterID,
		"player_won", result.PlayerWon,
		"turn_count", result.TurnCount,
	)

	return s.settle(ctx, match, result, now)
}

// settle applies the accepted outcome to both player records exactly once,
// stamped with the same time as the completion write. The match is already
// completed at this point and is never rolled back: a stat-update failure
// surfaces as an internal error and is reconciled out-of-band.
func (s *ArenaService) settle(ctx context.Context, match *domain.Match, result *domain.CombatResult, now time.Time) error {
	winnerID, loserID := match.Winner(result)

	if err := s.store.ApplyMatchOutcome(ctx, winnerID, loserID, result.XPGained, now); err != nil {
		s.logger.Error("settlement failed, match remains completed",
			"match_id", match.ID,
			"winner_id", winnerID,
			"loser_id", loserID,
			"error", err,
		)
		return fmt.Errorf("%w: applying match outcome: %s", domain.ErrInternalError, err)
	}

	// Realtime side channels are best effort and never fail the request
	if s.scores != nil {
		if _, err := s.scores.IncrementScore(ctx, domain.BoardWins, winnerID, 1); err != nil {
			s.logger.Warn("failed to update wins leaderboard", "player_id", winnerID, "error", err)
		}
		if result.XPGained > 0 {
			if _, err := s.scores.IncrementScore(ctx, domain.BoardXP, winnerID, result.XPGained); err != nil {
				s.logger.Warn("failed to update xp leaderboard", "player_id", winnerID, "error", err)
			}
		}
	}
	if s.notifier != nil {
		s.notifier.NotifyMatchCompleted(match, result)
	}

	return nil
}

// GetMatch returns a match record to one of its participants
func (s *ArenaService) GetMatch(ctx context.Context, callerID, matchID string) (*domain.Match, error) {
	if callerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasParticipant(callerID) {
		return nil, domain.ErrNotParticipant
	}
	match.Status = match.EffectiveStatus(s.now())
	return match, nil
}

// ListPlayerMatches returns a player's match history, newest first
func (s *ArenaService) ListPlayerMatches(ctx context.Context, playerID string, limit int) ([]*domain.Match, error) {
	if limit <= 0 {
		limit = ListMatchesDefaultLimit
	}
	if limit > ListMatchesMaxLimit {
		limit = ListMatchesMaxLimit
	}
	matches, err := s.store.ListPlayerMatches(ctx, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	now := s.now()
	for _, match := range matches {
		match.Status = match.EffectiveStatus(now)
	}
	return matches, nil
}
