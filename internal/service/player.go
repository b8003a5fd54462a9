package service

import (
	"context"
	"fmt"

	"github.com/pvp-arena/internal/domain"
)

// RegisterPlayer creates a player record with its initial combat snapshot
func (s *ArenaService) RegisterPlayer(ctx context.Context, req domain.RegisterPlayerRequest) (*domain.Player, error) {
	if req.ID == "" || req.Username == "" {
		return nil, fmt.Errorf("%w: missing player id or username", domain.ErrInvalidRequest)
	}

	player := &domain.Player{
		ID:             req.ID,
		Username:       req.Username,
		CombatSnapshot: req.CombatSnapshot,
		CreatedAt:      s.now(),
	}

	if err := s.store.CreatePlayer(ctx, player); err != nil {
		return nil, err
	}

	if s.scores != nil {
		if err := s.scores.SetPlayerInfo(ctx, player.ID, player.Username); err != nil {
			s.logger.Warn("failed to cache player info", "player_id", player.ID, "error", err)
		}
	}

	return player, nil
}

// GetPlayer returns a player record
func (s *ArenaService) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	return s.store.GetPlayer(ctx, playerID)
}

// SubmitExercise awards XP for a completed exercise and logs the activity.
// Returns the XP awarded (defaulted when absent) and the player's new total.
func (s *ArenaService) SubmitExercise(ctx context.Context, sub domain.ExerciseSubmission) (xpGained, totalXP int64, err error) {
	if sub.PlayerID == "" {
		return 0, 0, fmt.Errorf("%w: missing player id", domain.ErrInvalidRequest)
	}
	if sub.XP < 0 || sub.Reps < 0 {
		return 0, 0, fmt.Errorf("%w: negative xp or reps", domain.ErrInvalidRequest)
	}
	if sub.XP == 0 {
		sub.XP = domain.DefaultExerciseXP
	}
	if sub.Exercise == "" {
		sub.Exercise = "Unknown"
	}

	totalXP, err = s.store.AddExerciseXP(ctx, sub, s.now())
	if err != nil {
		return 0, 0, err
	}

	if s.scores != nil {
		if _, err := s.scores.IncrementScore(ctx, domain.BoardXP, sub.PlayerID, sub.XP); err != nil {
			s.logger.Warn("failed to update xp leaderboard", "player_id", sub.PlayerID, "error", err)
		}
	}

	return sub.XP, totalXP, nil
}

// SubmitExerciseBatch applies multiple exercise submissions, continuing past
// per-submission failures (bulk ingestion path)
func (s *ArenaService) SubmitExerciseBatch(ctx context.Context, batch domain.BatchExerciseSubmission) error {
	for _, sub := range batch.Submissions {
		if _, _, err := s.SubmitExercise(ctx, sub); err != nil {
			s.logger.Error("failed to apply exercise submission",
				"player_id", sub.PlayerID,
				"exercise", sub.Exercise,
				"error", err,
			)
			// Continue processing other submissions
		}
	}
	return nil
}
