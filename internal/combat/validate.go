package combat

import (
	"fmt"

	"github.com/pvp-arena/internal/domain"
)

// Default turn-count bounds. A zero-turn transcript is degenerate and an
// implausibly long one bounds the cost of inspecting forged submissions.
const (
	DefaultMinTurns = 1
	DefaultMaxTurns = 30
)

// Validator performs structural validation of submitted combat results. It
// deliberately does not re-simulate damage numbers from the seed; it checks
// that the claimed transcript is shaped like a legal simulation.
type Validator struct {
	MinTurns int
	MaxTurns int
}

// NewValidator creates a validator with the given turn bounds, falling back
// to the defaults when a bound is zero.
func NewValidator(minTurns, maxTurns int) *Validator {
	if minTurns == 0 {
		minTurns = DefaultMinTurns
	}
	if maxTurns == 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Validator{MinTurns: minTurns, MaxTurns: maxTurns}
}

// Validate checks a combat result transcript, short-circuiting on the first
// failure. The returned error wraps domain.ErrInvalidResult.
func (v *Validator) Validate(result *domain.CombatResult) error {
	if result == nil {
		return fmt.Errorf("%w: missing result", domain.ErrInvalidResult)
	}

	if result.TurnCount < v.MinTurns || result.TurnCount > v.MaxTurns {
		return fmt.Errorf("%w: turn count %d outside [%d, %d]",
			domain.ErrInvalidResult, result.TurnCount, v.MinTurns, v.MaxTurns)
	}

	// A legal simulation alternates actors. A repeated source id in the
	// action history signals a forged or corrupted transcript.
	lastActorID := ""
	for i, action := range result.ActionHistory {
		if action.SourceID == "" {
			return fmt.Errorf("%w: action %d missing source id", domain.ErrInvalidResult, i)
		}
		if action.SourceID == lastActorID {
			return fmt.Errorf("%w: action %d repeats actor %s", domain.ErrInvalidResult, i, action.SourceID)
		}
		lastActorID = action.SourceID
	}

	// The claimed winner must be alive and the loser dead.
	if result.PlayerWon {
		if !result.FinalPlayerState.IsAlive || result.FinalEnemyState.IsAlive {
			return fmt.Errorf("%w: outcome inconsistent with final states", domain.ErrInvalidResult)
		}
	} else {
		if result.FinalPlayerState.IsAlive || !result.FinalEnemyState.IsAlive {
			return fmt.Errorf("%w: outcome inconsistent with final states", domain.ErrInvalidResult)
		}
	}

	if result.XPGained < 0 {
		return fmt.Errorf("%w: negative xp", domain.ErrInvalidResult)
	}

	return nil
}
