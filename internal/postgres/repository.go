package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pvp-arena/internal/config"
	"github.com/pvp-arena/internal/domain"
)

// Repository provides PostgreSQL-based data access for players and matches
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			combat_snapshot JSONB NOT NULL,
			pvp_wins BIGINT NOT NULL DEFAULT 0,
			pvp_losses BIGINT NOT NULL DEFAULT 0,
			total_xp BIGINT NOT NULL DEFAULT 0,
			last_pvp_match TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id VARCHAR(64) PRIMARY KEY,
			player1_id VARCHAR(64) NOT NULL REFERENCES players(id),
			player2_id VARCHAR(64) NOT NULL REFERENCES players(id),
			player1_snapshot JSONB NOT NULL,
			player2_snapshot JSONB NOT NULL,
			seed BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			result JSONB,
			completed_at TIMESTAMPTZ,
			submitted_by VARCHAR(64)
		)`,
		`CREATE TABLE IF NOT EXISTS exercise_logs (
			id BIGSERIAL PRIMARY KEY,
			player_id VARCHAR(64) NOT NULL REFERENCES players(id),
			exercise VARCHAR(255) NOT NULL,
			reps INT NOT NULL DEFAULT 0,
			xp_earned BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_player1 ON matches(player1_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_player2 ON matches(player2_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_exercise_logs_player ON exercise_logs(player_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// CreatePlayer registers a new player record
func (r *Repository) CreatePlayer(ctx context.Context, player *domain.Player) error {
	snapshotJSON, err := json.Marshal(player.CombatSnapshot)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	query := `
		INSERT INTO players (id, username, combat_snapshot, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query, player.ID, player.Username, snapshotJSON, player.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrPlayerExists
	}
	return nil
}

// GetPlayer retrieves a player record by id
func (r *Repository) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	query := `
		SELECT id, username, combat_snapshot, pvp_wins, pvp_losses, total_xp, last_pvp_match, created_at
		FROM players
		WHERE id = $1
	`
	var player domain.Player
	var snapshotJSON []byte
	err := r.pool.QueryRow(ctx, query, playerID).Scan(
		&player.ID,
		&player.Username,
		&snapshotJSON,
		&player.PvPWins,
		&player.PvPLosses,
		&player.TotalXP,
		&player.LastPvPMatch,
		&player.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player: %w", err)
	}
	if err := json.Unmarshal(snapshotJSON, &player.CombatSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &player, nil
}

// CreateMatch persists a new pending match record
func (r *Repository) CreateMatch(ctx context.Context, match *domain.Match) error {
	p1JSON, err := json.Marshal(match.Player1Snapshot)
	if err != nil {
		return fmt.Errorf("marshaling player1 snapshot: %w", err)
	}
	p2JSON, err := json.Marshal(match.Player2Snapshot)
	if err != nil {
		return fmt.Errorf("marshaling player2 snapshot: %w", err)
	}

	query := `
		INSERT INTO matches (id, player1_id, player2_id, player1_snapshot, player2_snapshot, seed, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		match.ID,
		match.Player1ID,
		match.Player2ID,
		p1JSON,
		p2JSON,
		match.Seed,
		string(match.Status),
		match.CreatedAt,
		match.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("creating match: %w", err)
	}
	return nil
}

// GetMatch retrieves a match record by id
func (r *Repository) GetMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	query := `
		SELECT id, player1_id, player2_id, player1_snapshot, player2_snapshot, seed, status,
		       created_at, expires_at, result, completed_at, submitted_by
		FROM matches
		WHERE id = $1
	`
	return r.scanMatch(r.pool.QueryRow(ctx, query, matchID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanMatch(row rowScanner) (*domain.Match, error) {
	var match domain.Match
	var p1JSON, p2JSON, resultJSON []byte
	var submittedBy *string
	err := row.Scan(
		&match.ID,
		&match.Player1ID,
		&match.Player2ID,
		&p1JSON,
		&p2JSON,
		&match.Seed,
		&match.Status,
		&match.CreatedAt,
		&match.ExpiresAt,
		&resultJSON,
		&match.CompletedAt,
		&submittedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMatchNotFound
		}
		return nil, fmt.Errorf("scanning match: %w", err)
	}
	if err := json.Unmarshal(p1JSON, &match.Player1Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshaling player1 snapshot: %w", err)
	}
	if err := json.Unmarshal(p2JSON, &match.Player2Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshaling player2 snapshot: %w", err)
	}
	if resultJSON != nil {
		var result domain.CombatResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("unmarshaling result: %w", err)
		}
		match.Result = &result
	}
	if submittedBy != nil {
		match.SubmittedBy = *submittedBy
	}
	return &match, nil
}

// ListPlayerMatches retrieves a player's matches, newest first
func (r *Repository) ListPlayerMatches(ctx context.Context, playerID string, limit int) ([]*domain.Match, error) {
	query := `
		SELECT id, player1_id, player2_id, player1_snapshot, player2_snapshot, seed, status,
		       created_at, expires_at, result, completed_at, submitted_by
		FROM matches
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	defer rows.Close()

	var matches []*domain.Match
	for rows.Next() {
		match, err := r.scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

// CompleteMatch performs the single pending→completed transition as an atomic
// conditional write. The WHERE clause on status is the compare-and-swap that
// lets exactly one of any number of racing submissions win; every other racer
// sees zero rows affected. Returns false when the match was no longer pending.
func (r *Repository) CompleteMatch(ctx context.Context, matchID, submitterID string, result *domain.CombatResult, completedAt time.Time) (bool, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("marshaling result: %w", err)
	}

	query := `
		UPDATE matches
		SET status = 'completed', result = $3, completed_at = $4, submitted_by = $2
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := r.pool.Exec(ctx, query, matchID, submitterID, resultJSON, completedAt)
	if err != nil {
		return false, fmt.Errorf("completing match: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ApplyMatchOutcome applies the settled outcome to both player records. The
// two updates are independent numeric increments, so concurrent settlements
// of different matches touching the same player never conflict.
func (r *Repository) ApplyMatchOutcome(ctx context.Context, winnerID, loserID string, xpGained int64, now time.Time) error {
	winnerQuery := `
		UPDATE players
		SET pvp_wins = pvp_wins + 1, total_xp = total_xp + $2, last_pvp_match = $3
		WHERE id = $1
	`
	loserQuery := `
		UPDATE players
		SET pvp_losses = pvp_losses + 1, last_pvp_match = $2
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, winnerQuery, winnerID, xpGained, now)
	if err != nil {
		return fmt.Errorf("updating winner stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating winner stats: %w", domain.ErrPlayerNotFound)
	}

	tag, err = r.pool.Exec(ctx, loserQuery, loserID, now)
	if err != nil {
		return fmt.Errorf("updating loser stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating loser stats: %w", domain.ErrPlayerNotFound)
	}

	return nil
}

// AddExerciseXP awards exercise XP to a player and appends the exercise log
// in one transaction, so an award never lands without its audit row
func (r *Repository) AddExerciseXP(ctx context.Context, sub domain.ExerciseSubmission, now time.Time) (int64, error) {
	var totalXP int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			UPDATE players
			SET total_xp = total_xp + $2
			WHERE id = $1
			RETURNING total_xp
		`
		if err := tx.QueryRow(ctx, query, sub.PlayerID, sub.XP).Scan(&totalXP); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrPlayerNotFound
			}
			return fmt.Errorf("adding exercise xp: %w", err)
		}

		logQuery := `
			INSERT INTO exercise_logs (player_id, exercise, reps, xp_earned, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.Exec(ctx, logQuery, sub.PlayerID, sub.Exercise, sub.Reps, sub.XP, now); err != nil {
			return fmt.Errorf("recording exercise log: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return totalXP, nil
}

// GetBoardScores retrieves all players' scores for an arena leaderboard
// (used by the rebuild worker)
func (r *Repository) GetBoardScores(ctx context.Context, board string) (map[string]int64, error) {
	var query string
	switch board {
	case domain.BoardWins:
		query = `SELECT id, pvp_wins FROM players WHERE pvp_wins > 0`
	case domain.BoardXP:
		query = `SELECT id, total_xp FROM players WHERE total_xp > 0`
	default:
		return nil, fmt.Errorf("%w: unknown board %s", domain.ErrInvalidRequest, board)
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("getting board scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]int64)
	for rows.Next() {
		var playerID string
		var score int64
		if err := rows.Scan(&playerID, &score); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		scores[playerID] = score
	}
	return scores, rows.Err()
}
