package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pvp-arena/internal/config"
	"github.com/pvp-arena/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Arena provides Redis-backed arena leaderboards and player info caching
type Arena struct {
	client *redis.Client
	logger *slog.Logger
}

// NewArena creates a new Redis arena service
func NewArena(cfg *config.RedisConfig, logger *slog.Logger) (*Arena, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Arena{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (a *Arena) Close() error {
	return a.client.Close()
}

// boardKey returns the Redis key for an arena leaderboard's sorted set
func (a *Arena) boardKey(board string) string {
	return fmt.Sprintf("arena:%s", board)
}

// playerInfoKey returns the Redis key for the player info cache
func (a *Arena) playerInfoKey(playerID string) string {
	return fmt.Sprintf("player:%s:info", playerID)
}

// IncrementScore increments a player's score on a board by the given delta
func (a *Arena) IncrementScore(ctx context.Context, board, playerID string, delta int64) (int64, error) {
	key := a.boardKey(board)
	newScore, err := a.client.ZIncrBy(ctx, key, float64(delta), playerID).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing score: %w", err)
	}
	return int64(newScore), nil
}

// GetTopN returns the top N players from a board (descending)
func (a *Arena) GetTopN(ctx context.Context, board string, n int) ([]domain.LeaderboardEntry, error) {
	key := a.boardKey(board)
	results, err := a.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(results))
	for i, result := range results {
		entries[i] = domain.LeaderboardEntry{
			Rank:     int64(i + 1),
			PlayerID: result.Member.(string),
			Score:    int64(result.Score),
		}
	}
	return entries, nil
}

// GetPlayerRank returns a player's rank and score on a board
func (a *Arena) GetPlayerRank(ctx context.Context, board, playerID string) (*domain.LeaderboardEntry, error) {
	key := a.boardKey(board)

	pipe := a.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, key, playerID)
	scoreCmd := pipe.ZScore(ctx, key, playerID)
	_, err := pipe.Exec(ctx)
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player rank: %w", err)
	}

	rank, err := rankCmd.Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting rank result: %w", err)
	}

	score, err := scoreCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting score result: %w", err)
	}

	return &domain.LeaderboardEntry{
		Rank:     rank + 1, // Convert 0-indexed to 1-indexed
		PlayerID: playerID,
		Score:    int64(score),
	}, nil
}

// BatchSetScores replaces scores on a board using pipelining (rebuild path)
func (a *Arena) BatchSetScores(ctx context.Context, board string, scores map[string]int64) error {
	key := a.boardKey(board)
	pipe := a.client.Pipeline()

	for playerID, score := range scores {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(score),
			Member: playerID,
		})
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("batch setting scores: %w", err)
	}
	return nil
}

// SetPlayerInfo caches player display information
func (a *Arena) SetPlayerInfo(ctx context.Context, playerID, username string) error {
	key := a.playerInfoKey(playerID)
	err := a.client.HSet(ctx, key, "username", username).Err()
	if err != nil {
		return fmt.Errorf("setting player info: %w", err)
	}
	return nil
}

// GetPlayerUsername retrieves a cached player username, empty when missing
func (a *Arena) GetPlayerUsername(ctx context.Context, playerID string) (string, error) {
	key := a.playerInfoKey(playerID)
	result, err := a.client.HGet(ctx, key, "username").Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("getting player info: %w", err)
	}
	return result, nil
}
