package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pvp-arena/internal/config"
	"github.com/pvp-arena/internal/domain"
	"github.com/pvp-arena/internal/postgres"
	"github.com/pvp-arena/internal/redis"
)

// SyncWorker periodically rebuilds the realtime arena leaderboards in Redis
// from the authoritative stats in PostgreSQL. Settlement increments both
// sides independently, so this is a recovery path for drift or Redis
// restarts, not part of the settlement transaction.
type SyncWorker struct {
	arena    *redis.Arena
	postgres *postgres.Repository
	config   *config.SyncConfig
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	arena *redis.Arena,
	postgres *postgres.Repository,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		arena:    arena,
		postgres: postgres,
		config:   cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background rebuild process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("leaderboard sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background rebuild process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("leaderboard sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.rebuildAll(ctx)
		}
	}
}

// rebuildAll rebuilds every arena board from PostgreSQL
func (w *SyncWorker) rebuildAll(ctx context.Context) {
	w.logger.Info("starting leaderboard rebuild cycle")
	startTime := time.Now()

	errorCount := 0
	for _, board := range []string{domain.BoardWins, domain.BoardXP} {
		if err := w.RebuildBoard(ctx, board); err != nil {
			w.logger.Error("failed to rebuild board", "board", board, "error", err)
			errorCount++
		}
	}

	w.logger.Info("leaderboard rebuild cycle completed",
		"duration", time.Since(startTime),
		"errors", errorCount,
	)
}

// RebuildBoard loads a board's authoritative scores from PostgreSQL and
// writes them to Redis in batches
func (w *SyncWorker) RebuildBoard(ctx context.Context, board string) error {
	scores, err := w.postgres.GetBoardScores(ctx, board)
	if err != nil {
		return err
	}

	if len(scores) == 0 {
		w.logger.Debug("no scores to rebuild", "board", board)
		return nil
	}

	batchSize := w.config.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}

	batch := make(map[string]int64, batchSize)
	for playerID, score := range scores {
		batch[playerID] = score
		if len(batch) >= batchSize {
			if err := w.arena.BatchSetScores(ctx, board, batch); err != nil {
				return err
			}
			batch = make(map[string]int64, batchSize)
		}
	}
	if len(batch) > 0 {
		if err := w.arena.BatchSetScores(ctx, board, batch); err != nil {
			return err
		}
	}

	w.logger.Debug("rebuilt board", "board", board, "player_count", len(scores))
	return nil
}

// RebuildAllOnce runs a single rebuild cycle (startup recovery or manual
// trigger)
func (w *SyncWorker) RebuildAllOnce(ctx context.Context) {
	w.rebuildAll(ctx)
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
