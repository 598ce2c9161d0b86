package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/event"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/ranking"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/rating"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/postgres"
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/redis"
	"github.com/arena-hub/arena-tournament-hub/pkg/singleflight"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE RATINGS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeRatingsJob rebuilds the Z-score normalization of every
// leaderboard event from the full submission population. The running
// moments kept by the submit path drift: each submission is normalized
// against the population as it was at submit time, and concurrent
// submissions fold into the moments without a lock. The periodic full
// recompute replaces the drifted moments and every stored rating with
// values derived from scratch, which makes it idempotent and safe to
// drop when a run is already in flight.
type RecomputeRatingsJob struct {
	conn        *postgres.Connection
	eventRepo   *postgres.EventRepository
	subRepo     *postgres.SubmissionRepository
	statsRepo   *postgres.StatsRepository
	historyRepo *postgres.HistoryRepository
	normalizer  *rating.Normalizer

	lbCache *redis.LeaderboardCache // nil when caching is off
	group   *singleflight.Group
	lock    *redis.RecomputeLock // nil in single-instance deployments
	logger  *slog.Logger

	config RecomputeRatingsConfig

	lastRunStats atomic.Value // *RecomputeStats
}

// RecomputeRatingsConfig contains configuration for the recompute.
type RecomputeRatingsConfig struct {
	// Timeout is the maximum duration for one full run across all events.
	Timeout time.Duration
}

// DefaultRecomputeRatingsConfig returns sensible defaults.
func DefaultRecomputeRatingsConfig() RecomputeRatingsConfig {
	return RecomputeRatingsConfig{
		Timeout: 5 * time.Minute,
	}
}

// RecomputeStats contains statistics from one run.
type RecomputeStats struct {
	StartedAt         time.Time
	CompletedAt       time.Time
	Duration          time.Duration
	EventsProcessed   int
	EventsDropped     int
	SubmissionsScored int
	PlayersRescored   int
	Errors            []error
}

// NewRecomputeRatingsJob creates a new recompute job.
func NewRecomputeRatingsJob(
	conn *postgres.Connection,
	eventRepo *postgres.EventRepository,
	subRepo *postgres.SubmissionRepository,
	statsRepo *postgres.StatsRepository,
	historyRepo *postgres.HistoryRepository,
	normalizer *rating.Normalizer,
	lbCache *redis.LeaderboardCache,
	lock *redis.RecomputeLock,
	logger *slog.Logger,
	config RecomputeRatingsConfig,
) *RecomputeRatingsJob {
	if logger == nil {
		logger = slog.Default()
	}

	j := &RecomputeRatingsJob{
		conn:        conn,
		eventRepo:   eventRepo,
		subRepo:     subRepo,
		statsRepo:   statsRepo,
		historyRepo: historyRepo,
		normalizer:  normalizer,
		lbCache:     lbCache,
		lock:        lock,
		logger:      logger,
		config:      config,
	}

	j.group = singleflight.New(singleflight.WithOnDrop(func(key string) {
		j.logger.Debug("recompute already in flight, dropping", "key", key)
	}))

	return j
}

// Name returns the job name.
func (j *RecomputeRatingsJob) Name() string {
	return "recompute_ratings"
}

// Description returns a human-readable description.
func (j *RecomputeRatingsJob) Description() string {
	return "Rebuilds Z-score normalization of leaderboard events from the full population"
}

// Run executes the recompute across all leaderboard events.
func (j *RecomputeRatingsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &RecomputeStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	events, err := j.eventRepo.ListLeaderboardEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list leaderboard events: %w", err)
	}

	for _, ev := range events {
		if !ev.IsActive {
			continue
		}

		processed, err := j.RecomputeEvent(ctx, ev, stats)
		if err != nil {
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to recompute event",
				"event_id", ev.ID.String(),
				"event", ev.Name,
				"error", err,
			)
			continue
		}
		if processed {
			stats.EventsProcessed++
		} else {
			stats.EventsDropped++
		}
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("recompute_ratings job completed",
		"duration", stats.Duration.String(),
		"events_processed", stats.EventsProcessed,
		"events_dropped", stats.EventsDropped,
		"submissions_scored", stats.SubmissionsScored,
		"players_rescored", stats.PlayersRescored,
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("recompute completed with %d errors", len(stats.Errors))
	}

	return nil
}

// RecomputeEvent recomputes one event unless a run for it is already in
// flight here or on another instance. Duplicates are dropped, never
// queued: the in-flight run recomputes from the same population and
// lands the same result. Returns false when the request was dropped.
func (j *RecomputeRatingsJob) RecomputeEvent(ctx context.Context, ev *event.Event, stats *RecomputeStats) (bool, error) {
	key := "recompute:" + ev.ID.String()

	if !j.group.TryAcquire(key) {
		return false, nil
	}
	defer j.group.Release(key)

	if j.lock != nil {
		ok, err := j.lock.TryAcquire(ctx, key)
		if err != nil {
			return false, fmt.Errorf("failed to acquire recompute lock: %w", err)
		}
		if !ok {
			return false, nil
		}
		defer func() {
			if err := j.lock.Release(context.WithoutCancel(ctx), key); err != nil {
				j.logger.Warn("failed to release recompute lock", "key", key, "error", err)
			}
		}()
	}

	if err := j.recomputeTx(ctx, ev, stats); err != nil {
		return false, err
	}

	if j.lbCache != nil {
		scope := ranking.Scope{Kind: ranking.ScopeEvent, EventID: ev.ID}
		if err := j.lbCache.Invalidate(ctx, scope); err != nil {
			j.logger.Warn("failed to invalidate leaderboard cache",
				"event_id", ev.ID.String(),
				"error", err,
			)
		}
	}

	return true, nil
}

// recomputeTx performs the full rebuild in one transaction: fresh
// moments from every raw score, new normalized ratings for every
// submission, and rescored per-player stats from each player's best.
func (j *RecomputeRatingsJob) recomputeTx(ctx context.Context, ev *event.Event, stats *RecomputeStats) error {
	base := j.normalizer.BaseElo()

	return j.conn.WithTx(ctx, postgres.DefaultTxOptions(), func(tx pgx.Tx) error {
		eventRepo := j.eventRepo.WithTx(tx)
		subRepo := j.subRepo.WithTx(tx)
		statsRepo := j.statsRepo.WithTx(tx)
		historyRepo := j.historyRepo.WithTx(tx)

		// Submit writers push into the moments under the same row lock;
		// holding it for the rebuild keeps the population settled until
		// the new moments land.
		locked, err := eventRepo.GetByIDForUpdate(ctx, ev.ID)
		if err != nil {
			return err
		}

		subs, err := subRepo.ListByEvent(ctx, ev.ID)
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			return nil
		}

		// Rebuild the moments from scratch; the submit path's running
		// copy has drifted by exactly what this replaces.
		population := locked.AllTimeStats
		population.Reset()
		for _, s := range subs {
			population.Push(s.RawScore)
		}
		if err := eventRepo.UpdateRunningStats(ctx, ev.ID, population); err != nil {
			return err
		}

		ids := make([]string, len(subs))
		elos := make([]shared.Elo, len(subs))
		for i, s := range subs {
			ids[i] = s.ID
			elos[i] = j.normalizer.Normalize(s.RawScore, population, ev.Direction)
		}
		if err := subRepo.UpdateNormalizedBatch(ctx, ids, elos); err != nil {
			return err
		}
		stats.SubmissionsScored += len(subs)

		// Rescore every participant from their best submission against
		// the rebuilt population. History is append-only: entries from
		// earlier runs stay as audit rows, distinguishable by source
		// and occurred_at.
		rows, err := statsRepo.ListByEvent(ctx, ev.ID)
		if err != nil {
			return err
		}

		entries := make([]*rating.HistoryEntry, 0, len(rows))
		for _, row := range rows {
			best, err := subRepo.BestByPlayer(ctx, row.PlayerID, ev.ID, ev.Direction)
			if err != nil {
				if shared.IsNotFound(err) {
					continue
				}
				return err
			}

			newElo := j.normalizer.Normalize(best.RawScore, population, ev.Direction)
			if newElo == row.AllTimeElo {
				continue
			}

			entry, err := rating.NewHistoryEntry(
				uuid.New().String(),
				row.PlayerID,
				ev.ID,
				rating.SourceRecompute,
				ev.ID.String(),
				row.AllTimeElo,
				newElo,
				0,
				"",
			)
			if err != nil {
				return err
			}
			entries = append(entries, entry)

			row.AllTimeElo = newElo
			row.RawElo = newElo
			row.ScoringElo = newElo.Floor(base)
			row.UpdatedAt = time.Now().UTC()
			if err := statsRepo.Update(ctx, row); err != nil {
				return err
			}
			stats.PlayersRescored++
		}

		return historyRepo.AppendBatch(ctx, entries)
	})
}

// LastRunStats returns statistics from the most recent run.
func (j *RecomputeRatingsJob) LastRunStats() *RecomputeStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*RecomputeStats)
	}
	return nil
}
