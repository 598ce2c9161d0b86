package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/event"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/rating"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/postgres"
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/redis"
	"github.com/arena-hub/arena-tournament-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY ROLLUP JOB
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyRollupJob closes the previous scoring week for every leaderboard
// event. Each participant's best score of the week is normalized against
// the week's own population and folded into their running weekly
// average. A prior participant who sat the week out folds a zero: the
// weekly average punishes absence instead of ignoring it, which is what
// separates it from the all-time normalization it is blended with.
type WeeklyRollupJob struct {
	conn       *postgres.Connection
	eventRepo  *postgres.EventRepository
	subRepo    *postgres.SubmissionRepository
	statsRepo  *postgres.StatsRepository
	normalizer *rating.Normalizer

	cache  *redis.Cache // nil disables the processed-week guard
	logger *slog.Logger

	config WeeklyRollupConfig

	lastRunStats atomic.Value // *RollupStats
}

// WeeklyRollupConfig contains configuration for the rollup.
type WeeklyRollupConfig struct {
	// Timeout is the maximum duration for one full run.
	Timeout time.Duration

	// GuardTTL is how long a processed-week marker lives. Anything
	// comfortably past one week prevents a rerun from double-folding.
	GuardTTL time.Duration
}

// DefaultWeeklyRollupConfig returns sensible defaults.
func DefaultWeeklyRollupConfig() WeeklyRollupConfig {
	return WeeklyRollupConfig{
		Timeout:  5 * time.Minute,
		GuardTTL: 21 * 24 * time.Hour,
	}
}

// RollupStats contains statistics from one run.
type RollupStats struct {
	StartedAt       time.Time
	CompletedAt     time.Time
	Duration        time.Duration
	Week            string
	EventsProcessed int
	EventsSkipped   int
	PlayersFolded   int
	AbsenteesFolded int
	Errors          []error
}

// NewWeeklyRollupJob creates a new weekly rollup job.
func NewWeeklyRollupJob(
	conn *postgres.Connection,
	eventRepo *postgres.EventRepository,
	subRepo *postgres.SubmissionRepository,
	statsRepo *postgres.StatsRepository,
	normalizer *rating.Normalizer,
	cache *redis.Cache,
	logger *slog.Logger,
	config WeeklyRollupConfig,
) *WeeklyRollupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.GuardTTL <= 0 {
		config.GuardTTL = DefaultWeeklyRollupConfig().GuardTTL
	}

	return &WeeklyRollupJob{
		conn:       conn,
		eventRepo:  eventRepo,
		subRepo:    subRepo,
		statsRepo:  statsRepo,
		normalizer: normalizer,
		cache:      cache,
		logger:     logger,
		config:     config,
	}
}

// Name returns the job name.
func (j *WeeklyRollupJob) Name() string {
	return "weekly_rollup"
}

// Description returns a human-readable description.
func (j *WeeklyRollupJob) Description() string {
	return "Folds last week's normalized scores into running weekly averages"
}

// Run executes the rollup for the week before the current one.
func (j *WeeklyRollupJob) Run(ctx context.Context) error {
	window := timeutil.LastWeek(time.Now())

	startedAt := time.Now()
	stats := &RollupStats{
		StartedAt: startedAt,
		Week:      window.Key(),
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

	j.logger.Info("starting weekly_rollup job",
		"week", window.Key(),
		"events", len(events),
	)

	for _, ev := range events {
		if !ev.IsActive {
			continue
		}

		processed, err := j.rollupEvent(ctx, ev, window, stats)
		if err != nil {
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to roll up event week",
				"event_id", ev.ID.String(),
				"event", ev.Name,
				"week", window.Key(),
				"error", err,
			)
			continue
		}
		if processed {
			stats.EventsProcessed++
		} else {
			stats.EventsSkipped++
		}
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("weekly_rollup job completed",
		"week", window.Key(),
		"duration", stats.Duration.String(),
		"events_processed", stats.EventsProcessed,
		"events_skipped", stats.EventsSkipped,
		"players_folded", stats.PlayersFolded,
		"absentees_folded", stats.AbsenteesFolded,
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("rollup completed with %d errors", len(stats.Errors))
	}

	return nil
}

// rollupEvent folds one event's week. Returns false when the week was
// already processed for this event.
func (j *WeeklyRollupJob) rollupEvent(ctx context.Context, ev *event.Event, window timeutil.WeekWindow, stats *RollupStats) (bool, error) {
	key := weekGuardKey(ev.ID, window)
	acquired, err := j.acquireWeekGuard(ctx, key)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}

	if err := j.foldEventWeek(ctx, ev, window, stats); err != nil {
		// The marker must not outlive a failed fold, or the week is
		// silently lost until the guard expires.
		j.releaseWeekGuard(context.WithoutCancel(ctx), key)
		return false, err
	}

	return true, nil
}

func weekGuardKey(eventID shared.EventID, window timeutil.WeekWindow) string {
	return fmt.Sprintf("weekly_rollup:%s:%s", eventID.String(), window.Key())
}

// acquireWeekGuard marks the (event, week) pair as processed. Returns
// false when an earlier run already holds the marker. A nil cache
// disables the guard.
func (j *WeeklyRollupJob) acquireWeekGuard(ctx context.Context, key string) (bool, error) {
	if j.cache == nil {
		return true, nil
	}
	acquired, err := j.cache.SetNX(ctx, key, "done", j.config.GuardTTL)
	if err != nil {
		return false, fmt.Errorf("failed to check processed-week guard: %w", err)
	}
	return acquired, nil
}

// releaseWeekGuard drops the processed-week marker after a failed fold
// so the next run retries the week.
func (j *WeeklyRollupJob) releaseWeekGuard(ctx context.Context, key string) {
	if j.cache == nil {
		return
	}
	if err := j.cache.Delete(ctx, key); err != nil {
		j.logger.Warn("failed to release processed-week guard", "key", key, "error", err)
	}
}

func (j *WeeklyRollupJob) foldEventWeek(ctx context.Context, ev *event.Event, window timeutil.WeekWindow, stats *RollupStats) error {
	weekScores, err := j.subRepo.ScoresByEventSince(ctx, ev.ID, window.Start, window.End)
	if err != nil {
		return err
	}

	// The week's own population: every score submitted in the window,
	// across all players. A quiet week with two entrants still yields
	// a usable distribution because StdDev degenerates to 1.
	var week event.RunningStats
	for _, scores := range weekScores {
		for _, s := range scores {
			week.Push(s)
		}
	}

	return j.conn.WithTx(ctx, postgres.DefaultTxOptions(), func(tx pgx.Tx) error {
		statsRepo := j.statsRepo.WithTx(tx)

		rows, err := statsRepo.ListByEvent(ctx, ev.ID)
		if err != nil {
			return err
		}

		// Lock order matches match finalization: ascending player ID.
		sort.Slice(rows, func(a, b int) bool {
			return rows[a].PlayerID.String() < rows[b].PlayerID.String()
		})

		for _, row := range rows {
			scores, participated := weekScores[row.PlayerID]
			if !participated && row.WeeksParticipated == 0 {
				// Never entered a week yet; nothing to punish.
				continue
			}

			locked, err := statsRepo.GetForUpdate(ctx, row.PlayerID, ev.ID)
			if err != nil {
				return err
			}

			if participated {
				best := bestOfWeek(scores, ev.Direction)
				weekElo := j.normalizer.Normalize(best, week, ev.Direction)
				locked.FoldWeek(float64(weekElo))
				stats.PlayersFolded++
			} else {
				locked.FoldWeek(0)
				stats.AbsenteesFolded++
			}

			if err := statsRepo.Update(ctx, locked); err != nil {
				return err
			}
		}

		return nil
	})
}

// bestOfWeek picks the best raw score of a week under the event's
// comparison direction.
func bestOfWeek(scores []float64, direction event.ScoreDirection) float64 {
	best := scores[0]
	for _, s := range scores[1:] {
		if direction == event.DirectionLowerBetter {
			if s < best {
				best = s
			}
		} else if s > best {
			best = s
		}
	}
	return best
}

// LastRunStats returns statistics from the most recent run.
func (j *WeeklyRollupJob) LastRunStats() *RollupStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*RollupStats)
	}
	return nil
}
