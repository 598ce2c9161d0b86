// Package jobs contains implementations of scheduled jobs for Arena Tournament Hub.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/postgres"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRE PROPOSALS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ExpireProposalsJob sweeps matches whose result proposals outlived their
// confirmation window and reverts them to pending. Each match is handled
// in its own transaction under a row lock, so the sweep can race with a
// late confirmation without corrupting state: whichever commits first
// wins, and the loser sees the new state.
type ExpireProposalsJob struct {
	conn      *postgres.Connection
	matchRepo *postgres.MatchRepository
	logger    *slog.Logger

	config ExpireProposalsConfig

	lastRunStats atomic.Value // *ExpireStats
}

// ExpireProposalsConfig contains configuration for the sweep.
type ExpireProposalsConfig struct {
	// BatchSize caps how many expired matches one run picks up.
	BatchSize int

	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration
}

// DefaultExpireProposalsConfig returns sensible defaults.
func DefaultExpireProposalsConfig() ExpireProposalsConfig {
	return ExpireProposalsConfig{
		BatchSize: 100,
		Timeout:   time.Minute,
	}
}

// ExpireStats contains statistics from one sweep.
type ExpireStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Candidates  int
	Expired     int
	Skipped     int
	Errors      []error
}

// NewExpireProposalsJob creates a new proposal expiry job.
func NewExpireProposalsJob(
	conn *postgres.Connection,
	matchRepo *postgres.MatchRepository,
	logger *slog.Logger,
	config ExpireProposalsConfig,
) *ExpireProposalsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultExpireProposalsConfig().BatchSize
	}

	return &ExpireProposalsJob{
		conn:      conn,
		matchRepo: matchRepo,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *ExpireProposalsJob) Name() string {
	return "expire_proposals"
}

// Description returns a human-readable description.
func (j *ExpireProposalsJob) Description() string {
	return "Reverts matches with expired result proposals back to pending"
}

// Run executes the sweep.
func (j *ExpireProposalsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &ExpireStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	ids, err := j.matchRepo.ListExpiredProposals(ctx, time.Now().UTC(), j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list expired proposals: %w", err)
	}

	stats.Candidates = len(ids)
	if len(ids) == 0 {
		j.finish(stats)
		return nil
	}

	j.logger.Info("expiring stale result proposals", "candidates", len(ids))

	for _, id := range ids {
		expired, err := j.expireOne(ctx, id)
		if err != nil {
			if shared.IsNotFound(err) {
				stats.Skipped++
				continue
			}
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to expire proposal",
				"match_id", id.String(),
				"error", err,
			)
			continue
		}
		if expired {
			stats.Expired++
		} else {
			stats.Skipped++
		}
	}

	j.finish(stats)

	j.logger.Info("expire_proposals job completed",
		"duration", stats.Duration.String(),
		"candidates", stats.Candidates,
		"expired", stats.Expired,
		"skipped", stats.Skipped,
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("sweep completed with %d errors", len(stats.Errors))
	}

	return nil
}

// expireOne reverts a single match under its row lock. The expiry check
// repeats inside the transaction: the listing is a hint, the locked
// entity is the truth.
func (j *ExpireProposalsJob) expireOne(ctx context.Context, id shared.MatchID) (bool, error) {
	var expired bool
	err := j.conn.WithTx(ctx, postgres.DefaultTxOptions(), func(tx pgx.Tx) error {
		matchRepo := j.matchRepo.WithTx(tx)

		m, err := matchRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if !m.ExpireProposal(time.Now().UTC()) {
			// Confirmed, cancelled or re-proposed since the listing.
			return nil
		}

		expired = true
		return matchRepo.Update(ctx, m)
	})
	return expired, err
}

// LastRunStats returns statistics from the most recent sweep.
func (j *ExpireProposalsJob) LastRunStats() *ExpireStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*ExpireStats)
	}
	return nil
}

func (j *ExpireProposalsJob) finish(stats *ExpireStats) {
	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastRunStats.Store(stats)
}
