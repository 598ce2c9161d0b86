package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER AUDIT JOB
// ══════════════════════════════════════════════════════════════════════════════

// LedgerAuditJob runs the full ticket ledger sweep: every player's
// cached balance is checked against the sum of their ledger entries.
// Mismatches are logged for manual investigation, never auto-corrected;
// a wrong balance means a write path skipped the ledger, and papering
// over it would hide the bug.
type LedgerAuditJob struct {
	verifier *query.VerifyLedgerHandler
	logger   *slog.Logger

	config LedgerAuditConfig

	lastRunStats atomic.Value // *query.VerifyLedgerResult
}

// LedgerAuditConfig contains configuration for the audit.
type LedgerAuditConfig struct {
	// BatchSize is the page size of the player walk.
	BatchSize int

	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration
}

// DefaultLedgerAuditConfig returns sensible defaults.
func DefaultLedgerAuditConfig() LedgerAuditConfig {
	return LedgerAuditConfig{
		BatchSize: 200,
		Timeout:   10 * time.Minute,
	}
}

// NewLedgerAuditJob creates a new ledger audit job.
func NewLedgerAuditJob(verifier *query.VerifyLedgerHandler, logger *slog.Logger, config LedgerAuditConfig) *LedgerAuditJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &LedgerAuditJob{
		verifier: verifier,
		logger:   logger,
		config:   config,
	}
}

// Name returns the job name.
func (j *LedgerAuditJob) Name() string {
	return "ledger_audit"
}

// Description returns a human-readable description.
func (j *LedgerAuditJob) Description() string {
	return "Verifies cached ticket balances against the ledger for all players"
}

// Run executes the sweep.
func (j *LedgerAuditJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	result, err := j.verifier.Handle(ctx, query.VerifyLedgerQuery{
		BatchSize: j.config.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("ledger verification failed: %w", err)
	}

	j.lastRunStats.Store(result)

	if result.Clean() {
		j.logger.Info("ledger_audit job completed",
			"players_checked", result.PlayersChecked,
			"mismatches", 0,
		)
		return nil
	}

	for _, m := range result.Mismatches {
		j.logger.Error("ticket balance does not match ledger",
			"player_id", m.PlayerID,
			"cached", m.Cached,
			"computed", m.Computed,
			"diff", m.Diff,
		)
	}

	j.logger.Warn("ledger_audit job found mismatches",
		"players_checked", result.PlayersChecked,
		"mismatches", len(result.Mismatches),
	)

	return fmt.Errorf("ledger audit found %d mismatched balances", len(result.Mismatches))
}

// LastRunStats returns the most recent sweep result.
func (j *LedgerAuditJob) LastRunStats() *query.VerifyLedgerResult {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*query.VerifyLedgerResult)
	}
	return nil
}
