package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/rating"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATING HISTORY REPOSITORY IMPLEMENTATION
// Append-only. Rows are written in the same transaction as the stats
// mutation they record and are never updated or deleted; recompute runs
// append their own entries alongside the old ones.
// ══════════════════════════════════════════════════════════════════════════════

const historyColumns = `
	id, player_id, event_id, source, source_id,
	elo_before, elo_after, delta, k_factor,
	COALESCE(opponent_id::text, ''), outcome, occurred_at`

// HistoryRepository implements rating.HistoryRepository for PostgreSQL.
type HistoryRepository struct {
	q Querier
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(conn *Connection) *HistoryRepository {
	return &HistoryRepository{q: conn}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *HistoryRepository) WithTx(tx pgx.Tx) *HistoryRepository {
	return &HistoryRepository{q: tx}
}

// Append writes one history row.
func (r *HistoryRepository) Append(ctx context.Context, e *rating.HistoryEntry) error {
	_, err := r.q.Exec(ctx, appendHistorySQL, appendHistoryArgs(e)...)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// AppendBatch writes the history rows of all match participants.
func (r *HistoryRepository) AppendBatch(ctx context.Context, entries []*rating.HistoryEntry) error {
	for _, e := range entries {
		if _, err := r.q.Exec(ctx, appendHistorySQL, appendHistoryArgs(e)...); err != nil {
			return fmt.Errorf("failed to append history batch: %w", err)
		}
	}
	return nil
}

// List returns filtered entries, newest first.
func (r *HistoryRepository) List(ctx context.Context, query rating.HistoryQuery) ([]*rating.HistoryEntry, error) {
	conditions := []string{"player_id = $1"}
	args := []interface{}{query.PlayerID.String()}

	if !query.EventID.IsEmpty() {
		args = append(args, query.EventID.String())
		conditions = append(conditions, "event_id = $"+strconv.Itoa(len(args)))
	}
	if !query.Since.IsZero() {
		args = append(args, query.Since)
		conditions = append(conditions, "occurred_at >= $"+strconv.Itoa(len(args)))
	}
	if !query.Until.IsZero() {
		args = append(args, query.Until)
		conditions = append(conditions, "occurred_at < $"+strconv.Itoa(len(args)))
	}

	args = append(args, normalizeLimit(query.Limit))

	sql := `
		SELECT ` + historyColumns + `
		FROM rating_history
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY occurred_at DESC, source ASC, id DESC
		LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := make([]*rating.HistoryEntry, 0)
	for rows.Next() {
		e, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	return entries, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

const appendHistorySQL = `
	INSERT INTO rating_history (
		id, player_id, event_id, source, source_id,
		elo_before, elo_after, delta, k_factor,
		opponent_id, outcome, occurred_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

func appendHistoryArgs(e *rating.HistoryEntry) []interface{} {
	var opponentID *string
	if !e.OpponentID.IsEmpty() {
		s := e.OpponentID.String()
		opponentID = &s
	}

	return []interface{}{
		e.ID,
		e.PlayerID.String(),
		e.EventID.String(),
		string(e.Source),
		e.SourceID,
		e.EloBefore.Int(),
		e.EloAfter.Int(),
		e.Delta,
		e.KFactor,
		opponentID,
		e.Outcome,
		e.OccurredAt,
	}
}

func scanHistoryEntry(rows pgx.Rows) (*rating.HistoryEntry, error) {
	var e rating.HistoryEntry
	var playerID, eventID, source, opponentID string
	var before, after int
	var occurredAt time.Time

	err := rows.Scan(
		&e.ID,
		&playerID,
		&eventID,
		&source,
		&e.SourceID,
		&before,
		&after,
		&e.Delta,
		&e.KFactor,
		&opponentID,
		&e.Outcome,
		&occurredAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	e.PlayerID = shared.PlayerID(playerID)
	e.EventID = shared.EventID(eventID)
	e.Source = rating.HistorySource(source)
	e.EloBefore = shared.Elo(before)
	e.EloAfter = shared.Elo(after)
	e.OpponentID = shared.PlayerID(opponentID)
	e.OccurredAt = occurredAt

	return &e, nil
}
