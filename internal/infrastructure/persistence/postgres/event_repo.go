package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/event"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT REPOSITORY IMPLEMENTATION
// Clusters and events come in through the bulk importer and rarely
// change afterwards, except for the Welford running moments and
// deactivation.
// ══════════════════════════════════════════════════════════════════════════════

const eventColumns = `
	id, cluster_id, name, scoring_modes, score_direction,
	min_participants, max_participants,
	stat_count, stat_mean, stat_m2,
	is_active, created_at, updated_at`

// EventRepository implements event.Repository for PostgreSQL.
type EventRepository struct {
	conn *Connection
	tx   pgx.Tx
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(conn *Connection) *EventRepository {
	return &EventRepository{conn: conn}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *EventRepository) WithTx(tx pgx.Tx) *EventRepository {
	return &EventRepository{conn: r.conn, tx: tx}
}

func (r *EventRepository) querier() Querier {
	if r.tx != nil {
		return r.tx
	}
	return r.conn
}

// GetByID returns an event by ID.
func (r *EventRepository) GetByID(ctx context.Context, id shared.EventID) (*event.Event, error) {
	row := r.querier().QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1
	`, id.String())

	return r.scanEvent(row)
}

// GetByIDForUpdate returns the event under a row lock (NOWAIT). The
// running moments are read-modify-write state; every writer that pushes
// into them or rebuilds them must hold this lock for the transaction.
// A row held by another writer yields ErrEventLockBusy instead of blocking.
func (r *EventRepository) GetByIDForUpdate(ctx context.Context, id shared.EventID) (*event.Event, error) {
	row := r.querier().QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1
		FOR UPDATE NOWAIT
	`, id.String())

	ev, err := r.scanEvent(row)
	if IsLockNotAvailable(err) {
		return nil, shared.ErrEventLockBusy
	}
	return ev, err
}

// GetByClusterAndName returns an event by the unique (cluster, name) pair.
func (r *EventRepository) GetByClusterAndName(ctx context.Context, clusterID, name string) (*event.Event, error) {
	row := r.querier().QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE cluster_id = $1 AND name = $2
	`, clusterID, name)

	return r.scanEvent(row)
}

// ListByCluster returns the events of a cluster.
func (r *EventRepository) ListByCluster(ctx context.Context, clusterID string) ([]*event.Event, error) {
	rows, err := r.querier().Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE cluster_id = $1
		ORDER BY name ASC
	`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events by cluster: %w", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// ListActive returns all active events.
func (r *EventRepository) ListActive(ctx context.Context) ([]*event.Event, error) {
	rows, err := r.querier().Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE is_active
		ORDER BY cluster_id, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active events: %w", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// ListLeaderboardEvents returns active events supporting leaderboard
// scoring. Used by the recompute and weekly rollup jobs.
func (r *EventRepository) ListLeaderboardEvents(ctx context.Context) ([]*event.Event, error) {
	rows, err := r.querier().Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE is_active AND $1 = ANY(scoring_modes)
		ORDER BY cluster_id, name ASC
	`, event.ScoringLeaderboard.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard events: %w", err)
	}
	defer rows.Close()

	return r.scanEvents(rows)
}

// UpdateRunningStats atomically persists an event's running moments.
func (r *EventRepository) UpdateRunningStats(ctx context.Context, id shared.EventID, stats event.RunningStats) error {
	result, err := r.querier().Exec(ctx, `
		UPDATE events SET
			stat_count = $2,
			stat_mean = $3,
			stat_m2 = $4,
			updated_at = NOW()
		WHERE id = $1
	`, id.String(), stats.Count, stats.Mean, stats.M2)
	if err != nil {
		return fmt.Errorf("failed to update running stats: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrEventNotFound
	}

	return nil
}

// Deactivate deactivates an event.
func (r *EventRepository) Deactivate(ctx context.Context, id shared.EventID) error {
	result, err := r.querier().Exec(ctx, `
		UPDATE events SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1
	`, id.String())
	if err != nil {
		return fmt.Errorf("failed to deactivate event: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrEventNotFound
	}

	return nil
}

// GetCluster returns a cluster by ID.
func (r *EventRepository) GetCluster(ctx context.Context, clusterID string) (*event.Cluster, error) {
	row := r.querier().QueryRow(ctx, `
		SELECT id, number, name, is_active, created_at, updated_at
		FROM clusters
		WHERE id = $1
	`, clusterID)

	return r.scanCluster(row)
}

// GetClusterByNumber returns a cluster by its unique number.
func (r *EventRepository) GetClusterByNumber(ctx context.Context, number int) (*event.Cluster, error) {
	row := r.querier().QueryRow(ctx, `
		SELECT id, number, name, is_active, created_at, updated_at
		FROM clusters
		WHERE number = $1
	`, number)

	return r.scanCluster(row)
}

// ListClusters returns all clusters.
func (r *EventRepository) ListClusters(ctx context.Context) ([]*event.Cluster, error) {
	rows, err := r.querier().Query(ctx, `
		SELECT id, number, name, is_active, created_at, updated_at
		FROM clusters
		ORDER BY number ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	defer rows.Close()

	clusters := make([]*event.Cluster, 0)
	for rows.Next() {
		c, err := r.scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clusters: %w", err)
	}

	return clusters, nil
}

// BulkImport upserts clusters and events in one transaction.
// Clusters are matched by number, events by (cluster, name). Running
// stats of existing events are preserved.
func (r *EventRepository) BulkImport(ctx context.Context, clusters []*event.Cluster, events []*event.Event) error {
	run := func(q Querier) error {
		for _, c := range clusters {
			_, err := q.Exec(ctx, `
				INSERT INTO clusters (id, number, name, is_active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (number) DO UPDATE SET
					name = EXCLUDED.name,
					is_active = EXCLUDED.is_active,
					updated_at = NOW()
			`, c.ID, c.Number, c.Name, c.IsActive, c.CreatedAt, c.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to upsert cluster %d: %w", c.Number, err)
			}
		}

		for _, e := range events {
			modes := make([]string, len(e.ScoringModes))
			for i, m := range e.ScoringModes {
				modes[i] = m.String()
			}

			_, err := q.Exec(ctx, `
				INSERT INTO events (
					id, cluster_id, name, scoring_modes, score_direction,
					min_participants, max_participants, is_active, created_at, updated_at
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT ON CONSTRAINT uq_events_cluster_name DO UPDATE SET
					scoring_modes = EXCLUDED.scoring_modes,
					score_direction = EXCLUDED.score_direction,
					min_participants = EXCLUDED.min_participants,
					max_participants = EXCLUDED.max_participants,
					is_active = EXCLUDED.is_active,
					updated_at = NOW()
			`,
				e.ID.String(),
				e.ClusterID,
				e.Name,
				modes,
				string(e.Direction),
				e.MinParticipants,
				e.MaxParticipants,
				e.IsActive,
				e.CreatedAt,
				e.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert event %q: %w", e.Name, err)
			}
		}

		return nil
	}

	if r.tx != nil {
		return run(r.tx)
	}
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return run(tx)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

func (r *EventRepository) scanEvent(row pgx.Row) (*event.Event, error) {
	var e event.Event
	var id, direction string
	var modes []string

	err := row.Scan(
		&id,
		&e.ClusterID,
		&e.Name,
		&modes,
		&direction,
		&e.MinParticipants,
		&e.MaxParticipants,
		&e.AllTimeStats.Count,
		&e.AllTimeStats.Mean,
		&e.AllTimeStats.M2,
		&e.IsActive,
		&e.CreatedAt,
		&e.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	e.ID = shared.EventID(id)
	e.Direction = event.ScoreDirection(direction)
	e.ScoringModes = make([]event.ScoringMode, len(modes))
	for i, m := range modes {
		e.ScoringModes[i] = event.ScoringMode(m)
	}

	return &e, nil
}

func (r *EventRepository) scanEvents(rows pgx.Rows) ([]*event.Event, error) {
	events := make([]*event.Event, 0)
	for rows.Next() {
		e, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

func (r *EventRepository) scanCluster(row pgx.Row) (*event.Cluster, error) {
	var c event.Cluster

	err := row.Scan(
		&c.ID,
		&c.Number,
		&c.Name,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrClusterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cluster: %w", err)
	}

	return &c, nil
}
