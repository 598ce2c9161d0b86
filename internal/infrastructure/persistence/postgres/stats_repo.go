package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/rating"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER EVENT STATS REPOSITORY IMPLEMENTATION
// One row per (player, event); this row is the unit of concurrency control
// for rating writes. Mutations go through GetForUpdate inside a transaction.
// ══════════════════════════════════════════════════════════════════════════════

const statsColumns = `
	id, player_id, event_id,
	raw_elo, scoring_elo,
	matches_played, wins, losses, draws,
	weekly_elo_average, weeks_participated, all_time_elo,
	created_at, updated_at`

// StatsRepository implements rating.StatsRepository for PostgreSQL.
type StatsRepository struct {
	q Querier
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(conn *Connection) *StatsRepository {
	return &StatsRepository{q: conn}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *StatsRepository) WithTx(tx pgx.Tx) *StatsRepository {
	return &StatsRepository{q: tx}
}

// GetOrCreate returns the (player, event) row, lazily creating it at the
// starting rating on first participation. The unique constraint on
// (player_id, event_id) is the backstop against a concurrent first
// participation creating two rows.
func (r *StatsRepository) GetOrCreate(ctx context.Context, playerID shared.PlayerID, eventID shared.EventID, starting shared.Elo) (*rating.PlayerEventStats, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO player_event_stats (id, player_id, event_id, raw_elo, scoring_elo, all_time_elo)
		VALUES ($1, $2, $3, $4, $4, $4)
		ON CONFLICT ON CONSTRAINT uq_stats_player_event DO NOTHING
	`, uuid.New().String(), playerID.String(), eventID.String(), starting.Int())
	if err != nil {
		return nil, fmt.Errorf("failed to seed stats row: %w", err)
	}

	return r.Get(ctx, playerID, eventID)
}

// Get returns the (player, event) row.
func (r *StatsRepository) Get(ctx context.Context, playerID shared.PlayerID, eventID shared.EventID) (*rating.PlayerEventStats, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+statsColumns+`
		FROM player_event_stats
		WHERE player_id = $1 AND event_id = $2
	`, playerID.String(), eventID.String())

	return r.scanStats(row)
}

// GetForUpdate returns the row under a row lock (NOWAIT). A row already
// held by another writer yields ErrStatsLockBusy instead of blocking.
// Must be called inside a transaction.
func (r *StatsRepository) GetForUpdate(ctx context.Context, playerID shared.PlayerID, eventID shared.EventID) (*rating.PlayerEventStats, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+statsColumns+`
		FROM player_event_stats
		WHERE player_id = $1 AND event_id = $2
		FOR UPDATE NOWAIT
	`, playerID.String(), eventID.String())

	stats, err := r.scanStats(row)
	if IsLockNotAvailable(err) {
		return nil, shared.ErrStatsLockBusy
	}
	return stats, err
}

// EnsureBatch creates missing rows for a participant set in one statement.
// Existing rows are left untouched.
func (r *StatsRepository) EnsureBatch(ctx context.Context, playerIDs []shared.PlayerID, eventID shared.EventID, starting shared.Elo) error {
	if len(playerIDs) == 0 {
		return nil
	}

	values := make([]string, len(playerIDs))
	args := make([]interface{}, 0, len(playerIDs)+2)
	args = append(args, eventID.String(), starting.Int())
	for i, playerID := range playerIDs {
		args = append(args, uuid.New().String(), playerID.String())
		values[i] = fmt.Sprintf("($%d, $%d, $1, $2, $2, $2)", len(args)-1, len(args))
	}

	query := `
		INSERT INTO player_event_stats (id, player_id, event_id, raw_elo, scoring_elo, all_time_elo)
		VALUES ` + strings.Join(values, ", ") + `
		ON CONFLICT ON CONSTRAINT uq_stats_player_event DO NOTHING`

	if _, err := r.q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to ensure stats rows: %w", err)
	}

	return nil
}

// Update persists stat changes.
func (r *StatsRepository) Update(ctx context.Context, s *rating.PlayerEventStats) error {
	result, err := r.q.Exec(ctx, `
		UPDATE player_event_stats SET
			raw_elo = $2,
			scoring_elo = $3,
			matches_played = $4,
			wins = $5,
			losses = $6,
			draws = $7,
			weekly_elo_average = $8,
			weeks_participated = $9,
			all_time_elo = $10,
			updated_at = NOW()
		WHERE id = $1
	`,
		s.ID,
		s.RawElo.Int(),
		s.ScoringElo.Int(),
		s.MatchesPlayed,
		s.Wins,
		s.Losses,
		s.Draws,
		s.WeeklyEloAverage,
		s.WeeksParticipated,
		s.AllTimeElo.Int(),
	)
	if err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrStatsNotFound
	}

	return nil
}

// ListByPlayer returns all of a player's rows across events.
func (r *StatsRepository) ListByPlayer(ctx context.Context, playerID shared.PlayerID) ([]*rating.PlayerEventStats, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+statsColumns+`
		FROM player_event_stats
		WHERE player_id = $1
		ORDER BY scoring_elo DESC
	`, playerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list stats by player: %w", err)
	}
	defer rows.Close()

	return r.scanStatsList(rows)
}

// ListByEvent returns all rows of an event.
func (r *StatsRepository) ListByEvent(ctx context.Context, eventID shared.EventID) ([]*rating.PlayerEventStats, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+statsColumns+`
		FROM player_event_stats
		WHERE event_id = $1
		ORDER BY scoring_elo DESC
	`, eventID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list stats by event: %w", err)
	}
	defer rows.Close()

	return r.scanStatsList(rows)
}

// PlayerEloByCluster returns a player's scoring elo per event of a cluster.
// A player with no participation in the cluster gets an empty slice.
func (r *StatsRepository) PlayerEloByCluster(ctx context.Context, playerID shared.PlayerID, clusterID string) ([]shared.Elo, error) {
	rows, err := r.q.Query(ctx, `
		SELECT s.scoring_elo
		FROM player_event_stats s
		JOIN events e ON e.id = s.event_id
		WHERE s.player_id = $1 AND e.cluster_id = $2
		ORDER BY s.scoring_elo DESC
	`, playerID.String(), clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list elo by cluster: %w", err)
	}
	defer rows.Close()

	elos := make([]shared.Elo, 0)
	for rows.Next() {
		var elo int
		if err := rows.Scan(&elo); err != nil {
			return nil, fmt.Errorf("failed to scan elo: %w", err)
		}
		elos = append(elos, shared.Elo(elo))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate elos: %w", err)
	}

	return elos, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

func (r *StatsRepository) scanStats(row pgx.Row) (*rating.PlayerEventStats, error) {
	var s rating.PlayerEventStats
	var playerID, eventID string
	var rawElo, scoringElo, allTimeElo int

	err := row.Scan(
		&s.ID,
		&playerID,
		&eventID,
		&rawElo,
		&scoringElo,
		&s.MatchesPlayed,
		&s.Wins,
		&s.Losses,
		&s.Draws,
		&s.WeeklyEloAverage,
		&s.WeeksParticipated,
		&allTimeElo,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrStatsNotFound
	}
	if err != nil {
		return nil, err
	}

	s.PlayerID = shared.PlayerID(playerID)
	s.EventID = shared.EventID(eventID)
	s.RawElo = shared.Elo(rawElo)
	s.ScoringElo = shared.Elo(scoringElo)
	s.AllTimeElo = shared.Elo(allTimeElo)

	return &s, nil
}

func (r *StatsRepository) scanStatsList(rows pgx.Rows) ([]*rating.PlayerEventStats, error) {
	list := make([]*rating.PlayerEventStats, 0)
	for rows.Next() {
		s, err := r.scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		list = append(list, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats: %w", err)
	}

	return list, nil
}
