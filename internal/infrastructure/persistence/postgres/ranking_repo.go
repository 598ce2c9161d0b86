package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/ranking"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING REPOSITORY IMPLEMENTATION
// Dense ranks come straight from RANK() OVER (ORDER BY <key> DESC):
// tied values share a rank and the next distinct value skips ahead.
// The rank is computed over the WHOLE scope before pagination, so a
// page far from the top still carries correct ranks. Sort keys map to
// columns through a whitelist; nothing user-supplied reaches the SQL.
// ══════════════════════════════════════════════════════════════════════════════

// RankingRepository implements ranking.Repository for PostgreSQL.
type RankingRepository struct {
	q Querier
}

// NewRankingRepository creates a new RankingRepository.
func NewRankingRepository(conn *Connection) *RankingRepository {
	return &RankingRepository{q: conn}
}

// overallSortColumn maps a sort key to a players-table column.
func overallSortColumn(key ranking.SortKey) (string, error) {
	switch key {
	case ranking.SortByOverall:
		return "final_score", nil
	case ranking.SortByScoringElo:
		return "overall_scoring_elo", nil
	case ranking.SortByRawElo:
		return "overall_raw_elo", nil
	case ranking.SortByTickets:
		return "ticket_balance", nil
	}
	return "", shared.ErrInvalidInput
}

// statsSortColumn maps a sort key to a player_event_stats column.
// Tickets are a player-level value and have no meaning here.
func statsSortColumn(key ranking.SortKey) (string, error) {
	switch key {
	case ranking.SortByOverall, ranking.SortByScoringElo:
		return "scoring_elo", nil
	case ranking.SortByRawElo:
		return "raw_elo", nil
	}
	return "", shared.ErrInvalidInput
}

// RankedPage returns one page of the scope's ranking.
func (r *RankingRepository) RankedPage(ctx context.Context, scope ranking.Scope, key ranking.SortKey, page, pageSize int, opts ranking.Options) (*ranking.Page, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 25
	}

	ranked, countQuery, args, err := r.scopeQueries(scope, key, opts)
	if err != nil {
		return nil, err
	}

	var total int
	if err := r.q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count ranked players: %w", err)
	}

	offset := (page - 1) * pageSize
	pageArgs := append(append([]interface{}{}, args...), pageSize, offset)
	query := fmt.Sprintf(`
		SELECT rank, player_id, display_name, value, matches_played, streak, is_ghost
		FROM (%s) ranked
		ORDER BY rank ASC, display_name ASC
		LIMIT $%d OFFSET $%d`, ranked, len(args)+1, len(args)+2)

	rows, err := r.q.Query(ctx, query, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranking page: %w", err)
	}
	defer rows.Close()

	entries := make([]ranking.RankedPlayer, 0, pageSize)
	for rows.Next() {
		var e ranking.RankedPlayer
		var rank int64
		var playerID string
		var streak int

		if err := rows.Scan(&rank, &playerID, &e.DisplayName, &e.Value, &e.MatchesPlayed, &streak, &e.IsGhost); err != nil {
			return nil, fmt.Errorf("failed to scan ranked player: %w", err)
		}

		e.Rank = shared.Rank(rank)
		e.PlayerID = shared.PlayerID(playerID)
		e.Streak = shared.Streak(streak)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ranked players: %w", err)
	}

	return &ranking.Page{
		Entries:      entries,
		Page:         page,
		PageSize:     pageSize,
		TotalPlayers: total,
		TotalPages:   ranking.TotalPagesFor(total, pageSize),
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

// RankOf returns one player's rank within a scope.
func (r *RankingRepository) RankOf(ctx context.Context, scope ranking.Scope, key ranking.SortKey, playerID shared.PlayerID) (shared.Rank, error) {
	if err := scope.Validate(); err != nil {
		return shared.RankUnranked, err
	}

	ranked, _, args, err := r.scopeQueries(scope, key, ranking.Options{})
	if err != nil {
		return shared.RankUnranked, err
	}

	args = append(args, playerID.String())
	query := fmt.Sprintf(`
		SELECT rank FROM (%s) ranked
		WHERE player_id = $%d`, ranked, len(args))

	var rank int64
	err = r.q.QueryRow(ctx, query, args...).Scan(&rank)
	if IsNoRows(err) {
		return shared.RankUnranked, nil
	}
	if err != nil {
		return shared.RankUnranked, fmt.Errorf("failed to get rank: %w", err)
	}

	return shared.Rank(rank), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SCOPE QUERIES
// ─────────────────────────────────────────────────────────────────────────────

// scopeQueries builds the ranked subquery and the matching exact-count
// query for a scope. All three scopes share the RANK() mechanism; only
// the row source differs.
func (r *RankingRepository) scopeQueries(scope ranking.Scope, key ranking.SortKey, opts ranking.Options) (ranked, count string, args []interface{}, err error) {
	ghostFilter := "AND NOT p.is_ghost"
	if opts.IncludeGhosts {
		ghostFilter = ""
	}

	switch scope.Kind {
	case ranking.ScopeOverall:
		column, err := overallSortColumn(key)
		if err != nil {
			return "", "", nil, err
		}

		// Zero-match players are suppressed from the overall scope only.
		where := "p.is_active AND p.matches_played > 0 " + ghostFilter
		ranked = fmt.Sprintf(`
			SELECT RANK() OVER (ORDER BY p.%s DESC) AS rank,
			       p.id::text AS player_id,
			       p.display_name,
			       p.%s AS value,
			       p.matches_played,
			       p.streak,
			       p.is_ghost
			FROM players p
			WHERE %s`, column, column, where)
		count = "SELECT COUNT(*) FROM players p WHERE " + where
		return ranked, count, nil, nil

	case ranking.ScopeEvent:
		column, err := statsSortColumn(key)
		if err != nil {
			return "", "", nil, err
		}

		args = []interface{}{scope.EventID.String()}
		where := "s.event_id = $1 AND p.is_active " + ghostFilter
		ranked = fmt.Sprintf(`
			SELECT RANK() OVER (ORDER BY s.%s DESC) AS rank,
			       p.id::text AS player_id,
			       p.display_name,
			       s.%s AS value,
			       s.matches_played,
			       p.streak,
			       p.is_ghost
			FROM player_event_stats s
			JOIN players p ON p.id = s.player_id
			WHERE %s`, column, column, where)
		count = `
			SELECT COUNT(*)
			FROM player_event_stats s
			JOIN players p ON p.id = s.player_id
			WHERE ` + where
		return ranked, count, args, nil

	case ranking.ScopeCluster:
		column, err := statsSortColumn(key)
		if err != nil {
			return "", "", nil, err
		}

		// A player's cluster value is their best event rating in the
		// cluster; matches are summed across the cluster's events.
		args = []interface{}{scope.ClusterID}
		where := "e.cluster_id = $1 AND p.is_active " + ghostFilter
		ranked = fmt.Sprintf(`
			SELECT RANK() OVER (ORDER BY MAX(s.%s) DESC) AS rank,
			       p.id::text AS player_id,
			       p.display_name,
			       MAX(s.%s) AS value,
			       SUM(s.matches_played)::integer AS matches_played,
			       p.streak,
			       p.is_ghost
			FROM player_event_stats s
			JOIN events e ON e.id = s.event_id
			JOIN players p ON p.id = s.player_id
			WHERE %s
			GROUP BY p.id, p.display_name, p.streak, p.is_ghost`, column, column, where)
		count = `
			SELECT COUNT(DISTINCT s.player_id)
			FROM player_event_stats s
			JOIN events e ON e.id = s.event_id
			JOIN players p ON p.id = s.player_id
			WHERE ` + where
		return ranked, count, args, nil
	}

	return "", "", nil, shared.ErrInvalidInput
}
