package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/history"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY FEED REPOSITORY IMPLEMENTATION
// Merges two structurally different sources (match history rows and raw
// score submissions) into one strict total order on
// (occurred_at DESC, source ASC, id ASC). Pagination is keyset-based on
// that composite key; both UNION arms apply the same cursor predicate.
// Participant detail for a page's match entries is loaded with one
// query for the whole page.
// ══════════════════════════════════════════════════════════════════════════════

// FeedRepository implements history.Repository for PostgreSQL.
type FeedRepository struct {
	q Querier
}

// NewFeedRepository creates a new FeedRepository.
func NewFeedRepository(conn *Connection) *FeedRepository {
	return &FeedRepository{q: conn}
}

// feedQueryBuilder accumulates scope and cursor conditions for one UNION
// arm. Placeholders are shared across arms through the args slice.
type feedQueryBuilder struct {
	args []interface{}
}

func (b *feedQueryBuilder) bind(v interface{}) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// cursorPredicate renders "strictly after the cursor" for one arm in
// feed order: older timestamp, or same timestamp and greater source,
// or same timestamp and source and greater id.
func (b *feedQueryBuilder) cursorPredicate(tsCol, idCol, sourceLiteral string, c history.Cursor) string {
	if c.IsZero() {
		return "TRUE"
	}
	ts := b.bind(c.OccurredAt)
	src := b.bind(string(c.Source))
	id := b.bind(c.ID)
	return fmt.Sprintf(`(%s < %s OR (%s = %s AND (%s > %s OR (%s = %s AND %s::text > %s))))`,
		tsCol, ts,
		tsCol, ts,
		sourceLiteral, src,
		sourceLiteral, src,
		idCol, id,
	)
}

// List returns up to limit+1 entries strictly after the cursor in
// composite feed order. The extra row signals a further page and is
// trimmed by the caller.
func (r *FeedRepository) List(ctx context.Context, scope history.Scope, after history.Cursor, limit int) ([]history.Entry, error) {
	b := &feedQueryBuilder{}

	matchConds := []string{"h.source = 'match'"}
	subConds := []string{"TRUE"}

	if !scope.PlayerID.IsEmpty() {
		p := b.bind(scope.PlayerID.String())
		matchConds = append(matchConds, "h.player_id = "+p)
		subConds = append(subConds, "s.player_id = "+p)
	}
	if !scope.EventID.IsEmpty() {
		p := b.bind(scope.EventID.String())
		matchConds = append(matchConds, "h.event_id = "+p)
		subConds = append(subConds, "s.event_id = "+p)
	}
	if scope.ClusterID != "" {
		p := b.bind(scope.ClusterID)
		matchConds = append(matchConds, "e.cluster_id = "+p)
		subConds = append(subConds, "e.cluster_id = "+p)
	}

	matchConds = append(matchConds, b.cursorPredicate("h.occurred_at", "h.id", "'match'", after))
	subConds = append(subConds, b.cursorPredicate("s.submitted_at", "s.id", "'submission'", after))

	limitPlaceholder := b.bind(normalizeLimit(limit) + 1)

	query := `
		SELECT * FROM (
			SELECT h.id::text AS id,
			       'match' AS source,
			       h.player_id::text AS player_id,
			       h.event_id::text AS event_id,
			       e.name AS event_name,
			       h.delta AS delta,
			       0::double precision AS raw_score,
			       h.source_id AS source_id,
			       h.occurred_at AS occurred_at
			FROM rating_history h
			JOIN events e ON e.id = h.event_id
			WHERE ` + strings.Join(matchConds, " AND ") + `

			UNION ALL

			SELECT s.id::text,
			       'submission',
			       s.player_id::text,
			       s.event_id::text,
			       e.name,
			       0,
			       s.raw_score,
			       '',
			       s.submitted_at
			FROM score_submissions s
			JOIN events e ON e.id = s.event_id
			WHERE ` + strings.Join(subConds, " AND ") + `
		) feed
		ORDER BY occurred_at DESC, source ASC, id ASC
		LIMIT ` + limitPlaceholder

	rows, err := r.q.Query(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed: %w", err)
	}
	defer rows.Close()

	entries := make([]history.Entry, 0)
	sourceIDs := make([]string, 0)
	for rows.Next() {
		var e history.Entry
		var source, playerID, eventID, sourceID string

		err := rows.Scan(
			&e.ID,
			&source,
			&playerID,
			&eventID,
			&e.EventName,
			&e.Delta,
			&e.RawScore,
			&sourceID,
			&e.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed entry: %w", err)
		}

		e.Source = history.SourceType(source)
		e.PlayerID = shared.PlayerID(playerID)
		e.EventID = shared.EventID(eventID)
		entries = append(entries, e)
		sourceIDs = append(sourceIDs, sourceID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feed: %w", err)
	}

	// The Go comparator and the SQL ORDER BY express the same composite
	// order; checking the page against the comparator catches either
	// side drifting.
	if err := history.VerifyOrder(entries); err != nil {
		return nil, err
	}

	if err := r.attachParticipants(ctx, entries, sourceIDs); err != nil {
		return nil, err
	}

	return entries, nil
}

// attachParticipants bulk-loads participant detail for the page's match
// entries: one query for the whole page, never one per row.
func (r *FeedRepository) attachParticipants(ctx context.Context, entries []history.Entry, sourceIDs []string) error {
	matchIDs := make([]string, 0)
	seen := make(map[string]struct{})
	for i, e := range entries {
		if e.Source != history.SourceMatch || sourceIDs[i] == "" {
			continue
		}
		if _, ok := seen[sourceIDs[i]]; ok {
			continue
		}
		seen[sourceIDs[i]] = struct{}{}
		matchIDs = append(matchIDs, sourceIDs[i])
	}
	if len(matchIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(matchIDs))
	args := make([]interface{}, len(matchIDs))
	for i, id := range matchIDs {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}

	rows, err := r.q.Query(ctx, `
		SELECT mp.match_id::text, mp.player_id::text, p.display_name, mp.placement, mp.delta
		FROM match_participants mp
		JOIN players p ON p.id = mp.player_id
		WHERE mp.match_id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY mp.match_id, mp.placement ASC
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to load feed participants: %w", err)
	}
	defer rows.Close()

	byMatch := make(map[string][]history.ParticipantDetail)
	for rows.Next() {
		var matchID, playerID string
		var d history.ParticipantDetail

		if err := rows.Scan(&matchID, &playerID, &d.DisplayName, &d.Placement, &d.Delta); err != nil {
			return fmt.Errorf("failed to scan feed participant: %w", err)
		}
		d.PlayerID = shared.PlayerID(playerID)
		byMatch[matchID] = append(byMatch[matchID], d)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate feed participants: %w", err)
	}

	for i := range entries {
		if entries[i].Source == history.SourceMatch {
			entries[i].Participants = byMatch[sourceIDs[i]]
		}
	}

	return nil
}
