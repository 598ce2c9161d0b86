package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/event"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE SUBMISSION REPOSITORY IMPLEMENTATION
// Submissions are immutable raw scores; only the normalized rating
// column is rewritten, in batch, after a recompute.
// ══════════════════════════════════════════════════════════════════════════════

// SubmissionRepository implements event.SubmissionRepository for PostgreSQL.
type SubmissionRepository struct {
	q Querier
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(conn *Connection) *SubmissionRepository {
	return &SubmissionRepository{q: conn}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SubmissionRepository) WithTx(tx pgx.Tx) *SubmissionRepository {
	return &SubmissionRepository{q: tx}
}

// Create inserts a submission.
func (r *SubmissionRepository) Create(ctx context.Context, s *event.Submission) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO score_submissions (id, player_id, event_id, raw_score, normalized_elo, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		s.ID,
		s.PlayerID.String(),
		s.EventID.String(),
		s.RawScore,
		s.NormalizedElo.Int(),
		s.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}

	return nil
}

// ScoresByEvent returns every raw score of an event: the full
// population for a complete recompute.
func (r *SubmissionRepository) ScoresByEvent(ctx context.Context, eventID shared.EventID) ([]float64, error) {
	rows, err := r.q.Query(ctx, `
		SELECT raw_score
		FROM score_submissions
		WHERE event_id = $1
		ORDER BY submitted_at ASC
	`, eventID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()

	scores := make([]float64, 0)
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, score)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scores: %w", err)
	}

	return scores, nil
}

// ListByEvent returns every submission of an event in submission order.
// The recompute pairs the IDs with freshly normalized ratings.
func (r *SubmissionRepository) ListByEvent(ctx context.Context, eventID shared.EventID) ([]*event.Submission, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, player_id, event_id, raw_score, normalized_elo, submitted_at
		FROM score_submissions
		WHERE event_id = $1
		ORDER BY submitted_at ASC
	`, eventID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]*event.Submission, 0)
	for rows.Next() {
		var s event.Submission
		var pid, eid string
		var normalized int
		if err := rows.Scan(&s.ID, &pid, &eid, &s.RawScore, &normalized, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		s.PlayerID = shared.PlayerID(pid)
		s.EventID = shared.EventID(eid)
		s.NormalizedElo = shared.Elo(normalized)
		subs = append(subs, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}

	return subs, nil
}

// ScoresByEventSince returns raw scores submitted in [since, until)
// grouped by player. Used by the weekly rollup.
func (r *SubmissionRepository) ScoresByEventSince(ctx context.Context, eventID shared.EventID, since, until time.Time) (map[shared.PlayerID][]float64, error) {
	rows, err := r.q.Query(ctx, `
		SELECT player_id, raw_score
		FROM score_submissions
		WHERE event_id = $1 AND submitted_at >= $2 AND submitted_at < $3
		ORDER BY submitted_at ASC
	`, eventID.String(), since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores in window: %w", err)
	}
	defer rows.Close()

	scores := make(map[shared.PlayerID][]float64)
	for rows.Next() {
		var playerID string
		var score float64
		if err := rows.Scan(&playerID, &score); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		pid := shared.PlayerID(playerID)
		scores[pid] = append(scores[pid], score)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scores: %w", err)
	}

	return scores, nil
}

// BestByPlayer returns a player's best submission in an event under the
// given comparison direction.
func (r *SubmissionRepository) BestByPlayer(ctx context.Context, playerID shared.PlayerID, eventID shared.EventID, direction event.ScoreDirection) (*event.Submission, error) {
	order := "DESC"
	if direction == event.DirectionLowerBetter {
		order = "ASC"
	}

	row := r.q.QueryRow(ctx, `
		SELECT id, player_id, event_id, raw_score, normalized_elo, submitted_at
		FROM score_submissions
		WHERE player_id = $1 AND event_id = $2
		ORDER BY raw_score `+order+`, submitted_at ASC
		LIMIT 1
	`, playerID.String(), eventID.String())

	var s event.Submission
	var pid, eid string
	var normalized int

	err := row.Scan(&s.ID, &pid, &eid, &s.RawScore, &normalized, &s.SubmittedAt)
	if IsNoRows(err) {
		return nil, shared.ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}

	s.PlayerID = shared.PlayerID(pid)
	s.EventID = shared.EventID(eid)
	s.NormalizedElo = shared.Elo(normalized)

	return &s, nil
}

// UpdateNormalizedBatch rewrites normalized ratings for a submission set
// in one statement after a recompute.
func (r *SubmissionRepository) UpdateNormalizedBatch(ctx context.Context, ids []string, elos []shared.Elo) error {
	if len(ids) != len(elos) {
		return fmt.Errorf("ids/elos length mismatch: %d vs %d", len(ids), len(elos))
	}
	if len(ids) == 0 {
		return nil
	}

	values := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)*2)
	for i := range ids {
		args = append(args, ids[i], elos[i].Int())
		values[i] = fmt.Sprintf("($%d::uuid, $%d::integer)", len(args)-1, len(args))
	}

	query := `
		UPDATE score_submissions AS s
		SET normalized_elo = v.elo
		FROM (VALUES ` + strings.Join(values, ", ") + `) AS v(id, elo)
		WHERE s.id = v.id`

	if _, err := r.q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update normalized ratings: %w", err)
	}

	return nil
}
