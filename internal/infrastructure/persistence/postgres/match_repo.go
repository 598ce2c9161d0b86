package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/match"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH REPOSITORY IMPLEMENTATION
// A match spans three tables: matches (with the active proposal inlined),
// match_participants and match_confirmations. Writes touch all three
// atomically. The partial unique index on (event_id, participants_key)
// is the final backstop against two active matches with the same roster.
// ══════════════════════════════════════════════════════════════════════════════

// MatchRepository implements match.Repository for PostgreSQL.
type MatchRepository struct {
	conn *Connection
	tx   pgx.Tx
}

// NewMatchRepository creates a new MatchRepository.
func NewMatchRepository(conn *Connection) *MatchRepository {
	return &MatchRepository{conn: conn}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *MatchRepository) WithTx(tx pgx.Tx) *MatchRepository {
	return &MatchRepository{conn: r.conn, tx: tx}
}

func (r *MatchRepository) querier() Querier {
	if r.tx != nil {
		return r.tx
	}
	return r.conn
}

// withTx runs fn inside the bound transaction, or opens one if unbound.
func (r *MatchRepository) withTx(ctx context.Context, fn func(q Querier) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(tx)
	})
}

// participantsKey is a digest of the sorted participant set. Two matches
// with the same roster in the same event produce the same key regardless
// of participant order.
func participantsKey(playerIDs []shared.PlayerID) string {
	ids := make([]string, len(playerIDs))
	for i, id := range playerIDs {
		ids[i] = id.String()
	}
	sort.Strings(ids)

	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return hex.EncodeToString(sum[:])
}

// Create inserts a new match with its participants.
func (r *MatchRepository) Create(ctx context.Context, m *match.Match) error {
	playerIDs := make([]shared.PlayerID, len(m.Participants))
	for i, p := range m.Participants {
		playerIDs[i] = p.PlayerID
	}

	return r.withTx(ctx, func(q Querier) error {
		_, err := q.Exec(ctx, `
			INSERT INTO matches (id, event_id, mode, state, participants_key, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			m.ID.String(),
			m.EventID.String(),
			m.Mode,
			string(m.State),
			participantsKey(playerIDs),
			m.CreatedAt,
			m.UpdatedAt,
		)
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateMatch
		}
		if err != nil {
			return fmt.Errorf("failed to create match: %w", err)
		}

		return r.insertParticipants(ctx, q, m)
	})
}

// GetByID returns a match with participants, proposal and confirmations.
func (r *MatchRepository) GetByID(ctx context.Context, id shared.MatchID) (*match.Match, error) {
	return r.getMatch(ctx, id, false)
}

// GetByIDForUpdate returns a match under a row lock (NOWAIT).
// Must be called inside a transaction; all state transitions go
// through this path.
func (r *MatchRepository) GetByIDForUpdate(ctx context.Context, id shared.MatchID) (*match.Match, error) {
	return r.getMatch(ctx, id, true)
}

func (r *MatchRepository) getMatch(ctx context.Context, id shared.MatchID, forUpdate bool) (*match.Match, error) {
	q := r.querier()

	query := `
		SELECT id, event_id, mode, state,
		       proposer_id, proposed_placements, proposed_at, proposal_expires_at,
		       created_at, updated_at, completed_at
		FROM matches
		WHERE id = $1`
	if forUpdate {
		query += `
		FOR UPDATE NOWAIT`
	}

	var m match.Match
	var matchID, eventID, state string
	var proposerID *string
	var placements []int
	var proposedAt, expiresAt *time.Time

	err := q.QueryRow(ctx, query, id.String()).Scan(
		&matchID,
		&eventID,
		&m.Mode,
		&state,
		&proposerID,
		&placements,
		&proposedAt,
		&expiresAt,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.CompletedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrMatchNotFound
	}
	if IsLockNotAvailable(err) {
		return nil, shared.ErrMatchLockBusy
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	m.ID = shared.MatchID(matchID)
	m.EventID = shared.EventID(eventID)
	m.State = match.State(state)

	if proposerID != nil && proposedAt != nil && expiresAt != nil {
		m.Proposal = &match.Proposal{
			ProposerID: shared.PlayerID(*proposerID),
			Placements: placements,
			ProposedAt: *proposedAt,
			ExpiresAt:  *expiresAt,
		}
	}

	if err := r.loadParticipants(ctx, q, &m); err != nil {
		return nil, err
	}
	if err := r.loadConfirmations(ctx, q, &m); err != nil {
		return nil, err
	}

	return &m, nil
}

// Update persists match state, proposal, participant results and
// confirmations atomically.
func (r *MatchRepository) Update(ctx context.Context, m *match.Match) error {
	return r.withTx(ctx, func(q Querier) error {
		var proposerID *string
		var placements []int
		var proposedAt, expiresAt *time.Time
		if m.Proposal != nil {
			pid := m.Proposal.ProposerID.String()
			proposerID = &pid
			placements = m.Proposal.Placements
			proposedAt = &m.Proposal.ProposedAt
			expiresAt = &m.Proposal.ExpiresAt
		}

		result, err := q.Exec(ctx, `
			UPDATE matches SET
				state = $2,
				proposer_id = $3,
				proposed_placements = $4,
				proposed_at = $5,
				proposal_expires_at = $6,
				updated_at = $7,
				completed_at = $8
			WHERE id = $1
		`,
			m.ID.String(),
			string(m.State),
			proposerID,
			placements,
			proposedAt,
			expiresAt,
			m.UpdatedAt,
			m.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update match: %w", err)
		}
		if result.RowsAffected() == 0 {
			return shared.ErrMatchNotFound
		}

		if err := r.updateParticipantResults(ctx, q, m); err != nil {
			return err
		}
		return r.replaceConfirmations(ctx, q, m)
	})
}

// ListExpiredProposals returns IDs of matches whose proposals expired
// by now. Used by the background sweep.
func (r *MatchRepository) ListExpiredProposals(ctx context.Context, now time.Time, limit int) ([]shared.MatchID, error) {
	rows, err := r.querier().Query(ctx, `
		SELECT id
		FROM matches
		WHERE state = $1 AND proposal_expires_at <= $2
		ORDER BY proposal_expires_at ASC
		LIMIT $3
	`, string(match.StateAwaitingConfirmation), now, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list expired proposals: %w", err)
	}
	defer rows.Close()

	ids := make([]shared.MatchID, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan match id: %w", err)
		}
		ids = append(ids, shared.MatchID(id))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate match ids: %w", err)
	}

	return ids, nil
}

// ListActiveByPlayer returns a player's non-terminal matches.
func (r *MatchRepository) ListActiveByPlayer(ctx context.Context, playerID shared.PlayerID) ([]*match.Match, error) {
	rows, err := r.querier().Query(ctx, `
		SELECT m.id
		FROM matches m
		JOIN match_participants mp ON mp.match_id = m.id
		WHERE mp.player_id = $1 AND m.state NOT IN ($2, $3)
		ORDER BY m.created_at DESC
	`, playerID.String(), string(match.StateCompleted), string(match.StateCancelled))
	if err != nil {
		return nil, fmt.Errorf("failed to list active matches: %w", err)
	}

	ids := make([]shared.MatchID, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan match id: %w", err)
		}
		ids = append(ids, shared.MatchID(id))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate match ids: %w", err)
	}
	rows.Close()

	matches := make([]*match.Match, 0, len(ids))
	for _, id := range ids {
		m, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}

	return matches, nil
}

// HasActiveForParticipants checks for an active match with exactly this
// roster in the event. A pre-insert guard; the unique index is the
// final backstop.
func (r *MatchRepository) HasActiveForParticipants(ctx context.Context, eventID shared.EventID, playerIDs []shared.PlayerID) (bool, error) {
	var exists bool
	err := r.querier().QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM matches
			WHERE event_id = $1
			  AND participants_key = $2
			  AND state NOT IN ($3, $4)
		)
	`,
		eventID.String(),
		participantsKey(playerIDs),
		string(match.StateCompleted),
		string(match.StateCancelled),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active match: %w", err)
	}

	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

func (r *MatchRepository) insertParticipants(ctx context.Context, q Querier, m *match.Match) error {
	for i, p := range m.Participants {
		_, err := q.Exec(ctx, `
			INSERT INTO match_participants (id, match_id, player_id, team_id, position)
			VALUES ($1, $2, $3, $4, $5)
		`,
			uuid.New().String(),
			m.ID.String(),
			p.PlayerID.String(),
			p.TeamID,
			i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}
	return nil
}

func (r *MatchRepository) updateParticipantResults(ctx context.Context, q Querier, m *match.Match) error {
	for _, p := range m.Participants {
		_, err := q.Exec(ctx, `
			UPDATE match_participants SET
				placement = $3,
				rating_before = $4,
				rating_after = $5,
				delta = $6
			WHERE match_id = $1 AND player_id = $2
		`,
			m.ID.String(),
			p.PlayerID.String(),
			p.Placement,
			p.RatingBefore.Int(),
			p.RatingAfter.Int(),
			p.Delta,
		)
		if err != nil {
			return fmt.Errorf("failed to update participant: %w", err)
		}
	}
	return nil
}

// replaceConfirmations rewrites the confirmation set wholesale. The set
// is tiny (one row per participant) and resets completely on proposal
// revert, so delete-and-reinsert is simpler than diffing.
func (r *MatchRepository) replaceConfirmations(ctx context.Context, q Querier, m *match.Match) error {
	if _, err := q.Exec(ctx, `
		DELETE FROM match_confirmations WHERE match_id = $1
	`, m.ID.String()); err != nil {
		return fmt.Errorf("failed to clear confirmations: %w", err)
	}

	for _, c := range m.Confirmations {
		var respondedAt *time.Time
		if !c.RespondedAt.IsZero() {
			t := c.RespondedAt
			respondedAt = &t
		}

		_, err := q.Exec(ctx, `
			INSERT INTO match_confirmations (id, match_id, player_id, status, reason, responded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			uuid.New().String(),
			m.ID.String(),
			c.PlayerID.String(),
			string(c.Status),
			c.Reason,
			respondedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert confirmation: %w", err)
		}
	}
	return nil
}

func (r *MatchRepository) loadParticipants(ctx context.Context, q Querier, m *match.Match) error {
	rows, err := q.Query(ctx, `
		SELECT player_id, team_id, placement, rating_before, rating_after, delta
		FROM match_participants
		WHERE match_id = $1
		ORDER BY position ASC
	`, m.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}
	defer rows.Close()

	m.Participants = make([]match.Participant, 0)
	for rows.Next() {
		var p match.Participant
		var playerID string
		var before, after int

		if err := rows.Scan(&playerID, &p.TeamID, &p.Placement, &before, &after, &p.Delta); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}

		p.PlayerID = shared.PlayerID(playerID)
		p.RatingBefore = shared.Elo(before)
		p.RatingAfter = shared.Elo(after)
		m.Participants = append(m.Participants, p)
	}

	return rows.Err()
}

func (r *MatchRepository) loadConfirmations(ctx context.Context, q Querier, m *match.Match) error {
	rows, err := q.Query(ctx, `
		SELECT player_id, status, reason, responded_at
		FROM match_confirmations
		WHERE match_id = $1
	`, m.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load confirmations: %w", err)
	}
	defer rows.Close()

	m.Confirmations = make([]match.Confirmation, 0)
	for rows.Next() {
		var c match.Confirmation
		var playerID, status string
		var respondedAt *time.Time

		if err := rows.Scan(&playerID, &status, &c.Reason, &respondedAt); err != nil {
			return fmt.Errorf("failed to scan confirmation: %w", err)
		}

		c.PlayerID = shared.PlayerID(playerID)
		c.Status = match.ConfirmationStatus(status)
		if respondedAt != nil {
			c.RespondedAt = *respondedAt
		}
		m.Confirmations = append(m.Confirmations, c)
	}

	return rows.Err()
}
