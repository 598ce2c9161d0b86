// Package postgres implements the PostgreSQL persistence layer for
// Arena Tournament Hub.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/player"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// playerColumns is the canonical select list; scanPlayer expects this order.
const playerColumns = `
	id, discord_id, display_name,
	final_score, overall_scoring_elo, overall_raw_elo,
	ticket_balance,
	matches_played, wins, losses, draws, streak,
	is_active, is_ghost,
	created_at, updated_at`

// PlayerRepository implements player.Repository for PostgreSQL.
type PlayerRepository struct {
	q Querier
}

// NewPlayerRepository creates a new PlayerRepository.
func NewPlayerRepository(conn *Connection) *PlayerRepository {
	return &PlayerRepository{q: conn}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *PlayerRepository) WithTx(tx pgx.Tx) *PlayerRepository {
	return &PlayerRepository{q: tx}
}

// Create inserts a new player.
func (r *PlayerRepository) Create(ctx context.Context, p *player.Player) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO players (
			id, discord_id, display_name,
			final_score, overall_scoring_elo, overall_raw_elo,
			ticket_balance,
			matches_played, wins, losses, draws, streak,
			is_active, is_ghost,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		p.ID.String(),
		p.DiscordID.String(),
		p.DisplayName,
		p.FinalScore.Int(),
		p.OverallScoringElo.Int(),
		p.OverallRawElo.Int(),
		p.TicketBalance.Int(),
		p.MatchesPlayed,
		p.Wins,
		p.Losses,
		p.Draws,
		int(p.Streak),
		p.IsActive,
		p.IsGhost,
		p.CreatedAt,
		p.UpdatedAt,
	)

	if IsUniqueViolation(err) {
		return shared.ErrPlayerAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}

	return nil
}

// GetByID returns a player by internal ID.
func (r *PlayerRepository) GetByID(ctx context.Context, id shared.PlayerID) (*player.Player, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE id = $1
	`, id.String())

	return r.scanPlayer(row)
}

// GetByDiscordID returns a player by Discord snowflake.
func (r *PlayerRepository) GetByDiscordID(ctx context.Context, discordID shared.DiscordID) (*player.Player, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE discord_id = $1
	`, discordID.String())

	return r.scanPlayer(row)
}

// GetByIDs returns players for a set of IDs in a single query.
func (r *PlayerRepository) GetByIDs(ctx context.Context, ids []shared.PlayerID) ([]*player.Player, error) {
	if len(ids) == 0 {
		return []*player.Player{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id.String()
	}

	query := `
		SELECT ` + playerColumns + `
		FROM players
		WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get players by ids: %w", err)
	}
	defer rows.Close()

	return r.scanPlayers(rows)
}

// Update persists player changes.
func (r *PlayerRepository) Update(ctx context.Context, p *player.Player) error {
	result, err := r.q.Exec(ctx, `
		UPDATE players SET
			display_name = $2,
			final_score = $3,
			overall_scoring_elo = $4,
			overall_raw_elo = $5,
			ticket_balance = $6,
			matches_played = $7,
			wins = $8,
			losses = $9,
			draws = $10,
			streak = $11,
			is_active = $12,
			is_ghost = $13,
			updated_at = NOW()
		WHERE id = $1
	`,
		p.ID.String(),
		p.DisplayName,
		p.FinalScore.Int(),
		p.OverallScoringElo.Int(),
		p.OverallRawElo.Int(),
		p.TicketBalance.Int(),
		p.MatchesPlayed,
		p.Wins,
		p.Losses,
		p.Draws,
		int(p.Streak),
		p.IsActive,
		p.IsGhost,
	)
	if err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrPlayerNotFound
	}

	return nil
}

// RefreshOverall updates the cached aggregate columns after a recompute.
func (r *PlayerRepository) RefreshOverall(ctx context.Context, id shared.PlayerID, scoring, raw, final shared.Elo) error {
	result, err := r.q.Exec(ctx, `
		UPDATE players SET
			overall_scoring_elo = $2,
			overall_raw_elo = $3,
			final_score = $4,
			updated_at = NOW()
		WHERE id = $1
	`, id.String(), scoring.Int(), raw.Int(), final.Int())
	if err != nil {
		return fmt.Errorf("failed to refresh overall: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrPlayerNotFound
	}

	return nil
}

// Deactivate soft-deletes a player.
func (r *PlayerRepository) Deactivate(ctx context.Context, id shared.PlayerID) error {
	result, err := r.q.Exec(ctx, `
		UPDATE players SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1
	`, id.String())
	if err != nil {
		return fmt.Errorf("failed to deactivate player: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrPlayerNotFound
	}

	return nil
}

// MarkGhost flags a player as having left the community.
// Ghosts keep their rows so match history stays intact.
func (r *PlayerRepository) MarkGhost(ctx context.Context, id shared.PlayerID) error {
	result, err := r.q.Exec(ctx, `
		UPDATE players SET is_ghost = TRUE, updated_at = NOW()
		WHERE id = $1
	`, id.String())
	if err != nil {
		return fmt.Errorf("failed to mark player as ghost: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrPlayerNotFound
	}

	return nil
}

// GetAll returns players with pagination.
func (r *PlayerRepository) GetAll(ctx context.Context, opts player.ListOptions) ([]*player.Player, error) {
	query := `
		SELECT ` + playerColumns + `
		FROM players
		WHERE ` + buildPlayerFilter(opts) + `
		ORDER BY final_score DESC, created_at ASC
		LIMIT $1 OFFSET $2`

	rows, err := r.q.Query(ctx, query, normalizeLimit(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	return r.scanPlayers(rows)
}

// Count returns the number of players matching the options.
func (r *PlayerRepository) Count(ctx context.Context, opts player.ListOptions) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM players WHERE `+buildPlayerFilter(opts),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}

	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

// buildPlayerFilter builds the WHERE clause for list options.
// The clauses are fixed strings; no user input is interpolated.
func buildPlayerFilter(opts player.ListOptions) string {
	conditions := []string{"TRUE"}
	if !opts.IncludeInactive {
		conditions = append(conditions, "is_active")
	}
	if !opts.IncludeGhosts {
		conditions = append(conditions, "NOT is_ghost")
	}
	return strings.Join(conditions, " AND ")
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

// scanPlayer scans a single player row.
func (r *PlayerRepository) scanPlayer(row pgx.Row) (*player.Player, error) {
	var p player.Player
	var id, discordID string
	var finalScore, scoringElo, rawElo, tickets, streak int

	err := row.Scan(
		&id,
		&discordID,
		&p.DisplayName,
		&finalScore,
		&scoringElo,
		&rawElo,
		&tickets,
		&p.MatchesPlayed,
		&p.Wins,
		&p.Losses,
		&p.Draws,
		&streak,
		&p.IsActive,
		&p.IsGhost,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, shared.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan player: %w", err)
	}

	p.ID = shared.PlayerID(id)
	p.DiscordID = shared.DiscordID(discordID)
	p.FinalScore = shared.Elo(finalScore)
	p.OverallScoringElo = shared.Elo(scoringElo)
	p.OverallRawElo = shared.Elo(rawElo)
	p.TicketBalance = shared.Tickets(tickets)
	p.Streak = shared.Streak(streak)

	return &p, nil
}

// scanPlayers scans multiple player rows.
func (r *PlayerRepository) scanPlayers(rows pgx.Rows) ([]*player.Player, error) {
	players := make([]*player.Player, 0)
	for rows.Next() {
		p, err := r.scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate players: %w", err)
	}

	return players, nil
}
