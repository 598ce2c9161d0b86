package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/ledger"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TICKET LEDGER REPOSITORY IMPLEMENTATION
// The ledger is append-only and is the source of truth for ticket
// balances. The cached balance on the player row is updated in the same
// transaction as the ledger insert, under a row lock taken through
// LockBalance.
// ══════════════════════════════════════════════════════════════════════════════

const ledgerColumns = `
	id, player_id, amount, reason, balance_after,
	COALESCE(match_id::text, ''), COALESCE(actor_id::text, ''), note, created_at`

// LedgerRepository implements ledger.Repository for PostgreSQL.
type LedgerRepository struct {
	q Querier
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{q: conn}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *LedgerRepository) WithTx(tx pgx.Tx) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

// LockBalance returns the player's cached balance under a row lock
// (NOWAIT). A row held by another writer yields ErrBalanceLockBusy.
// Must be called inside a transaction.
func (r *LedgerRepository) LockBalance(ctx context.Context, playerID shared.PlayerID) (shared.Tickets, error) {
	var balance int
	err := r.q.QueryRow(ctx, `
		SELECT ticket_balance
		FROM players
		WHERE id = $1
		FOR UPDATE NOWAIT
	`, playerID.String()).Scan(&balance)

	if IsNoRows(err) {
		return 0, shared.ErrPlayerNotFound
	}
	if IsLockNotAvailable(err) {
		return 0, shared.ErrBalanceLockBusy
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock balance: %w", err)
	}

	return shared.Tickets(balance), nil
}

// Append inserts a ledger entry and refreshes the cached balance on the
// player row. Must run under a LockBalance lock in the same transaction.
func (r *LedgerRepository) Append(ctx context.Context, e *ledger.Entry) error {
	var matchID, actorID *string
	if e.MatchID != "" {
		s := e.MatchID.String()
		matchID = &s
	}
	if !e.ActorID.IsEmpty() {
		s := e.ActorID.String()
		actorID = &s
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO ticket_ledger (id, player_id, amount, reason, balance_after, match_id, actor_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		e.ID,
		e.PlayerID.String(),
		e.Amount,
		string(e.Reason),
		e.BalanceAfter.Int(),
		matchID,
		actorID,
		e.Note,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	result, err := r.q.Exec(ctx, `
		UPDATE players SET ticket_balance = $2, updated_at = NOW()
		WHERE id = $1
	`, e.PlayerID.String(), e.BalanceAfter.Int())
	if err != nil {
		return fmt.Errorf("failed to refresh cached balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrPlayerNotFound
	}

	return nil
}

// SumByPlayer returns the sum of all of a player's ledger entries.
// Used by the integrity audit against the cached balance.
func (r *LedgerRepository) SumByPlayer(ctx context.Context, playerID shared.PlayerID) (shared.Tickets, error) {
	var sum int
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ticket_ledger
		WHERE player_id = $1
	`, playerID.String()).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger: %w", err)
	}

	return shared.Tickets(sum), nil
}

// ListByPlayer returns a player's entries, newest first.
func (r *LedgerRepository) ListByPlayer(ctx context.Context, playerID shared.PlayerID, limit, offset int) ([]*ledger.Entry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+ledgerColumns+`
		FROM ticket_ledger
		WHERE player_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, playerID.String(), normalizeLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

// ListByMatch returns the entries produced by a match.
func (r *LedgerRepository) ListByMatch(ctx context.Context, matchID shared.MatchID) ([]*ledger.Entry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+ledgerColumns+`
		FROM ticket_ledger
		WHERE match_id = $1
		ORDER BY created_at ASC
	`, matchID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries by match: %w", err)
	}
	defer rows.Close()

	return r.scanEntries(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

func (r *LedgerRepository) scanEntries(rows pgx.Rows) ([]*ledger.Entry, error) {
	entries := make([]*ledger.Entry, 0)
	for rows.Next() {
		var e ledger.Entry
		var playerID, reason, matchID, actorID string
		var balanceAfter int
		var createdAt time.Time

		err := rows.Scan(
			&e.ID,
			&playerID,
			&e.Amount,
			&reason,
			&balanceAfter,
			&matchID,
			&actorID,
			&e.Note,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		e.PlayerID = shared.PlayerID(playerID)
		e.Reason = ledger.Reason(reason)
		e.BalanceAfter = shared.Tickets(balanceAfter)
		e.MatchID = shared.MatchID(matchID)
		e.ActorID = shared.PlayerID(actorID)
		e.CreatedAt = createdAt

		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}
