package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/match"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/postgres"
	"github.com/arena-hub/arena-tournament-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CANCEL MATCH COMMAND
// Административная отмена матча без рейтингового эффекта.
// Из терминальных состояний недостижима.
// ══════════════════════════════════════════════════════════════════════════════

// CancelMatchCommand содержит параметры отмены матча.
type CancelMatchCommand struct {
	// MatchID - отменяемый матч.
	MatchID string

	// ActorID - администратор, выполняющий отмену.
	ActorID string
}

// Validate проверяет корректность параметров команды.
func (c *CancelMatchCommand) Validate() error {
	if c.MatchID == "" {
		return errors.New("cancel_match: match_id is required")
	}
	return nil
}

// CancelMatchResult содержит результат отмены.
type CancelMatchResult struct {
	MatchID     shared.MatchID
	State       match.State
	CancelledAt time.Time
}

// CancelMatchHandler обрабатывает CancelMatchCommand.
type CancelMatchHandler struct {
	conn      *postgres.Connection
	matchRepo *postgres.MatchRepository
	retrier   *retry.Retrier
}

// NewCancelMatchHandler создаёт обработчик отмены матча.
func NewCancelMatchHandler(conn *postgres.Connection, matchRepo *postgres.MatchRepository) *CancelMatchHandler {
	return &CancelMatchHandler{
		conn:      conn,
		matchRepo: matchRepo,
		retrier:   retry.LockRetrier(),
	}
}

// Handle выполняет отмену матча.
func (h *CancelMatchHandler) Handle(ctx context.Context, cmd CancelMatchCommand) (*CancelMatchResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("cancel_match: validation failed: %w", err)
	}

	var result *CancelMatchResult
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.conn.WithTx(ctx, postgres.DefaultTxOptions(), func(tx pgx.Tx) error {
			repo := h.matchRepo.WithTx(tx)
			m, err := repo.GetByIDForUpdate(ctx, shared.MatchID(cmd.MatchID))
			if err != nil {
				return classifyLockErr(err)
			}

			now := time.Now().UTC()
			if err := m.Cancel(now); err != nil {
				return retry.Permanent(err)
			}
			if err := repo.Update(ctx, m); err != nil {
				return err
			}

			result = &CancelMatchResult{
				MatchID:     m.ID,
				State:       m.State,
				CancelledAt: now,
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("cancel_match: %w", err)
	}
	return result, nil
}
