package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/ledger"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/postgres"
	redisx "github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/redis"
	"github.com/arena-hub/arena-tournament-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRANT TICKETS COMMAND
// Ручное движение билетов администратором: начисление, списание или
// трата игроком. Запись журнала и обновление кешированного баланса
// идут одной транзакцией под блокировкой строки баланса; списание
// ниже нуля отклоняется целиком.
// ══════════════════════════════════════════════════════════════════════════════

// GrantTicketsCommand содержит параметры движения билетов.
type GrantTicketsCommand struct {
	// PlayerID - игрок, чей баланс меняется.
	PlayerID string

	// Amount - знаковое изменение; ноль недопустим.
	Amount int

	// Reason - код причины ("admin_grant", "admin_debit", "purchase",
	// "correction").
	Reason string

	// ActorID - администратор, выполняющий операцию (пусто для purchase).
	ActorID string

	// Note - свободный комментарий.
	Note string
}

// Validate проверяет корректность параметров команды.
func (c *GrantTicketsCommand) Validate() error {
	if c.PlayerID == "" {
		return errors.New("grant_tickets: player_id is required")
	}
	if c.Amount == 0 {
		return errors.New("grant_tickets: amount cannot be zero")
	}
	if c.Reason == "" {
		return errors.New("grant_tickets: reason is required")
	}
	return nil
}

// GrantTicketsResult содержит результат движения билетов.
type GrantTicketsResult struct {
	EntryID  string
	PlayerID shared.PlayerID
	Amount   int

	// BalanceAfter - баланс после применения записи.
	BalanceAfter shared.Tickets

	AppliedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GrantTicketsHandler обрабатывает GrantTicketsCommand.
type GrantTicketsHandler struct {
	conn        *postgres.Connection
	ledgerRepo  *postgres.LedgerRepository
	refresher   *OverallRefresher
	playerCache *redisx.PlayerCache
	lbCache     *redisx.LeaderboardCache
	retrier     *retry.Retrier
}

// NewGrantTicketsHandler создаёт обработчик движений билетов.
func NewGrantTicketsHandler(
	conn *postgres.Connection,
	ledgerRepo *postgres.LedgerRepository,
	refresher *OverallRefresher,
	playerCache *redisx.PlayerCache,
	lbCache *redisx.LeaderboardCache,
) *GrantTicketsHandler {
	return &GrantTicketsHandler{
		conn:        conn,
		ledgerRepo:  ledgerRepo,
		refresher:   refresher,
		playerCache: playerCache,
		lbCache:     lbCache,
		retrier:     retry.LockRetrier(),
	}
}

// Handle выполняет движение билетов.
func (h *GrantTicketsHandler) Handle(ctx context.Context, cmd GrantTicketsCommand) (*GrantTicketsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("grant_tickets: validation failed: %w", err)
	}

	playerID, err := shared.NewPlayerID(cmd.PlayerID)
	if err != nil {
		return nil, err
	}

	reason := ledger.Reason(cmd.Reason)
	if !reason.IsValid() {
		return nil, shared.ErrInvalidReason
	}

	var result *GrantTicketsResult
	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.conn.WithTx(ctx, postgres.DefaultTxOptions(), func(tx pgx.Tx) error {
			repo := h.ledgerRepo.WithTx(tx)

			before, err := repo.LockBalance(ctx, playerID)
			if err != nil {
				return classifyLockErr(err)
			}

			e, err := ledger.NewEntry(uuid.New().String(), playerID, cmd.Amount, reason, before)
			if err != nil {
				return retry.Permanent(err)
			}
			e.ActorID = shared.PlayerID(cmd.ActorID)
			e.Note = cmd.Note

			if err := repo.Append(ctx, e); err != nil {
				return err
			}

			// Билеты входят в итоговый счёт, поэтому агрегаты
			// пересчитываются в той же транзакции.
			if err := h.refresher.RefreshTx(ctx, tx, playerID, e.BalanceAfter); err != nil {
				return err
			}

			result = &GrantTicketsResult{
				EntryID:      e.ID,
				PlayerID:     playerID,
				Amount:       e.Amount,
				BalanceAfter: e.BalanceAfter,
				AppliedAt:    e.CreatedAt,
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("grant_tickets: %w", err)
	}

	if h.playerCache != nil {
		_ = h.playerCache.Invalidate(ctx, playerID)
	}
	if h.lbCache != nil {
		_ = h.lbCache.InvalidateAll(ctx)
	}
	return result, nil
}
