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
// CONFIRM RESULT COMMAND
// Ответ участника на активное предложение. Отказ немедленно возвращает
// матч в PENDING; последнее недостающее принятие запускает финализацию.
// Финализация идёт отдельной транзакцией: подтверждение уже зафиксировано,
// и сбой финализации не теряет ответ участника.
// ══════════════════════════════════════════════════════════════════════════════

// ConfirmResultCommand содержит параметры подтверждения.
type ConfirmResultCommand struct {
	// MatchID - матч с активным предложением.
	MatchID string

	// PlayerID - отвечающий участник.
	PlayerID string

	// Accept - принять или отклонить предложение.
	Accept bool

	// Reason - причина отказа (необязательно).
	Reason string
}

// Validate проверяет корректность параметров команды.
func (c *ConfirmResultCommand) Validate() error {
	if c.MatchID == "" {
		return errors.New("confirm_result: match_id is required")
	}
	if c.PlayerID == "" {
		return errors.New("confirm_result: player_id is required")
	}
	return nil
}

// ConfirmResultResult содержит результат подтверждения.
type ConfirmResultResult struct {
	MatchID shared.MatchID

	// State - состояние матча после ответа (и возможной финализации).
	State match.State

	// Accepted - каким был ответ.
	Accepted bool

	// AllConfirmed - подтвердили ли все участники.
	AllConfirmed bool

	// Finalized - была ли запущена и завершена финализация.
	Finalized bool

	// Finalization - результат финализации, если она состоялась.
	Finalization *FinalizeMatchResult
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ConfirmResultHandler обрабатывает ConfirmResultCommand.
type ConfirmResultHandler struct {
	conn      *postgres.Connection
	matchRepo *postgres.MatchRepository
	finalizer *FinalizeMatchHandler
	retrier   *retry.Retrier
}

// NewConfirmResultHandler создаёт обработчик подтверждения.
func NewConfirmResultHandler(
	conn *postgres.Connection,
	matchRepo *postgres.MatchRepository,
	finalizer *FinalizeMatchHandler,
) *ConfirmResultHandler {
	return &ConfirmResultHandler{
		conn:      conn,
		matchRepo: matchRepo,
		finalizer: finalizer,
		retrier:   retry.LockRetrier(),
	}
}

// Handle выполняет подтверждение результата.
func (h *ConfirmResultHandler) Handle(ctx context.Context, cmd ConfirmResultCommand) (*ConfirmResultResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("confirm_result: validation failed: %w", err)
	}

	var result *ConfirmResultResult
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.conn.WithTx(ctx, postgres.DefaultTxOptions(), func(tx pgx.Tx) error {
			repo := h.matchRepo.WithTx(tx)
			m, err := repo.GetByIDForUpdate(ctx, shared.MatchID(cmd.MatchID))
			if err != nil {
				return classifyLockErr(err)
			}

			now := time.Now().UTC()
			confirmErr := m.Confirm(shared.PlayerID(cmd.PlayerID), cmd.Accept, cmd.Reason, now)
			if confirmErr != nil && !errors.Is(confirmErr, shared.ErrProposalExpired) {
				return retry.Permanent(confirmErr)
			}

			// И отказ, и истёкшее предложение меняют состояние матча -
			// сброс в PENDING должен быть сохранён в любом случае.
			if err := repo.Update(ctx, m); err != nil {
				return err
			}
			if confirmErr != nil {
				return retry.Permanent(confirmErr)
			}

			result = &ConfirmResultResult{
				MatchID:      m.ID,
				State:        m.State,
				Accepted:     cmd.Accept,
				AllConfirmed: m.AllConfirmed(),
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("confirm_result: %w", err)
	}

	if result.AllConfirmed && h.finalizer != nil {
		fin, err := h.finalizer.Handle(ctx, FinalizeMatchCommand{MatchID: cmd.MatchID})
		if err != nil {
			return nil, fmt.Errorf("confirm_result: finalize: %w", err)
		}
		result.Finalized = true
		result.Finalization = fin
		result.State = match.StateCompleted
	}

	return result, nil
}
