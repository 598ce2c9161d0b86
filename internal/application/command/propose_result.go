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
// PROPOSE RESULT COMMAND
// Предложение результата участником: PENDING -> AWAITING_CONFIRMATION.
// Переход выполняется под блокировкой строки матча; занятая блокировка
// повторяется с экспоненциальной задержкой.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultProposalTTL - срок жизни предложения результата по умолчанию.
const DefaultProposalTTL = 24 * time.Hour

// ProposeResultCommand содержит параметры предложения результата.
type ProposeResultCommand struct {
	// MatchID - матч, для которого предлагается результат.
	MatchID string

	// ProposerID - участник, предлагающий результат.
	ProposerID string

	// Placements - места в порядке участников матча (1 = лучший).
	Placements []int

	// TTL - срок жизни предложения; ноль = DefaultProposalTTL.
	TTL time.Duration
}

// Validate проверяет корректность параметров команды.
func (c *ProposeResultCommand) Validate() error {
	if c.MatchID == "" {
		return errors.New("propose_result: match_id is required")
	}
	if c.ProposerID == "" {
		return errors.New("propose_result: proposer_id is required")
	}
	if len(c.Placements) == 0 {
		return errors.New("propose_result: placements are required")
	}
	return nil
}

// ProposeResultResult содержит результат предложения.
type ProposeResultResult struct {
	MatchID shared.MatchID
	State   match.State

	// ExpiresAt - момент истечения предложения.
	ExpiresAt time.Time

	// PendingConfirmations - сколько участников ещё должны подтвердить.
	PendingConfirmations int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ProposeResultHandler обрабатывает ProposeResultCommand.
type ProposeResultHandler struct {
	conn      *postgres.Connection
	matchRepo *postgres.MatchRepository
	retrier   *retry.Retrier
}

// NewProposeResultHandler создаёт обработчик предложения результата.
func NewProposeResultHandler(conn *postgres.Connection, matchRepo *postgres.MatchRepository) *ProposeResultHandler {
	return &ProposeResultHandler{
		conn:      conn,
		matchRepo: matchRepo,
		retrier:   retry.LockRetrier(),
	}
}

// Handle выполняет предложение результата.
func (h *ProposeResultHandler) Handle(ctx context.Context, cmd ProposeResultCommand) (*ProposeResultResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("propose_result: validation failed: %w", err)
	}

	ttl := cmd.TTL
	if ttl <= 0 {
		ttl = DefaultProposalTTL
	}

	var result *ProposeResultResult
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.conn.WithTx(ctx, postgres.DefaultTxOptions(), func(tx pgx.Tx) error {
			repo := h.matchRepo.WithTx(tx)
			m, err := repo.GetByIDForUpdate(ctx, shared.MatchID(cmd.MatchID))
			if err != nil {
				return classifyLockErr(err)
			}

			now := time.Now().UTC()
			if err := m.Propose(shared.PlayerID(cmd.ProposerID), cmd.Placements, ttl, now); err != nil {
				return retry.Permanent(err)
			}
			if err := repo.Update(ctx, m); err != nil {
				return err
			}

			pending := 0
			for _, c := range m.Confirmations {
				if c.Status == match.ConfirmationPending {
					pending++
				}
			}
			result = &ProposeResultResult{
				MatchID:              m.ID,
				State:                m.State,
				ExpiresAt:            m.Proposal.ExpiresAt,
				PendingConfirmations: pending,
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("propose_result: %w", err)
	}
	return result, nil
}

// classifyLockErr помечает занятую блокировку как повторяемую ошибку,
// всё остальное - как постоянную.
func classifyLockErr(err error) error {
	if shared.IsRetryable(err) {
		return retry.Retryable(err)
	}
	return retry.Permanent(err)
}
