package query

import (
	"context"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/ledger"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/player"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY LEDGER QUERY
// Сверка журнала билетов с кешированными балансами: сумма записей
// журнала обязана равняться балансу на строке игрока. Расхождения
// выводятся для ручного разбора - автоматической коррекции нет.
// ══════════════════════════════════════════════════════════════════════════════

// VerifyLedgerQuery содержит параметры сверки.
type VerifyLedgerQuery struct {
	// PlayerID - сверить одного игрока; пусто = всех.
	PlayerID string

	// BatchSize - размер страницы обхода при полной сверке
	// (по умолчанию 200).
	BatchSize int
}

// Validate проверяет и нормализует параметры запроса.
func (q *VerifyLedgerQuery) Validate() error {
	if q.BatchSize <= 0 {
		q.BatchSize = 200
	}
	return nil
}

// MismatchDTO - найденное расхождение.
type MismatchDTO struct {
	PlayerID string `json:"player_id"`
	Cached   int    `json:"cached"`
	Computed int    `json:"computed"`
	Diff     int    `json:"diff"`
}

// VerifyLedgerResult содержит результат сверки.
type VerifyLedgerResult struct {
	// PlayersChecked - сколько игроков сверено.
	PlayersChecked int `json:"players_checked"`

	// Mismatches - найденные расхождения; пусто при здоровом журнале.
	Mismatches []MismatchDTO `json:"mismatches"`

	CheckedAt time.Time `json:"checked_at"`
}

// Clean сообщает, сошлась ли сверка полностью.
func (r *VerifyLedgerResult) Clean() bool {
	return len(r.Mismatches) == 0
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// VerifyLedgerHandler обрабатывает VerifyLedgerQuery.
type VerifyLedgerHandler struct {
	ledgerRepo ledger.Repository
	playerRepo player.Repository
}

// NewVerifyLedgerHandler создаёт обработчик сверки.
func NewVerifyLedgerHandler(ledgerRepo ledger.Repository, playerRepo player.Repository) *VerifyLedgerHandler {
	return &VerifyLedgerHandler{
		ledgerRepo: ledgerRepo,
		playerRepo: playerRepo,
	}
}

// Handle выполняет сверку.
func (h *VerifyLedgerHandler) Handle(ctx context.Context, q VerifyLedgerQuery) (*VerifyLedgerResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "VerifyLedger", shared.ErrValidation, err.Error(), err)
	}

	result := &VerifyLedgerResult{CheckedAt: time.Now().UTC()}

	if q.PlayerID != "" {
		playerID, err := shared.NewPlayerID(q.PlayerID)
		if err != nil {
			return nil, err
		}
		p, err := h.playerRepo.GetByID(ctx, playerID)
		if err != nil {
			return nil, err
		}
		if err := h.check(ctx, p, result); err != nil {
			return nil, err
		}
		return result, nil
	}

	// Полный обход: призраки и деактивированные тоже сверяются -
	// их журнал обязан сходиться так же, как у активных.
	offset := 0
	for {
		players, err := h.playerRepo.GetAll(ctx, player.ListOptions{
			Limit:           q.BatchSize,
			Offset:          offset,
			IncludeGhosts:   true,
			IncludeInactive: true,
		})
		if err != nil {
			return nil, err
		}
		if len(players) == 0 {
			break
		}
		for _, p := range players {
			if err := h.check(ctx, p, result); err != nil {
				return nil, err
			}
		}
		if len(players) < q.BatchSize {
			break
		}
		offset += q.BatchSize
	}

	return result, nil
}

func (h *VerifyLedgerHandler) check(ctx context.Context, p *player.Player, result *VerifyLedgerResult) error {
	computed, err := h.ledgerRepo.SumByPlayer(ctx, p.ID)
	if err != nil {
		return err
	}

	result.PlayersChecked++
	report := ledger.NewIntegrityReport(p.ID, p.TicketBalance, computed)
	if !report.Match {
		result.Mismatches = append(result.Mismatches, MismatchDTO{
			PlayerID: p.ID.String(),
			Cached:   report.Cached.Int(),
			Computed: report.Computed.Int(),
			Diff:     report.Cached.Int() - report.Computed.Int(),
		})
	}
	return nil
}
