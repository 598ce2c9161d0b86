package query

import (
	"context"
	"errors"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/ledger"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/player"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEDGER QUERY
// Выписка журнала билетов игрока для экрана профиля: записи новыми
// вперёд, постраничная выборка offset/limit, текущий кешированный
// баланс в заголовке страницы.
// ══════════════════════════════════════════════════════════════════════════════

// GetLedgerQuery содержит параметры выписки.
type GetLedgerQuery struct {
	PlayerID string

	// Page - номер страницы, с единицы.
	Page int

	// PageSize - размер страницы (по умолчанию 20, максимум 100).
	PageSize int
}

// Validate проверяет и нормализует параметры запроса.
func (q *GetLedgerQuery) Validate() error {
	if q.PlayerID == "" {
		return errors.New("get_ledger: player_id is required")
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	return nil
}

// LedgerEntryDTO - запись журнала в выписке.
type LedgerEntryDTO struct {
	ID           string    `json:"id"`
	Amount       int       `json:"amount"`
	Reason       string    `json:"reason"`
	BalanceAfter int       `json:"balance_after"`
	MatchID      string    `json:"match_id,omitempty"`
	ActorID      string    `json:"actor_id,omitempty"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// GetLedgerResult содержит страницу выписки.
type GetLedgerResult struct {
	PlayerID string `json:"player_id"`

	// Balance - текущий кешированный баланс игрока.
	Balance int `json:"balance"`

	Entries  []LedgerEntryDTO `json:"entries"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	HasMore  bool             `json:"has_more"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetLedgerHandler обрабатывает GetLedgerQuery.
type GetLedgerHandler struct {
	ledgerRepo ledger.Repository
	playerRepo player.Repository
}

// NewGetLedgerHandler создаёт обработчик выписки.
func NewGetLedgerHandler(ledgerRepo ledger.Repository, playerRepo player.Repository) *GetLedgerHandler {
	return &GetLedgerHandler{ledgerRepo: ledgerRepo, playerRepo: playerRepo}
}

// Handle выполняет запрос страницы выписки.
func (h *GetLedgerHandler) Handle(ctx context.Context, q GetLedgerQuery) (*GetLedgerResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLedger", shared.ErrValidation, err.Error(), err)
	}

	pid := shared.PlayerID(q.PlayerID)
	p, err := h.playerRepo.GetByID(ctx, pid)
	if err != nil {
		return nil, err
	}

	// Запрашивается limit+1: лишняя запись - признак следующей
	// страницы, в ответ не входит.
	offset := (q.Page - 1) * q.PageSize
	entries, err := h.ledgerRepo.ListByPlayer(ctx, pid, q.PageSize+1, offset)
	if err != nil {
		return nil, err
	}

	hasMore := len(entries) > q.PageSize
	if hasMore {
		entries = entries[:q.PageSize]
	}

	result := &GetLedgerResult{
		PlayerID: p.ID.String(),
		Balance:  int(p.TicketBalance),
		Entries:  make([]LedgerEntryDTO, 0, len(entries)),
		Page:     q.Page,
		PageSize: q.PageSize,
		HasMore:  hasMore,
	}
	for _, e := range entries {
		result.Entries = append(result.Entries, LedgerEntryDTO{
			ID:           e.ID,
			Amount:       e.Amount,
			Reason:       string(e.Reason),
			BalanceAfter: int(e.BalanceAfter),
			MatchID:      e.MatchID.String(),
			ActorID:      e.ActorID.String(),
			Note:         e.Note,
			CreatedAt:    e.CreatedAt,
		})
	}

	return result, nil
}
