// Package ledger реализует журнал билетов: append-only источник истины
// для баланса игрока. Кешированный баланс на игроке - производное
// значение; инвариант sum(записей) == кеш проверяется верификацией.
package ledger

import (
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// Reason - код причины движения билетов.
type Reason string

const (
	// ReasonMatchReward - награда победителя завершённого матча.
	ReasonMatchReward Reason = "match_reward"

	// ReasonMatchParticipation - награда каждого участника
	// завершённого матча.
	ReasonMatchParticipation Reason = "match_participation"

	// ReasonAdminGrant - ручное начисление администратором.
	ReasonAdminGrant Reason = "admin_grant"

	// ReasonAdminDebit - ручное списание администратором.
	ReasonAdminDebit Reason = "admin_debit"

	// ReasonPurchase - трата билетов игроком.
	ReasonPurchase Reason = "purchase"

	// ReasonCorrection - корректировка при расхождении журнала и кеша.
	ReasonCorrection Reason = "correction"
)

// IsValid проверяет известность кода причины.
func (r Reason) IsValid() bool {
	switch r {
	case ReasonMatchReward, ReasonMatchParticipation, ReasonAdminGrant, ReasonAdminDebit, ReasonPurchase, ReasonCorrection:
		return true
	}
	return false
}

// Entry - неизменяемая запись журнала билетов.
type Entry struct {
	ID       string
	PlayerID shared.PlayerID

	// Amount - знаковое изменение баланса; ноль запрещён.
	Amount int

	Reason Reason

	// BalanceAfter - снимок баланса сразу после применения записи.
	BalanceAfter shared.Tickets

	// MatchID - породивший матч (награды), пусто иначе.
	MatchID shared.MatchID

	// ActorID - администратор, выполнивший операцию (ручные движения).
	ActorID shared.PlayerID

	// Note - свободный комментарий причины.
	Note string

	CreatedAt time.Time
}

// NewEntry создаёт запись журнала с валидацией.
// balanceBefore - баланс под блокировкой строки до применения;
// отрицательный итог списания отклоняется целиком.
func NewEntry(id string, playerID shared.PlayerID, amount int, reason Reason, balanceBefore shared.Tickets) (*Entry, error) {
	if amount == 0 {
		return nil, shared.ErrZeroAmount
	}
	if !reason.IsValid() {
		return nil, shared.ErrInvalidReason
	}

	after := int(balanceBefore) + amount
	if after < 0 {
		return nil, shared.ErrDebitBelowZero
	}

	return &Entry{
		ID:           id,
		PlayerID:     playerID,
		Amount:       amount,
		Reason:       reason,
		BalanceAfter: shared.Tickets(after),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// IntegrityReport - результат сверки журнала с кешированным балансом.
type IntegrityReport struct {
	PlayerID shared.PlayerID

	// Cached - баланс из строки игрока.
	Cached shared.Tickets

	// Computed - сумма всех записей журнала.
	Computed shared.Tickets

	// Match - совпадают ли значения.
	Match bool

	CheckedAt time.Time
}

// NewIntegrityReport строит отчёт сверки.
func NewIntegrityReport(playerID shared.PlayerID, cached, computed shared.Tickets) IntegrityReport {
	return IntegrityReport{
		PlayerID:  playerID,
		Cached:    cached,
		Computed:  computed,
		Match:     cached == computed,
		CheckedAt: time.Now().UTC(),
	}
}
