package ledger

import (
	"context"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над журналом билетов.
// Журнал append-only: записи никогда не обновляются и не удаляются.
type Repository interface {
	// LockBalance возвращает кешированный баланс игрока под блокировкой
	// строки (NOWAIT). Возвращает ErrBalanceLockBusy, если строку держит
	// другой писатель. Обязан вызываться внутри транзакции.
	LockBalance(ctx context.Context, playerID shared.PlayerID) (shared.Tickets, error)

	// Append записывает запись журнала и обновляет кешированный баланс
	// на строке игрока. Обязан вызываться под блокировкой LockBalance.
	Append(ctx context.Context, e *Entry) error

	// SumByPlayer возвращает сумму всех записей журнала игрока.
	SumByPlayer(ctx context.Context, playerID shared.PlayerID) (shared.Tickets, error)

	// ListByPlayer возвращает записи игрока, новые первыми.
	ListByPlayer(ctx context.Context, playerID shared.PlayerID, limit, offset int) ([]*Entry, error)

	// ListByMatch возвращает записи, порождённые матчем.
	ListByMatch(ctx context.Context, matchID shared.MatchID) ([]*Entry, error)
}
