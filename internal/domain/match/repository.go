package match

import (
	"context"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над матчами.
type Repository interface {
	// Create сохраняет новый матч с участниками.
	// Возвращает ErrDuplicateMatch при активном матче того же состава
	// в том же событии.
	Create(ctx context.Context, m *Match) error

	// GetByID возвращает матч с участниками, предложением
	// и подтверждениями. Возвращает ErrMatchNotFound, если матча нет.
	GetByID(ctx context.Context, id shared.MatchID) (*Match, error)

	// GetByIDForUpdate возвращает матч под блокировкой строки (NOWAIT).
	// Возвращает ErrMatchLockBusy, если строку держит другой писатель.
	// Обязан вызываться внутри транзакции; переходы состояний пишутся
	// только через этот путь.
	GetByIDForUpdate(ctx context.Context, id shared.MatchID) (*Match, error)

	// Update сохраняет состояние матча, участников, предложение
	// и подтверждения атомарно.
	Update(ctx context.Context, m *Match) error

	// ListExpiredProposals возвращает ID матчей с истёкшими к моменту now
	// предложениями. Используется фоновой развёрткой.
	ListExpiredProposals(ctx context.Context, now time.Time, limit int) ([]shared.MatchID, error)

	// ListActiveByPlayer возвращает незавершённые матчи игрока.
	ListActiveByPlayer(ctx context.Context, playerID shared.PlayerID) ([]*Match, error)

	// HasActiveForParticipants проверяет наличие активного матча с ровно
	// этим составом в событии. Используется как защита от дублей
	// до вставки; уникальный индекс - финальная страховка.
	HasActiveForParticipants(ctx context.Context, eventID shared.EventID, playerIDs []shared.PlayerID) (bool, error)
}
