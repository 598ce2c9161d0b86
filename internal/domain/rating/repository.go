package rating

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

// StatsRepository определяет операции над рейтинговыми записями.
type StatsRepository interface {
	// GetOrCreate возвращает запись пары (игрок, событие), лениво создавая
	// её со стартовым рейтингом при первом обращении.
	GetOrCreate(ctx context.Context, playerID shared.PlayerID, eventID shared.EventID, starting shared.Elo) (*PlayerEventStats, error)

	// Get возвращает запись пары (игрок, событие).
	// Возвращает ErrStatsNotFound, если записи нет.
	Get(ctx context.Context, playerID shared.PlayerID, eventID shared.EventID) (*PlayerEventStats, error)

	// GetForUpdate возвращает запись под блокировкой строки (NOWAIT).
	// Возвращает ErrStatsLockBusy, если строку держит другой писатель.
	// Обязан вызываться внутри транзакции.
	GetForUpdate(ctx context.Context, playerID shared.PlayerID, eventID shared.EventID) (*PlayerEventStats, error)

	// EnsureBatch создаёт недостающие записи для набора игроков одного
	// события одним запросом. Используется при открытии матча.
	EnsureBatch(ctx context.Context, playerIDs []shared.PlayerID, eventID shared.EventID, starting shared.Elo) error

	// Update сохраняет изменения записи.
	Update(ctx context.Context, s *PlayerEventStats) error

	// ListByPlayer возвращает все записи игрока по всем событиям.
	ListByPlayer(ctx context.Context, playerID shared.PlayerID) ([]*PlayerEventStats, error)

	// ListByEvent возвращает все записи события.
	ListByEvent(ctx context.Context, eventID shared.EventID) ([]*PlayerEventStats, error)

	// PlayerEloByCluster возвращает scoring elo игрока по событиям
	// указанного кластера. Пустой срез для игрока без участия.
	PlayerEloByCluster(ctx context.Context, playerID shared.PlayerID, clusterID string) ([]shared.Elo, error)
}

// HistoryQuery - фильтры выборки истории рейтинга.
type HistoryQuery struct {
	PlayerID shared.PlayerID

	// EventID - необязательный фильтр по событию.
	EventID shared.EventID

	// Since/Until - необязательное временное окно [Since, Until).
	Since time.Time
	Until time.Time

	Limit int
}

// HistoryRepository определяет операции над историей рейтинга.
// Записи append-only: обновлений и удалений нет.
type HistoryRepository interface {
	// Append записывает новую запись истории.
	// Обязан вызываться в той же транзакции, что и мутация статистики.
	Append(ctx context.Context, e *HistoryEntry) error

	// AppendBatch записывает записи всех участников матча одним запросом.
	AppendBatch(ctx context.Context, entries []*HistoryEntry) error

	// List возвращает записи по фильтрам, новые первыми.
	List(ctx context.Context, q HistoryQuery) ([]*HistoryEntry, error)
}
