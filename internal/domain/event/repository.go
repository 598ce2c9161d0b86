package event

import (
	"context"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции для событий и кластеров.
type Repository interface {
	// GetByID возвращает событие по ID.
	// Возвращает ErrEventNotFound, если событие не найдено.
	GetByID(ctx context.Context, id shared.EventID) (*Event, error)

	// GetByIDForUpdate возвращает событие под блокировкой строки (NOWAIT).
	// Бегущие моменты события - состояние read-modify-write: каждый
	// писатель обязан держать эту блокировку до конца транзакции.
	// Возвращает ErrEventLockBusy, если строку держит другой писатель.
	GetByIDForUpdate(ctx context.Context, id shared.EventID) (*Event, error)

	// GetByClusterAndName возвращает событие по уникальной паре (кластер, имя).
	GetByClusterAndName(ctx context.Context, clusterID, name string) (*Event, error)

	// ListByCluster возвращает события кластера.
	ListByCluster(ctx context.Context, clusterID string) ([]*Event, error)

	// ListActive возвращает все активные события.
	ListActive(ctx context.Context) ([]*Event, error)

	// ListLeaderboardEvents возвращает активные события с leaderboard-режимом.
	// Используется фоновыми задачами пересчёта.
	ListLeaderboardEvents(ctx context.Context) ([]*Event, error)

	// UpdateRunningStats атомарно сохраняет бегущие моменты события.
	UpdateRunningStats(ctx context.Context, id shared.EventID, stats RunningStats) error

	// Deactivate деактивирует событие.
	Deactivate(ctx context.Context, id shared.EventID) error

	// GetCluster возвращает кластер по ID.
	GetCluster(ctx context.Context, clusterID string) (*Cluster, error)

	// GetClusterByNumber возвращает кластер по уникальному номеру.
	GetClusterByNumber(ctx context.Context, number int) (*Cluster, error)

	// ListClusters возвращает все кластеры.
	ListClusters(ctx context.Context) ([]*Cluster, error)

	// BulkImport создаёт кластеры и события одной транзакцией (upsert).
	// Кластеры сопоставляются по номеру, события - по (кластер, имя).
	BulkImport(ctx context.Context, clusters []*Cluster, events []*Event) error
}
