package ranking

import (
	"context"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Options - параметры выборки рейтинга.
type Options struct {
	// IncludeGhosts - включать ли призраков (по умолчанию нет).
	IncludeGhosts bool
}

// Repository определяет операции ранжирования.
// Плотные ранги считает хранилище (RANK() OVER); альтернативные ключи
// сортировки идут через тот же запрос с подстановкой колонки по белому
// списку.
type Repository interface {
	// RankedPage возвращает страницу рейтинга области по ключу.
	// Номера страниц с 1; итоговые количества точные.
	RankedPage(ctx context.Context, scope Scope, key SortKey, page, pageSize int, opts Options) (*Page, error)

	// RankOf возвращает ранг игрока в области по ключу.
	// Возвращает RankUnranked, если игрок вне области.
	RankOf(ctx context.Context, scope Scope, key SortKey, playerID shared.PlayerID) (shared.Rank, error)
}
