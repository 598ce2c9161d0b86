package player

import (
	"context"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ListOptions - параметры выборки списков.
type ListOptions struct {
	Limit  int
	Offset int

	// IncludeGhosts - включать ли призраков (по умолчанию нет).
	IncludeGhosts bool

	// IncludeInactive - включать ли деактивированных.
	IncludeInactive bool
}

// Repository определяет основные операции для игроков.
type Repository interface {
	// Create создаёт нового игрока.
	// Возвращает ErrPlayerAlreadyExists, если DiscordID уже зарегистрирован.
	Create(ctx context.Context, p *Player) error

	// GetByID возвращает игрока по внутреннему ID.
	// Возвращает ErrPlayerNotFound, если игрок не найден.
	GetByID(ctx context.Context, id shared.PlayerID) (*Player, error)

	// GetByDiscordID возвращает игрока по Discord ID.
	// Возвращает ErrPlayerNotFound, если игрок не найден.
	GetByDiscordID(ctx context.Context, discordID shared.DiscordID) (*Player, error)

	// GetByIDs возвращает игроков по списку ID одним запросом.
	GetByIDs(ctx context.Context, ids []shared.PlayerID) ([]*Player, error)

	// Update сохраняет изменения игрока.
	Update(ctx context.Context, p *Player) error

	// RefreshOverall обновляет кешированные агрегаты (materialized view)
	// после пересчёта overall-рейтинга.
	RefreshOverall(ctx context.Context, id shared.PlayerID, scoring, raw, final shared.Elo) error

	// Deactivate деактивирует игрока (мягкое удаление).
	Deactivate(ctx context.Context, id shared.PlayerID) error

	// MarkGhost помечает игрока как покинувшего сообщество.
	MarkGhost(ctx context.Context, id shared.PlayerID) error

	// GetAll возвращает игроков с пагинацией.
	GetAll(ctx context.Context, opts ListOptions) ([]*Player, error)

	// Count возвращает количество игроков по заданным опциям.
	Count(ctx context.Context, opts ListOptions) (int, error)
}
