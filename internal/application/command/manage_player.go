package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/player"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
	redisx "github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER LIFECYCLE COMMANDS
// Деактивация и уход из сообщества. Физического удаления нет:
// призрак сохраняет историю матчей и исключается из рейтингов
// по умолчанию.
// ══════════════════════════════════════════════════════════════════════════════

// DeactivatePlayerCommand - мягкое удаление игрока.
type DeactivatePlayerCommand struct {
	PlayerID string
}

// MarkGhostCommand - пометка игрока покинувшим сообщество.
type MarkGhostCommand struct {
	PlayerID string
}

// PlayerLifecycleHandler обрабатывает команды жизненного цикла игрока.
type PlayerLifecycleHandler struct {
	playerRepo  player.Repository
	playerCache *redisx.PlayerCache
	lbCache     *redisx.LeaderboardCache
}

// NewPlayerLifecycleHandler создаёт обработчик жизненного цикла.
func NewPlayerLifecycleHandler(
	playerRepo player.Repository,
	playerCache *redisx.PlayerCache,
	lbCache *redisx.LeaderboardCache,
) *PlayerLifecycleHandler {
	return &PlayerLifecycleHandler{
		playerRepo:  playerRepo,
		playerCache: playerCache,
		lbCache:     lbCache,
	}
}

// Deactivate выполняет мягкое удаление игрока.
func (h *PlayerLifecycleHandler) Deactivate(ctx context.Context, cmd DeactivatePlayerCommand) error {
	if cmd.PlayerID == "" {
		return errors.New("deactivate_player: player_id is required")
	}
	playerID, err := shared.NewPlayerID(cmd.PlayerID)
	if err != nil {
		return err
	}

	if err := h.playerRepo.Deactivate(ctx, playerID); err != nil {
		return fmt.Errorf("deactivate_player: %w", err)
	}
	h.invalidate(ctx, playerID)
	return nil
}

// MarkGhost помечает игрока покинувшим сообщество.
func (h *PlayerLifecycleHandler) MarkGhost(ctx context.Context, cmd MarkGhostCommand) error {
	if cmd.PlayerID == "" {
		return errors.New("mark_ghost: player_id is required")
	}
	playerID, err := shared.NewPlayerID(cmd.PlayerID)
	if err != nil {
		return err
	}

	if err := h.playerRepo.MarkGhost(ctx, playerID); err != nil {
		return fmt.Errorf("mark_ghost: %w", err)
	}
	h.invalidate(ctx, playerID)
	return nil
}

func (h *PlayerLifecycleHandler) invalidate(ctx context.Context, playerID shared.PlayerID) {
	if h.playerCache != nil {
		_ = h.playerCache.Invalidate(ctx, playerID)
	}
	if h.lbCache != nil {
		_ = h.lbCache.InvalidateAll(ctx)
	}
}
