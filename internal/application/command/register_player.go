// Package command contains write operations following CQRS pattern.
// Each command is a self-contained use case: request type with validation,
// result type and a handler wiring domain logic to repositories.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/player"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER PLAYER COMMAND
// Регистрация игрока по Discord ID. Повторная регистрация того же
// Discord ID - конфликт, а не тихое обновление.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterPlayerCommand содержит параметры регистрации игрока.
type RegisterPlayerCommand struct {
	// DiscordID - snowflake пользователя Discord.
	DiscordID string

	// DisplayName - отображаемое имя.
	DisplayName string
}

// Validate проверяет корректность параметров команды.
func (c *RegisterPlayerCommand) Validate() error {
	if c.DiscordID == "" {
		return errors.New("register_player: discord_id is required")
	}
	if c.DisplayName == "" {
		return errors.New("register_player: display_name is required")
	}
	return nil
}

// RegisterPlayerResult содержит результат регистрации.
type RegisterPlayerResult struct {
	// PlayerID - внутренний ID созданного игрока.
	PlayerID shared.PlayerID

	// DisplayName - имя после нормализации.
	DisplayName string

	// RegisteredAt - момент регистрации.
	RegisteredAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RegisterPlayerHandler обрабатывает RegisterPlayerCommand.
type RegisterPlayerHandler struct {
	playerRepo player.Repository
}

// NewRegisterPlayerHandler создаёт обработчик регистрации.
func NewRegisterPlayerHandler(playerRepo player.Repository) *RegisterPlayerHandler {
	return &RegisterPlayerHandler{playerRepo: playerRepo}
}

// Handle выполняет регистрацию игрока.
func (h *RegisterPlayerHandler) Handle(ctx context.Context, cmd RegisterPlayerCommand) (*RegisterPlayerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("register_player: validation failed: %w", err)
	}

	discordID, err := shared.NewDiscordID(cmd.DiscordID)
	if err != nil {
		return nil, err
	}

	p, err := player.NewPlayer(shared.PlayerID(uuid.New().String()), discordID, cmd.DisplayName)
	if err != nil {
		return nil, err
	}

	if err := h.playerRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("register_player: %w", err)
	}

	return &RegisterPlayerResult{
		PlayerID:     p.ID,
		DisplayName:  p.DisplayName,
		RegisteredAt: p.CreatedAt,
	}, nil
}
