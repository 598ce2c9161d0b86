package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/config"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/event"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/match"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/rating"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/postgres"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPEN MATCH COMMAND
// Открытие матча: фиксация состава участников в событии. Матч и
// недостающие рейтинговые записи участников создаются одной транзакцией,
// чтобы финализация никогда не встречала отсутствующую статистику.
// ══════════════════════════════════════════════════════════════════════════════

// OpenMatchCommand содержит параметры открытия матча.
type OpenMatchCommand struct {
	// EventID - событие, в котором играется матч.
	EventID string

	// Mode - режим подсчёта ("1v1", "ffa", "team").
	Mode string

	// PlayerIDs - внутренние ID участников.
	PlayerIDs []string
}

// Validate проверяет корректность параметров команды.
func (c *OpenMatchCommand) Validate() error {
	if c.EventID == "" {
		return errors.New("open_match: event_id is required")
	}
	if c.Mode == "" {
		return errors.New("open_match: mode is required")
	}
	if len(c.PlayerIDs) < 2 {
		return errors.New("open_match: at least two players are required")
	}
	return nil
}

// OpenMatchResult содержит результат открытия матча.
type OpenMatchResult struct {
	// MatchID - ID созданного матча.
	MatchID shared.MatchID

	// State - состояние матча (всегда PENDING).
	State match.State

	// CreatedAt - момент создания.
	CreatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// OpenMatchHandler обрабатывает OpenMatchCommand.
type OpenMatchHandler struct {
	conn       *postgres.Connection
	eventRepo  event.Repository
	matchRepo  *postgres.MatchRepository
	statsRepo  *postgres.StatsRepository
	playerRepo *postgres.PlayerRepository
	calc       *rating.Calculator
	flags      *config.FeatureFlags
}

// NewOpenMatchHandler создаёт обработчик открытия матча.
func NewOpenMatchHandler(
	conn *postgres.Connection,
	eventRepo event.Repository,
	matchRepo *postgres.MatchRepository,
	statsRepo *postgres.StatsRepository,
	playerRepo *postgres.PlayerRepository,
	calc *rating.Calculator,
	flags *config.FeatureFlags,
) *OpenMatchHandler {
	return &OpenMatchHandler{
		conn:       conn,
		eventRepo:  eventRepo,
		matchRepo:  matchRepo,
		statsRepo:  statsRepo,
		playerRepo: playerRepo,
		calc:       calc,
		flags:      flags,
	}
}

// Handle выполняет открытие матча.
func (h *OpenMatchHandler) Handle(ctx context.Context, cmd OpenMatchCommand) (*OpenMatchResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("open_match: validation failed: %w", err)
	}

	mode, err := event.ParseScoringMode(cmd.Mode)
	if err != nil {
		return nil, err
	}
	if !mode.UsesPlacements() {
		return nil, shared.ErrUnsupportedForEvent
	}
	if mode == event.ScoringTeam && !h.flags.IsEnabled(config.FeatureMatchTeamMode, nil) {
		return nil, shared.ErrUnsupportedForEvent
	}

	ev, err := h.eventRepo.GetByID(ctx, shared.EventID(cmd.EventID))
	if err != nil {
		return nil, err
	}
	if !ev.Supports(mode) {
		return nil, shared.ErrUnsupportedForEvent
	}
	if err := ev.ValidateParticipantCount(len(cmd.PlayerIDs)); err != nil {
		return nil, err
	}

	playerIDs := make([]shared.PlayerID, 0, len(cmd.PlayerIDs))
	for _, raw := range cmd.PlayerIDs {
		pid, err := shared.NewPlayerID(raw)
		if err != nil {
			return nil, err
		}
		playerIDs = append(playerIDs, pid)
	}

	// Все участники должны существовать и быть активными.
	players, err := h.playerRepo.GetByIDs(ctx, playerIDs)
	if err != nil {
		return nil, err
	}
	if len(players) != len(playerIDs) {
		return nil, shared.ErrPlayerNotFound
	}
	for _, p := range players {
		if !p.IsActive {
			return nil, shared.ErrPlayerNotActive
		}
	}

	// Быстрая проверка до вставки; уникальный индекс в хранилище -
	// финальная страховка от гонки двух одновременных открытий.
	if h.flags.IsEnabled(config.FeatureMatchDuplicateGuard, nil) {
		exists, err := h.matchRepo.HasActiveForParticipants(ctx, ev.ID, playerIDs)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, shared.ErrDuplicateMatch
		}
	}

	m, err := match.NewMatch(shared.MatchID(uuid.New().String()), ev.ID, mode.String(), playerIDs)
	if err != nil {
		return nil, err
	}

	err = h.conn.WithTx(ctx, postgres.DefaultTxOptions(), func(tx pgx.Tx) error {
		if err := h.statsRepo.WithTx(tx).EnsureBatch(ctx, playerIDs, ev.ID, h.calc.StartingElo()); err != nil {
			return err
		}
		return h.matchRepo.WithTx(tx).Create(ctx, m)
	})
	if err != nil {
		return nil, fmt.Errorf("open_match: %w", err)
	}

	return &OpenMatchResult{
		MatchID:   m.ID,
		State:     m.State,
		CreatedAt: m.CreatedAt,
	}, nil
}
