package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/event"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/rating"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/postgres"
	redisx "github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/redis"
	"github.com/arena-hub/arena-tournament-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT SCORE COMMAND
// Заявка сырого очка в leaderboard-событие. Очко входит в бегущие
// моменты популяции (Welford), рейтинг игрока в событии - нормализация
// его ЛУЧШЕЙ заявки против популяции на текущий момент. Конкурентные
// заявки могут дать дрейф моментов; периодический полный пересчёт
// (Reset+Push) его устраняет.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitScoreCommand содержит параметры заявки очка.
type SubmitScoreCommand struct {
	// PlayerID - внутренний ID игрока.
	PlayerID string

	// EventID - leaderboard-событие.
	EventID string

	// RawScore - сырое очко в единицах события.
	RawScore float64
}

// Validate проверяет корректность параметров команды.
func (c *SubmitScoreCommand) Validate() error {
	if c.PlayerID == "" {
		return errors.New("submit_score: player_id is required")
	}
	if c.EventID == "" {
		return errors.New("submit_score: event_id is required")
	}
	return nil
}

// SubmitScoreResult содержит результат заявки.
type SubmitScoreResult struct {
	// SubmissionID - ID созданной заявки.
	SubmissionID string

	// NormalizedElo - нормализованный рейтинг этой заявки.
	NormalizedElo shared.Elo

	// EventElo - рейтинг игрока в событии после заявки
	// (нормализация лучшей заявки).
	EventElo shared.Elo

	// PopulationSize - размер популяции после заявки.
	PopulationSize int64

	SubmittedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitScoreHandler обрабатывает SubmitScoreCommand.
type SubmitScoreHandler struct {
	conn        *postgres.Connection
	eventRepo   *postgres.EventRepository
	subRepo     *postgres.SubmissionRepository
	statsRepo   *postgres.StatsRepository
	historyRepo *postgres.HistoryRepository
	normalizer  *rating.Normalizer
	calc        *rating.Calculator
	lbCache     *redisx.LeaderboardCache
	playerCache *redisx.PlayerCache
	retrier     *retry.Retrier
}

// NewSubmitScoreHandler создаёт обработчик заявок.
func NewSubmitScoreHandler(
	conn *postgres.Connection,
	eventRepo *postgres.EventRepository,
	subRepo *postgres.SubmissionRepository,
	statsRepo *postgres.StatsRepository,
	historyRepo *postgres.HistoryRepository,
	normalizer *rating.Normalizer,
	calc *rating.Calculator,
	lbCache *redisx.LeaderboardCache,
	playerCache *redisx.PlayerCache,
) *SubmitScoreHandler {
	return &SubmitScoreHandler{
		conn:        conn,
		eventRepo:   eventRepo,
		subRepo:     subRepo,
		statsRepo:   statsRepo,
		historyRepo: historyRepo,
		normalizer:  normalizer,
		calc:        calc,
		lbCache:     lbCache,
		playerCache: playerCache,
		retrier:     retry.LockRetrier(),
	}
}

// Handle выполняет заявку очка.
func (h *SubmitScoreHandler) Handle(ctx context.Context, cmd SubmitScoreCommand) (*SubmitScoreResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("submit_score: validation failed: %w", err)
	}

	playerID, err := shared.NewPlayerID(cmd.PlayerID)
	if err != nil {
		return nil, err
	}
	eventID := shared.EventID(cmd.EventID)

	var result *SubmitScoreResult
	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.conn.WithTx(ctx, postgres.DefaultTxOptions(), func(tx pgx.Tx) error {
			var txErr error
			result, txErr = h.submitTx(ctx, tx, playerID, eventID, cmd.RawScore)
			return txErr
		})
	})
	if err != nil {
		return nil, fmt.Errorf("submit_score: %w", err)
	}

	if h.lbCache != nil {
		_ = h.lbCache.Invalidate(ctx, eventScope(eventID))
	}
	if h.playerCache != nil {
		_ = h.playerCache.Invalidate(ctx, playerID)
	}
	return result, nil
}

func (h *SubmitScoreHandler) submitTx(ctx context.Context, tx pgx.Tx, playerID shared.PlayerID, eventID shared.EventID, rawScore float64) (*SubmitScoreResult, error) {
	eventRepo := h.eventRepo.WithTx(tx)
	subRepo := h.subRepo.WithTx(tx)
	statsRepo := h.statsRepo.WithTx(tx)

	// Моменты события - read-modify-write: без блокировки строки два
	// конкурирующих Push теряют один из них до следующего пересчёта.
	ev, err := eventRepo.GetByIDForUpdate(ctx, eventID)
	if err != nil {
		return nil, classifyLockErr(err)
	}
	if !ev.IsActive || !ev.Supports(event.ScoringLeaderboard) {
		return nil, retry.Permanent(shared.ErrUnsupportedForEvent)
	}

	ev.AllTimeStats.Push(rawScore)
	if err := eventRepo.UpdateRunningStats(ctx, ev.ID, ev.AllTimeStats); err != nil {
		return nil, err
	}

	sub := event.NewSubmission(uuid.New().String(), playerID, eventID, rawScore)
	sub.NormalizedElo = h.normalizer.Normalize(rawScore, ev.AllTimeStats, ev.Direction)
	if err := subRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	if _, err := statsRepo.GetOrCreate(ctx, playerID, eventID, h.calc.StartingElo()); err != nil {
		return nil, err
	}
	s, err := statsRepo.GetForUpdate(ctx, playerID, eventID)
	if err != nil {
		return nil, classifyLockErr(err)
	}

	// Рейтинг события - нормализация лучшей заявки против текущей
	// популяции, не средняя и не последняя.
	best, err := subRepo.BestByPlayer(ctx, playerID, eventID, ev.Direction)
	if err != nil {
		return nil, err
	}
	eventElo := h.normalizer.Normalize(best.RawScore, ev.AllTimeStats, ev.Direction)

	before := s.AllTimeElo
	s.AllTimeElo = eventElo
	s.RawElo = eventElo
	s.ScoringElo = eventElo.Floor(h.calc.StartingElo())
	if err := statsRepo.Update(ctx, s); err != nil {
		return nil, err
	}

	entry, err := rating.NewHistoryEntry(
		uuid.New().String(), playerID, eventID,
		rating.SourceSubmission, sub.ID,
		before, eventElo, 0, "",
	)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	if err := h.historyRepo.WithTx(tx).Append(ctx, entry); err != nil {
		return nil, err
	}

	return &SubmitScoreResult{
		SubmissionID:   sub.ID,
		NormalizedElo:  sub.NormalizedElo,
		EventElo:       eventElo,
		PopulationSize: ev.AllTimeStats.Count,
		SubmittedAt:    sub.SubmittedAt,
	}, nil
}
