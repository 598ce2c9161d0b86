package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/config"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/ledger"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/match"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/player"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/rating"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/postgres"
	redisx "github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/redis"
	"github.com/arena-hub/arena-tournament-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// FINALIZE MATCH COMMAND
// Применение единогласно подтверждённого результата. Одна транзакция:
// блокировка матча, блокировка рейтинговых строк участников в
// детерминированном порядке, расчёт дельт, мутация статистики, история,
// билетные награды и пересчёт overall-агрегатов. Идемпотентность
// обеспечивает машина состояний: повторная финализация отклоняется
// до каких-либо записей.
// ══════════════════════════════════════════════════════════════════════════════

// FinalizeMatchCommand содержит параметры финализации.
type FinalizeMatchCommand struct {
	// MatchID - матч с единогласно принятым предложением.
	MatchID string
}

// Validate проверяет корректность параметров команды.
func (c *FinalizeMatchCommand) Validate() error {
	if c.MatchID == "" {
		return errors.New("finalize_match: match_id is required")
	}
	return nil
}

// ParticipantDelta - итог участника для результата финализации.
type ParticipantDelta struct {
	PlayerID  shared.PlayerID
	Placement int
	OldRating shared.Elo
	NewRating shared.Elo
	Delta     int
	Outcome   string
}

// FinalizeMatchResult содержит результат финализации.
type FinalizeMatchResult struct {
	MatchID shared.MatchID
	State   match.State

	// Deltas - применённые изменения рейтинга в порядке участников.
	Deltas []ParticipantDelta

	// TicketsAwarded - билеты, начисленные победителю сверх награды
	// за участие (0 без победителя).
	TicketsAwarded int

	// WinnerID - единоличный победитель; пусто при ничьей.
	WinnerID shared.PlayerID

	FinalizedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// FinalizeMatchHandler обрабатывает FinalizeMatchCommand.
type FinalizeMatchHandler struct {
	conn        *postgres.Connection
	matchRepo   *postgres.MatchRepository
	statsRepo   *postgres.StatsRepository
	historyRepo *postgres.HistoryRepository
	ledgerRepo  *postgres.LedgerRepository
	playerRepo  *postgres.PlayerRepository
	refresher   *OverallRefresher
	calc        *rating.Calculator
	flags       *config.FeatureFlags
	lbCache     *redisx.LeaderboardCache
	playerCache *redisx.PlayerCache
	retrier     *retry.Retrier

	// winnerTickets - награда единоличного победителя;
	// participationTickets - награда каждого участника.
	winnerTickets        int
	participationTickets int
}

// NewFinalizeMatchHandler создаёт обработчик финализации.
func NewFinalizeMatchHandler(
	conn *postgres.Connection,
	matchRepo *postgres.MatchRepository,
	statsRepo *postgres.StatsRepository,
	historyRepo *postgres.HistoryRepository,
	ledgerRepo *postgres.LedgerRepository,
	playerRepo *postgres.PlayerRepository,
	refresher *OverallRefresher,
	calc *rating.Calculator,
	flags *config.FeatureFlags,
	lbCache *redisx.LeaderboardCache,
	playerCache *redisx.PlayerCache,
	winnerTickets int,
	participationTickets int,
) *FinalizeMatchHandler {
	return &FinalizeMatchHandler{
		conn:                 conn,
		matchRepo:            matchRepo,
		statsRepo:            statsRepo,
		historyRepo:          historyRepo,
		ledgerRepo:           ledgerRepo,
		playerRepo:           playerRepo,
		refresher:            refresher,
		calc:                 calc,
		flags:                flags,
		lbCache:              lbCache,
		playerCache:          playerCache,
		retrier:              retry.LockRetrier(),
		winnerTickets:        winnerTickets,
		participationTickets: participationTickets,
	}
}

// Handle выполняет финализацию матча.
func (h *FinalizeMatchHandler) Handle(ctx context.Context, cmd FinalizeMatchCommand) (*FinalizeMatchResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("finalize_match: validation failed: %w", err)
	}

	var result *FinalizeMatchResult
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.conn.WithTx(ctx, postgres.DefaultTxOptions(), func(tx pgx.Tx) error {
			var txErr error
			result, txErr = h.finalizeTx(ctx, tx, shared.MatchID(cmd.MatchID))
			return txErr
		})
	})
	if err != nil {
		return nil, fmt.Errorf("finalize_match: %w", err)
	}

	h.invalidateCaches(ctx, result)
	return result, nil
}

func (h *FinalizeMatchHandler) finalizeTx(ctx context.Context, tx pgx.Tx, matchID shared.MatchID) (*FinalizeMatchResult, error) {
	matchRepo := h.matchRepo.WithTx(tx)
	statsRepo := h.statsRepo.WithTx(tx)
	playerRepo := h.playerRepo.WithTx(tx)

	m, err := matchRepo.GetByIDForUpdate(ctx, matchID)
	if err != nil {
		return nil, classifyLockErr(err)
	}
	if m.State == match.StateCompleted {
		return nil, retry.Permanent(shared.ErrMatchAlreadyComplete)
	}

	// Рейтинговые строки блокируются в порядке возрастания ID игрока:
	// два конкурирующих финализатора с пересекающимися составами не
	// могут образовать цикл ожидания.
	ordered := make([]shared.PlayerID, 0, len(m.Participants))
	for _, p := range m.Participants {
		ordered = append(ordered, p.PlayerID)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	statsByPlayer := make(map[shared.PlayerID]*rating.PlayerEventStats, len(ordered))
	for _, pid := range ordered {
		s, err := statsRepo.GetForUpdate(ctx, pid, m.EventID)
		if err != nil {
			return nil, classifyLockErr(err)
		}
		statsByPlayer[pid] = s
	}

	ratings := make(map[shared.PlayerID]shared.Elo, len(ordered))
	games := make(map[shared.PlayerID]int, len(ordered))
	for pid, s := range statsByPlayer {
		ratings[pid] = s.RawElo
		games[pid] = s.MatchesPlayed
	}

	standings, err := m.Standings(ratings, games)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	deltas := h.calc.PlacementDeltas(standings)

	now := time.Now().UTC()
	placements := m.Proposal.Placements
	if err := m.Finalize(deltas, now); err != nil {
		return nil, retry.Permanent(err)
	}

	result := &FinalizeMatchResult{
		MatchID:     m.ID,
		State:       m.State,
		Deltas:      make([]ParticipantDelta, 0, len(deltas)),
		FinalizedAt: now,
	}

	entries := make([]*rating.HistoryEntry, 0, len(deltas))
	for i, d := range deltas {
		outcome := outcomeFor(d.Placement, placements)

		s := statsByPlayer[d.PlayerID]
		s.ApplyDelta(d.Delta, outcome, h.calc.StartingElo())
		if err := statsRepo.Update(ctx, s); err != nil {
			return nil, err
		}

		entry, err := rating.NewHistoryEntry(
			uuid.New().String(), d.PlayerID, m.EventID,
			rating.SourceMatch, m.ID.String(),
			d.OldRating, d.NewRating, d.KFactor, outcome.String(),
		)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		if len(deltas) == 2 {
			entry.OpponentID = deltas[1-i].PlayerID
		}
		entries = append(entries, entry)

		result.Deltas = append(result.Deltas, ParticipantDelta{
			PlayerID:  d.PlayerID,
			Placement: d.Placement,
			OldRating: d.OldRating,
			NewRating: d.NewRating,
			Delta:     d.Delta,
			Outcome:   outcome.String(),
		})
	}

	if err := h.historyRepo.WithTx(tx).AppendBatch(ctx, entries); err != nil {
		return nil, err
	}
	if err := matchRepo.Update(ctx, m); err != nil {
		return nil, err
	}

	// Суммарная статистика, билетные награды и overall-агрегаты -
	// в том же порядке блокировки, что и рейтинговые строки.
	for _, pid := range ordered {
		p, err := playerRepo.GetByID(ctx, pid)
		if err != nil {
			return nil, err
		}

		var placement int
		for _, part := range m.Participants {
			if part.PlayerID == pid {
				placement = part.Placement
			}
		}
		outcome := outcomeFor(placement, placements)
		p.ApplyOutcome(outcome)
		if err := playerRepo.Update(ctx, p); err != nil {
			return nil, err
		}

		balance := p.TicketBalance
		if h.flags.IsEnabled(config.FeatureTicketsMatchRewards, nil) {
			if h.participationTickets > 0 {
				balance, err = h.awardTickets(ctx, tx, pid, m.ID, h.participationTickets, ledger.ReasonMatchParticipation)
				if err != nil {
					return nil, err
				}
			}
			if h.winnerTickets > 0 && outcome == player.OutcomeWin {
				balance, err = h.awardTickets(ctx, tx, pid, m.ID, h.winnerTickets, ledger.ReasonMatchReward)
				if err != nil {
					return nil, err
				}
				result.TicketsAwarded = h.winnerTickets
				result.WinnerID = pid
			}
		}

		if err := h.refresher.RefreshTx(ctx, tx, pid, balance); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// awardTickets начисляет билеты под блокировкой баланса
// и возвращает баланс после начисления.
func (h *FinalizeMatchHandler) awardTickets(ctx context.Context, tx pgx.Tx, playerID shared.PlayerID, matchID shared.MatchID, amount int, reason ledger.Reason) (shared.Tickets, error) {
	ledgerRepo := h.ledgerRepo.WithTx(tx)

	before, err := ledgerRepo.LockBalance(ctx, playerID)
	if err != nil {
		return 0, classifyLockErr(err)
	}

	e, err := ledger.NewEntry(uuid.New().String(), playerID, amount, reason, before)
	if err != nil {
		return 0, retry.Permanent(err)
	}
	e.MatchID = matchID
	if err := ledgerRepo.Append(ctx, e); err != nil {
		return 0, err
	}
	return e.BalanceAfter, nil
}

// invalidateCaches сбрасывает затронутые финализацией кеши.
// Ошибки кеша не откатывают уже зафиксированный результат.
func (h *FinalizeMatchHandler) invalidateCaches(ctx context.Context, result *FinalizeMatchResult) {
	if result == nil {
		return
	}
	if h.lbCache != nil {
		_ = h.lbCache.InvalidateAll(ctx)
	}
	if h.playerCache != nil {
		for _, d := range result.Deltas {
			_ = h.playerCache.Invalidate(ctx, d.PlayerID)
		}
	}
}
