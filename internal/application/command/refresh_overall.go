package command

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/player"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/ranking"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/rating"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
	"github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/postgres"
)

// ══════════════════════════════════════════════════════════════════════════════
// OVERALL REFRESHER
// Пересчёт кешированных агрегатов игрока из строк per-event статистики.
// Эффективный рейтинг кластера - максимум по его событиям; итоговый
// счёт - взвешенная tier-агрегация плюс бонус баланса билетов.
// ══════════════════════════════════════════════════════════════════════════════

// OverallRefresher пересчитывает кешированные overall-агрегаты игрока.
// Вызывается в той же транзакции, что и породившая пересчёт мутация.
type OverallRefresher struct {
	statsRepo  *postgres.StatsRepository
	eventRepo  *postgres.EventRepository
	playerRepo *postgres.PlayerRepository
	agg        *rating.Aggregator
}

// NewOverallRefresher создаёт пересчётчик агрегатов.
func NewOverallRefresher(
	statsRepo *postgres.StatsRepository,
	eventRepo *postgres.EventRepository,
	playerRepo *postgres.PlayerRepository,
	agg *rating.Aggregator,
) *OverallRefresher {
	return &OverallRefresher{
		statsRepo:  statsRepo,
		eventRepo:  eventRepo,
		playerRepo: playerRepo,
		agg:        agg,
	}
}

// RefreshTx пересчитывает агрегаты игрока внутри транзакции tx.
// ticketBalance - текущий баланс билетов (бонус к итоговому счёту).
func (r *OverallRefresher) RefreshTx(ctx context.Context, tx pgx.Tx, playerID shared.PlayerID, ticketBalance shared.Tickets) error {
	stats, err := r.statsRepo.WithTx(tx).ListByPlayer(ctx, playerID)
	if err != nil {
		return err
	}

	clusterByEvent, err := r.clusterIndex(ctx, tx)
	if err != nil {
		return err
	}

	scoring := clusterBest(stats, clusterByEvent, func(s *rating.PlayerEventStats) shared.Elo { return s.ScoringElo })
	raw := clusterBest(stats, clusterByEvent, func(s *rating.PlayerEventStats) shared.Elo { return s.RawElo })

	overallScoring := r.agg.OverallElo(scoring)
	overallRaw := r.agg.OverallElo(raw)
	final := overallScoring.Add(ticketBalance.Int())

	return r.playerRepo.WithTx(tx).RefreshOverall(ctx, playerID, overallScoring, overallRaw, final)
}

// Refresh - вариант RefreshTx вне транзакции: читает баланс из строки
// игрока и пересчитывает агрегаты в собственной короткой транзакции.
func (r *OverallRefresher) Refresh(ctx context.Context, conn *postgres.Connection, playerID shared.PlayerID) error {
	return conn.WithTx(ctx, postgres.DefaultTxOptions(), func(tx pgx.Tx) error {
		p, err := r.playerRepo.WithTx(tx).GetByID(ctx, playerID)
		if err != nil {
			return err
		}
		return r.RefreshTx(ctx, tx, playerID, p.TicketBalance)
	})
}

// clusterIndex строит отображение событие -> кластер по активным событиям.
func (r *OverallRefresher) clusterIndex(ctx context.Context, tx pgx.Tx) (map[shared.EventID]string, error) {
	events, err := r.eventRepo.WithTx(tx).ListActive(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[shared.EventID]string, len(events))
	for _, ev := range events {
		idx[ev.ID] = ev.ClusterID
	}
	return idx, nil
}

// clusterBest сворачивает строки статистики в один рейтинг на кластер
// (максимум по событиям кластера). События вне индекса (деактивированные)
// в агрегацию не входят.
func clusterBest(stats []*rating.PlayerEventStats, clusterByEvent map[shared.EventID]string, value func(*rating.PlayerEventStats) shared.Elo) []shared.Elo {
	best := make(map[string]shared.Elo)
	for _, s := range stats {
		clusterID, ok := clusterByEvent[s.EventID]
		if !ok {
			continue
		}
		v := value(s)
		if cur, ok := best[clusterID]; !ok || v > cur {
			best[clusterID] = v
		}
	}
	out := make([]shared.Elo, 0, len(best))
	for _, v := range best {
		out = append(out, v)
	}
	return out
}

// eventScope - область рейтинга одного события для сброса кеша.
func eventScope(id shared.EventID) ranking.Scope {
	return ranking.Scope{Kind: ranking.ScopeEvent, EventID: id}
}

// outcomeFor выводит исход участника из расстановки всего матча:
// единоличное первое место - победа, поделённое ЛУЧШЕЕ место (или матч,
// где все поделили место) - ничья, всё остальное - поражение.
func outcomeFor(placement int, placements []int) player.Outcome {
	best := placements[0]
	bestCount := 0
	for _, p := range placements {
		if p < best {
			best = p
		}
	}
	for _, p := range placements {
		if p == best {
			bestCount++
		}
	}

	switch {
	case placement != best:
		return player.OutcomeLoss
	case bestCount == 1:
		return player.OutcomeWin
	default:
		return player.OutcomeDraw
	}
}
