package query

import (
	"context"
	"errors"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/event"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/player"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/ranking"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/rating"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
	redisx "github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE QUERY
// Профиль игрока: кешированные агрегаты, глобальный ранг, разбивка
// итогового счёта по уровням агрегации, статистика по событиям и
// последние изменения рейтинга.
// ══════════════════════════════════════════════════════════════════════════════

// GetProfileQuery содержит параметры запроса профиля.
type GetProfileQuery struct {
	// PlayerID - внутренний ID; либо он, либо DiscordID.
	PlayerID string

	// DiscordID - внешний ID (поиск при команде от пользователя Discord).
	DiscordID string

	// RecentLimit - сколько последних записей истории вернуть
	// (по умолчанию 10).
	RecentLimit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetProfileQuery) Validate() error {
	if q.PlayerID == "" && q.DiscordID == "" {
		return errors.New("get_profile: player_id or discord_id is required")
	}
	if q.RecentLimit <= 0 {
		q.RecentLimit = 10
	}
	if q.RecentLimit > 50 {
		q.RecentLimit = 50
	}
	return nil
}

// TierBreakdownDTO - вклад одного уровня агрегации в итоговый счёт.
type TierBreakdownDTO struct {
	Size         int     `json:"size"`
	Weight       float64 `json:"weight"`
	Average      float64 `json:"average"`
	Contribution float64 `json:"contribution"`
}

// EventStatsDTO - статистика игрока в одном событии.
type EventStatsDTO struct {
	EventID       string `json:"event_id"`
	ScoringElo    int    `json:"scoring_elo"`
	RawElo        int    `json:"raw_elo"`
	MatchesPlayed int    `json:"matches_played"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	Draws         int    `json:"draws"`

	// DisplayedElo - отображаемый рейтинг: для leaderboard-событий
	// смесь all-time нормализации и недельного среднего.
	DisplayedElo int `json:"displayed_elo"`
}

// RecentChangeDTO - запись истории рейтинга для профиля.
type RecentChangeDTO struct {
	EventID    string    `json:"event_id"`
	Source     string    `json:"source"`
	Delta      int       `json:"delta"`
	EloAfter   int       `json:"elo_after"`
	Outcome    string    `json:"outcome,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// GetProfileResult содержит профиль игрока.
type GetProfileResult struct {
	PlayerID    string `json:"player_id"`
	DiscordID   string `json:"discord_id"`
	DisplayName string `json:"display_name"`

	FinalScore        int    `json:"final_score"`
	OverallScoringElo int    `json:"overall_scoring_elo"`
	OverallRawElo     int    `json:"overall_raw_elo"`
	OverallRank       string `json:"overall_rank"`

	TicketBalance int    `json:"ticket_balance"`
	MatchesPlayed int    `json:"matches_played"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	Draws         int    `json:"draws"`
	WinRate       float64 `json:"win_rate"`
	Streak        string `json:"streak"`

	IsActive bool `json:"is_active"`
	IsGhost  bool `json:"is_ghost"`

	Breakdown  []TierBreakdownDTO `json:"breakdown"`
	EventStats []EventStatsDTO    `json:"event_stats"`
	Recent     []RecentChangeDTO  `json:"recent"`

	GeneratedAt time.Time `json:"generated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetProfileHandler обрабатывает GetProfileQuery.
type GetProfileHandler struct {
	playerRepo  player.Repository
	statsRepo   rating.StatsRepository
	historyRepo rating.HistoryRepository
	rankingRepo ranking.Repository
	eventRepo   event.Repository
	agg         *rating.Aggregator
	playerCache *redisx.PlayerCache

	// weeklyBlend - вес недельного среднего в отображаемом рейтинге.
	weeklyBlend float64
}

// NewGetProfileHandler создаёт обработчик запроса профиля.
func NewGetProfileHandler(
	playerRepo player.Repository,
	statsRepo rating.StatsRepository,
	historyRepo rating.HistoryRepository,
	rankingRepo ranking.Repository,
	eventRepo event.Repository,
	agg *rating.Aggregator,
	playerCache *redisx.PlayerCache,
	weeklyBlend float64,
) *GetProfileHandler {
	return &GetProfileHandler{
		playerRepo:  playerRepo,
		statsRepo:   statsRepo,
		historyRepo: historyRepo,
		rankingRepo: rankingRepo,
		eventRepo:   eventRepo,
		agg:         agg,
		playerCache: playerCache,
		weeklyBlend: weeklyBlend,
	}
}

// Handle выполняет запрос профиля.
func (h *GetProfileHandler) Handle(ctx context.Context, q GetProfileQuery) (*GetProfileResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetProfile", shared.ErrValidation, err.Error(), err)
	}

	p, err := h.resolvePlayer(ctx, q)
	if err != nil {
		return nil, err
	}

	stats, err := h.statsRepo.ListByPlayer(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	rank, err := h.rankingRepo.RankOf(ctx, ranking.Scope{Kind: ranking.ScopeOverall}, ranking.SortByOverall, p.ID)
	if err != nil {
		return nil, err
	}

	recent, err := h.historyRepo.List(ctx, rating.HistoryQuery{PlayerID: p.ID, Limit: q.RecentLimit})
	if err != nil {
		return nil, err
	}

	result := &GetProfileResult{
		PlayerID:          p.ID.String(),
		DiscordID:         p.DiscordID.String(),
		DisplayName:       p.DisplayName,
		FinalScore:        p.FinalScore.Int(),
		OverallScoringElo: p.OverallScoringElo.Int(),
		OverallRawElo:     p.OverallRawElo.Int(),
		OverallRank:       rank.String(),
		TicketBalance:     p.TicketBalance.Int(),
		MatchesPlayed:     p.MatchesPlayed,
		Wins:              p.Wins,
		Losses:            p.Losses,
		Draws:             p.Draws,
		WinRate:           p.WinRate(),
		Streak:            p.Streak.String(),
		IsActive:          p.IsActive,
		IsGhost:           p.IsGhost,
		GeneratedAt:       time.Now().UTC(),
	}

	elos := make([]shared.Elo, 0, len(stats))
	for _, s := range stats {
		elos = append(elos, s.ScoringElo)

		dto := EventStatsDTO{
			EventID:       s.EventID.String(),
			ScoringElo:    s.ScoringElo.Int(),
			RawElo:        s.RawElo.Int(),
			MatchesPlayed: s.MatchesPlayed,
			Wins:          s.Wins,
			Losses:        s.Losses,
			Draws:         s.Draws,
			DisplayedElo:  s.ScoringElo.Int(),
		}
		if s.WeeksParticipated > 0 {
			dto.DisplayedElo = s.DisplayedLeaderboardElo(h.weeklyBlend).Int()
		}
		result.EventStats = append(result.EventStats, dto)
	}

	for _, b := range h.agg.Explain(elos) {
		result.Breakdown = append(result.Breakdown, TierBreakdownDTO{
			Size:         b.Tier.Size,
			Weight:       b.Tier.Weight,
			Average:      b.Average,
			Contribution: b.Contrib,
		})
	}

	for _, e := range recent {
		result.Recent = append(result.Recent, RecentChangeDTO{
			EventID:    e.EventID.String(),
			Source:     string(e.Source),
			Delta:      e.Delta,
			EloAfter:   e.EloAfter.Int(),
			Outcome:    e.Outcome,
			OccurredAt: e.OccurredAt,
		})
	}

	return result, nil
}

// resolvePlayer находит игрока по внутреннему или Discord ID,
// используя кеш профилей при поиске по внутреннему ID.
func (h *GetProfileHandler) resolvePlayer(ctx context.Context, q GetProfileQuery) (*player.Player, error) {
	if q.PlayerID != "" {
		playerID, err := shared.NewPlayerID(q.PlayerID)
		if err != nil {
			return nil, err
		}
		if h.playerCache != nil {
			if p, err := h.playerCache.Get(ctx, playerID); err == nil {
				return p, nil
			}
		}
		p, err := h.playerRepo.GetByID(ctx, playerID)
		if err != nil {
			return nil, err
		}
		if h.playerCache != nil {
			_ = h.playerCache.Set(ctx, p, 0)
		}
		return p, nil
	}

	discordID, err := shared.NewDiscordID(q.DiscordID)
	if err != nil {
		return nil, err
	}
	return h.playerRepo.GetByDiscordID(ctx, discordID)
}
