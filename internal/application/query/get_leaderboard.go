// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/arena-hub/arena-tournament-hub/config"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/ranking"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
	redisx "github.com/arena-hub/arena-tournament-hub/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Страница рейтинга области (overall / кластер / событие) по выбранному
// ключу сортировки. Страницы кешируются в Redis коротким TTL; изменения
// позиций считаются против среза рангов прошлого показа.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса рейтинга.
type GetLeaderboardQuery struct {
	// Scope - область: "overall" (по умолчанию), "cluster", "event".
	Scope string

	// ClusterID - обязателен для области "cluster".
	ClusterID string

	// EventID - обязателен для области "event".
	EventID string

	// SortKey - ключ сортировки; пусто = overall-счёт.
	SortKey string

	// Page - номер страницы, с 1.
	Page int

	// PageSize - размер страницы (по умолчанию 20, максимум 100).
	PageSize int

	// IncludeGhosts - включать покинувших сообщество.
	IncludeGhosts bool

	// RequesterID - Discord ID запрашивающего (оценка фич-флагов).
	RequesterID int64
}

// Validate проверяет и нормализует параметры запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	if q.Scope == "" {
		q.Scope = string(ranking.ScopeOverall)
	}
	if q.SortKey == "" {
		q.SortKey = string(ranking.SortByOverall)
	}
	if !ranking.SortKey(q.SortKey).IsValid() {
		return errors.New("get_leaderboard: unknown sort key")
	}
	return nil
}

// scope собирает доменную область из сырых параметров.
func (q *GetLeaderboardQuery) scope() ranking.Scope {
	return ranking.Scope{
		Kind:      ranking.ScopeKind(q.Scope),
		ClusterID: q.ClusterID,
		EventID:   shared.EventID(q.EventID),
	}
}

// LeaderboardRowDTO - строка рейтинга для отображения.
type LeaderboardRowDTO struct {
	Rank          int    `json:"rank"`
	PlayerID      string `json:"player_id"`
	DisplayName   string `json:"display_name"`
	Value         int    `json:"value"`
	MatchesPlayed int    `json:"matches_played"`
	Streak        string `json:"streak"`
	IsGhost       bool   `json:"is_ghost,omitempty"`

	// RankChange - изменение позиции с прошлого среза ("+2", "-1", "±0").
	RankChange string `json:"rank_change,omitempty"`

	// RankDirection - "up", "down", "stable" или "new".
	RankDirection string `json:"rank_direction,omitempty"`
}

// GetLeaderboardResult содержит страницу рейтинга.
type GetLeaderboardResult struct {
	Entries []LeaderboardRowDTO `json:"entries"`

	Page         int `json:"page"`
	PageSize     int `json:"page_size"`
	TotalPlayers int `json:"total_players"`
	TotalPages   int `json:"total_pages"`

	HasNext bool `json:"has_next"`

	// FromCache - отдана ли страница из кеша.
	FromCache bool `json:"from_cache"`

	GeneratedAt time.Time `json:"generated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardHandler обрабатывает GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	rankingRepo ranking.Repository
	lbCache     *redisx.LeaderboardCache
	flags       *config.FeatureFlags
}

// NewGetLeaderboardHandler создаёт обработчик запроса рейтинга.
func NewGetLeaderboardHandler(
	rankingRepo ranking.Repository,
	lbCache *redisx.LeaderboardCache,
	flags *config.FeatureFlags,
) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		rankingRepo: rankingRepo,
		lbCache:     lbCache,
		flags:       flags,
	}
}

// Handle выполняет запрос страницы рейтинга.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, err.Error(), err)
	}

	scope := q.scope()
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	if q.IncludeGhosts && !h.featureOn(config.FeatureLeaderboardGhosts, q.RequesterID) {
		q.IncludeGhosts = false
	}

	sortKey := ranking.SortKey(q.SortKey)
	useCache := h.lbCache != nil && !q.IncludeGhosts &&
		h.featureOn(config.FeatureLeaderboardCaching, q.RequesterID)

	if useCache {
		if page, err := h.lbCache.GetPage(ctx, scope, sortKey, q.Page, q.PageSize); err == nil {
			return h.toResult(page, true), nil
		}
	}

	page, err := h.rankingRepo.RankedPage(ctx, scope, sortKey, q.Page, q.PageSize,
		ranking.Options{IncludeGhosts: q.IncludeGhosts})
	if err != nil {
		return nil, err
	}

	if h.lbCache != nil && h.featureOn(config.FeatureLeaderboardRankChange, q.RequesterID) {
		// Сначала изменения против прошлого среза, потом запись
		// текущего среза - иначе каждая страница была бы "стабильной".
		_ = h.lbCache.AttachRankChanges(ctx, scope, page)
		_ = h.lbCache.RecordRanks(ctx, scope, page.Entries)
	}

	if useCache {
		_ = h.lbCache.SetPage(ctx, scope, sortKey, page)
	}

	return h.toResult(page, false), nil
}

func (h *GetLeaderboardHandler) featureOn(name string, requesterID int64) bool {
	if h.flags == nil {
		return true
	}
	return h.flags.IsEnabled(name, &config.FeatureContext{UserID: requesterID})
}

func (h *GetLeaderboardHandler) toResult(page *ranking.Page, fromCache bool) *GetLeaderboardResult {
	entries := make([]LeaderboardRowDTO, 0, len(page.Entries))
	for _, e := range page.Entries {
		row := LeaderboardRowDTO{
			Rank:          e.Rank.Int(),
			PlayerID:      e.PlayerID.String(),
			DisplayName:   e.DisplayName,
			Value:         e.Value,
			MatchesPlayed: e.MatchesPlayed,
			Streak:        e.Streak.String(),
			IsGhost:       e.IsGhost,
		}
		if e.RankChange != 0 || e.Rank.IsValid() {
			row.RankChange = e.RankChange.String()
			row.RankDirection = string(e.RankChange.Direction())
		}
		entries = append(entries, row)
	}

	return &GetLeaderboardResult{
		Entries:      entries,
		Page:         page.Page,
		PageSize:     page.PageSize,
		TotalPlayers: page.TotalPlayers,
		TotalPages:   page.TotalPages,
		HasNext:      page.HasNext(),
		FromCache:    fromCache,
		GeneratedAt:  page.GeneratedAt,
	}
}
