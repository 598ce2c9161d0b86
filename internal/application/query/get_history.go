package query

import (
	"context"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/history"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET HISTORY QUERY
// Единая лента активности: результаты матчей и заявки очков в одном
// обратно-хронологическом потоке. Пагинация курсорная: непрозрачный
// токен кодирует составной ключ последней отданной записи.
// ══════════════════════════════════════════════════════════════════════════════

// GetHistoryQuery содержит параметры запроса ленты.
type GetHistoryQuery struct {
	// PlayerID - лента игрока (необязательно).
	PlayerID string

	// ClusterID - лента кластера (необязательно).
	ClusterID string

	// EventID - лента события (необязательно).
	EventID string

	// Cursor - токен продолжения; пусто = начало ленты.
	Cursor string

	// Limit - размер страницы (по умолчанию 20, максимум 100).
	Limit int
}

// Validate проверяет и нормализует параметры запроса.
func (q *GetHistoryQuery) Validate() error {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// FeedParticipantDTO - участник матча в записи ленты.
type FeedParticipantDTO struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Placement   int    `json:"placement"`
	Delta       int    `json:"delta"`
}

// FeedEntryDTO - запись ленты.
type FeedEntryDTO struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	PlayerID  string `json:"player_id"`
	EventID   string `json:"event_id"`
	EventName string `json:"event_name"`
	Delta     int    `json:"delta"`

	// RawScore - сырое очко (только заявки).
	RawScore float64 `json:"raw_score,omitempty"`

	Participants []FeedParticipantDTO `json:"participants,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// GetHistoryResult содержит страницу ленты.
type GetHistoryResult struct {
	Entries []FeedEntryDTO `json:"entries"`

	// NextCursor - токен следующей страницы; пусто на последней.
	NextCursor string `json:"next_cursor,omitempty"`

	HasMore bool `json:"has_more"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetHistoryHandler обрабатывает GetHistoryQuery.
type GetHistoryHandler struct {
	feedRepo history.Repository
}

// NewGetHistoryHandler создаёт обработчик запроса ленты.
func NewGetHistoryHandler(feedRepo history.Repository) *GetHistoryHandler {
	return &GetHistoryHandler{feedRepo: feedRepo}
}

// Handle выполняет запрос страницы ленты.
func (h *GetHistoryHandler) Handle(ctx context.Context, q GetHistoryQuery) (*GetHistoryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetHistory", shared.ErrValidation, err.Error(), err)
	}

	after, err := history.DecodeCursor(q.Cursor)
	if err != nil {
		return nil, err
	}

	scope := history.Scope{
		PlayerID:  shared.PlayerID(q.PlayerID),
		ClusterID: q.ClusterID,
		EventID:   shared.EventID(q.EventID),
	}

	// Запрашивается limit+1: лишняя запись - признак следующей
	// страницы, в ответ не входит.
	entries, err := h.feedRepo.List(ctx, scope, after, q.Limit)
	if err != nil {
		return nil, err
	}

	hasMore := len(entries) > q.Limit
	if hasMore {
		entries = entries[:q.Limit]
	}

	result := &GetHistoryResult{
		Entries: make([]FeedEntryDTO, 0, len(entries)),
		HasMore: hasMore,
	}

	for _, e := range entries {
		dto := FeedEntryDTO{
			ID:         e.ID,
			Source:     string(e.Source),
			PlayerID:   e.PlayerID.String(),
			EventID:    e.EventID.String(),
			EventName:  e.EventName,
			Delta:      e.Delta,
			RawScore:   e.RawScore,
			OccurredAt: e.OccurredAt,
		}
		for _, p := range e.Participants {
			dto.Participants = append(dto.Participants, FeedParticipantDTO{
				PlayerID:    p.PlayerID.String(),
				DisplayName: p.DisplayName,
				Placement:   p.Placement,
				Delta:       p.Delta,
			})
		}
		result.Entries = append(result.Entries, dto)
	}

	if hasMore && len(entries) > 0 {
		token, err := entries[len(entries)-1].Key().Encode()
		if err != nil {
			return nil, err
		}
		result.NextCursor = token
	}

	return result, nil
}
