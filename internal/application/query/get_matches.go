package query

import (
	"context"
	"errors"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/match"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH QUERIES
// Просмотр матча и списка незавершённых матчей игрока.
// ══════════════════════════════════════════════════════════════════════════════

// MatchParticipantDTO - участник матча.
type MatchParticipantDTO struct {
	PlayerID  string `json:"player_id"`
	TeamID    string `json:"team_id,omitempty"`
	Placement int    `json:"placement,omitempty"`
	Delta     int    `json:"delta,omitempty"`
}

// ConfirmationDTO - состояние подтверждения участника.
type ConfirmationDTO struct {
	PlayerID    string     `json:"player_id"`
	Status      string     `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// MatchDTO - матч для отображения.
type MatchDTO struct {
	MatchID string `json:"match_id"`
	EventID string `json:"event_id"`
	Mode    string `json:"mode"`
	State   string `json:"state"`

	Participants  []MatchParticipantDTO `json:"participants"`
	Confirmations []ConfirmationDTO     `json:"confirmations,omitempty"`

	// ProposalExpiresAt - срок активного предложения (если есть).
	ProposalExpiresAt *time.Time `json:"proposal_expires_at,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GetMatchQuery - запрос одного матча.
type GetMatchQuery struct {
	MatchID string
}

// ListActiveMatchesQuery - запрос незавершённых матчей игрока.
type ListActiveMatchesQuery struct {
	PlayerID string
}

// GetMatchHandler обрабатывает запросы матчей.
type GetMatchHandler struct {
	matchRepo match.Repository
}

// NewGetMatchHandler создаёт обработчик запросов матчей.
func NewGetMatchHandler(matchRepo match.Repository) *GetMatchHandler {
	return &GetMatchHandler{matchRepo: matchRepo}
}

// Handle возвращает матч по ID.
func (h *GetMatchHandler) Handle(ctx context.Context, q GetMatchQuery) (*MatchDTO, error) {
	if q.MatchID == "" {
		return nil, shared.WrapError("query", "GetMatch", shared.ErrValidation, "match_id is required", errors.New("empty match_id"))
	}

	m, err := h.matchRepo.GetByID(ctx, shared.MatchID(q.MatchID))
	if err != nil {
		return nil, err
	}
	return toMatchDTO(m), nil
}

// ListActive возвращает незавершённые матчи игрока.
func (h *GetMatchHandler) ListActive(ctx context.Context, q ListActiveMatchesQuery) ([]*MatchDTO, error) {
	if q.PlayerID == "" {
		return nil, shared.WrapError("query", "ListActiveMatches", shared.ErrValidation, "player_id is required", errors.New("empty player_id"))
	}

	matches, err := h.matchRepo.ListActiveByPlayer(ctx, shared.PlayerID(q.PlayerID))
	if err != nil {
		return nil, err
	}

	out := make([]*MatchDTO, 0, len(matches))
	for _, m := range matches {
		out = append(out, toMatchDTO(m))
	}
	return out, nil
}

func toMatchDTO(m *match.Match) *MatchDTO {
	dto := &MatchDTO{
		MatchID:     m.ID.String(),
		EventID:     m.EventID.String(),
		Mode:        m.Mode,
		State:       string(m.State),
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}

	for _, p := range m.Participants {
		dto.Participants = append(dto.Participants, MatchParticipantDTO{
			PlayerID:  p.PlayerID.String(),
			TeamID:    p.TeamID,
			Placement: p.Placement,
			Delta:     p.Delta,
		})
	}

	if m.Proposal != nil {
		expires := m.Proposal.ExpiresAt
		dto.ProposalExpiresAt = &expires
	}
	for _, c := range m.Confirmations {
		conf := ConfirmationDTO{
			PlayerID: c.PlayerID.String(),
			Status:   string(c.Status),
			Reason:   c.Reason,
		}
		if !c.RespondedAt.IsZero() {
			responded := c.RespondedAt
			conf.RespondedAt = &responded
		}
		dto.Confirmations = append(dto.Confirmations, conf)
	}

	return dto
}
