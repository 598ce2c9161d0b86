// Package match реализует жизненный цикл матча: от создания через
// предложение результата и подтверждения участников до финализации.
// Завершение терминально: результат завершённого матча не меняется.
package match

import (
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/rating"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE MACHINE
// PENDING -> AWAITING_CONFIRMATION -> COMPLETED | CANCELLED
// Отказ любого участника или истечение предложения возвращают матч в
// PENDING с полным сбросом подтверждений. Терминальные состояния
// (COMPLETED, CANCELLED) не покидаются никогда.
// ══════════════════════════════════════════════════════════════════════════════

// State - состояние матча.
type State string

const (
	// StatePending - матч создан, участники зафиксированы, результата нет.
	StatePending State = "PENDING"

	// StateAwaitingConfirmation - результат предложен, ждём подтверждений.
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"

	// StateCompleted - терминальное: рейтинги применены.
	StateCompleted State = "COMPLETED"

	// StateCancelled - терминальное: матч отменён без рейтингового эффекта.
	StateCancelled State = "CANCELLED"
)

// IsTerminal сообщает, терминально ли состояние.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// ConfirmationStatus - статус подтверждения участника.
type ConfirmationStatus string

const (
	// ConfirmationPending - участник ещё не ответил.
	ConfirmationPending ConfirmationStatus = "pending"

	// ConfirmationAccepted - участник подтвердил результат.
	ConfirmationAccepted ConfirmationStatus = "accepted"

	// ConfirmationRejected - участник отклонил результат.
	ConfirmationRejected ConfirmationStatus = "rejected"
)

// Participant - строка участника матча.
type Participant struct {
	PlayerID shared.PlayerID

	// TeamID - необязательная принадлежность к команде (team-режим).
	TeamID string

	// Placement - место в матче (1 = лучший); 0 до финализации.
	Placement int

	// RatingBefore/RatingAfter/Delta - заполняются при финализации.
	RatingBefore shared.Elo
	RatingAfter  shared.Elo
	Delta        int
}

// Confirmation - запись подтверждения участника для активного предложения.
type Confirmation struct {
	PlayerID shared.PlayerID
	Status   ConfirmationStatus

	// Reason - причина отказа (пусто для принятий).
	Reason string

	RespondedAt time.Time
}

// Proposal - предложенный результат: расстановка и срок действия.
type Proposal struct {
	ProposerID shared.PlayerID

	// Placements - предложенные места в порядке Participants матча.
	Placements []int

	ProposedAt time.Time
	ExpiresAt  time.Time
}

// Expired сообщает, истекло ли предложение к моменту now.
func (p *Proposal) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Match - экземпляр соревнования N игроков в одном из режимов события.
type Match struct {
	ID      shared.MatchID
	EventID shared.EventID

	// Mode - режим подсчёта этого матча.
	Mode string

	State State

	Participants []Participant

	// Proposal - активное предложение результата; nil в PENDING.
	Proposal *Proposal

	// Confirmations - по одной записи на участника активного предложения.
	Confirmations []Confirmation

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// NewMatch создаёт матч в состоянии PENDING.
func NewMatch(id shared.MatchID, eventID shared.EventID, mode string, playerIDs []shared.PlayerID) (*Match, error) {
	if len(playerIDs) < 2 {
		return nil, shared.ErrParticipantCount
	}
	seen := make(map[shared.PlayerID]struct{}, len(playerIDs))
	participants := make([]Participant, 0, len(playerIDs))
	for _, pid := range playerIDs {
		if _, dup := seen[pid]; dup {
			return nil, shared.ErrDuplicateParticipant
		}
		seen[pid] = struct{}{}
		participants = append(participants, Participant{PlayerID: pid})
	}

	now := time.Now().UTC()
	return &Match{
		ID:           id,
		EventID:      eventID,
		Mode:         mode,
		State:        StatePending,
		Participants: participants,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// HasParticipant проверяет участие игрока в матче.
func (m *Match) HasParticipant(playerID shared.PlayerID) bool {
	for _, p := range m.Participants {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}

// Propose переводит матч PENDING -> AWAITING_CONFIRMATION.
// Предложивший подтверждается автоматически; остальные участники
// получают ожидающие записи подтверждения.
func (m *Match) Propose(proposerID shared.PlayerID, placements []int, ttl time.Duration, now time.Time) error {
	if m.State.IsTerminal() {
		return shared.ErrMatchTerminal
	}
	if m.State != StatePending {
		return shared.ErrProposalActive
	}
	if !m.HasParticipant(proposerID) {
		return shared.ErrNotParticipant
	}
	if len(placements) != len(m.Participants) {
		return shared.ErrInvalidPlacements
	}
	if err := rating.ValidatePlacements(placements); err != nil {
		return err
	}

	m.Proposal = &Proposal{
		ProposerID: proposerID,
		Placements: placements,
		ProposedAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	m.Confirmations = make([]Confirmation, 0, len(m.Participants))
	for _, p := range m.Participants {
		c := Confirmation{PlayerID: p.PlayerID, Status: ConfirmationPending}
		if p.PlayerID == proposerID {
			c.Status = ConfirmationAccepted
			c.RespondedAt = now
		}
		m.Confirmations = append(m.Confirmations, c)
	}
	m.State = StateAwaitingConfirmation
	m.UpdatedAt = now
	return nil
}

// Confirm фиксирует ответ участника на активное предложение.
// Отказ немедленно возвращает матч в PENDING и стирает предложение.
func (m *Match) Confirm(playerID shared.PlayerID, accept bool, reason string, now time.Time) error {
	if m.State.IsTerminal() {
		return shared.ErrMatchTerminal
	}
	if m.State != StateAwaitingConfirmation || m.Proposal == nil {
		return shared.ErrProposalNotFound
	}
	if m.Proposal.Expired(now) {
		m.revertToPending(now)
		return shared.ErrProposalExpired
	}
	if !m.HasParticipant(playerID) {
		return shared.ErrNotParticipant
	}

	if !accept {
		m.revertToPending(now)
		return nil
	}

	for i := range m.Confirmations {
		if m.Confirmations[i].PlayerID != playerID {
			continue
		}
		m.Confirmations[i].Status = ConfirmationAccepted
		m.Confirmations[i].Reason = ""
		m.Confirmations[i].RespondedAt = now
		m.UpdatedAt = now
		return nil
	}
	return shared.ErrNotParticipant
}

// AllConfirmed проверяет, что КАЖДЫЙ участник имеет принятое
// подтверждение. Проверка по записям, не по счётчику: участник,
// добавленный после создания предложения, блокирует финализацию.
func (m *Match) AllConfirmed() bool {
	if m.State != StateAwaitingConfirmation || m.Proposal == nil {
		return false
	}
	for _, p := range m.Participants {
		accepted := false
		for _, c := range m.Confirmations {
			if c.PlayerID == p.PlayerID && c.Status == ConfirmationAccepted {
				accepted = true
				break
			}
		}
		if !accepted {
			return false
		}
	}
	return true
}

// Finalize переводит матч в COMPLETED, применяя рассчитанные дельты
// к строкам участников. Повторная финализация - ErrMatchAlreadyComplete.
func (m *Match) Finalize(deltas []rating.StandingDelta, now time.Time) error {
	if m.State == StateCompleted {
		return shared.ErrMatchAlreadyComplete
	}
	if m.State == StateCancelled {
		return shared.ErrMatchTerminal
	}
	if m.State != StateAwaitingConfirmation || m.Proposal == nil {
		return shared.ErrProposalNotFound
	}
	if m.Proposal.Expired(now) {
		m.revertToPending(now)
		return shared.ErrProposalExpired
	}
	if !m.AllConfirmed() {
		return shared.ErrNotAllConfirmed
	}
	if len(deltas) != len(m.Participants) {
		return shared.ErrInvalidPlacements
	}

	byPlayer := make(map[shared.PlayerID]rating.StandingDelta, len(deltas))
	for _, d := range deltas {
		byPlayer[d.PlayerID] = d
	}
	for i := range m.Participants {
		d, ok := byPlayer[m.Participants[i].PlayerID]
		if !ok {
			return shared.ErrNotParticipant
		}
		m.Participants[i].Placement = d.Placement
		m.Participants[i].RatingBefore = d.OldRating
		m.Participants[i].RatingAfter = d.NewRating
		m.Participants[i].Delta = d.Delta
	}

	m.State = StateCompleted
	m.CompletedAt = &now
	m.UpdatedAt = now
	return nil
}

// Cancel переводит матч в CANCELLED. Только административное действие;
// из терминальных состояний недостижимо.
func (m *Match) Cancel(now time.Time) error {
	if m.State.IsTerminal() {
		return shared.ErrMatchTerminal
	}
	m.Proposal = nil
	m.Confirmations = nil
	m.State = StateCancelled
	m.UpdatedAt = now
	return nil
}

// ExpireProposal возвращает матч в PENDING, если активное предложение
// истекло к моменту now. Возвращает true при фактическом сбросе.
// Используется фоновой развёрткой; безопасно вызывать повторно.
func (m *Match) ExpireProposal(now time.Time) bool {
	if m.State != StateAwaitingConfirmation || m.Proposal == nil {
		return false
	}
	if !m.Proposal.Expired(now) {
		return false
	}
	m.revertToPending(now)
	return true
}

// Standings возвращает расстановку активного предложения как входные
// строки расчёта рейтинга. Порядок совпадает с Participants.
func (m *Match) Standings(ratings map[shared.PlayerID]shared.Elo, games map[shared.PlayerID]int) ([]rating.Standing, error) {
	if m.Proposal == nil {
		return nil, shared.ErrProposalNotFound
	}
	out := make([]rating.Standing, 0, len(m.Participants))
	for i, p := range m.Participants {
		r, ok := ratings[p.PlayerID]
		if !ok {
			return nil, shared.ErrStatsNotFound
		}
		out = append(out, rating.Standing{
			PlayerID:    p.PlayerID,
			Placement:   m.Proposal.Placements[i],
			Rating:      r,
			GamesPlayed: games[p.PlayerID],
		})
	}
	return out, nil
}

func (m *Match) revertToPending(now time.Time) {
	m.Proposal = nil
	m.Confirmations = nil
	m.State = StatePending
	m.UpdatedAt = now
}
