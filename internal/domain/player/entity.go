// Package player содержит доменную модель игрока турнирного сообщества.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
// Игрок никогда не удаляется физически: при уходе из сообщества он
// помечается как "призрак" (ghost), чтобы история матчей оставалась целой.
package player

import (
	"errors"
	"strings"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Player представляет зарегистрированного участника турниров.
// Поля Final*/Overall* - кешированные агрегаты (materialized view):
// источником истины остаются строки PlayerEventStats.
type Player struct {
	// ID - внутренний идентификатор (UUID).
	ID shared.PlayerID

	// DiscordID - внешний стабильный идентификатор (Discord snowflake).
	DiscordID shared.DiscordID

	// DisplayName - отображаемое имя.
	DisplayName string

	// FinalScore - итоговый счёт (overall рейтинг + бонусы). Кеш.
	FinalScore shared.Elo

	// OverallScoringElo - взвешенный overall по scoring elo. Кеш.
	OverallScoringElo shared.Elo

	// OverallRawElo - взвешенный overall по raw elo. Кеш.
	OverallRawElo shared.Elo

	// TicketBalance - кешированный баланс билетов.
	// Источник истины - тикет-леджер; инвариант проверяется VerifyIntegrity.
	TicketBalance shared.Tickets

	// MatchesPlayed, Wins, Losses, Draws - суммарная статистика матчей.
	// Инвариант: Wins + Losses + Draws == MatchesPlayed.
	MatchesPlayed int
	Wins          int
	Losses        int
	Draws         int

	// Streak - текущая серия: положительная = победная, отрицательная = серия поражений.
	Streak shared.Streak

	// IsActive - активен ли игрок (деактивация вместо удаления).
	IsActive bool

	// IsGhost - игрок покинул сообщество, данные сохранены.
	// Призраки исключаются из рейтингов по умолчанию.
	IsGhost bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ошибки доменной модели игрока.
var (
	// ErrEmptyDisplayName - пустое отображаемое имя.
	ErrEmptyDisplayName = errors.New("display name cannot be empty")

	// ErrNameTooLong - имя длиннее 100 символов.
	ErrNameTooLong = errors.New("display name too long")

	// ErrTotalsMismatch - нарушен инвариант wins+losses+draws == matches_played.
	ErrTotalsMismatch = errors.New("match totals do not add up")
)

// NewPlayer создаёт нового игрока при первой регистрации.
func NewPlayer(id shared.PlayerID, discordID shared.DiscordID, displayName string) (*Player, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, ErrEmptyDisplayName
	}
	if len(name) > 100 {
		return nil, ErrNameTooLong
	}
	if !discordID.IsValid() {
		return nil, shared.ErrInvalidDiscordID
	}

	now := time.Now().UTC()
	return &Player{
		ID:          id,
		DiscordID:   discordID,
		DisplayName: name,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Validate проверяет инварианты игрока.
func (p *Player) Validate() error {
	if p.DisplayName == "" {
		return ErrEmptyDisplayName
	}
	if p.Wins+p.Losses+p.Draws != p.MatchesPlayed {
		return ErrTotalsMismatch
	}
	if p.MatchesPlayed < 0 || p.Wins < 0 || p.Losses < 0 || p.Draws < 0 {
		return shared.ErrNegativeValue
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH OUTCOME
// ══════════════════════════════════════════════════════════════════════════════

// Outcome - исход матча с точки зрения одного игрока.
type Outcome int

const (
	// OutcomeLoss - поражение.
	OutcomeLoss Outcome = iota
	// OutcomeWin - победа.
	OutcomeWin
	// OutcomeDraw - ничья.
	OutcomeDraw
)

// String возвращает строковое представление исхода.
func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeLoss:
		return "loss"
	case OutcomeDraw:
		return "draw"
	default:
		return "unknown"
	}
}

// ApplyOutcome учитывает завершённый матч в суммарной статистике и серии.
// Вызывается ровно один раз на матч - идемпотентность обеспечивает
// машина состояний матча, а не эта функция.
func (p *Player) ApplyOutcome(o Outcome) {
	p.MatchesPlayed++
	switch o {
	case OutcomeWin:
		p.Wins++
	case OutcomeLoss:
		p.Losses++
	case OutcomeDraw:
		p.Draws++
	}
	p.Streak = p.Streak.Extend(o == OutcomeWin, o == OutcomeDraw)
	p.UpdatedAt = time.Now().UTC()
}

// Deactivate деактивирует игрока (мягкое удаление).
func (p *Player) Deactivate() {
	p.IsActive = false
	p.UpdatedAt = time.Now().UTC()
}

// MarkGhost помечает игрока как покинувшего сообщество.
func (p *Player) MarkGhost() {
	p.IsGhost = true
	p.IsActive = false
	p.UpdatedAt = time.Now().UTC()
}

// Restore возвращает призрака в сообщество.
func (p *Player) Restore() {
	p.IsGhost = false
	p.IsActive = true
	p.UpdatedAt = time.Now().UTC()
}

// HasPlayed возвращает true, если у игрока есть хотя бы один учтённый матч.
// Игроки без матчей не попадают в общий рейтинг.
func (p *Player) HasPlayed() bool {
	return p.MatchesPlayed > 0
}

// RefreshOverall обновляет кешированные агрегаты после пересчёта.
func (p *Player) RefreshOverall(scoring, raw, final shared.Elo) {
	p.OverallScoringElo = scoring
	p.OverallRawElo = raw
	p.FinalScore = final
	p.UpdatedAt = time.Now().UTC()
}

// WinRate возвращает долю побед (0.0 - 1.0).
func (p *Player) WinRate() float64 {
	if p.MatchesPlayed == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.MatchesPlayed)
}
