package rating

import (
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/player"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER EVENT STATS
// Запись рейтинга игрока в конкретном событии - единица конкурентного
// контроля. Ровно одна строка на пару (игрок, событие); мутируется строго
// под блокировкой строки, одна мутация на завершённый матч.
// ══════════════════════════════════════════════════════════════════════════════

// PlayerEventStats - рейтинговая запись пары (игрок, событие).
type PlayerEventStats struct {
	ID       string
	PlayerID shared.PlayerID
	EventID  shared.EventID

	// RawElo - неограниченный рейтинг (может уйти ниже стартового).
	RawElo shared.Elo

	// ScoringElo - рейтинг для отображения и ранжирования:
	// raw elo, ограниченный снизу стартовым значением.
	ScoringElo shared.Elo

	// MatchesPlayed/Wins/Losses/Draws - статистика внутри события.
	MatchesPlayed int
	Wins          int
	Losses        int
	Draws         int

	// WeeklyEloAverage - бегущее среднее недельных рейтингов
	// (leaderboard-события). Обновляется еженедельной обработкой.
	WeeklyEloAverage float64

	// WeeksParticipated - число недель, учтённых в бегущем среднем.
	WeeksParticipated int

	// AllTimeElo - нормализованный рейтинг по всей популяции
	// (leaderboard-события); для матчевых событий не используется.
	AllTimeElo shared.Elo

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPlayerEventStats создаёт запись с посевом стартового рейтинга.
// Вызывается лениво при первом участии.
func NewPlayerEventStats(id string, playerID shared.PlayerID, eventID shared.EventID, starting shared.Elo) *PlayerEventStats {
	now := time.Now().UTC()
	return &PlayerEventStats{
		ID:         id,
		PlayerID:   playerID,
		EventID:    eventID,
		RawElo:     starting,
		ScoringElo: starting,
		AllTimeElo: starting,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ApplyDelta применяет дельту рейтинга и исход матча.
// ScoringElo выводится заново: raw, ограниченный стартовым значением.
func (s *PlayerEventStats) ApplyDelta(delta int, outcome player.Outcome, starting shared.Elo) {
	s.RawElo = s.RawElo.Add(delta)
	s.ScoringElo = s.RawElo.Floor(starting)

	s.MatchesPlayed++
	switch outcome {
	case player.OutcomeWin:
		s.Wins++
	case player.OutcomeLoss:
		s.Losses++
	case player.OutcomeDraw:
		s.Draws++
	}
	s.UpdatedAt = time.Now().UTC()
}

// FoldWeek добавляет недельный рейтинг в бегущее среднее:
// new_avg = (old_avg * weeks + this_week) / (weeks + 1).
// Неделя без участия передаётся нулём - штраф за неактивность,
// а не пропуск.
func (s *PlayerEventStats) FoldWeek(weekElo float64) {
	s.WeeklyEloAverage = (s.WeeklyEloAverage*float64(s.WeeksParticipated) + weekElo) /
		float64(s.WeeksParticipated+1)
	s.WeeksParticipated++
	s.UpdatedAt = time.Now().UTC()
}

// DisplayedLeaderboardElo - итоговый рейтинг leaderboard-события:
// фиксированная 50/50 смесь all-time нормализации и недельного среднего.
func (s *PlayerEventStats) DisplayedLeaderboardElo(blend float64) shared.Elo {
	if s.WeeksParticipated == 0 {
		return s.AllTimeElo
	}
	mixed := float64(s.AllTimeElo)*(1-blend) + s.WeeklyEloAverage*blend
	return shared.Elo(int(mixed + 0.5))
}

// Validate проверяет инварианты записи.
func (s *PlayerEventStats) Validate() error {
	if s.Wins+s.Losses+s.Draws != s.MatchesPlayed {
		return player.ErrTotalsMismatch
	}
	if s.WeeksParticipated < 0 {
		return shared.ErrNegativeValue
	}
	return nil
}
