// Package event содержит доменную модель соревновательных событий и кластеров.
// Кластер - тематическая группа событий (единица тиринга overall-рейтинга),
// событие - конкретная игра/режим с набором поддерживаемых типов подсчёта.
package event

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORING MODE
// Закрытое перечисление вместо свободных строк: валидация на границе.
// ══════════════════════════════════════════════════════════════════════════════

// ScoringMode определяет способ подсчёта результата события.
type ScoringMode string

const (
	// ScoringHeadToHead - дуэль 1 на 1.
	ScoringHeadToHead ScoringMode = "1v1"
	// ScoringFreeForAll - каждый сам за себя, N игроков.
	ScoringFreeForAll ScoringMode = "ffa"
	// ScoringTeam - командный матч.
	ScoringTeam ScoringMode = "team"
	// ScoringLeaderboard - табличный режим: сырые очки/время, Z-нормализация.
	ScoringLeaderboard ScoringMode = "leaderboard"
)

// ParseScoringMode валидирует строку в ScoringMode.
func ParseScoringMode(s string) (ScoringMode, error) {
	switch ScoringMode(strings.ToLower(strings.TrimSpace(s))) {
	case ScoringHeadToHead:
		return ScoringHeadToHead, nil
	case ScoringFreeForAll:
		return ScoringFreeForAll, nil
	case ScoringTeam:
		return ScoringTeam, nil
	case ScoringLeaderboard:
		return ScoringLeaderboard, nil
	default:
		return "", shared.ErrInvalidScoringMode
	}
}

// IsValid проверяет корректность режима.
func (m ScoringMode) IsValid() bool {
	_, err := ParseScoringMode(string(m))
	return err == nil
}

// UsesPlacements возвращает true для режимов с точечными матчами
// (в отличие от leaderboard, где результат - сырой счёт).
func (m ScoringMode) UsesPlacements() bool {
	return m == ScoringHeadToHead || m == ScoringFreeForAll || m == ScoringTeam
}

// String возвращает строковое представление режима.
func (m ScoringMode) String() string {
	return string(m)
}

// ScoreDirection - направление сравнения сырых очков в leaderboard-режиме.
type ScoreDirection string

const (
	// DirectionHigherBetter - больше очков = лучше.
	DirectionHigherBetter ScoreDirection = "higher"
	// DirectionLowerBetter - меньше = лучше (время круга и т.п.).
	DirectionLowerBetter ScoreDirection = "lower"
)

// IsValid проверяет корректность направления.
func (d ScoreDirection) IsValid() bool {
	return d == DirectionHigherBetter || d == DirectionLowerBetter
}

// ══════════════════════════════════════════════════════════════════════════════
// CLUSTER
// ══════════════════════════════════════════════════════════════════════════════

// Cluster - тематическая группа событий. Номер уникален.
type Cluster struct {
	ID       string
	Number   int
	Name     string
	IsActive bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ошибки доменной модели событий.
var (
	// ErrEmptyName - пустое имя кластера или события.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrInvalidClusterNumber - номер кластера должен быть положительным.
	ErrInvalidClusterNumber = errors.New("cluster number must be positive")

	// ErrInvalidParticipantBounds - некорректные границы числа участников.
	ErrInvalidParticipantBounds = errors.New("invalid participant bounds")

	// ErrNoScoringModes - событие без единого режима подсчёта.
	ErrNoScoringModes = errors.New("event must support at least one scoring mode")
)

// NewCluster создаёт кластер с валидацией.
func NewCluster(id string, number int, name string) (*Cluster, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if number <= 0 {
		return nil, ErrInvalidClusterNumber
	}

	now := time.Now().UTC()
	return &Cluster{
		ID:        id,
		Number:    number,
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT
// ══════════════════════════════════════════════════════════════════════════════

// Event - соревновательное событие внутри кластера.
// Инвариант: (ClusterID, Name) уникальны.
type Event struct {
	ID        shared.EventID
	ClusterID string
	Name      string

	// ScoringModes - поддерживаемые режимы подсчёта.
	ScoringModes []ScoringMode

	// Direction - направление сравнения для leaderboard-режима.
	Direction ScoreDirection

	// MinParticipants/MaxParticipants - границы размера матча.
	MinParticipants int
	MaxParticipants int

	// AllTimeStats - бегущие моменты популяции сырых очков (алгоритм Welford).
	// Используются только leaderboard-режимом.
	AllTimeStats RunningStats

	IsActive bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEvent создаёт событие с валидацией.
func NewEvent(id shared.EventID, clusterID, name string, modes []ScoringMode, direction ScoreDirection, minP, maxP int) (*Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if len(modes) == 0 {
		return nil, ErrNoScoringModes
	}
	for _, m := range modes {
		if !m.IsValid() {
			return nil, shared.ErrInvalidScoringMode
		}
	}
	if minP < 1 || maxP < minP {
		return nil, ErrInvalidParticipantBounds
	}
	if !direction.IsValid() {
		direction = DirectionHigherBetter
	}

	now := time.Now().UTC()
	return &Event{
		ID:              id,
		ClusterID:       clusterID,
		Name:            name,
		ScoringModes:    modes,
		Direction:       direction,
		MinParticipants: minP,
		MaxParticipants: maxP,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Supports проверяет, включён ли режим для события.
func (e *Event) Supports(mode ScoringMode) bool {
	for _, m := range e.ScoringModes {
		if m == mode {
			return true
		}
	}
	return false
}

// ValidateParticipantCount проверяет число участников матча.
func (e *Event) ValidateParticipantCount(n int) error {
	if n < e.MinParticipants || n > e.MaxParticipants {
		return shared.ErrParticipantCount
	}
	return nil
}

// Deactivate деактивирует событие.
func (e *Event) Deactivate() {
	e.IsActive = false
	e.UpdatedAt = time.Now().UTC()
}

// ══════════════════════════════════════════════════════════════════════════════
// RUNNING STATS (Welford)
// Онлайн-алгоритм Welford: численно устойчивые count/mean/M2 без хранения
// всей популяции. Повторный полный пересчёт через Reset+Push идемпотентен.
// ══════════════════════════════════════════════════════════════════════════════

// RunningStats хранит бегущие моменты популяции очков.
type RunningStats struct {
	// Count - количество наблюдений.
	Count int64

	// Mean - текущее среднее.
	Mean float64

	// M2 - сумма квадратов отклонений от среднего.
	M2 float64
}

// Push добавляет наблюдение.
func (s *RunningStats) Push(x float64) {
	s.Count++
	delta := x - s.Mean
	s.Mean += delta / float64(s.Count)
	delta2 := x - s.Mean
	s.M2 += delta * delta2
}

// Variance возвращает популяционную дисперсию.
func (s *RunningStats) Variance() float64 {
	if s.Count < 1 {
		return 0
	}
	return s.M2 / float64(s.Count)
}

// StdDev возвращает стандартное отклонение популяции.
// Популяция из одного наблюдения или нулевая дисперсия дают fallback 1.0:
// деления на ноль не бывает, единственный участник получает z = 0.
func (s *RunningStats) StdDev() float64 {
	if s.Count <= 1 {
		return 1.0
	}
	sd := math.Sqrt(s.Variance())
	if sd == 0 {
		return 1.0
	}
	return sd
}

// Reset обнуляет статистику перед полным пересчётом.
func (s *RunningStats) Reset() {
	s.Count = 0
	s.Mean = 0
	s.M2 = 0
}

// FromScores строит статистику по всей популяции заново.
func FromScores(scores []float64) RunningStats {
	var s RunningStats
	for _, x := range scores {
		s.Push(x)
	}
	return s
}
