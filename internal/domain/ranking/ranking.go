// Package ranking содержит доменную модель ранжирования игроков:
// плотные ранги (ничьи делят номер), области видимости и ключи
// сортировки. Само ранжирование выполняется хранилищем; здесь -
// контракты и чистые типы страниц.
package ranking

import (
	"fmt"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCOPE
// ══════════════════════════════════════════════════════════════════════════════

// ScopeKind - вид области ранжирования.
type ScopeKind string

const (
	// ScopeOverall - глобальный рейтинг по кешированным агрегатам.
	// Игроки без единого сыгранного матча исключаются.
	ScopeOverall ScopeKind = "overall"

	// ScopeCluster - рейтинг внутри кластера.
	ScopeCluster ScopeKind = "cluster"

	// ScopeEvent - рейтинг внутри события.
	ScopeEvent ScopeKind = "event"
)

// Scope - область ранжирования.
type Scope struct {
	Kind ScopeKind

	// ClusterID - обязателен для ScopeCluster.
	ClusterID string

	// EventID - обязателен для ScopeEvent.
	EventID shared.EventID
}

// Validate проверяет согласованность области.
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeOverall:
		return nil
	case ScopeCluster:
		if s.ClusterID == "" {
			return shared.ErrInvalidInput
		}
		return nil
	case ScopeEvent:
		if s.EventID.IsEmpty() {
			return shared.ErrInvalidInput
		}
		return nil
	}
	return shared.ErrInvalidInput
}

// ══════════════════════════════════════════════════════════════════════════════
// SORT KEY
// Альтернативные ключи идут через тот же механизм ранжирования,
// не через отдельный путь кода. Хранилище сопоставляет ключ колонке
// по белому списку.
// ══════════════════════════════════════════════════════════════════════════════

// SortKey - ключ сортировки рейтинга.
type SortKey string

const (
	// SortByOverall - итоговый счёт (по умолчанию).
	SortByOverall SortKey = "overall"

	// SortByScoringElo - scoring elo (в областях события/кластера)
	// или кешированный overall scoring elo (глобально).
	SortByScoringElo SortKey = "scoring_elo"

	// SortByRawElo - raw elo без нижней границы.
	SortByRawElo SortKey = "raw_elo"

	// SortByTickets - баланс билетов (только глобально).
	SortByTickets SortKey = "tickets"
)

// IsValid проверяет известность ключа.
func (k SortKey) IsValid() bool {
	switch k {
	case SortByOverall, SortByScoringElo, SortByRawElo, SortByTickets:
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKED PLAYER & PAGE
// ══════════════════════════════════════════════════════════════════════════════

// RankedPlayer - строка рейтинга.
type RankedPlayer struct {
	// Rank - плотный ранг: тройная ничья на вершине даёт три первых
	// места, следующее значение получает ранг 4.
	Rank shared.Rank

	PlayerID    shared.PlayerID
	DisplayName string

	// Value - значение выбранного ключа сортировки.
	Value int

	MatchesPlayed int
	Streak        shared.Streak

	// IsGhost - включается только при явном IncludeGhosts.
	IsGhost bool

	// RankChange - изменение позиции с прошлого среза; 0 без данных.
	RankChange RankChange
}

// Page - страница рейтинга с точными итогами.
type Page struct {
	Entries []RankedPlayer

	// Page - номер страницы, с 1.
	Page int

	// PageSize - размер страницы.
	PageSize int

	// TotalPlayers/TotalPages - точные значения, не оценки.
	TotalPlayers int
	TotalPages   int

	// GeneratedAt - момент расчёта страницы (для кеша).
	GeneratedAt time.Time
}

// HasNext сообщает, существует ли следующая страница.
func (p Page) HasNext() bool {
	return p.Page < p.TotalPages
}

// TotalPagesFor возвращает точное число страниц для count записей.
func TotalPagesFor(count, pageSize int) int {
	if pageSize <= 0 || count <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}

// ══════════════════════════════════════════════════════════════════════════════
// RANK CHANGE
// ══════════════════════════════════════════════════════════════════════════════

// RankChange - изменение позиции: положительное = подъём.
type RankChange int

// RankDirection - направление изменения позиции.
type RankDirection string

const (
	// RankDirectionUp - игрок поднялся.
	RankDirectionUp RankDirection = "up"
	// RankDirectionDown - игрок опустился.
	RankDirectionDown RankDirection = "down"
	// RankDirectionStable - позиция не изменилась.
	RankDirectionStable RankDirection = "stable"
	// RankDirectionNew - игрок впервые попал в рейтинг.
	RankDirectionNew RankDirection = "new"
)

// Direction возвращает направление изменения.
func (rc RankChange) Direction() RankDirection {
	switch {
	case rc > 0:
		return RankDirectionUp
	case rc < 0:
		return RankDirectionDown
	default:
		return RankDirectionStable
	}
}

// Abs возвращает модуль изменения.
func (rc RankChange) Abs() int {
	if rc < 0 {
		return int(-rc)
	}
	return int(rc)
}

// String возвращает строковое представление изменения.
func (rc RankChange) String() string {
	switch {
	case rc > 0:
		return fmt.Sprintf("+%d", int(rc))
	case rc < 0:
		return fmt.Sprintf("%d", int(rc))
	default:
		return "±0"
	}
}

// Emoji возвращает эмодзи направления для отображения в Discord.
func (d RankDirection) Emoji() string {
	switch d {
	case RankDirectionUp:
		return "🔼"
	case RankDirectionDown:
		return "🔽"
	case RankDirectionNew:
		return "🆕"
	default:
		return "➖"
	}
}

// ChangeFromPrevious вычисляет изменение позиции против прошлого среза.
// Прошлый ранг 0 означает нового участника.
func ChangeFromPrevious(current, previous shared.Rank) RankChange {
	if previous.IsUnranked() {
		return 0
	}
	return RankChange(previous.Int() - current.Int())
}
