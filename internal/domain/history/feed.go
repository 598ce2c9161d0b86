// Package history собирает единую обратно-хронологическую ленту из двух
// структурно разных источников: результатов матчей и заявок очков
// leaderboard-событий.
package history

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE ORDERING
// У источников независимые первичные ключи, поэтому порядок ленты -
// составной ключ (timestamp, source_type, id): совпадения по времени
// разрешаются типом источника, затем идентификатором. Один и тот же
// порядок в обе стороны - строгий тотальный, без коллизий.
// ══════════════════════════════════════════════════════════════════════════════

// SourceType - тип источника записи ленты.
type SourceType string

const (
	// SourceMatch - завершённый матч.
	SourceMatch SourceType = "match"

	// SourceSubmission - заявка очка leaderboard-события.
	SourceSubmission SourceType = "submission"
)

// Scope - область выборки ленты.
type Scope struct {
	// PlayerID - лента игрока (может сочетаться с ClusterID/EventID).
	PlayerID shared.PlayerID

	// ClusterID - лента кластера.
	ClusterID string

	// EventID - лента события.
	EventID shared.EventID
}

// ParticipantDetail - строка участника для матчевых записей ленты.
type ParticipantDetail struct {
	PlayerID    shared.PlayerID
	DisplayName string
	Placement   int
	Delta       int
}

// Entry - запись единой ленты.
type Entry struct {
	// ID - первичный ключ в таблице источника.
	ID string

	Source SourceType

	PlayerID shared.PlayerID
	EventID  shared.EventID

	// EventName - имя события для отображения.
	EventName string

	// Delta - изменение рейтинга записи.
	Delta int

	// RawScore - сырое очко (только заявки).
	RawScore float64

	// Participants - участники матча (только матчи); загружаются
	// одним запросом на всю страницу.
	Participants []ParticipantDetail

	OccurredAt time.Time
}

// Key возвращает составной ключ сортировки записи.
func (e *Entry) Key() Cursor {
	return Cursor{
		OccurredAt: e.OccurredAt,
		Source:     e.Source,
		ID:         e.ID,
	}
}

// VerifyOrder проверяет, что страница идёт строго в порядке ленты.
// SQL-предикат и компаратор Before описывают один и тот же порядок;
// страница, нарушающая компаратор, означает дрейф одного из них.
func VerifyOrder(entries []Entry) error {
	for i := 1; i < len(entries); i++ {
		if !entries[i-1].Key().Before(entries[i].Key()) {
			return shared.ErrFeedOrder
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CURSOR
// Курсор - непрозрачный токен: base64 от JSON составного ключа
// последней отданной записи. "Следующая страница" означает "строго
// после этого ключа в установленном порядке".
// ══════════════════════════════════════════════════════════════════════════════

// Cursor - составной ключ позиции в ленте.
type Cursor struct {
	OccurredAt time.Time  `json:"t"`
	Source     SourceType `json:"s"`
	ID         string     `json:"id"`
}

// IsZero сообщает, пуст ли курсор (начало ленты).
func (c Cursor) IsZero() bool {
	return c.OccurredAt.IsZero() && c.Source == "" && c.ID == ""
}

// Before сравнивает ключи в порядке ленты: новые первыми, совпадения
// по времени разрешаются типом источника, затем идентификатором.
func (c Cursor) Before(other Cursor) bool {
	if !c.OccurredAt.Equal(other.OccurredAt) {
		return c.OccurredAt.After(other.OccurredAt)
	}
	if c.Source != other.Source {
		return c.Source < other.Source
	}
	return c.ID < other.ID
}

// Encode сериализует курсор в непрозрачный токен.
func (c Cursor) Encode() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// DecodeCursor разбирает токен курсора. Пустой токен - начало ленты.
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, shared.ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, shared.ErrInvalidCursor
	}
	return c, nil
}

// Page - страница ленты с курсором продолжения.
type Page struct {
	Entries []Entry

	// NextCursor - токен следующей страницы; пусто на последней.
	NextCursor string

	// HasMore - существует ли следующая страница.
	HasMore bool
}

// Repository определяет выборку ленты из хранилища.
type Repository interface {
	// List возвращает до limit+1 записей строго после after
	// (или с начала при нулевом after) в составном порядке.
	// Лишняя запись служит признаком следующей страницы и отрезается
	// вызывающим. Детали участников матчевых записей загружаются
	// одним запросом на страницу.
	List(ctx context.Context, scope Scope, after Cursor, limit int) ([]Entry, error)
}
