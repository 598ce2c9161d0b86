package rating

import (
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// HistorySource - тип источника рейтинговой записи.
type HistorySource string

const (
	// SourceMatch - запись породил завершённый матч.
	SourceMatch HistorySource = "match"

	// SourceSubmission - запись породила заявка очков leaderboard-события.
	SourceSubmission HistorySource = "submission"

	// SourceRecompute - запись породил полный пересчёт события.
	SourceRecompute HistorySource = "recompute"

	// SourceAdmin - ручная корректировка администратором, без матча.
	SourceAdmin HistorySource = "admin"
)

// IsValid проверяет известность источника.
func (s HistorySource) IsValid() bool {
	switch s {
	case SourceMatch, SourceSubmission, SourceRecompute, SourceAdmin:
		return true
	}
	return false
}

// HistoryEntry - неизменяемая запись изменения рейтинга.
// Пишется ровно один раз в той же транзакции, что и мутация статистики.
type HistoryEntry struct {
	ID       string
	PlayerID shared.PlayerID
	EventID  shared.EventID

	// Source/SourceID - происхождение записи (матч или заявка).
	Source   HistorySource
	SourceID string

	// EloBefore/EloAfter/Delta - рейтинг до, после и сама дельта.
	EloBefore shared.Elo
	EloAfter  shared.Elo
	Delta     int

	// KFactor - использованный K-фактор (0 для заявок и корректировок).
	KFactor float64

	// OpponentID - соперник для матчей 1v1, пусто иначе.
	OpponentID shared.PlayerID

	// Outcome - исход для матчевых записей ("win"/"loss"/"draw"),
	// пусто для заявок очков.
	Outcome string

	OccurredAt time.Time
}

// NewHistoryEntry создаёт запись истории.
func NewHistoryEntry(id string, playerID shared.PlayerID, eventID shared.EventID, source HistorySource, sourceID string, before, after shared.Elo, kFactor float64, outcome string) (*HistoryEntry, error) {
	if !source.IsValid() {
		return nil, shared.ErrInvalidHistorySource
	}
	return &HistoryEntry{
		ID:         id,
		PlayerID:   playerID,
		EventID:    eventID,
		Source:     source,
		SourceID:   sourceID,
		EloBefore:  before,
		EloAfter:   after,
		Delta:      int(after) - int(before),
		KFactor:    kFactor,
		Outcome:    outcome,
		OccurredAt: time.Now().UTC(),
	}, nil
}
