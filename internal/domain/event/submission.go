package event

import (
	"context"
	"time"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE SUBMISSION
// Заявка сырого очка в leaderboard-событие. Сырые очки копятся в
// популяции и нормализуются Z-score-ом; сама заявка неизменяема.
// ══════════════════════════════════════════════════════════════════════════════

// Submission - заявка очка игрока в leaderboard-событие.
type Submission struct {
	ID       string
	PlayerID shared.PlayerID
	EventID  shared.EventID

	// RawScore - сырое очко (время, счёт, дистанция) в единицах события.
	RawScore float64

	// NormalizedElo - рейтинг после нормализации против популяции
	// на момент перерасчёта.
	NormalizedElo shared.Elo

	SubmittedAt time.Time
}

// NewSubmission создаёт заявку очка.
func NewSubmission(id string, playerID shared.PlayerID, eventID shared.EventID, rawScore float64) *Submission {
	return &Submission{
		ID:          id,
		PlayerID:    playerID,
		EventID:     eventID,
		RawScore:    rawScore,
		SubmittedAt: time.Now().UTC(),
	}
}

// SubmissionRepository определяет операции над заявками очков.
type SubmissionRepository interface {
	// Create сохраняет заявку.
	Create(ctx context.Context, s *Submission) error

	// ScoresByEvent возвращает все сырые очки события (вся популяция
	// для полного пересчёта).
	ScoresByEvent(ctx context.Context, eventID shared.EventID) ([]float64, error)

	// ListByEvent возвращает все заявки события в порядке подачи.
	// Используется полным пересчётом для записи новых рейтингов.
	ListByEvent(ctx context.Context, eventID shared.EventID) ([]*Submission, error)

	// ScoresByEventSince возвращает сырые очки события, поданные
	// в окне [since, until). Используется недельной обработкой.
	ScoresByEventSince(ctx context.Context, eventID shared.EventID, since, until time.Time) (map[shared.PlayerID][]float64, error)

	// BestByPlayer возвращает лучшую заявку игрока в событии с учётом
	// направления сравнения. Возвращает ErrSubmissionNotFound, если
	// заявок нет.
	BestByPlayer(ctx context.Context, playerID shared.PlayerID, eventID shared.EventID, direction ScoreDirection) (*Submission, error)

	// UpdateNormalizedBatch записывает нормализованные рейтинги
	// набора заявок одним запросом после пересчёта.
	UpdateNormalizedBatch(ctx context.Context, ids []string, elos []shared.Elo) error
}
