package rating

import (
	"math"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/event"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// Z-SCORE НОРМАЛИЗАЦИЯ
// Перевод сырых очков leaderboard-событий в общую elo-шкалу:
// z = (score - mean) / stddev, rating = base + z * elo_per_sigma.
// Так очки из разных событий (время, счёт, дистанция) становятся сравнимы.
// ══════════════════════════════════════════════════════════════════════════════

// Normalizer переводит сырые очки в elo через z-score относительно
// статистики популяции.
type Normalizer struct {
	baseElo     float64
	eloPerSigma float64
}

// NormalizerParams - параметры нормализации.
type NormalizerParams struct {
	// BaseElo - рейтинг ровно среднего результата.
	BaseElo float64

	// EloPerSigma - цена одного стандартного отклонения в пунктах elo.
	EloPerSigma float64
}

// DefaultNormalizerParams возвращает параметры по умолчанию: 1000 / 200.
func DefaultNormalizerParams() NormalizerParams {
	return NormalizerParams{
		BaseElo:     1000,
		EloPerSigma: 200,
	}
}

// NewNormalizer создаёт нормализатор.
func NewNormalizer(p NormalizerParams) *Normalizer {
	if p.BaseElo <= 0 {
		p.BaseElo = 1000
	}
	if p.EloPerSigma <= 0 {
		p.EloPerSigma = 200
	}
	return &Normalizer{
		baseElo:     p.BaseElo,
		eloPerSigma: p.EloPerSigma,
	}
}

// Normalize переводит сырое очко в elo относительно популяции stats.
// Направление direction инвертирует знак z для событий "меньше - лучше".
// При пустой или вырожденной популяции StdDev возвращает 1.0, и любое
// очко отображается около базового рейтинга вместо деления на ноль.
func (n *Normalizer) Normalize(score float64, stats event.RunningStats, direction event.ScoreDirection) shared.Elo {
	z := (score - stats.Mean) / stats.StdDev()
	if direction == event.DirectionLowerBetter {
		z = -z
	}
	return shared.Elo(int(math.Round(n.baseElo + z*n.eloPerSigma)))
}

// NormalizeAll пересчитывает рейтинги для набора очков против одной
// и той же статистики. Используется полным пересчётом события.
func (n *Normalizer) NormalizeAll(scores []float64, stats event.RunningStats, direction event.ScoreDirection) []shared.Elo {
	out := make([]shared.Elo, len(scores))
	for i, s := range scores {
		out[i] = n.Normalize(s, stats, direction)
	}
	return out
}

// BaseElo возвращает рейтинг среднего результата.
func (n *Normalizer) BaseElo() shared.Elo {
	return shared.Elo(int(math.Round(n.baseElo)))
}
