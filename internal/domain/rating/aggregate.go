package rating

import (
	"math"
	"sort"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// АГРЕГАЦИЯ В ОБЩИЙ СЧЁТ
// Свёртка рейтингов игрока по всем событиям в один итоговый балл.
// Рейтинги сортируются по убыванию, дополняются стартовым значением до
// фиксированного размера и взвешиваются по уровням: лучшие события весят
// больше, но широта участия всё ещё вознаграждается.
// ══════════════════════════════════════════════════════════════════════════════

// Tier - уровень агрегации: сколько рейтингов он покрывает и с каким весом.
type Tier struct {
	Size   int
	Weight float64
}

// Aggregator сворачивает рейтинги событий в итоговый балл игрока.
type Aggregator struct {
	tiers    []Tier
	padTo    int
	starting shared.Elo
}

// AggregatorParams - параметры агрегации.
type AggregatorParams struct {
	// Tiers - уровни в порядке от лучших рейтингов к худшим.
	// Сумма весов обязана равняться 1.0.
	Tiers []Tier

	// Starting - рейтинг, которым дополняются недостающие события.
	Starting shared.Elo
}

// DefaultAggregatorParams возвращает параметры по умолчанию:
// уровни 10/5/5 с весами 0.60/0.25/0.15, дополнение до 20 рейтингом 1000.
func DefaultAggregatorParams() AggregatorParams {
	return AggregatorParams{
		Tiers: []Tier{
			{Size: 10, Weight: 0.60},
			{Size: 5, Weight: 0.25},
			{Size: 5, Weight: 0.15},
		},
		Starting: 1000,
	}
}

const weightSumTolerance = 1e-9

// NewAggregator создаёт агрегатор с проверкой весов.
func NewAggregator(p AggregatorParams) (*Aggregator, error) {
	if len(p.Tiers) == 0 {
		return nil, shared.ErrTierWeightsSum
	}
	padTo := 0
	sum := 0.0
	for _, t := range p.Tiers {
		if t.Size <= 0 || t.Weight < 0 {
			return nil, shared.ErrTierWeightsSum
		}
		padTo += t.Size
		sum += t.Weight
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return nil, shared.ErrTierWeightsSum
	}
	return &Aggregator{
		tiers:    p.Tiers,
		padTo:    padTo,
		starting: p.Starting,
	}, nil
}

// Overall сворачивает рейтинги игрока в итоговый балл.
// Порядок входа не важен: рейтинги сортируются по убыванию внутри.
// Игрок без единого события получает ровно стартовый рейтинг.
func (a *Aggregator) Overall(ratings []shared.Elo) float64 {
	sorted := make([]shared.Elo, len(ratings))
	copy(sorted, ratings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	for len(sorted) < a.padTo {
		sorted = append(sorted, a.starting)
	}

	score := 0.0
	idx := 0
	for _, t := range a.tiers {
		tierSum := 0.0
		for i := 0; i < t.Size; i++ {
			tierSum += float64(sorted[idx])
			idx++
		}
		score += (tierSum / float64(t.Size)) * t.Weight
	}
	return score
}

// OverallElo возвращает итоговый балл, округлённый до целого elo.
func (a *Aggregator) OverallElo(ratings []shared.Elo) shared.Elo {
	return shared.Elo(int(math.Round(a.Overall(ratings))))
}

// Breakdown - вклад одного уровня в итоговый балл.
type Breakdown struct {
	Tier    Tier
	Average float64
	Contrib float64
}

// Explain возвращает взвешенную разбивку итогового балла по уровням.
// Используется профилем игрока для отображения структуры счёта.
func (a *Aggregator) Explain(ratings []shared.Elo) []Breakdown {
	sorted := make([]shared.Elo, len(ratings))
	copy(sorted, ratings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	for len(sorted) < a.padTo {
		sorted = append(sorted, a.starting)
	}

	out := make([]Breakdown, 0, len(a.tiers))
	idx := 0
	for _, t := range a.tiers {
		tierSum := 0.0
		for i := 0; i < t.Size; i++ {
			tierSum += float64(sorted[idx])
			idx++
		}
		avg := tierSum / float64(t.Size)
		out = append(out, Breakdown{
			Tier:    t,
			Average: avg,
			Contrib: avg * t.Weight,
		})
	}
	return out
}
