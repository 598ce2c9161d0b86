// Package rating содержит вычислительное ядро рейтинговой системы:
// чистый Elo-калькулятор, Z-нормализацию для leaderboard-событий,
// взвешенную tier-агрегацию overall-рейтинга и запись PlayerEventStats.
// Все вычисления в этом пакете - чистые функции без I/O.
package rating

import (
	"math"
	"sort"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ELO CALCULATOR
// Стандартная логистическая формула ожидаемого счёта с базой 400.
// K-фактор зависит от опыта: первые матчи - "провизорный" период с
// повышенным K, дальше - стандартный.
// ══════════════════════════════════════════════════════════════════════════════

// ActualScore - фактический результат с точки зрения игрока A.
type ActualScore float64

const (
	// ScoreWin - победа (1.0).
	ScoreWin ActualScore = 1.0
	// ScoreLoss - поражение (0.0).
	ScoreLoss ActualScore = 0.0
	// ScoreDraw - ничья (0.5).
	ScoreDraw ActualScore = 0.5
)

// Calculator - чистый Elo-калькулятор. Создаётся один раз из конфигурации.
type Calculator struct {
	// base - база логистической кривой: разница в base пунктов
	// означает десятикратное преимущество в ожидаемом счёте.
	base float64

	// standardK - K-фактор после провизорного периода.
	standardK float64

	// provisionalK - повышенный K-фактор первых матчей.
	provisionalK float64

	// provisionalGames - длина провизорного периода в матчах.
	provisionalGames int

	// starting - стартовый рейтинг; scoring elo не опускается ниже него.
	starting shared.Elo
}

// CalculatorParams - параметры калькулятора.
type CalculatorParams struct {
	Base             float64
	StandardK        float64
	ProvisionalK     float64
	ProvisionalGames int
	StartingElo      int
}

// DefaultParams возвращает классические параметры:
// база 400, K=20 (стандарт) / K=40 (первые 5 матчей), старт 1000.
func DefaultParams() CalculatorParams {
	return CalculatorParams{
		Base:             400,
		StandardK:        20,
		ProvisionalK:     40,
		ProvisionalGames: 5,
		StartingElo:      1000,
	}
}

// NewCalculator создаёт калькулятор с валидацией параметров.
func NewCalculator(p CalculatorParams) (*Calculator, error) {
	if p.StandardK <= 0 || p.ProvisionalK <= 0 {
		return nil, shared.ErrInvalidKFactor
	}
	if p.Base <= 0 {
		p.Base = 400
	}
	if p.ProvisionalGames < 0 {
		p.ProvisionalGames = 0
	}
	return &Calculator{
		base:             p.Base,
		standardK:        p.StandardK,
		provisionalK:     p.ProvisionalK,
		provisionalGames: p.ProvisionalGames,
		starting:         shared.Elo(p.StartingElo),
	}, nil
}

// StartingElo возвращает стартовый рейтинг.
func (c *Calculator) StartingElo() shared.Elo {
	return c.starting
}

// KFor возвращает K-фактор для игрока с данным числом сыгранных матчей.
func (c *Calculator) KFor(gamesPlayed int) float64 {
	if gamesPlayed < c.provisionalGames {
		return c.provisionalK
	}
	return c.standardK
}

// ExpectedScore возвращает ожидаемый счёт игрока A против игрока B:
// expected_a = 1 / (1 + 10^((rb - ra) / base)).
func (c *Calculator) ExpectedScore(ratingA, ratingB shared.Elo) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(ratingB-ratingA)/c.base))
}

// DeltaPair вычисляет дельты обоих игроков пары.
// actualA - результат с точки зрения A; B получает зеркальный результат.
// При равных K дельты строго противоположны (zero-sum).
func (c *Calculator) DeltaPair(ratingA, ratingB shared.Elo, gamesA, gamesB int, actualA ActualScore) (deltaA, deltaB int) {
	expectedA := c.ExpectedScore(ratingA, ratingB)
	expectedB := 1.0 - expectedA
	actualB := 1.0 - float64(actualA)

	deltaA = int(math.Round(c.KFor(gamesA) * (float64(actualA) - expectedA)))
	deltaB = int(math.Round(c.KFor(gamesB) * (actualB - expectedB)))
	return deltaA, deltaB
}

// ══════════════════════════════════════════════════════════════════════════════
// PLACEMENT MATCHES (N игроков)
// Матч с расстановкой раскладывается попарно: меньший placement побеждает
// больший, равные placement - ничья. Дельта игрока - СРЕДНЕЕ его попарных
// дельт (а не сумма): дельты остаются в масштабе 1v1, а закон порядка
// сохраняется - лучший финиш никогда не даёт худшую дельту.
// ══════════════════════════════════════════════════════════════════════════════

// Standing - входная строка участника для расчёта по расстановке.
type Standing struct {
	// PlayerID - идентификатор участника.
	PlayerID shared.PlayerID

	// Placement - место (1 = лучший; равные места допустимы).
	Placement int

	// Rating - текущий raw elo участника в событии.
	Rating shared.Elo

	// GamesPlayed - число матчей участника в событии (выбор K).
	GamesPlayed int
}

// StandingDelta - выходная строка: дельта и данные для аудита.
type StandingDelta struct {
	PlayerID  shared.PlayerID
	Placement int
	OldRating shared.Elo
	NewRating shared.Elo
	Delta     int
	KFactor   float64
}

// PlacementDeltas вычисляет дельты всех участников матча с расстановкой.
// Возвращает срез в том же порядке, что и вход.
func (c *Calculator) PlacementDeltas(standings []Standing) []StandingDelta {
	n := len(standings)
	out := make([]StandingDelta, n)

	for i, s := range standings {
		out[i] = StandingDelta{
			PlayerID:  s.PlayerID,
			Placement: s.Placement,
			OldRating: s.Rating,
			KFactor:   c.KFor(s.GamesPlayed),
		}
	}

	if n < 2 {
		if n == 1 {
			out[0].NewRating = standings[0].Rating
		}
		return out
	}

	// Сумма попарных дельт в непрерывной арифметике, округление один раз
	// после усреднения - иначе накопленная ошибка округления может
	// нарушить порядок при близких рейтингах.
	raw := make([]float64, n)
	for i := 0; i < n; i++ {
		k := c.KFor(standings[i].GamesPlayed)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			actual := pairActual(standings[i].Placement, standings[j].Placement)
			expected := c.ExpectedScore(standings[i].Rating, standings[j].Rating)
			raw[i] += k * (float64(actual) - expected)
		}
	}

	for i := range out {
		avg := raw[i] / float64(n-1)
		out[i].Delta = int(math.Round(avg))
	}

	c.clampByPlacement(out)

	for i := range out {
		out[i].NewRating = standings[i].Rating.Add(out[i].Delta)
	}

	return out
}

// clampByPlacement приводит дельты к закону порядка: участник с лучшим
// местом не может получить строго меньшую дельту, чем участник с худшим.
// При больших разрывах рейтингов чистая попарная формула этот закон
// нарушает (высокорейтинговый победитель получает меньше, чем середняк),
// поэтому дельта каждого следующего по месту участника ограничивается
// сверху минимальной дельтой всех, кто финишировал выше.
func (c *Calculator) clampByPlacement(deltas []StandingDelta) {
	order := make([]int, len(deltas))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return deltas[order[a]].Placement < deltas[order[b]].Placement
	})

	ceiling := math.MaxInt
	i := 0
	for i < len(order) {
		// Группа участников, поделивших одно место.
		j := i
		groupMin := math.MaxInt
		for j < len(order) && deltas[order[j]].Placement == deltas[order[i]].Placement {
			idx := order[j]
			if deltas[idx].Delta > ceiling {
				deltas[idx].Delta = ceiling
			}
			if deltas[idx].Delta < groupMin {
				groupMin = deltas[idx].Delta
			}
			j++
		}
		ceiling = groupMin
		i = j
	}
}

// pairActual возвращает фактический счёт пары по местам.
func pairActual(placementA, placementB int) ActualScore {
	switch {
	case placementA < placementB:
		return ScoreWin
	case placementA > placementB:
		return ScoreLoss
	default:
		return ScoreDraw
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PLACEMENT VALIDATION
// Места должны разбивать участников на упорядоченные непустые группы:
// начинаются с 1, ничьи делят место, следующее отличное место идёт сразу
// после числа поделивших (1,1,3 - корректно; 1,1,2 и 1,3 - нет).
// ══════════════════════════════════════════════════════════════════════════════

// ValidatePlacements проверяет корректность последовательности мест.
func ValidatePlacements(placements []int) error {
	if len(placements) == 0 {
		return shared.ErrInvalidPlacements
	}

	sorted := make([]int, len(placements))
	copy(sorted, placements)
	sort.Ints(sorted)

	if sorted[0] != 1 {
		return shared.ErrInvalidPlacements
	}

	// После группы из k игроков на месте p следующее место обязано быть p+k.
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			continue
		}
		if sorted[i] != i+1 {
			return shared.ErrInvalidPlacements
		}
	}
	return nil
}
