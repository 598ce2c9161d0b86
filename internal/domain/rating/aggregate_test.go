package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	a, err := NewAggregator(DefaultAggregatorParams())
	require.NoError(t, err)
	return a
}

func TestNewAggregator_RejectsBadWeights(t *testing.T) {
	_, err := NewAggregator(AggregatorParams{})
	assert.ErrorIs(t, err, shared.ErrTierWeightsSum)

	_, err = NewAggregator(AggregatorParams{
		Tiers:    []Tier{{Size: 10, Weight: 0.5}, {Size: 10, Weight: 0.4}},
		Starting: 1000,
	})
	assert.ErrorIs(t, err, shared.ErrTierWeightsSum)

	_, err = NewAggregator(AggregatorParams{
		Tiers:    []Tier{{Size: 0, Weight: 1.0}},
		Starting: 1000,
	})
	assert.ErrorIs(t, err, shared.ErrTierWeightsSum)
}

func TestOverall_NoRatingsGivesStarting(t *testing.T) {
	a := newTestAggregator(t)

	// Игрок без единого события: все 20 слотов заполнены стартовым 1000.
	assert.InDelta(t, 1000, a.Overall(nil), 1e-9)
	assert.Equal(t, shared.Elo(1000), a.OverallElo(nil))
}

func TestOverall_AllSlotsEqualCollapseToThatValue(t *testing.T) {
	a := newTestAggregator(t)

	ratings := make([]shared.Elo, 20)
	for i := range ratings {
		ratings[i] = 1500
	}
	assert.InDelta(t, 1500, a.Overall(ratings), 1e-9)
}

func TestOverall_TopTierDominates(t *testing.T) {
	a := newTestAggregator(t)

	// Десять сильных событий и ничего больше:
	// score = 0.60*1800 + 0.25*1000 + 0.15*1000 = 1480.
	ratings := make([]shared.Elo, 10)
	for i := range ratings {
		ratings[i] = 1800
	}
	assert.InDelta(t, 1480, a.Overall(ratings), 1e-9)
}

func TestOverall_OrderIndependent(t *testing.T) {
	a := newTestAggregator(t)

	asc := []shared.Elo{1100, 1200, 1300, 1400, 1500}
	desc := []shared.Elo{1500, 1400, 1300, 1200, 1100}
	assert.InDelta(t, a.Overall(asc), a.Overall(desc), 1e-9)
}

func TestOverall_BreadthRewarded(t *testing.T) {
	a := newTestAggregator(t)

	// Больше событий выше старта - выше итоговый балл.
	narrow := []shared.Elo{1600}
	wide := []shared.Elo{1600, 1300, 1300, 1300, 1300}
	assert.Greater(t, a.Overall(wide), a.Overall(narrow))
}

func TestExplain_ContribsSumToOverall(t *testing.T) {
	a := newTestAggregator(t)

	ratings := []shared.Elo{1700, 1650, 1400, 1200, 1050}
	breakdown := a.Explain(ratings)
	require.Len(t, breakdown, 3)

	total := 0.0
	for _, b := range breakdown {
		total += b.Contrib
	}
	assert.InDelta(t, a.Overall(ratings), total, 1e-9)

	// Первый уровень покрывает десять лучших рейтингов.
	assert.Equal(t, 10, breakdown[0].Tier.Size)
	assert.InDelta(t, 0.60, breakdown[0].Tier.Weight, 1e-9)
}
