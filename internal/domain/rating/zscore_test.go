package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/event"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

func TestNormalize_SingleEntrantGetsBaseElo(t *testing.T) {
	n := NewNormalizer(DefaultNormalizerParams())

	// Популяция из одного очка: stddev fallback 1.0, z = 0, рейтинг = база.
	stats := event.FromScores([]float64{42.5})
	got := n.Normalize(42.5, stats, event.DirectionHigherBetter)
	assert.Equal(t, shared.Elo(1000), got)
}

func TestNormalize_UniformPopulation(t *testing.T) {
	n := NewNormalizer(DefaultNormalizerParams())

	// Все очки одинаковы: нулевая дисперсия, fallback 1.0, все у базы.
	stats := event.FromScores([]float64{100, 100, 100, 100})
	got := n.Normalize(100, stats, event.DirectionHigherBetter)
	assert.Equal(t, shared.Elo(1000), got)
}

func TestNormalize_OneSigmaAboveMean(t *testing.T) {
	n := NewNormalizer(DefaultNormalizerParams())

	// Популяция со средним 100 и известным отклонением.
	scores := []float64{90, 110, 90, 110}
	stats := event.FromScores(scores)
	require.InDelta(t, 100, stats.Mean, 1e-9)
	require.InDelta(t, 10, stats.StdDev(), 1e-9)

	assert.Equal(t, shared.Elo(1200), n.Normalize(110, stats, event.DirectionHigherBetter))
	assert.Equal(t, shared.Elo(800), n.Normalize(90, stats, event.DirectionHigherBetter))
	assert.Equal(t, shared.Elo(1000), n.Normalize(100, stats, event.DirectionHigherBetter))
}

func TestNormalize_LowerBetterInvertsSign(t *testing.T) {
	n := NewNormalizer(DefaultNormalizerParams())

	// Для гоночных событий меньшее время - лучший результат.
	stats := event.FromScores([]float64{90, 110, 90, 110})
	fast := n.Normalize(90, stats, event.DirectionLowerBetter)
	slow := n.Normalize(110, stats, event.DirectionLowerBetter)
	assert.Equal(t, shared.Elo(1200), fast)
	assert.Equal(t, shared.Elo(800), slow)
}

func TestNormalize_ExtremeOutlierStaysFinite(t *testing.T) {
	n := NewNormalizer(DefaultNormalizerParams())

	stats := event.FromScores([]float64{10, 20, 30, 40, 50})
	got := n.Normalize(1e6, stats, event.DirectionHigherBetter)
	assert.Greater(t, got.Int(), 1000)
}

func TestNormalizeAll(t *testing.T) {
	n := NewNormalizer(DefaultNormalizerParams())

	scores := []float64{90, 110}
	stats := event.FromScores([]float64{90, 110, 90, 110})
	out := n.NormalizeAll(scores, stats, event.DirectionHigherBetter)
	require.Len(t, out, 2)
	assert.Equal(t, shared.Elo(800), out[0])
	assert.Equal(t, shared.Elo(1200), out[1])
}

func TestNewNormalizer_DefaultsOnInvalidParams(t *testing.T) {
	n := NewNormalizer(NormalizerParams{BaseElo: -1, EloPerSigma: 0})
	assert.Equal(t, shared.Elo(1000), n.BaseElo())
}
