package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	c, err := NewCalculator(DefaultParams())
	require.NoError(t, err)
	return c
}

func TestNewCalculator_RejectsNonPositiveK(t *testing.T) {
	p := DefaultParams()
	p.StandardK = 0
	_, err := NewCalculator(p)
	assert.ErrorIs(t, err, shared.ErrInvalidKFactor)

	p = DefaultParams()
	p.ProvisionalK = -5
	_, err = NewCalculator(p)
	assert.ErrorIs(t, err, shared.ErrInvalidKFactor)
}

func TestKFor_ProvisionalThenStandard(t *testing.T) {
	c := newTestCalculator(t)

	for games := 0; games < 5; games++ {
		assert.Equal(t, 40.0, c.KFor(games), "games=%d", games)
	}
	assert.Equal(t, 20.0, c.KFor(5))
	assert.Equal(t, 20.0, c.KFor(100))
}

func TestExpectedScore(t *testing.T) {
	c := newTestCalculator(t)

	assert.InDelta(t, 0.5, c.ExpectedScore(1000, 1000), 1e-9)

	// Разница в 400 пунктов - десятикратное преимущество.
	assert.InDelta(t, 1.0/11.0, c.ExpectedScore(1000, 1400), 1e-9)
	assert.InDelta(t, 10.0/11.0, c.ExpectedScore(1400, 1000), 1e-9)

	// Симметрия: ожидания пары в сумме дают единицу.
	ea := c.ExpectedScore(1234, 987)
	eb := c.ExpectedScore(987, 1234)
	assert.InDelta(t, 1.0, ea+eb, 1e-9)
}

func TestDeltaPair_FreshPlayersEqualRatings(t *testing.T) {
	c := newTestCalculator(t)

	// Два новичка 1000 на 1000: провизорный K=40, победа даёт ровно ±20.
	deltaA, deltaB := c.DeltaPair(1000, 1000, 0, 0, ScoreWin)
	assert.Equal(t, 20, deltaA)
	assert.Equal(t, -20, deltaB)

	ratingA := shared.Elo(1000).Add(deltaA)
	ratingB := shared.Elo(1000).Add(deltaB)
	assert.Equal(t, shared.Elo(1020), ratingA)
	assert.Equal(t, shared.Elo(980), ratingB)
}

func TestDeltaPair_ZeroSumAtEqualK(t *testing.T) {
	c := newTestCalculator(t)

	cases := []struct {
		ra, rb shared.Elo
		actual ActualScore
	}{
		{1000, 1000, ScoreWin},
		{1200, 950, ScoreLoss},
		{1500, 1480, ScoreDraw},
		{800, 1600, ScoreWin},
	}
	for _, tc := range cases {
		deltaA, deltaB := c.DeltaPair(tc.ra, tc.rb, 10, 10, tc.actual)
		assert.Equal(t, -deltaB, deltaA, "ra=%d rb=%d actual=%v", tc.ra, tc.rb, tc.actual)
	}
}

func TestDeltaPair_UpsetPaysMore(t *testing.T) {
	c := newTestCalculator(t)

	// Победа фаворита даёт меньше, чем победа аутсайдера.
	favWin, _ := c.DeltaPair(1400, 1000, 10, 10, ScoreWin)
	underdogWin, _ := c.DeltaPair(1000, 1400, 10, 10, ScoreWin)
	assert.Greater(t, underdogWin, favWin)

	// Ничья с более сильным соперником приносит очки.
	drawDelta, _ := c.DeltaPair(1000, 1400, 10, 10, ScoreDraw)
	assert.Positive(t, drawDelta)
}

func TestDeltaPair_MixedKFactors(t *testing.T) {
	c := newTestCalculator(t)

	// Новичок против ветерана: дельты не зеркальны, каждая по своему K.
	deltaA, deltaB := c.DeltaPair(1000, 1000, 0, 50, ScoreWin)
	assert.Equal(t, 20, deltaA)
	assert.Equal(t, -10, deltaB)
}

func TestPlacementDeltas_EqualRatingsFFA(t *testing.T) {
	c := newTestCalculator(t)

	standings := []Standing{
		{PlayerID: "p1", Placement: 1, Rating: 1000, GamesPlayed: 0},
		{PlayerID: "p2", Placement: 2, Rating: 1000, GamesPlayed: 0},
		{PlayerID: "p3", Placement: 3, Rating: 1000, GamesPlayed: 0},
		{PlayerID: "p4", Placement: 4, Rating: 1000, GamesPlayed: 0},
	}
	deltas := c.PlacementDeltas(standings)
	require.Len(t, deltas, 4)

	// Победитель равного поля получает ту же дельту, что за победу 1v1.
	assert.Equal(t, 20, deltas[0].Delta)
	assert.Equal(t, 7, deltas[1].Delta)
	assert.Equal(t, -7, deltas[2].Delta)
	assert.Equal(t, -20, deltas[3].Delta)

	assert.Equal(t, shared.Elo(1020), deltas[0].NewRating)
	assert.Equal(t, shared.Elo(980), deltas[3].NewRating)
}

func TestPlacementDeltas_OrderingLaw(t *testing.T) {
	c := newTestCalculator(t)

	// Гетерогенные рейтинги: без ограничения сверху середняк на втором
	// месте получил бы больше, чем фаворит-победитель.
	standings := []Standing{
		{PlayerID: "p1", Placement: 1, Rating: 2800, GamesPlayed: 50},
		{PlayerID: "p2", Placement: 2, Rating: 1000, GamesPlayed: 50},
		{PlayerID: "p3", Placement: 3, Rating: 2799, GamesPlayed: 50},
	}
	deltas := c.PlacementDeltas(standings)
	require.Len(t, deltas, 3)

	assert.GreaterOrEqual(t, deltas[0].Delta, deltas[1].Delta)
	assert.GreaterOrEqual(t, deltas[1].Delta, deltas[2].Delta)
}

func TestPlacementDeltas_TiesShareFate(t *testing.T) {
	c := newTestCalculator(t)

	standings := []Standing{
		{PlayerID: "p1", Placement: 1, Rating: 1000, GamesPlayed: 0},
		{PlayerID: "p2", Placement: 1, Rating: 1000, GamesPlayed: 0},
		{PlayerID: "p3", Placement: 3, Rating: 1000, GamesPlayed: 0},
	}
	deltas := c.PlacementDeltas(standings)
	require.Len(t, deltas, 3)

	// Поделившие место при равных рейтингах получают одинаковую дельту.
	assert.Equal(t, deltas[0].Delta, deltas[1].Delta)
	assert.Positive(t, deltas[0].Delta)
	assert.Negative(t, deltas[2].Delta)
}

func TestPlacementDeltas_InputOrderPreserved(t *testing.T) {
	c := newTestCalculator(t)

	// Вход не отсортирован по местам; выход обязан сохранить порядок входа.
	standings := []Standing{
		{PlayerID: "last", Placement: 3, Rating: 1000, GamesPlayed: 0},
		{PlayerID: "first", Placement: 1, Rating: 1000, GamesPlayed: 0},
		{PlayerID: "mid", Placement: 2, Rating: 1000, GamesPlayed: 0},
	}
	deltas := c.PlacementDeltas(standings)
	require.Len(t, deltas, 3)

	assert.Equal(t, shared.PlayerID("last"), deltas[0].PlayerID)
	assert.Equal(t, shared.PlayerID("first"), deltas[1].PlayerID)
	assert.Negative(t, deltas[0].Delta)
	assert.Positive(t, deltas[1].Delta)
}

func TestPlacementDeltas_DegenerateSizes(t *testing.T) {
	c := newTestCalculator(t)

	assert.Empty(t, c.PlacementDeltas(nil))

	single := c.PlacementDeltas([]Standing{
		{PlayerID: "solo", Placement: 1, Rating: 1234, GamesPlayed: 3},
	})
	require.Len(t, single, 1)
	assert.Equal(t, 0, single[0].Delta)
	assert.Equal(t, shared.Elo(1234), single[0].NewRating)
}

func TestPlacementDeltas_TwoPlayersMatchesDeltaPair(t *testing.T) {
	c := newTestCalculator(t)

	// Матч двух игроков через расстановку эквивалентен прямому 1v1.
	pairA, pairB := c.DeltaPair(1100, 950, 10, 10, ScoreWin)
	deltas := c.PlacementDeltas([]Standing{
		{PlayerID: "a", Placement: 1, Rating: 1100, GamesPlayed: 10},
		{PlayerID: "b", Placement: 2, Rating: 950, GamesPlayed: 10},
	})
	require.Len(t, deltas, 2)
	assert.Equal(t, pairA, deltas[0].Delta)
	assert.Equal(t, pairB, deltas[1].Delta)
}

func TestValidatePlacements(t *testing.T) {
	valid := [][]int{
		{1},
		{1, 2},
		{2, 1},
		{1, 1},
		{1, 1, 3},
		{1, 2, 2, 4},
		{1, 2, 3, 4, 5},
	}
	for _, p := range valid {
		assert.NoError(t, ValidatePlacements(p), "placements=%v", p)
	}

	invalid := [][]int{
		nil,
		{},
		{2},
		{0, 1},
		{1, 3},
		{1, 1, 2},
		{1, 2, 4},
		{1, 2, 2, 3},
	}
	for _, p := range invalid {
		assert.ErrorIs(t, ValidatePlacements(p), shared.ErrInvalidPlacements, "placements=%v", p)
	}
}
