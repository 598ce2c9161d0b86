package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/player"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

func newTestStats() *PlayerEventStats {
	return NewPlayerEventStats("stats-1", "player-1", "event-1", 1000)
}

func TestNewPlayerEventStats_SeedsStartingElo(t *testing.T) {
	s := newTestStats()

	assert.Equal(t, shared.Elo(1000), s.RawElo)
	assert.Equal(t, shared.Elo(1000), s.ScoringElo)
	assert.Equal(t, 0, s.MatchesPlayed)
	require.NoError(t, s.Validate())
}

func TestApplyDelta_ScoringFlooredAtStarting(t *testing.T) {
	s := newTestStats()

	s.ApplyDelta(-40, player.OutcomeLoss, 1000)

	// Raw уходит ниже старта, scoring остаётся на полу.
	assert.Equal(t, shared.Elo(960), s.RawElo)
	assert.Equal(t, shared.Elo(1000), s.ScoringElo)
	assert.Equal(t, 1, s.MatchesPlayed)
	assert.Equal(t, 1, s.Losses)
}

func TestApplyDelta_RawRecoversBeforeScoringMoves(t *testing.T) {
	s := newTestStats()

	// Проигрыш на 40, затем выигрыш на 30: scoring всё ещё на полу,
	// потому что raw не вернулся к старту.
	s.ApplyDelta(-40, player.OutcomeLoss, 1000)
	s.ApplyDelta(30, player.OutcomeWin, 1000)
	assert.Equal(t, shared.Elo(990), s.RawElo)
	assert.Equal(t, shared.Elo(1000), s.ScoringElo)

	s.ApplyDelta(30, player.OutcomeWin, 1000)
	assert.Equal(t, shared.Elo(1020), s.RawElo)
	assert.Equal(t, shared.Elo(1020), s.ScoringElo)

	assert.Equal(t, 3, s.MatchesPlayed)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	require.NoError(t, s.Validate())
}

func TestFoldWeek_RunningAverage(t *testing.T) {
	s := newTestStats()

	s.FoldWeek(1200)
	assert.InDelta(t, 1200, s.WeeklyEloAverage, 1e-9)
	assert.Equal(t, 1, s.WeeksParticipated)

	s.FoldWeek(1000)
	assert.InDelta(t, 1100, s.WeeklyEloAverage, 1e-9)

	// Неделя без участия учитывается нулём и резко роняет среднее.
	s.FoldWeek(0)
	assert.InDelta(t, 2200.0/3.0, s.WeeklyEloAverage, 1e-9)
	assert.Equal(t, 3, s.WeeksParticipated)
}

func TestDisplayedLeaderboardElo(t *testing.T) {
	s := newTestStats()
	s.AllTimeElo = 1400

	// Без недельной истории показывается чистый all-time рейтинг.
	assert.Equal(t, shared.Elo(1400), s.DisplayedLeaderboardElo(0.5))

	s.FoldWeek(1200)
	assert.Equal(t, shared.Elo(1300), s.DisplayedLeaderboardElo(0.5))
}

func TestStatsValidate_TotalsMismatch(t *testing.T) {
	s := newTestStats()
	s.MatchesPlayed = 5
	s.Wins = 2

	assert.ErrorIs(t, s.Validate(), player.ErrTotalsMismatch)
}
