package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/rating"
	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

var (
	testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	testTTL = time.Hour
)

func newTestMatch(t *testing.T, players ...shared.PlayerID) *Match {
	t.Helper()
	if len(players) == 0 {
		players = []shared.PlayerID{"p1", "p2"}
	}
	m, err := NewMatch("m1", "e1", "1v1", players)
	require.NoError(t, err)
	return m
}

func proposedMatch(t *testing.T) *Match {
	t.Helper()
	m := newTestMatch(t)
	require.NoError(t, m.Propose("p1", []int{1, 2}, testTTL, testNow))
	return m
}

func testDeltas(m *Match) []rating.StandingDelta {
	out := make([]rating.StandingDelta, len(m.Participants))
	for i, p := range m.Participants {
		out[i] = rating.StandingDelta{
			PlayerID:  p.PlayerID,
			Placement: m.Proposal.Placements[i],
			OldRating: 1000,
			NewRating: 1000,
		}
	}
	return out
}

func TestNewMatch(t *testing.T) {
	m := newTestMatch(t)
	assert.Equal(t, StatePending, m.State)
	assert.Len(t, m.Participants, 2)
	assert.Nil(t, m.Proposal)

	_, err := NewMatch("m2", "e1", "1v1", []shared.PlayerID{"p1"})
	assert.ErrorIs(t, err, shared.ErrParticipantCount)

	_, err = NewMatch("m3", "e1", "1v1", []shared.PlayerID{"p1", "p1"})
	assert.ErrorIs(t, err, shared.ErrDuplicateParticipant)
}

func TestPropose(t *testing.T) {
	m := newTestMatch(t)

	require.NoError(t, m.Propose("p1", []int{1, 2}, testTTL, testNow))
	assert.Equal(t, StateAwaitingConfirmation, m.State)
	require.NotNil(t, m.Proposal)
	assert.Equal(t, testNow.Add(testTTL), m.Proposal.ExpiresAt)

	// Предложивший подтверждён автоматически, второй участник ждёт.
	require.Len(t, m.Confirmations, 2)
	assert.Equal(t, ConfirmationAccepted, m.Confirmations[0].Status)
	assert.Equal(t, ConfirmationPending, m.Confirmations[1].Status)
}

func TestPropose_Guards(t *testing.T) {
	m := newTestMatch(t)

	assert.ErrorIs(t, m.Propose("outsider", []int{1, 2}, testTTL, testNow), shared.ErrNotParticipant)
	assert.ErrorIs(t, m.Propose("p1", []int{1}, testTTL, testNow), shared.ErrInvalidPlacements)
	assert.ErrorIs(t, m.Propose("p1", []int{1, 3}, testTTL, testNow), shared.ErrInvalidPlacements)

	// Повторное предложение поверх активного запрещено.
	require.NoError(t, m.Propose("p1", []int{1, 2}, testTTL, testNow))
	assert.ErrorIs(t, m.Propose("p2", []int{2, 1}, testTTL, testNow), shared.ErrProposalActive)
}

func TestConfirm_AcceptCompletesProtocol(t *testing.T) {
	m := proposedMatch(t)

	assert.False(t, m.AllConfirmed())
	require.NoError(t, m.Confirm("p2", true, "", testNow.Add(time.Minute)))
	assert.True(t, m.AllConfirmed())
}

func TestConfirm_RejectRevertsToPending(t *testing.T) {
	m := proposedMatch(t)

	require.NoError(t, m.Confirm("p2", false, "wrong score", testNow.Add(time.Minute)))
	assert.Equal(t, StatePending, m.State)
	assert.Nil(t, m.Proposal)
	assert.Empty(t, m.Confirmations)

	// После отказа можно предложить результат заново.
	require.NoError(t, m.Propose("p2", []int{2, 1}, testTTL, testNow.Add(2*time.Minute)))
	assert.Equal(t, StateAwaitingConfirmation, m.State)
}

func TestConfirm_ExpiredProposal(t *testing.T) {
	m := proposedMatch(t)

	err := m.Confirm("p2", true, "", testNow.Add(testTTL))
	assert.ErrorIs(t, err, shared.ErrProposalExpired)
	assert.Equal(t, StatePending, m.State)
	assert.Nil(t, m.Proposal)
}

func TestConfirm_Guards(t *testing.T) {
	m := newTestMatch(t)
	assert.ErrorIs(t, m.Confirm("p2", true, "", testNow), shared.ErrProposalNotFound)

	m = proposedMatch(t)
	assert.ErrorIs(t, m.Confirm("outsider", true, "", testNow.Add(time.Minute)), shared.ErrNotParticipant)
}

func TestAllConfirmed_ChecksEveryParticipant(t *testing.T) {
	m := proposedMatch(t)
	require.NoError(t, m.Confirm("p2", true, "", testNow.Add(time.Minute)))
	require.True(t, m.AllConfirmed())

	// Участник, добавленный после предложения, блокирует финализацию:
	// проверка идёт по записям подтверждений, не по счётчику.
	m.Participants = append(m.Participants, Participant{PlayerID: "late"})
	assert.False(t, m.AllConfirmed())
}

func TestFinalize(t *testing.T) {
	m := proposedMatch(t)
	require.NoError(t, m.Confirm("p2", true, "", testNow.Add(time.Minute)))

	deltas := []rating.StandingDelta{
		{PlayerID: "p1", Placement: 1, OldRating: 1000, NewRating: 1020, Delta: 20},
		{PlayerID: "p2", Placement: 2, OldRating: 1000, NewRating: 980, Delta: -20},
	}
	finalizedAt := testNow.Add(2 * time.Minute)
	require.NoError(t, m.Finalize(deltas, finalizedAt))

	assert.Equal(t, StateCompleted, m.State)
	require.NotNil(t, m.CompletedAt)
	assert.Equal(t, finalizedAt, *m.CompletedAt)
	assert.Equal(t, 1, m.Participants[0].Placement)
	assert.Equal(t, shared.Elo(1020), m.Participants[0].RatingAfter)
	assert.Equal(t, -20, m.Participants[1].Delta)
}

func TestFinalize_IdempotencyGuard(t *testing.T) {
	m := proposedMatch(t)
	require.NoError(t, m.Confirm("p2", true, "", testNow.Add(time.Minute)))
	deltas := testDeltas(m)
	require.NoError(t, m.Finalize(deltas, testNow.Add(2*time.Minute)))

	// Повторная финализация - явная ошибка, никогда не двойное применение.
	assert.ErrorIs(t, m.Finalize(deltas, testNow.Add(3*time.Minute)), shared.ErrMatchAlreadyComplete)
}

func TestFinalize_Guards(t *testing.T) {
	m := proposedMatch(t)

	// Без полного набора подтверждений финализация невозможна.
	assert.ErrorIs(t, m.Finalize(testDeltas(m), testNow.Add(time.Minute)), shared.ErrNotAllConfirmed)

	// Истёкшее предложение сбрасывает матч вместо финализации.
	m2 := proposedMatch(t)
	require.NoError(t, m2.Confirm("p2", true, "", testNow.Add(time.Minute)))
	err := m2.Finalize(testDeltas(m2), testNow.Add(testTTL+time.Minute))
	assert.ErrorIs(t, err, shared.ErrProposalExpired)
	assert.Equal(t, StatePending, m2.State)
}

func TestCancel(t *testing.T) {
	m := proposedMatch(t)
	require.NoError(t, m.Cancel(testNow.Add(time.Minute)))
	assert.Equal(t, StateCancelled, m.State)
	assert.Nil(t, m.Proposal)

	// Из терминального состояния выхода нет.
	assert.ErrorIs(t, m.Cancel(testNow.Add(2*time.Minute)), shared.ErrMatchTerminal)
	assert.ErrorIs(t, m.Propose("p1", []int{1, 2}, testTTL, testNow), shared.ErrMatchTerminal)
}

func TestExpireProposal(t *testing.T) {
	m := proposedMatch(t)

	assert.False(t, m.ExpireProposal(testNow.Add(time.Minute)))
	assert.Equal(t, StateAwaitingConfirmation, m.State)

	assert.True(t, m.ExpireProposal(testNow.Add(testTTL)))
	assert.Equal(t, StatePending, m.State)
	assert.Nil(t, m.Proposal)
	assert.Empty(t, m.Confirmations)

	// Повторный вызов безопасен.
	assert.False(t, m.ExpireProposal(testNow.Add(testTTL)))
}

func TestStandings(t *testing.T) {
	m := proposedMatch(t)

	ratings := map[shared.PlayerID]shared.Elo{"p1": 1100, "p2": 950}
	games := map[shared.PlayerID]int{"p1": 10, "p2": 3}
	standings, err := m.Standings(ratings, games)
	require.NoError(t, err)
	require.Len(t, standings, 2)
	assert.Equal(t, 1, standings[0].Placement)
	assert.Equal(t, shared.Elo(1100), standings[0].Rating)
	assert.Equal(t, 3, standings[1].GamesPlayed)

	// Отсутствующий рейтинг участника - ошибка, не нулевое значение.
	delete(ratings, "p2")
	_, err = m.Standings(ratings, games)
	assert.ErrorIs(t, err, shared.ErrStatsNotFound)
}
