package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

func TestNewEntry(t *testing.T) {
	e, err := NewEntry("l1", "p1", 50, ReasonAdminGrant, 100)
	require.NoError(t, err)
	assert.Equal(t, 50, e.Amount)
	assert.Equal(t, shared.Tickets(150), e.BalanceAfter)
}

func TestNewEntry_DebitToExactZero(t *testing.T) {
	e, err := NewEntry("l1", "p1", -100, ReasonPurchase, 100)
	require.NoError(t, err)
	assert.Equal(t, shared.Tickets(0), e.BalanceAfter)
}

func TestNewEntry_RejectsNegativeBalance(t *testing.T) {
	_, err := NewEntry("l1", "p1", -101, ReasonPurchase, 100)
	assert.ErrorIs(t, err, shared.ErrDebitBelowZero)
	assert.ErrorIs(t, err, shared.ErrInsufficientBalance)
}

func TestNewEntry_RejectsZeroAmount(t *testing.T) {
	_, err := NewEntry("l1", "p1", 0, ReasonAdminGrant, 100)
	assert.ErrorIs(t, err, shared.ErrZeroAmount)
}

func TestReason_IsValid(t *testing.T) {
	for _, r := range []Reason{
		ReasonMatchReward, ReasonMatchParticipation, ReasonAdminGrant,
		ReasonAdminDebit, ReasonPurchase, ReasonCorrection,
	} {
		assert.True(t, r.IsValid(), string(r))
	}
	assert.False(t, Reason("jackpot").IsValid())
}

func TestNewEntry_RejectsUnknownReason(t *testing.T) {
	_, err := NewEntry("l1", "p1", 10, Reason("jackpot"), 100)
	assert.ErrorIs(t, err, shared.ErrInvalidReason)
}

func TestNewIntegrityReport(t *testing.T) {
	rep := NewIntegrityReport("p1", 150, 150)
	assert.True(t, rep.Match)

	rep = NewIntegrityReport("p1", 150, 140)
	assert.False(t, rep.Match)
	assert.Equal(t, shared.Tickets(150), rep.Cached)
	assert.Equal(t, shared.Tickets(140), rep.Computed)
}
