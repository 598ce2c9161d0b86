package history

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-hub/arena-tournament-hub/internal/domain/shared"
)

func TestCursor_RoundTrip(t *testing.T) {
	c := Cursor{
		OccurredAt: time.Date(2026, 8, 31, 15, 4, 5, 123456789, time.UTC),
		Source:     SourceMatch,
		ID:         "3f1a9e2c",
	}
	token, err := c.Encode()
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.True(t, got.OccurredAt.Equal(c.OccurredAt))
	assert.Equal(t, c.Source, got.Source)
	assert.Equal(t, c.ID, got.ID)
}

func TestDecodeCursor_EmptyTokenIsStart(t *testing.T) {
	c, err := DecodeCursor("")
	require.NoError(t, err)
	assert.True(t, c.IsZero())
}

func TestDecodeCursor_Malformed(t *testing.T) {
	_, err := DecodeCursor("not-base64!!!")
	assert.ErrorIs(t, err, shared.ErrInvalidCursor)

	// Валидный base64, но не JSON.
	_, err = DecodeCursor("bm90LWpzb24=")
	assert.ErrorIs(t, err, shared.ErrInvalidCursor)
}

func TestCursor_Before_TotalOrder(t *testing.T) {
	ts := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	newer := Cursor{OccurredAt: ts.Add(time.Second), Source: SourceMatch, ID: "a"}
	older := Cursor{OccurredAt: ts, Source: SourceMatch, ID: "a"}
	assert.True(t, newer.Before(older))
	assert.False(t, older.Before(newer))

	// Совпадение по времени разрешается типом источника.
	m := Cursor{OccurredAt: ts, Source: SourceMatch, ID: "z"}
	s := Cursor{OccurredAt: ts, Source: SourceSubmission, ID: "a"}
	assert.True(t, m.Before(s))
	assert.False(t, s.Before(m))

	// Полное совпадение времени и источника - по идентификатору.
	a := Cursor{OccurredAt: ts, Source: SourceMatch, ID: "a"}
	b := Cursor{OccurredAt: ts, Source: SourceMatch, ID: "b"}
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))

	// Равные ключи не упорядочены ни в одну сторону.
	assert.False(t, a.Before(a))
}

func TestCursor_Before_SortsDeterministically(t *testing.T) {
	ts := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	keys := []Cursor{
		{OccurredAt: ts, Source: SourceSubmission, ID: "1"},
		{OccurredAt: ts.Add(time.Minute), Source: SourceMatch, ID: "9"},
		{OccurredAt: ts, Source: SourceMatch, ID: "2"},
		{OccurredAt: ts, Source: SourceMatch, ID: "1"},
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	assert.Equal(t, "9", keys[0].ID)
	assert.Equal(t, SourceMatch, keys[1].Source)
	assert.Equal(t, "1", keys[1].ID)
	assert.Equal(t, "2", keys[2].ID)
	assert.Equal(t, SourceSubmission, keys[3].Source)
}

func TestVerifyOrder(t *testing.T) {
	ts := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	ordered := []Entry{
		{ID: "a", Source: SourceMatch, OccurredAt: ts.Add(2 * time.Second)},
		{ID: "b", Source: SourceMatch, OccurredAt: ts.Add(time.Second)},
		{ID: "a", Source: SourceSubmission, OccurredAt: ts.Add(time.Second)},
		{ID: "c", Source: SourceMatch, OccurredAt: ts},
	}
	assert.NoError(t, VerifyOrder(ordered))
	assert.NoError(t, VerifyOrder(nil))
	assert.NoError(t, VerifyOrder(ordered[:1]))

	// Страница старыми вперёд нарушает порядок ленты.
	reversed := []Entry{ordered[3], ordered[0]}
	assert.ErrorIs(t, VerifyOrder(reversed), shared.ErrFeedOrder)

	// Дубликат ключа - тоже нарушение: порядок строгий.
	duplicated := []Entry{ordered[0], ordered[0]}
	assert.ErrorIs(t, VerifyOrder(duplicated), shared.ErrFeedOrder)
}

func TestEntryKey(t *testing.T) {
	e := Entry{
		ID:         "m-42",
		Source:     SourceMatch,
		OccurredAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
	k := e.Key()
	assert.Equal(t, "m-42", k.ID)
	assert.Equal(t, SourceMatch, k.Source)
	assert.True(t, k.OccurredAt.Equal(e.OccurredAt))
}
