package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-negishi/calendar-kpi-aggregator/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "nested", "kpi.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func snapshotAt(id string, calculatedAt time.Time, includeCompany bool) *domain.CalendarKPISnapshot {
	return &domain.CalendarKPISnapshot{
		ID:                      id,
		PeriodStart:             calculatedAt.AddDate(0, 0, -30),
		PeriodEnd:               calculatedAt,
		IncludeCompanyCalendars: includeCompany,
		CalculatedAt:            calculatedAt,
		LastUpdatedAt:           calculatedAt,
		TotalEvents:             5,
		DayOfWeekStats:          map[string]int{"Monday": 5},
	}
}

var baseTime = time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)

func TestNew_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi.db")

	first, err := New(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, first.Create(context.Background(), snapshotAt("a", baseTime, false)))
	require.NoError(t, first.Close())

	second, err := New(path, zerolog.Nop())
	require.NoError(t, err)
	defer second.Close()

	latest, err := second.FindLatest(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "a", latest.ID)
}

func TestCreateAndFindLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, snapshotAt("old", baseTime.Add(-time.Hour), false)))
	require.NoError(t, store.Create(ctx, snapshotAt("new", baseTime, false)))
	require.NoError(t, store.Create(ctx, snapshotAt("company", baseTime.Add(time.Hour), true)))

	latest, err := store.FindLatest(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)
	assert.Equal(t, 5, latest.TotalEvents)
	assert.Equal(t, 5, latest.DayOfWeekStats["Monday"])
	assert.True(t, baseTime.Equal(latest.CalculatedAt))

	company, err := store.FindLatest(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "company", company.ID)
	assert.True(t, company.IncludeCompanyCalendars)
}

func TestFindLatest_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FindLatest(context.Background(), false)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestCreate_DuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, snapshotAt("dup", baseTime, false)))
	err := store.Create(ctx, snapshotAt("dup", baseTime, false))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "スナップショットの保存に失敗しました")
}

func TestCreate_WithoutID(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Create(context.Background(), snapshotAt("", baseTime, false)))
}

func TestFindHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"d1", "d2", "d3"} {
		require.NoError(t, store.Create(ctx, snapshotAt(id, baseTime.AddDate(0, 0, i), i%2 == 0)))
	}

	history, err := store.FindHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "d3", history[0].ID)
	assert.Equal(t, "d2", history[1].ID)

	all, err := store.FindHistory(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFindHistory_Empty(t *testing.T) {
	store := newTestStore(t)

	history, err := store.FindHistory(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestDeleteOlderThan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, snapshotAt("ancient", baseTime.AddDate(0, 0, -100), false)))
	require.NoError(t, store.Create(ctx, snapshotAt("old", baseTime.AddDate(0, 0, -31), false)))
	require.NoError(t, store.Create(ctx, snapshotAt("recent", baseTime.AddDate(0, 0, -29), false)))

	deleted, err := store.DeleteOlderThan(ctx, 30, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	history, err := store.FindHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "recent", history[0].ID)

	deleted, err = store.DeleteOlderThan(ctx, 30, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}
