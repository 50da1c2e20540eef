package state

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapboard/internal/testutil"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// fixedClock returns a clock that advances one second per call.
func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	assert.Equal(t, ":memory:", store.Path())
	require.NoError(t, store.Close())
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	require.NoError(t, store.Migrate())

	d := &core.Dashboard{Data: core.DashboardData{Title: "persisted"}}
	require.NoError(t, store.CreateDashboard(context.Background(), d))
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path))
	defer func() { _ = reopened.Close() }()
	require.NoError(t, reopened.Migrate())

	got, err := reopened.GetDashboard(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Data.Title)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	assert.EqualError(t, store.Migrate(), "database not opened")
	assert.EqualError(t, store.CreateDashboard(ctx, &core.Dashboard{}), "database not opened")
	_, err := store.GetDashboard(ctx, "x")
	assert.EqualError(t, err, "database not opened")
	_, err = store.ListDashboards(ctx)
	assert.EqualError(t, err, "database not opened")
	_, err = store.UpdateDashboard(ctx, &core.Dashboard{})
	assert.EqualError(t, err, "database not opened")
	assert.EqualError(t, store.DeleteDashboard(ctx, "x"), "database not opened")
	_, err = store.GetMigrationVersion()
	assert.EqualError(t, err, "database not opened")
}

func TestSQLiteStore_MigrationVersion(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Running migrations twice is a no-op.
	require.NoError(t, store.Migrate())
}

func TestSQLiteStore_DashboardLifecycle(t *testing.T) {
	store := setupTestStore(t)
	store.now = fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	d := &core.Dashboard{
		Data: core.DashboardData{
			Title:       "Service overview",
			Description: "p99 and error rate",
			Tags:        []string{"apm", "prod"},
			Layout: []core.LayoutEntry{
				{I: core.EmptyWidgetID},
				{I: "p1", W: 6, H: 2},
			},
			Widgets: []json.RawMessage{json.RawMessage(`{"id":"p1","panelTypes":"graph"}`)},
		},
		CreatedBy: "alice",
	}
	require.NoError(t, store.CreateDashboard(ctx, d))
	require.NotEmpty(t, d.ID)
	assert.Equal(t, "alice", d.UpdatedBy)

	got, err := store.GetDashboard(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Data.Title, got.Data.Title)
	assert.Equal(t, d.Data.Tags, got.Data.Tags)
	assert.Equal(t, d.Data.Layout, got.Data.Layout)
	require.Len(t, got.Data.Widgets, 1)
	assert.JSONEq(t, `{"id":"p1","panelTypes":"graph"}`, string(got.Data.Widgets[0]))
	assert.True(t, got.CreatedAt.Equal(d.CreatedAt))

	// Update returns the stored echo with a refreshed UpdatedAt.
	edit := got.Clone()
	edit.Data.Title = "Renamed"
	edit.UpdatedBy = "bob"
	edit.CreatedBy = "mallory"
	updated, err := store.UpdateDashboard(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Data.Title)
	assert.Equal(t, "bob", updated.UpdatedBy)
	assert.Equal(t, "alice", updated.CreatedBy)
	assert.True(t, updated.UpdatedAt.After(got.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(got.CreatedAt))

	// Delete then get reports not found.
	require.NoError(t, store.DeleteDashboard(ctx, d.ID))
	_, err = store.GetDashboard(ctx, d.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestSQLiteStore_ListDashboards(t *testing.T) {
	store := setupTestStore(t)
	store.now = fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	list, err := store.ListDashboards(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	for _, title := range []string{"first", "second", "third"} {
		require.NoError(t, store.CreateDashboard(ctx, &core.Dashboard{Data: core.DashboardData{Title: title}}))
	}

	list, err = store.ListDashboards(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "first", list[0].Data.Title)
	assert.Equal(t, "third", list[2].Data.Title)
}

func TestSQLiteStore_ListDashboards_SubSecondOrder(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)
	// .1s and .12s print as ".1Z" and ".12Z" in RFC 3339, which sort the
	// wrong way round as text. The last two share a timestamp.
	times := []time.Time{
		base.Add(100 * time.Millisecond),
		base.Add(120 * time.Millisecond),
		base.Add(120 * time.Millisecond),
	}
	next := 0
	store.now = func() time.Time {
		ts := times[next]
		next++
		return ts
	}
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		require.NoError(t, store.CreateDashboard(ctx, &core.Dashboard{Data: core.DashboardData{Title: title}}))
	}

	list, err := store.ListDashboards(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "first", list[0].Data.Title)
	assert.Equal(t, "second", list[1].Data.Title)
	assert.Equal(t, "third", list[2].Data.Title)
	assert.True(t, list[0].CreatedAt.Equal(times[0]))
}

func TestSQLiteStore_StoresFixedWidthUTC(t *testing.T) {
	store := setupTestStore(t)
	store.now = func() time.Time {
		return time.Date(2024, 1, 1, 2, 0, 5, 100_000_000, time.FixedZone("CET", 3600))
	}
	ctx := context.Background()
	d := &core.Dashboard{Data: core.DashboardData{Title: "zoned"}}
	require.NoError(t, store.CreateDashboard(ctx, d))

	var raw string
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT created_at FROM dashboards WHERE id = ?`, d.ID).Scan(&raw))
	assert.Equal(t, "2024-01-01T01:00:05.100000000Z", raw)

	got, err := store.GetDashboard(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(d.CreatedAt))
}

func TestSQLiteStore_MissingDashboard(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{
			name: "get",
			call: func() error {
				_, err := store.GetDashboard(ctx, "missing")
				return err
			},
		},
		{
			name: "update",
			call: func() error {
				_, err := store.UpdateDashboard(ctx, &core.Dashboard{ID: "missing"})
				return err
			},
		},
		{
			name: "delete",
			call: func() error {
				return store.DeleteDashboard(ctx, "missing")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrNotFound))
			assert.Contains(t, err.Error(), "missing")
		})
	}
}

func TestSQLiteStore_DriverErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewSQLiteStoreFromDB(db, nil)
	ctx := context.Background()
	diskErr := errors.New("disk I/O error")

	t.Run("get wraps driver error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM dashboards WHERE id =`).
			WithArgs("abc").
			WillReturnError(diskErr)

		_, err := store.GetDashboard(ctx, "abc")
		require.Error(t, err)
		assert.ErrorIs(t, err, diskErr)
		assert.False(t, errors.Is(err, core.ErrNotFound))
		assert.Contains(t, err.Error(), "failed to get dashboard")
	})

	t.Run("list wraps driver error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM dashboards ORDER BY`).WillReturnError(diskErr)

		_, err := store.ListDashboards(ctx)
		assert.ErrorIs(t, err, diskErr)
	})

	t.Run("corrupt data column", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at", "created_by", "updated_by"}).
			AddRow("abc", "{not json", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z", "", "")
		mock.ExpectQuery(`SELECT (.+) FROM dashboards WHERE id =`).WithArgs("abc").WillReturnRows(rows)

		_, err := store.GetDashboard(ctx, "abc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode dashboard abc")
	})

	t.Run("update reports not found when no row changed", func(t *testing.T) {
		mock.ExpectExec(`UPDATE dashboards SET`).WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := store.UpdateDashboard(ctx, &core.Dashboard{ID: "gone"})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("create wraps driver error", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO dashboards`).WillReturnError(diskErr)

		err := store.CreateDashboard(ctx, &core.Dashboard{})
		assert.ErrorIs(t, err, diskErr)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
