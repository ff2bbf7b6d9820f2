package goals

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posto-dashboard/internal/models"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"jsonfile": func(t *testing.T) Store {
			s, err := Open("jsonfile:" + filepath.Join(t.TempDir(), "nested", "goals.json"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := Open("sqlite:" + filepath.Join(t.TempDir(), "goals.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func testGoal(id string, view models.View, cat string, target float64, at time.Time) Goal {
	return Goal{ID: id, View: view, Category: cat, Target: target, CreatedAt: at, UpdatedAt: at}
}

func TestStores(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })

			at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
			require.NoError(t, s.Put(ctx, testGoal("b", models.ViewFuel, "ETANOL", 100, at)))
			require.NoError(t, s.Put(ctx, testGoal("a", models.ViewFuel, "GNV", 50, at.Add(time.Second))))
			require.NoError(t, s.Put(ctx, testGoal("c", models.ViewStore, "BEBIDAS", 10, at)))

			list, err := s.List(ctx, models.ViewFuel)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "b", list[0].ID, "insertion order")
			assert.Equal(t, "a", list[1].ID)

			updated := list[0]
			updated.Target = 150
			updated.UpdatedAt = at.Add(time.Hour)
			require.NoError(t, s.Put(ctx, updated))

			got, err := s.Get(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, 150.0, got.Target)
			assert.True(t, got.CreatedAt.Equal(at))
			assert.True(t, got.UpdatedAt.Equal(at.Add(time.Hour)))

			list, err = s.List(ctx, models.ViewFuel)
			require.NoError(t, err)
			assert.Equal(t, "b", list[0].ID, "update keeps position")

			require.NoError(t, s.Delete(ctx, "a"))
			assert.ErrorIs(t, s.Delete(ctx, "a"), ErrNotFound)
			_, err = s.Get(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)

			_, ok, err := s.MonthlyTarget(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.SetMonthlyTarget(ctx, 310000.5))
			v, ok, err := s.MonthlyTarget(ctx)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 310000.5, v)
		})
	}
}

func TestJSONFile_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "goals.json")

	s, err := OpenJSONFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, testGoal("x", models.ViewStore, "HIGIENE", 2000, time.Now().UTC())))
	require.NoError(t, s.SetMonthlyTarget(ctx, 1000))

	reopened, err := OpenJSONFile(path)
	require.NoError(t, err)

	list, err := reopened.List(ctx, models.ViewStore)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "HIGIENE", list[0].Category)

	v, ok, err := reopened.MonthlyTarget(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1000.0, v)
}

func TestOpen_RejectsUnknownBackends(t *testing.T) {
	for _, uri := range []string{"postgres:foo", "jsonfile:", "goals.json"} {
		_, err := Open(uri)
		assert.Error(t, err, uri)
	}
}
