package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "budgets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close(context.Background()) })
	return repo
}

func TestRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("success - unknown tenant has zero spend and zero limit", func(t *testing.T) {
		repo := newTestRepository(t)

		st, err := repo.FetchBudget(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "acme", st.TenantID)
		assert.Zero(t, st.Spend)
		assert.Zero(t, st.Limit)

		_, err = repo.Get(ctx, "acme")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("success - set limit then add spend", func(t *testing.T) {
		repo := newTestRepository(t)

		require.NoError(t, repo.SetLimit(ctx, "acme", 100, 0.8, 1.1))
		total, err := repo.AddSpend(ctx, "acme", 42.5)
		require.NoError(t, err)
		assert.Equal(t, 42.5, total)

		st, err := repo.FetchBudget(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, 42.5, st.Spend)
		assert.Equal(t, 100.0, st.Limit)
		assert.Equal(t, 0.8, st.AlertThreshold)
		assert.Equal(t, 1.1, st.GraceThreshold)
	})

	t.Run("set limit keeps spend", func(t *testing.T) {
		repo := newTestRepository(t)

		_, err := repo.AddSpend(ctx, "acme", 10)
		require.NoError(t, err)
		require.NoError(t, repo.SetLimit(ctx, "acme", 200, 0, 0))

		st, err := repo.Get(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, 10.0, st.Spend)
		assert.Equal(t, 200.0, st.Limit)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		repo := newTestRepository(t)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.AddSpend(ctx, "acme", 1)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		st, err := repo.Get(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, 20.0, st.Spend)
	})

	t.Run("error - negative values", func(t *testing.T) {
		repo := newTestRepository(t)
		require.Error(t, repo.SetLimit(ctx, "acme", -1, 0, 0))
		_, err := repo.AddSpend(ctx, "acme", -5)
		require.Error(t, err)
	})

	t.Run("list", func(t *testing.T) {
		repo := newTestRepository(t)
		require.NoError(t, repo.SetLimit(ctx, "globex", 50, 0, 0))
		require.NoError(t, repo.SetLimit(ctx, "acme", 100, 0, 0))

		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "acme", all[0].TenantID)
	})
}
