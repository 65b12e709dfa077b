package vectorindex

import (
	"context"
	"database/sql"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "github.com/tursodatabase/go-libsql"
)

func setupTestIndex(t *testing.T, name string, dims int) *Index {
	t.Helper()
	db, err := sql.Open("libsql", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	index, err := New(db, dims)
	require.NoError(t, err)
	return index
}

func TestUpsertAndNearest(t *testing.T) {
	index := setupTestIndex(t, "vx-upsert-nearest", 3)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, 1, []float32{1, 0, 0}))
	require.NoError(t, index.Upsert(ctx, 2, []float32{0, 1, 0}))
	require.NoError(t, index.Upsert(ctx, 3, []float32{0.9, 0.1, 0}))

	neighbors, err := index.Nearest(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, int64(1), neighbors[0].ID)
	assert.Equal(t, int64(3), neighbors[1].ID)
	assert.LessOrEqual(t, neighbors[0].Distance, neighbors[1].Distance)
}

func TestNearestFewerThanK(t *testing.T) {
	index := setupTestIndex(t, "vx-fewer-than-k", 3)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, 1, []float32{1, 0, 0}))

	neighbors, err := index.Nearest(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, neighbors, 1)
}

func TestNearestEqualDistancesStableOrder(t *testing.T) {
	index := setupTestIndex(t, "vx-tie-break", 3)
	ctx := context.Background()

	// Identical vectors are all at the same distance from the query; the
	// entity id decides their order.
	same := []float32{1, 0, 0}
	for _, id := range []int64{7, 3, 5} {
		require.NoError(t, index.Upsert(ctx, id, same))
	}

	first, err := index.Nearest(ctx, same, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, int64(3), first[0].ID)
	assert.Equal(t, int64(5), first[1].ID)
	assert.Equal(t, int64(7), first[2].ID)

	for i := 0; i < 10; i++ {
		again, err := index.Nearest(ctx, same, 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNearestEmptyIndex(t *testing.T) {
	index := setupTestIndex(t, "vx-empty", 3)

	neighbors, err := index.Nearest(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestUpsertReplaces(t *testing.T) {
	index := setupTestIndex(t, "vx-replace", 3)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, 1, []float32{1, 0, 0}))
	require.NoError(t, index.Upsert(ctx, 2, []float32{0, 1, 0}))
	// Re-point entity 1 away from the query vector.
	require.NoError(t, index.Upsert(ctx, 1, []float32{0, 0.9, 0.1}))

	neighbors, err := index.Nearest(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, int64(2), neighbors[0].ID)
}

func TestUpsertConcurrentSameID(t *testing.T) {
	index := setupTestIndex(t, "vx-concurrent", 3)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- index.Upsert(ctx, 1, []float32{float32(i), 1, 0})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	neighbors, err := index.Nearest(ctx, []float32{0, 1, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, neighbors, 1)
}

func TestDelete(t *testing.T) {
	index := setupTestIndex(t, "vx-delete", 3)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, 1, []float32{1, 0, 0}))
	require.NoError(t, index.Delete(ctx, 1))
	// Deleting an absent row is a no-op.
	require.NoError(t, index.Delete(ctx, 42))

	neighbors, err := index.Nearest(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestUpsertDimensionMismatch(t *testing.T) {
	index := setupTestIndex(t, "vx-dims", 3)
	err := index.Upsert(context.Background(), 1, []float32{1, 0})
	assert.Error(t, err)
}

func TestVectorToString(t *testing.T) {
	index := setupTestIndex(t, "vx-to-string", 3)

	s, err := index.vectorToString([]float32{1, 0.5, 0})
	require.NoError(t, err)
	assert.Equal(t, "[1.000000, 0.500000, 0.000000]", s)

	// Non-finite values are sanitized rather than rejected.
	s, err = index.vectorToString([]float32{float32(math.NaN()), 1, 0})
	require.NoError(t, err)
	assert.Equal(t, "[0.000000, 1.000000, 0.000000]", s)

	_, err = index.vectorToString([]float32{1, 0})
	assert.Error(t, err)
}
