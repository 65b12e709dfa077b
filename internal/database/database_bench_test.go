package database

import (
	"context"
	"strconv"
	"testing"

	"github.com/qforge-dev/qmemory/internal/apptype"
)

func setupBenchStore(b *testing.B, n int) (*Store, func()) {
	b.Helper()
	cfg := NewConfig()
	cfg.Path = "file:benchdb?mode=memory&cache=shared"
	store, err := NewStore(cfg)
	if err != nil {
		b.Fatalf("NewStore: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < n; i++ {
		entity := apptype.Entity{
			Name:       "e_" + strconv.Itoa(i),
			EntityType: "t",
			Observations: []string{
				"lorem ipsum",
				"dolor sit amet",
				"bench data",
			},
		}
		if _, _, err := store.UpsertEntityIfAbsent(ctx, entity); err != nil {
			b.Fatalf("UpsertEntityIfAbsent: %v", err)
		}
	}

	cleanup := func() { _ = store.Close() }
	return store, cleanup
}

func BenchmarkSearchLexical(b *testing.B) {
	store, cleanup := setupBenchStore(b, 2000)
	defer cleanup()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.SearchLexical(ctx, "lorem"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkScanAll(b *testing.B) {
	store, cleanup := setupBenchStore(b, 2000)
	defer cleanup()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		graph := store.ScanAll(ctx)
		if len(graph.Entities) == 0 {
			b.Fatal("empty scan")
		}
	}
}

func BenchmarkEntitiesByIDs(b *testing.B) {
	store, cleanup := setupBenchStore(b, 2000)
	defer cleanup()

	ctx := context.Background()
	ids := make([]int64, 10)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.EntitiesByIDs(ctx, ids); err != nil {
			b.Fatal(err)
		}
	}
}
