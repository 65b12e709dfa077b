// Package vectorindex maintains the nearest-neighbor index over entity
// embeddings. The index is derived state keyed by the entity's internal
// numeric id; it is never authoritative for entity existence.
package vectorindex

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"

	"github.com/qforge-dev/qmemory/internal/metrics"
)

// Neighbor is one nearest-neighbor match, ascending by Distance.
type Neighbor struct {
	ID       int64
	Distance float64
}

// Index stores fixed-dimension embedding vectors in an entity_vectors table
// colocated with the primary rows.
type Index struct {
	db   *sql.DB
	dims int

	capMu      sync.Mutex
	capProbed  bool
	vectorTopK bool
}

// New ensures the vector table and ANN index exist and returns the index.
func New(db *sql.DB, dims int) (*Index, error) {
	if dims <= 0 || dims > 65536 {
		return nil, fmt.Errorf("embedding dimensions must be between 1 and 65536, got %d", dims)
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS entity_vectors (
            entity_id INTEGER PRIMARY KEY,
            embedding F32_BLOB(%d) NOT NULL
        )`, dims),
		`CREATE INDEX IF NOT EXISTS idx_entity_vectors_embedding ON entity_vectors(libsql_vector_idx(embedding))`,
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
	}

	return &Index{db: db, dims: dims}, nil
}

// Dimensions returns the fixed vector dimension the index was created with.
func (ix *Index) Dimensions() int { return ix.dims }

// Upsert inserts or replaces the vector for the given entity id. A single
// conflict-clause statement keeps concurrent workers writing the same id from
// tripping the primary key.
func (ix *Index) Upsert(ctx context.Context, id int64, vector []float32) error {
	done := metrics.TimeOp("index_upsert")
	success := false
	defer func() { done(success) }()

	vectorString, err := ix.vectorToString(vector)
	if err != nil {
		return fmt.Errorf("failed to convert embedding for entity id %d: %w", id, err)
	}

	if _, err := ix.db.ExecContext(ctx, `
		INSERT INTO entity_vectors (entity_id, embedding) VALUES (?, vector32(?))
		ON CONFLICT(entity_id) DO UPDATE SET embedding = excluded.embedding`,
		id, vectorString); err != nil {
		return fmt.Errorf("failed to upsert vector for entity id %d: %w", id, err)
	}

	success = true
	return nil
}

// Delete removes the vector for the given entity id. Missing ids are a
// silent no-op.
func (ix *Index) Delete(ctx context.Context, id int64) error {
	done := metrics.TimeOp("index_delete")
	success := false
	defer func() { done(success) }()

	if _, err := ix.db.ExecContext(ctx,
		"DELETE FROM entity_vectors WHERE entity_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete vector for entity id %d: %w", id, err)
	}

	success = true
	return nil
}

// Nearest returns up to k entity ids ordered by ascending cosine distance
// from the query vector. Equal distances tie-break on entity id so repeated
// queries against unchanged data are stable.
func (ix *Index) Nearest(ctx context.Context, vector []float32, k int) ([]Neighbor, error) {
	done := metrics.TimeOp("index_nearest")
	success := false
	defer func() { done(success) }()

	if k <= 0 {
		return []Neighbor{}, nil
	}
	vectorString, err := ix.vectorToString(vector)
	if err != nil {
		return nil, fmt.Errorf("failed to convert query embedding: %w", err)
	}

	var rows *sql.Rows
	if ix.annAvailable(ctx) {
		rows, err = ix.db.QueryContext(ctx, `
			WITH vt AS (
				SELECT id FROM vector_top_k('idx_entity_vectors_embedding', vector32(?), ?)
			)
			SELECT v.entity_id, vector_distance_cos(v.embedding, vector32(?)) AS distance
			FROM vt JOIN entity_vectors v ON v.rowid = vt.id
			ORDER BY distance ASC, v.entity_id ASC
			LIMIT ?`, vectorString, k, vectorString, k)
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "no such function: vector_top_k") {
			ix.disableANN()
			rows = nil
		} else if err != nil {
			return nil, fmt.Errorf("failed ANN search: %w", err)
		}
	}
	if rows == nil {
		rows, err = ix.db.QueryContext(ctx, `
			SELECT entity_id, vector_distance_cos(embedding, vector32(?)) AS distance
			FROM entity_vectors
			ORDER BY distance ASC, entity_id ASC
			LIMIT ?`, vectorString, k)
		if err != nil {
			return nil, fmt.Errorf("failed to execute similarity search: %w", err)
		}
	}
	defer rows.Close()

	neighbors := make([]Neighbor, 0, k)
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.ID, &n.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan search result row: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}

	success = true
	return neighbors, nil
}

// annAvailable probes vector_top_k once and caches the result.
func (ix *Index) annAvailable(ctx context.Context) bool {
	ix.capMu.Lock()
	defer ix.capMu.Unlock()
	if ix.capProbed {
		return ix.vectorTopK
	}
	ix.capProbed = true

	zero, err := ix.vectorToString(make([]float32, ix.dims))
	if err != nil {
		ix.vectorTopK = false
		return false
	}
	rows, err := ix.db.QueryContext(ctx,
		"SELECT id FROM vector_top_k('idx_entity_vectors_embedding', vector32(?), 1) LIMIT 1", zero)
	if rows != nil {
		rows.Close()
	}
	ix.vectorTopK = err == nil
	return ix.vectorTopK
}

func (ix *Index) disableANN() {
	ix.capMu.Lock()
	ix.vectorTopK = false
	ix.capMu.Unlock()
}

// vectorToString converts a float32 array to the libSQL vector string format
func (ix *Index) vectorToString(numbers []float32) (string, error) {
	if len(numbers) != ix.dims {
		return "", fmt.Errorf("vector must have exactly %d dimensions, got %d", ix.dims, len(numbers))
	}

	strNumbers := make([]string, len(numbers))
	for i, n := range numbers {
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			log.Printf("Invalid vector value detected, using 0.0 instead of: %f", n)
			n = 0.0
		}
		strNumbers[i] = fmt.Sprintf("%f", n)
	}

	return fmt.Sprintf("[%s]", strings.Join(strNumbers, ", ")), nil
}
