package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/qforge-dev/qmemory/internal/apptype"
	"github.com/qforge-dev/qmemory/internal/metrics"
)

// UpsertEntityIfAbsent inserts the entity and its observations unless the
// name already exists, in which case nothing is written. It returns the
// entity's internal id and whether a row was created.
func (s *Store) UpsertEntityIfAbsent(ctx context.Context, entity apptype.Entity) (int64, bool, error) {
	done := metrics.TimeOp("store_upsert_entity")
	success := false
	defer func() { done(success) }()

	if strings.TrimSpace(entity.Name) == "" {
		return 0, false, fmt.Errorf("entity name must be a non-empty string")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction for entity %q: %w", entity.Name, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO entities (name, entity_type) VALUES (?, ?)",
		entity.Name, entity.EntityType)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert entity %q: %w", entity.Name, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get rows affected for entity %q: %w", entity.Name, err)
	}
	created := rowsAffected > 0

	var id int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM entities WHERE name = ?", entity.Name).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("failed to resolve id for entity %q: %w", entity.Name, err)
	}

	if created {
		for _, observation := range entity.Observations {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO observations (entity_name, content) VALUES (?, ?)",
				entity.Name, observation); err != nil {
				return 0, false, fmt.Errorf("failed to insert observation for entity %q: %w", entity.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	success = true
	return id, created, nil
}

// EntityID resolves an entity name to its internal id. The second return
// value reports whether the entity exists.
func (s *Store) EntityID(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM entities WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up entity %q: %w", name, err)
	}
	return id, true, nil
}

// GetObservations returns an entity's observations in append order. The
// second return value reports whether the entity exists.
func (s *Store) GetObservations(ctx context.Context, name string) ([]string, bool, error) {
	if _, ok, err := s.EntityID(ctx, name); err != nil {
		return nil, false, err
	} else if !ok {
		return nil, false, nil
	}

	observations, err := s.getEntityObservations(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return observations, true, nil
}

// getEntityObservations retrieves all observations for an entity
func (s *Store) getEntityObservations(ctx context.Context, entityName string) ([]string, error) {
	stmt, err := s.getPreparedStmt(ctx, "SELECT content FROM observations WHERE entity_name = ? ORDER BY id")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, entityName)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	observations := make([]string, 0)
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		observations = append(observations, content)
	}
	return observations, rows.Err()
}

// ReplaceObservations overwrites the entity's observation sequence. Callers
// compute the merged sequence; the store does no deduplication itself.
func (s *Store) ReplaceObservations(ctx context.Context, name string, observations []string) error {
	done := metrics.TimeOp("store_replace_observations")
	success := false
	defer func() { done(success) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM observations WHERE entity_name = ?", name); err != nil {
		return fmt.Errorf("failed to delete old observations for entity %q: %w", name, err)
	}
	for _, observation := range observations {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO observations (entity_name, content) VALUES (?, ?)",
			name, observation); err != nil {
			return fmt.Errorf("failed to insert observation for entity %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// DeleteEntity removes the entity row and its observations. Missing entities
// are a silent no-op.
func (s *Store) DeleteEntity(ctx context.Context, name string) error {
	done := metrics.TimeOp("store_delete_entity")
	success := false
	defer func() { done(success) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM observations WHERE entity_name = ?", name); err != nil {
		return fmt.Errorf("failed to delete observations for entity %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM entities WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete entity %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// EntitiesByIDs materializes entities for the given internal ids, preserving
// the input order. Unknown ids are dropped.
func (s *Store) EntitiesByIDs(ctx context.Context, ids []int64) ([]apptype.Entity, error) {
	if len(ids) == 0 {
		return []apptype.Entity{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf("SELECT id, name, entity_type FROM entities WHERE id IN (%s)", placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities by id: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]apptype.Entity, len(ids))
	for rows.Next() {
		var id int64
		var name, entityType string
		if err := rows.Scan(&id, &name, &entityType); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		byID[id] = apptype.Entity{Name: name, EntityType: entityType}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entities := make([]apptype.Entity, 0, len(ids))
	for _, id := range ids {
		entity, ok := byID[id]
		if !ok {
			continue
		}
		observations, err := s.getEntityObservations(ctx, entity.Name)
		if err != nil {
			return nil, err
		}
		entity.Observations = observations
		entities = append(entities, entity)
	}
	return entities, nil
}
