package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/qforge-dev/qmemory/internal/apptype"
	"github.com/qforge-dev/qmemory/internal/metrics"
)

// UpsertRelationIfAbsent inserts the relation triple unless an identical
// triple already exists. It returns whether a row was created.
func (s *Store) UpsertRelationIfAbsent(ctx context.Context, relation apptype.Relation) (bool, error) {
	done := metrics.TimeOp("store_upsert_relation")
	success := false
	defer func() { done(success) }()

	if relation.From == "" || relation.To == "" || relation.RelationType == "" {
		return false, fmt.Errorf("relation fields cannot be empty")
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO relations (source, target, relation_type) VALUES (?, ?, ?)",
		relation.From, relation.To, relation.RelationType)
	if err != nil {
		return false, fmt.Errorf("failed to insert relation (%s -> %s): %w", relation.From, relation.To, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	success = true
	return rowsAffected > 0, nil
}

// DeleteRelation deletes a specific triple. Missing triples are a silent no-op.
func (s *Store) DeleteRelation(ctx context.Context, relation apptype.Relation) error {
	done := metrics.TimeOp("store_delete_relation")
	success := false
	defer func() { done(success) }()

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM relations WHERE source = ? AND target = ? AND relation_type = ?",
		relation.From, relation.To, relation.RelationType); err != nil {
		return fmt.Errorf("failed to delete relation: %w", err)
	}

	success = true
	return nil
}

// DeleteRelationsTouching deletes every relation where the name appears as
// source or target.
func (s *Store) DeleteRelationsTouching(ctx context.Context, name string) error {
	done := metrics.TimeOp("store_delete_relations_touching")
	success := false
	defer func() { done(success) }()

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM relations WHERE source = ? OR target = ?", name, name); err != nil {
		return fmt.Errorf("failed to delete relations touching %q: %w", name, err)
	}

	success = true
	return nil
}

// RelationsAmong retrieves relations whose source AND target are both in the
// supplied name set.
func (s *Store) RelationsAmong(ctx context.Context, names []string) ([]apptype.Relation, error) {
	if len(names) == 0 {
		return []apptype.Relation{}, nil
	}

	placeholders := strings.Repeat("?,", len(names))
	placeholders = placeholders[:len(placeholders)-1]

	query := fmt.Sprintf(`
		SELECT source, target, relation_type
		FROM relations
		WHERE source IN (%s) AND target IN (%s)
		ORDER BY id
	`, placeholders, placeholders)

	args := make([]interface{}, len(names)*2)
	for i, name := range names {
		args[i] = name
		args[i+len(names)] = name
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	defer rows.Close()

	relations := make([]apptype.Relation, 0)
	for rows.Next() {
		var source, target, relationType string
		if err := rows.Scan(&source, &target, &relationType); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		relations = append(relations, apptype.Relation{
			From:         source,
			To:           target,
			RelationType: relationType,
		})
	}

	return relations, rows.Err()
}
