package database

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/qforge-dev/qmemory/internal/apptype"
	"github.com/qforge-dev/qmemory/internal/metrics"
)

// ScanAll materializes the full graph. It never fails partially: any storage
// error yields an empty graph so a corrupt row can never corrupt a read
// response.
func (s *Store) ScanAll(ctx context.Context) apptype.KnowledgeGraph {
	done := metrics.TimeOp("store_scan_all")
	success := false
	defer func() { done(success) }()

	entities, err := s.allEntities(ctx)
	if err != nil {
		log.Printf("Warning: full graph scan failed, returning empty graph: %v", err)
		return apptype.EmptyGraph()
	}

	relations, err := s.allRelations(ctx)
	if err != nil {
		log.Printf("Warning: full relation scan failed, returning empty graph: %v", err)
		return apptype.EmptyGraph()
	}

	success = true
	return apptype.KnowledgeGraph{Entities: entities, Relations: relations}
}

// FilterByNames returns the requested entities that exist plus relations
// whose both endpoints are in the supplied set. Missing names are dropped.
func (s *Store) FilterByNames(ctx context.Context, names []string) (apptype.KnowledgeGraph, error) {
	done := metrics.TimeOp("store_filter_by_names")
	success := false
	defer func() { done(success) }()

	if len(names) == 0 {
		return apptype.EmptyGraph(), nil
	}

	placeholders := strings.Repeat("?,", len(names))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(names))
	for i, name := range names {
		args[i] = name
	}

	query := fmt.Sprintf("SELECT name, entity_type FROM entities WHERE name IN (%s) ORDER BY id", placeholders)
	entities, err := s.queryEntities(ctx, query, args...)
	if err != nil {
		return apptype.EmptyGraph(), err
	}

	relations, err := s.RelationsAmong(ctx, names)
	if err != nil {
		return apptype.EmptyGraph(), err
	}

	success = true
	return apptype.KnowledgeGraph{Entities: entities, Relations: relations}, nil
}

// SearchLexical performs case-insensitive substring search against entity
// names, entity types, and observation content. All matches are returned.
func (s *Store) SearchLexical(ctx context.Context, query string) ([]apptype.Entity, error) {
	done := metrics.TimeOp("store_search_lexical")
	success := false
	defer func() { done(success) }()

	pattern := "%" + strings.ToLower(query) + "%"
	entities, err := s.queryEntities(ctx, `
		SELECT e.name, e.entity_type
		FROM entities e
		LEFT JOIN observations o ON e.name = o.entity_name
		WHERE LOWER(e.name) LIKE ? OR LOWER(e.entity_type) LIKE ? OR LOWER(o.content) LIKE ?
		GROUP BY e.id, e.name, e.entity_type
		ORDER BY e.id
	`, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to execute entity search: %w", err)
	}

	success = true
	return entities, nil
}

func (s *Store) allEntities(ctx context.Context) ([]apptype.Entity, error) {
	return s.queryEntities(ctx, "SELECT name, entity_type FROM entities ORDER BY id")
}

func (s *Store) allRelations(ctx context.Context) ([]apptype.Relation, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source, target, relation_type FROM relations ORDER BY id")
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

// queryEntities runs a (name, entity_type) query and hydrates observations
// for each row.
func (s *Store) queryEntities(ctx context.Context, query string, args ...interface{}) ([]apptype.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	type row struct {
		name       string
		entityType string
	}
	scanned := make([]row, 0)
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.name, &r.entityType); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		scanned = append(scanned, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}

	entities := make([]apptype.Entity, 0, len(scanned))
	for _, r := range scanned {
		observations, err := s.getEntityObservations(ctx, r.name)
		if err != nil {
			return nil, err
		}
		entities = append(entities, apptype.Entity{
			Name:         r.name,
			EntityType:   r.entityType,
			Observations: observations,
		})
	}
	return entities, nil
}
