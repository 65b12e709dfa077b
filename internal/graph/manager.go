// Package graph implements the manager that owns the consistency contract
// between primary entity/relation rows and derived embedding vectors.
// Primary writes are synchronous and read-your-writes; vector updates run as
// background enrichment and are only eventually consistent.
package graph

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/qforge-dev/qmemory/internal/apptype"
	"github.com/qforge-dev/qmemory/internal/metrics"
	"github.com/qforge-dev/qmemory/internal/vectorindex"
)

// Store is the persistence surface the manager orchestrates. Implemented by
// *database.Store.
type Store interface {
	UpsertEntityIfAbsent(ctx context.Context, entity apptype.Entity) (id int64, created bool, err error)
	UpsertRelationIfAbsent(ctx context.Context, relation apptype.Relation) (created bool, err error)
	EntityID(ctx context.Context, name string) (int64, bool, error)
	GetObservations(ctx context.Context, name string) ([]string, bool, error)
	ReplaceObservations(ctx context.Context, name string, observations []string) error
	DeleteEntity(ctx context.Context, name string) error
	DeleteRelationsTouching(ctx context.Context, name string) error
	DeleteRelation(ctx context.Context, relation apptype.Relation) error
	ScanAll(ctx context.Context) apptype.KnowledgeGraph
	FilterByNames(ctx context.Context, names []string) (apptype.KnowledgeGraph, error)
	EntitiesByIDs(ctx context.Context, ids []int64) ([]apptype.Entity, error)
	SearchLexical(ctx context.Context, query string) ([]apptype.Entity, error)
	RelationsAmong(ctx context.Context, names []string) ([]apptype.Relation, error)
}

// Index is the derived nearest-neighbor surface. Implemented by
// *vectorindex.Index.
type Index interface {
	Upsert(ctx context.Context, id int64, vector []float32) error
	Delete(ctx context.Context, id int64) error
	Nearest(ctx context.Context, vector []float32, k int) ([]vectorindex.Neighbor, error)
}

// Producer turns entity text into a fixed-dimension vector. Implemented by
// embeddings.Provider.
type Producer interface {
	Name() string
	Dimensions() int
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

const defaultTopK = 5

// Options tunes the background enrichment pool.
type Options struct {
	// Workers is the number of enrichment workers (default 2).
	Workers int
	// QueueSize bounds the enrichment job queue (default 128). A full queue
	// drops jobs rather than blocking the write path.
	QueueSize int
}

// Manager exposes the entity/relation CRUD surface and the two search modes.
type Manager struct {
	store    Store
	index    Index
	producer Producer
	strategy SearchStrategy
	pool     *enrichPool
}

// New constructs a Manager. When producer and index are both non-nil the
// manager runs in enhanced mode: vector search plus background enrichment.
// Otherwise it runs in basic mode with lexical search only.
func New(store Store, index Index, producer Producer, opts Options) *Manager {
	m := &Manager{store: store, index: index, producer: producer}
	if producer != nil && index != nil {
		m.strategy = &VectorSearch{Store: store, Index: index, Producer: producer}
		m.pool = newEnrichPool(producer, index, opts)
	} else {
		m.strategy = &LexicalSearch{Store: store}
	}
	return m
}

// Enhanced reports whether vector search and enrichment are active.
func (m *Manager) Enhanced() bool { return m.pool != nil }

// Strategy returns the search strategy selected at construction.
func (m *Manager) Strategy() SearchStrategy { return m.strategy }

// CreateEntities creates the entities that do not already exist and returns
// them in input order. Existing names are ignored. In enhanced mode each
// created entity is scheduled for background embedding enrichment.
func (m *Manager) CreateEntities(ctx context.Context, entities []apptype.Entity) ([]apptype.Entity, error) {
	done := metrics.TimeOp("graph_create_entities")
	success := false
	defer func() { done(success) }()

	created := make([]apptype.Entity, 0, len(entities))
	for _, entity := range entities {
		id, isNew, err := m.store.UpsertEntityIfAbsent(ctx, entity)
		if err != nil {
			return nil, fmt.Errorf("failed to create entity %q: %w", entity.Name, err)
		}
		if !isNew {
			continue
		}
		created = append(created, entity)
		m.scheduleEnrichment(id, entity.Name, entity.Observations)
	}

	success = true
	return created, nil
}

// CreateRelations creates the relations whose triples do not already exist
// and returns them in input order.
func (m *Manager) CreateRelations(ctx context.Context, relations []apptype.Relation) ([]apptype.Relation, error) {
	done := metrics.TimeOp("graph_create_relations")
	success := false
	defer func() { done(success) }()

	created := make([]apptype.Relation, 0, len(relations))
	for _, relation := range relations {
		isNew, err := m.store.UpsertRelationIfAbsent(ctx, relation)
		if err != nil {
			return nil, fmt.Errorf("failed to create relation (%s -> %s): %w", relation.From, relation.To, err)
		}
		if isNew {
			created = append(created, relation)
		}
	}

	success = true
	return created, nil
}

// AddObservations appends the contents not already present on each target
// entity, preserving input order. A missing target fails the call with
// ErrEntityNotFound; this is the one operation that is not silent on absent
// entities. Entities that gained observations are re-scheduled for
// enrichment with their full current text.
func (m *Manager) AddObservations(ctx context.Context, additions []apptype.ObservationAddition) ([]apptype.ObservationAdded, error) {
	done := metrics.TimeOp("graph_add_observations")
	success := false
	defer func() { done(success) }()

	results := make([]apptype.ObservationAdded, 0, len(additions))
	for _, addition := range additions {
		existing, ok, err := m.store.GetObservations(ctx, addition.EntityName)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrEntityNotFound, addition.EntityName)
		}

		seen := make(map[string]struct{}, len(existing))
		for _, observation := range existing {
			seen[observation] = struct{}{}
		}
		added := make([]string, 0, len(addition.Contents))
		for _, content := range addition.Contents {
			if _, dup := seen[content]; dup {
				continue
			}
			seen[content] = struct{}{}
			added = append(added, content)
		}

		if len(added) > 0 {
			merged := append(append([]string{}, existing...), added...)
			if err := m.store.ReplaceObservations(ctx, addition.EntityName, merged); err != nil {
				return nil, err
			}
			if id, ok, err := m.store.EntityID(ctx, addition.EntityName); err != nil {
				metrics.Default().IncEnrichJob("dropped")
				log.Printf("Warning: id lookup failed for entity %q, skipping enrichment: %v", addition.EntityName, err)
			} else if ok {
				m.scheduleEnrichment(id, addition.EntityName, merged)
			}
		}

		results = append(results, apptype.ObservationAdded{
			EntityName:        addition.EntityName,
			AddedObservations: added,
		})
	}

	success = true
	return results, nil
}

// DeleteEntities removes the named entities, their vectors, and every
// relation touching them. Missing names are silently skipped.
func (m *Manager) DeleteEntities(ctx context.Context, names []string) error {
	done := metrics.TimeOp("graph_delete_entities")
	success := false
	defer func() { done(success) }()

	for _, name := range names {
		id, ok, err := m.store.EntityID(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if m.index != nil {
			if err := m.index.Delete(ctx, id); err != nil {
				return fmt.Errorf("failed to delete vector for entity %q: %w", name, err)
			}
		}
		if err := m.store.DeleteRelationsTouching(ctx, name); err != nil {
			return err
		}
		if err := m.store.DeleteEntity(ctx, name); err != nil {
			return err
		}
	}

	success = true
	return nil
}

// DeleteObservations removes exactly the listed observation strings from each
// target. Missing entities or observations are silently skipped. This
// deliberately does not re-trigger embedding work, unlike AddObservations.
func (m *Manager) DeleteObservations(ctx context.Context, deletions []apptype.ObservationDeletion) error {
	done := metrics.TimeOp("graph_delete_observations")
	success := false
	defer func() { done(success) }()

	for _, deletion := range deletions {
		existing, ok, err := m.store.GetObservations(ctx, deletion.EntityName)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		remove := make(map[string]struct{}, len(deletion.Observations))
		for _, observation := range deletion.Observations {
			remove[observation] = struct{}{}
		}
		remaining := make([]string, 0, len(existing))
		for _, observation := range existing {
			if _, drop := remove[observation]; drop {
				continue
			}
			remaining = append(remaining, observation)
		}

		if len(remaining) != len(existing) {
			if err := m.store.ReplaceObservations(ctx, deletion.EntityName, remaining); err != nil {
				return err
			}
		}
	}

	success = true
	return nil
}

// DeleteRelations deletes the matching triples. Missing triples are silently
// skipped.
func (m *Manager) DeleteRelations(ctx context.Context, relations []apptype.Relation) error {
	done := metrics.TimeOp("graph_delete_relations")
	success := false
	defer func() { done(success) }()

	for _, relation := range relations {
		if err := m.store.DeleteRelation(ctx, relation); err != nil {
			return err
		}
	}

	success = true
	return nil
}

// ReadGraph returns the full graph.
func (m *Manager) ReadGraph(ctx context.Context) apptype.KnowledgeGraph {
	return m.store.ScanAll(ctx)
}

// SearchNodes runs the search strategy selected at construction time.
func (m *Manager) SearchNodes(ctx context.Context, query string, topK int) (apptype.KnowledgeGraph, error) {
	done := metrics.TimeOp("graph_search_nodes")
	success := false
	defer func() { done(success) }()

	if topK <= 0 {
		topK = defaultTopK
	}
	graph, err := m.strategy.Search(ctx, query, topK)
	if err != nil {
		return apptype.EmptyGraph(), err
	}

	success = true
	return graph, nil
}

// OpenNodes returns the requested entities that exist plus relations with
// both endpoints in the requested set.
func (m *Manager) OpenNodes(ctx context.Context, names []string) (apptype.KnowledgeGraph, error) {
	done := metrics.TimeOp("graph_open_nodes")
	success := false
	defer func() { done(success) }()

	graph, err := m.store.FilterByNames(ctx, names)
	if err != nil {
		return apptype.EmptyGraph(), err
	}

	success = true
	return graph, nil
}

// Flush blocks until every enrichment job enqueued so far has been applied
// or dropped. Reads never require it; it exists for shutdown and tests.
func (m *Manager) Flush() {
	if m.pool != nil {
		m.pool.Flush()
	}
}

// Close stops enrichment intake and drains in-flight jobs. The store is
// owned by the caller and closed separately.
func (m *Manager) Close() {
	if m.pool != nil {
		m.pool.Stop()
	}
}

func (m *Manager) scheduleEnrichment(id int64, name string, observations []string) {
	if m.pool == nil {
		return
	}
	m.pool.Enqueue(id, embeddingInput(name, observations))
}

// embeddingInput is the entity text handed to the producer: the name
// followed by the observations, space-joined.
func embeddingInput(name string, observations []string) string {
	parts := make([]string, 0, len(observations)+1)
	parts = append(parts, name)
	parts = append(parts, observations...)
	return strings.Join(parts, " ")
}
