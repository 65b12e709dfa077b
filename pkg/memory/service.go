// Package memory provides a library-first API for the knowledge-graph store
// without MCP transport.
package memory

import (
	"context"

	"github.com/qforge-dev/qmemory/internal/apptype"
	"github.com/qforge-dev/qmemory/internal/database"
	"github.com/qforge-dev/qmemory/internal/embeddings"
	"github.com/qforge-dev/qmemory/internal/graph"
	"github.com/qforge-dev/qmemory/internal/vectorindex"
)

// Re-exported graph types for library consumers.
type (
	Entity              = apptype.Entity
	Relation            = apptype.Relation
	KnowledgeGraph      = apptype.KnowledgeGraph
	ObservationAddition = apptype.ObservationAddition
	ObservationAdded    = apptype.ObservationAdded
	ObservationDeletion = apptype.ObservationDeletion
)

// ErrEntityNotFound is returned by AddObservations for missing targets.
var ErrEntityNotFound = graph.ErrEntityNotFound

// Service wires the store, embedding producer, vector index, and manager
// into a single owned instance.
type Service struct {
	store   *database.Store
	manager *graph.Manager
}

// NewService constructs a Service with the provided config.
func NewService(cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	store, err := database.NewStore(cfg.storeConfig())
	if err != nil {
		return nil, err
	}

	producer, err := embeddings.New(cfg.embeddingsConfig())
	if err != nil {
		store.Close()
		return nil, err
	}

	var index graph.Index
	if producer != nil {
		ix, err := vectorindex.New(store.Conn(), producer.Dimensions())
		if err != nil {
			store.Close()
			return nil, err
		}
		index = ix
	}

	manager := graph.New(store, index, producer, cfg.graphOptions())
	return &Service{store: store, manager: manager}, nil
}

// Close drains background enrichment and releases the store.
func (s *Service) Close() error {
	s.manager.Close()
	return s.store.Close()
}

// CreateEntities inserts entities, returning only those newly created.
func (s *Service) CreateEntities(ctx context.Context, entities []Entity) ([]Entity, error) {
	return s.manager.CreateEntities(ctx, entities)
}

// CreateRelations inserts relations, returning only those newly created.
func (s *Service) CreateRelations(ctx context.Context, relations []Relation) ([]Relation, error) {
	return s.manager.CreateRelations(ctx, relations)
}

// AddObservations appends new observations to existing entities.
func (s *Service) AddObservations(ctx context.Context, additions []ObservationAddition) ([]ObservationAdded, error) {
	return s.manager.AddObservations(ctx, additions)
}

// DeleteEntities removes entities with cascade; missing names are skipped.
func (s *Service) DeleteEntities(ctx context.Context, names []string) error {
	return s.manager.DeleteEntities(ctx, names)
}

// DeleteObservations removes specific observation strings from entities.
func (s *Service) DeleteObservations(ctx context.Context, deletions []ObservationDeletion) error {
	return s.manager.DeleteObservations(ctx, deletions)
}

// DeleteRelations removes matching relation triples.
func (s *Service) DeleteRelations(ctx context.Context, relations []Relation) error {
	return s.manager.DeleteRelations(ctx, relations)
}

// ReadGraph returns the full knowledge graph.
func (s *Service) ReadGraph(ctx context.Context) KnowledgeGraph {
	return s.manager.ReadGraph(ctx)
}

// SearchNodes runs the configured search strategy.
func (s *Service) SearchNodes(ctx context.Context, query string, topK int) (KnowledgeGraph, error) {
	return s.manager.SearchNodes(ctx, query, topK)
}

// OpenNodes fetches entities by exact name plus relations among them.
func (s *Service) OpenNodes(ctx context.Context, names []string) (KnowledgeGraph, error) {
	return s.manager.OpenNodes(ctx, names)
}

// Flush waits for pending background enrichment; useful before shutdown or
// when a caller wants vector search to reflect recent writes.
func (s *Service) Flush() {
	s.manager.Flush()
}
