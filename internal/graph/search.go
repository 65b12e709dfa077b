package graph

import (
	"context"
	"fmt"

	"github.com/qforge-dev/qmemory/internal/apptype"
)

// SearchStrategy allows pluggable search implementations, selected once at
// manager construction.
type SearchStrategy interface {
	// Search returns matching entities plus relations whose both endpoints
	// are among the matches.
	Search(ctx context.Context, query string, limit int) (apptype.KnowledgeGraph, error)
	// Name identifies the strategy ("lexical" or "vector").
	Name() string
}

// LexicalSearch matches case-insensitive substrings of entity names, types,
// and observation content. It returns all matches; limit is not applied.
type LexicalSearch struct {
	Store Store
}

func (s *LexicalSearch) Name() string { return "lexical" }

func (s *LexicalSearch) Search(ctx context.Context, query string, limit int) (apptype.KnowledgeGraph, error) {
	entities, err := s.Store.SearchLexical(ctx, query)
	if err != nil {
		return apptype.EmptyGraph(), fmt.Errorf("failed to perform entity search: %w", err)
	}
	if len(entities) == 0 {
		return apptype.EmptyGraph(), nil
	}

	names := make([]string, len(entities))
	for i, entity := range entities {
		names[i] = entity.Name
	}
	relations, err := s.Store.RelationsAmong(ctx, names)
	if err != nil {
		return apptype.EmptyGraph(), fmt.Errorf("failed to get relations: %w", err)
	}

	return apptype.KnowledgeGraph{Entities: entities, Relations: relations}, nil
}

// VectorSearch embeds the query and returns the limit nearest entities by
// embedding distance. An empty index yields an empty graph; there is no
// lexical fallback.
type VectorSearch struct {
	Store    Store
	Index    Index
	Producer Producer
}

func (s *VectorSearch) Name() string { return "vector" }

func (s *VectorSearch) Search(ctx context.Context, query string, limit int) (apptype.KnowledgeGraph, error) {
	vecs, err := s.Producer.Embed(ctx, []string{query})
	if err != nil {
		return apptype.EmptyGraph(), fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return apptype.EmptyGraph(), fmt.Errorf("embedding producer returned %d vectors for one query", len(vecs))
	}

	neighbors, err := s.Index.Nearest(ctx, vecs[0], limit)
	if err != nil {
		return apptype.EmptyGraph(), fmt.Errorf("failed similarity search: %w", err)
	}
	if len(neighbors) == 0 {
		return apptype.EmptyGraph(), nil
	}

	ids := make([]int64, len(neighbors))
	for i, neighbor := range neighbors {
		ids[i] = neighbor.ID
	}
	entities, err := s.Store.EntitiesByIDs(ctx, ids)
	if err != nil {
		return apptype.EmptyGraph(), fmt.Errorf("failed to hydrate entities: %w", err)
	}
	if len(entities) == 0 {
		return apptype.EmptyGraph(), nil
	}

	names := make([]string, len(entities))
	for i, entity := range entities {
		names[i] = entity.Name
	}
	relations, err := s.Store.RelationsAmong(ctx, names)
	if err != nil {
		return apptype.EmptyGraph(), fmt.Errorf("failed to get relations: %w", err)
	}

	return apptype.KnowledgeGraph{Entities: entities, Relations: relations}, nil
}
