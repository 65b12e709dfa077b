// Package server exposes the graph manager over the MCP protocol. It parses
// structured tool requests, invokes manager operations, and serializes
// results; no graph semantics live here.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/qforge-dev/qmemory/internal/apptype"
	"github.com/qforge-dev/qmemory/internal/buildinfo"
	"github.com/qforge-dev/qmemory/internal/graph"
	"github.com/qforge-dev/qmemory/internal/metrics"
)

const serverName = "qmemory"

// MCPServer handles MCP protocol communication
type MCPServer struct {
	server        *mcp.Server
	manager       *graph.Manager
	embeddingDims int
}

// NewMCPServer creates a new MCP server around an explicitly constructed
// manager. embeddingDims is 0 in basic mode.
func NewMCPServer(manager *graph.Manager, embeddingDims int) *MCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: buildinfo.Version,
	}, nil)

	s := &MCPServer{
		server:        server,
		manager:       manager,
		embeddingDims: embeddingDims,
	}
	s.setupToolHandlers()
	return s
}

func mustSchema[T any](name string) *jsonschema.Schema {
	schema, err := jsonschema.For[T]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for %s: %v", name, err))
	}
	return schema
}

// setupToolHandlers registers all MCP tools
func (s *MCPServer) setupToolHandlers() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "create_entities",
		Title:        "Create Entities",
		Description:  "Create new entities with observations. Entities that already exist are ignored.",
		InputSchema:  mustSchema[apptype.CreateEntitiesArgs]("CreateEntitiesArgs"),
		OutputSchema: mustSchema[apptype.CreateEntitiesResult]("CreateEntitiesResult"),
	}, s.handleCreateEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "create_relations",
		Title:        "Create Relations",
		Description:  "Create relations between entities. Duplicate triples are ignored.",
		InputSchema:  mustSchema[apptype.CreateRelationsArgs]("CreateRelationsArgs"),
		OutputSchema: mustSchema[apptype.CreateRelationsResult]("CreateRelationsResult"),
	}, s.handleCreateRelations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "add_observations",
		Title:        "Add Observations",
		Description:  "Append new observations to existing entities. Fails if a target entity does not exist.",
		InputSchema:  mustSchema[apptype.AddObservationsArgs]("AddObservationsArgs"),
		OutputSchema: mustSchema[apptype.AddObservationsResult]("AddObservationsResult"),
	}, s.handleAddObservations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_entities",
		Title:       "Delete Entities",
		Description: "Delete entities and all their associated data (observations, relations, embeddings).",
		InputSchema: mustSchema[apptype.DeleteEntitiesArgs]("DeleteEntitiesArgs"),
	}, s.handleDeleteEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_observations",
		Title:       "Delete Observations",
		Description: "Remove specific observations from entities.",
		InputSchema: mustSchema[apptype.DeleteObservationsArgs]("DeleteObservationsArgs"),
	}, s.handleDeleteObservations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_relations",
		Title:       "Delete Relations",
		Description: "Delete specific relations between entities.",
		InputSchema: mustSchema[apptype.DeleteRelationsArgs]("DeleteRelationsArgs"),
	}, s.handleDeleteRelations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "read_graph",
		Title:        "Read Graph",
		Description:  "Read the entire knowledge graph.",
		InputSchema:  mustSchema[apptype.ReadGraphArgs]("ReadGraphArgs"),
		OutputSchema: mustSchema[apptype.KnowledgeGraph]("KnowledgeGraph (read)"),
	}, s.handleReadGraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "search_nodes",
		Title:        "Search Nodes",
		Description:  "Search for entities and their relations using the configured strategy (lexical substring or embedding similarity).",
		InputSchema:  mustSchema[apptype.SearchNodesArgs]("SearchNodesArgs"),
		OutputSchema: mustSchema[apptype.KnowledgeGraph]("KnowledgeGraph (search)"),
	}, s.handleSearchNodes)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "open_nodes",
		Title:        "Open Nodes",
		Description:  "Open specific entities by exact name, with relations among them.",
		InputSchema:  mustSchema[apptype.OpenNodesArgs]("OpenNodesArgs"),
		OutputSchema: mustSchema[apptype.KnowledgeGraph]("KnowledgeGraph (open)"),
	}, s.handleOpenNodes)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "health",
		Title:        "Health",
		Description:  "Report server identity and search configuration.",
		InputSchema:  mustSchema[apptype.HealthArgs]("HealthArgs"),
		OutputSchema: mustSchema[apptype.HealthResult]("HealthResult"),
	}, s.handleHealth)
}

// handleCreateEntities handles the create_entities tool call
func (s *MCPServer) handleCreateEntities(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.CreateEntitiesArgs],
) (*mcp.CallToolResultFor[apptype.CreateEntitiesResult], error) {
	done := metrics.TimeTool("create_entities")
	var success bool
	defer func() { done(success) }()

	created, err := s.manager.CreateEntities(ctx, params.Arguments.Entities)
	if err != nil {
		return nil, fmt.Errorf("failed to create entities: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[apptype.CreateEntitiesResult]{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("Created %d of %d entities", len(created), len(params.Arguments.Entities)),
			},
		},
		StructuredContent: apptype.CreateEntitiesResult{Entities: created},
	}, nil
}

// handleCreateRelations handles the create_relations tool call
func (s *MCPServer) handleCreateRelations(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.CreateRelationsArgs],
) (*mcp.CallToolResultFor[apptype.CreateRelationsResult], error) {
	done := metrics.TimeTool("create_relations")
	var success bool
	defer func() { done(success) }()

	created, err := s.manager.CreateRelations(ctx, params.Arguments.Relations)
	if err != nil {
		return nil, fmt.Errorf("failed to create relations: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[apptype.CreateRelationsResult]{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("Created %d of %d relations", len(created), len(params.Arguments.Relations)),
			},
		},
		StructuredContent: apptype.CreateRelationsResult{Relations: created},
	}, nil
}

// handleAddObservations handles the add_observations tool call
func (s *MCPServer) handleAddObservations(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.AddObservationsArgs],
) (*mcp.CallToolResultFor[apptype.AddObservationsResult], error) {
	done := metrics.TimeTool("add_observations")
	var success bool
	defer func() { done(success) }()

	results, err := s.manager.AddObservations(ctx, params.Arguments.Observations)
	if err != nil {
		return nil, fmt.Errorf("failed to add observations: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[apptype.AddObservationsResult]{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("Processed observations for %d entities", len(results)),
			},
		},
		StructuredContent: apptype.AddObservationsResult{Results: results},
	}, nil
}

// handleDeleteEntities handles the delete_entities tool call
func (s *MCPServer) handleDeleteEntities(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.DeleteEntitiesArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("delete_entities")
	var success bool
	defer func() { done(success) }()

	if err := s.manager.DeleteEntities(ctx, params.Arguments.EntityNames); err != nil {
		return nil, fmt.Errorf("failed to delete entities: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("Processed deletion of %d entities", len(params.Arguments.EntityNames)),
			},
		},
	}, nil
}

// handleDeleteObservations handles the delete_observations tool call
func (s *MCPServer) handleDeleteObservations(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.DeleteObservationsArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("delete_observations")
	var success bool
	defer func() { done(success) }()

	if err := s.manager.DeleteObservations(ctx, params.Arguments.Deletions); err != nil {
		return nil, fmt.Errorf("failed to delete observations: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("Processed observation deletions for %d entities", len(params.Arguments.Deletions)),
			},
		},
	}, nil
}

// handleDeleteRelations handles the delete_relations tool call
func (s *MCPServer) handleDeleteRelations(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.DeleteRelationsArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("delete_relations")
	var success bool
	defer func() { done(success) }()

	if err := s.manager.DeleteRelations(ctx, params.Arguments.Relations); err != nil {
		return nil, fmt.Errorf("failed to delete relations: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("Processed deletion of %d relations", len(params.Arguments.Relations)),
			},
		},
	}, nil
}

// handleReadGraph handles the read_graph tool call
func (s *MCPServer) handleReadGraph(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ReadGraphArgs],
) (*mcp.CallToolResultFor[apptype.KnowledgeGraph], error) {
	done := metrics.TimeTool("read_graph")
	var success bool
	defer func() { done(success) }()

	graph := s.manager.ReadGraph(ctx)
	success = true

	return &mcp.CallToolResultFor[apptype.KnowledgeGraph]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Graph read successfully"},
		},
		StructuredContent: graph,
	}, nil
}

// handleSearchNodes handles the search_nodes tool call
func (s *MCPServer) handleSearchNodes(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.SearchNodesArgs],
) (*mcp.CallToolResultFor[apptype.KnowledgeGraph], error) {
	done := metrics.TimeTool("search_nodes")
	var success bool
	defer func() { done(success) }()

	if params.Arguments.Query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	graph, err := s.manager.SearchNodes(ctx, params.Arguments.Query, params.Arguments.Limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[apptype.KnowledgeGraph]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Search completed successfully"},
		},
		StructuredContent: graph,
	}, nil
}

// handleOpenNodes handles the open_nodes tool call
func (s *MCPServer) handleOpenNodes(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.OpenNodesArgs],
) (*mcp.CallToolResultFor[apptype.KnowledgeGraph], error) {
	done := metrics.TimeTool("open_nodes")
	var success bool
	defer func() { done(success) }()

	graph, err := s.manager.OpenNodes(ctx, params.Arguments.Names)
	if err != nil {
		return nil, fmt.Errorf("failed to open nodes: %w", err)
	}
	success = true

	return &mcp.CallToolResultFor[apptype.KnowledgeGraph]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Nodes opened successfully"},
		},
		StructuredContent: graph,
	}, nil
}

// handleHealth handles the health tool call
func (s *MCPServer) handleHealth(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.HealthArgs],
) (*mcp.CallToolResultFor[apptype.HealthResult], error) {
	done := metrics.TimeTool("health")
	var success bool
	defer func() { done(success) }()

	result := apptype.HealthResult{
		Name:          serverName,
		Version:       buildinfo.Version,
		Revision:      buildinfo.Revision,
		BuildDate:     buildinfo.BuildDate,
		SearchMode:    s.manager.Strategy().Name(),
		EmbeddingDims: s.embeddingDims,
	}
	success = true

	return &mcp.CallToolResultFor[apptype.HealthResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "ok"},
		},
		StructuredContent: result,
	}, nil
}

// Run starts the MCP server with stdio transport
func (s *MCPServer) Run(ctx context.Context) error {
	transport := mcp.NewStdioTransport()
	return s.server.Run(ctx, transport)
}

// RunSSE starts the MCP server over SSE at the given address and endpoint
func (s *MCPServer) RunSSE(ctx context.Context, addr string, endpoint string) error {
	handler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server { return s.server })
	mux := http.NewServeMux()
	mux.Handle(endpoint, handler)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("SSE MCP server listening on %s%s", addr, endpoint)
	return srv.ListenAndServe()
}
