package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/qforge-dev/qmemory/internal/database"
	"github.com/qforge-dev/qmemory/internal/embeddings"
	"github.com/qforge-dev/qmemory/internal/graph"
	"github.com/qforge-dev/qmemory/internal/metrics"
	"github.com/qforge-dev/qmemory/internal/server"
	"github.com/qforge-dev/qmemory/internal/vectorindex"
)

var (
	dbFilePath     = flag.String("db-file-path", "", "Location of durable storage (default: colocated with the executable)")
	cacheDir       = flag.String("cache-dir", "", "Embedding-model artifact cache location")
	embeddingModel = flag.String("embedding-model", "", "Embedding model identifier; empty runs lexical-only")
	workers        = flag.Int("enrich-workers", 0, "Number of background enrichment workers")
	transport      = flag.String("transport", "stdio", "Transport to use: stdio or sse")
	addr           = flag.String("addr", ":8080", "Address to listen on when using SSE transport")
	sseEndpoint    = flag.String("sse-endpoint", "/sse", "SSE endpoint path when using SSE transport")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal, closing server...")
		cancel()
	}()

	// Initialize metrics (noop if disabled)
	metrics.InitFromEnv()

	// Environment configuration with command line overrides
	storeCfg := database.NewConfig()
	if *dbFilePath != "" {
		storeCfg.Path = *dbFilePath
	}
	embedCfg := embeddings.NewConfig()
	if *embeddingModel != "" {
		embedCfg.Model = *embeddingModel
	}
	if *cacheDir != "" {
		embedCfg.CacheDir = *cacheDir
	}

	store, err := database.NewStore(storeCfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}()

	producer, err := embeddings.New(embedCfg)
	if err != nil {
		log.Fatalf("Failed to configure embeddings: %v", err)
	}

	var index graph.Index
	embeddingDims := 0
	if producer != nil {
		ix, err := vectorindex.New(store.Conn(), producer.Dimensions())
		if err != nil {
			log.Fatalf("Failed to initialize vector index: %v", err)
		}
		index = ix
		embeddingDims = producer.Dimensions()
		log.Printf("Enhanced mode: %s embeddings, %d dimensions", producer.Name(), embeddingDims)
	} else {
		log.Println("Basic mode: lexical search only")
	}

	manager := graph.New(store, index, producer, graph.Options{Workers: *workers})
	defer manager.Close()

	mcpServer := server.NewMCPServer(manager, embeddingDims)

	log.Println("Starting qmemory MCP server...")
	switch *transport {
	case "stdio":
		go func() {
			if err := mcpServer.Run(ctx); err != nil {
				log.Printf("Server error: %v", err)
			}
		}()
	case "sse":
		go func() {
			if err := mcpServer.RunSSE(ctx, *addr, *sseEndpoint); err != nil {
				log.Printf("SSE server error: %v", err)
			}
		}()
	default:
		log.Fatalf("unknown transport: %s (expected: stdio or sse)", *transport)
	}

	<-ctx.Done()

	log.Println("Server stopped")
}
