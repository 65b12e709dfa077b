package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/qforge-dev/qmemory/internal/database"
	"github.com/qforge-dev/qmemory/internal/graph"
)

// pickFreePort tries to get a free TCP port on 127.0.0.1
func pickFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func TestSSEServer_ListTools(t *testing.T) {
	cfg := database.NewConfig()
	cfg.Path = "file:test-e2e?mode=memory&cache=shared"
	store, err := database.NewStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	manager := graph.New(store, nil, nil, graph.Options{})
	defer manager.Close()

	srv := NewMCPServer(manager, 0)

	port, err := pickFreePort()
	require.NoError(t, err)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	endpoint := "/sse"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start SSE server
	go func() { _ = srv.RunSSE(ctx, addr, endpoint) }()

	// wait briefly for server to bind
	time.Sleep(150 * time.Millisecond)

	// connect with MCP SSE client
	client := mcp.NewClient(&mcp.Implementation{Name: "e2e-client", Version: "test"}, nil)
	transport := mcp.NewSSEClientTransport("http://"+addr+endpoint, nil)

	// retry connect a few times to avoid flakes
	var session *mcp.ClientSession
	for i := 0; i < 5; i++ {
		session, err = client.Connect(ctx, transport)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	require.NotEmpty(t, tools.Tools)

	names := make(map[string]bool, len(tools.Tools))
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"create_entities", "create_relations", "add_observations",
		"delete_entities", "delete_observations", "delete_relations",
		"read_graph", "search_nodes", "open_nodes", "health",
	} {
		require.True(t, names[want], "missing tool %s", want)
	}
}

func TestSSEServer_GracefulShutdown(t *testing.T) {
	cfg := database.NewConfig()
	cfg.Path = "file:test-shutdown?mode=memory&cache=shared"
	store, err := database.NewStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	manager := graph.New(store, nil, nil, graph.Options{})
	defer manager.Close()

	srv := NewMCPServer(manager, 0)

	port, err := pickFreePort()
	require.NoError(t, err)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.RunSSE(ctx, addr, "/sse") }()

	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		// Shutdown drains the listener rather than killing it.
		require.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}
