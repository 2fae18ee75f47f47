package server_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/healthrag-go/internal/config"
	"github.com/raphaelgruber/healthrag-go/internal/server"
	"github.com/raphaelgruber/healthrag-go/internal/service"
)

func newApp(t *testing.T, logger *slog.Logger) *service.App {
	t.Helper()
	cfg := config.Defaults()
	cfg.EnablePersistence = false
	cfg.LogFile = ""
	app, err := service.New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func TestServerWithInMemoryTransport(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	srv := server.New("0.1.0-test", newApp(t, logger))
	require.NotNil(t, srv.MCPServer())

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.RunTransport(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err, "client should connect successfully")

	initResult := session.InitializeResult()
	require.NotNil(t, initResult)
	assert.Equal(t, server.Name, initResult.ServerInfo.Name)
	assert.Equal(t, "0.1.0-test", initResult.ServerInfo.Version)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "guard_text",
		Arguments: map[string]any{"text": "You have the flu."},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	require.NoError(t, session.Close())
	cancel()
	select {
	case <-serverErr:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.Contains(t, logs.String(), "starting MCP server")
	assert.Contains(t, logs.String(), "tool=guard_text")
}
