package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ctxpack/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	cfg := config.Default(root)
	srv, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func rawArgs(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestHandleIndex_ReturnsStats(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleIndex(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(`{}`)},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)

	text := result.Content[0].(*mcp.TextContent).Text
	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &stats))
	assert.Contains(t, stats, "filesScanned")
}

func TestHandlePack_RequiresDescription(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handlePack(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: rawArgs(t, packParams{})},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandlePack_WritesManifest(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.handleIndex(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(`{}`)},
	})
	require.NoError(t, err)

	result, err := srv.handlePack(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: rawArgs(t, packParams{
			Description: "fix the main entrypoint",
		})},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := result.Content[0].(*mcp.TextContent).Text
	var manifest map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &manifest))
	assert.Equal(t, "1", manifest["version"])
}

func TestHandleList_EmptyWorkspaceReturnsEmptyList(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleList(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(`{}`)},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := result.Content[0].(*mcp.TextContent).Text
	var payload struct {
		Packs []string `json:"packs"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &payload))
	assert.Empty(t, payload.Packs)
}

func TestSplitNonEmptyLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitNonEmptyLines("a\nb\n"))
	assert.Empty(t, splitNonEmptyLines(""))
}
