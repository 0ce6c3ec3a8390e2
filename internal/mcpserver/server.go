// Package mcpserver exposes the ctxpack pipeline over the Model Context
// Protocol (stdio transport), so an AI coding agent can call it directly
// instead of shelling out to `cmd/ctxpack` (SPEC_FULL.md's MCP server
// enrichment section). Grounded on the teacher's `internal/mcp/server.go`
// tool-registration shape (`mcp.NewServer` + `server.AddTool`), trimmed to
// the three tools this system's domain actually needs.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/ctxpack/internal/config"
	"github.com/standardbeagle/ctxpack/internal/debug"
	"github.com/standardbeagle/ctxpack/internal/ignore"
	"github.com/standardbeagle/ctxpack/internal/indexer"
	"github.com/standardbeagle/ctxpack/internal/pack"
	"github.com/standardbeagle/ctxpack/internal/resolver"
	"github.com/standardbeagle/ctxpack/internal/rules"
	"github.com/standardbeagle/ctxpack/internal/semantic"
	"github.com/standardbeagle/ctxpack/internal/store"
	"github.com/standardbeagle/ctxpack/internal/version"
	"github.com/standardbeagle/ctxpack/internal/workspace"
)

// Server wires one workspace's Store/Indexer/Resolver into three MCP tools.
type Server struct {
	cfg      *config.Config
	st       *store.Store
	idx      *indexer.Indexer
	resolver *resolver.Resolver
	mcp      *mcp.Server
}

// New opens (or creates) the workspace's Store and builds the Indexer and
// Task Resolver façade, then registers the MCP tool surface. Stdio mode
// silences the debug logger the way the teacher's MCP command does, since
// stray stdout writes would corrupt the JSON-RPC stream.
func New(cfg *config.Config) (*Server, error) {
	debug.SetMCPMode(true)

	root := cfg.Project.Root
	if err := workspace.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}

	st, err := store.Open(workspace.StorePath(root))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	matcher, err := ignore.NewFromRoot(root)
	if err != nil {
		return nil, fmt.Errorf("load ignore rules: %w", err)
	}

	cached, _ := workspace.LoadProjectCache(root)
	reg := rules.NewRegistry(root, rules.BuiltinRules(), cached.ActiveDiscoveries)
	for _, block := range []string{reg.GetMergedCtxIgnore()} {
		matcher.AddRulePatterns(splitNonEmptyLines(block))
	}

	eng := semantic.NewEngine(nil)

	s := &Server{
		cfg:      cfg,
		st:       st,
		idx:      indexer.New(cfg, st, matcher),
		resolver: resolver.New(cfg, st, reg, matcher, eng),
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "ctxpack-mcp-server",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	return s, nil
}

// Serve blocks, serving MCP tool calls over stdio until ctx is cancelled or
// the transport closes.
func (s *Server) Serve(ctx context.Context) error {
	debug.LogMCP("starting ctxpack MCP server on stdio transport")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Close releases the underlying Store connection.
func (s *Server) Close() error {
	return s.st.Close()
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name: "ctxpack_index",
		Description: "Run the Indexer over the workspace: scan files, extract symbols and " +
			"imports, and refresh VCS churn signals. Run this before ctxpack_pack on a new " +
			"or changed workspace.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleIndex)

	s.mcp.AddTool(&mcp.Tool{
		Name: "ctxpack_pack",
		Description: "Run the Task Resolver end-to-end: resolve a task description (plus " +
			"optional stacktrace/diff/file/symbol hints) against the indexed workspace, " +
			"and return a ranked, excerpted file set as ctx.json.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"description": {
					Type:        "string",
					Description: "Natural-language description of the task.",
				},
				"stacktrace": {
					Type:        "string",
					Description: "Raw stacktrace or log text to parse for file/line hits.",
				},
				"stacktraceSince": {
					Type:        "string",
					Description: "Only consider stacktrace lines at or after this relative window, e.g. '2h', '1d'.",
				},
				"diffRef": {
					Type:        "string",
					Description: "VCS ref to diff against (e.g. 'main', 'HEAD~3') for changed-file/changed-line signals.",
				},
				"fileHints": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Workspace-relative file paths the caller already knows are relevant.",
				},
				"symbolHints": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Symbol names the caller already knows are relevant.",
				},
			},
			Required: []string{"description"},
		},
	}, s.handlePack)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "ctxpack_list",
		Description: "List previously generated context packs under .context/packs, most recent first.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"limit": {
					Type:        "integer",
					Description: "Maximum number of packs to return (default 20).",
				},
			},
		},
	}, s.handleList)
}

func (s *Server) handleIndex(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.idx.Run(ctx, nil)
	if err != nil {
		return errorResult("ctxpack_index", err)
	}
	return jsonResult(map[string]any{
		"filesScanned": stats.FilesScanned,
		"filesUpdated": stats.FilesUpdated,
		"filesDeleted": stats.FilesDeleted,
		"symbolsFound": stats.SymbolsFound,
		"importsFound": stats.ImportsFound,
		"durationMs":   stats.Duration.Milliseconds(),
	})
}

type packParams struct {
	Description     string   `json:"description"`
	Stacktrace      string   `json:"stacktrace"`
	StacktraceSince string   `json:"stacktraceSince"`
	DiffRef         string   `json:"diffRef"`
	FileHints       []string `json:"fileHints"`
	SymbolHints     []string `json:"symbolHints"`
}

func (s *Server) handlePack(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params packParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResult("ctxpack_pack", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Description == "" {
		return errorResult("ctxpack_pack", fmt.Errorf("description is required"))
	}

	result, err := s.resolver.Resolve(ctx, resolver.Input{
		Description:     params.Description,
		StacktraceText:  params.Stacktrace,
		StacktraceSince: params.StacktraceSince,
		DiffRef:         params.DiffRef,
		FileHints:       params.FileHints,
		SymbolHints:     params.SymbolHints,
	})
	if err != nil {
		return errorResult("ctxpack_pack", err)
	}

	now := time.Now()
	slug := pack.Slug(params.Description, now)
	manifest := pack.NewManifest(slug, now, result)

	dir := workspace.PackDir(s.cfg.Project.Root, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errorResult("ctxpack_pack", err)
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errorResult("ctxpack_pack", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ctx.json"), data, 0o644); err != nil {
		return errorResult("ctxpack_pack", err)
	}

	return jsonResult(manifest)
}

type listParams struct {
	Limit int `json:"limit"`
}

func (s *Server) handleList(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params listParams
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return errorResult("ctxpack_list", fmt.Errorf("invalid parameters: %w", err))
		}
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	entries, err := os.ReadDir(workspace.PacksDir(s.cfg.Project.Root))
	if err != nil {
		if os.IsNotExist(err) {
			return jsonResult(map[string]any{"packs": []string{}})
		}
		return errorResult("ctxpack_list", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if len(names) > limit {
		names = names[:limit]
	}
	return jsonResult(map[string]any{"packs": names})
}

func jsonResult(data any) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal tool response: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

func errorResult(operation string, err error) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s: %v", operation, err)}},
	}, nil
}

func splitNonEmptyLines(block string) []string {
	var lines []string
	start := 0
	for i := 0; i <= len(block); i++ {
		if i == len(block) || block[i] == '\n' {
			line := block[start:i]
			if len(line) > 0 {
				lines = append(lines, line)
			}
			start = i + 1
		}
	}
	return lines
}
