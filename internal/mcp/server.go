package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/courseindex/internal/daemon"
	"github.com/Aman-CERP/courseindex/internal/index"
	"github.com/Aman-CERP/courseindex/pkg/version"
)

// Backend is what the tools call. *service.Service implements it.
type Backend interface {
	Search(ctx context.Context, params daemon.SearchParams) (*daemon.SearchResult, error)
	CoursePublished(ctx context.Context, scope string) (*daemon.EnqueueResult, error)
	Reindex(ctx context.Context, params daemon.ReindexParams) (*daemon.ReindexResult, error)
	Status() daemon.StatusResult
}

// Server is the MCP server for the courseware index.
type Server struct {
	mcp     *mcp.Server
	backend Backend
	logger  *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search_courseware",
		Description: "Full-text search over published course content and content libraries. Every query word must appear in a block's title or text. Filter by course key or content type.",
	},
	{
		Name:        "reindex_course",
		Description: "Rebuild the search documents of a course or library. Queues a full course reindex by default; set wait to run it now, and since to limit a course pass to recent edits.",
	},
	{
		Name:        "index_status",
		Description: "Report the search backend, the open indexes and the background reindex queue.",
	},
}

// NewServer creates a new MCP server over backend.
func NewServer(backend Backend) (*Server, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	s := &Server{backend: backend, logger: slog.Default()}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "courseindex",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "courseindex", version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

// CallTool invokes a tool by name with loosely typed arguments and returns
// markdown for the search and reindex tools.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search_courseware":
		input := SearchInput{
			Query:       stringArg(args, "query"),
			Course:      stringArg(args, "course"),
			Library:     stringArg(args, "library"),
			ContentType: stringArg(args, "content_type"),
		}
		if l, ok := args["limit"].(float64); ok {
			input.Limit = int(l)
		}
		out, err := s.search(ctx, input)
		if err != nil {
			return nil, err
		}
		return FormatSearchResults(input.Query, out), nil
	case "reindex_course":
		input := ReindexInput{Course: stringArg(args, "course"), Since: stringArg(args, "since")}
		input.Wait, _ = args["wait"].(bool)
		out, err := s.reindex(ctx, input)
		if err != nil {
			return nil, err
		}
		return FormatReindex(out), nil
	case "index_status":
		return s.status(), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) search(ctx context.Context, input SearchInput) (SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return SearchOutput{}, NewInvalidParamsError("query parameter is required and cannot be whitespace only")
	}
	if input.Course != "" && input.Library != "" {
		return SearchOutput{}, NewInvalidParamsError("set course or library, not both")
	}

	params := daemon.SearchParams{
		Index:  index.CoursewareIndexName,
		Query:  query,
		Fields: map[string]string{},
		Size:   clampLimit(input.Limit, 10, 1, 50),
	}
	if input.Course != "" {
		params.Fields["course"] = input.Course
	}
	if input.Library != "" {
		params.Index = index.LibraryIndexName
		params.Fields["library"] = input.Library
	}
	if input.ContentType != "" {
		params.Fields["content_type"] = input.ContentType
	}

	start := time.Now()
	requestID := generateRequestID()
	res, err := s.backend.Search(ctx, params)
	if err != nil {
		s.logger.Error("search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return SearchOutput{}, MapError(err)
	}
	s.logger.Info("search_completed",
		slog.String("request_id", requestID),
		slog.String("index", params.Index),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(res.Results)))

	out := SearchOutput{Total: res.Total, Results: make([]SearchResultOutput, 0, len(res.Results))}
	for _, hit := range res.Results {
		out.Results = append(out.Results, toSearchResultOutput(hit))
	}
	return out, nil
}

func (s *Server) reindex(ctx context.Context, input ReindexInput) (ReindexOutput, error) {
	scope := strings.TrimSpace(input.Course)
	if scope == "" {
		return ReindexOutput{}, NewInvalidParamsError("course parameter is required")
	}

	var since time.Time
	if input.Since != "" {
		t, err := time.Parse(time.RFC3339, input.Since)
		if err != nil {
			return ReindexOutput{}, NewInvalidParamsError(fmt.Sprintf("since must be an RFC 3339 time: %v", err))
		}
		since = t
	}

	if !input.Wait && since.IsZero() && !strings.HasPrefix(scope, "library-v1:") {
		queued, err := s.backend.CoursePublished(ctx, scope)
		if err != nil {
			return ReindexOutput{}, MapError(err)
		}
		return ReindexOutput{Scope: queued.Scope, Queued: true, TaskID: queued.TaskID}, nil
	}

	res, err := s.backend.Reindex(ctx, daemon.ReindexParams{Scope: scope, Since: since})
	if err != nil {
		return ReindexOutput{}, MapError(err)
	}
	return ReindexOutput{
		Scope:   res.Scope,
		Mode:    res.Mode,
		Indexed: res.Indexed,
		Removed: res.Removed,
		Skipped: res.Skipped,
	}, nil
}

func (s *Server) status() *IndexStatusOutput {
	st := s.backend.Status()
	out := &IndexStatusOutput{Backend: st.Backend, Indexes: st.Indexes}
	if out.Indexes == nil {
		out.Indexes = []string{}
	}
	if q := st.Queue; q != nil {
		out.Queue = &QueueOutput{
			Status:    q.Status,
			Pending:   q.Pending,
			Running:   q.Running,
			Succeeded: q.Succeeded,
			Failed:    q.Failed,
			LastError: q.LastError,
		}
	}
	return out
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpReindexHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpIndexStatusHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// mcpSearchHandler is the MCP SDK handler for the search_courseware tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, out, nil
}

// mcpReindexHandler is the MCP SDK handler for the reindex_course tool.
func (s *Server) mcpReindexHandler(ctx context.Context, _ *mcp.CallToolRequest, input ReindexInput) (
	*mcp.CallToolResult,
	ReindexOutput,
	error,
) {
	out, err := s.reindex(ctx, input)
	if err != nil {
		return nil, ReindexOutput{}, err
	}
	return nil, out, nil
}

// mcpIndexStatusHandler is the MCP SDK handler for the index_status tool.
func (s *Server) mcpIndexStatusHandler(_ context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	return nil, s.status(), nil
}

// Serve runs the server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
