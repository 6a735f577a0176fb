package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	perrors "github.com/Aman-CERP/postsearch/internal/errors"
	"github.com/Aman-CERP/postsearch/internal/search"
	"github.com/Aman-CERP/postsearch/internal/telemetry"
	"github.com/Aman-CERP/postsearch/pkg/version"
)

const serverName = "postsearch"

// Server bridges MCP clients with the post search engine.
type Server struct {
	mcp      *mcp.Server
	engine   *search.Engine
	provider search.IndexProvider
	stats    *telemetry.QueryStats
	logger   *slog.Logger
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search_posts",
		Description: "Full-text search over indexed posts. Bare terms match post titles; author:name, id:x and created_at:2024 address other fields. Returns up to 3 posts ranked by relevance, with id, author, points and comment count.",
	},
	{
		Name:        "index_status",
		Description: "Report whether the post index exists, how many posts it holds, and when it was last built.",
	},
}

// Option configures a Server.
type Option func(*Server)

// WithQueryStats exposes query telemetry as the query_stats resource.
func WithQueryStats(stats *telemetry.QueryStats) Option {
	return func(s *Server) { s.stats = stats }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates an MCP server. provider must be the one engine queries;
// index_status reads through it.
func NewServer(engine *search.Engine, provider search.IndexProvider, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if provider == nil {
		return nil, errors.New("index provider is required")
	}

	s := &Server{
		engine:   engine,
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "mcp"))

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: version.Version,
	}, nil)

	s.registerTools()
	if s.stats != nil {
		s.registerQueryStatsResource()
	}
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool directly, bypassing transport.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search_posts":
		var in SearchPostsInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.searchPosts(ctx, in)
	case "index_status":
		return s.indexStatus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, into any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(data, into); err != nil {
		return NewInvalidParamsError(err.Error())
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[0].Name,
		Description: tools[0].Description,
	}, s.mcpSearchPostsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[1].Name,
		Description: tools[1].Description,
	}, s.mcpIndexStatusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func (s *Server) mcpSearchPostsHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchPostsInput) (
	*mcp.CallToolResult,
	*SearchPostsOutput,
	error,
) {
	out, err := s.searchPosts(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatPosts(out)}},
	}, out, nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	out, err := s.indexStatus(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

func (s *Server) searchPosts(ctx context.Context, in SearchPostsInput) (*SearchPostsOutput, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, NewInvalidParamsError("query parameter is required")
	}
	if in.Limit < 0 {
		return nil, NewInvalidParamsError("limit must not be negative")
	}

	hits, err := s.engine.SearchPosts(ctx, query, in.Limit)
	if err != nil {
		s.logger.Debug("search_posts_failed",
			slog.String("query", query),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	out := &SearchPostsOutput{Query: query, Results: make([]PostResult, 0, len(hits))}
	for _, h := range hits {
		if h.ID == nil {
			continue
		}
		r := PostResult{ID: *h.ID, Score: h.Score}
		if h.Author != nil {
			r.Author = *h.Author
		}
		if h.NumPoints != nil {
			r.NumPoints = *h.NumPoints
		}
		if h.NumComments != nil {
			r.NumComments = *h.NumComments
		}
		out.Results = append(out.Results, r)
	}
	return out, nil
}

func (s *Server) indexStatus(_ context.Context) (*IndexStatusOutput, error) {
	out := &IndexStatusOutput{SearchLimit: s.engine.Limit()}

	ix, release, err := s.provider.Acquire()
	if err != nil {
		if errors.Is(err, perrors.ErrIndexNotFound) {
			out.Status = "missing"
			return out, nil
		}
		return nil, MapError(err)
	}
	defer release()

	st, err := ix.Stats()
	if err != nil {
		return nil, MapError(err)
	}
	out.Path = st.Path
	out.Documents = st.Documents
	out.SizeBytes = st.SizeBytes
	out.Generation = st.LastCommit.Generation
	out.LastCommit = st.LastCommit.CommittedAt
	out.LastRunID = st.LastCommit.RunID
	out.Status = "ready"
	if st.LastCommit.Generation == 0 {
		out.Status = "empty"
	}
	return out, nil
}

// Serve runs the server on the named transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_starting", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
