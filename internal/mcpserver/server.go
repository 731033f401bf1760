// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the travel library to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/travelogue/internal/apperr"
	"github.com/starford/travelogue/internal/postservice"
)

// Server wraps the MCP server with library tools.
type Server struct {
	mcp *server.MCPServer
	svc *postservice.Service
}

// New creates a new MCP server with all library tools registered.
func New(svc *postservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Travelogue",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List the tag tree of the travel library. Each tag carries its "+
			"slug, full path and post count."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("get_post",
		mcp.WithDescription("Read one post with its description, tags and neighbours. "+
			"Pass either a slug (series parts look like trip/day-2) or a source id."),
		mcp.WithString("slug", mcp.Description("Post slug, e.g. owyhee/day-1")),
		mcp.WithString("id", mcp.Description("Post id as assigned by the photo host")),
	), s.getPost)

	s.mcp.AddTool(mcp.NewTool("find_series",
		mcp.WithDescription("List every part of the series a post belongs to, first part first."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Slug of any part, or the bare series slug")),
	), s.findSeries)

	s.mcp.AddTool(mcp.NewTool("refresh_library",
		mcp.WithDescription("Discard the cached library and reload it from the photo host. "+
			"Rejected while a load is already running."),
	), s.refreshLibrary)

	s.mcp.AddResource(
		mcp.NewResource(SlugFormatURI, "Slug Format",
			mcp.WithResourceDescription("How tag and post slugs are derived from titles."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSlugFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(what string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", what))
	case errors.Is(err, apperr.ErrNotReady):
		return mcp.NewToolResultError("library is still loading, try again shortly")
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("a library load is already in progress")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.svc.ListTags(ctx)
	if err != nil {
		return errorResult("tags", err), nil
	}
	return jsonResult(tags)
}

func (s *Server) getPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug := req.GetString("slug", "")
	id := req.GetString("id", "")

	var (
		post *postservice.PostDetail
		err  error
	)
	switch {
	case slug != "":
		post, err = s.svc.GetPost(ctx, slug)
	case id != "":
		post, err = s.svc.GetPostByID(ctx, id)
		slug = id
	default:
		return mcp.NewToolResultError("either slug or id is required"), nil
	}
	if err != nil {
		return errorResult(slug, err), nil
	}
	return jsonResult(post)
}

func (s *Server) findSeries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parts, err := s.svc.FindSeries(ctx, slug)
	if err != nil {
		return errorResult(slug, err), nil
	}
	return jsonResult(parts)
}

func (s *Server) refreshLibrary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.Refresh(ctx); err != nil {
		return errorResult("library", err), nil
	}
	return mcp.NewToolResultText("refresh accepted"), nil
}

func (s *Server) readSlugFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SlugFormatURI,
			MIMEType: "text/markdown",
			Text:     SlugFormat,
		},
	}, nil
}
