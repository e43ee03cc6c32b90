// Package mcpserver exposes the query engine and plan synchronization over
// an MCP (Model Context Protocol) stdio transport, so LLM tooling can pull
// exactly the document slice it needs within its response budget.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/halvard/munin/internal/index"
	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/plansync"
	"github.com/halvard/munin/internal/query"
)

// Server wraps the MCP server with Munin tools.
type Server struct {
	mcp    *server.MCPServer
	engine *query.Engine
	syncer *plansync.Syncer
}

// New creates a new MCP server with all Munin tools registered.
func New(engine *query.Engine, syncer *plansync.Syncer) *Server {
	s := &Server{engine: engine, syncer: syncer}

	s.mcp = server.NewMCPServer(
		"Munin",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("query_documents",
		mcp.WithDescription("Query the document index. Filters are ANDed; omit a filter to match all. "+
			"Mode controls payload size: metadata (default, smallest), section (one named section), full."),
		mcp.WithString("kind", mcp.Description("session, plan, or pattern")),
		mcp.WithString("id", mcp.Description("Exact document id")),
		mcp.WithString("date", mcp.Description("Exact ISO date")),
		mcp.WithString("after", mcp.Description("Exclusive lower date bound")),
		mcp.WithString("before", mcp.Description("Inclusive upper date bound")),
		mcp.WithString("status", mcp.Description("Plan status filter")),
		mcp.WithString("author", mcp.Description("Author filter (normalized)")),
		mcp.WithString("topic", mcp.Description("Case-insensitive topic containment")),
		mcp.WithString("text", mcp.Description("Full-text filter (sqlite backend only)")),
		mcp.WithString("mode", mcp.Description("metadata, section, or full (default metadata)")),
		mcp.WithString("section", mcp.Description("Section heading, required for section mode")),
		mcp.WithNumber("limit", mcp.Description("Page size (a default applies when omitted)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.queryDocuments)

	s.mcp.AddTool(mcp.NewTool("read_section",
		mcp.WithDescription("Read one named section of a document. The section spans from its heading "+
			"to the next heading of equal or shallower level."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("session, plan, or pattern")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("section", mcp.Required(), mcp.Description("Section heading (case-insensitive)")),
	), s.readSection)

	s.mcp.AddTool(mcp.NewTool("mutate_section",
		mcp.WithDescription("Apply a section operation to a document's source file and re-index it. "+
			"append/prepend create a missing section at the document end/start; "+
			"insert-before/insert-after require the anchor to exist."),
		mcp.WithString("kind", mcp.Required()),
		mcp.WithString("id", mcp.Required()),
		mcp.WithString("section", mcp.Required()),
		mcp.WithString("op", mcp.Required(), mcp.Description("append, prepend, insert-before, or insert-after")),
		mcp.WithString("content", mcp.Required()),
		mcp.WithString("if_match", mcp.Description("Expected source checksum; mismatch fails the call")),
	), s.mutateSection)

	s.mcp.AddTool(mcp.NewTool("rebuild_index",
		mcp.WithDescription("Re-derive the index from source files. Required before the first query "+
			"and after any index corruption."),
	), s.rebuildIndex)

	s.mcp.AddTool(mcp.NewTool("team_sync",
		mcp.WithDescription("Regenerate the team index from the plan pointer files and return its rows. "+
			"Malformed pointers are skipped and reported as warnings."),
	), s.teamSync)

	s.mcp.AddResource(
		mcp.NewResource("munin://document-format", "Document Format Contract",
			mcp.WithResourceDescription("Canonical corpus document format that all documents must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
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

func optString(req mcp.CallToolRequest, key string) string {
	if v, err := req.RequireString(key); err == nil {
		return v
	}
	return ""
}

func optInt(req mcp.CallToolRequest, key string) int {
	if v, err := req.RequireFloat(key); err == nil {
		return int(v)
	}
	return 0
}

func (s *Server) queryDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := index.Filter{
		ID:         optString(req, "id"),
		Kind:       models.Kind(optString(req, "kind")),
		Date:       optString(req, "date"),
		DateAfter:  optString(req, "after"),
		DateBefore: optString(req, "before"),
		Status:     models.PlanStatus(optString(req, "status")),
		Author:     optString(req, "author"),
		Topic:      optString(req, "topic"),
		Text:       optString(req, "text"),
	}
	mode := query.Mode{Name: optString(req, "mode"), Section: optString(req, "section")}
	if mode.Name == "" {
		mode.Name = "metadata"
	}
	p := index.Page{Limit: optInt(req, "limit"), Offset: optInt(req, "offset")}

	res, err := s.engine.Query(f, mode, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	section, err := req.RequireString("section")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.engine.Query(index.Filter{ID: id, Kind: models.Kind(kind)}, query.Section(section), index.Page{Limit: 1})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(res.Items) == 0 || res.Items[0].Section == nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", kind, id)), nil
	}
	return mcp.NewToolResultText(res.Items[0].Section.Content), nil
}

func (s *Server) mutateSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	section, err := req.RequireString("section")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	op, err := req.RequireString("op")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := s.engine.MutateSection(models.Kind(kind), id, section,
		index.MutateOp(op), content, optString(req, "if_match"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("mutated: %s (checksum %s)", doc.SourcePath, doc.Checksum)), nil
}

func (s *Server) rebuildIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.engine.Rebuild(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("index rebuilt"), nil
}

func (s *Server) teamSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.syncer.Sync()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocumentFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "munin://document-format",
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
