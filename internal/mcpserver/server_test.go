package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/halvard/munin/internal/plansync"
	"github.com/halvard/munin/internal/query"
	"github.com/halvard/munin/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	root, store := testutil.TestCorpus(t)
	ix := testutil.TestJSONIndex(t, store)
	engine := query.New(ix, store, 0, testutil.Logger())
	syncer := plansync.New(store, "plans/team", testutil.Logger())
	return New(engine, syncer), root
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	ctx := context.Background()
	var result *mcp.CallToolResult
	var err error
	switch name {
	case "query_documents":
		result, err = srv.queryDocuments(ctx, req)
	case "read_section":
		result, err = srv.readSection(ctx, req)
	case "mutate_section":
		result, err = srv.mutateSection(ctx, req)
	case "rebuild_index":
		result, err = srv.rebuildIndex(ctx, req)
	case "team_sync":
		result, err = srv.teamSync(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestQueryDocumentsTool(t *testing.T) {
	srv, root := testServer(t)
	testutil.WriteFile(t, root, "sessions/2026-03-01-auth.md",
		"---\ndate: 2026-03-01\ntopics:\n  - auth\n---\n# Summary\nToken work.\n")

	r := callTool(t, srv, "rebuild_index", map[string]any{})
	if r.IsError {
		t.Fatalf("rebuild failed: %s", resultText(r))
	}

	r = callTool(t, srv, "query_documents", map[string]any{"topic": "auth"})
	if r.IsError {
		t.Fatalf("query failed: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, "2026-03-01-auth") {
		t.Errorf("result missing the session: %s", text)
	}
	if strings.Contains(text, "Token work.") {
		t.Errorf("metadata mode leaked the body: %s", text)
	}
}

func TestQueryDocumentsTool_BeforeRebuild(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "query_documents", map[string]any{})
	if !r.IsError {
		t.Error("expected error before the first rebuild")
	}
}

func TestReadSectionTool(t *testing.T) {
	srv, root := testServer(t)
	testutil.WriteFile(t, root, "sessions/2026-03-01-auth.md",
		"---\ndate: 2026-03-01\n---\n# Summary\nintro\n## Decisions\nuse sqlite\n## Notes\nlater\n")
	callTool(t, srv, "rebuild_index", map[string]any{})

	r := callTool(t, srv, "read_section", map[string]any{
		"kind": "session", "id": "2026-03-01-auth", "section": "decisions",
	})
	if r.IsError {
		t.Fatalf("read_section failed: %s", resultText(r))
	}
	if got := resultText(r); got != "use sqlite\n" {
		t.Errorf("section = %q", got)
	}

	r = callTool(t, srv, "read_section", map[string]any{
		"kind": "session", "id": "2026-03-01-auth", "section": "missing",
	})
	if !r.IsError {
		t.Error("expected error for a missing section")
	}
}

func TestMutateSectionTool(t *testing.T) {
	srv, root := testServer(t)
	testutil.WriteFile(t, root, "plans/roadmap.md",
		"---\nstatus: active\n---\n# Goal\nship it\n")
	callTool(t, srv, "rebuild_index", map[string]any{})

	r := callTool(t, srv, "mutate_section", map[string]any{
		"kind": "plan", "id": "roadmap", "section": "Goal",
		"op": "append", "content": "and test it",
	})
	if r.IsError {
		t.Fatalf("mutate failed: %s", resultText(r))
	}

	r = callTool(t, srv, "read_section", map[string]any{
		"kind": "plan", "id": "roadmap", "section": "Goal",
	})
	if got := resultText(r); got != "ship it\nand test it\n" {
		t.Errorf("section after mutate = %q", got)
	}
}

func TestMutateSectionTool_MissingArgs(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "mutate_section", map[string]any{"kind": "plan"})
	if !r.IsError {
		t.Error("expected error for missing required arguments")
	}
}

func TestTeamSyncTool(t *testing.T) {
	srv, root := testServer(t)
	testutil.WriteFile(t, root, "plans/team/alice.md",
		"---\nauthor: alice\nplan: auth-refactor\nstatus: active\nupdated: 2026-03-04\n---\n")

	r := callTool(t, srv, "team_sync", map[string]any{})
	if r.IsError {
		t.Fatalf("team_sync failed: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, "alice") || !strings.Contains(text, "auth-refactor") {
		t.Errorf("sync result = %s", text)
	}
}

func TestDocumentFormatResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readDocumentFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || !strings.Contains(tc.Text, "status") {
		t.Errorf("resource = %+v", contents[0])
	}
}
