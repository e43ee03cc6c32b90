package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/storage"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testCorpus(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testJSON(t *testing.T, store storage.Provider) *JSONFile {
	t.Helper()
	return NewJSONFile(filepath.Join(t.TempDir(), "index.json"), store, quiet())
}

func testSQLite(t *testing.T, store storage.Provider) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"), store, quiet())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedCorpus writes a small mixed corpus: three dated sessions, one active
// plan, one undated pattern.
func seedCorpus(t *testing.T, root string) {
	t.Helper()
	writeSource(t, root, "sessions/2026-03-01-auth.md",
		"---\ndate: 2026-03-01\nauthor: alice\ntopics:\n  - auth\n---\n# Summary\nToken work.\n# Decisions\nRotate keys.\n")
	writeSource(t, root, "sessions/2026-03-02-cache.md",
		"---\ndate: 2026-03-02\nauthor: bob\ntopics:\n  - cache\n---\n# Summary\nCache warmup.\n")
	writeSource(t, root, "sessions/2026-03-03-api.md",
		"---\ndate: 2026-03-03\nauthor: alice\ntopics:\n  - api\n  - auth\n---\n# Summary\nAPI cleanup.\n")
	writeSource(t, root, "plans/q2-roadmap.md",
		"---\nstatus: active\nauthor: alice\ndate: 2026-02-15\n---\n# Goal\nShip the roadmap.\n")
	writeSource(t, root, "patterns/error-handling.md",
		"# Pattern\nWrap sentinel errors.\n")
}

func TestMatches(t *testing.T) {
	d := models.Document{
		ID: "s1", Kind: models.KindSession, Date: "2026-03-02",
		Author: "alice", Topics: []string{"Auth", "cache"},
	}
	cases := []struct {
		name string
		f    Filter
		want bool
	}{
		{"empty filter", Filter{}, true},
		{"id match", Filter{ID: "s1"}, true},
		{"id normalized", Filter{ID: " S1 "}, true},
		{"id mismatch", Filter{ID: "s2"}, false},
		{"kind match", Filter{Kind: models.KindSession}, true},
		{"kind mismatch", Filter{Kind: models.KindPlan}, false},
		{"exact date", Filter{Date: "2026-03-02"}, true},
		{"after strictly earlier", Filter{DateAfter: "2026-03-01"}, true},
		{"after same date", Filter{DateAfter: "2026-03-02"}, false},
		{"before inclusive", Filter{DateBefore: "2026-03-02"}, true},
		{"before earlier", Filter{DateBefore: "2026-03-01"}, false},
		{"author", Filter{Author: "Alice"}, true},
		{"topic containment", Filter{Topic: "auth"}, true},
		{"topic case-insensitive", Filter{Topic: "AUTH"}, true},
		{"topic miss", Filter{Topic: "storage"}, false},
		{"combined", Filter{Kind: models.KindSession, Topic: "cache", Author: "alice"}, true},
		{"combined miss", Filter{Kind: models.KindSession, Author: "bob"}, false},
	}
	for _, c := range cases {
		if got := Matches(&d, c.f); got != c.want {
			t.Errorf("%s: Matches = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestMatches_UndatedExcludedFromDateRange(t *testing.T) {
	d := models.Document{ID: "p1", Kind: models.KindPattern}
	if Matches(&d, Filter{DateAfter: "2020-01-01"}) {
		t.Error("undated document should not match a dateAfter bound")
	}
	if Matches(&d, Filter{DateBefore: "2030-01-01"}) {
		t.Error("undated document should not match a dateBefore bound")
	}
}

func TestSortDocs(t *testing.T) {
	docs := []models.Document{
		{ID: "b", Date: "2026-01-01"},
		{ID: "undated"},
		{ID: "a", Date: "2026-01-02"},
		{ID: "a", Date: "2026-01-01"},
	}
	SortDocs(docs)
	wantIDs := []string{"a", "a", "b", "undated"}
	wantDates := []string{"2026-01-02", "2026-01-01", "2026-01-01", ""}
	for i := range docs {
		if docs[i].ID != wantIDs[i] || docs[i].Date != wantDates[i] {
			t.Fatalf("order[%d] = %s/%s, want %s/%s", i, docs[i].ID, docs[i].Date, wantIDs[i], wantDates[i])
		}
	}
}

func TestPaginate(t *testing.T) {
	docs := make([]models.Document, 5)
	for i := range docs {
		docs[i].ID = string(rune('a' + i))
	}
	if got := Paginate(docs, Page{Limit: 2, Offset: 0}); len(got) != 2 || got[0].ID != "a" {
		t.Errorf("first page = %v", got)
	}
	if got := Paginate(docs, Page{Limit: 2, Offset: 4}); len(got) != 1 || got[0].ID != "e" {
		t.Errorf("last page = %v", got)
	}
	if got := Paginate(docs, Page{Limit: 2, Offset: 10}); got != nil {
		t.Errorf("out-of-range page = %v, want nil", got)
	}
	if got := Paginate(docs, Page{}); len(got) != 5 {
		t.Errorf("unbounded page len = %d, want 5", len(got))
	}
}
