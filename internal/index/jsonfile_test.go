package index

import (
	"errors"
	"os"
	"testing"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/models"
)

func TestJSONFile_QueryBeforeRebuild(t *testing.T) {
	_, store := testCorpus(t)
	ix := testJSON(t, store)

	_, _, err := ix.Query(Filter{}, Page{})
	if !errors.Is(err, apperr.ErrIndexNotInitialized) {
		t.Fatalf("err = %v, want ErrIndexNotInitialized", err)
	}
}

func TestJSONFile_RebuildAndQuery(t *testing.T) {
	root, store := testCorpus(t)
	seedCorpus(t, root)
	ix := testJSON(t, store)

	if err := ix.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	docs, total, err := ix.Query(Filter{Kind: models.KindSession}, Page{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(docs) != 3 {
		t.Fatalf("total = %d, len = %d, want 3", total, len(docs))
	}
	if docs[0].Date != "2026-03-03" {
		t.Errorf("order: first date = %s, want newest first", docs[0].Date)
	}

	docs, _, err = ix.Query(Filter{Topic: "auth"}, Page{})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Errorf("topic auth matches = %d, want 2", len(docs))
	}
}

func TestJSONFile_RebuildIsByteIdentical(t *testing.T) {
	root, store := testCorpus(t)
	seedCorpus(t, root)
	ix := testJSON(t, store)

	if err := ix.Rebuild(); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(ix.Path())
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.Rebuild(); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(ix.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("rebuild on unchanged sources produced a different index file")
	}
}

func TestJSONFile_GetAndDelete(t *testing.T) {
	root, store := testCorpus(t)
	seedCorpus(t, root)
	ix := testJSON(t, store)
	if err := ix.Rebuild(); err != nil {
		t.Fatal(err)
	}

	doc, err := ix.Get(models.KindPlan, "q2-roadmap")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Status != models.StatusActive {
		t.Errorf("status = %q", doc.Status)
	}

	if err := ix.Delete(models.KindPlan, "q2-roadmap"); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Get(models.KindPlan, "q2-roadmap"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err after delete = %v, want ErrNotFound", err)
	}
	// Delete touches the index only; the source file stays.
	if _, err := store.Stat("plans/q2-roadmap.md"); err != nil {
		t.Errorf("source file should survive an index delete: %v", err)
	}
}

func TestJSONFile_UpsertInitializes(t *testing.T) {
	_, store := testCorpus(t)
	ix := testJSON(t, store)

	doc := models.Document{ID: "seed", Kind: models.KindPattern, SourcePath: "patterns/seed.md"}
	if err := ix.Upsert(doc); err != nil {
		t.Fatalf("Upsert on an uninitialized index: %v", err)
	}
	got, err := ix.Get(models.KindPattern, "seed")
	if err != nil {
		t.Fatal(err)
	}
	if got.SourcePath != "patterns/seed.md" {
		t.Errorf("source path = %q", got.SourcePath)
	}
}

func TestJSONFile_UpsertReplaces(t *testing.T) {
	_, store := testCorpus(t)
	ix := testJSON(t, store)

	_ = ix.Upsert(models.Document{ID: "p", Kind: models.KindPlan, Status: models.StatusPlanned})
	if err := ix.Upsert(models.Document{ID: "p", Kind: models.KindPlan, Status: models.StatusActive}); err != nil {
		t.Fatal(err)
	}
	_, total, err := ix.Query(Filter{Kind: models.KindPlan}, Page{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1 after replace", total)
	}
	doc, _ := ix.Get(models.KindPlan, "p")
	if doc.Status != models.StatusActive {
		t.Errorf("status = %q, want active", doc.Status)
	}
}

func TestJSONFile_TextFilterUnsupported(t *testing.T) {
	root, store := testCorpus(t)
	seedCorpus(t, root)
	ix := testJSON(t, store)
	_ = ix.Rebuild()

	_, _, err := ix.Query(Filter{Text: "roadmap"}, Page{})
	if !errors.Is(err, apperr.ErrInvalidFilter) {
		t.Fatalf("err = %v, want ErrInvalidFilter", err)
	}
}

func TestJSONFile_CorruptionRecovery(t *testing.T) {
	root, store := testCorpus(t)
	seedCorpus(t, root)
	ix := testJSON(t, store)
	if err := ix.Rebuild(); err != nil {
		t.Fatal(err)
	}

	before, _, err := ix.Query(Filter{}, Page{})
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(ix.Path(), []byte("{definitely not an index"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ix.Query(Filter{}, Page{}); !errors.Is(err, apperr.ErrIndexCorrupted) {
		t.Fatalf("err = %v, want ErrIndexCorrupted", err)
	}

	// Source files are authoritative: a rebuild restores the exact result set.
	if err := ix.Rebuild(); err != nil {
		t.Fatalf("Rebuild after corruption: %v", err)
	}
	after, _, err := ix.Query(Filter{}, Page{})
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != len(after) {
		t.Fatalf("result count changed: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID || before[i].Checksum != after[i].Checksum {
			t.Errorf("doc[%d] differs after recovery: %s vs %s", i, before[i].ID, after[i].ID)
		}
	}
}

func TestJSONFile_UnsupportedVersion(t *testing.T) {
	_, store := testCorpus(t)
	ix := testJSON(t, store)
	if err := os.WriteFile(ix.Path(), []byte(`{"version": 99, "documents": []}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := ix.Query(Filter{}, Page{})
	if !errors.Is(err, apperr.ErrIndexCorrupted) {
		t.Fatalf("err = %v, want ErrIndexCorrupted", err)
	}
}

func TestJSONFile_DeleteBySourceAndChecksums(t *testing.T) {
	root, store := testCorpus(t)
	seedCorpus(t, root)
	ix := testJSON(t, store)
	if err := ix.Rebuild(); err != nil {
		t.Fatal(err)
	}

	sums, err := ix.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 5 {
		t.Fatalf("len(checksums) = %d, want 5", len(sums))
	}
	if sums["plans/q2-roadmap.md"] == "" {
		t.Error("missing checksum for plans/q2-roadmap.md")
	}

	if err := ix.DeleteBySource("plans/q2-roadmap.md"); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Get(models.KindPlan, "q2-roadmap"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	// Unknown path is a no-op.
	if err := ix.DeleteBySource("plans/never-indexed.md"); err != nil {
		t.Fatal(err)
	}
}
