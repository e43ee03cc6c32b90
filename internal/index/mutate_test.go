package index

import (
	"errors"
	"strings"
	"testing"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/checksum"
	"github.com/halvard/munin/internal/models"
)

const mutateFixture = "---\ndate: 2026-03-01\n---\n# Summary\nintro\n# Decisions\nchose sqlite\n"

func TestApplySectionOp_AppendExisting(t *testing.T) {
	out, err := applySectionOp([]byte(mutateFixture), "Summary", OpAppend, "more detail")
	if err != nil {
		t.Fatal(err)
	}
	want := "---\ndate: 2026-03-01\n---\n# Summary\nintro\nmore detail\n# Decisions\nchose sqlite\n"
	if string(out) != want {
		t.Errorf("out = %q\nwant %q", out, want)
	}
}

func TestApplySectionOp_AppendToLastSection(t *testing.T) {
	out, err := applySectionOp([]byte(mutateFixture), "Decisions", OpAppend, "and json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(out), "chose sqlite\nand json\n") {
		t.Errorf("out = %q", out)
	}
}

func TestApplySectionOp_AppendCreatesMissingSection(t *testing.T) {
	out, err := applySectionOp([]byte(mutateFixture), "Follow-ups", OpAppend, "check tokens")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(out), "\n## Follow-ups\n\ncheck tokens\n") {
		t.Errorf("created section not at end: %q", out)
	}
	if !strings.HasPrefix(string(out), mutateFixture) {
		t.Errorf("existing content disturbed: %q", out)
	}
}

func TestApplySectionOp_Prepend(t *testing.T) {
	out, err := applySectionOp([]byte(mutateFixture), "Decisions", OpPrepend, "first of all")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "# Decisions\nfirst of all\nchose sqlite\n") {
		t.Errorf("out = %q", out)
	}
}

func TestApplySectionOp_PrependCreatesAtDocumentStart(t *testing.T) {
	out, err := applySectionOp([]byte(mutateFixture), "Context", OpPrepend, "background")
	if err != nil {
		t.Fatal(err)
	}
	// The new section lands at the start of the body, after the header.
	if !strings.Contains(string(out), "---\n## Context\n\nbackground\n") {
		t.Errorf("out = %q", out)
	}
}

func TestApplySectionOp_InsertBeforeAndAfter(t *testing.T) {
	out, err := applySectionOp([]byte(mutateFixture), "Decisions", OpInsertBefore, "## Options\nweighed two\n")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "intro\n## Options\nweighed two\n# Decisions\n") {
		t.Errorf("insert-before: %q", out)
	}

	out, err = applySectionOp([]byte(mutateFixture), "Summary", OpInsertAfter, "## Risks\nnone\n")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "intro\n## Risks\nnone\n# Decisions\n") {
		t.Errorf("insert-after: %q", out)
	}
}

func TestApplySectionOp_MissingAnchor(t *testing.T) {
	for _, op := range []MutateOp{OpInsertBefore, OpInsertAfter} {
		_, err := applySectionOp([]byte(mutateFixture), "Nope", op, "x")
		if !errors.Is(err, apperr.ErrSectionNotFound) {
			t.Errorf("%s: err = %v, want ErrSectionNotFound", op, err)
		}
	}
}

func TestApplySectionOp_UnknownOp(t *testing.T) {
	if _, err := applySectionOp([]byte(mutateFixture), "Summary", MutateOp("replace"), "x"); err == nil {
		t.Fatal("expected error for unknown op")
	}
}

func TestMutateSection_EndToEnd(t *testing.T) {
	root, store := testCorpus(t)
	writeSource(t, root, "sessions/2026-03-01-auth.md", mutateFixture)
	ix := testJSON(t, store)
	if err := ix.Rebuild(); err != nil {
		t.Fatal(err)
	}

	doc, err := ix.MutateSection(models.KindSession, "2026-03-01-auth", "Summary", OpAppend, "appended line", "")
	if err != nil {
		t.Fatalf("MutateSection: %v", err)
	}

	// Source file is rewritten.
	raw, err := store.Read("sessions/2026-03-01-auth.md")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "intro\nappended line\n") {
		t.Errorf("source = %q", raw)
	}
	// The returned document reflects the new content and checksum.
	if doc.Checksum != checksum.Sum(raw) {
		t.Errorf("returned checksum does not match the rewritten source")
	}
	// The index was updated in the same call.
	got, err := ix.Get(models.KindSession, "2026-03-01-auth")
	if err != nil {
		t.Fatal(err)
	}
	if got.Checksum != doc.Checksum {
		t.Errorf("index checksum = %s, want %s", got.Checksum, doc.Checksum)
	}
}

func TestMutateSection_IfMatchConflict(t *testing.T) {
	root, store := testCorpus(t)
	writeSource(t, root, "sessions/2026-03-01-auth.md", mutateFixture)
	ix := testJSON(t, store)
	if err := ix.Rebuild(); err != nil {
		t.Fatal(err)
	}

	_, err := ix.MutateSection(models.KindSession, "2026-03-01-auth", "Summary", OpAppend, "x", "stale-checksum")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	// With the current checksum the same call succeeds.
	current := checksum.Sum([]byte(mutateFixture))
	if _, err := ix.MutateSection(models.KindSession, "2026-03-01-auth", "Summary", OpAppend, "x", current); err != nil {
		t.Fatalf("MutateSection with matching checksum: %v", err)
	}
}

func TestMutateSection_UnknownDocument(t *testing.T) {
	root, store := testCorpus(t)
	writeSource(t, root, "sessions/2026-03-01-auth.md", mutateFixture)
	ix := testJSON(t, store)
	if err := ix.Rebuild(); err != nil {
		t.Fatal(err)
	}

	_, err := ix.MutateSection(models.KindSession, "nope", "Summary", OpAppend, "x", "")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
