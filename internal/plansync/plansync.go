// Package plansync aggregates per-writer plan pointer files into the
// derived team index. The team index is a pure function of the pointer set:
// always safe to overwrite or discard, never hand-edited, and regenerating
// it from unchanged inputs produces identical output.
package plansync

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/parser"
	"github.com/halvard/munin/internal/storage"
)

// ArtifactName is the rendered team index file, kept beside the pointer
// files and excluded from aggregation input.
const ArtifactName = "TEAM_INDEX.md"

// EmptyMarker is written when no pointer files exist, so consumers can
// tell "nothing to show" from a silent failure.
const EmptyMarker = "_No active plans._"

// Result is the outcome of one synchronization pass.
type Result struct {
	Rows     []models.TeamRow `json:"rows"`
	Warnings []string         `json:"warnings"`
	// Latest is the newest pointer update in the set, used as the rendered
	// artifact's generation stamp; wall-clock time would break determinism.
	Latest string `json:"latest,omitempty"`
}

// Syncer aggregates the writer-partitioned pointer directory.
type Syncer struct {
	store  storage.Provider
	dir    string // pointer directory, relative to corpus root
	logger *slog.Logger
}

// New creates a Syncer over the pointer directory.
func New(store storage.Provider, dir string, logger *slog.Logger) *Syncer {
	return &Syncer{store: store, dir: dir, logger: logger}
}

// Sync parses every pointer file, aggregates the successfully parsed rows
// sorted by author, writes the rendered team index artifact atomically, and
// reports per-file skips as warnings. A malformed pointer never aborts the
// pass; the remaining writers still synchronize.
func (s *Syncer) Sync() (*Result, error) {
	infos, err := s.store.List(s.dir, "")
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("plansync: list pointers: %w", err)
		}
		infos = nil // no pointer directory yet; render the empty state
	}

	res := &Result{Warnings: []string{}}
	for _, info := range infos {
		if path.Base(info.Path) == ArtifactName {
			continue
		}
		data, err := s.store.Read(info.Path)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", info.Path, err))
			continue
		}
		ptr, err := parsePointer(info.Path, data)
		if err != nil {
			s.logger.Warn("plansync: pointer skipped",
				slog.String("path", info.Path), slog.String("error", err.Error()))
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", info.Path, err))
			continue
		}
		res.Rows = append(res.Rows, models.TeamRow{
			Author:      ptr.Author,
			PlanID:      ptr.PlanID,
			Status:      ptr.Status,
			LastUpdated: ptr.LastUpdated,
		})
	}

	sort.Slice(res.Rows, func(i, j int) bool { return res.Rows[i].Author < res.Rows[j].Author })
	for _, r := range res.Rows {
		if r.LastUpdated > res.Latest {
			res.Latest = r.LastUpdated
		}
	}

	artifact := path.Join(s.dir, ArtifactName)
	if err := s.store.Write(artifact, []byte(Render(res))); err != nil {
		return nil, fmt.Errorf("plansync: write artifact: %w", err)
	}
	return res, nil
}

// parsePointer extracts the pointer fields from one file. The author falls
// back to the filename stem, which is already the normalized identity by
// the pointer naming convention.
func parsePointer(p string, data []byte) (*models.Pointer, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}

	author := res.Meta.Author
	if author == "" {
		base := path.Base(p)
		author = models.NormalizeIdentity(strings.TrimSuffix(base, path.Ext(base)))
	}
	if author == "" {
		return nil, fmt.Errorf("pointer has no author")
	}

	status := ""
	if raw := metaString(res.Meta.Raw, "status"); raw != "" {
		ps := models.PlanStatus(strings.ToLower(raw))
		if !ps.Valid() {
			return nil, fmt.Errorf("pointer has unknown status %q", raw)
		}
		status = string(ps)
	}

	updated := metaString(res.Meta.Raw, "updated")
	if updated == "" {
		updated = res.Meta.Date
	}

	return &models.Pointer{
		Author:      author,
		PlanID:      metaString(res.Meta.Raw, "plan"),
		Status:      status,
		Note:        metaString(res.Meta.Raw, "note"),
		LastUpdated: updated,
	}, nil
}

func metaString(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	switch v := raw[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case time.Time:
		// yaml.v3 decodes unquoted ISO dates as timestamps.
		return v.Format("2006-01-02")
	}
	return ""
}

// Render produces the team index artifact. Output is deterministic for a
// given row set; an empty set renders the explicit empty-state marker
// rather than a zero-row table.
func Render(res *Result) string {
	var b strings.Builder
	b.WriteString("# Team Plan Index\n\n")
	b.WriteString("<!-- Derived file: regenerated by munin sync. Do not edit. -->\n\n")

	if len(res.Rows) == 0 {
		b.WriteString(EmptyMarker + "\n")
		return b.String()
	}

	b.WriteString("| Author | Plan | Status | Updated |\n")
	b.WriteString("|--------|------|--------|---------|\n")
	for _, r := range res.Rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			r.Author, dash(r.PlanID), dash(r.Status), dash(r.LastUpdated))
	}
	if res.Latest != "" {
		fmt.Fprintf(&b, "\nLatest update: %s.\n", res.Latest)
	}
	return b.String()
}

func dash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// WritePointer writes one writer's pointer file, named deterministically
// from the normalized author identity. It is the only per-writer artifact
// this package ever writes.
func (s *Syncer) WritePointer(ptr models.Pointer) error {
	author := models.NormalizeIdentity(ptr.Author)
	if author == "" {
		return fmt.Errorf("plansync: pointer requires an author")
	}

	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "author: %s\n", author)
	if ptr.PlanID != "" {
		fmt.Fprintf(&b, "plan: %s\n", ptr.PlanID)
	}
	if ptr.Status != "" {
		fmt.Fprintf(&b, "status: %s\n", ptr.Status)
	}
	if ptr.Note != "" {
		fmt.Fprintf(&b, "note: %s\n", ptr.Note)
	}
	if ptr.LastUpdated != "" {
		fmt.Fprintf(&b, "updated: %s\n", ptr.LastUpdated)
	}
	b.WriteString("---\n")

	return s.store.Write(path.Join(s.dir, author+".md"), []byte(b.String()))
}
