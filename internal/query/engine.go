// Package query implements the retrieval surface over a document index:
// filter validation, retrieval-mode enforcement, pagination defaults, and
// staleness exclusion. External collaborators call this engine, never a
// backend directly.
package query

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/checksum"
	"github.com/halvard/munin/internal/index"
	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/storage"
)

// DefaultLimit bounds unfiltered queries when the caller omits a limit.
const DefaultLimit = 20

// Mode selects how much of a matching document is returned.
type Mode struct {
	Name    string // "metadata", "section", or "full"
	Section string // set for section mode
}

// Retrieval mode constructors.
func Metadata() Mode           { return Mode{Name: "metadata"} }
func Full() Mode               { return Mode{Name: "full"} }
func Section(name string) Mode { return Mode{Name: "section", Section: name} }

// SectionContent is the extracted slice of one document in section mode.
// Content runs from just past the heading line to the next heading of equal
// or shallower level, or end of document.
type SectionContent struct {
	Heading string `json:"heading"`
	Level   int    `json:"level"`
	Content string `json:"content"`
}

// Item is one query hit, shaped by the retrieval mode. Metadata fields are
// always present; Body only in full mode, Section only in section mode.
type Item struct {
	ID         string            `json:"id"`
	Kind       models.Kind       `json:"kind"`
	Date       string            `json:"date,omitempty"`
	Status     models.PlanStatus `json:"status,omitempty"`
	Author     string            `json:"author,omitempty"`
	Topics     []string          `json:"topics,omitempty"`
	SourcePath string            `json:"source_path"`
	Checksum   string            `json:"checksum"`
	ModTime    time.Time         `json:"mod_time"`
	Headings   []string          `json:"headings,omitempty"`
	Body       string            `json:"body,omitempty"`
	Section    *SectionContent   `json:"section,omitempty"`
}

// Result is a query response page.
type Result struct {
	Items      []Item `json:"items"`
	TotalCount int    `json:"total_count"`
	HasMore    bool   `json:"has_more"`
	Stale      int    `json:"stale,omitempty"` // entries excluded pending rebuild
}

// Engine enforces the query contract over any index backend.
type Engine struct {
	ix     index.Index
	store  storage.Provider
	limit  int
	logger *slog.Logger
}

// New creates an engine. defaultLimit <= 0 falls back to DefaultLimit.
func New(ix index.Index, store storage.Provider, defaultLimit int, logger *slog.Logger) *Engine {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &Engine{ix: ix, store: store, limit: defaultLimit, logger: logger}
}

// Index exposes the underlying backend for operations the engine only
// passes through.
func (e *Engine) Index() index.Index { return e.ix }

// Query validates the filter against the backend's capabilities, fetches
// the full match set, excludes stale entries before pagination so that
// TotalCount and page boundaries only count trusted entries, and shapes
// items per the retrieval mode.
func (e *Engine) Query(f index.Filter, mode Mode, p index.Page) (*Result, error) {
	switch mode.Name {
	case "metadata", "full":
	case "section":
		if mode.Section == "" {
			return nil, fmt.Errorf("query: %w: section mode requires a name", apperr.ErrInvalidFilter)
		}
	default:
		return nil, fmt.Errorf("query: %w: unknown mode %q", apperr.ErrInvalidFilter, mode.Name)
	}
	if f.Text != "" && !e.ix.FullText() {
		return nil, fmt.Errorf("query: %w: text filter against a backend without full-text support", apperr.ErrInvalidFilter)
	}
	if p.Limit <= 0 {
		p.Limit = e.limit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	// An unbounded page pulls the whole ordered match set; staleness is
	// decided against the full set so paging is consistent across calls.
	docs, _, err := e.ix.Query(f, index.Page{})
	if err != nil {
		return nil, err
	}

	fresh := docs[:0]
	stale := 0
	for i := range docs {
		if e.isStale(&docs[i]) {
			stale++
			continue
		}
		fresh = append(fresh, docs[i])
	}
	total := len(fresh)
	page := index.Paginate(fresh, p)

	items := make([]Item, 0, len(page))
	for i := range page {
		item, ok := shape(&page[i], mode)
		if !ok {
			continue // document lacks the requested section
		}
		items = append(items, item)
	}
	if mode.Name == "section" && len(items) == 0 && total > 0 {
		return nil, fmt.Errorf("query: %w: %q", apperr.ErrSectionNotFound, mode.Section)
	}

	return &Result{
		Items:      items,
		TotalCount: total,
		HasMore:    p.Offset+len(page) < total,
		Stale:      stale,
	}, nil
}

// isStale checks the index entry against its source file: a size or mtime
// drift triggers a checksum recompute, and a mismatch excludes the entry
// from trusted results until the next rebuild.
func (e *Engine) isStale(d *models.Document) bool {
	info, err := e.store.Stat(d.SourcePath)
	if err != nil {
		e.logger.Warn("query: source missing, entry excluded",
			slog.String("path", d.SourcePath))
		return true
	}
	if info.Size == d.Size && info.ModTime.Equal(d.ModTime) {
		return false
	}
	data, err := e.store.Read(d.SourcePath)
	if err != nil || checksum.Sum(data) != d.Checksum {
		e.logger.Warn("query: stale entry excluded pending rebuild",
			slog.String("path", d.SourcePath), slog.String("id", d.ID))
		return true
	}
	return false
}

// shape projects a document through the retrieval mode. The second return
// is false when a section-mode document lacks the named section.
func shape(d *models.Document, mode Mode) (Item, bool) {
	item := Item{
		ID:         d.ID,
		Kind:       d.Kind,
		Date:       d.Date,
		Status:     d.Status,
		Author:     d.Author,
		Topics:     d.Topics,
		SourcePath: d.SourcePath,
		Checksum:   d.Checksum,
		ModTime:    d.ModTime,
	}
	for _, s := range d.Sections {
		if s.Heading != "" {
			item.Headings = append(item.Headings, s.Heading)
		}
	}

	switch mode.Name {
	case "metadata":
	case "full":
		item.Body = d.Body
	case "section":
		i := d.SectionIndex(mode.Section)
		if i < 0 {
			return Item{}, false
		}
		item.Section = &SectionContent{
			Heading: d.Sections[i].Heading,
			Level:   d.Sections[i].Level,
			Content: d.SectionContent(i),
		}
	}
	return item, true
}

// Upsert inserts or replaces a document, enforcing the plan status
// transition graph against the currently indexed version.
func (e *Engine) Upsert(doc models.Document) error {
	if doc.ID == "" || !doc.Kind.Valid() {
		return fmt.Errorf("query: document requires id and kind")
	}
	if doc.Kind == models.KindPlan {
		existing, err := e.ix.Get(doc.Kind, doc.ID)
		switch {
		case err == nil:
			if !existing.Status.CanTransition(doc.Status) {
				return fmt.Errorf("query: %w: %s -> %s for plan %s",
					apperr.ErrInvalidTransition, existing.Status, doc.Status, doc.ID)
			}
		case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrIndexNotInitialized):
			// New document; any starting status is accepted, the graph only
			// constrains transitions.
		default:
			return err
		}
	}
	return e.ix.Upsert(doc)
}

// MutateSection applies a named-section operation to the source file and
// re-indexes it.
func (e *Engine) MutateSection(kind models.Kind, id, section string, op index.MutateOp, content, ifMatch string) (*models.Document, error) {
	return e.ix.MutateSection(kind, id, section, op, content, ifMatch)
}

// Archive moves matching documents out of the active query surface.
func (e *Engine) Archive(c index.ArchiveCriteria) (int, error) {
	return e.ix.Archive(c)
}

// Rebuild re-derives the index from source files.
func (e *Engine) Rebuild() error {
	return e.ix.Rebuild()
}
