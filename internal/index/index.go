// Package index implements the backend-agnostic document index: a flat-file
// JSON backend and a SQLite backend with optional FTS5 full-text search.
// Both are derived, disposable projections of the corpus; Rebuild always
// re-derives them from source files.
package index

import (
	"sort"
	"strings"

	"github.com/halvard/munin/internal/models"
)

// MutateOp is a named-section mutation operation.
type MutateOp string

// Section mutation operations. Append and Prepend create a missing section
// at the document end or start respectively; InsertBefore and InsertAfter
// require the named anchor to exist.
const (
	OpAppend       MutateOp = "append"
	OpPrepend      MutateOp = "prepend"
	OpInsertBefore MutateOp = "insert-before"
	OpInsertAfter  MutateOp = "insert-after"
)

// Filter is the AND-composed predicate set for queries. Zero values match
// everything for that field. DateAfter matches strictly later dates;
// DateBefore is inclusive.
type Filter struct {
	ID         string
	Kind       models.Kind
	Date       string
	DateAfter  string
	DateBefore string
	Status     models.PlanStatus
	Author     string
	Topic      string
	Text       string
}

// Page bounds a query result. Limit <= 0 means the caller did not choose;
// the query engine substitutes its default before reaching a backend.
type Page struct {
	Limit  int
	Offset int
}

// ArchiveCriteria selects documents to move out of the active index.
type ArchiveCriteria struct {
	OlderThanDays int
	Kind          models.Kind
	Status        models.PlanStatus
	PathGlob      string // doublestar pattern against SourcePath
}

// Index is the backend-agnostic storage adapter. Every operation yields
// identical logical results regardless of backend, given the same ingested
// documents; backend selection is an explicit construction-time choice.
type Index interface {
	// Query returns the filtered, deterministically ordered page of
	// documents plus the total match count. Querying before any successful
	// Rebuild fails with apperr.ErrIndexNotInitialized.
	Query(f Filter, p Page) ([]models.Document, int, error)
	// Get returns one document by (kind, id), or apperr.ErrNotFound.
	Get(kind models.Kind, id string) (*models.Document, error)
	// Upsert inserts or fully replaces a document by (kind, id).
	Upsert(doc models.Document) error
	// Delete removes a document from the index only; the source file is
	// untouched.
	Delete(kind models.Kind, id string) error
	// MutateSection rewrites the source file with the section operation
	// applied, then re-indexes it. ifMatch, when non-empty, must equal the
	// current source checksum or the call fails with apperr.ErrConflict.
	MutateSection(kind models.Kind, id, section string, op MutateOp, content, ifMatch string) (*models.Document, error)
	// Archive moves matching documents out of the active query surface and
	// returns how many were moved.
	Archive(c ArchiveCriteria) (int, error)
	// Rebuild re-derives the whole index from source files. Idempotent:
	// re-running on unchanged sources yields an identical index.
	Rebuild() error
	// AllChecksums maps every indexed source path to its recorded checksum,
	// for incremental reconciliation.
	AllChecksums() (map[string]string, error)
	// DeleteBySource removes the index entry backed by the given source
	// path, if any.
	DeleteBySource(path string) error
	// FullText reports whether this backend can serve text filters.
	FullText() bool
	Close() error
}

// Matches evaluates every non-text predicate of f against d. Text matching
// is backend-specific and handled separately.
func Matches(d *models.Document, f Filter) bool {
	if f.ID != "" && d.ID != models.NormalizeIdentity(f.ID) {
		return false
	}
	if f.Kind != "" && d.Kind != f.Kind {
		return false
	}
	if f.Date != "" && d.Date != f.Date {
		return false
	}
	if f.DateAfter != "" && (d.Date == "" || d.Date <= f.DateAfter) {
		return false
	}
	if f.DateBefore != "" && (d.Date == "" || d.Date > f.DateBefore) {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.Author != "" && d.Author != models.NormalizeIdentity(f.Author) {
		return false
	}
	if f.Topic != "" && !topicMatch(d.Topics, f.Topic) {
		return false
	}
	return true
}

// topicMatch reports whether any topic contains needle, case-insensitively.
func topicMatch(topics []string, needle string) bool {
	needle = strings.ToLower(needle)
	for _, t := range topics {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

// SortDocs orders documents by date descending, then id ascending, then
// kind — never backend- or insertion-order-dependent. Documents without a
// date sort after all dated ones.
func SortDocs(docs []models.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if a.Date != b.Date {
			if a.Date == "" {
				return false
			}
			if b.Date == "" {
				return true
			}
			return a.Date > b.Date
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Kind < b.Kind
	})
}

// Paginate applies limit/offset to an already-ordered slice.
func Paginate(docs []models.Document, p Page) []models.Document {
	if p.Offset >= len(docs) {
		return nil
	}
	docs = docs[p.Offset:]
	if p.Limit > 0 && p.Limit < len(docs) {
		docs = docs[:p.Limit]
	}
	return docs
}
