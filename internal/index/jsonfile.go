package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/storage"
)

const jsonSnapshotVersion = 1

// jsonSnapshot is the serialized form of the JSON backend: the whole
// collection in one file, documents sorted by (date, id, kind). It carries
// no wall-clock data, so rebuilding from unchanged sources is
// byte-identical.
type jsonSnapshot struct {
	Version   int               `json:"version"`
	Documents []models.Document `json:"documents"`
}

// JSONFile is the flat-file index backend: a single serialized collection,
// linear-scanned per query. Appropriate while the corpus stays small; no
// secondary indexing and no full-text support.
type JSONFile struct {
	path   string
	store  storage.Provider
	logger *slog.Logger
}

var _ Index = (*JSONFile)(nil)

// NewJSONFile creates a JSON backend persisted at path. The file is not
// required to exist yet; queries before the first Rebuild (or Upsert) fail
// with apperr.ErrIndexNotInitialized.
func NewJSONFile(path string, store storage.Provider, logger *slog.Logger) *JSONFile {
	return &JSONFile{path: path, store: store, logger: logger}
}

// Path returns the index file location, for migration and diagnostics.
func (j *JSONFile) Path() string { return j.path }

func (j *JSONFile) load() ([]models.Document, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("index: %w: %s (run rebuild)", apperr.ErrIndexNotInitialized, j.path)
		}
		return nil, fmt.Errorf("index: read %s: %w", j.path, err)
	}
	var snap jsonSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("index: %w: %s: %v", apperr.ErrIndexCorrupted, j.path, err)
	}
	if snap.Version != jsonSnapshotVersion {
		return nil, fmt.Errorf("index: %w: %s: unsupported version %d", apperr.ErrIndexCorrupted, j.path, snap.Version)
	}
	return snap.Documents, nil
}

// save replaces the whole collection atomically: write to a temp file in
// the same directory, fsync, rename over the old one. A reader never
// observes a half-written index.
func (j *JSONFile) save(docs []models.Document) error {
	SortDocs(docs)
	data, err := json.MarshalIndent(jsonSnapshot{Version: jsonSnapshotVersion, Documents: docs}, "", "  ")
	if err != nil {
		return fmt.Errorf("index: marshal: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("index: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".munin-index-*")
	if err != nil {
		return fmt.Errorf("index: create temp: %w", err)
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("index: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("index: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("index: close temp: %w", err)
	}
	if err := os.Rename(tmpName, j.path); err != nil {
		return fmt.Errorf("index: rename: %w", err)
	}
	success = true
	return nil
}

// Query linear-scans the collection. Text filters are not supported by this
// backend.
func (j *JSONFile) Query(f Filter, p Page) ([]models.Document, int, error) {
	if f.Text != "" {
		return nil, 0, fmt.Errorf("index: %w: text filter requires the sqlite backend", apperr.ErrInvalidFilter)
	}
	docs, err := j.load()
	if err != nil {
		return nil, 0, err
	}
	var matched []models.Document
	for i := range docs {
		if Matches(&docs[i], f) {
			matched = append(matched, docs[i])
		}
	}
	SortDocs(matched)
	total := len(matched)
	return Paginate(matched, p), total, nil
}

// Get returns one document by (kind, id).
func (j *JSONFile) Get(kind models.Kind, id string) (*models.Document, error) {
	docs, err := j.load()
	if err != nil {
		return nil, err
	}
	id = models.NormalizeIdentity(id)
	for i := range docs {
		if docs[i].Kind == kind && docs[i].ID == id {
			return &docs[i], nil
		}
	}
	return nil, fmt.Errorf("index: %w: %s/%s", apperr.ErrNotFound, kind, id)
}

// Upsert inserts or fully replaces a document by (kind, id). An absent
// index file is treated as an empty collection, so the first upsert also
// initializes the index.
func (j *JSONFile) Upsert(doc models.Document) error {
	docs, err := j.load()
	if err != nil && !errors.Is(err, apperr.ErrIndexNotInitialized) {
		return err
	}
	replaced := false
	for i := range docs {
		if docs[i].Kind == doc.Kind && docs[i].ID == doc.ID {
			docs[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		docs = append(docs, doc)
	}
	return j.save(docs)
}

// Delete removes a document from the index only.
func (j *JSONFile) Delete(kind models.Kind, id string) error {
	docs, err := j.load()
	if err != nil {
		return err
	}
	id = models.NormalizeIdentity(id)
	out := docs[:0]
	for i := range docs {
		if docs[i].Kind == kind && docs[i].ID == id {
			continue
		}
		out = append(out, docs[i])
	}
	return j.save(out)
}

// MutateSection applies a section operation to the source file and
// re-indexes it.
func (j *JSONFile) MutateSection(kind models.Kind, id, section string, op MutateOp, content, ifMatch string) (*models.Document, error) {
	return mutateSection(j, j.store, kind, id, section, op, content, ifMatch)
}

// Archive moves matching documents out of the active query surface.
func (j *JSONFile) Archive(c ArchiveCriteria) (int, error) {
	return archiveDocs(j, j.store, c, time.Now(), j.logger)
}

// Rebuild re-derives the collection from source files and replaces the
// index file atomically. Idempotent on unchanged sources.
func (j *JSONFile) Rebuild() error {
	docs, err := BuildCorpus(j.store, j.logger)
	if err != nil {
		return err
	}
	return j.save(docs)
}

// AllChecksums maps every indexed source path to its recorded checksum.
func (j *JSONFile) AllChecksums() (map[string]string, error) {
	docs, err := j.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(docs))
	for i := range docs {
		out[docs[i].SourcePath] = docs[i].Checksum
	}
	return out, nil
}

// DeleteBySource removes the entry backed by the given source path, if any.
func (j *JSONFile) DeleteBySource(path string) error {
	docs, err := j.load()
	if err != nil {
		return err
	}
	out := docs[:0]
	changed := false
	for i := range docs {
		if docs[i].SourcePath == path {
			changed = true
			continue
		}
		out = append(out, docs[i])
	}
	if !changed {
		return nil
	}
	return j.save(out)
}

// FullText reports that this backend has no full-text support.
func (j *JSONFile) FullText() bool { return false }

// Close is a no-op; the backend holds no open handles between calls.
func (j *JSONFile) Close() error { return nil }
