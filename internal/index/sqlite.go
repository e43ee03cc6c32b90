package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/storage"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	kind        TEXT NOT NULL,
	id          TEXT NOT NULL,
	date        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT '',
	author      TEXT NOT NULL DEFAULT '',
	topics      TEXT NOT NULL DEFAULT '[]',
	body        TEXT NOT NULL DEFAULT '',
	sections    TEXT NOT NULL DEFAULT '[]',
	source_path TEXT NOT NULL,
	checksum    TEXT NOT NULL DEFAULT '',
	size        INTEGER NOT NULL DEFAULT 0,
	mod_time    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (kind, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_date   ON documents(date);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_author ON documents(author);

CREATE TABLE IF NOT EXISTS index_state (
	k        INTEGER PRIMARY KEY CHECK (k = 1),
	built_at TEXT NOT NULL
);
`

// SQLite is the relational index backend: indexed scalar columns plus a
// full-text table over document bodies (FTS5 behind the sqlite_fts5 build
// tag, LIKE fallback otherwise). It is never silently substituted for the
// JSON backend; migration is an explicit caller-invoked step.
type SQLite struct {
	conn   *sql.DB
	store  storage.Provider
	logger *slog.Logger
}

var _ Index = (*SQLite)(nil)

// OpenSQLite opens (or creates) the SQLite index and applies the schema.
func OpenSQLite(dsn string, store storage.Provider, logger *slog.Logger) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: %w: ping: %v", apperr.ErrIndexCorrupted, err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: %w: apply core schema: %v", apperr.ErrIndexCorrupted, err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: %w: apply fts schema: %v", apperr.ErrIndexCorrupted, err)
	}
	return &SQLite{conn: conn, store: store, logger: logger}, nil
}

// OpenSQLiteRecover opens the SQLite index, discarding and recreating the
// database file when it is corrupted. Safe because the index is always a
// derived projection; the caller must Rebuild afterwards.
func OpenSQLiteRecover(dsn string, store storage.Provider, logger *slog.Logger) (*SQLite, error) {
	db, err := OpenSQLite(dsn, store, logger)
	if err == nil || !errors.Is(err, apperr.ErrIndexCorrupted) {
		return db, err
	}
	logger.Warn("index: discarding corrupted database", slog.String("path", dsn))
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(dsn + suffix)
	}
	return OpenSQLite(dsn, store, logger)
}

// Close closes the underlying database connection.
func (db *SQLite) Close() error {
	return db.conn.Close()
}

// FullText reports that this backend can serve text filters.
func (db *SQLite) FullText() bool { return true }

func (db *SQLite) initialized() (bool, error) {
	var builtAt string
	err := db.conn.QueryRow(`SELECT built_at FROM index_state WHERE k = 1`).Scan(&builtAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("index: read state: %w", err)
	}
	return true, nil
}

func (db *SQLite) requireInitialized() error {
	ok, err := db.initialized()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("index: %w (run rebuild)", apperr.ErrIndexNotInitialized)
	}
	return nil
}

func markInitialized(tx *sql.Tx) error {
	_, err := tx.Exec(`INSERT INTO index_state (k, built_at) VALUES (1, ?)
		ON CONFLICT(k) DO UPDATE SET built_at = excluded.built_at`,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// Query applies indexable predicates in SQL, re-checks the full filter in
// Go so both backends produce identical logical results, and orders
// deterministically. Text filters rank via the full-text search path with
// date descending as the tie-break.
func (db *SQLite) Query(f Filter, p Page) ([]models.Document, int, error) {
	if err := db.requireInitialized(); err != nil {
		return nil, 0, err
	}
	if f.Text != "" {
		return db.textQuery(f, p)
	}

	where, args := filterSQL(f)
	rows, err := db.conn.Query(`SELECT kind, id, date, status, author, topics, body, sections,
		source_path, checksum, size, mod_time FROM documents`+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: query: %w", err)
	}
	docs, err := scanDocs(rows)
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

// filterSQL builds a WHERE clause for the exact-match indexed columns.
// Topic containment is deliberately left to the Go-side re-check.
func filterSQL(f Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if f.ID != "" {
		add("id = ?", models.NormalizeIdentity(f.ID))
	}
	if f.Kind != "" {
		add("kind = ?", string(f.Kind))
	}
	if f.Date != "" {
		add("date = ?", f.Date)
	}
	if f.DateAfter != "" {
		add("date > ?", f.DateAfter)
	}
	if f.DateBefore != "" {
		add("date <= ? AND date != ''", f.DateBefore)
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if f.Author != "" {
		add("author = ?", models.NormalizeIdentity(f.Author))
	}
	if len(conds) == 0 {
		return "", nil
	}
	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}

func scanDocs(rows *sql.Rows) ([]models.Document, error) {
	defer rows.Close()
	var out []models.Document
	for rows.Next() {
		d, err := scanDoc(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDoc(row rowScanner) (*models.Document, error) {
	var d models.Document
	var topicsJSON, sectionsJSON, modTime string
	if err := row.Scan(&d.Kind, &d.ID, &d.Date, &d.Status, &d.Author, &topicsJSON,
		&d.Body, &sectionsJSON, &d.SourcePath, &d.Checksum, &d.Size, &modTime); err != nil {
		return nil, fmt.Errorf("index: scan: %w", err)
	}
	if err := decodeDocColumns(&d, topicsJSON, sectionsJSON, modTime); err != nil {
		return nil, err
	}
	return &d, nil
}

// decodeDocColumns unpacks the JSON-encoded and timestamp columns.
func decodeDocColumns(d *models.Document, topicsJSON, sectionsJSON, modTime string) error {
	if err := json.Unmarshal([]byte(topicsJSON), &d.Topics); err != nil {
		return fmt.Errorf("index: %w: topics column: %v", apperr.ErrIndexCorrupted, err)
	}
	if err := json.Unmarshal([]byte(sectionsJSON), &d.Sections); err != nil {
		return fmt.Errorf("index: %w: sections column: %v", apperr.ErrIndexCorrupted, err)
	}
	if len(d.Topics) == 0 {
		d.Topics = nil
	}
	if len(d.Sections) == 0 {
		d.Sections = nil
	}
	if modTime != "" {
		t, err := time.Parse(time.RFC3339Nano, modTime)
		if err != nil {
			return fmt.Errorf("index: %w: mod_time column: %v", apperr.ErrIndexCorrupted, err)
		}
		d.ModTime = t
	}
	return nil
}

// Get returns one document by (kind, id).
func (db *SQLite) Get(kind models.Kind, id string) (*models.Document, error) {
	if err := db.requireInitialized(); err != nil {
		return nil, err
	}
	id = models.NormalizeIdentity(id)
	row := db.conn.QueryRow(`SELECT kind, id, date, status, author, topics, body, sections,
		source_path, checksum, size, mod_time FROM documents WHERE kind = ? AND id = ?`,
		string(kind), id)
	d, err := scanDoc(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: %w: %s/%s", apperr.ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Upsert inserts or fully replaces a document and its full-text entry in
// one transaction. The first upsert also initializes the index.
func (db *SQLite) Upsert(doc models.Document) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := upsertTx(tx, doc); err != nil {
		return err
	}
	if err := markInitialized(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertTx(tx *sql.Tx, doc models.Document) error {
	topicsJSON, _ := json.Marshal(nonNil(doc.Topics))
	sectionsJSON, _ := json.Marshal(nonNilSections(doc.Sections))

	_, err := tx.Exec(`
		INSERT INTO documents (kind, id, date, status, author, topics, body, sections,
			source_path, checksum, size, mod_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			date        = excluded.date,
			status      = excluded.status,
			author      = excluded.author,
			topics      = excluded.topics,
			body        = excluded.body,
			sections    = excluded.sections,
			source_path = excluded.source_path,
			checksum    = excluded.checksum,
			size        = excluded.size,
			mod_time    = excluded.mod_time
	`, string(doc.Kind), doc.ID, doc.Date, string(doc.Status), doc.Author,
		string(topicsJSON), doc.Body, string(sectionsJSON),
		doc.SourcePath, doc.Checksum, doc.Size, doc.ModTime.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}
	return ftsUpsert(tx, string(doc.Kind), doc.ID, doc.Body)
}

// Delete removes a document and its full-text entry.
func (db *SQLite) Delete(kind models.Kind, id string) error {
	id = models.NormalizeIdentity(id)
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, string(kind), id)
	if _, err := tx.Exec(`DELETE FROM documents WHERE kind = ? AND id = ?`, string(kind), id); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}
	return tx.Commit()
}

// MutateSection applies a section operation to the source file and
// re-indexes it.
func (db *SQLite) MutateSection(kind models.Kind, id, section string, op MutateOp, content, ifMatch string) (*models.Document, error) {
	return mutateSection(db, db.store, kind, id, section, op, content, ifMatch)
}

// Archive moves matching documents out of the active query surface.
func (db *SQLite) Archive(c ArchiveCriteria) (int, error) {
	return archiveDocs(db, db.store, c, time.Now(), db.logger)
}

// Rebuild re-derives the whole index from source files in one transaction:
// the previous contents are replaced wholesale, never merged.
func (db *SQLite) Rebuild() error {
	docs, err := BuildCorpus(db.store, db.logger)
	if err != nil {
		return err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM documents`); err != nil {
		return fmt.Errorf("index: clear documents: %w", err)
	}
	if err := ftsClear(tx); err != nil {
		return err
	}
	for _, doc := range docs {
		if err := upsertTx(tx, doc); err != nil {
			return err
		}
	}
	if err := markInitialized(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// AllChecksums maps every indexed source path to its recorded checksum.
func (db *SQLite) AllChecksums() (map[string]string, error) {
	if err := db.requireInitialized(); err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(`SELECT source_path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// DeleteBySource removes the entry backed by the given source path, if any.
func (db *SQLite) DeleteBySource(path string) error {
	var kind, id string
	err := db.conn.QueryRow(`SELECT kind, id FROM documents WHERE source_path = ?`, path).Scan(&kind, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("index: lookup by source: %w", err)
	}
	return db.Delete(models.Kind(kind), id)
}

// Dump returns every indexed document in deterministic order, for
// migration and idempotence checks.
func (db *SQLite) Dump() ([]models.Document, error) {
	if err := db.requireInitialized(); err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(`SELECT kind, id, date, status, author, topics, body, sections,
		source_path, checksum, size, mod_time FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: dump: %w", err)
	}
	docs, err := scanDocs(rows)
	if err != nil {
		return nil, err
	}
	SortDocs(docs)
	return docs, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilSections(s []models.Section) []models.Section {
	if s == nil {
		return []models.Section{}
	}
	return s
}
