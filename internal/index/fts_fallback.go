//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/halvard/munin/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; text filters use a LIKE scan over the body
	// column already held in the documents table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _, _ string) {}

func ftsClear(_ *sql.Tx) error { return nil }

// textQuery performs a LIKE-based match (fallback when FTS5 is not compiled
// in). With no relevance score available, results fall back to the standard
// date-descending, id-ascending order.
func (db *SQLite) textQuery(f Filter, p Page) ([]models.Document, int, error) {
	like := "%" + f.Text + "%"
	rows, err := db.conn.Query(`SELECT kind, id, date, status, author, topics, body, sections,
		source_path, checksum, size, mod_time FROM documents WHERE body LIKE ?`, like)
	if err != nil {
		return nil, 0, fmt.Errorf("index: text query: %w", err)
	}
	docs, err := scanDocs(rows)
	if err != nil {
		return nil, 0, err
	}

	rest := f
	rest.Text = ""
	var matched []models.Document
	for i := range docs {
		if Matches(&docs[i], rest) {
			matched = append(matched, docs[i])
		}
	}
	SortDocs(matched)
	total := len(matched)
	return Paginate(matched, p), total, nil
}
