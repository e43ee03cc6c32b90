//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/halvard/munin/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			kind UNINDEXED,
			id UNINDEXED,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, kind, id, body string) error {
	_, _ = tx.Exec(`DELETE FROM documents_fts WHERE kind = ? AND id = ?`, kind, id)
	if _, err := tx.Exec(`INSERT INTO documents_fts (kind, id, body) VALUES (?, ?, ?)`,
		kind, id, body); err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, kind, id string) {
	_, _ = tx.Exec(`DELETE FROM documents_fts WHERE kind = ? AND id = ?`, kind, id)
}

func ftsClear(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM documents_fts`); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	return nil
}

// textQuery runs an FTS5 match and orders by relevance rank, with date
// descending then id ascending as the tie-break. The remaining filter
// predicates are re-checked in Go against the fetched documents.
func (db *SQLite) textQuery(f Filter, p Page) ([]models.Document, int, error) {
	rows, err := db.conn.Query(`
		SELECT d.kind, d.id, d.date, d.status, d.author, d.topics, d.body, d.sections,
		       d.source_path, d.checksum, d.size, d.mod_time, fts.rank
		FROM documents_fts fts
		JOIN documents d ON d.kind = fts.kind AND d.id = fts.id
		WHERE documents_fts MATCH ?
		ORDER BY fts.rank
	`, f.Text)
	if err != nil {
		return nil, 0, fmt.Errorf("index: text query: %w", err)
	}
	defer rows.Close()

	type ranked struct {
		doc  models.Document
		rank float64
	}
	var hits []ranked
	for rows.Next() {
		var r ranked
		d := &r.doc
		var topicsJSON, sectionsJSON, modTime string
		if err := rows.Scan(&d.Kind, &d.ID, &d.Date, &d.Status, &d.Author, &topicsJSON,
			&d.Body, &sectionsJSON, &d.SourcePath, &d.Checksum, &d.Size, &modTime, &r.rank); err != nil {
			return nil, 0, fmt.Errorf("index: scan: %w", err)
		}
		if err := decodeDocColumns(d, topicsJSON, sectionsJSON, modTime); err != nil {
			return nil, 0, err
		}
		rest := f
		rest.Text = ""
		if Matches(d, rest) {
			hits = append(hits, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		if hits[i].doc.Date != hits[j].doc.Date {
			return hits[i].doc.Date > hits[j].doc.Date
		}
		return hits[i].doc.ID < hits[j].doc.ID
	})

	docs := make([]models.Document, len(hits))
	for i, h := range hits {
		docs[i] = h.doc
	}
	total := len(docs)
	return Paginate(docs, p), total, nil
}
