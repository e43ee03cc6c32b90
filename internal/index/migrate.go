package index

import (
	"fmt"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/models"
)

// Migrate copies every document from the JSON backend into the SQLite
// backend in one transaction. It is an explicit, one-way step: it refuses
// to run against an already-initialized destination so a populated index is
// never silently replaced.
func Migrate(src *JSONFile, dst *SQLite) (int, error) {
	already, err := dst.initialized()
	if err != nil {
		return 0, err
	}
	if already {
		return 0, fmt.Errorf("index: %w: destination already initialized, refusing to migrate over it", apperr.ErrAlreadyExists)
	}

	docs, err := src.load()
	if err != nil {
		return 0, err
	}

	tx, err := dst.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, doc := range docs {
		if err := upsertTx(tx, doc); err != nil {
			return 0, err
		}
	}
	if err := markInitialized(tx); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Dump returns the JSON backend's collection in deterministic order, for
// migration preflight and idempotence checks.
func (j *JSONFile) Dump() ([]models.Document, error) {
	return j.load()
}
