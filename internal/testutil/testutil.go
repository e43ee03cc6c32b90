// Package testutil provides shared test helpers for setting up corpora and
// index backends.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/halvard/munin/internal/index"
	"github.com/halvard/munin/internal/storage"
)

// Logger returns a quiet logger for tests.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestCorpus creates a temporary corpus directory with a storage.Provider.
func TestCorpus(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteFile writes a corpus file through plain os calls, creating parents.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestJSONIndex creates a JSON backend persisted in a temporary directory.
func TestJSONIndex(t *testing.T, store storage.Provider) *index.JSONFile {
	t.Helper()
	return index.NewJSONFile(filepath.Join(t.TempDir(), "index.json"), store, Logger())
}

// TestSQLiteIndex creates a temporary SQLite backend that is cleaned up
// with the test.
func TestSQLiteIndex(t *testing.T, store storage.Provider) *index.SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	db, err := index.OpenSQLite(path, store, Logger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
