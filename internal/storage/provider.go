// Package storage defines the corpus file-system abstraction. Source files
// are always authoritative; every index is a derived projection of them.
package storage

import "github.com/halvard/munin/internal/models"

// Provider is the interface for corpus file operations. Paths are relative
// to the corpus root.
type Provider interface {
	// List returns metadata for every .md file under dir. A non-empty glob
	// (doublestar syntax) further restricts the result by relative path.
	List(dir, glob string) ([]models.FileInfo, error)
	// Stat returns size and mtime for path without reading it. The returned
	// Checksum is empty.
	Stat(path string) (models.FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (temp file, fsync, rename).
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath, creating parent directories.
	Move(oldPath, newPath string) error
}
