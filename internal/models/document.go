// Package models defines the domain types for Munin.
package models

import (
	"path"
	"strings"
	"time"
)

// Kind identifies the class of a corpus document.
type Kind string

// Document kinds. Each maps to one top-level corpus directory.
const (
	KindSession Kind = "session"
	KindPlan    Kind = "plan"
	KindPattern Kind = "pattern"
)

var kindDirs = map[string]Kind{
	"sessions": KindSession,
	"plans":    KindPlan,
	"patterns": KindPattern,
}

// KindFromDir maps a top-level corpus directory name to a Kind.
func KindFromDir(dir string) (Kind, bool) {
	k, ok := kindDirs[dir]
	return k, ok
}

// Dir returns the corpus directory that holds documents of this kind.
func (k Kind) Dir() string {
	for d, kk := range kindDirs {
		if kk == k {
			return d
		}
	}
	return ""
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindSession || k == KindPlan || k == KindPattern
}

// Section describes one heading-delimited segment of a document body.
// HeadStart is the byte offset of the heading line within Document.Body;
// BodyStart is the offset just past the heading line's newline. The implicit
// section of a heading-less document has Level 0 and both offsets at 0.
type Section struct {
	Heading   string `json:"heading"`
	Level     int    `json:"level"`
	HeadStart int    `json:"head_start"`
	BodyStart int    `json:"body_start"`
}

// Document is a parsed corpus file: a session, plan, or pattern record.
// The source file is authoritative; every Document held by an index is a
// derived projection identified by (ID, Checksum) against SourcePath.
type Document struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	Date       string     `json:"date,omitempty"` // ISO YYYY-MM-DD
	Status     PlanStatus `json:"status,omitempty"`
	Author     string     `json:"author,omitempty"` // normalized
	Topics     []string   `json:"topics,omitempty"`
	Body       string     `json:"body"`
	Sections   []Section  `json:"sections"`
	SourcePath string     `json:"source_path"` // relative to corpus root
	Checksum   string     `json:"checksum"`
	Size       int64      `json:"size"`
	ModTime    time.Time  `json:"mod_time"`
}

// SectionIndex returns the position of the first section whose heading
// matches name case-insensitively, or -1.
func (d *Document) SectionIndex(name string) int {
	for i, s := range d.Sections {
		if strings.EqualFold(s.Heading, name) {
			return i
		}
	}
	return -1
}

// SectionSpan returns the [start, end) byte range in Body covered by the
// section at index i under the boundary rule: from just past its heading
// line to the next heading of equal or shallower level, or end of body.
// The heading line itself is not part of the span.
func (d *Document) SectionSpan(i int) (int, int) {
	s := d.Sections[i]
	end := len(d.Body)
	for _, next := range d.Sections[i+1:] {
		if next.Level <= s.Level {
			end = next.HeadStart
			break
		}
	}
	return s.BodyStart, end
}

// SectionContent returns the body text of the section at index i,
// including any deeper-nested subsections.
func (d *Document) SectionContent(i int) string {
	start, end := d.SectionSpan(i)
	return d.Body[start:end]
}

// NormalizeIdentity canonicalizes a free-text identity for use as a
// filename or index key: lower-cased, spaces collapsed to hyphens.
func NormalizeIdentity(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "-")
}

// IDFromPath derives the stable document id from a source path: the file
// stem, normalized. Ids are never regenerated independently of the path.
func IDFromPath(p string) string {
	base := path.Base(toSlash(p))
	base = strings.TrimSuffix(base, path.Ext(base))
	return NormalizeIdentity(base)
}

// KindFromPath derives the kind from the first path element of a source
// path relative to the corpus root.
func KindFromPath(p string) (Kind, bool) {
	p = toSlash(p)
	first := p
	if i := strings.IndexByte(p, '/'); i >= 0 {
		first = p[:i]
	}
	return KindFromDir(first)
}

// toSlash normalizes OS path separators to forward slashes.
func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// FileInfo is lightweight per-file metadata returned by storage listings.
type FileInfo struct {
	Path     string    `json:"path"`
	Checksum string    `json:"checksum"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}
