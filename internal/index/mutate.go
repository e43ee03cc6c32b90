package index

import (
	"fmt"
	"strings"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/checksum"
	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/parser"
	"github.com/halvard/munin/internal/storage"
)

// createdSectionLevel is the heading level used when append/prepend has to
// create a missing section.
const createdSectionLevel = "##"

// mutateSection is the backend-shared implementation of
// Index.MutateSection: read the authoritative source file, apply the
// operation to its raw text, write it back atomically, and re-index.
func mutateSection(ix Index, store storage.Provider, kind models.Kind, id, section string, op MutateOp, content, ifMatch string) (*models.Document, error) {
	doc, err := ix.Get(kind, id)
	if err != nil {
		return nil, err
	}

	raw, err := store.Read(doc.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("index: %w: source file for %s/%s", apperr.ErrNotFound, kind, id)
	}
	if ifMatch != "" && ifMatch != checksum.Sum(raw) {
		return nil, fmt.Errorf("index: %w: source changed since checksum %.12s", apperr.ErrConflict, ifMatch)
	}

	updated, err := applySectionOp(raw, section, op, content)
	if err != nil {
		return nil, err
	}
	if err := store.Write(doc.SourcePath, updated); err != nil {
		return nil, err
	}

	info, err := store.Stat(doc.SourcePath)
	if err != nil {
		return nil, err
	}
	info.Checksum = checksum.Sum(updated)
	fresh, err := BuildDocument(doc.SourcePath, updated, info)
	if err != nil {
		return nil, err
	}
	if err := ix.Upsert(*fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// applySectionOp rewrites raw document text with op applied to the named
// section. Append/prepend against a missing section create it at the
// document end/start; insert-before/insert-after require the anchor and
// fail with apperr.ErrSectionNotFound otherwise.
func applySectionOp(raw []byte, section string, op MutateOp, content string) ([]byte, error) {
	res, err := parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	// Body is a byte suffix of raw, so section offsets shift uniformly.
	bodyOffset := len(raw) - len(res.Body)

	doc := models.Document{Body: res.Body, Sections: res.Sections}
	idx := doc.SectionIndex(section)

	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	switch op {
	case OpAppend:
		if idx < 0 {
			return appendBytes(raw, newSectionBlock(section, content)), nil
		}
		_, end := doc.SectionSpan(idx)
		return insertBytes(raw, bodyOffset+end, content), nil

	case OpPrepend:
		if idx < 0 {
			block := newSectionBlock(section, content)
			if !strings.HasSuffix(block, "\n") {
				block += "\n"
			}
			return insertBytes(raw, bodyOffset, block+"\n"), nil
		}
		return insertBytes(raw, bodyOffset+doc.Sections[idx].BodyStart, content), nil

	case OpInsertBefore:
		if idx < 0 {
			return nil, fmt.Errorf("index: %w: anchor %q", apperr.ErrSectionNotFound, section)
		}
		return insertBytes(raw, bodyOffset+doc.Sections[idx].HeadStart, content), nil

	case OpInsertAfter:
		if idx < 0 {
			return nil, fmt.Errorf("index: %w: anchor %q", apperr.ErrSectionNotFound, section)
		}
		_, end := doc.SectionSpan(idx)
		return insertBytes(raw, bodyOffset+end, content), nil
	}

	return nil, fmt.Errorf("index: unknown mutation op %q", op)
}

func newSectionBlock(section, content string) string {
	return fmt.Sprintf("%s %s\n\n%s", createdSectionLevel, section, content)
}

// insertBytes splices text into raw at offset. Splicing right after a final
// line that has no newline of its own gets one, so content never merges into
// the preceding line.
func insertBytes(raw []byte, offset int, text string) []byte {
	if offset > len(raw) {
		offset = len(raw)
	}
	if offset == len(raw) && offset > 0 && raw[offset-1] != '\n' {
		text = "\n" + text
	}
	out := make([]byte, 0, len(raw)+len(text))
	out = append(out, raw[:offset]...)
	out = append(out, text...)
	out = append(out, raw[offset:]...)
	return out
}

// appendBytes adds a new block at end of file, separated by a blank line.
func appendBytes(raw []byte, block string) []byte {
	out := raw
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	if len(out) > 0 {
		out = append(out, '\n')
	}
	return append(out, block...)
}
