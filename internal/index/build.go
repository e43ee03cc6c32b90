package index

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/checksum"
	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/parser"
	"github.com/halvard/munin/internal/storage"
)

// archiveDir is the corpus subdirectory excluded from the active index.
const archiveDir = "archive/"

// BuildCorpus walks the corpus and parses every active source file into a
// document. A file that fails to parse is reported per-path via logger and
// skipped; it simply does not appear in results until fixed. A duplicate
// (kind, id) is a hard error naming both source paths — never a silent
// overwrite. The result is sorted by SortDocs.
func BuildCorpus(store storage.Provider, logger *slog.Logger) ([]models.Document, error) {
	infos, err := store.List("", "")
	if err != nil {
		return nil, fmt.Errorf("index: list corpus: %w", err)
	}

	byKey := make(map[string]string) // kind/id -> source path
	var docs []models.Document
	for _, info := range infos {
		if strings.HasPrefix(info.Path, archiveDir) {
			continue
		}
		kind, ok := models.KindFromPath(info.Path)
		if !ok {
			continue // not a document directory (e.g. plans/team pointers are handled by plansync)
		}
		if kind == models.KindPlan && strings.HasPrefix(info.Path, "plans/team/") {
			continue
		}
		data, err := store.Read(info.Path)
		if err != nil {
			logger.Warn("build: read failed",
				slog.String("path", info.Path), slog.String("error", err.Error()))
			continue
		}
		doc, err := BuildDocument(info.Path, data, info)
		if err != nil {
			var pe *parser.ParseError
			if errors.As(err, &pe) {
				logger.Warn("build: parse failed",
					slog.String("path", info.Path),
					slog.Int("line", pe.Line),
					slog.String("error", pe.Msg))
				continue
			}
			return nil, err
		}
		key := string(doc.Kind) + "/" + doc.ID
		if prev, dup := byKey[key]; dup {
			return nil, fmt.Errorf("index: %w: %s declared by both %s and %s",
				apperr.ErrDuplicateID, key, prev, info.Path)
		}
		byKey[key] = info.Path
		docs = append(docs, *doc)
	}

	SortDocs(docs)
	return docs, nil
}

// BuildDocument assembles a document from one source file. The id derives
// deterministically from the filename and the kind from the top-level
// directory; a kind header key may agree but never overrides the path.
func BuildDocument(path string, data []byte, info models.FileInfo) (*models.Document, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}

	kind, ok := models.KindFromPath(path)
	if !ok {
		return nil, &parser.ParseError{Line: 1, Msg: fmt.Sprintf("path %q is outside a document directory", path)}
	}
	id := res.Meta.ID
	if id == "" {
		id = models.IDFromPath(path)
	}

	if kind == models.KindSession && res.Meta.Date == "" {
		return nil, &parser.ParseError{Line: 2, Msg: "session documents require a date"}
	}
	status := res.Meta.Status
	if kind == models.KindPlan && status == "" {
		status = models.StatusPlanned
	}

	return &models.Document{
		ID:         id,
		Kind:       kind,
		Date:       res.Meta.Date,
		Status:     status,
		Author:     res.Meta.Author,
		Topics:     res.Meta.Topics,
		Body:       res.Body,
		Sections:   res.Sections,
		SourcePath: path,
		Checksum:   checksumOf(info, data),
		Size:       info.Size,
		ModTime:    info.ModTime,
	}, nil
}

func checksumOf(info models.FileInfo, data []byte) string {
	if info.Checksum != "" {
		return info.Checksum
	}
	return checksum.Sum(data)
}
