package index

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/storage"
)

// archiveDocs is the backend-shared implementation of Index.Archive: move
// matching source files under archive/ and drop them from the active index.
// "Last writer wins" on the moved file is fine; the index stays a pure
// projection of whatever remains active.
func archiveDocs(ix Index, store storage.Provider, c ArchiveCriteria, now time.Time, logger *slog.Logger) (int, error) {
	if c.PathGlob != "" && !doublestar.ValidatePattern(c.PathGlob) {
		return 0, fmt.Errorf("index: invalid archive glob %q", c.PathGlob)
	}

	docs, _, err := ix.Query(Filter{Kind: c.Kind, Status: c.Status}, Page{})
	if err != nil {
		return 0, err
	}

	cutoff := ""
	if c.OlderThanDays > 0 {
		cutoff = now.AddDate(0, 0, -c.OlderThanDays).Format("2006-01-02")
	}

	count := 0
	for _, d := range docs {
		if cutoff != "" && effectiveDate(d) > cutoff {
			continue
		}
		if c.PathGlob != "" {
			if ok, _ := doublestar.Match(c.PathGlob, d.SourcePath); !ok {
				continue
			}
		}
		if err := store.Move(d.SourcePath, archiveDir+d.SourcePath); err != nil {
			logger.Warn("archive: move failed",
				slog.String("path", d.SourcePath), slog.String("error", err.Error()))
			continue
		}
		if err := ix.Delete(d.Kind, d.ID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// effectiveDate prefers the document's declared date; documents without one
// fall back to the source file's mtime.
func effectiveDate(d models.Document) string {
	if d.Date != "" {
		return d.Date
	}
	return d.ModTime.Format("2006-01-02")
}
