package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/halvard/munin/internal/checksum"
	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// event is one of "created", "updated", "deleted".
type EventCallback func(event string, path string)

// Watch starts an fsnotify watcher on the corpus root and keeps the index
// current until ctx is cancelled. It calls cb (if non-nil) after each
// successful index mutation.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a debounced reconciliation pass that removes
// index entries whose files no longer exist on disk.
func Watch(ctx context.Context, ix Index, store storage.Provider, corpusRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, corpusRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", corpusRoot))

	// reconcileTimer debounces rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ix, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					indexNewDir(ix, store, corpusRoot, absPath, logger, cb)
					continue
				}
			}

			rel, relErr := filepath.Rel(corpusRoot, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if !watchable(rel) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if idxErr := indexFromDisk(ix, store, rel); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				event := "updated"
				if ev.Op&fsnotify.Create != 0 {
					event = "created"
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", event))
				if cb != nil {
					cb(event, rel)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := ix.DeleteBySource(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", rel))
				if cb != nil {
					cb("deleted", rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new path
				// will arrive as a separate Create event (if it stays within
				// a watched dir). Delete the old entry immediately and
				// schedule a reconciliation pass to catch stragglers.
				if delErr := ix.DeleteBySource(rel); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("path", rel))
					if cb != nil {
						cb("deleted", rel)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// watchable reports whether a relative corpus path is an active document
// file. Pointer files and the archive are out of scope for the watcher.
func watchable(rel string) bool {
	if !strings.HasSuffix(rel, ".md") {
		return false
	}
	if strings.HasPrefix(rel, archiveDir) || strings.HasPrefix(rel, "plans/team/") {
		return false
	}
	_, ok := models.KindFromPath(rel)
	return ok
}

// indexFromDisk reads, parses, and upserts one source file.
func indexFromDisk(ix Index, store storage.Provider, rel string) error {
	data, err := store.Read(rel)
	if err != nil {
		return err
	}
	info, err := store.Stat(rel)
	if err != nil {
		return err
	}
	info.Checksum = checksum.Sum(data)
	doc, err := BuildDocument(rel, data, info)
	if err != nil {
		return err
	}
	return ix.Upsert(*doc)
}

// reconcile does a lightweight sync using batch lookups: index entries with
// no file on disk are removed, and on-disk files whose checksum changed are
// re-indexed.
func reconcile(ix Index, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	indexed, err := ix.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: checksums failed", slog.String("error", err.Error()))
		return
	}

	infos, err := store.List("", "")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(infos))
	for _, m := range infos {
		if watchable(m.Path) {
			disk[m.Path] = m.Checksum
		}
	}

	for p := range indexed {
		if _, ok := disk[p]; !ok {
			if delErr := ix.DeleteBySource(p); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("path", p))
				if cb != nil {
					cb("deleted", p)
				}
			}
		}
	}

	for p, cs := range disk {
		if indexed[p] == cs {
			continue
		}
		if idxErr := indexFromDisk(ix, store, p); idxErr == nil {
			logger.Debug("reconcile: indexed", slog.String("path", p))
			if cb != nil {
				cb("created", p)
			}
		}
	}
}

// indexNewDir indexes any document files found in a newly created directory.
func indexNewDir(ix Index, store storage.Provider, corpusRoot, dirPath string, logger *slog.Logger, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(corpusRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !watchable(rel) {
			return nil
		}
		if idxErr := indexFromDisk(ix, store, rel); idxErr == nil {
			logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
			if cb != nil {
				cb("created", rel)
			}
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
