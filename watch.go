package shelf

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// EventOp classifies a watch notification.
type EventOp string

const (
	EventCreated EventOp = "created"
	EventUpdated EventOp = "updated"
	EventDeleted EventOp = "deleted"
)

// Event describes one change to a member file observed by Watch. Path
// is relative to the collection root.
type Event struct {
	Op   EventOp
	Path string
}

// Watch blocks watching the collection directory and calls cb for every
// change to a member file until ctx is cancelled. With WithRecursive,
// subdirectories are watched too, and directories created at runtime
// join the watch list automatically.
//
// Writers that replace files via rename (this package included) surface
// updates as created events on most platforms; treat the two as
// "changed" when exactness matters.
func (c *Collection[T]) Watch(ctx context.Context, cb func(Event)) error {
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrInvalidArgument)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("shelf: start watcher: %w", err)
	}
	defer w.Close()

	if c.recursive {
		if err := addDirsRecursive(w, c.root); err != nil {
			return fmt.Errorf("shelf: watch %s: %w", c.root, err)
		}
	} else if err := w.Add(c.root); err != nil {
		return fmt.Errorf("shelf: watch %s: %w", c.root, err)
	}

	c.log.Info("shelf: watcher started", slog.String("root", c.root))

	for {
		select {
		case <-ctx.Done():
			c.log.Info("shelf: watcher stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs := ev.Name

			// New directories: extend the watch and report any member
			// files that arrived inside them (a directory moved into
			// the root wholesale produces no per-file events).
			if c.recursive && ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(abs); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, abs); addErr != nil {
						c.log.Warn("shelf: watch new dir failed",
							slog.String("path", abs),
							slog.String("error", addErr.Error()))
					}
					c.notifyDir(abs, cb)
					continue
				}
			}

			if !c.member(filepath.Base(abs)) {
				continue
			}
			rel, relErr := filepath.Rel(c.root, abs)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				cb(Event{Op: EventCreated, Path: rel})
			case ev.Op&fsnotify.Write != 0:
				cb(Event{Op: EventUpdated, Path: rel})
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Rename fires on the old path only; the new path
				// arrives as its own Create event when it stays inside
				// the root.
				cb(Event{Op: EventDeleted, Path: rel})
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Error("shelf: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// notifyDir reports member files already present under dir.
func (c *Collection[T]) notifyDir(dir string, cb func(Event)) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !c.member(d.Name()) {
			return nil
		}
		if rel, relErr := filepath.Rel(c.root, p); relErr == nil {
			cb(Event{Op: EventCreated, Path: rel})
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
