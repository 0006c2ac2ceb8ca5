// Package watch reports when the files that describe a dojo change on disk:
// dojo.yml, any module.yml, .gitmodules, or a module directory appearing or
// disappearing under the root.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/kingrea/dojo-manager/internal/manifest"
	"github.com/kingrea/dojo-manager/internal/vcs"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("watch: watcher closed")

const defaultSettle = 150 * time.Millisecond

// Event names the first relevant path that changed in a burst.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher follows the root directory and each module directory beneath it.
type Watcher struct {
	root   string
	fs     *fsnotify.Watcher
	settle time.Duration
	log    zerolog.Logger
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithSettle sets how long Next keeps absorbing follow-up events before
// returning, so one save produces one Event.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.settle = d
		}
	}
}

// WithLogger attaches a diagnostic logger.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Watcher) {
		w.log = log
	}
}

// New starts watching root.
func New(root string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{root: filepath.Clean(root), fs: fw, settle: defaultSettle, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(w)
	}
	if err := fw.Add(w.root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch: %s: %w", w.root, err)
	}
	if err := w.Sync(); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Sync adds every immediate subdirectory of root (except .git) to the watch
// list. New module directories are picked up automatically by Next.
func (w *Watcher) Sync() error {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("watch: read %s: %w", w.root, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == ".git" {
			continue
		}
		dir := filepath.Join(w.root, entry.Name())
		if err := w.fs.Add(dir); err != nil {
			w.log.Debug().Err(err).Str("dir", dir).Msg("cannot watch module directory")
		}
	}
	return nil
}

// Next blocks until a relevant change happens, ctx is done, or the watcher
// is closed.
func (w *Watcher) Next(ctx context.Context) (Event, error) {
	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return Event{}, ErrClosed
			}
			w.log.Warn().Err(err).Msg("file watcher error")
		case ev, ok := <-w.fs.Events:
			if !ok {
				return Event{}, ErrClosed
			}
			w.track(ev)
			if !relevant(w.root, ev) {
				continue
			}
			w.drain(ctx)
			return Event{Path: ev.Name, Op: ev.Op}, nil
		}
	}
}

// drain swallows the rest of a burst, still tracking new directories.
func (w *Watcher) drain(ctx context.Context) {
	if w.settle == 0 {
		return
	}
	timer := time.NewTimer(w.settle)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.track(ev)
		}
	}
}

func (w *Watcher) track(ev fsnotify.Event) {
	if filepath.Dir(ev.Name) != w.root || !ev.Has(fsnotify.Create) {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil || !info.IsDir() || info.Name() == ".git" {
		return
	}
	if err := w.fs.Add(ev.Name); err != nil {
		w.log.Debug().Err(err).Str("dir", ev.Name).Msg("cannot watch module directory")
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func relevant(root string, ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(ev.Name)
	switch base {
	case manifest.DojoFile, vcs.RegistryFile:
		return filepath.Dir(ev.Name) == root
	case manifest.ModuleFile:
		return filepath.Dir(filepath.Dir(ev.Name)) == root
	case ".git":
		return false
	}
	// A module directory created or removed at the top level.
	return filepath.Dir(ev.Name) == root && (ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)) && !isFile(ev.Name)
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
