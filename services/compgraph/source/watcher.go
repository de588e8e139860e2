// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/compgraph/services/compgraph/ast"
)

// DefaultDebounce is the quiet period before a change batch is reported.
const DefaultDebounce = 300 * time.Millisecond

// ChangeFunc receives the full, re-discovered file set after a batch of
// changes. An error is logged and watching continues.
type ChangeFunc func(ctx context.Context, files []ast.SourceFile) error

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values are ignored.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger. Defaults to slog.Default().
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher re-discovers a project whenever its sources change.
//
// Description:
//
//	Every non-ignored directory under root is registered with fsnotify
//	when the Watcher is created; directories created later are added as
//	they appear. Events on supported source files reset a debounce timer.
//	When the timer fires the project is re-discovered and handed to the
//	ChangeFunc.
//
// Thread Safety: Run must be called at most once.
type Watcher struct {
	root     string
	opts     Options
	onChange ChangeFunc
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// NewWatcher creates a Watcher and registers the directory tree of root.
//
// Outputs:
//
//	*Watcher - Ready to Run. The caller must Close it.
//	error - Non-nil if fsnotify cannot be created or root cannot be walked.
func NewWatcher(root string, opts Options, onChange ChangeFunc, wopts ...WatcherOption) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("change callback must not be nil")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		opts:     opts.withDefaults(),
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		fsw:      fsw,
	}
	for _, opt := range wopts {
		opt(w)
	}

	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops fsnotify.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run processes events until ctx is done or the watcher is closed.
//
// Outputs:
//
//	error - ctx.Err() on cancellation, nil when the watcher was closed.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("source change",
				slog.String("path", ev.Name),
				slog.String("op", ev.Op.String()),
			)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))

		case <-fire:
			fire = nil
			w.flush(ctx)
		}
	}
}

func (w *Watcher) flush(ctx context.Context) {
	files, err := Discover(ctx, w.root, w.opts)
	if err != nil {
		w.logger.Warn("re-discovery failed", slog.String("error", err.Error()))
		return
	}
	if err := w.onChange(ctx, files); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Warn("change handler failed", slog.String("error", err.Error()))
	}
}

// relevant filters events and registers newly created directories.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || w.opts.Ignored(rel) {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if err := w.addTree(ev.Name); err == nil && isDir(ev.Name) {
			return true
		}
	}
	if w.opts.accepts(filepath.Base(ev.Name)) {
		return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) ||
			ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
	}
	// A removed or renamed directory takes its sources with it.
	return (ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)) && filepath.Ext(ev.Name) == ""
}

// addTree registers dir and every non-ignored directory below it. Paths
// that are not directories are ignored.
func (w *Watcher) addTree(dir string) error {
	if !isDir(dir) {
		return nil
	}
	ignore := make(map[string]struct{}, len(w.opts.IgnoreDirs))
	for _, d := range w.opts.IgnoreDirs {
		ignore[d] = struct{}{}
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if _, skip := ignore[d.Name()]; skip && path != w.root {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
