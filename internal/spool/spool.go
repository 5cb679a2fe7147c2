// Package spool ingests draft files dropped into a spool directory.
// Other tooling on the device writes one JSON draft per file; the
// spool submits each through the orchestrator and removes the file
// once it is delivered or safely queued.
package spool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"roadsync/internal/report"
	"roadsync/internal/syncer"
)

// rejectedSuffix marks files the spool gave up on. They stay in the
// directory for inspection and are never picked up again.
const rejectedSuffix = ".rejected"

// Submitter is the slice of the orchestrator the spool needs.
type Submitter interface {
	Submit(ctx context.Context, ownerID string, draft report.Draft) (syncer.Receipt, error)
}

// Watcher feeds spooled draft files to a submitter.
type Watcher struct {
	dir       string
	ownerID   string
	submitter Submitter
	logger    *slog.Logger
}

// New creates a spool watcher over dir.
func New(dir, ownerID string, submitter Submitter, logger *slog.Logger) *Watcher {
	return &Watcher{
		dir:       dir,
		ownerID:   ownerID,
		submitter: submitter,
		logger:    logger,
	}
}

// Run processes files already present, then watches the directory
// until ctx is cancelled. It blocks; intended to run in a background
// goroutine alongside the sync loop.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("creating spool directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching spool directory: %w", err)
	}

	// Files dropped while nothing was watching.
	if err := w.scan(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed")
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.process(ctx, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed")
			}

			w.logger.Warn("spool watch error", slog.String("error", err.Error()))
		}
	}
}

// scan processes every eligible file currently in the directory.
func (w *Watcher) scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading spool directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		w.process(ctx, filepath.Join(w.dir, entry.Name()))
	}

	return nil
}

func (w *Watcher) shouldIgnore(path string) bool {
	name := filepath.Base(path)

	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return true
	}

	if strings.HasSuffix(name, rejectedSuffix) {
		return true
	}

	return !strings.HasSuffix(name, ".json")
}

// process submits one spooled file. The file is removed when the draft
// was delivered or queued, and renamed with a .rejected suffix when it
// can never succeed. Transient failures leave nothing behind either:
// Submit queues those internally.
func (w *Watcher) process(ctx context.Context, path string) {
	if w.shouldIgnore(path) {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// A second event for a file already processed and removed.
		if os.IsNotExist(err) {
			return
		}

		w.logger.Warn("spool file unreadable",
			slog.String("file", path),
			slog.String("error", err.Error()),
		)

		return
	}

	var draft report.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		w.reject(path, fmt.Errorf("decoding draft: %w", err))
		return
	}

	rcpt, err := w.submitter.Submit(ctx, w.ownerID, draft)
	if err != nil {
		w.reject(path, err)
		return
	}

	if err := os.Remove(path); err != nil {
		w.logger.Warn("removing processed spool file",
			slog.String("file", path),
			slog.String("error", err.Error()),
		)

		return
	}

	w.logger.Info("spool file submitted",
		slog.String("file", filepath.Base(path)),
		slog.Bool("queued", rcpt.Queued),
	)
}

// reject renames the file out of the pickup set. Submission errors are
// all permanent here; transient delivery failure surfaces as a queued
// receipt, not an error.
func (w *Watcher) reject(path string, cause error) {
	w.logger.Error("spool file rejected",
		slog.String("file", filepath.Base(path)),
		slog.String("error", cause.Error()),
	)

	if err := os.Rename(path, path+rejectedSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Warn("marking rejected spool file",
			slog.String("file", path),
			slog.String("error", err.Error()),
		)
	}
}
