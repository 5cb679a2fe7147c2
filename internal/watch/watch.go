// Package watch turns remote status transitions on the user's own
// reports into notifications. It baselines the current statuses first
// so only genuine transitions notify, never the initial sync.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"roadsync/internal/gateway"
	"roadsync/internal/report"
)

//go:generate mockgen -source=watch.go -destination=mock_notifier.go -package=watch

// Notification is one user-facing alert.
type Notification struct {
	Title string
	Body  string
}

// Notifier delivers a notification to the user. Implementations that
// need a platform permission ask for it on first use; a denial is an
// error, the watcher degrades to logging and keeps watching.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. Used as the fallback
// when no platform notifier is available or permission was denied.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	l.Logger.Info("notification",
		slog.String("title", n.Title),
		slog.String("body", n.Body),
	)

	return nil
}

const (
	watchRestartMin = 2 * time.Second
	watchRestartMax = 60 * time.Second

	// bodyMaxRunes caps the description excerpt inside a notification.
	bodyMaxRunes = 50
)

// Watcher follows the change feed for one owner's reports and notifies
// on status transitions.
type Watcher struct {
	gw       gateway.ReportGateway
	notifier Notifier
	ownerID  string
	logger   *slog.Logger

	mu    sync.Mutex
	known map[string]report.Status
}

// New creates a watcher for the given owner.
func New(gw gateway.ReportGateway, notifier Notifier, ownerID string, logger *slog.Logger) *Watcher {
	return &Watcher{
		gw:       gw,
		notifier: notifier,
		ownerID:  ownerID,
		logger:   logger,
		known:    make(map[string]report.Status),
	}
}

// Run watches until ctx is cancelled, restarting the stream with
// backoff whenever it drops. Every restart re-baselines, so
// transitions that happened while the stream was down are absorbed
// silently instead of producing a burst of stale notifications.
func (w *Watcher) Run(ctx context.Context) error {
	backoff := watchRestartMin

	for {
		err := w.watchOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err == nil {
			err = errors.New("stream ended")
		}

		w.logger.Warn("status watch interrupted, restarting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff),
		)

		jitter := time.Duration(rand.Int64N(int64(backoff / 2)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}

		backoff = min(backoff*2, watchRestartMax)
	}
}

func (w *Watcher) watchOnce(ctx context.Context) error {
	if err := w.baseline(ctx); err != nil {
		return fmt.Errorf("baselining statuses: %w", err)
	}

	return w.gw.WatchByOwner(ctx, w.ownerID, w.handle)
}

// baseline replaces the known-status map with the server's current
// view. Reports already present never notify on first sight.
func (w *Watcher) baseline(ctx context.Context) error {
	reports, err := w.gw.ListByOwner(ctx, w.ownerID)
	if err != nil {
		return err
	}

	known := make(map[string]report.Status, len(reports))
	for _, r := range reports {
		known[r.RemoteID] = r.Status
	}

	w.mu.Lock()
	w.known = known
	w.mu.Unlock()

	w.logger.Info("status baseline established", slog.Int("reports", len(reports)))

	return nil
}

// handle processes one change event. Only a modified event whose
// status differs from the known one notifies; additions are learned
// silently and removals evicted.
func (w *Watcher) handle(ev gateway.ChangeEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := ev.Report.RemoteID

	switch ev.Type {
	case gateway.EventRemoved:
		delete(w.known, id)

	case gateway.EventAdded:
		w.known[id] = ev.Report.Status

	case gateway.EventModified:
		prev, seen := w.known[id]
		w.known[id] = ev.Report.Status

		if seen && prev != ev.Report.Status {
			w.notify(ev.Report)
		}
	}
}

func (w *Watcher) notify(r report.RemoteReport) {
	n := Notification{
		Title: "Report status updated",
		Body:  fmt.Sprintf("%q is now %s", excerpt(r.Description), r.Status.Label()),
	}

	if err := w.notifier.Notify(context.Background(), n); err != nil {
		w.logger.Warn("notification delivery failed, logging instead",
			slog.String("report", r.RemoteID),
			slog.String("body", n.Body),
			slog.String("error", err.Error()),
		)
	}
}

func excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= bodyMaxRunes {
		return s
	}

	return string(runes[:bodyMaxRunes]) + "..."
}
