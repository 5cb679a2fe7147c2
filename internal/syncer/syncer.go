// Package syncer owns the submit-or-queue decision and the queue drain
// that runs when connectivity returns. It is the only writer of the
// local queue.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"roadsync/internal/connectivity"
	"roadsync/internal/gateway"
	"roadsync/internal/media"
	"roadsync/internal/queue"
	"roadsync/internal/report"
)

// ErrNoOwner is returned when no user is signed in at submission time.
// Nothing is queued: a queued submission requires an owner.
var ErrNoOwner = errors.New("no signed-in owner")

// Receipt tells the caller what happened to a submission. Queued is
// not an error: both outcomes deserve a positive confirmation.
type Receipt struct {
	// Queued is true when the draft was stored locally for a later
	// drain instead of being delivered.
	Queued bool

	// RemoteID is the server-assigned ID for a delivered submission.
	RemoteID string

	// SubmissionID is the local ID for a queued submission.
	SubmissionID string
}

// DrainResult summarizes one drain cycle.
type DrainResult struct {
	Attempted int

	// Delivered holds the submission IDs removed from the queue.
	Delivered []string

	// Rejected holds submissions the backend permanently refused.
	// They are removed from the queue too, but loudly, never
	// silently: replaying an identical payload fails identically.
	Rejected []string

	Remaining int
}

// Orchestrator coordinates the local queue, the connectivity monitor,
// the media uploader and the remote gateway.
type Orchestrator struct {
	store    *queue.Store
	gw       gateway.ReportGateway
	uploader media.Uploader
	monitor  *connectivity.Monitor
	logger   *slog.Logger

	// mu serializes every queue read-modify-write cycle. A drain holds
	// it end to end so a concurrent submit cannot enqueue between the
	// drain's read and its final rewrite and then be lost.
	mu sync.Mutex
}

// New creates the orchestrator.
func New(store *queue.Store, gw gateway.ReportGateway, uploader media.Uploader, monitor *connectivity.Monitor, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		gw:       gw,
		uploader: uploader,
		monitor:  monitor,
		logger:   logger,
	}
}

// Submit delivers a draft now if possible, otherwise queues it.
//
// Hard errors are limited to the two permanent cases: no signed-in
// owner and a draft that fails validation. Transient delivery failure
// degrades to queuing, indistinguishable from offline on purpose, so
// user input survives flaky networks.
func (o *Orchestrator) Submit(ctx context.Context, ownerID string, draft report.Draft) (Receipt, error) {
	if ownerID == "" {
		return Receipt{}, ErrNoOwner
	}

	if err := draft.Validate(); err != nil {
		return Receipt{}, err
	}

	sub := report.NewSubmission(ownerID, draft)

	if !o.monitor.Current().Connected {
		if err := o.enqueue(sub); err != nil {
			return Receipt{}, err
		}

		return Receipt{Queued: true, SubmissionID: sub.ID}, nil
	}

	remoteID, err := o.deliver(ctx, sub)
	if err != nil {
		if errors.Is(err, gateway.ErrRejected) {
			return Receipt{}, err
		}

		o.logger.Warn("delivery failed, queuing for later sync",
			slog.String("submission", sub.ID),
			slog.String("error", err.Error()),
		)

		if qerr := o.enqueue(sub); qerr != nil {
			return Receipt{}, qerr
		}

		return Receipt{Queued: true, SubmissionID: sub.ID}, nil
	}

	return Receipt{RemoteID: remoteID, SubmissionID: sub.ID}, nil
}

// deliver runs the online path for one submission: upload the photo if
// there is one, then create the remote record with the resolved URL.
// The submission is never mutated; a failed upload leaves the raw
// photo bytes queued for the next attempt.
func (o *Orchestrator) deliver(ctx context.Context, sub report.QueuedSubmission) (string, error) {
	photoURL := ""

	if len(sub.Draft.Photo) > 0 {
		url, err := o.uploader.Upload(ctx, sub.OwnerID, sub.Draft.Photo)
		if err != nil {
			return "", fmt.Errorf("uploading photo: %w", err)
		}

		photoURL = url
	}

	remoteID, err := o.gw.Create(ctx, report.FromSubmission(sub, photoURL))
	if err != nil {
		return "", fmt.Errorf("creating report: %w", err)
	}

	return remoteID, nil
}

func (o *Orchestrator) enqueue(sub report.QueuedSubmission) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.store.Enqueue(sub); err != nil {
		return fmt.Errorf("queuing submission: %w", err)
	}

	o.logger.Info("submission queued",
		slog.String("submission", sub.ID),
		slog.String("owner", sub.OwnerID),
	)

	return nil
}

// Drain attempts delivery of every queued entry in enqueue order.
// Entries that fail stay queued for the next drain; one failure never
// aborts the cycle. The queue is rewritten exactly once at the end, so
// a crash mid-drain leaves the pre-drain queue intact (at-least-once
// delivery; the client token bounds the duplicate risk).
func (o *Orchestrator) Drain(ctx context.Context) (DrainResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	subs, err := o.store.PeekAll()
	if err != nil {
		return DrainResult{}, err
	}

	if len(subs) == 0 {
		return DrainResult{}, nil
	}

	res := DrainResult{Attempted: len(subs)}
	var remaining []report.QueuedSubmission

	for _, sub := range subs {
		remoteID, err := o.deliver(ctx, sub)
		switch {
		case err == nil:
			res.Delivered = append(res.Delivered, sub.ID)
			o.logger.Info("queued submission delivered",
				slog.String("submission", sub.ID),
				slog.String("remote", remoteID),
			)

		case errors.Is(err, gateway.ErrRejected):
			// Replaying an identical payload fails identically, so
			// keeping it queued forever helps nobody.
			res.Rejected = append(res.Rejected, sub.ID)
			o.logger.Error("queued submission rejected by backend, dropping",
				slog.String("submission", sub.ID),
				slog.String("error", err.Error()),
			)

		default:
			remaining = append(remaining, sub)
			o.logger.Warn("queued submission still undeliverable",
				slog.String("submission", sub.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := o.store.ReplaceAll(remaining); err != nil {
		return res, fmt.Errorf("rewriting queue: %w", err)
	}

	res.Remaining = len(remaining)

	return res, nil
}

// Run drains opportunistically at start, then once per transition to
// connected, until ctx is cancelled. Drains are not timer-driven; the
// connectivity event cadence is the only retry trigger, which bounds
// retry storms.
func (o *Orchestrator) Run(ctx context.Context) error {
	kick := make(chan struct{}, 1)

	unsubscribe := o.monitor.Subscribe(func(st connectivity.State) {
		if !st.Connected {
			return
		}

		select {
		case kick <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if o.monitor.Current().Connected {
		o.drainAndLog(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-kick:
			o.drainAndLog(ctx)
		}
	}
}

func (o *Orchestrator) drainAndLog(ctx context.Context) {
	res, err := o.Drain(ctx)
	if err != nil {
		o.logger.Error("drain failed", slog.String("error", err.Error()))
		return
	}

	if res.Attempted > 0 {
		o.logger.Info("drain complete",
			slog.Int("attempted", res.Attempted),
			slog.Int("delivered", len(res.Delivered)),
			slog.Int("rejected", len(res.Rejected)),
			slog.Int("remaining", res.Remaining),
		)
	}
}
