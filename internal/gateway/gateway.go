// Package gateway abstracts the remote report store. Two backends
// exist behind one interface: a document store and a REST API. The
// adapters normalize both into the same record shape; neither retries
// internally, retry policy belongs to the sync orchestrator.
package gateway

import (
	"context"
	"errors"

	"roadsync/internal/report"
)

// EventType classifies a change-feed event.
type EventType string

const (
	EventAdded    EventType = "added"
	EventModified EventType = "modified"
	EventRemoved  EventType = "removed"
)

// ChangeEvent is one change-feed notification. Events arrive in feed
// order per record; there is no ordering guarantee across records.
type ChangeEvent struct {
	Type   EventType
	Report report.RemoteReport
}

// ErrRejected marks a backend validation rejection: resubmitting the
// same payload would fail identically, so the orchestrator must not
// queue it for retry.
var ErrRejected = errors.New("backend rejected report")

//go:generate mockgen -source=gateway.go -destination=mock_gateway.go -package=gateway

// ReportGateway is the remote store contract used by the sync core.
type ReportGateway interface {
	// Create inserts a new report and returns its server-assigned ID.
	Create(ctx context.Context, r report.RemoteReport) (string, error)

	// ListAll returns every report, newest first.
	ListAll(ctx context.Context) ([]report.RemoteReport, error)

	// ListByOwner returns the owner's reports, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]report.RemoteReport, error)

	// UpdateStatus transitions a report's lifecycle stage.
	UpdateStatus(ctx context.Context, id string, status report.Status) error

	// WatchByOwner streams change events for the owner's reports to
	// handler until ctx is cancelled. Blocks; returns the reason the
	// stream ended.
	WatchByOwner(ctx context.Context, ownerID string, handler func(ChangeEvent)) error
}
