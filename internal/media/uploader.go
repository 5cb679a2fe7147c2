// Package media turns raw photo captures into durable remote URLs
// before a report record is finalized.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"
)

//go:generate mockgen -source=uploader.go -destination=mock_uploader.go -package=media

// Uploader writes one photo blob to remote storage and returns its
// public URL. Failure propagates untouched: the caller keeps the raw
// bytes and decides whether to retry or queue them.
type Uploader interface {
	Upload(ctx context.Context, ownerID string, photo []byte) (string, error)
}

// objectKey namespaces blobs by owner with a time-based filename so
// concurrent captures never collide.
func objectKey(ownerID string, now time.Time) string {
	return fmt.Sprintf("reports/%s/%d.jpg", ownerID, now.UnixMilli())
}

// ErrDisabled is returned by Disabled for every upload. The failure is
// transient from the orchestrator's point of view: submissions with
// photos stay queued until a real backend is configured.
var ErrDisabled = errors.New("media uploads disabled")

// Disabled is the uploader used when no media backend is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, []byte) (string, error) {
	return "", ErrDisabled
}
