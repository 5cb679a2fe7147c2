// Package report holds the domain model shared by the queue, the
// gateway adapters and the sync orchestrator: user-authored drafts,
// locally queued submissions, and the normalized remote record shape.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Category classifies the kind of road damage being reported.
type Category string

const (
	CategoryPothole    Category = "pothole"
	CategoryCrack      Category = "crack"
	CategorySubsidence Category = "subsidence"
	CategoryFlooding   Category = "flooding"
	CategoryObstacle   Category = "obstacle"
	CategoryOther      Category = "other"
)

var ErrInvalidDraft = errors.New("invalid draft")

// Draft is the user-authored payload before any persistence. Immutable
// once handed to the orchestrator.
type Draft struct {
	Latitude    float64  `json:"latitude" validate:"latitude"`
	Longitude   float64  `json:"longitude" validate:"longitude"`
	Description string   `json:"description" validate:"required,max=2000"`
	Category    Category `json:"category" validate:"required,oneof=pothole crack subsidence flooding obstacle other"`

	// Photo is the raw JPEG capture, kept verbatim until an upload
	// succeeds. Never sent to the report backends directly.
	Photo []byte `json:"photo,omitempty"`

	// Optional assessment fields filled in later by managers.
	AreaM2  *float64 `json:"area_m2,omitempty"`
	Budget  *float64 `json:"budget,omitempty"`
	Company *string  `json:"company,omitempty"`
}

// The latitude and longitude rules on Draft are validator built-ins.
var validate = validator.New()

// Validate checks the draft against the field rules above. The error
// wraps ErrInvalidDraft so callers can treat validation failures as
// permanent (resubmitting the same payload would fail identically).
func (d Draft) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}

	return nil
}

// QueuedSubmission is a draft plus queuing metadata. Created when a
// submission cannot be delivered immediately; removed from the queue
// once delivered. The ID doubles as the idempotency token sent with the
// remote create, so a crash between delivery and queue rewrite cannot
// produce a second remote record on a backend that dedups.
type QueuedSubmission struct {
	ID        string `json:"id"`
	OwnerID   string `json:"ownerId"`
	Draft     Draft  `json:"draft"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// NewSubmission wraps a draft for queuing under a fresh local ID.
func NewSubmission(ownerID string, draft Draft) QueuedSubmission {
	now := time.Now().UnixMilli()

	return QueuedSubmission{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Draft:     draft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RemoteReport is the canonical, server-assigned record, normalized
// from whichever backend produced it. PhotoURL is always a resolved
// URL, never raw bytes.
type RemoteReport struct {
	RemoteID    string   `json:"id"`
	OwnerID     string   `json:"ownerId"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	PhotoURL    string   `json:"photoUrl,omitempty"`
	Status      Status   `json:"status"`
	AreaM2      *float64 `json:"area_m2,omitempty"`
	Budget      *float64 `json:"budget,omitempty"`
	Company     *string  `json:"company,omitempty"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`

	// ClientToken mirrors the queued submission ID when the record was
	// created through the offline queue. Empty for direct submissions
	// made by other sessions.
	ClientToken string `json:"clientToken,omitempty"`
}

// FromSubmission builds the remote record for a queued submission,
// attaching the resolved photo URL (may be empty when no photo was
// captured).
func FromSubmission(sub QueuedSubmission, photoURL string) RemoteReport {
	return RemoteReport{
		OwnerID:     sub.OwnerID,
		Latitude:    sub.Draft.Latitude,
		Longitude:   sub.Draft.Longitude,
		Description: sub.Draft.Description,
		Category:    sub.Draft.Category,
		PhotoURL:    photoURL,
		Status:      StatusNew,
		AreaM2:      sub.Draft.AreaM2,
		Budget:      sub.Draft.Budget,
		Company:     sub.Draft.Company,
		CreatedAt:   sub.CreatedAt,
		UpdatedAt:   sub.UpdatedAt,
		ClientToken: sub.ID,
	}
}
