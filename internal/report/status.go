package report

import "strings"

// Status is the lifecycle stage of a report.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// statusAliases maps the spellings seen across the two backends (and the
// legacy French dataset) to canonical values. Keys are lowercased with
// separators stripped.
var statusAliases = map[string]Status{
	"new":        StatusNew,
	"nouveau":    StatusNew,
	"pending":    StatusNew,
	"inprogress": StatusInProgress,
	"encours":    StatusInProgress,
	"done":       StatusDone,
	"termine":    StatusDone,
	"resolved":   StatusDone,
	"cancelled":  StatusCancelled,
	"canceled":   StatusCancelled,
	"annule":     StatusCancelled,
}

// ParseStatus normalizes a raw status string to a canonical Status.
// Matching is case-insensitive and ignores "-" and "_", so "EN_COURS",
// "en-cours" and "encours" all parse to StatusInProgress. Unrecognized
// input defaults to StatusNew rather than failing: a report with a
// mangled status is still a report.
func ParseStatus(raw string) Status {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "", "_", "", "é", "e").Replace(key)

	if s, ok := statusAliases[key]; ok {
		return s
	}

	return StatusNew
}

// Label returns the human-readable label used in notifications.
func (s Status) Label() string {
	switch s {
	case StatusInProgress:
		return "In progress"
	case StatusDone:
		return "Done"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "New"
	}
}

func (s Status) String() string {
	return string(s)
}
