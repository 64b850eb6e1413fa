package alert

import (
	"sort"

	"github.com/go-playground/validator/v10"
)

// Alert represents a server-originated emergency notice. The id is assigned
// server-side and never changes; ids are monotonically orderable, so the
// highest local id marks the incremental-fetch watermark.
type Alert struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Severity  string `json:"severity"`
	Timestamp string `json:"timestamp"`
}

// Alert severity levels
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Payload is the user-submitted subset of an Alert. The id and timestamp
// are assigned by the server on acceptance.
type Payload struct {
	Title    string `json:"title" validate:"required,max=200"`
	Severity string `json:"severity" validate:"required"`
}

// QueueItem is a pending incident report not yet confirmed by the server.
// The id is a locally generated unique token; it deduplicates the queue
// collection only, the server never sees it.
type QueueItem struct {
	ID   string  `json:"id"`
	Data Payload `json:"data"`
}

var validate = validator.New()

// Validate checks that a payload is submittable
func (p Payload) Validate() error {
	return validate.Struct(p)
}

// MaxID returns the highest alert id, or "" when the slice is empty.
func MaxID(alerts []Alert) string {
	if len(alerts) == 0 {
		return ""
	}
	ids := make([]string, len(alerts))
	for i, a := range alerts {
		ids[i] = a.ID
	}
	sort.Strings(ids)
	return ids[len(ids)-1]
}

// SortByTimestampDesc orders alerts newest first for display.
func SortByTimestampDesc(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Timestamp > alerts[j].Timestamp
	})
}
