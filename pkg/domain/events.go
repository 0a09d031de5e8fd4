package domain

import "time"

// EventType names an engine notification.
type EventType string

const (
	EventUpdate  EventType = "update"
	EventError   EventType = "error"
	EventRestore EventType = "restore"
	EventReset   EventType = "reset"
	EventImport  EventType = "import"
)

// UpdateSource tells which side of the editor triggered an update.
type UpdateSource string

const (
	SourceCode UpdateSource = "code"
	SourceUI   UpdateSource = "ui"
)

// Event is delivered to listeners after a state change completes or fails.
type Event struct {
	Type      EventType    `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Source    UpdateSource `json:"source,omitempty"`

	// Err is set for EventError.
	Err error `json:"-"`

	// Diff describes what changed, nil when nothing did.
	Diff *StateDiff `json:"diff,omitempty"`

	// Snapshot is the state after the change.
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}
