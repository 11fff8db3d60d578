package types

import "time"

// EventType represents the type of registry change event.
type EventType string

const (
	EventTypeAdded   EventType = "added"
	EventTypeUpdated EventType = "updated"
	EventTypeRemoved EventType = "removed"
	EventTypeActive  EventType = "active"
)

// RegistryEvent represents a change in the component registry, used for
// push notifications to the studio page.
type RegistryEvent struct {
	Type EventType `json:"type"`
	// Component may be nil for reconcile-wide events
	Component *ComponentEntry `json:"component,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
