// Package realtime provides the in-process event bus that lets the
// Orchestrator and its collaborators observe each other without direct
// coupling.
package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a real-time event broadcast to subscribers.
type Event struct {
	// Type is the event type (frame_received, rules_changed, config_changed, etc.)
	Type string `json:"type"`

	// ID is a unique event ID (UUID)
	ID string `json:"id"`

	// Data is the event payload (varies by event type)
	Data map[string]interface{} `json:"data"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Source is the event source (mobile_client, rules_repository, config_store, etc.)
	Source string `json:"source"`

	// Sequence is a sequence number for event ordering (monotonically increasing)
	Sequence int64 `json:"sequence"`
}

// EventType constants for bridge-wide events.
const (
	// EventTypeFrameReceived fires each time the Mobile Client decodes a
	// complete tracking frame from the phone.
	EventTypeFrameReceived = "frame_received"

	// EventTypeRulesLoaded fires after the Rules Repository successfully
	// parses and validates a ruleset, whether from disk or cache.
	EventTypeRulesLoaded = "rules_loaded"

	// EventTypeRulesChanged fires when a watched rules file changes and a
	// reload is about to be attempted.
	EventTypeRulesChanged = "rules_changed"

	// EventTypeConfigChanged fires after the Config Store applies a new,
	// validated configuration document.
	EventTypeConfigChanged = "config_changed"

	// EventTypeDesktopStateChanged fires on every Desktop Client state
	// machine transition.
	EventTypeDesktopStateChanged = "desktop_state_changed"

	// EventTypeHealthChanged fires when a component's health status flips.
	EventTypeHealthChanged = "health_changed"

	// EventTypeSystemNotification carries operator-facing notices that
	// don't belong to any single component.
	EventTypeSystemNotification = "system_notification"
)

// EventSource constants.
const (
	EventSourceMobileClient    = "mobile_client"
	EventSourceDesktopClient   = "desktop_client"
	EventSourceRulesRepository = "rules_repository"
	EventSourceEngine          = "transformation_engine"
	EventSourceConfigStore     = "config_store"
	EventSourceOrchestrator    = "orchestrator"
	EventSourceSystem          = "system"
)

// NewEvent creates a new Event with the given type, data, and source.
func NewEvent(eventType string, data map[string]interface{}, source string) *Event {
	return &Event{
		Type:      eventType,
		ID:        generateEventID(),
		Data:      data,
		Timestamp: time.Now(),
		Source:    source,
		Sequence:  0, // Will be set by EventBus
	}
}

// generateEventID generates a unique event ID (UUID).
func generateEventID() string {
	return uuid.New().String()
}
