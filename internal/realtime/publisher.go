// Package realtime provides the in-process event bus that lets the
// Orchestrator and its collaborators observe each other without direct
// coupling.
package realtime

import (
	"log/slog"
)

// EventPublisher publishes events to EventBus from various sources.
type EventPublisher struct {
	eventBus *DefaultEventBus
	logger   *slog.Logger
	metrics  *RealtimeMetrics
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(eventBus *DefaultEventBus, logger *slog.Logger, metrics *RealtimeMetrics) *EventPublisher {
	return &EventPublisher{
		eventBus: eventBus,
		logger:   logger.With("component", "event_publisher"),
		metrics:  metrics,
	}
}

// PublishFrameReceived publishes notice that the Mobile Client decoded a
// tracking frame. data carries only the frame id, its timestamp and the
// number of blend shapes, not the blend-shape values, to keep event fan-out
// cheap.
func (p *EventPublisher) PublishFrameReceived(frameID string, timestampMs int64, blendShapeCount int) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"frame_id":          frameID,
		"timestamp_ms":      timestampMs,
		"blend_shape_count": blendShapeCount,
	}

	event := NewEvent(EventTypeFrameReceived, data, EventSourceMobileClient)
	return p.eventBus.Publish(*event)
}

// PublishRulesLoaded publishes notice that the Rules Repository produced a
// usable ruleset, either freshly parsed or recovered from the durable cache.
func (p *EventPublisher) PublishRulesLoaded(ruleCount int, loadedFromCache bool, invalidCount int) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"rule_count":        ruleCount,
		"loaded_from_cache": loadedFromCache,
		"invalid_count":     invalidCount,
	}

	event := NewEvent(EventTypeRulesLoaded, data, EventSourceRulesRepository)
	return p.eventBus.Publish(*event)
}

// PublishRulesChanged publishes notice that a watched rules file changed on
// disk and a reload is about to be attempted.
func (p *EventPublisher) PublishRulesChanged(path string) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"path": path,
	}

	event := NewEvent(EventTypeRulesChanged, data, EventSourceRulesRepository)
	return p.eventBus.Publish(*event)
}

// PublishConfigChanged publishes notice that the Config Store applied a new
// validated configuration document.
func (p *EventPublisher) PublishConfigChanged(version string, changedSections []string) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"version":          version,
		"changed_sections": changedSections,
	}

	event := NewEvent(EventTypeConfigChanged, data, EventSourceConfigStore)
	return p.eventBus.Publish(*event)
}

// PublishDesktopStateChanged publishes a Desktop Client state machine
// transition.
func (p *EventPublisher) PublishDesktopStateChanged(from, to, reason string) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"from": from,
		"to":   to,
	}

	if reason != "" {
		data["reason"] = reason
	}

	event := NewEvent(EventTypeDesktopStateChanged, data, EventSourceDesktopClient)
	return p.eventBus.Publish(*event)
}

// PublishHealthEvent publishes a health change event.
func (p *EventPublisher) PublishHealthEvent(component string, status string, latencyMs float64, message string) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"component":  component,
		"status":     status,
		"latency_ms": latencyMs,
	}

	if message != "" {
		data["message"] = message
	}

	event := NewEvent(EventTypeHealthChanged, data, EventSourceOrchestrator)
	return p.eventBus.Publish(*event)
}

// PublishSystemNotification publishes a system notification event.
func (p *EventPublisher) PublishSystemNotification(level string, message string) error {
	if p.eventBus == nil {
		return nil // EventBus not initialized, skip
	}

	data := map[string]interface{}{
		"level":   level, // info, warning, error
		"message": message,
	}

	event := NewEvent(EventTypeSystemNotification, data, EventSourceSystem)
	return p.eventBus.Publish(*event)
}
