package orchestrator

import (
	"context"

	"github.com/kestrel-labs/facebridge/internal/realtime"
)

// hotReloadSubscriber reacts to file-watch notifications from the Rules
// Repository and Config Store by invoking the corresponding reload action
// on the owning Orchestrator. It implements realtime.EventSubscriber so it
// can register on the shared event bus like any UI consumer, keeping the
// Repository/Store ignorant of who acts on their notifications.
type hotReloadSubscriber struct {
	id  string
	ctx context.Context
	o   *Orchestrator
}

func newHotReloadSubscriber(ctx context.Context, o *Orchestrator) *hotReloadSubscriber {
	return &hotReloadSubscriber{id: "orchestrator-hot-reload", ctx: ctx, o: o}
}

func (s *hotReloadSubscriber) ID() string { return s.id }

func (s *hotReloadSubscriber) Context() context.Context { return s.ctx }

func (s *hotReloadSubscriber) Close() error { return nil }

// Send is invoked by the event bus's broadcast worker for every published
// event; it dispatches the ones the Orchestrator must act on and ignores
// the rest.
func (s *hotReloadSubscriber) Send(event realtime.Event) error {
	switch event.Type {
	case realtime.EventTypeRulesChanged:
		s.o.onRulesChanged()
	case realtime.EventTypeConfigChanged:
		s.o.onConfigChanged(event.Data)
	}
	return nil
}
