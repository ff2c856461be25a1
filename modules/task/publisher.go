package task

import (
	"context"
	"fmt"

	domain "github.com/example/taskify/domain/task"
	"github.com/example/taskify/events"
	"github.com/go-monolith/mono"
)

// Publisher delivers change events to the feed.
type Publisher interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
}

type busPublisher struct {
	bus mono.EventBus
}

// NewBusPublisher publishes change events on the mono event bus.
func NewBusPublisher(bus mono.EventBus) Publisher {
	return &busPublisher{bus: bus}
}

func (p *busPublisher) Publish(_ context.Context, event domain.ChangeEvent) error {
	switch event.Type {
	case domain.ChangeInsert, domain.ChangeUpdate, domain.ChangeDelete:
		return events.TaskChangedV1.Publish(p.bus, event, nil)
	default:
		return fmt.Errorf("unknown change type %q", event.Type)
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.ChangeEvent) error { return nil }
