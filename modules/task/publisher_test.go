package task

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	domain "github.com/example/taskify/domain/task"
	"github.com/example/taskify/events"
	"github.com/go-monolith/mono/pkg/types"
)

// recordingBus captures published messages. Only PublishMsg is implemented.
type recordingBus struct {
	types.EventBus

	mu   sync.Mutex
	msgs []*types.Msg
}

func (b *recordingBus) PublishMsg(msg *types.Msg) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
	return nil
}

func TestBusPublisher_AllKindsShareOneSubject(t *testing.T) {
	bus := &recordingBus{}
	publisher := NewBusPublisher(bus)
	ctx := context.Background()

	created := &domain.Task{ID: "t1", Title: "Buy milk", UserID: "u1"}
	sequence := []domain.ChangeEvent{
		{Type: domain.ChangeInsert, New: created, UserID: "u1"},
		{Type: domain.ChangeUpdate, New: created, Old: created, UserID: "u1"},
		{Type: domain.ChangeDelete, Old: created, UserID: "u1"},
	}
	for _, event := range sequence {
		if err := publisher.Publish(ctx, event); err != nil {
			t.Fatalf("Publish(%s) error = %v", event.Type, err)
		}
	}

	if len(bus.msgs) != len(sequence) {
		t.Fatalf("published %d messages, want %d", len(bus.msgs), len(sequence))
	}
	for i, msg := range bus.msgs {
		if msg.Subject != events.TaskChangedV1.Subject {
			t.Errorf("message %d subject = %q, want %q", i, msg.Subject, events.TaskChangedV1.Subject)
		}
		var got domain.ChangeEvent
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("message %d is not a change event: %v", i, err)
		}
		if got.Type != sequence[i].Type {
			t.Errorf("message %d type = %s, want %s", i, got.Type, sequence[i].Type)
		}
	}
}

func TestBusPublisher_UnknownType(t *testing.T) {
	bus := &recordingBus{}
	err := NewBusPublisher(bus).Publish(context.Background(), domain.ChangeEvent{Type: "TRUNCATE"})
	if err == nil {
		t.Fatal("expected error for unknown change type")
	}
	if len(bus.msgs) != 0 {
		t.Errorf("published %d messages, want 0", len(bus.msgs))
	}
}
