package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/example/taskify/domain/task"
	"github.com/go-monolith/mono/pkg/types"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

type fakeConn struct {
	frames   chan []byte
	writeErr error

	mu     sync.Mutex
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16)}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.frames <- data
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) next(t *testing.T) domain.ChangeEvent {
	t.Helper()
	select {
	case data := <-c.frames:
		var event domain.ChangeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("frame is not a change event: %v", err)
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return domain.ChangeEvent{}
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(&mockLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		hub.Wait()
	})
	return hub
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func changeFor(userID, taskID string, kind domain.ChangeType) domain.ChangeEvent {
	return domain.ChangeEvent{
		Type:   kind,
		New:    &domain.Task{ID: taskID, Title: taskID, UserID: userID},
		UserID: userID,
	}
}

func TestHub_DeliversOnlyToOwner(t *testing.T) {
	hub := startHub(t)

	alice1, alice2, bob := newFakeConn(), newFakeConn(), newFakeConn()
	hub.Register(&Client{ID: "a1", UserID: "alice", Conn: alice1})
	hub.Register(&Client{ID: "a2", UserID: "alice", Conn: alice2})
	hub.Register(&Client{ID: "b1", UserID: "bob", Conn: bob})

	hub.Broadcast("alice", changeFor("alice", "t1", domain.ChangeInsert))

	if got := alice1.next(t).TaskID(); got != "t1" {
		t.Errorf("alice1 got %s, want t1", got)
	}
	if got := alice2.next(t).TaskID(); got != "t1" {
		t.Errorf("alice2 got %s, want t1", got)
	}

	hub.Broadcast("bob", changeFor("bob", "t2", domain.ChangeInsert))
	if got := bob.next(t).TaskID(); got != "t2" {
		t.Errorf("bob got %s, want t2", got)
	}
	select {
	case frame := <-alice1.frames:
		t.Errorf("alice received bob's event: %s", frame)
	default:
	}
}

func TestHub_PreservesPublishOrder(t *testing.T) {
	hub := startHub(t)
	conn := newFakeConn()
	hub.Register(&Client{ID: "c", UserID: "alice", Conn: conn})

	hub.Broadcast("alice", changeFor("alice", "t1", domain.ChangeInsert))
	hub.Broadcast("alice", changeFor("alice", "t1", domain.ChangeUpdate))
	hub.Broadcast("alice", domain.ChangeEvent{Type: domain.ChangeDelete, Old: &domain.Task{ID: "t1"}, UserID: "alice"})

	for _, want := range []domain.ChangeType{domain.ChangeInsert, domain.ChangeUpdate, domain.ChangeDelete} {
		if got := conn.next(t).Type; got != want {
			t.Fatalf("got %s, want %s", got, want)
		}
	}
}

func TestHub_DropsFailingClient(t *testing.T) {
	hub := startHub(t)
	broken := newFakeConn()
	broken.writeErr = errors.New("broken pipe")
	hub.Register(&Client{ID: "x", UserID: "alice", Conn: broken})

	hub.Broadcast("alice", changeFor("alice", "t1", domain.ChangeInsert))

	waitFor(t, func() bool { return hub.UserClientCount("alice") == 0 })
	if !broken.isClosed() {
		t.Error("failing client was not closed")
	}
}

func TestHub_UnregisterAndStop(t *testing.T) {
	hub := NewHub(&mockLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	kept, leaving := newFakeConn(), newFakeConn()
	leaver := &Client{ID: "l", UserID: "alice", Conn: leaving}
	hub.Register(&Client{ID: "k", UserID: "alice", Conn: kept})
	hub.Register(leaver)
	hub.Unregister(leaver)

	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	cancel()
	hub.Wait()

	if !kept.isClosed() {
		t.Error("Stop should close remaining connections")
	}
	// Calls after shutdown must not block.
	hub.Unregister(leaver)
	hub.Broadcast("alice", changeFor("alice", "t", domain.ChangeInsert))
}
