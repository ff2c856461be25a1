package taskstore_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/taskify/domain/task"
	"github.com/example/taskify/domain/user"
	"github.com/example/taskify/taskstore"
)

var errBackendDown = errors.New("backend unavailable")

// fakeFeed delivers events from its own goroutine, like the SDK reader.
type fakeFeed struct {
	handler      func(task.ChangeEvent)
	events       chan task.ChangeEvent
	acks         chan struct{}
	stop         chan struct{}
	done         chan struct{}
	once         sync.Once
	unsubscribes atomic.Int32
}

func newFakeFeed(handler func(task.ChangeEvent)) *fakeFeed {
	f := &fakeFeed{
		handler: handler,
		events:  make(chan task.ChangeEvent),
		acks:    make(chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *fakeFeed) run() {
	defer close(f.done)
	for {
		select {
		case <-f.stop:
			return
		case event := <-f.events:
			f.handler(event)
			f.acks <- struct{}{}
		}
	}
}

// emit hands the event to the reader goroutine and waits until the handler
// has returned.
func (f *fakeFeed) emit(event task.ChangeEvent) {
	f.events <- event
	<-f.acks
}

func (f *fakeFeed) Unsubscribe() error {
	f.unsubscribes.Add(1)
	f.once.Do(func() {
		close(f.stop)
		<-f.done
	})
	return nil
}

// fakeRemote is an in-memory backend. The before* hooks run while a call is
// in flight, after the store has applied its optimistic change.
type fakeRemote struct {
	mu      sync.Mutex
	session *user.Session
	tasks   map[string]task.Task
	seq     int
	clock   time.Time

	listErr      error
	insertErr    error
	updateErr    error
	deleteErr    error
	subscribeErr error

	beforeList   func()
	beforeInsert func()
	beforeUpdate func()
	beforeDelete func()
	// onDelete, when set, replaces beforeDelete and deleteErr. It gets the
	// 1-based number of the delete call and returns that call's error.
	onDelete func(call int32) error

	feed        *fakeFeed
	subscribes  int
	remoteCalls atomic.Int32
	deleteCalls atomic.Int32
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		session: &user.Session{
			User:        user.Identity{ID: "user-1", Email: "ada@example.com"},
			AccessToken: "token",
		},
		tasks: make(map[string]task.Task),
		clock: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRemote) signOut() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = nil
}

// seed stores tasks on the backend without any feed event.
func (f *fakeRemote) seed(tasks ...task.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
}

func (f *fakeRemote) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeRemote) Session() (user.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return user.Session{}, false
	}
	return *f.session, true
}

func (f *fakeRemote) ListTasks(_ context.Context) ([]task.Task, error) {
	f.remoteCalls.Add(1)
	if f.beforeList != nil {
		f.beforeList()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]task.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	// Backend order is created_at descending.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.After(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (f *fakeRemote) InsertTask(_ context.Context, draft task.Draft) (task.Task, error) {
	f.remoteCalls.Add(1)
	if f.beforeInsert != nil {
		f.beforeInsert()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return task.Task{}, f.insertErr
	}
	f.seq++
	created := task.Task{
		ID:          fmt.Sprintf("task-%d", f.seq),
		Title:       draft.Title,
		Description: draft.Description,
		Priority:    draft.Priority,
		Status:      draft.Status,
		DueDate:     draft.DueDate,
		CreatedAt:   draft.CreatedAt,
		UpdatedAt:   f.tick(),
		UserID:      draft.UserID,
	}
	f.tasks[created.ID] = created
	return created, nil
}

func (f *fakeRemote) UpdateTask(_ context.Context, id string, patch task.Patch) (task.Task, error) {
	f.remoteCalls.Add(1)
	if f.beforeUpdate != nil {
		f.beforeUpdate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return task.Task{}, f.updateErr
	}
	stored, ok := f.tasks[id]
	if !ok {
		return task.Task{}, errors.New("task not found")
	}
	stored.Apply(patch)
	stored.UpdatedAt = f.tick()
	f.tasks[id] = stored
	return stored, nil
}

func (f *fakeRemote) DeleteTask(_ context.Context, id string) error {
	f.remoteCalls.Add(1)
	call := f.deleteCalls.Add(1)
	if f.onDelete != nil {
		if err := f.onDelete(call); err != nil {
			return err
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.tasks, id)
		return nil
	}
	if f.beforeDelete != nil {
		f.beforeDelete()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeRemote) Subscribe(_ context.Context, handler func(task.ChangeEvent)) (taskstore.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.subscribes++
	f.feed = newFakeFeed(handler)
	return f.feed, nil
}

func (f *fakeRemote) emit(event task.ChangeEvent) {
	f.mu.Lock()
	feed := f.feed
	f.mu.Unlock()
	feed.emit(event)
}

func insertEvent(t task.Task) task.ChangeEvent {
	return task.ChangeEvent{Type: task.ChangeInsert, New: &t, UserID: t.UserID}
}

func updateEvent(old, updated task.Task) task.ChangeEvent {
	return task.ChangeEvent{Type: task.ChangeUpdate, New: &updated, Old: &old, UserID: updated.UserID}
}

func deleteEvent(t task.Task) task.ChangeEvent {
	return task.ChangeEvent{Type: task.ChangeDelete, Old: &t, UserID: t.UserID}
}
