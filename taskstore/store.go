// Package taskstore keeps an in-memory mirror of the signed-in user's tasks
// in sync with the backend.
//
// Deletes and status changes are applied locally before the backend answers
// and rolled back if it refuses. Creates and edits wait for the confirmed
// record. Change feed events from other sessions are merged as they arrive.
// Records with a request in flight are tracked in a pending table so that a
// feed echo of the same write is reconciled against the local state instead
// of being applied twice.
package taskstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/taskify/domain/task"
)

// NewTask holds the fields of a task to create. Due accepts the formats of
// task.ParseDueDate; blank means no deadline.
type NewTask struct {
	Title       string
	Description string
	Priority    task.Priority
	Status      task.Status
	Due         string
}

// Edit is a partial update. Nil fields are left alone; a Due pointing at
// a blank string removes the deadline.
type Edit struct {
	Title       *string
	Description *string
	Priority    *task.Priority
	Status      *task.Status
	Due         *string
}

// pending records the requests in flight for one id.
type pending struct {
	updates int
	deletes int
	// confirmed is set once the backend has removed the task, by the feed
	// or by one of the deletes, while another delete is still in flight.
	confirmed bool
	// snapshot is the record a failed delete hands to the deletes still in
	// flight. The last one to finish restores it if none succeeded.
	snapshot *task.Task
}

func (p *pending) idle() bool {
	return p.updates == 0 && p.deletes == 0
}

// Store is safe for concurrent use. Remote calls are never made while the
// collection lock is held.
type Store struct {
	remote Remote
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location

	mu      sync.Mutex
	tasks   []task.Task // newest first by CreatedAt
	pending map[string]*pending
	// creates counts inserts in flight. Their ids are unknown until the
	// backend answers, so deletes seen meanwhile are kept in deletedIDs.
	creates    int
	deletedIDs map[string]struct{}
	// loads counts list calls in flight; feed events seen meanwhile are
	// replayed over the fetched list.
	loads  int
	replay []task.ChangeEvent
	closed bool

	sub       Subscription
	updates   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock sets the source of creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLocation sets the zone used to read due dates that carry none. The
// default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		s.loc = loc
	}
}

// New creates a store and subscribes it to the change feed. The caller owns
// the store and must Close it. The collection starts empty; call Load to
// fill it.
func New(ctx context.Context, remote Remote, opts ...Option) (*Store, error) {
	s := &Store{
		remote:     remote,
		logger:     slog.Default(),
		now:        time.Now,
		loc:        time.Local,
		pending:    make(map[string]*pending),
		deletedIDs: make(map[string]struct{}),
		updates:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, ok := remote.Session(); !ok {
		return nil, s.fail("subscribe", ErrNoSession)
	}
	sub, err := remote.Subscribe(ctx, s.handleChange)
	if err != nil {
		return nil, s.fail("subscribe", remoteError(err))
	}
	s.sub = sub
	return s, nil
}

// Close unsubscribes from the change feed. It is safe to call more than
// once; only the first call unsubscribes.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if err := s.sub.Unsubscribe(); err != nil {
			s.closeErr = fmt.Errorf("unsubscribe: %w", err)
			s.logger.Warn("Failed to unsubscribe from change feed", "error", err)
		}
		close(s.done)
	})
	return s.closeErr
}

// Done is closed once Close has run.
func (s *Store) Done() <-chan struct{} {
	return s.done
}

// Updates receives a value after the collection changes. Notifications
// coalesce: a slow reader sees one value for many changes. The channel is
// never closed; select on Done as well.
func (s *Store) Updates() <-chan struct{} {
	return s.updates
}

// Load replaces the collection with the backend's current list.
func (s *Store) Load(ctx context.Context) error {
	if err := s.checkOpen("load"); err != nil {
		return err
	}
	if _, ok := s.remote.Session(); !ok {
		return s.fail("load", ErrNoSession)
	}

	s.mu.Lock()
	s.loads++
	s.mu.Unlock()

	fetched, err := s.remote.ListTasks(ctx)

	s.mu.Lock()
	s.loads--
	replay := s.replay
	if s.loads == 0 {
		s.replay = nil
	}
	if err != nil {
		s.mu.Unlock()
		return s.fail("load", remoteError(err))
	}

	s.tasks = s.tasks[:0:0]
	for _, t := range fetched {
		if s.index(t.ID) >= 0 || s.deleting(t.ID) {
			continue
		}
		s.tasks = append(s.tasks, t.Clone())
	}
	sort.SliceStable(s.tasks, func(i, j int) bool {
		return s.tasks[i].CreatedAt.After(s.tasks[j].CreatedAt)
	})
	for _, event := range replay {
		s.applyChange(event)
	}
	count := len(s.tasks)
	s.mu.Unlock()

	s.notify()
	s.logger.Debug("Tasks loaded", "count", count)
	return nil
}

// Add creates a task owned by the signed-in user and inserts the confirmed
// record. Nothing changes locally if it fails.
func (s *Store) Add(ctx context.Context, in NewTask) (task.Task, error) {
	if err := s.checkOpen("add"); err != nil {
		return task.Task{}, err
	}
	session, ok := s.remote.Session()
	if !ok {
		return task.Task{}, s.fail("add", ErrNoSession)
	}

	due, err := task.ParseDueDate(in.Due, s.loc)
	if err != nil {
		return task.Task{}, s.fail("add", err)
	}
	draft, err := task.Draft{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      in.Status,
		DueDate:     due,
		UserID:      session.User.ID,
		CreatedAt:   s.now().UTC(),
	}.Normalize()
	if err != nil {
		return task.Task{}, s.fail("add", err)
	}

	s.mu.Lock()
	s.creates++
	s.mu.Unlock()

	created, err := s.remote.InsertTask(ctx, draft)

	s.mu.Lock()
	s.creates--
	_, deletedMeanwhile := s.deletedIDs[created.ID]
	if s.creates == 0 {
		clear(s.deletedIDs)
	}
	if err != nil {
		s.mu.Unlock()
		return task.Task{}, s.fail("add", remoteError(err))
	}
	inserted := !deletedMeanwhile && s.index(created.ID) < 0 && !s.deleting(created.ID)
	if inserted {
		s.insert(created.Clone())
	}
	s.mu.Unlock()

	if inserted {
		s.notify()
	}
	return created.Clone(), nil
}

// Update sends an edit and merges the confirmed record. Nothing changes
// locally if it fails.
func (s *Store) Update(ctx context.Context, id string, edit Edit) (task.Task, error) {
	if err := s.checkOpen("update"); err != nil {
		return task.Task{}, err
	}
	if _, ok := s.remote.Session(); !ok {
		return task.Task{}, s.fail("update", ErrNoSession)
	}

	patch, err := edit.patch(s.loc)
	if err != nil {
		return task.Task{}, s.fail("update", err)
	}

	updated, err := s.remote.UpdateTask(ctx, id, patch)
	if err != nil {
		return task.Task{}, s.fail("update", remoteError(err))
	}

	s.mu.Lock()
	merged := s.merge(updated)
	s.mu.Unlock()

	if merged {
		s.notify()
	}
	return updated.Clone(), nil
}

// Delete removes the task locally at once, then asks the backend. If the
// backend refuses, the task is put back unless the change feed has
// reported it deleted in the meantime. With several deletes of one id in
// flight, only the last to finish puts it back, and only if all failed.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.checkOpen("delete"); err != nil {
		return err
	}
	if _, ok := s.remote.Session(); !ok {
		return s.fail("delete", ErrNoSession)
	}

	s.mu.Lock()
	var removed *task.Task
	if i := s.index(id); i >= 0 {
		prior := s.tasks[i].Clone()
		removed = &prior
		s.removeAt(i)
	}
	s.track(id).deletes++
	s.mu.Unlock()

	if removed != nil {
		s.notify()
	}

	err := s.remote.DeleteTask(ctx, id)

	s.mu.Lock()
	p := s.pending[id]
	p.deletes--
	if err == nil {
		p.confirmed = true
		p.snapshot = nil
	} else if removed != nil && !p.confirmed && p.snapshot == nil {
		p.snapshot = removed
	}
	restore, confirmed := p.snapshot, p.confirmed
	if p.deletes > 0 {
		restore = nil
	} else {
		p.confirmed = false
		p.snapshot = nil
	}
	s.untrack(id)

	restored := false
	if err != nil && restore != nil && !confirmed && s.index(id) < 0 {
		s.insert(*restore)
		restored = true
	}
	s.mu.Unlock()

	if restored {
		s.notify()
	}
	if err != nil {
		return s.fail("delete", remoteError(err), "task_id", id, "restored", restored)
	}
	return nil
}

// ChangeStatus moves the task to status at once, then asks the backend. If
// the backend refuses, the old status comes back unless something else has
// changed the status meanwhile.
func (s *Store) ChangeStatus(ctx context.Context, id string, status task.Status) error {
	if !status.IsValid() {
		return s.fail("change status", fmt.Errorf("%w: %q", task.ErrInvalidStatus, status))
	}
	return s.setStatus(ctx, "change status", id, func(task.Status) task.Status {
		return status
	})
}

// ToggleComplete flips the task between completed and todo the same way
// ChangeStatus does.
func (s *Store) ToggleComplete(ctx context.Context, id string) error {
	return s.setStatus(ctx, "toggle complete", id, func(current task.Status) task.Status {
		if current == task.StatusCompleted {
			return task.StatusTodo
		}
		return task.StatusCompleted
	})
}

func (s *Store) setStatus(ctx context.Context, op, id string, next func(task.Status) task.Status) error {
	if err := s.checkOpen(op); err != nil {
		return err
	}
	if _, ok := s.remote.Session(); !ok {
		return s.fail(op, ErrNoSession)
	}

	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		s.logger.Debug("Status change skipped", "op", op, "task_id", id, "reason", ErrNotFoundLocally)
		return ErrNotFoundLocally
	}
	prior := s.tasks[i].Status.OrDefault()
	status := next(prior)
	if status == prior {
		s.mu.Unlock()
		return nil
	}
	s.tasks[i].Status = status
	s.track(id).updates++
	s.mu.Unlock()

	s.notify()

	confirmed, err := s.remote.UpdateTask(ctx, id, task.Patch{Status: &status})

	s.mu.Lock()
	s.pending[id].updates--
	settled := s.pending[id].updates == 0
	s.untrack(id)

	changed := false
	if err != nil {
		if j := s.index(id); j >= 0 && s.tasks[j].Status == status {
			s.tasks[j].Status = prior
			changed = true
		}
	} else if settled {
		changed = s.merge(confirmed)
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	if err != nil {
		return s.fail(op, remoteError(err), "task_id", id, "reverted", changed)
	}
	return nil
}

// Snapshot returns a copy of the collection, newest first.
func (s *Store) Snapshot() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]task.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Get returns a copy of one task.
func (s *Store) Get(id string) (task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(id); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return task.Task{}, false
}

// Len returns the number of tasks held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// handleChange is the change feed handler. The subscription calls it from
// one goroutine, in arrival order.
func (s *Store) handleChange(event task.ChangeEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.loads > 0 {
		s.replay = append(s.replay, event)
	}
	changed := s.applyChange(event)
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// applyChange merges one feed event and reports whether the collection
// changed. Every branch is idempotent: applying an event twice leaves the
// same state as applying it once.
func (s *Store) applyChange(event task.ChangeEvent) bool {
	id := event.TaskID()
	if id == "" {
		s.logger.Warn("Ignoring change event without a task", "type", event.Type)
		return false
	}

	switch event.Type {
	case task.ChangeInsert:
		if event.New == nil || s.index(id) >= 0 || s.deleting(id) {
			return false
		}
		s.insert(event.New.Clone())
		return true

	case task.ChangeUpdate:
		if event.New == nil || s.deleting(id) {
			return false
		}
		return s.merge(*event.New)

	case task.ChangeDelete:
		if p := s.pending[id]; p != nil && p.deletes > 0 {
			p.confirmed = true
			p.snapshot = nil
		}
		if s.creates > 0 {
			s.deletedIDs[id] = struct{}{}
		}
		i := s.index(id)
		if i < 0 {
			return false
		}
		s.removeAt(i)
		return true

	default:
		s.logger.Warn("Ignoring unknown change event", "type", event.Type, "task_id", id)
		return false
	}
}

// merge copies newer over the local record with the same id unless newer
// is older than what is held.
func (s *Store) merge(newer task.Task) bool {
	i := s.index(newer.ID)
	if i < 0 {
		return false
	}
	current := s.tasks[i]
	if !newer.UpdatedAt.IsZero() && newer.UpdatedAt.Before(current.UpdatedAt) {
		s.logger.Debug("Discarding stale update", "task_id", newer.ID,
			"updated_at", newer.UpdatedAt, "held", current.UpdatedAt)
		return false
	}
	s.tasks[i].Merge(newer)
	return true
}

// insert places t by CreatedAt, ahead of records created at the same time.
func (s *Store) insert(t task.Task) {
	i := sort.Search(len(s.tasks), func(i int) bool {
		return !s.tasks[i].CreatedAt.After(t.CreatedAt)
	})
	s.tasks = append(s.tasks, task.Task{})
	copy(s.tasks[i+1:], s.tasks[i:])
	s.tasks[i] = t
}

func (s *Store) removeAt(i int) {
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
}

func (s *Store) index(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) deleting(id string) bool {
	p := s.pending[id]
	return p != nil && p.deletes > 0
}

func (s *Store) track(id string) *pending {
	p := s.pending[id]
	if p == nil {
		p = &pending{}
		s.pending[id] = p
	}
	return p
}

func (s *Store) untrack(id string) {
	if p := s.pending[id]; p != nil && p.idle() {
		delete(s.pending, id)
	}
}

func (s *Store) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func (s *Store) checkOpen(op string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return s.fail(op, ErrClosed)
	}
	return nil
}

// fail logs err once and returns it wrapped with the operation name.
func (s *Store) fail(op string, err error, attrs ...any) error {
	s.logger.Warn("Task store operation failed", append([]any{"op", op, "error", err}, attrs...)...)
	return fmt.Errorf("%s: %w", op, err)
}

func (e Edit) patch(loc *time.Location) (task.Patch, error) {
	patch := task.Patch{
		Title:       e.Title,
		Description: e.Description,
		Priority:    e.Priority,
		Status:      e.Status,
	}
	if e.Due != nil {
		due, err := task.ParseDueDate(*e.Due, loc)
		if err != nil {
			return task.Patch{}, err
		}
		patch.DueDate = due
		patch.ClearDueDate = due == nil
	}
	return patch.Normalize()
}
