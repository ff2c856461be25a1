package task

import (
	"context"
	"time"

	domain "github.com/example/taskify/domain/task"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// TaskService holds the task rules: validation, ownership, timestamps and
// change events.
type TaskService struct {
	repo      *TaskRepository
	publisher Publisher
	logger    types.Logger
	now       func() time.Time
}

// NewTaskService creates a new TaskService. A nil publisher drops events.
func NewTaskService(repo *TaskRepository, publisher Publisher, logger types.Logger) *TaskService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &TaskService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns the caller's tasks, newest first.
func (s *TaskService) List(ctx context.Context, userID string) ([]domain.Task, error) {
	return s.repo.List(ctx, userID)
}

// Get returns one of the caller's tasks.
func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	return s.repo.FindByID(ctx, userID, taskID)
}

// Create stores a new task owned by userID. A draft naming another owner is
// rejected; a zero creation time is replaced by now.
func (s *TaskService) Create(ctx context.Context, userID string, draft domain.Draft) (*domain.Task, error) {
	if draft.UserID != "" && draft.UserID != userID {
		return nil, ErrOwnerMismatch
	}
	draft, err := draft.Normalize()
	if err != nil {
		return nil, err
	}

	now := s.now()
	createdAt := now
	if !draft.CreatedAt.IsZero() {
		createdAt = draft.CreatedAt.UTC()
	}
	task := &domain.Task{
		ID:          uuid.New().String(),
		Title:       draft.Title,
		Description: draft.Description,
		Priority:    draft.Priority,
		Status:      draft.Status,
		DueDate:     draft.DueDate,
		CreatedAt:   createdAt,
		UpdatedAt:   now,
		UserID:      userID,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}

	created := task.Clone()
	s.publish(ctx, domain.ChangeEvent{Type: domain.ChangeInsert, New: &created, UserID: userID, CommitTimestamp: now})
	return task, nil
}

// Update applies patch to one of the caller's tasks.
func (s *TaskService) Update(ctx context.Context, userID, taskID string, patch domain.Patch) (*domain.Task, error) {
	patch, err := patch.Normalize()
	if err != nil {
		return nil, err
	}

	now := s.now()
	before, after, err := s.repo.Update(ctx, userID, taskID, func(t *domain.Task) {
		t.Apply(patch)
		t.UpdatedAt = now
	})
	if err != nil {
		return nil, err
	}

	updated := after.Clone()
	s.publish(ctx, domain.ChangeEvent{Type: domain.ChangeUpdate, New: &updated, Old: before, UserID: userID, CommitTimestamp: now})
	return after, nil
}

// Delete removes one of the caller's tasks.
func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	removed, err := s.repo.Delete(ctx, userID, taskID)
	if err != nil {
		return err
	}
	s.publish(ctx, domain.ChangeEvent{Type: domain.ChangeDelete, Old: removed, UserID: userID, CommitTimestamp: s.now()})
	return nil
}

// publish is best effort: the write already happened.
func (s *TaskService) publish(ctx context.Context, event domain.ChangeEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish change event",
			"type", string(event.Type),
			"task_id", event.TaskID(),
			"error", err,
		)
	}
}
