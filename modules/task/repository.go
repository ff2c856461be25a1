package task

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/example/taskify/domain/task"
	"gorm.io/gorm"
)

var (
	// ErrTaskNotFound is returned when no task with the id exists for the caller.
	ErrTaskNotFound = errors.New("task not found")
	// ErrOwnerMismatch is returned when a write names a different owner than the caller.
	ErrOwnerMismatch = errors.New("task owner does not match the authenticated user")
)

// TaskRepository persists tasks with GORM. Every query is scoped to one owner,
// so rows of other users behave as if they did not exist.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) owned(ctx context.Context, userID string) *gorm.DB {
	return r.db.WithContext(ctx).Where("user_id = ?", userID)
}

// List returns the owner's tasks, newest first.
func (r *TaskRepository) List(ctx context.Context, userID string) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := r.owned(ctx, userID).Order("created_at DESC").Order("id DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// FindByID finds one of the owner's tasks.
func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	return findOwned(r.owned(ctx, userID), taskID)
}

// Create inserts a task.
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Update loads the owner's task, lets mutate change it and saves the result in
// one transaction. It returns the row before and after the change.
func (r *TaskRepository) Update(ctx context.Context, userID, taskID string, mutate func(*domain.Task)) (before, after *domain.Task, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := findOwned(tx.Where("user_id = ?", userID), taskID)
		if err != nil {
			return err
		}
		old := current.Clone()
		mutate(current)
		if err := tx.Save(current).Error; err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		before, after = &old, current
		return nil
	})
	return before, after, err
}

// Delete removes the owner's task and returns the removed row.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	var removed *domain.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := findOwned(tx.Where("user_id = ?", userID), taskID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&domain.Task{}, "id = ? AND user_id = ?", taskID, userID).Error; err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		removed = current
		return nil
	})
	return removed, err
}

func findOwned(scoped *gorm.DB, taskID string) (*domain.Task, error) {
	var task domain.Task
	if err := scoped.First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &task, nil
}
