package task

import (
	"context"

	domain "github.com/example/taskify/domain/task"
)

// ListTasksRequest is the request for listing the caller's tasks.
type ListTasksRequest struct {
	UserID string `json:"user_id"`
}

// ListTasksResponse is the response for listing tasks.
type ListTasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
	Total int           `json:"total"`
}

// GetTaskRequest is the request for getting a task.
type GetTaskRequest struct {
	UserID string `json:"user_id"`
	TaskID string `json:"task_id"`
}

// CreateTaskRequest is the request for creating a task.
type CreateTaskRequest struct {
	UserID string       `json:"user_id"`
	Draft  domain.Draft `json:"draft"`
}

// UpdateTaskRequest is the request for updating a task.
type UpdateTaskRequest struct {
	UserID string       `json:"user_id"`
	TaskID string       `json:"task_id"`
	Patch  domain.Patch `json:"patch"`
}

// DeleteTaskRequest is the request for deleting a task.
type DeleteTaskRequest struct {
	UserID string `json:"user_id"`
	TaskID string `json:"task_id"`
}

// DeleteTaskResponse is the response for deleting a task.
type DeleteTaskResponse struct {
	Deleted bool `json:"deleted"`
}

// TaskPort defines the interface for task operations (hexagonal port).
// Driving adapters such as the HTTP API use it to reach the task domain.
type TaskPort interface {
	ListTasks(ctx context.Context, userID string) ([]domain.Task, error)
	GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error)
	CreateTask(ctx context.Context, userID string, draft domain.Draft) (*domain.Task, error)
	UpdateTask(ctx context.Context, userID, taskID string, patch domain.Patch) (*domain.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error
}
