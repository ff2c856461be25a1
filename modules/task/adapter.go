package task

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/taskify/domain/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// taskAdapter wraps ServiceContainer for type-safe cross-module communication.
type taskAdapter struct {
	container mono.ServiceContainer
}

// NewTaskAdapter creates a new adapter for task services.
// container is the ServiceContainer from the task module received via SetDependencyServiceContainer.
func NewTaskAdapter(container mono.ServiceContainer) TaskPort {
	if container == nil {
		panic("task adapter requires non-nil ServiceContainer")
	}
	return &taskAdapter{container: container}
}

// ListTasks lists the user's tasks via the list-tasks service.
func (a *taskAdapter) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	req := ListTasksRequest{UserID: userID}
	var resp ListTasksResponse
	if err := a.call(ctx, "list-tasks", &req, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// GetTask retrieves a task via the get-task service.
func (a *taskAdapter) GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	req := GetTaskRequest{UserID: userID, TaskID: taskID}
	var resp domain.Task
	if err := a.call(ctx, "get-task", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateTask creates a task via the create-task service.
func (a *taskAdapter) CreateTask(ctx context.Context, userID string, draft domain.Draft) (*domain.Task, error) {
	req := CreateTaskRequest{UserID: userID, Draft: draft}
	var resp domain.Task
	if err := a.call(ctx, "create-task", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateTask updates a task via the update-task service.
func (a *taskAdapter) UpdateTask(ctx context.Context, userID, taskID string, patch domain.Patch) (*domain.Task, error) {
	req := UpdateTaskRequest{UserID: userID, TaskID: taskID, Patch: patch}
	var resp domain.Task
	if err := a.call(ctx, "update-task", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteTask deletes a task via the delete-task service.
func (a *taskAdapter) DeleteTask(ctx context.Context, userID, taskID string) error {
	req := DeleteTaskRequest{UserID: userID, TaskID: taskID}
	var resp DeleteTaskResponse
	if err := a.call(ctx, "delete-task", &req, &resp); err != nil {
		return err
	}
	if !resp.Deleted {
		return fmt.Errorf("task not deleted: %s", taskID)
	}
	return nil
}

func (a *taskAdapter) call(ctx context.Context, service string, req, resp any) error {
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s service call failed: %w", service, err)
	}
	return nil
}
