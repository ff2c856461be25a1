package sdk

import (
	"context"
	"errors"
	"net/url"

	"github.com/example/taskify/domain/task"
	"github.com/valyala/fasthttp"
)

var errEmptyTaskID = errors.New("task id is required")

type taskListResponse struct {
	Tasks []task.Task `json:"tasks"`
	Total int         `json:"total"`
}

// ListTasks returns every task of the signed-in user, newest first.
func (c *Client) ListTasks(ctx context.Context) ([]task.Task, error) {
	var resp taskListResponse
	if err := c.doAuthorized(ctx, fasthttp.MethodGet, "/api/v1/tasks", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Tasks == nil {
		resp.Tasks = []task.Task{}
	}
	return resp.Tasks, nil
}

// GetTask returns one task by id.
func (c *Client) GetTask(ctx context.Context, id string) (task.Task, error) {
	if id == "" {
		return task.Task{}, errEmptyTaskID
	}
	var found task.Task
	if err := c.doAuthorized(ctx, fasthttp.MethodGet, taskPath(id), nil, &found); err != nil {
		return task.Task{}, err
	}
	return found, nil
}

// InsertTask creates a task and returns the record the backend stored,
// including its assigned id.
func (c *Client) InsertTask(ctx context.Context, draft task.Draft) (task.Task, error) {
	var created task.Task
	if err := c.doAuthorized(ctx, fasthttp.MethodPost, "/api/v1/tasks", draft, &created); err != nil {
		return task.Task{}, err
	}
	return created, nil
}

// UpdateTask applies patch to the task and returns the stored result.
func (c *Client) UpdateTask(ctx context.Context, id string, patch task.Patch) (task.Task, error) {
	if id == "" {
		return task.Task{}, errEmptyTaskID
	}
	var updated task.Task
	if err := c.doAuthorized(ctx, fasthttp.MethodPatch, taskPath(id), patch, &updated); err != nil {
		return task.Task{}, err
	}
	return updated, nil
}

// DeleteTask removes the task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if id == "" {
		return errEmptyTaskID
	}
	return c.doAuthorized(ctx, fasthttp.MethodDelete, taskPath(id), nil, nil)
}

func taskPath(id string) string {
	return "/api/v1/tasks/" + url.PathEscape(id)
}
