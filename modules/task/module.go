package task

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/taskify/domain/task"
	"github.com/example/taskify/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TaskModule provides task management services (core domain).
type TaskModule struct {
	dsn      string
	db       *gorm.DB
	service  *TaskService
	eventBus mono.EventBus
	logger   types.Logger
}

var _ mono.Module = (*TaskModule)(nil)
var _ mono.ServiceProviderModule = (*TaskModule)(nil)
var _ mono.EventEmitterModule = (*TaskModule)(nil)
var _ mono.HealthCheckableModule = (*TaskModule)(nil)

// NewModule creates a TaskModule storing tasks in the SQLite database at dsn.
func NewModule(dsn string, logger types.Logger) *TaskModule {
	if dsn == "" {
		dsn = "taskify.db"
	}
	return &TaskModule{
		dsn:    dsn,
		logger: logger.WithModule("task"),
	}
}

func (m *TaskModule) Name() string {
	return "task"
}

func (m *TaskModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

func (m *TaskModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.TaskChangedV1.ToBase(),
	}
}

func (m *TaskModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "list-tasks", json.Unmarshal, json.Marshal, m.listTasks,
	); err != nil {
		return fmt.Errorf("failed to register list-tasks service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get-task", json.Unmarshal, json.Marshal, m.getTask,
	); err != nil {
		return fmt.Errorf("failed to register get-task service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "create-task", json.Unmarshal, json.Marshal, m.createTask,
	); err != nil {
		return fmt.Errorf("failed to register create-task service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "update-task", json.Unmarshal, json.Marshal, m.updateTask,
	); err != nil {
		return fmt.Errorf("failed to register update-task service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "delete-task", json.Unmarshal, json.Marshal, m.deleteTask,
	); err != nil {
		return fmt.Errorf("failed to register delete-task service: %w", err)
	}

	m.logger.Info("Registered services", "services", "list-tasks, get-task, create-task, update-task, delete-task")
	return nil
}

func (m *TaskModule) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.Task{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	var publisher Publisher
	if m.eventBus != nil {
		publisher = NewBusPublisher(m.eventBus)
	} else {
		m.logger.Warn("eventBus not set, change events will not be published")
	}
	m.service = NewTaskService(NewTaskRepository(db), publisher, m.logger)

	m.logger.Info("Module started", "database", m.dsn)
	return nil
}

func (m *TaskModule) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	m.logger.Info("Module stopped")
	return nil
}

// Health reports whether the database answers.
func (m *TaskModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{Healthy: false, Message: "database not initialized"}
	}
	sqlDB, err := m.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"database": m.dsn},
	}
}

func (m *TaskModule) listTasks(ctx context.Context, req ListTasksRequest, _ *mono.Msg) (ListTasksResponse, error) {
	tasks, err := m.service.List(ctx, req.UserID)
	if err != nil {
		return ListTasksResponse{}, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return ListTasksResponse{Tasks: tasks, Total: len(tasks)}, nil
}

func (m *TaskModule) getTask(ctx context.Context, req GetTaskRequest, _ *mono.Msg) (domain.Task, error) {
	task, err := m.service.Get(ctx, req.UserID, req.TaskID)
	if err != nil {
		return domain.Task{}, err
	}
	return *task, nil
}

func (m *TaskModule) createTask(ctx context.Context, req CreateTaskRequest, _ *mono.Msg) (domain.Task, error) {
	task, err := m.service.Create(ctx, req.UserID, req.Draft)
	if err != nil {
		return domain.Task{}, err
	}
	return *task, nil
}

func (m *TaskModule) updateTask(ctx context.Context, req UpdateTaskRequest, _ *mono.Msg) (domain.Task, error) {
	task, err := m.service.Update(ctx, req.UserID, req.TaskID, req.Patch)
	if err != nil {
		return domain.Task{}, err
	}
	return *task, nil
}

func (m *TaskModule) deleteTask(ctx context.Context, req DeleteTaskRequest, _ *mono.Msg) (DeleteTaskResponse, error) {
	if err := m.service.Delete(ctx, req.UserID, req.TaskID); err != nil {
		return DeleteTaskResponse{Deleted: false}, err
	}
	return DeleteTaskResponse{Deleted: true}, nil
}
