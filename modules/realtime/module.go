package realtime

import (
	"context"
	"fmt"

	domain "github.com/example/taskify/domain/task"
	"github.com/example/taskify/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// RealtimeModule consumes task change events and pushes them to the owner's
// websocket connections.
type RealtimeModule struct {
	hub       *Hub
	cancelHub context.CancelFunc
	logger    types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*RealtimeModule)(nil)
var _ mono.EventConsumerModule = (*RealtimeModule)(nil)
var _ mono.HealthCheckableModule = (*RealtimeModule)(nil)

// NewModule creates a new RealtimeModule.
func NewModule(logger types.Logger) *RealtimeModule {
	logger = logger.WithModule("realtime")
	return &RealtimeModule{
		hub:    NewHub(logger),
		logger: logger,
	}
}

// Name returns the module name.
func (m *RealtimeModule) Name() string {
	return "realtime"
}

// Start runs the hub.
func (m *RealtimeModule) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	m.logger.Info("Module started - websocket hub running")
	return nil
}

// Stop shuts the hub down and waits for it.
func (m *RealtimeModule) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	m.logger.Info("Module stopped", "connected_clients", clientCount)
	return nil
}

// Health returns the health status.
func (m *RealtimeModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// RegisterEventConsumers subscribes to the task change event.
func (m *RealtimeModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.TaskChangedV1, m.handleChange, m,
	); err != nil {
		return fmt.Errorf("failed to register TaskChanged consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", "TaskChanged")
	return nil
}

func (m *RealtimeModule) handleChange(_ context.Context, event domain.ChangeEvent, _ *mono.Msg) error {
	if event.UserID == "" {
		m.logger.Warn("Dropping change event without owner", "type", string(event.Type), "task_id", event.TaskID())
		return nil
	}
	m.hub.Broadcast(event.UserID, event)
	return nil
}

// GetHub returns the websocket hub for the API module to use.
func (m *RealtimeModule) GetHub() *Hub {
	return m.hub
}
