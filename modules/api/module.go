package api

import (
	"context"
	"fmt"
	"time"

	"github.com/example/taskify/modules/auth"
	"github.com/example/taskify/modules/realtime"
	"github.com/example/taskify/modules/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config configures the HTTP surface.
type Config struct {
	Port        string
	CORSOrigins string
}

// APIModule is the HTTP API module with the websocket change feed.
type APIModule struct {
	app         *fiber.App
	config      Config
	authPort    auth.AuthPort
	taskPort    task.TaskPort
	hub         *realtime.Hub
	authLimiter fiber.Handler
	logger      types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(config Config, logger types.Logger) *APIModule {
	if config.Port == "" {
		config.Port = "3000"
	}
	if config.CORSOrigins == "" {
		config.CORSOrigins = "http://localhost:3000,http://localhost:8080"
	}
	return &APIModule{
		config: config,
		logger: logger.WithModule("api"),
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"auth", "task"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authPort = auth.NewAuthAdapter(container)
	case "task":
		m.taskPort = task.NewTaskAdapter(container)
	}
}

// SetHub sets the realtime hub (called from main.go).
func (m *APIModule) SetHub(hub *realtime.Hub) {
	m.hub = hub
}

// SetAuthRateLimiter installs middleware in front of the auth routes
// (called from main.go when Redis is configured).
func (m *APIModule) SetAuthRateLimiter(handler fiber.Handler) {
	m.authLimiter = handler
}

// Start initializes and starts the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.authPort == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.taskPort == nil {
		return fmt.Errorf("task dependency not set")
	}
	if m.hub == nil {
		return fmt.Errorf("realtime hub dependency not set")
	}

	m.app = fiber.New(fiber.Config{
		AppName:               "Taskify",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	m.app.Use(recover.New())
	m.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: m.config.CORSOrigins,
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	NewHandlers(m.authPort, m.taskPort, m.hub, m.logger).RegisterRoutes(m.app, m.authLimiter)

	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(":" + m.config.Port); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("HTTP server started", "port", m.config.Port, "rate_limited", m.authLimiter != nil)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server...")
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Health returns the health status of the module.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{"port": m.config.Port}
	if m.hub != nil {
		details["connected_clients"] = m.hub.ClientCount()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}

func (m *APIModule) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if code >= fiber.StatusInternalServerError {
		m.logger.Error("HTTP error", "code", code, "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
