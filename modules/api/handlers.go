package api

import (
	"context"
	"strings"

	domain "github.com/example/taskify/domain/task"
	userdomain "github.com/example/taskify/domain/user"
	"github.com/example/taskify/modules/auth"
	"github.com/example/taskify/modules/realtime"
	"github.com/example/taskify/modules/task"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	authPort auth.AuthPort
	taskPort task.TaskPort
	hub      *realtime.Hub
	logger   types.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authPort auth.AuthPort, taskPort task.TaskPort, hub *realtime.Hub, logger types.Logger) *Handlers {
	return &Handlers{
		authPort: authPort,
		taskPort: taskPort,
		hub:      hub,
		logger:   logger,
	}
}

// RegisterRoutes mounts every route on app. authLimiter guards the public
// auth routes and may be nil.
func (h *Handlers) RegisterRoutes(app *fiber.App, authLimiter fiber.Handler) {
	app.Get("/health", h.Health)

	v1 := app.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	if authLimiter != nil {
		authRoutes.Use(authLimiter)
	}
	authRoutes.Post("/signup", h.SignUp)
	authRoutes.Post("/signin", h.SignIn)
	authRoutes.Post("/refresh", h.Refresh)
	authRoutes.Get("/user", AuthMiddleware(h.authPort), h.CurrentUser)

	tasks := v1.Group("/tasks", AuthMiddleware(h.authPort))
	tasks.Get("/", h.ListTasks)
	tasks.Post("/", h.CreateTask)
	tasks.Get("/:id", h.GetTask)
	tasks.Patch("/:id", h.UpdateTask)
	tasks.Delete("/:id", h.DeleteTask)

	v1.Use("/realtime", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, QueryTokenMiddleware(h.authPort))
	v1.Get("/realtime", websocket.New(h.ChangeFeed))
}

// Health handles GET /health.
func (h *Handlers) Health(c *fiber.Ctx) error {
	details := map[string]any{"module": "api"}
	if h.hub != nil {
		details["connected_clients"] = h.hub.ClientCount()
	}
	return c.JSON(HealthResponse{Status: "healthy", Details: details})
}

// SignUp creates an account and signs it in.
func (h *Handlers) SignUp(c *fiber.Ctx) error {
	req, ok := h.parseCredentials(c)
	if !ok {
		return nil
	}

	if _, err := h.authPort.Register(c.UserContext(), req.Email, req.Password); err != nil {
		return h.handleError(c, err)
	}

	session, err := h.authPort.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toSessionResponse(session))
}

// SignIn exchanges credentials for a session.
func (h *Handlers) SignIn(c *fiber.Ctx) error {
	req, ok := h.parseCredentials(c)
	if !ok {
		return nil
	}

	session, err := h.authPort.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(toSessionResponse(session))
}

// Refresh exchanges a refresh token for a new session.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.RefreshToken == "" {
		return badRequest(c, "Refresh token is required")
	}

	session, err := h.authPort.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return unauthorized(c, "Invalid or expired refresh token")
	}
	return c.JSON(toSessionResponse(session))
}

// CurrentUser returns the signed-in user.
func (h *Handlers) CurrentUser(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}

	user, err := h.authPort.GetUser(c.UserContext(), claims.UserID)
	if err != nil {
		return h.handleError(c, err)
	}
	createdAt := user.CreatedAt
	return c.JSON(UserResponse{ID: user.ID, Email: user.Email, CreatedAt: &createdAt})
}

// ListTasks returns the caller's tasks, newest first.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}

	tasks, err := h.taskPort.ListTasks(c.UserContext(), claims.UserID)
	if err != nil {
		return h.handleError(c, err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return c.JSON(TaskListResponse{Tasks: tasks, Total: len(tasks)})
}

// GetTask returns one task.
func (h *Handlers) GetTask(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}

	found, err := h.taskPort.GetTask(c.UserContext(), claims.UserID, c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(found)
}

// CreateTask inserts a task owned by the caller.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}

	var draft domain.Draft
	if err := c.BodyParser(&draft); err != nil {
		return badRequest(c, "Invalid request body")
	}

	created, err := h.taskPort.CreateTask(c.UserContext(), claims.UserID, draft)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateTask applies a partial update.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}

	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	patch := req.Patch
	if patch.Status == nil && req.Completed != nil {
		status := domain.StatusTodo
		if *req.Completed {
			status = domain.StatusCompleted
		}
		patch.Status = &status
	}

	updated, err := h.taskPort.UpdateTask(c.UserContext(), claims.UserID, c.Params("id"), patch)
	if err != nil {
		return h.handleError(c, err)
	}
	return c.JSON(updated)
}

// DeleteTask removes a task.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return unauthorized(c, "User not authenticated")
	}

	if err := h.taskPort.DeleteTask(c.UserContext(), claims.UserID, c.Params("id")); err != nil {
		return h.handleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ChangeFeed streams the caller's change events until the socket closes.
func (h *Handlers) ChangeFeed(conn *websocket.Conn) {
	claims, ok := conn.Locals(UserContextKey).(*userdomain.Claims)
	if !ok || claims == nil {
		_ = conn.Close()
		return
	}

	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: claims.UserID,
		Conn:   conn,
	}
	h.hub.Register(client)
	defer h.hub.Unregister(client)
	h.logger.Debug("Change feed connected", "client_id", client.ID, "user_id", client.UserID)

	// The feed is server to client only; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.logger.Debug("Change feed disconnected", "client_id", client.ID, "reason", err.Error())
			return
		}
	}
}

func (h *Handlers) parseCredentials(c *fiber.Ctx) (CredentialsRequest, bool) {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		_ = badRequest(c, "Invalid request body")
		return req, false
	}
	if req.Email == "" || req.Password == "" {
		_ = badRequest(c, "Email and password are required")
		return req, false
	}
	return req, true
}

// handleError maps service errors to responses. Errors arrive as text across
// the service boundary, so known messages are matched by content.
func (h *Handlers) handleError(c *fiber.Ctx, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, auth.ErrInvalidCredentials.Error()):
		return unauthorized(c, "Invalid email or password")
	case strings.Contains(errStr, auth.ErrUserExists.Error()):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "User with this email already exists",
		})
	case strings.Contains(errStr, auth.ErrInvalidEmail.Error()):
		return badRequest(c, "Invalid email format")
	case strings.Contains(errStr, "password must be at"):
		return badRequest(c, passwordMessage(errStr))
	case strings.Contains(errStr, auth.ErrUserNotFound.Error()),
		strings.Contains(errStr, task.ErrTaskNotFound.Error()):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: notFoundMessage(errStr),
		})
	case strings.Contains(errStr, task.ErrOwnerMismatch.Error()):
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "forbidden",
			Message: "Tasks can only be created for the signed-in user",
		})
	case strings.Contains(errStr, domain.ErrInvalidTask.Error()):
		return badRequest(c, validationMessage(errStr))
	case strings.Contains(errStr, context.DeadlineExceeded.Error()):
		return c.Status(fiber.StatusGatewayTimeout).JSON(ErrorResponse{
			Error:   "timeout",
			Message: "The request timed out",
		})
	default:
		h.logger.Error("Internal error", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}

func passwordMessage(errStr string) string {
	if strings.Contains(errStr, auth.ErrPasswordTooLong.Error()) {
		return "Password must be at most 72 characters"
	}
	return "Password must be at least 8 characters"
}

func notFoundMessage(errStr string) string {
	if strings.Contains(errStr, task.ErrTaskNotFound.Error()) {
		return "Task not found"
	}
	return "User not found"
}

// validationMessage returns the domain message after the "invalid task: " prefix.
func validationMessage(errStr string) string {
	prefix := domain.ErrInvalidTask.Error() + ": "
	if i := strings.Index(errStr, prefix); i >= 0 {
		return errStr[i+len(prefix):]
	}
	return "Invalid task"
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

func toSessionResponse(s *auth.SessionResponse) SessionResponse {
	return SessionResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    s.ExpiresIn,
		TokenType:    s.TokenType,
		User:         UserResponse{ID: s.UserID, Email: s.Email},
	}
}
