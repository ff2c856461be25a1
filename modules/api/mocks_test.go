package api

import (
	"context"
	"errors"

	domain "github.com/example/taskify/domain/task"
	userdomain "github.com/example/taskify/domain/user"
	"github.com/example/taskify/modules/auth"
	"github.com/go-monolith/mono/pkg/types"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

// mockAuthPort implements auth.AuthPort for testing
type mockAuthPort struct {
	registerFunc      func(ctx context.Context, email, password string) (*auth.RegisterResponse, error)
	loginFunc         func(ctx context.Context, email, password string) (*auth.SessionResponse, error)
	refreshFunc       func(ctx context.Context, refreshToken string) (*auth.SessionResponse, error)
	validateTokenFunc func(ctx context.Context, token string) (*userdomain.Claims, error)
	getUserFunc       func(ctx context.Context, userID string) (*userdomain.User, error)
}

func (m *mockAuthPort) Register(ctx context.Context, email, password string) (*auth.RegisterResponse, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, email, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthPort) Login(ctx context.Context, email, password string) (*auth.SessionResponse, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, email, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthPort) Refresh(ctx context.Context, refreshToken string) (*auth.SessionResponse, error) {
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, refreshToken)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthPort) ValidateToken(ctx context.Context, token string) (*userdomain.Claims, error) {
	if m.validateTokenFunc != nil {
		return m.validateTokenFunc(ctx, token)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthPort) GetUser(ctx context.Context, userID string) (*userdomain.User, error) {
	if m.getUserFunc != nil {
		return m.getUserFunc(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

// acceptToken treats "good-<user>" as a valid access token for <user>.
func acceptToken(_ context.Context, token string) (*userdomain.Claims, error) {
	const prefix = "good-"
	if len(token) > len(prefix) && token[:len(prefix)] == prefix {
		userID := token[len(prefix):]
		return &userdomain.Claims{UserID: userID, Email: userID + "@example.com"}, nil
	}
	return nil, errors.New("token validation failed: invalid token")
}

// mockTaskPort implements task.TaskPort for testing
type mockTaskPort struct {
	listFunc   func(ctx context.Context, userID string) ([]domain.Task, error)
	getFunc    func(ctx context.Context, userID, taskID string) (*domain.Task, error)
	createFunc func(ctx context.Context, userID string, draft domain.Draft) (*domain.Task, error)
	updateFunc func(ctx context.Context, userID, taskID string, patch domain.Patch) (*domain.Task, error)
	deleteFunc func(ctx context.Context, userID, taskID string) error
}

func (m *mockTaskPort) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTaskPort) GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, userID, taskID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTaskPort) CreateTask(ctx context.Context, userID string, draft domain.Draft) (*domain.Task, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, userID, draft)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTaskPort) UpdateTask(ctx context.Context, userID, taskID string, patch domain.Patch) (*domain.Task, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, userID, taskID, patch)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTaskPort) DeleteTask(ctx context.Context, userID, taskID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, userID, taskID)
	}
	return errors.New("not implemented")
}
