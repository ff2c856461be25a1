package sdk_test

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/taskify/domain/task"
	"github.com/example/taskify/domain/user"
	"github.com/example/taskify/modules/api"
	"github.com/example/taskify/modules/auth"
	"github.com/example/taskify/modules/realtime"
	taskmodule "github.com/example/taskify/modules/task"
	"github.com/example/taskify/sdk"
	"github.com/fasthttp/websocket"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

const (
	testUserID   = "user-1"
	testEmail    = "ada@example.com"
	testPassword = "password123"
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

// fakeAuth implements auth.AuthPort with opaque tokens kept in a map.
type fakeAuth struct {
	mu           sync.Mutex
	tokens       map[string]string // access token -> user id
	issued       int
	refreshes    atomic.Int32
	refreshFails bool
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{tokens: make(map[string]string)}
}

func (f *fakeAuth) issue(userID string) *auth.SessionResponse {
	f.issued++
	token := fmt.Sprintf("access-%d", f.issued)
	f.tokens[token] = userID
	return &auth.SessionResponse{
		UserID:       userID,
		Email:        testEmail,
		AccessToken:  token,
		RefreshToken: "refresh-" + userID,
		ExpiresIn:    900,
		TokenType:    "Bearer",
	}
}

func (f *fakeAuth) failRefreshes() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshFails = true
}

// revokeAll makes every issued access token invalid, as if they expired.
func (f *fakeAuth) revokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = make(map[string]string)
}

func (f *fakeAuth) Register(_ context.Context, email, _ string) (*auth.RegisterResponse, error) {
	if email == "taken@example.com" {
		return nil, auth.ErrUserExists
	}
	return &auth.RegisterResponse{ID: testUserID, Email: email, CreatedAt: time.Now()}, nil
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*auth.SessionResponse, error) {
	if email != testEmail || password != testPassword {
		return nil, auth.ErrInvalidCredentials
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issue(testUserID), nil
}

func (f *fakeAuth) Refresh(_ context.Context, refreshToken string) (*auth.SessionResponse, error) {
	f.refreshes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshFails || refreshToken != "refresh-"+testUserID {
		return nil, auth.ErrInvalidToken
	}
	return f.issue(testUserID), nil
}

func (f *fakeAuth) ValidateToken(_ context.Context, token string) (*user.Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.tokens[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &user.Claims{UserID: userID, Email: testEmail}, nil
}

func (f *fakeAuth) GetUser(_ context.Context, userID string) (*user.User, error) {
	return &user.User{ID: userID, Email: testEmail, CreatedAt: time.Now()}, nil
}

// fakeTasks implements task.TaskPort in memory.
type fakeTasks struct {
	mu      sync.Mutex
	seq     int
	tasks   map[string]task.Task
	deletes atomic.Int32
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{tasks: make(map[string]task.Task)}
}

func (f *fakeTasks) ListTasks(_ context.Context, userID string) ([]task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []task.Task
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeTasks) GetTask(_ context.Context, userID, taskID string) (*task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, taskmodule.ErrTaskNotFound
	}
	return &t, nil
}

func (f *fakeTasks) CreateTask(_ context.Context, userID string, draft task.Draft) (*task.Task, error) {
	draft, err := draft.Normalize()
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	created := task.Task{
		ID:          fmt.Sprintf("task-%d", f.seq),
		Title:       draft.Title,
		Description: draft.Description,
		Priority:    draft.Priority,
		Status:      draft.Status,
		DueDate:     draft.DueDate,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
		UserID:      userID,
	}
	f.tasks[created.ID] = created
	return &created, nil
}

func (f *fakeTasks) UpdateTask(_ context.Context, userID, taskID string, patch task.Patch) (*task.Task, error) {
	patch, err := patch.Normalize()
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, taskmodule.ErrTaskNotFound
	}
	t.Apply(patch)
	t.UpdatedAt = time.Now().UTC()
	f.tasks[taskID] = t
	return &t, nil
}

func (f *fakeTasks) DeleteTask(_ context.Context, userID, taskID string) error {
	f.deletes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok || t.UserID != userID {
		return taskmodule.ErrTaskNotFound
	}
	delete(f.tasks, taskID)
	return nil
}

type testBackend struct {
	auth    *fakeAuth
	tasks   *fakeTasks
	hub     *realtime.Hub
	stopHub context.CancelFunc
	client  *sdk.Client
}

// newTestBackend serves the real API handlers over an in-memory listener and
// returns a client wired to it.
func newTestBackend(t *testing.T, opts ...sdk.Option) *testBackend {
	t.Helper()

	backend := &testBackend{
		auth:  newFakeAuth(),
		tasks: newFakeTasks(),
		hub:   realtime.NewHub(&mockLogger{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	backend.stopHub = cancel
	go backend.hub.Run(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	api.NewHandlers(backend.auth, backend.tasks, backend.hub, &mockLogger{}).RegisterRoutes(app, nil)

	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = app.Listener(ln) }()

	t.Cleanup(func() {
		cancel()
		backend.hub.Wait()
		_ = app.Shutdown()
	})

	dial := func() (net.Conn, error) { return ln.Dial() }
	opts = append([]sdk.Option{
		sdk.WithHTTPClient(&fasthttp.Client{
			Dial: func(string) (net.Conn, error) { return dial() },
		}),
		sdk.WithDialer(&websocket.Dialer{
			NetDial:          func(string, string) (net.Conn, error) { return dial() },
			HandshakeTimeout: 5 * time.Second,
		}),
	}, opts...)

	client, err := sdk.New("http://taskify.test", opts...)
	require.NoError(t, err)
	backend.client = client
	return backend
}

func (b *testBackend) signIn(t *testing.T) user.Session {
	t.Helper()
	session, err := b.client.SignIn(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	return session
}
