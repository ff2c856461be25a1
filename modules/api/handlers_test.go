package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain "github.com/example/taskify/domain/task"
	"github.com/example/taskify/modules/auth"
	"github.com/example/taskify/modules/realtime"
	"github.com/example/taskify/modules/task"
	"github.com/gofiber/fiber/v2"
)

func newTestApp(authPort *mockAuthPort, taskPort *mockTaskPort) *fiber.App {
	if authPort.validateTokenFunc == nil {
		authPort.validateTokenFunc = acceptToken
	}
	app := fiber.New()
	NewHandlers(authPort, taskPort, realtime.NewHub(&mockLogger{}), &mockLogger{}).RegisterRoutes(app, nil)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target, token, body string) (*http.Response, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func TestSignUp(t *testing.T) {
	authPort := &mockAuthPort{
		registerFunc: func(_ context.Context, email, _ string) (*auth.RegisterResponse, error) {
			if email == "taken@example.com" {
				return nil, fmt.Errorf("register request failed: %w", auth.ErrUserExists)
			}
			return &auth.RegisterResponse{ID: "u1", Email: email}, nil
		},
		loginFunc: func(_ context.Context, email, _ string) (*auth.SessionResponse, error) {
			return &auth.SessionResponse{UserID: "u1", Email: email, AccessToken: "at", RefreshToken: "rt", ExpiresIn: 900, TokenType: "Bearer"}, nil
		},
	}
	app := newTestApp(authPort, &mockTaskPort{})

	resp, body := doRequest(t, app, "POST", "/api/v1/auth/signup", "", `{"email":"new@example.com","password":"password123"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var session SessionResponse
	if err := json.Unmarshal([]byte(body), &session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session.User.ID != "u1" || session.AccessToken != "at" || session.RefreshToken != "rt" {
		t.Errorf("session = %+v", session)
	}

	resp, _ = doRequest(t, app, "POST", "/api/v1/auth/signup", "", `{"email":"taken@example.com","password":"password123"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate signup status = %d, want 409", resp.StatusCode)
	}

	resp, _ = doRequest(t, app, "POST", "/api/v1/auth/signup", "", `{"email":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty signup status = %d, want 400", resp.StatusCode)
	}
}

func TestSignInAndRefresh(t *testing.T) {
	authPort := &mockAuthPort{
		loginFunc: func(context.Context, string, string) (*auth.SessionResponse, error) {
			return nil, errors.New("login request failed: invalid email or password")
		},
		refreshFunc: func(context.Context, string) (*auth.SessionResponse, error) {
			return nil, errors.New("refresh-token request failed: invalid refresh token: token has expired")
		},
	}
	app := newTestApp(authPort, &mockTaskPort{})

	resp, body := doRequest(t, app, "POST", "/api/v1/auth/signin", "", `{"email":"a@example.com","password":"password123"}`)
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(body, "Invalid email or password") {
		t.Errorf("signin status = %d, body = %s", resp.StatusCode, body)
	}

	resp, _ = doRequest(t, app, "POST", "/api/v1/auth/refresh", "", `{"refresh_token":"old"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("refresh status = %d, want 401", resp.StatusCode)
	}
}

func TestTaskRoutesRequireAuth(t *testing.T) {
	app := newTestApp(&mockAuthPort{}, &mockTaskPort{})
	for _, route := range [][2]string{
		{"GET", "/api/v1/tasks"},
		{"POST", "/api/v1/tasks"},
		{"PATCH", "/api/v1/tasks/t1"},
		{"DELETE", "/api/v1/tasks/t1"},
		{"GET", "/api/v1/auth/user"},
	} {
		resp, _ := doRequest(t, app, route[0], route[1], "", "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status = %d, want 401", route[0], route[1], resp.StatusCode)
		}
	}
}

func TestListTasks(t *testing.T) {
	var gotUser string
	taskPort := &mockTaskPort{
		listFunc: func(_ context.Context, userID string) ([]domain.Task, error) {
			gotUser = userID
			return []domain.Task{{ID: "t2", Title: "newer", Status: domain.StatusCompleted}, {ID: "t1", Title: "older"}}, nil
		},
	}
	app := newTestApp(&mockAuthPort{}, taskPort)

	resp, body := doRequest(t, app, "GET", "/api/v1/tasks", "good-alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if gotUser != "alice" {
		t.Errorf("ListTasks called for %q, want alice", gotUser)
	}
	var list TaskListResponse
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 2 || list.Tasks[0].ID != "t2" || !list.Tasks[0].Completed() {
		t.Errorf("list = %+v", list)
	}
}

func TestCreateTask(t *testing.T) {
	taskPort := &mockTaskPort{
		createFunc: func(_ context.Context, userID string, draft domain.Draft) (*domain.Task, error) {
			normalized, err := draft.Normalize()
			if err != nil {
				return nil, fmt.Errorf("create-task service call failed: %w", err)
			}
			return &domain.Task{ID: "t1", Title: normalized.Title, Status: normalized.Status, Priority: normalized.Priority, UserID: userID}, nil
		},
	}
	app := newTestApp(&mockAuthPort{}, taskPort)

	resp, body := doRequest(t, app, "POST", "/api/v1/tasks", "good-alice", `{"title":"Buy milk","priority":"high"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var created domain.Task
	if err := json.Unmarshal([]byte(body), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.UserID != "alice" || created.Priority != domain.PriorityHigh || created.Status != domain.StatusTodo {
		t.Errorf("created = %+v", created)
	}

	resp, body = doRequest(t, app, "POST", "/api/v1/tasks", "good-alice", `{"title":"   "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank title status = %d, want 400", resp.StatusCode)
	}
	if !strings.Contains(body, "title is required") {
		t.Errorf("body = %s, want the validation message", body)
	}
}

func TestUpdateTask(t *testing.T) {
	var gotPatch domain.Patch
	taskPort := &mockTaskPort{
		updateFunc: func(_ context.Context, _, taskID string, patch domain.Patch) (*domain.Task, error) {
			if taskID != "t1" {
				return nil, fmt.Errorf("update-task service call failed: %w", task.ErrTaskNotFound)
			}
			gotPatch = patch
			updated := domain.Task{ID: taskID, Title: "x"}
			updated.Apply(patch)
			return &updated, nil
		},
	}
	app := newTestApp(&mockAuthPort{}, taskPort)

	tests := []struct {
		name       string
		body       string
		wantStatus domain.Status
	}{
		{name: "status field", body: `{"status":"onhold"}`, wantStatus: domain.StatusOnHold},
		{name: "legacy completed true", body: `{"completed":true}`, wantStatus: domain.StatusCompleted},
		{name: "legacy completed false", body: `{"completed":false}`, wantStatus: domain.StatusTodo},
		{name: "status wins over legacy flag", body: `{"status":"inprogress","completed":true}`, wantStatus: domain.StatusInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, app, "PATCH", "/api/v1/tasks/t1", "good-alice", tt.body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
			}
			if gotPatch.Status == nil || *gotPatch.Status != tt.wantStatus {
				t.Errorf("patch status = %v, want %s", gotPatch.Status, tt.wantStatus)
			}
		})
	}

	resp, _ := doRequest(t, app, "PATCH", "/api/v1/tasks/missing", "good-alice", `{"status":"todo"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing task status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteTask(t *testing.T) {
	taskPort := &mockTaskPort{
		deleteFunc: func(_ context.Context, _, taskID string) error {
			switch taskID {
			case "t1":
				return nil
			case "boom":
				return errors.New("delete-task service call failed: disk I/O error")
			default:
				return fmt.Errorf("delete-task service call failed: %w", task.ErrTaskNotFound)
			}
		},
	}
	app := newTestApp(&mockAuthPort{}, taskPort)

	for target, want := range map[string]int{
		"/api/v1/tasks/t1":      http.StatusNoContent,
		"/api/v1/tasks/missing": http.StatusNotFound,
		"/api/v1/tasks/boom":    http.StatusInternalServerError,
	} {
		resp, body := doRequest(t, app, "DELETE", target, "good-alice", "")
		if resp.StatusCode != want {
			t.Errorf("DELETE %s status = %d, want %d (body %s)", target, resp.StatusCode, want, body)
		}
	}
}

func TestRealtimeRequiresUpgrade(t *testing.T) {
	app := newTestApp(&mockAuthPort{}, &mockTaskPort{})
	resp, _ := doRequest(t, app, "GET", "/api/v1/realtime?access_token=good-alice", "", "")
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}
