package api

import (
	"time"

	domain "github.com/example/taskify/domain/task"
)

// CredentialsRequest is the body of sign up and sign in.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// SessionResponse is returned by sign up, sign in and refresh.
type SessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	TokenType    string       `json:"token_type"`
	User         UserResponse `json:"user"`
}

// UpdateTaskRequest is the PATCH body. Completed is the legacy spelling of
// the status field and only applies when status is absent.
type UpdateTaskRequest struct {
	domain.Patch
	Completed *bool `json:"completed,omitempty"`
}

// TaskListResponse wraps the task list.
type TaskListResponse struct {
	Tasks []domain.Task `json:"tasks"`
	Total int           `json:"total"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
