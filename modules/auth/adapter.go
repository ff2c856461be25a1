package auth

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/taskify/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort defines the interface for authentication operations.
// This is the port that other modules use to access auth functionality.
type AuthPort interface {
	Register(ctx context.Context, email, password string) (*RegisterResponse, error)
	Login(ctx context.Context, email, password string) (*SessionResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*SessionResponse, error)
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

var _ AuthPort = (*AuthAdapter)(nil)

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	if container == nil {
		panic("auth adapter requires non-nil ServiceContainer")
	}
	return &AuthAdapter{container: container}
}

// Register creates an account via the register service.
func (a *AuthAdapter) Register(ctx context.Context, email, password string) (*RegisterResponse, error) {
	req := RegisterRequest{Email: email, Password: password}
	var resp RegisterResponse
	if err := a.call(ctx, "register", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login exchanges credentials for a session via the login service.
func (a *AuthAdapter) Login(ctx context.Context, email, password string) (*SessionResponse, error) {
	req := LoginRequest{Email: email, Password: password}
	var resp SessionResponse
	if err := a.call(ctx, "login", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh exchanges a refresh token via the refresh-token service.
func (a *AuthAdapter) Refresh(ctx context.Context, refreshToken string) (*SessionResponse, error) {
	req := RefreshRequest{RefreshToken: refreshToken}
	var resp SessionResponse
	if err := a.call(ctx, "refresh-token", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValidateToken validates an access token and returns claims.
func (a *AuthAdapter) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse
	if err := a.call(ctx, "validate-token", &req, &resp); err != nil {
		return nil, err
	}

	if !resp.Valid {
		return nil, fmt.Errorf("token validation failed: %s", resp.Error)
	}

	return &domain.Claims{
		UserID: resp.UserID,
		Email:  resp.Email,
	}, nil
}

// GetUser retrieves a user by ID.
func (a *AuthAdapter) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	req := GetUserRequest{UserID: userID}
	var resp GetUserResponse
	if err := a.call(ctx, "get-user", &req, &resp); err != nil {
		return nil, err
	}

	return &domain.User{
		ID:        resp.ID,
		Email:     resp.Email,
		CreatedAt: resp.CreatedAt,
	}, nil
}

func (a *AuthAdapter) call(ctx context.Context, service string, req, resp any) error {
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}
