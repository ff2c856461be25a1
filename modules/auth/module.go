package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/example/taskify/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config configures the auth module.
type Config struct {
	// DSN is the SQLite data source, e.g. "taskify.db?_busy_timeout=5000".
	DSN        string
	JWT        JWTConfig
	BcryptCost int
}

// AuthModule provides authentication services.
type AuthModule struct {
	config  Config
	db      *gorm.DB
	service *AuthService
	logger  types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*AuthModule)(nil)
var _ mono.ServiceProviderModule = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)

// NewModule creates a new AuthModule.
func NewModule(config Config, logger types.Logger) *AuthModule {
	if config.DSN == "" {
		config.DSN = "taskify.db"
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = DefaultBcryptCost
	}
	return &AuthModule{
		config: config,
		logger: logger.WithModule("auth"),
	}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// Start opens the database and builds the service.
func (m *AuthModule) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.config.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.service = NewAuthService(
		NewUserRepository(db),
		NewPasswordHasher(m.config.BcryptCost),
		NewJWTManager(m.config.JWT),
		m.logger,
	)

	m.logger.Info("Module started", "database", m.config.DSN)
	return nil
}

// Stop closes the database.
func (m *AuthModule) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	m.logger.Info("Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.config.DSN,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "register", json.Unmarshal, json.Marshal, m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register register service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "login", json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "refresh-token", json.Unmarshal, json.Marshal, m.handleRefresh,
	); err != nil {
		return fmt.Errorf("failed to register refresh-token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "validate-token", json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register validate-token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get-user", json.Unmarshal, json.Marshal, m.handleGetUser,
	); err != nil {
		return fmt.Errorf("failed to register get-user service: %w", err)
	}

	m.logger.Info("Registered services", "services", "register, login, refresh-token, validate-token, get-user")
	return nil
}

func (m *AuthModule) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (RegisterResponse, error) {
	user, err := m.service.Register(ctx, req.Email, req.Password)
	if err != nil {
		return RegisterResponse{}, err
	}

	return RegisterResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (m *AuthModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (SessionResponse, error) {
	user, tokens, err := m.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		return SessionResponse{}, err
	}
	return toSessionResponse(user, tokens), nil
}

func (m *AuthModule) handleRefresh(ctx context.Context, req RefreshRequest, _ *mono.Msg) (SessionResponse, error) {
	user, tokens, err := m.service.RefreshTokens(ctx, req.RefreshToken)
	if err != nil {
		return SessionResponse{}, err
	}
	return toSessionResponse(user, tokens), nil
}

// handleValidateToken reports validation failures in the response body, not as an error.
func (m *AuthModule) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	claims, err := m.service.ValidateToken(ctx, req.Token)
	if err != nil {
		errMsg := "invalid token"
		if errors.Is(err, ErrExpiredToken) {
			errMsg = "token expired"
		}
		return ValidateTokenResponse{
			Valid: false,
			Error: errMsg,
		}, nil
	}

	return ValidateTokenResponse{
		Valid:  true,
		UserID: claims.UserID,
		Email:  claims.Email,
	}, nil
}

func (m *AuthModule) handleGetUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (GetUserResponse, error) {
	user, err := m.service.GetUser(ctx, req.UserID)
	if err != nil {
		return GetUserResponse{}, err
	}

	return GetUserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}, nil
}

func toSessionResponse(user *domain.User, tokens *domain.TokenPair) SessionResponse {
	return SessionResponse{
		UserID:       user.ID,
		Email:        user.Email,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		TokenType:    tokens.TokenType,
	}
}
