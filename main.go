// Taskify backend - a self-hosted backend for the Taskify task board.
//
// It provides:
// - Email/password accounts with JWT access and refresh tokens
// - Per-user task storage in SQLite
// - A websocket change feed of task inserts, updates and deletes
// - Optional Redis rate limiting of the auth endpoints
package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/taskify/modules/api"
	"github.com/example/taskify/modules/auth"
	"github.com/example/taskify/modules/ratelimit"
	"github.com/example/taskify/modules/realtime"
	"github.com/example/taskify/modules/task"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Taskify Backend ===")

	// Configuration from environment variables with defaults
	port := getEnv("PORT", "3000")
	dbPath := getEnv("TASKIFY_DB_PATH", "taskify.db")
	redisURL := os.Getenv("REDIS_URL")
	corsOrigins := getEnv("CORS_ALLOWED_ORIGINS", "*")
	authLimit := getEnvInt("AUTH_RATE_LIMIT", ratelimit.DefaultConfig().RequestsPerWindow)

	jwtConfig := auth.DefaultJWTConfig()
	jwtConfig.SecretKey = getEnv("JWT_SECRET_KEY", jwtConfig.SecretKey)
	jwtConfig.Issuer = getEnv("JWT_ISSUER", jwtConfig.Issuer)

	log.Printf("Configuration:")
	log.Printf("  HTTP Port: %s", port)
	log.Printf("  Database: %s", dbPath)
	log.Printf("  Rate limiting: %t", redisURL != "")

	// Both persistence modules share one SQLite file
	dsn := sqliteDSN(dbPath)

	// Create mono application
	logLevel := mono.WithLogLevel(mono.LogLevelInfo)
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "error") {
		logLevel = mono.WithLogLevel(mono.LogLevelError)
	}
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		logLevel,
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// Create modules
	authModule := auth.NewModule(auth.Config{DSN: dsn, JWT: jwtConfig}, logger)
	taskModule := task.NewModule(dsn, logger)
	realtimeModule := realtime.NewModule(logger)
	apiModule := api.NewModule(api.Config{Port: port, CORSOrigins: corsOrigins}, logger)

	// Inject dependencies
	apiModule.SetHub(realtimeModule.GetHub())

	// Register modules (order matters: services before the API that calls them)
	app.Register(authModule)
	app.Register(taskModule)
	app.Register(realtimeModule)

	if redisURL != "" {
		limitConfig := ratelimit.DefaultConfig()
		limitConfig.RequestsPerWindow = authLimit
		rateLimitModule, err := ratelimit.NewModule(redisURL, limitConfig, logger)
		if err != nil {
			log.Fatalf("Failed to configure rate limiting: %v", err)
		}
		apiModule.SetAuthRateLimiter(rateLimitModule.Handler())
		app.Register(rateLimitModule)
	}

	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(port)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(port string) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("")
	log.Println("  Public Endpoints:")
	log.Println("  POST   /api/v1/auth/signup    - Create an account and sign in")
	log.Println("  POST   /api/v1/auth/signin    - Sign in and get tokens")
	log.Println("  POST   /api/v1/auth/refresh   - Refresh access token")
	log.Println("  GET    /health                - Health check")
	log.Println("")
	log.Println("  Protected Endpoints (require Bearer token):")
	log.Println("  GET    /api/v1/auth/user      - Current user")
	log.Println("  GET    /api/v1/tasks          - List tasks, newest first")
	log.Println("  POST   /api/v1/tasks          - Create a task")
	log.Println("  GET    /api/v1/tasks/:id      - Get a task")
	log.Println("  PATCH  /api/v1/tasks/:id      - Update a task")
	log.Println("  DELETE /api/v1/tasks/:id      - Delete a task")
	log.Println("")
	log.Println("  Change feed (websocket):")
	log.Printf("  ws://localhost:%s/api/v1/realtime?access_token=<token>", port)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}

// sqliteDSN adds a busy timeout so the auth and task connections wait for
// each other's write locks instead of failing.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&_busy_timeout=5000"
	}
	return path + "?_busy_timeout=5000"
}

// getEnv returns environment variable or default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}
