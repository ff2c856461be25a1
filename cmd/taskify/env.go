package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/taskify/domain/task"
	"github.com/example/taskify/sdk"
	"github.com/example/taskify/taskstore"
)

var errNotSignedIn = errors.New("not signed in; run `taskify signin <email>` first")

// environment is what every command needs: the resolved config and a client
// whose session persists in the config directory.
type environment struct {
	cfg    *Config
	client *sdk.Client
	loc    *time.Location
	logger *slog.Logger
}

func loadEnvironment() (*environment, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(filepath.Join(dir, "config.toml"))
	if err != nil {
		return nil, err
	}

	loc := time.Local
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("config timezone %q: %w", cfg.Timezone, err)
		}
	}

	level := slog.LevelError
	if verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client, err := sdk.New(
		resolveServerURL(serverURLFlag, os.Getenv("TASKIFY_SERVER_URL"), cfg),
		sdk.WithSessionStore(sdk.NewFileSessionStore(filepath.Join(dir, "session.json"))),
		sdk.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return &environment{cfg: cfg, client: client, loc: loc, logger: logger}, nil
}

// openStore subscribes a task store to the change feed and loads it. The
// caller must Close the store.
func (e *environment) openStore(ctx context.Context) (*taskstore.Store, error) {
	store, err := taskstore.New(ctx, taskstore.NewRemote(e.client),
		taskstore.WithLogger(e.logger),
		taskstore.WithLocation(e.loc),
	)
	if err != nil {
		return nil, friendlyError(err)
	}
	if err := store.Load(ctx); err != nil {
		_ = store.Close()
		return nil, friendlyError(err)
	}
	return store, nil
}

// friendlyError rewrites errors a user can act on.
func friendlyError(err error) error {
	switch {
	case errors.Is(err, taskstore.ErrNoSession), errors.Is(err, sdk.ErrNoSession):
		return errNotSignedIn
	case errors.Is(err, sdk.ErrSessionExpired):
		return errors.New("session expired; run `taskify signin <email>` again")
	}
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return errors.New(apiErr.Message)
	}
	return err
}

// resolveTaskID finds the task whose id is ref or starts with ref.
func resolveTaskID(tasks []task.Task, ref string) (string, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return "", errors.New("task id is required")
	}

	var matches []string
	for _, t := range tasks {
		id := strings.ToLower(t.ID)
		if id == ref {
			return t.ID, nil
		}
		if strings.HasPrefix(id, ref) {
			matches = append(matches, t.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no task matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q matches %d tasks; use more characters", ref, len(matches))
	}
}
