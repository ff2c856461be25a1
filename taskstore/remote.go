package taskstore

import (
	"context"

	"github.com/example/taskify/domain/task"
	"github.com/example/taskify/domain/user"
	"github.com/example/taskify/sdk"
)

// Remote is the backend the store mirrors. *sdk.Client provides it through
// NewRemote.
type Remote interface {
	Session() (user.Session, bool)
	ListTasks(ctx context.Context) ([]task.Task, error)
	InsertTask(ctx context.Context, draft task.Draft) (task.Task, error)
	UpdateTask(ctx context.Context, id string, patch task.Patch) (task.Task, error)
	DeleteTask(ctx context.Context, id string) error
	Subscribe(ctx context.Context, handler func(task.ChangeEvent)) (Subscription, error)
}

// Subscription is an open change feed. Unsubscribe must return only after
// the last handler call has finished.
type Subscription interface {
	Unsubscribe() error
}

// NewRemote adapts an SDK client to Remote.
func NewRemote(client *sdk.Client) Remote {
	return sdkRemote{Client: client}
}

type sdkRemote struct {
	*sdk.Client
}

func (r sdkRemote) Subscribe(ctx context.Context, handler func(task.ChangeEvent)) (Subscription, error) {
	sub, err := r.Client.Subscribe(ctx, handler)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
