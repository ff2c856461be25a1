// Package events declares the change-feed events published by the task module.
package events

import (
	"github.com/example/taskify/domain/task"
	"github.com/go-monolith/mono/pkg/helper"
)

// TaskChangedV1 is published after a task row is created, modified or
// removed. ChangeEvent.Type tells the kinds apart. All kinds share one
// subject so consumers see them in publish order.
// Subject: events.task.v1.task-changed
var TaskChangedV1 = helper.EventDefinition[task.ChangeEvent](
	"task", "TaskChanged", "v1",
)
