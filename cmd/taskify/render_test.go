package main

import (
	"testing"
	"time"

	"github.com/example/taskify/domain/task"
	"github.com/example/taskify/taskstore"
	"github.com/stretchr/testify/assert"
)

func TestFormatTaskTable(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	due := now.Add(48 * time.Hour)

	out := formatTaskTable([]task.Task{
		{ID: "0123456789abcdef", Title: "Write report", Status: task.StatusInProgress, Priority: task.PriorityHigh, DueDate: &due},
		{ID: "short", Title: "Water plants", Status: task.StatusCompleted},
	}, now, time.UTC)

	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "Write report")
	assert.Contains(t, out, "In Progress")
	assert.Contains(t, out, "Oct 17 12:00")
	assert.Contains(t, out, "Water plants")

	assert.Equal(t, "No tasks found.\n", formatTaskTable(nil, now, time.UTC))
}

func TestRenderBoard(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	columns := taskstore.GroupByStatus([]task.Task{
		{ID: "a", Title: "Plan trip", Status: task.StatusOnHold},
		{ID: "b", Title: "Pay rent"},
	})

	out := renderBoard(columns, now, time.UTC)

	for _, heading := range []string{"Todo (1)", "In Progress (0)", "On Hold (1)", "Completed (0)"} {
		assert.Contains(t, out, heading)
	}
	assert.Contains(t, out, "Plan trip")
	assert.Contains(t, out, "Pay rent")
}

func TestDescribeChange(t *testing.T) {
	before := []task.Task{
		{ID: "keep", Title: "Same"},
		{ID: "move", Title: "Moving", Status: task.StatusTodo},
		{ID: "gone", Title: "Removed"},
	}
	after := []task.Task{
		{ID: "new", Title: "Added"},
		{ID: "keep", Title: "Same"},
		{ID: "move", Title: "Moving", Status: task.StatusCompleted},
	}

	assert.Equal(t, []string{
		"+ new Added",
		"~ move Moving: Todo -> Completed",
		"- gone Removed",
	}, describeChange(before, after))
}
