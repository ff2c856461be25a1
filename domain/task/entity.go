// Package task holds the Task entity shared by the backend modules, the SDK
// and the client task store.
package task

import (
	"encoding/json"
	"time"
)

// Status is the board column a task sits in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusOnHold     Status = "onhold"
	StatusCompleted  Status = "completed"
)

// Statuses returns every status in board order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusOnHold, StatusCompleted}
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	for _, valid := range Statuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// OrDefault maps the empty status to StatusTodo.
func (s Status) OrDefault() Status {
	if s == "" {
		return StatusTodo
	}
	return s
}

// Title returns the column heading for the status.
func (s Status) Title() string {
	switch s.OrDefault() {
	case StatusTodo:
		return "Todo"
	case StatusInProgress:
		return "In Progress"
	case StatusOnHold:
		return "On Hold"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// Priority ranks how pressing a task is.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityLow    Priority = "low"
)

// Priorities returns every priority, most pressing first.
func Priorities() []Priority {
	return []Priority{PriorityUrgent, PriorityHigh, PriorityLow}
}

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	for _, valid := range Priorities() {
		if p == valid {
			return true
		}
	}
	return false
}

// OrDefault maps the empty priority to PriorityLow.
func (p Priority) OrDefault() Priority {
	if p == "" {
		return PriorityLow
	}
	return p
}

// Task is a single todo item owned by one user.
type Task struct {
	ID          string     `gorm:"primaryKey;type:text" json:"id"`
	Title       string     `gorm:"not null;type:text" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Priority    Priority   `gorm:"not null;type:text;default:low" json:"priority"`
	Status      Status     `gorm:"not null;type:text;default:todo" json:"status"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime:false" json:"updated_at"`
	UserID      string     `gorm:"index;not null;type:text" json:"user_id"`
}

// TableName returns the table name for the Task entity.
func (Task) TableName() string {
	return "tasks"
}

// Completed is derived from Status; there is no separate flag.
func (t Task) Completed() bool {
	return t.Status == StatusCompleted
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	if t.DueDate != nil {
		due := *t.DueDate
		t.DueDate = &due
	}
	return t
}

type taskJSON struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	Completed   *bool      `json:"completed,omitempty"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	UserID      string     `json:"user_id"`
}

// MarshalJSON emits completed as a read-only view of status.
func (t Task) MarshalJSON() ([]byte, error) {
	completed := t.Completed()
	return json.Marshal(taskJSON{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		Completed:   &completed,
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		UserID:      t.UserID,
	})
}

// UnmarshalJSON accepts records written before status existed: a legacy
// completed flag is only consulted when status is absent.
func (t *Task) UnmarshalJSON(data []byte) error {
	var raw taskJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status := raw.Status
	if status == "" && raw.Completed != nil && *raw.Completed {
		status = StatusCompleted
	}
	*t = Task{
		ID:          raw.ID,
		Title:       raw.Title,
		Description: raw.Description,
		Priority:    raw.Priority.OrDefault(),
		Status:      status.OrDefault(),
		DueDate:     raw.DueDate,
		CreatedAt:   raw.CreatedAt,
		UpdatedAt:   raw.UpdatedAt,
		UserID:      raw.UserID,
	}
	return nil
}
