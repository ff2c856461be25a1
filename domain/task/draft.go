package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTitleLength is the maximum allowed length for a task title.
const MaxTitleLength = 500

var (
	// ErrInvalidTask is the parent of every validation failure below.
	ErrInvalidTask = errors.New("invalid task")
	// ErrTitleRequired is returned when the title is empty after trimming.
	ErrTitleRequired = fmt.Errorf("%w: title is required", ErrInvalidTask)
	// ErrTitleTooLong is returned when the title exceeds MaxTitleLength.
	ErrTitleTooLong = fmt.Errorf("%w: title must be at most %d characters", ErrInvalidTask, MaxTitleLength)
	// ErrInvalidStatus is returned for a status outside Statuses().
	ErrInvalidStatus = fmt.Errorf("%w: unknown status", ErrInvalidTask)
	// ErrInvalidPriority is returned for a priority outside Priorities().
	ErrInvalidPriority = fmt.Errorf("%w: unknown priority", ErrInvalidTask)
	// ErrInvalidDueDate is returned when a due date cannot be read as an instant.
	ErrInvalidDueDate = fmt.Errorf("%w: due date is not a valid date or time", ErrInvalidTask)
	// ErrEmptyPatch is returned when an update would change nothing.
	ErrEmptyPatch = fmt.Errorf("%w: no fields to update", ErrInvalidTask)
)

// Draft carries the caller-supplied fields of a task that does not exist yet.
type Draft struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	Status      Status     `json:"status,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	UserID      string     `json:"user_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
}

// Normalize trims text fields, fills defaults and validates the result.
func (d Draft) Normalize() (Draft, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Priority = d.Priority.OrDefault()
	d.Status = d.Status.OrDefault()
	if err := validateTitle(d.Title); err != nil {
		return Draft{}, err
	}
	if !d.Priority.IsValid() {
		return Draft{}, ErrInvalidPriority
	}
	if !d.Status.IsValid() {
		return Draft{}, ErrInvalidStatus
	}
	if d.DueDate != nil {
		due := d.DueDate.UTC()
		d.DueDate = &due
	}
	return d, nil
}

// Patch is a partial update. Nil fields are left unchanged; ClearDueDate
// removes the deadline and wins over DueDate.
type Patch struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Priority     *Priority  `json:"priority,omitempty"`
	Status       *Status    `json:"status,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ClearDueDate bool       `json:"clear_due_date,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Status == nil && p.DueDate == nil && !p.ClearDueDate
}

// Normalize trims text fields and validates the patch.
func (p Patch) Normalize() (Patch, error) {
	if p.IsEmpty() {
		return Patch{}, ErrEmptyPatch
	}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if err := validateTitle(title); err != nil {
			return Patch{}, err
		}
		p.Title = &title
	}
	if p.Description != nil {
		description := strings.TrimSpace(*p.Description)
		p.Description = &description
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return Patch{}, ErrInvalidPriority
	}
	if p.Status != nil && !p.Status.IsValid() {
		return Patch{}, ErrInvalidStatus
	}
	if p.ClearDueDate {
		p.DueDate = nil
	} else if p.DueDate != nil {
		due := p.DueDate.UTC()
		p.DueDate = &due
	}
	return p, nil
}

// Apply writes the patch onto t. Identity fields are never touched.
func (t *Task) Apply(p Patch) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		due := *p.DueDate
		t.DueDate = &due
	}
}

// Merge copies the mutable fields of newer onto t. ID, UserID and CreatedAt
// keep the values t already has.
func (t *Task) Merge(newer Task) {
	t.Title = newer.Title
	t.Description = newer.Description
	t.Priority = newer.Priority.OrDefault()
	t.Status = newer.Status.OrDefault()
	t.DueDate = newer.Clone().DueDate
	if !newer.UpdatedAt.IsZero() {
		t.UpdatedAt = newer.UpdatedAt
	}
}

func validateTitle(title string) error {
	if title == "" {
		return ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

// ParseStatus reads a status name, accepting the column titles as well.
func ParseStatus(s string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(normalized)
	status := Status(normalized).OrDefault()
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// ParsePriority reads a priority name.
func ParsePriority(s string) (Priority, error) {
	priority := Priority(strings.ToLower(strings.TrimSpace(s))).OrDefault()
	if !priority.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
	return priority, nil
}
