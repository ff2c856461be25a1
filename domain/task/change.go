package task

import "time"

// ChangeType is the kind of write a ChangeEvent reports.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is one entry of the change feed. New is set for inserts and
// updates, Old for updates and deletes.
type ChangeEvent struct {
	Type            ChangeType `json:"type"`
	New             *Task      `json:"new,omitempty"`
	Old             *Task      `json:"old,omitempty"`
	UserID          string     `json:"user_id"`
	CommitTimestamp time.Time  `json:"commit_timestamp"`
}

// TaskID returns the id of the affected record.
func (e ChangeEvent) TaskID() string {
	if e.New != nil {
		return e.New.ID
	}
	if e.Old != nil {
		return e.Old.ID
	}
	return ""
}
