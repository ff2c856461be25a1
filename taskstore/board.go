package taskstore

import "github.com/example/taskify/domain/task"

// Column is one status lane of the board.
type Column struct {
	Status task.Status
	Title  string
	Tasks  []task.Task
}

// Columns groups the collection by status in board order. Every status
// gets a column, empty or not.
func (s *Store) Columns() []Column {
	return GroupByStatus(s.Snapshot())
}

// GroupByStatus splits tasks into the four board columns, keeping their
// relative order. A task without a status lands in Todo.
func GroupByStatus(tasks []task.Task) []Column {
	statuses := task.Statuses()
	columns := make([]Column, len(statuses))
	lane := make(map[task.Status]int, len(statuses))
	for i, status := range statuses {
		columns[i] = Column{Status: status, Title: status.Title(), Tasks: []task.Task{}}
		lane[status] = i
	}

	for _, t := range tasks {
		i, ok := lane[t.Status.OrDefault()]
		if !ok {
			continue
		}
		columns[i].Tasks = append(columns[i].Tasks, t)
	}
	return columns
}
