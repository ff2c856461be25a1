package task

import (
	"fmt"
	"strings"
	"time"
)

// Layouts accepted for due-date input, tried in order. Zone-less layouts are
// read in the caller's location.
var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDueDate normalizes user input to an absolute UTC instant. Blank input
// means no deadline and yields nil, never a zero time.
func ParseDueDate(input string, loc *time.Location) (*time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dueDateLayouts {
		parsed, err := time.ParseInLocation(layout, input, loc)
		if err == nil {
			due := parsed.UTC()
			return &due, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidDueDate, input)
}
