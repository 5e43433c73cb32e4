package status

import (
	"fmt"
	"strings"
)

// Status is the completion filter understood by the list endpoints.
type Status string

const (
	All        Status = ""
	Completed  Status = "completed"
	Incomplete Status = "incomplete"
)

// Parse accepts the wire values plus "all"; matching is case insensitive.
func Parse(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return All, nil
	case "completed", "complete", "done":
		return Completed, nil
	case "incomplete", "pending":
		return Incomplete, nil
	}
	return All, fmt.Errorf("unknown status %q", s)
}

// Includes reports whether a record with the given completion state passes the filter.
func (s Status) Includes(completed bool) bool {
	switch s {
	case Completed:
		return completed
	case Incomplete:
		return !completed
	}
	return true
}

func (s Status) String() string {
	if s == All {
		return "all"
	}
	return string(s)
}
