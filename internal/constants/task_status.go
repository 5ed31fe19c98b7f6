package constants

import "fmt"

type TaskStatus string

const (
	StatusOpen       TaskStatus = "open"
	StatusAssigned   TaskStatus = "assigned"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
	StatusExpired    TaskStatus = "expired"
)

// TaskStatuses lists every task status in lifecycle order.
var TaskStatuses = []TaskStatus{
	StatusOpen,
	StatusAssigned,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusExpired,
}

// taskTransitions is the complete lifecycle graph. Terminal statuses have no
// outgoing edges.
var taskTransitions = map[TaskStatus][]TaskStatus{
	StatusOpen:       {StatusAssigned, StatusCancelled, StatusExpired},
	StatusAssigned:   {StatusInProgress, StatusCompleted},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  nil,
	StatusCancelled:  nil,
	StatusExpired:    nil,
}

func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(s)
	if _, ok := taskTransitions[status]; !ok {
		return "", fmt.Errorf("unknown task status %q", s)
	}
	return status, nil
}

func (s TaskStatus) Valid() bool {
	_, ok := taskTransitions[s]
	return ok
}

func (s TaskStatus) IsTerminal() bool {
	return s.Valid() && len(taskTransitions[s]) == 0
}

// HasAssignee reports whether a task in this status must carry an assignee.
func (s TaskStatus) HasAssignee() bool {
	switch s {
	case StatusAssigned, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, candidate := range taskTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Next returns the statuses directly reachable from s.
func (s TaskStatus) Next() []TaskStatus {
	next := taskTransitions[s]
	out := make([]TaskStatus, len(next))
	copy(out, next)
	return out
}
