package job

import "fmt"

// Status is the lifecycle state of a Job.
type Status string

// Job statuses.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
)

var validTransitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusFailed},
	StatusRunning: {StatusCompleted, StatusFailed, StatusTimeout},
}

// IsTerminal reports whether no further transition may leave s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusRunning || s.IsTerminal()
}

// ValidTransition reports whether a job may move from one status to another.
func ValidTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrAlreadyTerminal when from is terminal and
// ErrInvalidTransition for any other move outside the state machine.
func CheckTransition(from, to Status) error {
	if from.IsTerminal() {
		return fmt.Errorf("%w: job is %s", ErrAlreadyTerminal, from)
	}
	if !ValidTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
