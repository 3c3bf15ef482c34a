package streak

import "fmt"

// EmptyTasks decides what the daily pass does with a child that has no tasks.
type EmptyTasks string

const (
	// EmptyTasksReset treats "no tasks" as "not all completed".
	EmptyTasksReset EmptyTasks = "reset"
	// EmptyTasksPreserve leaves the streak of a child without tasks untouched.
	EmptyTasksPreserve EmptyTasks = "preserve"
)

// Uncomplete decides what happens when a task is unticked after the child was
// already credited for the day.
type Uncomplete string

const (
	// UncompleteKeep lets the credit stand; the daily pass judges the day.
	UncompleteKeep Uncomplete = "keep"
	// UncompleteRevoke takes today's credit back immediately.
	UncompleteRevoke Uncomplete = "revoke"
)

// Close selects which day a daily pass judges.
type Close string

const (
	// ClosePreviousDay is for runs just after midnight: the day that just
	// ended is judged and credits are stamped at its last second.
	ClosePreviousDay Close = "previous"
	// CloseCurrentDay is for runs just before midnight: credits are stamped
	// at the run instant.
	CloseCurrentDay Close = "current"
)

type Policy struct {
	EmptyTasks EmptyTasks
	Uncomplete Uncomplete
	Close      Close
}

// DefaultPolicy matches the behavior of the original reset job.
func DefaultPolicy() Policy {
	return Policy{
		EmptyTasks: EmptyTasksReset,
		Uncomplete: UncompleteKeep,
		Close:      ClosePreviousDay,
	}
}

func (p Policy) Validate() error {
	switch p.EmptyTasks {
	case EmptyTasksReset, EmptyTasksPreserve:
	default:
		return fmt.Errorf("unknown empty-tasks policy %q", p.EmptyTasks)
	}
	switch p.Uncomplete {
	case UncompleteKeep, UncompleteRevoke:
	default:
		return fmt.Errorf("unknown uncomplete policy %q", p.Uncomplete)
	}
	switch p.Close {
	case ClosePreviousDay, CloseCurrentDay:
	default:
		return fmt.Errorf("unknown close policy %q", p.Close)
	}
	return nil
}
