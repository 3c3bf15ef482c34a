package streak

import (
	"fmt"
	"time"
)

// Pass says which path is asking for an evaluation.
type Pass int

const (
	// PassDailyReset is the scheduled end-of-day judgement.
	PassDailyReset Pass = iota
	// PassCompletion runs when a single task is toggled during the day.
	PassCompletion
)

func (p Pass) String() string {
	if p == PassCompletion {
		return "completion"
	}
	return "daily_reset"
}

type Transition string

const (
	TransitionAdvanced        Transition = "advanced"
	TransitionAlreadyCredited Transition = "already_credited"
	TransitionReset           Transition = "reset"
	TransitionRevoked         Transition = "revoked"
	TransitionUnchanged       Transition = "unchanged"
)

// Input is everything Evaluate needs to know about one child.
type Input struct {
	Streak          int
	LastCompletedAt *time.Time
	// Completed holds one flag per assigned task.
	Completed []bool
	Pass      Pass
}

type Outcome struct {
	NextStreak          int        `json:"next_streak"`
	NextLastCompletedAt *time.Time `json:"next_last_completed_at"`
	// Changed is set when the child row must be written.
	Changed bool `json:"changed"`
	// Advanced is set when the streak went up.
	Advanced   bool       `json:"advanced"`
	Transition Transition `json:"transition"`
}

// Evaluate computes the next streak state of one child at now. It is pure:
// the same input, now, boundary and policy always give the same outcome.
func Evaluate(in Input, now time.Time, b *Boundary, p Policy) (Outcome, error) {
	if in.Streak < 0 {
		return Outcome{}, fmt.Errorf("negative streak %d", in.Streak)
	}
	unchanged := Outcome{
		NextStreak:          in.Streak,
		NextLastCompletedAt: in.LastCompletedAt,
		Transition:          TransitionUnchanged,
	}

	if len(in.Completed) == 0 && in.Pass == PassDailyReset && p.EmptyTasks == EmptyTasksPreserve {
		return unchanged, nil
	}

	if allCompleted(in.Completed) {
		if credited(in.LastCompletedAt, now, b) {
			unchanged.Transition = TransitionAlreadyCredited
			return unchanged, nil
		}
		at := now
		return Outcome{
			NextStreak:          in.Streak + 1,
			NextLastCompletedAt: &at,
			Changed:             true,
			Advanced:            true,
			Transition:          TransitionAdvanced,
		}, nil
	}

	if in.Pass == PassCompletion {
		return revokeToday(in, now, b, p), nil
	}

	// After a sweep no task is completed; a credited child in that shape was
	// judged by an earlier run and is left alone. A credited child with some
	// tasks still completed and another open was not cleared by a sweep and
	// failed the day.
	if !anyCompleted(in.Completed) && credited(in.LastCompletedAt, now, b) {
		unchanged.Transition = TransitionAlreadyCredited
		return unchanged, nil
	}
	if in.Streak == 0 && in.LastCompletedAt == nil {
		return unchanged, nil
	}
	return Outcome{
		NextStreak: 0,
		Changed:    true,
		Transition: TransitionReset,
	}, nil
}

// revokeToday undoes a credit given earlier on now's day when the policy asks
// for it. Any other mid-day un-completion leaves the child untouched.
func revokeToday(in Input, now time.Time, b *Boundary, p Policy) Outcome {
	out := Outcome{
		NextStreak:          in.Streak,
		NextLastCompletedAt: in.LastCompletedAt,
		Transition:          TransitionUnchanged,
	}
	if p.Uncomplete != UncompleteRevoke || in.Streak == 0 || !b.SameDay(in.LastCompletedAt, now) {
		return out
	}

	out.NextStreak = in.Streak - 1
	out.NextLastCompletedAt = nil
	if out.NextStreak > 0 {
		prev := b.EndOfPreviousDay(now)
		out.NextLastCompletedAt = &prev
	}
	out.Changed = true
	out.Transition = TransitionRevoked
	return out
}

// credited reports whether the day of now, or a later one, already counted.
// A later credit happens when a run closing the previous day is triggered
// after a completion earned credit today.
func credited(last *time.Time, now time.Time, b *Boundary) bool {
	if last == nil {
		return false
	}
	return b.SameDay(last, now) || last.After(now)
}

func anyCompleted(flags []bool) bool {
	for _, done := range flags {
		if done {
			return true
		}
	}
	return false
}

// allCompleted is false for an empty list: no tasks means nothing was fully
// completed.
func allCompleted(flags []bool) bool {
	if len(flags) == 0 {
		return false
	}
	for _, done := range flags {
		if !done {
			return false
		}
	}
	return true
}
