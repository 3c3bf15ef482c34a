package streak

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/atomickids/internal/model"
)

var ErrTaskNotFound = errors.New("task not found")

// Completer applies a single task toggle and keeps the owning child's streak
// in step with it during the day.
type Completer struct {
	store    CompletionStore
	boundary *Boundary
	policy   Policy
	logger   *slog.Logger
}

func NewCompleter(store CompletionStore, b *Boundary, p Policy, logger *slog.Logger) *Completer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Completer{store: store, boundary: b, policy: p, logger: logger}
}

// CompletionResult is what a toggle changed.
type CompletionResult struct {
	Task    *model.Task  `json:"task"`
	Child   *model.Child `json:"child,omitempty"`
	Outcome *Outcome     `json:"outcome,omitempty"`
	Unlocks []Unlock     `json:"unlocks"`
}

// SetTaskCompleted marks a task completed or not at now. When the task is
// assigned, the child is evaluated with PassCompletion; a second completion
// on the same day never credits twice.
func (c *Completer) SetTaskCompleted(ctx context.Context, accountID, taskID int64, completed bool, now time.Time) (*CompletionResult, error) {
	task, err := c.store.GetTask(ctx, accountID, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	var completedAt *time.Time
	if completed {
		at := now
		completedAt = &at
	}
	if err := c.store.SetTaskCompletion(ctx, taskID, completed, completedAt); err != nil {
		return nil, fmt.Errorf("set task completion: %w", err)
	}
	task.Completed = completed
	task.CompletedAt = completedAt

	result := &CompletionResult{Task: task, Unlocks: []Unlock{}}
	if task.ChildID == nil {
		return result, nil
	}

	child, err := c.store.GetChildWithTasks(ctx, *task.ChildID)
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	if child == nil {
		return result, nil
	}

	out, err := Evaluate(inputFor(*child, PassCompletion), now, c.boundary, c.policy)
	if err != nil {
		return nil, &JobError{Kind: ErrEvaluationFailure, ChildID: child.ID, Err: err}
	}
	transitionsTotal.WithLabelValues(PassCompletion.String(), string(out.Transition)).Inc()
	result.Outcome = &out

	if out.Advanced {
		catalog, err := c.store.ListRewardCatalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("list reward catalog: %w", err)
		}
		unlocks, err := unlockRewards(ctx, c.store, child.ID, out.NextStreak, catalog, now)
		if err != nil {
			return nil, err
		}
		result.Unlocks = unlocks
	}
	if out.Changed {
		if err := c.store.UpdateChildStreak(ctx, child.ID, out.NextStreak, out.NextLastCompletedAt); err != nil {
			return nil, fmt.Errorf("update streak: %w", err)
		}
		c.logger.Info("streak updated",
			"child_id", child.ID,
			"transition", out.Transition,
			"streak", out.NextStreak,
		)
	}

	updated := child.Child
	updated.Streak = out.NextStreak
	updated.LastCompletedAt = out.NextLastCompletedAt
	result.Child = &updated
	return result, nil
}
