package streak

import (
	"context"
	"time"

	"github.com/dukerupert/atomickids/internal/model"
)

// Gateway is the persistence surface the daily reset needs. Writes are
// last-write-wins per row; nothing here spans rows atomically.
type Gateway interface {
	ListChildrenWithTasks(ctx context.Context) ([]model.ChildWithTasks, error)
	UpdateChildStreak(ctx context.Context, childID int64, streak int, lastCompletedAt *time.Time) error
	ListUnlockedRewardIDs(ctx context.Context, childID int64) ([]int64, error)
	UnlockReward(ctx context.Context, childID, rewardID int64, unlockedAt time.Time) (model.UnlockResult, error)
	// ResetAllCompletedTasks clears completion on every completed task and
	// returns how many rows changed.
	ResetAllCompletedTasks(ctx context.Context) (int64, error)
	// ListRewardCatalog returns rewards ordered by streak requirement.
	ListRewardCatalog(ctx context.Context) ([]model.Reward, error)
}

// CompletionStore adds the single-task reads and writes used when a task is
// ticked during the day.
type CompletionStore interface {
	Gateway
	GetTask(ctx context.Context, accountID, taskID int64) (*model.Task, error)
	SetTaskCompletion(ctx context.Context, taskID int64, completed bool, completedAt *time.Time) error
	GetChildWithTasks(ctx context.Context, childID int64) (*model.ChildWithTasks, error)
}
