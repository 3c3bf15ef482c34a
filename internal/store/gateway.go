package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/atomickids/internal/model"
)

// Gateway is the SQLite persistence gateway used by the streak engine. It
// spans every account.
type Gateway struct {
	db       *sql.DB
	Children *ChildStore
	Tasks    *TaskStore
	Rewards  *RewardStore
}

func NewGateway(db *sql.DB) *Gateway {
	return &Gateway{
		db:       db,
		Children: NewChildStore(db),
		Tasks:    NewTaskStore(db),
		Rewards:  NewRewardStore(db),
	}
}

// ListChildrenWithTasks reads every child and its assigned tasks inside one
// read transaction.
func (g *Gateway) ListChildrenWithTasks(ctx context.Context) ([]model.ChildWithTasks, error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT `+childCols+` FROM children ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	var out []model.ChildWithTasks
	index := map[int64]int{}
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan child: %w", err)
		}
		index[c.ID] = len(out)
		out = append(out, model.ChildWithTasks{Child: *c, Tasks: []model.Task{}})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list children: %w", err)
	}
	rows.Close()

	rows, err = tx.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE child_id IS NOT NULL ORDER BY sort_order ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if i, ok := index[*t.ChildID]; ok {
			out[i].Tasks = append(out[i].Tasks, t)
		}
	}
	return out, nil
}

func (g *Gateway) GetChildWithTasks(ctx context.Context, childID int64) (*model.ChildWithTasks, error) {
	row := g.db.QueryRowContext(ctx, `SELECT `+childCols+` FROM children WHERE id = ?`, childID)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}

	tasks, err := g.Tasks.List(ctx, c.AccountID, &c.ID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return &model.ChildWithTasks{Child: *c, Tasks: tasks}, nil
}

func (g *Gateway) UpdateChildStreak(ctx context.Context, childID int64, streak int, lastCompletedAt *time.Time) error {
	return g.Children.UpdateStreak(ctx, childID, streak, lastCompletedAt)
}

func (g *Gateway) ListUnlockedRewardIDs(ctx context.Context, childID int64) ([]int64, error) {
	return g.Rewards.ListUnlockedIDs(ctx, childID)
}

func (g *Gateway) UnlockReward(ctx context.Context, childID, rewardID int64, unlockedAt time.Time) (model.UnlockResult, error) {
	return g.Rewards.Unlock(ctx, childID, rewardID, unlockedAt)
}

func (g *Gateway) ResetAllCompletedTasks(ctx context.Context) (int64, error) {
	return g.Tasks.ResetAllCompleted(ctx)
}

func (g *Gateway) ListRewardCatalog(ctx context.Context) ([]model.Reward, error) {
	return g.Rewards.List(ctx)
}

func (g *Gateway) GetTask(ctx context.Context, accountID, taskID int64) (*model.Task, error) {
	return g.Tasks.GetByID(ctx, accountID, taskID)
}

func (g *Gateway) SetTaskCompletion(ctx context.Context, taskID int64, completed bool, completedAt *time.Time) error {
	return g.Tasks.SetCompletion(ctx, taskID, completed, completedAt)
}

func (g *Gateway) UpsertReward(ctx context.Context, name string, streakRequirement int, imageURL string) (*model.Reward, error) {
	return g.Rewards.Upsert(ctx, name, streakRequirement, imageURL)
}
