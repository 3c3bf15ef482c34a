package streak

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/atomickids/internal/model"
)

var errBoom = errors.New("boom")

// fakeGateway is an in-memory CompletionStore with per-call failure hooks.
type fakeGateway struct {
	mu       sync.Mutex
	children map[int64]*model.Child
	tasks    []*model.Task
	catalog  []model.Reward
	unlocked map[int64]map[int64]time.Time

	failList       error
	failCatalog    error
	failSweep      error
	failUpdate     map[int64]error
	failUnlock     map[int64]error
	streakWrites   int
	unlockAttempts int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		children:   map[int64]*model.Child{},
		unlocked:   map[int64]map[int64]time.Time{},
		failUpdate: map[int64]error{},
		failUnlock: map[int64]error{},
	}
}

func (f *fakeGateway) addChild(id int64, streak int, lcat *time.Time) {
	f.children[id] = &model.Child{ID: id, AccountID: 1, Name: "child", Streak: streak, LastCompletedAt: lcat}
}

func (f *fakeGateway) addTask(id, childID int64, completed bool) {
	cid := childID
	f.tasks = append(f.tasks, &model.Task{ID: id, AccountID: 1, ChildID: &cid, Title: "task", Completed: completed})
}

func (f *fakeGateway) child(id int64) model.Child {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.children[id]
}

func (f *fakeGateway) completedTasks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tasks {
		if t.Completed {
			n++
		}
	}
	return n
}

func (f *fakeGateway) withTasks(c *model.Child) model.ChildWithTasks {
	cwt := model.ChildWithTasks{Child: *c, Tasks: []model.Task{}}
	for _, t := range f.tasks {
		if t.ChildID != nil && *t.ChildID == c.ID {
			cwt.Tasks = append(cwt.Tasks, *t)
		}
	}
	return cwt
}

func (f *fakeGateway) ListChildrenWithTasks(ctx context.Context) ([]model.ChildWithTasks, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	ids := make([]int64, 0, len(f.children))
	for id := range f.children {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]model.ChildWithTasks, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.withTasks(f.children[id]))
	}
	return out, nil
}

func (f *fakeGateway) UpdateChildStreak(ctx context.Context, childID int64, streak int, lastCompletedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failUpdate[childID]; err != nil {
		return err
	}
	c := f.children[childID]
	c.Streak = streak
	c.LastCompletedAt = lastCompletedAt
	f.streakWrites++
	return nil
}

func (f *fakeGateway) ListUnlockedRewardIDs(ctx context.Context, childID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id := range f.unlocked[childID] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (f *fakeGateway) UnlockReward(ctx context.Context, childID, rewardID int64, unlockedAt time.Time) (model.UnlockResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlockAttempts++
	if err := f.failUnlock[childID]; err != nil {
		return "", err
	}
	if f.unlocked[childID] == nil {
		f.unlocked[childID] = map[int64]time.Time{}
	}
	if _, ok := f.unlocked[childID][rewardID]; ok {
		return model.UnlockAlreadyExists, nil
	}
	f.unlocked[childID][rewardID] = unlockedAt
	return model.UnlockCreated, nil
}

func (f *fakeGateway) ResetAllCompletedTasks(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSweep != nil {
		return 0, f.failSweep
	}
	var n int64
	for _, t := range f.tasks {
		if t.Completed {
			t.Completed = false
			t.CompletedAt = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeGateway) ListRewardCatalog(ctx context.Context) ([]model.Reward, error) {
	if f.failCatalog != nil {
		return nil, f.failCatalog
	}
	return slices.Clone(f.catalog), nil
}

func (f *fakeGateway) GetTask(ctx context.Context, accountID, taskID int64) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == taskID && t.AccountID == accountID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeGateway) SetTaskCompletion(ctx context.Context, taskID int64, completed bool, completedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == taskID {
			t.Completed = completed
			t.CompletedAt = completedAt
		}
	}
	return nil
}

func (f *fakeGateway) GetChildWithTasks(ctx context.Context, childID int64) (*model.ChildWithTasks, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.children[childID]
	if !ok {
		return nil, nil
	}
	cwt := f.withTasks(c)
	return &cwt, nil
}

func catalogAt(thresholds ...int) []model.Reward {
	out := make([]model.Reward, 0, len(thresholds))
	for i, th := range thresholds {
		out = append(out, model.Reward{ID: int64(i + 1), Name: "r", StreakRequirement: th})
	}
	return out
}
