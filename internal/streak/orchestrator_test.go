package streak

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/atomickids/internal/model"
)

func newTestOrchestrator(t *testing.T, gw Gateway, now time.Time, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewOrchestrator(gw, sydney(t), opts...)
}

func TestRunEvaluatesAndSweeps(t *testing.T) {
	b := sydney(t)
	yesterday := at(t, b, "2024-03-09 19:00:00")
	gw := newFakeGateway()
	gw.catalog = catalogAt(1, 3, 7, 14)

	// C: all done, first completion.
	gw.addChild(1, 2, nil)
	gw.addTask(11, 1, true)
	gw.addTask(12, 1, true)
	gw.addTask(13, 1, true)
	// D: one incomplete.
	gw.addChild(2, 4, &yesterday)
	gw.addTask(21, 2, true)
	gw.addTask(22, 2, false)
	// E: no tasks.
	gw.addChild(3, 3, &yesterday)

	now := at(t, b, "2024-03-11 00:00:30")
	sum, err := newTestOrchestrator(t, gw, now).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, sum.State)
	assert.Equal(t, http.StatusOK, sum.StatusCode())
	assert.Equal(t, "2024-03-10", sum.Day)
	assert.Equal(t, 3, sum.ChildrenEvaluated)
	assert.Equal(t, []int64{1}, sum.Advanced)
	assert.Equal(t, []int64{2, 3}, sum.Reset)
	assert.Equal(t, int64(4), sum.TasksReset)
	assert.NotEmpty(t, sum.RunID)

	c := gw.child(1)
	assert.Equal(t, 3, c.Streak)
	require.NotNil(t, c.LastCompletedAt)
	assert.True(t, c.LastCompletedAt.Equal(at(t, b, "2024-03-10 23:59:59")))

	for _, id := range []int64{2, 3} {
		c := gw.child(id)
		assert.Equal(t, 0, c.Streak, "child %d", id)
		assert.Nil(t, c.LastCompletedAt, "child %d", id)
	}
	assert.Zero(t, gw.completedTasks())

	assert.Equal(t, []Unlock{
		{ChildID: 1, RewardID: 1, Result: model.UnlockCreated},
		{ChildID: 1, RewardID: 2, Result: model.UnlockCreated},
	}, sum.Unlocks)
}

func TestRunCloseCurrentDayCreditsAtNow(t *testing.T) {
	b := sydney(t)
	gw := newFakeGateway()
	gw.addChild(1, 0, nil)
	gw.addTask(11, 1, true)

	now := at(t, b, "2024-03-10 23:55:00")
	p := DefaultPolicy()
	p.Close = CloseCurrentDay
	sum, err := newTestOrchestrator(t, gw, now, WithPolicy(p)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2024-03-10", sum.Day)
	c := gw.child(1)
	require.NotNil(t, c.LastCompletedAt)
	assert.True(t, c.LastCompletedAt.Equal(now))
}

func TestRunDoesNotDoubleCreditMirroredCompletion(t *testing.T) {
	b := sydney(t)
	creditedAt := at(t, b, "2024-03-10 15:00:00")
	gw := newFakeGateway()
	gw.addChild(1, 5, &creditedAt)
	gw.addTask(11, 1, true)

	sum, err := newTestOrchestrator(t, gw, at(t, b, "2024-03-11 00:00:05")).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, sum.Advanced)
	assert.Empty(t, sum.Reset)
	assert.Equal(t, 5, gw.child(1).Streak)
	assert.Zero(t, gw.streakWrites)
	assert.Zero(t, gw.completedTasks())
}

func TestRunIsolatesPersistenceFailures(t *testing.T) {
	b := sydney(t)
	gw := newFakeGateway()
	gw.addChild(1, 1, nil) // F
	gw.addTask(11, 1, true)
	gw.addChild(2, 1, nil) // G
	gw.addTask(21, 2, true)
	gw.failUpdate[1] = errBoom

	sum, err := newTestOrchestrator(t, gw, at(t, b, "2024-03-11 00:01:00"), WithConcurrency(2)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, sum.State)
	assert.Equal(t, http.StatusMultiStatus, sum.StatusCode())
	assert.Equal(t, []int64{2}, sum.Advanced)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, int64(1), sum.Failures[0].ChildID)
	assert.Equal(t, StatePersisting, sum.Failures[0].Phase)
	assert.Contains(t, sum.Failures[0].Error, "boom")

	assert.Equal(t, 1, gw.child(1).Streak)
	assert.Equal(t, 2, gw.child(2).Streak)
	assert.Equal(t, int64(2), sum.TasksReset)
	assert.Zero(t, gw.completedTasks())
}

func TestRunLoadFailureWritesNothing(t *testing.T) {
	b := sydney(t)
	gw := newFakeGateway()
	gw.addChild(1, 1, nil)
	gw.addTask(11, 1, true)
	gw.failCatalog = errBoom

	sum, err := newTestOrchestrator(t, gw, at(t, b, "2024-03-11 00:01:00")).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoadFailure))
	assert.True(t, errors.Is(err, errBoom))

	assert.Equal(t, StateFailed, sum.State)
	assert.Equal(t, StateLoading, sum.FailedPhase)
	assert.Equal(t, http.StatusInternalServerError, sum.StatusCode())
	assert.Zero(t, gw.streakWrites)
	assert.Equal(t, 1, gw.completedTasks())
}

func TestRunSweepFailureThenRetryIsIdempotent(t *testing.T) {
	b := sydney(t)
	gw := newFakeGateway()
	gw.catalog = catalogAt(1, 3)
	gw.addChild(1, 2, nil)
	gw.addTask(11, 1, true)
	gw.failSweep = errBoom
	now := at(t, b, "2024-03-11 00:01:00")

	sum, err := newTestOrchestrator(t, gw, now).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResetSweepFailure))
	assert.Equal(t, StateResetting, sum.FailedPhase)
	assert.Equal(t, http.StatusInternalServerError, sum.StatusCode())
	assert.Equal(t, 3, gw.child(1).Streak)
	assert.Len(t, gw.unlocked[1], 2)

	gw.failSweep = nil
	retry, err := newTestOrchestrator(t, gw, now.Add(5*time.Minute)).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, retry.Advanced)
	assert.Empty(t, retry.Unlocks)
	assert.Equal(t, 3, gw.child(1).Streak)
	assert.Len(t, gw.unlocked[1], 2)
	assert.Zero(t, gw.completedTasks())
}

func TestRunRepairsFailedStreakWriteOnRetry(t *testing.T) {
	b := sydney(t)
	gw := newFakeGateway()
	gw.catalog = catalogAt(1)
	gw.addChild(1, 0, nil)
	gw.addTask(11, 1, true)
	gw.failUpdate[1] = errBoom
	gw.failSweep = errBoom
	now := at(t, b, "2024-03-11 00:01:00")

	_, err := newTestOrchestrator(t, gw, now).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, gw.child(1).Streak)
	assert.Len(t, gw.unlocked[1], 1)

	delete(gw.failUpdate, 1)
	gw.failSweep = nil
	sum, err := newTestOrchestrator(t, gw, now).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, sum.Advanced)
	assert.Empty(t, sum.Unlocks)
	assert.Equal(t, 1, gw.child(1).Streak)
}

func TestRunUnlocksAreMonotonic(t *testing.T) {
	b := sydney(t)
	gw := newFakeGateway()
	gw.catalog = catalogAt(1, 2)
	gw.addChild(1, 1, nil)
	gw.addTask(11, 1, true)

	day := at(t, b, "2024-03-11 00:01:00")
	_, err := newTestOrchestrator(t, gw, day).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, gw.unlocked[1], 2)

	// Nothing done the next day: the streak resets, the unlocks stay.
	_, err = newTestOrchestrator(t, gw, day.Add(24*time.Hour)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, gw.child(1).Streak)
	assert.Len(t, gw.unlocked[1], 2)
}

func TestPlanWritesNothing(t *testing.T) {
	b := sydney(t)
	gw := newFakeGateway()
	gw.catalog = catalogAt(1, 3, 7, 14)
	gw.addChild(1, 4, nil)
	gw.addTask(11, 1, true)
	gw.addChild(2, 2, nil)
	gw.unlocked[1] = map[int64]time.Time{1: time.Now()}

	planned, err := newTestOrchestrator(t, gw, at(t, b, "2024-03-11 00:01:00")).Plan(context.Background())
	require.NoError(t, err)
	require.Len(t, planned, 2)

	assert.Equal(t, TransitionAdvanced, planned[0].Outcome.Transition)
	assert.Equal(t, 5, planned[0].Outcome.NextStreak)
	assert.Equal(t, []int{3}, thresholds(planned[0].Unlocks))
	assert.Equal(t, TransitionReset, planned[1].Outcome.Transition)

	assert.Zero(t, gw.streakWrites)
	assert.Zero(t, gw.unlockAttempts)
	assert.Equal(t, 1, gw.completedTasks())
}

func TestPlanLoadFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.failList = errBoom
	_, err := newTestOrchestrator(t, gw, time.Now()).Plan(context.Background())
	assert.True(t, errors.Is(err, ErrLoadFailure))
}

func TestRunTwiceSameDayKeepsCredits(t *testing.T) {
	b := sydney(t)
	gw := newFakeGateway()
	gw.addChild(1, 1, nil)
	gw.addTask(11, 1, true)
	now := at(t, b, "2024-03-11 00:01:00")

	first, err := newTestOrchestrator(t, gw, now).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, first.Advanced)

	second, err := newTestOrchestrator(t, gw, now.Add(time.Hour)).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.Advanced)
	assert.Empty(t, second.Reset)
	assert.Zero(t, second.TasksReset)
	assert.Equal(t, 2, gw.child(1).Streak)
}

func TestRunMidDayAfterCompletionCreditDoesNotAdvanceAgain(t *testing.T) {
	b := sydney(t)
	creditedAt := at(t, b, "2024-03-11 08:30:00")
	gw := newFakeGateway()
	gw.addChild(1, 4, &creditedAt)
	gw.addTask(11, 1, true)

	sum, err := newTestOrchestrator(t, gw, at(t, b, "2024-03-11 12:00:00")).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, sum.Advanced)
	assert.Empty(t, sum.Reset)
	assert.Equal(t, 4, gw.child(1).Streak)
	assert.True(t, gw.child(1).LastCompletedAt.Equal(creditedAt))
	assert.Zero(t, gw.streakWrites)
}

func TestRunResetsChildAssignedTaskAfterCredit(t *testing.T) {
	b := sydney(t)
	revoke := DefaultPolicy()
	revoke.Uncomplete = UncompleteRevoke

	for _, p := range []Policy{DefaultPolicy(), revoke} {
		t.Run(string(p.Uncomplete), func(t *testing.T) {
			gw := newFakeGateway()
			gw.addChild(1, 0, nil)
			gw.addTask(11, 1, false)

			c := NewCompleter(gw, b, p, nil)
			_, err := c.SetTaskCompleted(context.Background(), 1, 11, true, at(t, b, "2024-03-10 15:00:00"))
			require.NoError(t, err)
			require.Equal(t, 1, gw.child(1).Streak)

			// A new task is assigned later that day and never done.
			gw.addTask(12, 1, false)

			sum, err := newTestOrchestrator(t, gw, at(t, b, "2024-03-11 00:00:30"), WithPolicy(p)).Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, []int64{1}, sum.Reset)
			assert.Equal(t, 0, gw.child(1).Streak)
			assert.Nil(t, gw.child(1).LastCompletedAt)
			assert.Zero(t, gw.completedTasks())

			// A rerun after the sweep leaves the reset child alone.
			again, err := newTestOrchestrator(t, gw, at(t, b, "2024-03-11 00:10:00"), WithPolicy(p)).Run(context.Background())
			require.NoError(t, err)
			assert.Empty(t, again.Reset)
			assert.Empty(t, again.Advanced)
		})
	}
}
