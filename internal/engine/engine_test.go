package engine

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/habitquest/internal/catalog/domain"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	"github.com/smallbiznis/habitquest/internal/occurrence"
	profiledomain "github.com/smallbiznis/habitquest/internal/profile/domain"
	questdomain "github.com/smallbiznis/habitquest/internal/quest/domain"
	rewarddomain "github.com/smallbiznis/habitquest/internal/reward/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var daily = questdomain.DefaultSchedule()

func TestCompleteTaskOncePerDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quest(t, alice, health, 10, daily)

	res, err := h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Log.XPAwarded)
	assert.Equal(t, ledgerdomain.SourceQuest, res.Log.Source)
	assert.Equal(t, 0, res.Remaining())
	assert.Equal(t, int64(10), res.XPTotal)
	assert.Equal(t, 1, res.StreakDays)
	assert.NotNil(t, res.Unlocked)

	_, err = h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
	assert.ErrorIs(t, err, occurrence.ErrAlreadyCompleted)
	assert.Equal(t, int64(1), h.ledgerCount(t, alice))

	// The next local day opens a new window.
	h.clock.Advance(24 * time.Hour)
	_, err = h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), h.ledgerCount(t, alice))
}

func TestCompleteTaskWeeklyTarget(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quest(t, alice, health, 10, questdomain.Schedule{Period: questdomain.PeriodWeek, Interval: 1, TargetOccurrences: 3})

	for i, offset := range []int{0, 2, 4} {
		h.clock.Set(monday.AddDate(0, 0, offset))
		res, err := h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
		require.NoError(t, err)
		assert.Equal(t, 2-i, res.Remaining())
	}

	h.clock.Set(monday.AddDate(0, 0, 5))
	_, err := h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
	assert.ErrorIs(t, err, occurrence.ErrAlreadyCompleted)
	assert.Equal(t, int64(3), h.ledgerCount(t, alice))

	h.clock.Set(monday.AddDate(0, 0, 7))
	res, err := h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining())
}

func TestStreakLevelAndUnlockOverFiveDays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quest(t, alice, health, 10, daily)

	var res CompletionResult
	var err error
	for day := 0; day < 5; day++ {
		h.clock.Set(monday.AddDate(0, 0, day))
		res, err = h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
		require.NoError(t, err)
		if day < 4 {
			assert.Empty(t, res.Unlocked, "day %d", day)
		}
	}

	assert.Equal(t, 5, res.StreakDays)
	assert.Equal(t, int64(50), res.XPTotal)
	assert.Equal(t, 1, res.Level)
	assert.Equal(t, int64(50), res.XPToNext)
	assert.Equal(t, []string{"first_steps"}, rewardKeys(res.Unlocked))

	h.clock.Set(monday.AddDate(0, 0, 5))
	res, err = h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
	require.NoError(t, err)
	assert.Empty(t, res.Unlocked)
	assert.Equal(t, 6, res.StreakDays)

	var unlocks int64
	require.NoError(t, h.db.Model(&rewarddomain.RewardUnlock{}).Where("user_id = ?", alice).Count(&unlocks).Error)
	assert.Equal(t, int64(1), unlocks)

	state, err := h.engine.Progression(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(60), state.XPTotal)
	assert.Equal(t, 6, state.BestStreakDays)
}

func TestLevelUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	small := h.quest(t, alice, health, 60, daily)
	big := h.quest(t, alice, health, 60, daily)

	res, err := h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: small.ID})
	require.NoError(t, err)
	assert.False(t, res.LeveledUp)

	res, err = h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: big.ID})
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 2, res.Level)
	assert.Equal(t, int64(105), res.XPToNext)
}

func TestBalancedWeekUnlocksDependentCosmetic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.profiles.UpsertSetting(ctx, h.db, profiledomain.DomainSetting{
		UserID: alice, DomainID: health, WeeklyTargetPoints: 10, Enabled: true, UpdatedAt: monday,
	}))
	require.NoError(t, h.profiles.UpsertSetting(ctx, h.db, profiledomain.DomainSetting{
		UserID: alice, DomainID: money, WeeklyTargetPoints: 100, Enabled: false, UpdatedAt: monday,
	}))

	q := h.quest(t, alice, health, 10, daily)
	res, err := h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"balance_80", "zen_aura"}, rewardKeys(res.Unlocked))
	assert.Equal(t, "aura_zen", res.Unlocked[1].Cosmetic)

	dash, err := h.engine.Dashboard(ctx, alice)
	require.NoError(t, err)
	require.Len(t, dash.Cosmetics, 1)
	assert.Equal(t, "aura_zen", dash.Cosmetics[0].ItemKey)
	require.Len(t, dash.Badges, 1)
	assert.Equal(t, "balance_80", dash.Badges[0].Key)
}

func TestConcurrentDoubleSubmit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quest(t, alice, health, 10, daily)

	const attempts = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, occurrence.ErrAlreadyCompleted):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, rejected)
	assert.Equal(t, int64(1), h.ledgerCount(t, alice))

	state, err := h.engine.Progression(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(10), state.XPTotal)
}

func TestBackfillExtendsStreak(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quest(t, alice, health, 10, daily)

	_, err := h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
	require.NoError(t, err)

	h.clock.Set(monday.AddDate(0, 0, 2))
	res, err := h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, res.StreakDays)

	tuesday := monday.AddDate(0, 0, 1)
	res, err = h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID, OccurredAt: &tuesday})
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.SourceBackfill, res.Log.Source)
	assert.Equal(t, 3, res.StreakDays)

	// The backfilled day is now full too.
	_, err = h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID, OccurredAt: &tuesday})
	assert.ErrorIs(t, err, occurrence.ErrAlreadyCompleted)
}

func TestCompleteTaskRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quest(t, alice, health, 10, daily)

	future := monday.Add(2 * time.Hour)
	_, err := h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID, OccurredAt: &future})
	assert.ErrorIs(t, err, ErrOccurredInFuture)

	_, err = h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: bob, QuestID: q.ID})
	assert.ErrorIs(t, err, questdomain.ErrQuestNotOwned)

	_, err = h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: 424242})
	assert.ErrorIs(t, err, questdomain.ErrQuestNotFound)

	_, err = h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: 999, QuestID: q.ID})
	assert.ErrorIs(t, err, profiledomain.ErrUserNotFound)

	_, err = h.engine.CompleteTask(ctx, CompleteTaskRequest{QuestID: q.ID})
	assert.ErrorIs(t, err, ErrInvalidUser)

	inactive := false
	_, err = h.quests.Update(ctx, alice, q.ID, questdomain.UpdateQuestRequest{Active: &inactive})
	require.NoError(t, err)
	_, err = h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
	assert.ErrorIs(t, err, questdomain.ErrQuestInactive)

	assert.Zero(t, h.ledgerCount(t, alice))
}

func TestLogManual(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quest(t, alice, health, 10, daily)

	quantity := 2.5
	questID := q.ID
	res, err := h.engine.LogManual(ctx, ManualLogRequest{UserID: alice, QuestID: &questID, Quantity: &quantity, Notes: "double"})
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.SourceManual, res.Log.Source)
	assert.Equal(t, health, res.Log.DomainID)
	assert.Equal(t, int64(25), res.Log.XPAwarded)
	assert.Equal(t, int64(25), res.Log.PointsAwarded)
	assert.Equal(t, -1, res.Remaining())

	// Manual entries leave the quest's occurrence open.
	_, err = h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
	require.NoError(t, err)

	_, err = h.engine.LogManual(ctx, ManualLogRequest{UserID: alice, DomainID: money, QuestID: &questID})
	assert.ErrorIs(t, err, ErrDomainMismatch)

	_, err = h.engine.LogManual(ctx, ManualLogRequest{UserID: alice, DomainID: 999})
	assert.ErrorIs(t, err, catalogdomain.ErrDomainNotFound)

	negative := -1.0
	_, err = h.engine.LogManual(ctx, ManualLogRequest{UserID: alice, DomainID: money, Quantity: &negative})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestLogManualRejectsOversizedAwards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quest(t, alice, health, 10, daily)

	huge := int64(math.MaxInt64)
	_, err := h.engine.LogManual(ctx, ManualLogRequest{UserID: alice, DomainID: health, XP: &huge})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	_, err = h.engine.LogManual(ctx, ManualLogRequest{UserID: alice, DomainID: health, Points: &huge})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	quantity := 1e300
	questID := q.ID
	_, err = h.engine.LogManual(ctx, ManualLogRequest{UserID: alice, QuestID: &questID, Quantity: &quantity})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)
	assert.Equal(t, int64(0), h.ledgerCount(t, alice))

	// The lock was released, and the cap itself is accepted.
	limit := int64(100000)
	res, err := h.engine.LogManual(ctx, ManualLogRequest{UserID: alice, DomainID: health, XP: &limit})
	require.NoError(t, err)
	assert.Equal(t, limit, res.XPTotal)
	assert.Greater(t, res.Level, 1)
	assert.Greater(t, res.XPToNext, int64(0))
}

func TestManualSavingsUnlock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	xp := int64(5)
	points := int64(60)
	res, err := h.engine.LogManual(ctx, ManualLogRequest{UserID: alice, DomainID: money, XP: &xp, Points: &points, Unit: "dollar"})
	require.NoError(t, err)
	assert.Equal(t, []string{"saver"}, rewardKeys(res.Unlocked))
	assert.Equal(t, int64(5), res.XPTotal)
}

func TestUsersDoNotShareProgress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	qa := h.quest(t, alice, health, 10, daily)
	qb := h.quest(t, bob, health, 30, daily)

	var wg sync.WaitGroup
	for _, req := range []CompleteTaskRequest{{UserID: alice, QuestID: qa.ID}, {UserID: bob, QuestID: qb.ID}} {
		wg.Add(1)
		go func(req CompleteTaskRequest) {
			defer wg.Done()
			_, err := h.engine.CompleteTask(ctx, req)
			assert.NoError(t, err)
		}(req)
	}
	wg.Wait()

	for user, want := range map[snowflake.ID]int64{alice: 10, bob: 30} {
		state, err := h.engine.Progression(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, want, state.XPTotal)
	}
}

func TestDashboard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	q := h.quest(t, alice, health, 10, daily)

	for day := 0; day < 3; day++ {
		h.clock.Set(monday.AddDate(0, 0, day))
		_, err := h.engine.CompleteTask(ctx, CompleteTaskRequest{UserID: alice, QuestID: q.ID})
		require.NoError(t, err)
	}

	dash, err := h.engine.Dashboard(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, alice, dash.Profile.ID)
	assert.Equal(t, int64(30), dash.Progression.XPTotal)
	require.Len(t, dash.Quests, 1)
	assert.True(t, dash.Quests[0].IsCompleted)
	require.Len(t, dash.Recent, 3)
	assert.True(t, dash.Recent[0].OccurredAt.After(dash.Recent[1].OccurredAt))
	require.Len(t, dash.Weekly, 2)
	assert.Equal(t, int64(30), dash.Weekly[0].WeeklyPoints)
	require.Len(t, dash.Badges, 1)
	assert.Equal(t, "streak_3", dash.Badges[0].Key)
	assert.Empty(t, dash.Cosmetics)

	_, err = h.engine.Dashboard(ctx, 999)
	assert.ErrorIs(t, err, profiledomain.ErrUserNotFound)
}
