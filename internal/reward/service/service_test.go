package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/habitquest/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/habitquest/internal/catalog/repository"
	"github.com/smallbiznis/habitquest/internal/migration"
	"github.com/smallbiznis/habitquest/internal/reward/domain"
	"github.com/smallbiznis/habitquest/internal/reward/repository"
	"github.com/smallbiznis/habitquest/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, conn.Create(&[]catalogdomain.Domain{
		{ID: 10, Key: "health", Name: "Health", CreatedAt: now},
		{ID: 20, Key: "money", Name: "Money", OrderIndex: 1, CreatedAt: now},
	}).Error)

	// The dependent cosmetic sorts first so a single pass cannot unlock it.
	require.NoError(t, conn.Create(&[]domain.Reward{
		{ID: 1, Key: "zen_aura", Type: domain.TypeCosmetic, Name: "Zen Aura", ConditionType: "reward_dependency:balance_80", RewardData: map[string]any{"item": "aura_zen"}, CreatedAt: now},
		{ID: 2, Key: "balance_80", Type: domain.TypeTrophy, Name: "Balanced Week", ConditionType: "stats_balance", ConditionValue: "80", CreatedAt: now},
		{ID: 3, Key: "first_steps", Type: domain.TypeBadge, Name: "First Steps", ConditionType: "tasks_completed", ConditionValue: "5", CreatedAt: now},
		{ID: 4, Key: "moonlit", Type: domain.TypeBadge, Name: "Moonlit", ConditionType: "moon_phase", ConditionValue: "1", CreatedAt: now},
	}).Error)

	svc := New(Params{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repository.Provide(),
		CatalogRepo: catalogrepo.Provide(),
	})
	return svc, conn
}

func unlockedKeys(items []domain.Unlocked) []string {
	out := make([]string, 0, len(items))
	for _, u := range items {
		out = append(out, u.Reward.Key)
	}
	return out
}

func TestEvaluateUnlocksOnce(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	got, err := svc.Evaluate(ctx, nil, 7, domain.Facts{LogCount: 4}, at)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = svc.Evaluate(ctx, nil, 7, domain.Facts{LogCount: 5}, at)
	require.NoError(t, err)
	assert.Equal(t, []string{"first_steps"}, unlockedKeys(got))
	assert.Equal(t, domain.ConditionTasksCompleted, got[0].Condition)

	got, err = svc.Evaluate(ctx, nil, 7, domain.Facts{LogCount: 6}, at.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)

	statuses, err := svc.ListForUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, statuses, 4)
	for _, s := range statuses {
		if s.Reward.Key == "first_steps" {
			require.NotNil(t, s.UnlockedAt)
			assert.True(t, s.Unlocked)
			assert.True(t, at.Equal(*s.UnlockedAt))
			continue
		}
		assert.False(t, s.Unlocked, s.Reward.Key)
	}
}

func TestEvaluateDependencyInSamePass(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	facts := domain.Facts{Weekly: []domain.WeeklyRatio{
		{DomainID: 10, Enabled: true, Target: 100, RawRatio: 0.9},
		{DomainID: 20, Enabled: true, Target: 50, RawRatio: 0.8},
	}}
	got, err := svc.Evaluate(ctx, nil, 7, facts, at)
	require.NoError(t, err)
	assert.Equal(t, []string{"balance_80", "zen_aura"}, unlockedKeys(got))
	assert.Equal(t, "aura_zen", got[1].Cosmetic)

	cosmetics, err := svc.ListCosmetics(ctx, 7)
	require.NoError(t, err)
	require.Len(t, cosmetics, 1)
	assert.Equal(t, "aura_zen", cosmetics[0].ItemKey)
	assert.Equal(t, snowflake.ID(1), cosmetics[0].RewardID)
}

func TestEvaluateIsPerUser(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	for _, user := range []snowflake.ID{7, 8} {
		got, err := svc.Evaluate(ctx, nil, user, domain.Facts{LogCount: 5}, at)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}

	_, err := svc.Evaluate(ctx, nil, 0, domain.Facts{}, at)
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestReloadPicksUpNewRewards(t *testing.T) {
	svc, conn := setupService(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	_, err := svc.Evaluate(ctx, nil, 7, domain.Facts{}, at)
	require.NoError(t, err)

	require.NoError(t, conn.Create(&domain.Reward{
		ID: 5, Key: "level_two", Type: domain.TypeBadge, Name: "Level Two",
		ConditionType: "level_reached", ConditionValue: "2", CreatedAt: at,
	}).Error)

	got, err := svc.Evaluate(ctx, nil, 7, domain.Facts{Level: 2}, at)
	require.NoError(t, err)
	assert.Empty(t, got)

	svc.Reload()
	got, err = svc.Evaluate(ctx, nil, 7, domain.Facts{Level: 2}, at)
	require.NoError(t, err)
	assert.Equal(t, []string{"level_two"}, unlockedKeys(got))
}

// pausingRepo holds the first ListRewards call after it has read its rows.
type pausingRepo struct {
	domain.Repository
	paused atomic.Bool
	loaded chan struct{}
	resume chan struct{}
}

func (p *pausingRepo) ListRewards(ctx context.Context, db *gorm.DB) ([]domain.Reward, error) {
	rows, err := p.Repository.ListRewards(ctx, db)
	if p.paused.CompareAndSwap(false, true) {
		close(p.loaded)
		<-p.resume
	}
	return rows, err
}

func TestReloadDuringCompileIsNotLost(t *testing.T) {
	_, conn := setupService(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	repo := &pausingRepo{Repository: repository.Provide(), loaded: make(chan struct{}), resume: make(chan struct{})}
	svc := New(Params{DB: conn, Log: zap.NewNop(), GenID: node, Repo: repo, CatalogRepo: catalogrepo.Provide()})

	ctx := context.Background()
	at := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Evaluate(ctx, nil, 7, domain.Facts{LogCount: 1}, at)
		done <- err
	}()
	<-repo.loaded

	require.NoError(t, conn.Create(&domain.Reward{
		ID: 5, Key: "first_log", Type: domain.TypeBadge, Name: "First Log",
		ConditionType: "tasks_completed", ConditionValue: "1", CreatedAt: at,
	}).Error)
	svc.Reload()

	close(repo.resume)
	require.NoError(t, <-done)

	got, err := svc.Evaluate(ctx, nil, 8, domain.Facts{LogCount: 1}, at)
	require.NoError(t, err)
	assert.Equal(t, []string{"first_log"}, unlockedKeys(got))
}
