package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/habitquest/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/habitquest/internal/catalog/repository"
	"github.com/smallbiznis/habitquest/internal/clock"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/habitquest/internal/ledger/repository"
	"github.com/smallbiznis/habitquest/internal/migration"
	profiledomain "github.com/smallbiznis/habitquest/internal/profile/domain"
	profilerepo "github.com/smallbiznis/habitquest/internal/profile/repository"
	"github.com/smallbiznis/habitquest/internal/snapshot/domain"
	"github.com/smallbiznis/habitquest/internal/snapshot/repository"
	"github.com/smallbiznis/habitquest/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	alice  snowflake.ID = 100
	bob    snowflake.ID = 200
	health snowflake.ID = 10
	money  snowflake.ID = 20
)

// Wednesday 2026-10-14 09:00 UTC is 05:00 in New York.
var now = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc     domain.Service
	db      *gorm.DB
	repo    domain.Repository
	profile profiledomain.Profile
	nextID  snowflake.ID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, conn.Create(&[]catalogdomain.Domain{
		{ID: health, Key: "health", Name: "Health", CreatedAt: now},
		{ID: money, Key: "money", Name: "Money", OrderIndex: 1, CreatedAt: now},
	}).Error)

	profiles := profilerepo.Provide()
	profile := profiledomain.Profile{ID: alice, Timezone: "America/New_York", FirstDayOfWeek: 1, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, profiles.Insert(ctx, conn, &profile))
	require.NoError(t, profiles.Insert(ctx, conn, &profiledomain.Profile{ID: bob, Timezone: "UTC", FirstDayOfWeek: 0, CreatedAt: now, UpdatedAt: now}))

	repo := repository.Provide()
	svc := New(Params{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewFakeClock(now),
		Repo:        repo,
		LedgerRepo:  ledgerrepo.Provide(),
		ProfileRepo: profiles,
		CatalogRepo: catalogrepo.Provide(),
	})
	return &fixture{svc: svc, db: conn, repo: repo, profile: profile, nextID: 1}
}

// log inserts a ledger row, folding it into snapshots unless skip is set.
func (f *fixture) log(t *testing.T, profile profiledomain.Profile, domainID snowflake.ID, at time.Time, points int64, skip bool) {
	t.Helper()
	entry := ledgerdomain.CompletionLog{
		ID:            f.nextID,
		UserID:        profile.ID,
		DomainID:      domainID,
		OccurredAt:    at.UTC(),
		XPAwarded:     points * 2,
		PointsAwarded: points,
		Source:        ledgerdomain.SourceManual,
		CreatedAt:     now,
	}
	f.nextID++
	require.NoError(t, f.db.Create(&entry).Error)
	if !skip {
		require.NoError(t, f.svc.OnAppend(context.Background(), nil, entry, profile))
	}
}

func TestOnAppendBucketsByLocalCalendar(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// 02:00 UTC Wednesday is still Tuesday evening in New York.
	f.log(t, f.profile, health, time.Date(2026, 10, 14, 2, 0, 0, 0, time.UTC), 30, false)
	f.log(t, f.profile, health, time.Date(2026, 10, 14, 3, 0, 0, 0, time.UTC), 20, false)

	rows, err := f.repo.ListForUser(ctx, f.db, alice)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	day, week := rows[0], rows[1]
	assert.Equal(t, domain.PeriodDay, day.Period)
	assert.Equal(t, "2026-10-13", day.PeriodKey)
	assert.Equal(t, int64(50), day.PointsTotal)
	assert.Equal(t, int64(100), day.XPTotal)
	assert.Equal(t, int64(2), day.LogCount)
	assert.True(t, time.Date(2026, 10, 13, 4, 0, 0, 0, time.UTC).Equal(day.PeriodStart))

	assert.Equal(t, domain.PeriodWeek, week.Period)
	assert.Equal(t, "2026-10-12", week.PeriodKey)
	assert.Equal(t, int64(50), week.PointsTotal)
}

func TestWeekFollowsFirstDayOfWeek(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bobProfile := profiledomain.Profile{ID: bob, Timezone: "UTC", FirstDayOfWeek: 0}

	f.log(t, bobProfile, health, now, 10, false)

	rows, err := f.repo.ListForPeriod(ctx, f.db, bob, domain.PeriodWeek, "2026-10-11")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(10), rows[0].PointsTotal)
}

func TestWeeklyStats(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.log(t, f.profile, health, now, 80, false)
	f.log(t, f.profile, money, now, 150, false)
	// Last week does not count.
	f.log(t, f.profile, health, now.AddDate(0, 0, -7), 500, false)

	stats, err := f.svc.WeeklyStats(ctx, nil, f.profile, now)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "health", stats[0].DomainKey)
	assert.Equal(t, int64(80), stats[0].WeeklyPoints)
	assert.Equal(t, int64(100), stats[0].WeeklyTarget)
	assert.InDelta(t, 0.8, stats[0].RawRatio, 1e-9)
	assert.InDelta(t, 0.8, stats[0].ProgressRatio, 1e-9)
	assert.InDelta(t, 1.5, stats[1].RawRatio, 1e-9)
	assert.InDelta(t, 1.0, stats[1].ProgressRatio, 1e-9)

	// Disabled domains with data move to the end without a target.
	require.NoError(t, profilerepo.Provide().UpsertSetting(ctx, f.db, profiledomain.DomainSetting{
		UserID: alice, DomainID: health, WeeklyTargetPoints: 100, Enabled: false, UpdatedAt: now,
	}))
	stats, err = f.svc.WeeklyStats(ctx, nil, f.profile, now)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "money", stats[0].DomainKey)
	assert.Equal(t, "health", stats[1].DomainKey)
	assert.False(t, stats[1].Enabled)
	assert.Zero(t, stats[1].WeeklyTarget)
	assert.Zero(t, stats[1].RawRatio)
}

func TestVerifyAndRebuildReconcileBackfill(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.log(t, f.profile, health, now, 10, false)
	f.log(t, f.profile, money, now.AddDate(0, 0, -1), 5, false)

	drifts, err := f.svc.Verify(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	// A backfilled row that skipped the snapshot path shows up as drift.
	f.log(t, f.profile, health, now.AddDate(0, 0, -10), 7, true)
	drifts, err = f.svc.Verify(ctx, alice)
	require.NoError(t, err)
	require.Len(t, drifts, 2)
	for _, d := range drifts {
		assert.Equal(t, health, d.DomainID)
		assert.Equal(t, int64(7), d.Expected.PointsTotal)
		assert.Zero(t, d.Stored.LogCount)
	}

	require.NoError(t, f.svc.Rebuild(ctx, nil))
	drifts, err = f.svc.Verify(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	rows, err := f.repo.ListForUser(ctx, f.db, alice)
	require.NoError(t, err)
	assert.Len(t, rows, 6)
}

func TestRebuildRejectsUnknownUser(t *testing.T) {
	f := setup(t)
	unknown := snowflake.ID(999)
	assert.ErrorIs(t, f.svc.Rebuild(context.Background(), &unknown), profiledomain.ErrUserNotFound)

	zero := snowflake.ID(0)
	assert.ErrorIs(t, f.svc.Rebuild(context.Background(), &zero), domain.ErrInvalidUser)
}

func TestRebuildQueue(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.log(t, f.profile, health, now, 10, true)

	userID := alice
	req, err := f.svc.EnqueueRebuild(ctx, &userID)
	require.NoError(t, err)
	assert.Equal(t, domain.RebuildStatusPending, req.Status)

	require.NoError(t, f.svc.ProcessRebuildRequests(ctx, 10))

	done, err := f.svc.GetRebuild(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RebuildStatusCompleted, done.Status)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.Error)

	drifts, err := f.svc.Verify(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	// Already processed requests are not picked up again.
	require.NoError(t, f.svc.ProcessRebuildRequests(ctx, 10))

	unknown := snowflake.ID(999)
	_, err = f.svc.EnqueueRebuild(ctx, &unknown)
	assert.ErrorIs(t, err, profiledomain.ErrUserNotFound)

	_, err = f.svc.GetRebuild(ctx, 12345)
	assert.ErrorIs(t, err, domain.ErrRebuildNotFound)
}

func TestFailedRebuildIsRecorded(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// A request for a user deleted after enqueue fails at processing time.
	ghost := snowflake.ID(555)
	req := domain.RebuildRequest{ID: 42, UserID: &ghost, Status: domain.RebuildStatusPending, CreatedAt: now}
	require.NoError(t, f.repo.InsertRebuildRequest(ctx, f.db, &req))

	err := f.svc.ProcessRebuildRequests(ctx, 10)
	assert.ErrorIs(t, err, profiledomain.ErrUserNotFound)

	failed, err := f.svc.GetRebuild(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.RebuildStatusFailed, failed.Status)
	assert.Equal(t, "user_not_found", failed.Error)
}
