package engine

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
	ledgerservice "github.com/smallbiznis/habitquest/internal/ledger/service"
	"github.com/smallbiznis/habitquest/internal/lock"
	"github.com/smallbiznis/habitquest/internal/migration"
	"github.com/smallbiznis/habitquest/internal/occurrence"
	profiledomain "github.com/smallbiznis/habitquest/internal/profile/domain"
	profilerepo "github.com/smallbiznis/habitquest/internal/profile/repository"
	"github.com/smallbiznis/habitquest/internal/progression"
	questdomain "github.com/smallbiznis/habitquest/internal/quest/domain"
	questrepo "github.com/smallbiznis/habitquest/internal/quest/repository"
	questservice "github.com/smallbiznis/habitquest/internal/quest/service"
	rewarddomain "github.com/smallbiznis/habitquest/internal/reward/domain"
	rewardrepo "github.com/smallbiznis/habitquest/internal/reward/repository"
	rewardservice "github.com/smallbiznis/habitquest/internal/reward/service"
	snapshotrepo "github.com/smallbiznis/habitquest/internal/snapshot/repository"
	snapshotservice "github.com/smallbiznis/habitquest/internal/snapshot/service"
	"github.com/smallbiznis/habitquest/pkg/db"
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

// Monday 2026-10-12 08:00 UTC.
var monday = time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)

type harness struct {
	engine   *Engine
	db       *gorm.DB
	clock    *clock.FakeClock
	quests   questdomain.Service
	profiles profiledomain.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, conn.Create(&[]catalogdomain.Domain{
		{ID: health, Key: "health", Name: "Health", CreatedAt: monday},
		{ID: money, Key: "money", Name: "Money", OrderIndex: 1, CreatedAt: monday},
	}).Error)
	require.NoError(t, conn.Create(&[]rewarddomain.Reward{
		{ID: 1, Key: "first_steps", Type: rewarddomain.TypeBadge, Name: "First Steps", ConditionType: "tasks_completed", ConditionValue: "5", CreatedAt: monday},
		{ID: 2, Key: "balance_80", Type: rewarddomain.TypeTrophy, Name: "Balanced Week", ConditionType: "stats_balance", ConditionValue: "80", CreatedAt: monday},
		{ID: 3, Key: "zen_aura", Type: rewarddomain.TypeCosmetic, Name: "Zen Aura", ConditionType: "reward_dependency:balance_80", RewardData: map[string]any{"item": "aura_zen"}, CreatedAt: monday},
		{ID: 4, Key: "saver", Type: rewarddomain.TypeBadge, Name: "Saver", ConditionType: "finance_savings_total", ConditionValue: "50", CreatedAt: monday},
	}).Error)

	profiles := profilerepo.Provide()
	for _, id := range []snowflake.ID{alice, bob} {
		require.NoError(t, profiles.Insert(ctx, conn, &profiledomain.Profile{
			ID: id, Timezone: "UTC", FirstDayOfWeek: 1, CreatedAt: monday, UpdatedAt: monday,
		}))
	}

	fake := clock.NewFakeClock(monday)
	log := zap.NewNop()
	ledgerRepo := ledgerrepo.Provide()
	catalogRepo := catalogrepo.Provide()
	questRepo := questrepo.Provide()
	tracker := occurrence.NewTracker(ledgerRepo)

	calculator, err := progression.NewCalculator(progression.Params{Log: log, Repo: ledgerRepo})
	require.NoError(t, err)

	quests := questservice.New(questservice.Params{
		DB: conn, Log: log, GenID: node, Clock: fake,
		Repo: questRepo, CatalogRepo: catalogRepo, ProfileRepo: profiles, Tracker: tracker,
	})

	engine := New(Params{
		DB:          conn,
		Log:         log,
		Clock:       fake,
		Locker:      lock.NewLocal(),
		ProfileRepo: profiles,
		QuestRepo:   questRepo,
		QuestSvc:    quests,
		CatalogRepo: catalogRepo,
		LedgerSvc: ledgerservice.New(ledgerservice.Params{
			DB: conn, Log: log, GenID: node, Clock: fake, Repo: ledgerRepo,
		}),
		Tracker:    tracker,
		Calculator: calculator,
		SnapshotSvc: snapshotservice.New(snapshotservice.Params{
			DB: conn, Log: log, GenID: node, Clock: fake,
			Repo: snapshotrepo.Provide(), LedgerRepo: ledgerRepo, ProfileRepo: profiles, CatalogRepo: catalogRepo,
		}),
		RewardSvc: rewardservice.New(rewardservice.Params{
			DB: conn, Log: log, GenID: node, Repo: rewardrepo.Provide(), CatalogRepo: catalogRepo,
		}),
	})

	return &harness{engine: engine, db: conn, clock: fake, quests: quests, profiles: profiles}
}

func (h *harness) quest(t *testing.T, userID, domainID snowflake.ID, xp int64, schedule questdomain.Schedule) questdomain.Quest {
	t.Helper()
	q, err := h.quests.Create(context.Background(), userID, questdomain.CreateQuestRequest{
		Title: "quest", DomainID: domainID, XP: xp, Schedule: &schedule,
	})
	require.NoError(t, err)
	return q
}

func (h *harness) ledgerCount(t *testing.T, userID snowflake.ID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&ledgerdomain.CompletionLog{}).Where("user_id = ?", userID).Count(&count).Error)
	return count
}

func rewardKeys(items []rewarddomain.Unlocked) []string {
	out := make([]string, 0, len(items))
	for _, u := range items {
		out = append(out, u.Reward.Key)
	}
	return out
}
