package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/habitquest/internal/catalog/domain"
	rewarddomain "github.com/smallbiznis/habitquest/internal/reward/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type domainSeed struct {
	Key   string
	Name  string
	Icon  string
	Order int
}

type templateSeed struct {
	Domain string
	Title  string
	XP     int64
	Points int64
	Unit   string
}

type rewardSeed struct {
	Key            string
	Type           rewarddomain.Type
	Name           string
	Description    string
	ConditionType  string
	ConditionValue string
	Data           map[string]any
}

var domains = []domainSeed{
	{Key: "health", Name: "Health", Icon: "heart", Order: 0},
	{Key: "work", Name: "Work", Icon: "briefcase", Order: 1},
	{Key: "money", Name: "Money", Icon: "coin", Order: 2},
	{Key: "mind", Name: "Mind", Icon: "brain", Order: 3},
	{Key: "social", Name: "Social", Icon: "people", Order: 4},
	{Key: "home", Name: "Home", Icon: "house", Order: 5},
}

var templates = []templateSeed{
	{Domain: "health", Title: "Drink water", XP: 5, Points: 5, Unit: "glass"},
	{Domain: "health", Title: "Workout", XP: 20, Points: 20, Unit: "minute"},
	{Domain: "health", Title: "Sleep before midnight", XP: 10, Points: 10},
	{Domain: "work", Title: "Deep work block", XP: 25, Points: 25, Unit: "block"},
	{Domain: "work", Title: "Clear inbox", XP: 10, Points: 10},
	{Domain: "money", Title: "Save money", XP: 1, Points: 1, Unit: "dollar"},
	{Domain: "money", Title: "Review budget", XP: 15, Points: 15},
	{Domain: "mind", Title: "Read", XP: 10, Points: 10, Unit: "page"},
	{Domain: "mind", Title: "Meditate", XP: 10, Points: 10, Unit: "minute"},
	{Domain: "social", Title: "Call a friend", XP: 15, Points: 15},
	{Domain: "home", Title: "Tidy up", XP: 10, Points: 10},
}

var rewards = []rewardSeed{
	{Key: "first_steps", Type: rewarddomain.TypeBadge, Name: "First Steps", Description: "Complete 5 tasks.", ConditionType: "tasks_completed", ConditionValue: "5"},
	{Key: "centurion", Type: rewarddomain.TypeTrophy, Name: "Centurion", Description: "Complete 100 tasks.", ConditionType: "tasks_completed", ConditionValue: "100"},
	{Key: "fit_ten", Type: rewarddomain.TypeBadge, Name: "Fit Ten", Description: "Complete 10 health tasks.", ConditionType: "tasks_completed_category:health", ConditionValue: "10"},
	{Key: "week_streak", Type: rewarddomain.TypeBadge, Name: "Week Streak", Description: "Keep a 7 day streak.", ConditionType: "streak_days", ConditionValue: "7"},
	{Key: "saver", Type: rewarddomain.TypeBadge, Name: "Saver", Description: "Save 500 in total.", ConditionType: "finance_savings_total", ConditionValue: "500"},
	{Key: "level_five", Type: rewarddomain.TypeTrophy, Name: "Level Five", Description: "Reach level 5.", ConditionType: "level_reached", ConditionValue: "5"},
	{Key: "balance_80", Type: rewarddomain.TypeTrophy, Name: "Balanced Week", Description: "Reach 80% of every weekly target.", ConditionType: "stats_balance", ConditionValue: "80"},
	{Key: "zen_aura", Type: rewarddomain.TypeCosmetic, Name: "Zen Aura", Description: "Unlocked by a balanced week.", ConditionType: "reward_dependency:balance_80", ConditionValue: "", Data: map[string]any{"item": "aura_zen"}},
	{Key: "golden_frame", Type: rewarddomain.TypeCosmetic, Name: "Golden Frame", Description: "Keep a 30 day streak.", ConditionType: "streak_days", ConditionValue: "30", Data: map[string]any{"item": "frame_gold"}},
}

// EnsureCatalog seeds domains, task templates and rewards. Safe to run on every start.
func EnsureCatalog(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := ensureDomainsTx(ctx, tx, node)
		if err != nil {
			return err
		}
		if err := ensureTemplatesTx(ctx, tx, node, ids); err != nil {
			return err
		}
		return ensureRewardsTx(ctx, tx, node)
	})
}

func ensureDomainsTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (map[string]snowflake.ID, error) {
	now := time.Now().UTC()
	rows := make([]catalogdomain.Domain, 0, len(domains))
	for _, d := range domains {
		rows = append(rows, catalogdomain.Domain{
			ID:         node.Generate(),
			Key:        d.Key,
			Name:       d.Name,
			Icon:       d.Icon,
			OrderIndex: d.Order,
			CreatedAt:  now,
		})
	}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
		Create(&rows).Error; err != nil {
		return nil, err
	}

	var existing []catalogdomain.Domain
	if err := tx.WithContext(ctx).Find(&existing).Error; err != nil {
		return nil, err
	}
	ids := make(map[string]snowflake.ID, len(existing))
	for _, d := range existing {
		ids[d.Key] = d.ID
	}
	return ids, nil
}

func ensureTemplatesTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, domainIDs map[string]snowflake.ID) error {
	now := time.Now().UTC()
	for _, t := range templates {
		domainID, ok := domainIDs[t.Domain]
		if !ok {
			return errors.New("seed template references unknown domain " + t.Domain)
		}

		var count int64
		if err := tx.WithContext(ctx).
			Model(&catalogdomain.TaskTemplate{}).
			Where("domain_id = ? AND title = ?", domainID, t.Title).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		row := catalogdomain.TaskTemplate{
			ID:            node.Generate(),
			Title:         t.Title,
			DomainID:      domainID,
			DefaultXP:     t.XP,
			DefaultPoints: t.Points,
			Unit:          t.Unit,
			Active:        true,
			CreatedAt:     now,
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureRewardsTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	now := time.Now().UTC()
	rows := make([]rewarddomain.Reward, 0, len(rewards))
	for _, r := range rewards {
		row := rewarddomain.Reward{
			ID:             node.Generate(),
			Key:            r.Key,
			Type:           r.Type,
			Name:           r.Name,
			Description:    r.Description,
			ConditionType:  r.ConditionType,
			ConditionValue: r.ConditionValue,
			CreatedAt:      now,
		}
		if r.Data != nil {
			row.RewardData = datatypes.JSONMap(r.Data)
		}
		rows = append(rows, row)
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
		Create(&rows).Error
}
