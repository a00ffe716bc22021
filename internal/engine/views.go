package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	profiledomain "github.com/smallbiznis/habitquest/internal/profile/domain"
	"github.com/smallbiznis/habitquest/internal/progression"
	questdomain "github.com/smallbiznis/habitquest/internal/quest/domain"
	rewarddomain "github.com/smallbiznis/habitquest/internal/reward/domain"
	"github.com/smallbiznis/habitquest/pkg/db/pagination"
)

// streakBadgeDays are the streak lengths shown as badges while the streak is alive.
var streakBadgeDays = []int{3, 7, 14, 30, 100}

// Progression reads committed state; it may lag an in-flight completion.
func (e *Engine) Progression(ctx context.Context, userID snowflake.ID) (progression.State, error) {
	profile, err := e.profile(ctx, userID)
	if err != nil {
		return progression.State{}, err
	}
	return e.calculator.Current(ctx, e.db, userID, e.clock.Now(), profile.Location(time.UTC))
}

func (e *Engine) Dashboard(ctx context.Context, userID snowflake.ID) (Dashboard, error) {
	ctx, span := e.tracer.Start(ctx, "engine.dashboard")
	defer span.End()

	profile, err := e.profile(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	now := e.clock.Now()

	state, err := e.calculator.Current(ctx, e.db, userID, now, profile.Location(time.UTC))
	if err != nil {
		return Dashboard{}, err
	}
	weekly, err := e.snapshotSvc.WeeklyStats(ctx, e.db, *profile, now)
	if err != nil {
		return Dashboard{}, err
	}
	quests, err := e.questSvc.List(ctx, userID, questdomain.ListQuestRequest{GlobalOnly: true, At: now})
	if err != nil {
		return Dashboard{}, err
	}
	recent, err := e.ledgerSvc.History(ctx, ledgerdomain.HistoryRequest{
		UserID:     userID,
		Pagination: pagination.Pagination{PageSize: e.progression.Get().RecentHistoryLimit},
	})
	if err != nil {
		return Dashboard{}, err
	}
	rewards, err := e.rewardSvc.ListForUser(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	cosmetics, err := e.rewardSvc.ListCosmetics(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	if cosmetics == nil {
		cosmetics = []rewarddomain.UserCosmetic{}
	}

	return Dashboard{
		Profile:     *profile,
		Progression: state,
		Weekly:      weekly,
		Quests:      quests,
		Recent:      recent.Logs,
		Badges:      badges(rewards, state),
		Cosmetics:   cosmetics,
	}, nil
}

// badges lists unlocked badges and trophies, then the highest live streak milestone.
func badges(rewards []rewarddomain.RewardStatus, state progression.State) []Badge {
	out := make([]Badge, 0, len(rewards)+1)
	for _, r := range rewards {
		if !r.Unlocked || r.Type == rewarddomain.TypeCosmetic {
			continue
		}
		out = append(out, Badge{
			Key:        r.Key,
			Name:       r.Name,
			Kind:       string(r.Type),
			UnlockedAt: r.UnlockedAt,
		})
	}

	milestone := 0
	for _, days := range streakBadgeDays {
		if state.StreakDays >= days {
			milestone = days
		}
	}
	if milestone > 0 {
		out = append(out, Badge{
			Key:   fmt.Sprintf("streak_%d", milestone),
			Name:  fmt.Sprintf("%d-day streak", milestone),
			Kind:  "streak",
			Value: int64(state.StreakDays),
		})
	}
	return out
}

func (e *Engine) profile(ctx context.Context, userID snowflake.ID) (*profiledomain.Profile, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	profile, err := e.profileRepo.FindByID(ctx, e.db, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, profiledomain.ErrUserNotFound
	}
	return profile, nil
}
