package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/habitquest/internal/reward/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListRewards(ctx context.Context, db *gorm.DB) ([]domain.Reward, error) {
	var rewards []domain.Reward
	if err := db.WithContext(ctx).Order("id ASC").Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

func (r *repo) ListUnlocks(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.RewardUnlock, error) {
	var unlocks []domain.RewardUnlock
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("unlocked_at ASC, id ASC").
		Find(&unlocks).Error
	if err != nil {
		return nil, err
	}
	return unlocks, nil
}

func (r *repo) InsertUnlock(ctx context.Context, db *gorm.DB, unlock *domain.RewardUnlock) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "reward_id"}},
			DoNothing: true,
		}).
		Create(unlock)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertCosmetic(ctx context.Context, db *gorm.DB, cosmetic *domain.UserCosmetic) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_key"}},
			DoNothing: true,
		}).
		Create(cosmetic)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListCosmetics(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.UserCosmetic, error) {
	var items []domain.UserCosmetic
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("acquired_at ASC, item_key ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
