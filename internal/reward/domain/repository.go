package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListRewards(ctx context.Context, db *gorm.DB) ([]Reward, error)
	ListUnlocks(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]RewardUnlock, error)
	// InsertUnlock reports false when the user already holds the reward.
	InsertUnlock(ctx context.Context, db *gorm.DB, unlock *RewardUnlock) (bool, error)
	InsertCosmetic(ctx context.Context, db *gorm.DB, cosmetic *UserCosmetic) (bool, error)
	ListCosmetics(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]UserCosmetic, error)
}
