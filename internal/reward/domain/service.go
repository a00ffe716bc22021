package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Evaluate unlocks every reward satisfied by facts using tx and returns only
	// the rewards unlocked by this call.
	Evaluate(ctx context.Context, tx *gorm.DB, userID snowflake.ID, facts Facts, at time.Time) ([]Unlocked, error)
	ListForUser(ctx context.Context, userID snowflake.ID) ([]RewardStatus, error)
	ListCosmetics(ctx context.Context, userID snowflake.ID) ([]UserCosmetic, error)
	// Reload drops the compiled catalog; the next evaluation compiles it again.
	Reload()
}

var ErrInvalidUser = errors.New("invalid_user")
