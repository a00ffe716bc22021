package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeBadge    Type = "badge"
	TypeTrophy   Type = "trophy"
	TypeCosmetic Type = "cosmetic"
)

// Reward is an immutable catalog entry.
type Reward struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	Key            string            `gorm:"type:varchar(128);not null;uniqueIndex:ux_rewards_key" json:"key"`
	Type           Type              `gorm:"type:varchar(16);not null" json:"type"`
	Name           string            `gorm:"type:text;not null" json:"name"`
	Description    string            `gorm:"type:text;not null" json:"description"`
	ConditionType  string            `gorm:"type:varchar(128);not null" json:"condition_type"`
	ConditionValue string            `gorm:"type:text;not null" json:"condition_value"`
	RewardData     datatypes.JSONMap `json:"reward_data,omitempty"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
}

func (Reward) TableName() string { return "rewards" }

type RewardUnlock struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID     snowflake.ID `gorm:"not null;uniqueIndex:ux_reward_unlocks_user_reward,priority:1" json:"user_id"`
	RewardID   snowflake.ID `gorm:"not null;uniqueIndex:ux_reward_unlocks_user_reward,priority:2" json:"reward_id"`
	UnlockedAt time.Time    `gorm:"not null" json:"unlocked_at"`
}

func (RewardUnlock) TableName() string { return "reward_unlocks" }

type UserCosmetic struct {
	UserID     snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ItemKey    string       `gorm:"primaryKey;type:varchar(128)" json:"item_key"`
	RewardID   snowflake.ID `gorm:"not null" json:"reward_id"`
	AcquiredAt time.Time    `gorm:"not null" json:"acquired_at"`
}

func (UserCosmetic) TableName() string { return "user_cosmetics" }

// CosmeticItem returns the item a cosmetic reward grants, if it names one.
func (r Reward) CosmeticItem() string {
	if r.Type != TypeCosmetic || r.RewardData == nil {
		return ""
	}
	for _, field := range []string{"item", "item_key"} {
		if v, ok := r.RewardData[field].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Unlocked is a reward newly unlocked by one evaluation.
type Unlocked struct {
	Reward     Reward        `json:"reward"`
	Condition  ConditionKind `json:"condition"`
	UnlockedAt time.Time     `json:"unlocked_at"`
	Cosmetic   string        `json:"cosmetic_item,omitempty"`
}

// RewardStatus is a catalog entry as seen by one user.
type RewardStatus struct {
	Reward
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}
