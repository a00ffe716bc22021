package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Profile is the minimal per-user record the progression engine depends on.
type Profile struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	DisplayName    string       `gorm:"type:text;not null;default:''" json:"display_name"`
	Timezone       string       `gorm:"type:text;not null;default:'UTC'" json:"timezone"`
	FirstDayOfWeek int          `gorm:"not null" json:"first_day_of_week"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// WeekStart returns the configured first day of week, defaulting to Monday on bad data.
func (p Profile) WeekStart() time.Weekday {
	if p.FirstDayOfWeek < 0 || p.FirstDayOfWeek > 6 {
		return time.Monday
	}
	return time.Weekday(p.FirstDayOfWeek)
}

// DomainSetting holds the weekly target for one domain of one user.
type DomainSetting struct {
	UserID             snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	DomainID           snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"domain_id"`
	WeeklyTargetPoints int64        `gorm:"not null" json:"weekly_target_points"`
	Enabled            bool         `gorm:"column:is_enabled;not null" json:"is_enabled"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (DomainSetting) TableName() string { return "domain_settings" }

// EffectiveSetting is a domain joined with the user's setting, or the defaults when none is stored.
type EffectiveSetting struct {
	DomainID           snowflake.ID `json:"domain_id"`
	DomainKey          string       `json:"domain_key"`
	DomainName         string       `json:"domain_name"`
	OrderIndex         int          `json:"order_index"`
	WeeklyTargetPoints int64        `json:"weekly_target_points"`
	Enabled            bool         `json:"is_enabled"`
}
