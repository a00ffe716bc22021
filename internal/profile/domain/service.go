package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateProfileRequest struct {
	DisplayName    string `json:"display_name"`
	Timezone       string `json:"timezone"`
	FirstDayOfWeek *int   `json:"first_day_of_week"`
}

type UpdateProfileRequest struct {
	DisplayName    *string `json:"display_name"`
	Timezone       *string `json:"timezone"`
	FirstDayOfWeek *int    `json:"first_day_of_week"`
}

type UpdateDomainSettingRequest struct {
	DomainID           snowflake.ID `json:"domain_id"`
	WeeklyTargetPoints *int64       `json:"weekly_target_points"`
	Enabled            *bool        `json:"is_enabled"`
}

type Service interface {
	Create(ctx context.Context, req CreateProfileRequest) (Profile, error)
	Get(ctx context.Context, id snowflake.ID) (Profile, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateProfileRequest) (Profile, error)
	ListDomainSettings(ctx context.Context, userID snowflake.ID) ([]EffectiveSetting, error)
	UpdateDomainSettings(ctx context.Context, userID snowflake.ID, reqs []UpdateDomainSettingRequest) ([]EffectiveSetting, error)
}

var (
	ErrUserNotFound        = errors.New("user_not_found")
	ErrInvalidTimezone     = errors.New("invalid_timezone")
	ErrInvalidFirstDay     = errors.New("invalid_first_day_of_week")
	ErrInvalidWeeklyTarget = errors.New("invalid_weekly_target")
	ErrInvalidDomain       = errors.New("invalid_domain")
)
