package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/habitquest/internal/profile/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, profile *domain.Profile) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO profiles (id, display_name, timezone, first_day_of_week, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		profile.ID,
		profile.DisplayName,
		profile.Timezone,
		profile.FirstDayOfWeek,
		profile.CreatedAt,
		profile.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, profile *domain.Profile) error {
	return db.WithContext(ctx).Exec(
		`UPDATE profiles
		 SET display_name = ?, timezone = ?, first_day_of_week = ?, updated_at = ?
		 WHERE id = ?`,
		profile.DisplayName,
		profile.Timezone,
		profile.FirstDayOfWeek,
		profile.UpdatedAt,
		profile.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, nil
	}
	return &profile, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, nil
	}
	return &profile, nil
}

func (r *repo) ListSettings(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.DomainSetting, error) {
	var items []domain.DomainSetting
	if err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("domain_id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertSetting(ctx context.Context, db *gorm.DB, setting domain.DomainSetting) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "domain_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"weekly_target_points", "is_enabled", "updated_at"}),
	}).Create(&setting).Error
}

func (r *repo) InsertSettingsIfMissing(ctx context.Context, db *gorm.DB, settings []domain.DomainSetting) error {
	if len(settings) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&settings).Error
}
