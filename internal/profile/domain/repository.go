package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, profile *Profile) error
	Update(ctx context.Context, db *gorm.DB, profile *Profile) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Profile, error)
	// FindByIDForUpdate takes a row lock on the profile; it is the per-user serialization point.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Profile, error)
	ListSettings(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]DomainSetting, error)
	UpsertSetting(ctx context.Context, db *gorm.DB, setting DomainSetting) error
	InsertSettingsIfMissing(ctx context.Context, db *gorm.DB, settings []DomainSetting) error
}
