package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, quest *Quest) error
	Update(ctx context.Context, db *gorm.DB, quest *Quest) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Quest, error)
	FindByUserTemplate(ctx context.Context, db *gorm.DB, userID, templateID snowflake.ID) (*Quest, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID, filter ListFilter) ([]Quest, error)
}

type ListFilter struct {
	DomainID        *snowflake.ID
	IncludeInactive bool
	GlobalOnly      bool
}
