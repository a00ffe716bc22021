package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListDomains(ctx context.Context, db *gorm.DB) ([]Domain, error)
	FindDomainByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Domain, error)
	FindDomainByKey(ctx context.Context, db *gorm.DB, key string) (*Domain, error)
	ListTemplates(ctx context.Context, db *gorm.DB, filter TemplateFilter) ([]TaskTemplate, error)
	FindTemplateByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TaskTemplate, error)
}

type TemplateFilter struct {
	DomainID   *snowflake.ID
	ActiveOnly bool
}
