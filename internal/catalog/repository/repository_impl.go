package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/habitquest/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListDomains(ctx context.Context, db *gorm.DB) ([]domain.Domain, error) {
	var items []domain.Domain
	if err := db.WithContext(ctx).
		Order("order_index ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindDomainByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Domain, error) {
	var item domain.Domain
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindDomainByKey(ctx context.Context, db *gorm.DB, key string) (*domain.Domain, error) {
	var item domain.Domain
	// Map conditions get the column quoted; "key" is reserved in MySQL.
	err := db.WithContext(ctx).
		Where(map[string]any{"key": key}).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListTemplates(ctx context.Context, db *gorm.DB, filter domain.TemplateFilter) ([]domain.TaskTemplate, error) {
	var items []domain.TaskTemplate
	stmt := db.WithContext(ctx).Model(&domain.TaskTemplate{})
	if filter.DomainID != nil {
		stmt = stmt.Where("domain_id = ?", *filter.DomainID)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("active = ?", true)
	}
	if err := stmt.Order("domain_id ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindTemplateByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.TaskTemplate, error) {
	var item domain.TaskTemplate
	err := db.WithContext(ctx).Raw(
		`SELECT id, title, domain_id, default_xp, default_points, unit, active, created_at
		 FROM task_templates WHERE id = ?`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
