package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/habitquest/internal/quest/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, quest *domain.Quest) error {
	return db.WithContext(ctx).Create(quest).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, quest *domain.Quest) error {
	return db.WithContext(ctx).Save(quest).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Quest, error) {
	var quest domain.Quest
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&quest).Error
	if err != nil {
		return nil, err
	}
	if quest.ID == 0 {
		return nil, nil
	}
	return &quest, nil
}

func (r *repo) FindByUserTemplate(ctx context.Context, db *gorm.DB, userID, templateID snowflake.ID) (*domain.Quest, error) {
	var quest domain.Quest
	err := db.WithContext(ctx).
		Where("user_id = ? AND template_id = ?", userID, templateID).
		Limit(1).
		Find(&quest).Error
	if err != nil {
		return nil, err
	}
	if quest.ID == 0 {
		return nil, nil
	}
	return &quest, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID, filter domain.ListFilter) ([]domain.Quest, error) {
	var quests []domain.Quest
	stmt := db.WithContext(ctx).
		Model(&domain.Quest{}).
		Where("user_id = ? AND deleted_at IS NULL", userID)
	if filter.DomainID != nil {
		stmt = stmt.Where("domain_id = ?", *filter.DomainID)
	}
	if !filter.IncludeInactive {
		stmt = stmt.Where("is_active = ?", true)
	}
	if filter.GlobalOnly {
		stmt = stmt.Where("show_in_global = ?", true)
	}
	if err := stmt.Order("created_at ASC, id ASC").Find(&quests).Error; err != nil {
		return nil, err
	}
	return quests, nil
}
