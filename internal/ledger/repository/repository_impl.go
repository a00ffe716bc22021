package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/habitquest/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, log *domain.CompletionLog) error {
	return db.WithContext(ctx).Create(log).Error
}

func (r *repo) CountForQuest(ctx context.Context, db *gorm.DB, userID, questID snowflake.ID, from, to time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.CompletionLog{}).
		Where("user_id = ? AND quest_id = ?", userID, questID).
		Where("source IN ?", []domain.Source{domain.SourceQuest, domain.SourceBackfill}).
		Where("occurred_at >= ? AND occurred_at < ?", from.UTC(), to.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) Totals(ctx context.Context, db *gorm.DB, userID snowflake.ID) (domain.Totals, error) {
	var totals domain.Totals
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS log_count,
		        COALESCE(SUM(xp_awarded), 0) AS xp_total,
		        COALESCE(SUM(points_awarded), 0) AS points_total
		 FROM completion_logs
		 WHERE user_id = ?`,
		userID,
	).Scan(&totals).Error
	if err != nil {
		return domain.Totals{}, err
	}
	return totals, nil
}

func (r *repo) TotalsByDomain(ctx context.Context, db *gorm.DB, userID snowflake.ID, from, to *time.Time) ([]domain.DomainTotals, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.CompletionLog{}).
		Select(`domain_id,
			COUNT(*) AS log_count,
			COALESCE(SUM(xp_awarded), 0) AS xp_total,
			COALESCE(SUM(points_awarded), 0) AS points_total`).
		Where("user_id = ?", userID)
	if from != nil {
		stmt = stmt.Where("occurred_at >= ?", from.UTC())
	}
	if to != nil {
		stmt = stmt.Where("occurred_at < ?", to.UTC())
	}

	var rows []domain.DomainTotals
	if err := stmt.Group("domain_id").Order("domain_id ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) Activity(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Activity, error) {
	var rows []domain.Activity
	err := db.WithContext(ctx).
		Model(&domain.CompletionLog{}).
		Select("occurred_at, domain_id, xp_awarded, points_awarded").
		Where("user_id = ?", userID).
		Order("occurred_at ASC, id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) Page(ctx context.Context, db *gorm.DB, userID snowflake.ID, cursor *domain.Cursor, limit int) ([]domain.CompletionLog, error) {
	stmt := db.WithContext(ctx).Where("user_id = ?", userID)
	if cursor != nil {
		at := cursor.OccurredAt.UTC()
		stmt = stmt.Where("(occurred_at < ? OR (occurred_at = ? AND id < ?))", at, at, cursor.ID)
	}

	var logs []domain.CompletionLog
	if err := stmt.Order("occurred_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repo) Scan(ctx context.Context, db *gorm.DB, userID snowflake.ID, after domain.Cursor, limit int) ([]domain.CompletionLog, error) {
	stmt := db.WithContext(ctx).Model(&domain.CompletionLog{})
	if userID != 0 {
		stmt = stmt.Where("user_id = ?", userID)
	}
	if after.ID != 0 {
		at := after.OccurredAt.UTC()
		stmt = stmt.Where("(occurred_at > ? OR (occurred_at = ? AND id > ?))", at, at, after.ID)
	}

	var logs []domain.CompletionLog
	if err := stmt.Order("occurred_at ASC, id ASC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
