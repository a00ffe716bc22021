package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/habitquest/internal/snapshot/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 200

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Add(ctx context.Context, db *gorm.DB, delta domain.Snapshot) error {
	row := delta
	row.PeriodStart = row.PeriodStart.UTC()
	row.ComputedAt = row.ComputedAt.UTC()

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "domain_id"},
				{Name: "period"},
				{Name: "period_key"},
			},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "points_total"}, Value: gorm.Expr("progress_snapshots.points_total + ?", delta.PointsTotal)},
				{Column: clause.Column{Name: "xp_total"}, Value: gorm.Expr("progress_snapshots.xp_total + ?", delta.XPTotal)},
				{Column: clause.Column{Name: "log_count"}, Value: gorm.Expr("progress_snapshots.log_count + ?", delta.LogCount)},
				{Column: clause.Column{Name: "computed_at"}, Value: row.ComputedAt},
			},
		}).
		Create(&row).Error
}

func (r *repo) ListForPeriod(ctx context.Context, db *gorm.DB, userID snowflake.ID, period domain.Period, periodKey string) ([]domain.Snapshot, error) {
	var rows []domain.Snapshot
	err := db.WithContext(ctx).
		Where("user_id = ? AND period = ? AND period_key = ?", userID, period, periodKey).
		Order("domain_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ListForUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Snapshot, error) {
	var rows []domain.Snapshot
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("period ASC, period_key ASC, domain_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) DeleteForUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) error {
	return db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.Snapshot{}).Error
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, rows []domain.Snapshot) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error
}

func (r *repo) InsertRebuildRequest(ctx context.Context, db *gorm.DB, req *domain.RebuildRequest) error {
	return db.WithContext(ctx).Create(req).Error
}

func (r *repo) FindRebuildRequest(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.RebuildRequest, error) {
	var req domain.RebuildRequest
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&req).Error
	if err != nil {
		return nil, err
	}
	if req.ID == 0 {
		return nil, nil
	}
	return &req, nil
}

func (r *repo) ListPendingRebuilds(ctx context.Context, db *gorm.DB, limit int) ([]domain.RebuildRequest, error) {
	var rows []domain.RebuildRequest
	err := db.WithContext(ctx).
		Where("status = ?", domain.RebuildStatusPending).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) TransitionRebuild(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.RebuildStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	result := db.WithContext(ctx).
		Model(&domain.RebuildRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
