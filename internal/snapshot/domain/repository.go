package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Add adds delta to the row, creating it at zero first when the period is new.
	Add(ctx context.Context, db *gorm.DB, delta Snapshot) error
	ListForPeriod(ctx context.Context, db *gorm.DB, userID snowflake.ID, period Period, periodKey string) ([]Snapshot, error)
	ListForUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Snapshot, error)
	DeleteForUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) error
	InsertBatch(ctx context.Context, db *gorm.DB, rows []Snapshot) error

	InsertRebuildRequest(ctx context.Context, db *gorm.DB, req *RebuildRequest) error
	FindRebuildRequest(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RebuildRequest, error)
	ListPendingRebuilds(ctx context.Context, db *gorm.DB, limit int) ([]RebuildRequest, error)
	// TransitionRebuild moves a request between states and reports whether this caller won it.
	TransitionRebuild(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to RebuildStatus, fields map[string]any) (bool, error)
}
