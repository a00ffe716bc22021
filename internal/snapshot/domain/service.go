package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	profiledomain "github.com/smallbiznis/habitquest/internal/profile/domain"
	"gorm.io/gorm"
)

type Service interface {
	// OnAppend folds one ledger row into its day and week snapshots using tx.
	OnAppend(ctx context.Context, tx *gorm.DB, log ledgerdomain.CompletionLog, profile profiledomain.Profile) error
	WeeklyStats(ctx context.Context, db *gorm.DB, profile profiledomain.Profile, asOf time.Time) ([]WeeklyStat, error)
	Verify(ctx context.Context, userID snowflake.ID) ([]Drift, error)
	Rebuild(ctx context.Context, userID *snowflake.ID) error
	// RebuildTx re-keys one user's snapshots inside the caller's transaction.
	RebuildTx(ctx context.Context, tx *gorm.DB, profile profiledomain.Profile) error
	EnqueueRebuild(ctx context.Context, userID *snowflake.ID) (RebuildRequest, error)
	GetRebuild(ctx context.Context, id snowflake.ID) (RebuildRequest, error)
	ProcessRebuildRequests(ctx context.Context, limit int) error
}

var (
	ErrRebuildNotFound = errors.New("rebuild_request_not_found")
	ErrInvalidUser     = errors.New("invalid_user")
)
