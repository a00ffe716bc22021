package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, log *CompletionLog) error
	// CountForQuest counts quest and backfill rows in [from, to); manual rows never use up an occurrence.
	CountForQuest(ctx context.Context, db *gorm.DB, userID, questID snowflake.ID, from, to time.Time) (int64, error)
	Totals(ctx context.Context, db *gorm.DB, userID snowflake.ID) (Totals, error)
	TotalsByDomain(ctx context.Context, db *gorm.DB, userID snowflake.ID, from, to *time.Time) ([]DomainTotals, error)
	Activity(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Activity, error)
	Page(ctx context.Context, db *gorm.DB, userID snowflake.ID, cursor *Cursor, limit int) ([]CompletionLog, error)
	// Scan walks logs in (occurred_at, id) order after the cursor; userID 0 scans every user.
	Scan(ctx context.Context, db *gorm.DB, userID snowflake.ID, after Cursor, limit int) ([]CompletionLog, error)
}

// Cursor is a keyset position in (occurred_at, id) order.
type Cursor struct {
	OccurredAt time.Time
	ID         snowflake.ID
}
