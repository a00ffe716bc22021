package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Source string

const (
	SourceQuest    Source = "quest"    // scheduled quest completion
	SourceManual   Source = "manual"   // free-form entry, no occurrence accounting
	SourceBackfill Source = "backfill" // quest completion dated in the past
)

func (s Source) Valid() bool {
	switch s {
	case SourceQuest, SourceManual, SourceBackfill:
		return true
	default:
		return false
	}
}

// CompletionLog is one immutable progression event. Rows are only ever inserted.
type CompletionLog struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID        snowflake.ID  `gorm:"not null;index:ix_completion_logs_user_occurred,priority:1" json:"user_id"`
	QuestID       *snowflake.ID `gorm:"index:ix_completion_logs_quest_occurred,priority:1" json:"quest_id,omitempty"`
	DomainID      snowflake.ID  `gorm:"not null;index" json:"domain_id"`
	OccurredAt    time.Time     `gorm:"not null;index:ix_completion_logs_user_occurred,priority:2;index:ix_completion_logs_quest_occurred,priority:2" json:"occurred_at"`
	Quantity      *float64      `json:"quantity,omitempty"`
	Unit          string        `gorm:"type:text;not null" json:"unit,omitempty"`
	Notes         string        `gorm:"type:text;not null" json:"notes,omitempty"`
	XPAwarded     int64         `gorm:"column:xp_awarded;not null" json:"xp_awarded"`
	PointsAwarded int64         `gorm:"not null" json:"points_awarded"`
	Source        Source        `gorm:"type:text;not null" json:"source"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
}

func (CompletionLog) TableName() string { return "completion_logs" }

type Totals struct {
	LogCount    int64 `gorm:"column:log_count"`
	XPTotal     int64 `gorm:"column:xp_total"`
	PointsTotal int64 `gorm:"column:points_total"`
}

type DomainTotals struct {
	DomainID    snowflake.ID `gorm:"column:domain_id"`
	LogCount    int64        `gorm:"column:log_count"`
	XPTotal     int64        `gorm:"column:xp_total"`
	PointsTotal int64        `gorm:"column:points_total"`
}

// Activity is the projection the streak calculator needs.
type Activity struct {
	OccurredAt time.Time    `gorm:"column:occurred_at"`
	DomainID   snowflake.ID `gorm:"column:domain_id"`
	XPAwarded  int64        `gorm:"column:xp_awarded"`
	Points     int64        `gorm:"column:points_awarded"`
}

func (l CompletionLog) Activity() Activity {
	return Activity{
		OccurredAt: l.OccurredAt,
		DomainID:   l.DomainID,
		XPAwarded:  l.XPAwarded,
		Points:     l.PointsAwarded,
	}
}
