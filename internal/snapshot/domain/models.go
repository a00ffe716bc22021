package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Period string

const (
	PeriodDay  Period = "day"
	PeriodWeek Period = "week"
)

// PeriodKeyLayout formats the local start date of a snapshot period.
const PeriodKeyLayout = "2006-01-02"

// Snapshot caches ledger totals for one user, domain and period.
type Snapshot struct {
	UserID      snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	DomainID    snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"domain_id"`
	Period      Period       `gorm:"primaryKey;type:varchar(8)" json:"period"`
	PeriodKey   string       `gorm:"primaryKey;type:varchar(10)" json:"period_key"`
	PeriodStart time.Time    `gorm:"not null" json:"period_start"`
	PointsTotal int64        `gorm:"not null" json:"points_total"`
	XPTotal     int64        `gorm:"column:xp_total;not null" json:"xp_total"`
	LogCount    int64        `gorm:"not null" json:"log_count"`
	ComputedAt  time.Time    `gorm:"not null" json:"computed_at"`
}

func (Snapshot) TableName() string { return "progress_snapshots" }

type RebuildStatus string

const (
	RebuildStatusPending    RebuildStatus = "pending"
	RebuildStatusProcessing RebuildStatus = "processing"
	RebuildStatusCompleted  RebuildStatus = "completed"
	RebuildStatusFailed     RebuildStatus = "failed"
)

// RebuildRequest queues a replay of snapshots from the ledger. A nil UserID covers every user.
type RebuildRequest struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID      *snowflake.ID `gorm:"index" json:"user_id,omitempty"`
	Status      RebuildStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Error       string        `gorm:"type:text;not null" json:"error,omitempty"`
	CreatedAt   time.Time     `gorm:"not null" json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

func (RebuildRequest) TableName() string { return "snapshot_rebuild_requests" }

// WeeklyStat is one domain's progress towards its weekly target.
type WeeklyStat struct {
	DomainID      snowflake.ID `json:"domain_id"`
	DomainKey     string       `json:"domain_key"`
	DomainName    string       `json:"domain_name"`
	OrderIndex    int          `json:"order_index"`
	Enabled       bool         `json:"is_enabled"`
	WeeklyPoints  int64        `json:"weekly_points"`
	WeeklyXP      int64        `json:"weekly_xp"`
	WeeklyTarget  int64        `json:"weekly_target_points"`
	ProgressRatio float64      `json:"progress_ratio"`
	RawRatio      float64      `json:"raw_ratio"`
}

// Ratios returns the raw points/target ratio and its display value clamped to [0, 1].
// A target of zero yields zero.
func Ratios(points, target int64) (raw float64, clamped float64) {
	if target <= 0 {
		return 0, 0
	}
	raw = float64(points) / float64(target)
	clamped = raw
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 1 {
		clamped = 1
	}
	return raw, clamped
}

type Totals struct {
	PointsTotal int64 `json:"points_total"`
	XPTotal     int64 `json:"xp_total"`
	LogCount    int64 `json:"log_count"`
}

// Drift is a snapshot row whose stored totals differ from the ledger.
type Drift struct {
	DomainID  snowflake.ID `json:"domain_id"`
	Period    Period       `json:"period"`
	PeriodKey string       `json:"period_key"`
	Stored    Totals       `json:"stored"`
	Expected  Totals       `json:"expected"`
}
