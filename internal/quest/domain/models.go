package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Schedule caps how many completions a quest accepts per window of Interval periods.
type Schedule struct {
	Period            Period `gorm:"column:schedule_period;type:text;not null" json:"period"`
	Interval          int    `gorm:"column:schedule_interval;not null" json:"interval"`
	TargetOccurrences int    `gorm:"column:target_occurrences;not null" json:"target_occurrences"`
}

func DefaultSchedule() Schedule {
	return Schedule{Period: PeriodDay, Interval: 1, TargetOccurrences: 1}
}

func (s Schedule) Validate() error {
	switch s.Period {
	case PeriodDay, PeriodWeek, PeriodMonth:
	default:
		return ErrInvalidSchedule
	}
	if s.Interval < 1 || s.TargetOccurrences < 1 {
		return ErrInvalidSchedule
	}
	return nil
}

type Quest struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID       snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_quests_user_template,priority:1" json:"user_id"`
	TemplateID   *snowflake.ID `gorm:"uniqueIndex:ux_quests_user_template,priority:2" json:"template_id,omitempty"`
	DomainID     snowflake.ID  `gorm:"not null;index" json:"domain_id"`
	Title        string        `gorm:"type:text;not null" json:"title"`
	XP           int64         `gorm:"column:xp;not null" json:"xp"`
	Points       int64         `gorm:"not null" json:"points"`
	Unit         string        `gorm:"type:text;not null" json:"unit,omitempty"`
	IsCustom     bool          `gorm:"not null" json:"is_custom"`
	ShowInGlobal bool          `gorm:"not null" json:"show_in_global"`
	Schedule     Schedule      `gorm:"embedded" json:"schedule"`
	Active       bool          `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null" json:"updated_at"`
	DeletedAt    *time.Time    `gorm:"index" json:"deleted_at,omitempty"`
}

func (Quest) TableName() string { return "quests" }

func (q Quest) Deleted() bool { return q.DeletedAt != nil }

// WindowState is the occurrence accounting of a quest's current window.
type WindowState struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Target      int       `json:"target_occurrences"`
	Completed   int       `json:"occurrences_completed"`
	Remaining   int       `json:"remaining_occurrences"`
}

func (w WindowState) IsCompleted() bool { return w.Remaining == 0 }

// QuestView is a quest as listed to its owner.
type QuestView struct {
	Quest
	DomainKey   string      `json:"domain_key"`
	Window      WindowState `json:"window"`
	IsCompleted bool        `json:"is_completed"`
}
