package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Domain is a life area such as health or money. Seeded once and never edited.
type Domain struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Key        string       `gorm:"type:text;not null;uniqueIndex:ux_domains_key" json:"key"`
	Name       string       `gorm:"type:text;not null" json:"name"`
	Icon       string       `gorm:"type:text;not null;default:''" json:"icon,omitempty"`
	OrderIndex int          `gorm:"not null;default:0" json:"order_index"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Domain) TableName() string { return "domains" }

// TaskTemplate is a catalog quest users can enable for themselves.
type TaskTemplate struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Title         string       `gorm:"type:text;not null" json:"title"`
	DomainID      snowflake.ID `gorm:"not null;index" json:"domain_id"`
	DefaultXP     int64        `gorm:"column:default_xp;not null;default:0" json:"default_xp"`
	DefaultPoints int64        `gorm:"not null;default:0" json:"default_points"`
	Unit          string       `gorm:"type:text;not null;default:''" json:"unit,omitempty"`
	Active        bool         `gorm:"not null" json:"active"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (TaskTemplate) TableName() string { return "task_templates" }
