package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateQuestRequest struct {
	Title        string       `json:"title"`
	DomainID     snowflake.ID `json:"domain_id"`
	XP           int64        `json:"xp"`
	Points       *int64       `json:"points"`
	Unit         string       `json:"unit"`
	Schedule     *Schedule    `json:"schedule"`
	ShowInGlobal *bool        `json:"show_in_global"`
}

type EnableTemplateRequest struct {
	XP       *int64    `json:"xp"`
	Points   *int64    `json:"points"`
	Schedule *Schedule `json:"schedule"`
}

type UpdateQuestRequest struct {
	Title        *string   `json:"title"`
	XP           *int64    `json:"xp"`
	Points       *int64    `json:"points"`
	Unit         *string   `json:"unit"`
	Schedule     *Schedule `json:"schedule"`
	ShowInGlobal *bool     `json:"show_in_global"`
	Active       *bool     `json:"is_active"`
}

type ListQuestRequest struct {
	DomainID        *snowflake.ID
	IncludeInactive bool
	GlobalOnly      bool
	At              time.Time
}

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateQuestRequest) (Quest, error)
	EnableTemplate(ctx context.Context, userID, templateID snowflake.ID, req EnableTemplateRequest) (Quest, error)
	DisableTemplate(ctx context.Context, userID, templateID snowflake.ID) error
	Update(ctx context.Context, userID, questID snowflake.ID, req UpdateQuestRequest) (Quest, error)
	Delete(ctx context.Context, userID, questID snowflake.ID) error
	Get(ctx context.Context, userID, questID snowflake.ID) (Quest, error)
	List(ctx context.Context, userID snowflake.ID, req ListQuestRequest) ([]QuestView, error)
}

var (
	ErrQuestNotFound   = errors.New("quest_not_found")
	ErrQuestNotOwned   = errors.New("quest_not_owned")
	ErrQuestInactive   = errors.New("quest_inactive")
	ErrInvalidSchedule = errors.New("invalid_schedule")
	ErrInvalidTitle    = errors.New("invalid_title")
	ErrInvalidXP       = errors.New("invalid_xp")
	ErrInvalidPoints   = errors.New("invalid_points")
)
