package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/habitquest/pkg/db/pagination"
	"gorm.io/gorm"
)

type AppendRequest struct {
	UserID     snowflake.ID
	QuestID    *snowflake.ID
	DomainID   snowflake.ID
	OccurredAt time.Time
	Quantity   *float64
	Unit       string
	Notes      string
	XP         int64
	Points     int64
	Source     Source
}

type HistoryRequest struct {
	UserID snowflake.ID
	pagination.Pagination
}

type HistoryResponse struct {
	pagination.PageInfo
	Logs []CompletionLog `json:"logs"`
}

type Service interface {
	// Append inserts one log using tx; it never commits on its own.
	Append(ctx context.Context, tx *gorm.DB, req AppendRequest) (CompletionLog, error)
	History(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
}

var (
	ErrInvalidUser       = errors.New("invalid_user")
	ErrInvalidDomain     = errors.New("invalid_domain")
	ErrInvalidOccurredAt = errors.New("invalid_occurred_at")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidSource     = errors.New("invalid_source")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
)
