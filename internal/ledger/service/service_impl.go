package service

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/habitquest/internal/clock"
	"github.com/smallbiznis/habitquest/internal/config"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	"github.com/smallbiznis/habitquest/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        ledgerdomain.Repository
	Progression *config.ProgressionConfigHolder `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        ledgerdomain.Repository
	progression *config.ProgressionConfigHolder
}

func New(p Params) ledgerdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("ledger.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		progression: p.Progression,
	}
}

func (s *Service) Append(ctx context.Context, tx *gorm.DB, req ledgerdomain.AppendRequest) (ledgerdomain.CompletionLog, error) {
	if req.UserID == 0 {
		return ledgerdomain.CompletionLog{}, ledgerdomain.ErrInvalidUser
	}
	if req.DomainID == 0 {
		return ledgerdomain.CompletionLog{}, ledgerdomain.ErrInvalidDomain
	}
	if req.OccurredAt.IsZero() {
		return ledgerdomain.CompletionLog{}, ledgerdomain.ErrInvalidOccurredAt
	}
	if req.XP < 0 || req.Points < 0 {
		return ledgerdomain.CompletionLog{}, ledgerdomain.ErrInvalidAmount
	}
	if !req.Source.Valid() {
		return ledgerdomain.CompletionLog{}, ledgerdomain.ErrInvalidSource
	}
	if req.Quantity != nil && (math.IsNaN(*req.Quantity) || math.IsInf(*req.Quantity, 0) || *req.Quantity < 0) {
		return ledgerdomain.CompletionLog{}, ledgerdomain.ErrInvalidQuantity
	}
	if tx == nil {
		tx = s.db
	}

	entry := ledgerdomain.CompletionLog{
		ID:            s.genID.Generate(),
		UserID:        req.UserID,
		QuestID:       req.QuestID,
		DomainID:      req.DomainID,
		OccurredAt:    req.OccurredAt.UTC().Truncate(time.Microsecond),
		Quantity:      req.Quantity,
		Unit:          strings.TrimSpace(req.Unit),
		Notes:         strings.TrimSpace(req.Notes),
		XPAwarded:     req.XP,
		PointsAwarded: req.Points,
		Source:        req.Source,
		CreatedAt:     s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, tx, &entry); err != nil {
		return ledgerdomain.CompletionLog{}, err
	}

	s.log.Debug("completion appended",
		zap.String("user_id", entry.UserID.String()),
		zap.String("log_id", entry.ID.String()),
		zap.String("source", string(entry.Source)),
		zap.Int64("xp", entry.XPAwarded),
		zap.Int64("points", entry.PointsAwarded),
	)
	return entry, nil
}

func (s *Service) History(ctx context.Context, req ledgerdomain.HistoryRequest) (ledgerdomain.HistoryResponse, error) {
	if req.UserID == 0 {
		return ledgerdomain.HistoryResponse{}, ledgerdomain.ErrInvalidUser
	}

	var cursor *ledgerdomain.Cursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := decodeCursor(token)
		if err != nil {
			return ledgerdomain.HistoryResponse{}, ledgerdomain.ErrInvalidPageToken
		}
		cursor = decoded
	}

	limit := req.Limit(s.progression.Get().RecentHistoryLimit)
	rows, err := s.repo.Page(ctx, s.db, req.UserID, cursor, limit+1)
	if err != nil {
		return ledgerdomain.HistoryResponse{}, err
	}

	logs, info := pagination.BuildCursorPageInfo(rows, limit, func(l ledgerdomain.CompletionLog) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:         l.ID.String(),
			OccurredAt: l.OccurredAt.UTC().Format(time.RFC3339Nano),
		})
		return token
	})
	if logs == nil {
		logs = []ledgerdomain.CompletionLog{}
	}

	return ledgerdomain.HistoryResponse{PageInfo: info, Logs: logs}, nil
}

func decodeCursor(token string) (*ledgerdomain.Cursor, error) {
	raw, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(raw.ID, 10, 64)
	if err != nil {
		return nil, err
	}
	at, err := time.Parse(time.RFC3339Nano, raw.OccurredAt)
	if err != nil {
		return nil, err
	}
	return &ledgerdomain.Cursor{OccurredAt: at, ID: snowflake.ID(id)}, nil
}
