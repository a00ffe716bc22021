package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/habitquest/internal/catalog/domain"
	"github.com/smallbiznis/habitquest/internal/clock"
	"github.com/smallbiznis/habitquest/internal/occurrence"
	profiledomain "github.com/smallbiznis/habitquest/internal/profile/domain"
	"github.com/smallbiznis/habitquest/internal/quest/domain"
	"github.com/smallbiznis/habitquest/pkg/db"
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
	Repo        domain.Repository
	CatalogRepo catalogdomain.Repository
	ProfileRepo profiledomain.Repository
	Tracker     *occurrence.Tracker
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	catalogRepo catalogdomain.Repository
	profileRepo profiledomain.Repository
	tracker     *occurrence.Tracker
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("quest.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		catalogRepo: p.CatalogRepo,
		profileRepo: p.ProfileRepo,
		tracker:     p.Tracker,
	}
}

func (s *Service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateQuestRequest) (domain.Quest, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Quest{}, domain.ErrInvalidTitle
	}
	if req.XP < 0 {
		return domain.Quest{}, domain.ErrInvalidXP
	}
	points := req.XP
	if req.Points != nil {
		points = *req.Points
	}
	if points < 0 {
		return domain.Quest{}, domain.ErrInvalidPoints
	}
	schedule := domain.DefaultSchedule()
	if req.Schedule != nil {
		schedule = *req.Schedule
	}
	if err := schedule.Validate(); err != nil {
		return domain.Quest{}, err
	}
	showInGlobal := true
	if req.ShowInGlobal != nil {
		showInGlobal = *req.ShowInGlobal
	}

	if err := s.ensureUser(ctx, s.db, userID); err != nil {
		return domain.Quest{}, err
	}
	d, err := s.catalogRepo.FindDomainByID(ctx, s.db, req.DomainID)
	if err != nil {
		return domain.Quest{}, err
	}
	if d == nil {
		return domain.Quest{}, catalogdomain.ErrDomainNotFound
	}

	now := s.clock.Now().UTC()
	quest := domain.Quest{
		ID:           s.genID.Generate(),
		UserID:       userID,
		DomainID:     d.ID,
		Title:        title,
		XP:           req.XP,
		Points:       points,
		Unit:         strings.TrimSpace(req.Unit),
		IsCustom:     true,
		ShowInGlobal: showInGlobal,
		Schedule:     schedule,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &quest); err != nil {
		return domain.Quest{}, err
	}

	s.log.Info("quest created",
		zap.String("user_id", userID.String()),
		zap.String("quest_id", quest.ID.String()),
	)
	return quest, nil
}

// EnableTemplate is idempotent: an existing quest for the template is reactivated
// and keeps its id, so past logs stay attached to it.
func (s *Service) EnableTemplate(ctx context.Context, userID, templateID snowflake.ID, req domain.EnableTemplateRequest) (domain.Quest, error) {
	quest, err := s.enableTemplate(ctx, userID, templateID, req)
	if db.IsDuplicateKeyErr(err) {
		// A concurrent enable inserted first; the retry reactivates that row.
		return s.enableTemplate(ctx, userID, templateID, req)
	}
	return quest, err
}

func (s *Service) enableTemplate(ctx context.Context, userID, templateID snowflake.ID, req domain.EnableTemplateRequest) (domain.Quest, error) {
	var out domain.Quest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		tmpl, err := s.catalogRepo.FindTemplateByID(ctx, tx, templateID)
		if err != nil {
			return err
		}
		if tmpl == nil || !tmpl.Active {
			return catalogdomain.ErrTemplateNotFound
		}

		now := s.clock.Now().UTC()
		existing, err := s.repo.FindByUserTemplate(ctx, tx, userID, templateID)
		if err != nil {
			return err
		}

		quest := domain.Quest{
			ID:           s.genID.Generate(),
			UserID:       userID,
			TemplateID:   &tmpl.ID,
			DomainID:     tmpl.DomainID,
			Title:        tmpl.Title,
			XP:           tmpl.DefaultXP,
			Points:       tmpl.DefaultPoints,
			Unit:         tmpl.Unit,
			ShowInGlobal: true,
			Schedule:     domain.DefaultSchedule(),
			CreatedAt:    now,
		}
		if existing != nil {
			quest = *existing
		}

		if req.XP != nil {
			quest.XP = *req.XP
		}
		if req.Points != nil {
			quest.Points = *req.Points
		}
		if req.Schedule != nil {
			quest.Schedule = *req.Schedule
		}
		if quest.XP < 0 {
			return domain.ErrInvalidXP
		}
		if quest.Points < 0 {
			return domain.ErrInvalidPoints
		}
		if err := quest.Schedule.Validate(); err != nil {
			return err
		}

		quest.Active = true
		quest.DeletedAt = nil
		quest.UpdatedAt = now

		if existing == nil {
			err = s.repo.Insert(ctx, tx, &quest)
		} else {
			err = s.repo.Update(ctx, tx, &quest)
		}
		if err != nil {
			return err
		}
		out = quest
		return nil
	})
	if err != nil {
		return domain.Quest{}, err
	}
	return out, nil
}

func (s *Service) DisableTemplate(ctx context.Context, userID, templateID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quest, err := s.repo.FindByUserTemplate(ctx, tx, userID, templateID)
		if err != nil {
			return err
		}
		if quest == nil || quest.Deleted() {
			return domain.ErrQuestNotFound
		}
		if !quest.Active {
			return nil
		}
		quest.Active = false
		quest.UpdatedAt = s.clock.Now().UTC()
		return s.repo.Update(ctx, tx, quest)
	})
}

func (s *Service) Update(ctx context.Context, userID, questID snowflake.ID, req domain.UpdateQuestRequest) (domain.Quest, error) {
	var out domain.Quest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quest, err := s.owned(ctx, tx, userID, questID)
		if err != nil {
			return err
		}

		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return domain.ErrInvalidTitle
			}
			quest.Title = title
		}
		if req.XP != nil {
			if *req.XP < 0 {
				return domain.ErrInvalidXP
			}
			quest.XP = *req.XP
		}
		if req.Points != nil {
			if *req.Points < 0 {
				return domain.ErrInvalidPoints
			}
			quest.Points = *req.Points
		}
		if req.Unit != nil {
			quest.Unit = strings.TrimSpace(*req.Unit)
		}
		if req.Schedule != nil {
			if err := req.Schedule.Validate(); err != nil {
				return err
			}
			quest.Schedule = *req.Schedule
		}
		if req.ShowInGlobal != nil {
			quest.ShowInGlobal = *req.ShowInGlobal
		}
		if req.Active != nil {
			quest.Active = *req.Active
		}
		quest.UpdatedAt = s.clock.Now().UTC()

		if err := s.repo.Update(ctx, tx, &quest); err != nil {
			return err
		}
		out = quest
		return nil
	})
	if err != nil {
		return domain.Quest{}, err
	}
	return out, nil
}

// Delete is soft; completion logs keep referencing the quest.
func (s *Service) Delete(ctx context.Context, userID, questID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quest, err := s.owned(ctx, tx, userID, questID)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		quest.Active = false
		quest.DeletedAt = &now
		quest.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, &quest); err != nil {
			return err
		}
		s.log.Info("quest deleted",
			zap.String("user_id", userID.String()),
			zap.String("quest_id", questID.String()),
		)
		return nil
	})
}

func (s *Service) Get(ctx context.Context, userID, questID snowflake.ID) (domain.Quest, error) {
	return s.owned(ctx, s.db, userID, questID)
}

func (s *Service) List(ctx context.Context, userID snowflake.ID, req domain.ListQuestRequest) ([]domain.QuestView, error) {
	profile, err := s.profileRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, profiledomain.ErrUserNotFound
	}

	quests, err := s.repo.List(ctx, s.db, userID, domain.ListFilter{
		DomainID:        req.DomainID,
		IncludeInactive: req.IncludeInactive,
		GlobalOnly:      req.GlobalOnly,
	})
	if err != nil {
		return nil, err
	}

	domains, err := s.catalogRepo.ListDomains(ctx, s.db)
	if err != nil {
		return nil, err
	}
	keys := make(map[snowflake.ID]string, len(domains))
	for _, d := range domains {
		keys[d.ID] = d.Key
	}

	at := req.At
	if at.IsZero() {
		at = s.clock.Now()
	}
	loc := profile.Location(time.UTC)

	views := make([]domain.QuestView, 0, len(quests))
	for _, q := range quests {
		window, err := s.tracker.Current(ctx, s.db, q, at, loc, profile.WeekStart())
		if err != nil {
			return nil, err
		}
		views = append(views, domain.QuestView{
			Quest:       q,
			DomainKey:   keys[q.DomainID],
			Window:      window,
			IsCompleted: window.IsCompleted(),
		})
	}
	return views, nil
}

// owned loads a live quest and checks it belongs to userID.
func (s *Service) owned(ctx context.Context, db *gorm.DB, userID, questID snowflake.ID) (domain.Quest, error) {
	quest, err := s.repo.FindByID(ctx, db, questID)
	if err != nil {
		return domain.Quest{}, err
	}
	if quest == nil || quest.Deleted() {
		return domain.Quest{}, domain.ErrQuestNotFound
	}
	if quest.UserID != userID {
		return domain.Quest{}, domain.ErrQuestNotOwned
	}
	return *quest, nil
}

func (s *Service) ensureUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) error {
	profile, err := s.profileRepo.FindByID(ctx, db, userID)
	if err != nil {
		return err
	}
	if profile == nil {
		return profiledomain.ErrUserNotFound
	}
	return nil
}
