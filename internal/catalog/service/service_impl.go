package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/habitquest/internal/catalog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("catalog.service"),
		repo: p.Repo,
	}
}

func (s *Service) ListDomains(ctx context.Context) ([]domain.Domain, error) {
	return s.repo.ListDomains(ctx, s.db)
}

func (s *Service) GetDomain(ctx context.Context, id snowflake.ID) (domain.Domain, error) {
	if id == 0 {
		return domain.Domain{}, domain.ErrDomainNotFound
	}
	item, err := s.repo.FindDomainByID(ctx, s.db, id)
	if err != nil {
		return domain.Domain{}, err
	}
	if item == nil {
		return domain.Domain{}, domain.ErrDomainNotFound
	}
	return *item, nil
}

// ResolveDomainKey accepts display names and accented spellings as well as canonical keys.
func (s *Service) ResolveDomainKey(ctx context.Context, raw string) (domain.Domain, error) {
	key := domain.NormalizeKey(raw)
	if key == "" {
		return domain.Domain{}, domain.ErrInvalidDomainKey
	}
	item, err := s.repo.FindDomainByKey(ctx, s.db, key)
	if err != nil {
		return domain.Domain{}, err
	}
	if item == nil {
		return domain.Domain{}, domain.ErrDomainNotFound
	}
	return *item, nil
}

func (s *Service) ListTemplates(ctx context.Context, domainKey string) ([]domain.TaskTemplate, error) {
	filter := domain.TemplateFilter{ActiveOnly: true}
	if domainKey != "" {
		d, err := s.ResolveDomainKey(ctx, domainKey)
		if err != nil {
			return nil, err
		}
		filter.DomainID = &d.ID
	}
	return s.repo.ListTemplates(ctx, s.db, filter)
}

func (s *Service) GetTemplate(ctx context.Context, id snowflake.ID) (domain.TaskTemplate, error) {
	if id == 0 {
		return domain.TaskTemplate{}, domain.ErrTemplateNotFound
	}
	item, err := s.repo.FindTemplateByID(ctx, s.db, id)
	if err != nil {
		return domain.TaskTemplate{}, err
	}
	if item == nil {
		return domain.TaskTemplate{}, domain.ErrTemplateNotFound
	}
	return *item, nil
}
