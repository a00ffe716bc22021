package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/habitquest/internal/catalog/domain"
	"github.com/smallbiznis/habitquest/internal/clock"
	"github.com/smallbiznis/habitquest/internal/config"
	"github.com/smallbiznis/habitquest/internal/lock"
	"github.com/smallbiznis/habitquest/internal/profile/domain"
	"github.com/smallbiznis/habitquest/internal/progression"
	snapshotdomain "github.com/smallbiznis/habitquest/internal/snapshot/domain"
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
	Cfg         config.Config
	Progression *config.ProgressionConfigHolder
	Repo        domain.Repository
	CatalogRepo catalogdomain.Repository
	SnapshotSvc snapshotdomain.Service
	Calculator  *progression.Calculator
	Locker      lock.Locker `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	defaultTZ   string
	progression *config.ProgressionConfigHolder
	repo        domain.Repository
	catalogRepo catalogdomain.Repository
	snapshotSvc snapshotdomain.Service
	calculator  *progression.Calculator
	locker      lock.Locker
}

func New(p Params) domain.Service {
	defaultTZ := strings.TrimSpace(p.Cfg.DefaultTimezone)
	if defaultTZ == "" {
		defaultTZ = "UTC"
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("profile.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		defaultTZ:   defaultTZ,
		progression: p.Progression,
		repo:        p.Repo,
		catalogRepo: p.CatalogRepo,
		snapshotSvc: p.SnapshotSvc,
		calculator:  p.Calculator,
		locker:      p.Locker,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateProfileRequest) (domain.Profile, error) {
	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		tz = s.defaultTZ
	}
	if _, err := domain.LoadLocation(tz); err != nil {
		return domain.Profile{}, err
	}

	firstDay := s.progression.Get().FirstDayOfWeek
	if req.FirstDayOfWeek != nil {
		firstDay = *req.FirstDayOfWeek
	}
	if firstDay < 0 || firstDay > 6 {
		return domain.Profile{}, domain.ErrInvalidFirstDay
	}

	now := s.clock.Now().UTC()
	profile := domain.Profile{
		ID:             s.genID.Generate(),
		DisplayName:    strings.TrimSpace(req.DisplayName),
		Timezone:       tz,
		FirstDayOfWeek: firstDay,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &profile); err != nil {
			return err
		}
		domains, err := s.catalogRepo.ListDomains(ctx, tx)
		if err != nil {
			return err
		}
		target := s.progression.Get().DefaultWeeklyTarget
		settings := make([]domain.DomainSetting, 0, len(domains))
		for _, d := range domains {
			settings = append(settings, domain.DomainSetting{
				UserID:             profile.ID,
				DomainID:           d.ID,
				WeeklyTargetPoints: target,
				Enabled:            true,
				UpdatedAt:          now,
			})
		}
		return s.repo.InsertSettingsIfMissing(ctx, tx, settings)
	})
	if err != nil {
		return domain.Profile{}, err
	}

	s.log.Info("profile created", zap.String("user_id", profile.ID.String()), zap.String("timezone", tz))
	return profile, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Profile, error) {
	if id == 0 {
		return domain.Profile{}, domain.ErrUserNotFound
	}
	profile, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Profile{}, err
	}
	if profile == nil {
		return domain.Profile{}, domain.ErrUserNotFound
	}
	return *profile, nil
}

// Update edits the profile. Snapshot periods are keyed by zone and week start,
// so changing either re-keys the user's snapshots in the same transaction.
func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateProfileRequest) (domain.Profile, error) {
	if id == 0 {
		return domain.Profile{}, domain.ErrUserNotFound
	}
	release, err := s.acquire(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	defer release()

	var (
		updated domain.Profile
		rekeyed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if profile == nil {
			return domain.ErrUserNotFound
		}
		previous := *profile

		if req.DisplayName != nil {
			profile.DisplayName = strings.TrimSpace(*req.DisplayName)
		}
		if req.Timezone != nil {
			tz := strings.TrimSpace(*req.Timezone)
			if _, err := domain.LoadLocation(tz); err != nil {
				return err
			}
			profile.Timezone = tz
		}
		if req.FirstDayOfWeek != nil {
			if *req.FirstDayOfWeek < 0 || *req.FirstDayOfWeek > 6 {
				return domain.ErrInvalidFirstDay
			}
			profile.FirstDayOfWeek = *req.FirstDayOfWeek
		}
		profile.UpdatedAt = s.clock.Now().UTC()

		if err := s.repo.Update(ctx, tx, profile); err != nil {
			return err
		}
		if profile.Timezone != previous.Timezone || profile.FirstDayOfWeek != previous.FirstDayOfWeek {
			if err := s.snapshotSvc.RebuildTx(ctx, tx, *profile); err != nil {
				return err
			}
			rekeyed = true
		}
		updated = *profile
		return nil
	})
	if err != nil {
		return domain.Profile{}, err
	}

	if rekeyed {
		s.calculator.Invalidate(id)
		s.log.Info("profile calendar changed",
			zap.String("user_id", id.String()),
			zap.String("timezone", updated.Timezone),
			zap.Int("first_day_of_week", updated.FirstDayOfWeek),
		)
	}
	return updated, nil
}

// acquire takes the same per-user lock as completions when one is configured.
func (s *Service) acquire(ctx context.Context, userID snowflake.ID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	return s.locker.Acquire(ctx, "user:"+userID.String())
}

func (s *Service) ListDomainSettings(ctx context.Context, userID snowflake.ID) ([]domain.EffectiveSetting, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	return s.effectiveSettings(ctx, s.db, userID)
}

func (s *Service) UpdateDomainSettings(ctx context.Context, userID snowflake.ID, reqs []domain.UpdateDomainSettingRequest) ([]domain.EffectiveSetting, error) {
	var out []domain.EffectiveSetting
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := s.repo.FindByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if profile == nil {
			return domain.ErrUserNotFound
		}

		current, err := s.effectiveSettings(ctx, tx, userID)
		if err != nil {
			return err
		}
		byDomain := make(map[snowflake.ID]domain.EffectiveSetting, len(current))
		for _, eff := range current {
			byDomain[eff.DomainID] = eff
		}

		now := s.clock.Now().UTC()
		for _, req := range reqs {
			eff, ok := byDomain[req.DomainID]
			if !ok {
				return domain.ErrInvalidDomain
			}
			if req.WeeklyTargetPoints != nil {
				if *req.WeeklyTargetPoints < 0 {
					return domain.ErrInvalidWeeklyTarget
				}
				eff.WeeklyTargetPoints = *req.WeeklyTargetPoints
			}
			if req.Enabled != nil {
				eff.Enabled = *req.Enabled
			}
			if err := s.repo.UpsertSetting(ctx, tx, domain.DomainSetting{
				UserID:             userID,
				DomainID:           req.DomainID,
				WeeklyTargetPoints: eff.WeeklyTargetPoints,
				Enabled:            eff.Enabled,
				UpdatedAt:          now,
			}); err != nil {
				return err
			}
		}

		out, err = s.effectiveSettings(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) effectiveSettings(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.EffectiveSetting, error) {
	domains, err := s.catalogRepo.ListDomains(ctx, db)
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.ListSettings(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	return domain.ResolveSettings(domains, stored, s.progression.Get().DefaultWeeklyTarget), nil
}
