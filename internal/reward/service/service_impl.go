package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/habitquest/internal/catalog/domain"
	"github.com/smallbiznis/habitquest/internal/config"
	"github.com/smallbiznis/habitquest/internal/reward/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const catalogFlightKey = "reward_catalog"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	CatalogRepo catalogdomain.Repository
	Progression *config.ProgressionConfigHolder `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	catalogRepo catalogdomain.Repository
	progression *config.ProgressionConfigHolder

	flight singleflight.Group
	mu     sync.RWMutex
	// generation is bumped by Reload; a compile only stores its catalog when
	// no reload happened while it was loading.
	generation uint64
	catalog    *domain.Catalog
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("reward.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		catalogRepo: p.CatalogRepo,
		progression: p.Progression,
	}
}

func (s *Service) Reload() {
	s.mu.Lock()
	s.generation++
	s.catalog = nil
	s.mu.Unlock()
}

// compiled returns the compiled catalog, loading it through db on first use.
func (s *Service) compiled(ctx context.Context, db *gorm.DB) (*domain.Catalog, error) {
	s.mu.RLock()
	catalog, generation := s.catalog, s.generation
	s.mu.RUnlock()
	if catalog != nil {
		return catalog, nil
	}

	// Callers after a reload never join a flight that started before it.
	key := catalogFlightKey + ":" + strconv.FormatUint(generation, 10)
	v, err, _ := s.flight.Do(key, func() (any, error) {
		rewards, err := s.repo.ListRewards(ctx, db)
		if err != nil {
			return nil, err
		}
		domains, err := s.catalogRepo.ListDomains(ctx, db)
		if err != nil {
			return nil, err
		}
		keys := make(map[string]snowflake.ID, len(domains))
		for _, d := range domains {
			keys[catalogdomain.NormalizeKey(d.Key)] = d.ID
		}

		built := domain.BuildCatalog(rewards, domain.CompileOptions{
			DomainKeys:       keys,
			SavingsDomainKey: s.progression.Get().SavingsDomainKey,
		})
		for _, r := range built.Rewards() {
			if r.Condition.Kind == domain.ConditionUnsupported {
				s.log.Warn("reward condition will never fire",
					zap.String("reward_key", r.Reward.Key),
					zap.String("condition_type", r.Reward.ConditionType),
					zap.String("reason", r.Condition.Reason),
				)
			}
		}

		s.mu.Lock()
		if s.generation == generation {
			s.catalog = built
		}
		s.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Catalog), nil
}

func (s *Service) Evaluate(ctx context.Context, tx *gorm.DB, userID snowflake.ID, facts domain.Facts, at time.Time) ([]domain.Unlocked, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if tx == nil {
		tx = s.db
	}

	catalog, err := s.compiled(ctx, tx)
	if err != nil {
		return nil, err
	}
	if catalog.Len() == 0 {
		return nil, nil
	}

	existing, err := s.repo.ListUnlocks(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	held := make(map[snowflake.ID]bool, len(existing))
	for _, u := range existing {
		held[u.RewardID] = true
	}

	at = at.UTC()
	var out []domain.Unlocked
	for _, r := range catalog.Evaluate(facts, held) {
		inserted, err := s.repo.InsertUnlock(ctx, tx, &domain.RewardUnlock{
			ID:         s.genID.Generate(),
			UserID:     userID,
			RewardID:   r.Reward.ID,
			UnlockedAt: at,
		})
		if err != nil {
			return nil, err
		}
		if !inserted {
			continue
		}

		unlocked := domain.Unlocked{Reward: r.Reward, Condition: r.Condition.Kind, UnlockedAt: at}
		if item := r.Reward.CosmeticItem(); item != "" {
			if _, err := s.repo.InsertCosmetic(ctx, tx, &domain.UserCosmetic{
				UserID:     userID,
				ItemKey:    item,
				RewardID:   r.Reward.ID,
				AcquiredAt: at,
			}); err != nil {
				return nil, err
			}
			unlocked.Cosmetic = item
		}
		out = append(out, unlocked)
	}
	return out, nil
}

func (s *Service) ListForUser(ctx context.Context, userID snowflake.ID) ([]domain.RewardStatus, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	rewards, err := s.repo.ListRewards(ctx, s.db)
	if err != nil {
		return nil, err
	}
	unlocks, err := s.repo.ListUnlocks(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	at := make(map[snowflake.ID]time.Time, len(unlocks))
	for _, u := range unlocks {
		at[u.RewardID] = u.UnlockedAt
	}

	out := make([]domain.RewardStatus, 0, len(rewards))
	for _, r := range rewards {
		status := domain.RewardStatus{Reward: r}
		if t, ok := at[r.ID]; ok {
			t := t
			status.Unlocked = true
			status.UnlockedAt = &t
		}
		out = append(out, status)
	}
	return out, nil
}

func (s *Service) ListCosmetics(ctx context.Context, userID snowflake.ID) ([]domain.UserCosmetic, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	return s.repo.ListCosmetics(ctx, s.db, userID)
}
