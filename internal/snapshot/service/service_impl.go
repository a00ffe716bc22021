package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/habitquest/internal/catalog/domain"
	"github.com/smallbiznis/habitquest/internal/clock"
	"github.com/smallbiznis/habitquest/internal/config"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/habitquest/internal/observability/metrics"
	"github.com/smallbiznis/habitquest/internal/occurrence"
	profiledomain "github.com/smallbiznis/habitquest/internal/profile/domain"
	questdomain "github.com/smallbiznis/habitquest/internal/quest/domain"
	"github.com/smallbiznis/habitquest/internal/snapshot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	replayBatchSize  = 500
	profileBatchSize = 200
	rebuildTimeout   = 30 * time.Minute
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	LedgerRepo  ledgerdomain.Repository
	ProfileRepo profiledomain.Repository
	CatalogRepo catalogdomain.Repository
	Progression *config.ProgressionConfigHolder `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics             `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	ledgerRepo  ledgerdomain.Repository
	profileRepo profiledomain.Repository
	catalogRepo catalogdomain.Repository
	progression *config.ProgressionConfigHolder
	obsMetrics  *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("snapshot.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		ledgerRepo:  p.LedgerRepo,
		profileRepo: p.ProfileRepo,
		catalogRepo: p.CatalogRepo,
		progression: p.Progression,
		obsMetrics:  p.ObsMetrics,
	}
}

type periodRef struct {
	period domain.Period
	key    string
	start  time.Time
}

// periodsFor returns the local day and week containing at.
func periodsFor(at time.Time, loc *time.Location, weekStart time.Weekday) [2]periodRef {
	dayStart, _ := occurrence.Window(questdomain.Schedule{Period: questdomain.PeriodDay, Interval: 1}, at, loc, weekStart)
	weekStartAt, _ := occurrence.Window(questdomain.Schedule{Period: questdomain.PeriodWeek, Interval: 1}, at, loc, weekStart)
	return [2]periodRef{
		{period: domain.PeriodDay, key: dayStart.Format(domain.PeriodKeyLayout), start: dayStart.UTC()},
		{period: domain.PeriodWeek, key: weekStartAt.Format(domain.PeriodKeyLayout), start: weekStartAt.UTC()},
	}
}

func (s *Service) OnAppend(ctx context.Context, tx *gorm.DB, log ledgerdomain.CompletionLog, profile profiledomain.Profile) error {
	if tx == nil {
		tx = s.db
	}
	now := s.clock.Now().UTC()
	for _, ref := range periodsFor(log.OccurredAt, profile.Location(time.UTC), profile.WeekStart()) {
		if err := s.repo.Add(ctx, tx, domain.Snapshot{
			UserID:      log.UserID,
			DomainID:    log.DomainID,
			Period:      ref.period,
			PeriodKey:   ref.key,
			PeriodStart: ref.start,
			PointsTotal: log.PointsAwarded,
			XPTotal:     log.XPAwarded,
			LogCount:    1,
			ComputedAt:  now,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) WeeklyStats(ctx context.Context, db *gorm.DB, profile profiledomain.Profile, asOf time.Time) ([]domain.WeeklyStat, error) {
	if db == nil {
		db = s.db
	}
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}
	week := periodsFor(asOf, profile.Location(time.UTC), profile.WeekStart())[1]

	domains, err := s.catalogRepo.ListDomains(ctx, db)
	if err != nil {
		return nil, err
	}
	stored, err := s.profileRepo.ListSettings(ctx, db, profile.ID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListForPeriod(ctx, db, profile.ID, domain.PeriodWeek, week.key)
	if err != nil {
		return nil, err
	}
	byDomain := make(map[snowflake.ID]domain.Snapshot, len(rows))
	for _, row := range rows {
		byDomain[row.DomainID] = row
	}

	settings := profiledomain.ResolveSettings(domains, stored, s.progression.Get().DefaultWeeklyTarget)
	stats := make([]domain.WeeklyStat, 0, len(settings))
	var tail []domain.WeeklyStat
	for _, setting := range settings {
		row, hasData := byDomain[setting.DomainID]
		if !setting.Enabled && !hasData {
			continue
		}

		stat := domain.WeeklyStat{
			DomainID:     setting.DomainID,
			DomainKey:    setting.DomainKey,
			DomainName:   setting.DomainName,
			OrderIndex:   setting.OrderIndex,
			Enabled:      setting.Enabled,
			WeeklyPoints: row.PointsTotal,
			WeeklyXP:     row.XPTotal,
		}
		if !setting.Enabled {
			tail = append(tail, stat)
			continue
		}
		stat.WeeklyTarget = setting.WeeklyTargetPoints
		stat.RawRatio, stat.ProgressRatio = domain.Ratios(stat.WeeklyPoints, stat.WeeklyTarget)
		stats = append(stats, stat)
	}
	return append(stats, tail...), nil
}

type aggregateKey struct {
	domainID snowflake.ID
	period   domain.Period
	key      string
}

type aggregate struct {
	start  time.Time
	totals domain.Totals
}

// replay re-aggregates the user's ledger in keyset order.
func (s *Service) replay(ctx context.Context, db *gorm.DB, profile profiledomain.Profile) (map[aggregateKey]*aggregate, error) {
	loc := profile.Location(time.UTC)
	weekStart := profile.WeekStart()
	out := make(map[aggregateKey]*aggregate)

	var cursor ledgerdomain.Cursor
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logs, err := s.ledgerRepo.Scan(ctx, db, profile.ID, cursor, replayBatchSize)
		if err != nil {
			return nil, err
		}
		if len(logs) == 0 {
			return out, nil
		}

		for _, log := range logs {
			for _, ref := range periodsFor(log.OccurredAt, loc, weekStart) {
				k := aggregateKey{domainID: log.DomainID, period: ref.period, key: ref.key}
				agg, ok := out[k]
				if !ok {
					agg = &aggregate{start: ref.start}
					out[k] = agg
				}
				agg.totals.PointsTotal += log.PointsAwarded
				agg.totals.XPTotal += log.XPAwarded
				agg.totals.LogCount++
			}
			cursor = ledgerdomain.Cursor{OccurredAt: log.OccurredAt, ID: log.ID}
		}
	}
}

func (s *Service) Verify(ctx context.Context, userID snowflake.ID) ([]domain.Drift, error) {
	profile, err := s.loadProfile(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	var drifts []domain.Drift
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expected, err := s.replay(ctx, tx, *profile)
		if err != nil {
			return err
		}
		stored, err := s.repo.ListForUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		seen := make(map[aggregateKey]struct{}, len(stored))
		for _, row := range stored {
			k := aggregateKey{domainID: row.DomainID, period: row.Period, key: row.PeriodKey}
			seen[k] = struct{}{}
			have := domain.Totals{PointsTotal: row.PointsTotal, XPTotal: row.XPTotal, LogCount: row.LogCount}
			var want domain.Totals
			if agg, ok := expected[k]; ok {
				want = agg.totals
			}
			if have != want {
				drifts = append(drifts, domain.Drift{DomainID: row.DomainID, Period: row.Period, PeriodKey: row.PeriodKey, Stored: have, Expected: want})
			}
		}
		for k, agg := range expected {
			if _, ok := seen[k]; ok {
				continue
			}
			drifts = append(drifts, domain.Drift{DomainID: k.domainID, Period: k.period, PeriodKey: k.key, Expected: agg.totals})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(drifts, func(i, j int) bool {
		a, b := drifts[i], drifts[j]
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		if a.PeriodKey != b.PeriodKey {
			return a.PeriodKey < b.PeriodKey
		}
		return a.DomainID < b.DomainID
	})
	if drifts == nil {
		drifts = []domain.Drift{}
	}
	return drifts, nil
}

// Rebuild replaces snapshots with a replay of the ledger. A nil userID rebuilds every user.
func (s *Service) Rebuild(ctx context.Context, userID *snowflake.ID) error {
	if userID != nil {
		if *userID == 0 {
			return domain.ErrInvalidUser
		}
		return s.rebuildUser(ctx, *userID)
	}

	var lastID snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var ids []snowflake.ID
		if err := s.db.WithContext(ctx).
			Model(&profiledomain.Profile{}).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(profileBatchSize).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		for _, id := range ids {
			if err := s.rebuildUser(ctx, id); err != nil {
				return err
			}
			lastID = id
		}
	}
}

func (s *Service) rebuildUser(ctx context.Context, userID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Same lock as completions, so no append interleaves with the replay.
		profile, err := s.profileRepo.FindByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if profile == nil {
			return profiledomain.ErrUserNotFound
		}
		return s.RebuildTx(ctx, tx, *profile)
	})
}

// RebuildTx replaces the user's snapshots on tx, keyed by profile's zone and week start.
// The caller must hold the profile row lock.
func (s *Service) RebuildTx(ctx context.Context, tx *gorm.DB, profile profiledomain.Profile) error {
	aggregates, err := s.replay(ctx, tx, profile)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteForUser(ctx, tx, profile.ID); err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	rows := make([]domain.Snapshot, 0, len(aggregates))
	for k, agg := range aggregates {
		rows = append(rows, domain.Snapshot{
			UserID:      profile.ID,
			DomainID:    k.domainID,
			Period:      k.period,
			PeriodKey:   k.key,
			PeriodStart: agg.start,
			PointsTotal: agg.totals.PointsTotal,
			XPTotal:     agg.totals.XPTotal,
			LogCount:    agg.totals.LogCount,
			ComputedAt:  now,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PeriodStart.Equal(rows[j].PeriodStart) {
			return rows[i].DomainID < rows[j].DomainID
		}
		return rows[i].PeriodStart.Before(rows[j].PeriodStart)
	})
	if err := s.repo.InsertBatch(ctx, tx, rows); err != nil {
		return err
	}

	s.log.Info("snapshots rebuilt",
		zap.String("user_id", profile.ID.String()),
		zap.Int("rows", len(rows)),
	)
	return nil
}

func (s *Service) EnqueueRebuild(ctx context.Context, userID *snowflake.ID) (domain.RebuildRequest, error) {
	if s.genID == nil {
		return domain.RebuildRequest{}, errors.New("missing_id_generator")
	}
	if userID != nil {
		if _, err := s.loadProfile(ctx, s.db, *userID); err != nil {
			return domain.RebuildRequest{}, err
		}
	}

	req := domain.RebuildRequest{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Status:    domain.RebuildStatusPending,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.InsertRebuildRequest(ctx, s.db, &req); err != nil {
		return domain.RebuildRequest{}, err
	}
	return req, nil
}

func (s *Service) GetRebuild(ctx context.Context, id snowflake.ID) (domain.RebuildRequest, error) {
	req, err := s.repo.FindRebuildRequest(ctx, s.db, id)
	if err != nil {
		return domain.RebuildRequest{}, err
	}
	if req == nil {
		return domain.RebuildRequest{}, domain.ErrRebuildNotFound
	}
	return *req, nil
}

// ProcessRebuildRequests runs pending rebuild requests in creation order.
func (s *Service) ProcessRebuildRequests(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.repo.ListPendingRebuilds(ctx, s.db, limit)
	if err != nil {
		return err
	}

	var jobErr error
	for _, row := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.processRebuildRequest(ctx, row); err != nil {
			jobErr = errors.Join(jobErr, err)
			s.log.Warn("failed to rebuild snapshots", zap.Error(err), zap.String("request_id", row.ID.String()))
		}
	}
	return jobErr
}

func (s *Service) processRebuildRequest(ctx context.Context, row domain.RebuildRequest) error {
	rebuildCtx, cancel := context.WithTimeout(ctx, rebuildTimeout)
	defer cancel()

	won, err := s.repo.TransitionRebuild(rebuildCtx, s.db, row.ID,
		domain.RebuildStatusPending, domain.RebuildStatusProcessing,
		map[string]any{"started_at": s.clock.Now().UTC()},
	)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	rebuildErr := s.Rebuild(rebuildCtx, row.UserID)
	completedAt := s.clock.Now().UTC()
	if rebuildErr != nil {
		s.recordRebuild(ctx, string(domain.RebuildStatusFailed))
		_, err := s.repo.TransitionRebuild(rebuildCtx, s.db, row.ID,
			domain.RebuildStatusProcessing, domain.RebuildStatusFailed,
			map[string]any{"error": errorSummary(rebuildErr), "completed_at": completedAt},
		)
		return errors.Join(rebuildErr, err)
	}

	s.recordRebuild(ctx, string(domain.RebuildStatusCompleted))
	_, err = s.repo.TransitionRebuild(rebuildCtx, s.db, row.ID,
		domain.RebuildStatusProcessing, domain.RebuildStatusCompleted,
		map[string]any{"completed_at": completedAt},
	)
	return err
}

func (s *Service) recordRebuild(ctx context.Context, status string) {
	if s.obsMetrics == nil {
		return
	}
	s.obsMetrics.RecordSnapshotRebuild(ctx, status)
}

func (s *Service) loadProfile(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*profiledomain.Profile, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	profile, err := s.profileRepo.FindByID(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, profiledomain.ErrUserNotFound
	}
	return profile, nil
}

func errorSummary(err error) string {
	if err == nil {
		return ""
	}
	value := strings.TrimSpace(err.Error())
	if value == "" {
		return "unknown_error"
	}
	if len(value) > 256 {
		return value[:256]
	}
	return value
}
