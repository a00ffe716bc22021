package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/habitquest/internal/catalog/domain"
	"github.com/smallbiznis/habitquest/internal/clock"
	"github.com/smallbiznis/habitquest/internal/config"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	"github.com/smallbiznis/habitquest/internal/lock"
	obsmetrics "github.com/smallbiznis/habitquest/internal/observability/metrics"
	"github.com/smallbiznis/habitquest/internal/occurrence"
	profiledomain "github.com/smallbiznis/habitquest/internal/profile/domain"
	"github.com/smallbiznis/habitquest/internal/progression"
	questdomain "github.com/smallbiznis/habitquest/internal/quest/domain"
	rewarddomain "github.com/smallbiznis/habitquest/internal/reward/domain"
	snapshotdomain "github.com/smallbiznis/habitquest/internal/snapshot/domain"
	"github.com/smallbiznis/habitquest/pkg/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	kindQuest  = "quest"
	kindManual = "manual"

	// futureSkew tolerates client clocks slightly ahead of ours.
	futureSkew = time.Minute

	maxTxAttempts = 3
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Locker      lock.Locker
	Progression *config.ProgressionConfigHolder `optional:"true"`

	ProfileRepo profiledomain.Repository
	QuestRepo   questdomain.Repository
	QuestSvc    questdomain.Service
	CatalogRepo catalogdomain.Repository
	LedgerSvc   ledgerdomain.Service
	Tracker     *occurrence.Tracker
	Calculator  *progression.Calculator
	SnapshotSvc snapshotdomain.Service
	RewardSvc   rewarddomain.Service

	TracerProvider trace.TracerProvider      `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics       `optional:"true"`
	EngineMetrics  *obsmetrics.EngineMetrics `optional:"true"`
}

// Engine applies completions: occurrence check, ledger append, snapshot update,
// level and streak recompute and reward evaluation, in one transaction per call.
type Engine struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	locker      lock.Locker
	progression *config.ProgressionConfigHolder

	profileRepo profiledomain.Repository
	questRepo   questdomain.Repository
	questSvc    questdomain.Service
	catalogRepo catalogdomain.Repository
	ledgerSvc   ledgerdomain.Service
	tracker     *occurrence.Tracker
	calculator  *progression.Calculator
	snapshotSvc snapshotdomain.Service
	rewardSvc   rewarddomain.Service

	tracer        trace.Tracer
	obsMetrics    *obsmetrics.Metrics
	engineMetrics *obsmetrics.EngineMetrics
}

func New(p Params) *Engine {
	tp := p.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Engine{
		db:            p.DB,
		log:           p.Log.Named("engine"),
		clock:         p.Clock,
		locker:        p.Locker,
		progression:   p.Progression,
		profileRepo:   p.ProfileRepo,
		questRepo:     p.QuestRepo,
		questSvc:      p.QuestSvc,
		catalogRepo:   p.CatalogRepo,
		ledgerSvc:     p.LedgerSvc,
		tracker:       p.Tracker,
		calculator:    p.Calculator,
		snapshotSvc:   p.SnapshotSvc,
		rewardSvc:     p.RewardSvc,
		tracer:        tp.Tracer("habitquest/engine"),
		obsMetrics:    p.ObsMetrics,
		engineMetrics: p.EngineMetrics,
	}
}

// pending is what a committed completion reports to metrics and the cache.
type pending struct {
	result    CompletionResult
	domainKey string
	loc       *time.Location
	asOf      time.Time
}

func (e *Engine) CompleteTask(ctx context.Context, req CompleteTaskRequest) (result CompletionResult, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.complete_task", trace.WithAttributes(
		attribute.String("user_id", req.UserID.String()),
		attribute.String("quest_id", req.QuestID.String()),
	))
	started := time.Now()
	defer func() { e.finish(span, kindQuest, started, err) }()

	if req.UserID == 0 {
		return CompletionResult{}, ErrInvalidUser
	}
	if req.QuestID == 0 {
		return CompletionResult{}, ErrInvalidQuest
	}
	now := e.clock.Now().UTC()
	occurredAt := now
	if req.OccurredAt != nil && !req.OccurredAt.IsZero() {
		occurredAt = req.OccurredAt.UTC()
	}
	if occurredAt.After(now.Add(futureSkew)) {
		return CompletionResult{}, ErrOccurredInFuture
	}

	release, err := e.acquire(ctx, req.UserID)
	if err != nil {
		return CompletionResult{}, err
	}
	defer release()

	var out pending
	err = e.transact(ctx, func(tx *gorm.DB) error {
		profile, err := e.lockProfile(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		quest, err := e.ownedQuest(ctx, tx, req.UserID, req.QuestID)
		if err != nil {
			return err
		}
		if !quest.Active {
			return questdomain.ErrQuestInactive
		}

		loc := profile.Location(time.UTC)
		window, err := e.tracker.CheckAndReserve(ctx, tx, quest, occurredAt, loc, profile.WeekStart())
		if err != nil {
			return err
		}

		source := ledgerdomain.SourceQuest
		if localDate(occurredAt, loc) != localDate(now, loc) {
			source = ledgerdomain.SourceBackfill
		}
		questID := quest.ID
		out, err = e.apply(ctx, tx, *profile, ledgerdomain.AppendRequest{
			UserID:     req.UserID,
			QuestID:    &questID,
			DomainID:   quest.DomainID,
			OccurredAt: occurredAt,
			Unit:       quest.Unit,
			XP:         quest.XP,
			Points:     quest.Points,
			Source:     source,
		}, now)
		if err != nil {
			return err
		}
		out.result.Window = &window
		return nil
	})
	if err != nil {
		return CompletionResult{}, err
	}

	e.committed(ctx, req.UserID, out)
	return out.result, nil
}

// LogManual records a free-form entry. It skips occurrence accounting; with a
// quest the quest's XP and points are scaled by quantity, explicit values win.
func (e *Engine) LogManual(ctx context.Context, req ManualLogRequest) (result CompletionResult, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.log_manual", trace.WithAttributes(
		attribute.String("user_id", req.UserID.String()),
	))
	started := time.Now()
	defer func() { e.finish(span, kindManual, started, err) }()

	if req.UserID == 0 {
		return CompletionResult{}, ErrInvalidUser
	}
	if req.Quantity != nil && (math.IsNaN(*req.Quantity) || math.IsInf(*req.Quantity, 0) || *req.Quantity < 0) {
		return CompletionResult{}, ErrInvalidQuantity
	}
	now := e.clock.Now().UTC()
	occurredAt := now
	if req.OccurredAt != nil && !req.OccurredAt.IsZero() {
		occurredAt = req.OccurredAt.UTC()
	}
	if occurredAt.After(now.Add(futureSkew)) {
		return CompletionResult{}, ErrOccurredInFuture
	}

	release, err := e.acquire(ctx, req.UserID)
	if err != nil {
		return CompletionResult{}, err
	}
	defer release()

	var out pending
	err = e.transact(ctx, func(tx *gorm.DB) error {
		profile, err := e.lockProfile(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		entry := ledgerdomain.AppendRequest{
			UserID:     req.UserID,
			DomainID:   req.DomainID,
			OccurredAt: occurredAt,
			Quantity:   req.Quantity,
			Unit:       req.Unit,
			Notes:      req.Notes,
			Source:     ledgerdomain.SourceManual,
		}

		if req.QuestID != nil && *req.QuestID != 0 {
			quest, err := e.ownedQuest(ctx, tx, req.UserID, *req.QuestID)
			if err != nil {
				return err
			}
			if !quest.Active {
				return questdomain.ErrQuestInactive
			}
			if entry.DomainID == 0 {
				entry.DomainID = quest.DomainID
			} else if entry.DomainID != quest.DomainID {
				return ErrDomainMismatch
			}
			if entry.Unit == "" {
				entry.Unit = quest.Unit
			}
			questID := quest.ID
			entry.QuestID = &questID
			entry.XP = scale(quest.XP, req.Quantity)
			entry.Points = scale(quest.Points, req.Quantity)
		}

		if req.XP != nil {
			entry.XP = *req.XP
		}
		if req.Points != nil {
			entry.Points = *req.Points
		}

		out, err = e.apply(ctx, tx, *profile, entry, now)
		return err
	})
	if err != nil {
		return CompletionResult{}, err
	}

	e.committed(ctx, req.UserID, out)
	return out.result, nil
}

// apply runs every write after validation, in order, on tx.
func (e *Engine) apply(ctx context.Context, tx *gorm.DB, profile profiledomain.Profile, req ledgerdomain.AppendRequest, now time.Time) (pending, error) {
	if limit := e.progression.Get().MaxAwardPerLog; req.XP > limit || req.Points > limit {
		return pending{}, ledgerdomain.ErrInvalidAmount
	}
	d, err := e.catalogRepo.FindDomainByID(ctx, tx, req.DomainID)
	if err != nil {
		return pending{}, err
	}
	if d == nil {
		return pending{}, catalogdomain.ErrDomainNotFound
	}

	loc := profile.Location(time.UTC)
	acc, err := e.calculator.Load(ctx, tx, profile.ID, loc)
	if err != nil {
		return pending{}, err
	}
	before := acc.State(now)

	entry, err := e.ledgerSvc.Append(ctx, tx, req)
	if err != nil {
		return pending{}, err
	}
	if err := e.snapshotSvc.OnAppend(ctx, tx, entry, profile); err != nil {
		return pending{}, err
	}

	acc.Add(entry.Activity())
	state := acc.State(now)

	weekly, err := e.snapshotSvc.WeeklyStats(ctx, tx, profile, now)
	if err != nil {
		return pending{}, err
	}
	facts, err := e.facts(ctx, tx, state, weekly)
	if err != nil {
		return pending{}, err
	}
	unlocked, err := e.rewardSvc.Evaluate(ctx, tx, profile.ID, facts, now)
	if err != nil {
		return pending{}, err
	}
	if unlocked == nil {
		unlocked = []rewarddomain.Unlocked{}
	}

	return pending{
		result: CompletionResult{
			Log:         entry,
			Level:       state.Level,
			XPTotal:     state.XPTotal,
			XPToNext:    state.XPToNext,
			StreakDays:  state.StreakDays,
			LeveledUp:   state.Level > before.Level,
			Unlocked:    unlocked,
			Progression: state,
		},
		domainKey: d.Key,
		loc:       loc,
		asOf:      now,
	}, nil
}

func (e *Engine) facts(ctx context.Context, tx *gorm.DB, state progression.State, weekly []snapshotdomain.WeeklyStat) (rewarddomain.Facts, error) {
	facts := rewarddomain.Facts{
		LogCount:      state.LogCount,
		DomainCounts:  make(map[snowflake.ID]int64, len(state.Domains)),
		StreakDays:    state.StreakDays,
		DomainStreaks: make(map[snowflake.ID]int, len(state.Domains)),
		Level:         state.Level,
		Weekly:        make([]rewarddomain.WeeklyRatio, 0, len(weekly)),
	}
	for id, d := range state.Domains {
		facts.DomainCounts[id] = d.LogCount
		facts.DomainStreaks[id] = d.StreakDays
	}
	for _, w := range weekly {
		facts.Weekly = append(facts.Weekly, rewarddomain.WeeklyRatio{
			DomainID: w.DomainID,
			Enabled:  w.Enabled,
			Target:   w.WeeklyTarget,
			RawRatio: w.RawRatio,
		})
	}

	savings, err := e.catalogRepo.FindDomainByKey(ctx, tx, e.progression.Get().SavingsDomainKey)
	if err != nil {
		return rewarddomain.Facts{}, err
	}
	if savings != nil {
		facts.SavingsTotal = state.Domain(savings.ID).PointsTotal
	}
	return facts, nil
}

// committed runs after the transaction commits while the user lock is still held.
func (e *Engine) committed(ctx context.Context, userID snowflake.ID, out pending) {
	e.calculator.Remember(userID, out.asOf, out.loc, out.result.Progression)

	log := out.result.Log
	e.obsMetrics.RecordLedgerEntry(ctx, string(log.Source), out.domainKey, log.XPAwarded)
	for _, u := range out.result.Unlocked {
		e.obsMetrics.RecordRewardUnlock(ctx, string(u.Reward.Type), string(u.Condition))
	}
	e.engineMetrics.AddUnlocks(len(out.result.Unlocked))

	fields := []zap.Field{
		zap.String("user_id", userID.String()),
		zap.String("log_id", log.ID.String()),
		zap.String("source", string(log.Source)),
		zap.Int64("xp", log.XPAwarded),
		zap.Int("level", out.result.Level),
		zap.Int("streak_days", out.result.StreakDays),
	}
	if n := len(out.result.Unlocked); n > 0 {
		fields = append(fields, zap.Int("unlocked", n))
	}
	e.log.Info("completion recorded", fields...)
}

// transact reruns fn after serialization failures and deadlocks; fn must only
// publish its results on success.
func (e *Engine) transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = e.db.WithContext(ctx).Transaction(fn)
		if !db.IsRetryableTxErr(err) {
			return err
		}
		e.log.Warn("retrying transaction", zap.Int("attempt", attempt), zap.Error(err))
	}
	return err
}

func (e *Engine) acquire(ctx context.Context, userID snowflake.ID) (func(), error) {
	started := time.Now()
	release, err := e.locker.Acquire(ctx, "user:"+userID.String())
	e.engineMetrics.ObserveLockWait(time.Since(started))
	return release, err
}

func (e *Engine) lockProfile(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (*profiledomain.Profile, error) {
	profile, err := e.profileRepo.FindByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, profiledomain.ErrUserNotFound
	}
	return profile, nil
}

func (e *Engine) ownedQuest(ctx context.Context, tx *gorm.DB, userID, questID snowflake.ID) (questdomain.Quest, error) {
	quest, err := e.questRepo.FindByID(ctx, tx, questID)
	if err != nil {
		return questdomain.Quest{}, err
	}
	if quest == nil || quest.Deleted() {
		return questdomain.Quest{}, questdomain.ErrQuestNotFound
	}
	if quest.UserID != userID {
		return questdomain.Quest{}, questdomain.ErrQuestNotOwned
	}
	return *quest, nil
}

func (e *Engine) finish(span trace.Span, kind string, started time.Time, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, occurrence.ErrAlreadyCompleted):
		outcome = "already_completed"
		span.SetAttributes(attribute.Bool("already_completed", true))
	default:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	e.engineMetrics.ObserveCompletion(kind, outcome, time.Since(started))
	span.End()
}

func scale(base int64, quantity *float64) int64 {
	if quantity == nil {
		return base
	}
	scaled := *quantity * float64(base)
	// Out-of-range conversions are undefined; saturate and let the award cap reject it.
	if scaled >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(scaled)
}

func localDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
