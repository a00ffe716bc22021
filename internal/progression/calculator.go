package progression

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	lru "github.com/hashicorp/golang-lru"
	"github.com/smallbiznis/habitquest/internal/config"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cacheSize = 4096

type Params struct {
	fx.In

	Log         *zap.Logger
	Repo        ledgerdomain.Repository
	Progression *config.ProgressionConfigHolder `optional:"true"`
}

// Calculator derives level and streak state from the ledger.
type Calculator struct {
	log         *zap.Logger
	repo        ledgerdomain.Repository
	progression *config.ProgressionConfigHolder

	// mu makes the compare-and-store in store atomic.
	mu    sync.Mutex
	cache *lru.Cache
}

type cacheEntry struct {
	state State
	day   int64
	zone  string
	curve Curve
}

func NewCalculator(p Params) (*Calculator, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Calculator{
		log:         p.Log.Named("progression.calculator"),
		repo:        p.Repo,
		progression: p.Progression,
		cache:       cache,
	}, nil
}

func (c *Calculator) Curve() Curve {
	return CurveFromConfig(c.progression.Get())
}

// Recompute folds the user's whole ledger. db may be a transaction so the
// result includes rows it has not committed yet.
func (c *Calculator) Recompute(ctx context.Context, db *gorm.DB, userID snowflake.ID, asOf time.Time, loc *time.Location) (State, error) {
	acc, err := c.Load(ctx, db, userID, loc)
	if err != nil {
		return State{}, err
	}
	return acc.State(asOf), nil
}

// Load folds the user's ledger into an accumulator the caller can keep adding to.
func (c *Calculator) Load(ctx context.Context, db *gorm.DB, userID snowflake.ID, loc *time.Location) (*Accumulator, error) {
	rows, err := c.repo.Activity(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	acc := NewAccumulator(c.Curve(), loc)
	for _, row := range rows {
		acc.Add(row)
	}
	return acc, nil
}

// Current serves committed state, recomputing on a cache miss or when the
// cached entry was computed for another local day, zone or curve.
func (c *Calculator) Current(ctx context.Context, db *gorm.DB, userID snowflake.ID, asOf time.Time, loc *time.Location) (State, error) {
	if loc == nil {
		loc = time.UTC
	}
	entry := c.entry(asOf, loc, State{})

	if v, ok := c.cache.Get(userID); ok {
		cached := v.(cacheEntry)
		if cached.sameView(entry) {
			return cached.state, nil
		}
	}

	state, err := c.Recompute(ctx, db, userID, asOf, loc)
	if err != nil {
		return State{}, err
	}
	entry.state = state
	// A commit may have stored newer state while this read was recomputing.
	return c.store(userID, entry), nil
}

// Remember stores state computed inside a transaction; call it only after commit.
func (c *Calculator) Remember(userID snowflake.ID, asOf time.Time, loc *time.Location, state State) {
	if loc == nil {
		loc = time.UTC
	}
	c.store(userID, c.entry(asOf, loc, state))
}

func (c *Calculator) Invalidate(userID snowflake.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(userID)
}

func (c *Calculator) entry(asOf time.Time, loc *time.Location, state State) cacheEntry {
	return cacheEntry{
		state: state,
		day:   localDay(asOf, loc),
		zone:  loc.String(),
		curve: c.Curve(),
	}
}

// store keeps the entry that has seen the most ledger rows. The ledger is
// append-only, so a lower log count means the state was read before a commit.
// It returns the state to serve for entry's view.
func (c *Calculator) store(userID snowflake.ID, entry cacheEntry) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.cache.Peek(userID); ok {
		cached := v.(cacheEntry)
		if cached.state.LogCount > entry.state.LogCount {
			if cached.sameView(entry) {
				return cached.state
			}
			return entry.state
		}
	}
	c.cache.Add(userID, entry)
	return entry.state
}

func (e cacheEntry) sameView(other cacheEntry) bool {
	return e.day == other.day && e.zone == other.zone && e.curve == other.curve
}
