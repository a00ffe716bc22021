package progression

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
)

type State struct {
	Level          int                          `json:"level"`
	XPTotal        int64                        `json:"xp_total"`
	XPIntoLevel    int64                        `json:"xp_into_level"`
	XPForLevel     int64                        `json:"xp_for_level"`
	XPToNext       int64                        `json:"xp_to_next"`
	PointsTotal    int64                        `json:"points_total"`
	LogCount       int64                        `json:"log_count"`
	StreakDays     int                          `json:"streak_days"`
	BestStreakDays int                          `json:"best_streak_days"`
	Domains        map[snowflake.ID]DomainState `json:"domains"`
}

type DomainState struct {
	LogCount       int64 `json:"log_count"`
	XPTotal        int64 `json:"xp_total"`
	PointsTotal    int64 `json:"points_total"`
	StreakDays     int   `json:"streak_days"`
	BestStreakDays int   `json:"best_streak_days"`
}

// Domain returns the per-domain state, zero when the user never logged there.
func (s State) Domain(id snowflake.ID) DomainState {
	return s.Domains[id]
}

// Accumulator folds ledger activity into a State. Folding the same set of logs in
// any order yields the same State.
type Accumulator struct {
	curve   Curve
	loc     *time.Location
	totals  tally
	domains map[snowflake.ID]*tally
}

type tally struct {
	logCount int64
	xp       int64
	points   int64
	days     map[int64]struct{}
}

func (t *tally) add(a ledgerdomain.Activity, day int64) {
	t.logCount++
	t.xp = satAdd(t.xp, a.XPAwarded)
	t.points = satAdd(t.points, a.Points)
	if t.days == nil {
		t.days = make(map[int64]struct{})
	}
	t.days[day] = struct{}{}
}

func NewAccumulator(curve Curve, loc *time.Location) *Accumulator {
	if loc == nil {
		loc = time.UTC
	}
	return &Accumulator{
		curve:   curve,
		loc:     loc,
		domains: make(map[snowflake.ID]*tally),
	}
}

func (a *Accumulator) Add(activity ledgerdomain.Activity) {
	day := localDay(activity.OccurredAt, a.loc)
	a.totals.add(activity, day)

	d, ok := a.domains[activity.DomainID]
	if !ok {
		d = &tally{}
		a.domains[activity.DomainID] = d
	}
	d.add(activity, day)
}

// State evaluates the folded activity as of the local calendar day of asOf.
func (a *Accumulator) State(asOf time.Time) State {
	today := localDay(asOf, a.loc)

	level, floor := a.curve.Level(a.totals.xp)
	cost := a.curve.Cost(level)
	current, best := streaks(a.totals.days, today)

	state := State{
		Level:          level,
		XPTotal:        a.totals.xp,
		XPIntoLevel:    a.totals.xp - floor,
		XPForLevel:     cost,
		XPToNext:       satAdd(floor, cost) - a.totals.xp,
		PointsTotal:    a.totals.points,
		LogCount:       a.totals.logCount,
		StreakDays:     current,
		BestStreakDays: best,
		Domains:        make(map[snowflake.ID]DomainState, len(a.domains)),
	}
	for id, d := range a.domains {
		cur, bst := streaks(d.days, today)
		state.Domains[id] = DomainState{
			LogCount:       d.logCount,
			XPTotal:        d.xp,
			PointsTotal:    d.points,
			StreakDays:     cur,
			BestStreakDays: bst,
		}
	}
	return state
}

// streaks returns the run of active days ending today or yesterday, and the
// longest run up to today. Days after today are ignored.
func streaks(days map[int64]struct{}, today int64) (int, int) {
	if len(days) == 0 {
		return 0, 0
	}

	current := 0
	cursor := today
	if _, ok := days[cursor]; !ok {
		cursor--
	}
	for {
		if _, ok := days[cursor]; !ok {
			break
		}
		current++
		cursor--
	}

	sorted := make([]int64, 0, len(days))
	for d := range days {
		if d <= today {
			sorted = append(sorted, d)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	best, run := 0, 0
	for i, d := range sorted {
		if i > 0 && d == sorted[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return current, best
}

// localDay numbers the calendar day of t in loc, counted from 1970-01-01.
func localDay(t time.Time, loc *time.Location) int64 {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}
