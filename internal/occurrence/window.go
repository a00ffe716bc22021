package occurrence

import (
	"time"

	questdomain "github.com/smallbiznis/habitquest/internal/quest/domain"
)

const secondsPerDay = 24 * 60 * 60

// weekBaseline is the Monday all week blocks are counted from.
var weekBaseline = time.Date(1970, time.January, 5, 0, 0, 0, 0, time.UTC)

// Window returns the half-open window [start, end) of the schedule containing at.
// Windows are anchored to fixed epochs in loc so that interval > 1 groups the
// same calendar periods regardless of when a quest was created.
func Window(s questdomain.Schedule, at time.Time, loc *time.Location, weekStart time.Weekday) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	interval := s.Interval
	if interval < 1 {
		interval = 1
	}

	local := at.In(loc)
	y, m, d := local.Date()

	switch s.Period {
	case questdomain.PeriodWeek:
		// Anchor on the configured week start on or before the Monday baseline.
		anchor := weekBaseline.AddDate(0, 0, -int(floorMod(int64(weekBaseline.Weekday()-weekStart), 7)))
		anchorDay := civilDay(anchor.Date())

		weekday := local.Weekday()
		currentWeekStart := civilDay(y, m, d) - floorMod(int64(weekday-weekStart), 7)
		weeks := floorDiv(currentWeekStart-anchorDay, 7)
		block := weeks - floorMod(weeks, int64(interval))

		startDay := anchorDay + block*7
		return localMidnight(startDay, loc), localMidnight(startDay+int64(interval)*7, loc)

	case questdomain.PeriodMonth:
		months := int64(y-1970)*12 + int64(m-1)
		block := months - floorMod(months, int64(interval))
		start := time.Date(1970, time.Month(1+block), 1, 0, 0, 0, 0, loc)
		end := time.Date(1970, time.Month(1+block+int64(interval)), 1, 0, 0, 0, 0, loc)
		return start, end

	default:
		day := civilDay(y, m, d)
		block := day - floorMod(day, int64(interval))
		return localMidnight(block, loc), localMidnight(block+int64(interval), loc)
	}
}

// civilDay counts calendar days since 1970-01-01 for a date, independent of zone.
func civilDay(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}

func localMidnight(day int64, loc *time.Location) time.Time {
	return time.Date(1970, time.January, 1+int(day), 0, 0, 0, 0, loc)
}

func floorMod(a, b int64) int64 {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

func floorDiv(a, b int64) int64 {
	return (a - floorMod(a, b)) / b
}
