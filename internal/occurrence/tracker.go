package occurrence

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	questdomain "github.com/smallbiznis/habitquest/internal/quest/domain"
	"gorm.io/gorm"
)

var ErrAlreadyCompleted = errors.New("already_completed")

// Counter counts a quest's completion logs with occurred_at in [from, to).
type Counter interface {
	CountForQuest(ctx context.Context, db *gorm.DB, userID, questID snowflake.ID, from, to time.Time) (int64, error)
}

type Tracker struct {
	counter Counter
}

func NewTracker(counter Counter) *Tracker {
	return &Tracker{counter: counter}
}

// Current reports the window containing at and how many occurrences it already holds.
func (t *Tracker) Current(ctx context.Context, db *gorm.DB, quest questdomain.Quest, at time.Time, loc *time.Location, weekStart time.Weekday) (questdomain.WindowState, error) {
	start, end := Window(quest.Schedule, at, loc, weekStart)
	count, err := t.counter.CountForQuest(ctx, db, quest.UserID, quest.ID, start.UTC(), end.UTC())
	if err != nil {
		return questdomain.WindowState{}, err
	}

	target := quest.Schedule.TargetOccurrences
	if target < 1 {
		target = 1
	}
	completed := int(count)
	remaining := target - completed
	if remaining < 0 {
		remaining = 0
	}
	return questdomain.WindowState{
		PeriodStart: start,
		PeriodEnd:   end,
		Target:      target,
		Completed:   completed,
		Remaining:   remaining,
	}, nil
}

// CheckAndReserve must run inside the completion transaction while the user is
// serialized. It writes nothing; the caller's ledger append is the reservation.
// The returned state already accounts for that append.
func (t *Tracker) CheckAndReserve(ctx context.Context, tx *gorm.DB, quest questdomain.Quest, at time.Time, loc *time.Location, weekStart time.Weekday) (questdomain.WindowState, error) {
	state, err := t.Current(ctx, tx, quest, at, loc, weekStart)
	if err != nil {
		return questdomain.WindowState{}, err
	}
	if state.Completed >= state.Target {
		return state, ErrAlreadyCompleted
	}
	state.Completed++
	state.Remaining--
	return state, nil
}
