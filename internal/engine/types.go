package engine

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	profiledomain "github.com/smallbiznis/habitquest/internal/profile/domain"
	"github.com/smallbiznis/habitquest/internal/progression"
	questdomain "github.com/smallbiznis/habitquest/internal/quest/domain"
	rewarddomain "github.com/smallbiznis/habitquest/internal/reward/domain"
	snapshotdomain "github.com/smallbiznis/habitquest/internal/snapshot/domain"
)

type CompleteTaskRequest struct {
	UserID  snowflake.ID
	QuestID snowflake.ID
	// OccurredAt backdates the completion; nil means now.
	OccurredAt *time.Time
}

type ManualLogRequest struct {
	UserID     snowflake.ID  `json:"-"`
	DomainID   snowflake.ID  `json:"domain_id"`
	QuestID    *snowflake.ID `json:"quest_id"`
	Quantity   *float64      `json:"quantity"`
	Unit       string        `json:"unit"`
	Notes      string        `json:"notes"`
	OccurredAt *time.Time    `json:"occurred_at"`
	XP         *int64        `json:"xp"`
	Points     *int64        `json:"points"`
}

type CompletionResult struct {
	Log         ledgerdomain.CompletionLog `json:"log"`
	Level       int                        `json:"level"`
	XPTotal     int64                      `json:"xp_total"`
	XPToNext    int64                      `json:"xp_to_next"`
	StreakDays  int                        `json:"streak_days"`
	LeveledUp   bool                       `json:"leveled_up"`
	Window      *questdomain.WindowState   `json:"window,omitempty"`
	Unlocked    []rewarddomain.Unlocked    `json:"unlocked_rewards"`
	Progression progression.State          `json:"-"`
}

// Remaining is the occurrences left in the quest window, or -1 for manual logs.
func (r CompletionResult) Remaining() int {
	if r.Window == nil {
		return -1
	}
	return r.Window.Remaining
}

type Dashboard struct {
	Profile     profiledomain.Profile        `json:"profile"`
	Progression progression.State            `json:"progression"`
	Weekly      []snapshotdomain.WeeklyStat  `json:"weekly"`
	Quests      []questdomain.QuestView      `json:"quests"`
	Recent      []ledgerdomain.CompletionLog `json:"recent_logs"`
	Badges      []Badge                      `json:"badges"`
	Cosmetics   []rewarddomain.UserCosmetic  `json:"cosmetics"`
}

// Badge is a displayable achievement: an unlocked badge or trophy, or a live streak.
type Badge struct {
	Key        string     `json:"key"`
	Name       string     `json:"name"`
	Kind       string     `json:"kind"`
	Value      int64      `json:"value,omitempty"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidQuest     = errors.New("invalid_quest")
	ErrOccurredInFuture = errors.New("occurred_in_future")
	ErrDomainMismatch   = errors.New("domain_mismatch")
	ErrInvalidQuantity  = errors.New("invalid_quantity")
)
