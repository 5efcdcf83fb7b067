package mockdata

// UsageRecord is the screen time of one app for one day.
type UsageRecord struct {
	AppName      string `json:"appName"`
	TimeInMillis int64  `json:"timeInMillis"`
	Color        string `json:"color"`
	IconName     string `json:"iconName,omitempty"`
}

// Minutes returns the whole minutes used.
func (r UsageRecord) Minutes() int64 {
	return r.TimeInMillis / 60000
}

// WeeklyUsage maps a weekday name to that day's records.
type WeeklyUsage map[string][]UsageRecord

// UserSettings holds the user-editable limits and toggles.
type UserSettings struct {
	DailyLimits          map[string]int `json:"dailyLimits"` // minutes
	NotificationsEnabled bool           `json:"notificationsEnabled"`
}

// LimitMinutes returns the daily limit for app, falling back to DefaultLimitMinutes.
func (s UserSettings) LimitMinutes(app string) int {
	if limit, ok := s.DailyLimits[app]; ok {
		return limit
	}
	return DefaultLimitMinutes
}

// UserStats holds the coin balance and streak counters.
type UserStats struct {
	Coins          int64    `json:"coins"`
	Streak         int      `json:"streak"`
	HighestStreak  int      `json:"highestStreak"`
	DaysUnderLimit int      `json:"daysUnderLimit"`
	Rewards        []string `json:"rewards"` // IDs of unlocked rewards
}

// RewardItem is an entry in the reward store.
type RewardItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PointCost   int64  `json:"pointCost"`
	Unlocked    bool   `json:"unlocked"`
}

// ScrollMetrics is the cosmetic scroll estimate for an app.
type ScrollMetrics struct {
	Count    int64  `json:"count"`
	Distance string `json:"distance"`
}

// App describes a tracked app.
type App struct {
	Name         string `json:"name"`
	Color        string `json:"color"`
	Icon         string `json:"icon"`
	LimitMinutes int    `json:"limitMinutes"`
}
