package mockdata

import (
	"fmt"
	"math/rand"
	"time"
)

const (
	// DefaultLimitMinutes applies to apps without a configured limit.
	DefaultLimitMinutes = 60

	// Initial usage is drawn from [MinInitialMinutes, MaxInitialMinutes).
	MinInitialMinutes = 30
	MaxInitialMinutes = 210
)

// Weekdays lists the keys of WeeklyUsage in display order.
var Weekdays = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DefaultApps returns the apps tracked out of the box.
func DefaultApps() []App {
	return []App{
		{Name: "Instagram", Color: "#E1306C", Icon: "instagram", LimitMinutes: 60},
		{Name: "Facebook", Color: "#4267B2", Icon: "facebook", LimitMinutes: 45},
		{Name: "TikTok", Color: "#000000", Icon: "video", LimitMinutes: 30},
	}
}

// GenerateUsage returns one record per app with a random starting usage.
func GenerateUsage(rng *rand.Rand, apps []App) []UsageRecord {
	records := make([]UsageRecord, len(apps))
	for i, app := range apps {
		minutes := MinInitialMinutes + rng.Intn(MaxInitialMinutes-MinInitialMinutes)
		records[i] = UsageRecord{
			AppName:      app.Name,
			TimeInMillis: int64(minutes) * time.Minute.Milliseconds(),
			Color:        app.Color,
			IconName:     app.Icon,
		}
	}
	return records
}

// EmptyUsage returns one zeroed record per app.
func EmptyUsage(apps []App) []UsageRecord {
	records := make([]UsageRecord, len(apps))
	for i, app := range apps {
		records[i] = UsageRecord{AppName: app.Name, Color: app.Color, IconName: app.Icon}
	}
	return records
}

// GenerateWeekly returns a random history for every weekday.
func GenerateWeekly(rng *rand.Rand, apps []App) WeeklyUsage {
	weekly := make(WeeklyUsage, len(Weekdays))
	for _, day := range Weekdays {
		weekly[day] = GenerateUsage(rng, apps)
	}
	return weekly
}

// DefaultSettings returns settings with each app's configured limit and notifications on.
func DefaultSettings(apps []App) UserSettings {
	limits := make(map[string]int, len(apps))
	for _, app := range apps {
		limits[app.Name] = app.LimitMinutes
	}
	return UserSettings{DailyLimits: limits, NotificationsEnabled: true}
}

// DefaultRewards returns the reward store catalog.
func DefaultRewards() []RewardItem {
	return []RewardItem{
		{
			ID:          "dark-theme",
			Name:        "Dark Mode Theme",
			Description: "Unlock a sleek dark theme for the app.",
			PointCost:   100,
		},
		{
			ID:          "achievement-badge-1",
			Name:        "Digital Detox Badge",
			Description: "Show off your commitment to mindful social media usage.",
			PointCost:   150,
		},
		{
			ID:          "custom-colors",
			Name:        "Custom Color Themes",
			Description: "Personalize the app with your favorite colors.",
			PointCost:   200,
		},
		{
			ID:          "advanced-stats",
			Name:        "Advanced Usage Analytics",
			Description: "Get detailed insights into your social media patterns.",
			PointCost:   300,
		},
	}
}

// FormatTime renders milliseconds as "Xh Ym", or "Ym" below one hour.
func FormatTime(ms int64) string {
	minutes := ms / time.Minute.Milliseconds()
	hours := minutes / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}
