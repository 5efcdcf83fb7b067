package usage

import (
	"sync"
	"time"

	"github.com/goodtune/timeguardian/internal/metrics"
	"github.com/goodtune/timeguardian/internal/mockdata"
	"github.com/rs/zerolog"
)

// Tracker holds today's per-app usage records. Usage only grows until Reset.
type Tracker struct {
	records []mockdata.UsageRecord
	index   map[string]int // app name -> position in records
	logger  zerolog.Logger
	mu      sync.RWMutex
}

// NewTracker creates a tracker seeded with the given records.
func NewTracker(records []mockdata.UsageRecord, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		logger: logger.With().Str("component", "usage-tracker").Logger(),
	}
	t.load(records)
	return t
}

// load replaces the records (must be called with lock held or before sharing).
func (t *Tracker) load(records []mockdata.UsageRecord) {
	t.records = append([]mockdata.UsageRecord(nil), records...)
	t.index = make(map[string]int, len(records))
	for i, r := range t.records {
		t.index[r.AppName] = i
	}
}

// Add records d of additional usage for app. Negative durations are ignored.
func (t *Tracker) Add(app string, d time.Duration) (mockdata.UsageRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[app]
	if !ok {
		return mockdata.UsageRecord{}, false
	}
	if d <= 0 {
		return t.records[i], true
	}

	t.records[i].TimeInMillis += d.Milliseconds()
	metrics.UsageMinutesConsumed.WithLabelValues(app).Add(d.Minutes())

	t.logger.Debug().
		Str("app", app).
		Dur("increment", d).
		Int64("time_ms", t.records[i].TimeInMillis).
		Msg("Usage recorded")

	return t.records[i], true
}

// Get returns the record for app.
func (t *Tracker) Get(app string) (mockdata.UsageRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i, ok := t.index[app]
	if !ok {
		return mockdata.UsageRecord{}, false
	}
	return t.records[i], true
}

// Records returns a copy of today's records in tracking order.
func (t *Tracker) Records() []mockdata.UsageRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]mockdata.UsageRecord(nil), t.records...)
}

// Apps returns the tracked app names in order.
func (t *Tracker) Apps() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	apps := make([]string, len(t.records))
	for i, r := range t.records {
		apps[i] = r.AppName
	}
	return apps
}

// Reset zeroes every record and returns the records of the finished day.
func (t *Tracker) Reset() []mockdata.UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	finished := append([]mockdata.UsageRecord(nil), t.records...)
	for i := range t.records {
		t.records[i].TimeInMillis = 0
	}

	t.logger.Info().Int("apps", len(finished)).Msg("Daily usage reset")
	return finished
}
