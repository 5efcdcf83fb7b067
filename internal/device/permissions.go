package device

import (
	"context"
	"sync"

	"github.com/goodtune/timeguardian/internal/clock"
	"github.com/goodtune/timeguardian/internal/metrics"
	"github.com/goodtune/timeguardian/internal/notify"
	"github.com/goodtune/timeguardian/internal/storage"
	"github.com/rs/zerolog"
)

// PendingGrant is an outstanding permission request. It resolves only when
// the user triggers the notification's grant action; there is no timeout.
type PendingGrant struct {
	Permission     storage.Permission `json:"permission"`
	NotificationID string             `json:"notificationId,omitempty"`

	done chan struct{}
	once sync.Once
}

func newPendingGrant(p storage.Permission) *PendingGrant {
	return &PendingGrant{Permission: p, done: make(chan struct{})}
}

// Done is closed once the permission has been granted.
func (g *PendingGrant) Done() <-chan struct{} {
	return g.done
}

// Resolved reports whether the permission has been granted.
func (g *PendingGrant) Resolved() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the grant resolves or ctx is done.
func (g *PendingGrant) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *PendingGrant) resolve() {
	g.once.Do(func() { close(g.done) })
}

type permissionPrompt struct {
	title       string
	description string
	granted     string
}

var prompts = map[storage.Permission]permissionPrompt{
	storage.PermissionUsageStats: {
		title:       "Usage Stats Permission Required",
		description: "On a real Android device, you would be redirected to Settings > Usage Access",
		granted:     "Usage stats permission granted successfully.",
	},
	storage.PermissionDeviceAdmin: {
		title:       "Device Admin Permission Required",
		description: "On a real Android device, this would show the Device Admin activation screen",
		granted:     "Device admin permission granted successfully.",
	},
}

// PermissionManager simulates the OS consent flow for usage-stats and
// device-admin access. Grants are monotone and mirrored to the store.
type PermissionManager struct {
	store  storage.PermissionStore
	sink   notify.Sink
	clock  clock.Clock
	logger zerolog.Logger

	mu     sync.RWMutex
	status storage.PermissionsStatus
}

// NewPermissionManager loads the persisted flags. Unreadable state counts as never granted.
func NewPermissionManager(ctx context.Context, store storage.PermissionStore, sink notify.Sink, clk clock.Clock, logger zerolog.Logger) *PermissionManager {
	m := &PermissionManager{
		store:  store,
		sink:   sink,
		clock:  clk,
		logger: logger.With().Str("component", "permissions").Logger(),
	}

	status, err := store.Get(ctx)
	switch {
	case err == nil:
		m.status = *status
	case storage.IsNotFound(err):
	default:
		m.logger.Error().Err(err).Msg("Failed to read permissions status, assuming none granted")
	}

	return m
}

// Status returns the current permission flags.
func (m *PermissionManager) Status() storage.PermissionsStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Has reports whether p has been granted.
func (m *PermissionManager) Has(p storage.Permission) bool {
	return m.Status().Has(p)
}

// Request shows the consent prompt for p and returns a grant that resolves
// when the prompt's action is triggered. An already granted permission
// resolves immediately without a prompt.
func (m *PermissionManager) Request(ctx context.Context, p storage.Permission) *PendingGrant {
	g := newPendingGrant(p)
	if m.Has(p) {
		g.resolve()
		return g
	}

	prompt, ok := prompts[p]
	if !ok {
		m.logger.Warn().Str("permission", string(p)).Msg("Unknown permission requested")
		return g
	}

	n := notify.New(prompt.title, prompt.description, notify.SeverityNormal, m.clock.Now()).
		WithAction("Grant Permission", func() {
			m.grant(context.WithoutCancel(ctx), p)
			g.resolve()
		})
	g.NotificationID = n.ID

	m.logger.Info().Str("permission", string(p)).Str("notification_id", n.ID).Msg("Permission requested")
	m.sink.Notify(n)
	return g
}

func (m *PermissionManager) grant(ctx context.Context, p storage.Permission) {
	m.mu.Lock()
	already := m.status.Has(p)
	m.status = m.status.With(p)
	m.mu.Unlock()

	if already {
		return
	}

	if err := m.store.Grant(ctx, p); err != nil {
		m.logger.Error().Err(err).Str("permission", string(p)).Msg("Failed to persist permission grant")
	}
	metrics.PermissionGrantsTotal.WithLabelValues(string(p)).Inc()
	m.logger.Info().Str("permission", string(p)).Msg("Permission granted")

	m.sink.Notify(notify.New("Permission Granted", prompts[p].granted, notify.SeveritySuccess, m.clock.Now()))
}
