package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Keys used by every backend. They match the local-storage keys of the
// browser build so exported data stays interchangeable.
const (
	KeyBalance     = "timeguardian_focus_coins"
	KeyPermissions = "timeguardian_permissions"
	KeyBlockedApps = "blocked_apps"
	KeyOnboarding  = "timeguardian_onboarding_completed"
)

// Permission identifies a simulated OS permission.
type Permission string

const (
	PermissionUsageStats  Permission = "USAGE_STATS"
	PermissionDeviceAdmin Permission = "DEVICE_ADMIN"
)

// ParsePermission accepts the canonical names as well as the short URL forms
// "usage-stats" and "device-admin".
func ParsePermission(s string) (Permission, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	switch Permission(normalized) {
	case PermissionUsageStats, PermissionDeviceAdmin:
		return Permission(normalized), nil
	default:
		return "", fmt.Errorf("invalid permission: %s (must be USAGE_STATS or DEVICE_ADMIN)", s)
	}
}

// UnmarshalJSON implements json.Unmarshaler to normalize the permission name.
func (p *Permission) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePermission(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PermissionsStatus is the persisted permission record.
type PermissionsStatus struct {
	UsageStats  bool `json:"usageStats"`
	DeviceAdmin bool `json:"deviceAdmin"`
}

// Has reports whether the given permission has been granted.
func (s PermissionsStatus) Has(p Permission) bool {
	switch p {
	case PermissionUsageStats:
		return s.UsageStats
	case PermissionDeviceAdmin:
		return s.DeviceAdmin
	default:
		return false
	}
}

// With returns a copy of s with p granted.
func (s PermissionsStatus) With(p Permission) PermissionsStatus {
	switch p {
	case PermissionUsageStats:
		s.UsageStats = true
	case PermissionDeviceAdmin:
		s.DeviceAdmin = true
	}
	return s
}

// BlockedApps maps app name to blocked-until epoch milliseconds.
type BlockedApps map[string]int64

// ToTimes converts the epoch-millisecond map to time values.
func (b BlockedApps) ToTimes() map[string]time.Time {
	out := make(map[string]time.Time, len(b))
	for app, ms := range b {
		out[app] = time.UnixMilli(ms)
	}
	return out
}
