package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/timeguardian/internal/storage"
)

// Hash fields of the permissions record
const (
	fieldUsageStats  = "usageStats"
	fieldDeviceAdmin = "deviceAdmin"
)

func permissionField(p storage.Permission) (string, error) {
	switch p {
	case storage.PermissionUsageStats:
		return fieldUsageStats, nil
	case storage.PermissionDeviceAdmin:
		return fieldDeviceAdmin, nil
	default:
		return "", fmt.Errorf("unknown permission: %s", p)
	}
}

// parsePermissions converts a Redis hash to PermissionsStatus
func parsePermissions(data map[string]string) (*storage.PermissionsStatus, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	status := &storage.PermissionsStatus{}
	for field, dst := range map[string]*bool{
		fieldUsageStats:  &status.UsageStats,
		fieldDeviceAdmin: &status.DeviceAdmin,
	} {
		raw, ok := data[field]
		if !ok {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", field, err)
		}
		*dst = v
	}

	return status, nil
}

// parseBlocks converts the blocked-apps hash to a map of times, skipping
// malformed entries
func parseBlocks(data map[string]string) map[string]time.Time {
	out := make(map[string]time.Time, len(data))
	for app, raw := range data {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		out[app] = time.UnixMilli(ms)
	}
	return out
}
