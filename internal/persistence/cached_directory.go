package persistence

import (
	"context"
	"fmt"
	"time"

	"sensekit-server/internal/calibration"
	"sensekit-server/internal/infra/cache"
	"sensekit-server/internal/ingestion"
)

const _directoryKeyPrefix = "directory:device:"

var _ ingestion.DeviceDirectory = (*CachedDeviceDirectory)(nil)

// CachedDeviceDirectory keeps resolved hardware ids for ttl. Lookup failures,
// including unknown devices, are never cached, so a device registered after
// its first packet is picked up on the next one.
type CachedDeviceDirectory struct {
	next  ingestion.DeviceDirectory
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedDeviceDirectory(next ingestion.DeviceDirectory, c cache.Cache, ttl time.Duration) *CachedDeviceDirectory {
	return &CachedDeviceDirectory{next: next, cache: c, ttl: ttl}
}

func (d *CachedDeviceDirectory) ResolveHardwareVariant(ctx context.Context, deviceID string) (calibration.HardwareID, error) {
	value, err := d.cache.GetOrSet(ctx, _directoryKeyPrefix+deviceID, d.ttl, func() (any, error) {
		return d.next.ResolveHardwareVariant(ctx, deviceID)
	})
	if err != nil {
		return "", err
	}

	hardwareID, ok := value.(calibration.HardwareID)
	if !ok {
		return "", fmt.Errorf("unexpected cached value %T for device %s", value, deviceID)
	}

	return hardwareID, nil
}

func (d *CachedDeviceDirectory) Invalidate(ctx context.Context, deviceID string) {
	d.cache.Delete(ctx, _directoryKeyPrefix+deviceID)
}
