package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sensekit-server/internal/calibration"
	"sensekit-server/internal/infra/sql"
	"sensekit-server/internal/ingestion"
	"sensekit-server/internal/persistence/internal"
)

func NewDeviceDirectory(orm sql.ORM) (*GormDeviceDirectory, error) {
	if err := orm.AutoMigrate(&internal.Device{}); err != nil {
		return nil, fmt.Errorf("auto migrating: %w", err)
	}

	return &GormDeviceDirectory{orm: orm}, nil
}

var _ ingestion.DeviceDirectory = (*GormDeviceDirectory)(nil)

type GormDeviceDirectory struct {
	orm sql.ORM
}

func (d *GormDeviceDirectory) ResolveHardwareVariant(ctx context.Context, deviceID string) (calibration.HardwareID, error) {
	var entity internal.Device
	err := d.orm.
		WithContext(ctx).
		First(&entity, "id = ?", deviceID).
		Error()

	if errors.Is(err, sql.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: %s", ingestion.ErrDeviceNotFound, deviceID)
	}

	if err != nil {
		return "", fmt.Errorf("database query: %w", err)
	}

	return calibration.HardwareID(entity.HardwareID), nil
}

// RegisterDevice seeds the directory. It is used by local runs and tests;
// production devices are written by the registry service.
func (d *GormDeviceDirectory) RegisterDevice(ctx context.Context, deviceID string, hardwareID calibration.HardwareID) error {
	entity := internal.Device{
		ID:         deviceID,
		HardwareID: string(hardwareID),
		CreatedAt:  time.Now().UTC(),
	}

	err := d.orm.
		WithContext(ctx).
		Create(&entity).
		Error()

	if err != nil {
		return fmt.Errorf("registering device %s: %w", deviceID, err)
	}

	return nil
}
