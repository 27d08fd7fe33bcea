package persistence

import (
	"context"
	"fmt"

	"sensekit-server/internal/calibration"
	"sensekit-server/internal/infra/sql"
	"sensekit-server/internal/ingestion"
	"sensekit-server/internal/persistence/internal"
)

func NewReadingStore(orm sql.ORM) (*GormReadingStore, error) {
	if err := orm.AutoMigrate(&internal.Reading{}); err != nil {
		return nil, fmt.Errorf("auto migrating: %w", err)
	}

	return &GormReadingStore{orm: orm}, nil
}

var _ ingestion.ReadingSink = (*GormReadingStore)(nil)

type GormReadingStore struct {
	orm sql.ORM
}

func (s *GormReadingStore) Store(ctx context.Context, reading calibration.Reading) error {
	entity := internal.FromReading(reading)
	err := s.orm.
		WithContext(ctx).
		Create(&entity).
		Error()

	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	return nil
}

// FindByDevice returns the latest readings of a device, newest first.
func (s *GormReadingStore) FindByDevice(ctx context.Context, deviceID string, limit int) ([]calibration.Reading, error) {
	var entities []internal.Reading
	err := s.orm.
		WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("recorded_at desc").
		Limit(limit).
		Find(&entities).
		Error()

	if err != nil {
		return nil, fmt.Errorf("database query: %w", err)
	}

	result := make([]calibration.Reading, len(entities))
	for i, entity := range entities {
		result[i] = entity.ToDomain()
	}

	return result, nil
}

func (s *GormReadingStore) CountByDevice(ctx context.Context, deviceID string) (int64, error) {
	var count int64
	err := s.orm.
		WithContext(ctx).
		Model(&internal.Reading{}).
		Where("device_id = ?", deviceID).
		Count(&count).
		Error()

	if err != nil {
		return 0, fmt.Errorf("database query: %w", err)
	}

	return count, nil
}
