package persistence

import (
	"context"
	"fmt"

	"sensekit-server/internal/calibration"
	"sensekit-server/internal/infra/pubsub"
	"sensekit-server/internal/ingestion"
	"sensekit-server/internal/persistence/internal"
)

func NewReadingPublisher(publisherFactory pubsub.PublisherFactory, topic pubsub.Topic) (*ReadingPublisher, error) {
	codec, err := pubsub.NewAvroCodec(internal.ReadingEventSchema, internal.ReadingEvent{})
	if err != nil {
		return nil, fmt.Errorf("creating codec: %w", err)
	}

	publisher, err := publisherFactory.New(topic, codec)
	if err != nil {
		return nil, fmt.Errorf("creating publisher: %w", err)
	}

	return &ReadingPublisher{publisher: publisher}, nil
}

var _ ingestion.ReadingSink = (*ReadingPublisher)(nil)

// ReadingPublisher forwards calibrated readings as Avro records keyed by
// device id, so every reading of a device lands on the same partition.
type ReadingPublisher struct {
	publisher pubsub.Publisher
}

func (p *ReadingPublisher) Store(ctx context.Context, reading calibration.Reading) error {
	event := internal.FromReadingEvent(reading)
	if err := p.publisher.Publish(ctx, pubsub.Key(reading.DeviceID), event); err != nil {
		return fmt.Errorf("publishing reading: %w", err)
	}

	return nil
}

func (p *ReadingPublisher) Close() error {
	return p.publisher.Close()
}
