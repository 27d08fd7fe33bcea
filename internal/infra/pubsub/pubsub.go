package pubsub

import "context"

//go:generate mockgen -source=pubsub.go -destination=../../../test/unit/doubles/infra/pubsub/pubsub_mock.go -package=pubsub -mock_names=PublisherFactory=MockPublisherFactory,Publisher=MockPublisher

type PublisherFactory interface {
	New(Topic, Codec) (Publisher, error)
}

type Publisher interface {
	Publish(context.Context, Key, Message) error
	Close() error
}

type Key string
type Message any
type Topic string
