package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lovoo/goka"
)

const (
	maxRetries   int = 10
	_retryPeriod     = 5 * time.Second
)

var _ PublisherFactory = (*KafkaPublisherFactory)(nil)

type KafkaPublisherFactory struct {
	brokers []string
}

func NewKafkaPublisherFactory(brokers []string) *KafkaPublisherFactory {
	return &KafkaPublisherFactory{brokers: brokers}
}

func (f *KafkaPublisherFactory) New(topic Topic, codec Codec) (Publisher, error) {
	publisher, err := NewKafkaPublisher(f.brokers, topic, codec)
	if err != nil {
		return nil, fmt.Errorf("creating publisher: %w", err)
	}

	return publisher, nil
}

var _ Publisher = (*SimpleKafkaPublisher)(nil)

type SimpleKafkaPublisher struct {
	emitter *goka.Emitter
	topic   Topic
}

func NewKafkaPublisher(brokers []string, topic Topic, codec Codec) (*SimpleKafkaPublisher, error) {
	slog.Debug("creating kafka publisher",
		slog.String("brokers", strings.Join(brokers, ",")),
		slog.String("topic", string(topic)))

	var lastErr error
	for try := 0; try < maxRetries; try++ {
		emitter, err := goka.NewEmitter(brokers, goka.Stream(topic), codec)
		if err == nil {
			return &SimpleKafkaPublisher{emitter: emitter, topic: topic}, nil
		}
		lastErr = err
		slog.Warn("connecting to kafka brokers", slog.Int("try", try+1), slog.Any("error", err))
		time.Sleep(_retryPeriod)
	}

	return nil, fmt.Errorf("🤦‍♂️ imposible to connect to kafka brokers after %d retries: %w", maxRetries, lastErr)
}

func (p *SimpleKafkaPublisher) Publish(_ context.Context, key Key, message Message) error {
	slog.Debug("publishing message", slog.String("topic", string(p.topic)), slog.String("key", string(key)))
	if err := p.emitter.EmitSync(string(key), message); err != nil {
		return fmt.Errorf("emitting to %s: %w", p.topic, err)
	}

	return nil
}

func (p *SimpleKafkaPublisher) Close() error {
	return p.emitter.Finish()
}
