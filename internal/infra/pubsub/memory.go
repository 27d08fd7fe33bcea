package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrPublisherClosed = errors.New("publisher closed")

// MemoryBroker keeps published messages per topic, for local runs and tests.
// Messages go through the codec so encoding faults show up as they would on Kafka.
type MemoryBroker struct {
	mu       sync.RWMutex
	messages map[Topic][]MemoryMessage
}

type MemoryMessage struct {
	Key   Key
	Value any
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{messages: make(map[Topic][]MemoryMessage)}
}

func (b *MemoryBroker) Messages(topic Topic) []MemoryMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]MemoryMessage, len(b.messages[topic]))
	copy(out, b.messages[topic])
	return out
}

func (b *MemoryBroker) append(topic Topic, msg MemoryMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[topic] = append(b.messages[topic], msg)
}

var _ PublisherFactory = (*MemoryPublisherFactory)(nil)

type MemoryPublisherFactory struct {
	broker *MemoryBroker
}

func NewMemoryPublisherFactory(broker *MemoryBroker) *MemoryPublisherFactory {
	return &MemoryPublisherFactory{broker: broker}
}

func (f *MemoryPublisherFactory) New(topic Topic, codec Codec) (Publisher, error) {
	return &MemoryPublisher{broker: f.broker, topic: topic, codec: codec}, nil
}

var _ Publisher = (*MemoryPublisher)(nil)

type MemoryPublisher struct {
	broker *MemoryBroker
	topic  Topic
	codec  Codec
	closed sync.Once
	done   bool
	mu     sync.RWMutex
}

func (p *MemoryPublisher) Publish(_ context.Context, key Key, message Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.done {
		return ErrPublisherClosed
	}

	data, err := p.codec.Encode(message)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	decoded, err := p.codec.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}

	p.broker.append(p.topic, MemoryMessage{Key: key, Value: decoded})
	return nil
}

func (p *MemoryPublisher) Close() error {
	p.closed.Do(func() {
		p.mu.Lock()
		p.done = true
		p.mu.Unlock()
	})
	return nil
}
