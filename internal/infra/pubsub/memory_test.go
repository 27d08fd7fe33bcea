package pubsub_test

import (
	"context"
	"time"

	"sensekit-server/internal/infra/pubsub"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

type sample struct {
	Name  string    `avro:"name"`
	Value *float64  `avro:"value"`
	At    time.Time `avro:"at"`
}

const sampleSchema = `{
	"type": "record",
	"name": "Sample",
	"fields": [
		{"name": "name", "type": "string"},
		{"name": "value", "type": ["null", "double"], "default": null},
		{"name": "at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

var _ = ginkgo.Describe("Memory publisher", func() {
	var (
		broker *pubsub.MemoryBroker
		codec  *pubsub.AvroCodec
	)

	ginkgo.BeforeEach(func() {
		var err error
		broker = pubsub.NewMemoryBroker()
		codec, err = pubsub.NewAvroCodec(sampleSchema, sample{})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
	})

	ginkgo.It("should keep published messages through an avro round trip", func() {
		publisher, err := pubsub.NewMemoryPublisherFactory(broker).New("samples", codec)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		value := 21.5
		at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		gomega.Expect(publisher.Publish(context.Background(), "k1", sample{Name: "a", Value: &value, At: at})).To(gomega.Succeed())
		gomega.Expect(publisher.Publish(context.Background(), "k2", sample{Name: "b", At: at})).To(gomega.Succeed())

		messages := broker.Messages("samples")
		gomega.Expect(messages).To(gomega.HaveLen(2))
		gomega.Expect(messages[0].Key).To(gomega.Equal(pubsub.Key("k1")))

		first := messages[0].Value.(*sample)
		gomega.Expect(first.Name).To(gomega.Equal("a"))
		gomega.Expect(*first.Value).To(gomega.Equal(21.5))
		gomega.Expect(first.At.Equal(at)).To(gomega.BeTrue())
		gomega.Expect(messages[1].Value.(*sample).Value).To(gomega.BeNil())
	})

	ginkgo.It("should refuse messages after Close", func() {
		publisher, err := pubsub.NewMemoryPublisherFactory(broker).New("samples", codec)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(publisher.Close()).To(gomega.Succeed())

		err = publisher.Publish(context.Background(), "k", sample{Name: "late"})
		gomega.Expect(err).To(gomega.MatchError(pubsub.ErrPublisherClosed))
	})

	ginkgo.It("should reject an invalid schema", func() {
		_, err := pubsub.NewAvroCodec(`{"type": "record"}`, sample{})
		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})
