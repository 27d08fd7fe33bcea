package persistence_test

import (
	"context"
	"time"

	"sensekit-server/internal/calibration"
	"sensekit-server/internal/infra/pubsub"
	"sensekit-server/internal/persistence"
	"sensekit-server/internal/persistence/internal"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("ReadingPublisher", func() {
	var (
		broker    *pubsub.MemoryBroker
		publisher *persistence.ReadingPublisher
	)

	ginkgo.BeforeEach(func() {
		broker = pubsub.NewMemoryBroker()

		var err error
		publisher, err = persistence.NewReadingPublisher(pubsub.NewMemoryPublisherFactory(broker), "readings")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
	})

	ginkgo.It("should publish an avro record keyed by device", func() {
		recordedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		reading := calibration.Reading{
			DeviceID:   "dev-1",
			HardwareID: calibration.HardwareSCK11,
			Sensor:     calibration.SensorLight,
			Channel:    14,
			Kind:       calibration.FormulaScaled,
			Raw:        300,
			Value:      ptr(300),
			Secondary:  ptr(30),
			RecordedAt: recordedAt,
		}
		gomega.Expect(publisher.Store(context.Background(), reading)).To(gomega.Succeed())

		messages := broker.Messages("readings")
		gomega.Expect(messages).To(gomega.HaveLen(1))
		gomega.Expect(messages[0].Key).To(gomega.Equal(pubsub.Key("dev-1")))

		event, ok := messages[0].Value.(*internal.ReadingEvent)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(event.ID).NotTo(gomega.BeEmpty())
		gomega.Expect(event.Sensor).To(gomega.Equal("light"))
		gomega.Expect(event.Kind).To(gomega.Equal("scaled"))
		gomega.Expect(event.Channel).To(gomega.Equal(14))
		gomega.Expect(*event.Secondary).To(gomega.Equal(30.0))
		gomega.Expect(event.RecordedAt).To(gomega.BeTemporally("==", recordedAt))
	})

	ginkgo.It("should keep a null value for passthrough readings", func() {
		reading := calibration.Reading{DeviceID: "dev-1", Sensor: calibration.SensorNets, Kind: calibration.FormulaPassthrough, Raw: 3, RecordedAt: time.Now()}
		gomega.Expect(publisher.Store(context.Background(), reading)).To(gomega.Succeed())

		event := broker.Messages("readings")[0].Value.(*internal.ReadingEvent)
		gomega.Expect(event.Value).To(gomega.BeNil())
	})

	ginkgo.It("should fail once closed", func() {
		gomega.Expect(publisher.Close()).To(gomega.Succeed())
		err := publisher.Store(context.Background(), calibration.Reading{DeviceID: "dev-1", RecordedAt: time.Now()})
		gomega.Expect(err).To(gomega.MatchError(pubsub.ErrPublisherClosed))
	})
})
