package persistence_test

import (
	"context"
	"time"

	"sensekit-server/internal/calibration"
	"sensekit-server/internal/infra/sql"
	"sensekit-server/internal/persistence"

	"github.com/google/uuid"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func ptr(v float64) *float64 {
	return &v
}

var _ = ginkgo.Describe("GormReadingStore", func() {
	var (
		ctx   context.Context
		store *persistence.GormReadingStore
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		orm, err := sql.NewMemoryORM(uuid.NewString())
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		store, err = persistence.NewReadingStore(orm)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
	})

	ginkgo.It("should keep both values of a scaled reading", func() {
		recordedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		reading := calibration.Reading{
			DeviceID:   "dev-1",
			HardwareID: calibration.HardwareSCK11,
			Sensor:     calibration.SensorCO,
			Channel:    16,
			Kind:       calibration.FormulaScaled,
			Raw:        1500,
			Value:      ptr(1500),
			Secondary:  ptr(1.5),
			RecordedAt: recordedAt,
		}
		gomega.Expect(store.Store(ctx, reading)).To(gomega.Succeed())

		stored, err := store.FindByDevice(ctx, "dev-1", 10)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(stored).To(gomega.HaveLen(1))
		gomega.Expect(stored[0].Sensor).To(gomega.Equal(calibration.SensorCO))
		gomega.Expect(stored[0].Kind).To(gomega.Equal(calibration.FormulaScaled))
		gomega.Expect(stored[0].Raw).To(gomega.Equal(int64(1500)))
		gomega.Expect(*stored[0].Value).To(gomega.Equal(1500.0))
		gomega.Expect(*stored[0].Secondary).To(gomega.Equal(1.5))
		gomega.Expect(stored[0].RecordedAt).To(gomega.BeTemporally("==", recordedAt))
	})

	ginkgo.It("should store passthrough readings without a calibrated value", func() {
		reading := calibration.Reading{
			DeviceID: "dev-1", Sensor: calibration.SensorBat, Channel: 17,
			Kind: calibration.FormulaPassthrough, Raw: 812, RecordedAt: time.Now(),
		}
		gomega.Expect(store.Store(ctx, reading)).To(gomega.Succeed())

		stored, err := store.FindByDevice(ctx, "dev-1", 10)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(stored).To(gomega.HaveLen(1))
		gomega.Expect(stored[0].Value).To(gomega.BeNil())
		gomega.Expect(stored[0].Secondary).To(gomega.BeNil())
	})

	ginkgo.It("should list the newest readings first and count per device", func() {
		base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		for i := range 5 {
			reading := calibration.Reading{
				DeviceID: "dev-1", Sensor: calibration.SensorTemp, Kind: calibration.FormulaLinear,
				Raw: int64(i), Value: ptr(float64(i)), RecordedAt: base.Add(time.Duration(i) * time.Minute),
			}
			gomega.Expect(store.Store(ctx, reading)).To(gomega.Succeed())
		}
		gomega.Expect(store.Store(ctx, calibration.Reading{DeviceID: "dev-2", RecordedAt: base})).To(gomega.Succeed())

		latest, err := store.FindByDevice(ctx, "dev-1", 2)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(latest).To(gomega.HaveLen(2))
		gomega.Expect(latest[0].Raw).To(gomega.Equal(int64(4)))
		gomega.Expect(latest[1].Raw).To(gomega.Equal(int64(3)))

		count, err := store.CountByDevice(ctx, "dev-1")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(count).To(gomega.Equal(int64(5)))
	})

	ginkgo.It("should fail when the context is already cancelled", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := store.Store(cancelled, calibration.Reading{DeviceID: "dev-1", RecordedAt: time.Now()})
		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})
