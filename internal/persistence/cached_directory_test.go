package persistence_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"sensekit-server/internal/calibration"
	"sensekit-server/internal/infra/cache"
	"sensekit-server/internal/ingestion"
	"sensekit-server/internal/persistence"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

type countingDirectory struct {
	calls   atomic.Int32
	devices map[string]calibration.HardwareID
}

func (d *countingDirectory) ResolveHardwareVariant(_ context.Context, deviceID string) (calibration.HardwareID, error) {
	d.calls.Add(1)
	hardwareID, ok := d.devices[deviceID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ingestion.ErrDeviceNotFound, deviceID)
	}
	return hardwareID, nil
}

var _ = ginkgo.Describe("CachedDeviceDirectory", func() {
	var (
		ctx     context.Context
		backing *countingDirectory
		store   *cache.RistrettoCache
		cached  *persistence.CachedDeviceDirectory
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		backing = &countingDirectory{devices: map[string]calibration.HardwareID{"dev-1": calibration.HardwareSCK11}}

		var err error
		store, err = cache.New(nil)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		ginkgo.DeferCleanup(store.Close)

		cached = persistence.NewCachedDeviceDirectory(backing, store, time.Minute)
	})

	ginkgo.It("should hit the backing directory once per device", func() {
		for range 3 {
			hardwareID, err := cached.ResolveHardwareVariant(ctx, "dev-1")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(hardwareID).To(gomega.Equal(calibration.HardwareSCK11))
		}
		gomega.Expect(backing.calls.Load()).To(gomega.Equal(int32(1)))
	})

	ginkgo.It("should not cache unknown devices", func() {
		for range 2 {
			_, err := cached.ResolveHardwareVariant(ctx, "dev-2")
			gomega.Expect(err).To(gomega.MatchError(ingestion.ErrDeviceNotFound))
		}
		gomega.Expect(backing.calls.Load()).To(gomega.Equal(int32(2)))

		backing.devices["dev-2"] = calibration.KitSCK11
		hardwareID, err := cached.ResolveHardwareVariant(ctx, "dev-2")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(hardwareID).To(gomega.Equal(calibration.KitSCK11))
	})

	ginkgo.It("should reload a device after Invalidate", func() {
		_, err := cached.ResolveHardwareVariant(ctx, "dev-1")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		backing.devices["dev-1"] = calibration.KitSCK11
		cached.Invalidate(ctx, "dev-1")

		hardwareID, err := cached.ResolveHardwareVariant(ctx, "dev-1")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(hardwareID).To(gomega.Equal(calibration.KitSCK11))
		gomega.Expect(backing.calls.Load()).To(gomega.Equal(int32(2)))
	})
})
