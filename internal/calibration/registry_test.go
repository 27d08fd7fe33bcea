package calibration_test

import (
	"sync"

	"sensekit-server/internal/calibration"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Registry", func() {
	ginkgo.Context("with builtin variants", func() {
		var registry *calibration.Registry

		ginkgo.BeforeEach(func() {
			var err error
			registry, err = calibration.NewRegistry(calibration.BuiltinRegistrations()...)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("should resolve the canonical id", func() {
			calibrator, err := registry.Resolve(calibration.HardwareSCK11)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(calibrator.HardwareID()).To(gomega.Equal(calibration.HardwareSCK11))
		})

		ginkgo.It("should resolve the kit alias to the same calibrator", func() {
			byID, err := registry.Resolve(calibration.HardwareSCK11)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			byKit, err := registry.Resolve(calibration.KitSCK11)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(byKit).To(gomega.BeIdenticalTo(byID))
		})

		ginkgo.It("should fail for unregistered hardware", func() {
			_, err := registry.Resolve("sck:9.9")
			gomega.Expect(err).To(gomega.MatchError(calibration.ErrUnknownHardware))
		})

		ginkgo.It("should keep resolving while another lookup fails", func() {
			var wg sync.WaitGroup
			errs := make(chan error, 200)
			for i := range 200 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					id := calibration.HardwareSCK11
					if i%2 == 0 {
						id = "unknown"
					}
					_, err := registry.Resolve(id)
					if id == calibration.HardwareSCK11 {
						errs <- err
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				gomega.Expect(err).NotTo(gomega.HaveOccurred())
			}
		})

		ginkgo.It("should list registered hardware", func() {
			gomega.Expect(registry.HardwareIDs()).To(gomega.Equal([]calibration.HardwareID{calibration.HardwareSCK11}))
		})
	})

	ginkgo.Context("NewRegistry", func() {
		ginkgo.It("should add config profiles next to builtin variants", func() {
			profile := calibration.Profile{
				HardwareID: "sck:2.0",
				Aliases:    []string{"4"},
				Channels:   map[string]int{"temp": 2},
			}
			registrations := append(calibration.BuiltinRegistrations(), calibration.ProfileRegistration(profile))
			registry, err := calibration.NewRegistry(registrations...)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			calibrator, err := registry.Resolve("4")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(calibrator.HardwareID()).To(gomega.Equal(calibration.HardwareID("sck:2.0")))
		})

		ginkgo.It("should refuse to redefine a builtin id", func() {
			profile := calibration.Profile{HardwareID: "sck:1.1", Channels: map[string]int{"temp": 2}}
			registrations := append(calibration.BuiltinRegistrations(), calibration.ProfileRegistration(profile))
			_, err := calibration.NewRegistry(registrations...)
			gomega.Expect(err).To(gomega.MatchError(calibration.ErrInvalidProfile))
		})

		ginkgo.It("should refuse an alias already in use", func() {
			profile := calibration.Profile{HardwareID: "sck:2.0", Aliases: []string{"3"}, Channels: map[string]int{"temp": 2}}
			registrations := append(calibration.BuiltinRegistrations(), calibration.ProfileRegistration(profile))
			_, err := calibration.NewRegistry(registrations...)
			gomega.Expect(err).To(gomega.MatchError(calibration.ErrInvalidProfile))
		})

		ginkgo.It("should surface an invalid table at construction", func() {
			profile := calibration.Profile{
				HardwareID: "broken",
				Channels:   map[string]int{"noise": 1},
				Formulas: map[string]calibration.FormulaSpec{
					"noise": {Type: "lookup", Table: []calibration.Threshold{{Raw: 5, Output: 1}, {Raw: 5, Output: 2}}},
				},
			}
			_, err := calibration.NewRegistry(calibration.ProfileRegistration(profile))
			gomega.Expect(err).To(gomega.MatchError(calibration.ErrInvalidTable))
		})
	})
})
