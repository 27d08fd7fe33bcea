package ingestion_test

import (
	"context"
	"time"

	"sensekit-server/internal/ingestion"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Dispatcher", func() {
	var (
		sink *recordingSink
		opts ingestion.DispatcherOpts
	)

	ginkgo.BeforeEach(func() {
		sink = &recordingSink{}
		opts = ingestion.DispatcherOpts{
			QueueSize:     4,
			Workers:       2,
			Policy:        ingestion.OverflowBlock,
			RetryAttempts: 2,
			RetryInterval: time.Millisecond,
		}
	})

	ginkgo.Context("NewDispatcher", func() {
		ginkgo.It("should refuse an empty sink list", func() {
			_, err := ingestion.NewDispatcher(opts, newMetrics())
			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("should refuse a zero sized queue", func() {
			opts.QueueSize = 0
			_, err := ingestion.NewDispatcher(opts, newMetrics(), ingestion.NamedSink{Name: "rec", Sink: sink})
			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("should refuse an unknown overflow policy", func() {
			opts.Policy = "drop_oldest"
			_, err := ingestion.NewDispatcher(opts, newMetrics(), ingestion.NamedSink{Name: "rec", Sink: sink})
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.It("should deliver every reading to every sink", func() {
		other := &recordingSink{}
		dispatcher, err := ingestion.NewDispatcher(opts, newMetrics(),
			ingestion.NamedSink{Name: "rec", Sink: sink},
			ingestion.NamedSink{Name: "other", Sink: other})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		dispatcher.Start()

		for i := range 10 {
			gomega.Expect(dispatcher.Dispatch(context.Background(), reading("dev-1", int64(i)))).To(gomega.Succeed())
		}
		gomega.Expect(dispatcher.Close(context.Background())).To(gomega.Succeed())

		gomega.Expect(sink.Stored()).To(gomega.HaveLen(10))
		gomega.Expect(other.Stored()).To(gomega.HaveLen(10))
	})

	ginkgo.It("should retry a failing sink a bounded number of times", func() {
		sink.failures = 2
		dispatcher, err := ingestion.NewDispatcher(opts, newMetrics(), ingestion.NamedSink{Name: "rec", Sink: sink})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		dispatcher.Start()

		gomega.Expect(dispatcher.Dispatch(context.Background(), reading("dev-1", 1))).To(gomega.Succeed())
		gomega.Expect(dispatcher.Close(context.Background())).To(gomega.Succeed())

		gomega.Expect(sink.Calls()).To(gomega.Equal(3))
		gomega.Expect(sink.Stored()).To(gomega.HaveLen(1))
	})

	ginkgo.It("should give up on a reading once retries are exhausted and keep going", func() {
		sink.failures = 3
		opts.Workers = 1
		dispatcher, err := ingestion.NewDispatcher(opts, newMetrics(), ingestion.NamedSink{Name: "rec", Sink: sink})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		dispatcher.Start()

		gomega.Expect(dispatcher.Dispatch(context.Background(), reading("dev-1", 1))).To(gomega.Succeed())
		gomega.Eventually(sink.Calls).Should(gomega.Equal(3))
		gomega.Expect(dispatcher.Dispatch(context.Background(), reading("dev-1", 2))).To(gomega.Succeed())
		gomega.Expect(dispatcher.Close(context.Background())).To(gomega.Succeed())

		gomega.Expect(sink.Stored()).To(gomega.ConsistOf(reading("dev-1", 2)))
	})

	ginkgo.Context("with a stalled sink", func() {
		ginkgo.BeforeEach(func() {
			sink.gate = make(chan struct{})
			opts.Workers = 1
			opts.QueueSize = 1
		})

		ginkgo.It("should drop the newest reading when the queue is full", func() {
			opts.Policy = ingestion.OverflowDropNewest
			dispatcher, err := ingestion.NewDispatcher(opts, newMetrics(), ingestion.NamedSink{Name: "rec", Sink: sink})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			dispatcher.Start()

			// the first reading is picked up by the worker and held at the gate
			gomega.Expect(dispatcher.Dispatch(context.Background(), reading("dev-1", 1))).To(gomega.Succeed())
			gomega.Eventually(dispatcher.Len).Should(gomega.BeZero())
			gomega.Expect(dispatcher.Dispatch(context.Background(), reading("dev-1", 2))).To(gomega.Succeed())

			err = dispatcher.Dispatch(context.Background(), reading("dev-1", 3))
			gomega.Expect(err).To(gomega.MatchError(ingestion.ErrQueueFull))

			close(sink.gate)
			gomega.Expect(dispatcher.Close(context.Background())).To(gomega.Succeed())
			gomega.Expect(sink.Stored()).To(gomega.HaveLen(2))
		})

		ginkgo.It("should block the caller until there is room", func() {
			dispatcher, err := ingestion.NewDispatcher(opts, newMetrics(), ingestion.NamedSink{Name: "rec", Sink: sink})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			dispatcher.Start()

			gomega.Expect(dispatcher.Dispatch(context.Background(), reading("dev-1", 1))).To(gomega.Succeed())
			gomega.Eventually(dispatcher.Len).Should(gomega.BeZero())
			gomega.Expect(dispatcher.Dispatch(context.Background(), reading("dev-1", 2))).To(gomega.Succeed())

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			err = dispatcher.Dispatch(ctx, reading("dev-1", 3))
			gomega.Expect(err).To(gomega.MatchError(context.DeadlineExceeded))

			unblocked := make(chan error, 1)
			go func() {
				unblocked <- dispatcher.Dispatch(context.Background(), reading("dev-1", 4))
			}()
			gomega.Consistently(unblocked, 50*time.Millisecond).ShouldNot(gomega.Receive())

			close(sink.gate)
			gomega.Eventually(unblocked).Should(gomega.Receive(gomega.BeNil()))
			gomega.Expect(dispatcher.Close(context.Background())).To(gomega.Succeed())
			gomega.Expect(sink.Stored()).To(gomega.HaveLen(3))
		})

		ginkgo.It("should give up draining when the close context ends", func() {
			dispatcher, err := ingestion.NewDispatcher(opts, newMetrics(), ingestion.NamedSink{Name: "rec", Sink: sink})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			dispatcher.Start()

			gomega.Expect(dispatcher.Dispatch(context.Background(), reading("dev-1", 1))).To(gomega.Succeed())

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			gomega.Expect(dispatcher.Close(ctx)).To(gomega.MatchError(ingestion.ErrDrainTimeout))
			gomega.Expect(sink.Stored()).To(gomega.BeEmpty())
		})
	})

	ginkgo.It("should refuse readings after Close", func() {
		dispatcher, err := ingestion.NewDispatcher(opts, newMetrics(), ingestion.NamedSink{Name: "rec", Sink: sink})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		gomega.Expect(dispatcher.Close(context.Background())).To(gomega.Succeed())
		gomega.Expect(dispatcher.Close(context.Background())).To(gomega.Succeed())
		err = dispatcher.Dispatch(context.Background(), reading("dev-1", 1))
		gomega.Expect(err).To(gomega.MatchError(ingestion.ErrDispatcherClosed))
	})

	ginkgo.It("should drain readings queued before the workers were started", func() {
		dispatcher, err := ingestion.NewDispatcher(opts, newMetrics(), ingestion.NamedSink{Name: "rec", Sink: sink})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		gomega.Expect(dispatcher.Dispatch(context.Background(), reading("dev-1", 1))).To(gomega.Succeed())
		gomega.Expect(dispatcher.Len()).To(gomega.Equal(1))
		gomega.Expect(dispatcher.Close(context.Background())).To(gomega.Succeed())
		gomega.Expect(sink.Stored()).To(gomega.HaveLen(1))
	})
})
