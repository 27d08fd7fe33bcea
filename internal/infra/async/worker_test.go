package async

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

type flakyWorker struct {
	runs     atomic.Int32
	panicFor int32
}

func (w *flakyWorker) Run(ctx context.Context, done func()) {
	defer done()
	if w.runs.Add(1) <= w.panicFor {
		panic("transport exploded")
	}
	<-ctx.Done()
}

func (w *flakyWorker) Shutdown() {}

var _ = ginkgo.Describe("Supervise", func() {
	ginkgo.It("should restart a worker that panics", func() {
		worker := &flakyWorker{panicFor: 1}
		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})

		go Supervise(ctx, "flaky", worker, func() { close(stopped) })

		gomega.Eventually(worker.runs.Load, 3*time.Second).Should(gomega.Equal(int32(2)))
		cancel()
		gomega.Eventually(stopped).Should(gomega.BeClosed())
	})

	ginkgo.It("should call done once the context ends", func() {
		worker := &flakyWorker{}
		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})

		go Supervise(ctx, "steady", worker, func() { close(stopped) })
		gomega.Eventually(worker.runs.Load).Should(gomega.Equal(int32(1)))
		gomega.Consistently(stopped, 100*time.Millisecond).ShouldNot(gomega.BeClosed())

		cancel()
		gomega.Eventually(stopped).Should(gomega.BeClosed())
		gomega.Expect(worker.runs.Load()).To(gomega.Equal(int32(1)))
	})
})

type quitter struct {
	runs atomic.Int32
}

func (w *quitter) Run(_ context.Context, done func()) {
	defer done()
	w.runs.Add(1)
}

func (w *quitter) Shutdown() {}

var _ = ginkgo.Describe("Supervise with a worker that stops itself", func() {
	ginkgo.It("should not restart it", func() {
		worker := &quitter{}
		stopped := make(chan struct{})

		go Supervise(context.Background(), "quitter", worker, func() { close(stopped) })

		gomega.Eventually(stopped).Should(gomega.BeClosed())
		gomega.Consistently(worker.runs.Load, 1500*time.Millisecond).Should(gomega.Equal(int32(1)))
	})
})
