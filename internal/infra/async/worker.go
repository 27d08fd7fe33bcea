package async

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Worker interface {
	Run(context.Context, func())
	Shutdown()
}

const _restartDelay = time.Second

// Supervise keeps a worker running until ctx is done. A worker that panics is
// restarted after a short delay; one that returns on its own is considered
// stopped. done is called once, after the last run ends.
func Supervise(ctx context.Context, name string, worker Worker, done func()) {
	defer done()

	for {
		err := runOnce(ctx, worker)
		if ctx.Err() != nil || err == nil {
			slog.Info("worker stopped", slog.String("worker", name))
			return
		}

		slog.Error("worker panicked, restarting",
			slog.String("worker", name),
			slog.Any("error", err),
			slog.Duration("delay", _restartDelay))

		select {
		case <-ctx.Done():
			return
		case <-time.After(_restartDelay):
		}
	}
}

func runOnce(ctx context.Context, worker Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	finished := make(chan struct{})
	worker.Run(ctx, func() { close(finished) })
	<-finished
	return nil
}
