package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// forceExit ends the process on a second interrupt. Tests replace it.
var forceExit = func() { os.Exit(130) }

// shutdownContext is canceled by the first SIGINT or SIGTERM. put and watch
// then cancel their uploads and serve drains its requests. If a second
// signal arrives before stop is called, the process exits at once. stop
// releases the signal handler and cancels the context.
func shutdownContext(parent context.Context, logger *slog.Logger) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	interrupts := make(chan os.Signal, 2)
	signal.Notify(interrupts, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(interrupts)

		for n := 0; ; n++ {
			var sig os.Signal

			select {
			case sig = <-interrupts:
			case <-parent.Done():
				cancel()
				return
			case <-done:
				return
			}

			if n == 0 {
				logger.Info("interrupted, stopping", slog.String("signal", sig.String()))
				cancel()

				continue
			}

			logger.Warn("interrupted again, exiting now", slog.String("signal", sig.String()))
			forceExit()

			return
		}
	}()

	var once sync.Once

	return ctx, func() {
		once.Do(func() { close(done) })
		cancel()
	}
}
