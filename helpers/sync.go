package helpers

// Random synchronisation util stash

import (
	"context"

	"github.com/temoto/alive/v2"
)

// AliveContext returns context cancelled when a is stopped.
// Caller must call cancel to release watcher goroutine.
func AliveContext(parent context.Context, a *alive.Alive) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-a.StopChan():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// OnStop runs f once a is stopped, unless done is closed first.
func OnStop(a *alive.Alive, done <-chan struct{}, f func()) {
	go func() {
		select {
		case <-a.StopChan():
			f()
		case <-done:
		}
	}()
}
