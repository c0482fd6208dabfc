package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"set_and_wait/internal/models"
)

// CancelToken is the shared "keep waiting" signal of a generation of wait sessions.
// Sessions only read it; the controller cancels it.
type CancelToken struct {
	cancelled atomic.Bool

	mu sync.Mutex
	by models.Actor
}

// Cancelled reports whether waiting was called off.
func (t *CancelToken) Cancelled() bool {
	return t.cancelled.Load()
}

// CancelledBy returns who cancelled the token first, or "" while it is live.
func (t *CancelToken) CancelledBy() models.Actor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.by
}

// cancel is idempotent; the first actor is kept.
func (t *CancelToken) cancel(by models.Actor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled.Load() {
		return
	}
	t.by = by
	t.cancelled.Store(true)
}

type actorKey struct{}

// WithActor attaches the actor on whose behalf commands on ctx are sent.
func WithActor(ctx context.Context, by models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, by)
}

// ActorFrom returns the actor attached to ctx, or models.ActorSystem.
func ActorFrom(ctx context.Context) models.Actor {
	if by, ok := ctx.Value(actorKey{}).(models.Actor); ok && by != "" {
		return by
	}
	return models.ActorSystem
}

// Clock abstracts wall time and the suspend between polls.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
