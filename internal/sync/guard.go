package sync

import (
	"context"
	stdsync "sync"
)

// fetchResult carries the outcome of an in-flight fetch to its waiters. done
// is closed exactly once, after value and err are set.
type fetchResult struct {
	done  chan struct{}
	value []byte
	err   error
}

// FetchGuard ensures at most one in-flight fetch per key. Concurrent callers
// for the same key block until the owning fetch finishes and then share its
// result, so a burst of requests for one message body costs one network call.
//
// A waiting caller wakes promptly when its own context is cancelled; the
// in-flight fetch is unaffected.
type FetchGuard struct {
	mu       stdsync.Mutex
	inFlight map[string]*fetchResult
}

// NewFetchGuard creates an empty guard.
func NewFetchGuard() *FetchGuard {
	return &FetchGuard{inFlight: make(map[string]*fetchResult)}
}

// Do fetches the resource for key, or waits for an already running fetch of
// the same key and returns its result. The guard entry is released in all
// paths, including panic and cancellation of the owner.
func (g *FetchGuard) Do(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	g.mu.Lock()
	if r, ok := g.inFlight[key]; ok {
		g.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.done:
			return r.value, r.err
		}
	}

	r := &fetchResult{done: make(chan struct{})}
	g.inFlight[key] = r
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.inFlight, key)
		g.mu.Unlock()
		close(r.done)
	}()

	r.value, r.err = fetch(ctx)
	return r.value, r.err
}

// InFlight reports the number of keys currently being fetched.
func (g *FetchGuard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}
