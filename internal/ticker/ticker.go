// Package ticker owns the process's named periodic timers. Starting a timer
// under a key stops whatever ran under that key before, and callbacks of all
// timers run one at a time.
package ticker

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Timer keys.
const (
	KeyStandard      = "standard"
	KeyExtra         = "extra"
	KeyOverlay       = "overlay"
	KeyMidnightWatch = "midnight-watch"
)

type handle struct {
	interval  time.Duration
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

// Registry is a set of named timers.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*handle

	// run serializes callbacks across every handle.
	run sync.Mutex
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{handles: make(map[string]*handle)}
}

// Every runs fn every interval under key until cancelled. Any timer already
// registered under key is cancelled first, so there is never more than one
// interval per key.
func (r *Registry) Every(key string, interval time.Duration, fn func(now time.Time)) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{interval: interval, cancel: cancel}

	r.mu.Lock()
	if old, ok := r.handles[key]; ok {
		old.stop()
	}
	r.handles[key] = h
	r.mu.Unlock()

	go r.loop(ctx, h, fn)
}

func (r *Registry) loop(ctx context.Context, h *handle, fn func(time.Time)) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			r.run.Lock()
			// A tick already waiting on the lock must not fire after cancel.
			if !h.cancelled.Load() {
				fn(now)
			}
			r.run.Unlock()
		}
	}
}

func (h *handle) stop() {
	h.cancelled.Store(true)
	h.cancel()
}

// Do runs fn serialized with timer callbacks. It must not be called from
// inside a callback.
func (r *Registry) Do(fn func()) {
	r.run.Lock()
	defer r.run.Unlock()
	fn()
}

// Cancel stops the timer under key and reports whether one was running.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[key]
	if !ok {
		return false
	}
	h.stop()
	delete(r.handles, key)
	return true
}

// Active reports whether a timer is registered under key.
func (r *Registry) Active(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[key]
	return ok
}

// Keys lists the registered keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.handles))
	for k := range r.handles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StopAll cancels every timer.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, h := range r.handles {
		h.stop()
		delete(r.handles, k)
	}
}
