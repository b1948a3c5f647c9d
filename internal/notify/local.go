package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayerd/internal/timeutil"
)

// Delivery is a notification as it reaches a sink.
type Delivery struct {
	ID string `json:"id"`
	Notification
}

// Sink receives notifications when they fire.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, d Delivery) error
}

// LocalNotifier is the in-process notification primitive: one timer per
// scheduled notification, fanned out to sinks when it fires.
type LocalNotifier struct {
	clock timeutil.Clock
	sinks []Sink

	mu        sync.Mutex
	timers    map[string]*time.Timer
	permitted bool
	delivered int
}

// NewLocalNotifier returns a notifier delivering to sinks. Without sinks it
// is not permitted to schedule anything.
func NewLocalNotifier(clock timeutil.Clock, sinks ...Sink) *LocalNotifier {
	return &LocalNotifier{
		clock:     clock,
		sinks:     sinks,
		timers:    make(map[string]*time.Timer),
		permitted: len(sinks) > 0,
	}
}

// SetPermitted grants or revokes scheduling permission.
func (l *LocalNotifier) SetPermitted(ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.permitted = ok && len(l.sinks) > 0
}

// Schedule arms a timer for n.
func (l *LocalNotifier) Schedule(_ context.Context, n Notification) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.permitted {
		return "", ErrPermissionDenied
	}
	wait := n.FireAt.Sub(l.clock.Now())
	if wait < 0 {
		return "", fmt.Errorf("fire time %s already passed", n.FireAt.Format(time.RFC3339))
	}

	id := uuid.NewString()
	l.timers[id] = time.AfterFunc(wait, func() { l.fire(Delivery{ID: id, Notification: n}) })
	return id, nil
}

func (l *LocalNotifier) fire(d Delivery) {
	l.mu.Lock()
	if _, ok := l.timers[d.ID]; !ok {
		l.mu.Unlock()
		return
	}
	delete(l.timers, d.ID)
	l.delivered++
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, s := range l.sinks {
		if err := s.Deliver(ctx, d); err != nil {
			log.Error().Err(err).Str("sink", s.Name()).Str("id", d.ID).Msg("notification delivery failed")
		}
	}
}

// Cancel disarms a notification. Unknown ids are ignored.
func (l *LocalNotifier) Cancel(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.timers[id]; ok {
		t.Stop()
		delete(l.timers, id)
	}
	return nil
}

// Pending lists armed notification ids, sorted.
func (l *LocalNotifier) Pending(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.timers))
	for id := range l.timers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delivered returns how many notifications have fired.
func (l *LocalNotifier) Delivered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delivered
}

// Close disarms everything.
func (l *LocalNotifier) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}
