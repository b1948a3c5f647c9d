// Package background is the periodic wake that keeps the notification set
// fresh while the foreground loop may not be running: every interval it runs
// the scheduler's full-reconcile path when the last one is stale.
package background

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultInterval is how often the runner wakes.
const DefaultInterval = 6 * time.Hour

// Status is the outcome of one wake.
type Status int

const (
	StatusNone Status = iota
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	}
	return "none"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Rescheduler is the full-reconcile entry point of the notification
// scheduler.
type Rescheduler interface {
	RescheduleIfStale(ctx context.Context) (bool, error)
}

// Result describes the last wake.
type Result struct {
	Status Status    `json:"status"`
	Ran    bool      `json:"ran"`
	At     time.Time `json:"at"`
	Err    string    `json:"error,omitempty"`
}

// Runner wakes every interval and runs the rescheduler.
type Runner struct {
	job      Rescheduler
	interval time.Duration

	mu   sync.Mutex
	last Result
}

// New returns a Runner. A non-positive interval means DefaultInterval.
func New(job Rescheduler, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{job: job, interval: interval}
}

// Interval returns the wake interval.
func (r *Runner) Interval() time.Duration { return r.interval }

// Run wakes once immediately and then every interval until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Msg("background reschedule started")
	r.Wake(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("background reschedule stopped")
			return
		case <-ticker.C:
			r.Wake(ctx)
		}
	}
}

// Wake runs one reschedule pass and reports its status.
func (r *Runner) Wake(ctx context.Context) Status {
	ran, err := r.job.RescheduleIfStale(ctx)
	res := Result{Status: StatusSuccess, Ran: ran, At: time.Now()}
	if err != nil {
		res.Status = StatusFailed
		res.Err = err.Error()
		log.Error().Err(err).Msg("background reschedule failed")
	} else if ran {
		log.Info().Msg("background reschedule completed")
	}

	r.mu.Lock()
	r.last = res
	r.mu.Unlock()
	return res.Status
}

// Last returns the result of the most recent wake.
func (r *Runner) Last() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
