package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	calls atomic.Int32
	ran   bool
	err   error
}

func (f *fakeJob) RescheduleIfStale(context.Context) (bool, error) {
	f.calls.Add(1)
	return f.ran, f.err
}

func TestWake(t *testing.T) {
	job := &fakeJob{ran: true}
	r := New(job, 0)
	assert.Equal(t, DefaultInterval, r.Interval())
	assert.Equal(t, StatusNone, r.Last().Status)

	assert.Equal(t, StatusSuccess, r.Wake(context.Background()))
	assert.True(t, r.Last().Ran)
	assert.Empty(t, r.Last().Err)

	job.err = errors.New("store offline")
	assert.Equal(t, StatusFailed, r.Wake(context.Background()))
	assert.Equal(t, "store offline", r.Last().Err)
	assert.Equal(t, "failed", r.Last().Status.String())
}

func TestRunWakesPeriodicallyUntilCancelled(t *testing.T) {
	job := &fakeJob{}
	r := New(job, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return job.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StatusSuccess, r.Last().Status)
}
