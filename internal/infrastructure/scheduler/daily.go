package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"IntelDigest/internal/ports"
)

// DailyScheduler fires a job once a day at a fixed hour in a given timezone.
type DailyScheduler struct {
	hour int
	loc  *time.Location

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*DailyScheduler)(nil)

// NewDailyScheduler builds a scheduler for hour (0-23) in loc; nil loc means UTC.
func NewDailyScheduler(hour int, loc *time.Location) (*DailyScheduler, error) {
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("scheduler hour must be within 0..23, got %d", hour)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DailyScheduler{hour: hour, loc: loc, now: time.Now, after: time.After}, nil
}

// NextRun returns the first run strictly after now.
func (d *DailyScheduler) NextRun(now time.Time) time.Time {
	local := now.In(d.loc)
	run := time.Date(local.Year(), local.Month(), local.Day(), d.hour, 0, 0, 0, d.loc)
	if !run.After(local) {
		run = time.Date(local.Year(), local.Month(), local.Day()+1, d.hour, 0, 0, 0, d.loc)
	}
	return run
}

// Start launches the wait loop; a second Start while running is a no-op.
func (d *DailyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	d.stop, d.done = stop, done

	go func() {
		defer close(done)
		for {
			next := d.NextRun(d.now())
			select {
			case <-d.after(next.Sub(d.now())):
				job(next)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the loop and waits for a running job to return or ctx to expire.
func (d *DailyScheduler) Stop(ctx context.Context) error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
