package scheduler

import (
	"context"
	"testing"
	"time"

	_ "time/tzdata"
)

func TestNextRun(t *testing.T) {
	t.Parallel()

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	cases := []struct {
		name string
		hour int
		loc  *time.Location
		now  time.Time
		want time.Time
	}{
		{"later today", 8, time.UTC, time.Date(2026, 3, 14, 6, 30, 0, 0, time.UTC), time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)},
		{"exactly at hour", 8, time.UTC, time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC), time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)},
		{"after hour", 8, time.UTC, time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC), time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)},
		{"month rollover", 0, time.UTC, time.Date(2026, 3, 31, 1, 0, 0, 0, time.UTC), time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"timezone", 8, berlin, time.Date(2026, 3, 14, 6, 30, 0, 0, time.UTC), time.Date(2026, 3, 15, 8, 0, 0, 0, berlin)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d, err := NewDailyScheduler(tc.hour, tc.loc)
			if err != nil {
				t.Fatalf("new scheduler: %v", err)
			}
			if got := d.NextRun(tc.now); !got.Equal(tc.want) {
				t.Fatalf("NextRun(%v) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestDailySchedulerRunsJobAndStops(t *testing.T) {
	t.Parallel()

	d, err := NewDailyScheduler(8, time.UTC)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	d.now = func() time.Time { return time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC) }

	ticks := make(chan time.Time, 1)
	d.after = func(time.Duration) <-chan time.Time { return ticks }

	fired := make(chan time.Time, 1)
	if err := d.Start(context.Background(), func(at time.Time) { fired <- at }); err != nil {
		t.Fatalf("start: %v", err)
	}

	ticks <- time.Time{}
	select {
	case at := <-fired:
		if !at.Equal(time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected trigger time %v", at)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("second stop should be a no-op: %v", err)
	}
}

func TestNewDailySchedulerRejectsHour(t *testing.T) {
	t.Parallel()

	if _, err := NewDailyScheduler(24, nil); err == nil {
		t.Fatal("expected error for hour 24")
	}
}
