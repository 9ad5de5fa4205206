package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type every struct{ d time.Duration }

func (e every) Next(t time.Time) time.Time { return t.Add(e.d) }

type never struct{}

func (never) Next(time.Time) time.Time { return time.Time{} }

func TestParse(t *testing.T) {
	base := time.Date(2024, 5, 1, 13, 7, 0, 0, time.UTC)
	cases := []struct {
		spec string
		want time.Time
	}{
		{"", time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		{"@daily", time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		{"30 6 * * *", time.Date(2024, 5, 2, 6, 30, 0, 0, time.UTC)},
		{"6h", base.Add(6 * time.Hour)},
		{"@every 1h", base.Add(time.Hour)},
	}
	for _, c := range cases {
		s, err := Parse(c.spec)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.spec, err)
		}
		if got := s.Next(base); !got.Equal(c.want) {
			t.Fatalf("Parse(%q).Next: want %v, got %v", c.spec, c.want, got)
		}
	}
	for _, bad := range []string{"every day", "-1h", "61 * * * *"} {
		if _, err := Parse(bad); err == nil {
			t.Fatalf("Parse(%q) should fail", bad)
		}
	}
}

func TestRunner_RunsUntilCancelled(t *testing.T) {
	var n int32
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(zap.NewNop(), every{10 * time.Millisecond}, func(ctx context.Context) error {
		if atomic.AddInt32(&n, 1) >= 3 {
			cancel()
		}
		return errors.New("keep going")
	}, false)

	done := make(chan struct{})
	go func() { r.Run(ctx); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	if got := atomic.LoadInt32(&n); got < 3 {
		t.Fatalf("want at least 3 runs, got %d", got)
	}
}

func TestRunner_RunAtStartAndPanic(t *testing.T) {
	var n int32
	r := NewRunner(zap.NewNop(), never{}, func(ctx context.Context) error {
		atomic.AddInt32(&n, 1)
		panic("boom")
	}, true)

	r.Run(context.Background())
	if atomic.LoadInt32(&n) != 1 {
		t.Fatalf("want exactly the start run, got %d", n)
	}
}
