package heartbeat

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New("not a schedule", nil, nil, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestNew_AcceptsEveryDescriptor(t *testing.T) {
	w, err := New("@every 1m", nil, func() Snapshot { return Snapshot{} }, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, w.Next)
}

func TestRun_FiresRepeatedlyOnSchedule(t *testing.T) {
	var collected int32
	fired := make(chan struct{}, 16)

	w := &Worker{
		URLs:    []string{"ws://collector.example/push"},
		Collect: func() Snapshot { atomic.AddInt32(&collected, 1); return Snapshot{ID: "svc"} },
		Send: func(ctx context.Context, url string, s Snapshot) error {
			fired <- struct{}{}
			return nil
		},
		Log:  zerolog.Nop(),
		Next: func(now time.Time) time.Time { return now.Add(5 * time.Millisecond) },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	assert.GreaterOrEqual(t, len(fired), 2)
	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&collected)), 2)
}

func TestRun_SendFailureIsNonFatal(t *testing.T) {
	calls := 0
	w := &Worker{
		URLs:    []string{"ws://a", "ws://b"},
		Collect: func() Snapshot { return Snapshot{} },
		Send: func(ctx context.Context, url string, s Snapshot) error {
			calls++
			return assert.AnError
		},
		Log:  zerolog.Nop(),
		Next: func(now time.Time) time.Time { return now.Add(5 * time.Millisecond) },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	assert.GreaterOrEqual(t, calls, 2, "both URLs attempted despite failures")
}

func TestReload_RecomputesNextFireTime(t *testing.T) {
	var calls int32
	w := &Worker{
		Collect:  func() Snapshot { atomic.AddInt32(&calls, 1); return Snapshot{} },
		Send:     func(ctx context.Context, url string, s Snapshot) error { return nil },
		Log:      zerolog.Nop(),
		Next:     func(now time.Time) time.Time { return now.Add(time.Hour) },
		reloadCh: make(chan struct{}, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	w.Next = func(now time.Time) time.Time { return now.Add(time.Millisecond) }
	w.Reload()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&calls)), 1, "reload should have woken the worker onto the new schedule")
}
