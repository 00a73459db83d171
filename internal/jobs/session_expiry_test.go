package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"classattend/internal/attendance"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (c *countingExpirer) ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep without deadline")
	}
	return 1, c.err
}

func TestRunSessionExpiry_disabled(t *testing.T) {
	exp := &countingExpirer{}
	RunSessionExpiry(context.Background(), exp, ExpiryConfig{})
	require.Zero(t, exp.calls.Load())
}

func TestRunSessionExpiry_ticksUntilCancelled(t *testing.T) {
	exp := &countingExpirer{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunSessionExpiry(ctx, exp, ExpiryConfig{MaxAge: time.Hour, Interval: 10 * time.Millisecond})
		close(done)
	}()

	require.Eventually(t, func() bool { return exp.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not stop")
	}
}

func TestSweepOnce_errorIsContained(t *testing.T) {
	exp := &countingExpirer{err: errors.New("db down")}
	require.Zero(t, sweepOnce(context.Background(), exp, time.Hour, time.Second))
	require.Equal(t, int32(1), exp.calls.Load())
}

func TestSweepOnce_withRegistry(t *testing.T) {
	store := attendance.NewMemoryStore()
	reg := attendance.NewRegistry(store, nil)
	ctx := context.Background()

	s, err := reg.Start(ctx, attendance.StartRequest{UnitCode: "CS101", LecturerID: "L1"})
	require.NoError(t, err)

	require.Zero(t, sweepOnce(ctx, reg, time.Hour, time.Second))
	time.Sleep(time.Millisecond)
	require.Equal(t, int64(1), sweepOnce(ctx, reg, time.Nanosecond, time.Second))

	got, err := store.FindSession(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, attendance.StateEnded, got.State)
}
