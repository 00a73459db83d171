package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"classattend/internal/attendance"
)

func TestMemoryHub_deliversToSessionSubscribers(t *testing.T) {
	hub := NewMemoryHub(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := hub.Subscribe(ctx, 1)
	require.NoError(t, err)
	b, err := hub.Subscribe(ctx, 1)
	require.NoError(t, err)
	other, err := hub.Subscribe(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, Event{Type: EventAttendanceMarked, SessionID: 1, StudentID: "S1"}))

	for _, ch := range []<-chan Event{a, b} {
		select {
		case evt := <-ch:
			require.Equal(t, "S1", evt.StudentID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
	select {
	case evt := <-other:
		t.Fatalf("unexpected event for session 2: %+v", evt)
	default:
	}
}

func TestMemoryHub_unsubscribeOnCancel(t *testing.T) {
	hub := NewMemoryHub(1)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := hub.Subscribe(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 1, hub.subscriberCount(7))

	cancel()
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	require.Eventually(t, func() bool { return hub.subscriberCount(7) == 0 }, time.Second, 10*time.Millisecond)

	// publishing with no subscribers is fine
	require.NoError(t, hub.Publish(context.Background(), Event{SessionID: 7}))
}

func TestMemoryHub_slowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewMemoryHub(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := hub.Subscribe(ctx, 3)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = hub.Publish(ctx, Event{SessionID: 3})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	require.Len(t, ch, 1)
}

type recordingPublisher struct {
	got []Event
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, evt Event) error {
	p.got = append(p.got, evt)
	return p.err
}

func TestHook(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	rec := attendance.Record{ID: "r1", SessionID: 9, StudentID: "S1", DeviceID: "D1", Status: attendance.StatusLate, RecordedAt: at}

	p := &recordingPublisher{}
	require.NoError(t, Hook(p).AttendanceMarked(context.Background(), rec))
	require.Equal(t, []Event{{
		Type:      EventAttendanceMarked,
		RecordID:  "r1",
		SessionID: 9,
		StudentID: "S1",
		Status:    attendance.StatusLate,
		At:        at,
	}}, p.got)

	p.err = errors.New("down")
	require.Error(t, Hook(p).AttendanceMarked(context.Background(), rec))
}

func TestHook_withVerifier(t *testing.T) {
	store := attendance.NewMemoryStore()
	hub := NewMemoryHub(4)
	reg := attendance.NewRegistry(store, nil)
	ver := attendance.NewVerifier(store, 0, Hook(hub))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := reg.Start(ctx, attendance.StartRequest{UnitCode: "CS101", LecturerID: "L1"})
	require.NoError(t, err)
	events, err := hub.Subscribe(ctx, s.ID)
	require.NoError(t, err)

	d, err := ver.Verify(ctx, attendance.VerifyRequest{SessionID: s.ID, Token: s.Token, StudentID: "S1", DeviceID: "D1"})
	require.NoError(t, err)
	require.True(t, d.Accepted())

	select {
	case evt := <-events:
		require.Equal(t, EventAttendanceMarked, evt.Type)
		require.Equal(t, d.Record.ID, evt.RecordID)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}
