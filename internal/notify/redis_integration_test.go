//go:build integration

package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T, ctx context.Context) (*redis.Client, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	return client, func() {
		_ = client.Close()
		_ = container.Terminate(ctx)
	}
}

func TestIntegration_RedisHub(t *testing.T) {
	ctx := context.Background()
	client, cleanup := setupRedis(t, ctx)
	defer cleanup()

	hub := NewRedisHub(client, "test:session")
	subCtx, cancel := context.WithCancel(ctx)

	events, err := hub.Subscribe(subCtx, 42)
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, Event{Type: EventAttendanceMarked, SessionID: 41, StudentID: "other"}))
	require.NoError(t, hub.Publish(ctx, Event{Type: EventAttendanceMarked, SessionID: 42, StudentID: "S1"}))

	select {
	case evt := <-events:
		require.Equal(t, int64(42), evt.SessionID)
		require.Equal(t, "S1", evt.StudentID)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}

	// malformed payloads are skipped
	require.NoError(t, client.Publish(ctx, "test:session:42", "{not json").Err())
	require.NoError(t, hub.Publish(ctx, Event{Type: EventAttendanceMarked, SessionID: 42, StudentID: "S2"}))
	select {
	case evt := <-events:
		require.Equal(t, "S2", evt.StudentID)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-events
		return !ok
	}, 5*time.Second, 50*time.Millisecond)
}
