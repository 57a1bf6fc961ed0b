package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"solana-dex-bot/internal/storage"
)

// setupTestRedis starts a Redis container and returns a connected client.
func setupTestRedis(t *testing.T) (*Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := New(ctx, ClientConfig{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, err)

	return client, func() {
		client.Close()
		_ = container.Terminate(ctx)
	}
}

func TestPriceMirror(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	mirror := NewPriceMirror(client, time.Minute)

	_, _, err := mirror.GetPrice(ctx, "mintA")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	ts := time.UnixMilli(1700000000123)
	require.NoError(t, mirror.SetPrice(ctx, "mintA", 0.0000012, ts))

	price, gotTs, err := mirror.GetPrice(ctx, "mintA")
	require.NoError(t, err)
	assert.InDelta(t, 0.0000012, price, 1e-15)
	assert.Equal(t, ts.UnixMilli(), gotTs.UnixMilli())

	ttl, err := client.Underlying().TTL(ctx, "price:mintA").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestPublisher_RoundTrip(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := NewPublisher(client)
	ch, err := pub.Subscribe(ctx, "dexbot:events")
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, "dexbot:events", []byte(`{"type":"position_opened"}`)))

	select {
	case msg := <-ch:
		assert.Equal(t, `{"type":"position_opened"}`, string(msg))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for published message")
	}

	cancel()
	for range ch {
	}
}
