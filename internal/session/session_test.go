package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsvpn/client/internal/config"
)

func newTestClient() *Client {
	return New(&config.ClientConfig{
		ServerURL:            "wss://example.test",
		AuthToken:            "t",
		ReconnectMaxAttempts: 5,
		ReconnectInitialMS:   1000,
	})
}

func TestEnqueueDataUpdatesStatsAndQueues(t *testing.T) {
	c := newTestClient()
	require.NoError(t, c.EnqueueData(context.Background(), []byte{1, 2, 3}))

	select {
	case msg := <-c.outbound:
		assert.Equal(t, uint64(1), msg.Seq)
	default:
		t.Fatal("expected a queued frame")
	}
	assert.Equal(t, int64(1), c.StatsSnapshot().PacketsOut)
	assert.Equal(t, int64(3), c.StatsSnapshot().BytesOut)
}

func TestEnqueueDataHonorsContextCancellation(t *testing.T) {
	c := newTestClient()
	for i := 0; i < outboundQueueSize; i++ {
		c.outbound <- nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.EnqueueData(ctx, []byte{1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecordInboundUpdatesStats(t *testing.T) {
	c := newTestClient()
	c.RecordInbound(42)
	s := c.StatsSnapshot()
	assert.Equal(t, int64(1), s.PacketsIn)
	assert.Equal(t, int64(42), s.BytesIn)
}

func TestCloseIsIdempotent(t *testing.T) {
	c := newTestClient()
	c.Close()
	assert.NotPanics(t, c.Close)
}

func TestBackoffReturnsFalseOnCanceledContext(t *testing.T) {
	c := newTestClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, c.backoff(ctx, 1))
}

func TestBackoffReturnsWhenContextExpiresDuringLongWait(t *testing.T) {
	c := newTestClient()
	c.cfg.ReconnectInitialMS = 60000
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	c.backoff(ctx, 10)
	assert.WithinDuration(t, start.Add(50*time.Millisecond), time.Now(), 200*time.Millisecond)
}

func TestCheckServerVersionToleratesGarbage(t *testing.T) {
	assert.NotPanics(t, func() {
		checkServerVersion(context.Background(), "not-a-version")
	})
	assert.NotPanics(t, func() {
		checkServerVersion(context.Background(), "")
	})
}
