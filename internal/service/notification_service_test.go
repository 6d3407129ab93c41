package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationDispatcherDelivers(t *testing.T) {
	sender := &senderStub{}
	d := NewNotificationDispatcher(sender, NotificationConfig{Workers: 1}, nil, nil)
	d.Start(context.Background())
	defer d.Shutdown(context.Background())

	require.NoError(t, d.Send(context.Background(), "uma@example.com", "Welcome", "hello"))
	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "uma@example.com|Welcome", sender.sent[0])
}

func TestNotificationDispatcherCountsDrops(t *testing.T) {
	metrics := NewMetricsService()
	sender := &senderStub{err: errors.New("broker down")}
	d := NewNotificationDispatcher(sender, NotificationConfig{Workers: 1, MaxRetries: 1, RetryDelay: 5 * time.Millisecond}, metrics, nil)
	d.Start(context.Background())
	defer d.Shutdown(context.Background())

	require.NoError(t, d.Send(context.Background(), "uma@example.com", "Welcome", "hello"))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.notificationsDropped) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, sender.count())
}

func TestNotificationDispatcherFailsFastWhenStopped(t *testing.T) {
	d := NewNotificationDispatcher(&senderStub{}, NotificationConfig{}, nil, nil)
	require.Error(t, d.Send(context.Background(), "uma@example.com", "Welcome", "hello"))
}

func TestNotificationDispatcherShutdownFlushesBuffer(t *testing.T) {
	sender := &senderStub{}
	d := NewNotificationDispatcher(sender, NotificationConfig{Workers: 1, BufferSize: 8}, nil, nil)
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Send(context.Background(), "uma@example.com", "Welcome", "hello"))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Shutdown(ctx)

	assert.Equal(t, 5, sender.count())
	require.Error(t, d.Send(context.Background(), "uma@example.com", "Late", "hello"))
}

func TestNotificationDispatcherCountsAbandonedOnShutdown(t *testing.T) {
	metrics := NewMetricsService()
	sender := &blockingSender{started: make(chan struct{})}
	d := NewNotificationDispatcher(sender, NotificationConfig{Workers: 1, BufferSize: 4}, metrics, nil)
	d.Start(context.Background())

	require.NoError(t, d.Send(context.Background(), "a@example.com", "Welcome", "hello"))
	<-sender.started
	require.NoError(t, d.Send(context.Background(), "b@example.com", "Welcome", "hello"))
	require.NoError(t, d.Send(context.Background(), "c@example.com", "Welcome", "hello"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Shutdown(ctx)

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.notificationsDropped))
}

// blockingSender holds every delivery until its context is cancelled.
type blockingSender struct {
	once    sync.Once
	started chan struct{}
}

func (b *blockingSender) Send(ctx context.Context, to, subject, body string) error {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return ctx.Err()
}
