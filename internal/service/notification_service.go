package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/pkg/jobs"
	"github.com/noah-isme/course-enrollment-api/pkg/notify"
)

// NotificationConfig tunes the dispatcher's worker pool.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationDispatcher hands notifications to a background worker pool so callers never wait on delivery.
type NotificationDispatcher struct {
	sender  notify.Sender
	queue   *jobs.Queue[notify.Message]
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationDispatcher builds a dispatcher delivering through sender.
func NewNotificationDispatcher(sender notify.Sender, cfg NotificationConfig, metrics *MetricsService, logger *zap.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = notify.Nop{}
	}
	d := &NotificationDispatcher{sender: sender, metrics: metrics, logger: logger}
	d.queue = jobs.New("notifications", d.deliver, jobs.Config[notify.Message]{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnDrop: func(msg notify.Message, attempts int, err error) {
			logger.Warn("notification dropped", zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.Int("attempts", attempts), zap.Error(err))
			metrics.RecordNotificationDropped()
		},
	})
	return d
}

// Start launches the workers.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Shutdown stops accepting messages and delivers what is buffered until ctx is done.
// Messages still undelivered after that are counted as drops.
func (d *NotificationDispatcher) Shutdown(ctx context.Context) {
	d.queue.Shutdown(ctx)
}

// Send enqueues a message and returns immediately.
func (d *NotificationDispatcher) Send(_ context.Context, to, subject, body string) error {
	msg := notify.Message{To: to, Subject: subject, Body: body, CreatedAt: time.Now().UTC()}
	if err := d.queue.Enqueue(msg); err != nil {
		d.metrics.RecordNotificationDropped()
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func (d *NotificationDispatcher) deliver(ctx context.Context, msg notify.Message) error {
	return d.sender.Send(ctx, msg.To, msg.Subject, msg.Body)
}
