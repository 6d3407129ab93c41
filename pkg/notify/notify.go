package notify

import (
	"context"
	"time"
)

// Message is an outbound email-style notification.
type Message struct {
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Nop discards every notification.
type Nop struct{}

// Send implements Sender.
func (Nop) Send(context.Context, string, string, string) error { return nil }
