// Package notify delivers lending notifications without blocking the
// operations that trigger them.
package notify

import (
	"context"
	"log/slog"
)

// Event names a notification template.
type Event string

// Events.
const (
	EventBorrowRequested Event = "borrow_requested"
	EventBorrowApproved  Event = "borrow_approved"
	EventBorrowDeclined  Event = "borrow_declined"
	EventBorrowCancelled Event = "borrow_cancelled"
	EventLoanStarted     Event = "loan_started"
	EventItemReturned    Event = "item_returned"
	EventLoanOverdue     Event = "loan_overdue"
	EventDisputeOpened   Event = "dispute_opened"
	EventDisputeResolved Event = "dispute_resolved"
	EventAccountAction   Event = "account_action"
)

// Contact is where a message is delivered.
type Contact struct {
	UserID   int64
	Username string
	Email    string
	Phone    string
}

// Message is one notification for one recipient.
type Message struct {
	Event   Event
	To      Contact
	Payload map[string]string
}

// Gateway delivers a message over some channel (e-mail, SMS, ...).
type Gateway interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier accepts messages for asynchronous delivery.
type Notifier interface {
	Notify(msg Message)
}

// LogGateway writes messages to the log instead of delivering them. Payload
// keys listed in redactedKeys carry capabilities and are never written; the
// recipient's contact details are logged at debug level only.
type LogGateway struct {
	Log *slog.Logger
}

var redactedKeys = map[string]bool{
	"response_link": true,
}

// Send logs the message.
func (g LogGateway) Send(ctx context.Context, msg Message) error {
	attrs := []any{
		"event", string(msg.Event),
		"user_id", msg.To.UserID,
	}
	for k, v := range msg.Payload {
		if redactedKeys[k] {
			v = "[redacted]"
		}
		attrs = append(attrs, k, v)
	}
	g.Log.InfoContext(ctx, "notification", attrs...)
	g.Log.DebugContext(ctx, "notification recipient",
		"event", string(msg.Event),
		"user_id", msg.To.UserID,
		"email", msg.To.Email,
		"phone", msg.To.Phone,
	)
	return nil
}

// Discard drops every message. Useful where notifications are irrelevant.
type Discard struct{}

// Notify does nothing.
func (Discard) Notify(Message) {}
