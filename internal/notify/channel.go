// Package notify models the three outbound notification channels (spec
// §6's Mailer/SMSSender/PushSender collaborator contracts), grounded in
// the teacher's internal/notifications package.
package notify

import "context"

// Message is a rendered notification, built by the dispatcher from an
// incident.Notification's payload (spec §4.6 step 2).
type Message struct {
	Subject string
	Body    string
}

type PushPayload struct {
	Title string
	Body  string
}

// Mailer, SMSSender and PushSender are the three narrow collaborator
// contracts spec §6 names. Per-message identity is the caller's
// responsibility (incident_id, escalation_level, notification_type,
// channel) — these interfaces make no idempotency guarantee themselves.
type Mailer interface {
	Send(ctx context.Context, to string, msg Message) error
}

type SMSSender interface {
	Send(ctx context.Context, phone string, msg Message) error
}

type PushSender interface {
	Send(ctx context.Context, tokens []string, payload PushPayload) error
}
