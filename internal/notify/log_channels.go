package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// simulate honors the same NOTIFIER_SLEEP_MS/NOTIFIER_FAIL_<channel>
// escape hatches the teacher's LogNotifier exposes, generalized to one
// env var per channel so operators can rehearse a single provider
// outage without silencing the other two.
func simulate(ctx context.Context, failVar string) error {
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		if ms, _ := strconv.Atoi(msStr); ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if os.Getenv(failVar) == "1" {
		return fmt.Errorf("%s: provider down (simulated)", failVar)
	}
	return nil
}

// LogMailer, LogSMSSender and LogPushSender are the default channel
// implementations: they log the outbound message instead of calling a
// real provider. A deployment wires real SMTP/SNS/FCM clients behind
// the same interfaces; none of those providers appear with source code
// anywhere in the reference pack, so we do not fabricate bindings for
// them here (see DESIGN.md).
type LogMailer struct{ Logger *slog.Logger }

func NewLogMailer(logger *slog.Logger) *LogMailer { return &LogMailer{Logger: logger} }

func (m *LogMailer) Send(ctx context.Context, to string, msg Message) error {
	if err := simulate(ctx, "NOTIFIER_FAIL_EMAIL"); err != nil {
		return err
	}
	m.Logger.InfoContext(ctx, "notify.email", "to", to, "subject", msg.Subject)
	return nil
}

type LogSMSSender struct{ Logger *slog.Logger }

func NewLogSMSSender(logger *slog.Logger) *LogSMSSender { return &LogSMSSender{Logger: logger} }

func (s *LogSMSSender) Send(ctx context.Context, phone string, msg Message) error {
	if err := simulate(ctx, "NOTIFIER_FAIL_SMS"); err != nil {
		return err
	}
	s.Logger.InfoContext(ctx, "notify.sms", "phone", phone, "body", msg.Body)
	return nil
}

type LogPushSender struct{ Logger *slog.Logger }

func NewLogPushSender(logger *slog.Logger) *LogPushSender { return &LogPushSender{Logger: logger} }

func (p *LogPushSender) Send(ctx context.Context, tokens []string, payload PushPayload) error {
	if err := simulate(ctx, "NOTIFIER_FAIL_PUSH"); err != nil {
		return err
	}
	p.Logger.InfoContext(ctx, "notify.push", "tokens", len(tokens), "title", payload.Title)
	return nil
}
