// Package alerts notifies operators by email when a follow-up flow fails.
package alerts

import (
	"context"
	"fmt"
	"time"

	"prospect_intake_backend/internal/events"
	"prospect_intake_backend/platform/config"
	"prospect_intake_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

// Mailer sends failure alerts over SMTP. When alerting is disabled it stays
// inert, so wiring it unconditionally is safe.
type Mailer struct {
	enabled  bool
	host     string
	port     int
	username string
	password string
	from     string
	to       string
	log      *logger.Logger
}

func NewMailer(cfg config.AlertConfig, log *logger.Logger) *Mailer {
	return &Mailer{
		enabled:  cfg.GetAlertsEnabled(),
		host:     cfg.GetAlertSMTPHost(),
		port:     cfg.GetAlertSMTPPort(),
		username: cfg.GetAlertSMTPUsername(),
		password: cfg.GetAlertSMTPPassword(),
		from:     cfg.GetAlertFromAddress(),
		to:       cfg.GetAlertToAddress(),
		log:      log,
	}
}

// RegisterHandlers subscribes the mailer to follow-up results.
func (m *Mailer) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.FollowupFinished{}.EventName(), events.HandlerFunc(m.handleFollowupFinished))
}

func (m *Mailer) handleFollowupFinished(ctx context.Context, event events.Event) error {
	finished, ok := event.(events.FollowupFinished)
	if !ok || finished.Succeeded {
		return nil
	}

	subject := fmt.Sprintf("[prospect-intake] follow-up failed: %s", finished.Status)
	body := fmt.Sprintf(
		"Follow-up flow failed.\n\nRequest:  %s\nWhatsapp: %s\nTask:     %s\nStatus:   %s\nReason:   %s\n",
		finished.RequestID, finished.Whatsapp, finished.TaskID, finished.Status, finished.Reason)

	if err := m.send(ctx, subject, body); err != nil {
		m.log.Error("alert mail failed", "error", err, "request_id", finished.RequestID)
		return err
	}
	return nil
}

func (m *Mailer) send(ctx context.Context, subject, body string) error {
	if !m.enabled {
		return nil
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("alert from: %w", err)
	}
	if err := msg.To(m.to); err != nil {
		return fmt.Errorf("alert to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(m.host,
		gomail.WithPort(m.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.username),
		gomail.WithPassword(m.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("alert client: %w", err)
	}

	return client.DialAndSendWithContext(ctx, msg)
}
