package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/pawdose/medtrack-api/internal/config"
	"github.com/pawdose/medtrack-api/internal/model"
	"github.com/pawdose/medtrack-api/internal/notifier"
)

type Notifier struct {
	dialer *gomail.Dialer
	from   string
}

func New(cfg config.SMTPConfig) *Notifier {
	return &Notifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

var _ notifier.Notifier = (*Notifier)(nil)

func (n *Notifier) SendReminder(ctx context.Context, event *model.DueEventContext) error {
	subject := fmt.Sprintf("Reminder: %s is due for %s", event.PetName, event.MedicationName)
	body := fmt.Sprintf(
		"%s is due for %s %s at %s.",
		event.PetName,
		event.MedicationName,
		event.Dosage,
		event.ScheduledTime.Format("15:04"),
	)
	return n.send(ctx, event.UserEmail, subject, body)
}

func (n *Notifier) SendOverdue(ctx context.Context, event *model.DueEventContext) error {
	subject := fmt.Sprintf("Overdue: %s missed a dose of %s", event.PetName, event.MedicationName)
	body := fmt.Sprintf(
		"%s was due for %s %s at %s and has not been logged yet.",
		event.PetName,
		event.MedicationName,
		event.Dosage,
		event.ScheduledTime.Format("15:04"),
	)
	return n.send(ctx, event.UserEmail, subject, body)
}

func (n *Notifier) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to == "" {
		return fmt.Errorf("no recipient address")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
