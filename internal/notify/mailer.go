// Package notify sends HR notification emails over SMTP.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"hr_assistant_bot/internal/config"
	"hr_assistant_bot/internal/domain"
	"hr_assistant_bot/internal/logging"
)

const (
	resumeSubject   = "New résumé received"
	implicitTLSPort = 465
)

type sendFunc func(ctx context.Context, msg *mail.Msg) error

// Mailer delivers one plaintext email per stored résumé.
type Mailer struct {
	from   string
	to     string
	send   sendFunc
	logger *logrus.Entry
}

// NewMailer builds an SMTP client from the configuration. Port 465 uses
// implicit TLS; any other port requires STARTTLS.
func NewMailer(cfg config.Config, logger *logrus.Entry) (*Mailer, error) {
	if logger == nil {
		logger = logging.Logger()
	}
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return nil, errors.New("smtp host is required")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUsername),
		mail.WithPassword(cfg.SMTPPassword),
	}
	if cfg.SMTPPort == implicitTLSPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("init smtp client: %w", err)
	}

	return &Mailer{
		from: cfg.SMTPFrom,
		to:   cfg.HREmail,
		send: func(ctx context.Context, msg *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
		logger: logger,
	}, nil
}

// NotifyResume emails HR the résumé's file name and local path.
func (m *Mailer) NotifyResume(ctx context.Context, resume domain.Resume) error {
	if m == nil || m.send == nil {
		return errors.New("mailer is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	msg, err := m.resumeMessage(resume)
	if err != nil {
		return err
	}

	if err := m.send(ctx, msg); err != nil {
		return fmt.Errorf("send resume notification: %w", err)
	}

	m.logger.WithFields(logging.Fields{
		"event":     "email_sent",
		"file_name": resume.FileName,
	}).Debug("résumé notification sent")

	return nil
}

func (m *Mailer) resumeMessage(resume domain.Resume) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(m.to); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(resumeSubject)
	msg.SetBodyString(mail.TypeTextPlain, resumeBody(resume))

	return msg, nil
}

func resumeBody(resume domain.Resume) string {
	var b strings.Builder
	b.WriteString("Hello,\n\nA new résumé has been uploaded.\n\n")
	fmt.Fprintf(&b, "File: %s\n", resume.FileName)
	fmt.Fprintf(&b, "Saved to: %s\n", resume.Path)
	if resume.Handle != "" {
		fmt.Fprintf(&b, "From: @%s\n", resume.Handle)
	}
	if resume.ExternalID != 0 {
		fmt.Fprintf(&b, "Telegram id: %d\n", resume.ExternalID)
	}
	return b.String()
}
