// Package notify delivers composed reports over mail, object storage or the log.
package notify

import (
	"context"
	"fmt"
	"io"

	"github.com/kirana/posreport/internal/domain/report"
	"github.com/kirana/posreport/internal/infrastructure/config"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Sender sends fully built messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailNotifier sends the report as an HTML mail with the export attached
type MailNotifier struct {
	sender   Sender
	from     string
	fromName string
	to       []string
	logger   *zap.Logger
}

// NewMailNotifier creates a MailNotifier that dials cfg.Host over SMTP
func NewMailNotifier(cfg config.MailConfig, logger *zap.Logger) *MailNotifier {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return NewMailNotifierWithSender(dialer, cfg, logger)
}

// NewMailNotifierWithSender creates a MailNotifier on an existing Sender
func NewMailNotifierWithSender(sender Sender, cfg config.MailConfig, logger *zap.Logger) *MailNotifier {
	return &MailNotifier{
		sender:   sender,
		from:     cfg.From,
		fromName: cfg.FromName,
		to:       cfg.To,
		logger:   logger,
	}
}

// Deliver sends msg to every configured recipient in one mail
func (n *MailNotifier) Deliver(ctx context.Context, msg report.Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: mail: %v", report.ErrDeliveryFailed, err)
	}
	if len(n.to) == 0 {
		return fmt.Errorf("%w: mail: no recipients configured", report.ErrDeliveryFailed)
	}

	if err := n.sender.DialAndSend(n.buildMessage(msg)); err != nil {
		return fmt.Errorf("%w: mail: %v", report.ErrDeliveryFailed, err)
	}

	n.logger.Info("Report mailed",
		zap.String("subject", msg.Subject),
		zap.Strings("to", n.to),
		zap.Int("attachments", len(msg.Attachments)),
	)
	return nil
}

func (n *MailNotifier) buildMessage(msg report.Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", n.from, n.fromName)
	m.SetHeader("To", n.to...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)

	for _, att := range msg.Attachments {
		content := att.Content
		m.Attach(att.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
			gomail.SetHeader(map[string][]string{
				"Content-Type": {att.ContentType},
			}),
		)
	}
	return m
}
