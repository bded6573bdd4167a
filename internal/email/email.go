// Package email delivers rendered notifications over SMTP.
package email

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/travelgo/config"
	"github.com/Domenick1991/travelgo/internal/notification"
	"github.com/wneessen/go-mail"
)

type Sender struct {
	cfg config.MailConfig
}

func NewSender(cfg config.MailConfig) *Sender {
	return &Sender{cfg: cfg}
}

// Send opens a fresh SMTP session per message.
func (s *Sender) Send(ctx context.Context, e notification.Email) error {
	msg, err := s.buildMessage(e)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", e.To, err)
	}
	return nil
}

func (s *Sender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(time.Duration(s.cfg.TimeoutSecs) * time.Second),
	}
	if s.cfg.UseSSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// buildMessage produces a multipart/alternative message with the plain text
// part first and the logo embedded for cid: references.
func (s *Sender) buildMessage(e notification.Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.cfg.From, err)
	}
	if err := msg.To(e.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", e.To, err)
	}
	msg.Subject(e.Subject)
	msg.SetBodyString(mail.TypeTextPlain, e.TextBody)
	msg.AddAlternativeString(mail.TypeTextHTML, e.HTMLBody)

	if e.Inline != nil {
		msg.EmbedFile(e.Inline.Path,
			mail.WithFileName(e.Inline.FileName),
			mail.WithFileContentID(e.Inline.ContentID),
		)
	}
	return msg, nil
}

var _ notification.Transport = (*Sender)(nil)
