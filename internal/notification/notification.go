// Package notification renders and dispatches transactional booking emails.
package notification

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Domenick1991/travelgo/internal/domain"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

type Kind string

const (
	KindBookingConfirmation Kind = "booking_confirmation"
	KindBookingCancellation Kind = "booking_cancellation"
)

// LogoContentID is the Content-ID the templates reference as cid:logo_image.
const LogoContentID = "logo_image"

const departureLayout = "02 Jan 2006, 15:04"

// Context is the data exposed to the email templates.
type Context struct {
	PassengerName string `json:"passenger_name"`
	Airline       string `json:"airline"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	SeatNumber    string `json:"seat_number"`
	DepartureTime string `json:"departure_time"`
	Location      string `json:"location"`
	DeviceID      string `json:"device_id"`
	TransactionID string `json:"transaction_id"`
	RefundStatus  string `json:"refund_status,omitempty"`
}

type Message struct {
	Kind      Kind    `json:"kind"`
	Subject   string  `json:"subject"`
	Recipient string  `json:"recipient"`
	Context   Context `json:"context"`
}

// FormatDeparture renders a departure as "02 Jan 2006, 15:04" in UTC, or TBD.
func FormatDeparture(t *time.Time) string {
	if t == nil {
		return "TBD"
	}
	return t.UTC().Format(departureLayout)
}

type InlineImage struct {
	Path      string
	ContentID string
	FileName  string
}

// Email is a fully rendered message ready for a Transport.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
	Inline   *InlineImage
}

type Transport interface {
	Send(ctx context.Context, email Email) error
}

type Service struct {
	transport Transport
	templates *template.Template
	logoPath  string
	text      *bluemonday.Policy
	log       logrus.FieldLogger
}

func NewService(transport Transport, logoPath string, log logrus.FieldLogger) (*Service, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Service{
		transport: transport,
		templates: tmpl,
		logoPath:  logoPath,
		text:      bluemonday.StrictPolicy(),
		log:       log,
	}, nil
}

// Notify renders msg and hands it to the transport. Every failure, including
// a panic in the transport, comes back as a *domain.NotificationError after
// being logged; nothing is retried.
func (s *Service) Notify(ctx context.Context, msg Message) (err error) {
	entry := s.log.WithFields(logrus.Fields{"kind": msg.Kind, "recipient": msg.Recipient})
	defer func() {
		if r := recover(); r != nil {
			err = &domain.NotificationError{Stage: "dispatch", Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			entry.WithError(err).Error("email not sent")
		}
	}()

	body, err := s.Render(msg)
	if err != nil {
		return &domain.NotificationError{Stage: "render", Err: err}
	}

	email := Email{
		To:       msg.Recipient,
		Subject:  msg.Subject,
		TextBody: s.PlainText(body),
		HTMLBody: body,
		Inline:   s.logo(entry),
	}

	if err := s.transport.Send(ctx, email); err != nil {
		return &domain.NotificationError{Stage: "transport", Err: err}
	}

	entry.Info("email sent")
	return nil
}

// Render executes the template selected by msg.Kind.
func (s *Service) Render(msg Message) (string, error) {
	name := string(msg.Kind) + ".html"
	if s.templates.Lookup(name) == nil {
		return "", fmt.Errorf("unknown template %q", msg.Kind)
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, msg.Context); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PlainText strips markup from a rendered body and drops blank lines.
func (s *Service) PlainText(body string) string {
	stripped := html.UnescapeString(s.text.Sanitize(body))
	lines := strings.Split(stripped, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func (s *Service) logo(entry logrus.FieldLogger) *InlineImage {
	if s.logoPath == "" {
		return nil
	}
	if _, err := os.Stat(s.logoPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			entry.WithError(err).Warn("logo attachment skipped")
		}
		return nil
	}
	return &InlineImage{Path: s.logoPath, ContentID: LogoContentID, FileName: filepath.Base(s.logoPath)}
}
