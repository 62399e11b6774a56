package notifications

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"eventix/pkg/logger"

	"github.com/google/uuid"
)

// EmailService delivers a single notification.
type EmailService interface {
	SendNotification(ctx context.Context, notification *EmailNotification) error
}

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	UseTLS    bool
	Timeout   time.Duration
}

func validateSMTPConfig(config *SMTPConfig) error {
	if config == nil {
		return errors.New("SMTP config is nil")
	}
	if config.Host == "" {
		return errors.New("SMTP host is required")
	}
	if config.Port <= 0 || config.Port > 65535 {
		return errors.New("SMTP port must be between 1 and 65535")
	}
	if config.FromEmail == "" {
		return errors.New("from email is required")
	}
	return nil
}

// SMTPEmailService sends notifications through an SMTP relay, upgrading the
// connection with STARTTLS when UseTLS is set.
type SMTPEmailService struct {
	config *SMTPConfig
	logger *logger.Logger
}

func NewSMTPEmailService(config *SMTPConfig, log *logger.Logger) (*SMTPEmailService, error) {
	if err := validateSMTPConfig(config); err != nil {
		return nil, fmt.Errorf("invalid SMTP configuration: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &SMTPEmailService{config: config, logger: log.WithComponent("smtp")}, nil
}

func (s *SMTPEmailService) SendNotification(ctx context.Context, notification *EmailNotification) error {
	htmlBody, textBody, err := RenderEmail(notification)
	if err != nil {
		return fmt.Errorf("failed to generate email content: %w", err)
	}
	message := buildMessage(s.config.FromName, s.config.FromEmail, notification.RecipientEmail,
		notification.Subject, htmlBody, textBody, time.Now())

	if err := s.send(ctx, notification.RecipientEmail, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Info("Email sent",
		"notification_id", notification.ID.String(),
		"type", string(notification.Type),
		"to", notification.RecipientEmail)
	return nil
}

func (s *SMTPEmailService) send(ctx context.Context, to string, message []byte) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	dialer := &net.Dialer{Timeout: s.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(s.config.Timeout))
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open SMTP session: %w", err)
	}
	defer client.Close()

	if s.config.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}
	if err := client.Mail(s.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return client.Quit()
}

// buildMessage renders a multipart/alternative message with a plain text
// and an HTML part.
func buildMessage(fromName, fromEmail, to, subject, htmlBody, textBody string, at time.Time) []byte {
	boundary := "eventix_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	var b bytes.Buffer
	writeHeader := func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	from := fromEmail
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", fromName), fromEmail)
	}
	writeHeader("From", from)
	writeHeader("To", to)
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", subject))
	writeHeader("Date", at.Format(time.RFC1123Z))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%s", boundary))
	b.WriteString("\r\n")

	parts := []struct{ contentType, body string }{
		{"text/plain", textBody},
		{"text/html", htmlBody},
	}
	for _, part := range parts {
		if part.body == "" {
			continue
		}
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: %s; charset=UTF-8\r\n\r\n", part.contentType)
		b.WriteString(part.body)
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.Bytes()
}

// LogEmailService writes emails to the log instead of sending them. It is
// used when no SMTP relay is configured.
type LogEmailService struct {
	logger *logger.Logger
}

func NewLogEmailService(log *logger.Logger) *LogEmailService {
	return &LogEmailService{logger: log.WithComponent("email-log")}
}

func (s *LogEmailService) SendNotification(ctx context.Context, notification *EmailNotification) error {
	_, text, err := RenderEmail(notification)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Email (not sent, no SMTP relay configured)",
		"type", string(notification.Type),
		"to", notification.RecipientEmail,
		"subject", notification.Subject,
		"body", text)
	return nil
}

// TEMPLATES

type emailTemplate struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

var emailTemplates = map[NotificationType]emailTemplate{
	NotificationTypeBookingConfirmed: {
		html: htmltemplate.Must(htmltemplate.New("confirmed").Parse(`<h2>Booking confirmed</h2>
<p>Hi {{.recipient_name}},</p>
<p>Your booking for <strong>{{.event_title}}</strong> is confirmed.</p>
<table>
<tr><td>Reference</td><td><strong>{{.booking_reference}}</strong></td></tr>
<tr><td>Date</td><td>{{.event_date}}</td></tr>
<tr><td>Venue</td><td>{{.venue}}</td></tr>
<tr><td>Seats</td><td>{{.seats}}</td></tr>
<tr><td>Total</td><td>{{.total_amount}} {{.currency}}</td></tr>
</table>
<p>Show the QR code from your booking at the entrance.</p>
<p>The Eventix team</p>`)),
		text: texttemplate.Must(texttemplate.New("confirmed").Parse(`Hi {{.recipient_name}},

Your booking for {{.event_title}} is confirmed.

Reference: {{.booking_reference}}
Date: {{.event_date}}
Venue: {{.venue}}
Seats: {{.seats}}
Total: {{.total_amount}} {{.currency}}

Show the QR code from your booking at the entrance.

The Eventix team`)),
	},
	NotificationTypeBookingCancelled: {
		html: htmltemplate.Must(htmltemplate.New("cancelled").Parse(`<h2>Booking cancelled</h2>
<p>Hi {{.recipient_name}},</p>
<p>Your booking <strong>{{.booking_reference}}</strong> for <strong>{{.event_title}}</strong> has been cancelled.</p>
{{if .reason}}<p>Reason: {{.reason}}</p>{{end}}
{{if .refund_amount}}<p>A refund of <strong>{{.refund_amount}} {{.currency}}</strong> is on its way.</p>{{else}}<p>This cancellation is not eligible for a refund.</p>{{end}}
<p>The Eventix team</p>`)),
		text: texttemplate.Must(texttemplate.New("cancelled").Parse(`Hi {{.recipient_name}},

Your booking {{.booking_reference}} for {{.event_title}} has been cancelled.
{{if .reason}}Reason: {{.reason}}
{{end}}{{if .refund_amount}}A refund of {{.refund_amount}} {{.currency}} is on its way.{{else}}This cancellation is not eligible for a refund.{{end}}

The Eventix team`)),
	},
}

// RenderEmail renders the HTML and plain text bodies of a notification.
func RenderEmail(notification *EmailNotification) (string, string, error) {
	tmpl, ok := emailTemplates[notification.Type]
	if !ok {
		return "", "", fmt.Errorf("no template for notification type %s", notification.Type)
	}

	data := make(map[string]string, len(notification.TemplateData)+1)
	for k, v := range notification.TemplateData {
		data[k] = v
	}
	data["recipient_name"] = notification.RecipientName

	var html, text bytes.Buffer
	if err := tmpl.html.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("execute html template: %w", err)
	}
	if err := tmpl.text.Execute(&text, data); err != nil {
		return "", "", fmt.Errorf("execute text template: %w", err)
	}
	return html.String(), text.String(), nil
}
