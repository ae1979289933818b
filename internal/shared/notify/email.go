package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// EmailSender SMTP email channel
type EmailSender struct {
	host string
	port int
	from string
	auth smtp.Auth
}

// NewEmailSender creates an SMTP sender. Auth is skipped when username is
// empty (open relay / local test servers).
func NewEmailSender(host string, port int, from, username, password string) *EmailSender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &EmailSender{host: host, port: port, from: from, auth: auth}
}

// Send delivers one email. The context deadline is not propagated into the
// SMTP dial; delivery is best effort and the orchestrator treats failures as
// non-fatal anyway.
func (s *EmailSender) Send(_ context.Context, to string, msg Message) error {
	headers := []string{
		"From: " + s.from,
		"To: " + sanitizeHeader(to),
		"Subject: " + sanitizeHeader(msg.Subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
	}
	raw := strings.Join(headers, "\r\n") + "\r\n\r\n" + msg.Body

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	if err := smtp.SendMail(addr, s.auth, s.from, []string{to}, []byte(raw)); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

// sanitizeHeader strips CR and LF so interpolated values cannot inject
// additional headers.
func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", "")
	return strings.ReplaceAll(v, "\n", " ")
}
