package report

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/klinikhygiene/begehung/internal/app"
)

// SMTPSender implements app.ReportSender over plain SMTP. The report is
// attached as a file; the body carries a short notice.
type SMTPSender struct {
	Host string
	Port int
	From string
	Auth smtp.Auth

	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender constructs a sender for the given relay.
func NewSMTPSender(host string, port int, from string, auth smtp.Auth) *SMTPSender {
	return &SMTPSender{
		Host: host,
		Port: port,
		From: from,
		Auth: auth,
		send: smtp.SendMail,
	}
}

// Send mails the rendered report to the recipient as an attachment.
func (s *SMTPSender) Send(_ context.Context, recipient string, reportBody []byte, meta app.ReportMeta) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	if s.send == nil {
		s.send = smtp.SendMail
	}

	msg := BuildMessage(s.From, recipient, reportBody, meta, time.Now())
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	if err := s.send(addr, s.Auth, s.From, []string{recipient}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// BuildMessage assembles the MIME multipart message with the report file
// attached.
func BuildMessage(from, to string, reportBody []byte, meta app.ReportMeta, now time.Time) []byte {
	boundary := "begehung-report-boundary"
	filename := meta.Filename
	if filename == "" {
		filename = "begehung-report.md"
	}
	subject := meta.Subject
	if subject == "" {
		subject = "Hygiene audit report"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString("The hygiene audit report is attached.\r\n\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	fmt.Fprintf(&b, "Content-Type: text/markdown; charset=utf-8; name=%q\r\n", filename)
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n\r\n", filename)

	encoded := base64.StdEncoding.EncodeToString(reportBody)
	for len(encoded) > 76 {
		b.WriteString(encoded[:76])
		b.WriteString("\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	return []byte(b.String())
}
