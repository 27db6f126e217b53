package contact

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Mailer delivers contact emails.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Enabled reports whether enough is configured to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != "" && c.To != ""
}

// SMTPMailer sends multipart text/HTML mail through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	addr string
	auth smtp.Auth
	log  zerolog.Logger

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now      func() time.Time
}

// NewSMTPMailer creates an SMTPMailer. PLAIN auth is used when a username is
// set.
func NewSMTPMailer(cfg SMTPConfig, log zerolog.Logger) *SMTPMailer {
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	m := &SMTPMailer{
		cfg:      cfg,
		addr:     cfg.Host + ":" + cfg.Port,
		log:      log.With().Str("component", "mailer").Logger(),
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m
}

// Send delivers e to the configured recipient.
func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := m.build(e)
	if err := m.sendMail(m.addr, m.auth, m.cfg.From, []string{m.cfg.To}, msg); err != nil {
		m.log.Error().Err(err).Str("smtp_addr", m.addr).Msg("failed to send contact email")
		return fmt.Errorf("send contact email: %w", err)
	}
	m.log.Info().Str("reply_to", e.ReplyTo).Msg("contact email sent")
	return nil
}

func (m *SMTPMailer) build(e Email) []byte {
	boundary := "wb-" + uuid.NewString()
	var b strings.Builder
	header := func(k, v string) { b.WriteString(k + ": " + v + "\r\n") }

	header("From", m.cfg.From)
	header("To", m.cfg.To)
	if e.ReplyTo != "" {
		header("Reply-To", stripCRLF(e.ReplyTo))
	}
	header("Subject", mime.QEncoding.Encode("utf-8", stripCRLF(e.Subject)))
	header("Date", m.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `multipart/alternative; boundary="`+boundary+`"`)
	b.WriteString("\r\n")

	part := func(ctype, body string) {
		b.WriteString("--" + boundary + "\r\n")
		b.WriteString("Content-Type: " + ctype + "; charset=utf-8\r\n\r\n")
		b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
		b.WriteString("\r\n")
	}
	part("text/plain", e.Text)
	part("text/html", e.HTML)
	b.WriteString("--" + boundary + "--\r\n")
	return []byte(b.String())
}

// stripCRLF keeps submitted values from injecting extra headers.
func stripCRLF(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

// LogMailer logs emails instead of sending them. It is used when SMTP is not
// configured.
type LogMailer struct {
	Log zerolog.Logger
}

// Send logs e.
func (m LogMailer) Send(_ context.Context, e Email) error {
	m.Log.Info().Str("subject", e.Subject).Str("reply_to", e.ReplyTo).Msg("contact email (smtp disabled)")
	return nil
}
