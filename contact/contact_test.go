package contact

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		form   Form
		errors map[string]string
	}{
		{"valid", Form{Name: " Ana ", Email: "ana@example.com", Message: "Loved the Oaxaca post"}, nil},
		{"all missing", Form{Name: "  ", Message: "\n"}, map[string]string{
			"name":    "Name is required.",
			"email":   "Email is required.",
			"message": "Message is required.",
		}},
		{"bad email", Form{Name: "Ana", Email: "ana@", Message: "hi"}, map[string]string{
			"email": "Please enter a valid email address.",
		}},
		{"long message", Form{Name: "Ana", Email: "ana@example.com", Message: strings.Repeat("a", MaxMessageLen+1)}, map[string]string{
			"message": "Message must be under 5000 characters.",
		}},
		{"message at limit", Form{Name: "Ana", Email: "ana@example.com", Message: strings.Repeat("é", MaxMessageLen)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate()
			if tt.errors == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.errors, FieldErrors(err))
		})
	}
}

func TestFieldErrorsOther(t *testing.T) {
	assert.Nil(t, FieldErrors(nil))
	assert.Equal(t, map[string]string{"": "boom"}, FieldErrors(errors.New("boom")))
}

func TestNewEmail(t *testing.T) {
	e := NewEmail("Wanderbites", Form{Name: " <Ana> ", Email: "ana@example.com ", Message: "Tacos & <b>mole</b>\nthanks"})

	assert.Equal(t, "Wanderbites Contact: <Ana>", e.Subject)
	assert.Equal(t, "ana@example.com", e.ReplyTo)
	assert.Contains(t, e.Text, "Name: <Ana>")
	assert.Contains(t, e.Text, "Message:\nTacos & <b>mole</b>\nthanks")
	assert.Contains(t, e.HTML, "&lt;Ana&gt;")
	assert.Contains(t, e.HTML, "Tacos &amp; &lt;b&gt;mole&lt;/b&gt;<br/>thanks")
	assert.NotContains(t, e.HTML, "<b>mole")
}

func TestSMTPMailerSend(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", From: "site@example.com", To: "me@example.com"}, zerolog.Nop())
	m.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	m.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	e := NewEmail("Wanderbites", Form{Name: "Ana", Email: "ana@example.com\r\nBcc: x@evil.test", Message: "hola"})
	require.NoError(t, m.Send(context.Background(), e))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "site@example.com", gotFrom)
	assert.Equal(t, []string{"me@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Wanderbites Contact: Ana\r\n")
	assert.Contains(t, gotMsg, "Reply-To: ana@example.comBcc: x@evil.test\r\n")
	headers, _, _ := strings.Cut(gotMsg, "\r\n\r\n")
	assert.NotContains(t, headers, "\nBcc:")
	assert.Contains(t, gotMsg, "Content-Type: text/plain; charset=utf-8")
	assert.Contains(t, gotMsg, "Content-Type: text/html; charset=utf-8")
	assert.Contains(t, gotMsg, "Date: Sun, 10 Mar 2024 12:00:00 +0000")
}

func TestSMTPMailerFailure(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: "25", From: "a@b.c", To: "d@e.f"}, zerolog.Nop())
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }

	err := m.Send(context.Background(), Email{Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Email{}), context.Canceled)
}

func TestSMTPConfigEnabled(t *testing.T) {
	assert.False(t, SMTPConfig{}.Enabled())
	assert.True(t, SMTPConfig{Host: "h", From: "f", To: "t"}.Enabled())
}
